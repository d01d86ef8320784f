package game

import (
	"github.com/tbelingar/operator-night/server/internal/scenario"
)

// CreateSnapshot captures the restorable mid-session state. The
// snapshot is pure data so the save format can evolve independently
// of the core.
func (e *Engine) CreateSnapshot() scenario.Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return scenario.Snapshot{
		NightID:        e.schema.NightID,
		CurrentMinutes: e.clk.CurrentMinutes(),
		DispatchMinute: e.clk.DispatchMinute(),
		FlagStates:     e.flags.SnapshotStates(),
	}
}

// RestoreFromSnapshot rebuilds an engine mid-night. Calls scheduled
// at or before the snapshot minute count as already delivered; the
// snapshot does not replay them.
func RestoreFromSnapshot(id string, schema *scenario.Schema, snap scenario.Snapshot) (*Engine, error) {
	e, err := NewEngine(id, schema)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.flags.RestoreStates(snap.FlagStates)
	e.clk.SetTime(snap.CurrentMinutes)
	if snap.DispatchMinute != nil {
		e.clk.RecordDispatchAt(*snap.DispatchMinute)
	}

	for _, call := range e.schema.Calls {
		if call.IncomingTimeMinutes <= snap.CurrentMinutes {
			e.triggered[call.ID] = true
		}
	}

	return e, nil
}
