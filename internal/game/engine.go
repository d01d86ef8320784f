package game

import (
	"fmt"
	"sort"
	"sync"

	"github.com/tbelingar/operator-night/server/internal/clock"
	"github.com/tbelingar/operator-night/server/internal/dialogue"
	"github.com/tbelingar/operator-night/server/internal/ending"
	"github.com/tbelingar/operator-night/server/internal/events"
	"github.com/tbelingar/operator-night/server/internal/evidence"
	"github.com/tbelingar/operator-night/server/internal/flags"
	"github.com/tbelingar/operator-night/server/internal/scenario"
	"github.com/tbelingar/operator-night/server/internal/trust"
)

// Engine drives one operator night: it owns the stores, advances the
// clock, delivers scheduled calls, and finalizes the outcome when the
// night ends. All work is synchronous within a tick.
type Engine struct {
	ID     string
	schema *scenario.Schema

	bus      *events.Bus
	flags    *flags.Store
	trust    *trust.Graph
	evidence *evidence.Store
	clk      *clock.Clock
	flow     *dialogue.Flow
	resolver *ending.Resolver

	triggered map[string]bool // call ids delivered at least once
	finalized bool
	outcome   *ending.Outcome
	mu        sync.RWMutex
}

// NewEngine creates an engine from a validated scenario schema
func NewEngine(id string, schema *scenario.Schema) (*Engine, error) {
	if err := schema.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	bus := events.NewBus()
	flagStore := flags.NewStore(schema.Flags, schema.ExclusionRules, bus)
	trustGraph := trust.NewGraph(schema.Assumptions, bus)
	evidenceStore := evidence.NewStore(schema.Evidence, bus)
	clk := clock.New(bus)
	flow := dialogue.NewFlow(schema.Calls, flagStore, trustGraph, evidenceStore, clk, bus)

	e := &Engine{
		ID:        id,
		schema:    schema,
		bus:       bus,
		flags:     flagStore,
		trust:     trustGraph,
		evidence:  evidenceStore,
		clk:       clk,
		flow:      flow,
		resolver:  ending.NewResolver(schema, flagStore),
		triggered: make(map[string]bool),
	}

	// A disproven assumption carries its consequences in the event;
	// the engine applies them so the trust store stays effect-free.
	bus.Subscribe(events.TypeAssumptionDisproven, func(ev events.Event) {
		if payload, ok := ev.Payload.(events.AssumptionDisproven); ok {
			flow.Executor().ApplyRaw(payload.Effects)
		}
	})

	flagStore.ImportPersistent(schema.PersistentImports)
	clk.Initialize(schema.Clock.StartMinutes, schema.Clock.EndMinutes, schema.Clock.RealSecondsPerGameMinute)

	return e, nil
}

// Bus exposes the event bus for presentation-layer subscriptions
func (e *Engine) Bus() *events.Bus {
	return e.bus
}

// Tick advances the night by a real-time delta
func (e *Engine) Tick(deltaSeconds float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	old := e.clk.CurrentMinutes()
	e.clk.Tick(deltaSeconds)
	e.afterAdvance(old)
}

// afterAdvance runs the post-advance pipeline: deliver calls scheduled
// in (old, new], expire ringing calls, then check for night end. The
// order guarantees a call scheduled at the final minute is delivered
// before finalization.
func (e *Engine) afterAdvance(oldMinute int) {
	now := e.clk.CurrentMinutes()
	if now != oldMinute {
		e.deliverScheduledCalls(oldMinute, now)
		e.flow.TimeoutExpiredCalls(now)
	}

	if !e.clk.IsRunning() && !e.finalized {
		e.finalize()
	}
}

// deliverScheduledCalls fires every not-yet-triggered call whose
// incoming time falls within (oldMinute, newMinute], exactly once per
// call id ever.
func (e *Engine) deliverScheduledCalls(oldMinute, newMinute int) {
	due := make([]*dialogue.Call, 0)
	for _, call := range e.flow.ScheduledCalls() {
		at := call.Def.IncomingTimeMinutes
		if e.triggered[call.Def.ID] {
			continue
		}
		if at > oldMinute && at <= newMinute {
			due = append(due, call)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		return due[i].Def.IncomingTimeMinutes < due[j].Def.IncomingTimeMinutes
	})

	for _, call := range due {
		e.triggered[call.Def.ID] = true
		e.bus.Publish(events.Event{
			Type:    events.TypeCallTriggered,
			Payload: events.CallTriggered{CallID: call.Def.ID, Minute: newMinute},
		})
		e.flow.AddIncomingCall(call.Def.ID)
	}
}

func (e *Engine) finalize() {
	outcome := e.resolver.DetermineEnding(e.clk.DispatchMinute())
	e.outcome = &outcome
	e.finalized = true
	e.clk.Pause()

	e.bus.Publish(events.Event{
		Type: events.TypeNightFinalized,
		Payload: events.NightFinalized{
			EndState: outcome.EndState,
			EndingID: outcome.EndingID,
			Survived: outcome.Survived,
		},
	})
}

// Finalize force-ends the night and resolves its outcome. Repeated
// calls return the first outcome.
func (e *Engine) Finalize() ending.Outcome {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.finalized {
		e.finalize()
	}
	return *e.outcome
}

// IsFinalized reports whether the night has been resolved
func (e *Engine) IsFinalized() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.finalized
}

// Outcome returns the resolved outcome, nil before finalization
func (e *Engine) Outcome() *ending.Outcome {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.outcome == nil {
		return nil
	}
	outcome := *e.outcome
	return &outcome
}

// AnswerCall answers an incoming call
func (e *Engine) AnswerCall(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.finalized {
		return false
	}
	return e.flow.AnswerCall(id)
}

// SelectResponse chooses a response on the active call
func (e *Engine) SelectResponse(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.finalized {
		return false
	}
	return e.flow.SelectResponse(id)
}

// SelectSilence lets the current segment time out without an answer
func (e *Engine) SelectSilence() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.finalized {
		return false
	}
	return e.flow.SelectSilence()
}

// HoldCall parks the active call
func (e *Engine) HoldCall() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.flow.HoldCall()
}

// ResumeCall reactivates a held call
func (e *Engine) ResumeCall(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.finalized {
		return false
	}
	return e.flow.ResumeCall(id)
}

// RecordDispatch records the dispatch action at the current minute.
// Set-once: a second dispatch is a no-op.
func (e *Engine) RecordDispatch() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clk.RecordDispatchAt(e.clk.CurrentMinutes())
}

// SetFlag is a debug command writing a flag at the current minute
func (e *Engine) SetFlag(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.flags.SetFlag(id, e.clk.CurrentMinutes())
}

// ClearFlag is a debug command clearing a flag
func (e *Engine) ClearFlag(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.flags.ClearFlag(id)
}

// AdvanceTime is a debug command skipping whole minutes forward. The
// post-advance pipeline runs as if the time passed naturally.
func (e *Engine) AdvanceTime(minutes int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	old := e.clk.CurrentMinutes()
	e.clk.AdvanceTime(minutes)
	e.afterAdvance(old)
}

// SetTime is a debug command jumping to an absolute minute
func (e *Engine) SetTime(minutes int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	old := e.clk.CurrentMinutes()
	e.clk.SetTime(minutes)
	e.afterAdvance(old)
}

// Flags exposes the flag store for read access
func (e *Engine) Flags() *flags.Store {
	return e.flags
}

// Trust exposes the trust graph for read access
func (e *Engine) Trust() *trust.Graph {
	return e.trust
}

// Evidence exposes the evidence store for read access
func (e *Engine) Evidence() *evidence.Store {
	return e.evidence
}

// Clock exposes the clock for read access
func (e *Engine) Clock() *clock.Clock {
	return e.clk
}

// Flow exposes the call state machine for read access
func (e *Engine) Flow() *dialogue.Flow {
	return e.flow
}

// ExportPersistent returns the flag states that carry into the next
// session.
func (e *Engine) ExportPersistent() []scenario.FlagStateRecord {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.flags.ExportPersistent()
}

// NightResultRecord builds the persistable result of a finalized
// night, nil before finalization.
func (e *Engine) NightResultRecord(completedAt string) *scenario.NightResult {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.outcome == nil {
		return nil
	}
	return &scenario.NightResult{
		NightID:     e.schema.NightID,
		EndState:    e.outcome.EndState,
		EndingID:    e.outcome.EndingID,
		Survived:    e.outcome.Survived,
		CompletedAt: completedAt,
	}
}

// GetInfo returns basic session information
func (e *Engine) GetInfo() map[string]interface{} {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return map[string]interface{}{
		"id":        e.ID,
		"scenario":  e.schema.ID,
		"night_id":  e.schema.NightID,
		"name":      e.schema.Name,
		"minute":    e.clk.CurrentMinutes(),
		"time":      e.clk.Display(),
		"running":   e.clk.IsRunning(),
		"finalized": e.finalized,
	}
}

// GetStateView returns the presentation-layer view of the night
func (e *Engine) GetStateView() map[string]interface{} {
	e.mu.RLock()
	defer e.mu.RUnlock()

	view := map[string]interface{}{
		"minute":    e.clk.CurrentMinutes(),
		"time":      e.clk.Display(),
		"running":   e.clk.IsRunning(),
		"finalized": e.finalized,
		"flags":     e.flags.SetFlags(),
		"scores":    e.flags.Scores(),
		"incoming":  e.flow.IncomingCalls(),
		"held":      e.flow.HeldCalls(),
		"history":   e.flow.History(),
		"evidence":  e.evidence.Discovered(),
		"trust":     e.trust.EdgeList(),
	}

	if dispatch := e.clk.DispatchMinute(); dispatch != nil {
		view["dispatch_minute"] = *dispatch
	}
	if active := e.flow.ActiveCall(); active != nil {
		view["active_call"] = map[string]interface{}{
			"call_id":   active.Def.ID,
			"caller_id": active.Def.CallerID,
			"segment":   active.CurrentSegmentID,
			"responses": e.flow.GetAvailableResponses(),
		}
	}
	if e.outcome != nil {
		view["outcome"] = *e.outcome
	}
	return view
}
