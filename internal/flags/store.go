package flags

import (
	"log"

	"github.com/tbelingar/operator-night/server/internal/events"
	"github.com/tbelingar/operator-night/server/internal/scenario"
)

// State is the runtime state of one flag
type State struct {
	FlagID    string `json:"flag_id"`
	IsSet     bool   `json:"is_set"`
	SetMinute int    `json:"set_minute"`
}

// Store holds all flag definitions and runtime states for a night.
// Setting a flag applies the scenario's mutual-exclusion rules and
// keeps per-category scores current.
type Store struct {
	defs    map[string]scenario.FlagDef
	cancels map[string][]string // flag id -> flags cleared when it is set
	states  map[string]*State
	scores  map[string]int
	bus     *events.Bus
}

// NewStore creates a store from scenario flag definitions
func NewStore(defs []scenario.FlagDef, exclusionRules map[string][]string, bus *events.Bus) *Store {
	s := &Store{
		defs:    make(map[string]scenario.FlagDef),
		cancels: make(map[string][]string),
		states:  make(map[string]*State),
		scores:  make(map[string]int),
		bus:     bus,
	}

	for _, def := range defs {
		s.defs[def.ID] = def
		if len(def.CancelFlags) > 0 {
			s.cancels[def.ID] = append(s.cancels[def.ID], def.CancelFlags...)
		}
	}
	for flagID, cancelled := range exclusionRules {
		s.cancels[flagID] = append(s.cancels[flagID], cancelled...)
	}

	return s
}

func (s *Store) publish(e events.Event) {
	if s.bus != nil {
		s.bus.Publish(e)
	}
}

// SetFlag marks a flag as set at the given minute. Setting an
// already-set flag is a silent no-op. Returns true if state changed.
func (s *Store) SetFlag(id string, atMinute int) bool {
	def, ok := s.defs[id]
	if !ok {
		log.Printf("flags: set of unknown flag %s ignored", id)
		return false
	}

	state, exists := s.states[id]
	if exists && state.IsSet {
		return false
	}
	if !exists {
		state = &State{FlagID: id}
		s.states[id] = state
	}
	state.IsSet = true
	state.SetMinute = atMinute

	s.publish(events.Event{
		Type:    events.TypeFlagChanged,
		Payload: events.FlagChanged{FlagID: id, IsSet: true, AtMinute: atMinute},
	})

	// Mutual-exclusion cascade. Each flag is processed at most once per
	// top-level SetFlag, which also keeps the initiating flag from
	// being cleared by a cycle in the cancel lists.
	touched := map[string]bool{def.Category: true}
	processed := map[string]bool{id: true}
	s.cascadeCancel(s.cancels[id], processed, touched)

	s.recomputeScores(touched)
	return true
}

// cascadeCancel clears the given flags and recurses into their own
// cancel lists, bounded by the processed set.
func (s *Store) cascadeCancel(ids []string, processed map[string]bool, touched map[string]bool) {
	for _, cid := range ids {
		if processed[cid] {
			continue
		}
		processed[cid] = true

		if state, ok := s.states[cid]; ok && state.IsSet {
			state.IsSet = false
			s.publish(events.Event{
				Type:    events.TypeFlagChanged,
				Payload: events.FlagChanged{FlagID: cid, IsSet: false, AtMinute: state.SetMinute},
			})
			if def, ok := s.defs[cid]; ok {
				touched[def.Category] = true
			}
		}

		s.cascadeCancel(s.cancels[cid], processed, touched)
	}
}

// ClearFlag unsets a flag. No exclusion cascade runs on clear.
func (s *Store) ClearFlag(id string) bool {
	def, ok := s.defs[id]
	if !ok {
		log.Printf("flags: clear of unknown flag %s ignored", id)
		return false
	}

	state, exists := s.states[id]
	if !exists || !state.IsSet {
		return false
	}
	state.IsSet = false

	s.publish(events.Event{
		Type:    events.TypeFlagChanged,
		Payload: events.FlagChanged{FlagID: id, IsSet: false, AtMinute: state.SetMinute},
	})

	s.recomputeScores(map[string]bool{def.Category: true})
	return true
}

// recomputeScores refreshes the cached score of each touched category
// and emits score-changed for the ones that moved.
func (s *Store) recomputeScores(categories map[string]bool) {
	for category := range categories {
		score := s.computeCategoryScore(category)
		if old, ok := s.scores[category]; ok && old == score {
			continue
		}
		s.scores[category] = score
		s.publish(events.Event{
			Type:    events.TypeScoreChanged,
			Payload: events.ScoreChanged{Category: category, Score: score},
		})
	}
}

func (s *Store) computeCategoryScore(category string) int {
	total := 0
	for id, state := range s.states {
		if !state.IsSet {
			continue
		}
		if def, ok := s.defs[id]; ok && def.Category == category {
			total += def.Weight
		}
	}
	return total
}

// IsSet reports whether a flag is currently set
func (s *Store) IsSet(id string) bool {
	state, ok := s.states[id]
	return ok && state.IsSet
}

// SetMinute returns the minute a flag was last set, or -1
func (s *Store) SetMinute(id string) int {
	state, ok := s.states[id]
	if !ok || !state.IsSet {
		return -1
	}
	return state.SetMinute
}

// GetCategoryScore returns a category's weighted score. The cache is
// written only by set/clear; a miss computes the score without
// filling it, so concurrent readers never mutate the map.
func (s *Store) GetCategoryScore(category string) int {
	if score, ok := s.scores[category]; ok {
		return score
	}
	return s.computeCategoryScore(category)
}

// GetCancelledFlags returns the flags cleared when the given flag is
// set. Unknown ids return an empty list.
func (s *Store) GetCancelledFlags(id string) []string {
	cancelled := s.cancels[id]
	result := make([]string, len(cancelled))
	copy(result, cancelled)
	return result
}

// SetFlags returns a copy of all currently-set flag ids
func (s *Store) SetFlags() map[string]bool {
	result := make(map[string]bool)
	for id, state := range s.states {
		if state.IsSet {
			result[id] = true
		}
	}
	return result
}

// Scores returns the current score of every category that has a
// defined flag.
func (s *Store) Scores() map[string]int {
	result := make(map[string]int)
	for _, def := range s.defs {
		if _, ok := result[def.Category]; !ok {
			result[def.Category] = s.GetCategoryScore(def.Category)
		}
	}
	return result
}

// ExportPersistent returns the states of flags marked as persisting
// across sessions.
func (s *Store) ExportPersistent() []scenario.FlagStateRecord {
	records := make([]scenario.FlagStateRecord, 0)
	for id, state := range s.states {
		def, ok := s.defs[id]
		if !ok || !def.Persists {
			continue
		}
		records = append(records, scenario.FlagStateRecord{
			FlagID:    id,
			IsSet:     state.IsSet,
			SetMinute: state.SetMinute,
		})
	}
	return records
}

// ImportPersistent restores persistent flag states from a prior
// session. States are written directly: no exclusion cascade and no
// events, since this runs during setup.
func (s *Store) ImportPersistent(records []scenario.FlagStateRecord) {
	for _, rec := range records {
		def, ok := s.defs[rec.FlagID]
		if !ok || !def.Persists {
			log.Printf("flags: persistent import of %s skipped", rec.FlagID)
			continue
		}
		s.states[rec.FlagID] = &State{
			FlagID:    rec.FlagID,
			IsSet:     rec.IsSet,
			SetMinute: rec.SetMinute,
		}
	}
	s.scores = make(map[string]int)
}

// SnapshotStates captures every flag state for a mid-session save
func (s *Store) SnapshotStates() []scenario.FlagStateRecord {
	records := make([]scenario.FlagStateRecord, 0, len(s.states))
	for id, state := range s.states {
		records = append(records, scenario.FlagStateRecord{
			FlagID:    id,
			IsSet:     state.IsSet,
			SetMinute: state.SetMinute,
		})
	}
	return records
}

// RestoreStates replaces all runtime state from a snapshot
func (s *Store) RestoreStates(records []scenario.FlagStateRecord) {
	s.states = make(map[string]*State)
	for _, rec := range records {
		if _, ok := s.defs[rec.FlagID]; !ok {
			log.Printf("flags: snapshot flag %s not in scenario, skipped", rec.FlagID)
			continue
		}
		s.states[rec.FlagID] = &State{
			FlagID:    rec.FlagID,
			IsSet:     rec.IsSet,
			SetMinute: rec.SetMinute,
		}
	}
	s.scores = make(map[string]int)
}

// Reset clears all runtime state for a scenario restart
func (s *Store) Reset() {
	s.states = make(map[string]*State)
	s.scores = make(map[string]int)
}
