package ending

import (
	"log"
	"sort"

	"github.com/tbelingar/operator-night/server/internal/flags"
	"github.com/tbelingar/operator-night/server/internal/scenario"
)

// EndStateUnresolved is returned when no condition matches and the
// scenario configured no default. A configuration error, not a crash.
const EndStateUnresolved = "unresolved"

// Outcome is the resolved result of a night
type Outcome struct {
	Survived bool   `json:"survived"`
	EndState string `json:"end_state"`
	EndingID string `json:"ending_id"`
}

// Resolver selects the night's end-state and concrete ending from the
// final flag scores plus the recorded dispatch time. It owns no
// mutable state beyond its last computed outcome.
type Resolver struct {
	flags      *flags.Store
	conditions []scenario.EndStateConditionDef // sorted ascending by priority
	endings    map[string]scenario.EndingMapDef
	survival   scenario.SurvivalDef

	defaultEndState string
	defaultEndingID string

	lastOutcome *Outcome
}

// NewResolver creates a resolver over the scenario's outcome config
func NewResolver(s *scenario.Schema, f *flags.Store) *Resolver {
	conditions := make([]scenario.EndStateConditionDef, len(s.EndStates))
	copy(conditions, s.EndStates)
	sort.SliceStable(conditions, func(i, j int) bool {
		return conditions[i].Priority < conditions[j].Priority
	})

	endings := make(map[string]scenario.EndingMapDef)
	for _, m := range s.Endings {
		endings[m.EndState] = m
	}

	return &Resolver{
		flags:           f,
		conditions:      conditions,
		endings:         endings,
		survival:        s.Survival,
		defaultEndState: s.DefaultEndState,
		defaultEndingID: s.DefaultEndingID,
	}
}

// CalculateVictimSurvival applies the dispatch-window rule. Scenarios
// that do not require dispatch always survive. Otherwise: no dispatch
// means death, and a dispatch after the allowed minute is too late.
func (r *Resolver) CalculateVictimSurvival(dispatchMinute *int) bool {
	if !r.survival.RequiresDispatch {
		return true
	}
	if dispatchMinute == nil {
		return false
	}
	return *dispatchMinute <= r.survival.MaxDispatchTimeMinutes
}

// CalculateEndState picks the first condition, in ascending priority
// order, whose score and flag conditions all hold.
func (r *Resolver) CalculateEndState() string {
	for _, cond := range r.conditions {
		if r.conditionMatches(cond) {
			return cond.EndState
		}
	}
	if r.defaultEndState != "" {
		return r.defaultEndState
	}
	log.Printf("ending: no end-state condition matched and no default configured")
	return EndStateUnresolved
}

func (r *Resolver) conditionMatches(cond scenario.EndStateConditionDef) bool {
	for _, sc := range cond.ScoreConditions {
		if !compareScore(r.flags.GetCategoryScore(sc.Category), sc.Comparator, sc.Threshold) {
			return false
		}
	}
	for _, fc := range cond.FlagConditions {
		if r.flags.IsSet(fc.FlagID) != fc.Required {
			return false
		}
	}
	return true
}

func compareScore(score int, comparator string, threshold int) bool {
	switch comparator {
	case scenario.CompareEqual:
		return score == threshold
	case scenario.CompareNotEqual:
		return score != threshold
	case scenario.CompareGreaterThan:
		return score > threshold
	case scenario.CompareGreaterOrEqual:
		return score >= threshold
	case scenario.CompareLessThan:
		return score < threshold
	case scenario.CompareLessOrEqual:
		return score <= threshold
	default:
		// Validate catches this at load; reaching here means the
		// schema bypassed validation. Fail the condition, do not guess.
		log.Printf("ending: unknown comparator %q", comparator)
		return false
	}
}

// SelectEnding maps an end-state plus survival to a concrete ending
// id. A survival-independent ending wins regardless of survival;
// an empty slot falls back to the scenario's default ending.
func (r *Resolver) SelectEnding(endState string, survived bool) string {
	mapping, ok := r.endings[endState]
	if !ok {
		log.Printf("ending: no ending mapping for end-state %s, using default", endState)
		return r.defaultEndingID
	}

	if mapping.RegardlessEndingID != "" {
		return mapping.RegardlessEndingID
	}

	slot := mapping.DiedEndingID
	if survived {
		slot = mapping.SurvivedEndingID
	}
	if slot == "" {
		return r.defaultEndingID
	}
	return slot
}

// DetermineEnding composes survival, end-state and ending selection.
// This is the single entry point the orchestrator calls at night's
// end.
func (r *Resolver) DetermineEnding(dispatchMinute *int) Outcome {
	survived := r.CalculateVictimSurvival(dispatchMinute)
	endState := r.CalculateEndState()
	endingID := r.SelectEnding(endState, survived)

	outcome := Outcome{Survived: survived, EndState: endState, EndingID: endingID}
	r.lastOutcome = &outcome
	return outcome
}

// LastOutcome returns the most recently computed outcome, nil before
// the first resolution.
func (r *Resolver) LastOutcome() *Outcome {
	if r.lastOutcome == nil {
		return nil
	}
	outcome := *r.lastOutcome
	return &outcome
}
