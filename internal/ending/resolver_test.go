package ending

import (
	"testing"

	"github.com/tbelingar/operator-night/server/internal/events"
	"github.com/tbelingar/operator-night/server/internal/flags"
	"github.com/tbelingar/operator-night/server/internal/scenario"
)

func testSchema() *scenario.Schema {
	return &scenario.Schema{
		ID:      "night-one",
		NightID: "n1",
		Survival: scenario.SurvivalDef{
			RequiresDispatch:       true,
			MaxDispatchTimeMinutes: 169,
		},
		Flags: []scenario.FlagDef{
			{ID: "trusted_fully", Category: scenario.CategoryReassurance, Weight: 20},
			{ID: "found_truth", Category: scenario.CategoryEvidence, Weight: 15},
			{ID: "spooked_him", Category: scenario.CategoryEscalation, Weight: 10},
		},
		EndStates: []scenario.EndStateConditionDef{
			{
				EndState: "operator_exposed",
				Priority: 0,
				FlagConditions: []scenario.FlagConditionDef{
					{FlagID: "spooked_him", Required: true},
				},
			},
			{
				EndState: "case_closed",
				Priority: 1,
				ScoreConditions: []scenario.ScoreConditionDef{
					{Category: scenario.CategoryEvidence, Comparator: scenario.CompareGreaterOrEqual, Threshold: 15},
				},
				FlagConditions: []scenario.FlagConditionDef{
					{FlagID: "spooked_him", Required: false},
				},
			},
		},
		DefaultEndState: "quiet_night",
		Endings: []scenario.EndingMapDef{
			{EndState: "operator_exposed", RegardlessEndingID: "ending_exposed"},
			{EndState: "case_closed", SurvivedEndingID: "ending_saved", DiedEndingID: "ending_too_late"},
			{EndState: "quiet_night", SurvivedEndingID: "ending_dawn"},
		},
		DefaultEndingID: "ending_static",
	}
}

func newTestResolver(t *testing.T) (*Resolver, *flags.Store) {
	t.Helper()
	s := testSchema()
	store := flags.NewStore(s.Flags, s.ExclusionRules, events.NewBus())
	return NewResolver(s, store), store
}

// TestSurvivalDispatchWindow tests the dispatch-time survival rule
func TestSurvivalDispatchWindow(t *testing.T) {
	r, _ := newTestResolver(t)

	early := 150
	late := 200
	exact := 169

	if !r.CalculateVictimSurvival(&early) {
		t.Error("Expected survival for dispatch at 150")
	}
	if !r.CalculateVictimSurvival(&exact) {
		t.Error("Expected survival for dispatch at the deadline")
	}
	if r.CalculateVictimSurvival(&late) {
		t.Error("Expected death for dispatch at 200")
	}
	if r.CalculateVictimSurvival(nil) {
		t.Error("Expected death with no dispatch")
	}
}

// TestSurvivalNotRequired tests scenarios without a dispatch rule
func TestSurvivalNotRequired(t *testing.T) {
	s := testSchema()
	s.Survival = scenario.SurvivalDef{}
	store := flags.NewStore(s.Flags, nil, events.NewBus())
	r := NewResolver(s, store)

	if !r.CalculateVictimSurvival(nil) {
		t.Error("Expected survival when dispatch is not required")
	}
}

// TestEndStatePriority tests that the lowest priority match wins
func TestEndStatePriority(t *testing.T) {
	r, store := newTestResolver(t)

	store.SetFlag("found_truth", 50)
	store.SetFlag("spooked_him", 60)

	// Both conditions hold; priority 0 wins
	if state := r.CalculateEndState(); state != "operator_exposed" {
		t.Errorf("Expected operator_exposed, got %s", state)
	}
}

// TestEndStateScoreCondition tests score comparison in conditions
func TestEndStateScoreCondition(t *testing.T) {
	r, store := newTestResolver(t)

	store.SetFlag("found_truth", 50)
	if state := r.CalculateEndState(); state != "case_closed" {
		t.Errorf("Expected case_closed, got %s", state)
	}
}

// TestEndStateDefault tests the fallback when nothing matches
func TestEndStateDefault(t *testing.T) {
	r, _ := newTestResolver(t)

	if state := r.CalculateEndState(); state != "quiet_night" {
		t.Errorf("Expected quiet_night default, got %s", state)
	}
}

// TestEndStateUnresolved tests the no-match no-default case
func TestEndStateUnresolved(t *testing.T) {
	s := testSchema()
	s.DefaultEndState = ""
	store := flags.NewStore(s.Flags, nil, events.NewBus())
	r := NewResolver(s, store)

	if state := r.CalculateEndState(); state != EndStateUnresolved {
		t.Errorf("Expected unresolved, got %s", state)
	}
}

// TestCompareScore tests every comparator
func TestCompareScore(t *testing.T) {
	cases := []struct {
		comparator string
		score      int
		threshold  int
		expected   bool
	}{
		{scenario.CompareEqual, 10, 10, true},
		{scenario.CompareEqual, 10, 11, false},
		{scenario.CompareNotEqual, 10, 11, true},
		{scenario.CompareGreaterThan, 10, 10, false},
		{scenario.CompareGreaterThan, 11, 10, true},
		{scenario.CompareGreaterOrEqual, 10, 10, true},
		{scenario.CompareLessThan, 9, 10, true},
		{scenario.CompareLessOrEqual, 10, 10, true},
		{"spaceship", 10, 10, false},
	}
	for _, c := range cases {
		if got := compareScore(c.score, c.comparator, c.threshold); got != c.expected {
			t.Errorf("Expected %v for %d %s %d, got %v", c.expected, c.score, c.comparator, c.threshold, got)
		}
	}
}

// TestSelectEndingRegardless tests survival-independent endings
func TestSelectEndingRegardless(t *testing.T) {
	r, _ := newTestResolver(t)

	if id := r.SelectEnding("operator_exposed", true); id != "ending_exposed" {
		t.Errorf("Expected ending_exposed, got %s", id)
	}
	if id := r.SelectEnding("operator_exposed", false); id != "ending_exposed" {
		t.Errorf("Expected ending_exposed regardless of death, got %s", id)
	}
}

// TestSelectEndingSurvivalSlots tests survived/died slot selection
func TestSelectEndingSurvivalSlots(t *testing.T) {
	r, _ := newTestResolver(t)

	if id := r.SelectEnding("case_closed", true); id != "ending_saved" {
		t.Errorf("Expected ending_saved, got %s", id)
	}
	if id := r.SelectEnding("case_closed", false); id != "ending_too_late" {
		t.Errorf("Expected ending_too_late, got %s", id)
	}
	// quiet_night has no died slot, falls back to the default ending
	if id := r.SelectEnding("quiet_night", false); id != "ending_static" {
		t.Errorf("Expected ending_static fallback, got %s", id)
	}
	// unmapped end-state falls back entirely
	if id := r.SelectEnding("meteor_strike", true); id != "ending_static" {
		t.Errorf("Expected ending_static for unmapped state, got %s", id)
	}
}

// TestDetermineEnding tests the composed resolution
func TestDetermineEnding(t *testing.T) {
	r, store := newTestResolver(t)
	store.SetFlag("found_truth", 50)

	dispatch := 120
	outcome := r.DetermineEnding(&dispatch)

	if !outcome.Survived {
		t.Error("Expected survival")
	}
	if outcome.EndState != "case_closed" {
		t.Errorf("Expected case_closed, got %s", outcome.EndState)
	}
	if outcome.EndingID != "ending_saved" {
		t.Errorf("Expected ending_saved, got %s", outcome.EndingID)
	}

	last := r.LastOutcome()
	if last == nil || *last != outcome {
		t.Error("Expected last outcome cached")
	}
}
