package flags

import (
	"testing"

	"github.com/tbelingar/operator-night/server/internal/events"
	"github.com/tbelingar/operator-night/server/internal/scenario"
)

func testDefs() []scenario.FlagDef {
	return []scenario.FlagDef{
		{ID: "calmed_marcus", Category: scenario.CategoryReassurance, Weight: 10},
		{ID: "soothed_ellen", Category: scenario.CategoryReassurance, Weight: 5},
		{ID: "doubted_marcus", Category: scenario.CategoryEscalation, Weight: 8, CancelFlags: []string{"calmed_marcus"}},
		{ID: "kept_secret", Category: scenario.CategoryEscalation, Weight: 3, Persists: true},
		{ID: "loop_a", Category: scenario.CategoryNightEffect, Weight: 1, CancelFlags: []string{"loop_b"}},
		{ID: "loop_b", Category: scenario.CategoryNightEffect, Weight: 1, CancelFlags: []string{"loop_a"}},
	}
}

// TestSetFlag tests basic flag setting
func TestSetFlag(t *testing.T) {
	store := NewStore(testDefs(), nil, events.NewBus())

	if !store.SetFlag("calmed_marcus", 30) {
		t.Fatal("Expected SetFlag to report a change")
	}
	if !store.IsSet("calmed_marcus") {
		t.Error("Expected calmed_marcus to be set")
	}
	if store.SetMinute("calmed_marcus") != 30 {
		t.Errorf("Expected set minute 30, got %d", store.SetMinute("calmed_marcus"))
	}
}

// TestSetFlagIdempotent tests that re-setting a set flag is a no-op
func TestSetFlagIdempotent(t *testing.T) {
	bus := events.NewBus()
	changes := 0
	bus.Subscribe(events.TypeFlagChanged, func(e events.Event) {
		changes++
	})

	store := NewStore(testDefs(), nil, bus)
	store.SetFlag("calmed_marcus", 30)
	if store.SetFlag("calmed_marcus", 45) {
		t.Error("Expected re-set of a set flag to report no change")
	}
	if store.SetMinute("calmed_marcus") != 30 {
		t.Errorf("Expected original set minute 30, got %d", store.SetMinute("calmed_marcus"))
	}
	if changes != 1 {
		t.Errorf("Expected 1 flag-changed event, got %d", changes)
	}
}

// TestSetUnknownFlag tests that unknown flags are ignored
func TestSetUnknownFlag(t *testing.T) {
	store := NewStore(testDefs(), nil, events.NewBus())

	if store.SetFlag("nonexistent", 10) {
		t.Error("Expected unknown flag set to report no change")
	}
	if store.IsSet("nonexistent") {
		t.Error("Expected unknown flag to stay unset")
	}
}

// TestExclusionCascade tests that setting a flag clears its exclusions
func TestExclusionCascade(t *testing.T) {
	store := NewStore(testDefs(), nil, events.NewBus())

	store.SetFlag("calmed_marcus", 10)
	store.SetFlag("doubted_marcus", 20)

	if store.IsSet("calmed_marcus") {
		t.Error("Expected calmed_marcus to be cancelled")
	}
	if !store.IsSet("doubted_marcus") {
		t.Error("Expected doubted_marcus to be set")
	}
}

// TestExclusionCycle tests that cyclic cancel lists terminate and keep
// the initiating flag set.
func TestExclusionCycle(t *testing.T) {
	store := NewStore(testDefs(), nil, events.NewBus())

	store.SetFlag("loop_a", 10)
	store.SetFlag("loop_b", 20)

	if !store.IsSet("loop_b") {
		t.Error("Expected loop_b to stay set")
	}
	if store.IsSet("loop_a") {
		t.Error("Expected loop_a to be cancelled")
	}
}

// TestExclusionRules tests scenario-level exclusion rules merged with
// per-flag cancel lists.
func TestExclusionRules(t *testing.T) {
	rules := map[string][]string{"soothed_ellen": {"kept_secret"}}
	store := NewStore(testDefs(), rules, events.NewBus())

	store.SetFlag("kept_secret", 5)
	store.SetFlag("soothed_ellen", 10)

	if store.IsSet("kept_secret") {
		t.Error("Expected kept_secret to be cancelled by rule")
	}
}

// TestCategoryScore tests the weighted category score
func TestCategoryScore(t *testing.T) {
	store := NewStore(testDefs(), nil, events.NewBus())

	store.SetFlag("calmed_marcus", 10)
	store.SetFlag("soothed_ellen", 20)

	if score := store.GetCategoryScore(scenario.CategoryReassurance); score != 15 {
		t.Errorf("Expected reassurance score 15, got %d", score)
	}

	store.ClearFlag("calmed_marcus")
	if score := store.GetCategoryScore(scenario.CategoryReassurance); score != 5 {
		t.Errorf("Expected reassurance score 5 after clear, got %d", score)
	}
}

// TestScoreChangedEvents tests that score events fire only on change
func TestScoreChangedEvents(t *testing.T) {
	bus := events.NewBus()
	var scores []events.ScoreChanged
	bus.Subscribe(events.TypeScoreChanged, func(e events.Event) {
		scores = append(scores, e.Payload.(events.ScoreChanged))
	})

	store := NewStore(testDefs(), nil, bus)
	store.SetFlag("calmed_marcus", 10)

	if len(scores) != 1 {
		t.Fatalf("Expected 1 score event, got %d", len(scores))
	}
	if scores[0].Category != scenario.CategoryReassurance || scores[0].Score != 10 {
		t.Errorf("Expected reassurance=10, got %s=%d", scores[0].Category, scores[0].Score)
	}
}

// TestClearFlagNoCascade tests that clearing never cascades
func TestClearFlagNoCascade(t *testing.T) {
	store := NewStore(testDefs(), nil, events.NewBus())

	store.SetFlag("doubted_marcus", 10)
	store.SetFlag("kept_secret", 15)
	store.ClearFlag("doubted_marcus")

	if !store.IsSet("kept_secret") {
		t.Error("Expected kept_secret untouched by clear")
	}
	if store.ClearFlag("doubted_marcus") {
		t.Error("Expected clear of unset flag to report no change")
	}
}

// TestPersistentRoundTrip tests export and import of persistent flags
func TestPersistentRoundTrip(t *testing.T) {
	store := NewStore(testDefs(), nil, events.NewBus())
	store.SetFlag("kept_secret", 40)
	store.SetFlag("calmed_marcus", 50)

	records := store.ExportPersistent()
	if len(records) != 1 {
		t.Fatalf("Expected 1 persistent record, got %d", len(records))
	}
	if records[0].FlagID != "kept_secret" || records[0].SetMinute != 40 {
		t.Errorf("Expected kept_secret at minute 40, got %s at %d", records[0].FlagID, records[0].SetMinute)
	}

	next := NewStore(testDefs(), nil, events.NewBus())
	next.ImportPersistent(records)

	if !next.IsSet("kept_secret") {
		t.Error("Expected kept_secret set after import")
	}
	if next.IsSet("calmed_marcus") {
		t.Error("Expected non-persistent flag to not carry over")
	}
}

// TestSnapshotRestore tests the mid-session state round trip
func TestSnapshotRestore(t *testing.T) {
	store := NewStore(testDefs(), nil, events.NewBus())
	store.SetFlag("calmed_marcus", 10)
	store.SetFlag("kept_secret", 20)
	store.ClearFlag("kept_secret")

	records := store.SnapshotStates()

	next := NewStore(testDefs(), nil, events.NewBus())
	next.RestoreStates(records)

	if !next.IsSet("calmed_marcus") {
		t.Error("Expected calmed_marcus restored as set")
	}
	if next.IsSet("kept_secret") {
		t.Error("Expected kept_secret restored as cleared")
	}
	if score := next.GetCategoryScore(scenario.CategoryReassurance); score != 10 {
		t.Errorf("Expected reassurance score 10 after restore, got %d", score)
	}
}
