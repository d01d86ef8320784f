package trust

import (
	"testing"

	"github.com/tbelingar/operator-night/server/internal/events"
	"github.com/tbelingar/operator-night/server/internal/scenario"
)

func testAssumptions() []scenario.AssumptionDef {
	return []scenario.AssumptionDef{
		{
			ID:                "marcus_thinks_alone",
			HolderID:          "marcus",
			Content:           "Nobody else knows about the basement",
			InitialConfidence: 80,
			OnDisprovenEffects: []scenario.EffectCall{
				{Name: "set_flag", Params: map[string]interface{}{"flag_id": "marcus_panicking"}},
			},
		},
	}
}

// TestLevelForValue tests the tier thresholds
func TestLevelForValue(t *testing.T) {
	cases := []struct {
		value int
		level Level
	}{
		{-80, LevelHostile},
		{-50, LevelHostile},
		{-49, LevelWary},
		{-15, LevelWary},
		{-14, LevelNeutral},
		{0, LevelNeutral},
		{14, LevelNeutral},
		{15, LevelWarm},
		{49, LevelWarm},
		{50, LevelLoyal},
		{90, LevelLoyal},
	}
	for _, c := range cases {
		if got := LevelForValue(c.value); got != c.level {
			t.Errorf("Expected level %s for %d, got %s", c.level, c.value, got)
		}
	}
}

// TestLazyEdgeDefaults tests that absent edges read as 0/Neutral
func TestLazyEdgeDefaults(t *testing.T) {
	g := NewGraph(nil, events.NewBus())

	if v := g.GetTrust("marcus", scenario.OperatorID); v != 0 {
		t.Errorf("Expected trust 0 for absent edge, got %d", v)
	}
	if l := g.GetTrustLevel("marcus", scenario.OperatorID); l != LevelNeutral {
		t.Errorf("Expected neutral level for absent edge, got %s", l)
	}
}

// TestModifyTrust tests edge creation and accumulation
func TestModifyTrust(t *testing.T) {
	g := NewGraph(nil, events.NewBus())

	g.ModifyTrust("marcus", scenario.OperatorID, TargetOtherCaller, 10, "answered quickly")
	g.ModifyTrust("marcus", scenario.OperatorID, TargetOperator, -4, "hesitated")

	if v := g.GetTrust("marcus", scenario.OperatorID); v != 6 {
		t.Errorf("Expected trust 6, got %d", v)
	}

	edges := g.GetAllTrustEdgesFor("marcus")
	if len(edges) != 1 {
		t.Fatalf("Expected 1 edge, got %d", len(edges))
	}
	if edges[0].Kind != TargetOperator {
		t.Errorf("Expected operator edge kind, got %s", edges[0].Kind)
	}
	if len(edges[0].History) != 2 {
		t.Errorf("Expected 2 history entries, got %d", len(edges[0].History))
	}
}

// TestTrustThresholdEvent tests threshold crossing emission
func TestTrustThresholdEvent(t *testing.T) {
	bus := events.NewBus()
	var crossings []events.TrustThreshold
	bus.Subscribe(events.TypeTrustThreshold, func(e events.Event) {
		crossings = append(crossings, e.Payload.(events.TrustThreshold))
	})

	g := NewGraph(nil, bus)
	g.ModifyTrust("ellen", "marcus", TargetOtherCaller, 10, "vouched")
	g.ModifyTrust("ellen", "marcus", TargetOtherCaller, 10, "vouched again")

	if len(crossings) != 1 {
		t.Fatalf("Expected 1 threshold crossing, got %d", len(crossings))
	}
	if crossings[0].OldLevel != string(LevelNeutral) || crossings[0].NewLevel != string(LevelWarm) {
		t.Errorf("Expected neutral->warm, got %s->%s", crossings[0].OldLevel, crossings[0].NewLevel)
	}
}

// TestEdgeList tests that the presentation dump is detached from the
// graph's state.
func TestEdgeList(t *testing.T) {
	g := NewGraph(nil, events.NewBus())
	g.ModifyTrust("marcus", scenario.OperatorID, TargetOperator, 20, "helped")

	edges := g.EdgeList()
	if len(edges) != 1 {
		t.Fatalf("Expected 1 edge, got %d", len(edges))
	}

	edges[0].Value = 999
	edges[0].History[0].Delta = 0

	if g.GetTrust("marcus", scenario.OperatorID) != 20 {
		t.Error("Expected graph value untouched by dump mutation")
	}
	fresh := g.EdgeList()
	if fresh[0].History[0].Delta != 20 {
		t.Errorf("Expected history untouched, got delta %d", fresh[0].History[0].Delta)
	}
}

// TestAssumptionConfidenceClamp tests the [0,100] clamp
func TestAssumptionConfidenceClamp(t *testing.T) {
	g := NewGraph(testAssumptions(), events.NewBus())

	g.ModifyAssumptionConfidence("marcus_thinks_alone", 50)
	if a := g.GetAssumption("marcus_thinks_alone"); a.Confidence != 100 {
		t.Errorf("Expected confidence clamped to 100, got %d", a.Confidence)
	}
}

// TestConfidenceZeroDisproves tests that hitting zero disproves
func TestConfidenceZeroDisproves(t *testing.T) {
	bus := events.NewBus()
	disproven := 0
	bus.Subscribe(events.TypeAssumptionDisproven, func(e events.Event) {
		disproven++
	})

	g := NewGraph(testAssumptions(), bus)
	g.ModifyAssumptionConfidence("marcus_thinks_alone", -80)

	a := g.GetAssumption("marcus_thinks_alone")
	if !a.Disproven {
		t.Fatal("Expected assumption disproven at zero confidence")
	}
	if disproven != 1 {
		t.Errorf("Expected 1 disproven event, got %d", disproven)
	}

	// Further confidence changes are no-ops once disproven
	g.ModifyAssumptionConfidence("marcus_thinks_alone", 30)
	if a.Confidence != 0 {
		t.Errorf("Expected confidence pinned at 0, got %d", a.Confidence)
	}
}

// TestDisproveOnce tests that disprove effects fire exactly once
func TestDisproveOnce(t *testing.T) {
	bus := events.NewBus()
	var payloads []events.AssumptionDisproven
	bus.Subscribe(events.TypeAssumptionDisproven, func(e events.Event) {
		payloads = append(payloads, e.Payload.(events.AssumptionDisproven))
	})

	g := NewGraph(testAssumptions(), bus)
	g.DisproveAssumption("marcus_thinks_alone")
	g.DisproveAssumption("marcus_thinks_alone")

	if len(payloads) != 1 {
		t.Fatalf("Expected 1 disproven event, got %d", len(payloads))
	}
	if len(payloads[0].Effects) != 1 {
		t.Fatalf("Expected 1 effect in payload, got %d", len(payloads[0].Effects))
	}
	if payloads[0].Effects[0]["name"] != "set_flag" {
		t.Errorf("Expected set_flag effect, got %v", payloads[0].Effects[0]["name"])
	}
}
