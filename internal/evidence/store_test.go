package evidence

import (
	"strings"
	"testing"

	"github.com/tbelingar/operator-night/server/internal/events"
	"github.com/tbelingar/operator-night/server/internal/scenario"
)

func testTemplates() []scenario.EvidenceDef {
	return []scenario.EvidenceDef{
		{
			ID:             "marcus_alibi",
			Type:           TypeStatement,
			Content:        "Marcus says he was home all evening",
			SourceCallerID: "marcus",
			Reliability:    ReliabilityDubious,
			Usable:         true,
		},
		{
			ID:             "gas_receipt",
			Type:           TypeDocument,
			Content:        "Receipt from the gas station at 21:40",
			Reliability:    ReliabilityConfirmed,
			IsActuallyTrue: true,
			Usable:         true,
			ContradictsIDs: []string{"marcus_alibi"},
		},
		{
			ID:          "old_photo",
			Type:        TypePhysical,
			Content:     "A water-damaged photograph",
			Reliability: ReliabilityUnknown,
			Usable:      false,
		},
	}
}

// TestDiscoverEvidence tests template instantiation
func TestDiscoverEvidence(t *testing.T) {
	store := NewStore(testTemplates(), events.NewBus())

	if !store.DiscoverEvidence("marcus_alibi") {
		t.Fatal("Expected discovery to succeed")
	}
	if !store.IsDiscovered("marcus_alibi") {
		t.Error("Expected marcus_alibi discovered")
	}

	item := store.Get("marcus_alibi")
	if item == nil {
		t.Fatal("Expected item to be retrievable")
	}
	if item.Reliability != ReliabilityDubious {
		t.Errorf("Expected dubious reliability, got %s", item.Reliability)
	}
}

// TestDiscoverIdempotent tests that re-discovery is a no-op
func TestDiscoverIdempotent(t *testing.T) {
	bus := events.NewBus()
	discoveries := 0
	bus.Subscribe(events.TypeEvidenceDiscovered, func(e events.Event) {
		discoveries++
	})

	store := NewStore(testTemplates(), bus)
	store.DiscoverEvidence("marcus_alibi")
	if store.DiscoverEvidence("marcus_alibi") {
		t.Error("Expected second discovery to report false")
	}
	if discoveries != 1 {
		t.Errorf("Expected 1 discovery event, got %d", discoveries)
	}
	if store.DiscoverEvidence("no_such_template") {
		t.Error("Expected unknown template discovery to report false")
	}
}

// TestContradictionReportedOnce tests pair detection and dedup
func TestContradictionReportedOnce(t *testing.T) {
	bus := events.NewBus()
	var pairs []events.ContradictionFound
	bus.Subscribe(events.TypeContradictionFound, func(e events.Event) {
		pairs = append(pairs, e.Payload.(events.ContradictionFound))
	})

	store := NewStore(testTemplates(), bus)
	store.DiscoverEvidence("marcus_alibi")
	store.DiscoverEvidence("gas_receipt")

	if len(pairs) != 1 {
		t.Fatalf("Expected 1 contradiction, got %d", len(pairs))
	}

	// Both items now list each other
	alibi := store.Get("marcus_alibi")
	receipt := store.Get("gas_receipt")
	if !contains(alibi.ContradictsIDs, "gas_receipt") {
		t.Error("Expected alibi to list the receipt as contradicting")
	}
	if !contains(receipt.ContradictsIDs, "marcus_alibi") {
		t.Error("Expected receipt to list the alibi as contradicting")
	}
}

// TestCreateStatementEvidence tests dynamic statement creation
func TestCreateStatementEvidence(t *testing.T) {
	store := NewStore(nil, events.NewBus())

	item := store.CreateStatementEvidence("Ellen claims she heard nothing", "ellen", "call_ellen_1", false)
	if item == nil {
		t.Fatal("Expected a created item")
	}
	if !strings.HasPrefix(item.ID, "stmt-") {
		t.Errorf("Expected stmt- prefixed id, got %s", item.ID)
	}
	if item.Reliability != ReliabilityUnknown {
		t.Errorf("Expected unknown reliability, got %s", item.Reliability)
	}
	if !item.Dynamic || !item.Usable {
		t.Error("Expected a dynamic, usable item")
	}
	if !store.IsDiscovered(item.ID) {
		t.Error("Expected created statement to count as discovered")
	}
}

// TestUseEvidence tests the use counter and usability gate
func TestUseEvidence(t *testing.T) {
	store := NewStore(testTemplates(), events.NewBus())
	store.DiscoverEvidence("marcus_alibi")
	store.DiscoverEvidence("old_photo")

	if !store.UseEvidence("marcus_alibi") {
		t.Error("Expected usable item to be used")
	}
	store.UseEvidence("marcus_alibi")
	if store.Get("marcus_alibi").UseCount != 2 {
		t.Errorf("Expected use count 2, got %d", store.Get("marcus_alibi").UseCount)
	}

	if store.UseEvidence("old_photo") {
		t.Error("Expected non-usable item use to fail")
	}
	if store.UseEvidence("gas_receipt") {
		t.Error("Expected undiscovered item use to fail")
	}
}

// TestDiscoveryOrder tests that Discovered preserves order
func TestDiscoveryOrder(t *testing.T) {
	store := NewStore(testTemplates(), events.NewBus())
	store.DiscoverEvidence("old_photo")
	store.DiscoverEvidence("marcus_alibi")

	items := store.Discovered()
	if len(items) != 2 {
		t.Fatalf("Expected 2 items, got %d", len(items))
	}
	if items[0].ID != "old_photo" || items[1].ID != "marcus_alibi" {
		t.Errorf("Expected discovery order preserved, got %s then %s", items[0].ID, items[1].ID)
	}
}

// TestSetReliability tests reliability revision
func TestSetReliability(t *testing.T) {
	store := NewStore(testTemplates(), events.NewBus())
	store.DiscoverEvidence("marcus_alibi")

	if !store.SetReliability("marcus_alibi", ReliabilityLikely) {
		t.Fatal("Expected reliability change to succeed")
	}
	if store.Get("marcus_alibi").Reliability != ReliabilityLikely {
		t.Errorf("Expected likely, got %s", store.Get("marcus_alibi").Reliability)
	}
	if store.SetReliability("gas_receipt", ReliabilityConfirmed) {
		t.Error("Expected reliability change on undiscovered item to fail")
	}
}
