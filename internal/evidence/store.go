package evidence

import (
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/tbelingar/operator-night/server/internal/events"
	"github.com/tbelingar/operator-night/server/internal/scenario"
)

// Evidence types
const (
	TypeStatement = "statement"
	TypeDocument  = "document"
	TypePhysical  = "physical"
	TypeRecording = "recording"
)

// Reliability levels
const (
	ReliabilityConfirmed = "confirmed"
	ReliabilityLikely    = "likely"
	ReliabilityDubious   = "dubious"
	ReliabilityUnknown   = "unknown"
)

// Item is a discovered evidence instance
type Item struct {
	ID             string   `json:"id"`
	Type           string   `json:"type"`
	Content        string   `json:"content"`
	SourceCallerID string   `json:"source_caller_id"`
	SourceCallID   string   `json:"source_call_id"`
	Reliability    string   `json:"reliability"`
	IsActuallyTrue bool     `json:"is_actually_true"`
	Usable         bool     `json:"usable"`
	UseCount       int      `json:"use_count"`
	RelatedIDs     []string `json:"related_ids"`
	ContradictsIDs []string `json:"contradicts_ids"`
	SupportsIDs    []string `json:"supports_ids"`
	Dynamic        bool     `json:"dynamic"` // created from dialogue, not template-backed
}

type pairKey struct {
	a string
	b string
}

func orderedPair(a, b string) pairKey {
	if a > b {
		a, b = b, a
	}
	return pairKey{a: a, b: b}
}

// Store holds evidence templates and the discovered items of a night.
// Items are never deleted within a session.
type Store struct {
	templates  map[string]scenario.EvidenceDef
	discovered map[string]*Item
	order      []string // discovery order
	reported   map[pairKey]bool
	bus        *events.Bus
}

// NewStore creates a store and indexes the given templates
func NewStore(templates []scenario.EvidenceDef, bus *events.Bus) *Store {
	s := &Store{
		discovered: make(map[string]*Item),
		reported:   make(map[pairKey]bool),
		bus:        bus,
	}
	s.LoadTemplates(templates)
	return s
}

// LoadTemplates indexes templates by id, replacing prior templates
func (s *Store) LoadTemplates(templates []scenario.EvidenceDef) {
	s.templates = make(map[string]scenario.EvidenceDef)
	for _, def := range templates {
		s.templates[def.ID] = def
	}
}

func (s *Store) publish(e events.Event) {
	if s.bus != nil {
		s.bus.Publish(e)
	}
}

// DiscoverEvidence instantiates a template as a discovered item.
// Returns false when the template is missing or the item was already
// discovered.
func (s *Store) DiscoverEvidence(id string) bool {
	if _, exists := s.discovered[id]; exists {
		return false
	}
	def, ok := s.templates[id]
	if !ok {
		log.Printf("evidence: discover of unknown template %s ignored", id)
		return false
	}

	item := &Item{
		ID:             def.ID,
		Type:           def.Type,
		Content:        def.Content,
		SourceCallerID: def.SourceCallerID,
		SourceCallID:   def.SourceCallID,
		Reliability:    def.Reliability,
		IsActuallyTrue: def.IsActuallyTrue,
		Usable:         def.Usable,
		RelatedIDs:     append([]string(nil), def.RelatedIDs...),
		ContradictsIDs: append([]string(nil), def.ContradictsIDs...),
		SupportsIDs:    append([]string(nil), def.SupportsIDs...),
	}
	s.add(item)
	return true
}

// CreateStatementEvidence synthesizes a dynamic statement item from
// in-call dialogue, not backed by any template.
func (s *Store) CreateStatementEvidence(content, sourceCallerID, sourceCallID string, isActuallyTrue bool) *Item {
	item := &Item{
		ID:             fmt.Sprintf("stmt-%s", uuid.New().String()),
		Type:           TypeStatement,
		Content:        content,
		SourceCallerID: sourceCallerID,
		SourceCallID:   sourceCallID,
		Reliability:    ReliabilityUnknown,
		IsActuallyTrue: isActuallyTrue,
		Usable:         true,
		Dynamic:        true,
	}
	s.add(item)
	return item
}

func (s *Store) add(item *Item) {
	s.discovered[item.ID] = item
	s.order = append(s.order, item.ID)

	s.publish(events.Event{
		Type:    events.TypeEvidenceDiscovered,
		Payload: events.EvidenceDiscovered{EvidenceID: item.ID, Dynamic: item.Dynamic},
	})

	s.checkContradictions(item)
}

// checkContradictions compares a newly discovered item against all
// prior discoveries. Pairs are recorded symmetrically and reported at
// most once.
func (s *Store) checkContradictions(item *Item) {
	for _, otherID := range s.order {
		if otherID == item.ID {
			continue
		}
		other := s.discovered[otherID]
		if !s.contradicts(item, other) {
			continue
		}

		key := orderedPair(item.ID, other.ID)
		if s.reported[key] {
			continue
		}
		s.reported[key] = true

		if !contains(item.ContradictsIDs, other.ID) {
			item.ContradictsIDs = append(item.ContradictsIDs, other.ID)
		}
		if !contains(other.ContradictsIDs, item.ID) {
			other.ContradictsIDs = append(other.ContradictsIDs, item.ID)
		}

		s.publish(events.Event{
			Type:    events.TypeContradictionFound,
			Payload: events.ContradictionFound{EvidenceA: key.a, EvidenceB: key.b},
		})
	}
}

func (s *Store) contradicts(a, b *Item) bool {
	if contains(a.ContradictsIDs, b.ID) || contains(b.ContradictsIDs, a.ID) {
		return true
	}
	return s.contentContradicts(a, b)
}

// contentContradicts is the extension point for detecting same-topic
// statements with opposite truth values. It currently matches nothing;
// only explicit contradicting-id lists produce pairs.
func (s *Store) contentContradicts(a, b *Item) bool {
	return false
}

func contains(list []string, id string) bool {
	for _, v := range list {
		if v == id {
			return true
		}
	}
	return false
}

// UseEvidence increments an item's use counter. Fails when the item
// is undiscovered or not usable.
func (s *Store) UseEvidence(id string) bool {
	item, ok := s.discovered[id]
	if !ok {
		log.Printf("evidence: use of undiscovered item %s ignored", id)
		return false
	}
	if !item.Usable {
		return false
	}
	item.UseCount++
	return true
}

// SetReliability updates a discovered item's reliability
func (s *Store) SetReliability(id, reliability string) bool {
	item, ok := s.discovered[id]
	if !ok {
		log.Printf("evidence: reliability change on undiscovered item %s ignored", id)
		return false
	}
	item.Reliability = reliability
	return true
}

// IsDiscovered reports whether an item has been discovered
func (s *Store) IsDiscovered(id string) bool {
	_, ok := s.discovered[id]
	return ok
}

// Get returns a discovered item by id, nil when undiscovered
func (s *Store) Get(id string) *Item {
	return s.discovered[id]
}

// Discovered returns all discovered items in discovery order
func (s *Store) Discovered() []*Item {
	result := make([]*Item, 0, len(s.order))
	for _, id := range s.order {
		result = append(result, s.discovered[id])
	}
	return result
}
