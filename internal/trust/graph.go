package trust

import (
	"log"

	"github.com/tbelingar/operator-night/server/internal/events"
	"github.com/tbelingar/operator-night/server/internal/scenario"
)

// TargetKind distinguishes operator edges from caller-to-caller edges
type TargetKind string

const (
	TargetOperator    TargetKind = "operator"
	TargetOtherCaller TargetKind = "other_caller"
)

// Level is the discrete trust tier derived from an edge's value
type Level string

const (
	LevelHostile Level = "hostile"
	LevelWary    Level = "wary"
	LevelNeutral Level = "neutral"
	LevelWarm    Level = "warm"
	LevelLoyal   Level = "loyal"
)

// LevelForValue maps a raw trust value onto a tier
func LevelForValue(value int) Level {
	switch {
	case value <= -50:
		return LevelHostile
	case value <= -15:
		return LevelWary
	case value < 15:
		return LevelNeutral
	case value < 50:
		return LevelWarm
	default:
		return LevelLoyal
	}
}

// Change is one entry in an edge's append-only history
type Change struct {
	Delta  int    `json:"delta"`
	Reason string `json:"reason"`
}

// Edge is a directed trust relationship between two identities
type Edge struct {
	FromID  string     `json:"from_id"`
	ToID    string     `json:"to_id"`
	Kind    TargetKind `json:"kind"`
	Value   int        `json:"value"`
	Level   Level      `json:"level"`
	History []Change   `json:"history"`
}

// Assumption is a belief held by a caller with a confidence that can
// be worn down and eventually disproven.
type Assumption struct {
	ID         string                `json:"id"`
	HolderID   string                `json:"holder_id"`
	Content    string                `json:"content"`
	Confidence int                   `json:"confidence"` // 0-100
	Disproven  bool                  `json:"disproven"`
	Effects    []scenario.EffectCall `json:"effects"`
}

type edgeKey struct {
	from string
	to   string
}

// Graph tracks trust edges and caller assumptions for a night. Edges
// are created lazily on first modification at value 0 / Neutral.
type Graph struct {
	edges       map[edgeKey]*Edge
	assumptions map[string]*Assumption
	bus         *events.Bus
}

// NewGraph creates a graph seeded with the scenario's assumptions
func NewGraph(defs []scenario.AssumptionDef, bus *events.Bus) *Graph {
	g := &Graph{
		edges:       make(map[edgeKey]*Edge),
		assumptions: make(map[string]*Assumption),
		bus:         bus,
	}
	for _, def := range defs {
		confidence := clampConfidence(def.InitialConfidence)
		g.assumptions[def.ID] = &Assumption{
			ID:         def.ID,
			HolderID:   def.HolderID,
			Content:    def.Content,
			Confidence: confidence,
			Effects:    def.OnDisprovenEffects,
		}
	}
	return g
}

func (g *Graph) publish(e events.Event) {
	if g.bus != nil {
		g.bus.Publish(e)
	}
}

func clampConfidence(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// getOrCreate returns the edge for an ordered (from, to) pair, making
// it at 0/Neutral on first use.
func (g *Graph) getOrCreate(fromID, toID string, kind TargetKind) *Edge {
	key := edgeKey{from: fromID, to: toID}
	if edge, ok := g.edges[key]; ok {
		return edge
	}
	edge := &Edge{
		FromID: fromID,
		ToID:   toID,
		Kind:   kind,
		Value:  0,
		Level:  LevelNeutral,
	}
	g.edges[key] = edge
	return edge
}

// ModifyTrust applies a delta to an edge, creating it if needed. The
// change is appended to the edge history; a trust-changed event always
// fires, and a threshold event fires when the level tier moved.
func (g *Graph) ModifyTrust(fromID, toID string, kind TargetKind, delta int, reason string) {
	if toID == scenario.OperatorID {
		kind = TargetOperator
	}

	edge := g.getOrCreate(fromID, toID, kind)
	edge.Value += delta
	edge.History = append(edge.History, Change{Delta: delta, Reason: reason})

	oldLevel := edge.Level
	edge.Level = LevelForValue(edge.Value)

	g.publish(events.Event{
		Type: events.TypeTrustChanged,
		Payload: events.TrustChanged{
			FromID: fromID,
			ToID:   toID,
			Delta:  delta,
			Value:  edge.Value,
			Level:  string(edge.Level),
			Reason: reason,
		},
	})

	if edge.Level != oldLevel {
		g.publish(events.Event{
			Type: events.TypeTrustThreshold,
			Payload: events.TrustThreshold{
				FromID:   fromID,
				ToID:     toID,
				OldLevel: string(oldLevel),
				NewLevel: string(edge.Level),
			},
		})
	}
}

// GetTrust returns an edge's value, 0 when the edge does not exist
func (g *Graph) GetTrust(fromID, toID string) int {
	if edge, ok := g.edges[edgeKey{from: fromID, to: toID}]; ok {
		return edge.Value
	}
	return 0
}

// GetTrustLevel returns an edge's tier, Neutral when it does not exist
func (g *Graph) GetTrustLevel(fromID, toID string) Level {
	if edge, ok := g.edges[edgeKey{from: fromID, to: toID}]; ok {
		return edge.Level
	}
	return LevelNeutral
}

// GetAllTrustEdgesFor returns every edge touching an identity, both
// outgoing and incoming.
func (g *Graph) GetAllTrustEdgesFor(id string) []*Edge {
	var result []*Edge
	for key, edge := range g.edges {
		if key.from == id || key.to == id {
			result = append(result, edge)
		}
	}
	return result
}

// EdgeList returns value copies of every edge, for presentation
// reads that outlive the caller's lock.
func (g *Graph) EdgeList() []Edge {
	result := make([]Edge, 0, len(g.edges))
	for _, edge := range g.edges {
		e := *edge
		e.History = append([]Change(nil), edge.History...)
		result = append(result, e)
	}
	return result
}

// GetAssumption returns an assumption by id, nil when unknown
func (g *Graph) GetAssumption(id string) *Assumption {
	return g.assumptions[id]
}

// ModifyAssumptionConfidence shifts an assumption's confidence,
// clamped to [0,100]. Hitting zero disproves the assumption.
func (g *Graph) ModifyAssumptionConfidence(id string, delta int) {
	a, ok := g.assumptions[id]
	if !ok {
		log.Printf("trust: confidence change on unknown assumption %s ignored", id)
		return
	}
	if a.Disproven {
		return
	}

	a.Confidence = clampConfidence(a.Confidence + delta)
	if a.Confidence <= 0 {
		g.DisproveAssumption(id)
	}
}

// DisproveAssumption marks an assumption as disproven and emits its
// configured effects, exactly once. Later calls are no-ops.
func (g *Graph) DisproveAssumption(id string) {
	a, ok := g.assumptions[id]
	if !ok {
		log.Printf("trust: disprove of unknown assumption %s ignored", id)
		return
	}
	if a.Disproven {
		return
	}
	a.Disproven = true
	a.Confidence = 0

	effects := make([]map[string]interface{}, 0, len(a.Effects))
	for _, call := range a.Effects {
		effects = append(effects, map[string]interface{}{
			"name":   call.Name,
			"params": call.Params,
		})
	}

	g.publish(events.Event{
		Type: events.TypeAssumptionDisproven,
		Payload: events.AssumptionDisproven{
			AssumptionID: id,
			HolderID:     a.HolderID,
			Effects:      effects,
		},
	})
}
