package events

// Type identifies a kind of core event
type Type string

const (
	TypeFlagChanged         Type = "flag_changed"
	TypeScoreChanged        Type = "score_changed"
	TypeTrustChanged        Type = "trust_changed"
	TypeTrustThreshold      Type = "trust_threshold_crossed"
	TypeAssumptionDisproven Type = "assumption_disproven"
	TypeEvidenceDiscovered  Type = "evidence_discovered"
	TypeContradictionFound  Type = "contradiction_found"
	TypeTimeChanged         Type = "time_changed"
	TypeTimeUp              Type = "time_up"
	TypeDispatchRecorded    Type = "dispatch_recorded"
	TypeCallTriggered       Type = "call_triggered"
	TypeCallIncoming        Type = "call_incoming"
	TypeCallAnswered        Type = "call_answered"
	TypeCallHeld            Type = "call_held"
	TypeCallResumed         Type = "call_resumed"
	TypeCallEnded           Type = "call_ended"
	TypeCallMissed          Type = "call_missed"
	TypeSegmentChanged      Type = "segment_changed"
	TypeResponsesPresented  Type = "responses_presented"
	TypeResponseSelected    Type = "response_selected"
	TypeNightFinalized      Type = "night_finalized"
)

// Event is a single core notification
type Event struct {
	Type    Type        `json:"type"`
	Payload interface{} `json:"payload"`
}

// Handler receives events synchronously
type Handler func(Event)

// Bus is a synchronous dispatch registry. Handlers run inline on the
// publishing goroutine, in subscription order, before Publish returns.
// Subscriptions happen during setup, before the night starts ticking.
type Bus struct {
	handlers map[Type][]Handler
	all      []Handler
}

// NewBus creates an empty bus
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[Type][]Handler),
	}
}

// Subscribe registers a handler for one event type
func (b *Bus) Subscribe(t Type, h Handler) {
	b.handlers[t] = append(b.handlers[t], h)
}

// SubscribeAll registers a handler for every event type
func (b *Bus) SubscribeAll(h Handler) {
	b.all = append(b.all, h)
}

// Publish delivers an event to all matching handlers
func (b *Bus) Publish(e Event) {
	for _, h := range b.handlers[e.Type] {
		h(e)
	}
	for _, h := range b.all {
		h(e)
	}
}
