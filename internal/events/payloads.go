package events

// FlagChanged reports a flag mutation
type FlagChanged struct {
	FlagID   string `json:"flag_id"`
	IsSet    bool   `json:"is_set"`
	AtMinute int    `json:"at_minute"`
}

// ScoreChanged reports a recomputed category score
type ScoreChanged struct {
	Category string `json:"category"`
	Score    int    `json:"score"`
}

// TrustChanged reports a trust delta on an edge
type TrustChanged struct {
	FromID string `json:"from_id"`
	ToID   string `json:"to_id"`
	Delta  int    `json:"delta"`
	Value  int    `json:"value"`
	Level  string `json:"level"`
	Reason string `json:"reason"`
}

// TrustThreshold reports a trust level change
type TrustThreshold struct {
	FromID   string `json:"from_id"`
	ToID     string `json:"to_id"`
	OldLevel string `json:"old_level"`
	NewLevel string `json:"new_level"`
}

// AssumptionDisproven reports a caller belief collapsing. Effects are
// the assumption's configured on-disproven calls, applied by the
// engine, not by the trust store.
type AssumptionDisproven struct {
	AssumptionID string                   `json:"assumption_id"`
	HolderID     string                   `json:"holder_id"`
	Effects      []map[string]interface{} `json:"effects"`
}

// EvidenceDiscovered reports a newly discovered evidence item
type EvidenceDiscovered struct {
	EvidenceID string `json:"evidence_id"`
	Dynamic    bool   `json:"dynamic"`
}

// ContradictionFound reports a contradicting evidence pair, once per pair
type ContradictionFound struct {
	EvidenceA string `json:"evidence_a"`
	EvidenceB string `json:"evidence_b"`
}

// TimeChanged reports an advanced in-game minute
type TimeChanged struct {
	OldMinute int    `json:"old_minute"`
	NewMinute int    `json:"new_minute"`
	Display   string `json:"display"`
}

// TimeUp reports the night reaching its end minute
type TimeUp struct {
	Minute int `json:"minute"`
}

// DispatchRecorded reports the set-once dispatch timestamp
type DispatchRecorded struct {
	Minute int `json:"minute"`
}

// CallTriggered reports a scheduled call reaching its incoming minute
type CallTriggered struct {
	CallID string `json:"call_id"`
	Minute int    `json:"minute"`
}

// CallEvent covers incoming/answered/held/resumed/ended/missed
type CallEvent struct {
	CallID   string `json:"call_id"`
	CallerID string `json:"caller_id"`
}

// SegmentChanged reports a transition within the active call
type SegmentChanged struct {
	CallID    string `json:"call_id"`
	SegmentID string `json:"segment_id"`
}

// ResponsesPresented reports the filtered response set for a segment
type ResponsesPresented struct {
	CallID      string   `json:"call_id"`
	SegmentID   string   `json:"segment_id"`
	ResponseIDs []string `json:"response_ids"`
}

// ResponseSelected reports a chosen response
type ResponseSelected struct {
	CallID     string `json:"call_id"`
	SegmentID  string `json:"segment_id"`
	ResponseID string `json:"response_id"`
	Silence    bool   `json:"silence"`
}

// NightFinalized reports the resolved outcome of a night
type NightFinalized struct {
	EndState string `json:"end_state"`
	EndingID string `json:"ending_id"`
	Survived bool   `json:"survived"`
}
