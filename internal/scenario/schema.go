package scenario

// OperatorID is the reserved identity for caller-to-operator trust edges
const OperatorID = "operator"

// EffectCall represents a scripted effect call
type EffectCall struct {
	Name   string                 `json:"name"`
	Params map[string]interface{} `json:"params"`
}

// FlagDef defines a boolean flag and its scoring category
type FlagDef struct {
	ID          string   `json:"id"`
	Category    string   `json:"category"`
	Weight      int      `json:"weight"`
	Persists    bool     `json:"persists"`
	CancelFlags []string `json:"cancel_flags"` // cleared when this flag is set
}

// Flag categories
const (
	CategoryReassurance   = "reassurance"
	CategoryDisclosure    = "disclosure"
	CategoryEscalation    = "escalation"
	CategoryAlignment     = "alignment"
	CategoryEvidence      = "evidence"
	CategoryContradiction = "contradiction"
	CategoryForeshadowing = "foreshadowing"
	CategoryEvent         = "event"
	CategoryDispatch      = "dispatch"
	CategoryThreat        = "threat"
	CategoryNightEffect   = "night_effect"
)

// CallerDef defines a caller identity
type CallerDef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// AssumptionDef defines a belief held by a caller
type AssumptionDef struct {
	ID                 string       `json:"id"`
	HolderID           string       `json:"holder_id"`
	Content            string       `json:"content"`
	InitialConfidence  int          `json:"initial_confidence"`
	OnDisprovenEffects []EffectCall `json:"on_disproven_effects"`
}

// EvidenceDef is an evidence template instantiated on discovery
type EvidenceDef struct {
	ID             string   `json:"id"`
	Type           string   `json:"type"` // statement | document | physical | recording
	Content        string   `json:"content"`
	SourceCallerID string   `json:"source_caller_id"`
	SourceCallID   string   `json:"source_call_id"`
	Reliability    string   `json:"reliability"` // confirmed | likely | dubious | unknown
	IsActuallyTrue bool     `json:"is_actually_true"`
	Usable         bool     `json:"usable"`
	RelatedIDs     []string `json:"related_ids"`
	ContradictsIDs []string `json:"contradicts_ids"`
	SupportsIDs    []string `json:"supports_ids"`
}

// ResponseDef defines one dialogue option within a segment
type ResponseDef struct {
	ID               string       `json:"id"`
	Text             string       `json:"text"`
	Condition        string       `json:"condition"` // expr source, empty = always
	RequiredEvidence []string     `json:"required_evidence"`
	Effects          []EffectCall `json:"effects"`
	TrustImpact      int          `json:"trust_impact"`
	DiscoverEvidence []string     `json:"discover_evidence"`
	PresentEvidence  []string     `json:"present_evidence"`
	NextSegmentID    string       `json:"next_segment_id"`
	EndsCall         bool         `json:"ends_call"`
	IsSilence        bool         `json:"is_silence"`
}

// SegmentDef is one node of a call's dialogue graph
type SegmentDef struct {
	ID                string        `json:"id"`
	Text              string        `json:"text"`
	AutoEvidence      []string      `json:"auto_evidence"` // discovered on entering the segment
	Responses         []ResponseDef `json:"responses"`
	TimeoutResponseID string        `json:"timeout_response_id"`
}

// CallDef defines a scheduled call and its dialogue graph
type CallDef struct {
	ID                  string       `json:"id"`
	CallerID            string       `json:"caller_id"`
	IncomingTimeMinutes int          `json:"incoming_time_minutes"`
	RingMinutes         int          `json:"ring_minutes"` // 0 = default
	Condition           string       `json:"condition"`    // expr source, empty = always
	StartSegmentID      string       `json:"start_segment_id"`
	Segments            []SegmentDef `json:"segments"`
	OnAnswerEffects     []EffectCall `json:"on_answer_effects"`
	OnEndEffects        []EffectCall `json:"on_end_effects"`
	OnMissedEffects     []EffectCall `json:"on_missed_effects"`
}

// Score condition comparators
const (
	CompareEqual          = "eq"
	CompareNotEqual       = "ne"
	CompareGreaterThan    = "gt"
	CompareGreaterOrEqual = "ge"
	CompareLessThan       = "lt"
	CompareLessOrEqual    = "le"
)

// ScoreConditionDef compares a category score against a threshold
type ScoreConditionDef struct {
	Category   string `json:"category"`
	Comparator string `json:"comparator"`
	Threshold  int    `json:"threshold"`
}

// FlagConditionDef requires a flag to hold a specific value
type FlagConditionDef struct {
	FlagID   string `json:"flag_id"`
	Required bool   `json:"required"`
}

// EndStateConditionDef maps accumulated state to a narrative end-state.
// Lower priority evaluates first; all listed conditions must hold.
type EndStateConditionDef struct {
	EndState        string              `json:"end_state"`
	Priority        int                 `json:"priority"`
	ScoreConditions []ScoreConditionDef `json:"score_conditions"`
	FlagConditions  []FlagConditionDef  `json:"flag_conditions"`
}

// EndingMapDef maps an end-state to concrete ending ids
type EndingMapDef struct {
	EndState           string `json:"end_state"`
	RegardlessEndingID string `json:"regardless_ending_id"`
	SurvivedEndingID   string `json:"survived_ending_id"`
	DiedEndingID       string `json:"died_ending_id"`
}

// ClockDef configures the night's simulated time window
type ClockDef struct {
	StartMinutes             int     `json:"start_minutes"`
	EndMinutes               int     `json:"end_minutes"`
	RealSecondsPerGameMinute float64 `json:"real_seconds_per_game_minute"`
}

// SurvivalDef configures victim survival calculation
type SurvivalDef struct {
	RequiresDispatch       bool `json:"requires_dispatch"`
	MaxDispatchTimeMinutes int  `json:"max_dispatch_time_minutes"`
}

// Schema is the complete authored content for one night
type Schema struct {
	ID                string                 `json:"id"`
	Name              string                 `json:"name"`
	NightID           string                 `json:"night_id"`
	Clock             ClockDef               `json:"clock"`
	Survival          SurvivalDef            `json:"survival"`
	Flags             []FlagDef              `json:"flags"`
	ExclusionRules    map[string][]string    `json:"exclusion_rules"` // flag id -> flags it cancels
	Callers           []CallerDef            `json:"callers"`
	Assumptions       []AssumptionDef        `json:"assumptions"`
	Evidence          []EvidenceDef          `json:"evidence"`
	Calls             []CallDef              `json:"calls"`
	EndStates         []EndStateConditionDef `json:"end_states"`
	DefaultEndState   string                 `json:"default_end_state"`
	Endings           []EndingMapDef         `json:"endings"`
	DefaultEndingID   string                 `json:"default_ending_id"`
	PersistentImports []FlagStateRecord      `json:"persistent_imports,omitempty"`
}

// FlagStateRecord is the persisted shape of one flag's runtime state
type FlagStateRecord struct {
	FlagID    string `json:"flag_id"`
	IsSet     bool   `json:"is_set"`
	SetMinute int    `json:"set_minute"`
}

// NightResult is the persisted outcome of a completed night
type NightResult struct {
	NightID     string `json:"night_id"`
	EndState    string `json:"end_state"`
	EndingID    string `json:"ending_id"`
	Survived    bool   `json:"survived"`
	CompletedAt string `json:"completed_at"`
}

// Snapshot is a restorable mid-session state capture
type Snapshot struct {
	NightID        string            `json:"night_id"`
	CurrentMinutes int               `json:"current_minutes"`
	DispatchMinute *int              `json:"dispatch_minute,omitempty"`
	FlagStates     []FlagStateRecord `json:"flag_states"`
}
