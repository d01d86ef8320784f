package dialogue

import (
	"log"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/tbelingar/operator-night/server/internal/scenario"
)

// Status is a call's position in its lifecycle
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusIncoming  Status = "incoming"
	StatusActive    Status = "active"
	StatusHeld      Status = "held"
	StatusEnded     Status = "ended"
	StatusMissed    Status = "missed"
	StatusDropped   Status = "dropped" // trigger condition unmet at incoming time
)

// DefaultRingMinutes is how long an unanswered call keeps ringing
const DefaultRingMinutes = 5

// condition is a compiled trigger expression. Empty source always
// holds; a source that failed to compile never holds.
type condition struct {
	src     string
	program *vm.Program
	broken  bool
}

func compileCondition(src, owner string) condition {
	c := condition{src: src}
	if src == "" {
		return c
	}
	program, err := expr.Compile(src)
	if err != nil {
		log.Printf("dialogue: condition on %s does not compile, treated as never met: %v", owner, err)
		c.broken = true
		return c
	}
	c.program = program
	return c
}

func (c condition) eval(env map[string]interface{}) bool {
	if c.broken {
		return false
	}
	if c.program == nil {
		return true
	}
	result, err := vm.Run(c.program, env)
	if err != nil {
		log.Printf("dialogue: condition %q failed to evaluate: %v", c.src, err)
		return false
	}
	b, ok := result.(bool)
	if !ok {
		log.Printf("dialogue: condition %q is not boolean", c.src)
		return false
	}
	return b
}

// response pairs a response definition with its compiled condition
type response struct {
	def  scenario.ResponseDef
	cond condition
}

// segment is one node of a call's dialogue graph
type segment struct {
	def       scenario.SegmentDef
	responses []*response
}

// Call is the runtime state of one scheduled call
type Call struct {
	Def               scenario.CallDef
	Status            Status
	CurrentSegmentID  string
	TriggeredAtMinute int

	cond     condition
	segments map[string]*segment
}

func newCall(def scenario.CallDef) *Call {
	c := &Call{
		Def:      def,
		Status:   StatusScheduled,
		cond:     compileCondition(def.Condition, "call "+def.ID),
		segments: make(map[string]*segment),
	}
	for _, segDef := range def.Segments {
		seg := &segment{def: segDef}
		for _, respDef := range segDef.Responses {
			seg.responses = append(seg.responses, &response{
				def:  respDef,
				cond: compileCondition(respDef.Condition, "response "+respDef.ID),
			})
		}
		c.segments[segDef.ID] = seg
	}
	return c
}

// RingMinutes returns the call's configured ring duration
func (c *Call) RingMinutes() int {
	if c.Def.RingMinutes > 0 {
		return c.Def.RingMinutes
	}
	return DefaultRingMinutes
}

// HistoryEntry records a finished call for the night's log
type HistoryEntry struct {
	CallID     string `json:"call_id"`
	CallerID   string `json:"caller_id"`
	Status     Status `json:"status"`
	EndedAtMin int    `json:"ended_at_min"`
}
