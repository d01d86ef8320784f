package dialogue

import (
	"log"

	"github.com/tbelingar/operator-night/server/internal/clock"
	"github.com/tbelingar/operator-night/server/internal/evidence"
	"github.com/tbelingar/operator-night/server/internal/flags"
	"github.com/tbelingar/operator-night/server/internal/scenario"
	"github.com/tbelingar/operator-night/server/internal/trust"
)

// Executor applies scripted effect calls against the night's stores.
// Unknown effect names and bad params are logged and skipped, never
// fatal: authored content degrades instead of crashing a session.
type Executor struct {
	flags    *flags.Store
	trust    *trust.Graph
	evidence *evidence.Store
	clk      *clock.Clock
}

// NewExecutor creates an executor over the given stores
func NewExecutor(f *flags.Store, t *trust.Graph, e *evidence.Store, c *clock.Clock) *Executor {
	return &Executor{flags: f, trust: t, evidence: e, clk: c}
}

// Apply executes a single effect call
func (x *Executor) Apply(call scenario.EffectCall) {
	params := call.Params
	if params == nil {
		params = map[string]interface{}{}
	}

	switch call.Name {
	case "set_flag":
		if id, ok := params["flag_id"].(string); ok {
			x.flags.SetFlag(id, x.clk.CurrentMinutes())
		} else {
			log.Printf("effects: set_flag missing flag_id")
		}
	case "clear_flag":
		if id, ok := params["flag_id"].(string); ok {
			x.flags.ClearFlag(id)
		} else {
			log.Printf("effects: clear_flag missing flag_id")
		}
	case "modify_trust":
		fromID, _ := params["from_id"].(string)
		toID, _ := params["to_id"].(string)
		delta, ok := floatParam(params, "delta")
		if fromID == "" || toID == "" || !ok {
			log.Printf("effects: modify_trust with invalid params")
			return
		}
		reason, _ := params["reason"].(string)
		kind := trust.TargetOtherCaller
		if toID == scenario.OperatorID {
			kind = trust.TargetOperator
		}
		x.trust.ModifyTrust(fromID, toID, kind, int(delta), reason)
	case "modify_assumption":
		id, _ := params["assumption_id"].(string)
		delta, ok := floatParam(params, "delta")
		if id == "" || !ok {
			log.Printf("effects: modify_assumption with invalid params")
			return
		}
		x.trust.ModifyAssumptionConfidence(id, int(delta))
	case "disprove_assumption":
		if id, ok := params["assumption_id"].(string); ok {
			x.trust.DisproveAssumption(id)
		} else {
			log.Printf("effects: disprove_assumption missing assumption_id")
		}
	case "discover_evidence":
		if id, ok := params["evidence_id"].(string); ok {
			x.evidence.DiscoverEvidence(id)
		} else {
			log.Printf("effects: discover_evidence missing evidence_id")
		}
	case "create_statement":
		content, _ := params["content"].(string)
		if content == "" {
			log.Printf("effects: create_statement missing content")
			return
		}
		callerID, _ := params["caller_id"].(string)
		callID, _ := params["call_id"].(string)
		isTrue, _ := params["is_actually_true"].(bool)
		x.evidence.CreateStatementEvidence(content, callerID, callID, isTrue)
	case "record_dispatch":
		x.clk.RecordDispatchAt(x.clk.CurrentMinutes())
	default:
		// Unknown effects are authored extensions handled elsewhere
	}
}

// ApplyAll executes effect calls in order
func (x *Executor) ApplyAll(calls []scenario.EffectCall) {
	for _, call := range calls {
		x.Apply(call)
	}
}

// ApplyRaw executes effects shaped as {name, params} maps, the form
// they travel in through events.
func (x *Executor) ApplyRaw(calls []map[string]interface{}) {
	for _, raw := range calls {
		name, _ := raw["name"].(string)
		if name == "" {
			continue
		}
		params, _ := raw["params"].(map[string]interface{})
		x.Apply(scenario.EffectCall{Name: name, Params: params})
	}
}

func floatParam(params map[string]interface{}, key string) (float64, bool) {
	switch v := params[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}
