package dialogue

import (
	"log"

	"github.com/tbelingar/operator-night/server/internal/clock"
	"github.com/tbelingar/operator-night/server/internal/events"
	"github.com/tbelingar/operator-night/server/internal/evidence"
	"github.com/tbelingar/operator-night/server/internal/flags"
	"github.com/tbelingar/operator-night/server/internal/scenario"
	"github.com/tbelingar/operator-night/server/internal/trust"
)

// Flow is the per-night call state machine. At most one call is
// active; others wait in the incoming queue or on hold. Unknown
// call/segment/response ids are logged and ignored so authoring
// mistakes degrade instead of aborting the night.
type Flow struct {
	flags    *flags.Store
	trust    *trust.Graph
	evidence *evidence.Store
	clk      *clock.Clock
	bus      *events.Bus
	executor *Executor

	calls    map[string]*Call
	incoming []string
	held     []string
	activeID string
	history  []HistoryEntry
}

// NewFlow builds the state machine over the scenario's calls
func NewFlow(defs []scenario.CallDef, f *flags.Store, t *trust.Graph, e *evidence.Store, c *clock.Clock, bus *events.Bus) *Flow {
	flow := &Flow{
		flags:    f,
		trust:    t,
		evidence: e,
		clk:      c,
		bus:      bus,
		executor: NewExecutor(f, t, e, c),
		calls:    make(map[string]*Call),
	}
	for _, def := range defs {
		flow.calls[def.ID] = newCall(def)
	}
	return flow
}

// Executor exposes the flow's effect executor for the orchestrator
func (fl *Flow) Executor() *Executor {
	return fl.executor
}

func (fl *Flow) publish(e events.Event) {
	if fl.bus != nil {
		fl.bus.Publish(e)
	}
}

// buildEnv is the environment trigger conditions evaluate against
func (fl *Flow) buildEnv() map[string]interface{} {
	return map[string]interface{}{
		"minute": fl.clk.CurrentMinutes(),
		"flag": func(id string) bool {
			return fl.flags.IsSet(id)
		},
		"score": func(category string) int {
			return fl.flags.GetCategoryScore(category)
		},
		"has_evidence": func(id string) bool {
			return fl.evidence.IsDiscovered(id)
		},
		"trust": func(fromID, toID string) int {
			return fl.trust.GetTrust(fromID, toID)
		},
	}
}

// AddIncomingCall moves a scheduled call into the incoming queue.
// A call whose trigger condition is unmet is silently dropped, not
// queued.
func (fl *Flow) AddIncomingCall(id string) bool {
	call, ok := fl.calls[id]
	if !ok {
		log.Printf("dialogue: incoming unknown call %s ignored", id)
		return false
	}
	if call.Status != StatusScheduled {
		return false
	}

	if !call.cond.eval(fl.buildEnv()) {
		call.Status = StatusDropped
		return false
	}

	call.Status = StatusIncoming
	// The ring window anchors at the scheduled minute, so a coarse
	// tick overshooting the delivery minute does not stretch the ring.
	at := call.Def.IncomingTimeMinutes
	if now := fl.clk.CurrentMinutes(); at <= 0 || at > now {
		at = now
	}
	call.TriggeredAtMinute = at
	fl.incoming = append(fl.incoming, id)

	fl.publish(events.Event{
		Type:    events.TypeCallIncoming,
		Payload: events.CallEvent{CallID: id, CallerID: call.Def.CallerID},
	})
	return true
}

// AnswerCall makes an incoming call the active one, auto-holding any
// currently active call.
func (fl *Flow) AnswerCall(id string) bool {
	call, ok := fl.calls[id]
	if !ok {
		log.Printf("dialogue: answer of unknown call %s ignored", id)
		return false
	}
	if call.Status != StatusIncoming {
		return false
	}

	fl.holdActive()

	fl.removeIncoming(id)
	call.Status = StatusActive
	fl.activeID = id

	fl.publish(events.Event{
		Type:    events.TypeCallAnswered,
		Payload: events.CallEvent{CallID: id, CallerID: call.Def.CallerID},
	})

	fl.executor.ApplyAll(call.Def.OnAnswerEffects)
	fl.transitionToSegment(call, call.Def.StartSegmentID)
	return true
}

// HoldCall parks the active call
func (fl *Flow) HoldCall() bool {
	if fl.activeID == "" {
		return false
	}
	fl.holdActive()
	return true
}

func (fl *Flow) holdActive() {
	if fl.activeID == "" {
		return
	}
	call := fl.calls[fl.activeID]
	call.Status = StatusHeld
	fl.held = append(fl.held, fl.activeID)
	fl.activeID = ""

	fl.publish(events.Event{
		Type:    events.TypeCallHeld,
		Payload: events.CallEvent{CallID: call.Def.ID, CallerID: call.Def.CallerID},
	})
}

// ResumeCall reactivates a held call, auto-holding the current one
func (fl *Flow) ResumeCall(id string) bool {
	call, ok := fl.calls[id]
	if !ok {
		log.Printf("dialogue: resume of unknown call %s ignored", id)
		return false
	}
	if call.Status != StatusHeld {
		return false
	}

	fl.holdActive()

	fl.removeHeld(id)
	call.Status = StatusActive
	fl.activeID = id

	fl.publish(events.Event{
		Type:    events.TypeCallResumed,
		Payload: events.CallEvent{CallID: id, CallerID: call.Def.CallerID},
	})

	fl.presentSegment(call)
	return true
}

// EndCall finishes the active call, applying its on-end effects
func (fl *Flow) EndCall() bool {
	if fl.activeID == "" {
		return false
	}
	call := fl.calls[fl.activeID]

	fl.executor.ApplyAll(call.Def.OnEndEffects)

	call.Status = StatusEnded
	call.CurrentSegmentID = ""
	fl.activeID = ""
	fl.history = append(fl.history, HistoryEntry{
		CallID:     call.Def.ID,
		CallerID:   call.Def.CallerID,
		Status:     StatusEnded,
		EndedAtMin: fl.clk.CurrentMinutes(),
	})

	fl.publish(events.Event{
		Type:    events.TypeCallEnded,
		Payload: events.CallEvent{CallID: call.Def.ID, CallerID: call.Def.CallerID},
	})
	return true
}

// TimeoutIncomingCall moves an unanswered incoming call to missed,
// applying its on-missed effects. An incoming call never auto-answers.
func (fl *Flow) TimeoutIncomingCall(id string) bool {
	call, ok := fl.calls[id]
	if !ok {
		log.Printf("dialogue: timeout of unknown call %s ignored", id)
		return false
	}
	if call.Status != StatusIncoming {
		return false
	}

	fl.removeIncoming(id)
	call.Status = StatusMissed

	fl.executor.ApplyAll(call.Def.OnMissedEffects)

	fl.history = append(fl.history, HistoryEntry{
		CallID:     call.Def.ID,
		CallerID:   call.Def.CallerID,
		Status:     StatusMissed,
		EndedAtMin: fl.clk.CurrentMinutes(),
	})

	fl.publish(events.Event{
		Type:    events.TypeCallMissed,
		Payload: events.CallEvent{CallID: call.Def.ID, CallerID: call.Def.CallerID},
	})
	return true
}

// TimeoutExpiredCalls misses every incoming call that has rung past
// its ring window at the given minute.
func (fl *Flow) TimeoutExpiredCalls(nowMinute int) {
	expired := make([]string, 0)
	for _, id := range fl.incoming {
		call := fl.calls[id]
		if nowMinute >= call.TriggeredAtMinute+call.RingMinutes() {
			expired = append(expired, id)
		}
	}
	for _, id := range expired {
		fl.TimeoutIncomingCall(id)
	}
}

// transitionToSegment moves the call to a segment: auto-discovers the
// segment's evidence, announces the segment, then presents the
// filtered response set.
func (fl *Flow) transitionToSegment(call *Call, segmentID string) {
	seg, ok := call.segments[segmentID]
	if !ok {
		log.Printf("dialogue: call %s has no segment %s, transition ignored", call.Def.ID, segmentID)
		return
	}
	call.CurrentSegmentID = segmentID

	for _, evidenceID := range seg.def.AutoEvidence {
		fl.evidence.DiscoverEvidence(evidenceID)
	}

	fl.presentSegment(call)
}

// presentSegment announces the current segment and its available
// responses. The responses-presented event fires only when at least
// one response is available.
func (fl *Flow) presentSegment(call *Call) {
	fl.publish(events.Event{
		Type:    events.TypeSegmentChanged,
		Payload: events.SegmentChanged{CallID: call.Def.ID, SegmentID: call.CurrentSegmentID},
	})

	available := fl.availableResponses(call)
	if len(available) == 0 {
		return
	}
	ids := make([]string, 0, len(available))
	for _, r := range available {
		ids = append(ids, r.def.ID)
	}
	fl.publish(events.Event{
		Type: events.TypeResponsesPresented,
		Payload: events.ResponsesPresented{
			CallID:      call.Def.ID,
			SegmentID:   call.CurrentSegmentID,
			ResponseIDs: ids,
		},
	})
}

// availableResponses filters the current segment's responses: the
// trigger condition and required-evidence ownership must both hold.
func (fl *Flow) availableResponses(call *Call) []*response {
	seg, ok := call.segments[call.CurrentSegmentID]
	if !ok {
		return nil
	}

	env := fl.buildEnv()
	var result []*response
	for _, r := range seg.responses {
		if !r.cond.eval(env) {
			continue
		}
		missing := false
		for _, evidenceID := range r.def.RequiredEvidence {
			if !fl.evidence.IsDiscovered(evidenceID) {
				missing = true
				break
			}
		}
		if missing {
			continue
		}
		result = append(result, r)
	}
	return result
}

// GetAvailableResponses returns the selectable responses of the
// active call's current segment.
func (fl *Flow) GetAvailableResponses() []scenario.ResponseDef {
	if fl.activeID == "" {
		return nil
	}
	call := fl.calls[fl.activeID]
	available := fl.availableResponses(call)
	result := make([]scenario.ResponseDef, 0, len(available))
	for _, r := range available {
		result = append(result, r.def)
	}
	return result
}

// SelectResponse processes a chosen response. Availability is
// re-checked at selection time to reject stale UI state.
func (fl *Flow) SelectResponse(id string) bool {
	if fl.activeID == "" {
		return false
	}
	call := fl.calls[fl.activeID]

	var chosen *response
	for _, r := range fl.availableResponses(call) {
		if r.def.ID == id {
			chosen = r
			break
		}
	}
	if chosen == nil {
		log.Printf("dialogue: response %s not available on call %s", id, call.Def.ID)
		return false
	}

	fl.processResponse(call, chosen, false)
	return true
}

// SelectSilence processes the segment's non-answer. It prefers the
// response flagged as silence; otherwise it falls back to the
// segment's timeout response, but only if that response is available.
func (fl *Flow) SelectSilence() bool {
	if fl.activeID == "" {
		return false
	}
	call := fl.calls[fl.activeID]
	seg, ok := call.segments[call.CurrentSegmentID]
	if !ok {
		return false
	}

	for _, r := range seg.responses {
		if r.def.IsSilence {
			fl.processResponse(call, r, true)
			return true
		}
	}

	if seg.def.TimeoutResponseID != "" {
		for _, r := range fl.availableResponses(call) {
			if r.def.ID == seg.def.TimeoutResponseID {
				fl.processResponse(call, r, true)
				return true
			}
		}
	}
	return false
}

// processResponse runs a response's consequences in order: selection
// event, flag effects, trust delta, evidence discovery and
// presentation, then either call end or segment transition.
func (fl *Flow) processResponse(call *Call, r *response, silence bool) {
	fl.publish(events.Event{
		Type: events.TypeResponseSelected,
		Payload: events.ResponseSelected{
			CallID:     call.Def.ID,
			SegmentID:  call.CurrentSegmentID,
			ResponseID: r.def.ID,
			Silence:    silence,
		},
	})

	fl.executor.ApplyAll(r.def.Effects)

	if r.def.TrustImpact != 0 {
		fl.trust.ModifyTrust(call.Def.CallerID, scenario.OperatorID, trust.TargetOperator,
			r.def.TrustImpact, "response "+r.def.ID)
	}

	for _, evidenceID := range r.def.DiscoverEvidence {
		fl.evidence.DiscoverEvidence(evidenceID)
	}
	for _, evidenceID := range r.def.PresentEvidence {
		fl.evidence.UseEvidence(evidenceID)
	}

	if r.def.EndsCall {
		fl.EndCall()
		return
	}
	if r.def.NextSegmentID != "" {
		fl.transitionToSegment(call, r.def.NextSegmentID)
	}
}

// ActiveCall returns the active call, nil when none
func (fl *Flow) ActiveCall() *Call {
	if fl.activeID == "" {
		return nil
	}
	return fl.calls[fl.activeID]
}

// GetCall returns a call by id, nil when unknown
func (fl *Flow) GetCall(id string) *Call {
	return fl.calls[id]
}

// IncomingCalls returns the ids of calls currently ringing
func (fl *Flow) IncomingCalls() []string {
	result := make([]string, len(fl.incoming))
	copy(result, fl.incoming)
	return result
}

// HeldCalls returns the ids of calls on hold
func (fl *Flow) HeldCalls() []string {
	result := make([]string, len(fl.held))
	copy(result, fl.held)
	return result
}

// History returns the night's finished-call log
func (fl *Flow) History() []HistoryEntry {
	result := make([]HistoryEntry, len(fl.history))
	copy(result, fl.history)
	return result
}

// ScheduledCalls returns calls still waiting for their incoming time
func (fl *Flow) ScheduledCalls() []*Call {
	var result []*Call
	for _, call := range fl.calls {
		if call.Status == StatusScheduled {
			result = append(result, call)
		}
	}
	return result
}

func (fl *Flow) removeIncoming(id string) {
	for i, v := range fl.incoming {
		if v == id {
			fl.incoming = append(fl.incoming[:i], fl.incoming[i+1:]...)
			return
		}
	}
}

func (fl *Flow) removeHeld(id string) {
	for i, v := range fl.held {
		if v == id {
			fl.held = append(fl.held[:i], fl.held[i+1:]...)
			return
		}
	}
}
