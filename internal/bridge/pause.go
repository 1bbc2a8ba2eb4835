package bridge

import (
	"encoding/json"

	"github.com/ctagard/cdp-bridge/internal/cdp"
)

// PausedDetails captures why and where execution is currently suspended.
type PausedDetails struct {
	// Reason is the client-facing stop reason ("breakpoint", "exception",
	// "step", ...).
	Reason string

	// Description is the human-readable one-liner for the stop.
	Description string

	// CallFrames is the raw captured stack; frame construction is the stack
	// builder's business, not the bridge's.
	CallFrames []cdp.CallFrame

	// Text carries extra detail for the stop, if any.
	Text string

	// Exception is the thrown object for exception-family pauses.
	Exception *cdp.RemoteObject

	// Variables is the live store tied to this pause.
	Variables *VariableStore
}

// genericEventListenerShort and ...Long describe an event-listener pause
// whose breakpoint id the catalog does not recognize. The lookup must never
// fail the pause.
const (
	genericEventListenerShort = "Event listener breakpoint"
	genericEventListenerLong  = "Paused on event listener breakpoint"
)

// pausedDetails maps a raw pause event deterministically to client-facing
// details. Unmatched causes and plain breakpoint hits without a more
// specific cause default to "step"/"Paused".
func (t *Thread) pausedDetails(ev *cdp.PausedEvent) *PausedDetails {
	details := &PausedDetails{
		CallFrames: ev.CallFrames,
		Variables:  NewVariableStore(),
	}

	switch ev.Reason {
	case cdp.PauseReasonAssert:
		details.Reason = "exception"
		details.Description = "Paused on assert"
	case cdp.PauseReasonDebugCommand:
		details.Reason = "pause"
		details.Description = "Paused on debug() call"
	case cdp.PauseReasonDOM:
		details.Reason = "data breakpoint"
		details.Description = "Paused on DOM breakpoint"
	case cdp.PauseReasonEventListener:
		details.Reason = "function breakpoint"
		details.Description, details.Text = t.eventListenerDescription(ev.Data)
	case cdp.PauseReasonException:
		details.Reason = "exception"
		details.Description = "Paused on exception"
		details.Exception = decodeRemoteObject(ev.Data)
	case cdp.PauseReasonPromiseRejection:
		details.Reason = "exception"
		details.Description = "Paused on promise rejection"
		details.Exception = decodeRemoteObject(ev.Data)
	case cdp.PauseReasonInstrumentation:
		details.Reason = "function breakpoint"
		details.Description = "Paused on instrumentation breakpoint"
	case cdp.PauseReasonXHR:
		details.Reason = "data breakpoint"
		details.Description = "Paused on XMLHttpRequest or fetch"
	case cdp.PauseReasonOOM:
		details.Reason = "exception"
		details.Description = "Paused before Out Of Memory exception"
	default:
		if len(ev.HitBreakpoints) > 0 {
			details.Reason = "breakpoint"
			details.Description = "Paused on breakpoint"
		} else {
			details.Reason = "step"
			details.Description = "Paused"
		}
	}

	if details.Exception != nil {
		details.Variables.Add(details.Exception)
	}

	return details
}

// eventListenerDescription looks the breakpoint id up in the external
// catalog to produce a short/long description pair. Unknown ids fall back
// to the generic pair.
func (t *Thread) eventListenerDescription(data json.RawMessage) (description, text string) {
	var payload cdp.EventListenerPauseData
	if len(data) > 0 {
		_ = json.Unmarshal(data, &payload)
	}
	if payload.EventName == "" || t.catalog == nil {
		return genericEventListenerLong, genericEventListenerShort
	}
	bp, ok := t.catalog.Lookup(payload.EventName)
	if !ok {
		return genericEventListenerLong, genericEventListenerShort
	}
	short, long := bp.Details(data)
	if short == "" {
		short = genericEventListenerShort
	}
	if long == "" {
		long = genericEventListenerLong
	}
	return long, short
}

func decodeRemoteObject(data json.RawMessage) *cdp.RemoteObject {
	if len(data) == 0 {
		return nil
	}
	var obj cdp.RemoteObject
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil
	}
	return &obj
}
