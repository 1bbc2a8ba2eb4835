package cdp

import "context"

// Caller issues one protocol call. *Conn implements it; bridge tests supply
// fakes.
type Caller interface {
	Call(ctx context.Context, method string, params, result interface{}) error
}

// EnableRuntime turns on Runtime-domain events.
func EnableRuntime(ctx context.Context, c Caller) error {
	return c.Call(ctx, "Runtime.enable", nil, nil)
}

// EnableDebugger turns on Debugger-domain events.
func EnableDebugger(ctx context.Context, c Caller) error {
	return c.Call(ctx, "Debugger.enable", nil, nil)
}

// Resume lets the target continue execution.
func Resume(ctx context.Context, c Caller) error {
	return c.Call(ctx, "Debugger.resume", nil, nil)
}

// Pause asks the target to suspend at the next opportunity.
func Pause(ctx context.Context, c Caller) error {
	return c.Call(ctx, "Debugger.pause", nil, nil)
}

// StepInto steps into the next call.
func StepInto(ctx context.Context, c Caller) error {
	return c.Call(ctx, "Debugger.stepInto", nil, nil)
}

// StepOver steps over the next statement.
func StepOver(ctx context.Context, c Caller) error {
	return c.Call(ctx, "Debugger.stepOver", nil, nil)
}

// StepOut runs until the current frame returns.
func StepOut(ctx context.Context, c Caller) error {
	return c.Call(ctx, "Debugger.stepOut", nil, nil)
}

// RestartFrame restarts execution of the given call frame.
func RestartFrame(ctx context.Context, c Caller, callFrameID string) error {
	params := struct {
		CallFrameID string `json:"callFrameId"`
		Mode        string `json:"mode,omitempty"`
	}{CallFrameID: callFrameID, Mode: "StepInto"}
	return c.Call(ctx, "Debugger.restartFrame", params, nil)
}

// GetScriptSource fetches the source text of one script.
func GetScriptSource(ctx context.Context, c Caller, scriptID string) (string, error) {
	params := struct {
		ScriptID string `json:"scriptId"`
	}{ScriptID: scriptID}
	var result struct {
		ScriptSource string `json:"scriptSource"`
	}
	if err := c.Call(ctx, "Debugger.getScriptSource", params, &result); err != nil {
		return "", err
	}
	return result.ScriptSource, nil
}

// SetPauseOnExceptions sets the exception-pause state: "none", "uncaught"
// or "all".
func SetPauseOnExceptions(ctx context.Context, c Caller, state string) error {
	params := struct {
		State string `json:"state"`
	}{State: state}
	return c.Call(ctx, "Debugger.setPauseOnExceptions", params, nil)
}

// SetInstrumentationBreakpoint enables a named instrumentation pause.
// Targets that do not support it answer with an error; callers treat that
// as a permanently unavailable capability.
func SetInstrumentationBreakpoint(ctx context.Context, c Caller, instrumentation string) error {
	params := struct {
		Instrumentation string `json:"instrumentation"`
	}{Instrumentation: instrumentation}
	return c.Call(ctx, "Debugger.setInstrumentationBreakpoint", params, nil)
}
