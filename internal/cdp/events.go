package cdp

import "encoding/json"

// Event method names the bridge subscribes to.
const (
	EventDebuggerPaused       = "Debugger.paused"
	EventDebuggerResumed      = "Debugger.resumed"
	EventDebuggerScriptParsed = "Debugger.scriptParsed"

	EventExecutionContextCreated   = "Runtime.executionContextCreated"
	EventExecutionContextDestroyed = "Runtime.executionContextDestroyed"
	EventExecutionContextsCleared  = "Runtime.executionContextsCleared"
	EventConsoleAPICalled          = "Runtime.consoleAPICalled"
	EventExceptionThrown           = "Runtime.exceptionThrown"
	EventInspectRequested          = "Runtime.inspectRequested"
)

// Pause reasons as reported in Debugger.paused.
const (
	PauseReasonAmbiguous        = "ambiguous"
	PauseReasonAssert           = "assert"
	PauseReasonDebugCommand     = "debugCommand"
	PauseReasonDOM              = "DOM"
	PauseReasonEventListener    = "EventListener"
	PauseReasonException        = "exception"
	PauseReasonInstrumentation  = "instrumentation"
	PauseReasonOOM              = "OOM"
	PauseReasonOther            = "other"
	PauseReasonPromiseRejection = "promiseRejection"
	PauseReasonXHR              = "XHR"
	PauseReasonStep             = "step"
)

// InstrumentationScriptWithSourceMap is the instrumentation breakpoint fired
// before a script carrying a source map starts executing.
const InstrumentationScriptWithSourceMap = "beforeScriptWithSourceMapExecution"

// PausedEvent is the payload of Debugger.paused.
type PausedEvent struct {
	CallFrames      []CallFrame     `json:"callFrames"`
	Reason          string          `json:"reason"`
	Data            json.RawMessage `json:"data,omitempty"`
	HitBreakpoints  []string        `json:"hitBreakpoints,omitempty"`
	AsyncStackTrace *StackTrace     `json:"asyncStackTrace,omitempty"`
}

// InstrumentationPauseData is the Data payload of an instrumentation pause.
type InstrumentationPauseData struct {
	ScriptID     string `json:"scriptId"`
	URL          string `json:"url,omitempty"`
	SourceMapURL string `json:"sourceMapURL,omitempty"`
}

// EventListenerPauseData is the Data payload of an EventListener pause.
type EventListenerPauseData struct {
	EventName  string `json:"eventName"`
	TargetName string `json:"targetName,omitempty"`
}

// ScriptParsedEvent is the payload of Debugger.scriptParsed.
type ScriptParsedEvent struct {
	ScriptID           string `json:"scriptId"`
	URL                string `json:"url"`
	StartLine          int    `json:"startLine"`
	StartColumn        int    `json:"startColumn"`
	EndLine            int    `json:"endLine"`
	EndColumn          int    `json:"endColumn"`
	ExecutionContextID int    `json:"executionContextId"`
	Hash               string `json:"hash,omitempty"`
	SourceMapURL       string `json:"sourceMapURL,omitempty"`
	HasSourceURL       bool   `json:"hasSourceURL,omitempty"`
	Length             int    `json:"length,omitempty"`
	EmbedderName       string `json:"embedderName,omitempty"`
}

// ExecutionContextCreatedEvent is the payload of Runtime.executionContextCreated.
type ExecutionContextCreatedEvent struct {
	Context ExecutionContextDescription `json:"context"`
}

// ExecutionContextDestroyedEvent is the payload of Runtime.executionContextDestroyed.
type ExecutionContextDestroyedEvent struct {
	ExecutionContextID int `json:"executionContextId"`
}

// ConsoleAPICalledEvent is the payload of Runtime.consoleAPICalled.
type ConsoleAPICalledEvent struct {
	Type               string         `json:"type"`
	Args               []RemoteObject `json:"args"`
	ExecutionContextID int            `json:"executionContextId"`
	Timestamp          float64        `json:"timestamp"`
	StackTrace         *StackTrace    `json:"stackTrace,omitempty"`
}

// ExceptionThrownEvent is the payload of Runtime.exceptionThrown.
type ExceptionThrownEvent struct {
	Timestamp        float64          `json:"timestamp"`
	ExceptionDetails ExceptionDetails `json:"exceptionDetails"`
}

// InspectRequestedEvent is the payload of Runtime.inspectRequested.
type InspectRequestedEvent struct {
	Object RemoteObject    `json:"object"`
	Hints  json.RawMessage `json:"hints,omitempty"`
}
