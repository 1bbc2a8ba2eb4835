// Package types defines the JSON contract of the bridge's control surface.
//
// These types are what MCP tool results are serialized from: session and
// thread listings, pause details, execution context trees, discovered
// targets and catalog entries. Internal packages convert their own richer
// state into these shapes at the boundary.
package types

import "time"

// SessionStatus is the lifecycle state of one attached session.
type SessionStatus string

const (
	SessionStatusConnecting SessionStatus = "connecting"
	SessionStatusAttached   SessionStatus = "attached"
	SessionStatusDetached   SessionStatus = "detached"
)

// SessionInfo describes one session.
type SessionInfo struct {
	SessionID    string        `json:"sessionId"`
	Profile      string        `json:"profile,omitempty"`
	Endpoint     string        `json:"endpoint"`
	Status       SessionStatus `json:"status"`
	PID          int           `json:"pid,omitempty"`
	CreatedAt    time.Time     `json:"createdAt"`
	LastActivity time.Time     `json:"lastActivity"`
	Threads      int           `json:"threads"`
}

// ThreadInfo describes one thread of a session.
type ThreadInfo struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Paused bool   `json:"paused"`
}

// FrameInfo is one call frame of a pause.
type FrameInfo struct {
	CallFrameID  string `json:"callFrameId"`
	FunctionName string `json:"functionName"`
	URL          string `json:"url,omitempty"`
	Line         int    `json:"line"`
	Column       int    `json:"column"`
}

// PauseInfo describes why and where a thread is suspended.
type PauseInfo struct {
	ThreadID    int         `json:"threadId"`
	Reason      string      `json:"reason"`
	Description string      `json:"description"`
	Text        string      `json:"text,omitempty"`
	Exception   string      `json:"exception,omitempty"`
	Frames      []FrameInfo `json:"frames,omitempty"`
}

// ContextInfo describes one execution context.
type ContextInfo struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	IsDefault bool   `json:"isDefault"`
}

// ContextTreeNode is one node of the execution-context forest.
type ContextTreeNode struct {
	ThreadID int               `json:"threadId"`
	Label    string            `json:"label"`
	Context  *ContextInfo      `json:"context,omitempty"`
	Children []ContextTreeNode `json:"children,omitempty"`
}

// TargetInfo is one debuggable target reported by discovery.
type TargetInfo struct {
	ID                   string `json:"id"`
	Type                 string `json:"type"`
	Title                string `json:"title,omitempty"`
	URL                  string `json:"url,omitempty"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

// VersionInfo is the endpoint identity reported by discovery.
type VersionInfo struct {
	Browser              string `json:"browser,omitempty"`
	ProtocolVersion      string `json:"protocolVersion,omitempty"`
	V8Version            string `json:"v8Version,omitempty"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl,omitempty"`
}

// CustomBreakpointInfo is one catalog entry with its enabled state.
type CustomBreakpointInfo struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Group   string `json:"group"`
	Enabled bool   `json:"enabled"`
}

// StepKind selects the stepping granularity.
type StepKind string

const (
	StepInto StepKind = "into"
	StepOver StepKind = "over"
	StepOut  StepKind = "out"
)

// ValidStepKind reports whether k is a known step kind.
func ValidStepKind(k StepKind) bool {
	return k == StepInto || k == StepOver || k == StepOut
}

// Exception policies. They mirror the wire states of
// Debugger.setPauseOnExceptions.
const (
	ExceptionPolicyNone     = "none"
	ExceptionPolicyUncaught = "uncaught"
	ExceptionPolicyAll      = "all"
)
