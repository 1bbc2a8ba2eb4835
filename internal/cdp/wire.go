// Package cdp implements a client session for the Chrome DevTools Protocol
// family of instrumentation targets (Node.js inspector, Chromium, Deno).
//
// CDP is a JSON message protocol over an ordered, reliable byte stream. This
// package provides:
//   - Conn: request/response correlation and sequential event dispatch over
//     a transport.Transport
//   - Typed event payloads for the Debugger and Runtime domains
//   - Command wrappers for the calls the bridge issues
//
// The protocol is described at: https://chromedevtools.github.io/devtools-protocol/
package cdp

import "encoding/json"

// envelope is the union of the three CDP message shapes: request, response
// and event. Responses carry an id, events carry a method.
type envelope struct {
	ID     int64           `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *wireError      `json:"error,omitempty"`
}

type request struct {
	ID     int64       `json:"id"`
	Method string      `json:"method"`
	Params interface{} `json:"params,omitempty"`
}

type wireError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    string `json:"data,omitempty"`
}

// Location identifies a position inside one script.
type Location struct {
	ScriptID     string `json:"scriptId"`
	LineNumber   int    `json:"lineNumber"`
	ColumnNumber int    `json:"columnNumber,omitempty"`
}

// RemoteObject mirrors Runtime.RemoteObject for the fields the bridge reads.
type RemoteObject struct {
	Type        string          `json:"type"`
	Subtype     string          `json:"subtype,omitempty"`
	ClassName   string          `json:"className,omitempty"`
	Value       json.RawMessage `json:"value,omitempty"`
	Description string          `json:"description,omitempty"`
	ObjectID    string          `json:"objectId,omitempty"`
}

// CallFrame is one Debugger call frame of a pause.
type CallFrame struct {
	CallFrameID  string   `json:"callFrameId"`
	FunctionName string   `json:"functionName"`
	Location     Location `json:"location"`
	URL          string   `json:"url"`
}

// RuntimeCallFrame is one frame of a Runtime.StackTrace.
type RuntimeCallFrame struct {
	FunctionName string `json:"functionName"`
	ScriptID     string `json:"scriptId"`
	URL          string `json:"url"`
	LineNumber   int    `json:"lineNumber"`
	ColumnNumber int    `json:"columnNumber"`
}

// StackTrace mirrors Runtime.StackTrace.
type StackTrace struct {
	Description string             `json:"description,omitempty"`
	CallFrames  []RuntimeCallFrame `json:"callFrames"`
	Parent      *StackTrace        `json:"parent,omitempty"`
}

// ExceptionDetails mirrors Runtime.ExceptionDetails.
type ExceptionDetails struct {
	ExceptionID  int           `json:"exceptionId"`
	Text         string        `json:"text"`
	LineNumber   int           `json:"lineNumber"`
	ColumnNumber int           `json:"columnNumber"`
	ScriptID     string        `json:"scriptId,omitempty"`
	URL          string        `json:"url,omitempty"`
	StackTrace   *StackTrace   `json:"stackTrace,omitempty"`
	Exception    *RemoteObject `json:"exception,omitempty"`
}

// ExecutionContextDescription mirrors Runtime.ExecutionContextDescription.
type ExecutionContextDescription struct {
	ID       int             `json:"id"`
	Origin   string          `json:"origin,omitempty"`
	Name     string          `json:"name,omitempty"`
	UniqueID string          `json:"uniqueId,omitempty"`
	AuxData  json.RawMessage `json:"auxData,omitempty"`
}
