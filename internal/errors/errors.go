// Package errors provides structured error types for the CDP bridge.
// Errors carry a machine-readable code, a hint for the caller, and the
// underlying cause, so the MCP surface can return actionable failures.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ErrorCode represents a category of error for programmatic handling
type ErrorCode string

const (
	// Session errors
	CodeSessionNotFound     ErrorCode = "SESSION_NOT_FOUND"
	CodeSessionLimitReached ErrorCode = "SESSION_LIMIT_REACHED"
	CodeThreadNotFound      ErrorCode = "THREAD_NOT_FOUND"
	CodeNotPaused           ErrorCode = "NOT_PAUSED"

	// Transport and protocol errors
	CodeConnectFailed    ErrorCode = "CONNECT_FAILED"
	CodeConnectionClosed ErrorCode = "CONNECTION_CLOSED"
	CodeCallTimeout      ErrorCode = "CALL_TIMEOUT"
	CodeTargetError      ErrorCode = "TARGET_ERROR"

	// Capability errors
	CodeUnsupported      ErrorCode = "UNSUPPORTED_CAPABILITY"
	CodePermissionDenied ErrorCode = "PERMISSION_DENIED"

	// Discovery and launch errors
	CodeDiscoveryFailed ErrorCode = "DISCOVERY_FAILED"
	CodeTargetNotFound  ErrorCode = "TARGET_NOT_FOUND"
	CodeLaunchFailed    ErrorCode = "LAUNCH_FAILED"

	// Parameter errors
	CodeMissingParameter ErrorCode = "MISSING_PARAMETER"
	CodeInvalidParameter ErrorCode = "INVALID_PARAMETER"

	// Profile errors
	CodeProfileNotFound ErrorCode = "PROFILE_NOT_FOUND"
	CodeProfileInvalid  ErrorCode = "PROFILE_INVALID"
	CodeMissingInputs   ErrorCode = "MISSING_INPUTS"
)

// BridgeError is a structured error type that includes helpful information
// for the caller to understand what went wrong and how to fix it.
type BridgeError struct {
	// Code is a machine-readable error category
	Code ErrorCode `json:"code"`

	// Message is a human-readable description of what went wrong
	Message string `json:"message"`

	// Hint provides actionable guidance on how to fix the error
	Hint string `json:"hint,omitempty"`

	// Details contains additional context (e.g., the invalid value, expected format)
	Details map[string]interface{} `json:"details,omitempty"`

	// Cause is the underlying error, if any
	Cause error `json:"-"`
}

// Error implements the error interface
func (e *BridgeError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Message)

	if e.Hint != "" {
		sb.WriteString(" | Hint: ")
		sb.WriteString(e.Hint)
	}

	return sb.String()
}

// Unwrap returns the underlying error for error chaining
func (e *BridgeError) Unwrap() error {
	return e.Cause
}

// WithDetails adds details to the error
func (e *BridgeError) WithDetails(key string, value interface{}) *BridgeError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithCause sets the underlying cause
func (e *BridgeError) WithCause(err error) *BridgeError {
	e.Cause = err
	return e
}

// HasCode reports whether err is a BridgeError carrying the given code.
func HasCode(err error, code ErrorCode) bool {
	var be *BridgeError
	return stderrors.As(err, &be) && be.Code == code
}

// --- Session Errors ---

// SessionNotFound creates an error for when a session ID doesn't exist
func SessionNotFound(sessionID string) *BridgeError {
	return &BridgeError{
		Code:    CodeSessionNotFound,
		Message: fmt.Sprintf("session '%s' not found", sessionID),
		Hint:    "Use cdp_sessions to see active sessions, or cdp_attach to create a new one.",
		Details: map[string]interface{}{
			"sessionId": sessionID,
		},
	}
}

// SessionLimitReached creates an error when max sessions is reached
func SessionLimitReached(maxSessions int) *BridgeError {
	return &BridgeError{
		Code:    CodeSessionLimitReached,
		Message: fmt.Sprintf("maximum number of sessions (%d) reached", maxSessions),
		Hint:    "Use cdp_detach to end an existing session before attaching a new one.",
		Details: map[string]interface{}{
			"maxSessions": maxSessions,
		},
	}
}

// ThreadNotFound creates an error for an unknown thread id within a session
func ThreadNotFound(threadID int) *BridgeError {
	return &BridgeError{
		Code:    CodeThreadNotFound,
		Message: fmt.Sprintf("thread %d not found", threadID),
		Hint:    "Use cdp_threads to list the live threads of this session.",
		Details: map[string]interface{}{
			"threadId": threadID,
		},
	}
}

// NotPaused creates an error for pause-state operations on a running thread
func NotPaused(threadID int) *BridgeError {
	return &BridgeError{
		Code:    CodeNotPaused,
		Message: fmt.Sprintf("thread %d is not paused", threadID),
		Hint:    "Use cdp_pause first, or wait for the target to hit a breakpoint.",
		Details: map[string]interface{}{
			"threadId": threadID,
		},
	}
}

// --- Transport and protocol errors ---

// ConnectFailed creates an error for a transport connect that was retried
// until cancellation and never succeeded.
func ConnectFailed(endpoint string, err error) *BridgeError {
	return &BridgeError{
		Code:    CodeConnectFailed,
		Message: fmt.Sprintf("failed to connect to %s: %v", endpoint, err),
		Hint:    "Check that the target is running with an open inspector endpoint (e.g. node --inspect, chrome --remote-debugging-port).",
		Cause:   err,
		Details: map[string]interface{}{
			"endpoint": endpoint,
		},
	}
}

// ConnectionClosed creates an error for calls issued on a closed connection
func ConnectionClosed() *BridgeError {
	return &BridgeError{
		Code:    CodeConnectionClosed,
		Message: "connection to the target is closed",
		Hint:    "The target disconnected. Attach a new session with cdp_attach.",
	}
}

// CallTimeout creates an error for protocol calls that did not complete in time
func CallTimeout(method string, timeout time.Duration) *BridgeError {
	return &BridgeError{
		Code:    CodeCallTimeout,
		Message: fmt.Sprintf("%s timed out after %s", method, timeout),
		Hint:    "The target did not answer. It may be paused at a deeper level or unresponsive.",
		Details: map[string]interface{}{
			"method":  method,
			"timeout": timeout.String(),
		},
	}
}

// TargetError creates an error from a protocol-level error response
func TargetError(method string, code int, message string) *BridgeError {
	return &BridgeError{
		Code:    CodeTargetError,
		Message: fmt.Sprintf("%s failed: %s (code %d)", method, message, code),
		Details: map[string]interface{}{
			"method":     method,
			"remoteCode": code,
		},
	}
}

// --- Capability errors ---

// Unsupported creates an error for an optional capability the target rejected.
// These are never fatal; callers record the capability as unavailable and move on.
func Unsupported(capability string, err error) *BridgeError {
	return &BridgeError{
		Code:    CodeUnsupported,
		Message: fmt.Sprintf("target does not support %s", capability),
		Cause:   err,
		Details: map[string]interface{}{
			"capability": capability,
		},
	}
}

// PermissionDenied creates an error for operations blocked by the server mode
func PermissionDenied(operation, mode string) *BridgeError {
	return &BridgeError{
		Code:    CodePermissionDenied,
		Message: fmt.Sprintf("%s is not allowed in current server mode", operation),
		Hint:    fmt.Sprintf("This operation is not available in '%s' mode. Ask the administrator to run the bridge in 'full' mode.", mode),
		Details: map[string]interface{}{
			"operation": operation,
			"mode":      mode,
		},
	}
}

// --- Discovery and launch errors ---

// DiscoveryFailed creates an error for a failed /json/list query
func DiscoveryFailed(endpoint string, err error) *BridgeError {
	return &BridgeError{
		Code:    CodeDiscoveryFailed,
		Message: fmt.Sprintf("failed to discover targets at %s: %v", endpoint, err),
		Hint:    "Check that the address points at an inspector HTTP endpoint (host:port serving /json/list).",
		Cause:   err,
		Details: map[string]interface{}{
			"endpoint": endpoint,
		},
	}
}

// TargetNotFound creates an error when no discovered target matches the selector
func TargetNotFound(selector string, available []string) *BridgeError {
	return &BridgeError{
		Code:    CodeTargetNotFound,
		Message: fmt.Sprintf("no debuggable target matches %q", selector),
		Hint:    "Use cdp_discover to list the available targets and their URLs.",
		Details: map[string]interface{}{
			"selector":  selector,
			"available": available,
		},
	}
}

// LaunchFailed creates an error when spawning a runtime fails
func LaunchFailed(profile string, err error) *BridgeError {
	return &BridgeError{
		Code:    CodeLaunchFailed,
		Message: fmt.Sprintf("failed to launch profile '%s': %v", profile, err),
		Hint:    "Check that the runtime executable is installed and the profile's program path exists.",
		Cause:   err,
		Details: map[string]interface{}{
			"profile": profile,
		},
	}
}

// --- Parameter errors ---

// MissingParameter creates an error for missing required parameters
func MissingParameter(paramName, description string) *BridgeError {
	return &BridgeError{
		Code:    CodeMissingParameter,
		Message: fmt.Sprintf("required parameter '%s' is missing", paramName),
		Hint:    description,
		Details: map[string]interface{}{
			"parameter": paramName,
		},
	}
}

// InvalidParameter creates an error for invalid parameter values
func InvalidParameter(paramName string, value interface{}, expected string) *BridgeError {
	return &BridgeError{
		Code:    CodeInvalidParameter,
		Message: fmt.Sprintf("invalid value for parameter '%s': %v", paramName, value),
		Hint:    fmt.Sprintf("Expected: %s", expected),
		Details: map[string]interface{}{
			"parameter": paramName,
			"value":     value,
			"expected":  expected,
		},
	}
}

// --- Profile errors ---

// ProfileNotFound creates an error for a missing target profile
func ProfileNotFound(name string, available []string) *BridgeError {
	var hint string
	if len(available) > 0 {
		hint = fmt.Sprintf("Available profiles: %s", strings.Join(available, ", "))
	} else {
		hint = "No profiles found. Create a cdp-bridge-targets.json file first."
	}

	return &BridgeError{
		Code:    CodeProfileNotFound,
		Message: fmt.Sprintf("profile '%s' not found", name),
		Hint:    hint,
		Details: map[string]interface{}{
			"profile":   name,
			"available": available,
		},
	}
}

// ProfileInvalid creates an error for an invalid target profile
func ProfileInvalid(name, reason string) *BridgeError {
	return &BridgeError{
		Code:    CodeProfileInvalid,
		Message: fmt.Sprintf("profile '%s' is invalid: %s", name, reason),
		Hint:    "Check the cdp-bridge-targets.json file for syntax errors and ensure all required fields are present.",
		Details: map[string]interface{}{
			"profile": name,
			"reason":  reason,
		},
	}
}

// MissingInputs creates an error for unresolved ${input:} variables
func MissingInputs(inputs []string) *BridgeError {
	return &BridgeError{
		Code:    CodeMissingInputs,
		Message: fmt.Sprintf("missing required input values: %s", strings.Join(inputs, ", ")),
		Hint:    "Provide the missing values via the inputValues parameter as a JSON object, e.g., {\"inputName\": \"value\"}",
		Details: map[string]interface{}{
			"missingInputs": inputs,
		},
	}
}

// --- Helper for wrapping generic errors ---

// Wrap wraps a generic error with context
func Wrap(code ErrorCode, message string, hint string, err error) *BridgeError {
	return &BridgeError{
		Code:    code,
		Message: message,
		Hint:    hint,
		Cause:   err,
	}
}

// FromError creates a BridgeError from a generic error, preserving any existing structure
func FromError(err error) *BridgeError {
	var be *BridgeError
	if stderrors.As(err, &be) {
		return be
	}
	return &BridgeError{
		Code:    "UNKNOWN_ERROR",
		Message: err.Error(),
		Cause:   err,
	}
}
