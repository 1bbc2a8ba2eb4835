package render

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ctagard/cdp-bridge/internal/bridge"
	"github.com/ctagard/cdp-bridge/internal/cdp"
)

func TestConsole_Categories(t *testing.T) {
	r := New(nil)
	cases := []struct {
		consoleType string
		want        string
	}{
		{"log", "stdout"},
		{"info", "stdout"},
		{"debug", "stdout"},
		{"error", "stderr"},
		{"assert", "stderr"},
		{"warning", "console"},
	}
	for _, tc := range cases {
		t.Run(tc.consoleType, func(t *testing.T) {
			body := r.Console(context.Background(), nil, &cdp.ConsoleAPICalledEvent{
				Type: tc.consoleType,
				Args: []cdp.RemoteObject{{Type: "string", Value: json.RawMessage(`"x"`)}},
			})
			assert.Equal(t, tc.want, body.Category)
		})
	}
}

func TestConsole_FormatsArgs(t *testing.T) {
	r := New(nil)
	body := r.Console(context.Background(), nil, &cdp.ConsoleAPICalledEvent{
		Type: "log",
		Args: []cdp.RemoteObject{
			{Type: "string", Value: json.RawMessage(`"count:"`)},
			{Type: "number", Description: "42"},
			{Type: "boolean", Description: "true"},
			{Type: "undefined"},
			{Type: "object", Subtype: "null"},
			{Type: "object", Description: "Array(3)"},
		},
	})
	assert.Equal(t, "count: 42 true undefined null Array(3)\n", body.Output)
}

func TestConsole_ClearBecomesClearBody(t *testing.T) {
	r := New(nil)
	body := r.Console(context.Background(), nil, &cdp.ConsoleAPICalledEvent{Type: "clear"})
	assert.Equal(t, bridge.ClearOutput(), body)
}

func TestConsole_TopFrameLocation(t *testing.T) {
	r := New(nil)
	body := r.Console(context.Background(), nil, &cdp.ConsoleAPICalledEvent{
		Type: "log",
		Args: []cdp.RemoteObject{{Type: "string", Value: json.RawMessage(`"hi"`)}},
		StackTrace: &cdp.StackTrace{CallFrames: []cdp.RuntimeCallFrame{
			{FunctionName: "main", URL: "http://localhost/js/app.js", LineNumber: 9, ColumnNumber: 2},
		}},
	})
	require.NotNil(t, body.Source)
	assert.Equal(t, "app.js", body.Source.Name)
	assert.Equal(t, "http://localhost/js/app.js", body.Source.Path)
	assert.Equal(t, 10, body.Line)
	assert.Equal(t, 3, body.Column)
}

func TestException_UncaughtPrefixAndLocation(t *testing.T) {
	r := New(nil)
	body := r.Exception(context.Background(), nil, &cdp.ExceptionThrownEvent{
		ExceptionDetails: cdp.ExceptionDetails{
			Text:         "Uncaught",
			URL:          "http://localhost/app.js",
			LineNumber:   4,
			ColumnNumber: 0,
			Exception:    &cdp.RemoteObject{Type: "object", Description: "Error: boom"},
		},
	})
	assert.Equal(t, "stderr", body.Category)
	assert.Equal(t, "Uncaught Error: boom\n", body.Output)
	require.NotNil(t, body.Source)
	assert.Equal(t, 5, body.Line)
}

func TestException_AlreadyPrefixed(t *testing.T) {
	r := New(nil)
	body := r.Exception(context.Background(), nil, &cdp.ExceptionThrownEvent{
		ExceptionDetails: cdp.ExceptionDetails{
			Exception: &cdp.RemoteObject{Description: "Uncaught TypeError: nope"},
		},
	})
	assert.Equal(t, "Uncaught TypeError: nope\n", body.Output)
}

func TestInspected(t *testing.T) {
	r := New(nil)
	body := r.Inspected(context.Background(), nil, &cdp.InspectRequestedEvent{
		Object: cdp.RemoteObject{Type: "object", Description: "HTMLDivElement"},
	})
	assert.Equal(t, "console", body.Category)
	assert.Equal(t, "HTMLDivElement\n", body.Output)
}
