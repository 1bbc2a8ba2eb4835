// Package render turns raw runtime console and exception events into
// client-facing output bodies.
//
// The renderer is deliberately small: primitive values print verbatim,
// objects print by description. Object preview and paging are a client
// concern and are not attempted here.
package render

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/google/go-dap"
	"go.uber.org/zap"

	"github.com/ctagard/cdp-bridge/internal/bridge"
	"github.com/ctagard/cdp-bridge/internal/cdp"
)

// Renderer is the default bridge.Renderer.
type Renderer struct {
	log *zap.Logger
}

// New builds a renderer.
func New(log *zap.Logger) *Renderer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Renderer{log: log.Named("render")}
}

// Console renders one console API call. A "clear" call becomes the
// clear-console body the output queue knows how to de-duplicate.
func (r *Renderer) Console(_ context.Context, _ bridge.ProtocolSession, ev *cdp.ConsoleAPICalledEvent) *dap.OutputEventBody {
	if ev.Type == "clear" {
		return bridge.ClearOutput()
	}

	parts := make([]string, 0, len(ev.Args))
	for _, arg := range ev.Args {
		parts = append(parts, formatValue(&arg))
	}
	body := &dap.OutputEventBody{
		Category: categoryFor(ev.Type),
		Output:   strings.Join(parts, " ") + "\n",
	}
	if ev.StackTrace != nil && len(ev.StackTrace.CallFrames) > 0 {
		attachLocation(body, ev.StackTrace.CallFrames[0])
	}
	return body
}

// Exception renders one uncaught exception.
func (r *Renderer) Exception(_ context.Context, _ bridge.ProtocolSession, ev *cdp.ExceptionThrownEvent) *dap.OutputEventBody {
	details := ev.ExceptionDetails
	text := details.Text
	if details.Exception != nil && details.Exception.Description != "" {
		text = details.Exception.Description
	}
	if !strings.HasPrefix(text, "Uncaught") {
		text = "Uncaught " + text
	}

	body := &dap.OutputEventBody{
		Category: "stderr",
		Output:   text + "\n",
	}
	if details.URL != "" {
		body.Source = &dap.Source{Name: path.Base(details.URL), Path: details.URL}
		body.Line = details.LineNumber + 1
		body.Column = details.ColumnNumber + 1
	} else if details.StackTrace != nil && len(details.StackTrace.CallFrames) > 0 {
		attachLocation(body, details.StackTrace.CallFrames[0])
	}
	return body
}

// Inspected renders an inspect(obj) request.
func (r *Renderer) Inspected(_ context.Context, _ bridge.ProtocolSession, ev *cdp.InspectRequestedEvent) *dap.OutputEventBody {
	return &dap.OutputEventBody{
		Category: "console",
		Output:   formatValue(&ev.Object) + "\n",
	}
}

func categoryFor(consoleType string) string {
	switch consoleType {
	case "error", "assert":
		return "stderr"
	case "warning":
		return "console"
	default:
		return "stdout"
	}
}

func attachLocation(body *dap.OutputEventBody, frame cdp.RuntimeCallFrame) {
	if frame.URL == "" {
		return
	}
	body.Source = &dap.Source{Name: path.Base(frame.URL), Path: frame.URL}
	body.Line = frame.LineNumber + 1
	body.Column = frame.ColumnNumber + 1
}

// formatValue renders one remote object on a single line.
func formatValue(obj *cdp.RemoteObject) string {
	switch obj.Type {
	case "string":
		if len(obj.Value) > 0 {
			var s string
			if err := json.Unmarshal(obj.Value, &s); err == nil {
				return s
			}
		}
		return obj.Description
	case "undefined":
		return "undefined"
	case "object":
		if obj.Subtype == "null" {
			return "null"
		}
	}
	if obj.Description != "" {
		return obj.Description
	}
	if len(obj.Value) > 0 {
		return string(obj.Value)
	}
	if obj.ClassName != "" {
		return fmt.Sprintf("[object %s]", obj.ClassName)
	}
	return obj.Type
}
