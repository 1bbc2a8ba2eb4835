// Package catalog provides the default custom-breakpoint catalog: named
// event-listener and instrumentation triggers a client can enable by id.
//
// Ids follow the "listener:<event>" and "instrumentation:<name>" convention.
// Unknown ids are simply absent from the catalog; callers fall back to
// generic behavior.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/ctagard/cdp-bridge/internal/bridge"
	"github.com/ctagard/cdp-bridge/internal/cdp"
)

// Breakpoint is one catalog entry. It implements bridge.CustomBreakpoint.
type Breakpoint struct {
	id    string
	title string
	group string

	// eventName is the DOMDebugger event or instrumentation name on the wire.
	eventName       string
	instrumentation bool
}

// ID returns the catalog id.
func (b *Breakpoint) ID() string { return b.id }

// Title returns the human-readable name.
func (b *Breakpoint) Title() string { return b.title }

// Group returns the catalog group the entry belongs to.
func (b *Breakpoint) Group() string { return b.group }

// Apply enables or disables the trigger on one session.
func (b *Breakpoint) Apply(ctx context.Context, sess bridge.ProtocolSession, enable bool) error {
	var method string
	switch {
	case b.instrumentation && enable:
		method = "DOMDebugger.setInstrumentationBreakpoint"
	case b.instrumentation:
		method = "DOMDebugger.removeInstrumentationBreakpoint"
	case enable:
		method = "DOMDebugger.setEventListenerBreakpoint"
	default:
		method = "DOMDebugger.removeEventListenerBreakpoint"
	}
	params := struct {
		EventName string `json:"eventName"`
	}{EventName: b.eventName}
	return sess.Call(ctx, method, params, nil)
}

// Details renders the short/long description pair for a pause carrying this
// breakpoint's raw data. A target name in the payload is included when
// present.
func (b *Breakpoint) Details(data json.RawMessage) (short, long string) {
	short = b.title
	long = fmt.Sprintf("Paused on %s", b.title)
	if b.instrumentation || len(data) == 0 {
		return short, long
	}
	var payload cdp.EventListenerPauseData
	if err := json.Unmarshal(data, &payload); err != nil {
		return short, long
	}
	if payload.TargetName != "" {
		long = fmt.Sprintf("Paused on %s.%s", payload.TargetName, b.eventName)
	}
	return short, long
}

// Info is a listing entry for control surfaces.
type Info struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Group string `json:"group"`
}

// Catalog is an id-keyed set of breakpoints. It implements
// bridge.BreakpointCatalog.
type Catalog struct {
	byID map[string]*Breakpoint
}

// Lookup returns the breakpoint for id.
func (c *Catalog) Lookup(id string) (bridge.CustomBreakpoint, bool) {
	bp, ok := c.byID[id]
	if !ok {
		return nil, false
	}
	return bp, ok
}

// Infos lists the catalog entries sorted by group, then id.
func (c *Catalog) Infos() []Info {
	out := make([]Info, 0, len(c.byID))
	for _, bp := range c.byID {
		out = append(out, Info{ID: bp.id, Title: bp.title, Group: bp.group})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Group != out[j].Group {
			return out[i].Group < out[j].Group
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func listener(group string, events ...string) []*Breakpoint {
	bps := make([]*Breakpoint, 0, len(events))
	for _, ev := range events {
		bps = append(bps, &Breakpoint{
			id:        "listener:" + ev,
			title:     ev,
			group:     group,
			eventName: ev,
		})
	}
	return bps
}

func instrumentation(group string, names ...string) []*Breakpoint {
	bps := make([]*Breakpoint, 0, len(names))
	for _, name := range names {
		bps = append(bps, &Breakpoint{
			id:              "instrumentation:" + name,
			title:           name,
			group:           group,
			eventName:       name,
			instrumentation: true,
		})
	}
	return bps
}

// Default builds the standard catalog of DOM event and instrumentation
// breakpoints.
func Default() *Catalog {
	var all []*Breakpoint
	all = append(all, listener("mouse",
		"click", "dblclick", "mousedown", "mouseup", "mouseover", "mouseout",
		"mousemove", "wheel", "contextmenu")...)
	all = append(all, listener("keyboard", "keydown", "keyup", "keypress", "input")...)
	all = append(all, listener("control",
		"resize", "scroll", "focus", "blur", "select", "change", "submit", "reset")...)
	all = append(all, listener("load", "load", "unload", "beforeunload", "abort", "error")...)
	all = append(all, listener("clipboard", "copy", "cut", "paste")...)
	all = append(all, listener("drag", "drag", "dragstart", "dragend", "drop")...)
	all = append(all, instrumentation("timer",
		"setTimeout", "clearTimeout", "setInterval", "clearInterval",
		"setTimeout.callback", "setInterval.callback")...)
	all = append(all, instrumentation("animation",
		"requestAnimationFrame", "cancelAnimationFrame", "requestAnimationFrame.callback")...)

	c := &Catalog{byID: make(map[string]*Breakpoint, len(all))}
	for _, bp := range all {
		c.byID[bp.id] = bp
	}
	return c
}

// ParseID splits a catalog id into its kind and name parts.
func ParseID(id string) (kind, name string, ok bool) {
	kind, name, ok = strings.Cut(id, ":")
	if !ok || name == "" {
		return "", "", false
	}
	return kind, name, true
}
