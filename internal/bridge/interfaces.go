// Package bridge translates the asynchronous event stream of one CDP target
// into the synchronous, thread-centric model of the Debug Adapter Protocol.
//
// The package owns the thread/session state machine (pause state, execution
// contexts, script-to-source binding), the cross-thread Manager that
// broadcasts configuration to every live thread, and the output-slot queue
// that keeps interleaved asynchronous console traffic in order.
//
// Everything outside that core (source registries, breakpoint catalogs,
// payload rendering, path resolution) is reached through the collaborator
// interfaces in this file.
package bridge

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/go-dap"

	"github.com/ctagard/cdp-bridge/internal/cdp"
)

// ProtocolSession is one thread's view of its instrumentation-protocol
// connection. *cdp.Conn implements it.
type ProtocolSession interface {
	cdp.Caller

	// On subscribes to an event method and returns an unsubscribe function.
	On(method string, handler func(params json.RawMessage)) func()
}

// Source is a de-duplicated, URL-keyed content object shared by all scripts
// with the same resolved URL. It is owned by the external source registry;
// the bridge only tracks which scripts still reference it.
type Source interface {
	URL() string
}

// AddSourceRequest describes a source to be created in the registry.
type AddSourceRequest struct {
	URL string

	// Content fetches the script text on demand; it is never called eagerly.
	Content func(ctx context.Context) (string, error)

	// SourceMapURL is the absolute source map location, if one was resolved.
	SourceMapURL string

	// InlineOffset is the position of an inline script within its document.
	InlineOffset *cdp.Location
}

// SourceMapTimeouts are the waiting budgets the registry is configured with.
type SourceMapTimeouts struct {
	// ScriptPaused bounds a source-map wait while the target is held paused.
	ScriptPaused time.Duration

	// Output bounds an output slot whose payload never arrives.
	Output time.Duration
}

// SourceContainer is the external source registry.
type SourceContainer interface {
	// SourceByURL returns the existing source for url, or nil.
	SourceByURL(url string) Source

	// AddSource creates and registers a new source.
	AddSource(ctx context.Context, req AddSourceRequest) (Source, error)

	// RemoveSource retires a source that no script references anymore.
	RemoveSource(src Source)

	// WaitForSourceMapSources blocks until the source's map has been
	// resolved into sources, the source has no map, or ctx ends. An empty
	// result is valid.
	WaitForSourceMapSources(ctx context.Context, src Source) ([]Source, error)

	// SourceMapTimeouts reports the configured waiting budgets.
	SourceMapTimeouts() SourceMapTimeouts
}

// PathResolver maps a raw script URL reported by the target to a canonical
// URL used for source de-duplication.
type PathResolver interface {
	ResolveURL(rawURL string) string
}

// IdentityResolver is the PathResolver that keeps URLs as reported.
type IdentityResolver struct{}

func (IdentityResolver) ResolveURL(rawURL string) string { return rawURL }

// CustomBreakpoint is one named capability-specific trigger from the
// external catalog.
type CustomBreakpoint interface {
	// Apply enables or disables the trigger on one session.
	Apply(ctx context.Context, sess ProtocolSession, enable bool) error

	// Details renders the short/long description pair for a pause carrying
	// this breakpoint's raw data.
	Details(data json.RawMessage) (short, long string)
}

// BreakpointCatalog looks custom breakpoints up by id. Unknown ids are
// simply absent; callers fall back to generic behavior.
type BreakpointCatalog interface {
	Lookup(id string) (CustomBreakpoint, bool)
}

// Renderer produces client-facing output payloads from raw protocol events.
// Rendering may involve round trips to the target and runs at its own pace;
// the output-slot queue keeps delivery ordered regardless.
type Renderer interface {
	Console(ctx context.Context, sess ProtocolSession, ev *cdp.ConsoleAPICalledEvent) *dap.OutputEventBody
	Exception(ctx context.Context, sess ProtocolSession, ev *cdp.ExceptionThrownEvent) *dap.OutputEventBody
	Inspected(ctx context.Context, sess ProtocolSession, ev *cdp.InspectRequestedEvent) *dap.OutputEventBody
}

// EventSink receives the client-facing debug-protocol events the bridge
// emits.
type EventSink interface {
	Stopped(body *dap.StoppedEventBody)
	Continued(body *dap.ContinuedEventBody)
	ThreadEvent(body *dap.ThreadEventBody)
	Output(body *dap.OutputEventBody)
}
