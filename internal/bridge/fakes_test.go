package bridge

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/go-dap"

	"github.com/ctagard/cdp-bridge/internal/cdp"
)

// fakeSession is an in-memory ProtocolSession. Calls are recorded, events
// are dispatched synchronously the way the real connection's dispatch
// goroutine does.
type fakeSession struct {
	mu       sync.Mutex
	calls    []fakeCall
	handlers map[string][]*fakeSub
	nextSub  int

	// respond, if set, decides the outcome of every call.
	respond func(method string, params, result interface{}) error
}

type fakeCall struct {
	Method string
	Params interface{}
}

type fakeSub struct {
	id int
	fn func(json.RawMessage)
}

func newFakeSession() *fakeSession {
	return &fakeSession{handlers: make(map[string][]*fakeSub)}
}

func (s *fakeSession) Call(_ context.Context, method string, params, result interface{}) error {
	s.mu.Lock()
	s.calls = append(s.calls, fakeCall{Method: method, Params: params})
	respond := s.respond
	s.mu.Unlock()
	if respond != nil {
		return respond(method, params, result)
	}
	return nil
}

func (s *fakeSession) On(method string, handler func(json.RawMessage)) func() {
	s.mu.Lock()
	sub := &fakeSub{id: s.nextSub, fn: handler}
	s.nextSub++
	s.handlers[method] = append(s.handlers[method], sub)
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		subs := s.handlers[method]
		for i, candidate := range subs {
			if candidate.id == sub.id {
				s.handlers[method] = append(subs[:i], subs[i+1:]...)
				return
			}
		}
	}
}

// emit delivers an event to every subscribed handler, in order, on the
// calling goroutine.
func (s *fakeSession) emit(t *testing.T, method string, payload interface{}) {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal %s payload: %v", method, err)
	}
	s.mu.Lock()
	subs := append([]*fakeSub(nil), s.handlers[method]...)
	s.mu.Unlock()
	for _, sub := range subs {
		sub.fn(data)
	}
}

// callsTo returns the recorded calls for one method.
func (s *fakeSession) callsTo(method string) []fakeCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []fakeCall
	for _, c := range s.calls {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

type fakeSource struct{ url string }

func (s *fakeSource) URL() string { return s.url }

// fakeContainer is an in-memory SourceContainer that counts additions and
// removals.
type fakeContainer struct {
	mu       sync.Mutex
	sources  map[string]Source
	requests []AddSourceRequest
	removed  []string

	timeouts SourceMapTimeouts

	// waitFn, if set, services WaitForSourceMapSources.
	waitFn func(ctx context.Context, src Source) ([]Source, error)
}

func newFakeContainer() *fakeContainer {
	return &fakeContainer{
		sources: make(map[string]Source),
		timeouts: SourceMapTimeouts{
			ScriptPaused: 200 * time.Millisecond,
			Output:       2 * time.Second,
		},
	}
}

func (c *fakeContainer) SourceByURL(url string) Source {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sources[url]
}

func (c *fakeContainer) AddSource(_ context.Context, req AddSourceRequest) (Source, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	src := &fakeSource{url: req.URL}
	c.sources[req.URL] = src
	c.requests = append(c.requests, req)
	return src, nil
}

func (c *fakeContainer) RemoveSource(src Source) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removed = append(c.removed, src.URL())
	delete(c.sources, src.URL())
}

func (c *fakeContainer) WaitForSourceMapSources(ctx context.Context, src Source) ([]Source, error) {
	if c.waitFn != nil {
		return c.waitFn(ctx, src)
	}
	return nil, nil
}

func (c *fakeContainer) SourceMapTimeouts() SourceMapTimeouts { return c.timeouts }

func (c *fakeContainer) addCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.requests)
}

func (c *fakeContainer) removedURLs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.removed...)
}

func (c *fakeContainer) lastRequest() AddSourceRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.requests) == 0 {
		return AddSourceRequest{}
	}
	return c.requests[len(c.requests)-1]
}

// recordSink captures every emitted client-facing event.
type recordSink struct {
	mu           sync.Mutex
	stopped      []*dap.StoppedEventBody
	continued    []*dap.ContinuedEventBody
	threadEvents []*dap.ThreadEventBody
	outputs      []*dap.OutputEventBody
}

func (s *recordSink) Stopped(body *dap.StoppedEventBody) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = append(s.stopped, body)
}

func (s *recordSink) Continued(body *dap.ContinuedEventBody) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.continued = append(s.continued, body)
}

func (s *recordSink) ThreadEvent(body *dap.ThreadEventBody) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.threadEvents = append(s.threadEvents, body)
}

func (s *recordSink) Output(body *dap.OutputEventBody) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outputs = append(s.outputs, body)
}

func (s *recordSink) stoppedEvents() []*dap.StoppedEventBody {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*dap.StoppedEventBody(nil), s.stopped...)
}

func (s *recordSink) continuedEvents() []*dap.ContinuedEventBody {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*dap.ContinuedEventBody(nil), s.continued...)
}

func (s *recordSink) threadEventBodies() []*dap.ThreadEventBody {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*dap.ThreadEventBody(nil), s.threadEvents...)
}

func (s *recordSink) outputBodies() []*dap.OutputEventBody {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*dap.OutputEventBody(nil), s.outputs...)
}

// fakeRenderer produces deterministic one-line bodies.
type fakeRenderer struct{}

func (fakeRenderer) Console(_ context.Context, _ ProtocolSession, ev *cdp.ConsoleAPICalledEvent) *dap.OutputEventBody {
	if ev.Type == "clear" {
		return ClearOutput()
	}
	out := ev.Type
	if len(ev.Args) > 0 {
		out = ev.Args[0].Description
	}
	return &dap.OutputEventBody{Category: "stdout", Output: out + "\n"}
}

func (fakeRenderer) Exception(_ context.Context, _ ProtocolSession, ev *cdp.ExceptionThrownEvent) *dap.OutputEventBody {
	return &dap.OutputEventBody{Category: "stderr", Output: ev.ExceptionDetails.Text + "\n"}
}

func (fakeRenderer) Inspected(_ context.Context, _ ProtocolSession, ev *cdp.InspectRequestedEvent) *dap.OutputEventBody {
	return &dap.OutputEventBody{Category: "console", Output: ev.Object.Description + "\n"}
}

// fakeBreakpoint records Apply calls.
type fakeBreakpoint struct {
	mu       sync.Mutex
	applied  []bool
	applyErr error
	short    string
	long     string
}

func (b *fakeBreakpoint) Apply(_ context.Context, _ ProtocolSession, enable bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.applied = append(b.applied, enable)
	return b.applyErr
}

func (b *fakeBreakpoint) Details(json.RawMessage) (string, string) {
	return b.short, b.long
}

func (b *fakeBreakpoint) applyCalls() []bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]bool(nil), b.applied...)
}

type fakeCatalog struct {
	breakpoints map[string]CustomBreakpoint
}

func (c *fakeCatalog) Lookup(id string) (CustomBreakpoint, bool) {
	bp, ok := c.breakpoints[id]
	return bp, ok
}

type testEnv struct {
	mgr       *Manager
	sink      *recordSink
	container *fakeContainer
	catalog   *fakeCatalog
}

func newTestEnv(_ *testing.T) *testEnv {
	sink := &recordSink{}
	container := newFakeContainer()
	catalog := &fakeCatalog{breakpoints: make(map[string]CustomBreakpoint)}
	mgr := NewManager(Options{
		Container: container,
		Sink:      sink,
		Catalog:   catalog,
		Renderer:  fakeRenderer{},
	})
	return &testEnv{mgr: mgr, sink: sink, container: container, catalog: catalog}
}
