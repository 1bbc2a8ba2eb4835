package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"

	"github.com/google/go-dap"
	"go.uber.org/zap"

	"github.com/ctagard/cdp-bridge/internal/cdp"
)

// ExecutionContext is one live execution context reported by the target.
type ExecutionContext struct {
	ID        int
	Name      string
	IsDefault bool
}

// Script is the immutable record for one parsed script. A script never
// changes after creation; its Source is shared with every other script
// that resolved to the same URL.
type Script struct {
	ID     string
	URL    string
	Source Source
}

// ScriptWithSourceMapHandler is invoked after a script's source map has
// been resolved into sources.
type ScriptWithSourceMapHandler func(ctx context.Context, script *Script, sources []Source)

// ThreadOptions configure one thread at creation time.
type ThreadOptions struct {
	// Name is the client-facing thread label.
	Name string

	// Parent links the thread into the tree. Nil makes it a root.
	Parent *Thread

	// BaseURL anchors relative source map URL resolution.
	BaseURL string

	// PauseForSourceMaps asks the target to pause before executing scripts
	// that carry a source map, so breakpoints in mapped sources can be set
	// before the script runs.
	PauseForSourceMaps bool

	// ScriptWithSourceMapHandler, if set, runs once per script whose source
	// map resolves.
	ScriptWithSourceMapHandler ScriptWithSourceMapHandler
}

// Thread is the per-target state machine: running/paused state, execution
// contexts, script records and the output queue for one debug target.
// Threads are created through Manager.CreateThread and torn down with
// Dispose.
type Thread struct {
	id   int
	name string
	mgr  *Manager
	sess ProtocolSession
	log  *zap.Logger
	out  *outputQueue

	container SourceContainer
	index     *sourceIndex
	resolver  PathResolver
	catalog   BreakpointCatalog
	renderer  Renderer
	sink      EventSink

	baseURL   *url.URL
	smHandler ScriptWithSourceMapHandler

	ctx    context.Context
	cancel context.CancelFunc

	mu              sync.Mutex
	parent          *Thread
	children        []*Thread
	contexts        map[int]ExecutionContext
	scripts         map[string]*Script
	paused          *PausedDetails
	gatePending     bool
	sourceMapPauses bool
	disposed        bool
	unsubs          []func()
}

func newThread(mgr *Manager, id int, sess ProtocolSession, opts ThreadOptions) *Thread {
	ctx, cancel := context.WithCancel(context.Background())
	t := &Thread{
		id:        id,
		name:      opts.Name,
		mgr:       mgr,
		sess:      sess,
		log:       mgr.log.With(zap.Int("threadID", id)),
		container: mgr.container,
		index:     mgr.index,
		resolver:  mgr.resolver,
		catalog:   mgr.catalog,
		renderer:  mgr.renderer,
		sink:      mgr.sink,
		smHandler: opts.ScriptWithSourceMapHandler,
		ctx:       ctx,
		cancel:    cancel,
		parent:    opts.Parent,
		contexts:  make(map[int]ExecutionContext),
		scripts:   make(map[string]*Script),
	}
	t.out = newOutputQueue(mgr.sink, mgr.clk, mgr.container.SourceMapTimeouts().Output, t.log)
	if opts.BaseURL != "" {
		if base, err := url.Parse(opts.BaseURL); err == nil {
			t.baseURL = base
		} else {
			t.log.Warn("invalid base URL", zap.String("baseURL", opts.BaseURL), zap.Error(err))
		}
	}
	t.sourceMapPauses = opts.PauseForSourceMaps
	return t
}

// ID returns the process-lifetime-unique thread id.
func (t *Thread) ID() int { return t.id }

// Name returns the client-facing label.
func (t *Thread) Name() string { return t.name }

// attach subscribes the event handlers and enables the target domains.
// Called once by the manager before the thread is visible to anyone else.
func (t *Thread) attach(ctx context.Context) error {
	subs := []struct {
		method  string
		handler func(json.RawMessage)
	}{
		{cdp.EventDebuggerPaused, t.onPaused},
		{cdp.EventDebuggerResumed, t.onResumed},
		{cdp.EventDebuggerScriptParsed, t.onScriptParsed},
		{cdp.EventExecutionContextCreated, t.onContextCreated},
		{cdp.EventExecutionContextDestroyed, t.onContextDestroyed},
		{cdp.EventExecutionContextsCleared, t.onContextsCleared},
		{cdp.EventConsoleAPICalled, t.onConsoleAPICalled},
		{cdp.EventExceptionThrown, t.onExceptionThrown},
		{cdp.EventInspectRequested, t.onInspectRequested},
	}
	for _, s := range subs {
		t.unsubs = append(t.unsubs, t.sess.On(s.method, s.handler))
	}

	if err := cdp.EnableRuntime(ctx, t.sess); err != nil {
		return err
	}
	if err := cdp.EnableDebugger(ctx, t.sess); err != nil {
		return err
	}

	t.mu.Lock()
	wantPauses := t.sourceMapPauses
	t.mu.Unlock()
	if wantPauses {
		err := cdp.SetInstrumentationBreakpoint(ctx, t.sess, cdp.InstrumentationScriptWithSourceMap)
		if err != nil {
			// The target rejected the capability; it stays off for the
			// thread's lifetime and everything else keeps working.
			t.mu.Lock()
			t.sourceMapPauses = false
			t.mu.Unlock()
			t.log.Info("instrumentation pauses unavailable", zap.Error(err))
		}
	}
	return nil
}

// SupportsSourceMapPauses reports whether the target accepted the
// instrumentation breakpoint for scripts with source maps.
func (t *Thread) SupportsSourceMapPauses() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sourceMapPauses
}

// Paused returns the current pause details, or nil while running.
func (t *Thread) Paused() *PausedDetails {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.paused
}

// ExecutionContexts lists the live execution contexts.
func (t *Thread) ExecutionContexts() []ExecutionContext {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]ExecutionContext, 0, len(t.contexts))
	for _, c := range t.contexts {
		out = append(out, c)
	}
	return out
}

// Script returns the record for a script id, or nil.
func (t *Thread) Script(scriptID string) *Script {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.scripts[scriptID]
}

// ClaimOutputSlot reserves the next console delivery position. See
// outputQueue for the ordering and timeout contract.
func (t *Thread) ClaimOutputSlot() func(*dap.OutputEventBody) {
	return t.out.Claim()
}

// Pause asks the target to suspend at the next opportunity. The actual
// state transition is driven by the paused event, not by this call.
func (t *Thread) Pause(ctx context.Context) error {
	return cdp.Pause(ctx, t.sess)
}

// Resume lets the target continue. The state transition is driven by the
// resumed event.
func (t *Thread) Resume(ctx context.Context) error {
	return cdp.Resume(ctx, t.sess)
}

// StepInto steps into the next call.
func (t *Thread) StepInto(ctx context.Context) error {
	return cdp.StepInto(ctx, t.sess)
}

// StepOver steps over the next statement.
func (t *Thread) StepOver(ctx context.Context) error {
	return cdp.StepOver(ctx, t.sess)
}

// StepOut runs until the current frame returns.
func (t *Thread) StepOut(ctx context.Context) error {
	return cdp.StepOut(ctx, t.sess)
}

// RestartFrame restarts execution of one paused call frame.
func (t *Thread) RestartFrame(ctx context.Context, callFrameID string) error {
	return cdp.RestartFrame(ctx, t.sess, callFrameID)
}

// ScriptSource fetches the source text of one script.
func (t *Thread) ScriptSource(ctx context.Context, scriptID string) (string, error) {
	return cdp.GetScriptSource(ctx, t.sess, scriptID)
}

func (t *Thread) applyExceptionPolicy(ctx context.Context, policy ExceptionPolicy) error {
	return cdp.SetPauseOnExceptions(ctx, t.sess, string(policy))
}

// applyCustomBreakpoint enables or disables one catalog breakpoint on this
// thread. Unknown ids and targets that reject the trigger are not errors:
// the thread simply never pauses for it.
func (t *Thread) applyCustomBreakpoint(ctx context.Context, id string, enable bool) error {
	if t.catalog == nil {
		return nil
	}
	bp, ok := t.catalog.Lookup(id)
	if !ok {
		t.log.Debug("unknown custom breakpoint id", zap.String("id", id))
		return nil
	}
	if err := bp.Apply(ctx, t.sess, enable); err != nil {
		t.log.Warn("custom breakpoint not applied",
			zap.String("id", id), zap.Bool("enable", enable), zap.Error(err))
	}
	return nil
}

// Dispose tears the thread down: unsubscribes event handlers, removes it
// from the manager (children are spliced into the parent's position),
// releases scripts and emits the thread-exited event. Safe to call more
// than once.
func (t *Thread) Dispose() {
	t.mu.Lock()
	if t.disposed {
		t.mu.Unlock()
		return
	}
	t.disposed = true
	unsubs := t.unsubs
	t.unsubs = nil
	t.mu.Unlock()

	t.cancel()
	for _, unsub := range unsubs {
		unsub()
	}
	t.mgr.removeThread(t)
	t.clearContexts()
	t.sink.ThreadEvent(&dap.ThreadEventBody{Reason: "exited", ThreadId: t.id})
}

func (t *Thread) onPaused(params json.RawMessage) {
	var ev cdp.PausedEvent
	if err := json.Unmarshal(params, &ev); err != nil {
		t.log.Debug("malformed paused event", zap.Error(err))
		return
	}

	if ev.Reason == cdp.PauseReasonInstrumentation {
		var data cdp.InstrumentationPauseData
		if len(ev.Data) > 0 {
			_ = json.Unmarshal(ev.Data, &data)
		}
		t.mu.Lock()
		gate := t.sourceMapPauses && data.SourceMapURL != ""
		if gate {
			t.gatePending = true
		}
		script := t.scripts[data.ScriptID]
		t.mu.Unlock()
		if gate {
			go t.holdForSourceMap(script)
			return
		}
	}

	details := t.pausedDetails(&ev)
	t.mu.Lock()
	t.paused = details
	t.mu.Unlock()

	t.sink.Stopped(&dap.StoppedEventBody{
		Reason:      details.Reason,
		Description: details.Description,
		ThreadId:    t.id,
		Text:        details.Text,
	})
}

// holdForSourceMap services an intercepted instrumentation pause: wait a
// bounded time for the script's source map, run the handler, and resume.
// The pause is never surfaced to the client, and the target is resumed
// exactly once no matter how the wait ends.
func (t *Thread) holdForSourceMap(script *Script) {
	defer func() {
		if err := cdp.Resume(t.ctx, t.sess); err != nil {
			t.log.Debug("resume after source map wait failed", zap.Error(err))
		}
	}()

	if script == nil {
		return
	}
	ctx, cancel := context.WithTimeout(t.ctx, t.container.SourceMapTimeouts().ScriptPaused)
	defer cancel()

	sources, err := t.container.WaitForSourceMapSources(ctx, script.Source)
	if err != nil {
		t.log.Debug("source map wait ended without sources",
			zap.String("url", script.URL), zap.Error(err))
		return
	}
	if t.smHandler != nil {
		t.smHandler(ctx, script, sources)
	}
}

func (t *Thread) onResumed(json.RawMessage) {
	t.mu.Lock()
	t.gatePending = false
	surfaced := t.paused != nil
	t.paused = nil
	t.mu.Unlock()

	// A resume ending an intercepted pause was never announced, so there
	// is nothing to continue from the client's point of view.
	if surfaced {
		t.sink.Continued(&dap.ContinuedEventBody{ThreadId: t.id})
	}
}

func (t *Thread) onScriptParsed(params json.RawMessage) {
	var ev cdp.ScriptParsedEvent
	if err := json.Unmarshal(params, &ev); err != nil {
		t.log.Debug("malformed scriptParsed event", zap.Error(err))
		return
	}

	resolvedURL := t.resolver.ResolveURL(ev.URL)

	sourceMapURL := ""
	if ev.SourceMapURL != "" {
		abs, err := t.resolveSourceMapURL(ev.SourceMapURL)
		if err != nil {
			deliver := t.out.Claim()
			deliver(&dap.OutputEventBody{
				Category: "stderr",
				Output:   fmt.Sprintf("Could not load source map %s: %v\n", ev.SourceMapURL, err),
			})
		} else {
			sourceMapURL = abs
		}
	}

	req := AddSourceRequest{
		URL:          resolvedURL,
		SourceMapURL: sourceMapURL,
		Content: func(ctx context.Context) (string, error) {
			return cdp.GetScriptSource(ctx, t.sess, ev.ScriptID)
		},
	}
	if ev.StartLine > 0 || ev.StartColumn > 0 {
		req.InlineOffset = &cdp.Location{LineNumber: ev.StartLine, ColumnNumber: ev.StartColumn}
	}

	src, err := t.index.acquire(t.ctx, req)
	if err != nil {
		t.log.Warn("source registration failed", zap.String("url", resolvedURL), zap.Error(err))
		return
	}

	script := &Script{ID: ev.ScriptID, URL: resolvedURL, Source: src}
	t.mu.Lock()
	if t.disposed {
		t.mu.Unlock()
		t.index.release(resolvedURL)
		return
	}
	t.scripts[ev.ScriptID] = script
	nativePauses := t.sourceMapPauses
	t.mu.Unlock()

	// Without native instrumentation pauses the map is resolved in the
	// background; disposal cancels the wait.
	if sourceMapURL != "" && !nativePauses && t.smHandler != nil {
		go func() {
			sources, err := t.container.WaitForSourceMapSources(t.ctx, src)
			if err != nil {
				return
			}
			t.smHandler(t.ctx, script, sources)
		}()
	}
}

func (t *Thread) resolveSourceMapURL(raw string) (string, error) {
	ref, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if ref.IsAbs() {
		return raw, nil
	}
	if t.baseURL == nil {
		return "", fmt.Errorf("relative source map URL %q with no base URL", raw)
	}
	return t.baseURL.ResolveReference(ref).String(), nil
}

func (t *Thread) onContextCreated(params json.RawMessage) {
	var ev cdp.ExecutionContextCreatedEvent
	if err := json.Unmarshal(params, &ev); err != nil {
		return
	}
	t.mu.Lock()
	t.contexts[ev.Context.ID] = ExecutionContext{
		ID:        ev.Context.ID,
		Name:      ev.Context.Name,
		IsDefault: defaultFromAuxData(ev.Context.AuxData),
	}
	t.mu.Unlock()
}

func defaultFromAuxData(aux json.RawMessage) bool {
	if len(aux) == 0 {
		return false
	}
	var data struct {
		IsDefault bool `json:"isDefault"`
	}
	if err := json.Unmarshal(aux, &data); err != nil {
		return false
	}
	return data.IsDefault
}

func (t *Thread) onContextDestroyed(params json.RawMessage) {
	var ev cdp.ExecutionContextDestroyedEvent
	if err := json.Unmarshal(params, &ev); err != nil {
		return
	}
	t.mu.Lock()
	delete(t.contexts, ev.ExecutionContextID)
	t.mu.Unlock()
}

func (t *Thread) onContextsCleared(json.RawMessage) {
	t.clearContexts()
}

// clearContexts resets the thread to a fresh-target state: forget contexts,
// release every script, force resumed semantics if a pause was surfaced and
// ask the client to clear its console.
func (t *Thread) clearContexts() {
	t.mu.Lock()
	scripts := t.scripts
	t.scripts = make(map[string]*Script)
	t.contexts = make(map[int]ExecutionContext)
	surfaced := t.paused != nil
	t.paused = nil
	t.gatePending = false
	t.mu.Unlock()

	for _, script := range scripts {
		t.index.release(script.Source.URL())
	}
	if surfaced {
		t.sink.Continued(&dap.ContinuedEventBody{ThreadId: t.id})
	}
	deliver := t.out.Claim()
	deliver(ClearOutput())
}

func (t *Thread) onConsoleAPICalled(params json.RawMessage) {
	var ev cdp.ConsoleAPICalledEvent
	if err := json.Unmarshal(params, &ev); err != nil {
		return
	}
	deliver := t.out.Claim()
	go func() {
		deliver(t.renderer.Console(t.ctx, t.sess, &ev))
	}()
}

func (t *Thread) onExceptionThrown(params json.RawMessage) {
	var ev cdp.ExceptionThrownEvent
	if err := json.Unmarshal(params, &ev); err != nil {
		return
	}
	deliver := t.out.Claim()
	go func() {
		deliver(t.renderer.Exception(t.ctx, t.sess, &ev))
	}()
}

func (t *Thread) onInspectRequested(params json.RawMessage) {
	var ev cdp.InspectRequestedEvent
	if err := json.Unmarshal(params, &ev); err != nil {
		return
	}
	deliver := t.out.Claim()
	go func() {
		deliver(t.renderer.Inspected(t.ctx, t.sess, &ev))
	}()
}
