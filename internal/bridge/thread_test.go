package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ctagard/cdp-bridge/internal/cdp"
)

func TestThread_ExceptionPause(t *testing.T) {
	env := newTestEnv(t)
	sess := newFakeSession()
	thread, err := env.mgr.CreateThread(context.Background(), sess, ThreadOptions{Name: "main"})
	require.NoError(t, err)

	sess.emit(t, cdp.EventDebuggerPaused, cdp.PausedEvent{
		Reason: cdp.PauseReasonException,
		Data:   json.RawMessage(`{"type":"object","className":"Error","description":"Error: boom"}`),
		CallFrames: []cdp.CallFrame{
			{CallFrameID: "0", FunctionName: "explode", URL: "http://localhost/app.js"},
		},
	})

	stopped := env.sink.stoppedEvents()
	require.Len(t, stopped, 1)
	assert.Equal(t, "exception", stopped[0].Reason)
	assert.Equal(t, "Paused on exception", stopped[0].Description)
	assert.Equal(t, thread.ID(), stopped[0].ThreadId)

	details := thread.Paused()
	require.NotNil(t, details)
	require.NotNil(t, details.Exception)
	assert.Equal(t, "Error: boom", details.Exception.Description)
	assert.Equal(t, 1, details.Variables.Len())
	require.Len(t, details.CallFrames, 1)
	assert.Equal(t, "explode", details.CallFrames[0].FunctionName)

	sess.emit(t, cdp.EventDebuggerResumed, struct{}{})
	require.Len(t, env.sink.continuedEvents(), 1)
	assert.Nil(t, thread.Paused())
}

func TestThread_EventListenerPauseUnknownID(t *testing.T) {
	env := newTestEnv(t)
	sess := newFakeSession()
	_, err := env.mgr.CreateThread(context.Background(), sess, ThreadOptions{Name: "main"})
	require.NoError(t, err)

	sess.emit(t, cdp.EventDebuggerPaused, cdp.PausedEvent{
		Reason: cdp.PauseReasonEventListener,
		Data:   json.RawMessage(`{"eventName":"listener:nosuchevent"}`),
	})

	stopped := env.sink.stoppedEvents()
	require.Len(t, stopped, 1)
	assert.Equal(t, "function breakpoint", stopped[0].Reason)
	assert.Equal(t, "Paused on event listener breakpoint", stopped[0].Description)
	assert.Equal(t, "Event listener breakpoint", stopped[0].Text)
}

func TestThread_EventListenerPauseCatalogDetails(t *testing.T) {
	env := newTestEnv(t)
	env.catalog.breakpoints["listener:click"] = &fakeBreakpoint{
		short: "click", long: "Paused on click event",
	}
	sess := newFakeSession()
	_, err := env.mgr.CreateThread(context.Background(), sess, ThreadOptions{Name: "main"})
	require.NoError(t, err)

	sess.emit(t, cdp.EventDebuggerPaused, cdp.PausedEvent{
		Reason: cdp.PauseReasonEventListener,
		Data:   json.RawMessage(`{"eventName":"listener:click"}`),
	})

	stopped := env.sink.stoppedEvents()
	require.Len(t, stopped, 1)
	assert.Equal(t, "Paused on click event", stopped[0].Description)
	assert.Equal(t, "click", stopped[0].Text)
}

func TestThread_PauseReasonDefaults(t *testing.T) {
	cases := []struct {
		name       string
		event      cdp.PausedEvent
		wantReason string
		wantDesc   string
	}{
		{
			name:       "breakpoint hit",
			event:      cdp.PausedEvent{Reason: cdp.PauseReasonOther, HitBreakpoints: []string{"bp1"}},
			wantReason: "breakpoint",
			wantDesc:   "Paused on breakpoint",
		},
		{
			name:       "plain step",
			event:      cdp.PausedEvent{Reason: cdp.PauseReasonOther},
			wantReason: "step",
			wantDesc:   "Paused",
		},
		{
			name:       "debug command",
			event:      cdp.PausedEvent{Reason: cdp.PauseReasonDebugCommand},
			wantReason: "pause",
			wantDesc:   "Paused on debug() call",
		},
		{
			name:       "out of memory",
			event:      cdp.PausedEvent{Reason: cdp.PauseReasonOOM},
			wantReason: "exception",
			wantDesc:   "Paused before Out Of Memory exception",
		},
		{
			name:       "xhr",
			event:      cdp.PausedEvent{Reason: cdp.PauseReasonXHR},
			wantReason: "data breakpoint",
			wantDesc:   "Paused on XMLHttpRequest or fetch",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t)
			sess := newFakeSession()
			_, err := env.mgr.CreateThread(context.Background(), sess, ThreadOptions{Name: "main"})
			require.NoError(t, err)

			sess.emit(t, cdp.EventDebuggerPaused, tc.event)
			stopped := env.sink.stoppedEvents()
			require.Len(t, stopped, 1)
			assert.Equal(t, tc.wantReason, stopped[0].Reason)
			assert.Equal(t, tc.wantDesc, stopped[0].Description)
		})
	}
}

func TestThread_GatedInstrumentationPause(t *testing.T) {
	env := newTestEnv(t)
	mapped := &fakeSource{url: "http://localhost/app.ts"}
	env.container.waitFn = func(ctx context.Context, src Source) ([]Source, error) {
		return []Source{mapped}, nil
	}

	var handlerMu sync.Mutex
	var handled []*Script
	sess := newFakeSession()
	_, err := env.mgr.CreateThread(context.Background(), sess, ThreadOptions{
		Name:               "main",
		BaseURL:            "http://localhost/",
		PauseForSourceMaps: true,
		ScriptWithSourceMapHandler: func(_ context.Context, script *Script, sources []Source) {
			handlerMu.Lock()
			handled = append(handled, script)
			handlerMu.Unlock()
		},
	})
	require.NoError(t, err)
	require.Len(t, sess.callsTo("Debugger.setInstrumentationBreakpoint"), 1)

	sess.emit(t, cdp.EventDebuggerScriptParsed, cdp.ScriptParsedEvent{
		ScriptID: "7", URL: "http://localhost/app.js", SourceMapURL: "app.js.map",
	})
	sess.emit(t, cdp.EventDebuggerPaused, cdp.PausedEvent{
		Reason: cdp.PauseReasonInstrumentation,
		Data:   json.RawMessage(`{"scriptId":"7","url":"http://localhost/app.js","sourceMapURL":"app.js.map"}`),
	})

	// The pause is serviced in the background: target resumed exactly once,
	// nothing surfaced to the client.
	require.Eventually(t, func() bool {
		return len(sess.callsTo("Debugger.resume")) == 1
	}, time.Second, 5*time.Millisecond)

	assert.Empty(t, env.sink.stoppedEvents())

	sess.emit(t, cdp.EventDebuggerResumed, struct{}{})
	assert.Empty(t, env.sink.continuedEvents())

	handlerMu.Lock()
	defer handlerMu.Unlock()
	require.Len(t, handled, 1)
	assert.Equal(t, "7", handled[0].ID)
}

func TestThread_GatedPauseResumesOnTimeout(t *testing.T) {
	env := newTestEnv(t)
	env.container.timeouts.ScriptPaused = 10 * time.Millisecond
	env.container.waitFn = func(ctx context.Context, src Source) ([]Source, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	sess := newFakeSession()
	_, err := env.mgr.CreateThread(context.Background(), sess, ThreadOptions{
		Name:               "main",
		BaseURL:            "http://localhost/",
		PauseForSourceMaps: true,
		ScriptWithSourceMapHandler: func(context.Context, *Script, []Source) {
			t.Error("handler must not run when the wait times out")
		},
	})
	require.NoError(t, err)

	sess.emit(t, cdp.EventDebuggerScriptParsed, cdp.ScriptParsedEvent{
		ScriptID: "7", URL: "http://localhost/app.js", SourceMapURL: "app.js.map",
	})
	sess.emit(t, cdp.EventDebuggerPaused, cdp.PausedEvent{
		Reason: cdp.PauseReasonInstrumentation,
		Data:   json.RawMessage(`{"scriptId":"7","sourceMapURL":"app.js.map"}`),
	})

	require.Eventually(t, func() bool {
		return len(sess.callsTo("Debugger.resume")) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Empty(t, env.sink.stoppedEvents())
}

func TestThread_InstrumentationCapabilityDegrades(t *testing.T) {
	env := newTestEnv(t)
	mapped := &fakeSource{url: "http://localhost/app.ts"}
	env.container.waitFn = func(ctx context.Context, src Source) ([]Source, error) {
		return []Source{mapped}, nil
	}

	sess := newFakeSession()
	sess.respond = func(method string, _, _ interface{}) error {
		if method == "Debugger.setInstrumentationBreakpoint" {
			return errors.New("not supported")
		}
		return nil
	}

	var handlerMu sync.Mutex
	handled := 0
	thread, err := env.mgr.CreateThread(context.Background(), sess, ThreadOptions{
		Name:               "main",
		BaseURL:            "http://localhost/",
		PauseForSourceMaps: true,
		ScriptWithSourceMapHandler: func(context.Context, *Script, []Source) {
			handlerMu.Lock()
			handled++
			handlerMu.Unlock()
		},
	})
	require.NoError(t, err)
	assert.False(t, thread.SupportsSourceMapPauses())

	// Without the native pause the map is resolved in the background.
	sess.emit(t, cdp.EventDebuggerScriptParsed, cdp.ScriptParsedEvent{
		ScriptID: "7", URL: "http://localhost/app.js", SourceMapURL: "app.js.map",
	})
	require.Eventually(t, func() bool {
		handlerMu.Lock()
		defer handlerMu.Unlock()
		return handled == 1
	}, time.Second, 5*time.Millisecond)

	// An instrumentation pause arriving anyway surfaces as a normal stop.
	sess.emit(t, cdp.EventDebuggerPaused, cdp.PausedEvent{
		Reason: cdp.PauseReasonInstrumentation,
		Data:   json.RawMessage(`{"scriptId":"7","sourceMapURL":"app.js.map"}`),
	})
	stopped := env.sink.stoppedEvents()
	require.Len(t, stopped, 1)
	assert.Equal(t, "function breakpoint", stopped[0].Reason)
}

func TestThread_SourceMapURLResolution(t *testing.T) {
	t.Run("relative against base URL", func(t *testing.T) {
		env := newTestEnv(t)
		sess := newFakeSession()
		_, err := env.mgr.CreateThread(context.Background(), sess, ThreadOptions{
			Name: "main", BaseURL: "http://localhost:3000/static/",
		})
		require.NoError(t, err)

		sess.emit(t, cdp.EventDebuggerScriptParsed, cdp.ScriptParsedEvent{
			ScriptID: "1", URL: "http://localhost:3000/static/app.js", SourceMapURL: "app.js.map",
		})
		assert.Equal(t, "http://localhost:3000/static/app.js.map", env.container.lastRequest().SourceMapURL)
	})

	t.Run("resolution failure is a console diagnostic", func(t *testing.T) {
		env := newTestEnv(t)
		sess := newFakeSession()
		_, err := env.mgr.CreateThread(context.Background(), sess, ThreadOptions{Name: "main"})
		require.NoError(t, err)

		sess.emit(t, cdp.EventDebuggerScriptParsed, cdp.ScriptParsedEvent{
			ScriptID: "1", URL: "http://localhost/app.js", SourceMapURL: "app.js.map",
		})

		// The script is still registered, without a map.
		require.Equal(t, 1, env.container.addCount())
		assert.Empty(t, env.container.lastRequest().SourceMapURL)

		require.Eventually(t, func() bool {
			return len(env.sink.outputBodies()) == 1
		}, time.Second, 5*time.Millisecond)
		assert.Equal(t, "stderr", env.sink.outputBodies()[0].Category)
	})
}

func TestThread_ContextLifecycle(t *testing.T) {
	env := newTestEnv(t)
	sess := newFakeSession()
	thread, err := env.mgr.CreateThread(context.Background(), sess, ThreadOptions{Name: "main"})
	require.NoError(t, err)

	sess.emit(t, cdp.EventExecutionContextCreated, cdp.ExecutionContextCreatedEvent{
		Context: cdp.ExecutionContextDescription{
			ID: 1, Name: "top", AuxData: json.RawMessage(`{"isDefault":true}`),
		},
	})
	sess.emit(t, cdp.EventExecutionContextCreated, cdp.ExecutionContextCreatedEvent{
		Context: cdp.ExecutionContextDescription{ID: 2, Name: "iframe"},
	})
	require.Len(t, thread.ExecutionContexts(), 2)

	sess.emit(t, cdp.EventExecutionContextDestroyed, cdp.ExecutionContextDestroyedEvent{
		ExecutionContextID: 2,
	})
	contexts := thread.ExecutionContexts()
	require.Len(t, contexts, 1)
	assert.True(t, contexts[0].IsDefault)

	// A clear while paused forces resumed semantics and clears the console.
	sess.emit(t, cdp.EventDebuggerPaused, cdp.PausedEvent{Reason: cdp.PauseReasonOther})
	sess.emit(t, cdp.EventConsoleAPICalled, cdp.ConsoleAPICalledEvent{Type: "log"})
	thread.out.drain()

	sess.emit(t, cdp.EventExecutionContextsCleared, struct{}{})
	thread.out.drain()

	assert.Empty(t, thread.ExecutionContexts())
	assert.Nil(t, thread.Paused())
	require.Len(t, env.sink.continuedEvents(), 1)
	outputs := env.sink.outputBodies()
	require.Len(t, outputs, 2)
	assert.Equal(t, clearConsoleOutput, outputs[1].Output)
}

func TestThread_ConsoleOutputOrdered(t *testing.T) {
	env := newTestEnv(t)
	sess := newFakeSession()
	thread, err := env.mgr.CreateThread(context.Background(), sess, ThreadOptions{Name: "main"})
	require.NoError(t, err)

	for _, msg := range []string{"one", "two", "three"} {
		sess.emit(t, cdp.EventConsoleAPICalled, cdp.ConsoleAPICalledEvent{
			Type: "log",
			Args: []cdp.RemoteObject{{Type: "string", Description: msg}},
		})
	}
	thread.out.drain()

	assert.Equal(t, []string{"one\n", "two\n", "three\n"}, outputTexts(env.sink))
}

func TestThread_DisposeIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	sess := newFakeSession()
	thread, err := env.mgr.CreateThread(context.Background(), sess, ThreadOptions{Name: "main"})
	require.NoError(t, err)

	sess.emit(t, cdp.EventDebuggerScriptParsed, cdp.ScriptParsedEvent{
		ScriptID: "1", URL: "http://localhost/app.js",
	})

	thread.Dispose()
	thread.Dispose()

	assert.Nil(t, env.mgr.Thread(thread.ID()))
	assert.Equal(t, []string{"http://localhost/app.js"}, env.container.removedURLs())

	events := env.sink.threadEventBodies()
	require.Len(t, events, 2)
	assert.Equal(t, "started", events[0].Reason)
	assert.Equal(t, "exited", events[1].Reason)

	// Events after disposal are not handled anymore.
	sess.emit(t, cdp.EventDebuggerPaused, cdp.PausedEvent{Reason: cdp.PauseReasonOther})
	assert.Empty(t, env.sink.stoppedEvents())
}
