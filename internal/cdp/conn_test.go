package cdp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ctagard/cdp-bridge/internal/errors"
	"github.com/ctagard/cdp-bridge/internal/transport"
)

// fakeTransport records sends and lets the test inject inbound messages.
type fakeTransport struct {
	mu   sync.Mutex
	sent [][]byte

	msgs chan transport.Message
	done chan struct{}

	closeOnce sync.Once
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		msgs: make(chan transport.Message, 64),
		done: make(chan struct{}),
	}
}

func (f *fakeTransport) Send(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, data)
	return nil
}

func (f *fakeTransport) Messages() <-chan transport.Message { return f.msgs }
func (f *fakeTransport) Done() <-chan struct{}              { return f.done }

func (f *fakeTransport) Close() error {
	f.closeOnce.Do(func() {
		close(f.msgs)
		close(f.done)
	})
	return nil
}

func (f *fakeTransport) inject(text string) {
	f.msgs <- transport.Message{Data: []byte(text), ReceivedAt: time.Now()}
}

// lastSent waits for the nth outbound message and decodes it.
func (f *fakeTransport) lastSent(t *testing.T, n int) map[string]interface{} {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		f.mu.Lock()
		count := len(f.sent)
		f.mu.Unlock()
		if count >= n {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected %d sent messages, have %d", n, count)
		}
		time.Sleep(time.Millisecond)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(f.sent[n-1], &decoded))
	return decoded
}

func TestConn_CallCorrelation(t *testing.T) {
	tr := newFakeTransport()
	conn := NewConn(tr)
	defer conn.Close()

	type result struct {
		src string
		err error
	}
	results := make(chan result, 1)
	go func() {
		src, err := GetScriptSource(context.Background(), conn, "42")
		results <- result{src, err}
	}()

	sent := tr.lastSent(t, 1)
	assert.Equal(t, "Debugger.getScriptSource", sent["method"])
	id := int(sent["id"].(float64))

	// Answer an unrelated id first; it must not satisfy the call.
	tr.inject(fmt.Sprintf(`{"id":%d,"result":{"scriptSource":"wrong"}}`, id+100))
	tr.inject(fmt.Sprintf(`{"id":%d,"result":{"scriptSource":"console.log(1)"}}`, id))

	select {
	case r := <-results:
		require.NoError(t, r.err)
		assert.Equal(t, "console.log(1)", r.src)
	case <-time.After(2 * time.Second):
		t.Fatal("call never completed")
	}
}

func TestConn_TargetErrorResponse(t *testing.T) {
	tr := newFakeTransport()
	conn := NewConn(tr)
	defer conn.Close()

	errCh := make(chan error, 1)
	go func() {
		errCh <- SetInstrumentationBreakpoint(context.Background(), conn, InstrumentationScriptWithSourceMap)
	}()

	sent := tr.lastSent(t, 1)
	id := int(sent["id"].(float64))
	tr.inject(fmt.Sprintf(`{"id":%d,"error":{"code":-32601,"message":"method not found"}}`, id))

	err := <-errCh
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeTargetError))
	assert.Contains(t, err.Error(), "method not found")
}

func TestConn_EventsDispatchInArrivalOrder(t *testing.T) {
	tr := newFakeTransport()
	conn := NewConn(tr)
	defer conn.Close()

	var mu sync.Mutex
	var got []string
	record := func(name string) func(json.RawMessage) {
		return func(json.RawMessage) {
			mu.Lock()
			got = append(got, name)
			mu.Unlock()
		}
	}
	unsubPaused := conn.On(EventDebuggerPaused, record("paused"))
	conn.On(EventDebuggerResumed, record("resumed"))
	defer unsubPaused()

	tr.inject(`{"method":"Debugger.paused","params":{"reason":"other","callFrames":[]}}`)
	tr.inject(`{"method":"Debugger.resumed"}`)
	tr.inject(`{"method":"Debugger.paused","params":{"reason":"other","callFrames":[]}}`)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 3
	}, 2*time.Second, time.Millisecond)

	mu.Lock()
	assert.Equal(t, []string{"paused", "resumed", "paused"}, got)
	mu.Unlock()

	// After unsubscribe only the resumed handler fires.
	unsubPaused()
	tr.inject(`{"method":"Debugger.paused","params":{}}`)
	tr.inject(`{"method":"Debugger.resumed"}`)
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 4
	}, 2*time.Second, time.Millisecond)
	mu.Lock()
	assert.Equal(t, "resumed", got[3])
	mu.Unlock()
}

func TestConn_MalformedMessageIgnored(t *testing.T) {
	tr := newFakeTransport()
	conn := NewConn(tr)
	defer conn.Close()

	seen := make(chan struct{}, 1)
	conn.On(EventDebuggerResumed, func(json.RawMessage) { seen <- struct{}{} })

	tr.inject(`this is not JSON`)
	tr.inject(`{"method":"Debugger.resumed"}`)

	select {
	case <-seen:
	case <-time.After(2 * time.Second):
		t.Fatal("session died on a malformed message")
	}
}

func TestConn_CloseFailsInFlightCalls(t *testing.T) {
	tr := newFakeTransport()
	conn := NewConn(tr)

	errCh := make(chan error, 1)
	go func() {
		errCh <- conn.Call(context.Background(), "Debugger.pause", nil, nil)
	}()
	tr.lastSent(t, 1)

	require.NoError(t, conn.Close())

	err := <-errCh
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeConnectionClosed))

	// Calls after close fail immediately.
	err = conn.Call(context.Background(), "Debugger.resume", nil, nil)
	assert.True(t, errors.HasCode(err, errors.CodeConnectionClosed))
}

func TestConn_CallTimeout(t *testing.T) {
	tr := newFakeTransport()
	conn := NewConn(tr, WithCallTimeout(50*time.Millisecond))
	defer conn.Close()

	err := conn.Call(context.Background(), "Debugger.pause", nil, nil)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeCallTimeout))
}
