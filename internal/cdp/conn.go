package cdp

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/ctagard/cdp-bridge/internal/errors"
	"github.com/ctagard/cdp-bridge/internal/pubsub"
	"github.com/ctagard/cdp-bridge/internal/transport"
)

// dispatchBuffer bounds the event queue between the read loop and the
// dispatch loop. Dispatch is sequential, so a slow handler backpressures
// the read loop rather than reordering events.
const dispatchBuffer = 256

// Conn correlates CDP requests with responses and fans events out to
// subscribed handlers over one transport connection.
//
// Events are dispatched by a single goroutine in arrival order, so handler
// code for one connection never races with itself.
type Conn struct {
	tr          transport.Transport
	log         *zap.Logger
	callTimeout time.Duration

	seq atomic.Int64

	mu      sync.Mutex
	pending map[int64]chan *envelope

	hubMu sync.Mutex
	hubs  map[string]*pubsub.Hub[json.RawMessage]

	events chan *envelope
	done   chan struct{}

	wg sync.WaitGroup
}

// ConnOption configures a Conn.
type ConnOption func(*Conn)

// WithLogger sets the connection logger.
func WithLogger(log *zap.Logger) ConnOption {
	return func(c *Conn) { c.log = log }
}

// WithCallTimeout sets the default round-trip budget for Call.
func WithCallTimeout(d time.Duration) ConnOption {
	return func(c *Conn) { c.callTimeout = d }
}

// NewConn starts a CDP session over tr.
func NewConn(tr transport.Transport, opts ...ConnOption) *Conn {
	c := &Conn{
		tr:          tr,
		log:         zap.NewNop(),
		callTimeout: 10 * time.Second,
		pending:     make(map[int64]chan *envelope),
		hubs:        make(map[string]*pubsub.Hub[json.RawMessage]),
		events:      make(chan *envelope, dispatchBuffer),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.wg.Add(2)
	go c.readLoop()
	go c.dispatchLoop()

	return c
}

func (c *Conn) readLoop() {
	defer c.wg.Done()
	defer close(c.events)
	defer close(c.done)
	defer c.failPending()

	for msg := range c.tr.Messages() {
		var env envelope
		if err := json.Unmarshal(msg.Data, &env); err != nil {
			// A malformed message is ignored, never session-fatal.
			c.log.Warn("discarding malformed message", zap.Error(err))
			continue
		}

		if env.Method == "" && env.ID != 0 {
			c.mu.Lock()
			ch, ok := c.pending[env.ID]
			if ok {
				delete(c.pending, env.ID)
			}
			c.mu.Unlock()
			if ok {
				ch <- &env
			} else {
				c.log.Debug("response for unknown call", zap.Int64("id", env.ID))
			}
			continue
		}

		if env.Method != "" {
			c.events <- &env
		}
	}
}

func (c *Conn) dispatchLoop() {
	defer c.wg.Done()
	for env := range c.events {
		c.hubMu.Lock()
		hub := c.hubs[env.Method]
		c.hubMu.Unlock()
		if hub != nil {
			hub.Publish(env.Params)
		}
	}
}

// failPending answers every in-flight call with a connection-closed error.
func (c *Conn) failPending() {
	c.mu.Lock()
	pending := c.pending
	c.pending = make(map[int64]chan *envelope)
	c.mu.Unlock()

	for _, ch := range pending {
		ch <- nil
	}
}

// Call issues method with params and decodes the result into result (which
// may be nil). The round trip is bounded by the connection's call timeout
// and by ctx, whichever ends first.
func (c *Conn) Call(ctx context.Context, method string, params, result interface{}) error {
	select {
	case <-c.done:
		return errors.ConnectionClosed()
	default:
	}

	id := c.seq.Add(1)
	ch := make(chan *envelope, 1)

	c.mu.Lock()
	c.pending[id] = ch
	c.mu.Unlock()

	payload, err := json.Marshal(request{ID: id, Method: method, Params: params})
	if err != nil {
		c.unregister(id)
		return err
	}

	if err := c.tr.Send(payload); err != nil {
		c.unregister(id)
		return errors.ConnectionClosed().WithCause(err)
	}

	timer := time.NewTimer(c.callTimeout)
	defer timer.Stop()

	select {
	case env := <-ch:
		if env == nil {
			return errors.ConnectionClosed()
		}
		if env.Error != nil {
			return errors.TargetError(method, env.Error.Code, env.Error.Message)
		}
		if result != nil && len(env.Result) > 0 {
			return json.Unmarshal(env.Result, result)
		}
		return nil
	case <-timer.C:
		c.unregister(id)
		return errors.CallTimeout(method, c.callTimeout)
	case <-ctx.Done():
		c.unregister(id)
		return ctx.Err()
	case <-c.done:
		return errors.ConnectionClosed()
	}
}

func (c *Conn) unregister(id int64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// On subscribes handler to an event method and returns an unsubscribe
// function. Handlers run sequentially on the dispatch goroutine.
func (c *Conn) On(method string, handler func(params json.RawMessage)) func() {
	c.hubMu.Lock()
	hub := c.hubs[method]
	if hub == nil {
		hub = pubsub.NewHub[json.RawMessage]()
		c.hubs[method] = hub
	}
	c.hubMu.Unlock()
	return hub.Subscribe(handler)
}

// Done is closed when the connection has ended.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Close shuts the transport down, fails all in-flight calls, and waits for
// both loops to drain.
func (c *Conn) Close() error {
	err := c.tr.Close()
	c.wg.Wait()
	return err
}
