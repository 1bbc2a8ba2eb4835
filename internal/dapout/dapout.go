// Package dapout carries the bridge's client-facing events to their
// consumers: a Writer frames them as DAP protocol messages on a stream, a
// Buffer keeps a ring of recent events for polling surfaces, and a Tee fans
// one stream out to several sinks.
package dapout

import (
	"io"
	"sync"

	"github.com/google/go-dap"
	"go.uber.org/zap"

	"github.com/ctagard/cdp-bridge/internal/bridge"
)

// Writer frames events as DAP protocol messages onto an io.Writer. Writes
// are serialized and carry a monotonic sequence number.
type Writer struct {
	log *zap.Logger

	mu  sync.Mutex
	w   io.Writer
	seq int
}

// NewWriter builds a writer over w.
func NewWriter(w io.Writer, log *zap.Logger) *Writer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Writer{w: w, log: log.Named("dapout")}
}

func (w *Writer) write(build func(ev dap.Event) dap.Message, name string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.seq++
	ev := dap.Event{
		ProtocolMessage: dap.ProtocolMessage{Seq: w.seq, Type: "event"},
		Event:           name,
	}
	if err := dap.WriteProtocolMessage(w.w, build(ev)); err != nil {
		w.log.Warn("event write failed", zap.String("event", name), zap.Error(err))
	}
}

func (w *Writer) Stopped(body *dap.StoppedEventBody) {
	w.write(func(ev dap.Event) dap.Message {
		return &dap.StoppedEvent{Event: ev, Body: *body}
	}, "stopped")
}

func (w *Writer) Continued(body *dap.ContinuedEventBody) {
	w.write(func(ev dap.Event) dap.Message {
		return &dap.ContinuedEvent{Event: ev, Body: *body}
	}, "continued")
}

func (w *Writer) ThreadEvent(body *dap.ThreadEventBody) {
	w.write(func(ev dap.Event) dap.Message {
		return &dap.ThreadEvent{Event: ev, Body: *body}
	}, "thread")
}

func (w *Writer) Output(body *dap.OutputEventBody) {
	w.write(func(ev dap.Event) dap.Message {
		return &dap.OutputEvent{Event: ev, Body: *body}
	}, "output")
}

// Event is one recorded entry of a Buffer.
type Event struct {
	Seq   int         `json:"seq"`
	Event string      `json:"event"`
	Body  interface{} `json:"body"`
}

// Buffer keeps the most recent events in a fixed-capacity ring so polling
// surfaces can read back what happened.
type Buffer struct {
	mu     sync.Mutex
	cap    int
	seq    int
	events []Event
}

// NewBuffer builds a ring holding up to capacity events.
func NewBuffer(capacity int) *Buffer {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer{cap: capacity}
}

func (b *Buffer) record(name string, body interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seq++
	b.events = append(b.events, Event{Seq: b.seq, Event: name, Body: body})
	if len(b.events) > b.cap {
		b.events = b.events[len(b.events)-b.cap:]
	}
}

func (b *Buffer) Stopped(body *dap.StoppedEventBody)     { b.record("stopped", body) }
func (b *Buffer) Continued(body *dap.ContinuedEventBody) { b.record("continued", body) }
func (b *Buffer) ThreadEvent(body *dap.ThreadEventBody)  { b.record("thread", body) }
func (b *Buffer) Output(body *dap.OutputEventBody)       { b.record("output", body) }

// Recent returns up to n most recent events, oldest first. n <= 0 returns
// everything buffered.
func (b *Buffer) Recent(n int) []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	events := b.events
	if n > 0 && len(events) > n {
		events = events[len(events)-n:]
	}
	return append([]Event(nil), events...)
}

// LastSeq returns the sequence number of the newest recorded event.
func (b *Buffer) LastSeq() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.seq
}

// Tee fans every event out to all its sinks, in order.
type Tee struct {
	sinks []bridge.EventSink
}

// NewTee builds a sink delivering to each of sinks.
func NewTee(sinks ...bridge.EventSink) *Tee {
	return &Tee{sinks: sinks}
}

func (t *Tee) Stopped(body *dap.StoppedEventBody) {
	for _, s := range t.sinks {
		s.Stopped(body)
	}
}

func (t *Tee) Continued(body *dap.ContinuedEventBody) {
	for _, s := range t.sinks {
		s.Continued(body)
	}
}

func (t *Tee) ThreadEvent(body *dap.ThreadEventBody) {
	for _, s := range t.sinks {
		s.ThreadEvent(body)
	}
}

func (t *Tee) Output(body *dap.OutputEventBody) {
	for _, s := range t.sinks {
		s.Output(body)
	}
}
