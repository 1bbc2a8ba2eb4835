// Package pubsub implements the typed publish/subscribe hubs that carry
// lifecycle notifications between components.
//
// Hubs are deliberately minimal: synchronous fan-out in subscription order,
// and an unsubscribe function returned from Subscribe so owners can detach
// every handler they registered when they are disposed. There is no
// buffering and no delivery guarantee beyond "handlers registered at
// publish time run once, in order".
package pubsub

import "sync"

// Hub fans a published value out to every subscribed handler.
//
// Handlers run on the publishing goroutine in subscription order. The
// subscriber list is snapshotted before dispatch, so a handler that was
// unsubscribed concurrently with a publish may still observe that one
// in-flight delivery; handlers that care must check their owner's state.
type Hub[T any] struct {
	mu   sync.Mutex
	next int
	subs map[int]func(T)
	keys []int
}

// NewHub returns an empty hub.
func NewHub[T any]() *Hub[T] {
	return &Hub[T]{subs: make(map[int]func(T))}
}

// Subscribe registers fn and returns a function that removes it again.
// The returned function is safe to call more than once.
func (h *Hub[T]) Subscribe(fn func(T)) func() {
	h.mu.Lock()
	key := h.next
	h.next++
	h.subs[key] = fn
	h.keys = append(h.keys, key)
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if _, ok := h.subs[key]; !ok {
			return
		}
		delete(h.subs, key)
		for i, k := range h.keys {
			if k == key {
				h.keys = append(h.keys[:i], h.keys[i+1:]...)
				break
			}
		}
	}
}

// Publish delivers v to every handler subscribed at the time of the call.
func (h *Hub[T]) Publish(v T) {
	h.mu.Lock()
	fns := make([]func(T), 0, len(h.keys))
	for _, key := range h.keys {
		fns = append(fns, h.subs[key])
	}
	h.mu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
}

// Len reports the number of live subscriptions.
func (h *Hub[T]) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
