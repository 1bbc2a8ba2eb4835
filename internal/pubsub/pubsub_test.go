package pubsub

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHub_PublishInSubscriptionOrder(t *testing.T) {
	hub := NewHub[int]()

	var order []string
	hub.Subscribe(func(v int) { order = append(order, "first") })
	hub.Subscribe(func(v int) { order = append(order, "second") })
	hub.Subscribe(func(v int) { order = append(order, "third") })

	hub.Publish(1)
	assert.Equal(t, []string{"first", "second", "third"}, order)
}

func TestHub_Unsubscribe(t *testing.T) {
	hub := NewHub[string]()

	var got []string
	unsub := hub.Subscribe(func(v string) { got = append(got, "a:"+v) })
	hub.Subscribe(func(v string) { got = append(got, "b:"+v) })
	assert.Equal(t, 2, hub.Len())

	unsub()
	assert.Equal(t, 1, hub.Len())

	hub.Publish("x")
	assert.Equal(t, []string{"b:x"}, got)

	// A second call is a no-op.
	unsub()
	assert.Equal(t, 1, hub.Len())
}

func TestHub_SubscribeDuringPublish(t *testing.T) {
	hub := NewHub[int]()

	var calls int
	hub.Subscribe(func(v int) {
		// Registered mid-publish; must not run for this delivery.
		hub.Subscribe(func(int) { calls += 100 })
		calls++
	})

	hub.Publish(1)
	assert.Equal(t, 1, calls)

	hub.Publish(2)
	assert.Equal(t, 102, calls)
}

func TestHub_PublishWithNoSubscribers(t *testing.T) {
	hub := NewHub[int]()
	hub.Publish(42)
	assert.Equal(t, 0, hub.Len())
}
