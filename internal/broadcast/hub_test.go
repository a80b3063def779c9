package broadcast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadimbarashkov/redirector/internal/models"
)

func int64Ptr(v int64) *int64 { return &v }

func drain(sub *Subscription) []models.ClickEvent {
	var events []models.ClickEvent
	for {
		select {
		case ev := <-sub.Events():
			events = append(events, ev)
		default:
			return events
		}
	}
}

func TestHub_Broadcast(t *testing.T) {
	t.Run("no subscribers is a no-op", func(t *testing.T) {
		hub := NewHub()

		assert.NotPanics(t, func() {
			hub.Broadcast(models.ClickEvent{LinkID: 1})
		})
	})

	t.Run("delivers to link subscribers", func(t *testing.T) {
		hub := NewHub()
		sub := hub.SubscribeLink(7)

		hub.Broadcast(models.ClickEvent{LinkID: 7, ShortCode: "abc"})
		hub.Broadcast(models.ClickEvent{LinkID: 8, ShortCode: "other"})

		events := drain(sub)
		require.Len(t, events, 1)
		assert.Equal(t, "abc", events[0].ShortCode)
	})

	t.Run("delivers to user subscribers when event carries a user id", func(t *testing.T) {
		hub := NewHub()
		sub := hub.SubscribeUser(42)

		hub.Broadcast(models.ClickEvent{LinkID: 1, UserID: int64Ptr(42)})
		hub.Broadcast(models.ClickEvent{LinkID: 2, UserID: int64Ptr(99)})
		hub.Broadcast(models.ClickEvent{LinkID: 3})

		events := drain(sub)
		require.Len(t, events, 1)
		assert.Equal(t, int64(1), events[0].LinkID)
	})

	t.Run("global subscribers receive every event", func(t *testing.T) {
		hub := NewHub()
		sub := hub.SubscribeAll()

		hub.Broadcast(models.ClickEvent{LinkID: 1})
		hub.Broadcast(models.ClickEvent{LinkID: 2, UserID: int64Ptr(5)})

		assert.Len(t, drain(sub), 2)
	})

	t.Run("one event fans out to all matching subscribers", func(t *testing.T) {
		hub := NewHub()
		global := hub.SubscribeAll()
		link := hub.SubscribeLink(7)
		user := hub.SubscribeUser(42)

		hub.Broadcast(models.ClickEvent{LinkID: 7, UserID: int64Ptr(42)})

		assert.Len(t, drain(global), 1)
		assert.Len(t, drain(link), 1)
		assert.Len(t, drain(user), 1)
	})
}

func TestHub_SlowConsumer(t *testing.T) {
	hub := NewHub()
	sub := hub.SubscribeLink(7)

	total := subscriberBuffer + 10
	for i := 0; i < total; i++ {
		hub.Broadcast(models.ClickEvent{LinkID: 7, ClickCount: int64(i + 1)})
	}

	events := drain(sub)
	require.Len(t, events, subscriberBuffer)

	// The oldest events were dropped; the consumer continues from the
	// next available one and the newest event is always retained.
	assert.Equal(t, int64(total), events[len(events)-1].ClickCount)
	assert.Greater(t, events[0].ClickCount, int64(1))
}

func TestHub_Unsubscribe(t *testing.T) {
	t.Run("stops delivery", func(t *testing.T) {
		hub := NewHub()
		sub := hub.SubscribeLink(7)

		hub.Broadcast(models.ClickEvent{LinkID: 7})
		hub.Unsubscribe(sub)
		hub.Broadcast(models.ClickEvent{LinkID: 7})

		assert.Len(t, drain(sub), 1)
	})

	t.Run("is idempotent", func(t *testing.T) {
		hub := NewHub()
		sub := hub.SubscribeUser(42)

		assert.NotPanics(t, func() {
			hub.Unsubscribe(sub)
			hub.Unsubscribe(sub)
			hub.Unsubscribe(nil)
		})
	})

	t.Run("broadcast after unsubscribe does not block", func(t *testing.T) {
		hub := NewHub()
		sub := hub.SubscribeLink(7)
		hub.Unsubscribe(sub)

		for i := 0; i < subscriberBuffer*2; i++ {
			hub.Broadcast(models.ClickEvent{LinkID: 7})
		}
	})
}
