package broadcast

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/vadimbarashkov/redirector/internal/models"
)

// subscriberBuffer bounds the per-subscription channel. When a consumer
// falls this many events behind, the oldest buffered events are dropped.
const subscriberBuffer = 16

// Subscription is one consumer's bounded event channel, bound to a link,
// a user, or the hub-wide stream. Its lifetime matches the owning
// connection.
type Subscription struct {
	id     uuid.UUID
	ch     chan models.ClickEvent
	closed atomic.Bool
}

// Events returns the channel click events are delivered on.
func (s *Subscription) Events() <-chan models.ClickEvent {
	return s.ch
}

// offer delivers the event without ever blocking the publisher. If the
// buffer is full, the oldest buffered event is dropped to make room;
// lagging consumers simply continue from the next available event.
func (s *Subscription) offer(event models.ClickEvent) {
	for {
		if s.closed.Load() {
			return
		}
		select {
		case s.ch <- event:
			return
		default:
		}
		select {
		case <-s.ch:
		default:
		}
	}
}

// Hub is an in-process pub/sub fan-out of click events, keyed by link
// and by user, plus a hub-wide stream. Subscriber maps are mutated
// rarely relative to broadcasts, so reads take a shared lock.
type Hub struct {
	mu         sync.RWMutex
	globalSubs map[uuid.UUID]*Subscription
	linkSubs   map[int64]map[uuid.UUID]*Subscription
	userSubs   map[int64]map[uuid.UUID]*Subscription
}

func NewHub() *Hub {
	return &Hub{
		globalSubs: make(map[uuid.UUID]*Subscription),
		linkSubs:   make(map[int64]map[uuid.UUID]*Subscription),
		userSubs:   make(map[int64]map[uuid.UUID]*Subscription),
	}
}

func newSubscription() *Subscription {
	return &Subscription{
		id: uuid.New(),
		ch: make(chan models.ClickEvent, subscriberBuffer),
	}
}

// SubscribeAll registers a consumer for every broadcast event.
func (h *Hub) SubscribeAll() *Subscription {
	sub := newSubscription()

	h.mu.Lock()
	h.globalSubs[sub.id] = sub
	h.mu.Unlock()

	return sub
}

// SubscribeLink registers a consumer for events of one link.
func (h *Hub) SubscribeLink(linkID int64) *Subscription {
	sub := newSubscription()

	h.mu.Lock()
	if h.linkSubs[linkID] == nil {
		h.linkSubs[linkID] = make(map[uuid.UUID]*Subscription)
	}
	h.linkSubs[linkID][sub.id] = sub
	h.mu.Unlock()

	return sub
}

// SubscribeUser registers a consumer for events of one user's links.
func (h *Hub) SubscribeUser(userID int64) *Subscription {
	sub := newSubscription()

	h.mu.Lock()
	if h.userSubs[userID] == nil {
		h.userSubs[userID] = make(map[uuid.UUID]*Subscription)
	}
	h.userSubs[userID][sub.id] = sub
	h.mu.Unlock()

	return sub
}

// Unsubscribe detaches the subscription. Events already buffered remain
// readable; no further events are delivered. Calling it for an already
// detached subscription is a no-op.
func (h *Hub) Unsubscribe(sub *Subscription) {
	if sub == nil || !sub.closed.CompareAndSwap(false, true) {
		return
	}

	h.mu.Lock()
	delete(h.globalSubs, sub.id)
	for linkID, subs := range h.linkSubs {
		delete(subs, sub.id)
		if len(subs) == 0 {
			delete(h.linkSubs, linkID)
		}
	}
	for userID, subs := range h.userSubs {
		delete(subs, sub.id)
		if len(subs) == 0 {
			delete(h.userSubs, userID)
		}
	}
	h.mu.Unlock()
}

// Broadcast fans the event out to the hub-wide stream, to subscribers of
// the event's link, and, if it carries a user id, to subscribers of that
// user. Broadcasting with zero subscribers is a no-op. Publishers are on
// the request hot path and are never delayed by a slow consumer.
func (h *Hub) Broadcast(event models.ClickEvent) {
	h.mu.RLock()
	targets := make([]*Subscription, 0, len(h.globalSubs))
	for _, sub := range h.globalSubs {
		targets = append(targets, sub)
	}
	for _, sub := range h.linkSubs[event.LinkID] {
		targets = append(targets, sub)
	}
	if event.UserID != nil {
		for _, sub := range h.userSubs[*event.UserID] {
			targets = append(targets, sub)
		}
	}
	h.mu.RUnlock()

	for _, sub := range targets {
		sub.offer(event)
	}
}
