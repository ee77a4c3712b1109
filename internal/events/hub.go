// Package events fans observations out to in-process subscribers
// (websocket feed, archive writer). Delivery is best-effort: a slow
// subscriber drops events rather than stalling the auction core.
package events

import (
	"sync"

	"token-auction-house/internal/domain"
	"token-auction-house/internal/observability"
)

// DefaultBuffer is the subscription channel depth used by Subscribe.
const DefaultBuffer = 64

// Hub is a non-blocking fan-out broadcaster for observations.
type Hub struct {
	mu     sync.RWMutex
	subs   map[uint64]chan domain.Event
	nextID uint64
	closed bool

	metrics *observability.Metrics // may be nil
}

// NewHub creates a hub. metrics may be nil.
func NewHub(metrics *observability.Metrics) *Hub {
	return &Hub{
		subs:    make(map[uint64]chan domain.Event),
		metrics: metrics,
	}
}

// Subscribe registers a new subscriber and returns its channel plus an
// unsubscribe function. The channel is closed on unsubscribe or when
// the hub shuts down.
func (h *Hub) Subscribe() (<-chan domain.Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan domain.Event, DefaultBuffer)
	if h.closed {
		close(ch)
		return ch, func() {}
	}

	h.nextID++
	id := h.nextID
	h.subs[id] = ch

	unsubscribe := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if sub, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(sub)
		}
	}
	return ch, unsubscribe
}

// Publish delivers the event to every subscriber that has buffer space.
// Publish never blocks; events to full subscribers are dropped.
func (h *Hub) Publish(e domain.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return
	}
	if h.metrics != nil {
		h.metrics.EventsPublished.WithLabelValues(string(e.Type)).Inc()
	}

	for _, ch := range h.subs {
		select {
		case ch <- e:
		default:
			if h.metrics != nil {
				h.metrics.EventsDropped.Inc()
			}
		}
	}
}

// Close shuts the hub down and closes all subscriber channels.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}
