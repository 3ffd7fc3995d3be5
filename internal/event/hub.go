package event

import (
	"sync"

	"github.com/fabriziosalmi/checkmate/internal/check"
)

// subscriberBuffer is the per-subscriber channel capacity. A subscriber that
// falls this far behind is dropped rather than allowed to block the engine.
const subscriberBuffer = 16

// Hub fans engine events out to connected subscribers.
//
// Each subscriber gets its own buffered channel. Notify never blocks: when a
// subscriber's buffer is full the subscriber is closed and removed, trading
// that client's stream for engine liveness. Clients are expected to
// resynchronize from the state endpoint after a dropped stream.
type Hub struct {
	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	closed bool
}

// Subscription is one subscriber's event stream.
type Subscription struct {
	ch  chan check.Event
	hub *Hub
}

// Events returns the subscriber's receive channel. The channel is closed
// when the subscription is cancelled, the hub shuts down, or the subscriber
// falls too far behind.
func (s *Subscription) Events() <-chan check.Event { return s.ch }

// Cancel detaches the subscription and closes its channel.
func (s *Subscription) Cancel() { s.hub.drop(s) }

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[*Subscription]struct{})}
}

// Subscribe attaches a new subscriber. Returns nil after Close.
func (h *Hub) Subscribe() *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	sub := &Subscription{ch: make(chan check.Event, subscriberBuffer), hub: h}
	h.subs[sub] = struct{}{}
	return sub
}

// Notify delivers e to every live subscriber without blocking.
func (h *Hub) Notify(e check.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for sub := range h.subs {
		select {
		case sub.ch <- e:
		default:
			// Buffer full: shed the subscriber.
			delete(h.subs, sub)
			close(sub.ch)
		}
	}
}

// Len returns the number of live subscribers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close detaches and closes every subscriber. Subsequent Subscribe calls
// return nil and Notify becomes a no-op.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for sub := range h.subs {
		delete(h.subs, sub)
		close(sub.ch)
	}
}

func (h *Hub) drop(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subs[sub]; ok {
		delete(h.subs, sub)
		close(sub.ch)
	}
}
