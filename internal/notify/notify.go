// Package notify fans out "the record set changed" events to open
// presentation surfaces. Delivery is best-effort: a gone or slow
// subscriber is skipped, never an error for the publisher.
package notify

import (
	"sync"

	"github.com/google/uuid"

	"github.com/lotas/tabspeicher/internal/applog"
)

// Event is a data-changed notice. It carries no payload; receivers
// re-run their load-and-project cycle against the store.
type Event struct{}

// Hub is the publish/subscribe registry. Surfaces subscribe when they
// open and unsubscribe when they close.
type Hub struct {
	mu   sync.Mutex
	subs map[string]chan Event
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]chan Event)}
}

// Subscribe registers a surface and returns its id and event channel.
// The channel is buffered; a surface that stops draining misses events
// instead of blocking publishers.
func (h *Hub) Subscribe() (string, <-chan Event) {
	id := uuid.NewString()
	ch := make(chan Event, 1)
	h.mu.Lock()
	h.subs[id] = ch
	h.mu.Unlock()
	applog.Info("notify.subscribe", "id", id)
	return id, ch
}

// Unsubscribe deregisters a surface. Unknown ids are ignored, so a
// surface may deregister twice on racy shutdown paths.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	ch, ok := h.subs[id]
	if ok {
		delete(h.subs, id)
		close(ch)
	}
	h.mu.Unlock()
	if ok {
		applog.Info("notify.unsubscribe", "id", id)
	}
}

// Publish delivers a data-changed notice to every subscriber.
// Fire-and-forget: it never blocks and never fails.
func (h *Hub) Publish() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- Event{}:
		default:
			// Subscriber already has a pending notice; one is enough
			// to trigger a reload.
		}
	}
}

// Subscribers returns the number of registered surfaces.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
