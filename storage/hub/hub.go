// Package hub fans out slot changes to in-process subscribers.
package hub

import (
	"context"
	"sync"

	"github.com/royalacademy/backoffice/core"
)

// subscriberBuffer is how many changes a slow subscriber may lag behind before changes are dropped for it.
const subscriberBuffer = 64

type Hub struct {
	mu     sync.RWMutex
	subs   map[chan core.Change]struct{}
	done   chan struct{}
	closed bool
}

func New() *Hub {
	return &Hub{
		subs: make(map[chan core.Change]struct{}),
		done: make(chan struct{}),
	}
}

// Publish delivers changes to every subscriber without blocking.
func (h *Hub) Publish(changes ...core.Change) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.subs {
		for _, c := range changes {
			select {
			case ch <- c:
			default: // subscriber is lagging: drop
			}
		}
	}
}

// Subscribe returns a channel of changes that is closed when ctx is done or the hub is closed.
func (h *Hub) Subscribe(ctx context.Context) (<-chan core.Change, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan core.Change, subscriberBuffer)
	if h.closed {
		close(ch)
		return ch, nil
	}
	h.subs[ch] = struct{}{}

	go func() {
		select {
		case <-ctx.Done():
			h.remove(ch)
		case <-h.done:
		}
	}()
	return ch, nil
}

func (h *Hub) remove(ch chan core.Change) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[ch]; ok {
		delete(h.subs, ch)
		close(ch)
	}
}

// Close closes every subscription.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	for ch := range h.subs {
		delete(h.subs, ch)
		close(ch)
	}
	h.closed = true
	close(h.done)
}
