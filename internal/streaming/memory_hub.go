package streaming

import (
	"context"
	"slices"
	"sync"
)

// Per-subscriber buffer. Publishers never block; a subscriber that falls
// more than this far behind starts losing events.
const subscriberBuffer = 64

// MemoryHub is a process-local EventHub backed by buffered channels.
type MemoryHub struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[uint64]subscription
}

type subscription struct {
	filter EventFilter
	ch     chan StreamEvent
}

// NewMemoryHub creates a new MemoryHub.
func NewMemoryHub() *MemoryHub {
	return &MemoryHub{subs: make(map[uint64]subscription)}
}

// Publish delivers the event to every subscriber whose filter matches.
// Delivery is best-effort: full channels are skipped, not waited on.
func (h *MemoryHub) Publish(ctx context.Context, event StreamEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sub := range h.subs {
		if !sub.filter.matches(event) {
			continue
		}
		select {
		case sub.ch <- event:
		default:
		}
	}
	return nil
}

// Subscribe registers a filtered subscription and returns its event channel
// together with a cancel function that removes the subscription. The channel
// is never closed; callers stop reading after cancelling.
func (h *MemoryHub) Subscribe(ctx context.Context, filter EventFilter) (<-chan StreamEvent, func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	ch := make(chan StreamEvent, subscriberBuffer)

	h.mu.Lock()
	h.nextID++
	id := h.nextID
	h.subs[id] = subscription{filter: filter, ch: ch}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		delete(h.subs, id)
		h.mu.Unlock()
	}
	return ch, cancel, nil
}

// matches reports whether the event satisfies every populated filter field.
// Empty fields match anything.
func (f EventFilter) matches(e StreamEvent) bool {
	if f.ExecutionID != "" && f.ExecutionID != e.ExecutionID {
		return false
	}
	if f.FlowID != "" && f.FlowID != e.FlowID {
		return false
	}
	if len(f.EventTypes) > 0 && !slices.Contains(f.EventTypes, e.EventType) {
		return false
	}
	return true
}
