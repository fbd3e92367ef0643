package streaming

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
)

const subscriberBuffer = 64

type subscription struct {
	ch     chan Event
	filter Filter
}

// MemoryHub is an in-process Hub. Publish never blocks: a subscriber whose
// buffer is full misses the event.
type MemoryHub struct {
	mu   sync.RWMutex
	subs map[uint64]*subscription
	next atomic.Uint64
}

func NewMemoryHub() *MemoryHub {
	return &MemoryHub{subs: make(map[uint64]*subscription)}
}

func (h *MemoryHub) Publish(ctx context.Context, ev Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, s := range h.subs {
		if !s.filter.Match(ev) {
			continue
		}
		select {
		case s.ch <- ev:
		default:
		}
	}
	return nil
}

// Subscribe registers a subscriber. The returned cancel func removes it and
// closes the channel; it is safe to call more than once.
func (h *MemoryHub) Subscribe(ctx context.Context, f Filter) (<-chan Event, func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	id := h.next.Add(1)
	s := &subscription{ch: make(chan Event, subscriberBuffer), filter: f}

	h.mu.Lock()
	h.subs[id] = s
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(s.ch)
		})
	}
	return s.ch, cancel, nil
}

// Len returns the number of live subscribers.
func (h *MemoryHub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Match reports whether ev passes the filter.
func (f Filter) Match(ev Event) bool {
	if f.ProcessID != "" && f.ProcessID != ev.ProcessID {
		return false
	}
	return len(f.Types) == 0 || slices.Contains(f.Types, ev.Type)
}
