package http

import "sync"

// Hub fans listing-set changes out to the live map sessions of this
// instance. A nil *Hub is valid and never notifies.
type Hub struct {
	mu   sync.Mutex
	next int
	subs map[int]func()
}

func NewHub() *Hub {
	return &Hub{subs: make(map[int]func())}
}

// Notify calls every subscriber. Subscribers must not block.
func (h *Hub) Notify() {
	if h == nil {
		return
	}
	h.mu.Lock()
	fns := make([]func(), 0, len(h.subs))
	for _, fn := range h.subs {
		fns = append(fns, fn)
	}
	h.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// Sessions returns the number of subscribers.
func (h *Hub) Sessions() int {
	if h == nil {
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *Hub) subscribe(fn func()) (cancel func()) {
	if h == nil {
		return func() {}
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.next
	h.next++
	h.subs[id] = fn
	return func() {
		h.mu.Lock()
		delete(h.subs, id)
		h.mu.Unlock()
	}
}
