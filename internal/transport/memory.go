package transport

import (
	"context"
	"sync"
)

// MemoryHub fans envelopes out to every attached MemoryTransport. It backs
// tests and single-host sessions where collaborators share a process.
type MemoryHub struct {
	mu       sync.Mutex
	handlers map[int]Handler
	nextID   int
}

func NewMemoryHub() *MemoryHub {
	return &MemoryHub{handlers: make(map[int]Handler)}
}

func (h *MemoryHub) broadcast(envelope Envelope) {
	h.mu.Lock()
	handlers := make([]Handler, 0, len(h.handlers))
	for _, handler := range h.handlers {
		handlers = append(handlers, handler)
	}
	h.mu.Unlock()
	for _, handler := range handlers {
		handler(envelope)
	}
}

func (h *MemoryHub) attach(handler Handler) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	h.handlers[h.nextID] = handler
	return h.nextID
}

func (h *MemoryHub) detach(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.handlers, id)
}

// MemoryTransport is an in-process Transport attached to a MemoryHub.
// Delivery is synchronous: Publish returns after every subscriber's handler
// has run, which keeps tests deterministic.
type MemoryTransport struct {
	hub *MemoryHub

	mu     sync.Mutex
	subID  int
	subbed bool
}

func NewMemoryTransport(hub *MemoryHub) *MemoryTransport {
	return &MemoryTransport{hub: hub}
}

func (t *MemoryTransport) Publish(_ context.Context, envelope Envelope) error {
	t.hub.broadcast(envelope)
	return nil
}

func (t *MemoryTransport) Subscribe(_ context.Context, handler Handler) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.subbed {
		return nil
	}
	t.subID = t.hub.attach(handler)
	t.subbed = true
	return nil
}

func (t *MemoryTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.subbed {
		t.hub.detach(t.subID)
		t.subbed = false
	}
	return nil
}
