package event

import (
	"context"
	"sync"
)

// MemoryChannel is an in-process Publisher for tests and local development.
// When a handler is attached each published operation is delivered to it
// inline; published operations are also recorded for inspection.
type MemoryChannel struct {
	mu      sync.Mutex
	ops     []Operation
	handler Handler
}

// NewMemoryChannel creates an in-memory event channel.
func NewMemoryChannel() *MemoryChannel {
	return &MemoryChannel{}
}

// Subscribe attaches the handler that receives subsequently published operations.
func (m *MemoryChannel) Subscribe(handler Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handler = handler
}

// Publish records the operation and delivers it to the subscriber, if any.
// Delivery failures are swallowed: like the durable channel, acceptance of
// the event and the outcome of processing it are decoupled.
func (m *MemoryChannel) Publish(ctx context.Context, op Operation) error {
	m.mu.Lock()
	m.ops = append(m.ops, op)
	handler := m.handler
	m.mu.Unlock()

	if handler != nil {
		_ = handler(ctx, op)
	}
	return nil
}

// Operations returns a copy of everything published so far.
func (m *MemoryChannel) Operations() []Operation {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Operation, len(m.ops))
	copy(out, m.ops)
	return out
}
