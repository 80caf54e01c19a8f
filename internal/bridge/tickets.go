package bridge

import (
	"sync"

	"github.com/stealthrocket/cloak/internal/netengine"
)

// tickets hands out client contexts for values registered with the native
// engine. The engine only ever sees the ticket; values are looked up when a
// callback presents it, and claimed back exactly once.
type tickets[T any] struct {
	mu     sync.Mutex
	next   netengine.ClientContext
	values map[netengine.ClientContext]*T
}

func (t *tickets[T]) issue(value *T) netengine.ClientContext {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.values == nil {
		t.values = make(map[netengine.ClientContext]*T)
	}
	// Ticket zero is never issued, it is what engines report for
	// registrations made without a client context.
	t.next++
	t.values[t.next] = value
	return t.next
}

// load borrows the value of a ticket without claiming it.
func (t *tickets[T]) load(ticket netengine.ClientContext) (*T, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	value, ok := t.values[ticket]
	return value, ok
}

// claim takes the value of a ticket back. Only the first claim succeeds.
func (t *tickets[T]) claim(ticket netengine.ClientContext) (*T, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	value, ok := t.values[ticket]
	if ok {
		delete(t.values, ticket)
	}
	return value, ok
}

func (t *tickets[T]) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.values)
}
