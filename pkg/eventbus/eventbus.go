package eventbus

import (
	"sync"

	"github.com/Checker-Finance/bondvault/pkg/model"
)

// Handler consumes a single ledger event.
type Handler func(model.LedgerEvent)

// Bus fans ledger events out to registered subscribers. Publishing is
// synchronous: the vault commits state under its own lock and then emits, so
// every subscriber (journal, NATS publisher, metrics, feed) observes events
// in the ledger's total order.
type Bus struct {
	mu       sync.RWMutex
	handlers []Handler
}

// New creates a new Bus.
func New() *Bus {
	return &Bus{}
}

// Subscribe registers a handler for all ledger events.
func (b *Bus) Subscribe(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, h)
}

// Publish delivers the event to every subscriber in registration order.
func (b *Bus) Publish(evt model.LedgerEvent) {
	b.mu.RLock()
	handlers := b.handlers
	b.mu.RUnlock()

	for _, h := range handlers {
		h(evt)
	}
}

// SubscriberCount returns the number of registered subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers)
}
