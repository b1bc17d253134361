package events

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// InMemoryBus delivers events synchronously on the publishing goroutine.
// Handlers run in the order they subscribed; a panic in one handler is
// recovered and logged so it cannot affect the others or the publisher.
type InMemoryBus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	logger   zerolog.Logger
}

// NewInMemoryBus returns a ready-to-use InMemoryBus.
func NewInMemoryBus(logger zerolog.Logger) *InMemoryBus {
	return &InMemoryBus{
		handlers: make(map[string][]Handler),
		logger:   logger,
	}
}

// Subscribe registers a handler for the given event type.
func (b *InMemoryBus) Subscribe(eventType string, h Handler) {
	b.mu.Lock()
	b.handlers[eventType] = append(b.handlers[eventType], h)
	b.mu.Unlock()
}

// Publish delivers the event to every handler subscribed to its type.
// Publishing a type with no subscribers is a no-op.
func (b *InMemoryBus) Publish(ctx context.Context, e Event) {
	b.mu.RLock()
	hs := b.handlers[e.Type]
	b.mu.RUnlock()

	b.logger.Debug().
		Str("event_id", e.ID).
		Str("event_type", e.Type).
		Int("handlers", len(hs)).
		Msg("publishing event")

	for _, h := range hs {
		b.deliver(ctx, h, e)
	}
}

func (b *InMemoryBus) deliver(ctx context.Context, h Handler, e Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error().
				Str("event_id", e.ID).
				Str("event_type", e.Type).
				Interface("panic", r).
				Msg("event handler panicked")
		}
	}()
	h(ctx, e)
}
