// Package events provides the domain event bus. Events carry a sortable
// ULID identifier and an arbitrary payload; the in-memory bus delivers them
// synchronously to handlers in registration order.
package events

import (
	"context"
	"time"

	"github.com/sonexus/portal/internal/platform/ids"
)

// Event is a domain event published on the bus.
type Event struct {
	ID         string                 `json:"eventId"`
	Type       string                 `json:"eventType"`
	OccurredAt time.Time              `json:"occurredAt"`
	Payload    map[string]interface{} `json:"payload,omitempty"`
}

// New builds an event of the given type with a fresh ULID and timestamp.
func New(eventType string, payload map[string]interface{}) Event {
	return Event{
		ID:         ids.New(),
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}
}

// Handler processes a published event.
type Handler func(ctx context.Context, e Event)

// Bus is the contract for event publication and subscription.
type Bus interface {
	Publish(ctx context.Context, e Event)
	Subscribe(eventType string, h Handler)
}
