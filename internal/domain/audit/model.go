package audit

import (
	"time"

	"github.com/google/uuid"
)

// Event maps to the audit_event table. ActorID is nil for events triggered
// outside an authenticated request.
type Event struct {
	ID            uuid.UUID              `db:"id" json:"id"`
	EventType     string                 `db:"event_type" json:"event_type"`
	ActorID       *uuid.UUID             `db:"actor_id" json:"actor_id,omitempty"`
	ActorEmail    *string                `db:"actor_email" json:"actor_email,omitempty"`
	ResourceType  string                 `db:"resource_type" json:"resource_type"`
	ResourceID    *uuid.UUID             `db:"resource_id" json:"resource_id,omitempty"`
	Action        string                 `db:"action" json:"action"`
	CorrelationID string                 `db:"correlation_id" json:"correlation_id"`
	IPAddress     *string                `db:"ip_address" json:"ip_address,omitempty"`
	Metadata      map[string]interface{} `db:"metadata" json:"metadata,omitempty"`
	CreatedAt     time.Time              `db:"created_at" json:"created_at"`
}

// ActorName returns a display name for the event's actor, "System" when the
// event had no authenticated user.
func (e *Event) ActorName() string {
	if e.ActorEmail != nil {
		return *e.ActorEmail
	}
	return "System"
}

// Filter narrows an audit search. Zero-value fields are ignored.
type Filter struct {
	EventType     string
	ActorID       *uuid.UUID
	Action        string
	CorrelationID string
	From          *time.Time
	To            *time.Time
}
