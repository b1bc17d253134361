package audit

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sonexus/portal/internal/platform/auth"
	"github.com/sonexus/portal/internal/platform/middleware"
)

type Service struct {
	repo   Repository
	logger zerolog.Logger
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// Log records an audit event for the given resource. It never returns an
// error: a failure to persist the event is logged and swallowed so that
// auditing cannot break the operation being audited. The actor and
// correlation id are taken from the request context; events without an
// authenticated user are recorded as system events.
func (s *Service) Log(ctx context.Context, eventType, resourceType string, resourceID uuid.UUID, action string) {
	s.LogWithMetadata(ctx, eventType, resourceType, resourceID, action, nil)
}

// LogWithMetadata is Log with an extra free-form metadata document.
func (s *Service) LogWithMetadata(ctx context.Context, eventType, resourceType string, resourceID uuid.UUID, action string, metadata map[string]interface{}) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Interface("panic", r).Msg("audit logging panicked")
		}
	}()

	e := &Event{
		EventType:     eventType,
		ResourceType:  resourceType,
		Action:        action,
		CorrelationID: correlationID(ctx),
		Metadata:      metadata,
	}
	if resourceID != uuid.Nil {
		e.ResourceID = &resourceID
	}
	if u, ok := auth.CurrentUser(ctx); ok {
		e.ActorID = &u.ID
		email := u.Email
		e.ActorEmail = &email
	}
	if ip := middleware.ClientIPFromContext(ctx); ip != "" {
		e.IPAddress = &ip
	}

	if err := s.repo.Insert(ctx, e); err != nil {
		s.logger.Error().Err(err).
			Str("event_type", eventType).
			Str("resource_type", resourceType).
			Str("action", action).
			Msg("failed to persist audit event")
		return
	}

	s.logger.Info().
		Str("event_type", eventType).
		Str("resource_type", resourceType).
		Str("action", action).
		Str("correlation_id", e.CorrelationID).
		Msg("audit event logged")
}

// Search returns audit events matching the filter, newest first.
func (s *Service) Search(ctx context.Context, f Filter, limit, offset int) ([]*Event, int, error) {
	return s.repo.Search(ctx, f, limit, offset)
}

func correlationID(ctx context.Context) string {
	if rid := middleware.RequestIDFromContext(ctx); rid != "" {
		return rid
	}
	return uuid.NewString()
}
