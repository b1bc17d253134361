package provider

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sonexus/portal/internal/platform/events"
)

// RegisterEventHandlers subscribes the affiliation event handlers on the bus.
// VerifyAffiliation only publishes affiliation.approved; the handler
// registered here resolves the requesting user and delivers the approval
// email, keeping notification delivery off the verification path.
func RegisterEventHandlers(bus events.Bus, users UserDirectory, notifier Notifier, logger zerolog.Logger) {
	bus.Subscribe(EventAffiliationApproved, func(ctx context.Context, e events.Event) {
		userID, err := uuid.Parse(payloadString(e, "userId"))
		if err != nil {
			logger.Warn().
				Str("event_id", e.ID).
				Msg("affiliation.approved event carries no user id")
			return
		}
		u, err := users.GetByID(ctx, userID)
		if err != nil {
			logger.Warn().Err(err).
				Str("event_id", e.ID).
				Str("user_id", userID.String()).
				Msg("could not resolve user for affiliation approval notification")
			return
		}
		if err := notifier.NotifyAffiliationApproved(ctx, u.Email, payloadString(e, "providerName")); err != nil {
			logger.Warn().Err(err).
				Str("event_id", e.ID).
				Msg("affiliation approval notification failed")
		}
	})
}

func payloadString(e events.Event, key string) string {
	s, _ := e.Payload[key].(string)
	return s
}
