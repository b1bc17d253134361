package provider

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sonexus/portal/internal/platform/auth"
	"github.com/sonexus/portal/internal/platform/events"
)

var (
	ErrNotAuthenticated    = errors.New("user is not authenticated")
	ErrProviderNotFound    = errors.New("provider not found")
	ErrAffiliationNotFound = errors.New("affiliation not found")
	ErrAffiliationExists   = errors.New("affiliation request already exists for this provider")
	ErrAlreadyProcessed    = errors.New("affiliation has already been processed")
)

// EventAffiliationApproved is published when an admin approves an
// affiliation request.
const EventAffiliationApproved = "affiliation.approved"

var npiPattern = regexp.MustCompile(`^\d{10}$`)

// UserDirectory resolves portal users. Satisfied by auth.UserStore.
type UserDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*auth.User, error)
}

// Notifier delivers affiliation decisions to the requesting user.
type Notifier interface {
	NotifyAffiliationApproved(ctx context.Context, userEmail, providerName string) error
}

// Auditor records audit events. Implemented by the audit service.
type Auditor interface {
	Log(ctx context.Context, eventType, resourceType string, resourceID uuid.UUID, action string)
}

type Service struct {
	providers    Repository
	affiliations AffiliationRepository
	bus          events.Bus
	audit        Auditor
	logger       zerolog.Logger
}

func NewService(
	providers Repository,
	affiliations AffiliationRepository,
	bus events.Bus,
	audit Auditor,
	logger zerolog.Logger,
) *Service {
	return &Service{
		providers:    providers,
		affiliations: affiliations,
		bus:          bus,
		audit:        audit,
		logger:       logger,
	}
}

// -- Providers --

func (s *Service) CreateProvider(ctx context.Context, p *Provider) error {
	if !npiPattern.MatchString(p.NPI) {
		return fmt.Errorf("npi must be exactly 10 digits")
	}
	if p.Name == "" {
		return fmt.Errorf("name is required")
	}
	if existing, err := s.providers.GetByNPI(ctx, p.NPI); err == nil && existing != nil {
		return fmt.Errorf("provider with npi %s already exists", p.NPI)
	}
	p.Active = true
	if err := s.providers.Create(ctx, p); err != nil {
		return err
	}
	s.audit.Log(ctx, "PROVIDER_CREATED", "PROVIDER", p.ID, "CREATE")
	return nil
}

func (s *Service) GetProvider(ctx context.Context, id uuid.UUID) (*Provider, error) {
	return s.providers.GetByID(ctx, id)
}

func (s *Service) UpdateProvider(ctx context.Context, p *Provider) error {
	if p.ID == uuid.Nil {
		return fmt.Errorf("id is required")
	}
	if err := s.providers.Update(ctx, p); err != nil {
		return err
	}
	s.audit.Log(ctx, "PROVIDER_UPDATED", "PROVIDER", p.ID, "UPDATE")
	return nil
}

// SearchProviders lists providers matching the query across name, NPI, and
// specialty; an empty query lists all providers.
func (s *Service) SearchProviders(ctx context.Context, query string, limit, offset int) ([]*Provider, int, error) {
	if query == "" {
		return s.providers.List(ctx, limit, offset)
	}
	return s.providers.Search(ctx, query, limit, offset)
}

// -- Affiliations --

func (s *Service) RequestAffiliation(ctx context.Context, providerID uuid.UUID) (*AffiliationDetail, error) {
	u, ok := auth.CurrentUser(ctx)
	if !ok {
		return nil, ErrNotAuthenticated
	}

	p, err := s.providers.GetByID(ctx, providerID)
	if err != nil {
		return nil, err
	}

	if existing, err := s.affiliations.GetByUserAndProvider(ctx, u.ID, providerID); err == nil && existing != nil {
		return nil, ErrAffiliationExists
	}

	a := &Affiliation{
		UserID:     u.ID,
		ProviderID: providerID,
		Status:     StatusPending,
	}
	if err := s.affiliations.Create(ctx, a); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("user_id", u.ID.String()).
		Str("provider_id", providerID.String()).
		Msg("provider affiliation requested")
	s.audit.Log(ctx, "AFFILIATION_REQUESTED", "AFFILIATION", a.ID, "CREATE")

	return &AffiliationDetail{Affiliation: *a, Provider: p}, nil
}

func (s *Service) ListUserAffiliations(ctx context.Context) ([]*AffiliationDetail, error) {
	u, ok := auth.CurrentUser(ctx)
	if !ok {
		return nil, ErrNotAuthenticated
	}
	list, err := s.affiliations.ListByUser(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	return s.hydrate(ctx, list)
}

// ListPendingAffiliations returns every affiliation awaiting review.
func (s *Service) ListPendingAffiliations(ctx context.Context) ([]*AffiliationDetail, error) {
	list, err := s.affiliations.ListByStatus(ctx, StatusPending)
	if err != nil {
		return nil, err
	}
	return s.hydrate(ctx, list)
}

// VerifyAffiliation approves or rejects a pending affiliation request. On
// approval an affiliation.approved event is published; the bus handler
// registered by RegisterEventHandlers emails the requesting user.
func (s *Service) VerifyAffiliation(ctx context.Context, affiliationID uuid.UUID, approved bool, reason string) (*AffiliationDetail, error) {
	admin, ok := auth.CurrentUser(ctx)
	if !ok {
		return nil, ErrNotAuthenticated
	}

	a, err := s.affiliations.GetByID(ctx, affiliationID)
	if err != nil {
		return nil, err
	}
	if a.Status != StatusPending {
		return nil, ErrAlreadyProcessed
	}

	now := time.Now().UTC()
	if approved {
		a.Status = StatusApproved
	} else {
		a.Status = StatusRejected
	}
	a.VerifiedAt = &now
	a.VerifiedBy = &admin.ID
	if reason != "" {
		a.VerificationReason = &reason
	}

	if err := s.affiliations.Update(ctx, a); err != nil {
		return nil, err
	}

	p, _ := s.providers.GetByID(ctx, a.ProviderID)

	s.logger.Info().
		Str("affiliation_id", a.ID.String()).
		Bool("approved", approved).
		Str("verified_by", admin.ID.String()).
		Msg("provider affiliation verified")
	s.audit.Log(ctx, "AFFILIATION_VERIFIED", "AFFILIATION", a.ID, "UPDATE")

	if approved {
		providerName := ""
		if p != nil {
			providerName = p.Name
		}
		s.bus.Publish(ctx, events.New(EventAffiliationApproved, map[string]interface{}{
			"affiliationId": a.ID.String(),
			"userId":        a.UserID.String(),
			"providerId":    a.ProviderID.String(),
			"providerName":  providerName,
		}))
	}

	return &AffiliationDetail{Affiliation: *a, Provider: p}, nil
}

// HasApprovedAffiliation reports whether the user holds at least one
// approved provider affiliation.
func (s *Service) HasApprovedAffiliation(ctx context.Context, userID uuid.UUID) (bool, error) {
	n, err := s.affiliations.CountByUserAndStatus(ctx, userID, StatusApproved)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Service) hydrate(ctx context.Context, list []*Affiliation) ([]*AffiliationDetail, error) {
	out := make([]*AffiliationDetail, 0, len(list))
	for _, a := range list {
		p, err := s.providers.GetByID(ctx, a.ProviderID)
		if err != nil {
			p = nil
		}
		out = append(out, &AffiliationDetail{Affiliation: *a, Provider: p})
	}
	return out, nil
}
