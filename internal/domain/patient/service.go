package patient

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sonexus/portal/internal/platform/auth"
)

var (
	ErrNotAuthenticated = errors.New("user is not authenticated")
	ErrNoAffiliation    = errors.New("user must have an approved provider affiliation")
	ErrPatientNotFound  = errors.New("patient not found")
)

// AffiliationChecker reports whether a user holds an approved provider
// affiliation. Implemented by the provider service.
type AffiliationChecker interface {
	HasApprovedAffiliation(ctx context.Context, userID uuid.UUID) (bool, error)
}

// Auditor records audit events. Implemented by the audit service.
type Auditor interface {
	Log(ctx context.Context, eventType, resourceType string, resourceID uuid.UUID, action string)
}

type Service struct {
	repo         Repository
	affiliations AffiliationChecker
	audit        Auditor
	logger       zerolog.Logger
}

func NewService(repo Repository, affiliations AffiliationChecker, audit Auditor, logger zerolog.Logger) *Service {
	return &Service{repo: repo, affiliations: affiliations, audit: audit, logger: logger}
}

// requireAffiliatedUser returns the authenticated user, rejecting requests
// from users without an approved provider affiliation.
func (s *Service) requireAffiliatedUser(ctx context.Context) (*auth.User, error) {
	u, ok := auth.CurrentUser(ctx)
	if !ok {
		return nil, ErrNotAuthenticated
	}
	approved, err := s.affiliations.HasApprovedAffiliation(ctx, u.ID)
	if err != nil {
		return nil, fmt.Errorf("checking affiliation: %w", err)
	}
	if !approved {
		return nil, ErrNoAffiliation
	}
	return u, nil
}

func (s *Service) Create(ctx context.Context, p *Patient) error {
	u, err := s.requireAffiliatedUser(ctx)
	if err != nil {
		return err
	}
	if p.FirstName == "" {
		return fmt.Errorf("first_name is required")
	}
	if p.LastName == "" {
		return fmt.Errorf("last_name is required")
	}
	if p.DateOfBirth.IsZero() {
		return fmt.Errorf("date_of_birth is required")
	}

	n, err := s.repo.NextReferenceNumber(ctx)
	if err != nil {
		return fmt.Errorf("generating reference id: %w", err)
	}
	p.ReferenceID = fmt.Sprintf("PT%06d", n)
	p.CreatedBy = u.ID

	if err := s.repo.Create(ctx, p); err != nil {
		return err
	}

	s.logger.Info().
		Str("patient_id", p.ID.String()).
		Str("reference_id", p.ReferenceID).
		Str("created_by", u.ID.String()).
		Msg("patient created")
	s.audit.Log(ctx, "PATIENT_CREATED", "PATIENT", p.ID, "CREATE")
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Patient, error) {
	if _, err := s.requireAffiliatedUser(ctx); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetByReferenceID(ctx context.Context, referenceID string) (*Patient, error) {
	if _, err := s.requireAffiliatedUser(ctx); err != nil {
		return nil, err
	}
	return s.repo.GetByReferenceID(ctx, referenceID)
}

func (s *Service) Update(ctx context.Context, p *Patient) error {
	if _, err := s.requireAffiliatedUser(ctx); err != nil {
		return err
	}
	if p.ID == uuid.Nil {
		return fmt.Errorf("id is required")
	}
	if err := s.repo.Update(ctx, p); err != nil {
		return err
	}
	s.audit.Log(ctx, "PATIENT_UPDATED", "PATIENT", p.ID, "UPDATE")
	return nil
}

// Search lists patients matching the query across name, reference id, and
// email; an empty query lists all patients.
func (s *Service) Search(ctx context.Context, query string, limit, offset int) ([]*Patient, int, error) {
	if _, err := s.requireAffiliatedUser(ctx); err != nil {
		return nil, 0, err
	}
	if query == "" {
		return s.repo.List(ctx, limit, offset)
	}
	return s.repo.Search(ctx, query, limit, offset)
}
