package benefits

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sonexus/portal/internal/domain/patient"
	"github.com/sonexus/portal/internal/domain/program"
	"github.com/sonexus/portal/internal/platform/auth"
	"github.com/sonexus/portal/internal/platform/eligibility"
)

var (
	ErrNotAuthenticated      = errors.New("user is not authenticated")
	ErrNoAffiliation         = errors.New("user must have an approved provider affiliation")
	ErrInvestigationNotFound = errors.New("investigation not found")
	ErrInvalidType           = errors.New("investigation type must be MEDICAL or PHARMACY")
)

// Investigation results are trusted for 30 days, after which callers should
// re-run before relying on them.
const resultTTL = 30 * 24 * time.Hour

// PatientDirectory resolves patients. Satisfied by patient.Repository.
type PatientDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*patient.Patient, error)
}

// ProgramDirectory resolves programs. Satisfied by program.Repository.
type ProgramDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*program.Program, error)
}

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
	patients     PatientDirectory
	programs     ProgramDirectory
	affiliations AffiliationChecker
	investigator eligibility.Investigator
	audit        Auditor
	logger       zerolog.Logger
}

func NewService(
	repo Repository,
	patients PatientDirectory,
	programs ProgramDirectory,
	affiliations AffiliationChecker,
	investigator eligibility.Investigator,
	audit Auditor,
	logger zerolog.Logger,
) *Service {
	return &Service{
		repo:         repo,
		patients:     patients,
		programs:     programs,
		affiliations: affiliations,
		investigator: investigator,
		audit:        audit,
		logger:       logger,
	}
}

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

// Run executes a benefits investigation for a patient and persists the
// result snapshot. Adapter errors pass through untouched so the handler can
// map transport failures.
func (s *Service) Run(ctx context.Context, patientID uuid.UUID, req RunRequest) (*Investigation, error) {
	u, err := s.requireAffiliatedUser(ctx)
	if err != nil {
		return nil, err
	}

	if _, err := s.patients.GetByID(ctx, patientID); err != nil {
		return nil, err
	}
	if req.ProgramID != nil {
		if _, err := s.programs.GetByID(ctx, *req.ProgramID); err != nil {
			return nil, err
		}
	}
	if req.PayerName == "" {
		return nil, fmt.Errorf("payer_name is required")
	}

	invType := strings.ToUpper(req.InvestigationType)
	elig := eligibility.Request{
		PatientID:      patientID.String(),
		MemberID:       req.MemberID,
		PayerName:      req.PayerName,
		PayerPlanID:    req.PayerPlanID,
		MedicationName: req.MedicationName,
	}

	var result *eligibility.Result
	switch invType {
	case TypeMedical:
		result, err = s.investigator.InvestigateMedical(ctx, elig)
	case TypePharmacy:
		result, err = s.investigator.InvestigatePharmacy(ctx, elig)
	default:
		return nil, ErrInvalidType
	}
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	inv := &Investigation{
		PatientID:                 patientID,
		ProgramID:                 req.ProgramID,
		InvestigationType:         invType,
		PayerName:                 req.PayerName,
		CoverageStatus:            result.CoverageStatus,
		PriorAuthRequired:         result.PriorAuthRequired,
		DeductibleApplies:         result.DeductibleApplies,
		SpecialtyPharmacyRequired: result.SpecialtyPharmacyRequired,
		ResultPayload:             result.AdditionalData,
		ExpiresAt:                 now.Add(resultTTL),
		CreatedBy:                 u.ID,
	}
	if req.PayerPlanID != "" {
		inv.PayerPlanID = &req.PayerPlanID
	}
	if req.MemberID != "" {
		inv.MemberID = &req.MemberID
	}
	if req.PatientState != "" {
		inv.PatientState = &req.PatientState
	}
	if req.MedicationName != "" {
		inv.MedicationName = &req.MedicationName
	}
	if result.CoverageType != "" {
		inv.CoverageType = &result.CoverageType
	}
	if result.Notes != "" {
		inv.Notes = &result.Notes
	}

	if err := s.repo.Create(ctx, inv); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("investigation_id", inv.ID.String()).
		Str("patient_id", patientID.String()).
		Str("type", invType).
		Str("coverage_type", result.CoverageType).
		Bool("prior_auth", result.PriorAuthRequired).
		Msg("benefits investigation completed")
	s.audit.Log(ctx, "BENEFITS_INVESTIGATION_RUN", "BENEFITS_INVESTIGATION", inv.ID, "CREATE")

	return inv, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Investigation, error) {
	if _, err := s.requireAffiliatedUser(ctx); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, id)
}

// ListForPatient returns the patient's investigations, newest first.
func (s *Service) ListForPatient(ctx context.Context, patientID uuid.UUID) ([]*Investigation, error) {
	if _, err := s.requireAffiliatedUser(ctx); err != nil {
		return nil, err
	}
	if _, err := s.patients.GetByID(ctx, patientID); err != nil {
		return nil, err
	}
	return s.repo.ListByPatient(ctx, patientID)
}

// Latest returns the patient's most recent investigation of the given type.
func (s *Service) Latest(ctx context.Context, patientID uuid.UUID, investigationType string) (*Investigation, error) {
	if _, err := s.requireAffiliatedUser(ctx); err != nil {
		return nil, err
	}
	invType := strings.ToUpper(investigationType)
	if invType != TypeMedical && invType != TypePharmacy {
		return nil, ErrInvalidType
	}
	return s.repo.LatestByPatientAndType(ctx, patientID, invType)
}
