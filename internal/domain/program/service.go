package program

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sonexus/portal/internal/domain/patient"
	"github.com/sonexus/portal/internal/platform/auth"
)

var (
	ErrProgramNotFound           = errors.New("program not found")
	ErrServiceNotFound           = errors.New("support service not found")
	ErrServiceEnrollmentNotFound = errors.New("service enrollment not found")
	ErrAlreadyEnrolled           = errors.New("patient already has an active enrollment in this service")
	ErrNotAuthenticated          = errors.New("user is not authenticated")
)

// Auditor records audit events. Implemented by the audit service.
type Auditor interface {
	Log(ctx context.Context, eventType, resourceType string, resourceID uuid.UUID, action string)
}

// PatientDirectory resolves patients. Satisfied by patient.Repository.
type PatientDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*patient.Patient, error)
}

type Service struct {
	programs    Repository
	services    ServiceRepository
	enrollments ServiceEnrollmentRepository
	patients    PatientDirectory
	audit       Auditor
	logger      zerolog.Logger
}

func NewService(
	programs Repository,
	services ServiceRepository,
	enrollments ServiceEnrollmentRepository,
	patients PatientDirectory,
	audit Auditor,
	logger zerolog.Logger,
) *Service {
	return &Service{
		programs:    programs,
		services:    services,
		enrollments: enrollments,
		patients:    patients,
		audit:       audit,
		logger:      logger,
	}
}

func (s *Service) CreateProgram(ctx context.Context, p *Program) error {
	if p.Name == "" {
		return fmt.Errorf("name is required")
	}
	p.Active = true
	if err := s.programs.Create(ctx, p); err != nil {
		return err
	}
	s.audit.Log(ctx, "PROGRAM_CREATED", "PROGRAM", p.ID, "CREATE")
	return nil
}

func (s *Service) GetProgram(ctx context.Context, id uuid.UUID) (*Program, error) {
	return s.programs.GetByID(ctx, id)
}

// ListActivePrograms returns every program currently open for enrollment.
func (s *Service) ListActivePrograms(ctx context.Context) ([]*Program, error) {
	return s.programs.ListActive(ctx)
}

// ListProgramServices returns the active support services of a program.
func (s *Service) ListProgramServices(ctx context.Context, programID uuid.UUID) ([]*SupportService, error) {
	if _, err := s.programs.GetByID(ctx, programID); err != nil {
		return nil, err
	}
	return s.services.ListActiveByProgram(ctx, programID)
}

// AddService attaches a support service to a program.
func (s *Service) AddService(ctx context.Context, programID uuid.UUID, svc *SupportService) error {
	if _, err := s.programs.GetByID(ctx, programID); err != nil {
		return err
	}
	if svc.Name == "" {
		return fmt.Errorf("name is required")
	}
	if svc.ServiceType == "" {
		return fmt.Errorf("service_type is required")
	}
	svc.ProgramID = programID
	svc.Active = true
	if err := s.services.Create(ctx, svc); err != nil {
		return err
	}

	s.logger.Info().
		Str("service_id", svc.ID.String()).
		Str("program_id", programID.String()).
		Str("name", svc.Name).
		Msg("support service added to program")
	s.audit.Log(ctx, "SERVICE_ADDED", "SUPPORT_SERVICE", svc.ID, "CREATE")
	return nil
}

// EnrollPatientInService enrolls a patient into a support service. A
// patient holds at most one ACTIVE enrollment per service.
func (s *Service) EnrollPatientInService(ctx context.Context, patientID uuid.UUID, e *ServiceEnrollment) error {
	user, ok := auth.CurrentUser(ctx)
	if !ok {
		return ErrNotAuthenticated
	}
	if _, err := s.patients.GetByID(ctx, patientID); err != nil {
		return err
	}
	if _, err := s.services.GetByID(ctx, e.ServiceID); err != nil {
		return err
	}

	existing, err := s.enrollments.GetByPatientAndService(ctx, patientID, e.ServiceID)
	if err != nil && !errors.Is(err, ErrServiceEnrollmentNotFound) {
		return err
	}
	if existing != nil && existing.Status == EnrollmentStatusActive {
		return ErrAlreadyEnrolled
	}

	e.PatientID = patientID
	e.Status = EnrollmentStatusActive
	e.EnrolledBy = user.ID
	if err := s.enrollments.Create(ctx, e); err != nil {
		return err
	}

	s.logger.Info().
		Str("enrollment_id", e.ID.String()).
		Str("patient_id", patientID.String()).
		Str("service_id", e.ServiceID.String()).
		Msg("patient enrolled in support service")
	s.audit.Log(ctx, "SERVICE_ENROLLMENT_CREATED", "SERVICE_ENROLLMENT", e.ID, "CREATE")
	return nil
}

// ListPatientServiceEnrollments returns every service enrollment a
// patient holds, in any status.
func (s *Service) ListPatientServiceEnrollments(ctx context.Context, patientID uuid.UUID) ([]*ServiceEnrollment, error) {
	if _, err := s.patients.GetByID(ctx, patientID); err != nil {
		return nil, err
	}
	return s.enrollments.ListByPatient(ctx, patientID)
}

// UpdateServiceEnrollmentStatus moves a service enrollment to a new
// status (completed, cancelled, and so on).
func (s *Service) UpdateServiceEnrollmentStatus(ctx context.Context, id uuid.UUID, status string) error {
	switch status {
	case EnrollmentStatusActive, EnrollmentStatusInactive, EnrollmentStatusCompleted, EnrollmentStatusCancelled:
	default:
		return fmt.Errorf("invalid service enrollment status %q", status)
	}
	if _, err := s.enrollments.GetByID(ctx, id); err != nil {
		return err
	}
	if err := s.enrollments.UpdateStatus(ctx, id, status); err != nil {
		return err
	}
	s.audit.Log(ctx, "SERVICE_ENROLLMENT_STATUS_CHANGED", "SERVICE_ENROLLMENT", id, "UPDATE")
	return nil
}
