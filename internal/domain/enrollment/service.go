package enrollment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sonexus/portal/internal/domain/patient"
	"github.com/sonexus/portal/internal/domain/program"
	"github.com/sonexus/portal/internal/domain/provider"
	"github.com/sonexus/portal/internal/platform/auth"
	"github.com/sonexus/portal/internal/platform/events"
)

var (
	ErrNotAuthenticated   = errors.New("user is not authenticated")
	ErrNoAffiliation      = errors.New("user must have an approved provider affiliation")
	ErrEnrollmentNotFound = errors.New("enrollment not found")
	ErrInvalidStatus      = errors.New("invalid enrollment status")
)

// EventEnrollmentSubmitted is published when a draft is submitted.
const EventEnrollmentSubmitted = "enrollment.submitted"

// TxRunner runs fn inside a database transaction. Wired to db.WithTx in
// production; a nil runner executes fn directly.
type TxRunner func(ctx context.Context, fn func(ctx context.Context) error) error

// PatientDirectory resolves patients. Satisfied by patient.Repository.
type PatientDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*patient.Patient, error)
}

// ProgramDirectory resolves programs. Satisfied by program.Repository.
type ProgramDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*program.Program, error)
}

// PrescriberDirectory resolves providers. Satisfied by provider.Repository.
type PrescriberDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*provider.Provider, error)
}

// UserDirectory resolves portal users. Satisfied by auth.UserStore.
type UserDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*auth.User, error)
}

// AffiliationChecker reports whether a user holds an approved provider
// affiliation. Implemented by the provider service.
type AffiliationChecker interface {
	HasApprovedAffiliation(ctx context.Context, userID uuid.UUID) (bool, error)
}

// Notifier delivers status-change emails to the enrollment's creator.
type Notifier interface {
	NotifyEnrollmentStatusChange(ctx context.Context, userEmail, patientName, newStatus string) error
}

// Auditor records audit events. Implemented by the audit service.
type Auditor interface {
	Log(ctx context.Context, eventType, resourceType string, resourceID uuid.UUID, action string)
	LogWithMetadata(ctx context.Context, eventType, resourceType string, resourceID uuid.UUID, action string, metadata map[string]interface{})
}

type Service struct {
	repo         Repository
	history      HistoryRepository
	patients     PatientDirectory
	programs     ProgramDirectory
	prescribers  PrescriberDirectory
	users        UserDirectory
	affiliations AffiliationChecker
	bus          events.Bus
	notifier     Notifier
	audit        Auditor
	tx           TxRunner
	logger       zerolog.Logger
}

func NewService(
	repo Repository,
	history HistoryRepository,
	patients PatientDirectory,
	programs ProgramDirectory,
	prescribers PrescriberDirectory,
	users UserDirectory,
	affiliations AffiliationChecker,
	bus events.Bus,
	notifier Notifier,
	audit Auditor,
	tx TxRunner,
	logger zerolog.Logger,
) *Service {
	if tx == nil {
		tx = func(ctx context.Context, fn func(ctx context.Context) error) error {
			return fn(ctx)
		}
	}
	return &Service{
		repo:         repo,
		history:      history,
		patients:     patients,
		programs:     programs,
		prescribers:  prescribers,
		users:        users,
		affiliations: affiliations,
		bus:          bus,
		notifier:     notifier,
		audit:        audit,
		tx:           tx,
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

// Save creates or updates the patient's enrollment. A patient has at most
// one DRAFT at a time; saving again rewrites that draft. With req.Submit
// the draft moves to SUBMITTED, gets a submission timestamp, and a status
// history row is recorded in the same transaction.
func (s *Service) Save(ctx context.Context, patientID uuid.UUID, req SaveRequest) (*Enrollment, error) {
	u, err := s.requireAffiliatedUser(ctx)
	if err != nil {
		return nil, err
	}

	if _, err := s.patients.GetByID(ctx, patientID); err != nil {
		return nil, err
	}
	if _, err := s.programs.GetByID(ctx, req.ProgramID); err != nil {
		return nil, err
	}
	if req.PrescriberID != nil {
		if _, err := s.prescribers.GetByID(ctx, *req.PrescriberID); err != nil {
			return nil, err
		}
	}

	drafts, err := s.repo.ListByPatientAndStatus(ctx, patientID, StatusDraft)
	if err != nil {
		return nil, err
	}

	var e *Enrollment
	if len(drafts) == 0 {
		e = &Enrollment{
			PatientID: patientID,
			CreatedBy: u.ID,
			Status:    StatusDraft,
		}
	} else {
		e = drafts[0]
	}
	e.ProgramID = req.ProgramID
	e.PrescriberID = req.PrescriberID
	e.DiagnosisCode = req.DiagnosisCode
	e.DiagnosisDescription = req.DiagnosisDescription
	e.MedicationName = req.MedicationName
	e.Notes = req.Notes

	if req.Submit {
		now := time.Now().UTC()
		e.Status = StatusSubmitted
		e.SubmittedAt = &now
	}

	err = s.tx(ctx, func(ctx context.Context) error {
		if e.ID == uuid.Nil {
			if err := s.repo.Create(ctx, e); err != nil {
				return err
			}
		} else {
			if err := s.repo.Update(ctx, e); err != nil {
				return err
			}
		}
		if req.Submit {
			reason := "Initial submission"
			return s.history.Insert(ctx, &StatusChange{
				EnrollmentID: e.ID,
				ToStatus:     StatusSubmitted,
				Reason:       &reason,
				ChangedBy:    u.ID,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if req.Submit {
		s.logger.Info().
			Str("enrollment_id", e.ID.String()).
			Str("patient_id", patientID.String()).
			Str("program_id", req.ProgramID.String()).
			Msg("enrollment submitted")
		s.audit.LogWithMetadata(ctx, "ENROLLMENT_SUBMITTED", "ENROLLMENT", e.ID, "SUBMIT", map[string]interface{}{
			"patientId": patientID.String(),
			"programId": req.ProgramID.String(),
		})
		s.bus.Publish(ctx, events.New(EventEnrollmentSubmitted, map[string]interface{}{
			"enrollmentId": e.ID.String(),
			"patientId":    patientID.String(),
			"programId":    req.ProgramID.String(),
		}))
	} else {
		s.logger.Info().
			Str("enrollment_id", e.ID.String()).
			Str("patient_id", patientID.String()).
			Msg("enrollment saved as draft")
	}

	return e, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Enrollment, error) {
	if _, err := s.requireAffiliatedUser(ctx); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListForPatient(ctx context.Context, patientID uuid.UUID) ([]*Enrollment, error) {
	if _, err := s.requireAffiliatedUser(ctx); err != nil {
		return nil, err
	}
	return s.repo.ListByPatient(ctx, patientID)
}

// History returns the status transitions of an enrollment, oldest first.
func (s *Service) History(ctx context.Context, id uuid.UUID) ([]*StatusChange, error) {
	if _, err := s.requireAffiliatedUser(ctx); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.history.ListByEnrollment(ctx, id)
}

// UpdateStatus moves an enrollment to a new status, recording a history row
// in the same transaction. The enrollment's creator is notified by email;
// a notification failure does not fail the update.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, newStatus, reason string) (*Enrollment, error) {
	admin, ok := auth.CurrentUser(ctx)
	if !ok {
		return nil, ErrNotAuthenticated
	}
	if !ValidStatus(newStatus) {
		return nil, ErrInvalidStatus
	}

	e, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	oldStatus := e.Status
	e.Status = newStatus

	err = s.tx(ctx, func(ctx context.Context) error {
		if err := s.repo.Update(ctx, e); err != nil {
			return err
		}
		c := &StatusChange{
			EnrollmentID: e.ID,
			FromStatus:   &oldStatus,
			ToStatus:     newStatus,
			ChangedBy:    admin.ID,
		}
		if reason != "" {
			c.Reason = &reason
		}
		return s.history.Insert(ctx, c)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("enrollment_id", e.ID.String()).
		Str("from", oldStatus).
		Str("to", newStatus).
		Str("changed_by", admin.ID.String()).
		Msg("enrollment status updated")
	s.audit.Log(ctx, "ENROLLMENT_STATUS_CHANGED", "ENROLLMENT", e.ID, "UPDATE")

	s.notifyStatusChange(ctx, e, newStatus)

	return e, nil
}

func (s *Service) notifyStatusChange(ctx context.Context, e *Enrollment, newStatus string) {
	creator, err := s.users.GetByID(ctx, e.CreatedBy)
	if err != nil {
		s.logger.Warn().Err(err).Msg("enrollment creator lookup failed, skipping notification")
		return
	}
	patientName := ""
	if p, err := s.patients.GetByID(ctx, e.PatientID); err == nil {
		patientName = p.FullName()
	}
	if err := s.notifier.NotifyEnrollmentStatusChange(ctx, creator.Email, patientName, newStatus); err != nil {
		s.logger.Warn().Err(err).Msg("enrollment status notification failed")
	}
}
