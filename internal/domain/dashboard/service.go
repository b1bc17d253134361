package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sonexus/portal/internal/domain/benefits"
	"github.com/sonexus/portal/internal/domain/enrollment"
	"github.com/sonexus/portal/internal/domain/messaging"
	"github.com/sonexus/portal/internal/domain/patient"
	"github.com/sonexus/portal/internal/platform/auth"
)

var ErrNotAuthenticated = errors.New("user is not authenticated")

const (
	staleEnrollmentAfter    = 7 * 24 * time.Hour
	enrollmentEscalateAfter = 14
	benefitsEscalateAfter   = 30
	pageSize                = 200
)

// EnrollmentSource lists stale program enrollments. Satisfied by
// enrollment.Repository.
type EnrollmentSource interface {
	ListSubmittedBefore(ctx context.Context, cutoff time.Time) ([]*enrollment.Enrollment, error)
}

// BenefitsSource lists investigations past their expiry. Satisfied by
// benefits.Repository.
type BenefitsSource interface {
	ListExpired(ctx context.Context) ([]*benefits.Investigation, error)
}

// PatientDirectory resolves and pages patients. Satisfied by
// patient.Repository.
type PatientDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*patient.Patient, error)
	List(ctx context.Context, limit, offset int) ([]*patient.Patient, int, error)
}

// ServiceEnrollmentChecker reports whether a patient holds any ACTIVE
// support-service enrollment. Satisfied by
// program.ServiceEnrollmentRepository.
type ServiceEnrollmentChecker interface {
	HasActiveByPatient(ctx context.Context, patientID uuid.UUID) (bool, error)
}

// ThreadSource pages the user's message threads. Satisfied by
// messaging.ThreadRepository.
type ThreadSource interface {
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*messaging.Thread, int, error)
}

// UnreadCounter counts unread messages per thread. Satisfied by
// messaging.MessageRepository.
type UnreadCounter interface {
	CountUnread(ctx context.Context, threadID, userID uuid.UUID) (int64, error)
}

type Service struct {
	enrollments EnrollmentSource
	benefits    BenefitsSource
	patients    PatientDirectory
	services    ServiceEnrollmentChecker
	threads     ThreadSource
	messages    UnreadCounter
	logger      zerolog.Logger
}

func NewService(
	enrollments EnrollmentSource,
	benefits BenefitsSource,
	patients PatientDirectory,
	services ServiceEnrollmentChecker,
	threads ThreadSource,
	messages UnreadCounter,
	logger zerolog.Logger,
) *Service {
	return &Service{
		enrollments: enrollments,
		benefits:    benefits,
		patients:    patients,
		services:    services,
		threads:     threads,
		messages:    messages,
		logger:      logger,
	}
}

// NextActions composes the suggested work queue for the current user:
// enrollments pending too long, expired benefits results, patients with
// no active support service, and unread message threads. Results are
// sorted most urgent first.
func (s *Service) NextActions(ctx context.Context) ([]*Action, error) {
	user, ok := auth.CurrentUser(ctx)
	if !ok {
		return nil, ErrNotAuthenticated
	}

	now := time.Now().UTC()
	var actions []*Action

	stale, err := s.staleEnrollmentActions(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("checking stale enrollments: %w", err)
	}
	actions = append(actions, stale...)

	expired, err := s.expiredBenefitsActions(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("checking expired benefits: %w", err)
	}
	actions = append(actions, expired...)

	unserved, err := s.patientsWithoutServicesActions(ctx)
	if err != nil {
		return nil, fmt.Errorf("checking patients without services: %w", err)
	}
	actions = append(actions, unserved...)

	unread, err := s.unreadMessagesAction(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("checking unread messages: %w", err)
	}
	if unread != nil {
		actions = append(actions, unread)
	}

	sort.SliceStable(actions, func(i, j int) bool {
		ri, rj := priorityRank(actions[i].Priority), priorityRank(actions[j].Priority)
		if ri != rj {
			return ri < rj
		}
		return overdue(actions[i]) > overdue(actions[j])
	})

	s.logger.Info().
		Int("count", len(actions)).
		Str("user_id", user.ID.String()).
		Msg("generated next actions")
	return actions, nil
}

func (s *Service) staleEnrollmentActions(ctx context.Context, now time.Time) ([]*Action, error) {
	cutoff := now.Add(-staleEnrollmentAfter)
	stale, err := s.enrollments.ListSubmittedBefore(ctx, cutoff)
	if err != nil {
		return nil, err
	}

	var actions []*Action
	for _, e := range stale {
		if e.SubmittedAt == nil {
			continue
		}
		p, err := s.patients.GetByID(ctx, e.PatientID)
		if err != nil {
			s.logger.Warn().Err(err).
				Str("enrollment_id", e.ID.String()).
				Msg("skipping stale enrollment with unresolvable patient")
			continue
		}
		days := daysBetween(*e.SubmittedAt, now)
		priority := PriorityMedium
		if days > enrollmentEscalateAfter {
			priority = PriorityHigh
		}
		actions = append(actions, &Action{
			ID:           uuid.NewString(),
			Title:        "Follow up on enrollment",
			Description:  fmt.Sprintf("Enrollment for %s has been pending for %d days", p.FullName(), days),
			ActionType:   TypeEnrollment,
			Priority:     priority,
			ResourceID:   &e.ID,
			ResourceName: strPtr(p.FullName()),
			ActionURL:    "/patients/" + p.ID.String(),
			Icon:         "schedule",
			DaysOverdue:  &days,
		})
	}
	return actions, nil
}

func (s *Service) expiredBenefitsActions(ctx context.Context, now time.Time) ([]*Action, error) {
	expired, err := s.benefits.ListExpired(ctx)
	if err != nil {
		return nil, err
	}

	var actions []*Action
	for _, inv := range expired {
		p, err := s.patients.GetByID(ctx, inv.PatientID)
		if err != nil {
			s.logger.Warn().Err(err).
				Str("investigation_id", inv.ID.String()).
				Msg("skipping expired investigation with unresolvable patient")
			continue
		}
		days := daysBetween(inv.ExpiresAt, now)
		priority := PriorityMedium
		if days > benefitsEscalateAfter {
			priority = PriorityHigh
		}
		actions = append(actions, &Action{
			ID:           uuid.NewString(),
			Title:        "Re-run benefits investigation",
			Description:  fmt.Sprintf("Benefits investigation for %s expired %d days ago", p.FullName(), days),
			ActionType:   TypeBenefits,
			Priority:     priority,
			ResourceID:   &p.ID,
			ResourceName: strPtr(p.FullName()),
			ActionURL:    "/patients/" + p.ID.String(),
			Icon:         "update",
			DaysOverdue:  &days,
		})
	}
	return actions, nil
}

func (s *Service) patientsWithoutServicesActions(ctx context.Context) ([]*Action, error) {
	var actions []*Action
	for offset := 0; ; offset += pageSize {
		page, total, err := s.patients.List(ctx, pageSize, offset)
		if err != nil {
			return nil, err
		}
		for _, p := range page {
			active, err := s.services.HasActiveByPatient(ctx, p.ID)
			if err != nil {
				return nil, err
			}
			if active {
				continue
			}
			actions = append(actions, &Action{
				ID:           uuid.NewString(),
				Title:        "Enroll in support services",
				Description:  fmt.Sprintf("%s is not enrolled in any support services", p.FullName()),
				ActionType:   TypeService,
				Priority:     PriorityLow,
				ResourceID:   &p.ID,
				ResourceName: strPtr(p.FullName()),
				ActionURL:    "/patients/" + p.ID.String(),
				Icon:         "add_circle",
			})
		}
		if offset+len(page) >= total || len(page) == 0 {
			break
		}
	}
	return actions, nil
}

func (s *Service) unreadMessagesAction(ctx context.Context, userID uuid.UUID) (*Action, error) {
	threadsWithUnread := 0
	for offset := 0; ; offset += pageSize {
		page, total, err := s.threads.ListByUser(ctx, userID, pageSize, offset)
		if err != nil {
			return nil, err
		}
		for _, th := range page {
			n, err := s.messages.CountUnread(ctx, th.ID, userID)
			if err != nil {
				return nil, err
			}
			if n > 0 {
				threadsWithUnread++
			}
		}
		if offset+len(page) >= total || len(page) == 0 {
			break
		}
	}
	if threadsWithUnread == 0 {
		return nil, nil
	}
	return &Action{
		ID:          uuid.NewString(),
		Title:       "Review unread messages",
		Description: fmt.Sprintf("You have %d message thread(s) with unread messages", threadsWithUnread),
		ActionType:  TypeMessage,
		Priority:    PriorityMedium,
		ActionURL:   "/messages",
		Icon:        "mail",
	}, nil
}

func daysBetween(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}

func overdue(a *Action) int {
	if a.DaysOverdue == nil {
		return 0
	}
	return *a.DaysOverdue
}

func strPtr(s string) *string { return &s }
