package enrollment

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, e *Enrollment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Enrollment, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Enrollment, error)
	ListByPatientAndStatus(ctx context.Context, patientID uuid.UUID, status string) ([]*Enrollment, error)
	// ListSubmittedBefore returns SUBMITTED enrollments whose submission
	// predates the cutoff and has had no status update since.
	ListSubmittedBefore(ctx context.Context, cutoff time.Time) ([]*Enrollment, error)
	Update(ctx context.Context, e *Enrollment) error
}

type HistoryRepository interface {
	Insert(ctx context.Context, c *StatusChange) error
	ListByEnrollment(ctx context.Context, enrollmentID uuid.UUID) ([]*StatusChange, error)
}
