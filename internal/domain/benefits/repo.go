package benefits

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, i *Investigation) error
	GetByID(ctx context.Context, id uuid.UUID) (*Investigation, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Investigation, error)
	LatestByPatientAndType(ctx context.Context, patientID uuid.UUID, investigationType string) (*Investigation, error)
	ListExpired(ctx context.Context) ([]*Investigation, error)
}
