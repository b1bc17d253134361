package forms

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, f *Form) error
	GetByID(ctx context.Context, id uuid.UUID) (*Form, error)
	Search(ctx context.Context, filter SearchFilter, limit, offset int) ([]*Form, int, error)
	ListVersions(ctx context.Context, formID uuid.UUID) ([]*Form, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type DownloadRepository interface {
	Insert(ctx context.Context, d *DownloadRecord) error
	CountByForm(ctx context.Context, formID uuid.UUID) (int64, error)
}
