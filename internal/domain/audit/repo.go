package audit

import (
	"context"
)

type Repository interface {
	Insert(ctx context.Context, e *Event) error
	Search(ctx context.Context, f Filter, limit, offset int) ([]*Event, int, error)
}
