package provider

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, p *Provider) error
	GetByID(ctx context.Context, id uuid.UUID) (*Provider, error)
	GetByNPI(ctx context.Context, npi string) (*Provider, error)
	Update(ctx context.Context, p *Provider) error
	List(ctx context.Context, limit, offset int) ([]*Provider, int, error)
	Search(ctx context.Context, query string, limit, offset int) ([]*Provider, int, error)
}

type AffiliationRepository interface {
	Create(ctx context.Context, a *Affiliation) error
	GetByID(ctx context.Context, id uuid.UUID) (*Affiliation, error)
	GetByUserAndProvider(ctx context.Context, userID, providerID uuid.UUID) (*Affiliation, error)
	Update(ctx context.Context, a *Affiliation) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*Affiliation, error)
	ListByStatus(ctx context.Context, status string) ([]*Affiliation, error)
	CountByUserAndStatus(ctx context.Context, userID uuid.UUID, status string) (int, error)
}
