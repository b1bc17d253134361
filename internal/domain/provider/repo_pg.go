package provider

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sonexus/portal/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

func conn(ctx context.Context, pool *pgxpool.Pool) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return pool
}

// =========== Provider Repository ===========

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

const providerCols = `id, npi, name, specialty, address_line1, address_line2,
	city, state, zip_code, phone, fax, email, active, created_at, updated_at`

func scanProvider(row pgx.Row) (*Provider, error) {
	var p Provider
	err := row.Scan(&p.ID, &p.NPI, &p.Name, &p.Specialty, &p.AddressLine1, &p.AddressLine2,
		&p.City, &p.State, &p.ZipCode, &p.Phone, &p.Fax, &p.Email, &p.Active,
		&p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrProviderNotFound
	}
	return &p, err
}

func (r *repoPG) Create(ctx context.Context, p *Provider) error {
	p.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO provider (id, npi, name, specialty, address_line1, address_line2,
			city, state, zip_code, phone, fax, email, active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		p.ID, p.NPI, p.Name, p.Specialty, p.AddressLine1, p.AddressLine2,
		p.City, p.State, p.ZipCode, p.Phone, p.Fax, p.Email, p.Active)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Provider, error) {
	return scanProvider(conn(ctx, r.pool).QueryRow(ctx, `SELECT `+providerCols+` FROM provider WHERE id = $1`, id))
}

func (r *repoPG) GetByNPI(ctx context.Context, npi string) (*Provider, error) {
	return scanProvider(conn(ctx, r.pool).QueryRow(ctx, `SELECT `+providerCols+` FROM provider WHERE npi = $1`, npi))
}

func (r *repoPG) Update(ctx context.Context, p *Provider) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE provider SET name=$2, specialty=$3, address_line1=$4, address_line2=$5,
			city=$6, state=$7, zip_code=$8, phone=$9, fax=$10, email=$11, active=$12,
			updated_at=NOW()
		WHERE id = $1`,
		p.ID, p.Name, p.Specialty, p.AddressLine1, p.AddressLine2,
		p.City, p.State, p.ZipCode, p.Phone, p.Fax, p.Email, p.Active)
	return err
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*Provider, int, error) {
	var total int
	if err := conn(ctx, r.pool).QueryRow(ctx, `SELECT COUNT(*) FROM provider WHERE active`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+providerCols+` FROM provider WHERE active ORDER BY name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	return collectProviders(rows, total)
}

func (r *repoPG) Search(ctx context.Context, query string, limit, offset int) ([]*Provider, int, error) {
	pattern := "%" + query + "%"
	where := ` WHERE active AND (name ILIKE $1 OR npi ILIKE $1 OR specialty ILIKE $1)`

	var total int
	if err := conn(ctx, r.pool).QueryRow(ctx, `SELECT COUNT(*) FROM provider`+where, pattern).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+providerCols+` FROM provider`+where+` ORDER BY name LIMIT $2 OFFSET $3`,
		pattern, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	return collectProviders(rows, total)
}

func collectProviders(rows pgx.Rows, total int) ([]*Provider, int, error) {
	var items []*Provider
	for rows.Next() {
		p, err := scanProvider(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, nil
}

// =========== Affiliation Repository ===========

type affiliationRepoPG struct{ pool *pgxpool.Pool }

func NewAffiliationRepoPG(pool *pgxpool.Pool) AffiliationRepository {
	return &affiliationRepoPG{pool: pool}
}

const affiliationCols = `id, user_id, provider_id, status, requested_at,
	verified_at, verified_by, verification_reason`

func scanAffiliation(row pgx.Row) (*Affiliation, error) {
	var a Affiliation
	err := row.Scan(&a.ID, &a.UserID, &a.ProviderID, &a.Status, &a.RequestedAt,
		&a.VerifiedAt, &a.VerifiedBy, &a.VerificationReason)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAffiliationNotFound
	}
	return &a, err
}

func (r *affiliationRepoPG) Create(ctx context.Context, a *Affiliation) error {
	a.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO provider_affiliation (id, user_id, provider_id, status)
		VALUES ($1,$2,$3,$4)`,
		a.ID, a.UserID, a.ProviderID, a.Status)
	return err
}

func (r *affiliationRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Affiliation, error) {
	return scanAffiliation(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+affiliationCols+` FROM provider_affiliation WHERE id = $1`, id))
}

func (r *affiliationRepoPG) GetByUserAndProvider(ctx context.Context, userID, providerID uuid.UUID) (*Affiliation, error) {
	return scanAffiliation(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+affiliationCols+` FROM provider_affiliation WHERE user_id = $1 AND provider_id = $2`,
		userID, providerID))
}

func (r *affiliationRepoPG) Update(ctx context.Context, a *Affiliation) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE provider_affiliation SET status=$2, verified_at=$3, verified_by=$4,
			verification_reason=$5
		WHERE id = $1`,
		a.ID, a.Status, a.VerifiedAt, a.VerifiedBy, a.VerificationReason)
	return err
}

func (r *affiliationRepoPG) ListByUser(ctx context.Context, userID uuid.UUID) ([]*Affiliation, error) {
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+affiliationCols+` FROM provider_affiliation WHERE user_id = $1 ORDER BY requested_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAffiliations(rows)
}

func (r *affiliationRepoPG) ListByStatus(ctx context.Context, status string) ([]*Affiliation, error) {
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+affiliationCols+` FROM provider_affiliation WHERE status = $1 ORDER BY requested_at`, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAffiliations(rows)
}

func (r *affiliationRepoPG) CountByUserAndStatus(ctx context.Context, userID uuid.UUID, status string) (int, error) {
	var n int
	err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT COUNT(*) FROM provider_affiliation WHERE user_id = $1 AND status = $2`,
		userID, status).Scan(&n)
	return n, err
}

func collectAffiliations(rows pgx.Rows) ([]*Affiliation, error) {
	var items []*Affiliation
	for rows.Next() {
		a, err := scanAffiliation(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, nil
}
