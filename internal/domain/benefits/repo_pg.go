package benefits

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

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

const investigationCols = `id, patient_id, program_id, investigation_type, payer_name,
	payer_plan_id, member_id, patient_state, medication_name,
	coverage_status, coverage_type, prior_auth_required, deductible_applies,
	specialty_pharmacy_required, notes, result_payload, expires_at,
	created_by, created_at`

func scanInvestigation(row pgx.Row) (*Investigation, error) {
	var i Investigation
	err := row.Scan(&i.ID, &i.PatientID, &i.ProgramID, &i.InvestigationType, &i.PayerName,
		&i.PayerPlanID, &i.MemberID, &i.PatientState, &i.MedicationName,
		&i.CoverageStatus, &i.CoverageType, &i.PriorAuthRequired, &i.DeductibleApplies,
		&i.SpecialtyPharmacyRequired, &i.Notes, &i.ResultPayload, &i.ExpiresAt,
		&i.CreatedBy, &i.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrInvestigationNotFound
	}
	return &i, err
}

func (r *repoPG) Create(ctx context.Context, i *Investigation) error {
	i.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO benefit_investigation (id, patient_id, program_id, investigation_type,
			payer_name, payer_plan_id, member_id, patient_state, medication_name,
			coverage_status, coverage_type, prior_auth_required, deductible_applies,
			specialty_pharmacy_required, notes, result_payload, expires_at, created_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)`,
		i.ID, i.PatientID, i.ProgramID, i.InvestigationType,
		i.PayerName, i.PayerPlanID, i.MemberID, i.PatientState, i.MedicationName,
		i.CoverageStatus, i.CoverageType, i.PriorAuthRequired, i.DeductibleApplies,
		i.SpecialtyPharmacyRequired, i.Notes, i.ResultPayload, i.ExpiresAt, i.CreatedBy)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Investigation, error) {
	return scanInvestigation(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+investigationCols+` FROM benefit_investigation WHERE id = $1`, id))
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Investigation, error) {
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+investigationCols+` FROM benefit_investigation WHERE patient_id = $1 ORDER BY created_at DESC`,
		patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectInvestigations(rows)
}

func (r *repoPG) LatestByPatientAndType(ctx context.Context, patientID uuid.UUID, investigationType string) (*Investigation, error) {
	return scanInvestigation(conn(ctx, r.pool).QueryRow(ctx, `
		SELECT `+investigationCols+` FROM benefit_investigation
		WHERE patient_id = $1 AND investigation_type = $2
		ORDER BY created_at DESC LIMIT 1`,
		patientID, investigationType))
}

func (r *repoPG) ListExpired(ctx context.Context) ([]*Investigation, error) {
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+investigationCols+` FROM benefit_investigation WHERE expires_at < NOW() ORDER BY expires_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectInvestigations(rows)
}

func collectInvestigations(rows pgx.Rows) ([]*Investigation, error) {
	var items []*Investigation
	for rows.Next() {
		i, err := scanInvestigation(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, nil
}
