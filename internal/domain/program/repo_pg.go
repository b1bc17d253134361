package program

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

// =========== Program Repository ===========

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

const programCols = `id, name, description, active, created_at, updated_at`

func scanProgram(row pgx.Row) (*Program, error) {
	var p Program
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrProgramNotFound
	}
	return &p, err
}

func (r *repoPG) Create(ctx context.Context, p *Program) error {
	p.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO program (id, name, description, active)
		VALUES ($1,$2,$3,$4)`,
		p.ID, p.Name, p.Description, p.Active)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Program, error) {
	return scanProgram(conn(ctx, r.pool).QueryRow(ctx, `SELECT `+programCols+` FROM program WHERE id = $1`, id))
}

func (r *repoPG) ListActive(ctx context.Context) ([]*Program, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `SELECT `+programCols+` FROM program WHERE active ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Program
	for rows.Next() {
		p, err := scanProgram(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, nil
}

func (r *repoPG) Update(ctx context.Context, p *Program) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE program SET name=$2, description=$3, active=$4, updated_at=NOW()
		WHERE id = $1`,
		p.ID, p.Name, p.Description, p.Active)
	return err
}

// =========== Support Service Repository ===========

type serviceRepoPG struct{ pool *pgxpool.Pool }

func NewServiceRepoPG(pool *pgxpool.Pool) ServiceRepository {
	return &serviceRepoPG{pool: pool}
}

const serviceCols = `id, program_id, name, description, service_type, active, created_at`

func scanService(row pgx.Row) (*SupportService, error) {
	var s SupportService
	err := row.Scan(&s.ID, &s.ProgramID, &s.Name, &s.Description, &s.ServiceType, &s.Active, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrServiceNotFound
	}
	return &s, err
}

func (r *serviceRepoPG) Create(ctx context.Context, s *SupportService) error {
	s.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO support_service (id, program_id, name, description, service_type, active)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		s.ID, s.ProgramID, s.Name, s.Description, s.ServiceType, s.Active)
	return err
}

func (r *serviceRepoPG) ListActiveByProgram(ctx context.Context, programID uuid.UUID) ([]*SupportService, error) {
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+serviceCols+` FROM support_service WHERE program_id = $1 AND active ORDER BY name`, programID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*SupportService
	for rows.Next() {
		s, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, nil
}

func (r *serviceRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*SupportService, error) {
	return scanService(conn(ctx, r.pool).QueryRow(ctx, `SELECT `+serviceCols+` FROM support_service WHERE id = $1`, id))
}

// =========== Service Enrollment Repository ===========

type serviceEnrollmentRepoPG struct{ pool *pgxpool.Pool }

func NewServiceEnrollmentRepoPG(pool *pgxpool.Pool) ServiceEnrollmentRepository {
	return &serviceEnrollmentRepoPG{pool: pool}
}

const serviceEnrollmentCols = `id, patient_id, service_id, enrollment_id, status, notes, enrolled_by, enrolled_at`

func scanServiceEnrollment(row pgx.Row) (*ServiceEnrollment, error) {
	var e ServiceEnrollment
	err := row.Scan(&e.ID, &e.PatientID, &e.ServiceID, &e.EnrollmentID, &e.Status, &e.Notes, &e.EnrolledBy, &e.EnrolledAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrServiceEnrollmentNotFound
	}
	return &e, err
}

func (r *serviceEnrollmentRepoPG) Create(ctx context.Context, e *ServiceEnrollment) error {
	e.ID = uuid.New()
	return conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO patient_service_enrollment (id, patient_id, service_id, enrollment_id, status, notes, enrolled_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING enrolled_at`,
		e.ID, e.PatientID, e.ServiceID, e.EnrollmentID, e.Status, e.Notes, e.EnrolledBy).Scan(&e.EnrolledAt)
}

func (r *serviceEnrollmentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*ServiceEnrollment, error) {
	return scanServiceEnrollment(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+serviceEnrollmentCols+` FROM patient_service_enrollment WHERE id = $1`, id))
}

func (r *serviceEnrollmentRepoPG) GetByPatientAndService(ctx context.Context, patientID, serviceID uuid.UUID) (*ServiceEnrollment, error) {
	return scanServiceEnrollment(conn(ctx, r.pool).QueryRow(ctx, `
		SELECT `+serviceEnrollmentCols+` FROM patient_service_enrollment
		WHERE patient_id = $1 AND service_id = $2
		ORDER BY enrolled_at DESC LIMIT 1`,
		patientID, serviceID))
}

func (r *serviceEnrollmentRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*ServiceEnrollment, error) {
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+serviceEnrollmentCols+` FROM patient_service_enrollment WHERE patient_id = $1 ORDER BY enrolled_at DESC`,
		patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*ServiceEnrollment
	for rows.Next() {
		e, err := scanServiceEnrollment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	return items, nil
}

func (r *serviceEnrollmentRepoPG) HasActiveByPatient(ctx context.Context, patientID uuid.UUID) (bool, error) {
	var exists bool
	err := conn(ctx, r.pool).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM patient_service_enrollment WHERE patient_id = $1 AND status = $2
		)`,
		patientID, EnrollmentStatusActive).Scan(&exists)
	return exists, err
}

func (r *serviceEnrollmentRepoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	tag, err := conn(ctx, r.pool).Exec(ctx,
		`UPDATE patient_service_enrollment SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrServiceEnrollmentNotFound
	}
	return nil
}
