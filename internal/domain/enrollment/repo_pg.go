package enrollment

import (
	"context"
	"errors"
	"time"

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

// =========== Enrollment Repository ===========

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

const enrollmentCols = `id, patient_id, program_id, prescriber_id, status,
	diagnosis_code, diagnosis_description, medication_name, notes,
	created_by, submitted_at, created_at, updated_at`

func scanEnrollment(row pgx.Row) (*Enrollment, error) {
	var e Enrollment
	err := row.Scan(&e.ID, &e.PatientID, &e.ProgramID, &e.PrescriberID, &e.Status,
		&e.DiagnosisCode, &e.DiagnosisDescription, &e.MedicationName, &e.Notes,
		&e.CreatedBy, &e.SubmittedAt, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrEnrollmentNotFound
	}
	return &e, err
}

func (r *repoPG) Create(ctx context.Context, e *Enrollment) error {
	e.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO enrollment (id, patient_id, program_id, prescriber_id, status,
			diagnosis_code, diagnosis_description, medication_name, notes,
			created_by, submitted_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		e.ID, e.PatientID, e.ProgramID, e.PrescriberID, e.Status,
		e.DiagnosisCode, e.DiagnosisDescription, e.MedicationName, e.Notes,
		e.CreatedBy, e.SubmittedAt)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Enrollment, error) {
	return scanEnrollment(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+enrollmentCols+` FROM enrollment WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, e *Enrollment) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE enrollment SET program_id=$2, prescriber_id=$3, status=$4,
			diagnosis_code=$5, diagnosis_description=$6, medication_name=$7,
			notes=$8, submitted_at=$9, updated_at=NOW()
		WHERE id = $1`,
		e.ID, e.ProgramID, e.PrescriberID, e.Status,
		e.DiagnosisCode, e.DiagnosisDescription, e.MedicationName,
		e.Notes, e.SubmittedAt)
	return err
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Enrollment, error) {
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+enrollmentCols+` FROM enrollment WHERE patient_id = $1 ORDER BY created_at DESC`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEnrollments(rows)
}

func (r *repoPG) ListByPatientAndStatus(ctx context.Context, patientID uuid.UUID, status string) ([]*Enrollment, error) {
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+enrollmentCols+` FROM enrollment WHERE patient_id = $1 AND status = $2 ORDER BY created_at DESC`,
		patientID, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEnrollments(rows)
}

func (r *repoPG) ListSubmittedBefore(ctx context.Context, cutoff time.Time) ([]*Enrollment, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT `+enrollmentCols+` FROM enrollment
		WHERE status = $1 AND submitted_at < $2
		ORDER BY submitted_at`,
		StatusSubmitted, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEnrollments(rows)
}

func collectEnrollments(rows pgx.Rows) ([]*Enrollment, error) {
	var items []*Enrollment
	for rows.Next() {
		e, err := scanEnrollment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	return items, nil
}

// =========== Status History Repository ===========

type historyRepoPG struct{ pool *pgxpool.Pool }

func NewHistoryRepoPG(pool *pgxpool.Pool) HistoryRepository {
	return &historyRepoPG{pool: pool}
}

func (r *historyRepoPG) Insert(ctx context.Context, c *StatusChange) error {
	c.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO enrollment_status_history (id, enrollment_id, from_status, to_status, reason, changed_by)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		c.ID, c.EnrollmentID, c.FromStatus, c.ToStatus, c.Reason, c.ChangedBy)
	return err
}

func (r *historyRepoPG) ListByEnrollment(ctx context.Context, enrollmentID uuid.UUID) ([]*StatusChange, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT id, enrollment_id, from_status, to_status, reason, changed_by, changed_at
		FROM enrollment_status_history WHERE enrollment_id = $1 ORDER BY changed_at`,
		enrollmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*StatusChange
	for rows.Next() {
		var c StatusChange
		if err := rows.Scan(&c.ID, &c.EnrollmentID, &c.FromStatus, &c.ToStatus,
			&c.Reason, &c.ChangedBy, &c.ChangedAt); err != nil {
			return nil, err
		}
		items = append(items, &c)
	}
	return items, nil
}
