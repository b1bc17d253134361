package forms

import (
	"context"
	"errors"
	"fmt"
	"strings"

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

// =========== Form Repository ===========

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

const formCols = `id, title, description, program_id, category, file_path,
	file_name, file_size, mime_type, version, parent_id, compliance_approved,
	uploaded_by, uploaded_at, updated_at`

func scanForm(row pgx.Row) (*Form, error) {
	var f Form
	err := row.Scan(&f.ID, &f.Title, &f.Description, &f.ProgramID, &f.Category, &f.FilePath,
		&f.FileName, &f.FileSize, &f.MimeType, &f.Version, &f.ParentID, &f.ComplianceApproved,
		&f.UploadedBy, &f.UploadedAt, &f.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrFormNotFound
	}
	return &f, err
}

func (r *repoPG) Create(ctx context.Context, f *Form) error {
	f.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO form_resource (id, title, description, program_id, category, file_path,
			file_name, file_size, mime_type, version, parent_id, compliance_approved, uploaded_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		f.ID, f.Title, f.Description, f.ProgramID, f.Category, f.FilePath,
		f.FileName, f.FileSize, f.MimeType, f.Version, f.ParentID, f.ComplianceApproved, f.UploadedBy)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Form, error) {
	return scanForm(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+formCols+` FROM form_resource WHERE id = $1`, id))
}

func (r *repoPG) Search(ctx context.Context, filter SearchFilter, limit, offset int) ([]*Form, int, error) {
	var conds []string
	var args []interface{}
	add := func(cond string, val interface{}) {
		args = append(args, val)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if filter.ProgramID != nil {
		add("program_id = $%d", *filter.ProgramID)
	}
	if filter.Category != "" {
		add("category = $%d", filter.Category)
	}
	if filter.Term != "" {
		add("(title ILIKE $%d OR description ILIKE $%[1]d OR file_name ILIKE $%[1]d)", "%"+filter.Term+"%")
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := conn(ctx, r.pool).QueryRow(ctx, `SELECT COUNT(*) FROM form_resource`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT `+formCols+` FROM form_resource`+where+
		` ORDER BY uploaded_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	rows, err := conn(ctx, r.pool).Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Form
	for rows.Next() {
		f, err := scanForm(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, f)
	}
	return items, total, nil
}

func (r *repoPG) ListVersions(ctx context.Context, formID uuid.UUID) ([]*Form, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT `+formCols+` FROM form_resource
		WHERE id = $1 OR parent_id = $1
		ORDER BY version`,
		formID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Form
	for rows.Next() {
		f, err := scanForm(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, f)
	}
	return items, nil
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM form_resource WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrFormNotFound
	}
	return nil
}

// =========== Download Repository ===========

type downloadRepoPG struct{ pool *pgxpool.Pool }

func NewDownloadRepoPG(pool *pgxpool.Pool) DownloadRepository {
	return &downloadRepoPG{pool: pool}
}

func (r *downloadRepoPG) Insert(ctx context.Context, d *DownloadRecord) error {
	d.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO form_download_audit (id, form_id, user_id, patient_id, correlation_id, ip_address)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		d.ID, d.FormID, d.UserID, d.PatientID, d.CorrelationID, d.IPAddress)
	return err
}

func (r *downloadRepoPG) CountByForm(ctx context.Context, formID uuid.UUID) (int64, error) {
	var n int64
	err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT COUNT(*) FROM form_download_audit WHERE form_id = $1`, formID).Scan(&n)
	return n, err
}
