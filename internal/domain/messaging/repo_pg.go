package messaging

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

// =========== Thread Repository ===========

type threadRepoPG struct{ pool *pgxpool.Pool }

func NewThreadRepoPG(pool *pgxpool.Pool) ThreadRepository {
	return &threadRepoPG{pool: pool}
}

const threadCols = `id, subject, program_id, patient_id, created_by, created_at, last_message_at`

func scanThread(row pgx.Row) (*Thread, error) {
	var t Thread
	err := row.Scan(&t.ID, &t.Subject, &t.ProgramID, &t.PatientID, &t.CreatedBy, &t.CreatedAt, &t.LastMessageAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrThreadNotFound
	}
	return &t, err
}

func (r *threadRepoPG) Create(ctx context.Context, t *Thread) error {
	t.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO message_thread (id, subject, program_id, patient_id, created_by)
		VALUES ($1,$2,$3,$4,$5)`,
		t.ID, t.Subject, t.ProgramID, t.PatientID, t.CreatedBy)
	return err
}

func (r *threadRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Thread, error) {
	return scanThread(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+threadCols+` FROM message_thread WHERE id = $1`, id))
}

func (r *threadRepoPG) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Thread, int, error) {
	where := ` WHERE created_by = $1
		OR EXISTS (SELECT 1 FROM message m WHERE m.thread_id = message_thread.id AND m.sent_by = $1)`

	var total int
	if err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT COUNT(*) FROM message_thread`+where, userID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT `+threadCols+` FROM message_thread`+where+`
		ORDER BY COALESCE(last_message_at, created_at) DESC LIMIT $2 OFFSET $3`,
		userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Thread
	for rows.Next() {
		t, err := scanThread(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, t)
	}
	return items, total, nil
}

func (r *threadRepoPG) SetLastMessageAt(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := conn(ctx, r.pool).Exec(ctx,
		`UPDATE message_thread SET last_message_at = $2 WHERE id = $1`, id, at)
	return err
}

// =========== Message Repository ===========

type messageRepoPG struct{ pool *pgxpool.Pool }

func NewMessageRepoPG(pool *pgxpool.Pool) MessageRepository {
	return &messageRepoPG{pool: pool}
}

func (r *messageRepoPG) Create(ctx context.Context, m *Message) error {
	m.ID = uuid.New()
	m.SentAt = time.Now().UTC()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO message (id, thread_id, content, sent_by, sent_at)
		VALUES ($1,$2,$3,$4,$5)`,
		m.ID, m.ThreadID, m.Content, m.SentBy, m.SentAt)
	return err
}

func (r *messageRepoPG) ListByThread(ctx context.Context, threadID uuid.UUID) ([]*Message, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT id, thread_id, content, sent_by, sent_at, read_at
		FROM message WHERE thread_id = $1 ORDER BY sent_at`,
		threadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ThreadID, &m.Content, &m.SentBy, &m.SentAt, &m.ReadAt); err != nil {
			return nil, err
		}
		items = append(items, &m)
	}
	return items, nil
}

func (r *messageRepoPG) MarkRead(ctx context.Context, threadID, readerID uuid.UUID, at time.Time) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE message SET read_at = $3
		WHERE thread_id = $1 AND sent_by <> $2 AND read_at IS NULL`,
		threadID, readerID, at)
	return err
}

func (r *messageRepoPG) CountUnread(ctx context.Context, threadID, userID uuid.UUID) (int64, error) {
	var n int64
	err := conn(ctx, r.pool).QueryRow(ctx, `
		SELECT COUNT(*) FROM message
		WHERE thread_id = $1 AND sent_by <> $2 AND read_at IS NULL`,
		threadID, userID).Scan(&n)
	return n, err
}

// =========== Attachment Repository ===========

type attachmentRepoPG struct{ pool *pgxpool.Pool }

func NewAttachmentRepoPG(pool *pgxpool.Pool) AttachmentRepository {
	return &attachmentRepoPG{pool: pool}
}

const attachmentCols = `id, message_id, file_path, file_name, file_size, mime_type, uploaded_at`

func scanAttachment(row pgx.Row) (*Attachment, error) {
	var a Attachment
	err := row.Scan(&a.ID, &a.MessageID, &a.FilePath, &a.FileName, &a.FileSize, &a.MimeType, &a.UploadedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAttachmentNotFound
	}
	return &a, err
}

func (r *attachmentRepoPG) Create(ctx context.Context, a *Attachment) error {
	a.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO message_attachment (id, file_path, file_name, file_size, mime_type)
		VALUES ($1,$2,$3,$4,$5)`,
		a.ID, a.FilePath, a.FileName, a.FileSize, a.MimeType)
	return err
}

func (r *attachmentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Attachment, error) {
	return scanAttachment(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+attachmentCols+` FROM message_attachment WHERE id = $1`, id))
}

func (r *attachmentRepoPG) LinkToMessage(ctx context.Context, attachmentIDs []uuid.UUID, messageID uuid.UUID) error {
	_, err := conn(ctx, r.pool).Exec(ctx,
		`UPDATE message_attachment SET message_id = $2 WHERE id = ANY($1)`,
		attachmentIDs, messageID)
	return err
}

func (r *attachmentRepoPG) ListByMessage(ctx context.Context, messageID uuid.UUID) ([]*Attachment, error) {
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+attachmentCols+` FROM message_attachment WHERE message_id = $1 ORDER BY uploaded_at`,
		messageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Attachment
	for rows.Next() {
		a, err := scanAttachment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, nil
}
