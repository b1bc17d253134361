package messaging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sonexus/portal/internal/domain/patient"
	"github.com/sonexus/portal/internal/domain/program"
	"github.com/sonexus/portal/internal/platform/auth"
	"github.com/sonexus/portal/internal/platform/filestore"
)

var (
	ErrNotAuthenticated   = errors.New("user is not authenticated")
	ErrThreadNotFound     = errors.New("thread not found")
	ErrAttachmentNotFound = errors.New("attachment not found")
	ErrAttachmentUnlinked = errors.New("attachment is not linked to a message")
	ErrEmptyFile          = errors.New("file is empty")
	ErrAttachmentTooBig   = errors.New("attachment exceeds the 10MB limit")
)

const maxAttachmentSize = 10 << 20

// TxRunner runs fn inside a database transaction. Wired to db.WithTx in
// production; a nil runner executes fn directly.
type TxRunner func(ctx context.Context, fn func(ctx context.Context) error) error

// PatientDirectory resolves patients. Satisfied by patient.Repository.
type PatientDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*patient.Patient, error)
}

// ProgramDirectory resolves programs. Satisfied by program.Repository.
type ProgramDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*program.Program, error)
}

// Auditor records audit events. Implemented by the audit service.
type Auditor interface {
	Log(ctx context.Context, eventType, resourceType string, resourceID uuid.UUID, action string)
}

type Service struct {
	threads     ThreadRepository
	messages    MessageRepository
	attachments AttachmentRepository
	patients    PatientDirectory
	programs    ProgramDirectory
	store       filestore.FileStore
	audit       Auditor
	tx          TxRunner
	logger      zerolog.Logger
}

func NewService(
	threads ThreadRepository,
	messages MessageRepository,
	attachments AttachmentRepository,
	patients PatientDirectory,
	programs ProgramDirectory,
	store filestore.FileStore,
	audit Auditor,
	tx TxRunner,
	logger zerolog.Logger,
) *Service {
	if tx == nil {
		tx = func(ctx context.Context, fn func(ctx context.Context) error) error {
			return fn(ctx)
		}
	}
	return &Service{
		threads:     threads,
		messages:    messages,
		attachments: attachments,
		patients:    patients,
		programs:    programs,
		store:       store,
		audit:       audit,
		tx:          tx,
		logger:      logger,
	}
}

func (s *Service) CreateThread(ctx context.Context, in CreateThreadInput) (*Thread, error) {
	u, ok := auth.CurrentUser(ctx)
	if !ok {
		return nil, ErrNotAuthenticated
	}
	if in.Subject == "" {
		return nil, fmt.Errorf("subject is required")
	}
	if in.ProgramID != nil {
		if _, err := s.programs.GetByID(ctx, *in.ProgramID); err != nil {
			return nil, err
		}
	}
	if in.PatientID != nil {
		if _, err := s.patients.GetByID(ctx, *in.PatientID); err != nil {
			return nil, err
		}
	}

	t := &Thread{
		Subject:   in.Subject,
		ProgramID: in.ProgramID,
		PatientID: in.PatientID,
		CreatedBy: u.ID,
	}
	if err := s.threads.Create(ctx, t); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("thread_id", t.ID.String()).
		Str("subject", t.Subject).
		Str("created_by", u.ID.String()).
		Msg("message thread created")
	s.audit.Log(ctx, "MESSAGE_THREAD_CREATED", "THREAD", t.ID, "CREATE")

	return t, nil
}

// ListThreads returns the caller's threads with per-thread unread counts.
func (s *Service) ListThreads(ctx context.Context, limit, offset int) ([]*Thread, int, error) {
	u, ok := auth.CurrentUser(ctx)
	if !ok {
		return nil, 0, ErrNotAuthenticated
	}
	threads, total, err := s.threads.ListByUser(ctx, u.ID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	for _, t := range threads {
		n, err := s.messages.CountUnread(ctx, t.ID, u.ID)
		if err != nil {
			s.logger.Warn().Err(err).Str("thread_id", t.ID.String()).Msg("unread count lookup failed")
			continue
		}
		t.UnreadCount = n
	}
	return threads, total, nil
}

// GetThread returns a thread with its messages and attachments. Opening a
// thread marks every message from other participants as read.
func (s *Service) GetThread(ctx context.Context, id uuid.UUID) (*Thread, error) {
	u, ok := auth.CurrentUser(ctx)
	if !ok {
		return nil, ErrNotAuthenticated
	}
	t, err := s.threads.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.messages.MarkRead(ctx, id, u.ID, time.Now().UTC()); err != nil {
		return nil, err
	}

	msgs, err := s.messages.ListByThread(ctx, id)
	if err != nil {
		return nil, err
	}
	for _, m := range msgs {
		atts, err := s.attachments.ListByMessage(ctx, m.ID)
		if err != nil {
			return nil, err
		}
		m.Attachments = atts
	}
	t.Messages = msgs
	return t, nil
}

// SendMessage appends a message to a thread, links any pre-uploaded
// attachments to it, and bumps the thread's last activity timestamp, all in
// one transaction.
func (s *Service) SendMessage(ctx context.Context, threadID uuid.UUID, content string, attachmentIDs []uuid.UUID) (*Message, error) {
	u, ok := auth.CurrentUser(ctx)
	if !ok {
		return nil, ErrNotAuthenticated
	}
	if content == "" {
		return nil, fmt.Errorf("content is required")
	}
	if _, err := s.threads.GetByID(ctx, threadID); err != nil {
		return nil, err
	}
	for _, id := range attachmentIDs {
		a, err := s.attachments.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if a.MessageID != nil {
			return nil, fmt.Errorf("attachment %s already belongs to a message", id)
		}
	}

	m := &Message{
		ThreadID: threadID,
		Content:  content,
		SentBy:   u.ID,
	}
	err := s.tx(ctx, func(ctx context.Context) error {
		if err := s.messages.Create(ctx, m); err != nil {
			return err
		}
		if len(attachmentIDs) > 0 {
			if err := s.attachments.LinkToMessage(ctx, attachmentIDs, m.ID); err != nil {
				return err
			}
		}
		return s.threads.SetLastMessageAt(ctx, threadID, m.SentAt)
	})
	if err != nil {
		return nil, err
	}

	m.Attachments, err = s.attachments.ListByMessage(ctx, m.ID)
	if err != nil {
		s.logger.Warn().Err(err).Str("message_id", m.ID.String()).Msg("attachment list lookup failed")
	}

	s.logger.Info().
		Str("message_id", m.ID.String()).
		Str("thread_id", threadID.String()).
		Str("sent_by", u.ID.String()).
		Msg("message sent")
	s.audit.Log(ctx, "MESSAGE_SENT", "MESSAGE", m.ID, "CREATE")

	return m, nil
}

// UploadAttachment stores a file and records it unlinked; SendMessage
// attaches it to a message afterwards.
func (s *Service) UploadAttachment(ctx context.Context, fileName, contentType string, size int64, content io.Reader) (*Attachment, error) {
	u, ok := auth.CurrentUser(ctx)
	if !ok {
		return nil, ErrNotAuthenticated
	}
	if size == 0 {
		return nil, ErrEmptyFile
	}
	if size > maxAttachmentSize {
		return nil, ErrAttachmentTooBig
	}

	key := fmt.Sprintf("attachments/%s/%s", uuid.New(), filestore.SanitizeFileName(fileName))
	if err := s.store.StoreAt(ctx, key, contentType, content, size); err != nil {
		return nil, fmt.Errorf("storing attachment: %w", err)
	}

	a := &Attachment{
		FilePath: key,
		FileName: fileName,
		FileSize: size,
		MimeType: contentType,
	}
	if err := s.attachments.Create(ctx, a); err != nil {
		if delErr := s.store.Delete(ctx, key); delErr != nil {
			s.logger.Error().Err(delErr).Str("key", key).Msg("orphaned attachment cleanup failed")
		}
		return nil, err
	}

	s.logger.Info().
		Str("attachment_id", a.ID.String()).
		Str("file_name", fileName).
		Str("uploaded_by", u.ID.String()).
		Msg("attachment uploaded")
	s.audit.Log(ctx, "ATTACHMENT_UPLOADED", "ATTACHMENT", a.ID, "CREATE")

	return a, nil
}

// DownloadAttachment streams an attachment's content. Only attachments that
// made it onto a sent message can be downloaded.
func (s *Service) DownloadAttachment(ctx context.Context, id uuid.UUID) (io.ReadCloser, *Attachment, error) {
	if _, ok := auth.CurrentUser(ctx); !ok {
		return nil, nil, ErrNotAuthenticated
	}
	a, err := s.attachments.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if a.MessageID == nil {
		return nil, nil, ErrAttachmentUnlinked
	}

	content, err := s.store.Retrieve(ctx, a.FilePath)
	if err != nil {
		return nil, nil, err
	}
	s.audit.Log(ctx, "ATTACHMENT_DOWNLOADED", "ATTACHMENT", a.ID, "VIEW")
	return content, a, nil
}
