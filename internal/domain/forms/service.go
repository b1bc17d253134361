package forms

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sonexus/portal/internal/platform/auth"
	"github.com/sonexus/portal/internal/platform/filestore"
	"github.com/sonexus/portal/internal/platform/middleware"
)

var (
	ErrNotAuthenticated = errors.New("user is not authenticated")
	ErrFormNotFound     = errors.New("form not found")
	ErrEmptyFile        = errors.New("file is empty")
	ErrFileTooLarge     = errors.New("file size exceeds the 50MB limit")
	ErrTypeNotAllowed   = errors.New("file type not allowed")
)

const maxFileSize = 50 << 20

// Only document and image types make it into the form library.
var allowedMimeTypes = map[string]bool{
	"application/pdf":    true,
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
	"application/vnd.ms-excel": true,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": true,
	"image/jpeg": true,
	"image/png":  true,
}

// Auditor records audit events. Implemented by the audit service.
type Auditor interface {
	Log(ctx context.Context, eventType, resourceType string, resourceID uuid.UUID, action string)
}

type Service struct {
	repo      Repository
	downloads DownloadRepository
	store     filestore.FileStore
	audit     Auditor
	logger    zerolog.Logger
}

func NewService(repo Repository, downloads DownloadRepository, store filestore.FileStore, audit Auditor, logger zerolog.Logger) *Service {
	return &Service{repo: repo, downloads: downloads, store: store, audit: audit, logger: logger}
}

// Upload validates and stores a form document, then records its metadata.
// With ParentID set the upload becomes the next version of an existing form.
func (s *Service) Upload(ctx context.Context, in UploadInput) (*Form, error) {
	u, ok := auth.CurrentUser(ctx)
	if !ok {
		return nil, ErrNotAuthenticated
	}
	if in.Title == "" {
		return nil, fmt.Errorf("title is required")
	}
	if in.Size == 0 {
		return nil, ErrEmptyFile
	}
	if in.Size > maxFileSize {
		return nil, ErrFileTooLarge
	}
	if !allowedMimeTypes[in.ContentType] {
		return nil, fmt.Errorf("%w: %s", ErrTypeNotAllowed, in.ContentType)
	}

	version := 1
	if in.ParentID != nil {
		parent, err := s.repo.GetByID(ctx, *in.ParentID)
		if err != nil {
			return nil, err
		}
		version = parent.Version + 1
	}

	key, err := s.store.Store(ctx, in.FileName, in.ContentType, in.Content, in.Size)
	if err != nil {
		return nil, fmt.Errorf("storing file: %w", err)
	}

	f := &Form{
		Title:              in.Title,
		ProgramID:          in.ProgramID,
		ParentID:           in.ParentID,
		FilePath:           key,
		FileName:           in.FileName,
		FileSize:           in.Size,
		MimeType:           in.ContentType,
		Version:            version,
		ComplianceApproved: in.ComplianceApproved,
		UploadedBy:         u.ID,
	}
	if in.Description != "" {
		f.Description = &in.Description
	}
	if in.Category != "" {
		f.Category = &in.Category
	}

	if err := s.repo.Create(ctx, f); err != nil {
		// Metadata write failed, remove the orphaned object.
		if delErr := s.store.Delete(ctx, key); delErr != nil {
			s.logger.Error().Err(delErr).Str("key", key).Msg("orphaned file cleanup failed")
		}
		return nil, err
	}

	s.logger.Info().
		Str("form_id", f.ID.String()).
		Str("file_name", f.FileName).
		Int64("size", f.FileSize).
		Int("version", f.Version).
		Msg("form uploaded")
	s.audit.Log(ctx, "FORM_UPLOADED", "FORM_RESOURCE", f.ID, "CREATE")

	return f, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Form, error) {
	f, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.attachDownloadCount(ctx, f)
	return f, nil
}

func (s *Service) Search(ctx context.Context, filter SearchFilter, limit, offset int) ([]*Form, int, error) {
	items, total, err := s.repo.Search(ctx, filter, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	for _, f := range items {
		s.attachDownloadCount(ctx, f)
	}
	return items, total, nil
}

// Download streams a form's content. Every download leaves a DownloadRecord
// with the caller, the optional patient the form is for, the correlation id,
// and the client address.
func (s *Service) Download(ctx context.Context, id uuid.UUID, patientID *uuid.UUID, clientIP string) (io.ReadCloser, *Form, error) {
	u, ok := auth.CurrentUser(ctx)
	if !ok {
		return nil, nil, ErrNotAuthenticated
	}
	f, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	correlationID := middleware.RequestIDFromContext(ctx)
	if correlationID == "" {
		correlationID = uuid.NewString()
	}

	rec := &DownloadRecord{
		FormID:        id,
		UserID:        u.ID,
		PatientID:     patientID,
		CorrelationID: correlationID,
	}
	if clientIP != "" {
		rec.IPAddress = &clientIP
	}
	if err := s.downloads.Insert(ctx, rec); err != nil {
		return nil, nil, fmt.Errorf("recording download: %w", err)
	}
	s.audit.Log(ctx, "FORM_DOWNLOADED", "FORM_RESOURCE", id, "READ")

	s.logger.Info().
		Str("form_id", id.String()).
		Str("file_name", f.FileName).
		Str("user_id", u.ID.String()).
		Msg("form downloaded")

	content, err := s.store.Retrieve(ctx, f.FilePath)
	if err != nil {
		return nil, nil, err
	}
	return content, f, nil
}

// Versions returns a form together with every later version uploaded on
// top of it.
func (s *Service) Versions(ctx context.Context, id uuid.UUID) ([]*Form, error) {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.ListVersions(ctx, id)
}

// Delete removes the stored object first, then the metadata row.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	f, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, f.FilePath); err != nil {
		return fmt.Errorf("deleting file: %w", err)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Str("form_id", id.String()).Str("file_name", f.FileName).Msg("form deleted")
	s.audit.Log(ctx, "FORM_DELETED", "FORM_RESOURCE", id, "DELETE")
	return nil
}

func (s *Service) attachDownloadCount(ctx context.Context, f *Form) {
	n, err := s.downloads.CountByForm(ctx, f.ID)
	if err != nil {
		s.logger.Warn().Err(err).Str("form_id", f.ID.String()).Msg("download count lookup failed")
		return
	}
	f.DownloadCount = n
}
