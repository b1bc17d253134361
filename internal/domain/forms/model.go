package forms

import (
	"io"
	"time"

	"github.com/google/uuid"
)

// Form maps to the form_resource table. FilePath is the object storage key;
// the bytes themselves live in the file store.
type Form struct {
	ID                 uuid.UUID  `db:"id" json:"id"`
	Title              string     `db:"title" json:"title"`
	Description        *string    `db:"description" json:"description,omitempty"`
	ProgramID          *uuid.UUID `db:"program_id" json:"program_id,omitempty"`
	Category           *string    `db:"category" json:"category,omitempty"`
	FilePath           string     `db:"file_path" json:"-"`
	FileName           string     `db:"file_name" json:"file_name"`
	FileSize           int64      `db:"file_size" json:"file_size"`
	MimeType           string     `db:"mime_type" json:"mime_type"`
	Version            int        `db:"version" json:"version"`
	ParentID           *uuid.UUID `db:"parent_id" json:"parent_id,omitempty"`
	ComplianceApproved bool       `db:"compliance_approved" json:"compliance_approved"`
	UploadedBy         uuid.UUID  `db:"uploaded_by" json:"uploaded_by"`
	UploadedAt         time.Time  `db:"uploaded_at" json:"uploaded_at"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updated_at"`

	DownloadCount int64 `db:"-" json:"download_count"`
}

// DownloadRecord maps to the form_download_audit table. One row per
// download, kept separately from the general audit trail so per-form
// download counts stay cheap.
type DownloadRecord struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	FormID        uuid.UUID  `db:"form_id" json:"form_id"`
	UserID        uuid.UUID  `db:"user_id" json:"user_id"`
	PatientID     *uuid.UUID `db:"patient_id" json:"patient_id,omitempty"`
	CorrelationID string     `db:"correlation_id" json:"correlation_id"`
	IPAddress     *string    `db:"ip_address" json:"ip_address,omitempty"`
	DownloadedAt  time.Time  `db:"downloaded_at" json:"downloaded_at"`
}

// UploadInput carries the metadata and content of a form upload.
type UploadInput struct {
	Title              string
	Description        string
	ProgramID          *uuid.UUID
	Category           string
	ParentID           *uuid.UUID
	FileName           string
	ContentType        string
	Size               int64
	Content            io.Reader
	ComplianceApproved bool
}

// SearchFilter narrows a form search. Zero values match everything.
type SearchFilter struct {
	ProgramID *uuid.UUID
	Category  string
	Term      string
}
