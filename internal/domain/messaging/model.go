package messaging

import (
	"time"

	"github.com/google/uuid"
)

// Thread maps to the message_thread table. Threads optionally reference the
// program or patient the conversation is about.
type Thread struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	Subject       string     `db:"subject" json:"subject"`
	ProgramID     *uuid.UUID `db:"program_id" json:"program_id,omitempty"`
	PatientID     *uuid.UUID `db:"patient_id" json:"patient_id,omitempty"`
	CreatedBy     uuid.UUID  `db:"created_by" json:"created_by"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	LastMessageAt *time.Time `db:"last_message_at" json:"last_message_at,omitempty"`

	UnreadCount int64      `db:"-" json:"unread_count"`
	Messages    []*Message `db:"-" json:"messages,omitempty"`
}

// Message maps to the message table. ReadAt stays nil until a user other
// than the sender opens the thread.
type Message struct {
	ID       uuid.UUID  `db:"id" json:"id"`
	ThreadID uuid.UUID  `db:"thread_id" json:"thread_id"`
	Content  string     `db:"content" json:"content"`
	SentBy   uuid.UUID  `db:"sent_by" json:"sent_by"`
	SentAt   time.Time  `db:"sent_at" json:"sent_at"`
	ReadAt   *time.Time `db:"read_at" json:"read_at,omitempty"`

	Attachments []*Attachment `db:"-" json:"attachments,omitempty"`
}

// Attachment maps to the message_attachment table. An attachment is
// uploaded first and linked to a message when that message is sent;
// MessageID stays nil in between.
type Attachment struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	MessageID  *uuid.UUID `db:"message_id" json:"message_id,omitempty"`
	FilePath   string     `db:"file_path" json:"-"`
	FileName   string     `db:"file_name" json:"file_name"`
	FileSize   int64      `db:"file_size" json:"file_size"`
	MimeType   string     `db:"mime_type" json:"mime_type"`
	UploadedAt time.Time  `db:"uploaded_at" json:"uploaded_at"`
}

// CreateThreadInput is the payload for opening a new thread.
type CreateThreadInput struct {
	Subject   string     `json:"subject"`
	ProgramID *uuid.UUID `json:"program_id,omitempty"`
	PatientID *uuid.UUID `json:"patient_id,omitempty"`
}
