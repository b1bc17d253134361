package messaging

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type ThreadRepository interface {
	Create(ctx context.Context, t *Thread) error
	GetByID(ctx context.Context, id uuid.UUID) (*Thread, error)
	// ListByUser returns threads the user created or posted in, most
	// recent activity first.
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Thread, int, error)
	SetLastMessageAt(ctx context.Context, id uuid.UUID, at time.Time) error
}

type MessageRepository interface {
	Create(ctx context.Context, m *Message) error
	ListByThread(ctx context.Context, threadID uuid.UUID) ([]*Message, error)
	// MarkRead stamps every unread message in the thread not sent by the
	// reader.
	MarkRead(ctx context.Context, threadID, readerID uuid.UUID, at time.Time) error
	CountUnread(ctx context.Context, threadID, userID uuid.UUID) (int64, error)
}

type AttachmentRepository interface {
	Create(ctx context.Context, a *Attachment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Attachment, error)
	LinkToMessage(ctx context.Context, attachmentIDs []uuid.UUID, messageID uuid.UUID) error
	ListByMessage(ctx context.Context, messageID uuid.UUID) ([]*Attachment, error)
}
