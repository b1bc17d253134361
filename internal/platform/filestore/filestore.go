// Package filestore provides blob storage for enrollment forms and message
// attachments. It defines the FileStore interface, an in-memory
// implementation suitable for testing and development, and a MinIO-backed
// implementation for deployed environments.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"time"

	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// Sentinel errors
// ---------------------------------------------------------------------------

var (
	ErrFileNotFound        = errors.New("file not found")
	ErrPresignNotSupported = errors.New("presigned URLs are not supported by this backend")
)

// StorageError wraps a backend failure with the operation and object key
// that produced it.
type StorageError struct {
	Op  string
	Key string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("filestore: %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// ---------------------------------------------------------------------------
// FileStore interface
// ---------------------------------------------------------------------------

// FileStore defines the contract for file storage backends. Store returns
// the generated object key; StoreAt writes under a caller-chosen key; all
// other operations address files by key.
type FileStore interface {
	Store(ctx context.Context, fileName, contentType string, content io.Reader, size int64) (string, error)
	StoreAt(ctx context.Context, key, contentType string, content io.Reader, size int64) error
	Retrieve(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	PresignedURL(ctx context.Context, key string, expiry time.Duration) (string, error)
}

// ---------------------------------------------------------------------------
// Key generation
// ---------------------------------------------------------------------------

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// SanitizeFileName replaces every character outside [a-zA-Z0-9._-] with an
// underscore so user-supplied names are safe as object key segments.
func SanitizeFileName(name string) string {
	return unsafeChars.ReplaceAllString(name, "_")
}

// GenerateKey builds a date-partitioned object key of the form
// forms/YYYY/MM/<uuid>-<sanitized-name>.
func GenerateKey(fileName string, now time.Time) string {
	return fmt.Sprintf("forms/%d/%02d/%s-%s",
		now.Year(), int(now.Month()), uuid.New().String(), SanitizeFileName(fileName))
}
