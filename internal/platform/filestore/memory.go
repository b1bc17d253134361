package filestore

import (
	"bytes"
	"context"
	"io"
	"sync"
	"time"
)

type storedFile struct {
	contentType string
	content     []byte
}

// MemoryStore is a thread-safe, in-memory FileStore for testing and
// development. It does not support presigned URLs.
type MemoryStore struct {
	mu    sync.RWMutex
	files map[string]*storedFile
}

// NewMemoryStore returns a ready-to-use MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{files: make(map[string]*storedFile)}
}

// Store reads the content into memory under a freshly generated key.
func (s *MemoryStore) Store(_ context.Context, fileName, contentType string, content io.Reader, size int64) (string, error) {
	key := GenerateKey(fileName, time.Now().UTC())

	var data []byte
	var err error
	if size >= 0 {
		data, err = io.ReadAll(io.LimitReader(content, size))
	} else {
		data, err = io.ReadAll(content)
	}
	if err != nil {
		return "", &StorageError{Op: "store", Key: key, Err: err}
	}

	s.mu.Lock()
	s.files[key] = &storedFile{contentType: contentType, content: data}
	s.mu.Unlock()

	return key, nil
}

// StoreAt reads the content into memory under the caller's key.
func (s *MemoryStore) StoreAt(_ context.Context, key, contentType string, content io.Reader, size int64) error {
	var data []byte
	var err error
	if size >= 0 {
		data, err = io.ReadAll(io.LimitReader(content, size))
	} else {
		data, err = io.ReadAll(content)
	}
	if err != nil {
		return &StorageError{Op: "store", Key: key, Err: err}
	}

	s.mu.Lock()
	s.files[key] = &storedFile{contentType: contentType, content: data}
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Retrieve(_ context.Context, key string) (io.ReadCloser, error) {
	s.mu.RLock()
	f, ok := s.files[key]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrFileNotFound
	}
	return io.NopCloser(bytes.NewReader(f.content)), nil
}

// Delete removes a file by key. Deleting a key that does not exist is not
// an error; the end state is the same.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.files, key)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Exists(_ context.Context, key string) (bool, error) {
	s.mu.RLock()
	_, ok := s.files[key]
	s.mu.RUnlock()
	return ok, nil
}

// PresignedURL always fails: an in-memory store has no URL to hand out.
func (s *MemoryStore) PresignedURL(_ context.Context, key string, _ time.Duration) (string, error) {
	return "", ErrPresignNotSupported
}
