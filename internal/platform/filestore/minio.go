package filestore

import (
	"context"
	"io"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog"
)

// MinioStore stores files in a MinIO (or any S3-compatible) bucket.
type MinioStore struct {
	client *minio.Client
	bucket string
	logger zerolog.Logger
}

// MinioConfig holds the connection settings for a MinIO backend.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// NewMinioStore connects to MinIO and ensures the configured bucket exists.
// A connection failure during bucket setup is logged but not fatal, so the
// server can start while MinIO is still coming up.
func NewMinioStore(ctx context.Context, cfg MinioConfig, logger zerolog.Logger) (*MinioStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, &StorageError{Op: "connect", Key: cfg.Endpoint, Err: err}
	}

	s := &MinioStore{client: client, bucket: cfg.Bucket, logger: logger}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		logger.Warn().Err(err).Str("bucket", cfg.Bucket).
			Msg("minio not reachable, file operations will fail until it is available")
		return s, nil
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, &StorageError{Op: "make_bucket", Key: cfg.Bucket, Err: err}
		}
		logger.Info().Str("bucket", cfg.Bucket).Msg("created minio bucket")
	}

	return s, nil
}

func (s *MinioStore) Store(ctx context.Context, fileName, contentType string, content io.Reader, size int64) (string, error) {
	key := GenerateKey(fileName, time.Now().UTC())

	_, err := s.client.PutObject(ctx, s.bucket, key, content, size,
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", &StorageError{Op: "store", Key: key, Err: err}
	}

	s.logger.Debug().Str("key", key).Int64("size", size).Msg("file stored")
	return key, nil
}

// StoreAt writes an object under the caller's key.
func (s *MinioStore) StoreAt(ctx context.Context, key, contentType string, content io.Reader, size int64) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, content, size,
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return &StorageError{Op: "store", Key: key, Err: err}
	}
	s.logger.Debug().Str("key", key).Int64("size", size).Msg("file stored")
	return nil
}

func (s *MinioStore) Retrieve(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, &StorageError{Op: "retrieve", Key: key, Err: err}
	}

	// GetObject is lazy: probe the object so a missing key surfaces here
	// instead of on the first read.
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, ErrFileNotFound
		}
		return nil, &StorageError{Op: "retrieve", Key: key, Err: err}
	}

	return obj, nil
}

// Delete removes an object. MinIO treats removal of a missing key as
// success, which matches the interface contract.
func (s *MinioStore) Delete(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return &StorageError{Op: "delete", Key: key, Err: err}
	}
	return nil
}

func (s *MinioStore) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return false, nil
		}
		return false, &StorageError{Op: "exists", Key: key, Err: err}
	}
	return true, nil
}

func (s *MinioStore) PresignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, expiry, url.Values{})
	if err != nil {
		return "", &StorageError{Op: "presign", Key: key, Err: err}
	}
	return u.String(), nil
}
