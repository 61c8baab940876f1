package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"iams/internal/config"
	"iams/internal/domain"
)

// minioStore implements ExternalStore on an S3-compatible backend (MinIO,
// AWS S3, etc.). Handles are object keys under the "files/" prefix. It is
// safe for concurrent use by multiple goroutines.
type minioStore struct {
	client *minio.Client
	bucket string
}

// NewMinIO creates an S3-compatible external store backed by MinIO.
// It validates connectivity and ensures the bucket exists (creates it if missing).
func NewMinIO(cfg config.MinIOConfig) (ExternalStore, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("minio endpoint is required")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("minio credentials are required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("minio bucket is required")
	}

	cli, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	ms := &minioStore{client: cli, bucket: cfg.Bucket}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Ensure bucket exists.
	exists, err := cli.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket existence: %w", err)
	}
	if !exists {
		if err := cli.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
	}

	return ms, nil
}

var _ ExternalStore = (*minioStore)(nil)

// Put uploads an object using streaming I/O only (no local disk).
func (m *minioStore) Put(ctx context.Context, suggestedName string, r io.Reader, size int64) (string, error) {
	handle := path.Join("files", uniqueName(suggestedName))
	_, err := m.client.PutObject(ctx, m.bucket, handle, r, size, minio.PutObjectOptions{
		UserMetadata: map[string]string{"original-filename": suggestedName},
	})
	if err != nil {
		return "", domain.Errf(domain.KindStorageIO, "put object %s: %v", handle, err)
	}
	return handle, nil
}

// Get downloads the object's content as a streaming reader.
func (m *minioStore) Get(ctx context.Context, handle string) (io.ReadCloser, error) {
	obj, err := m.client.GetObject(ctx, m.bucket, handle, minio.GetObjectOptions{})
	if err != nil {
		return nil, domain.Errf(domain.KindStorageIO, "get object %s: %v", handle, err)
	}
	// GetObject is lazy; Stat forces the first round trip so absence is
	// detected here rather than on first read.
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		if isMinioNotFound(err) {
			return nil, domain.Errf(domain.KindContentMissing, "content %s is missing", handle)
		}
		return nil, domain.Errf(domain.KindStorageIO, "stat object %s: %v", handle, err)
	}
	return obj, nil
}

// Delete removes an object by handle.
func (m *minioStore) Delete(ctx context.Context, handle string) error {
	if err := m.client.RemoveObject(ctx, m.bucket, handle, minio.RemoveObjectOptions{}); err != nil {
		return domain.Errf(domain.KindStorageIO, "remove object %s: %v", handle, err)
	}
	return nil
}

func isMinioNotFound(err error) bool {
	var resp minio.ErrorResponse
	if errors.As(err, &resp) {
		return resp.Code == "NoSuchKey"
	}
	return false
}
