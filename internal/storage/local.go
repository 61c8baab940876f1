package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"iams/internal/domain"
)

// LocalStore keeps external bytes as plain files under a base directory.
// Handles are paths relative to that base. It is safe for concurrent use:
// every Put targets a fresh unique name.
type LocalStore struct {
	base string
}

// NewLocalStore creates the base directory if missing and returns the store.
func NewLocalStore(base string) (*LocalStore, error) {
	if base == "" {
		return nil, fmt.Errorf("storage base path is required")
	}
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, fmt.Errorf("create storage base dir: %w", err)
	}
	return &LocalStore{base: base}, nil
}

var _ ExternalStore = (*LocalStore)(nil)

// Put streams r into a uniquely named file. The write goes to a temporary
// name first, is fsynced, then renamed into place, so readers never observe
// a partial file.
func (s *LocalStore) Put(ctx context.Context, suggestedName string, r io.Reader, size int64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	handle := uniqueName(suggestedName)
	final := filepath.Join(s.base, handle)
	tmp := final + ".tmp"

	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", domain.Errf(domain.KindStorageIO, "open %s: %v", tmp, err)
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", domain.Errf(domain.KindStorageIO, "write %s: %v", tmp, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", domain.Errf(domain.KindStorageIO, "sync %s: %v", tmp, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return "", domain.Errf(domain.KindStorageIO, "close %s: %v", tmp, err)
	}
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return "", domain.Errf(domain.KindStorageIO, "rename %s: %v", tmp, err)
	}

	return handle, nil
}

// Get opens the file stored under handle.
func (s *LocalStore) Get(ctx context.Context, handle string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Join(s.base, handle))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.Errf(domain.KindContentMissing, "content %s is missing", handle)
		}
		return nil, domain.Errf(domain.KindStorageIO, "open %s: %v", handle, err)
	}
	return f, nil
}

// Delete removes the file stored under handle. Deleting an absent handle is
// reported as content-missing so callers can decide to ignore it.
func (s *LocalStore) Delete(ctx context.Context, handle string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(s.base, handle)); err != nil {
		if os.IsNotExist(err) {
			return domain.Errf(domain.KindContentMissing, "content %s is missing", handle)
		}
		return domain.Errf(domain.KindStorageIO, "remove %s: %v", handle, err)
	}
	return nil
}
