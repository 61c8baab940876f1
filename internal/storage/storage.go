package storage

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"
)

// Package storage contains the external-bytes backends of the content store.
// Inline (database) content is not handled here; it lives with the file
// metadata inside the repository transaction.

// ExternalStore persists file bytes outside the database under opaque
// handles. Implementations must guarantee that a handle returned by Put is
// durable before Put returns, and that distinct Put calls never collide.
type ExternalStore interface {
	// Put writes the stream to a new unique handle derived from suggestedName
	// and returns it. size is the exact byte count when known, -1 otherwise.
	Put(ctx context.Context, suggestedName string, r io.Reader, size int64) (string, error)
	// Get opens the bytes stored under handle for reading.
	Get(ctx context.Context, handle string) (io.ReadCloser, error)
	// Delete removes the bytes stored under handle.
	Delete(ctx context.Context, handle string) error
}

var nameSeq atomic.Int64

// uniqueName prefixes the sanitized original name with a monotonic token so
// concurrent writes of the same filename never collide.
func uniqueName(suggestedName string) string {
	base := filepath.Base(strings.TrimSpace(suggestedName))
	if base == "." || base == string(filepath.Separator) || base == "" {
		base = "file"
	}
	base = strings.ReplaceAll(base, " ", "_")
	return fmt.Sprintf("%d%03d_%s", time.Now().UnixNano(), nameSeq.Add(1)%1000, base)
}
