package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"

	"go.uber.org/zap"

	"iams/internal/config"
	"iams/internal/domain"
	"iams/internal/model"
	"iams/internal/storage"
)

// ContentStore routes file bytes between the inline (database) backend and
// the external store, and owns every operation on external bytes. Inline
// bytes themselves travel with the metadata transaction in the repository;
// the store only decides placement for them.
type ContentStore interface {
	// PlacementFor applies the routing rule: inline iff the size is within
	// the configured threshold and the kind is an inline kind.
	PlacementFor(kind model.FileKind, size int64) model.Placement

	// WriteExternal durably stores the stream under a fresh unique handle.
	WriteExternal(ctx context.Context, suggestedName string, r io.Reader, size int64) (string, error)

	// OpenExternal opens stored bytes; absence surfaces as content-missing.
	OpenExternal(ctx context.Context, handle string) (io.ReadCloser, error)

	// DeleteExternal removes stored bytes best-effort: I/O failures are
	// logged and swallowed so metadata deletion can still proceed.
	DeleteExternal(ctx context.Context, handle string) error

	// VerifyExternal streams stored bytes and compares their SHA-256 with
	// the expected checksum.
	VerifyExternal(ctx context.Context, handle string, expected string) (bool, error)
}

type contentStore struct {
	threshold   int64
	inlineKinds map[model.FileKind]struct{}
	ext         storage.ExternalStore
	log         *zap.Logger
}

// NewContentStore validates the routing configuration and returns the store.
// Unknown kind tokens in the inline-kind list are a configuration error, not
// something to discover at upload time.
func NewContentStore(cfg config.StorageConfig, ext storage.ExternalStore, log *zap.Logger) (ContentStore, error) {
	if cfg.InlineThresholdBytes <= 0 {
		return nil, domain.Errf(domain.KindConfigurationInvalid, "inline threshold must be positive, got %d", cfg.InlineThresholdBytes)
	}
	known := map[model.FileKind]struct{}{
		model.FileKindMarkdown: {},
		model.FileKindText:     {},
		model.FileKindPDF:      {},
		model.FileKindSVG:      {},
		model.FileKindPNG:      {},
		model.FileKindJPEG:     {},
		model.FileKindOther:    {},
	}
	inline := make(map[model.FileKind]struct{}, len(cfg.InlineKinds))
	for _, token := range cfg.InlineKinds {
		kind := model.FileKind(token)
		if _, ok := known[kind]; !ok {
			return nil, domain.Errf(domain.KindConfigurationInvalid, "unrecognised inline kind token %q", token)
		}
		inline[kind] = struct{}{}
	}
	return &contentStore{
		threshold:   cfg.InlineThresholdBytes,
		inlineKinds: inline,
		ext:         ext,
		log:         log,
	}, nil
}

func (s *contentStore) PlacementFor(kind model.FileKind, size int64) model.Placement {
	if _, ok := s.inlineKinds[kind]; ok && size <= s.threshold {
		return model.PlacementInline
	}
	return model.PlacementExternal
}

func (s *contentStore) WriteExternal(ctx context.Context, suggestedName string, r io.Reader, size int64) (string, error) {
	return s.ext.Put(ctx, suggestedName, r, size)
}

func (s *contentStore) OpenExternal(ctx context.Context, handle string) (io.ReadCloser, error) {
	return s.ext.Get(ctx, handle)
}

func (s *contentStore) DeleteExternal(ctx context.Context, handle string) error {
	err := s.ext.Delete(ctx, handle)
	if err == nil || errors.Is(err, domain.ErrContentMissing) {
		return nil
	}
	// Swallow I/O failures so the metadata row can still be removed; the
	// orphaned bytes are recoverable by an operator from the log line.
	s.log.Warn("external delete failed, continuing",
		zap.String("handle", handle),
		zap.Error(err),
	)
	return nil
}

func (s *contentStore) VerifyExternal(ctx context.Context, handle string, expected string) (bool, error) {
	rc, err := s.ext.Get(ctx, handle)
	if err != nil {
		return false, err
	}
	defer rc.Close()

	h := sha256.New()
	if _, err := io.Copy(h, rc); err != nil {
		return false, domain.Errf(domain.KindStorageIO, "read %s: %v", handle, err)
	}
	return hex.EncodeToString(h.Sum(nil)) == expected, nil
}

// ChecksumBytes returns the hex SHA-256 of data.
func ChecksumBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
