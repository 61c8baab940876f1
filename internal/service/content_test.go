package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"iams/internal/config"
	"iams/internal/domain"
	"iams/internal/model"
	storeMocks "iams/internal/storage/mocks"
)

func testStorageConfig() config.StorageConfig {
	return config.StorageConfig{
		InlineThresholdBytes: 10 * 1024 * 1024,
		InlineKinds:          []string{"markdown", "text"},
	}
}

func TestNewContentStore_ConfigValidation(t *testing.T) {
	t.Run("rejects a non-positive threshold", func(t *testing.T) {
		cfg := testStorageConfig()
		cfg.InlineThresholdBytes = 0
		_, err := NewContentStore(cfg, new(storeMocks.MockExternalStore), zap.NewNop())
		assert.ErrorIs(t, err, domain.ErrConfigurationInvalid)
	})

	t.Run("rejects unknown inline kind tokens", func(t *testing.T) {
		cfg := testStorageConfig()
		cfg.InlineKinds = []string{"markdown", "spreadsheet"}
		_, err := NewContentStore(cfg, new(storeMocks.MockExternalStore), zap.NewNop())
		assert.ErrorIs(t, err, domain.ErrConfigurationInvalid)
	})

	t.Run("accepts the default configuration", func(t *testing.T) {
		_, err := NewContentStore(testStorageConfig(), new(storeMocks.MockExternalStore), zap.NewNop())
		assert.NoError(t, err)
	})
}

func TestContentStore_PlacementFor(t *testing.T) {
	store, err := NewContentStore(testStorageConfig(), new(storeMocks.MockExternalStore), zap.NewNop())
	require.NoError(t, err)

	threshold := int64(10 * 1024 * 1024)

	tests := []struct {
		name string
		kind model.FileKind
		size int64
		want model.Placement
	}{
		{"small markdown goes inline", model.FileKindMarkdown, 512, model.PlacementInline},
		{"markdown exactly at the threshold goes inline", model.FileKindMarkdown, threshold, model.PlacementInline},
		{"markdown one byte over goes external", model.FileKindMarkdown, threshold + 1, model.PlacementExternal},
		{"small text goes inline", model.FileKindText, 1, model.PlacementInline},
		{"tiny pdf still goes external", model.FileKindPDF, 10, model.PlacementExternal},
		{"png goes external regardless of size", model.FileKindPNG, 100, model.PlacementExternal},
		{"unclassified kind goes external", model.FileKindOther, 100, model.PlacementExternal},
		{"empty markdown goes inline", model.FileKindMarkdown, 0, model.PlacementInline},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, store.PlacementFor(tt.kind, tt.size))
		})
	}
}

func TestContentStore_DeleteExternal(t *testing.T) {
	ctx := context.Background()

	t.Run("treats already-missing content as success", func(t *testing.T) {
		mExt := new(storeMocks.MockExternalStore)
		mExt.On("Delete", ctx, "gone.bin").Return(domain.ErrContentMissing)

		store, err := NewContentStore(testStorageConfig(), mExt, zap.NewNop())
		require.NoError(t, err)
		assert.NoError(t, store.DeleteExternal(ctx, "gone.bin"))
	})

	t.Run("swallows io failures so metadata deletion can proceed", func(t *testing.T) {
		mExt := new(storeMocks.MockExternalStore)
		mExt.On("Delete", ctx, "stuck.bin").Return(errors.New("disk detached"))

		store, err := NewContentStore(testStorageConfig(), mExt, zap.NewNop())
		require.NoError(t, err)
		assert.NoError(t, store.DeleteExternal(ctx, "stuck.bin"))
	})
}

func TestContentStore_VerifyExternal(t *testing.T) {
	ctx := context.Background()
	content := "scan results: 2 open ports"
	checksum := ChecksumBytes([]byte(content))

	t.Run("matches when the stored bytes hash to the expected checksum", func(t *testing.T) {
		mExt := new(storeMocks.MockExternalStore)
		mExt.On("Get", ctx, "scan.txt").Return(io.NopCloser(strings.NewReader(content)), nil)

		store, err := NewContentStore(testStorageConfig(), mExt, zap.NewNop())
		require.NoError(t, err)
		ok, err := store.VerifyExternal(ctx, "scan.txt", checksum)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("rejects bytes that no longer match", func(t *testing.T) {
		mExt := new(storeMocks.MockExternalStore)
		mExt.On("Get", ctx, "scan.txt").Return(io.NopCloser(strings.NewReader("tampered")), nil)

		store, err := NewContentStore(testStorageConfig(), mExt, zap.NewNop())
		require.NoError(t, err)
		ok, err := store.VerifyExternal(ctx, "scan.txt", checksum)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestChecksumBytes(t *testing.T) {
	// Known SHA-256 vector.
	assert.Equal(t,
		"2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824",
		ChecksumBytes([]byte("hello")),
	)
}
