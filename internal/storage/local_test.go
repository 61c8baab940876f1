package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iams/internal/domain"
)

func TestLocalStore_PutGetDelete(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	handle, err := store.Put(ctx, "report final.pdf", strings.NewReader("hello"), 5)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(handle, "_report_final.pdf"))

	rc, err := store.Get(ctx, handle)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	rc.Close()
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	require.NoError(t, store.Delete(ctx, handle))

	_, err = store.Get(ctx, handle)
	assert.ErrorIs(t, err, domain.ErrContentMissing)

	err = store.Delete(ctx, handle)
	assert.ErrorIs(t, err, domain.ErrContentMissing)
}

func TestLocalStore_UniqueHandles(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	h1, err := store.Put(ctx, "a.txt", strings.NewReader("one"), 3)
	require.NoError(t, err)
	h2, err := store.Put(ctx, "a.txt", strings.NewReader("two"), 3)
	require.NoError(t, err)

	assert.NotEqual(t, h1, h2)
}

func TestLocalStore_NoPartialFiles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := NewLocalStore(dir)
	require.NoError(t, err)

	// A reader that fails midway must leave nothing behind.
	r := io.MultiReader(strings.NewReader("part"), failingReader{})
	_, err = store.Put(ctx, "broken.bin", r, -1)
	assert.ErrorIs(t, err, domain.ErrStorageIO)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLocalStore_CreatesBaseDir(t *testing.T) {
	base := filepath.Join(t.TempDir(), "nested", "uploads")
	_, err := NewLocalStore(base)
	require.NoError(t, err)

	info, err := os.Stat(base)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, io.ErrUnexpectedEOF }
