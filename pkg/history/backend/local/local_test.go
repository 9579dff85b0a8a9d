package local

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nikolaikolya/deploy-commander/pkg/history/backend"
)

func TestBackend_ReadWrite(t *testing.T) {
	dir := t.TempDir()
	b, err := NewBackend(map[string]string{"path": dir})
	require.NoError(t, err)
	assert.Equal(t, "local", b.Type())

	ctx := context.Background()
	require.NoError(t, b.Write(ctx, "nested/history.json", bytes.NewReader([]byte(`{"records":{}}`))))

	reader, err := b.Read(ctx, "nested/history.json")
	require.NoError(t, err)
	defer reader.Close()
	data, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, `{"records":{}}`, string(data))

	// No temp files are left behind.
	entries, err := os.ReadDir(filepath.Join(dir, "nested"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "history.json", entries[0].Name())
}

func TestBackend_Overwrite(t *testing.T) {
	b, err := NewBackend(map[string]string{"path": t.TempDir()})
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, b.Write(ctx, "h.json", bytes.NewReader([]byte("first, much longer content"))))
	require.NoError(t, b.Write(ctx, "h.json", bytes.NewReader([]byte("second"))))

	reader, err := b.Read(ctx, "h.json")
	require.NoError(t, err)
	defer reader.Close()
	data, _ := io.ReadAll(reader)
	assert.Equal(t, "second", string(data))
}

func TestBackend_NotFoundAndDelete(t *testing.T) {
	b, err := NewBackend(map[string]string{"path": t.TempDir()})
	require.NoError(t, err)
	ctx := context.Background()

	_, err = b.Read(ctx, "missing.json")
	assert.ErrorIs(t, err, backend.ErrNotFound)

	exists, err := b.Exists(ctx, "missing.json")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, b.Write(ctx, "h.json", bytes.NewReader([]byte("x"))))
	exists, err = b.Exists(ctx, "h.json")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, b.Delete(ctx, "h.json"))
	require.NoError(t, b.Delete(ctx, "h.json"))
	exists, _ = b.Exists(ctx, "h.json")
	assert.False(t, exists)
}

func TestBackend_RegisteredAsLocal(t *testing.T) {
	b, err := backend.Create(backend.Config{Type: "local", Config: map[string]string{"path": t.TempDir()}})
	require.NoError(t, err)
	assert.Equal(t, "local", b.Type())

	_, err = backend.Create(backend.Config{Type: "nope"})
	assert.ErrorContains(t, err, "unknown history backend")
}
