package history

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "history.log")

	s, err := NewFileStore(path)
	require.NoError(t, err)
	assert.Equal(t, path, s.Path())

	ok, err := s.Exists(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.ReadAll(ctx)
	assert.ErrorIs(t, err, fs.ErrNotExist)

	require.NoError(t, s.Append(ctx, []byte("1,0,1\n")))
	require.NoError(t, s.Append(ctx, []byte("2,1,2\n")))

	ok, err = s.Exists(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	data, err := s.ReadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1,0,1\n2,1,2\n", string(data))

	require.NoError(t, s.Remove(ctx))
	require.NoError(t, s.Remove(ctx), "removing twice is fine")
	_, err = os.Stat(path)
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestFileStoreCancelledContext(t *testing.T) {
	s, err := NewFileStore(filepath.Join(t.TempDir(), "history.log"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, s.Append(ctx, []byte("1,0,1\n")), context.Canceled)
	_, err = s.ReadAll(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	_, err = s.Exists(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, s.Remove(ctx), context.Canceled)
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	ok, err := s.Exists(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	_, err = s.ReadAll(ctx)
	assert.ErrorIs(t, err, fs.ErrNotExist)

	require.NoError(t, s.Append(ctx, []byte("1,0,1\n")))
	data, err := s.ReadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1,0,1\n", string(data))

	require.NoError(t, s.Remove(ctx))
	ok, err = s.Exists(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}
