package kv

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exercise(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := s.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Put(ctx, "auth", []byte(`{"token":"a"}`)))
	require.NoError(t, s.Put(ctx, "auth", []byte(`{"token":"b"}`)))
	v, ok, err := s.Get(ctx, "auth")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"token":"b"}`, string(v))

	require.NoError(t, s.Delete(ctx, "auth"))
	require.NoError(t, s.Delete(ctx, "auth"))
	_, ok, err = s.Get(ctx, "auth")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemory(t *testing.T) {
	exercise(t, NewMemory())
}

func TestMemoryCopiesValues(t *testing.T) {
	s := NewMemory()
	buf := []byte("abc")
	require.NoError(t, s.Put(context.Background(), "k", buf))
	buf[0] = 'z'
	v, _, _ := s.Get(context.Background(), "k")
	assert.Equal(t, "abc", string(v))
}

func TestSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auth.db")
	s, err := OpenSQLite(path)
	require.NoError(t, err)
	exercise(t, s)

	require.NoError(t, s.Put(context.Background(), "persisted", []byte("yes")))
	require.NoError(t, s.Close())

	reopened, err := OpenSQLite(path)
	require.NoError(t, err)
	defer reopened.Close()
	v, ok, err := reopened.Get(context.Background(), "persisted")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "yes", string(v))
}
