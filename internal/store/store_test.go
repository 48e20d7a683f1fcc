package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func backends(t *testing.T) map[string]Store {
	t.Helper()
	dir := t.TempDir()
	file, err := Open("file", filepath.Join(dir, "state.json"))
	require.NoError(t, err)
	db, err := Open("sqlite", filepath.Join(dir, "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return map[string]Store{"file": file, "sqlite": db}
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Load(ctx)
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, s.Save(ctx, []byte(`{"effectLib":[],"effects":{}}`)))
			require.NoError(t, s.Save(ctx, []byte(`{"effectLib":["light"],"effects":{}}`)))

			got, err := s.Load(ctx)
			require.NoError(t, err)
			assert.Equal(t, `{"effectLib":["light"],"effects":{}}`, string(got))
		})
	}
}

func TestSetAsideKeepsDocument(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.SetAside(ctx), "nothing stored yet")

			require.NoError(t, s.Save(ctx, []byte(`{"effectLib":`)))
			require.NoError(t, s.SetAside(ctx))
			_, err := s.Load(ctx)
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, s.Save(ctx, []byte(`{"effectLib":[],"effects":{}}`)))
			got, err := s.Load(ctx)
			require.NoError(t, err)
			assert.Equal(t, `{"effectLib":[],"effects":{}}`, string(got))
		})
	}
}

func TestFileSetAsideRenames(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.json")
	f := NewFile(path)
	require.NoError(t, f.Save(ctx, []byte("broken")))
	require.NoError(t, f.SetAside(ctx))
	b, err := os.ReadFile(path + ".bad")
	require.NoError(t, err)
	assert.Equal(t, "broken", string(b))
}

func TestSQLiteSetAsideKeepsRow(t *testing.T) {
	ctx := context.Background()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.Save(ctx, []byte("broken")))
	require.NoError(t, s.SetAside(ctx))

	var doc string
	require.NoError(t, s.db.QueryRowContext(ctx, `SELECT doc FROM state_bad ORDER BY id DESC LIMIT 1`).Scan(&doc))
	assert.Equal(t, "broken", doc)
}

func TestFileSkipsUnchangedWrite(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.json")
	f := NewFile(path)
	require.NoError(t, f.Save(ctx, []byte("{}")))

	old := time.Now().Add(-time.Hour).Truncate(time.Second)
	require.NoError(t, os.Chtimes(path, old, old))

	require.NoError(t, f.Save(ctx, []byte("{}")))
	st, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, old, st.ModTime(), "file not rewritten")

	require.NoError(t, f.Save(ctx, []byte(`{"a":1}`)))
	st, _ = os.Stat(path)
	assert.NotEqual(t, old, st.ModTime())
}

func TestSQLiteReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.db")
	s, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, []byte(`{"x":true}`)))
	require.NoError(t, s.Close())

	s, err = OpenSQLite(path)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, `{"x":true}`, string(got))
}

func TestOpenUnknownBackend(t *testing.T) {
	_, err := Open("etcd", "x")
	assert.Error(t, err)
}
