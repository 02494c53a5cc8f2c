package storage_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheMichaelB/casevault/internal/events"
	"github.com/TheMichaelB/casevault/internal/storage"
)

func newFileStore(t *testing.T) (*storage.FileStore, string) {
	t.Helper()
	dir := t.TempDir()
	var buf bytes.Buffer
	store, err := storage.NewFileStore(dir, events.NewTestLogger(events.DebugLevel, "json", &buf))
	require.NoError(t, err)
	return store, dir
}

func TestFileStoreLayout(t *testing.T) {
	store, dir := newFileStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "school-a/db-core", []byte("{}")))
	assert.FileExists(t, filepath.Join(dir, "school-a", "db-core.json"))

	info, err := os.Stat(filepath.Join(dir, "school-a", "db-core.json"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	// No temp files remain.
	entries, err := os.ReadDir(filepath.Join(dir, "school-a"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	require.NoError(t, store.Delete(ctx, "school-a/db-core"))
	assert.NoDirExists(t, filepath.Join(dir, "school-a"))
}

func TestFileStoreSetIfAbsentLeavesNoTemp(t *testing.T) {
	store, dir := newFileStore(t)
	ctx := context.Background()

	_, created, err := store.SetIfAbsent(ctx, "kdf-salt", []byte("a"))
	require.NoError(t, err)
	assert.True(t, created)

	_, created, err = store.SetIfAbsent(ctx, "kdf-salt", []byte("b"))
	require.NoError(t, err)
	assert.False(t, created)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestFileStoreRejectsTraversal(t *testing.T) {
	store, _ := newFileStore(t)
	ctx := context.Background()

	ids := []string{"../escape", "a/../../escape", "..", "."}
	for _, id := range ids {
		t.Run(id, func(t *testing.T) {
			assert.Error(t, store.Set(ctx, id, []byte("x")))
			_, err := store.Get(ctx, id)
			assert.Error(t, err)
		})
	}
}

func TestFileStoreRejectsSymlink(t *testing.T) {
	store, dir := newFileStore(t)

	target := filepath.Join(t.TempDir(), "outside.json")
	require.NoError(t, os.WriteFile(target, []byte("secret"), 0600))
	if err := os.Symlink(target, filepath.Join(dir, "db-core.json")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	_, err := store.Get(context.Background(), "db-core")
	assert.Error(t, err)
}

func TestFileStoreMaxRecordSize(t *testing.T) {
	store, _ := newFileStore(t)
	store.SetMaxRecordSize(8)

	err := store.Set(context.Background(), "db-core", make([]byte, 9))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "record too large")
}

func TestBoltStoreReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.db")
	logger := events.Nop()
	ctx := context.Background()

	store, err := storage.NewBoltStore(path, logger)
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, "db-core", []byte("persisted")))
	require.NoError(t, store.Close())

	store, err = storage.NewBoltStore(path, logger)
	require.NoError(t, err)
	defer store.Close()

	got, err := store.Get(ctx, "db-core")
	require.NoError(t, err)
	assert.Equal(t, "persisted", string(got))
}

func TestSQLiteStoreReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.sqlite")
	logger := events.Nop()
	ctx := context.Background()

	store, err := storage.NewSQLiteStore(path, logger)
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, "db-vault", []byte{}))
	require.NoError(t, store.Close())

	store, err = storage.NewSQLiteStore(path, logger)
	require.NoError(t, err)
	defer store.Close()

	got, err := store.Get(ctx, "db-vault")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestNamespacedIsolation(t *testing.T) {
	backing := storage.NewMemoryStore()
	a := storage.Namespaced(backing, "school-a")
	b := storage.Namespaced(backing, "/school-b/")
	ctx := context.Background()

	require.NoError(t, a.Set(ctx, "kdf-salt", []byte("a")))
	require.NoError(t, b.Set(ctx, "kdf-salt", []byte("b")))

	assert.Equal(t, []string{"school-a/kdf-salt", "school-b/kdf-salt"}, backing.IDs())

	got, err := a.Get(ctx, "kdf-salt")
	require.NoError(t, err)
	assert.Equal(t, "a", string(got))

	assert.Same(t, backing, storage.Namespaced(backing, ""))
}
