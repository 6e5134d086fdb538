package thread

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileSystemStore(t *testing.T) {
	testStoreBehaviour(t, func(t *testing.T) Store {
		store, err := NewFileSystemStore(t.TempDir())
		require.NoError(t, err)
		return store
	})
}

func TestFileSystemStore_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "threads")

	store, err := NewFileSystemStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Put(context.Background(), testSnapshot("thread-a", time.Now())))

	_, err = os.Stat(filepath.Join(dir, "thread-a.json"))
	assert.NoError(t, err)
}

func TestFileSystemStore_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileSystemStore(dir)
	require.NoError(t, err)

	require.NoError(t, store.Put(context.Background(), testSnapshot("thread-a", time.Now())))
	require.NoError(t, store.Put(context.Background(), testSnapshot("thread-a", time.Now())))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "thread-a.json", entries[0].Name())
}

func TestFileSystemStore_ListSkipsForeignFiles(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileSystemStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Put(context.Background(), testSnapshot("thread-a", time.Now())))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hello"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.json"), 0o755))

	infos, err := store.List(context.Background())

	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "thread-a", infos[0].ThreadID)
}

func TestFileSystemStore_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileSystemStore(dir)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{not json"), 0o644))

	_, err = store.Get(context.Background(), "broken")

	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}
