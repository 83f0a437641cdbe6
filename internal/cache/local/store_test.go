package local_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/jobsweep/internal/cache/local"
	"github.com/JakeFAU/jobsweep/internal/jobs"
)

func TestNew(t *testing.T) {
	t.Run("ValidConfig", func(t *testing.T) {
		store, err := local.New(local.Config{Dir: t.TempDir()})
		require.NoError(t, err)
		assert.NotNil(t, store)
	})

	t.Run("CreatesMissingDir", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "api_cache")
		_, err := local.New(local.Config{Dir: dir})
		require.NoError(t, err)
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})

	t.Run("MissingDir", func(t *testing.T) {
		_, err := local.New(local.Config{})
		assert.Error(t, err)
	})

	t.Run("PathIsFile", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "file")
		require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))
		_, err := local.New(local.Config{Dir: file})
		assert.Error(t, err)
	})

	t.Run("NotWritable", func(t *testing.T) {
		if os.Geteuid() == 0 {
			t.Skip("root ignores directory permissions")
		}
		dir := t.TempDir()
		// #nosec G302 -- directory permissions adjusted intentionally for test coverage.
		require.NoError(t, os.Chmod(dir, 0o500))
		_, err := local.New(local.Config{Dir: dir})
		assert.Error(t, err)
		// #nosec G302 -- reverting permissions to allow cleanup in the test environment.
		require.NoError(t, os.Chmod(dir, 0o700))
	})
}

func TestReadWrite(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := local.New(local.Config{Dir: dir})
	require.NoError(t, err)

	_, _, err = store.Read(context.Background(), "abc")
	require.ErrorIs(t, err, jobs.ErrNotFound)

	require.NoError(t, store.Write(context.Background(), "abc", []byte(`[{"id":"1"}]`)))
	data, created, err := store.Read(context.Background(), "abc")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"1"}]`, string(data))
	assert.WithinDuration(t, time.Now(), created, 5*time.Second)

	info, err := os.Stat(filepath.Join(dir, "abc.json"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestReadUsesModTime(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := local.New(local.Config{Dir: dir})
	require.NoError(t, err)
	require.NoError(t, store.Write(context.Background(), "k", []byte("[]")))

	old := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, os.Chtimes(filepath.Join(dir, "k.json"), old, old))
	_, created, err := store.Read(context.Background(), "k")
	require.NoError(t, err)
	assert.True(t, created.Equal(old))
}

func TestPathTraversalRejected(t *testing.T) {
	t.Parallel()

	store, err := local.New(local.Config{Dir: t.TempDir()})
	require.NoError(t, err)
	require.ErrorContains(t, store.Write(context.Background(), "../escape", []byte("[]")), "path traversal")
	require.ErrorContains(t, store.Write(context.Background(), "a/b", []byte("[]")), "path traversal")
	require.Error(t, store.Write(context.Background(), " ", []byte("[]")))
}

func TestPrune(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := local.New(local.Config{Dir: dir})
	require.NoError(t, err)
	require.NoError(t, store.Write(context.Background(), "old", []byte("[]")))
	require.NoError(t, store.Write(context.Background(), "fresh", []byte("[]")))
	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, "old.json"), old, old))

	removed, err := store.Prune(context.Background(), time.Now().Add(-24 * time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	_, _, err = store.Read(context.Background(), "old")
	assert.ErrorIs(t, err, jobs.ErrNotFound)
	_, _, err = store.Read(context.Background(), "fresh")
	assert.NoError(t, err)
}
