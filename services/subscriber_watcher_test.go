package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscriberWatcherReloadsOnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "email_update.txt")
	require.NoError(t, os.WriteFile(path, []byte("first@example.com\n"), 0o644))

	store := NewSubscriberStore()
	store.Replace(LoadSubscriberFile(path))
	require.Equal(t, 1, store.Count())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	watcher := NewSubscriberWatcher(path, store)
	require.NoError(t, watcher.Start(ctx))

	require.NoError(t, os.WriteFile(path, []byte("first@example.com\nsecond@example.com\n"), 0o644))

	// The reload is asynchronous; give the watcher a moment.
	deadline := time.Now().Add(3 * time.Second)
	for store.Count() != 2 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	assert.Equal(t, 2, store.Count())
}

func TestSubscriberWatcherIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "email_update.txt")
	require.NoError(t, os.WriteFile(path, []byte("first@example.com\n"), 0o644))

	store := NewSubscriberStore()
	store.Replace(LoadSubscriberFile(path))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	watcher := NewSubscriberWatcher(path, store)
	require.NoError(t, watcher.Start(ctx))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "unrelated.txt"), []byte("x@y.z\n"), 0o644))
	time.Sleep(100 * time.Millisecond)

	assert.Equal(t, 1, store.Count())
}
