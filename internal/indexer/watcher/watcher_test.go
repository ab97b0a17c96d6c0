package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startWatch(t *testing.T, path string, debounce time.Duration) *atomic.Int32 {
	t.Helper()
	var calls atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, debounce, func(context.Context) { calls.Add(1) })
	}()
	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-done)
	})
	// Give the watcher time to register before the test writes.
	time.Sleep(50 * time.Millisecond)
	return &calls
}

func TestWatch_DebouncesBurstOfWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "search_index.js")
	require.NoError(t, os.WriteFile(path, []byte("var documenterSearchIndex = {};"), 0o644))
	calls := startWatch(t, path, 100*time.Millisecond)

	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte("var documenterSearchIndex = {\"docs\":[]};"), 0o644))
		time.Sleep(10 * time.Millisecond)
	}

	assert.Eventually(t, func() bool { return calls.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
}

func TestWatch_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "search_index.js")
	calls := startWatch(t, path, 50*time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.js"), []byte("x"), 0o644))
	time.Sleep(200 * time.Millisecond)
	assert.Zero(t, calls.Load())

	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	assert.Eventually(t, func() bool { return calls.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestWatch_MissingDirectory(t *testing.T) {
	err := Watch(context.Background(), filepath.Join(t.TempDir(), "nope", "x.js"), 0, func(context.Context) {})
	assert.Error(t, err)
}

func TestRelevant(t *testing.T) {
	target := "/data/search_index.js"
	assert.True(t, relevant(fsnotify.Event{Name: target, Op: fsnotify.Write}, target))
	assert.True(t, relevant(fsnotify.Event{Name: target, Op: fsnotify.Create}, target))
	assert.False(t, relevant(fsnotify.Event{Name: target, Op: fsnotify.Chmod}, target))
	assert.False(t, relevant(fsnotify.Event{Name: "/data/other.js", Op: fsnotify.Write}, target))
}
