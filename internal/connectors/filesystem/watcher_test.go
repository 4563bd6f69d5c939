package filesystem

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const eventTimeout = 3 * time.Second

func startWatcher(t *testing.T, dir string) (*Watcher, <-chan Event, context.CancelFunc) {
	t.Helper()
	w := NewWatcher(dir, New(), WithSettle(40*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	events, err := w.Watch(ctx)
	require.NoError(t, err)
	t.Cleanup(func() {
		cancel()
		_ = w.Close()
	})
	return w, events, cancel
}

func nextEvent(t *testing.T, events <-chan Event) Event {
	t.Helper()
	select {
	case ev, ok := <-events:
		require.True(t, ok, "channel closed")
		return ev
	case <-time.After(eventTimeout):
		t.Fatal("timeout waiting for watch event")
		return Event{}
	}
}

func TestWatcher_ReportsNewFiles(t *testing.T) {
	dir := t.TempDir()
	_, events, _ := startWatcher(t, dir)

	path := filepath.Join(dir, "new-file.txt")
	require.NoError(t, os.WriteFile(path, []byte("content"), 0644))

	ev := nextEvent(t, events)
	require.NoError(t, ev.Err)
	assert.Equal(t, path, ev.Path)
	require.NotNil(t, ev.Document)
	assert.Equal(t, "content", string(ev.Document.Content))
	assert.Equal(t, "text/plain", ev.Document.MIMEType)
}

func TestWatcher_SkipsHiddenFiles(t *testing.T) {
	dir := t.TempDir()
	_, events, _ := startWatcher(t, dir)

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".hidden.txt"), []byte("secret"), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, ".git"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".git", "HEAD"), []byte("ref"), 0644))
	time.Sleep(100 * time.Millisecond)
	visible := filepath.Join(dir, "visible.txt")
	require.NoError(t, os.WriteFile(visible, []byte("public"), 0644))

	ev := nextEvent(t, events)
	assert.Equal(t, visible, ev.Path)
}

func TestWatcher_NewSubdirectory(t *testing.T) {
	dir := t.TempDir()
	_, events, _ := startWatcher(t, dir)

	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.Mkdir(sub, 0755))
	path := filepath.Join(sub, "inner.md")
	require.NoError(t, os.WriteFile(path, []byte("# inner"), 0644))

	ev := nextEvent(t, events)
	require.NoError(t, ev.Err)
	assert.Equal(t, path, ev.Path)
	assert.Equal(t, "text/markdown", ev.Document.MIMEType)
}

func TestWatcher_IgnoresExistingFiles(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "existing.txt")
	require.NoError(t, os.WriteFile(existing, []byte("old"), 0644))

	_, events, _ := startWatcher(t, dir)

	require.NoError(t, os.WriteFile(existing, []byte("modified"), 0644))
	time.Sleep(100 * time.Millisecond)
	created := filepath.Join(dir, "created.txt")
	require.NoError(t, os.WriteFile(created, []byte("new"), 0644))

	ev := nextEvent(t, events)
	assert.Equal(t, created, ev.Path)
}

func TestWatcher_ClosesOnCancel(t *testing.T) {
	_, events, cancel := startWatcher(t, t.TempDir())
	cancel()

	select {
	case _, ok := <-events:
		assert.False(t, ok)
	case <-time.After(eventTimeout):
		t.Fatal("channel did not close after context cancellation")
	}
}

func TestWatcher_ClosesOnClose(t *testing.T) {
	w, events, _ := startWatcher(t, t.TempDir())
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	select {
	case _, ok := <-events:
		assert.False(t, ok)
	case <-time.After(eventTimeout):
		t.Fatal("channel did not close after Close")
	}
}

func TestWatcher_Errors(t *testing.T) {
	t.Run("missing root", func(t *testing.T) {
		w := NewWatcher("/non/existent/path", nil)
		events, err := w.Watch(context.Background())
		assert.Nil(t, events)
		assert.ErrorContains(t, err, "root path error")
	})

	t.Run("root is a file", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "f.txt")
		require.NoError(t, os.WriteFile(file, nil, 0644))
		_, err := NewWatcher(file, nil).Watch(context.Background())
		assert.ErrorContains(t, err, "not a directory")
	})

	t.Run("closed", func(t *testing.T) {
		w := NewWatcher(t.TempDir(), nil)
		require.NoError(t, w.Close())
		_, err := w.Watch(context.Background())
		assert.ErrorIs(t, err, ErrWatcherClosed)
	})

	t.Run("started twice", func(t *testing.T) {
		w, _, _ := startWatcher(t, t.TempDir())
		_, err := w.Watch(context.Background())
		assert.Error(t, err)
	})
}
