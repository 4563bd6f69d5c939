package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/logger"
)

// DefaultSettle is how long a new file must stay unchanged before it is read.
const DefaultSettle = 500 * time.Millisecond

// ErrWatcherClosed is returned by Watch after Close.
var ErrWatcherClosed = errors.New("watcher closed")

// Event reports a file that appeared under the watched directory.
type Event struct {
	Path     string
	Document *domain.RawDocument
	Err      error
}

// Watcher reports files created under a directory tree. Hidden files and
// directories are skipped. A file is read once writes to it settle.
type Watcher struct {
	root   string
	loader *Loader
	settle time.Duration

	mu      sync.Mutex
	fsw     *fsnotify.Watcher
	closed  bool
	pending map[string]time.Time
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithSettle sets the quiet period before a new file is read.
func WithSettle(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.settle = d
		}
	}
}

// NewWatcher creates a watcher for root that reads files with loader.
func NewWatcher(root string, loader *Loader, opts ...WatcherOption) *Watcher {
	if loader == nil {
		loader = New()
	}
	w := &Watcher{
		root:   root,
		loader: loader,
		settle: DefaultSettle,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Watch starts watching and returns the event channel. The channel is closed
// when ctx is cancelled or the watcher is closed.
func (w *Watcher) Watch(ctx context.Context) (<-chan Event, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil, ErrWatcherClosed
	}
	if w.fsw != nil {
		return nil, errors.New("watcher already started")
	}

	root, err := filepath.Abs(w.root)
	if err != nil {
		return nil, fmt.Errorf("root path error: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("root path error: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root path error: %s is not a directory", root)
	}
	w.root = root

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	if _, err := w.addTree(fsw, root); err != nil {
		fsw.Close()
		return nil, err
	}
	w.fsw = fsw
	w.pending = make(map[string]time.Time)

	logger.Info("Watching %s", root)

	out := make(chan Event)
	go w.run(ctx, fsw, out)
	return out, nil
}

// Close stops the watcher. It is safe to call more than once.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	if w.fsw != nil {
		return w.fsw.Close()
	}
	return nil
}

func (w *Watcher) run(ctx context.Context, fsw *fsnotify.Watcher, out chan<- Event) {
	defer close(out)
	defer fsw.Close()

	ticker := time.NewTicker(w.settle / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			w.handleFsEvent(fsw, ev)

		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			if !send(ctx, out, Event{Err: err}) {
				return
			}

		case now := <-ticker.C:
			for _, path := range w.settled(now) {
				doc, err := w.loader.Load(ctx, path)
				if !send(ctx, out, Event{Path: path, Document: doc, Err: err}) {
					return
				}
			}
		}
	}
}

// handleFsEvent tracks created files until they settle. New directories are
// watched and any files already inside them are queued.
func (w *Watcher) handleFsEvent(fsw *fsnotify.Watcher, ev fsnotify.Event) {
	rel, err := filepath.Rel(w.root, ev.Name)
	if err != nil || isHidden(rel) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	switch {
	case ev.Has(fsnotify.Create):
		info, err := os.Stat(ev.Name)
		if err != nil {
			return
		}
		if info.IsDir() {
			files, err := w.addTree(fsw, ev.Name)
			if err != nil {
				logger.Warn("Not watching %s: %v", ev.Name, err)
			}
			for _, f := range files {
				w.pending[f] = time.Now()
			}
			return
		}
		if info.Mode().IsRegular() {
			w.pending[ev.Name] = time.Now()
		}

	case ev.Has(fsnotify.Write):
		if _, ok := w.pending[ev.Name]; ok {
			w.pending[ev.Name] = time.Now()
		}

	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		delete(w.pending, ev.Name)
	}
}

// settled removes and returns the files quiet for at least the settle period.
func (w *Watcher) settled(now time.Time) []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	var ready []string
	for path, at := range w.pending {
		if now.Sub(at) >= w.settle {
			ready = append(ready, path)
			delete(w.pending, path)
		}
	}
	return ready
}

// addTree watches dir and its visible subdirectories and returns the regular
// files found below dir.
func (w *Watcher) addTree(fsw *fsnotify.Watcher, dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(w.root, path)
		if rel != "." && isHidden(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return fsw.Add(path)
		}
		if d.Type().IsRegular() && path != dir {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

func send(ctx context.Context, out chan<- Event, ev Event) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
