// Package watcher watches document folders with fsnotify and appends newly
// created files to a live index.
package watcher

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultDebounce = 400 * time.Millisecond

// Watcher reports files created under its roots once writes to them settle.
// The index is append-only, so files that existed when watching started or
// that were already reported are not reported again when modified.
type Watcher struct {
	roots      []string
	extensions []string
	recursive  bool
	onAdd      func(path string)
	onRemove   func(path string)
	settle     time.Duration
	logger     *zap.Logger

	mu       sync.Mutex
	fsw      *fsnotify.Watcher
	settling map[string]*time.Timer
	seen     map[string]bool
	quit     chan struct{}
	quitOnce sync.Once
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithLogger sets the logger for watcher events.
func WithLogger(l *zap.Logger) WatcherOption {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithDebounce sets how long a new file must stay unwritten before it is reported.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.settle = d
		}
	}
}

// NewWatcher creates a watcher over roots. onAdd is called for each new file
// whose extension is in extensions (empty means all); onRemove, which may
// be nil, for removed ones.
func NewWatcher(roots []string, extensions []string, recursive bool, onAdd, onRemove func(path string), opts ...WatcherOption) *Watcher {
	cleaned := make([]string, len(roots))
	for i, r := range roots {
		cleaned[i] = filepath.Clean(r)
	}
	w := &Watcher{
		roots:      cleaned,
		extensions: extensions,
		recursive:  recursive,
		onAdd:      onAdd,
		onRemove:   onRemove,
		settle:     defaultDebounce,
		logger:     zap.NewNop(),
		settling:   make(map[string]*time.Timer),
		seen:       make(map[string]bool),
		quit:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start registers the roots, creating missing ones, and processes events
// until ctx is cancelled or Stop is called. Files already present are
// treated as indexed. Calling Start on a running watcher is a no-op.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fsw != nil {
		return nil
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	for _, root := range w.roots {
		if err := w.register(fsw, root); err != nil {
			_ = fsw.Close()
			return err
		}
	}
	w.fsw = fsw
	w.logger.Info("watcher starting",
		zap.Strings("roots", w.roots),
		zap.Strings("extensions", w.extensions),
		zap.Bool("recursive", w.recursive))
	go w.loop(ctx, fsw)
	return nil
}

// register walks root, watching its directories and marking its files as
// already indexed.
func (w *Watcher) register(fsw *fsnotify.Watcher, root string) error {
	if err := os.MkdirAll(root, 0755); err != nil {
		return err
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		switch {
		case err != nil:
			return err
		case !d.IsDir():
			w.seen[path] = true
			return nil
		case path != root && (!w.recursive || isHidden(d.Name())):
			return fs.SkipDir
		}
		return fsw.Add(path)
	})
}

func (w *Watcher) loop(ctx context.Context, fsw *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.quit:
			return
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			w.dispatch(fsw, ev)
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) dispatch(fsw *fsnotify.Watcher, ev fsnotify.Event) {
	path := filepath.Clean(ev.Name)
	if !w.covers(path) {
		return
	}
	w.logger.Debug("watcher event", zap.String("op", ev.Op.String()), zap.String("path", path))

	if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
		w.forget(path)
		return
	}
	if ev.Has(fsnotify.Create) {
		info, err := os.Stat(path)
		if err != nil {
			return
		}
		if info.IsDir() {
			w.adoptDirectory(fsw, path)
		} else {
			w.schedule(path)
		}
		return
	}
	if ev.Has(fsnotify.Write) {
		w.mu.Lock()
		_, pending := w.settling[path]
		indexed := w.seen[path]
		w.mu.Unlock()
		switch {
		case pending:
			w.schedule(path)
		case indexed && matchExtension(path, w.extensions):
			w.logger.Debug("modified file not re-added", zap.String("path", path))
		}
	}
}

// adoptDirectory watches a directory created under a root and reports the
// files already inside it.
func (w *Watcher) adoptDirectory(fsw *fsnotify.Watcher, dir string) {
	if !w.recursive {
		return
	}
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			w.schedule(path)
			return nil
		}
		if isHidden(d.Name()) {
			return fs.SkipDir
		}
		if err := fsw.Add(path); err != nil && !errors.Is(err, fsnotify.ErrClosed) {
			w.logger.Warn("watcher failed to add directory", zap.String("path", path), zap.Error(err))
		}
		return nil
	})
}

// schedule (re)starts the settle timer for a candidate file. Files with an
// unwanted extension or already reported are ignored.
func (w *Watcher) schedule(path string) {
	if !matchExtension(path, w.extensions) {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.seen[path] {
		return
	}
	if t, ok := w.settling[path]; ok {
		t.Reset(w.settle)
		return
	}
	w.settling[path] = time.AfterFunc(w.settle, func() { w.fire(path) })
}

func (w *Watcher) fire(path string) {
	w.mu.Lock()
	delete(w.settling, path)
	if w.seen[path] || w.fsw == nil {
		w.mu.Unlock()
		return
	}
	w.seen[path] = true
	w.mu.Unlock()

	w.logger.Debug("watcher adding file", zap.String("path", path))
	if w.onAdd != nil {
		w.onAdd(path)
	}
}

func (w *Watcher) forget(path string) {
	w.mu.Lock()
	if t, ok := w.settling[path]; ok {
		t.Stop()
		delete(w.settling, path)
	}
	indexed := w.seen[path]
	w.mu.Unlock()

	if indexed && matchExtension(path, w.extensions) {
		w.logger.Info("indexed file removed; its entries stay in the index", zap.String("path", path))
		if w.onRemove != nil {
			w.onRemove(path)
		}
	}
}

// covers reports whether path is a root or lies where the watcher looks.
func (w *Watcher) covers(path string) bool {
	for _, root := range w.roots {
		if path == root {
			return true
		}
		if w.recursive {
			if rel, err := filepath.Rel(root, path); err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
				return true
			}
		} else if filepath.Dir(path) == root {
			return true
		}
	}
	return false
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

func matchExtension(path string, extensions []string) bool {
	if len(extensions) == 0 {
		return true
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	for _, e := range extensions {
		if strings.TrimPrefix(strings.ToLower(e), ".") == ext {
			return true
		}
	}
	return false
}

// Directories returns a copy of the watched root directories.
func (w *Watcher) Directories() []string {
	return append([]string(nil), w.roots...)
}

// Stop stops the watcher and releases resources. Pending files are dropped.
func (w *Watcher) Stop() {
	w.mu.Lock()
	fsw := w.fsw
	w.fsw = nil
	for path, t := range w.settling {
		t.Stop()
		delete(w.settling, path)
	}
	w.mu.Unlock()
	if fsw == nil {
		return
	}
	_ = fsw.Close()
	w.quitOnce.Do(func() { close(w.quit) })
	w.logger.Info("watcher stopped")
}
