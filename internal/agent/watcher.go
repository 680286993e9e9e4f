package agent

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/mwantia/imgtag/internal/library"
	"github.com/mwantia/imgtag/pkg/log"
)

// renameWindow is how long a renamed path waits for the Create of its new name
// before it is treated as removed.
const renameWindow = 500 * time.Millisecond

// watcher keeps the library in sync with filesystem events below the watched directories
type watcher struct {
	fs        *fsnotify.Watcher
	library   *library.Library
	log       log.LoggerService
	recursive bool
	window    time.Duration

	mu       sync.Mutex
	pending  []*pendingRename // oldest first
	inflight sync.WaitGroup
	closed   bool
}

// pendingRename is the old name of a renamed path whose new name has not been seen yet
type pendingRename struct {
	path  string
	timer *time.Timer
}

func newWatcher(lib *library.Library, logger log.LoggerService, recursive bool) (*watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &watcher{
		fs:        fsw,
		library:   lib,
		log:       logger,
		recursive: recursive,
		window:    renameWindow,
	}, nil
}

// AddTree watches dir and, when recursive, every directory below it
func (w *watcher) AddTree(dir string) error {
	root, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	if !w.recursive {
		return w.fs.Add(root)
	}

	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			w.log.Warn("Skipping '%s': %v", path, err)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.fs.Add(path); err != nil {
			return err
		}
		w.log.Debug("Watching '%s'", path)
		return nil
	})
}

// Run dispatches events until ctx is done or the watcher is closed
func (w *watcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.handle(ctx, event)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.log.Error("Directory watcher error: %v", err)
		}
	}
}

func (w *watcher) handle(ctx context.Context, event fsnotify.Event) {
	switch {
	case event.Has(fsnotify.Rename):
		w.holdRename(ctx, event.Name)

	case event.Has(fsnotify.Remove):
		if _, err := w.library.Untrack(ctx, event.Name); err != nil {
			w.log.Warn("Failed to untrack '%s': %v", event.Name, err)
		}

	case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
		info, err := os.Stat(event.Name)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				w.log.Warn("Unable to stat '%s': %v", event.Name, err)
			}
			return
		}

		if info.IsDir() {
			if !event.Has(fsnotify.Create) {
				return
			}
			w.adoptRename(ctx, event.Name)
			if !w.recursive {
				return
			}
			if err := w.AddTree(event.Name); err != nil {
				w.log.Warn("Unable to watch '%s': %v", event.Name, err)
			}
			// Files may have landed before the watch was added
			if _, err := w.library.IngestDirectory(ctx, event.Name, true); err != nil {
				w.log.Warn("Failed to ingest '%s': %v", event.Name, err)
			}
			return
		}

		if !w.library.Accepts(event.Name) {
			return
		}
		if event.Has(fsnotify.Create) {
			w.adoptRename(ctx, event.Name)
		}
		if err := w.library.IngestFile(ctx, event.Name); err != nil {
			w.log.Warn("Failed to ingest '%s': %v", event.Name, err)
		}
	}
}

// holdRename defers untracking path until the rename window expires without a matching Create
func (w *watcher) holdRename(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}
	for _, p := range w.pending {
		if p.path == path {
			return
		}
	}

	p := &pendingRename{path: path}
	p.timer = time.AfterFunc(w.window, func() {
		w.mu.Lock()
		if !w.release(p) {
			w.mu.Unlock()
			return
		}
		w.inflight.Add(1)
		w.mu.Unlock()
		defer w.inflight.Done()

		if _, err := w.library.Untrack(ctx, p.path); err != nil {
			w.log.Warn("Failed to untrack '%s': %v", p.path, err)
		}
	})
	w.pending = append(w.pending, p)
}

// adoptRename moves the most recently renamed path to newPath, keeping its tags.
// inotify reports both halves of a rename back to back, so the latest pending rename is the match.
func (w *watcher) adoptRename(ctx context.Context, newPath string) {
	w.mu.Lock()
	var p *pendingRename
	if n := len(w.pending); n > 0 {
		p = w.pending[n-1]
		p.timer.Stop()
		w.release(p)
	}
	w.mu.Unlock()

	if p == nil || p.path == newPath {
		return
	}

	if err := w.library.Move(ctx, p.path, newPath); err != nil {
		w.log.Warn("Failed to follow rename of '%s': %v", p.path, err)
		if _, err := w.library.Untrack(ctx, p.path); err != nil {
			w.log.Warn("Failed to untrack '%s': %v", p.path, err)
		}
	}
}

// release drops p from the pending list and reports whether it was still pending. Caller holds mu.
func (w *watcher) release(p *pendingRename) bool {
	for i, candidate := range w.pending {
		if candidate == p {
			w.pending = append(w.pending[:i], w.pending[i+1:]...)
			return true
		}
	}
	return false
}

func (w *watcher) Close() error {
	w.mu.Lock()
	w.closed = true
	for _, p := range w.pending {
		p.timer.Stop()
	}
	w.pending = nil
	w.mu.Unlock()

	w.inflight.Wait()
	return w.fs.Close()
}
