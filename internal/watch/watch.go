// Package watch re-runs analysis whenever a log file changes, for follow
// mode against an active run.
package watch

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher debounces write events on a set of log files and invokes the
// callback with the changed path. The callback runs on the watcher
// goroutine; re-analysis of a large file should be quick enough that
// debouncing absorbs editor-style rapid writes.
type Watcher struct {
	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	paths    map[string]bool
	onChange func(path string)
	log      *zap.Logger

	debounce    map[string]time.Time
	debounceDur time.Duration

	stopCh  chan struct{}
	doneCh  chan struct{}
	running bool
}

// New builds a watcher over the given files. onChange must not be nil.
func New(paths []string, onChange func(path string), log *zap.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	w := &Watcher{
		watcher:     fsw,
		paths:       map[string]bool{},
		onChange:    onChange,
		log:         log,
		debounce:    map[string]time.Time{},
		debounceDur: 500 * time.Millisecond,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
	for _, p := range paths {
		w.paths[filepath.Clean(p)] = true
	}
	return w, nil
}

// Start begins watching; non-blocking. Directories are watched rather than
// the files themselves so rotation and atomic replace keep working.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	dirs := map[string]bool{}
	for p := range w.paths {
		dirs[filepath.Dir(p)] = true
	}
	for d := range dirs {
		if err := w.watcher.Add(d); err != nil {
			return err
		}
		w.log.Debug("watching directory", zap.String("dir", d))
	}

	go w.run(ctx)
	return nil
}

// Stop stops the watcher and waits for the loop to drain.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh
	if err := w.watcher.Close(); err != nil {
		w.log.Warn("closing watcher", zap.Error(err))
	}
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("watch error", zap.Error(err))
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return
	}
	path := filepath.Clean(event.Name)
	if !w.paths[path] {
		return
	}

	now := time.Now()
	w.mu.Lock()
	last := w.debounce[path]
	if now.Sub(last) < w.debounceDur {
		w.mu.Unlock()
		return
	}
	w.debounce[path] = now
	w.mu.Unlock()

	w.log.Debug("log file changed", zap.String("path", path))
	w.onChange(path)
}
