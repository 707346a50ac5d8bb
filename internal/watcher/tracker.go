// internal/watcher/tracker.go
package watcher

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"agentctl/internal/config"
)

// Tracker records which project files are touched while a provider run is in
// flight. It is best effort: the engine treats provider side effects as
// opaque, and the recorded paths only annotate the session log.
type Tracker struct {
	root    string
	watcher *fsnotify.Watcher
	logger  *slog.Logger
	done    chan struct{}

	mu    sync.Mutex
	order []string
	seen  map[string]struct{}
}

// NewTracker creates a tracker watching the whole project tree, minus the
// housekeeping directories.
func NewTracker(root string, logger *slog.Logger) (*Tracker, error) {
	if logger == nil {
		logger = slog.Default()
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	t := &Tracker{
		root:    root,
		watcher: w,
		logger:  logger,
		done:    make(chan struct{}),
		seen:    make(map[string]struct{}),
	}

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if _, skip := config.SkipDirs[d.Name()]; skip && path != root {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
	if err != nil {
		w.Close()
		return nil, err
	}

	return t, nil
}

// Start begins collecting events.
func (t *Tracker) Start() {
	go t.watch()
}

// Stop ends collection and returns the deduplicated, first-touch-ordered
// project-relative paths seen during the run.
func (t *Tracker) Stop() []string {
	close(t.done)
	t.watcher.Close()

	t.mu.Lock()
	defer t.mu.Unlock()

	paths := make([]string, len(t.order))
	copy(paths, t.order)
	return paths
}

func (t *Tracker) watch() {
	for {
		select {
		case event, ok := <-t.watcher.Events:
			if !ok {
				return
			}
			t.handle(event)
		case err, ok := <-t.watcher.Errors:
			if !ok {
				return
			}
			t.logger.Warn("change tracker error", "error", err)
		case <-t.done:
			return
		}
	}
}

func (t *Tracker) handle(event fsnotify.Event) {
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}

	rel, err := filepath.Rel(t.root, event.Name)
	if err != nil {
		return
	}
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if _, skip := config.SkipDirs[part]; skip {
			return
		}
	}

	// New directories need their own watch so writes inside them are seen.
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := t.watcher.Add(event.Name); err != nil {
				t.logger.Warn("could not watch new directory", "path", event.Name, "error", err)
			}
			return
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, dup := t.seen[rel]; dup {
		return
	}
	t.seen[rel] = struct{}{}
	t.order = append(t.order, rel)
}
