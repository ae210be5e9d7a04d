// Package watcher reports changes to data files made by other processes.
// Files are watched through their parent directory because saving replaces
// the file instead of writing it in place. Bursts of events are debounced
// into a single notification per file.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"gtd/internal/utils"
)

// DefaultDebounceDuration is the default debounce window for batching rapid changes.
const DefaultDebounceDuration = 500 * time.Millisecond

// ErrStopped is returned by Run once the watcher has been closed.
var ErrStopped = errors.New("watcher has been stopped and cannot be restarted")

// Config holds file watcher configuration.
type Config struct {
	Paths            []string          // Files to watch
	DebounceDuration time.Duration     // Debounce window to batch rapid changes
	OnChange         func(path string) // Called once per changed file after the window
}

// Watcher monitors file system changes and reports them through OnChange.
type Watcher struct {
	cfg   Config
	fsw   *fsnotify.Watcher
	files map[string]bool // cleaned paths of watched files

	mu      sync.Mutex
	stopped bool
}

// New creates a new Watcher instance.
func New(cfg Config) (*Watcher, error) {
	if cfg.DebounceDuration <= 0 {
		cfg.DebounceDuration = DefaultDebounceDuration
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	w := &Watcher{cfg: cfg, fsw: fsw, files: make(map[string]bool)}
	dirs := make(map[string]bool)
	for _, p := range cfg.Paths {
		p = filepath.Clean(p)
		w.files[p] = true
		dirs[filepath.Dir(p)] = true
	}
	for dir := range dirs {
		if err := fsw.Add(dir); err != nil {
			_ = fsw.Close()
			return nil, fmt.Errorf("failed to watch directory %q: %w", dir, err)
		}
	}
	return w, nil
}

// Run processes events until ctx is cancelled or Close is called.
func (w *Watcher) Run(ctx context.Context) error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return ErrStopped
	}
	w.mu.Unlock()
	defer w.Close()

	timer := time.NewTimer(w.cfg.DebounceDuration)
	timer.Stop()
	defer timer.Stop()
	pending := make(map[string]bool)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			name := filepath.Clean(event.Name)
			if !w.files[name] {
				continue
			}
			utils.Debugf("Watcher saw %s on %s", event.Op, name)
			pending[name] = true
			timer.Reset(w.cfg.DebounceDuration)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			utils.Warnf("File watcher error: %v", err)

		case <-timer.C:
			changed := make([]string, 0, len(pending))
			for p := range pending {
				changed = append(changed, p)
			}
			clear(pending)
			sort.Strings(changed)
			for _, p := range changed {
				if w.cfg.OnChange != nil {
					w.cfg.OnChange(p)
				}
			}
		}
	}
}

// Close stops the watcher and releases its resources.
func (w *Watcher) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return
	}
	w.stopped = true
	_ = w.fsw.Close()
}
