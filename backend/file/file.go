// Package file implements a backend that exports tasks as a markdown
// checklist file.
package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"gtd/backend"
	"gtd/internal/markdown"
	"gtd/internal/utils"
)

// Config holds file backend configuration
type Config struct {
	ID           string
	FilePath     string // Path to the checklist file
	Enabled      bool
	Default      bool
	AttachedTags []string
	Fs           afero.Fs // defaults to the OS filesystem
}

// Backend writes every queued task to a markdown checklist.
type Backend struct {
	config Config
	src    backend.TaskSource
	fs     afero.Fs

	mu       sync.Mutex
	enabled  bool
	attached []string
	order    []uuid.UUID
	tasks    map[uuid.UUID]backend.Task
}

// New creates a new file backend
func New(cfg Config, src backend.TaskSource) *Backend {
	if cfg.ID == "" {
		cfg.ID = "file"
	}
	if cfg.FilePath == "" {
		cfg.FilePath = "tasks.md"
	}
	fsys := cfg.Fs
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	return &Backend{
		config:   cfg,
		src:      src,
		fs:       fsys,
		enabled:  cfg.Enabled,
		attached: cfg.AttachedTags,
		tasks:    make(map[uuid.UUID]backend.Task),
	}
}

func (b *Backend) ID() string      { return b.config.ID }
func (b *Backend) IsDefault() bool { return b.config.Default }

func (b *Backend) IsEnabled() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.enabled
}

// SetAttachedTags restricts the backend to tasks carrying one of names.
func (b *Backend) SetAttachedTags(names []string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.attached = names
}

// Initialize makes sure the directory of the checklist exists.
func (b *Backend) Initialize(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.fs.MkdirAll(filepath.Dir(b.config.FilePath), 0o755); err != nil {
		return utils.IOFailure("create directory for", b.config.FilePath, err)
	}
	b.enabled = true
	return nil
}

// StartGetTasks reads the tasks already in the checklist so a later write
// keeps their order.
func (b *Backend) StartGetTasks(ctx context.Context) error {
	data, err := afero.ReadFile(b.fs, b.config.FilePath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return utils.IOFailure("read", b.config.FilePath, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, t := range markdown.ParseChecklist(string(data)) {
		if _, seen := b.tasks[t.ID]; !seen {
			b.order = append(b.order, t.ID)
		}
		b.tasks[t.ID] = t
	}
	utils.Debugf("Backend %s read %d task(s) from %s", b.ID(), len(b.tasks), b.config.FilePath)
	return nil
}

// QueueSetTask records the current state of a task and rewrites the file.
// Deleted tasks and tasks without an attached tag are dropped.
func (b *Backend) QueueSetTask(ctx context.Context, id uuid.UUID) error {
	snap, err := b.src.TaskSnapshot(id)
	if err != nil && !errors.Is(err, utils.ErrNotFound) {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if snap == nil || !snap.HasAnyTag(b.attached) {
		delete(b.tasks, id)
	} else {
		if _, seen := b.tasks[id]; !seen {
			b.order = append(b.order, id)
		}
		b.tasks[id] = *snap
	}
	return b.write()
}

// write renders the checklist. Callers hold b.mu.
func (b *Backend) write() error {
	list := make([]backend.Task, 0, len(b.tasks))
	kept := b.order[:0]
	for _, id := range b.order {
		if t, ok := b.tasks[id]; ok {
			list = append(list, t)
			kept = append(kept, id)
		}
	}
	b.order = kept

	roots, children := markdown.OrganizeTasksHierarchically(list)

	var sb strings.Builder
	sb.WriteString("# Tasks\n\n")
	for i := range roots {
		markdown.WriteTaskTree(&sb, &roots[i], children, 0)
	}

	if err := afero.WriteFile(b.fs, b.config.FilePath, []byte(sb.String()), 0o644); err != nil {
		return utils.IOFailure("write", b.config.FilePath, err)
	}
	return nil
}

// Quit stops the backend. With disable it stays off until Initialize.
func (b *Backend) Quit(ctx context.Context, disable bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if disable {
		b.enabled = false
	}
	return nil
}

// Path returns the checklist location.
func (b *Backend) Path() string { return b.config.FilePath }

func (b *Backend) String() string {
	return fmt.Sprintf("file backend %s (%s)", b.ID(), b.config.FilePath)
}
