// Package sqlite is a backend that mirrors tasks into a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"gtd/backend"
	"gtd/internal/utils"
)

// ErrNotInitialized is returned when the database is not open.
var ErrNotInitialized = errors.New("sqlite backend not initialized")

// Config describes one SQLite backend instance.
type Config struct {
	ID           string
	Path         string
	Enabled      bool
	Default      bool
	AttachedTags []string
}

// Backend implements backend.Backend using SQLite
type Backend struct {
	cfg Config
	src backend.TaskSource

	mu       sync.Mutex
	db       *sql.DB
	enabled  bool
	attached []string
}

// New returns a backend reading tasks from src. The database is opened by
// Initialize.
func New(cfg Config, src backend.TaskSource) *Backend {
	if cfg.ID == "" {
		cfg.ID = "sqlite"
	}
	return &Backend{
		cfg:      cfg,
		src:      src,
		enabled:  cfg.Enabled,
		attached: cfg.AttachedTags,
	}
}

func (b *Backend) ID() string      { return b.cfg.ID }
func (b *Backend) IsDefault() bool { return b.cfg.Default }

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

// Initialize opens the database and creates the schema.
func (b *Backend) Initialize(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.db != nil {
		b.enabled = true
		return nil
	}

	db, err := sql.Open("sqlite", b.cfg.Path)
	if err != nil {
		return err
	}
	// A single connection keeps ":memory:" databases shared.
	db.SetMaxOpenConns(1)

	if err := initSchema(ctx, db); err != nil {
		_ = db.Close()
		return fmt.Errorf("sqlite schema at %s: %w", b.cfg.Path, err)
	}
	b.db = db
	b.enabled = true
	return nil
}

// initSchema creates the database tables if they don't exist
func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS tasks (
			id TEXT PRIMARY KEY,
			parent_id TEXT DEFAULT '',
			title TEXT NOT NULL,
			content TEXT DEFAULT '',
			status TEXT NOT NULL DEFAULT 'Active',
			tags TEXT DEFAULT '',
			added TEXT NOT NULL,
			modified TEXT NOT NULL,
			due TEXT DEFAULT '',
			start TEXT DEFAULT '',
			closed TEXT DEFAULT ''
		);

		CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
		CREATE INDEX IF NOT EXISTS idx_tasks_parent ON tasks(parent_id);
	`
	_, err := db.ExecContext(ctx, schema)
	return err
}

func (b *Backend) conn() (*sql.DB, []string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.db == nil {
		return nil, nil, ErrNotInitialized
	}
	return b.db, b.attached, nil
}

// StartGetTasks reports how many tasks the database holds.
func (b *Backend) StartGetTasks(ctx context.Context) error {
	db, _, err := b.conn()
	if err != nil {
		return err
	}
	var n int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM tasks").Scan(&n); err != nil {
		return err
	}
	utils.Debugf("Backend %s holds %d task(s)", b.ID(), n)
	return nil
}

// QueueSetTask stores the current state of a task. Tasks that no longer
// exist, or no longer carry an attached tag, are removed from the database.
func (b *Backend) QueueSetTask(ctx context.Context, id uuid.UUID) error {
	db, attached, err := b.conn()
	if err != nil {
		return err
	}

	snap, err := b.src.TaskSnapshot(id)
	if errors.Is(err, utils.ErrNotFound) || (err == nil && !snap.HasAnyTag(attached)) {
		_, err = db.ExecContext(ctx, "DELETE FROM tasks WHERE id = ?", id.String())
		return err
	}
	if err != nil {
		return err
	}

	parentID := ""
	if snap.ParentID != uuid.Nil {
		parentID = snap.ParentID.String()
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO tasks (id, parent_id, title, content, status, tags, added, modified, due, start, closed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			parent_id = excluded.parent_id,
			title = excluded.title,
			content = excluded.content,
			status = excluded.status,
			tags = excluded.tags,
			added = excluded.added,
			modified = excluded.modified,
			due = excluded.due,
			start = excluded.start,
			closed = excluded.closed`,
		snap.ID.String(), parentID, snap.Title, snap.Content, snap.Status,
		strings.Join(snap.Tags, ","),
		snap.Added.Format(time.RFC3339Nano), snap.Modified.Format(time.RFC3339Nano),
		snap.Due, snap.Start, snap.Closed,
	)
	return err
}

// GetTask returns the stored copy of a task, or nil if it is not stored.
func (b *Backend) GetTask(ctx context.Context, id uuid.UUID) (*backend.Task, error) {
	db, _, err := b.conn()
	if err != nil {
		return nil, err
	}
	row := db.QueryRowContext(ctx,
		`SELECT id, parent_id, title, content, status, tags, added, modified, due, start, closed
		 FROM tasks WHERE id = ?`, id.String())

	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return t, err
}

// Count returns the number of stored tasks.
func (b *Backend) Count(ctx context.Context) (int, error) {
	db, _, err := b.conn()
	if err != nil {
		return 0, err
	}
	var n int
	err = db.QueryRowContext(ctx, "SELECT COUNT(*) FROM tasks").Scan(&n)
	return n, err
}

// scanner is an interface satisfied by both *sql.Rows and *sql.Row
type scanner interface {
	Scan(dest ...any) error
}

func scanTask(s scanner) (*backend.Task, error) {
	var t backend.Task
	var id, parentID, tags, added, modified string
	if err := s.Scan(&id, &parentID, &t.Title, &t.Content, &t.Status, &tags,
		&added, &modified, &t.Due, &t.Start, &t.Closed); err != nil {
		return nil, err
	}

	var err error
	if t.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("stored task id %q: %w", id, err)
	}
	if parentID != "" {
		t.ParentID, _ = uuid.Parse(parentID)
	}
	if tags != "" {
		t.Tags = strings.Split(tags, ",")
	}
	t.Added, _ = time.Parse(time.RFC3339Nano, added)
	t.Modified, _ = time.Parse(time.RFC3339Nano, modified)
	return &t, nil
}

// Quit closes the database. With disable the backend stays off until
// Initialize is called again.
func (b *Backend) Quit(ctx context.Context, disable bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if disable {
		b.enabled = false
	}
	if b.db == nil {
		return nil
	}
	err := b.db.Close()
	b.db = nil
	return err
}

func (b *Backend) String() string {
	return fmt.Sprintf("sqlite backend %s (%s)", b.ID(), b.cfg.Path)
}
