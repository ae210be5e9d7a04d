// Package datastore owns the task, tag and saved-search stores. It loads
// and saves them as an XML data file with rotating backups, and pushes
// tasks to the registered synchronization backends in the background.
package datastore

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"gtd/backend"
	"gtd/internal/firstrun"
	"gtd/internal/searches"
	"gtd/internal/shutdown"
	"gtd/internal/tags"
	"gtd/internal/tasks"
)

// DefaultBackups is the number of rotating backup generations.
const DefaultBackups = 7

// Datastore is the root object of the application.
//
// Entities are mutated on the caller's goroutine through Update; background
// backend jobs only read through TaskSnapshot and the id snapshot taken by
// FlushAllTasks. Both go through the same lock.
type Datastore struct {
	mu       sync.RWMutex
	tasks    *tasks.Store
	tags     *tags.Store
	searches *searches.Store
	path     string

	fs       afero.Fs
	clock    func() time.Time
	backups  int
	tagOpts  []tags.Option
	firstRun func(io.Writer) error

	backendsMu sync.Mutex
	backends   map[string]backend.Backend
	gates      map[string]*failureGate
	jobs       *shutdown.Manager
}

// Option configures a Datastore.
type Option func(*Datastore)

// WithFs sets the filesystem used for data files and backups.
func WithFs(fs afero.Fs) Option {
	return func(d *Datastore) { d.fs = fs }
}

// WithClock sets the clock used for daily backup names and backend retry delays.
func WithClock(clock func() time.Time) Option {
	return func(d *Datastore) { d.clock = clock }
}

// WithBackups sets the number of rotating backup generations.
func WithBackups(n int) Option {
	return func(d *Datastore) { d.backups = n }
}

// WithTagOptions is passed to every tag store the datastore creates.
func WithTagOptions(opts ...tags.Option) Option {
	return func(d *Datastore) { d.tagOpts = opts }
}

// WithFirstRun replaces the generator of the initial data file.
func WithFirstRun(gen func(io.Writer) error) Option {
	return func(d *Datastore) { d.firstRun = gen }
}

// New returns an empty datastore on the OS filesystem.
func New(opts ...Option) *Datastore {
	d := &Datastore{
		fs:       afero.NewOsFs(),
		clock:    time.Now,
		backups:  DefaultBackups,
		firstRun: firstrun.Generate,
		backends: make(map[string]backend.Backend),
		gates:    make(map[string]*failureGate),
		jobs:     shutdown.NewManager(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.tasks = tasks.NewStore()
	d.tags = tags.NewStore(d.tagOpts...)
	d.searches = searches.NewStore()
	return d
}

// Tasks returns the current task store. LoadFile replaces it.
func (d *Datastore) Tasks() *tasks.Store {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.tasks
}

// Tags returns the current tag store.
func (d *Datastore) Tags() *tags.Store {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.tags
}

// Searches returns the current saved-search store.
func (d *Datastore) Searches() *searches.Store {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.searches
}

// Path returns the data file last loaded or saved.
func (d *Datastore) Path() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.path
}

// Update runs fn with exclusive access to the stores. Mutations that
// background jobs may observe belong in here.
func (d *Datastore) Update(fn func(ts *tasks.Store, tg *tags.Store) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return fn(d.tasks, d.tags)
}

// TaskSnapshot implements backend.TaskSource.
func (d *Datastore) TaskSnapshot(id uuid.UUID) (*backend.Task, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	t, err := d.tasks.Get(id)
	if err != nil {
		return nil, err
	}
	return t.Snapshot(), nil
}

// Stats summarises the datastore contents.
type Stats struct {
	Tasks       int
	Tags        int
	Searches    int
	Initialized bool
}

func (s Stats) String() string {
	state := "Empty"
	if s.Initialized {
		state = "Initialized"
	}
	return fmt.Sprintf("Datastore [%s]\n- Tags: %d\n- Saved Searches: %d\n- Tasks: %d",
		state, s.Tags, s.Searches, s.Tasks)
}

// Stats returns entity counts. The store counts as initialized once it
// holds at least one task.
func (d *Datastore) Stats() Stats {
	d.mu.RLock()
	defer d.mu.RUnlock()

	n := d.tasks.Count()
	return Stats{
		Tasks:       n,
		Tags:        d.tags.Count(),
		Searches:    d.searches.Count(),
		Initialized: n > 0,
	}
}

func (d *Datastore) String() string {
	return d.Stats().String()
}
