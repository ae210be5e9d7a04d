// Package shutdown coordinates background jobs and cleanup on exit.
// The manager's context is the cancellation token observed by every job it
// starts; Shutdown cancels it and Wait joins the jobs within a deadline.
package shutdown

import (
	"context"
	"errors"
	"sync"
)

// ErrShuttingDown is the result of jobs submitted after Shutdown.
var ErrShuttingDown = errors.New("shutting down")

// CleanupFunc is a function that performs cleanup on shutdown.
// It receives a context that will be cancelled when the shutdown times out.
type CleanupFunc func(ctx context.Context) error

// cleanupEntry holds a registered cleanup function with its name.
type cleanupEntry struct {
	name string
	fn   CleanupFunc
}

// Job is a handle on a background function started by Manager.Go.
type Job struct {
	name string
	done chan struct{}
	err  error
}

// Name returns the name the job was started with.
func (j *Job) Name() string { return j.name }

// Done is closed when the job returns.
func (j *Job) Done() <-chan struct{} { return j.done }

// Err returns the job's result, or nil while it is still running.
func (j *Job) Err() error {
	select {
	case <-j.done:
		return j.err
	default:
		return nil
	}
}

// Wait blocks until the job returns or ctx ends.
func (j *Job) Wait(ctx context.Context) error {
	select {
	case <-j.done:
		return j.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Manager handles graceful shutdown coordination.
type Manager struct {
	mu       sync.Mutex
	cleanups []cleanupEntry
	jobs     map[*Job]struct{}
	shutdown bool
	ctx      context.Context
	cancel   context.CancelFunc
	once     sync.Once
}

// NewManager creates a new shutdown manager.
func NewManager() *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		jobs:   make(map[*Job]struct{}),
		ctx:    ctx,
		cancel: cancel,
	}
}

// RegisterCleanup registers a cleanup function to be called during shutdown.
// Cleanup functions are called in LIFO order (last registered, first called).
func (m *Manager) RegisterCleanup(name string, fn CleanupFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleanups = append(m.cleanups, cleanupEntry{name: name, fn: fn})
}

// Go runs fn in the background with the manager's context. After Shutdown
// the returned job is already finished with ErrShuttingDown.
func (m *Manager) Go(name string, fn func(ctx context.Context) error) *Job {
	job := &Job{name: name, done: make(chan struct{})}

	m.mu.Lock()
	if m.shutdown {
		m.mu.Unlock()
		job.err = ErrShuttingDown
		close(job.done)
		return job
	}
	m.jobs[job] = struct{}{}
	m.mu.Unlock()

	go func() {
		defer func() {
			m.mu.Lock()
			delete(m.jobs, job)
			m.mu.Unlock()
			close(job.done)
		}()
		job.err = fn(m.ctx)
	}()
	return job
}

// Running returns the jobs that have not finished yet.
func (m *Manager) Running() []*Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Job, 0, len(m.jobs))
	for j := range m.jobs {
		out = append(out, j)
	}
	return out
}

// Shutdown initiates a graceful shutdown.
// This sets the shutdown flag and cancels the context seen by running jobs.
// Safe to call multiple times; only the first call has effect.
func (m *Manager) Shutdown() {
	m.once.Do(func() {
		m.mu.Lock()
		m.shutdown = true
		m.mu.Unlock()

		m.cancel()
	})
}

// runCleanups executes all cleanup functions in LIFO order and joins their
// errors.
func (m *Manager) runCleanups(ctx context.Context) error {
	m.mu.Lock()
	cleanups := make([]cleanupEntry, len(m.cleanups))
	copy(cleanups, m.cleanups)
	m.mu.Unlock()

	var errs []error
	for i := len(cleanups) - 1; i >= 0; i-- {
		if err := cleanups[i].fn(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Wait waits for running jobs to return and then runs the cleanups, all
// within ctx. Cancellation results of jobs are not reported.
func (m *Manager) Wait(ctx context.Context) error {
	var errs []error
	for _, job := range m.Running() {
		err := job.Wait(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil && !errors.Is(err, context.Canceled) {
			errs = append(errs, err)
		}
	}

	done := make(chan error, 1)
	go func() { done <- m.runCleanups(ctx) }()

	select {
	case err := <-done:
		errs = append(errs, err)
		return errors.Join(errs...)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsShutdown returns true if shutdown has been initiated.
func (m *Manager) IsShutdown() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.shutdown
}

// Context returns a context that is cancelled when shutdown is initiated.
// Use this to make operations interruptible.
func (m *Manager) Context() context.Context {
	return m.ctx
}
