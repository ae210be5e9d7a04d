package datastore

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"

	"gtd/backend"
	"gtd/internal/shutdown"
	"gtd/internal/utils"
)

// RegisterBackend adds b to the registry, replacing any backend with the
// same id.
func (d *Datastore) RegisterBackend(b backend.Backend) {
	d.backendsMu.Lock()
	defer d.backendsMu.Unlock()

	d.backends[b.ID()] = b
	d.gates[b.ID()] = newFailureGate(MaxQueueFailures, queueRetryAfter, d.clock)
	utils.Debugf("Registered backend %s", b.ID())
}

// Backend returns the registered backend with the given id.
func (d *Datastore) Backend(id string) (backend.Backend, error) {
	d.backendsMu.Lock()
	defer d.backendsMu.Unlock()

	b, ok := d.backends[id]
	if !ok {
		return nil, utils.NotFound("backend", id)
	}
	return b, nil
}

// Backends returns the enabled backends sorted by id, or all of them with
// includeDisabled.
func (d *Datastore) Backends(includeDisabled bool) []backend.Backend {
	d.backendsMu.Lock()
	defer d.backendsMu.Unlock()

	var out []backend.Backend
	for _, b := range d.backends {
		if includeDisabled || b.IsEnabled() {
			out = append(out, b)
		}
	}
	slices.SortFunc(out, func(a, b backend.Backend) int { return strings.Compare(a.ID(), b.ID()) })
	return out
}

func (d *Datastore) gate(id string) *failureGate {
	d.backendsMu.Lock()
	defer d.backendsMu.Unlock()
	return d.gates[id]
}

// ActivateBackends starts every enabled backend that is not the default one.
func (d *Datastore) ActivateBackends() []*shutdown.Job {
	var jobs []*shutdown.Job
	for _, b := range d.Backends(false) {
		if !b.IsDefault() {
			jobs = append(jobs, d.StartBackend(b))
		}
	}
	return jobs
}

// StartBackend initializes b, asks it for its tasks and flushes every task
// to it, in the background.
func (d *Datastore) StartBackend(b backend.Backend) *shutdown.Job {
	return d.jobs.Go("start "+b.ID(), func(ctx context.Context) error {
		if err := b.Initialize(ctx); err != nil {
			return fmt.Errorf("initialize backend %s: %w", b.ID(), err)
		}
		if err := b.StartGetTasks(ctx); err != nil {
			return fmt.Errorf("get tasks from backend %s: %w", b.ID(), err)
		}
		job, err := d.FlushAllTasks(b.ID())
		if err != nil {
			return err
		}
		return job.Wait(ctx)
	})
}

// SetBackendEnabled quits and disables an enabled backend, or starts a
// disabled one. It returns nil when the backend is already in that state.
func (d *Datastore) SetBackendEnabled(id string, enabled bool) (*shutdown.Job, error) {
	b, err := d.Backend(id)
	if err != nil {
		return nil, err
	}

	switch current := b.IsEnabled(); {
	case current && !enabled:
		return d.jobs.Go("disable "+id, func(ctx context.Context) error {
			return b.Quit(ctx, true)
		}), nil
	case !current && enabled:
		return d.StartBackend(b), nil
	}
	return nil, nil
}

// BackendChangeAttachedTags sets the tags a backend stores tasks for.
func (d *Datastore) BackendChangeAttachedTags(id string, names []string) error {
	b, err := d.Backend(id)
	if err != nil {
		return err
	}
	b.SetAttachedTags(names)
	return nil
}

// FlushAllTasks queues every task id with the backend in the background and
// then asks the backend to fetch its tasks. The ids are captured before the
// job starts; tasks added afterwards are not flushed. The flush stops when
// the datastore quits or the backend keeps failing.
func (d *Datastore) FlushAllTasks(id string) (*shutdown.Job, error) {
	b, err := d.Backend(id)
	if err != nil {
		return nil, err
	}
	gate := d.gate(id)

	d.mu.RLock()
	ids := d.tasks.IDs()
	d.mu.RUnlock()

	return d.jobs.Go("flush "+id, func(ctx context.Context) error {
		done := utils.Timed("Flushed %d task(s) to %s", len(ids), id)
		if err := d.flush(ctx, b, gate, ids); err != nil {
			return err
		}
		done()
		return b.StartGetTasks(ctx)
	}), nil
}

func (d *Datastore) flush(ctx context.Context, b backend.Backend, gate *failureGate, ids []uuid.UUID) error {
	for _, tid := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := gate.check(b.ID()); err != nil {
			return err
		}
		err := b.QueueSetTask(ctx, tid)
		gate.record(err)
		if err != nil {
			utils.Warnf("Backend %s could not store task %s: %v", b.ID(), tid, err)
		}
	}
	return nil
}

// QueueTasks hands tasks to every enabled backend in the background. Each
// backend is initialized and asked for its tasks before the ids are queued.
// A backend that fails is logged and skipped; the job reports every failure.
func (d *Datastore) QueueTasks(ids []uuid.UUID) *shutdown.Job {
	backends := d.Backends(false)
	return d.jobs.Go("queue", func(ctx context.Context) error {
		var errs []error
		for _, b := range backends {
			if err := d.queue(ctx, b, ids); err != nil {
				utils.Warnf("Backend %s not updated: %v", b.ID(), err)
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})
}

func (d *Datastore) queue(ctx context.Context, b backend.Backend, ids []uuid.UUID) error {
	if err := b.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize backend %s: %w", b.ID(), err)
	}
	if err := b.StartGetTasks(ctx); err != nil {
		return fmt.Errorf("get tasks from backend %s: %w", b.ID(), err)
	}
	return d.flush(ctx, b, d.gate(b.ID()), ids)
}

// Jobs returns the manager running background backend work.
func (d *Datastore) Jobs() *shutdown.Manager {
	return d.jobs
}

// Quit asks every background job to stop, quits the enabled backends and
// waits for all of it until ctx ends.
func (d *Datastore) Quit(ctx context.Context) error {
	for _, b := range d.Backends(false) {
		d.jobs.RegisterCleanup("quit "+b.ID(), func(ctx context.Context) error {
			return b.Quit(ctx, false)
		})
	}
	d.jobs.Shutdown()
	return d.jobs.Wait(ctx)
}
