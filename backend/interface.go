// Package backend defines the contract between the datastore and the
// external task-synchronization backends it pushes changes to.
package backend

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Task is a detached, read-only copy of a task handed to backends.
// Backends never see live store entities.
type Task struct {
	ID       uuid.UUID
	ParentID uuid.UUID // uuid.Nil for root tasks
	Title    string
	Content  string
	Status   string
	Tags     []string
	Added    time.Time
	Modified time.Time
	Due      string // canonical date text, fuzzy markers included
	Start    string
	Closed   string
	Children []uuid.UUID
}

// HasAnyTag reports whether the task carries at least one of names.
// An empty names list matches every task.
func (t *Task) HasAnyTag(names []string) bool {
	if len(names) == 0 {
		return true
	}
	for _, want := range names {
		for _, have := range t.Tags {
			if have == want {
				return true
			}
		}
	}
	return false
}

// TaskSource gives backends read access to tasks by id.
type TaskSource interface {
	TaskSnapshot(id uuid.UUID) (*Task, error)
}

// Backend is an external synchronization target. The datastore only ever
// calls these methods from background goroutines.
type Backend interface {
	// ID returns the unique backend identifier used as registry key.
	ID() string
	IsEnabled() bool
	IsDefault() bool

	// Initialize prepares the backend (open connections, files, ...).
	Initialize(ctx context.Context) error
	// StartGetTasks asks the backend to pull its tasks.
	StartGetTasks(ctx context.Context) error
	// QueueSetTask hands a task id to the backend for storing.
	QueueSetTask(ctx context.Context, id uuid.UUID) error
	// Quit stops the backend. With disable set, the backend also marks itself
	// disabled so it is not started again.
	Quit(ctx context.Context, disable bool) error

	// SetAttachedTags restricts the backend to tasks carrying one of names.
	SetAttachedTags(names []string)
}

// NewID generates a fresh entity identifier (UUID v4).
func NewID() uuid.UUID {
	return uuid.New()
}
