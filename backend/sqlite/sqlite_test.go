package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"gtd/backend"
	"gtd/internal/utils"
)

// mapSource serves task snapshots from a map.
type mapSource struct {
	mu    sync.Mutex
	tasks map[uuid.UUID]*backend.Task
}

func (m *mapSource) TaskSnapshot(id uuid.UUID) (*backend.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, utils.NotFound("task", id)
	}
	cp := *t
	return &cp, nil
}

// mustNewBackend creates an initialized backend in a temp dir and registers cleanup
func mustNewBackend(t *testing.T, attached ...string) (*Backend, *mapSource, context.Context) {
	t.Helper()
	src := &mapSource{tasks: make(map[uuid.UUID]*backend.Task)}
	b := New(Config{Path: filepath.Join(t.TempDir(), "gtd.db"), Enabled: true, AttachedTags: attached}, src)
	ctx := context.Background()
	if err := b.Initialize(ctx); err != nil {
		t.Fatalf("Initialize error: %v", err)
	}
	t.Cleanup(func() { _ = b.Quit(ctx, false) })
	return b, src, ctx
}

func sampleTask() *backend.Task {
	now := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	return &backend.Task{
		ID:       uuid.New(),
		ParentID: uuid.New(),
		Title:    "Write report",
		Content:  "@work, draft first",
		Status:   "Active",
		Tags:     []string{"work", "q2"},
		Added:    now,
		Modified: now.Add(time.Hour),
		Due:      "2026-04-10",
		Start:    "soon",
	}
}

// TestBackendImplementsInterface verifies the Backend type implements backend.Backend.
func TestBackendImplementsInterface(t *testing.T) {
	var _ backend.Backend = (*Backend)(nil)
}

func TestQueueSetTaskStoresSnapshot(t *testing.T) {
	b, src, ctx := mustNewBackend(t)
	task := sampleTask()
	src.tasks[task.ID] = task

	if err := b.QueueSetTask(ctx, task.ID); err != nil {
		t.Fatalf("QueueSetTask error: %v", err)
	}

	got, err := b.GetTask(ctx, task.ID)
	if err != nil || got == nil {
		t.Fatalf("GetTask = %v, %v", got, err)
	}
	if got.Title != task.Title || got.Content != task.Content || got.ParentID != task.ParentID {
		t.Errorf("stored task = %+v", got)
	}
	if len(got.Tags) != 2 || got.Tags[1] != "q2" || got.Due != "2026-04-10" || got.Start != "soon" {
		t.Errorf("stored fields = %+v", got)
	}
	if !got.Modified.Equal(task.Modified) {
		t.Errorf("Modified = %v, want %v", got.Modified, task.Modified)
	}
}

func TestQueueSetTaskUpdatesAndDeletes(t *testing.T) {
	b, src, ctx := mustNewBackend(t)
	task := sampleTask()
	src.tasks[task.ID] = task
	b.QueueSetTask(ctx, task.ID)

	task.Title = "Write final report"
	task.Status = "Done"
	if err := b.QueueSetTask(ctx, task.ID); err != nil {
		t.Fatalf("QueueSetTask error: %v", err)
	}
	got, _ := b.GetTask(ctx, task.ID)
	if got.Title != "Write final report" || got.Status != "Done" {
		t.Errorf("update not applied: %+v", got)
	}
	if n, _ := b.Count(ctx); n != 1 {
		t.Errorf("Count = %d, want 1", n)
	}

	delete(src.tasks, task.ID)
	if err := b.QueueSetTask(ctx, task.ID); err != nil {
		t.Fatalf("QueueSetTask error: %v", err)
	}
	if got, _ := b.GetTask(ctx, task.ID); got != nil {
		t.Error("deleted task should be removed from the database")
	}
}

func TestAttachedTagsFilter(t *testing.T) {
	b, src, ctx := mustNewBackend(t, "home")
	task := sampleTask()
	src.tasks[task.ID] = task

	b.QueueSetTask(ctx, task.ID)
	if n, _ := b.Count(ctx); n != 0 {
		t.Errorf("task without an attached tag was stored")
	}

	b.SetAttachedTags([]string{"work"})
	b.QueueSetTask(ctx, task.ID)
	if n, _ := b.Count(ctx); n != 1 {
		t.Errorf("task with an attached tag was not stored")
	}
}

func TestNotInitialized(t *testing.T) {
	b := New(Config{Path: filepath.Join(t.TempDir(), "x.db")}, &mapSource{})
	if err := b.QueueSetTask(context.Background(), uuid.New()); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("expected ErrNotInitialized, got %v", err)
	}
	if b.ID() != "sqlite" || b.IsEnabled() {
		t.Errorf("ID=%q enabled=%v", b.ID(), b.IsEnabled())
	}
}

func TestQuitDisable(t *testing.T) {
	b, _, ctx := mustNewBackend(t)
	if err := b.StartGetTasks(ctx); err != nil {
		t.Fatalf("StartGetTasks error: %v", err)
	}
	if err := b.Quit(ctx, true); err != nil {
		t.Fatalf("Quit error: %v", err)
	}
	if b.IsEnabled() {
		t.Error("backend should be disabled")
	}
	if err := b.StartGetTasks(ctx); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("expected ErrNotInitialized after quit, got %v", err)
	}
}

func TestDataSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gtd.db")
	src := &mapSource{tasks: make(map[uuid.UUID]*backend.Task)}
	task := sampleTask()
	src.tasks[task.ID] = task
	ctx := context.Background()

	b := New(Config{Path: path}, src)
	b.Initialize(ctx)
	b.QueueSetTask(ctx, task.ID)
	b.Quit(ctx, false)

	reopened := New(Config{Path: path}, src)
	if err := reopened.Initialize(ctx); err != nil {
		t.Fatalf("Initialize error: %v", err)
	}
	defer reopened.Quit(ctx, false)
	if n, _ := reopened.Count(ctx); n != 1 {
		t.Errorf("Count after reopen = %d, want 1", n)
	}
}
