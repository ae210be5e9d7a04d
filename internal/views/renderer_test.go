package views

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/uuid"

	"gtd/internal/dates"
	"gtd/internal/tags"
	"gtd/internal/tasks"
)

func compactView() *View {
	return &View{Name: "compact", Fields: []Field{{Name: "status"}, {Name: "title"}, {Name: "tags"}}}
}

func newTask(t *testing.T, s *tasks.Store, title string, parent *tasks.Task) *tasks.Task {
	t.Helper()
	pid := uuid.Nil
	if parent != nil {
		pid = parent.ID()
	}
	task, err := s.New(title, pid)
	if err != nil {
		t.Fatalf("New(%q): %v", title, err)
	}
	return task
}

func TestRenderTree(t *testing.T) {
	s := tasks.NewStore()
	trip := newTask(t, s, "Plan trip", nil)
	newTask(t, s, "Book flight", trip)
	pack := newTask(t, s, "Pack", trip)
	newTask(t, s, "Socks", pack)
	newTask(t, s, "Water plants", nil)
	pack.ToggleStatus(false)

	var buf bytes.Buffer
	RenderTasks(s.All(), compactView(), &buf, WithColor(false))

	want := strings.Join([]string{
		"[ ] Plan trip",
		" ├─ [ ] Book flight",
		" └─ [x] Pack",
		"    └─ [ ] Socks",
		"[ ] Water plants",
		"",
	}, "\n")
	if got := buf.String(); got != want {
		t.Errorf("Render() =\n%s\nwant\n%s", got, want)
	}
}

func TestRenderOrphanAtTopLevel(t *testing.T) {
	s := tasks.NewStore()
	parent := newTask(t, s, "Parent", nil)
	child := newTask(t, s, "Child", parent)

	var buf bytes.Buffer
	RenderTasks([]*tasks.Task{child}, compactView(), &buf, WithColor(false))
	if got := buf.String(); got != "[ ] Child\n" {
		t.Errorf("Render() = %q", got)
	}
}

func TestRenderEmpty(t *testing.T) {
	var buf bytes.Buffer
	RenderTasks(nil, DefaultView(), &buf)
	if buf.Len() != 0 {
		t.Errorf("expected no output, got %q", buf.String())
	}
}

func TestRenderTags(t *testing.T) {
	s := tasks.NewStore()
	tg := tags.NewStore()
	work, _ := tg.New("work", uuid.Nil)
	urgent, _ := tg.New("urgent", uuid.Nil)
	task := newTask(t, s, "Report", nil)
	task.AddTag(work)
	task.AddTag(urgent)

	var plain bytes.Buffer
	RenderTasks(s.All(), compactView(), &plain, WithColor(false))
	if got := plain.String(); got != "[ ] Report @work @urgent\n" {
		t.Errorf("Render() = %q", got)
	}

	var colored bytes.Buffer
	RenderTasks(s.All(), compactView(), &colored, WithColor(true))
	if !strings.Contains(colored.String(), "work") || !strings.Contains(colored.String(), "Report") {
		t.Errorf("coloured output lost content: %q", colored.String())
	}
}

func TestRenderDefaultViewColumns(t *testing.T) {
	s := tasks.NewStore()
	task := newTask(t, s, strings.Repeat("long title ", 6), nil)
	task.SetDueDate(dates.Fuzzy(dates.KindSoon))

	var buf bytes.Buffer
	RenderTasks(s.All(), DefaultView(), &buf, WithColor(false))
	line := strings.TrimSuffix(buf.String(), "\n")

	if !strings.HasPrefix(line, "[ ] long title") || !strings.Contains(line, "…") {
		t.Errorf("title should be truncated: %q", line)
	}
	if !strings.HasSuffix(line, "soon") {
		t.Errorf("due column missing: %q", line)
	}
}

func TestPad(t *testing.T) {
	tests := []struct {
		value string
		field Field
		want  string
	}{
		{"abc", Field{}, "abc"},
		{"abc", Field{Width: 5}, "abc  "},
		{"abc", Field{Width: 5, Align: "right"}, "  abc"},
		{"abcdef", Field{Width: 4}, "abcdef"},
		{"abcdef", Field{Width: 4, Truncate: true}, "abc…"},
		{"héllo", Field{Width: 6}, "héllo "},
	}
	for _, tt := range tests {
		if got := pad(tt.value, tt.field); got != tt.want {
			t.Errorf("pad(%q, %+v) = %q, want %q", tt.value, tt.field, got, tt.want)
		}
	}
}

func TestViewByName(t *testing.T) {
	for _, name := range []string{"", "default", "all"} {
		if _, err := ViewByName(name); err != nil {
			t.Errorf("ViewByName(%q) error = %v", name, err)
		}
	}
	if _, err := ViewByName("kanban"); err == nil {
		t.Error("expected error for unknown view")
	}
	if got := len(AllView().Fields); got != len(AvailableFields) {
		t.Errorf("AllView has %d fields, want %d", got, len(AvailableFields))
	}
}

func TestIsTerminal(t *testing.T) {
	if IsTerminal(&bytes.Buffer{}) {
		t.Error("a buffer is not a terminal")
	}
}
