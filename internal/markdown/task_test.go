package markdown

import (
	"strings"
	"testing"

	"github.com/google/uuid"

	"gtd/backend"
)

func TestParseStatusChar(t *testing.T) {
	tests := []struct {
		name     string
		char     string
		expected string
	}{
		{"empty checkbox", " ", "Active"},
		{"done x", "x", "Done"},
		{"done X", "X", "Done"},
		{"dismissed", "-", "Dismissed"},
		{"unknown", "?", "Active"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseStatusChar(tt.char)
			if got != tt.expected {
				t.Errorf("ParseStatusChar(%q) = %q, want %q", tt.char, got, tt.expected)
			}
		})
	}
}

func TestFormatStatusChar(t *testing.T) {
	tests := []struct {
		status   string
		expected string
	}{
		{"Active", " "},
		{"Done", "x"},
		{"Dismissed", "-"},
		{"", " "},
	}

	for _, tt := range tests {
		if got := FormatStatusChar(tt.status); got != tt.expected {
			t.Errorf("FormatStatusChar(%q) = %q, want %q", tt.status, got, tt.expected)
		}
	}
}

func TestParseTaskText(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		wantTitle string
		wantDue   string
		wantTags  []string
	}{
		{"plain", "Buy milk", "Buy milk", "", nil},
		{"due", "Pay rent due:2026-02-01", "Pay rent", "2026-02-01", nil},
		{"fuzzy due", "Read book due:someday", "Read book", "someday", nil},
		{"tags", "Call Bob #phone #work-calls", "Call Bob", "", []string{"phone", "work-calls"}},
		{"everything", "Ship due:soon #work", "Ship", "soon", []string{"work"}},
		{"hash inside word", "Issue a#b", "Issue a#b", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			title, due, tags := ParseTaskText(tt.text)
			if title != tt.wantTitle || due != tt.wantDue {
				t.Errorf("ParseTaskText(%q) = %q, %q", tt.text, title, due)
			}
			if strings.Join(tags, ",") != strings.Join(tt.wantTags, ",") {
				t.Errorf("tags = %v, want %v", tags, tt.wantTags)
			}
		})
	}
}

func TestFormatTaskText(t *testing.T) {
	task := &backend.Task{Title: "Ship", Due: "2026-02-01", Tags: []string{"work", "urgent"}}
	if got := FormatTaskText(task); got != "Ship due:2026-02-01 #work #urgent" {
		t.Errorf("FormatTaskText = %q", got)
	}
}

func TestOrganizeTasksHierarchically(t *testing.T) {
	parent := backend.Task{ID: uuid.New(), Title: "parent"}
	child := backend.Task{ID: uuid.New(), ParentID: parent.ID, Title: "child"}
	orphan := backend.Task{ID: uuid.New(), ParentID: uuid.New(), Title: "orphan"}

	roots, children := OrganizeTasksHierarchically([]backend.Task{parent, child, orphan})
	if len(roots) != 2 || roots[0].ID != parent.ID || roots[1].ID != orphan.ID {
		t.Errorf("roots = %v", roots)
	}
	if len(children[parent.ID]) != 1 {
		t.Errorf("children = %v", children)
	}
}

func TestChecklistRoundTrip(t *testing.T) {
	parent := backend.Task{ID: uuid.New(), Title: "Plan trip", Status: "Active", Tags: []string{"travel"}}
	child := backend.Task{ID: uuid.New(), ParentID: parent.ID, Title: "Book flight", Status: "Done", Due: "2026-06-01"}
	grandchild := backend.Task{ID: uuid.New(), ParentID: child.ID, Title: "Pick seat", Status: "Dismissed"}
	other := backend.Task{ID: uuid.New(), Title: "Water plants", Status: "Active"}

	roots, children := OrganizeTasksHierarchically([]backend.Task{parent, child, grandchild, other})
	var sb strings.Builder
	sb.WriteString("# Tasks\n\n")
	for i := range roots {
		WriteTaskTree(&sb, &roots[i], children, 0)
	}
	sb.WriteString("- [ ] hand-written line without id\n")

	got := ParseChecklist(sb.String())
	if len(got) != 4 {
		t.Fatalf("parsed %d tasks:\n%s", len(got), sb.String())
	}
	want := []backend.Task{parent, child, grandchild, other}
	for i, w := range want {
		g := got[i]
		if g.ID != w.ID || g.ParentID != w.ParentID || g.Title != w.Title || g.Status != w.Status || g.Due != w.Due {
			t.Errorf("task %d = %+v, want %+v", i, g, w)
		}
	}
	if len(got[0].Tags) != 1 || got[0].Tags[0] != "travel" {
		t.Errorf("tags = %v", got[0].Tags)
	}
}
