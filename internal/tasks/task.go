// Package tasks holds task entities, their lifecycle rules and the task
// store with its filtering and sorting operations.
package tasks

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/google/uuid"

	"gtd/backend"
	"gtd/internal/dates"
	"gtd/internal/tags"
)

// Status is the lifecycle state of a task.
type Status string

const (
	StatusActive    Status = "Active"
	StatusDone      Status = "Done"
	StatusDismissed Status = "Dismissed"
)

// ParseStatus converts the document form of a status. Empty means Active.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case "", StatusActive:
		return StatusActive, nil
	case StatusDone:
		return StatusDone, nil
	case StatusDismissed:
		return StatusDismissed, nil
	}
	return "", fmt.Errorf("unknown status %q", s)
}

// DefaultTitle replaces titles that are empty after trimming.
const DefaultTitle = "(no title)"

// excerptLength is the rune budget of Excerpt.
const excerptLength = 80

var (
	// tagListRe matches leading "@tag," markup, possibly several in a row.
	tagListRe = regexp.MustCompile(`^(?:@\w+(?:-\w+)*,+\s*)+`)
	// subtaskRe matches inline sub-task markers like {!<id>!}.
	subtaskRe = regexp.MustCompile(`\{!.+!\}`)
)

// Task is a single task. Children are owned by the task; the parent pointer
// is a back-reference maintained by the store.
type Task struct {
	id      uuid.UUID
	title   string
	dateDue dates.Date
	tags    []*tags.Tag

	Content      string
	Status       Status
	DateAdded    dates.Date
	DateModified dates.Date
	DateStart    dates.Date
	DateClosed   dates.Date

	parent   *Task
	children []*Task
}

// NewTask returns a detached active task. Use Store.New to create and
// register one.
func NewTask(id uuid.UUID, title string) *Task {
	now := dates.NowTime()
	return &Task{
		id:           id,
		title:        strings.Trim(title, "\t\n"),
		Status:       StatusActive,
		DateAdded:    now,
		DateModified: now,
	}
}

func (t *Task) ID() uuid.UUID         { return t.id }
func (t *Task) Parent() *Task         { return t.parent }
func (t *Task) SetParent(p *Task)     { t.parent = p }
func (t *Task) Children() []*Task     { return t.children }
func (t *Task) SetChildren(c []*Task) { t.children = c }
func (t *Task) Title() string         { return t.title }
func (t *Task) DueDate() dates.Date   { return t.dateDue }
func (t *Task) Tags() []*tags.Tag     { return slices.Clone(t.tags) }
func (t *Task) DaysLeft() int         { return t.dateDue.DaysLeft() }
func (t *Task) IsActive() bool        { return t.Status == StatusActive }
func (t *Task) HasParent() bool       { return t.parent != nil }
func (t *Task) HasChildren() bool     { return len(t.children) > 0 }
func (t *Task) Touch()                { t.DateModified = dates.NowTime() }

// SetTitle trims tabs and newlines; an empty title becomes DefaultTitle.
func (t *Task) SetTitle(v string) {
	v = strings.Trim(v, "\t\n")
	if v == "" {
		v = DefaultTitle
	}
	t.title = v
}

// ToggleStatus switches between Active and Done. Completing closes the task
// today and, with propagate, completes every non-dismissed descendant.
// Reopening also reopens completed ancestors and, with propagate, every
// non-dismissed descendant. Dismissed tasks are left alone.
func (t *Task) ToggleStatus(propagate bool) {
	switch t.Status {
	case StatusActive:
		t.complete(propagate)
	case StatusDone:
		t.reopen(propagate)
	}
}

func (t *Task) complete(propagate bool) {
	if t.Status == StatusActive {
		t.Status = StatusDone
		t.DateClosed = dates.Today()
		t.Touch()
	}
	if !propagate {
		return
	}
	for _, c := range t.children {
		if c.Status != StatusDismissed {
			c.complete(true)
		}
	}
}

func (t *Task) reopen(propagate bool) {
	if t.Status != StatusActive {
		t.Status = StatusActive
		t.DateClosed = dates.NoDate()
		t.Touch()
	}
	if t.parent != nil && t.parent.Status == StatusDone {
		t.parent.reopen(false)
	}
	if !propagate {
		return
	}
	for _, c := range t.children {
		if c.Status != StatusDismissed {
			c.reopen(true)
		}
	}
}

// Dismiss marks the task and all its descendants dismissed.
func (t *Task) Dismiss() {
	t.Status = StatusDismissed
	t.Touch()
	for _, c := range t.children {
		c.Dismiss()
	}
}

// SetDueDate stores d. A concrete date also clamps later concrete due dates
// of descendants down to d, and raises a parent's fuzzy due date to d when
// the fuzzy date sorts before it.
func (t *Task) SetDueDate(d dates.Date) {
	t.dateDue = d
	if d.IsFuzzy() {
		return
	}

	t.clampDescendants(d)

	if p := t.parent; p != nil && p.dateDue.IsSet() && p.dateDue.IsFuzzy() && p.dateDue.Before(d) {
		p.SetDueDate(d)
	}
}

func (t *Task) clampDescendants(d dates.Date) {
	for _, c := range t.children {
		if !c.dateDue.IsFuzzy() && c.dateDue.After(d) {
			c.SetDueDate(d)
			continue
		}
		c.clampDescendants(d)
	}
}

// HasTag reports whether a tag with the given name is attached.
func (t *Task) HasTag(name string) bool {
	name = tags.NormalizeName(name)
	return slices.ContainsFunc(t.tags, func(tag *tags.Tag) bool { return tag.Name() == name })
}

// AddTag attaches tag to the task and all its descendants.
func (t *Task) AddTag(tag *tags.Tag) {
	if !slices.Contains(t.tags, tag) {
		t.tags = append(t.tags, tag)
	}
	for _, c := range t.children {
		c.AddTag(tag)
	}
}

// RemoveTag detaches every tag called name from the task and its
// descendants, and strips the "@name" token from their content.
func (t *Task) RemoveTag(name string) {
	name = tags.NormalizeName(name)
	t.tags = slices.DeleteFunc(t.tags, func(tag *tags.Tag) bool { return tag.Name() == name })
	t.Content = stripTagToken(t.Content, name)

	for _, c := range t.children {
		c.RemoveTag(name)
	}
}

// stripTagToken removes "@name" followed by a blank line, by a comma, or on
// its own. A bare token is only removed when it is not the prefix of a
// longer tag name.
func stripTagToken(content, name string) string {
	if content == "" {
		return content
	}
	token := "@" + name
	content = strings.ReplaceAll(content, token+"\n\n", "")
	content = strings.ReplaceAll(content, token+",", "")
	bare := regexp.MustCompile(regexp.QuoteMeta(token) + `([^\w-]|$)`)
	return bare.ReplaceAllString(content, "${1}")
}

// Excerpt is a short plain summary of the content: leading tag list and
// sub-task markers removed, trimmed and cut to 80 characters.
func (t *Task) Excerpt() string {
	if t.Content == "" {
		return ""
	}

	txt := tagListRe.ReplaceAllString(t.Content, "")
	txt = subtaskRe.ReplaceAllString(txt, "")
	txt = strings.TrimSpace(txt)

	runes := []rune(txt)
	if len(runes) <= excerptLength {
		return txt
	}
	return string(runes[:excerptLength]) + "…"
}

// Snapshot copies the task into a detached backend.Task.
func (t *Task) Snapshot() *backend.Task {
	snap := &backend.Task{
		ID:       t.id,
		Title:    t.title,
		Content:  t.Content,
		Status:   string(t.Status),
		Added:    t.DateAdded.Time(),
		Modified: t.DateModified.Time(),
		Due:      t.dateDue.String(),
		Start:    t.DateStart.String(),
		Closed:   t.DateClosed.String(),
	}
	if t.parent != nil {
		snap.ParentID = t.parent.id
	}
	for _, tag := range t.tags {
		snap.Tags = append(snap.Tags, tag.Name())
	}
	for _, c := range t.children {
		snap.Children = append(snap.Children, c.id)
	}
	return snap
}

func (t *Task) String() string {
	return fmt.Sprintf("Task: %s (%s)", t.title, t.id)
}

// GoString gives the verbose form used in debug logs.
func (t *Task) GoString() string {
	names := make([]string, len(t.tags))
	for i, tag := range t.tags {
		names[i] = tag.Name()
	}
	return fmt.Sprintf("Task %q with id %q. Status: %s, tags: %s",
		t.title, t.id, t.Status, strings.Join(names, ", "))
}
