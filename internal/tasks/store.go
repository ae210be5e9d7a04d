package tasks

import (
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"

	"gtd/internal/dates"
	"gtd/internal/store"
	"gtd/internal/tags"
	"gtd/internal/utils"
)

// FilterKind selects one of the built-in task filters.
type FilterKind int

const (
	// FilterStatus takes a Status argument.
	FilterStatus FilterKind = iota
	// FilterTag takes a tag name or a []string of names. Several names
	// intersect.
	FilterTag
	// FilterRoot selects tasks without a parent.
	FilterRoot
	// FilterChildren selects tasks with a parent.
	FilterChildren
)

func (k FilterKind) String() string {
	switch k {
	case FilterStatus:
		return "status"
	case FilterTag:
		return "tag"
	case FilterRoot:
		return "root"
	case FilterChildren:
		return "children"
	}
	return fmt.Sprintf("FilterKind(%d)", int(k))
}

// DefaultSortKey is used by Sort when no key is given.
const DefaultSortKey = "date_added"

// Store is the task collection.
type Store struct {
	*store.Store[*Task]
}

// NewStore returns an empty task store.
func NewStore() *Store {
	return &Store{Store: store.New[*Task]("task")}
}

func (s *Store) String() string {
	return fmt.Sprintf("Task Store. Holds %d task(s)", s.Count())
}

// New creates an active task titled title under parentID (uuid.Nil for a
// root task).
func (s *Store) New(title string, parentID uuid.UUID) (*Task, error) {
	t := NewTask(uuid.New(), "")
	t.SetTitle(title)
	if err := s.Add(t, parentID); err != nil {
		return nil, err
	}
	utils.Debugf("Added %s", t)
	return t, nil
}

// Filter runs a built-in filter over every task, in tree order.
func (s *Store) Filter(kind FilterKind, arg any) ([]*Task, error) {
	all := s.All()

	switch kind {
	case FilterStatus:
		st, ok := arg.(Status)
		if !ok {
			return nil, fmt.Errorf("status filter needs a Status, got %T", arg)
		}
		return keep(all, func(t *Task) bool { return t.Status == st }), nil

	case FilterTag:
		var names []string
		switch v := arg.(type) {
		case string:
			names = []string{v}
		case []string:
			names = v
		default:
			return nil, fmt.Errorf("tag filter needs a name or list of names, got %T", arg)
		}
		if len(names) == 0 {
			return nil, nil
		}
		out := keep(all, func(t *Task) bool { return t.matchesTag(names[0]) })
		for _, name := range names[1:] {
			out = keep(out, func(t *Task) bool { return t.matchesTag(name) })
		}
		return out, nil

	case FilterRoot:
		return keep(all, func(t *Task) bool { return t.parent == nil }), nil

	case FilterChildren:
		return keep(all, func(t *Task) bool { return t.parent != nil }), nil
	}
	return nil, fmt.Errorf("unknown filter %s", kind)
}

// matchesTag reports whether name, or a tag below name in the tag tree, is
// attached to the task.
func (t *Task) matchesTag(name string) bool {
	name = tags.NormalizeName(name)
	for _, tag := range t.tags {
		for cur := tag; cur != nil; cur = cur.Parent() {
			if cur.Name() == name {
				return true
			}
		}
	}
	return false
}

// FilterCustom returns the tasks whose attribute attr satisfies pred.
func (s *Store) FilterCustom(attr string, pred func(any) bool) ([]*Task, error) {
	if _, err := NewTask(uuid.Nil, "").Attr(attr); err != nil {
		return nil, err
	}
	return keep(s.All(), func(t *Task) bool {
		v, _ := t.Attr(attr)
		return pred(v)
	}), nil
}

// Sort orders tasks by key and also sorts each task's direct children. With
// a nil slice the store's root list is sorted in place. Equal keys keep
// their relative order.
func (s *Store) Sort(list []*Task, key string, reverse bool) error {
	if key == "" {
		key = DefaultSortKey
	}
	cmp, err := comparator(key)
	if err != nil {
		return err
	}
	if reverse {
		forward := cmp
		cmp = func(a, b *Task) int { return -forward(a, b) }
	}

	s.Update(func(roots []*Task) {
		if list == nil {
			list = roots
		}
		slices.SortStableFunc(list, cmp)
		for _, t := range list {
			if len(t.children) > 1 {
				children := slices.Clone(t.children)
				slices.SortStableFunc(children, cmp)
				t.children = children
			}
		}
	})
	return nil
}

// Attr returns a task attribute by its document name.
func (t *Task) Attr(name string) (any, error) {
	switch name {
	case "id":
		return t.id, nil
	case "title":
		return t.title, nil
	case "content":
		return t.Content, nil
	case "status":
		return t.Status, nil
	case "tags":
		return t.Tags(), nil
	case "parent":
		return t.parent, nil
	case "children":
		return t.children, nil
	case "date_added":
		return t.DateAdded, nil
	case "date_modified":
		return t.DateModified, nil
	case "date_start":
		return t.DateStart, nil
	case "date_due":
		return t.dateDue, nil
	case "date_closed":
		return t.DateClosed, nil
	}
	return nil, fmt.Errorf("task attribute %q: %w", name, utils.ErrNotFound)
}

func comparator(key string) (func(a, b *Task) int, error) {
	switch key {
	case "id":
		return func(a, b *Task) int { return strings.Compare(a.id.String(), b.id.String()) }, nil
	case "title":
		return func(a, b *Task) int { return strings.Compare(a.title, b.title) }, nil
	case "content":
		return func(a, b *Task) int { return strings.Compare(a.Content, b.Content) }, nil
	case "status":
		return func(a, b *Task) int { return strings.Compare(string(a.Status), string(b.Status)) }, nil
	case "date_added":
		return byDate(func(t *Task) dates.Date { return t.DateAdded }), nil
	case "date_modified":
		return byDate(func(t *Task) dates.Date { return t.DateModified }), nil
	case "date_start":
		return byDate(func(t *Task) dates.Date { return t.DateStart }), nil
	case "date_due":
		return byDate(func(t *Task) dates.Date { return t.dateDue }), nil
	case "date_closed":
		return byDate(func(t *Task) dates.Date { return t.DateClosed }), nil
	}
	return nil, fmt.Errorf("cannot sort tasks by %q", key)
}

func byDate(get func(*Task) dates.Date) func(a, b *Task) int {
	return func(a, b *Task) int { return dates.Compare(get(a), get(b)) }
}

func keep(in []*Task, pred func(*Task) bool) []*Task {
	var out []*Task
	for _, t := range in {
		if pred(t) {
			out = append(out, t)
		}
	}
	return out
}
