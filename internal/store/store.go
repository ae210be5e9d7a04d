// Package store provides the hierarchical entity container shared by the
// task, tag and saved-search collections.
//
// A Store owns an ordered list of root entities; every other entity is
// owned by exactly one parent's child list. All entities are indexed by id.
package store

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"

	"gtd/internal/utils"
)

var (
	// ErrDuplicate is returned when adding an id that is already stored.
	ErrDuplicate = errors.New("duplicate id")

	// ErrCycle is returned when a reparent would make an entity its own ancestor.
	ErrCycle = errors.New("parent cycle")
)

// Entity is implemented by pointer types held in a Store. Parent returns the
// zero value (nil) for roots. Only the store calls SetParent and SetChildren.
type Entity[E any] interface {
	comparable
	ID() uuid.UUID
	Parent() E
	SetParent(E)
	Children() []E
	SetChildren([]E)
}

// Hooks lets a specialised store keep secondary indexes in step. They run
// while the store's write lock is held and must not call back into it.
type Hooks[E any] struct {
	OnAdd    func(E)
	OnRemove func(E)
}

// Store is a concurrency-safe tree of entities with id lookup.
type Store[E Entity[E]] struct {
	mu     sync.RWMutex
	kind   string
	data   []E
	lookup map[uuid.UUID]E
	hooks  Hooks[E]
}

// New returns an empty store. kind names the entity in error messages.
func New[E Entity[E]](kind string) *Store[E] {
	return &Store[E]{
		kind:   kind,
		lookup: make(map[uuid.UUID]E),
	}
}

// SetHooks installs index maintenance callbacks.
func (s *Store[E]) SetHooks(h Hooks[E]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = h
}

func (s *Store[E]) notFound(id uuid.UUID) error {
	return utils.NotFound(s.kind, id)
}

// Add inserts item. With parentID == uuid.Nil the item becomes a root,
// otherwise it is appended to the parent's children. Items that already
// carry children have their whole subtree indexed.
func (s *Store[E]) Add(item E, parentID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var parent E
	if parentID != uuid.Nil {
		p, ok := s.lookup[parentID]
		if !ok {
			return s.notFound(parentID)
		}
		parent = p
	}

	subtree := preorder([]E{item})
	for _, e := range subtree {
		if _, dup := s.lookup[e.ID()]; dup {
			return fmt.Errorf("%s %s: %w", s.kind, e.ID(), ErrDuplicate)
		}
	}

	var zero E
	if parent == zero {
		s.data = append(s.data, item)
	} else {
		parent.SetChildren(append(parent.Children(), item))
	}
	item.SetParent(parent)

	for _, e := range subtree {
		s.lookup[e.ID()] = e
		if s.hooks.OnAdd != nil {
			s.hooks.OnAdd(e)
		}
	}
	return nil
}

// detach removes item from its container and returns the container
// position it held.
func (s *Store[E]) detach(item E) int {
	var zero E
	parent := item.Parent()

	if parent == zero {
		i := slices.Index(s.data, item)
		if i >= 0 {
			s.data = slices.Delete(s.data, i, i+1)
		}
		return i
	}

	children := parent.Children()
	i := slices.Index(children, item)
	if i >= 0 {
		parent.SetChildren(slices.Delete(slices.Clone(children), i, i+1))
	}
	item.SetParent(zero)
	return i
}

// isAncestor reports whether a is candidate or one of candidate's ancestors.
func isAncestor[E Entity[E]](a, candidate E) bool {
	var zero E
	for cur := candidate; cur != zero; cur = cur.Parent() {
		if cur == a {
			return true
		}
	}
	return false
}

// Reparent moves item under parent, wherever it currently lives.
func (s *Store[E]) Reparent(itemID, parentID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.lookup[itemID]
	if !ok {
		return s.notFound(itemID)
	}
	parent, ok := s.lookup[parentID]
	if !ok {
		return s.notFound(parentID)
	}
	if isAncestor(item, parent) {
		return fmt.Errorf("%s %s under %s: %w", s.kind, itemID, parentID, ErrCycle)
	}

	s.detach(item)
	parent.SetChildren(append(parent.Children(), item))
	item.SetParent(parent)
	return nil
}

// Unparent moves a direct child of parentID back to the root list.
func (s *Store[E]) Unparent(itemID, parentID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	parent, ok := s.lookup[parentID]
	if !ok {
		return s.notFound(parentID)
	}

	children := parent.Children()
	i := slices.IndexFunc(children, func(c E) bool { return c.ID() == itemID })
	if i < 0 {
		return fmt.Errorf("%s %s is not a child of %s: %w", s.kind, itemID, parentID, utils.ErrNotFound)
	}

	var zero E
	child := children[i]
	parent.SetChildren(slices.Delete(slices.Clone(children), i, i+1))
	child.SetParent(zero)
	s.data = append(s.data, child)
	return nil
}

// Remove deletes an entity. Its children take its place, in order, under
// the removed entity's parent (or in the root list).
func (s *Store[E]) Remove(id uuid.UUID) (E, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var zero E
	item, ok := s.lookup[id]
	if !ok {
		return zero, s.notFound(id)
	}

	parent := item.Parent()
	orphans := slices.Clone(item.Children())
	pos := s.detach(item)

	for _, c := range orphans {
		c.SetParent(parent)
	}
	if pos < 0 {
		pos = 0
	}
	if parent == zero {
		s.data = slices.Insert(s.data, pos, orphans...)
	} else {
		parent.SetChildren(slices.Insert(slices.Clone(parent.Children()), pos, orphans...))
	}

	item.SetChildren(nil)
	delete(s.lookup, id)
	if s.hooks.OnRemove != nil {
		s.hooks.OnRemove(item)
	}
	return item, nil
}

// Get returns the entity with the given id.
func (s *Store[E]) Get(id uuid.UUID) (E, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.lookup[id]
	if !ok {
		var zero E
		return zero, s.notFound(id)
	}
	return item, nil
}

// Contains reports whether id is stored.
func (s *Store[E]) Contains(id uuid.UUID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.lookup[id]
	return ok
}

// Count returns the number of stored entities, roots and nested.
func (s *Store[E]) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.lookup)
}

// Roots returns a copy of the root list in insertion order.
func (s *Store[E]) Roots() []E {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.data)
}

// All returns every entity, depth-first with parents before children.
func (s *Store[E]) All() []E {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return preorder(s.data)
}

// IDs returns the ids of every entity in All order.
func (s *Store[E]) IDs() []uuid.UUID {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := preorder(s.data)
	ids := make([]uuid.UUID, len(all))
	for i, e := range all {
		ids[i] = e.ID()
	}
	return ids
}

// Walk calls fn for every entity in All order until fn returns false. It
// iterates a snapshot, so fn may call back into the store.
func (s *Store[E]) Walk(fn func(E) bool) {
	for _, e := range s.All() {
		if !fn(e) {
			return
		}
	}
}

// View runs fn with the read lock held. fn must not call back into the store.
func (s *Store[E]) View(fn func(roots []E, lookup map[uuid.UUID]E)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.data, s.lookup)
}

// Update runs fn with the write lock held, for reorderings that do not
// change membership (sorting). fn must not call back into the store.
func (s *Store[E]) Update(fn func(roots []E)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.data)
}

func preorder[E Entity[E]](roots []E) []E {
	var out []E
	var walk func([]E)
	walk = func(level []E) {
		for _, e := range level {
			out = append(out, e)
			walk(e.Children())
		}
	}
	walk(roots)
	return out
}
