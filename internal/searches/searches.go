// Package searches stores saved searches. The datastore only keeps and
// persists them; evaluating a query is the caller's business.
package searches

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"gtd/internal/store"
	"gtd/internal/utils"
)

// SavedSearch is a named query, optionally nested under another search.
type SavedSearch struct {
	id    uuid.UUID
	name  string
	Query string
	Icon  string
	Color string

	parent   *SavedSearch
	children []*SavedSearch
}

// NewSavedSearch returns a detached saved search.
func NewSavedSearch(id uuid.UUID, name, query string) *SavedSearch {
	return &SavedSearch{id: id, name: name, Query: query}
}

func (s *SavedSearch) ID() uuid.UUID                { return s.id }
func (s *SavedSearch) Name() string                 { return s.name }
func (s *SavedSearch) Parent() *SavedSearch         { return s.parent }
func (s *SavedSearch) SetParent(p *SavedSearch)     { s.parent = p }
func (s *SavedSearch) Children() []*SavedSearch     { return s.children }
func (s *SavedSearch) SetChildren(c []*SavedSearch) { s.children = c }

func (s *SavedSearch) String() string {
	return fmt.Sprintf("Saved Search: %s (%s)", s.name, s.id)
}

// Store is the saved-search collection with a name index.
type Store struct {
	*store.Store[*SavedSearch]

	mu     sync.RWMutex
	byName map[string]*SavedSearch
}

// NewStore returns an empty saved-search store.
func NewStore() *Store {
	s := &Store{
		Store:  store.New[*SavedSearch]("saved search"),
		byName: make(map[string]*SavedSearch),
	}
	s.SetHooks(store.Hooks[*SavedSearch]{
		OnAdd: func(ss *SavedSearch) {
			s.mu.Lock()
			s.byName[ss.name] = ss
			s.mu.Unlock()
		},
		OnRemove: func(ss *SavedSearch) {
			s.mu.Lock()
			if s.byName[ss.name] == ss {
				delete(s.byName, ss.name)
			}
			s.mu.Unlock()
		},
	})
	return s
}

// Find returns the saved search with the given name.
func (s *Store) Find(name string) (*SavedSearch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ss, ok := s.byName[name]
	if !ok {
		return nil, utils.NotFound("saved search", name)
	}
	return ss, nil
}

// New creates a saved search, or returns the existing one with that name.
func (s *Store) New(name, query string, parentID uuid.UUID) (*SavedSearch, error) {
	if ss, err := s.Find(name); err == nil {
		return ss, nil
	}
	ss := NewSavedSearch(uuid.New(), name, query)
	if err := s.Add(ss, parentID); err != nil {
		return nil, err
	}
	return ss, nil
}
