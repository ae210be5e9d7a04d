// Package tags holds tag entities and the tag store, which indexes tags by
// id and by name and hands out unused colours.
package tags

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"gtd/internal/store"
	"gtd/internal/utils"
)

// ErrNameTaken is returned when renaming a tag to a name another tag has.
var ErrNameTaken = errors.New("tag name taken")

// Tag is a label that can be attached to tasks. Tags form their own tree.
type Tag struct {
	id   uuid.UUID
	name string

	Color      *Color
	Icon       string
	Actionable bool

	parent   *Tag
	children []*Tag
}

// NewTag returns a detached tag. Use Store.New to create and register one.
func NewTag(id uuid.UUID, name string) *Tag {
	return &Tag{id: id, name: NormalizeName(name), Actionable: true}
}

func (t *Tag) ID() uuid.UUID        { return t.id }
func (t *Tag) Name() string         { return t.name }
func (t *Tag) Parent() *Tag         { return t.parent }
func (t *Tag) SetParent(p *Tag)     { t.parent = p }
func (t *Tag) Children() []*Tag     { return t.children }
func (t *Tag) SetChildren(c []*Tag) { t.children = c }

// Token returns the tag as written inside task content, e.g. "@work".
func (t *Tag) Token() string { return "@" + t.name }

// Descendants returns every tag below t, depth-first.
func (t *Tag) Descendants() []*Tag {
	var out []*Tag
	for _, c := range t.children {
		out = append(out, c)
		out = append(out, c.Descendants()...)
	}
	return out
}

func (t *Tag) String() string {
	return fmt.Sprintf("Tag: %s (%s)", t.name, t.id)
}

// NormalizeName strips a single leading "@".
func NormalizeName(name string) string {
	return strings.TrimPrefix(name, "@")
}

// Store is the tag collection. Names are unique; the name index is kept in
// step with the id index by the underlying store's hooks.
type Store struct {
	*store.Store[*Tag]

	mu         sync.RWMutex
	byName     map[string]*Tag
	usedColors map[Color]struct{}
	rnd        *rand.Rand
	createMu   sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

// WithRand sets the random source used by GenerateColor.
func WithRand(r *rand.Rand) Option {
	return func(s *Store) { s.rnd = r }
}

// NewStore returns an empty tag store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		Store:      store.New[*Tag]("tag"),
		byName:     make(map[string]*Tag),
		usedColors: make(map[Color]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rnd == nil {
		s.rnd = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	s.SetHooks(store.Hooks[*Tag]{
		OnAdd: func(t *Tag) {
			s.mu.Lock()
			s.byName[t.name] = t
			if t.Color != nil {
				s.usedColors[*t.Color] = struct{}{}
			}
			s.mu.Unlock()
		},
		OnRemove: func(t *Tag) {
			s.mu.Lock()
			if s.byName[t.name] == t {
				delete(s.byName, t.name)
			}
			s.mu.Unlock()
		},
	})
	return s
}

func (s *Store) String() string {
	return fmt.Sprintf("Tag Store. Holds %d tag(s)", s.Count())
}

// Find returns the tag with the given name. A leading "@" is ignored.
func (s *Store) Find(name string) (*Tag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.byName[NormalizeName(name)]
	if !ok {
		return nil, utils.NotFound("tag", name)
	}
	return t, nil
}

// Names returns all tag names, sorted.
func (s *Store) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.byName))
	for n := range s.byName {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// New returns the tag called name, creating it under parentID (uuid.Nil for
// a root tag) if it does not exist yet.
func (s *Store) New(name string, parentID uuid.UUID) (*Tag, error) {
	s.createMu.Lock()
	defer s.createMu.Unlock()

	name = NormalizeName(name)
	if t, err := s.Find(name); err == nil {
		return t, nil
	}

	t := NewTag(uuid.New(), name)
	if err := s.add(t, parentID); err != nil {
		return nil, err
	}
	utils.Debugf("Added %s", t)
	return t, nil
}

// Add stores t under parentID (uuid.Nil for a root tag). A name already
// used by another tag is rejected with ErrNameTaken.
func (s *Store) Add(t *Tag, parentID uuid.UUID) error {
	s.createMu.Lock()
	defer s.createMu.Unlock()
	return s.add(t, parentID)
}

func (s *Store) add(t *Tag, parentID uuid.UUID) error {
	if other, err := s.Find(t.name); err == nil && other.id != t.id {
		return fmt.Errorf("%q: %w", t.name, ErrNameTaken)
	}
	return s.Store.Add(t, parentID)
}

// Rename changes the name of the tag with the given id. A leading "@" is
// ignored.
func (s *Store) Rename(id uuid.UUID, name string) error {
	s.createMu.Lock()
	defer s.createMu.Unlock()

	t, err := s.Get(id)
	if err != nil {
		return err
	}
	name = NormalizeName(name)

	s.mu.Lock()
	defer s.mu.Unlock()
	if other, ok := s.byName[name]; ok && other != t {
		return fmt.Errorf("%q: %w", name, ErrNameTaken)
	}
	delete(s.byName, t.name)
	t.name = name
	s.byName[name] = t
	return nil
}

// UseColor marks c as taken.
func (s *Store) UseColor(c Color) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.usedColors[c] = struct{}{}
}

// GenerateColor draws random colours until it finds one not in use, marks
// it used and returns it. The result depends on the random source; seed it
// with WithRand for reproducible output.
func (s *Store) GenerateColor() Color {
	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		c := Color{
			R: uint16(s.rnd.IntN(maxChannel + 1)),
			G: uint16(s.rnd.IntN(maxChannel + 1)),
			B: uint16(s.rnd.IntN(maxChannel + 1)),
		}
		if _, used := s.usedColors[c]; used {
			continue
		}
		s.usedColors[c] = struct{}{}
		return c
	}
}
