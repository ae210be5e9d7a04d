// Package xmlfile maps the task, tag and saved-search stores to and from the
// gtgData XML document.
package xmlfile

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"

	"gtd/internal/dates"
	"gtd/internal/searches"
	"gtd/internal/tags"
	"gtd/internal/tasks"
	"gtd/internal/utils"
)

const (
	AppVersion = "0.5"
	XMLVersion = "2"
)

type document struct {
	XMLName    xml.Name   `xml:"gtgData"`
	AppVersion string     `xml:"appVersion,attr"`
	XMLVersion string     `xml:"xmlVersion,attr"`
	TagList    tagList    `xml:"taglist"`
	SearchList searchList `xml:"searchlist"`
	TaskList   taskList   `xml:"tasklist"`
}

type tagList struct {
	Tags []tagElem `xml:"tag"`
}

type searchList struct {
	Searches []searchElem `xml:"savedSearch"`
}

type taskList struct {
	Tasks []taskElem `xml:"task"`
}

type tagElem struct {
	ID     string `xml:"id,attr"`
	Name   string `xml:"name,attr"`
	Color  string `xml:"color,attr,omitempty"`
	Icon   string `xml:"icon,attr,omitempty"`
	Parent string `xml:"parent,attr,omitempty"`
}

type searchElem struct {
	ID     string `xml:"id,attr"`
	Name   string `xml:"name,attr"`
	Query  string `xml:"query,attr"`
	Color  string `xml:"color,attr,omitempty"`
	Icon   string `xml:"icon,attr,omitempty"`
	Parent string `xml:"parent,attr,omitempty"`
}

type taskElem struct {
	ID       string      `xml:"id,attr"`
	Status   string      `xml:"status,attr"`
	Title    string      `xml:"title"`
	Tags     []string    `xml:"tags>tag"`
	Dates    datesElem   `xml:"dates"`
	Subtasks []string    `xml:"subtasks>sub"`
	Content  contentElem `xml:"content"`
}

// datesElem carries each optional date under its fuzzy or concrete name.
type datesElem struct {
	Added      string `xml:"added"`
	Modified   string `xml:"modified"`
	Done       string `xml:"done,omitempty"`
	FuzzyDue   string `xml:"fuzzyDue,omitempty"`
	Due        string `xml:"due,omitempty"`
	FuzzyStart string `xml:"fuzzyStart,omitempty"`
	Start      string `xml:"start,omitempty"`
}

type contentElem struct {
	Text string `xml:",cdata"`
}

// Stores is the result of decoding a document.
type Stores struct {
	Tasks    *tasks.Store
	Tags     *tags.Store
	Searches *searches.Store
}

// Encode writes the stores as an indented UTF-8 document with an XML
// declaration. Entities are written parents first, so decoding restores the
// same root and child order.
func Encode(w io.Writer, ts *tasks.Store, tg *tags.Store, ss *searches.Store) error {
	doc := document{AppVersion: AppVersion, XMLVersion: XMLVersion}

	for _, t := range tg.All() {
		el := tagElem{ID: t.ID().String(), Name: t.Name(), Icon: t.Icon}
		if t.Color != nil {
			el.Color = t.Color.String()
		}
		if p := t.Parent(); p != nil {
			el.Parent = p.ID().String()
		}
		doc.TagList.Tags = append(doc.TagList.Tags, el)
	}

	for _, s := range ss.All() {
		el := searchElem{ID: s.ID().String(), Name: s.Name(), Query: s.Query, Color: s.Color, Icon: s.Icon}
		if p := s.Parent(); p != nil {
			el.Parent = p.ID().String()
		}
		doc.SearchList.Searches = append(doc.SearchList.Searches, el)
	}

	for _, t := range ts.All() {
		doc.TaskList.Tasks = append(doc.TaskList.Tasks, encodeTask(t))
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	_, err := io.WriteString(w, "\n")
	return err
}

func encodeTask(t *tasks.Task) taskElem {
	el := taskElem{
		ID:      t.ID().String(),
		Status:  string(t.Status),
		Title:   t.Title(),
		Content: contentElem{Text: EscapeContent(t.Content)},
		Dates: datesElem{
			Added:    t.DateAdded.String(),
			Modified: t.DateModified.String(),
			Done:     t.DateClosed.String(),
		},
	}
	for _, tag := range t.Tags() {
		el.Tags = append(el.Tags, tag.ID().String())
	}
	for _, c := range t.Children() {
		el.Subtasks = append(el.Subtasks, c.ID().String())
	}

	if due := t.DueDate(); due.IsFuzzy() {
		el.Dates.FuzzyDue = due.String()
	} else {
		el.Dates.Due = due.String()
	}
	if start := t.DateStart; start.IsFuzzy() {
		el.Dates.FuzzyStart = start.String()
	} else {
		el.Dates.Start = start.String()
	}
	return el
}

// Decode parses a document into fresh stores. Tags and saved searches are
// created before any parent links are made, and tasks likewise, so
// references may point forward in the document. Any syntax or structure
// problem is an ErrMalformedDocument.
func Decode(r io.Reader, opts ...tags.Option) (*Stores, error) {
	var doc document
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, utils.Malformed("xml", err)
	}

	out := &Stores{
		Tasks:    tasks.NewStore(),
		Tags:     tags.NewStore(opts...),
		Searches: searches.NewStore(),
	}
	aliases, err := decodeTags(doc.TagList.Tags, out.Tags)
	if err != nil {
		return nil, err
	}
	if err := decodeSearches(doc.SearchList.Searches, out.Searches); err != nil {
		return nil, err
	}
	if err := decodeTasks(doc.TaskList.Tasks, out.Tasks, out.Tags, aliases); err != nil {
		return nil, err
	}
	return out, nil
}

func parseID(kind, s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, utils.Malformed(kind+" id "+s, err)
	}
	return id, nil
}

// tagAliases maps the ids of tags that repeat an earlier tag's name to that
// earlier tag.
type tagAliases map[uuid.UUID]*tags.Tag

func decodeTags(elems []tagElem, store *tags.Store) (tagAliases, error) {
	aliases := tagAliases{}
	for _, el := range elems {
		id, err := parseID("tag", el.ID)
		if err != nil {
			return nil, err
		}
		tag := tags.NewTag(id, el.Name)
		tag.Icon = el.Icon
		if el.Color != "" {
			c, err := tags.ParseColor(el.Color)
			if err != nil {
				utils.Debugf("Ignoring color of tag %s: %v", el.Name, err)
			} else {
				tag.Color = &c
			}
		}
		err = store.Add(tag, uuid.Nil)
		if errors.Is(err, tags.ErrNameTaken) {
			first, _ := store.Find(tag.Name())
			utils.Debugf("Tag %s repeats the name of %s, merging", id, first.ID())
			aliases[id] = first
			continue
		}
		if err != nil {
			return nil, utils.Malformed("tag "+el.Name, err)
		}
	}

	for _, el := range elems {
		id, _ := uuid.Parse(el.ID)
		if el.Parent == "" || aliases[id] != nil {
			continue
		}
		parent, err := aliases.resolve(store, el.Parent)
		if err != nil {
			utils.Debugf("Tag %s has unknown parent %s", el.Name, el.Parent)
			continue
		}
		if err := store.Reparent(id, parent.ID()); err != nil {
			return nil, utils.Malformed("tag "+el.Name, err)
		}
	}
	return aliases, nil
}

// resolve looks a reference up as an id, then as a name.
func (a tagAliases) resolve(store *tags.Store, ref string) (*tags.Tag, error) {
	if id, err := uuid.Parse(ref); err == nil {
		if t, err := store.Get(id); err == nil {
			return t, nil
		}
		if t, ok := a[id]; ok {
			return t, nil
		}
	}
	return store.Find(ref)
}

func decodeSearches(elems []searchElem, store *searches.Store) error {
	for _, el := range elems {
		id, err := parseID("saved search", el.ID)
		if err != nil {
			return err
		}
		s := searches.NewSavedSearch(id, el.Name, el.Query)
		s.Icon = el.Icon
		s.Color = el.Color
		if err := store.Add(s, uuid.Nil); err != nil {
			return utils.Malformed("saved search "+el.Name, err)
		}
	}

	for _, el := range elems {
		if el.Parent == "" {
			continue
		}
		id, _ := uuid.Parse(el.ID)
		parent, err := resolveSearch(store, el.Parent)
		if err != nil {
			utils.Debugf("Saved search %s has unknown parent %s", el.Name, el.Parent)
			continue
		}
		if err := store.Reparent(id, parent.ID()); err != nil {
			return utils.Malformed("saved search "+el.Name, err)
		}
	}
	return nil
}

func resolveSearch(store *searches.Store, ref string) (*searches.SavedSearch, error) {
	if id, err := uuid.Parse(ref); err == nil {
		if s, err := store.Get(id); err == nil {
			return s, nil
		}
	}
	return store.Find(ref)
}

func decodeTasks(elems []taskElem, store *tasks.Store, tagStore *tags.Store, aliases tagAliases) error {
	for _, el := range elems {
		t, err := decodeTask(el, tagStore, aliases)
		if err != nil {
			return err
		}
		if err := store.Add(t, uuid.Nil); err != nil {
			return utils.Malformed("task "+el.ID, err)
		}
		utils.Debugf("Added %s", t)
	}

	for _, el := range elems {
		parentID, _ := uuid.Parse(el.ID)
		for _, sub := range el.Subtasks {
			childID, err := uuid.Parse(sub)
			if err != nil || !store.Contains(childID) {
				utils.Debugf("Task %s lists unknown subtask %q", el.ID, sub)
				continue
			}
			if err := store.Reparent(childID, parentID); err != nil {
				return utils.Malformed("task "+el.ID, err)
			}
		}
	}
	return nil
}

func decodeTask(el taskElem, tagStore *tags.Store, aliases tagAliases) (*tasks.Task, error) {
	id, err := parseID("task", el.ID)
	if err != nil {
		return nil, err
	}
	malformed := func(field string, cause error) error {
		return utils.Malformed(fmt.Sprintf("task %s %s", el.ID, field), cause)
	}

	t := tasks.NewTask(id, el.Title)
	if t.Status, err = tasks.ParseStatus(el.Status); err != nil {
		return nil, malformed("status", err)
	}

	if el.Dates.Added != "" {
		if t.DateAdded, err = dates.Parse(el.Dates.Added); err != nil {
			return nil, malformed("added", err)
		}
	}
	if el.Dates.Modified != "" {
		if t.DateModified, err = dates.Parse(el.Dates.Modified); err != nil {
			return nil, malformed("modified", err)
		}
	}
	if t.DateClosed, err = dates.Parse(el.Dates.Done); err != nil {
		return nil, malformed("done", err)
	}

	due, err := pickDate(el.Dates.FuzzyDue, el.Dates.Due)
	if err != nil {
		return nil, malformed("due", err)
	}
	t.SetDueDate(due)
	if t.DateStart, err = pickDate(el.Dates.FuzzyStart, el.Dates.Start); err != nil {
		return nil, malformed("start", err)
	}

	for _, ref := range el.Tags {
		tag, err := aliases.resolve(tagStore, ref)
		if err != nil {
			utils.Debugf("Task %s references unknown tag %q", el.ID, ref)
			continue
		}
		t.AddTag(tag)
	}

	t.Content = UnescapeContent(el.Content.Text)
	return t, nil
}

// pickDate prefers the fuzzy form when both are present.
func pickDate(fuzzy, concrete string) (dates.Date, error) {
	if fuzzy != "" {
		d, err := dates.Parse(fuzzy)
		if err == nil && !d.IsFuzzy() {
			err = errors.New("not a fuzzy date: " + fuzzy)
		}
		return d, err
	}
	return dates.Parse(concrete)
}
