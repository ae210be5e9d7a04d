// Package firstrun builds the data file written when no existing file or
// backup can be loaded.
package firstrun

import (
	"io"

	"github.com/google/uuid"

	"gtd/internal/searches"
	"gtd/internal/tags"
	"gtd/internal/tasks"
	"gtd/internal/xmlfile"
)

// TutorialTag is attached to every generated task.
const TutorialTag = "tutorial"

var steps = []struct {
	title   string
	content string
}{
	{
		title:   "Add a task",
		content: "@tutorial, Run `gtd add \"Buy milk\"`. Use --parent to nest it under another task.",
	},
	{
		title:   "Tag your tasks",
		content: "@tutorial, Run `gtd tag <id> errands`. Tags cascade to subtasks.",
	},
	{
		title:   "Set a due date",
		content: "@tutorial, Run `gtd due <id> tomorrow`. Fuzzy dates like soon and someday work too.",
	},
	{
		title:   "Finish something",
		content: "@tutorial, Run `gtd done <id>`. Completing a task completes its subtasks.",
	},
}

// Generate writes the initial document to w: a tutorial task with one
// subtask per step, all tagged TutorialTag, and a saved search for them.
func Generate(w io.Writer) error {
	tg := tags.NewStore()
	tutorial, err := tg.New(TutorialTag, uuid.Nil)
	if err != nil {
		return err
	}
	color := tg.GenerateColor()
	tutorial.Color = &color

	ss := searches.NewStore()
	if _, err := ss.New("Tutorial", "@"+TutorialTag, uuid.Nil); err != nil {
		return err
	}

	ts := tasks.NewStore()
	root, err := ts.New("Getting started with gtd", uuid.Nil)
	if err != nil {
		return err
	}
	root.Content = "@tutorial, Work through the subtasks below, then remove this one with `gtd rm`."

	for _, step := range steps {
		t, err := ts.New(step.title, root.ID())
		if err != nil {
			return err
		}
		t.Content = step.content
	}
	root.AddTag(tutorial)

	return xmlfile.Encode(w, ts, tg, ss)
}
