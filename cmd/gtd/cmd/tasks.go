package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"gtd/internal/tags"
	"gtd/internal/tasks"
	"gtd/internal/utils"
	"gtd/internal/views"
)

// runApp opens a session, runs fn and closes the session.
func runApp(cmd *cobra.Command, cfg *Config, stdout, stderr io.Writer, fn func(a *app) error) error {
	a, err := openApp(cmd, cfg, stdout, stderr)
	if err != nil {
		return err
	}
	defer a.close()
	return fn(a)
}

// newInfoCmd creates the 'info' subcommand
func newInfoCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show datastore statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(cmd, cfg, stdout, stderr, doInfo)
		},
	}
}

type backendJSON struct {
	ID      string `json:"id"`
	Enabled bool   `json:"enabled"`
	Default bool   `json:"default"`
}

type infoResponse struct {
	DataFile    string        `json:"data_file"`
	Tasks       int           `json:"tasks"`
	Tags        int           `json:"tags"`
	Searches    int           `json:"searches"`
	Initialized bool          `json:"initialized"`
	Backends    []backendJSON `json:"backends"`
	Result      string        `json:"result"`
}

func doInfo(a *app) error {
	stats := a.ds.Stats()
	all := a.ds.Backends(true)

	if a.json {
		resp := infoResponse{
			DataFile:    a.ds.Path(),
			Tasks:       stats.Tasks,
			Tags:        stats.Tags,
			Searches:    stats.Searches,
			Initialized: stats.Initialized,
			Backends:    make([]backendJSON, 0, len(all)),
			Result:      ResultInfoOnly,
		}
		for _, b := range all {
			resp.Backends = append(resp.Backends, backendJSON{ID: b.ID(), Enabled: b.IsEnabled(), Default: b.IsDefault()})
		}
		return writeJSON(resp, a.out)
	}

	_, _ = fmt.Fprintln(a.out, stats)
	_, _ = fmt.Fprintf(a.out, "- Data file: %s\n", a.ds.Path())
	for _, b := range all {
		_, _ = fmt.Fprintf(a.out, "- Backend %s: %s\n", b.ID(), backendState(b.IsEnabled(), b.IsDefault()))
	}
	a.info()
	return nil
}

func backendState(enabled, isDefault bool) string {
	state := "disabled"
	if enabled {
		state = "enabled"
	}
	if isDefault {
		state += " (default)"
	}
	return state
}

// newAddCmd creates the 'add' subcommand
func newAddCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add TITLE...",
		Short: "Add a task",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parent, _ := cmd.Flags().GetString("parent")
			due, _ := cmd.Flags().GetString("due")
			start, _ := cmd.Flags().GetString("start")
			tagNames, _ := cmd.Flags().GetStringSlice("tag")
			content, _ := cmd.Flags().GetString("content")

			return runApp(cmd, cfg, stdout, stderr, func(a *app) error {
				return doAdd(a, strings.Join(args, " "), parent, due, start, content, tagNames)
			})
		},
	}
	cmd.Flags().StringP("parent", "P", "", "Parent task (id, id prefix or title)")
	cmd.Flags().String("due", "", "Due date (YYYY-MM-DD, +Nd, tomorrow, soon, someday, ...)")
	cmd.Flags().String("start", "", "Start date")
	cmd.Flags().StringSlice("tag", nil, "Tag to attach (repeatable or comma-separated)")
	cmd.Flags().String("content", "", "Task notes")
	return cmd
}

func doAdd(a *app, title, parentRef, due, start, content string, tagNames []string) error {
	dueDate, err := utils.ParseDateFlag(due)
	if err != nil {
		return err
	}
	startDate, err := utils.ParseDateFlag(start)
	if err != nil {
		return err
	}

	var created *tasks.Task
	err = a.ds.Update(func(ts *tasks.Store, tg *tags.Store) error {
		parentID := uuid.Nil
		if parentRef != "" {
			parent, err := a.findTask(ts, parentRef)
			if err != nil {
				return fmt.Errorf("parent task not found: %w", err)
			}
			parentID = parent.ID()
		}

		t, err := ts.New(title, parentID)
		if err != nil {
			return err
		}
		t.Content = content
		t.DateStart = startDate
		t.SetDueDate(dueDate)
		for _, name := range tagNames {
			tag, err := ensureTag(tg, name)
			if err != nil {
				return err
			}
			t.AddTag(tag)
		}
		created = t
		return nil
	})
	if err != nil {
		return err
	}

	if err := a.commit(lineage(created)); err != nil {
		return err
	}
	if a.json {
		return outputActionJSON("add", created, a.out)
	}
	a.done("Created task: %s (ID: %s)", created.Title(), shortID(created.ID()))
	return nil
}

// newListCmd creates the 'list' subcommand
func newListCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List tasks as a tree",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := listOptions{}
			opts.status, _ = cmd.Flags().GetString("status")
			opts.tags, _ = cmd.Flags().GetStringSlice("tag")
			opts.rootOnly, _ = cmd.Flags().GetBool("root")
			opts.sortKey, _ = cmd.Flags().GetString("sort")
			opts.reverse, _ = cmd.Flags().GetBool("reverse")
			opts.view, _ = cmd.Flags().GetString("view")

			return runApp(cmd, cfg, stdout, stderr, func(a *app) error {
				return doList(a, opts)
			})
		},
	}
	cmd.Flags().StringP("status", "s", "active", "Status filter (active, done, dismissed, all)")
	cmd.Flags().StringSlice("tag", nil, "Only tasks carrying every given tag (sub-tags match)")
	cmd.Flags().Bool("root", false, "Only top-level tasks")
	cmd.Flags().String("sort", tasks.DefaultSortKey, "Sort key (id, title, status, date_added, date_due, ...)")
	cmd.Flags().BoolP("reverse", "r", false, "Reverse the sort order")
	cmd.Flags().StringP("view", "v", "", "View to use (default, all)")
	return cmd
}

type listOptions struct {
	status   string
	tags     []string
	rootOnly bool
	sortKey  string
	reverse  bool
	view     string
}

// parseStatusFilter maps a flag value to a status; ok is false for "all".
func parseStatusFilter(s string) (st tasks.Status, ok bool, err error) {
	switch strings.ToLower(s) {
	case "", "all":
		return "", false, nil
	case "active", "todo":
		return tasks.StatusActive, true, nil
	case "done":
		return tasks.StatusDone, true, nil
	case "dismissed":
		return tasks.StatusDismissed, true, nil
	}
	return "", false, fmt.Errorf("unknown status %q (use active, done, dismissed or all)", s)
}

func doList(a *app, opts listOptions) error {
	view, err := views.ViewByName(opts.view)
	if err != nil {
		return err
	}
	status, byStatus, err := parseStatusFilter(opts.status)
	if err != nil {
		return err
	}

	var list []*tasks.Task
	err = a.ds.Update(func(ts *tasks.Store, _ *tags.Store) error {
		if err := ts.Sort(nil, opts.sortKey, opts.reverse); err != nil {
			return err
		}
		list = ts.All()

		if byStatus {
			filtered, err := ts.Filter(tasks.FilterStatus, status)
			if err != nil {
				return err
			}
			list = intersect(list, filtered)
		}
		if len(opts.tags) > 0 {
			filtered, err := ts.Filter(tasks.FilterTag, opts.tags)
			if err != nil {
				return err
			}
			list = intersect(list, filtered)
		}
		if opts.rootOnly {
			filtered, err := ts.Filter(tasks.FilterRoot, nil)
			if err != nil {
				return err
			}
			list = intersect(list, filtered)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if a.json {
		return outputTaskListJSON(list, a.out)
	}
	if len(list) == 0 {
		_, _ = fmt.Fprintln(a.out, "No tasks")
	} else {
		views.RenderTasks(list, view, a.out)
	}
	a.info()
	return nil
}

// intersect keeps the tasks of list that are also in keep, in list order.
func intersect(list, keep []*tasks.Task) []*tasks.Task {
	set := make(map[*tasks.Task]bool, len(keep))
	for _, t := range keep {
		set[t] = true
	}
	out := list[:0:0]
	for _, t := range list {
		if set[t] {
			out = append(out, t)
		}
	}
	return out
}

// mutateTask finds ref, applies fn under the datastore lock and commits the
// task's lineage.
func (a *app) mutateTask(ref string, fn func(t *tasks.Task, tg *tags.Store) error) (*tasks.Task, error) {
	var target *tasks.Task
	err := a.ds.Update(func(ts *tasks.Store, tg *tags.Store) error {
		t, err := a.findTask(ts, ref)
		if err != nil {
			return err
		}
		target = t
		return fn(t, tg)
	})
	if err != nil {
		return nil, err
	}
	if err := a.commit(lineage(target)); err != nil {
		return nil, err
	}
	return target, nil
}

// newDoneCmd creates the 'done' subcommand
func newDoneCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "done TASK",
		Short: "Toggle a task between active and done",
		Long:  "Complete an active task, or reopen a done one. Subtasks follow unless --no-propagate is given.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			noPropagate, _ := cmd.Flags().GetBool("no-propagate")
			return runApp(cmd, cfg, stdout, stderr, func(a *app) error {
				t, err := a.mutateTask(args[0], func(t *tasks.Task, _ *tags.Store) error {
					if t.Status == tasks.StatusDismissed {
						return fmt.Errorf("task '%s' is dismissed", t.Title())
					}
					t.ToggleStatus(!noPropagate)
					return nil
				})
				if err != nil {
					return err
				}
				if a.json {
					return outputActionJSON("done", t, a.out)
				}
				if t.Status == tasks.StatusDone {
					a.done("Completed task: %s", t.Title())
				} else {
					a.done("Reopened task: %s", t.Title())
				}
				return nil
			})
		},
	}
	cmd.Flags().Bool("no-propagate", false, "Leave subtasks unchanged")
	return cmd
}

// newDismissCmd creates the 'dismiss' subcommand
func newDismissCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "dismiss TASK",
		Short: "Dismiss a task and its subtasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(cmd, cfg, stdout, stderr, func(a *app) error {
				t, err := a.mutateTask(args[0], func(t *tasks.Task, _ *tags.Store) error {
					t.Dismiss()
					return nil
				})
				if err != nil {
					return err
				}
				if a.json {
					return outputActionJSON("dismiss", t, a.out)
				}
				a.done("Dismissed task: %s", t.Title())
				return nil
			})
		},
	}
}

// newDueCmd creates the 'due' subcommand
func newDueCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "due TASK [DATE]",
		Short: "Set or clear the due date of a task",
		Long:  "Set the due date of a task. Without DATE the due date is cleared.\nA concrete date also pulls later subtask due dates in.",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var raw string
			if len(args) == 2 {
				raw = args[1]
			}
			return runApp(cmd, cfg, stdout, stderr, func(a *app) error {
				d, err := utils.ParseDateFlag(raw)
				if err != nil {
					return err
				}
				t, err := a.mutateTask(args[0], func(t *tasks.Task, _ *tags.Store) error {
					t.SetDueDate(d)
					t.Touch()
					return nil
				})
				if err != nil {
					return err
				}
				if a.json {
					return outputActionJSON("due", t, a.out)
				}
				if !d.IsSet() {
					a.done("Cleared due date of %s", t.Title())
				} else {
					a.done("Set due date of %s to %s", t.Title(), d.Display())
				}
				return nil
			})
		},
	}
}

// newTagCmd creates the 'tag' subcommand
func newTagCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "tag TASK NAME...",
		Short: "Attach tags to a task and its subtasks",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(cmd, cfg, stdout, stderr, func(a *app) error {
				var tokens []string
				t, err := a.mutateTask(args[0], func(t *tasks.Task, tg *tags.Store) error {
					for _, name := range args[1:] {
						tag, err := ensureTag(tg, name)
						if err != nil {
							return err
						}
						t.AddTag(tag)
						tokens = append(tokens, tag.Token())
					}
					t.Touch()
					return nil
				})
				if err != nil {
					return err
				}
				if a.json {
					return outputActionJSON("tag", t, a.out)
				}
				a.done("Tagged %s with %s", t.Title(), strings.Join(tokens, " "))
				return nil
			})
		},
	}
}

// newUntagCmd creates the 'untag' subcommand
func newUntagCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "untag TASK NAME...",
		Short: "Detach tags from a task",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(cmd, cfg, stdout, stderr, func(a *app) error {
				var tokens []string
				t, err := a.mutateTask(args[0], func(t *tasks.Task, tg *tags.Store) error {
					for _, name := range args[1:] {
						tag, err := tg.Find(name)
						if err != nil || !t.HasTag(tag.Name()) {
							return utils.ErrTagNotFound(tags.NormalizeName(name))
						}
						t.RemoveTag(tag.Name())
						tokens = append(tokens, tag.Token())
					}
					t.Touch()
					return nil
				})
				if err != nil {
					return err
				}
				if a.json {
					return outputActionJSON("untag", t, a.out)
				}
				a.done("Removed %s from %s", strings.Join(tokens, " "), t.Title())
				return nil
			})
		},
	}
}

// newRemoveCmd creates the 'rm' subcommand
func newRemoveCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:     "rm TASK",
		Aliases: []string{"delete"},
		Short:   "Delete a task",
		Long:    "Delete a task. Its subtasks move up to the task's parent.",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(cmd, cfg, stdout, stderr, func(a *app) error {
				return doRemove(a, args[0])
			})
		},
	}
}

func doRemove(a *app, ref string) error {
	var (
		removed  *tasks.Task
		affected []uuid.UUID
	)
	err := a.ds.Update(func(ts *tasks.Store, _ *tags.Store) error {
		t, err := a.findTask(ts, ref)
		if err != nil {
			return err
		}
		if !a.cfg.NoPrompt && !a.prompt.YesNo(fmt.Sprintf("Delete task '%s'?", t.Title())) {
			return nil
		}

		affected = append(affected, t.ID())
		if p := t.Parent(); p != nil {
			affected = append(affected, p.ID())
		}
		for _, c := range t.Children() {
			affected = append(affected, c.ID())
		}

		removed, err = ts.Remove(t.ID())
		return err
	})
	if err != nil {
		return err
	}
	if removed == nil {
		_, _ = fmt.Fprintln(a.out, "Cancelled")
		return nil
	}

	if err := a.commit(affected); err != nil {
		return err
	}
	if a.json {
		return outputActionJSON("delete", removed, a.out)
	}
	a.done("Deleted task: %s", removed.Title())
	return nil
}

// newSaveCmd creates the 'save' subcommand
func newSaveCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "save [PATH]",
		Short: "Write the data file, or a copy of it to PATH",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(cmd, cfg, stdout, stderr, func(a *app) error {
				path := a.ds.Path()
				if len(args) == 1 {
					path = args[0]
				}
				if err := a.ds.SaveFile(path); err != nil {
					return err
				}
				a.done("Saved %d task(s) to %s", a.ds.Stats().Tasks, path)
				return nil
			})
		},
	}
}
