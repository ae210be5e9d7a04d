// Package views renders task trees for the command line.
package views

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"gtd/internal/dates"
	"gtd/internal/tasks"
)

// IsTerminal reports whether w is a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

type styles struct {
	done    lipgloss.Style
	overdue lipgloss.Style
	tag     func(hex string) lipgloss.Style
}

// Renderer handles rendering tasks using a view configuration
type Renderer struct {
	view   *View
	writer io.Writer
	color  bool
	styles styles
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithColor forces colour output on or off. By default colour is used only
// when the writer is a terminal.
func WithColor(enabled bool) Option {
	return func(r *Renderer) { r.color = enabled }
}

// NewRenderer creates a new view renderer
func NewRenderer(view *View, writer io.Writer, opts ...Option) *Renderer {
	r := &Renderer{view: view, writer: writer, color: IsTerminal(writer)}
	for _, opt := range opts {
		opt(r)
	}

	lg := lipgloss.NewRenderer(writer)
	r.styles = styles{
		done:    lg.NewStyle().Faint(true).Strikethrough(true),
		overdue: lg.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		tag: func(hex string) lipgloss.Style {
			return lg.NewStyle().Foreground(lipgloss.Color(hex))
		},
	}
	return r
}

type taskNode struct {
	task     *tasks.Task
	children []*taskNode
}

// Render renders tasks as a tree. A task is nested under its parent when the
// parent is also in list; otherwise it is shown at the top level.
func (r *Renderer) Render(list []*tasks.Task) {
	if len(list) == 0 {
		return
	}

	present := make(map[*tasks.Task]bool, len(list))
	for _, t := range list {
		present[t] = true
	}

	var build func(t *tasks.Task) *taskNode
	build = func(t *tasks.Task) *taskNode {
		node := &taskNode{task: t}
		for _, c := range t.Children() {
			if present[c] {
				node.children = append(node.children, build(c))
			}
		}
		return node
	}

	var rootNodes []*taskNode
	for _, t := range list {
		if p := t.Parent(); p == nil || !present[p] {
			rootNodes = append(rootNodes, build(t))
		}
	}

	for i, node := range rootNodes {
		r.renderNode(node, "", i == len(rootNodes)-1)
	}
}

// renderNode renders a task node with tree visualization
func (r *Renderer) renderNode(node *taskNode, prefix string, isLast bool) {
	var parts []string
	for _, field := range r.view.Fields {
		if val := r.formatField(node.task, field); val != "" {
			parts = append(parts, val)
		}
	}

	var treeChar string
	if prefix == "" {
		treeChar = ""
	} else if isLast {
		treeChar = "└─ "
	} else {
		treeChar = "├─ "
	}

	line := strings.TrimRight(strings.Join(parts, " "), " ")
	_, _ = fmt.Fprintf(r.writer, "%s%s%s\n", prefix, treeChar, line)

	var childPrefix string
	if prefix == "" {
		childPrefix = " "
	} else if isLast {
		childPrefix = prefix + "   "
	} else {
		childPrefix = prefix + "│  "
	}

	for i, child := range node.children {
		r.renderNode(child, childPrefix, i == len(node.children)-1)
	}
}

// formatField formats a task field according to field configuration.
// Padding is applied before styling so escape codes do not count towards
// the width.
func (r *Renderer) formatField(t *tasks.Task, field Field) string {
	if field.Name == "tags" {
		return r.formatTags(t)
	}

	var value string
	switch field.Name {
	case "status":
		value = formatStatus(t.Status)
	case "title":
		value = t.Title()
	case "excerpt":
		value = t.Excerpt()
	case "due":
		value = formatDate(t.DueDate())
	case "days_left":
		if t.DueDate().IsSet() {
			value = strconv.Itoa(t.DaysLeft()) + "d"
		}
	case "start":
		value = formatDate(t.DateStart)
	case "added":
		value = formatDate(t.DateAdded)
	case "modified":
		value = formatDate(t.DateModified)
	case "closed":
		value = formatDate(t.DateClosed)
	case "id":
		value = t.ID().String()
	}

	value = pad(value, field)
	if !r.color {
		return value
	}
	switch {
	case field.Name == "title" && !t.IsActive():
		return r.styles.done.Render(value)
	case field.Name == "due" && t.IsActive() && !t.DueDate().IsFuzzy() && t.DaysLeft() < 0:
		return r.styles.overdue.Render(value)
	}
	return value
}

func (r *Renderer) formatTags(t *tasks.Task) string {
	var names []string
	for _, tag := range t.Tags() {
		name := tag.Token()
		if r.color && tag.Color != nil {
			name = r.styles.tag(tag.Color.Hex()).Render(name)
		}
		names = append(names, name)
	}
	return strings.Join(names, " ")
}

func pad(value string, field Field) string {
	if field.Width <= 0 {
		return value
	}
	runes := []rune(value)
	if len(runes) > field.Width && field.Truncate {
		value = string(runes[:field.Width-1]) + "…"
		runes = []rune(value)
	}
	fill := field.Width - len(runes)
	if fill <= 0 {
		return value
	}
	if field.Align == "right" {
		return strings.Repeat(" ", fill) + value
	}
	return value + strings.Repeat(" ", fill)
}

// formatStatus formats a task status for display
func formatStatus(status tasks.Status) string {
	switch status {
	case tasks.StatusDone:
		return "[x]"
	case tasks.StatusDismissed:
		return "[-]"
	default:
		return "[ ]"
	}
}

// formatDate formats a date for display
func formatDate(d dates.Date) string {
	if !d.IsSet() {
		return ""
	}
	return d.Display()
}

// RenderTasks is a convenience function for rendering tasks with a view
func RenderTasks(list []*tasks.Task, view *View, writer io.Writer, opts ...Option) {
	NewRenderer(view, writer, opts...).Render(list)
}
