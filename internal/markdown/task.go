// Package markdown formats and parses the markdown checklist written by the
// file backend.
package markdown

import (
	"regexp"
	"strings"

	"github.com/google/uuid"

	"gtd/backend"
)

var (
	linePattern = regexp.MustCompile(`^(\s*)- \[(.)\] (.*?)(?: <!-- ([0-9a-fA-F-]{36}) -->)?$`)
	duePattern  = regexp.MustCompile(`(?:^|\s)due:(\S+)`)
	tagPattern  = regexp.MustCompile(`(?:^|\s)#([\w-]+)`)
)

// OrganizeTasksHierarchically separates root tasks from children.
// A task whose parent is not in tasks counts as a root.
func OrganizeTasksHierarchically(tasks []backend.Task) ([]backend.Task, map[uuid.UUID][]backend.Task) {
	present := make(map[uuid.UUID]bool, len(tasks))
	for _, task := range tasks {
		present[task.ID] = true
	}

	childrenMap := make(map[uuid.UUID][]backend.Task)
	var rootTasks []backend.Task
	for _, task := range tasks {
		if task.ParentID == uuid.Nil || !present[task.ParentID] {
			rootTasks = append(rootTasks, task)
		} else {
			childrenMap[task.ParentID] = append(childrenMap[task.ParentID], task)
		}
	}

	return rootTasks, childrenMap
}

// WriteTaskTree writes a task and its children with proper indentation to a strings.Builder.
func WriteTaskTree(sb *strings.Builder, task *backend.Task, childrenMap map[uuid.UUID][]backend.Task, level int) {
	sb.WriteString(strings.Repeat("  ", level))
	sb.WriteString("- [")
	sb.WriteString(FormatStatusChar(task.Status))
	sb.WriteString("] ")
	sb.WriteString(FormatTaskText(task))
	sb.WriteString(" <!-- ")
	sb.WriteString(task.ID.String())
	sb.WriteString(" -->\n")

	for i := range childrenMap[task.ID] {
		WriteTaskTree(sb, &childrenMap[task.ID][i], childrenMap, level+1)
	}
}

// ParseStatusChar converts a markdown checkbox character to a task status.
func ParseStatusChar(char string) string {
	switch strings.ToLower(char) {
	case "x":
		return "Done"
	case "-":
		return "Dismissed"
	default:
		return "Active"
	}
}

// FormatStatusChar converts a task status to a markdown checkbox character.
func FormatStatusChar(status string) string {
	switch status {
	case "Done":
		return "x"
	case "Dismissed":
		return "-"
	default:
		return " "
	}
}

// ParseTaskText extracts title, due date and tags from task text.
// Format: "Task title due:2024-01-15 #tag1 #tag2"
func ParseTaskText(text string) (title, due string, tags []string) {
	title = text

	if m := duePattern.FindStringSubmatch(text); len(m) == 2 {
		due = m[1]
		title = duePattern.ReplaceAllString(title, "")
	}

	for _, m := range tagPattern.FindAllStringSubmatch(text, -1) {
		tags = append(tags, m[1])
	}
	if len(tags) > 0 {
		title = tagPattern.ReplaceAllString(title, "")
	}

	return strings.TrimSpace(title), due, tags
}

// FormatTaskText formats a task back to markdown text.
func FormatTaskText(task *backend.Task) string {
	parts := []string{task.Title}
	if task.Due != "" {
		parts = append(parts, "due:"+task.Due)
	}
	for _, tag := range task.Tags {
		parts = append(parts, "#"+tag)
	}
	return strings.Join(parts, " ")
}

// ParseChecklist reads a checklist written by WriteTaskTree. Indentation
// restores parent links; lines without an id are skipped.
func ParseChecklist(content string) []backend.Task {
	var tasks []backend.Task
	var stack []uuid.UUID // ids by indentation level

	for _, line := range strings.Split(content, "\n") {
		m := linePattern.FindStringSubmatch(line)
		if m == nil || m[4] == "" {
			continue
		}
		id, err := uuid.Parse(m[4])
		if err != nil {
			continue
		}

		level := len(m[1]) / 2
		if level > len(stack) {
			level = len(stack)
		}
		stack = append(stack[:level], id)

		title, due, tags := ParseTaskText(m[3])
		task := backend.Task{
			ID:     id,
			Title:  title,
			Status: ParseStatusChar(m[2]),
			Due:    due,
			Tags:   tags,
		}
		if level > 0 {
			task.ParentID = stack[level-1]
		}
		tasks = append(tasks, task)
	}
	return tasks
}
