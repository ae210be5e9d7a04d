package views

import "fmt"

// DefaultDateFormat is the standard date format used throughout the views package
const DefaultDateFormat = "2006-01-02"

// View represents a task display configuration
type View struct {
	Name        string
	Description string
	Fields      []Field
}

// Field represents a field configuration in a view
type Field struct {
	Name     string
	Width    int
	Align    string // left, right
	Truncate bool
}

// AvailableFields returns the list of valid field names
var AvailableFields = []string{
	"status",
	"title",
	"excerpt",
	"due",
	"days_left",
	"start",
	"added",
	"modified",
	"closed",
	"tags",
	"id",
}

// DefaultView returns the built-in default view
func DefaultView() *View {
	return &View{
		Name:        "default",
		Description: "Standard task display for everyday use",
		Fields: []Field{
			{Name: "status"},
			{Name: "title", Width: 40, Truncate: true},
			{Name: "due", Width: 10},
			{Name: "tags"},
		},
	}
}

// AllView returns the built-in 'all' view showing all fields
func AllView() *View {
	fields := make([]Field, 0, len(AvailableFields))
	for _, name := range AvailableFields {
		fields = append(fields, Field{Name: name})
	}
	return &View{
		Name:        "all",
		Description: "Comprehensive display showing all task metadata",
		Fields:      fields,
	}
}

// ViewByName returns one of the built-in views.
func ViewByName(name string) (*View, error) {
	switch name {
	case "", "default":
		return DefaultView(), nil
	case "all":
		return AllView(), nil
	}
	return nil, fmt.Errorf("unknown view %q (available: default, all)", name)
}
