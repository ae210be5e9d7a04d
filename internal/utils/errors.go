package utils

import (
	"errors"
	"fmt"
)

// Error classes shared across the datastore. Callers test with errors.Is.
var (
	// ErrNotFound is returned for unknown identifiers or names.
	ErrNotFound = errors.New("not found")

	// ErrMalformedDocument is returned when a data file cannot be parsed.
	ErrMalformedDocument = errors.New("malformed document")

	// ErrIOFailure is returned for filesystem errors while loading or saving.
	ErrIOFailure = errors.New("i/o failure")
)

// ErrorWithSuggestion wraps an error with a user-friendly suggestion.
type ErrorWithSuggestion struct {
	Err        error
	Suggestion string
}

// Error implements the error interface.
func (e *ErrorWithSuggestion) Error() string {
	return fmt.Sprintf("%s\n\nSuggestion: %s", e.Err.Error(), e.Suggestion)
}

// GetSuggestion returns the suggestion text.
func (e *ErrorWithSuggestion) GetSuggestion() string {
	return e.Suggestion
}

// Unwrap returns the underlying error for error chain support.
func (e *ErrorWithSuggestion) Unwrap() error {
	return e.Err
}

// WrapWithSuggestion wraps an existing error with a suggestion.
func WrapWithSuggestion(err error, suggestion string) error {
	return &ErrorWithSuggestion{
		Err:        err,
		Suggestion: suggestion,
	}
}

// NotFound returns an ErrNotFound-class error naming the missing entity.
func NotFound(kind string, key interface{}) error {
	return fmt.Errorf("%s %v: %w", kind, key, ErrNotFound)
}

// Malformed returns an ErrMalformedDocument-class error wrapping the cause.
func Malformed(source string, cause error) error {
	if cause == nil {
		return fmt.Errorf("%s: %w", source, ErrMalformedDocument)
	}
	return fmt.Errorf("%s: %w: %w", source, ErrMalformedDocument, cause)
}

// IOFailure returns an ErrIOFailure-class error wrapping the cause, so that
// errors.Is still matches fs.ErrNotExist or fs.ErrPermission.
func IOFailure(op, path string, cause error) error {
	return fmt.Errorf("%s %s: %w: %w", op, path, ErrIOFailure, cause)
}

// ErrTaskNotFound returns an error for when a task is not found.
func ErrTaskNotFound(searchTerm string) error {
	return &ErrorWithSuggestion{
		Err:        NotFound("task", searchTerm),
		Suggestion: "Check the id or use 'gtd list' to see all tasks",
	}
}

// ErrTagNotFound returns an error for when a tag is not found.
func ErrTagNotFound(name string) error {
	return &ErrorWithSuggestion{
		Err:        NotFound("tag", name),
		Suggestion: fmt.Sprintf("Attach the tag first with 'gtd tag <task> %s'", name),
	}
}

// ErrBackendNotConfigured returns an error when a backend is not registered.
func ErrBackendNotConfigured(name string) error {
	return &ErrorWithSuggestion{
		Err:        NotFound("backend", name),
		Suggestion: fmt.Sprintf("Add %s configuration to your config file", name),
	}
}

// ErrInvalidDate returns an error for an invalid date string.
func ErrInvalidDate(dateStr string) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("invalid date: %s", dateStr),
		Suggestion: "Use YYYY-MM-DD, +Nd/+Nw/+Nm, today, tomorrow, now, soon or someday",
	}
}

// ErrNoDataFile returns the fatal error raised when no data file could be loaded or created.
func ErrNoDataFile(path string, cause error) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("could not load or create a data file at %s: %w", path, cause),
		Suggestion: "Check that the data directory exists and is writable",
	}
}
