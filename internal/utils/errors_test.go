package utils

import (
	"errors"
	"io/fs"
	"strings"
	"testing"
)

// =============================================================================
// Error Tests
// =============================================================================

// TestErrorWithSuggestionImplementsError verifies ErrorWithSuggestion implements error interface
func TestErrorWithSuggestionImplementsError(t *testing.T) {
	var _ error = &ErrorWithSuggestion{}
}

func TestErrorWithSuggestionError(t *testing.T) {
	err := WrapWithSuggestion(errors.New("boom"), "try again")
	want := "boom\n\nSuggestion: try again"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}

	var ews *ErrorWithSuggestion
	if !errors.As(err, &ews) || ews.GetSuggestion() != "try again" {
		t.Errorf("expected ErrorWithSuggestion with suggestion, got %v", err)
	}
}

// TestErrorClasses verifies the constructors keep errors.Is working on the class and the cause
func TestErrorClasses(t *testing.T) {
	cause := errors.New("unexpected EOF")

	tests := []struct {
		name  string
		err   error
		class error
		text  string
	}{
		{"not found", NotFound("task", "abc"), ErrNotFound, "task abc: not found"},
		{"malformed", Malformed("gtd.xml", cause), ErrMalformedDocument, "gtd.xml: malformed document: unexpected EOF"},
		{"malformed no cause", Malformed("gtd.xml", nil), ErrMalformedDocument, "gtd.xml: malformed document"},
		{"io", IOFailure("open", "/x", fs.ErrNotExist), ErrIOFailure, "open /x: i/o failure: file does not exist"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.class) {
				t.Errorf("errors.Is(%v, %v) = false", tt.err, tt.class)
			}
			if tt.err.Error() != tt.text {
				t.Errorf("Error() = %q, want %q", tt.err.Error(), tt.text)
			}
		})
	}

	if !errors.Is(Malformed("f", cause), cause) {
		t.Error("Malformed should wrap its cause")
	}
	if !errors.Is(IOFailure("open", "/x", fs.ErrNotExist), fs.ErrNotExist) {
		t.Error("IOFailure should wrap its cause")
	}
}

func TestSuggestionErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		class    error
		contains string
	}{
		{"task", ErrTaskNotFound("groceries"), ErrNotFound, "gtd list"},
		{"tag", ErrTagNotFound("work"), ErrNotFound, "gtd tag"},
		{"backend", ErrBackendNotConfigured("sqlite"), ErrNotFound, "sqlite configuration"},
		{"date", ErrInvalidDate("someday-ish"), nil, "YYYY-MM-DD"},
		{"data file", ErrNoDataFile("/ro/gtd.xml", fs.ErrPermission), fs.ErrPermission, "writable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ews *ErrorWithSuggestion
			if !errors.As(tt.err, &ews) {
				t.Fatalf("expected *ErrorWithSuggestion, got %T", tt.err)
			}
			if tt.class != nil && !errors.Is(tt.err, tt.class) {
				t.Errorf("errors.Is(%v, %v) = false", tt.err, tt.class)
			}
			if !strings.Contains(ews.GetSuggestion(), tt.contains) {
				t.Errorf("suggestion %q should contain %q", ews.GetSuggestion(), tt.contains)
			}
		})
	}
}
