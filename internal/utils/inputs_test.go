package utils

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
)

// =============================================================================
// Input Tests
// =============================================================================

// TestPromptYesNo verifies yes and no responses
func TestPromptYesNo(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"Yes\n", true},
		{"  y  \n", true},
		{"\tYES\t\n", true},
		{"n\n", false},
		{"No\n", false},
		{"", false},
		{"y", true}, // no trailing newline
	}

	for _, tt := range tests {
		t.Run(strings.TrimSpace(tt.input), func(t *testing.T) {
			p := NewPrompter(strings.NewReader(tt.input), io.Discard)
			if got := p.YesNo("Delete?"); got != tt.want {
				t.Errorf("YesNo with input %q = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

// TestPromptYesNoRetryOnInvalid verifies loop until valid input
func TestPromptYesNoRetryOnInvalid(t *testing.T) {
	var output bytes.Buffer
	p := NewPrompter(strings.NewReader("invalid\nmaybe\ny\n"), &output)

	if !p.YesNo("Test?") {
		t.Error("YesNo should return true after valid 'y' input")
	}
	if strings.Count(output.String(), "Test?") != 3 {
		t.Errorf("YesNo should re-prompt on invalid input, got %q", output.String())
	}
}

// TestPromptSelectionValid verifies valid selection returns index
func TestPromptSelectionValid(t *testing.T) {
	items := []string{"Item A", "Item B", "Item C"}
	var output bytes.Buffer
	p := NewPrompter(strings.NewReader("2\n"), &output)

	idx, err := PromptSelection(p, items, "Select", func(_ int, s string) string { return s })
	if err != nil || idx != 1 {
		t.Errorf("PromptSelection = %d, %v; want 1", idx, err)
	}
	if !strings.Contains(output.String(), "1. Item A\n2. Item B\n3. Item C\n") {
		t.Errorf("items not listed: %q", output.String())
	}
}

// TestPromptSelectionRetry verifies out-of-range and non-numeric input re-prompt
func TestPromptSelectionRetry(t *testing.T) {
	var output bytes.Buffer
	p := NewPrompter(strings.NewReader("abc\n7\n3\n"), &output)

	idx, err := PromptSelection(p, []string{"a", "b", "c"}, "Select", func(_ int, s string) string { return s })
	if err != nil || idx != 2 {
		t.Errorf("PromptSelection = %d, %v; want 2", idx, err)
	}
	if !strings.Contains(output.String(), "Please enter a number\n") ||
		!strings.Contains(output.String(), "between 1 and 3") {
		t.Errorf("missing retry hints: %q", output.String())
	}
}

// TestPromptSelectionCancel verifies 0 and end of input cancel
func TestPromptSelectionCancel(t *testing.T) {
	for _, input := range []string{"0\n", ""} {
		p := NewPrompter(strings.NewReader(input), io.Discard)
		_, err := PromptSelection(p, []string{"a"}, "Select", func(_ int, s string) string { return s })
		if !errors.Is(err, ErrSelectionCancelled) {
			t.Errorf("input %q: err = %v, want ErrSelectionCancelled", input, err)
		}
	}
}

// TestPrompterSequentialQuestions verifies one prompter answers several questions from the same input
func TestPrompterSequentialQuestions(t *testing.T) {
	p := NewPrompter(strings.NewReader("1\ny\n"), io.Discard)

	idx, err := PromptSelection(p, []string{"a", "b"}, "Select", func(_ int, s string) string { return s })
	if err != nil || idx != 0 {
		t.Fatalf("PromptSelection = %d, %v", idx, err)
	}
	if !p.YesNo("Sure?") {
		t.Error("second question should read the second line")
	}
}
