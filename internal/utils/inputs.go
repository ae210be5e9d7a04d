package utils

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ErrSelectionCancelled is returned when the user cancels a selection.
var ErrSelectionCancelled = errors.New("selection cancelled")

// Prompter asks questions on a writer and reads answers line by line.
// Keep one Prompter per input stream: it buffers what it reads.
type Prompter struct {
	in  *bufio.Reader
	out io.Writer
}

// NewPrompter returns a prompter on reader and writer. Nil values fall back
// to stdin and stdout.
func NewPrompter(reader io.Reader, writer io.Writer) *Prompter {
	if reader == nil {
		reader = os.Stdin
	}
	if writer == nil {
		writer = os.Stdout
	}
	return &Prompter{in: bufio.NewReader(reader), out: writer}
}

// readLine returns the next trimmed line; ok is false at end of input.
func (p *Prompter) readLine() (string, bool) {
	line, err := p.in.ReadString('\n')
	if err != nil && line == "" {
		return "", false
	}
	return strings.TrimSpace(line), true
}

// YesNo prompts the user for a yes/no response. End of input counts as no.
func (p *Prompter) YesNo(prompt string) bool {
	for {
		_, _ = fmt.Fprintf(p.out, "%s (y/n): ", prompt)
		input, ok := p.readLine()
		if !ok {
			return false
		}

		switch strings.ToLower(input) {
		case "y", "yes":
			return true
		case "n", "no":
			return false
		}
		// Invalid input, loop continues
	}
}

// PromptSelection displays a list and prompts the user to select an item.
// Returns 0-based index of selected item or error if cancelled (user enters 0).
func PromptSelection[T any](p *Prompter, items []T, prompt string, display func(index int, item T) string) (int, error) {
	for i, item := range items {
		_, _ = fmt.Fprintf(p.out, "%d. %s\n", i+1, display(i, item))
	}

	for {
		_, _ = fmt.Fprintf(p.out, "%s (0 to cancel): ", prompt)
		input, ok := p.readLine()
		if !ok {
			return -1, ErrSelectionCancelled
		}

		num, err := strconv.Atoi(input)
		if err != nil {
			_, _ = fmt.Fprintln(p.out, "Please enter a number")
			continue
		}

		if num == 0 {
			return -1, ErrSelectionCancelled
		}

		if num < 1 || num > len(items) {
			_, _ = fmt.Fprintf(p.out, "Please enter a number between 1 and %d\n", len(items))
			continue
		}

		return num - 1, nil
	}
}
