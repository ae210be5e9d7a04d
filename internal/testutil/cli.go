// Package testutil provides shared test utilities for CLI testing across packages.
// This enables co-located CLI tests while maintaining consistent test infrastructure.
package testutil

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	_ "modernc.org/sqlite"

	"gtd/cmd/gtd/cmd"
)

// defaultTestConfig keeps every path inside the test directory. The
// placeholders are the directory, repeated.
const defaultTestConfig = `# test config
data_file: %[1]s/gtd.xml
backups: 3
backends:
  sqlite:
    enabled: false
    path: %[1]s/gtd.db
  file:
    enabled: false
    path: %[1]s/tasks.md
watch:
  debounce_ms: 50
`

// CLITest provides a test helper for running CLI commands in isolation.
type CLITest struct {
	t          *testing.T
	cfg        *cmd.Config
	tmpDir     string
	configPath string
}

// NewCLITest creates a new CLI test helper with an isolated data file and config.
func NewCLITest(t *testing.T) *CLITest {
	t.Helper()

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	c := &CLITest{
		t:          t,
		tmpDir:     tmpDir,
		configPath: configPath,
		cfg: &cmd.Config{
			NoPrompt:   true,
			ConfigPath: configPath,
		},
	}
	c.SetFullConfig(fmt.Sprintf(defaultTestConfig, tmpDir))
	return c
}

// NewCLITestWithBackends creates a CLI test helper with the given backends
// enabled in the config.
func NewCLITestWithBackends(t *testing.T, names ...string) *CLITest {
	t.Helper()

	c := NewCLITest(t)
	content := fmt.Sprintf(defaultTestConfig, c.tmpDir)
	for _, name := range names {
		content = strings.Replace(content,
			"  "+name+":\n    enabled: false",
			"  "+name+":\n    enabled: true", 1)
	}
	c.SetFullConfig(content)
	return c
}

// Config returns the test configuration.
func (c *CLITest) Config() *cmd.Config {
	return c.cfg
}

// TmpDir returns the temporary directory for the test.
func (c *CLITest) TmpDir() string {
	return c.tmpDir
}

// DataFile returns the path of the XML data file.
func (c *CLITest) DataFile() string {
	return filepath.Join(c.tmpDir, "gtd.xml")
}

// ChecklistPath returns the path written by the file backend.
func (c *CLITest) ChecklistPath() string {
	return filepath.Join(c.tmpDir, "tasks.md")
}

// DBPath returns the path of the sqlite backend database.
func (c *CLITest) DBPath() string {
	return filepath.Join(c.tmpDir, "gtd.db")
}

// ConfigPath returns the path to the config file.
func (c *CLITest) ConfigPath() string {
	return c.configPath
}

// SetFullConfig replaces the entire config file with the given YAML content.
func (c *CLITest) SetFullConfig(yamlContent string) {
	c.t.Helper()

	if err := os.WriteFile(c.configPath, []byte(yamlContent), 0644); err != nil {
		c.t.Fatalf("failed to write config file: %v", err)
	}
}

// Execute runs a CLI command with the given arguments and returns stdout, stderr, and exit code.
func (c *CLITest) Execute(args ...string) (stdout, stderr string, exitCode int) {
	c.t.Helper()

	var stdoutBuf, stderrBuf bytes.Buffer
	exitCode = cmd.Execute(args, &stdoutBuf, &stderrBuf, c.cfg)
	return stdoutBuf.String(), stderrBuf.String(), exitCode
}

// ExecuteWithInput runs a CLI command in interactive mode, answering
// prompts from input.
func (c *CLITest) ExecuteWithInput(input string, args ...string) (stdout, stderr string, exitCode int) {
	c.t.Helper()

	cfg := *c.cfg
	cfg.NoPrompt = false
	cfg.Stdin = strings.NewReader(input)

	var stdoutBuf, stderrBuf bytes.Buffer
	exitCode = cmd.Execute(args, &stdoutBuf, &stderrBuf, &cfg)
	return stdoutBuf.String(), stderrBuf.String(), exitCode
}

// ExecuteContext runs a long-running CLI command until ctx is cancelled.
func (c *CLITest) ExecuteContext(ctx context.Context, args ...string) (stdout, stderr string, exitCode int) {
	c.t.Helper()

	cfg := *c.cfg
	cfg.Context = ctx

	var stdoutBuf, stderrBuf bytes.Buffer
	exitCode = cmd.Execute(args, &stdoutBuf, &stderrBuf, &cfg)
	return stdoutBuf.String(), stderrBuf.String(), exitCode
}

// MustExecute runs a CLI command and fails the test if exit code is non-zero.
func (c *CLITest) MustExecute(args ...string) string {
	c.t.Helper()

	stdout, stderr, exitCode := c.Execute(args...)
	if exitCode != 0 {
		c.t.Fatalf("expected exit code 0, got %d: stdout=%s stderr=%s", exitCode, stdout, stderr)
	}
	return stdout
}

// ExecuteAndFail runs a CLI command and fails the test if exit code is zero.
func (c *CLITest) ExecuteAndFail(args ...string) (stdout, stderr string) {
	c.t.Helper()

	stdout, stderr, exitCode := c.Execute(args...)
	if exitCode == 0 {
		c.t.Fatalf("expected non-zero exit code, got 0: stdout=%s", stdout)
	}
	return stdout, stderr
}

// ReadChecklist returns the file backend's output, or "" if there is none.
func (c *CLITest) ReadChecklist() string {
	c.t.Helper()

	data, err := os.ReadFile(c.ChecklistPath())
	if os.IsNotExist(err) {
		return ""
	}
	if err != nil {
		c.t.Fatalf("failed to read checklist: %v", err)
	}
	return string(data)
}

// StoredTitles returns the titles in the sqlite backend database, sorted.
func (c *CLITest) StoredTitles() []string {
	c.t.Helper()

	db, err := openTestDB(c.DBPath())
	if err != nil {
		c.t.Fatalf("failed to open test database: %v", err)
	}
	defer func() { _ = db.Close() }()

	rows, err := db.Query("SELECT title FROM tasks ORDER BY title")
	if err != nil {
		c.t.Fatalf("failed to query tasks: %v", err)
	}
	defer func() { _ = rows.Close() }()

	var titles []string
	for rows.Next() {
		var title string
		if err := rows.Scan(&title); err != nil {
			c.t.Fatalf("failed to scan title: %v", err)
		}
		titles = append(titles, title)
	}
	if err := rows.Err(); err != nil {
		c.t.Fatalf("failed to read tasks: %v", err)
	}
	return titles
}

// AssertContains fails the test if output doesn't contain expected string.
func AssertContains(t *testing.T, output, expected string) {
	t.Helper()
	if !strings.Contains(output, expected) {
		t.Errorf("expected output to contain %q, got:\n%s", expected, output)
	}
}

// AssertNotContains fails the test if output contains unexpected string.
func AssertNotContains(t *testing.T, output, unexpected string) {
	t.Helper()
	if strings.Contains(output, unexpected) {
		t.Errorf("expected output NOT to contain %q, got:\n%s", unexpected, output)
	}
}

// AssertExitCode fails the test if exit code doesn't match expected.
func AssertExitCode(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("expected exit code %d, got %d", want, got)
	}
}

// AssertResultCode verifies that the output ends with the expected result code.
func AssertResultCode(t *testing.T, output, expectedCode string) {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(output), "\n")
	lastLine := strings.TrimSpace(lines[len(lines)-1])
	if lastLine != expectedCode {
		t.Errorf("expected result code %q, got %q\nFull output:\n%s", expectedCode, lastLine, output)
	}
}

// Result code constants for convenience.
const (
	ResultActionCompleted = cmd.ResultActionCompleted
	ResultInfoOnly        = cmd.ResultInfoOnly
	ResultError           = cmd.ResultError
)

func openTestDB(dbPath string) (*sql.DB, error) {
	if _, err := os.Stat(dbPath); err != nil {
		return nil, err
	}
	return sql.Open("sqlite", dbPath)
}
