package testutil

import (
	"os"
	"strings"
	"testing"

	"gtd/internal/config"
)

// =============================================================================
// Harness Tests
// =============================================================================

// TestNewCLITestIsolation verifies the generated config keeps every path in the temp dir
func TestNewCLITestIsolation(t *testing.T) {
	c := NewCLITest(t)

	cfg, err := config.LoadFromPath(c.ConfigPath())
	if err != nil || cfg == nil {
		t.Fatalf("LoadFromPath() = %v, %v", cfg, err)
	}
	for _, p := range []string{cfg.DataFile, cfg.Backends.SQLite.Path, cfg.Backends.File.Path} {
		if !strings.HasPrefix(p, c.TmpDir()) {
			t.Errorf("path %q escapes the test directory %q", p, c.TmpDir())
		}
	}
	if cfg.Backends.SQLite.Enabled || cfg.Backends.File.Enabled {
		t.Error("backends should be disabled by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("test config should validate: %v", err)
	}
	if !c.Config().NoPrompt {
		t.Error("tests run in no-prompt mode")
	}
}

func TestNewCLITestWithBackends(t *testing.T) {
	c := NewCLITestWithBackends(t, "file")

	cfg, err := config.LoadFromPath(c.ConfigPath())
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Backends.File.Enabled || cfg.Backends.SQLite.Enabled {
		t.Errorf("expected only the file backend enabled, got %+v", cfg.Backends)
	}
}

// TestExecuteCreatesDataFile verifies the first command writes the first-run data file
func TestExecuteCreatesDataFile(t *testing.T) {
	c := NewCLITest(t)
	stdout := c.MustExecute("info")

	AssertContains(t, stdout, "Datastore [Initialized]")
	AssertResultCode(t, stdout, ResultInfoOnly)
	if _, err := os.Stat(c.DataFile()); err != nil {
		t.Errorf("data file not created: %v", err)
	}
	if c.ReadChecklist() != "" {
		t.Error("disabled file backend should not write a checklist")
	}
}

func TestExecuteAndFail(t *testing.T) {
	c := NewCLITest(t)
	stdout, stderr := c.ExecuteAndFail("done", "no such task")

	AssertContains(t, stderr, "not found")
	AssertResultCode(t, stdout, ResultError)
	AssertNotContains(t, stdout, ResultActionCompleted)
}
