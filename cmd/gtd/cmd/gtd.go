package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"gtd/backend/file"
	"gtd/backend/sqlite"
	"gtd/internal/config"
	"gtd/internal/datastore"
	"gtd/internal/tags"
	"gtd/internal/tasks"
	"gtd/internal/utils"
)

// Version is set at build time
var Version = "dev"

// Result codes for CLI output (used in no-prompt mode)
const (
	ResultActionCompleted = "ACTION_COMPLETED"
	ResultInfoOnly        = "INFO_ONLY"
	ResultError           = "ERROR"
)

// quitTimeout bounds how long background backend work may run on exit.
const quitTimeout = 10 * time.Second

// Config holds application configuration
type Config struct {
	NoPrompt     bool
	Verbose      bool
	OutputFormat string
	ConfigPath   string          // Path to config file (for testing)
	DataFile     string          // Overrides data_file from the config
	Stdin        io.Reader       // Prompt input, defaults to os.Stdin
	Context      context.Context // Cancels long-running commands such as watch
}

// Execute runs the CLI with the given arguments and IO writers
func Execute(args []string, stdout, stderr io.Writer, cfg *Config) int {
	if cfg == nil {
		cfg = &Config{}
	}
	rootCmd := NewGTD(stdout, stderr, cfg)

	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	if err := rootCmd.Execute(); err != nil {
		if containsJSONFlag(args) || cfg.OutputFormat == "json" {
			outputErrorJSON(err, stdout)
		} else {
			_, _ = fmt.Fprintln(stderr, "Error:", err)
			if cfg.NoPrompt {
				_, _ = fmt.Fprintln(stdout, ResultError)
			}
		}
		return 1
	}
	return 0
}

// containsJSONFlag checks if args contain --json flag
func containsJSONFlag(args []string) bool {
	for _, arg := range args {
		if arg == "--json" {
			return true
		}
	}
	return false
}

// NewGTD creates the root command with injectable IO
func NewGTD(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	if cfg == nil {
		cfg = &Config{}
	}

	cmd := &cobra.Command{
		Use:     "gtd",
		Short:   "A hierarchical task manager",
		Long:    "gtd keeps nested tasks and tags in an XML data file with rotating backups\nand mirrors them to optional sync backends.",
		Version: Version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("no-prompt", "y", false, "Disable interactive prompts")
	cmd.PersistentFlags().BoolP("verbose", "V", false, "Enable verbose/debug output")
	cmd.PersistentFlags().Bool("json", false, "Output in JSON format")
	cmd.PersistentFlags().String("config", "", "Path to the config file")
	cmd.PersistentFlags().StringP("data-file", "f", "", "Path to the XML data file")

	cmd.AddCommand(newInfoCmd(stdout, stderr, cfg))
	cmd.AddCommand(newAddCmd(stdout, stderr, cfg))
	cmd.AddCommand(newListCmd(stdout, stderr, cfg))
	cmd.AddCommand(newDoneCmd(stdout, stderr, cfg))
	cmd.AddCommand(newDismissCmd(stdout, stderr, cfg))
	cmd.AddCommand(newDueCmd(stdout, stderr, cfg))
	cmd.AddCommand(newTagCmd(stdout, stderr, cfg))
	cmd.AddCommand(newUntagCmd(stdout, stderr, cfg))
	cmd.AddCommand(newRemoveCmd(stdout, stderr, cfg))
	cmd.AddCommand(newSaveCmd(stdout, stderr, cfg))
	cmd.AddCommand(newBackendsCmd(stdout, stderr, cfg))
	cmd.AddCommand(newWatchCmd(stdout, stderr, cfg))

	return cmd
}

// app is one command's session: the loaded configuration and datastore.
type app struct {
	cfg    *Config
	conf   *config.Config
	ds     *datastore.Datastore
	out    io.Writer
	json   bool
	prompt *utils.Prompter
}

// openApp loads the configuration, the data file and the configured
// backends. Callers must close the returned app.
func openApp(cmd *cobra.Command, cfg *Config, stdout, stderr io.Writer) (*app, error) {
	noPrompt, _ := cmd.Flags().GetBool("no-prompt")
	verbose, _ := cmd.Flags().GetBool("verbose")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	configPath, _ := cmd.Flags().GetString("config")
	dataFile, _ := cmd.Flags().GetString("data-file")

	if configPath == "" {
		configPath = cfg.ConfigPath
	}
	conf, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	format := cfg.OutputFormat
	if jsonOutput {
		format = "json"
	}
	conf.ApplyFlags(verbose || cfg.Verbose, noPrompt || cfg.NoPrompt, format)
	if err := conf.Validate(); err != nil {
		return nil, utils.WrapWithSuggestion(err, "Fix the config file at "+configOrDefault(configPath))
	}
	cfg.NoPrompt = conf.NoPrompt

	utils.SetOutput(stderr)
	utils.SetVerboseMode(conf.Logging.Verbose)

	switch {
	case dataFile != "":
		conf.DataFile = config.ExpandPath(dataFile)
	case cfg.DataFile != "":
		conf.DataFile = cfg.DataFile
	}

	ds := datastore.New(datastore.WithBackups(conf.GetBackups()))
	if _, err := ds.FindAndLoadFile(conf.DataFile); err != nil {
		return nil, err
	}
	registerBackends(ds, conf)

	return &app{
		cfg:    cfg,
		conf:   conf,
		ds:     ds,
		out:    stdout,
		json:   conf.OutputFormat == "json",
		prompt: utils.NewPrompter(cfg.Stdin, stdout),
	}, nil
}

func configOrDefault(path string) string {
	if path == "" {
		return config.GetConfigDir() + "/config.yaml"
	}
	return path
}

// registerBackends adds every configured backend, enabled or not, so the
// backends command can list and start them.
func registerBackends(ds *datastore.Datastore, conf *config.Config) {
	for _, name := range config.BackendNames {
		bc := conf.Backend(name)
		switch name {
		case "sqlite":
			ds.RegisterBackend(sqlite.New(sqlite.Config{
				ID:           name,
				Path:         bc.Path,
				Enabled:      bc.Enabled,
				Default:      bc.Default,
				AttachedTags: bc.AttachedTags,
			}, ds))
		case "file":
			ds.RegisterBackend(file.New(file.Config{
				ID:           name,
				FilePath:     bc.Path,
				Enabled:      bc.Enabled,
				Default:      bc.Default,
				AttachedTags: bc.AttachedTags,
			}, ds))
		}
	}
}

// close stops the backends and waits for their background work.
func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), quitTimeout)
	defer cancel()
	if err := a.ds.Quit(ctx); err != nil {
		utils.Warnf("Backends did not stop cleanly: %v", err)
	}
}

func (a *app) context() context.Context {
	if a.cfg.Context != nil {
		return a.cfg.Context
	}
	return context.Background()
}

// commit saves the data file and pushes the given tasks to the enabled
// backends, waiting for the background job. Backend failures are logged.
func (a *app) commit(ids []uuid.UUID) error {
	if err := a.ds.SaveFile(a.ds.Path()); err != nil {
		return err
	}
	if len(a.ds.Backends(false)) == 0 {
		return nil
	}
	if err := a.waitJob(a.ds.QueueTasks(ids)); err != nil {
		utils.Debugf("Backend sync finished with errors: %v", err)
	}
	return nil
}

// done prints a confirmation line, followed by the result code in no-prompt mode.
func (a *app) done(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(a.out, format+"\n", args...)
	if a.cfg.NoPrompt {
		_, _ = fmt.Fprintln(a.out, ResultActionCompleted)
	}
}

// info prints the INFO_ONLY result code in no-prompt mode.
func (a *app) info() {
	if a.cfg.NoPrompt {
		_, _ = fmt.Fprintln(a.out, ResultInfoOnly)
	}
}

// lineage returns the ids whose snapshot changes when t changes: its
// ancestors, t itself and its descendants.
func lineage(t *tasks.Task) []uuid.UUID {
	var ids []uuid.UUID
	for p := t.Parent(); p != nil; p = p.Parent() {
		ids = append(ids, p.ID())
	}
	var walk func(*tasks.Task)
	walk = func(cur *tasks.Task) {
		ids = append(ids, cur.ID())
		for _, c := range cur.Children() {
			walk(c)
		}
	}
	walk(t)
	return ids
}

// ensureTag returns the tag called name, creating it with a fresh colour.
func ensureTag(tg *tags.Store, name string) (*tags.Tag, error) {
	name = tags.NormalizeName(strings.TrimSpace(name))
	if name == "" {
		return nil, fmt.Errorf("tag name is required")
	}
	if t, err := tg.Find(name); err == nil {
		return t, nil
	}
	t, err := tg.New(name, uuid.Nil)
	if err != nil {
		return nil, err
	}
	c := tg.GenerateColor()
	t.Color = &c
	return t, nil
}

// minIDPrefix is the shortest id prefix accepted as a task reference.
const minIDPrefix = 4

// findTask resolves a task reference: a full id, an id prefix, or a title
// (exact case-insensitive match first, then substring).
func (a *app) findTask(ts *tasks.Store, ref string) (*tasks.Task, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, fmt.Errorf("task reference is required")
	}

	if id, err := uuid.Parse(ref); err == nil {
		t, err := ts.Get(id)
		if err != nil {
			return nil, utils.ErrTaskNotFound(ref)
		}
		return t, nil
	}

	all := ts.All()
	lower := strings.ToLower(ref)

	if len(ref) >= minIDPrefix {
		var byID []*tasks.Task
		for _, t := range all {
			if strings.HasPrefix(t.ID().String(), lower) {
				byID = append(byID, t)
			}
		}
		if len(byID) == 1 {
			return byID[0], nil
		}
	}

	var exact *tasks.Task
	ts.Walk(func(t *tasks.Task) bool {
		if strings.EqualFold(t.Title(), ref) {
			exact = t
		}
		return exact == nil
	})
	if exact != nil {
		return exact, nil
	}

	var matches []*tasks.Task
	for _, t := range all {
		if strings.Contains(strings.ToLower(t.Title()), lower) {
			matches = append(matches, t)
		}
	}

	switch len(matches) {
	case 0:
		return nil, utils.ErrTaskNotFound(ref)
	case 1:
		return matches[0], nil
	}

	if a.cfg.NoPrompt {
		var names []string
		for _, m := range matches {
			names = append(names, fmt.Sprintf("  - %s (%s)", m.Title(), shortID(m.ID())))
		}
		return nil, fmt.Errorf("multiple tasks match '%s':\n%s", ref, strings.Join(names, "\n"))
	}

	idx, err := utils.PromptSelection(a.prompt, matches, "Select task", func(_ int, t *tasks.Task) string {
		return fmt.Sprintf("%s (%s)", t.Title(), shortID(t.ID()))
	})
	if err != nil {
		return nil, err
	}
	return matches[idx], nil
}

func shortID(id uuid.UUID) string {
	return id.String()[:8]
}

// JSON output structures
type taskJSON struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Status   string   `json:"status"`
	ParentID string   `json:"parent_id,omitempty"`
	Due      string   `json:"due,omitempty"`
	Start    string   `json:"start,omitempty"`
	Closed   string   `json:"closed,omitempty"`
	Added    string   `json:"added"`
	Tags     []string `json:"tags,omitempty"`
	Content  string   `json:"content,omitempty"`
}

type listTasksResponse struct {
	Tasks  []taskJSON `json:"tasks"`
	Count  int        `json:"count"`
	Result string     `json:"result"`
}

type actionResponse struct {
	Action string   `json:"action"`
	Task   taskJSON `json:"task"`
	Result string   `json:"result"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Code   int    `json:"code"`
	Result string `json:"result"`
}

// taskToJSON converts a task snapshot to taskJSON
func taskToJSON(t *tasks.Task) taskJSON {
	snap := t.Snapshot()
	result := taskJSON{
		ID:      snap.ID.String(),
		Title:   snap.Title,
		Status:  snap.Status,
		Due:     snap.Due,
		Start:   snap.Start,
		Closed:  snap.Closed,
		Added:   snap.Added.Format(time.RFC3339),
		Tags:    snap.Tags,
		Content: snap.Content,
	}
	if snap.ParentID != uuid.Nil {
		result.ParentID = snap.ParentID.String()
	}
	return result
}

func writeJSON(v interface{}, stdout io.Writer) error {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(stdout, string(jsonBytes))
	return nil
}

// outputTaskListJSON outputs tasks in JSON format
func outputTaskListJSON(list []*tasks.Task, stdout io.Writer) error {
	jsonTasks := make([]taskJSON, 0, len(list))
	for _, t := range list {
		jsonTasks = append(jsonTasks, taskToJSON(t))
	}
	return writeJSON(listTasksResponse{
		Tasks:  jsonTasks,
		Count:  len(jsonTasks),
		Result: ResultInfoOnly,
	}, stdout)
}

// outputActionJSON outputs action result in JSON format
func outputActionJSON(action string, t *tasks.Task, stdout io.Writer) error {
	return writeJSON(actionResponse{
		Action: action,
		Task:   taskToJSON(t),
		Result: ResultActionCompleted,
	}, stdout)
}

// outputErrorJSON outputs error in JSON format
func outputErrorJSON(err error, stdout io.Writer) {
	_ = writeJSON(errorResponse{
		Error:  err.Error(),
		Code:   1,
		Result: ResultError,
	}, stdout)
}
