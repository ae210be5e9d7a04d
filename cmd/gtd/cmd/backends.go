package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"gtd/backend"
	"gtd/internal/shutdown"
	"gtd/internal/utils"
	"gtd/internal/watcher"
)

// newBackendsCmd creates the 'backends' subcommand for sync backend management
func newBackendsCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	backendsCmd := &cobra.Command{
		Use:   "backends",
		Short: "List and control sync backends",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(cmd, cfg, stdout, stderr, doBackendsList)
		},
	}

	backendsCmd.AddCommand(newBackendsFlushCmd(stdout, stderr, cfg))
	backendsCmd.AddCommand(newBackendsEnableCmd(stdout, stderr, cfg))
	backendsCmd.AddCommand(newBackendsDisableCmd(stdout, stderr, cfg))

	return backendsCmd
}

func doBackendsList(a *app) error {
	all := a.ds.Backends(true)
	if a.json {
		out := make([]backendJSON, 0, len(all))
		for _, b := range all {
			out = append(out, backendJSON{ID: b.ID(), Enabled: b.IsEnabled(), Default: b.IsDefault()})
		}
		return writeJSON(struct {
			Backends []backendJSON `json:"backends"`
			Result   string        `json:"result"`
		}{out, ResultInfoOnly}, a.out)
	}

	for _, b := range all {
		line := fmt.Sprintf("%-8s %s", b.ID(), backendState(b.IsEnabled(), b.IsDefault()))
		if s, ok := b.(fmt.Stringer); ok {
			line += "  " + s.String()
		}
		_, _ = fmt.Fprintln(a.out, line)
	}
	a.info()
	return nil
}

// waitJob waits for a background backend job within the command's context.
func (a *app) waitJob(job *shutdown.Job) error {
	if job == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(a.context(), quitTimeout)
	defer cancel()
	return job.Wait(ctx)
}

// newBackendsFlushCmd creates the 'backends flush' subcommand
func newBackendsFlushCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "flush ID",
		Short: "Push every task to a backend",
		Long:  "Push every task to a backend, whether or not it is enabled in the config.\nWith --tag the backend is limited to tasks carrying one of the tags.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tagNames, _ := cmd.Flags().GetStringSlice("tag")
			return runApp(cmd, cfg, stdout, stderr, func(a *app) error {
				return doBackendsFlush(a, args[0], tagNames)
			})
		},
	}
	cmd.Flags().StringSlice("tag", nil, "Only store tasks carrying one of these tags")
	return cmd
}

func doBackendsFlush(a *app, id string, tagNames []string) error {
	b, err := a.backend(id)
	if err != nil {
		return err
	}
	if len(tagNames) > 0 {
		if err := a.ds.BackendChangeAttachedTags(id, tagNames); err != nil {
			return err
		}
	}
	if err := a.waitJob(a.ds.StartBackend(b)); err != nil {
		return err
	}
	a.done("Flushed %d task(s) to %s", a.ds.Stats().Tasks, id)
	return nil
}

func (a *app) backend(id string) (backend.Backend, error) {
	b, err := a.ds.Backend(id)
	if err != nil {
		return nil, utils.ErrBackendNotConfigured(id)
	}
	return b, nil
}

// newBackendsEnableCmd creates the 'backends enable' subcommand
func newBackendsEnableCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "enable ID",
		Short: "Start a backend and bring it up to date",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(cmd, cfg, stdout, stderr, func(a *app) error {
				return doSetEnabled(a, args[0], true)
			})
		},
	}
}

// newBackendsDisableCmd creates the 'backends disable' subcommand
func newBackendsDisableCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "disable ID",
		Short: "Stop a backend",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(cmd, cfg, stdout, stderr, func(a *app) error {
				return doSetEnabled(a, args[0], false)
			})
		},
	}
}

func doSetEnabled(a *app, id string, enabled bool) error {
	if _, err := a.backend(id); err != nil {
		return err
	}
	job, err := a.ds.SetBackendEnabled(id, enabled)
	if err != nil {
		return err
	}
	if job == nil {
		a.done("Backend %s is already %s", id, backendState(enabled, false))
		return nil
	}
	if err := a.waitJob(job); err != nil {
		return err
	}
	a.done("Backend %s %s", id, backendState(enabled, false))
	return nil
}

// newWatchCmd creates the 'watch' subcommand
func newWatchCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Keep backends in step with the data file",
		Long:  "Start the enabled backends, then reload the data file whenever another\nprocess saves it and push the changes. Stops on interrupt.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(cmd, cfg, stdout, stderr, doWatch)
		},
	}
}

func doWatch(a *app) error {
	ctx, stop := signal.NotifyContext(a.context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	for _, job := range a.ds.ActivateBackends() {
		if err := job.Wait(ctx); err != nil {
			utils.Warnf("Backend job %s failed: %v", job.Name(), err)
		}
	}

	path := a.ds.Path()
	w, err := watcher.New(watcher.Config{
		Paths:            []string{path},
		DebounceDuration: a.conf.GetDebounce(),
		OnChange:         func(string) { a.reload(ctx, path) },
	})
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintf(a.out, "Watching %s\n", path)
	job := a.ds.Jobs().Go("watch "+path, w.Run)

	select {
	case <-ctx.Done():
	case <-job.Done():
		if err := job.Err(); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
	}
	_, _ = fmt.Fprintln(a.out, "Stopped watching")
	return nil
}

// reload loads the data file again and flushes it to the enabled backends
// that ActivateBackends started. Tasks that disappeared are queued too so
// backends drop them.
func (a *app) reload(ctx context.Context, path string) {
	before := a.ds.Tasks().IDs()
	if err := a.ds.LoadFile(path); err != nil {
		utils.Warnf("Keeping previous data, reload of %s failed: %v", path, err)
		return
	}
	utils.Infof("Reloaded %s", path)

	ts := a.ds.Tasks()
	var gone []uuid.UUID
	for _, id := range before {
		if !ts.Contains(id) {
			gone = append(gone, id)
		}
	}
	if len(gone) > 0 {
		if err := a.ds.QueueTasks(gone).Wait(ctx); err != nil {
			utils.Debugf("Removed tasks not dropped everywhere: %v", err)
		}
	}

	for _, b := range a.ds.Backends(false) {
		if b.IsDefault() {
			continue
		}
		if _, err := a.ds.FlushAllTasks(b.ID()); err != nil {
			utils.Warnf("Could not flush %s: %v", b.ID(), err)
		}
	}
}
