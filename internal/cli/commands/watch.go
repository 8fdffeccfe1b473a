package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

// NewWatchCommand creates the watch command.
func NewWatchCommand() *cobra.Command {
	opts := &RecomputeOptions{}
	cmd := &cobra.Command{
		Use:   "watch [workbook]",
		Short: "Recompute whenever the workbook changes",
		Long: `Recompute the workbook once, then again every time the file is saved.

Bursts of file events are collapsed: the recompute runs once the file
has been quiet for the debounce interval (watch.debounce). Stop with
Ctrl-C.`,
		Example: `  # Watch the configured workbook
  leapformula watch

  # Watch and persist every run
  leapformula watch orders.yaml --save --debounce 500ms`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, args, opts)
		},
	}

	cmd.Flags().Duration("debounce", 0, "Quiet period before recomputing (default from watch.debounce)")
	cmd.Flags().BoolVar(&opts.Save, "save", false, "Save programs and values after each run")
	return cmd
}

func runWatch(cmd *cobra.Command, args []string, opts *RecomputeOptions) error {
	cc := NewCommandContext(cmd)
	path, err := cc.workbookPath(args)
	if err != nil {
		return err
	}
	path, err = filepath.Abs(path)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	// editors often save by rename, which drops a watch on the file itself
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(path), err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	run := func() {
		result, err := recompute(ctx, cc, path, opts)
		if err != nil {
			cc.Renderer.Error(err.Error())
			return
		}
		if err := renderRecompute(cc.Renderer, result); err != nil {
			cc.Renderer.Error(err.Error())
		}
	}

	run()
	cc.Renderer.Muted(fmt.Sprintf("watching %s (debounce %s)", path, cc.Cfg.Watch.Debounce))
	return watchLoop(ctx, watcher.Events, watcher.Errors, path, cc.Cfg.Watch.Debounce, run, cc.Logger)
}

// watchLoop calls run once target has been quiet for debounce after a
// write, create or rename. It returns when ctx is done.
func watchLoop(ctx context.Context, events <-chan fsnotify.Event, errs <-chan error,
	target string, debounce time.Duration, run func(), logger *slog.Logger,
) error {
	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target || !ev.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
				continue
			}
			logger.Debug("workbook changed", "path", ev.Name, "op", ev.Op.String())
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(debounce)
			fire = timer.C

		case err, ok := <-errs:
			if !ok {
				return nil
			}
			logger.Warn("watch error", "error", err)

		case <-fire:
			fire = nil
			run()
		}
	}
}
