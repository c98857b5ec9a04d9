package cli

import (
	"fmt"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/sdejongh/mirrorsync/internal/watch"
	"github.com/sdejongh/mirrorsync/pkg/exclude"
	"github.com/sdejongh/mirrorsync/pkg/logging"
)

var (
	watchFlags    RunFlags
	watchDebounce time.Duration
	watchInitial  bool
)

// NewWatchCommand creates the watch command
func NewWatchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Back up automatically whenever the sources change",
		Long: `Watch the source directories and run a backup once no further change has
been seen for the debounce interval. Stop with Ctrl+C; a backup in progress
finishes its current file first.`,
		RunE: runWatch,
	}

	addRunFlags(cmd, &watchFlags)
	addCopyFlags(cmd, &watchFlags)
	cmd.Flags().DurationVar(&watchDebounce, "debounce", 5*time.Second, "quiet period before a backup starts")
	cmd.Flags().BoolVar(&watchInitial, "initial", true, "run one backup when the watch starts")

	return cmd
}

func runWatch(cmd *cobra.Command, args []string) error {
	var env *environment
	stopping := make(chan struct{})
	var once sync.Once
	ctx, stop := interruptible(cmd, func() {
		once.Do(func() { close(stopping) })
		if env != nil {
			env.ctrl.Cancel()
		}
	})
	defer stop()

	var err error
	env, err = newEnvironment(ctx, &watchFlags, true)
	if err != nil {
		return err
	}
	defer env.Close()

	watcher, err := watch.New(env.resolved.Sources, exclude.New(env.resolved.Exclude), env.logger)
	if err != nil {
		return err
	}
	defer watcher.Close()

	// runOnce reports whether watching should go on. A backup never prompts
	// in watch mode.
	runOnce := func() bool {
		stats, err := backupOnce(ctx, cmd, env, false)
		if err != nil {
			if ctx.Err() != nil {
				return false
			}
			env.logger.Error(ctx, "Backup failed", err, nil)
			fmt.Fprintf(cmd.ErrOrStderr(), "Backup failed: %v\n", err)
			return true
		}
		env.logger.Info(ctx, "Backup finished", logging.Fields{"status": string(stats.Status())})
		return !stats.Cancelled
	}

	if watchInitial && !runOnce() {
		return nil
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "Watching %d source(s), press Ctrl+C to stop\n", len(env.resolved.Sources))
	triggers := watch.Debounce(ctx, watcher.Changes(), watchDebounce)
	for {
		select {
		case <-stopping:
			return nil
		case <-ctx.Done():
			return nil
		case _, ok := <-triggers:
			if !ok || !runOnce() {
				return nil
			}
		}
	}
}
