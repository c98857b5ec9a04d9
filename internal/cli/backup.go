package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/sdejongh/mirrorsync/internal/platform"
	"github.com/sdejongh/mirrorsync/pkg/logging"
	"github.com/sdejongh/mirrorsync/pkg/models"
	"github.com/sdejongh/mirrorsync/pkg/output"
)

var backupFlags RunFlags

// errDeclined is returned when the user refuses to continue
var errDeclined = errors.New("backup aborted")

// NewBackupCommand creates the backup command
func NewBackupCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Copy new and changed files into the target mirror",
		Long: `Scan the source directories, then copy every new or updated file into
<target>/<subfolder>/<hostname>/<source name>/... Files are copied one at a
time; the first interrupt stops after the current file, a second one aborts.

Exit codes: 0 success, 1 some files failed, 2 fatal error, 3 cancelled.`,
		RunE: runBackup,
	}

	addRunFlags(cmd, &backupFlags)
	addCopyFlags(cmd, &backupFlags)

	return cmd
}

func runBackup(cmd *cobra.Command, args []string) error {
	var env *environment
	ctx, stop := interruptible(cmd, func() {
		if env != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), "\nStopping after the current file...")
			env.ctrl.Cancel()
		}
	})
	defer stop()

	var err error
	env, err = newEnvironment(ctx, &backupFlags, true)
	if err != nil {
		return err
	}
	defer env.Close()

	stats, err := backupOnce(ctx, cmd, env, !backupFlags.Yes)
	if err != nil {
		return err
	}

	if code := stats.Status().ExitCode(); code != 0 {
		return &ExitError{Code: code}
	}
	return nil
}

// backupOnce scans, checks free space and copies. confirm enables the
// interactive prompt when the target looks too small.
func backupOnce(ctx context.Context, cmd *cobra.Command, env *environment, confirm bool) (*models.BackupStats, error) {
	entries, err := env.scan(ctx, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}

	actionable, totalBytes := models.Actionable(entries)
	for _, e := range entries {
		if e.Action == models.ActionError {
			fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %s: %s\n", e.RelativePath, e.Reason)
		}
	}

	if err := checkDiskSpace(ctx, cmd, env, totalBytes, confirm); err != nil {
		return nil, err
	}

	formatter, err := selectFormatter(env, cmd.OutOrStdout())
	if err != nil {
		return nil, err
	}

	events, err := env.ctrl.StartBackup(ctx, entries)
	if err != nil {
		return nil, err
	}

	out := cmd.OutOrStdout()
	if env.cfg.Output.Quiet && env.cfg.Output.Format != "json" {
		out = io.Discard
	}
	if err := formatter.Start(out, len(actionable), totalBytes); err != nil {
		return nil, err
	}

	stats := output.Drain(formatter, events)
	if stats == nil {
		return nil, fmt.Errorf("backup ended without statistics")
	}
	if err := formatter.Complete(stats); err != nil {
		return nil, err
	}
	return stats, nil
}

// selectFormatter picks the output for the run
func selectFormatter(env *environment, out io.Writer) (output.Formatter, error) {
	format := env.cfg.Output.Format
	if format == "human" && env.cfg.Output.Progress && !globalFlags.Verbose && isTerminal(out) {
		format = "progress"
	}
	return output.New(format)
}

// checkDiskSpace warns when the files to copy exceed the free space of the
// target medium and asks for confirmation unless confirm is false
func checkDiskSpace(ctx context.Context, cmd *cobra.Command, env *environment, needed int64, confirm bool) error {
	usage, err := platform.DiskUsage(env.resolved.TargetRoot)
	if err != nil {
		env.logger.Debug(ctx, "Disk space check skipped", logging.Fields{"error": err.Error()})
		return nil
	}

	env.logger.Info(ctx, "Target disk usage", logging.Fields{
		"free":         usage.Free,
		"total":        usage.Total,
		"used_percent": usage.UsedPercent(),
		"needed":       needed,
	})
	if usage.Fits(needed) {
		return nil
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %s to copy but only %s (%.1f%%) free on %s\n",
		humanize.IBytes(uint64(needed)), humanize.IBytes(usage.Free), usage.FreePercent(), env.resolved.TargetRoot)
	if !confirm {
		return nil
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "Continue anyway? [y/N] ")
	answer, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return nil
	default:
		return errDeclined
	}
}
