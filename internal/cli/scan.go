package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sdejongh/mirrorsync/pkg/output"
)

var scanFlags RunFlags

// NewScanCommand creates the scan command
func NewScanCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Preview what a backup would copy",
		Long: `Scan the source directories and classify every file against the target
mirror as new, updated, unchanged or error, without copying anything.`,
		RunE: runScan,
	}

	addRunFlags(cmd, &scanFlags)
	cmd.Flags().StringVar(&scanFlags.Report, "report", "", "write the classification report to file")
	cmd.Flags().StringVar(&scanFlags.ReportFormat, "report-format", "human", "report format: human, json")

	return cmd
}

func runScan(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext(cmd)
	defer stop()

	env, err := newEnvironment(ctx, &scanFlags, false)
	if err != nil {
		return err
	}
	defer env.Close()

	entries, err := env.scan(ctx, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	if !env.cfg.Output.Quiet || env.cfg.Output.Format == "json" {
		if err := output.PrintScanSummary(cmd.OutOrStdout(), entries, env.resolved.TargetBase, env.cfg.Output.Format, globalFlags.Verbose); err != nil {
			return err
		}
	}

	if scanFlags.Report != "" {
		if err := output.WriteScanReport(entries, env.resolved.TargetBase, scanFlags.Report, scanFlags.ReportFormat); err != nil {
			return fmt.Errorf("failed to write scan report: %w", err)
		}
	}

	return nil
}
