package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/sdejongh/mirrorsync/pkg/history"
	"github.com/sdejongh/mirrorsync/pkg/logging"
)

var (
	historyLimit  int
	historyOutput string
	historyTarget string
)

// NewHistoryCommand creates the history command
func NewHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent backup runs",
		Long: `List recent backups recorded on the target medium, newest first, followed
by the last session found in the daily session logs.`,
		RunE: runHistory,
	}

	cmd.Flags().IntVarP(&historyLimit, "limit", "n", 10, "number of runs to show")
	cmd.Flags().StringVarP(&historyOutput, "output", "o", "human", "output format: human, json")
	cmd.Flags().StringVarP(&historyTarget, "target", "t", "", "target root (default: config or working directory)")

	return cmd
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if historyTarget != "" {
		cfg.Target = historyTarget
	}
	root, _, err := cfg.ResolveTarget()
	if err != nil {
		return err
	}

	dbPath := cfg.HistoryPath(root)
	if _, err := os.Stat(dbPath); err != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "No backup history at %s\n", dbPath)
		return nil
	}

	store, err := history.Open(ctx, dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.Recent(ctx, historyLimit)
	if err != nil {
		return err
	}

	var last *logging.SessionSummary
	if dir := cfg.SessionLogPath(root); dir != "" {
		if sl, err := logging.NewSessionLog(dir); err == nil {
			last, _ = sl.LastSession()
		}
	}

	out := cmd.OutOrStdout()
	if historyOutput == "json" {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(struct {
			Runs        []history.Run           `json:"runs"`
			LastSession *logging.SessionSummary `json:"last_session,omitempty"`
		}{Runs: runs, LastSession: last})
	}

	if len(runs) == 0 {
		fmt.Fprintln(out, "No backups recorded yet")
	} else {
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "STARTED\tSTATUS\tCOPIED\tSKIPPED\tERRORS\tDATA\tDURATION\tSOURCES")
		for _, r := range runs {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%s\t%s\t%s\n",
				r.StartedAt.Local().Format("2006-01-02 15:04:05"),
				r.Status, r.Copied, r.Skipped, r.Errors,
				humanize.IBytes(uint64(r.BytesCopied)),
				r.Duration.Round(time.Second),
				strings.Join(r.Sources, ", "))
		}
		tw.Flush()
	}

	if last != nil {
		fmt.Fprintf(out, "\nLast session (%s): %s, started %s",
			last.LogFile, last.SessionID, humanize.Time(last.Started))
		if last.Finished {
			fmt.Fprintf(out, ", copied %d, errors %d", last.Copied, last.Errors)
		} else {
			fmt.Fprintf(out, ", not finished")
		}
		fmt.Fprintln(out)
	}

	return nil
}
