package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/sdejongh/mirrorsync/pkg/models"
)

// reportOrder lists the action groups of a scan report, errors first
var reportOrder = []models.FileAction{
	models.ActionError,
	models.ActionNew,
	models.ActionUpdated,
	models.ActionSkipped,
}

var reportLabels = map[models.FileAction]string{
	models.ActionError:   "Errors",
	models.ActionNew:     "New Files",
	models.ActionUpdated: "Updated Files",
	models.ActionSkipped: "Unchanged Files",
}

// ScanSummary is the JSON form of a scan preview
type ScanSummary struct {
	TargetBase   string             `json:"target_base"`
	Total        int                `json:"total"`
	New          int                `json:"new"`
	Updated      int                `json:"updated"`
	Skipped      int                `json:"skipped"`
	Errors       int                `json:"errors"`
	CopyBytes    int64              `json:"copy_bytes"`
	Actionable   []models.FileEntry `json:"actionable,omitempty"`
	ErrorEntries []models.FileEntry `json:"error_entries,omitempty"`
}

// Summarize builds the preview of a scan result
func Summarize(entries []models.FileEntry, targetBase string) ScanSummary {
	counts := models.CountByAction(entries)
	actionable, bytes := models.Actionable(entries)

	summary := ScanSummary{
		TargetBase: targetBase,
		Total:      len(entries),
		New:        counts[models.ActionNew],
		Updated:    counts[models.ActionUpdated],
		Skipped:    counts[models.ActionSkipped],
		Errors:     counts[models.ActionError],
		CopyBytes:  bytes,
		Actionable: actionable,
	}
	for _, e := range entries {
		if e.Action == models.ActionError {
			summary.ErrorEntries = append(summary.ErrorEntries, e)
		}
	}
	return summary
}

// PrintScanSummary writes a scan preview to w. With verbose set the human
// format lists every actionable file.
func PrintScanSummary(w io.Writer, entries []models.FileEntry, targetBase, format string, verbose bool) error {
	summary := Summarize(entries, targetBase)

	if format == "json" {
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(summary)
	}

	fmt.Fprintf(w, "Target: %s\n\n", targetBase)
	fmt.Fprintf(w, "  New:        %d\n", summary.New)
	fmt.Fprintf(w, "  Updated:    %d\n", summary.Updated)
	fmt.Fprintf(w, "  Unchanged:  %d\n", summary.Skipped)
	fmt.Fprintf(w, "  Errors:     %d\n", summary.Errors)
	fmt.Fprintf(w, "  To copy:    %d files, %s\n", len(summary.Actionable), formatBytes(summary.CopyBytes))

	if verbose && len(summary.Actionable) > 0 {
		fmt.Fprintf(w, "\n")
		for _, e := range summary.Actionable {
			fmt.Fprintf(w, "  %-8s %s (%s)\n", e.Action, e.RelativePath, formatBytes(e.SourceSize))
		}
	}
	if len(summary.ErrorEntries) > 0 {
		fmt.Fprintf(w, "\nErrors:\n")
		for _, e := range summary.ErrorEntries {
			fmt.Fprintf(w, "  %s: %s\n", e.RelativePath, e.Reason)
		}
	}
	return nil
}

// WriteScanReport writes the classification of a scan to a file, grouped by
// action. Format can be "human" or "json".
func WriteScanReport(entries []models.FileEntry, targetBase, path, format string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	defer file.Close()

	switch format {
	case "json":
		err = writeReportJSON(entries, targetBase, file)
	default: // "human"
		err = writeReportHuman(entries, targetBase, file)
	}
	if err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// writeReportHuman writes the classification in human-readable format
func writeReportHuman(entries []models.FileEntry, targetBase string, w io.Writer) error {
	fmt.Fprintf(w, "Scan Report\n")
	fmt.Fprintf(w, "===========\n\n")
	fmt.Fprintf(w, "Generated: %s\n", time.Now().Format(time.RFC3339))
	fmt.Fprintf(w, "Target: %s\n\n", targetBase)
	fmt.Fprintf(w, "Total Files: %d\n\n", len(entries))

	byAction := make(map[models.FileAction][]models.FileEntry)
	for _, e := range entries {
		byAction[e.Action] = append(byAction[e.Action], e)
	}

	for _, action := range reportOrder {
		group := byAction[action]
		if len(group) == 0 {
			continue
		}

		label := fmt.Sprintf("%s (%d files)", reportLabels[action], len(group))
		fmt.Fprintf(w, "%s\n", label)
		fmt.Fprintf(w, "%s\n", strings.Repeat("-", len(label)))

		for _, e := range group {
			fmt.Fprintf(w, "  %s\n", e.RelativePath)
			if e.Reason != "" {
				fmt.Fprintf(w, "    Reason: %s\n", e.Reason)
			}
			if action != models.ActionError {
				fmt.Fprintf(w, "    Source: %s, modified %s\n",
					formatBytes(e.SourceSize), e.SourceModTime.Format(time.RFC3339))
			}
		}
		fmt.Fprintf(w, "\n")
	}

	return nil
}

// writeReportJSON writes the classification in JSON format
func writeReportJSON(entries []models.FileEntry, targetBase string, w io.Writer) error {
	counts := models.CountByAction(entries)
	output := struct {
		Generated  string             `json:"generated"`
		TargetBase string             `json:"target_base"`
		TotalCount int                `json:"total_count"`
		Counts     map[string]int     `json:"counts"`
		Entries    []models.FileEntry `json:"entries"`
	}{
		Generated:  time.Now().Format(time.RFC3339),
		TargetBase: targetBase,
		TotalCount: len(entries),
		Counts:     make(map[string]int, len(reportOrder)),
		Entries:    entries,
	}
	for _, action := range reportOrder {
		output.Counts[action.String()] = counts[action]
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(output)
}
