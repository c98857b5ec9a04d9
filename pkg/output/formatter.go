package output

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/sdejongh/mirrorsync/pkg/models"
)

// Formatter renders the events of a backup run.
// Implementations include human-readable, JSON and progress bar formatters.
type Formatter interface {
	// Start initializes the formatter for a run over totalFiles actionable
	// files holding totalBytes
	Start(writer io.Writer, totalFiles int, totalBytes int64) error

	// Handle reports one event of the run
	Handle(ev models.Event) error

	// Complete finalizes output and displays the summary
	Complete(stats *models.BackupStats) error

	// Error reports an error outside the per-file results
	Error(err error) error

	// Name returns the formatter name
	Name() string
}

// New returns the formatter for name ("human", "json" or "progress")
func New(name string) (Formatter, error) {
	switch name {
	case "human", "":
		return NewHumanFormatter(), nil
	case "json":
		return NewJSONFormatter(), nil
	case "progress":
		return NewProgressFormatter(), nil
	default:
		return nil, fmt.Errorf("unknown output format: %s", name)
	}
}

// Drain feeds every event from events into f until the channel is closed
// and returns the stats carried by BackupFinished
func Drain(f Formatter, events <-chan models.Event) *models.BackupStats {
	var stats *models.BackupStats
	for ev := range events {
		if ev.Kind == models.EventBackupFinished {
			stats = ev.Stats
		}
		_ = f.Handle(ev)
	}
	return stats
}

// formatBytes formats bytes in human-readable binary units
func formatBytes(bytes int64) string {
	if bytes < 0 {
		bytes = 0
	}
	return humanize.IBytes(uint64(bytes))
}

// formatSpeed formats a transfer rate
func formatSpeed(bytesPerSecond float64) string {
	if bytesPerSecond <= 0 {
		return "-"
	}
	return formatBytes(int64(bytesPerSecond)) + "/s"
}

// formatDuration formats duration in human-readable format
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}
