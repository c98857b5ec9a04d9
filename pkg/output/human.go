package output

import (
	"fmt"
	"io"
	"time"

	"github.com/sdejongh/mirrorsync/pkg/models"
)

// HumanFormatter formats output in human-readable format
type HumanFormatter struct {
	writer     io.Writer
	totalFiles int
	totalBytes int64
	index      int
	speed      float64
}

// NewHumanFormatter creates a new human-readable formatter
func NewHumanFormatter() *HumanFormatter {
	return &HumanFormatter{}
}

// Start initializes the formatter
func (f *HumanFormatter) Start(writer io.Writer, totalFiles int, totalBytes int64) error {
	f.writer = writer
	f.totalFiles = totalFiles
	f.totalBytes = totalBytes

	if writer != nil {
		fmt.Fprintf(writer, "Starting backup: %d files, %s total\n",
			totalFiles, formatBytes(totalBytes))
	}

	return nil
}

// Handle reports one event of the run
func (f *HumanFormatter) Handle(ev models.Event) error {
	if f.writer == nil {
		return nil
	}

	switch ev.Kind {
	case models.EventBackupProgress:
		f.index = ev.Index
		if ev.Total > 0 {
			f.totalFiles = ev.Total
		}

	case models.EventFileDone:
		if ev.Status == models.StatusOK {
			fmt.Fprintf(f.writer, "[%d/%d] ✓ %s (%s)\n",
				f.index, f.totalFiles, ev.RelativePath, formatBytes(ev.Bytes))
		} else {
			fmt.Fprintf(f.writer, "[%d/%d] ✗ %s: %s\n",
				f.index, f.totalFiles, ev.RelativePath, ev.Status)
		}

	case models.EventSpeedUpdate:
		f.speed = ev.BytesPerSecond
	}

	return nil
}

// Complete finalizes output and displays summary
func (f *HumanFormatter) Complete(stats *models.BackupStats) error {
	if f.writer == nil {
		f.writer = io.Discard
	}
	if stats == nil {
		return nil
	}

	fmt.Fprintf(f.writer, "\n")
	if stats.Cancelled {
		fmt.Fprintf(f.writer, "Backup cancelled after %s\n", stats.Duration.Round(time.Millisecond))
	} else {
		fmt.Fprintf(f.writer, "Backup completed in %s\n", stats.Duration.Round(time.Millisecond))
	}
	fmt.Fprintf(f.writer, "\n")
	fmt.Fprintf(f.writer, "Summary:\n")
	fmt.Fprintf(f.writer, "  Files copied:   %d\n", stats.Copied)
	fmt.Fprintf(f.writer, "  Files skipped:  %d\n", stats.Skipped)
	fmt.Fprintf(f.writer, "  Files errored:  %d\n", stats.Errors)
	fmt.Fprintf(f.writer, "  Data:           %s\n", formatBytes(stats.BytesCopied))
	if avg := stats.AverageSpeed(); avg > 0 {
		fmt.Fprintf(f.writer, "  Average speed:  %s\n", formatSpeed(avg))
	}
	if f.speed > 0 {
		fmt.Fprintf(f.writer, "  Last speed:     %s\n", formatSpeed(f.speed))
	}
	fmt.Fprintf(f.writer, "\n")
	fmt.Fprintf(f.writer, "Status: %s\n", stats.Status())

	if len(stats.ErrorDetails) > 0 {
		fmt.Fprintf(f.writer, "\nErrors:\n")
		for _, detail := range stats.ErrorDetails {
			fmt.Fprintf(f.writer, "  %s\n", detail)
		}
	}

	return nil
}

// Error reports an error
func (f *HumanFormatter) Error(err error) error {
	if f.writer != nil {
		fmt.Fprintf(f.writer, "Error: %v\n", err)
	}
	return nil
}

// Name returns the formatter name
func (f *HumanFormatter) Name() string {
	return "human"
}
