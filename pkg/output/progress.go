package output

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/cheggaaa/pb/v3"
	"golang.org/x/term"

	"github.com/sdejongh/mirrorsync/pkg/models"
)

// progressTemplate shows the current file, the byte bar and the window speed
const progressTemplate = `{{string . "counter"}} {{bar . "[" "=" ">" " " "]"}} {{counters . }} {{string . "speed"}} {{string . "file"}}`

// getUpdateInterval returns the refresh interval of the bar.
// Windows terminals have higher latency with ANSI sequences.
func getUpdateInterval() time.Duration {
	if runtime.GOOS == "windows" {
		return 300 * time.Millisecond
	}
	return 100 * time.Millisecond
}

// ProgressFormatter draws a byte-based progress bar
type ProgressFormatter struct {
	writer     io.Writer
	totalFiles int
	totalBytes int64
	termWidth  int

	mu  sync.Mutex
	bar *pb.ProgressBar
}

// NewProgressFormatter creates a new progress bar formatter
func NewProgressFormatter() *ProgressFormatter {
	return &ProgressFormatter{}
}

// Start initializes the bar sized to the terminal
func (f *ProgressFormatter) Start(writer io.Writer, totalFiles int, totalBytes int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if writer == nil {
		writer = os.Stdout
	}
	f.writer = writer
	f.totalFiles = totalFiles
	f.totalBytes = totalBytes

	// Default to 120 if the width cannot be detected (pipe, redirect, etc.)
	f.termWidth = 120
	if file, ok := writer.(*os.File); ok {
		if width, _, err := term.GetSize(int(file.Fd())); err == nil && width > 0 {
			f.termWidth = width
		}
	}

	bar := pb.New64(totalBytes)
	bar.SetWriter(writer)
	bar.SetTemplateString(progressTemplate)
	bar.SetWidth(f.termWidth)
	bar.SetMaxWidth(f.termWidth)
	bar.SetRefreshRate(getUpdateInterval())
	bar.Set(pb.Bytes, true)
	bar.Set("counter", fmt.Sprintf("[0/%d]", totalFiles))
	bar.Set("speed", "")
	bar.Set("file", "")
	f.bar = bar.Start()

	return nil
}

// Handle updates the bar for one event
func (f *ProgressFormatter) Handle(ev models.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.bar == nil {
		return nil
	}

	switch ev.Kind {
	case models.EventBackupProgress:
		f.bar.Set("counter", fmt.Sprintf("[%d/%d]", ev.Index, ev.Total))
		f.bar.Set("file", f.truncate(ev.RelativePath))

	case models.EventFileDone:
		if ev.Status == models.StatusOK {
			f.bar.Add64(ev.Bytes)
		}

	case models.EventSpeedUpdate:
		f.bar.Set("speed", formatSpeed(ev.BytesPerSecond))
	}

	return nil
}

// truncate keeps the file column from wrapping the line
func (f *ProgressFormatter) truncate(path string) string {
	max := f.termWidth / 3
	if max < 10 || len(path) <= max {
		return path
	}
	return "..." + path[len(path)-max+3:]
}

// Complete stops the bar and prints the summary
func (f *ProgressFormatter) Complete(stats *models.BackupStats) error {
	f.mu.Lock()
	if f.bar != nil {
		f.bar.Finish()
		f.bar = nil
	}
	writer := f.writer
	f.mu.Unlock()

	if writer == nil {
		writer = io.Discard
	}
	if stats == nil {
		return nil
	}

	fmt.Fprintf(writer, "\n")
	fmt.Fprintf(writer, "Copied %d, skipped %d, errors %d; %s in %s",
		stats.Copied, stats.Skipped, stats.Errors,
		formatBytes(stats.BytesCopied), formatDuration(stats.Duration))
	if avg := stats.AverageSpeed(); avg > 0 {
		fmt.Fprintf(writer, " (%s)", formatSpeed(avg))
	}
	fmt.Fprintf(writer, "\n")
	fmt.Fprintf(writer, "Status: %s\n", stats.Status())

	if len(stats.ErrorDetails) > 0 {
		fmt.Fprintf(writer, "\nErrors:\n")
		for _, detail := range stats.ErrorDetails {
			fmt.Fprintf(writer, "  %s\n", detail)
		}
	}
	return nil
}

// Error prints an error below the bar
func (f *ProgressFormatter) Error(err error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writer != nil {
		fmt.Fprintf(f.writer, "\nError: %v\n", err)
	}
	return nil
}

// Name returns the formatter name
func (f *ProgressFormatter) Name() string {
	return "progress"
}
