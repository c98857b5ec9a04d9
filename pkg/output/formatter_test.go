package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sdejongh/mirrorsync/pkg/models"
)

func runEvents(stats *models.BackupStats) <-chan models.Event {
	events := make(chan models.Event, 16)
	events <- models.Event{Kind: models.EventBackupProgress, Index: 1, Total: 2, RelativePath: "docs/a.txt"}
	events <- models.Event{Kind: models.EventFileDone, RelativePath: "docs/a.txt", Status: models.StatusOK, Bytes: 2048}
	events <- models.Event{Kind: models.EventSpeedUpdate, BytesPerSecond: 4096}
	events <- models.Event{Kind: models.EventBackupProgress, Index: 2, Total: 2, RelativePath: "docs/b.txt"}
	events <- models.Event{
		Kind:         models.EventFileDone,
		RelativePath: "docs/b.txt",
		Status:       models.StatusPermissionError,
		Detail:       "docs/b.txt: permission denied",
	}
	events <- models.Event{Kind: models.EventBackupFinished, Stats: stats}
	close(events)
	return events
}

func sampleStats() *models.BackupStats {
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	return &models.BackupStats{
		SessionID:    "abc",
		Copied:       1,
		Skipped:      4,
		Errors:       1,
		BytesCopied:  2048,
		ErrorDetails: []string{"docs/b.txt: permission denied"},
		StartTime:    start,
		EndTime:      start.Add(2 * time.Second),
		Duration:     2 * time.Second,
	}
}

func TestNew(t *testing.T) {
	for _, name := range []string{"human", "json", "progress"} {
		f, err := New(name)
		require.NoError(t, err)
		assert.Equal(t, name, f.Name())
	}

	f, err := New("")
	require.NoError(t, err)
	assert.Equal(t, "human", f.Name())

	_, err = New("xml")
	assert.Error(t, err)
}

func TestHumanFormatter(t *testing.T) {
	var buf bytes.Buffer
	f := NewHumanFormatter()
	require.NoError(t, f.Start(&buf, 2, 4096))

	stats := Drain(f, runEvents(sampleStats()))
	require.NotNil(t, stats)
	require.NoError(t, f.Complete(stats))

	out := buf.String()
	assert.Contains(t, out, "Starting backup: 2 files, 4.0 KiB total")
	assert.Contains(t, out, "[1/2] ✓ docs/a.txt (2.0 KiB)")
	assert.Contains(t, out, "[2/2] ✗ docs/b.txt: PERMISSION_ERROR")
	assert.Contains(t, out, "Files copied:   1")
	assert.Contains(t, out, "Status: partial")
	assert.Contains(t, out, "  docs/b.txt: permission denied")

	t.Run("Cancelled", func(t *testing.T) {
		var buf bytes.Buffer
		f := NewHumanFormatter()
		require.NoError(t, f.Start(&buf, 0, 0))
		require.NoError(t, f.Complete(&models.BackupStats{Cancelled: true}))
		assert.Contains(t, buf.String(), "Backup cancelled")
		assert.Contains(t, buf.String(), "Status: cancelled")
	})
}

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	f := NewJSONFormatter()
	require.NoError(t, f.Start(&buf, 2, 4096))

	stats := Drain(f, runEvents(sampleStats()))
	require.NoError(t, f.Error(errors.New("target nearly full")))
	require.NoError(t, f.Complete(stats))

	var report JSONReportData
	require.NoError(t, json.Unmarshal(buf.Bytes(), &report))
	assert.Equal(t, "abc", report.SessionID)
	assert.Equal(t, "partial", report.Status)
	assert.Equal(t, 2, report.Planned.Files)
	assert.Equal(t, int64(4096), report.Planned.Bytes)
	assert.Equal(t, 1, report.Stats.Copied)
	assert.Equal(t, int64(2000), report.DurationMs)
	assert.Equal(t, int64(1024), report.Transfer.AverageSpeed)
	require.Len(t, report.Files, 2)
	assert.Equal(t, "OK", report.Files[0].Status)
	assert.Equal(t, "PERMISSION_ERROR", report.Files[1].Status)
	assert.Equal(t, []string{"target nearly full"}, report.Messages)
}

func TestProgressFormatterWithoutTerminal(t *testing.T) {
	var buf bytes.Buffer
	f := NewProgressFormatter()
	require.NoError(t, f.Start(&buf, 2, 4096))

	stats := Drain(f, runEvents(sampleStats()))
	require.NoError(t, f.Complete(stats))
	assert.Contains(t, buf.String(), "docs/b.txt")
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "0 B", formatBytes(-5))
	assert.Equal(t, "1.0 MiB", formatBytes(1<<20))
	assert.Equal(t, "-", formatSpeed(0))
	assert.Equal(t, "2.0 KiB/s", formatSpeed(2048))
	assert.Equal(t, "42s", formatDuration(42*time.Second))
	assert.Equal(t, "3m5s", formatDuration(3*time.Minute+5*time.Second))
	assert.Equal(t, "2h10m", formatDuration(2*time.Hour+10*time.Minute))
}

func scanEntries() []models.FileEntry {
	mtime := time.Date(2024, 4, 2, 8, 0, 0, 0, time.UTC)
	return []models.FileEntry{
		{RelativePath: "docs/new.txt", Action: models.ActionNew, SourceSize: 100, SourceModTime: mtime},
		{RelativePath: "docs/same.txt", Action: models.ActionSkipped, SourceSize: 50, SourceModTime: mtime},
		{RelativePath: "docs/changed.txt", Action: models.ActionUpdated, SourceSize: 200, SourceModTime: mtime},
		{RelativePath: "docs/locked.txt", Action: models.ActionError, Reason: "permission denied"},
	}
}

func TestSummarize(t *testing.T) {
	summary := Summarize(scanEntries(), "/mnt/usb/Backups/host")
	assert.Equal(t, 4, summary.Total)
	assert.Equal(t, 1, summary.New)
	assert.Equal(t, 1, summary.Updated)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 1, summary.Errors)
	assert.Equal(t, int64(300), summary.CopyBytes)
	assert.Len(t, summary.Actionable, 2)
	require.Len(t, summary.ErrorEntries, 1)
	assert.Equal(t, "docs/locked.txt", summary.ErrorEntries[0].RelativePath)
}

func TestPrintScanSummary(t *testing.T) {
	t.Run("Human", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, PrintScanSummary(&buf, scanEntries(), "/mnt/b", "human", true))
		out := buf.String()
		assert.Contains(t, out, "Target: /mnt/b")
		assert.Contains(t, out, "To copy:    2 files, 300 B")
		assert.Contains(t, out, "docs/changed.txt")
		assert.Contains(t, out, "docs/locked.txt: permission denied")
		assert.NotContains(t, out, "docs/same.txt")
	})

	t.Run("JSON", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, PrintScanSummary(&buf, scanEntries(), "/mnt/b", "json", false))
		var summary ScanSummary
		require.NoError(t, json.Unmarshal(buf.Bytes(), &summary))
		assert.Equal(t, 2, len(summary.Actionable))
		assert.Equal(t, models.ActionNew, summary.Actionable[0].Action)
	})
}

func TestWriteScanReport(t *testing.T) {
	dir := t.TempDir()

	t.Run("Human", func(t *testing.T) {
		path := filepath.Join(dir, "report.txt")
		require.NoError(t, WriteScanReport(scanEntries(), "/mnt/b", path, "human"))
		data, err := os.ReadFile(path)
		require.NoError(t, err)

		out := string(data)
		errorsAt := strings.Index(out, "Errors (1 files)")
		newAt := strings.Index(out, "New Files (1 files)")
		require.True(t, errorsAt >= 0 && newAt >= 0)
		assert.Less(t, errorsAt, newAt, "errors are listed first")
		assert.Contains(t, out, "Reason: permission denied")
	})

	t.Run("JSON", func(t *testing.T) {
		path := filepath.Join(dir, "report.json")
		require.NoError(t, WriteScanReport(scanEntries(), "/mnt/b", path, "json"))
		data, err := os.ReadFile(path)
		require.NoError(t, err)

		var report struct {
			TotalCount int                `json:"total_count"`
			Counts     map[string]int     `json:"counts"`
			Entries    []models.FileEntry `json:"entries"`
		}
		require.NoError(t, json.Unmarshal(data, &report))
		assert.Equal(t, 4, report.TotalCount)
		assert.Equal(t, 1, report.Counts["error"])
		assert.Len(t, report.Entries, 4)
	})

	t.Run("BadPath", func(t *testing.T) {
		assert.Error(t, WriteScanReport(nil, "/mnt/b", filepath.Join(dir, "missing", "r.txt"), "human"))
	})
}
