package output

import (
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/sdejongh/mirrorsync/pkg/models"
)

// JSONFormatter formats output as JSON for automation and scripting
type JSONFormatter struct {
	writer     io.Writer
	totalFiles int
	totalBytes int64
	files      []JSONFileData
	errors     []string
}

// JSONFileData represents the result of one copied file
type JSONFileData struct {
	Path   string `json:"path"`
	Status string `json:"status"`
	Bytes  int64  `json:"bytes,omitempty"`
	Detail string `json:"detail,omitempty"`
}

// JSONReportData represents the final report data
type JSONReportData struct {
	SessionID  string           `json:"session_id"`
	Status     string           `json:"status"`
	StartTime  string           `json:"start_time"`
	EndTime    string           `json:"end_time"`
	Duration   string           `json:"duration"`
	DurationMs int64            `json:"duration_ms"`
	Planned    JSONPlannedData  `json:"planned"`
	Stats      JSONStatsData    `json:"stats"`
	Files      []JSONFileData   `json:"files,omitempty"`
	Errors     []string         `json:"errors,omitempty"`
	Messages   []string         `json:"messages,omitempty"`
	Transfer   JSONTransferData `json:"transfer"`
}

// JSONPlannedData describes the actionable set handed to the run
type JSONPlannedData struct {
	Files int   `json:"files"`
	Bytes int64 `json:"bytes"`
}

// JSONStatsData represents statistics in JSON format
type JSONStatsData struct {
	Copied    int  `json:"copied"`
	Skipped   int  `json:"skipped"`
	Errors    int  `json:"errors"`
	Cancelled bool `json:"cancelled"`
}

// JSONTransferData represents transfer statistics
type JSONTransferData struct {
	BytesCopied     int64  `json:"bytes_copied"`
	AverageSpeed    int64  `json:"average_speed_bytes_per_sec,omitempty"`
	AverageSpeedStr string `json:"average_speed,omitempty"`
}

// NewJSONFormatter creates a new JSON formatter
func NewJSONFormatter() *JSONFormatter {
	return &JSONFormatter{}
}

// Start initializes the formatter
func (f *JSONFormatter) Start(writer io.Writer, totalFiles int, totalBytes int64) error {
	if writer == nil {
		writer = os.Stdout
	}
	f.writer = writer
	f.totalFiles = totalFiles
	f.totalBytes = totalBytes
	return nil
}

// Handle collects per-file results; nothing is written until Complete so the
// output stays a single parseable document
func (f *JSONFormatter) Handle(ev models.Event) error {
	if ev.Kind != models.EventFileDone {
		return nil
	}
	f.files = append(f.files, JSONFileData{
		Path:   ev.RelativePath,
		Status: ev.Status.String(),
		Bytes:  ev.Bytes,
		Detail: ev.Detail,
	})
	return nil
}

// Complete writes the final report as JSON
func (f *JSONFormatter) Complete(stats *models.BackupStats) error {
	if f.writer == nil {
		f.writer = io.Discard
	}
	if stats == nil {
		stats = &models.BackupStats{}
	}

	var avgSpeed int64
	var avgSpeedStr string
	if avg := stats.AverageSpeed(); avg > 0 {
		avgSpeed = int64(avg)
		avgSpeedStr = formatSpeed(avg)
	}

	report := JSONReportData{
		SessionID:  stats.SessionID,
		Status:     string(stats.Status()),
		StartTime:  stats.StartTime.Format(time.RFC3339),
		EndTime:    stats.EndTime.Format(time.RFC3339),
		Duration:   stats.Duration.Round(time.Millisecond).String(),
		DurationMs: stats.Duration.Milliseconds(),
		Planned: JSONPlannedData{
			Files: f.totalFiles,
			Bytes: f.totalBytes,
		},
		Stats: JSONStatsData{
			Copied:    stats.Copied,
			Skipped:   stats.Skipped,
			Errors:    stats.Errors,
			Cancelled: stats.Cancelled,
		},
		Files:    f.files,
		Errors:   stats.ErrorDetails,
		Messages: f.errors,
		Transfer: JSONTransferData{
			BytesCopied:     stats.BytesCopied,
			AverageSpeed:    avgSpeed,
			AverageSpeedStr: avgSpeedStr,
		},
	}

	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}

// Error records an error for the final report
func (f *JSONFormatter) Error(err error) error {
	f.errors = append(f.errors, err.Error())
	return nil
}

// Name returns the formatter name
func (f *JSONFormatter) Name() string {
	return "json"
}
