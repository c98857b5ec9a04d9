package models

import (
	"time"
)

// BackupStats aggregates the result of one backup run.
// A fresh value is built per run and must not be modified once returned.
type BackupStats struct {
	SessionID string `json:"session_id"`

	Copied      int   `json:"copied"`
	Skipped     int   `json:"skipped"`
	Errors      int   `json:"errors"`
	BytesCopied int64 `json:"bytes_copied"`

	// ErrorDetails holds one "<relative path>: <cause>" line per failed file,
	// in copy order
	ErrorDetails []string `json:"error_details,omitempty"`

	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`

	// Cancelled is set when the run stopped early on request.
	// It is not an error.
	Cancelled bool `json:"cancelled"`
}

// RunStatus represents the overall result of a run
type RunStatus string

const (
	// RunSuccess indicates all actionable files were copied
	RunSuccess RunStatus = "success"
	// RunPartial indicates some files failed
	RunPartial RunStatus = "partial"
	// RunCancelled indicates the run was stopped early
	RunCancelled RunStatus = "cancelled"
)

// Status derives the overall result. Cancellation wins over errors.
func (s *BackupStats) Status() RunStatus {
	switch {
	case s.Cancelled:
		return RunCancelled
	case s.Errors > 0:
		return RunPartial
	default:
		return RunSuccess
	}
}

// AverageSpeed returns bytes per second over the whole run
func (s *BackupStats) AverageSpeed() float64 {
	secs := s.Duration.Seconds()
	if secs <= 0 {
		return 0
	}
	return float64(s.BytesCopied) / secs
}

// ExitCode returns the appropriate process exit code for the run status
func (s RunStatus) ExitCode() int {
	switch s {
	case RunSuccess:
		return 0
	case RunPartial:
		return 1
	case RunCancelled:
		return 3
	default:
		return 2
	}
}
