// Package logging holds the diagnostic logger used by the scan and backup
// engines and the per-day session log written next to the backups.
package logging

import "context"

// Level is the minimum severity a logger writes
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

// Fields are attached to a record as key/value pairs
type Fields map[string]interface{}

// Logger is the diagnostic logger handed to the scanner, the executor and the
// session controller
type Logger interface {
	Debug(ctx context.Context, msg string, fields Fields)
	Info(ctx context.Context, msg string, fields Fields)
	Warn(ctx context.Context, msg string, fields Fields)
	Error(ctx context.Context, msg string, err error, fields Fields)

	// WithFields returns a child logger that adds fields to every record
	WithFields(fields Fields) Logger

	Close() error
}

// OrNull returns l, or a logger that drops everything when l is nil
func OrNull(l Logger) Logger {
	if l == nil {
		return discard{}
	}
	return l
}

type discard struct{}

func (discard) Debug(context.Context, string, Fields)        {}
func (discard) Info(context.Context, string, Fields)         {}
func (discard) Warn(context.Context, string, Fields)         {}
func (discard) Error(context.Context, string, error, Fields) {}
func (d discard) WithFields(Fields) Logger                   { return d }
func (discard) Close() error                                 { return nil }
