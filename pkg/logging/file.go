package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Format represents the log output format
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// Config holds configuration for the diagnostic logger
type Config struct {
	// Path is the log file path; empty writes to Writer (stderr by default)
	Path string

	// Writer is used when Path is empty
	Writer io.Writer

	// Format is the output format (json or text)
	Format Format

	// Level is the minimum log level
	Level Level

	// MaxSize is the maximum size in bytes before rotation (0 = no rotation)
	MaxSize int64

	// MaxBackups is the maximum number of rotated files to keep
	MaxBackups int
}

// ZeroLogger implements Logger on top of zerolog
type ZeroLogger struct {
	zl     zerolog.Logger
	closer io.Closer
}

// New creates a zerolog-backed logger
func New(config Config) (*ZeroLogger, error) {
	var out io.Writer
	var closer io.Closer

	if config.Path != "" {
		rf, err := openRotatingFile(config.Path, config.MaxSize, config.MaxBackups)
		if err != nil {
			return nil, err
		}
		out, closer = rf, rf
	} else {
		out = config.Writer
		if out == nil {
			out = os.Stderr
		}
	}

	if config.Format != FormatJSON {
		out = zerolog.ConsoleWriter{
			Out:        out,
			NoColor:    config.Path != "",
			TimeFormat: time.RFC3339,
		}
	}

	zl := zerolog.New(out).Level(zerologLevel(config.Level)).With().Timestamp().Logger()
	return &ZeroLogger{zl: zl, closer: closer}, nil
}

// Debug logs a debug message
func (l *ZeroLogger) Debug(ctx context.Context, msg string, fields Fields) {
	l.zl.Debug().Fields(map[string]interface{}(fields)).Msg(msg)
}

// Info logs an info message
func (l *ZeroLogger) Info(ctx context.Context, msg string, fields Fields) {
	l.zl.Info().Fields(map[string]interface{}(fields)).Msg(msg)
}

// Warn logs a warning message
func (l *ZeroLogger) Warn(ctx context.Context, msg string, fields Fields) {
	l.zl.Warn().Fields(map[string]interface{}(fields)).Msg(msg)
}

// Error logs an error message
func (l *ZeroLogger) Error(ctx context.Context, msg string, err error, fields Fields) {
	l.zl.Error().Err(err).Fields(map[string]interface{}(fields)).Msg(msg)
}

// WithFields returns a logger with additional fields. The derived logger
// shares the output; closing it is a no-op.
func (l *ZeroLogger) WithFields(fields Fields) Logger {
	return &ZeroLogger{
		zl: l.zl.With().Fields(map[string]interface{}(fields)).Logger(),
	}
}

// Close closes the log file, if any
func (l *ZeroLogger) Close() error {
	if l.closer != nil {
		return l.closer.Close()
	}
	return nil
}

func zerologLevel(level Level) zerolog.Level {
	switch level {
	case DebugLevel:
		return zerolog.DebugLevel
	case WarnLevel:
		return zerolog.WarnLevel
	case ErrorLevel:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// rotatingFile is an append-only file that rotates to path.1, path.2, ...
// once it reaches maxSize
type rotatingFile struct {
	path       string
	maxSize    int64
	maxBackups int

	mu   sync.Mutex
	file *os.File
	size int64
}

func openRotatingFile(path string, maxSize int64, maxBackups int) (*rotatingFile, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	rf := &rotatingFile{path: path, maxSize: maxSize, maxBackups: maxBackups}
	if err := rf.open(); err != nil {
		return nil, err
	}
	return rf, nil
}

func (rf *rotatingFile) open() error {
	file, err := os.OpenFile(rf.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("failed to stat log file: %w", err)
	}
	rf.file = file
	rf.size = info.Size()
	return nil
}

func (rf *rotatingFile) Write(p []byte) (int, error) {
	rf.mu.Lock()
	defer rf.mu.Unlock()

	if rf.file == nil {
		return 0, os.ErrClosed
	}
	if rf.maxSize > 0 && rf.size >= rf.maxSize {
		rf.rotate()
	}

	n, err := rf.file.Write(p)
	rf.size += int64(n)
	return n, err
}

// rotate shifts backups up by one and reopens an empty file (lock held)
func (rf *rotatingFile) rotate() {
	rf.file.Close()

	for i := rf.maxBackups - 1; i >= 1; i-- {
		os.Rename(fmt.Sprintf("%s.%d", rf.path, i), fmt.Sprintf("%s.%d", rf.path, i+1))
	}
	os.Rename(rf.path, rf.path+".1")
	if rf.maxBackups > 0 {
		os.Remove(fmt.Sprintf("%s.%d", rf.path, rf.maxBackups+1))
	}

	if err := rf.open(); err != nil {
		rf.file = nil
	}
}

func (rf *rotatingFile) Close() error {
	rf.mu.Lock()
	defer rf.mu.Unlock()

	if rf.file == nil {
		return nil
	}
	err := rf.file.Close()
	rf.file = nil
	return err
}

// ParseLevel parses a log level string
func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return DebugLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// LevelString returns the upper-case name of a level
func LevelString(level Level) string {
	switch level {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}
