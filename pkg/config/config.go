package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sdejongh/mirrorsync/pkg/models"
)

// ErrNoSources is returned by Resolve when no source directory is configured
var ErrNoSources = errors.New("no source directories configured")

// Config represents the application configuration
type Config struct {
	// Language is kept for the presentation layer; the engine ignores it
	Language string `yaml:"language"`

	Sources []string `yaml:"sources"`

	// Target is the root of the backup medium (default: working directory)
	Target string `yaml:"target"`

	// TargetSubfolder is created under Target; mirrors go to
	// <target>/<target_subfolder>/<hostname> when PerHost is set
	TargetSubfolder string `yaml:"target_subfolder"`
	PerHost         bool   `yaml:"per_host"`

	Exclude       []string             `yaml:"exclude"`
	CompareMethod models.CompareMethod `yaml:"compare_method"`
	AutoPreview   bool                 `yaml:"auto_preview"`

	Performance PerformanceConfig `yaml:"performance"`
	Output      OutputConfig      `yaml:"output"`
	Logging     LoggingConfig     `yaml:"logging"`

	// SessionLogDir and HistoryDB are resolved against Target when relative
	SessionLogDir string `yaml:"session_log_dir"`
	HistoryDB     string `yaml:"history_db"`
}

// PerformanceConfig holds performance-related settings
type PerformanceConfig struct {
	BufferSize     int   `yaml:"buffer_size"`
	BandwidthLimit int64 `yaml:"bandwidth_limit"`
}

// OutputConfig holds output-related settings
type OutputConfig struct {
	Format   string `yaml:"format"`   // "human" or "json"
	Progress bool   `yaml:"progress"` // Show progress bars
	Quiet    bool   `yaml:"quiet"`    // Suppress non-error output
}

// LoggingConfig holds diagnostic logging settings
type LoggingConfig struct {
	Format string `yaml:"format"` // "json" or "text"
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	File   string `yaml:"file"`   // Log file path (empty = stderr)
}

// DefaultExcludes are the patterns excluded when nothing else is configured
var DefaultExcludes = []string{
	"*.tmp",
	"*.temp",
	"*.log",
	"Thumbs.db",
	".DS_Store",
	"desktop.ini",
	"node_modules",
	"__pycache__",
	".git",
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Language:        "de",
		Sources:         []string{},
		TargetSubfolder: "Backups",
		PerHost:         true,
		Exclude:         append([]string(nil), DefaultExcludes...),
		CompareMethod:   models.CompareTimestampSize,
		AutoPreview:     true,
		Performance: PerformanceConfig{
			BufferSize:     65536,
			BandwidthLimit: 0,
		},
		Output: OutputConfig{
			Format:   "human",
			Progress: true,
			Quiet:    false,
		},
		Logging: LoggingConfig{
			Format: "text",
			Level:  "warn",
			File:   "",
		},
		SessionLogDir: "Logs",
		HistoryDB:     "history.db",
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if _, err := models.ParseCompareMethod(string(c.CompareMethod)); err != nil {
		return err
	}

	if c.Performance.BufferSize < 1024 {
		return &models.ValidationError{
			Field:   "performance.buffer_size",
			Message: "must be at least 1024 bytes",
		}
	}

	if c.Performance.BandwidthLimit < 0 {
		return &models.ValidationError{
			Field:   "performance.bandwidth_limit",
			Message: "must not be negative",
		}
	}

	validFormats := map[string]bool{"human": true, "json": true}
	if !validFormats[c.Output.Format] {
		return &models.ValidationError{
			Field:   "output.format",
			Message: "must be 'human' or 'json'",
		}
	}

	validLogFormats := map[string]bool{"json": true, "text": true}
	if !validLogFormats[c.Logging.Format] {
		return &models.ValidationError{
			Field:   "logging.format",
			Message: "must be 'json' or 'text'",
		}
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return &models.ValidationError{
			Field:   "logging.level",
			Message: "must be 'debug', 'info', 'warn', or 'error'",
		}
	}

	for i, src := range c.Sources {
		if src == "" {
			return &models.ValidationError{
				Field:   fmt.Sprintf("sources[%d]", i),
				Message: "must not be empty",
			}
		}
	}

	return nil
}

// Resolved holds the final values handed to the scan and backup engines
type Resolved struct {
	Sources        []string
	TargetRoot     string
	TargetBase     string
	Exclude        []string
	CompareMethod  models.CompareMethod
	BufferSize     int
	BandwidthLimit int64
	SessionLogDir  string
	HistoryDB      string
}

// Resolve merges the configuration into absolute paths and checked values
func (c *Config) Resolve() (*Resolved, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if len(c.Sources) == 0 {
		return nil, ErrNoSources
	}

	method, _ := models.ParseCompareMethod(string(c.CompareMethod))

	sources := make([]string, 0, len(c.Sources))
	for _, src := range c.Sources {
		abs, err := filepath.Abs(src)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve source %s: %w", src, err)
		}
		sources = append(sources, abs)
	}

	root, base, err := c.ResolveTarget()
	if err != nil {
		return nil, err
	}

	return &Resolved{
		Sources:        sources,
		TargetRoot:     root,
		TargetBase:     base,
		Exclude:        c.Exclude,
		CompareMethod:  method,
		BufferSize:     c.Performance.BufferSize,
		BandwidthLimit: c.Performance.BandwidthLimit,
		SessionLogDir:  c.SessionLogPath(root),
		HistoryDB:      c.HistoryPath(root),
	}, nil
}

// ResolveTarget returns the absolute target root and the target base below
// it (<root>/<target_subfolder>[/<hostname>])
func (c *Config) ResolveTarget() (root, base string, err error) {
	root = c.Target
	if root == "" {
		root = "."
	}
	root, err = filepath.Abs(root)
	if err != nil {
		return "", "", fmt.Errorf("failed to resolve target: %w", err)
	}

	base = root
	if c.TargetSubfolder != "" {
		base = filepath.Join(base, c.TargetSubfolder)
	}
	if c.PerHost {
		host, err := os.Hostname()
		if err != nil {
			return "", "", fmt.Errorf("failed to get hostname: %w", err)
		}
		base = filepath.Join(base, host)
	}
	return root, base, nil
}

// SessionLogPath returns the session log directory resolved against root
func (c *Config) SessionLogPath(root string) string {
	return resolveAgainst(root, c.SessionLogDir)
}

// HistoryPath returns the history database path resolved against root
func (c *Config) HistoryPath(root string) string {
	return resolveAgainst(root, c.HistoryDB)
}

// resolveAgainst joins relative paths onto root; empty stays empty
func resolveAgainst(root, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(root, p)
}
