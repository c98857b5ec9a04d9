// Package backup copies the actionable entries of a scan into the target
// mirror, one file at a time.
package backup

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/sdejongh/mirrorsync/pkg/logging"
	"github.com/sdejongh/mirrorsync/pkg/models"
	"github.com/sdejongh/mirrorsync/pkg/ratelimit"
	"github.com/sdejongh/mirrorsync/pkg/storage"
)

// ErrAlreadyStarted is returned when Run is called on an executor that has
// already run. A new run needs a new executor.
var ErrAlreadyStarted = errors.New("backup already started")

// State is the lifecycle state of an Executor
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateCompleted
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Options configures an Executor
type Options struct {
	// Events receives progress, per-file and speed events followed by one
	// BackupFinished event. The caller owns the channel; nil disables events.
	Events chan<- models.Event

	// BandwidthLimit caps the copy rate in bytes per second (0 = unlimited)
	BandwidthLimit int64

	// SessionID identifies the run; a random uuid is used when empty
	SessionID string

	// WindowSize is the number of samples in the speed estimate
	WindowSize int

	Logger logging.Logger
}

// Executor runs one backup over a fixed list of entries
type Executor struct {
	backend storage.Backend
	entries []models.FileEntry
	opts    Options
	logger  logging.Logger
	limiter *ratelimit.Limiter
	window  *SpeedWindow

	state     atomic.Int32
	cancelled atomic.Bool
}

// NewExecutor creates an idle executor. entries is read but never modified.
func NewExecutor(backend storage.Backend, entries []models.FileEntry, opts Options) *Executor {
	if opts.SessionID == "" {
		opts.SessionID = uuid.NewString()
	}
	return &Executor{
		backend: backend,
		entries: entries,
		opts:    opts,
		logger:  logging.OrNull(opts.Logger).WithFields(logging.Fields{"session": opts.SessionID}),
		limiter: ratelimit.NewLimiter(opts.BandwidthLimit),
		window:  NewSpeedWindow(opts.WindowSize),
	}
}

// SessionID returns the id stamped on the stats of this run
func (e *Executor) SessionID() string {
	return e.opts.SessionID
}

// State returns the current lifecycle state
func (e *Executor) State() State {
	return State(e.state.Load())
}

// Cancel asks the run to stop. The file being copied is finished first.
func (e *Executor) Cancel() {
	e.cancelled.Store(true)
}

// Run copies every NEW and UPDATED entry in order and returns the final
// statistics. Cancellation, through Cancel or ctx, is reported in the stats
// and is not an error.
func (e *Executor) Run(ctx context.Context) (*models.BackupStats, error) {
	if !e.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return nil, ErrAlreadyStarted
	}

	stats := &models.BackupStats{
		SessionID: e.opts.SessionID,
		StartTime: time.Now(),
	}

	var actionable []models.FileEntry
	for _, entry := range e.entries {
		switch {
		case entry.Action.IsActionable():
			actionable = append(actionable, entry)
		case entry.Action == models.ActionSkipped:
			stats.Skipped++
		}
	}

	e.logger.Info(ctx, "Starting backup", logging.Fields{
		"files":   len(actionable),
		"skipped": stats.Skipped,
	})

	total := len(actionable)
	for i, entry := range actionable {
		if e.stopRequested(ctx) {
			stats.Cancelled = true
			break
		}

		e.emit(ctx, models.Event{
			Kind:         models.EventBackupProgress,
			Path:         entry.SourcePath,
			RelativePath: entry.RelativePath,
			Index:        i + 1,
			Total:        total,
		})

		written, elapsed, err := e.copyFile(ctx, entry)
		if err != nil {
			e.recordFailure(ctx, stats, entry, err)
			continue
		}

		stats.Copied++
		stats.BytesCopied += written
		e.emit(ctx, models.Event{
			Kind:         models.EventFileDone,
			Path:         entry.SourcePath,
			RelativePath: entry.RelativePath,
			Status:       models.StatusOK,
			Bytes:        written,
		})

		e.window.Push(written, elapsed)
		e.emit(ctx, models.Event{
			Kind:           models.EventSpeedUpdate,
			BytesPerSecond: e.window.Rate(),
		})
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)

	final := StateCompleted
	if stats.Cancelled {
		final = StateCancelled
	}
	e.state.Store(int32(final))

	e.logger.Info(ctx, "Backup finished", logging.Fields{
		"copied":    stats.Copied,
		"skipped":   stats.Skipped,
		"errors":    stats.Errors,
		"bytes":     stats.BytesCopied,
		"cancelled": stats.Cancelled,
		"duration":  stats.Duration.String(),
	})

	e.emit(ctx, models.Event{Kind: models.EventBackupFinished, Stats: stats})
	return stats, nil
}

// stopRequested reports whether Cancel was called or ctx is done
func (e *Executor) stopRequested(ctx context.Context) bool {
	if e.cancelled.Load() {
		return true
	}
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

// copyFile creates the parent chain and copies one entry, preserving its
// modification time and permission bits. elapsed covers the content copy only.
func (e *Executor) copyFile(ctx context.Context, entry models.FileEntry) (written int64, elapsed time.Duration, err error) {
	if err := e.backend.MkdirAll(filepath.Dir(entry.TargetPath)); err != nil {
		return 0, 0, err
	}

	reader, err := e.backend.Open(entry.SourcePath)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read source file: %w", err)
	}
	defer reader.Close()

	info, err := e.backend.Stat(entry.SourcePath)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to get source metadata: %w", err)
	}

	// An in-flight copy always completes, even after ctx is cancelled
	limited := ratelimit.NewReader(context.WithoutCancel(ctx), reader, e.limiter)

	start := time.Now()
	written, err = e.backend.Write(entry.TargetPath, limited, info)
	elapsed = time.Since(start)
	if err != nil {
		return written, elapsed, fmt.Errorf("failed to write destination file: %w", err)
	}
	return written, elapsed, nil
}

func (e *Executor) recordFailure(ctx context.Context, stats *models.BackupStats, entry models.FileEntry, err error) {
	status := models.StatusError
	detail := fmt.Sprintf("%s: %v", entry.RelativePath, err)
	if errors.Is(err, fs.ErrPermission) {
		status = models.StatusPermissionError
		detail = entry.RelativePath + ": permission denied"
	}

	stats.Errors++
	stats.ErrorDetails = append(stats.ErrorDetails, detail)

	e.logger.Error(ctx, "Copy failed", err, logging.Fields{
		"path":   entry.RelativePath,
		"status": status.String(),
	})

	e.emit(ctx, models.Event{
		Kind:         models.EventFileDone,
		Path:         entry.SourcePath,
		RelativePath: entry.RelativePath,
		Status:       status,
		Detail:       detail,
	})
}

// emit delivers ev in order. Buffer space always wins; otherwise it gives up
// when ctx is done so an absent receiver cannot block the run forever.
func (e *Executor) emit(ctx context.Context, ev models.Event) {
	if e.opts.Events == nil {
		return
	}
	select {
	case e.opts.Events <- ev:
		return
	default:
	}
	select {
	case e.opts.Events <- ev:
	case <-ctx.Done():
	}
}
