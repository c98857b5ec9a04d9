// Package session runs scans and backups in the background and streams their
// events to the caller. At most one scan and one backup are active at a time.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/panjf2000/ants/v2"

	"github.com/sdejongh/mirrorsync/pkg/backup"
	"github.com/sdejongh/mirrorsync/pkg/compare"
	"github.com/sdejongh/mirrorsync/pkg/diff"
	"github.com/sdejongh/mirrorsync/pkg/exclude"
	"github.com/sdejongh/mirrorsync/pkg/history"
	"github.com/sdejongh/mirrorsync/pkg/logging"
	"github.com/sdejongh/mirrorsync/pkg/models"
	"github.com/sdejongh/mirrorsync/pkg/storage"
)

// ErrBusy is returned when a scan (or backup) is requested while another one
// of the same kind is still running
var ErrBusy = errors.New("another run of this kind is already active")

const defaultEventBuffer = 64

// Options configures a Controller. Only Backend is required.
type Options struct {
	Backend storage.Backend
	Logger  logging.Logger

	// SessionLog receives the start, per-file and end records of each backup
	SessionLog *logging.SessionLog

	// History stores the final statistics of each backup
	History *history.Store

	BandwidthLimit int64
	EventBuffer    int
}

// ScanRequest holds the resolved inputs of a scan
type ScanRequest struct {
	Sources       []string
	TargetBase    string
	Exclude       []string
	CompareMethod models.CompareMethod
	BufferSize    int
}

// Controller owns the background workers
type Controller struct {
	backend    storage.Backend
	logger     logging.Logger
	sessionLog *logging.SessionLog
	history    *history.Store
	bandwidth  int64
	bufferSize int

	scanPool   *ants.Pool
	backupPool *ants.Pool
	scanning   atomic.Bool
	backingUp  atomic.Bool

	mu         sync.Mutex
	scanCancel context.CancelFunc
	executor   *backup.Executor
	lastScan   ScanRequest
}

// New creates a controller with one single-worker pool per run kind
func New(opts Options) (*Controller, error) {
	if opts.Backend == nil {
		return nil, fmt.Errorf("session controller requires a storage backend")
	}

	scanPool, err := ants.NewPool(1)
	if err != nil {
		return nil, fmt.Errorf("failed to create scan pool: %w", err)
	}
	backupPool, err := ants.NewPool(1)
	if err != nil {
		scanPool.Release()
		return nil, fmt.Errorf("failed to create backup pool: %w", err)
	}

	bufferSize := opts.EventBuffer
	if bufferSize <= 0 {
		bufferSize = defaultEventBuffer
	}

	return &Controller{
		backend:    opts.Backend,
		logger:     logging.OrNull(opts.Logger),
		sessionLog: opts.SessionLog,
		history:    opts.History,
		bandwidth:  opts.BandwidthLimit,
		bufferSize: bufferSize,
		scanPool:   scanPool,
		backupPool: backupPool,
	}, nil
}

// Close releases the worker pools. Active runs finish first.
func (c *Controller) Close() {
	c.scanPool.Release()
	c.backupPool.Release()
}

// Scanning reports whether a scan is active
func (c *Controller) Scanning() bool {
	return c.scanning.Load()
}

// BackingUp reports whether a backup is active
func (c *Controller) BackingUp() bool {
	return c.backingUp.Load()
}

// StartScan classifies the sources in the background. The returned channel
// carries one ScanProgress event per file followed by ScanFinished, then it
// is closed.
func (c *Controller) StartScan(ctx context.Context, req ScanRequest) (<-chan models.Event, error) {
	comparator, err := compare.New(req.CompareMethod, c.backend, req.BufferSize)
	if err != nil {
		return nil, err
	}
	if !c.scanning.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}

	scanCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.scanCancel = cancel
	c.lastScan = req
	c.mu.Unlock()

	events := make(chan models.Event, c.bufferSize)
	engine := diff.NewEngine(c.backend, comparator, exclude.New(req.Exclude), c.logger)

	err = c.scanPool.Submit(func() {
		defer close(events)
		defer cancel()

		entries, scanErr := engine.Scan(scanCtx, req.Sources, req.TargetBase, func(p string) {
			send(scanCtx, events, models.Event{Kind: models.EventScanProgress, Path: p})
		})

		// The final event must reach the caller even after a cancelled scan
		send(ctx, events, models.Event{Kind: models.EventScanFinished, Entries: entries, Err: scanErr})
		c.scanning.Store(false)
	})
	if err != nil {
		cancel()
		c.scanning.Store(false)
		return nil, fmt.Errorf("failed to start scan: %w", err)
	}
	return events, nil
}

// StartBackup copies the actionable entries in the background. The returned
// channel carries the executor events ending with BackupFinished, then it is
// closed once the session log and history are written.
func (c *Controller) StartBackup(ctx context.Context, entries []models.FileEntry) (<-chan models.Event, error) {
	if !c.backingUp.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}

	internal := make(chan models.Event, c.bufferSize)
	events := make(chan models.Event, c.bufferSize)
	executor := backup.NewExecutor(c.backend, entries, backup.Options{
		Events:         internal,
		BandwidthLimit: c.bandwidth,
		Logger:         c.logger,
	})

	c.mu.Lock()
	c.executor = executor
	req := c.lastScan
	c.mu.Unlock()

	err := c.backupPool.Submit(func() {
		defer close(events)

		sessionID := executor.SessionID()
		if c.sessionLog != nil {
			if err := c.sessionLog.StartSession(sessionID, req.Sources, req.TargetBase); err != nil {
				c.logger.Warn(ctx, "Failed to write session log", logging.Fields{"error": err.Error()})
			}
		}

		forwarded := make(chan struct{})
		go func() {
			defer close(forwarded)
			for ev := range internal {
				if ev.Kind == models.EventFileDone {
					c.logFile(ctx, sessionID, ev)
				}
				send(ctx, events, ev)
			}
		}()

		stats, runErr := executor.Run(ctx)
		close(internal)
		<-forwarded

		if runErr != nil {
			c.logger.Error(ctx, "Backup did not run", runErr, nil)
		} else {
			c.finish(ctx, req, stats)
		}
		c.backingUp.Store(false)
	})
	if err != nil {
		c.backingUp.Store(false)
		return nil, fmt.Errorf("failed to start backup: %w", err)
	}
	return events, nil
}

// Cancel stops the active scan and asks the active backup to stop after the
// file currently being copied
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.scanCancel != nil {
		c.scanCancel()
	}
	if c.executor != nil {
		c.executor.Cancel()
	}
}

func (c *Controller) logFile(ctx context.Context, sessionID string, ev models.Event) {
	if c.sessionLog == nil {
		return
	}
	if err := c.sessionLog.LogFile(sessionID, ev.RelativePath, ev.Status, ev.Bytes, ev.Detail); err != nil {
		c.logger.Warn(ctx, "Failed to write session log", logging.Fields{"error": err.Error()})
	}
}

// finish records the final statistics in the session log and the history
func (c *Controller) finish(ctx context.Context, req ScanRequest, stats *models.BackupStats) {
	if c.sessionLog != nil {
		if err := c.sessionLog.EndSession(stats); err != nil {
			c.logger.Warn(ctx, "Failed to write session log", logging.Fields{"error": err.Error()})
		}
	}
	if c.history != nil {
		// History is written even when the caller's context is already done
		if err := c.history.Record(context.WithoutCancel(ctx), req.Sources, req.TargetBase, stats); err != nil {
			c.logger.Warn(ctx, "Failed to record history", logging.Fields{"error": err.Error()})
		}
	}
}

// send delivers ev unless ctx is done first. A free buffer slot is used
// even when ctx is already done.
func send(ctx context.Context, ch chan<- models.Event, ev models.Event) {
	select {
	case ch <- ev:
		return
	default:
	}
	select {
	case ch <- ev:
	case <-ctx.Done():
	}
}
