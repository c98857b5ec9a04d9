package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	"github.com/sdejongh/mirrorsync/pkg/config"
	"github.com/sdejongh/mirrorsync/pkg/history"
	"github.com/sdejongh/mirrorsync/pkg/logging"
	"github.com/sdejongh/mirrorsync/pkg/models"
	"github.com/sdejongh/mirrorsync/pkg/session"
	"github.com/sdejongh/mirrorsync/pkg/storage"
)

// environment bundles everything a scan or backup command needs
type environment struct {
	cfg        *config.Config
	resolved   *config.Resolved
	logger     logging.Logger
	sessionLog *logging.SessionLog
	history    *history.Store
	ctrl       *session.Controller
}

// newEnvironment loads the configuration, applies f and opens the logger,
// the session log, the history store and the session controller.
// withRecords is false for commands that never copy.
func newEnvironment(ctx context.Context, f *RunFlags, withRecords bool) (*environment, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := applyFlagsToConfig(cfg, f); err != nil {
		return nil, err
	}

	resolved, err := cfg.Resolve()
	if err != nil {
		if errors.Is(err, config.ErrNoSources) {
			return nil, fmt.Errorf("%w (use --source or add sources to the config file)", err)
		}
		return nil, err
	}
	if err := validateLayout(resolved); err != nil {
		return nil, err
	}

	logger, err := createLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	env := &environment{cfg: cfg, resolved: resolved, logger: logger}

	if withRecords {
		if resolved.SessionLogDir != "" {
			env.sessionLog, err = logging.NewSessionLog(resolved.SessionLogDir)
			if err != nil {
				env.Close()
				return nil, err
			}
		}
		if resolved.HistoryDB != "" {
			env.history, err = history.Open(ctx, resolved.HistoryDB)
			if err != nil {
				// Backups still run without history, e.g. on a read-only medium
				logger.Warn(ctx, "History disabled", logging.Fields{"error": err.Error()})
				env.history = nil
			}
		}
	}

	env.ctrl, err = session.New(session.Options{
		Backend:        storage.NewLocal().WithLogger(logger),
		Logger:         logger,
		SessionLog:     env.sessionLog,
		History:        env.history,
		BandwidthLimit: resolved.BandwidthLimit,
	})
	if err != nil {
		env.Close()
		return nil, err
	}

	return env, nil
}

// Close releases every resource opened by newEnvironment
func (e *environment) Close() {
	if e.ctrl != nil {
		e.ctrl.Close()
	}
	if e.history != nil {
		e.history.Close()
	}
	if e.logger != nil {
		e.logger.Close()
	}
}

// scanRequest builds the scan input from the resolved configuration
func (e *environment) scanRequest() session.ScanRequest {
	return session.ScanRequest{
		Sources:       e.resolved.Sources,
		TargetBase:    e.resolved.TargetBase,
		Exclude:       e.resolved.Exclude,
		CompareMethod: e.resolved.CompareMethod,
		BufferSize:    e.resolved.BufferSize,
	}
}

// scan runs a scan and waits for its result. A live counter is written to
// status when it is a terminal.
func (e *environment) scan(ctx context.Context, status io.Writer) ([]models.FileEntry, error) {
	events, err := e.ctrl.StartScan(ctx, e.scanRequest())
	if err != nil {
		return nil, err
	}

	live := !globalFlags.Quiet && isTerminal(status)
	visited := 0
	var entries []models.FileEntry
	var scanErr error

	for ev := range events {
		switch ev.Kind {
		case models.EventScanProgress:
			visited++
			if live && visited%100 == 0 {
				fmt.Fprintf(status, "\rScanning... %d files", visited)
			}
		case models.EventScanFinished:
			entries, scanErr = ev.Entries, ev.Err
		}
	}
	if live && visited >= 100 {
		fmt.Fprintf(status, "\r\033[K")
	}

	if scanErr != nil {
		return entries, fmt.Errorf("scan interrupted: %w", scanErr)
	}
	return entries, nil
}

// createLogger creates the diagnostic logger from configuration
func createLogger(cfg config.LoggingConfig) (logging.Logger, error) {
	format := logging.FormatText
	if cfg.Format == "json" {
		format = logging.FormatJSON
	}

	return logging.New(logging.Config{
		Path:       cfg.File,
		Format:     format,
		Level:      logging.ParseLevel(cfg.Level),
		MaxSize:    10 * 1024 * 1024, // 10 MB
		MaxBackups: 5,
	})
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	return ok && term.IsTerminal(int(file.Fd()))
}
