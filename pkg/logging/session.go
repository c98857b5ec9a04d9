package logging

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	"github.com/sdejongh/mirrorsync/pkg/models"
)

const sessionDateLayout = "2006-01-02"

// SessionLog appends backup sessions to one JSON-lines file per day
// (<dir>/YYYY-MM-DD.log). Several sessions on the same day share a file.
type SessionLog struct {
	dir string
	now func() time.Time
	mu  sync.Mutex
}

// SessionSummary describes the most recent session found in the log
type SessionSummary struct {
	LogFile     string
	Date        string
	SessionID   string
	Started     time.Time
	Finished    bool
	Copied      int
	Skipped     int
	Errors      int
	BytesCopied int64
	Cancelled   bool
}

// sessionRecord is the union of fields written by the session log
type sessionRecord struct {
	Event       string    `json:"event"`
	Session     string    `json:"session"`
	Time        time.Time `json:"time"`
	Copied      int       `json:"copied"`
	Skipped     int       `json:"skipped"`
	Errors      int       `json:"errors"`
	BytesCopied int64     `json:"bytes_copied"`
	Cancelled   bool      `json:"cancelled"`
}

// NewSessionLog creates the log directory if needed
func NewSessionLog(dir string) (*SessionLog, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create session log directory: %w", err)
	}
	return &SessionLog{dir: dir, now: time.Now}, nil
}

// Path returns today's log file
func (s *SessionLog) Path() string {
	return filepath.Join(s.dir, s.now().Format(sessionDateLayout)+".log")
}

// StartSession records the session header
func (s *SessionLog) StartSession(sessionID string, sources []string, target string) error {
	host, _ := os.Hostname()
	return s.write(func(zl zerolog.Logger) {
		zl.Info().
			Str("event", "session_start").
			Str("session", sessionID).
			Str("host", host).
			Str("os", runtime.GOOS+"/"+runtime.GOARCH).
			Strs("sources", sources).
			Str("target", target).
			Msg("backup session start")
	})
}

// LogFile records the outcome for one file
func (s *SessionLog) LogFile(sessionID, relativePath string, status models.CopyStatus, size int64, detail string) error {
	return s.write(func(zl zerolog.Logger) {
		ev := zl.Info()
		if status != models.StatusOK {
			ev = zl.Warn()
		}
		ev = ev.Str("event", "file").
			Str("session", sessionID).
			Str("path", relativePath).
			Stringer("status", status)
		if size > 0 {
			ev = ev.Int64("size", size).Str("data", humanize.IBytes(uint64(size)))
		}
		if detail != "" {
			ev = ev.Str("detail", detail)
		}
		ev.Send()
	})
}

// EndSession records the final statistics
func (s *SessionLog) EndSession(stats *models.BackupStats) error {
	return s.write(func(zl zerolog.Logger) {
		zl.Info().
			Str("event", "session_end").
			Str("session", stats.SessionID).
			Int("copied", stats.Copied).
			Int("skipped", stats.Skipped).
			Int("errors", stats.Errors).
			Int64("bytes_copied", stats.BytesCopied).
			Str("data", humanize.IBytes(uint64(stats.BytesCopied))).
			Dur("duration", stats.Duration).
			Bool("cancelled", stats.Cancelled).
			Str("status", string(stats.Status())).
			Strs("error_details", stats.ErrorDetails).
			Msg("backup session end")
	})
}

func (s *SessionLog) write(fn func(zerolog.Logger)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.OpenFile(s.Path(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open session log: %w", err)
	}
	fn(zerolog.New(file).With().Timestamp().Logger())
	return file.Close()
}

// LastSession returns the most recent session of the newest log file, or nil
// when there is none
func (s *SessionLog) LastSession() (*SessionSummary, error) {
	names, err := filepath.Glob(filepath.Join(s.dir, "*.log"))
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, nil
	}
	sort.Strings(names)
	newest := names[len(names)-1]

	file, err := os.Open(newest)
	if err != nil {
		return nil, fmt.Errorf("failed to open session log: %w", err)
	}
	defer file.Close()

	var last *SessionSummary
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var rec sessionRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			continue
		}
		switch rec.Event {
		case "session_start":
			last = &SessionSummary{
				LogFile:   filepath.Base(newest),
				Date:      strings.TrimSuffix(filepath.Base(newest), ".log"),
				SessionID: rec.Session,
				Started:   rec.Time,
			}
		case "session_end":
			if last != nil && last.SessionID == rec.Session {
				last.Finished = true
				last.Copied = rec.Copied
				last.Skipped = rec.Skipped
				last.Errors = rec.Errors
				last.BytesCopied = rec.BytesCopied
				last.Cancelled = rec.Cancelled
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read session log: %w", err)
	}
	return last, nil
}
