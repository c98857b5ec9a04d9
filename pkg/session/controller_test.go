package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sdejongh/mirrorsync/pkg/history"
	"github.com/sdejongh/mirrorsync/pkg/logging"
	"github.com/sdejongh/mirrorsync/pkg/models"
	"github.com/sdejongh/mirrorsync/pkg/storage"
)

// TestHelper wires a controller to a temp source tree and target base
type TestHelper struct {
	t          *testing.T
	dir        string
	source     string
	target     string
	ctrl       *Controller
	history    *history.Store
	sessionLog *logging.SessionLog
}

func NewTestHelper(t *testing.T) *TestHelper {
	t.Helper()
	dir := t.TempDir()
	ctx := context.Background()

	store, err := history.Open(ctx, filepath.Join(dir, "target", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	sessionLog, err := logging.NewSessionLog(filepath.Join(dir, "target", "Logs"))
	require.NoError(t, err)

	ctrl, err := New(Options{
		Backend:    storage.NewLocal(),
		SessionLog: sessionLog,
		History:    store,
	})
	require.NoError(t, err)
	t.Cleanup(ctrl.Close)

	return &TestHelper{
		t:          t,
		dir:        dir,
		source:     filepath.Join(dir, "data", "docs"),
		target:     filepath.Join(dir, "target", "Backups", "host"),
		ctrl:       ctrl,
		history:    store,
		sessionLog: sessionLog,
	}
}

func (h *TestHelper) WriteSource(rel, content string) string {
	h.t.Helper()
	p := filepath.Join(h.source, filepath.FromSlash(rel))
	require.NoError(h.t, os.MkdirAll(filepath.Dir(p), 0755))
	require.NoError(h.t, os.WriteFile(p, []byte(content), 0644))
	return p
}

func (h *TestHelper) Request() ScanRequest {
	return ScanRequest{
		Sources:       []string{h.source},
		TargetBase:    h.target,
		CompareMethod: models.CompareTimestampSize,
		BufferSize:    65536,
	}
}

// Scan runs a scan to completion and returns its entries
func (h *TestHelper) Scan() []models.FileEntry {
	h.t.Helper()
	events, err := h.ctrl.StartScan(context.Background(), h.Request())
	require.NoError(h.t, err)

	var finished *models.Event
	progress := 0
	for ev := range events {
		switch ev.Kind {
		case models.EventScanProgress:
			progress++
		case models.EventScanFinished:
			finished = &ev
		}
	}
	require.NotNil(h.t, finished, "scan must end with ScanFinished")
	require.NoError(h.t, finished.Err)
	require.LessOrEqual(h.t, progress, len(finished.Entries))
	return finished.Entries
}

// Backup runs a backup to completion and returns the final stats and all events
func (h *TestHelper) Backup(entries []models.FileEntry) (*models.BackupStats, []models.Event) {
	h.t.Helper()
	events, err := h.ctrl.StartBackup(context.Background(), entries)
	require.NoError(h.t, err)

	var all []models.Event
	for ev := range events {
		all = append(all, ev)
	}
	require.NotEmpty(h.t, all)
	last := all[len(all)-1]
	require.Equal(h.t, models.EventBackupFinished, last.Kind)
	return last.Stats, all
}

func TestNewRequiresBackend(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
}

func TestScanBackupScan(t *testing.T) {
	h := NewTestHelper(t)
	h.WriteSource("a.txt", "alpha")
	h.WriteSource("sub/deeper/b.txt", "bravo")

	entries := h.Scan()
	counts := models.CountByAction(entries)
	assert.Equal(t, 2, counts[models.ActionNew])

	stats, _ := h.Backup(entries)
	assert.Equal(t, 2, stats.Copied)
	assert.Equal(t, models.RunSuccess, stats.Status())

	data, err := os.ReadFile(filepath.Join(h.target, "docs", "sub", "deeper", "b.txt"))
	require.NoError(t, err)
	assert.Equal(t, "bravo", string(data))

	// A second scan finds nothing to do
	again := h.Scan()
	actionable, _ := models.Actionable(again)
	assert.Empty(t, actionable)
	assert.Equal(t, 2, models.CountByAction(again)[models.ActionSkipped])

	t.Run("HistoryRecorded", func(t *testing.T) {
		run, err := h.history.Last(context.Background())
		require.NoError(t, err)
		require.NotNil(t, run)
		assert.Equal(t, stats.SessionID, run.SessionID)
		assert.Equal(t, 2, run.Copied)
		assert.Equal(t, []string{h.source}, run.Sources)
		assert.Equal(t, h.target, run.Target)
	})

	t.Run("SessionLogWritten", func(t *testing.T) {
		summary, err := h.sessionLog.LastSession()
		require.NoError(t, err)
		require.NotNil(t, summary)
		assert.Equal(t, stats.SessionID, summary.SessionID)
		assert.True(t, summary.Finished)
		assert.Equal(t, 2, summary.Copied)
	})
}

func TestNewSkippedUnreadable(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission checks do not apply to root")
	}

	h := NewTestHelper(t)
	h.WriteSource("A.bin", string(make([]byte, 100)))
	b := h.WriteSource("B.bin", string(make([]byte, 200)))
	c := h.WriteSource("C.bin", "unreadable")

	// B is already mirrored with the same size and time
	mirrored := filepath.Join(h.target, "docs", "B.bin")
	require.NoError(t, os.MkdirAll(filepath.Dir(mirrored), 0755))
	require.NoError(t, os.WriteFile(mirrored, make([]byte, 200), 0644))
	mtime := time.Now().Add(-time.Hour).Truncate(time.Second)
	require.NoError(t, os.Chtimes(b, mtime, mtime))
	require.NoError(t, os.Chtimes(mirrored, mtime, mtime))

	require.NoError(t, os.Chmod(c, 0000))
	t.Cleanup(func() { os.Chmod(c, 0644) })

	entries := h.Scan()
	actions := map[string]models.FileAction{}
	for _, e := range entries {
		actions[filepath.Base(e.RelativePath)] = e.Action
	}
	assert.Equal(t, models.ActionNew, actions["A.bin"])
	assert.Equal(t, models.ActionSkipped, actions["B.bin"])
	assert.Equal(t, models.ActionError, actions["C.bin"])

	stats, _ := h.Backup(entries)
	assert.Equal(t, 1, stats.Copied)
	assert.Equal(t, 1, stats.Skipped)
	assert.Zero(t, stats.Errors)
	assert.Equal(t, int64(100), stats.BytesCopied)
}

func TestBackupEvents(t *testing.T) {
	h := NewTestHelper(t)
	h.WriteSource("one.txt", "1")
	h.WriteSource("two.txt", "22")

	stats, events := h.Backup(h.Scan())

	var done []models.Event
	for _, ev := range events {
		if ev.Kind == models.EventFileDone {
			done = append(done, ev)
		}
	}
	require.Len(t, done, 2)
	for _, ev := range done {
		assert.Equal(t, models.StatusOK, ev.Status)
	}
	assert.Equal(t, int64(3), stats.BytesCopied)
	assert.False(t, h.ctrl.BackingUp())
}

func TestBusy(t *testing.T) {
	h := NewTestHelper(t)
	h.WriteSource("a.txt", "a")
	entries := h.Scan()

	first, err := h.ctrl.StartBackup(context.Background(), entries)
	require.NoError(t, err)

	_, err = h.ctrl.StartBackup(context.Background(), entries)
	assert.ErrorIs(t, err, ErrBusy)

	for range first {
	}
	assert.False(t, h.ctrl.BackingUp())

	// The flag is cleared before the channel closes
	second, err := h.ctrl.StartBackup(context.Background(), nil)
	require.NoError(t, err)
	for range second {
	}
}

func TestScanUnknownMethod(t *testing.T) {
	h := NewTestHelper(t)
	req := h.Request()
	req.CompareMethod = "md5"

	_, err := h.ctrl.StartScan(context.Background(), req)
	assert.Error(t, err)
	assert.False(t, h.ctrl.Scanning())
}

func TestCancelScan(t *testing.T) {
	h := NewTestHelper(t)
	for i := 0; i < 50; i++ {
		h.WriteSource(fmt.Sprintf("many/f%02d.txt", i), "x")
	}

	// A one-slot buffer keeps the scan from running far ahead of the reader
	ctrl, err := New(Options{Backend: storage.NewLocal(), EventBuffer: 1})
	require.NoError(t, err)
	defer ctrl.Close()

	events, err := ctrl.StartScan(context.Background(), h.Request())
	require.NoError(t, err)

	var finished *models.Event
	for ev := range events {
		if ev.Kind == models.EventScanProgress {
			ctrl.Cancel()
		}
		if ev.Kind == models.EventScanFinished {
			finished = &ev
		}
	}
	require.NotNil(t, finished)
	assert.ErrorIs(t, finished.Err, context.Canceled)
	assert.Less(t, len(finished.Entries), 50)
	assert.False(t, ctrl.Scanning())
}

func TestSendPrefersFreeBuffer(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for i := 0; i < 50; i++ {
		ch := make(chan models.Event, 1)
		send(ctx, ch, models.Event{Kind: models.EventScanFinished})
		require.Len(t, ch, 1, "run %d", i)
	}

	// A full buffer with ctx done must not block
	full := make(chan models.Event)
	send(ctx, full, models.Event{Kind: models.EventScanFinished})
}
