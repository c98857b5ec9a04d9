package history

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sdejongh/mirrorsync/pkg/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "nested", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func statsAt(id string, start time.Time) *models.BackupStats {
	return &models.BackupStats{
		SessionID:   id,
		Copied:      3,
		Skipped:     7,
		BytesCopied: 4096,
		StartTime:   start,
		EndTime:     start.Add(1500 * time.Millisecond),
		Duration:    1500 * time.Millisecond,
	}
}

func TestStoreEmpty(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	runs, err := store.Recent(ctx, 5)
	require.NoError(t, err)
	assert.Empty(t, runs)

	last, err := store.Last(ctx)
	require.NoError(t, err)
	assert.Nil(t, last)

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoreRecord(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	start := time.Date(2024, 6, 1, 18, 30, 0, 123456789, time.UTC)

	stats := statsAt("session-1", start)
	stats.Errors = 1
	require.NoError(t, store.Record(ctx, []string{"/data/docs", "/data/photos"}, "/mnt/usb/Backups/host", stats))

	run, err := store.Get(ctx, "session-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"/data/docs", "/data/photos"}, run.Sources)
	assert.Equal(t, "/mnt/usb/Backups/host", run.Target)
	assert.Equal(t, 3, run.Copied)
	assert.Equal(t, 7, run.Skipped)
	assert.Equal(t, 1, run.Errors)
	assert.Equal(t, int64(4096), run.BytesCopied)
	assert.Equal(t, models.RunPartial, run.Status)
	assert.True(t, run.StartedAt.Equal(start))
	assert.Equal(t, 1500*time.Millisecond, run.Duration)

	t.Run("DuplicateSession", func(t *testing.T) {
		assert.Error(t, store.Record(ctx, nil, "/mnt", stats))
	})
}

func TestStoreRecentOrder(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	// Inserted out of order; the zone must not affect ordering
	for _, i := range []int{2, 0, 3, 1} {
		start := base.Add(time.Duration(i) * time.Hour).In(time.FixedZone("CET", 3600))
		require.NoError(t, store.Record(ctx, []string{"/src"}, "/dst", statsAt(fmt.Sprintf("s%d", i), start)))
	}

	runs, err := store.Recent(ctx, 3)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "s3", runs[0].SessionID)
	assert.Equal(t, "s2", runs[1].SessionID)
	assert.Equal(t, "s1", runs[2].SessionID)

	last, err := store.Last(ctx)
	require.NoError(t, err)
	assert.Equal(t, "s3", last.SessionID)

	all, err := store.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestStoreCancelled(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	stats := statsAt("cancelled", time.Now())
	stats.Cancelled = true
	require.NoError(t, store.Record(ctx, []string{"/src"}, "/dst", stats))

	run, err := store.Get(ctx, "cancelled")
	require.NoError(t, err)
	assert.True(t, run.Cancelled)
	assert.Equal(t, models.RunCancelled, run.Status)
}

func TestStoreReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	ctx := context.Background()

	store, err := Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, store.Record(ctx, []string{"/src"}, "/dst", statsAt("persisted", time.Now())))
	require.NoError(t, store.Close())

	reopened, err := Open(ctx, path)
	require.NoError(t, err)
	defer reopened.Close()

	run, err := reopened.Get(ctx, "persisted")
	require.NoError(t, err)
	assert.Equal(t, "persisted", run.SessionID)
}
