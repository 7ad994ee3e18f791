package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/guidewatch/guidewatch/internal/crawl"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"), fixedClock{
		now: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, s.Close())
	})
	return s
}

func TestUpsertLifecycle(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()

	v1 := crawl.Fields{"name": "Chez Nous", "stars": "2"}
	class, err := s.Upsert(ctx, "chez-nous", v1, crawl.Fingerprint(v1))
	require.NoError(t, err)
	require.Equal(t, crawl.ClassificationAdded, class)

	class, err = s.Upsert(ctx, "chez-nous", v1, crawl.Fingerprint(v1))
	require.NoError(t, err)
	require.Equal(t, crawl.ClassificationUnchanged, class)

	v2 := crawl.Fields{"name": "Chez Nous", "stars": "3"}
	class, err = s.Upsert(ctx, "chez-nous", v2, crawl.Fingerprint(v2))
	require.NoError(t, err)
	require.Equal(t, crawl.ClassificationModified, class)

	fp, ok, err := s.GetFingerprint(ctx, "chez-nous")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, crawl.Fingerprint(v2), fp)

	// The prior version landed in history.
	var count int
	require.NoError(t, s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM record_history WHERE key = ?`, "chez-nous").Scan(&count))
	require.Equal(t, 1, count)
}

func TestGetFingerprintMissing(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	_, ok, err := s.GetFingerprint(context.Background(), "nope")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCheckpointRoundTrip(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()

	loaded, err := s.LoadCheckpoint(ctx, "listing")
	require.NoError(t, err)
	require.Nil(t, loaded)

	cp := crawl.NewCheckpoint(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	cp.AddDiscovered([]string{"a", "b", "c"})
	cp.MarkProcessed("a")
	cp.Phase = crawl.PhaseFetching
	cp.LastScannedPage = 4
	require.NoError(t, s.SaveCheckpoint(ctx, "listing", cp))

	loaded, err = s.LoadCheckpoint(ctx, "listing")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.Equal(t, crawl.PhaseFetching, loaded.Phase)
	require.Equal(t, 4, loaded.LastScannedPage)
	require.Equal(t, []string{"b", "c"}, loaded.Remaining())

	// Saving again overwrites in place.
	loaded.MarkProcessed("b")
	require.NoError(t, s.SaveCheckpoint(ctx, "listing", loaded))
	loaded, err = s.LoadCheckpoint(ctx, "listing")
	require.NoError(t, err)
	require.Equal(t, []string{"c"}, loaded.Remaining())

	require.NoError(t, s.DeleteCheckpoint(ctx, "listing"))
	loaded, err = s.LoadCheckpoint(ctx, "listing")
	require.NoError(t, err)
	require.Nil(t, loaded)
}

func TestCursorRoundTrip(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()

	idx, err := s.GetCursor(ctx, "keys.csv")
	require.NoError(t, err)
	require.Zero(t, idx)

	require.NoError(t, s.SetCursor(ctx, "keys.csv", 3))
	require.NoError(t, s.SetCursor(ctx, "keys.csv", 9))

	idx, err = s.GetCursor(ctx, "keys.csv")
	require.NoError(t, err)
	require.Equal(t, 9, idx)
}
