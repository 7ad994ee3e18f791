package crawl

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestSequencer(cfg SequencerConfig, store Store) (*Sequencer, *fakeRotator, *recordingPauser) {
	rotator := &fakeRotator{}
	pauser := &recordingPauser{}
	retrier := NewRetrier(rotator, pauser, RetrierConfig{MaxAttempts: 2, BaseDelay: time.Second}, nil)
	return NewSequencer(cfg, retrier, rotator, store, pauser, nil), rotator, pauser
}

func TestSequencerProcessesAllKeys(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	s, _, _ := newTestSequencer(SequencerConfig{SourceKey: "keys.csv", ItemDelay: time.Second}, store)

	var processed []string
	stats, err := s.Run(context.Background(), []string{"k1", "k2", "k3"}, func(_ context.Context, key string, _ IdentityHandle) (Fields, error) {
		processed = append(processed, key)
		return Fields{"name": key}, nil
	})
	require.NoError(t, err)
	require.Equal(t, []string{"k1", "k2", "k3"}, processed)
	require.Equal(t, 3, stats.Added)

	cursor, err := store.GetCursor(context.Background(), "keys.csv")
	require.NoError(t, err)
	require.Equal(t, 3, cursor)
}

func TestSequencerResumesFromCursor(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.cursors["keys.csv"] = 2
	s, _, _ := newTestSequencer(SequencerConfig{SourceKey: "keys.csv"}, store)

	var processed []string
	stats, err := s.Run(context.Background(), []string{"k1", "k2", "k3"}, func(_ context.Context, key string, _ IdentityHandle) (Fields, error) {
		processed = append(processed, key)
		return Fields{"name": key}, nil
	})
	require.NoError(t, err)
	require.Equal(t, []string{"k3"}, processed)
	require.Equal(t, 2, stats.Skipped)
	require.Equal(t, 1, stats.Added)
}

func TestSequencerCursorBeyondInput(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.cursors["keys.csv"] = 10
	s, _, _ := newTestSequencer(SequencerConfig{SourceKey: "keys.csv"}, store)

	stats, err := s.Run(context.Background(), []string{"k1"}, func(context.Context, string, IdentityHandle) (Fields, error) {
		t.Fatal("no key should be processed")
		return nil, nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, stats.Skipped)
}

func TestSequencerExhaustedKeyAdvancesCursor(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	s, _, _ := newTestSequencer(SequencerConfig{SourceKey: "keys.csv"}, store)

	stats, err := s.Run(context.Background(), []string{"bad", "good"}, func(_ context.Context, key string, _ IdentityHandle) (Fields, error) {
		if key == "bad" {
			return nil, errors.New("lookup timed out")
		}
		return Fields{"name": key}, nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, stats.Failed)
	require.Equal(t, 1, stats.Added)

	cursor, err := store.GetCursor(context.Background(), "keys.csv")
	require.NoError(t, err)
	require.Equal(t, 2, cursor)
}

func TestSequencerStopsOnCancel(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	s, _, _ := newTestSequencer(SequencerConfig{SourceKey: "keys.csv"}, store)

	ctx, cancel := context.WithCancel(context.Background())
	stats, err := s.Run(ctx, []string{"k1", "k2", "k3"}, func(_ context.Context, key string, _ IdentityHandle) (Fields, error) {
		if key == "k2" {
			cancel()
		}
		return Fields{"name": key}, nil
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, stats.Added)

	// k1 completed, so resume starts at index 1 and repeats the
	// interrupted k2.
	cursor, cerr := store.GetCursor(context.Background(), "keys.csv")
	require.NoError(t, cerr)
	require.Equal(t, 1, cursor)
}

func TestSequencerRotatesOnCadence(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	s, rotator, _ := newTestSequencer(SequencerConfig{SourceKey: "keys.csv", RotateEvery: 2}, store)

	_, err := s.Run(context.Background(), []string{"k1", "k2", "k3", "k4"}, func(_ context.Context, key string, _ IdentityHandle) (Fields, error) {
		return Fields{"name": key}, nil
	})
	require.NoError(t, err)
	require.Equal(t, 2, rotator.rotations())
	require.Equal(t, []bool{false, false}, rotator.forced)
}
