package crawl

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCheckpointAddDiscoveredDedups(t *testing.T) {
	t.Parallel()

	cp := NewCheckpoint(time.Now())
	added := cp.AddDiscovered([]string{"a", "b", "a", "", "c"})
	require.Equal(t, 3, added)
	require.Equal(t, []string{"a", "b", "c"}, cp.Discovered)

	added = cp.AddDiscovered([]string{"b", "d"})
	require.Equal(t, 1, added)
	require.Equal(t, []string{"a", "b", "c", "d"}, cp.Discovered)
}

func TestCheckpointRemainingPreservesOrder(t *testing.T) {
	t.Parallel()

	cp := NewCheckpoint(time.Now())
	cp.AddDiscovered([]string{"a", "b", "c", "d"})
	cp.MarkProcessed("b")
	cp.MarkProcessed("d")

	require.Equal(t, []string{"a", "c"}, cp.Remaining())
}

func TestCheckpointRemainingToleratesExcessProcessed(t *testing.T) {
	t.Parallel()

	// A damaged persisted state can list processed URLs that were never
	// discovered; Remaining must not panic on the negative difference.
	cp := &Checkpoint{
		Discovered: []string{"a"},
		Processed:  map[string]bool{"x": true, "y": true},
	}

	require.Equal(t, []string{"a"}, cp.Remaining())
}

func TestCheckpointMarkProcessedIgnoresUnknown(t *testing.T) {
	t.Parallel()

	cp := NewCheckpoint(time.Now())
	cp.AddDiscovered([]string{"a"})
	cp.MarkProcessed("never-discovered")

	require.Empty(t, cp.Processed)
}

func TestCheckpointSurvivesJSONRoundTrip(t *testing.T) {
	t.Parallel()

	cp := NewCheckpoint(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	cp.AddDiscovered([]string{"a", "b"})
	cp.MarkProcessed("a")
	cp.Phase = PhaseFetching
	cp.LastScannedPage = 7

	raw, err := json.Marshal(cp)
	require.NoError(t, err)

	var restored Checkpoint
	require.NoError(t, json.Unmarshal(raw, &restored))

	require.Equal(t, PhaseFetching, restored.Phase)
	require.Equal(t, 7, restored.LastScannedPage)
	require.Equal(t, []string{"b"}, restored.Remaining())

	// Dedup state must rebuild after the round trip.
	require.Equal(t, 0, restored.AddDiscovered([]string{"a", "b"}))
}

func TestCheckpointCloneIsDeep(t *testing.T) {
	t.Parallel()

	cp := NewCheckpoint(time.Now())
	cp.AddDiscovered([]string{"a", "b"})
	clone := cp.Clone()

	clone.AddDiscovered([]string{"c"})
	clone.MarkProcessed("a")

	require.Equal(t, []string{"a", "b"}, cp.Discovered)
	require.Empty(t, cp.Processed)

	var nilCP *Checkpoint
	require.Nil(t, nilCP.Clone())
}
