package system

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNowReportsUTC(t *testing.T) {
	t.Parallel()

	now := New().Now()
	require.Equal(t, time.UTC, now.Location())
	require.WithinDuration(t, time.Now().UTC(), now, time.Minute)
}
