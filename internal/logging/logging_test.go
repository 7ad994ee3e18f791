package logging

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewBuildsBothModes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		development bool
	}{
		{name: "development", development: true},
		{name: "production", development: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			logger, err := New(tc.development)
			require.NoError(t, err)
			require.NotNil(t, logger)
			logger.Info("logger ready")
			logger.Sync() //nolint:errcheck // best-effort flush
		})
	}
}
