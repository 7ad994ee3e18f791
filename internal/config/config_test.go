package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	require.True(t, cfg.Logging.Development)
	require.Equal(t, "sqlite", cfg.Store.Backend)
	require.Equal(t, "guidewatch.db", cfg.Store.Path)
	require.Equal(t, "127.0.0.1:9050", cfg.Identity.SocksAddr)
	require.Equal(t, 10, cfg.Identity.MinRotationIntervalSec)
	require.Equal(t, 3, cfg.Fetch.MaxAttempts)
	require.Equal(t, 5, cfg.Fetch.BaseDelaySec)
	require.Equal(t, 3, cfg.Crawl.EmptyPageThreshold)
	require.Equal(t, 25, cfg.Crawl.BatchSize)
	require.False(t, cfg.Captcha.Enabled)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
store:
  backend: memory
crawl:
  listing_url_template: "https://guide.test/list?page=%d"
  max_pages: 50
lookup:
  key_pattern: "^[A-Z]{2}\\d{6}$"
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "memory", cfg.Store.Backend)
	require.Equal(t, 50, cfg.Crawl.MaxPages)
	require.Equal(t, `^[A-Z]{2}\d{6}$`, cfg.Lookup.KeyPattern)
	// Defaults still apply to untouched sections.
	require.Equal(t, 3, cfg.Fetch.MaxAttempts)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() Config {
		cfg, err := Load("")
		require.NoError(t, err)
		return cfg
	}

	t.Run("sqlite requires path", func(t *testing.T) {
		cfg := base()
		cfg.Store.Path = ""
		require.Error(t, cfg.Validate())
	})

	t.Run("postgres requires dsn", func(t *testing.T) {
		cfg := base()
		cfg.Store.Backend = "postgres"
		require.Error(t, cfg.Validate())
		cfg.Store.DSN = "postgres://localhost/guidewatch"
		require.NoError(t, cfg.Validate())
	})

	t.Run("unknown backend", func(t *testing.T) {
		cfg := base()
		cfg.Store.Backend = "etcd"
		require.Error(t, cfg.Validate())
	})

	t.Run("external tor requires addresses", func(t *testing.T) {
		cfg := base()
		cfg.Identity.SocksAddr = ""
		require.Error(t, cfg.Validate())

		cfg = base()
		cfg.Identity.SocksAddr = ""
		cfg.Identity.Embedded = true
		require.NoError(t, cfg.Validate())
	})

	t.Run("scan needs a stop condition", func(t *testing.T) {
		cfg := base()
		cfg.Crawl.EmptyPageThreshold = 0
		cfg.Crawl.MaxPages = 0
		require.Error(t, cfg.Validate())
	})

	t.Run("captcha requires api key", func(t *testing.T) {
		cfg := base()
		cfg.Captcha.Enabled = true
		require.Error(t, cfg.Validate())
		cfg.Captcha.APIKey = "key"
		require.NoError(t, cfg.Validate())
	})
}
