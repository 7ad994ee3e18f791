// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Logging  LoggingConfig  `mapstructure:"logging"`
	Server   ServerConfig   `mapstructure:"server"`
	Store    StoreConfig    `mapstructure:"store"`
	Identity IdentityConfig `mapstructure:"identity"`
	Fetch    FetchConfig    `mapstructure:"fetch"`
	Crawl    CrawlConfig    `mapstructure:"crawl"`
	Lookup   LookupConfig   `mapstructure:"lookup"`
	Captcha  CaptchaConfig  `mapstructure:"captcha"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// ServerConfig controls the metrics/health HTTP listener.
type ServerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// StoreConfig selects and configures the persistence backend.
type StoreConfig struct {
	// Backend is one of "sqlite", "postgres", or "memory".
	Backend string `mapstructure:"backend"`
	// Path is the sqlite database file.
	Path string `mapstructure:"path"`
	// DSN is the postgres connection string.
	DSN string `mapstructure:"dsn"`
}

// IdentityConfig governs the rotating Tor identity.
type IdentityConfig struct {
	// Embedded launches a private Tor daemon instead of connecting to an
	// external one.
	Embedded               bool   `mapstructure:"embedded"`
	SocksAddr              string `mapstructure:"socks_addr"`
	ControlAddr            string `mapstructure:"control_addr"`
	ControlPassword        string `mapstructure:"control_password"`
	MinRotationIntervalSec int    `mapstructure:"min_rotation_interval_seconds"`
	StartupTimeoutSec      int    `mapstructure:"startup_timeout_seconds"`
}

// FetchConfig configures fetch retry behavior and block detection.
type FetchConfig struct {
	TimeoutSeconds  int      `mapstructure:"timeout_seconds"`
	MaxAttempts     int      `mapstructure:"max_attempts"`
	BaseDelaySec    int      `mapstructure:"base_delay_seconds"`
	BlockMarkers    []string `mapstructure:"block_markers"`
	UserAgents      []string `mapstructure:"user_agents"`
	NavTimeoutSec   int      `mapstructure:"nav_timeout_seconds"`
	HeadlessEnabled bool     `mapstructure:"headless_enabled"`
}

// CrawlConfig governs the scan-then-fetch listing crawl.
type CrawlConfig struct {
	CheckpointKey          string            `mapstructure:"checkpoint_key"`
	ListingURLTemplate     string            `mapstructure:"listing_url_template"`
	ItemSelector           string            `mapstructure:"item_selector"`
	BaseURL                string            `mapstructure:"base_url"`
	FieldSelectors         map[string]string `mapstructure:"field_selectors"`
	KeyPattern             string            `mapstructure:"key_pattern"`
	MaxPages               int               `mapstructure:"max_pages"`
	EmptyPageThreshold     int               `mapstructure:"empty_page_threshold"`
	PageDelaySec           int               `mapstructure:"page_delay_seconds"`
	BatchSize              int               `mapstructure:"batch_size"`
	BatchDelaySec          int               `mapstructure:"batch_delay_seconds"`
	RotateEvery            int               `mapstructure:"rotate_every"`
	MaxConsecutiveFailures int               `mapstructure:"max_consecutive_failures"`
}

// LookupConfig governs the sequential single-key workflow.
type LookupConfig struct {
	URL           string            `mapstructure:"url"`
	InputSelector string            `mapstructure:"input_selector"`
	SubmitScript  string            `mapstructure:"submit_script"`
	FieldPatterns map[string]string `mapstructure:"field_patterns"`
	KeyPattern    string            `mapstructure:"key_pattern"`
	ItemDelaySec  int               `mapstructure:"item_delay_seconds"`
	RotateEvery   int               `mapstructure:"rotate_every"`
}

// CaptchaConfig configures the external challenge solving service.
type CaptchaConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	APIKey         string `mapstructure:"api_key"`
	BaseURL        string `mapstructure:"base_url"`
	PollSeconds    int    `mapstructure:"poll_seconds"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("GUIDEWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.development", true)
	v.SetDefault("server.enabled", false)
	v.SetDefault("server.port", 9090)
	v.SetDefault("store.backend", "sqlite")
	v.SetDefault("store.path", "guidewatch.db")
	v.SetDefault("identity.embedded", false)
	v.SetDefault("identity.socks_addr", "127.0.0.1:9050")
	v.SetDefault("identity.control_addr", "127.0.0.1:9051")
	v.SetDefault("identity.min_rotation_interval_seconds", 10)
	v.SetDefault("identity.startup_timeout_seconds", 180)
	v.SetDefault("fetch.timeout_seconds", 30)
	v.SetDefault("fetch.max_attempts", 3)
	v.SetDefault("fetch.base_delay_seconds", 5)
	v.SetDefault("fetch.block_markers", []string{"access denied", "captcha", "unusual traffic"})
	v.SetDefault("fetch.nav_timeout_seconds", 45)
	v.SetDefault("crawl.checkpoint_key", "listing")
	v.SetDefault("crawl.empty_page_threshold", 3)
	v.SetDefault("crawl.page_delay_seconds", 2)
	v.SetDefault("crawl.batch_size", 25)
	v.SetDefault("crawl.batch_delay_seconds", 5)
	v.SetDefault("crawl.rotate_every", 20)
	v.SetDefault("crawl.max_consecutive_failures", 10)
	v.SetDefault("lookup.item_delay_seconds", 3)
	v.SetDefault("lookup.rotate_every", 10)
	v.SetDefault("captcha.enabled", false)
	v.SetDefault("captcha.base_url", "https://2captcha.com")
	v.SetDefault("captcha.poll_seconds", 5)
	v.SetDefault("captcha.timeout_seconds", 180)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	switch c.Store.Backend {
	case "sqlite":
		if c.Store.Path == "" {
			return fmt.Errorf("store.path must be set for the sqlite backend")
		}
	case "postgres":
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn must be set for the postgres backend")
		}
	case "memory":
	default:
		return fmt.Errorf("store.backend must be sqlite, postgres, or memory")
	}
	if !c.Identity.Embedded {
		if c.Identity.SocksAddr == "" {
			return fmt.Errorf("identity.socks_addr must be set when not embedded")
		}
		if c.Identity.ControlAddr == "" {
			return fmt.Errorf("identity.control_addr must be set when not embedded")
		}
	}
	if c.Fetch.TimeoutSeconds <= 0 {
		return fmt.Errorf("fetch.timeout_seconds must be > 0")
	}
	if c.Fetch.MaxAttempts <= 0 {
		return fmt.Errorf("fetch.max_attempts must be > 0")
	}
	if c.Crawl.MaxPages <= 0 && c.Crawl.EmptyPageThreshold <= 0 {
		return fmt.Errorf("crawl.max_pages or crawl.empty_page_threshold must be set")
	}
	if c.Server.Enabled && c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0 when the server is enabled")
	}
	if c.Captcha.Enabled && c.Captcha.APIKey == "" {
		return fmt.Errorf("captcha.api_key must be set when captcha solving is enabled")
	}
	return nil
}

// FetchTimeout converts the fetch timeout into a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSeconds) * time.Second
}
