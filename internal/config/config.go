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
	Server  ServerConfig  `mapstructure:"server"`
	Engine  EngineConfig  `mapstructure:"engine"`
	Budgets BudgetsConfig `mapstructure:"budgets"`
	Scrape  ScrapeConfig  `mapstructure:"scrape"`
	Remote  RemoteConfig  `mapstructure:"remote"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Storage StorageConfig `mapstructure:"storage"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// EngineConfig governs cache TTLs and batch behavior.
type EngineConfig struct {
	IndexTTLHours       int  `mapstructure:"index_ttl_hours"`
	NegativeTTLHours    int  `mapstructure:"negative_ttl_hours"`
	VerifyNegTTLHours   int  `mapstructure:"verify_neg_ttl_hours"`
	LegacyTTLMinutes    int  `mapstructure:"legacy_ttl_minutes"`
	BatchMax            int  `mapstructure:"batch_max"`
	BatchConcurrency    int  `mapstructure:"batch_concurrency"`
	RefreshEveryMinutes int  `mapstructure:"refresh_every_minutes"`
	RefreshOnServeStart bool `mapstructure:"refresh_on_serve_start"`
}

// BudgetsConfig sizes the two token buckets bounding direct remote checks.
type BudgetsConfig struct {
	WarmCapacity        int `mapstructure:"warm_capacity"`
	WarmWindowMinutes   int `mapstructure:"warm_window_minutes"`
	VerifyCapacity      int `mapstructure:"verify_capacity"`
	VerifyWindowMinutes int `mapstructure:"verify_window_minutes"`
}

// ScrapeConfig controls candidate-document fetching.
type ScrapeConfig struct {
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
	UserAgent      string  `mapstructure:"user_agent"`
	HostRPS        float64 `mapstructure:"host_rps"`
	HostBurst      int     `mapstructure:"host_burst"`
	CanonicalHost  string  `mapstructure:"canonical_host"`
	MobileHost     string  `mapstructure:"mobile_host"`
	ConsentHost    string  `mapstructure:"consent_host"`
}

// RemoteConfig points at the directory API.
type RemoteConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	PageSize       int    `mapstructure:"page_size"`
	SearchEnabled  bool   `mapstructure:"search_enabled"`
}

// AuthConfig supplies the bearer credential.
type AuthConfig struct {
	Token          string `mapstructure:"token"`
	TokenFile      string `mapstructure:"token_file"`
	ExpiresMinutes int    `mapstructure:"expires_minutes"`
}

// StorageConfig selects and parameterizes the blob-store backend.
type StorageConfig struct {
	Backend   string `mapstructure:"backend"` // memory | local | bolt | postgres | gcs
	Path      string `mapstructure:"path"`
	DSN       string `mapstructure:"dsn"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	GCSPrefix string `mapstructure:"gcs_prefix"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CHANWATCH")
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
	v.SetDefault("server.port", 8087)
	v.SetDefault("engine.index_ttl_hours", 12)
	v.SetDefault("engine.negative_ttl_hours", 6)
	v.SetDefault("engine.verify_neg_ttl_hours", 6)
	v.SetDefault("engine.legacy_ttl_minutes", 60)
	v.SetDefault("engine.batch_max", 50)
	v.SetDefault("engine.batch_concurrency", 8)
	v.SetDefault("engine.refresh_every_minutes", 10)
	v.SetDefault("engine.refresh_on_serve_start", true)
	v.SetDefault("budgets.warm_capacity", 30)
	v.SetDefault("budgets.warm_window_minutes", 10)
	v.SetDefault("budgets.verify_capacity", 5)
	v.SetDefault("budgets.verify_window_minutes", 10)
	v.SetDefault("scrape.timeout_seconds", 8)
	v.SetDefault("scrape.user_agent", "chanwatch/0.1")
	v.SetDefault("scrape.host_rps", 2.0)
	v.SetDefault("scrape.host_burst", 4)
	v.SetDefault("scrape.canonical_host", "www.youtube.com")
	v.SetDefault("scrape.mobile_host", "m.youtube.com")
	v.SetDefault("scrape.consent_host", "consent.youtube.com")
	v.SetDefault("remote.base_url", "https://www.googleapis.com/youtube/v3")
	v.SetDefault("remote.timeout_seconds", 10)
	v.SetDefault("remote.page_size", 50)
	v.SetDefault("remote.search_enabled", true)
	v.SetDefault("auth.expires_minutes", 55)
	v.SetDefault("storage.backend", "local")
	v.SetDefault("storage.path", "chanwatch-state.json")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Engine.IndexTTLHours <= 0 {
		return fmt.Errorf("engine.index_ttl_hours must be > 0")
	}
	if c.Engine.BatchMax <= 0 {
		return fmt.Errorf("engine.batch_max must be > 0")
	}
	if c.Engine.BatchConcurrency <= 0 {
		return fmt.Errorf("engine.batch_concurrency must be > 0")
	}
	if c.Budgets.WarmCapacity <= 0 || c.Budgets.VerifyCapacity <= 0 {
		return fmt.Errorf("budget capacities must be > 0")
	}
	if c.Scrape.TimeoutSeconds <= 0 {
		return fmt.Errorf("scrape.timeout_seconds must be > 0")
	}
	if c.Remote.PageSize <= 0 || c.Remote.PageSize > 50 {
		return fmt.Errorf("remote.page_size must be in (0, 50]")
	}
	switch c.Storage.Backend {
	case "memory", "local", "bolt", "postgres", "gcs":
	default:
		return fmt.Errorf("unknown storage backend: %s", c.Storage.Backend)
	}
	if (c.Storage.Backend == "local" || c.Storage.Backend == "bolt") && c.Storage.Path == "" {
		return fmt.Errorf("storage.path must be set for %s backend", c.Storage.Backend)
	}
	if c.Storage.Backend == "postgres" && c.Storage.DSN == "" {
		return fmt.Errorf("storage.dsn must be set for postgres backend")
	}
	if c.Storage.Backend == "gcs" && c.Storage.GCSBucket == "" {
		return fmt.Errorf("storage.gcs_bucket must be set for gcs backend")
	}
	return nil
}

// IndexTTL returns the subscription-index staleness horizon.
func (c Config) IndexTTL() time.Duration {
	return time.Duration(c.Engine.IndexTTLHours) * time.Hour
}

// NegativeTTL returns how long unresolved references stay cached.
func (c Config) NegativeTTL() time.Duration {
	return time.Duration(c.Engine.NegativeTTLHours) * time.Hour
}

// VerifyNegTTL returns the minimum gap between negative re-verifications of
// the same identifier.
func (c Config) VerifyNegTTL() time.Duration {
	return time.Duration(c.Engine.VerifyNegTTLHours) * time.Hour
}

// LegacyTTL returns the trust horizon of the per-channel fallback cache.
func (c Config) LegacyTTL() time.Duration {
	return time.Duration(c.Engine.LegacyTTLMinutes) * time.Minute
}

// ScrapeTimeout returns the per-request document fetch budget.
func (c Config) ScrapeTimeout() time.Duration {
	return time.Duration(c.Scrape.TimeoutSeconds) * time.Second
}

// RemoteTimeout returns the per-call remote API budget.
func (c Config) RemoteTimeout() time.Duration {
	return time.Duration(c.Remote.TimeoutSeconds) * time.Second
}
