// Package config loads and watches the Vantage core configuration.
//
// Configuration is merged from TOML files in precedence order
// (system < user < project < environment variables) via Viper, with the
// VANTAGE_ prefix for environment overrides.
package config

// Config represents the core Vantage configuration
type Config struct {
	Log      LogConfig      `mapstructure:"log"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Breaker  BreakerConfig  `mapstructure:"breaker"`
	Fetch    FetchConfig    `mapstructure:"fetch"`
	Converge ConvergeConfig `mapstructure:"converge"`
	Journal  JournalConfig  `mapstructure:"journal"`
}

// LogConfig configures logging output
type LogConfig struct {
	JSON      bool `mapstructure:"json"`      // JSON structured output instead of console
	Verbosity int  `mapstructure:"verbosity"` // 0 = warnings, 1 = info, 2+ = debug
}

// CacheConfig configures the TTL cache
type CacheConfig struct {
	DefaultTTLSeconds  int            `mapstructure:"default_ttl_seconds"`  // TTL for uncategorized entries (default: 300)
	CategoryTTLSeconds map[string]int `mapstructure:"category_ttl_seconds"` // per-category TTLs, e.g. price = 60
}

// BreakerConfig configures the per-source circuit breaker
type BreakerConfig struct {
	FailureThreshold         int `mapstructure:"failure_threshold"`           // consecutive failures before opening (default: 3)
	RecoveryTimeoutSeconds   int `mapstructure:"recovery_timeout_seconds"`    // OPEN hold time before a probe (default: 120)
	HalfOpenSuccessThreshold int `mapstructure:"half_open_success_threshold"` // probe successes required to close (default: 1)
}

// FetchConfig configures the fetch orchestrator
type FetchConfig struct {
	HealthThreshold   float64 `mapstructure:"health_threshold"`    // failure rate at which a source cools off (default: 0.6)
	MinSample         int     `mapstructure:"min_sample"`          // calls before failure rate is trusted (default: 3)
	SkipWindowSeconds int     `mapstructure:"skip_window_seconds"` // cool-off window after last failure (default: 300)
	AttemptSpacingMS  int     `mapstructure:"attempt_spacing_ms"`  // delay between fallback attempts (default: 300)
	CatalogPath       string  `mapstructure:"catalog_path"`        // optional sources.yaml describing source metadata
}

// ConvergeConfig configures the research convergence controller
type ConvergeConfig struct {
	MaxRounds           int     `mapstructure:"max_rounds"`           // hard round cap (default: 3)
	MinGainThreshold    float64 `mapstructure:"min_gain_threshold"`   // below this counts as a low-gain round (default: 0.15)
	HardFloorGain       float64 `mapstructure:"hard_floor_gain"`      // single-round stop floor (default: 0.05)
	SimilarityThreshold float64 `mapstructure:"similarity_threshold"` // Jaccard dedup cutoff (default: 0.7)
	ContentWindow       int     `mapstructure:"content_window"`       // docs retained for similarity checks (default: 10)
}

// JournalConfig configures the SQLite fetch journal
type JournalConfig struct {
	Enabled bool   `mapstructure:"enabled"` // record fetch outcomes (default: false)
	Path    string `mapstructure:"path"`    // database path (default: vantage.db)
}

// File system constants
const (
	DefaultDirPermissions  = 0755 // Standard directory permissions (rwxr-xr-x)
	DefaultFilePermissions = 0644 // Standard file permissions (rw-r--r--)
)
