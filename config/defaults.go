package config

import (
	"github.com/spf13/viper"
)

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	// Logging defaults
	v.SetDefault("log.json", false)
	v.SetDefault("log.verbosity", 0)

	// Cache defaults: per-category lifetimes reflect how fast each feed goes stale
	v.SetDefault("cache.default_ttl_seconds", 300)
	v.SetDefault("cache.category_ttl_seconds", map[string]int{
		"price":        60,    // quotes are near-live
		"company_info": 86400, // fundamentals barely move intraday
		"news":         1800,
		"sentiment":    3600,
	})

	// Circuit breaker defaults
	v.SetDefault("breaker.failure_threshold", 3)
	v.SetDefault("breaker.recovery_timeout_seconds", 120)
	v.SetDefault("breaker.half_open_success_threshold", 1)

	// Fetch orchestrator defaults
	v.SetDefault("fetch.health_threshold", 0.6)
	v.SetDefault("fetch.min_sample", 3)
	v.SetDefault("fetch.skip_window_seconds", 300)
	v.SetDefault("fetch.attempt_spacing_ms", 300)

	// Convergence defaults
	v.SetDefault("converge.max_rounds", 3)
	v.SetDefault("converge.min_gain_threshold", 0.15)
	v.SetDefault("converge.hard_floor_gain", 0.05)
	v.SetDefault("converge.similarity_threshold", 0.7)
	v.SetDefault("converge.content_window", 10)

	// Journal defaults
	v.SetDefault("journal.enabled", false)
	v.SetDefault("journal.path", "vantage.db")
}

// BindSensitiveEnvVars explicitly binds sensitive configuration to environment variables
func BindSensitiveEnvVars(v *viper.Viper) {
	// Journal path (dev mode override)
	v.BindEnv("journal.path", "VANTAGE_JOURNAL_PATH")
}

// GetJournalPath returns the configured journal database path
func (c *Config) GetJournalPath() string {
	if c.Journal.Path == "" {
		return "vantage.db" // Fallback default
	}
	return c.Journal.Path
}

// CategoryTTL returns the cache TTL for a data type in seconds,
// falling back to the default TTL for unknown categories.
func (c *Config) CategoryTTL(category string) int {
	if ttl, ok := c.Cache.CategoryTTLSeconds[category]; ok && ttl > 0 {
		return ttl
	}
	if c.Cache.DefaultTTLSeconds > 0 {
		return c.Cache.DefaultTTLSeconds
	}
	return 300
}
