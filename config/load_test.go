package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultValues(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 300, cfg.Cache.DefaultTTLSeconds)
	assert.Equal(t, 60, cfg.Cache.CategoryTTLSeconds["price"])
	assert.Equal(t, 86400, cfg.Cache.CategoryTTLSeconds["company_info"])
	assert.Equal(t, 1800, cfg.Cache.CategoryTTLSeconds["news"])
	assert.Equal(t, 3600, cfg.Cache.CategoryTTLSeconds["sentiment"])

	assert.Equal(t, 3, cfg.Breaker.FailureThreshold)
	assert.Equal(t, 120, cfg.Breaker.RecoveryTimeoutSeconds)
	assert.Equal(t, 1, cfg.Breaker.HalfOpenSuccessThreshold)

	assert.InDelta(t, 0.6, cfg.Fetch.HealthThreshold, 1e-9)
	assert.Equal(t, 3, cfg.Fetch.MinSample)
	assert.Equal(t, 300, cfg.Fetch.SkipWindowSeconds)
	assert.Equal(t, 300, cfg.Fetch.AttemptSpacingMS)

	assert.Equal(t, 3, cfg.Converge.MaxRounds)
	assert.InDelta(t, 0.15, cfg.Converge.MinGainThreshold, 1e-9)
	assert.InDelta(t, 0.05, cfg.Converge.HardFloorGain, 1e-9)
	assert.InDelta(t, 0.7, cfg.Converge.SimilarityThreshold, 1e-9)
	assert.Equal(t, 10, cfg.Converge.ContentWindow)
}

func TestCategoryTTL(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 60, cfg.CategoryTTL("price"))
	assert.Equal(t, 300, cfg.CategoryTTL("economic_events")) // unknown category falls back
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vantage.toml")
	content := `
[cache]
default_ttl_seconds = 42

[breaker]
failure_threshold = 5

[fetch]
health_threshold = 0.8
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, 42, cfg.Cache.DefaultTTLSeconds)
	assert.Equal(t, 5, cfg.Breaker.FailureThreshold)
	assert.InDelta(t, 0.8, cfg.Fetch.HealthThreshold, 1e-9)
	// Untouched sections keep defaults
	assert.Equal(t, 3, cfg.Converge.MaxRounds)
}

func TestLoadFromFileMissing(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vantage.toml")

	cfg := Default()
	cfg.Cache.DefaultTTLSeconds = 99
	require.NoError(t, Save(cfg, path))

	loaded, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 99, loaded.Cache.DefaultTTLSeconds)

	// Second save rotates a backup of the first
	cfg.Cache.DefaultTTLSeconds = 100
	require.NoError(t, Save(cfg, path))
	_, err = os.Stat(path + ".back1")
	assert.NoError(t, err)
}
