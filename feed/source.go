// Package feed is the resilient data-access orchestrator: it composes
// the TTL cache, per-source circuit breakers, and validation middleware
// over a ranked list of named fetch functions per data type, and
// implements fetch-with-fallback across them.
package feed

import (
	"context"
	"os"
	"time"

	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"

	"github.com/vantalabs/vantage/errors"
)

// FetchFunc fetches one payload for a key. Implementations return a
// typed error on failure; string payloads containing an "error" marker
// (case-insensitive) are additionally treated as failures for adapters
// that can only signal through text.
type FetchFunc func(ctx context.Context, key string) (interface{}, error)

// Source is the per-data-type health record for one named upstream.
// All fields are mutated only while holding the orchestrator mutex;
// the record lives for the process lifetime once registered and is
// never deleted, only reset.
type Source struct {
	Name     string
	Fetch    FetchFunc
	Priority int           // static rank, lower tries first among equals
	Cooldown time.Duration // fixed hold-off after a failure

	LastSuccess         time.Time
	LastFail            time.Time
	ConsecutiveFailures int
	TotalCalls          int
	TotalSuccesses      int

	// limiter enforces the source's advertised calls-per-minute budget
	limiter *rate.Limiter
}

// NewSource builds a Source. rateLimit is calls per minute; 0 disables
// rate limiting for the source.
func NewSource(name string, fetch FetchFunc, priority, rateLimit int, cooldown time.Duration) *Source {
	s := &Source{
		Name:     name,
		Fetch:    fetch,
		Priority: priority,
		Cooldown: cooldown,
	}
	if rateLimit > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(float64(rateLimit)/60.0), 1)
	}
	return s
}

// failureRate is the live failure fraction, 0 for an untried source.
func (s *Source) failureRate() float64 {
	if s.TotalCalls == 0 {
		return 0
	}
	return 1 - float64(s.TotalSuccesses)/float64(s.TotalCalls)
}

// healthScore is the inverse of the failure rate.
func (s *Source) healthScore() float64 {
	return 1 - s.failureRate()
}

// resetStats clears the health record without unregistering the source.
func (s *Source) resetStats() {
	s.LastSuccess = time.Time{}
	s.LastFail = time.Time{}
	s.ConsecutiveFailures = 0
	s.TotalCalls = 0
	s.TotalSuccesses = 0
}

// CatalogEntry is one row of a sources.yaml catalog, describing source
// metadata declaratively; fetch functions are bound by name at
// registration time.
type CatalogEntry struct {
	Name            string `yaml:"name"`
	DataType        string `yaml:"data_type"`
	Priority        int    `yaml:"priority"`
	RateLimit       int    `yaml:"rate_limit"`
	CooldownSeconds int    `yaml:"cooldown_seconds"`
	URL             string `yaml:"url,omitempty"` // optional JSON endpoint, {key} substituted per fetch
}

// Catalog is the top-level sources.yaml document.
type Catalog struct {
	Sources []CatalogEntry `yaml:"sources"`
}

// LoadCatalog reads and parses a sources.yaml file.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read source catalog %s", path)
	}

	var catalog Catalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, errors.Wrapf(err, "failed to parse source catalog %s", path)
	}

	for _, entry := range catalog.Sources {
		if entry.Name == "" || entry.DataType == "" {
			return nil, errors.Newf("catalog entry missing name or data_type: %+v", entry)
		}
	}
	return &catalog, nil
}
