package feed

import (
	"time"

	"github.com/vantalabs/vantage/validate"
)

// FetchResult is the sole return contract of Fetch. Failures never
// escape as errors; callers must check Success.
type FetchResult struct {
	Success      bool                   `json:"success"`
	Data         interface{}            `json:"data,omitempty"`
	Source       string                 `json:"source"`
	Cached       bool                   `json:"cached"`
	Validation   *validate.Result       `json:"validation,omitempty"`
	Error        string                 `json:"error,omitempty"`
	DurationMS   int64                  `json:"duration_ms"`
	AsOf         time.Time              `json:"as_of"`
	FallbackUsed bool                   `json:"fallback_used"`
	TriedSources []string               `json:"tried_sources,omitempty"`
	Trace        map[string]interface{} `json:"trace,omitempty"`
}

// SourceCache is the well-known Source value for cache hits.
const SourceCache = "cache"

// Tried-source tags for skipped candidates.
const (
	tagCircuitOpen = "circuit_open"
	tagRateLimited = "rate_limited"
)
