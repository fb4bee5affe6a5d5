package feed

import (
	"github.com/vantalabs/vantage/breaker"
	"github.com/vantalabs/vantage/cache"
)

// Skip reasons surfaced to observability dashboards.
const (
	SkipCircuitOpen     = "circuit_open"
	SkipCircuitHalfOpen = "circuit_half_open"
	SkipHighFailRate    = "high_fail_rate"
)

// SourceStats is the diagnostics view of one source's health record.
type SourceStats struct {
	Name                string        `json:"name"`
	Priority            int           `json:"priority"`
	TotalCalls          int           `json:"total_calls"`
	TotalSuccesses      int           `json:"total_successes"`
	SuccessRate         float64       `json:"success_rate"`
	FailRate            float64       `json:"fail_rate"`
	ConsecutiveFailures int           `json:"consecutive_failures"`
	CooldownRemaining   float64       `json:"cooldown_remaining_seconds"`
	CircuitState        breaker.State `json:"circuit_state"`
	SkipReason          string        `json:"skip_reason,omitempty"`
	HealthScore         float64       `json:"health_score"`
}

// OrchestratorStats are the orchestrator's own counters.
type OrchestratorStats struct {
	TotalFetches      int `json:"total_fetches"`
	CacheHits         int `json:"cache_hits"`
	DirectCalls       int `json:"direct_calls"`
	Exhausted         int `json:"exhausted"`
	SingleFlightWaits int `json:"single_flight_waits"`
}

// Stats is the full diagnostics tree exposed upward to an API layer.
type Stats struct {
	Orchestrator OrchestratorStats        `json:"orchestrator"`
	Cache        cache.Stats              `json:"cache"`
	Sources      map[string][]SourceStats `json:"sources"`
}

// GetStats returns a point-in-time diagnostics snapshot: orchestrator
// counters, cache accounting, and per-source health including circuit
// state and the reason a source would currently be skipped.
func (o *Orchestrator) GetStats() Stats {
	o.mu.Lock()

	stats := Stats{
		Orchestrator: OrchestratorStats{
			TotalFetches:      o.totalFetches,
			CacheHits:         o.cacheHits,
			DirectCalls:       o.directCalls,
			Exhausted:         o.exhausted,
			SingleFlightWaits: o.singleFlightWaits,
		},
		Sources: make(map[string][]SourceStats, len(o.sources)),
	}

	type pending struct {
		dataType  string
		stats     SourceStats
		unhealthy bool
	}
	var rows []pending

	for dataType, sources := range o.sources {
		for _, src := range sources {
			failRate := src.failureRate()
			cooldown := 0.0
			if src.Cooldown > 0 && !src.LastFail.IsZero() {
				if remaining := src.Cooldown - o.now().Sub(src.LastFail); remaining > 0 {
					cooldown = remaining.Seconds()
				}
			}
			rows = append(rows, pending{
				dataType: dataType,
				stats: SourceStats{
					Name:                src.Name,
					Priority:            src.Priority,
					TotalCalls:          src.TotalCalls,
					TotalSuccesses:      src.TotalSuccesses,
					SuccessRate:         1 - failRate,
					FailRate:            failRate,
					ConsecutiveFailures: src.ConsecutiveFailures,
					CooldownRemaining:   cooldown,
					HealthScore:         src.healthScore(),
				},
				unhealthy: src.TotalCalls >= o.minSample && failRate >= o.healthThreshold,
			})
		}
	}
	o.mu.Unlock()

	// Breaker state is read outside the orchestrator lock; the breaker
	// has its own.
	for _, row := range rows {
		snap := o.breaker.State(row.stats.Name)
		row.stats.CircuitState = snap.State
		switch {
		case snap.State == breaker.Open:
			row.stats.SkipReason = SkipCircuitOpen
		case snap.State == breaker.HalfOpen:
			row.stats.SkipReason = SkipCircuitHalfOpen
		case row.unhealthy:
			row.stats.SkipReason = SkipHighFailRate
		}
		stats.Sources[row.dataType] = append(stats.Sources[row.dataType], row.stats)
	}

	stats.Cache = o.cache.GetStats()
	return stats
}
