package logger

// Standard field names for consistent structured logging across Vantage.
// Use these constants instead of raw strings to ensure consistency.
const (
	// Identity and context
	FieldRequestID = "request_id"
	FieldSessionID = "session_id"

	// Data access
	FieldDataType = "data_type"
	FieldKey      = "key"
	FieldCacheKey = "cache_key"
	FieldSource   = "source"
	FieldCached   = "cached"
	FieldFallback = "fallback_used"

	// Source health
	FieldCircuitState        = "circuit_state"
	FieldFailureCount        = "failure_count"
	FieldConsecutiveFailures = "consecutive_failures"
	FieldHealthScore         = "health_score"
	FieldSkipReason          = "skip_reason"

	// Timing
	FieldDurationMS = "duration_ms"
	FieldTTLSeconds = "ttl_seconds"
	FieldCooldown   = "cooldown_remaining"

	// Convergence
	FieldRound      = "round"
	FieldInfoGain   = "info_gain"
	FieldUniqueDocs = "unique_docs"
	FieldStopReason = "stop_reason"

	// Errors
	FieldError = "error"

	// Counts
	FieldCount = "count"
	FieldSize  = "size"
)
