package feed

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vantalabs/vantage/breaker"
	"github.com/vantalabs/vantage/cache"
	"github.com/vantalabs/vantage/config"
	"github.com/vantalabs/vantage/errors"
	"github.com/vantalabs/vantage/validate"
)

// Orchestrator defaults; overridable via options or ApplyConfig.
const (
	DefaultHealthThreshold = 0.6
	DefaultMinSample       = 3
	DefaultSkipWindow      = 300 * time.Second
	DefaultAttemptSpacing  = 300 * time.Millisecond
)

// inflightCall tracks one in-progress upstream fetch so concurrent
// identical cache-missed requests share a single fallback chain.
type inflightCall struct {
	done   chan struct{}
	result *FetchResult
}

// Orchestrator implements fetch-with-fallback across ranked sources.
// Construct one per process and share it; all source health state is
// guarded by its mutex. There is deliberately no package-level instance.
type Orchestrator struct {
	mu      sync.Mutex
	sources map[string][]*Source

	cache   *cache.Cache
	breaker *breaker.Breaker
	tools   Tools
	journal *Journal
	logger  *zap.SugaredLogger

	healthThreshold float64
	minSample       int
	skipWindow      time.Duration
	attemptSpacing  time.Duration

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	inflightMu sync.Mutex
	inflight   map[string]*inflightCall

	// counters, guarded by mu
	totalFetches      int
	cacheHits         int
	directCalls       int
	exhausted         int
	singleFlightWaits int
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithTools injects the direct-call tools module used when a data type
// has no registered sources.
func WithTools(tools Tools) Option {
	return func(o *Orchestrator) { o.tools = tools }
}

// WithJournal attaches a fetch journal; nil disables recording.
func WithJournal(j *Journal) Option {
	return func(o *Orchestrator) { o.journal = j }
}

// WithHealthThreshold sets the failure rate at which a source cools off.
func WithHealthThreshold(t float64) Option {
	return func(o *Orchestrator) { o.healthThreshold = t }
}

// WithMinSample sets how many calls a source needs before its failure
// rate is trusted for cool-off decisions.
func WithMinSample(n int) Option {
	return func(o *Orchestrator) { o.minSample = n }
}

// WithSkipWindow sets how long after its last failure an unhealthy
// source is excluded from ranking.
func WithSkipWindow(d time.Duration) Option {
	return func(o *Orchestrator) { o.skipWindow = d }
}

// WithAttemptSpacing sets the delay between fallback attempts.
func WithAttemptSpacing(d time.Duration) Option {
	return func(o *Orchestrator) { o.attemptSpacing = d }
}

// WithClock injects a time source for tests.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New creates an Orchestrator over the given cache and breaker.
func New(c *cache.Cache, b *breaker.Breaker, log *zap.SugaredLogger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		sources:         make(map[string][]*Source),
		cache:           c,
		breaker:         b,
		logger:          log,
		healthThreshold: DefaultHealthThreshold,
		minSample:       DefaultMinSample,
		skipWindow:      DefaultSkipWindow,
		attemptSpacing:  DefaultAttemptSpacing,
		now:             time.Now,
		inflight:        make(map[string]*inflightCall),
	}
	o.sleep = func(ctx context.Context, d time.Duration) error {
		if d <= 0 {
			return ctx.Err()
		}
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return nil
		}
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop().Sugar()
	}
	return o
}

// NewFromConfig builds the cache, breaker, and orchestrator from a
// loaded configuration. This is the usual production constructor; the
// process entry point owns the returned instance's lifecycle.
func NewFromConfig(cfg *config.Config, log *zap.SugaredLogger, opts ...Option) *Orchestrator {
	ttls := make(map[string]time.Duration, len(cfg.Cache.CategoryTTLSeconds))
	for category, secs := range cfg.Cache.CategoryTTLSeconds {
		ttls[category] = time.Duration(secs) * time.Second
	}

	c := cache.New(log,
		cache.WithCategoryTTLs(ttls),
		cache.WithDefaultTTL(time.Duration(cfg.Cache.DefaultTTLSeconds)*time.Second))

	b := breaker.New(log,
		breaker.WithFailureThreshold(cfg.Breaker.FailureThreshold),
		breaker.WithRecoveryTimeout(time.Duration(cfg.Breaker.RecoveryTimeoutSeconds)*time.Second),
		breaker.WithHalfOpenSuccessThreshold(cfg.Breaker.HalfOpenSuccessThreshold))

	all := append([]Option{
		WithHealthThreshold(cfg.Fetch.HealthThreshold),
		WithMinSample(cfg.Fetch.MinSample),
		WithSkipWindow(time.Duration(cfg.Fetch.SkipWindowSeconds) * time.Second),
		WithAttemptSpacing(time.Duration(cfg.Fetch.AttemptSpacingMS) * time.Millisecond),
	}, opts...)

	return New(c, b, log, all...)
}

// ApplyConfig adopts new fetch thresholds, typically from a config
// watcher callback. Cache TTLs and breaker thresholds are fixed at
// construction; only orchestrator knobs hot-reload.
func (o *Orchestrator) ApplyConfig(cfg *config.Config) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.healthThreshold = cfg.Fetch.HealthThreshold
	o.minSample = cfg.Fetch.MinSample
	o.skipWindow = time.Duration(cfg.Fetch.SkipWindowSeconds) * time.Second
	o.attemptSpacing = time.Duration(cfg.Fetch.AttemptSpacingMS) * time.Millisecond

	o.logger.Infow("Orchestrator adopted new fetch thresholds",
		"health_threshold", o.healthThreshold,
		"min_sample", o.minSample,
		"skip_window", o.skipWindow)
	return nil
}

// WatchConfig starts a watcher on the given config file and feeds
// reloaded fetch thresholds into this orchestrator, so a long-running
// process adopts new knobs between fetches without a restart. The
// caller owns the returned watcher and must Stop it on shutdown.
func (o *Orchestrator) WatchConfig(path string) (*config.ConfigWatcher, error) {
	cw, err := config.NewConfigWatcher(path)
	if err != nil {
		return nil, err
	}
	cw.OnReload(o.ApplyConfig)
	cw.Start()
	o.logger.Infow("Watching config file for fetch threshold changes",
		"path", path)
	return cw, nil
}

// RegisterSource adds a source for a data type. Registration order is
// irrelevant; ranking is recomputed per fetch.
func (o *Orchestrator) RegisterSource(dataType string, src *Source) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.sources[dataType] = append(o.sources[dataType], src)
	o.logger.Infow("Source registered",
		"data_type", dataType,
		"source", src.Name,
		"priority", src.Priority)
}

// RegisterFromCatalog registers every catalog entry whose fetch
// function is present in funcs (keyed by source name).
func (o *Orchestrator) RegisterFromCatalog(catalog *Catalog, funcs map[string]FetchFunc) error {
	for _, entry := range catalog.Sources {
		fn, ok := funcs[entry.Name]
		if !ok {
			return errors.Newf("no fetch function bound for catalog source %q", entry.Name)
		}
		src := NewSource(entry.Name, fn, entry.Priority, entry.RateLimit,
			time.Duration(entry.CooldownSeconds)*time.Second)
		o.RegisterSource(entry.DataType, src)
	}
	return nil
}

// ResetSourceStats clears one source's health record, reporting whether
// the source was found.
func (o *Orchestrator) ResetSourceStats(dataType, name string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	for _, src := range o.sources[dataType] {
		if src.Name == name {
			src.resetStats()
			return true
		}
	}
	return false
}

// FetchOption modifies a single Fetch call.
type FetchOption func(*fetchOptions)

type fetchOptions struct {
	forceRefresh bool
}

// ForceRefresh bypasses the cache probe for this call.
func ForceRefresh() FetchOption {
	return func(fo *fetchOptions) { fo.forceRefresh = true }
}

// CacheKey is the canonical cache key for a (data type, key) pair.
func CacheKey(dataType, key string) string {
	return dataType + ":" + key
}

// Fetch returns a typed result for (dataType, key), trying the cache,
// then ranked sources in order, then failing closed. It never returns
// an error; callers check FetchResult.Success.
func (o *Orchestrator) Fetch(ctx context.Context, dataType, key string, opts ...FetchOption) *FetchResult {
	var fo fetchOptions
	for _, opt := range opts {
		opt(&fo)
	}

	o.mu.Lock()
	o.totalFetches++
	o.mu.Unlock()

	cacheKey := CacheKey(dataType, key)

	if !fo.forceRefresh {
		if data, ok := o.cache.Get(cacheKey); ok {
			o.mu.Lock()
			o.cacheHits++
			o.mu.Unlock()
			o.logger.Debugw("Cache hit",
				"cache_key", cacheKey)
			result := &FetchResult{
				Success: true,
				Data:    data,
				Source:  SourceCache,
				Cached:  true,
				AsOf:    o.now(),
			}
			o.record(dataType, key, result)
			return result
		}

		// Single-flight: if an identical fetch is already in progress,
		// wait for its result instead of re-running the fallback chain.
		if res, shared := o.awaitInflight(ctx, cacheKey); shared {
			return res
		}
	}

	call := o.beginInflight(cacheKey, fo.forceRefresh)
	result := o.fetchUpstream(ctx, dataType, key, cacheKey)
	o.finishInflight(cacheKey, call, result)

	o.record(dataType, key, result)
	return result
}

// awaitInflight joins an in-progress fetch for cacheKey if one exists.
func (o *Orchestrator) awaitInflight(ctx context.Context, cacheKey string) (*FetchResult, bool) {
	o.inflightMu.Lock()
	call, ok := o.inflight[cacheKey]
	o.inflightMu.Unlock()
	if !ok {
		return nil, false
	}

	o.mu.Lock()
	o.singleFlightWaits++
	o.mu.Unlock()

	select {
	case <-call.done:
		shared := *call.result
		return &shared, true
	case <-ctx.Done():
		return &FetchResult{
			Success: false,
			Error:   ctx.Err().Error(),
			AsOf:    o.now(),
		}, true
	}
}

// beginInflight registers this call as the leader for cacheKey.
// Force-refresh calls do the work but do not register, so they never
// serve stale in-progress results to other callers.
func (o *Orchestrator) beginInflight(cacheKey string, forceRefresh bool) *inflightCall {
	if forceRefresh {
		return nil
	}
	call := &inflightCall{done: make(chan struct{})}
	o.inflightMu.Lock()
	// Another leader may have registered between our probe and now;
	// keep ours only if the slot is free.
	if _, exists := o.inflight[cacheKey]; !exists {
		o.inflight[cacheKey] = call
		o.inflightMu.Unlock()
		return call
	}
	o.inflightMu.Unlock()
	return nil
}

func (o *Orchestrator) finishInflight(cacheKey string, call *inflightCall, result *FetchResult) {
	if call == nil {
		return
	}
	o.inflightMu.Lock()
	delete(o.inflight, cacheKey)
	o.inflightMu.Unlock()
	call.result = result
	close(call.done)
}

// fetchUpstream runs the full fallback chain for a cache miss.
func (o *Orchestrator) fetchUpstream(ctx context.Context, dataType, key, cacheKey string) *FetchResult {
	start := o.now()
	requestID := uuid.NewString()
	trace := map[string]interface{}{
		"request_id": requestID,
		"cache_key":  cacheKey,
	}

	o.mu.Lock()
	registered := o.sources[dataType]
	o.mu.Unlock()

	if len(registered) == 0 {
		return o.fetchDirect(ctx, dataType, key, cacheKey, start, trace)
	}

	ranked := o.rank(dataType)
	var (
		tried     []string
		attempts  []map[string]interface{}
		attempted bool
		lastError = errors.Wrapf(errors.ErrSourceExhausted, "no eligible sources for %s", dataType)
	)

	for i, src := range ranked {
		o.mu.Lock()
		inCooldown := src.Cooldown > 0 && !src.LastFail.IsZero() && o.now().Sub(src.LastFail) < src.Cooldown
		o.mu.Unlock()
		if inCooldown {
			o.logger.Debugw("Source in cooldown, skipping",
				"source", src.Name,
				"data_type", dataType)
			continue
		}

		if src.limiter != nil && !src.limiter.Allow() {
			tried = append(tried, src.Name+"("+tagRateLimited+")")
			if !attempted {
				lastError = errors.Wrapf(errors.ErrRateLimited, "%s over its rate budget", src.Name)
			}
			o.logger.Debugw("Source rate limited, skipping",
				"source", src.Name,
				"data_type", dataType)
			continue
		}

		if !o.breaker.CanCall(src.Name) {
			tried = append(tried, src.Name+"("+tagCircuitOpen+")")
			if !attempted {
				lastError = errors.Wrapf(errors.ErrCircuitOpen, "circuit open for %s", src.Name)
			}
			o.logger.Debugw("Circuit open, skipping source",
				"source", src.Name,
				"data_type", dataType)
			continue
		}

		// Space attempts out to avoid hammering a struggling provider
		if len(attempts) > 0 {
			if err := o.sleep(ctx, o.attemptSpacing); err != nil {
				lastError = errors.Wrap(err, "fetch cancelled between attempts")
				break
			}
		}

		raw, err := src.Fetch(ctx, key)
		attempted = true
		attempt := map[string]interface{}{"source": src.Name}

		if err == nil {
			if s, isString := raw.(string); isString && validate.HasErrorMarker(s) {
				// String payloads signal failure through text
				if validate.IsRateLimitMessage(s) {
					o.logger.Warnw("Source reported rate limit",
						"source", src.Name,
						"data_type", dataType)
				}
				err = errors.Wrapf(errors.ErrSourceFailure, "error payload from %s", src.Name)
			}
		}

		if err != nil {
			o.recordFailure(src)
			tried = append(tried, src.Name)
			lastError = err
			attempt["outcome"] = "failed"
			attempt["error"] = err.Error()
			attempts = append(attempts, attempt)
			o.logger.Warnw("Source attempt failed",
				"source", src.Name,
				"data_type", dataType,
				"key", key,
				"error", err)
			continue
		}

		validation := validate.Validate(dataType, raw)
		if !validation.IsValid {
			o.recordFailure(src)
			tried = append(tried, src.Name)
			lastError = errors.Wrapf(errors.ErrInvalidData, "%s: %v", src.Name, validation.Issues)
			attempt["outcome"] = "invalid"
			attempt["validation"] = validation
			attempts = append(attempts, attempt)
			o.logger.Warnw("Source returned invalid data",
				"source", src.Name,
				"data_type", dataType,
				"key", key,
				"issues", validation.Issues)
			continue
		}

		// First valid result wins
		o.recordSuccess(src)
		tried = append(tried, src.Name)
		o.cache.Set(cacheKey, raw, 0, dataType)

		attempt["outcome"] = "ok"
		attempt["confidence"] = validation.Confidence
		attempts = append(attempts, attempt)
		trace["attempts"] = attempts

		now := o.now()
		result := &FetchResult{
			Success:      true,
			Data:         raw,
			Source:       src.Name,
			Validation:   &validation,
			DurationMS:   now.Sub(start).Milliseconds(),
			AsOf:         now,
			FallbackUsed: i > 0,
			TriedSources: tried,
			Trace:        trace,
		}
		o.logger.Infow("Fetch succeeded",
			"data_type", dataType,
			"key", key,
			"source", src.Name,
			"fallback_used", result.FallbackUsed,
			"duration_ms", result.DurationMS)
		return result
	}

	// Total exhaustion: every source failed or was skipped
	o.mu.Lock()
	o.exhausted++
	o.mu.Unlock()
	trace["attempts"] = attempts

	now := o.now()
	result := &FetchResult{
		Success:      false,
		Error:        lastError.Error(),
		DurationMS:   now.Sub(start).Milliseconds(),
		AsOf:         now,
		FallbackUsed: len(tried) > 1,
		TriedSources: tried,
		Trace:        trace,
	}
	o.logger.Errorw("Fetch exhausted all sources",
		"data_type", dataType,
		"key", key,
		"tried", tried,
		"error", lastError)
	return result
}

// fetchDirect is the fallback path for data types with no registered
// sources: a single direct call against the injected tools module.
func (o *Orchestrator) fetchDirect(ctx context.Context, dataType, key, cacheKey string, start time.Time, trace map[string]interface{}) *FetchResult {
	funcName := directCallName(dataType)
	if funcName == "" {
		now := o.now()
		err := errors.Wrapf(errors.ErrUnknownDataType, "%q has no sources and no direct-call mapping", dataType)
		return &FetchResult{
			Success:    false,
			Error:      err.Error(),
			DurationMS: now.Sub(start).Milliseconds(),
			AsOf:       now,
			Trace:      trace,
		}
	}
	if o.tools == nil {
		now := o.now()
		err := errors.Wrapf(errors.ErrNoSources, "no sources registered for %q and no direct-call tools configured", dataType)
		return &FetchResult{
			Success:    false,
			Error:      err.Error(),
			DurationMS: now.Sub(start).Milliseconds(),
			AsOf:       now,
			Trace:      trace,
		}
	}

	o.mu.Lock()
	o.directCalls++
	o.mu.Unlock()
	trace["direct_call"] = funcName

	raw, err := directCall(ctx, o.tools, dataType, key)
	if err == nil {
		validation := validate.Validate(dataType, raw)
		if validation.IsValid {
			o.cache.Set(cacheKey, raw, 0, dataType)
			now := o.now()
			return &FetchResult{
				Success:      true,
				Data:         raw,
				Source:       funcName,
				Validation:   &validation,
				DurationMS:   now.Sub(start).Milliseconds(),
				AsOf:         now,
				TriedSources: []string{funcName},
				Trace:        trace,
			}
		}
		err = errors.Wrapf(errors.ErrInvalidData, "%s: %v", funcName, validation.Issues)
	}

	now := o.now()
	o.logger.Warnw("Direct call failed",
		"data_type", dataType,
		"key", key,
		"error", err)
	return &FetchResult{
		Success:      false,
		Error:        err.Error(),
		DurationMS:   now.Sub(start).Milliseconds(),
		AsOf:         now,
		TriedSources: []string{funcName},
		Trace:        trace,
	}
}

// rank orders dataType's sources by live health: failure rate, then
// consecutive failures, then static priority, all ascending. Unhealthy
// sources inside the skip window are excluded so they cool off.
// Recomputed per call; n is small, so the sort is cheaper than keeping
// a heap current on every success/failure event.
func (o *Orchestrator) rank(dataType string) []*Source {
	o.mu.Lock()
	defer o.mu.Unlock()

	now := o.now()
	eligible := make([]*Source, 0, len(o.sources[dataType]))
	for _, src := range o.sources[dataType] {
		unhealthy := src.TotalCalls >= o.minSample && src.failureRate() >= o.healthThreshold
		if unhealthy && !src.LastFail.IsZero() && now.Sub(src.LastFail) < o.skipWindow {
			o.logger.Debugw("Source cooling off, excluded from ranking",
				"source", src.Name,
				"data_type", dataType,
				"health_score", src.healthScore())
			continue
		}
		eligible = append(eligible, src)
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		a, b := eligible[i], eligible[j]
		if a.failureRate() != b.failureRate() {
			return a.failureRate() < b.failureRate()
		}
		if a.ConsecutiveFailures != b.ConsecutiveFailures {
			return a.ConsecutiveFailures < b.ConsecutiveFailures
		}
		return a.Priority < b.Priority
	})
	return eligible
}

func (o *Orchestrator) recordFailure(src *Source) {
	o.mu.Lock()
	src.TotalCalls++
	src.ConsecutiveFailures++
	src.LastFail = o.now()
	o.mu.Unlock()
	o.breaker.RecordFailure(src.Name)
}

func (o *Orchestrator) recordSuccess(src *Source) {
	o.mu.Lock()
	src.TotalCalls++
	src.TotalSuccesses++
	src.ConsecutiveFailures = 0
	src.LastSuccess = o.now()
	o.mu.Unlock()
	o.breaker.RecordSuccess(src.Name)
}

// record writes the fetch outcome to the journal, if one is attached.
func (o *Orchestrator) record(dataType, key string, result *FetchResult) {
	if o.journal == nil {
		return
	}
	if err := o.journal.Record(dataType, key, result); err != nil {
		o.logger.Warnw("Journal write failed",
			"data_type", dataType,
			"key", key,
			"error", err)
	}
}
