// Package converge decides when iterative research rounds stop adding
// information.
//
// A Controller consumes one round of retrieved documents at a time,
// deduplicates against everything accepted earlier in the session,
// scores the round's information gain, and returns a stop/continue
// signal. It is pure and deterministic given stable hashing: no I/O,
// no network, which keeps it unit-testable independent of whatever
// search driver calls it.
package converge

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vantalabs/vantage/config"
)

// Document is one retrieved item in a research round.
type Document struct {
	URL     string `json:"url"`
	Title   string `json:"title,omitempty"`
	Content string `json:"content"`
	Source  string `json:"source,omitempty"`
}

// Metrics is the per-round convergence record.
type Metrics struct {
	RoundNum        int     `json:"round_num"`
	NewDocsCount    int     `json:"new_docs_count"`
	UniqueDocsCount int     `json:"unique_docs_count"`
	InfoGain        float64 `json:"info_gain"`
	CumulativeGain  float64 `json:"cumulative_gain"`
	ShouldStop      bool    `json:"should_stop"`
	Reason          string  `json:"reason,omitempty"`
}

// Stop reasons reported in Metrics.Reason.
const (
	ReasonMaxRounds          = "max_rounds_reached"
	ReasonNoNewDocuments     = "no_new_documents"
	ReasonConsecutiveLowGain = "consecutive_low_gain"
	ReasonVeryLowGain        = "very_low_gain"
)

// Tuning defaults. All overridable via options.
const (
	DefaultMaxRounds           = 3
	DefaultMinGainThreshold    = 0.15
	DefaultHardFloorGain       = 0.05
	DefaultSimilarityThreshold = 0.7
	DefaultContentWindow       = 10

	// normalizedContentLimit bounds hashing and similarity work per doc
	normalizedContentLimit = 2000

	// lowGainStreakLimit is how many consecutive low-gain rounds stop a session
	lowGainStreakLimit = 2
)

// Info gain blend weights: volume, novelty, source diversity.
const (
	volumeWeight    = 0.3
	noveltyWeight   = 0.5
	diversityWeight = 0.2
)

// Controller holds one research session's cross-round state.
// Reset starts a new session; a Controller is not safe for concurrent use.
type Controller struct {
	sessionID string
	round     int

	seenHashes map[string]struct{}
	seenURLs   map[string]struct{}
	allContent []string // sliding window of last accepted normalized contents

	lowGainCount   int
	cumulativeGain float64

	maxRounds           int
	minGainThreshold    float64
	hardFloorGain       float64
	similarityThreshold float64
	contentWindow       int

	logger *zap.SugaredLogger
}

// Option configures a Controller.
type Option func(*Controller)

// WithMaxRounds caps the number of rounds per session.
func WithMaxRounds(n int) Option {
	return func(c *Controller) { c.maxRounds = n }
}

// WithMinGainThreshold sets the low-gain round cutoff.
func WithMinGainThreshold(g float64) Option {
	return func(c *Controller) { c.minGainThreshold = g }
}

// WithHardFloorGain sets the single-round stop floor.
func WithHardFloorGain(g float64) Option {
	return func(c *Controller) { c.hardFloorGain = g }
}

// WithSimilarityThreshold sets the Jaccard dedup cutoff.
func WithSimilarityThreshold(s float64) Option {
	return func(c *Controller) { c.similarityThreshold = s }
}

// WithContentWindow sets how many accepted docs are retained for
// similarity checks.
func WithContentWindow(n int) Option {
	return func(c *Controller) { c.contentWindow = n }
}

// NewController creates a Controller for a fresh research session.
func NewController(log *zap.SugaredLogger, opts ...Option) *Controller {
	c := &Controller{
		maxRounds:           DefaultMaxRounds,
		minGainThreshold:    DefaultMinGainThreshold,
		hardFloorGain:       DefaultHardFloorGain,
		similarityThreshold: DefaultSimilarityThreshold,
		contentWindow:       DefaultContentWindow,
		logger:              log,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = zap.NewNop().Sugar()
	}
	c.resetState()
	return c
}

// NewFromConfig builds a Controller from the loaded configuration's
// converge section.
func NewFromConfig(cfg *config.Config, log *zap.SugaredLogger) *Controller {
	return NewController(log,
		WithMaxRounds(cfg.Converge.MaxRounds),
		WithMinGainThreshold(cfg.Converge.MinGainThreshold),
		WithHardFloorGain(cfg.Converge.HardFloorGain),
		WithSimilarityThreshold(cfg.Converge.SimilarityThreshold),
		WithContentWindow(cfg.Converge.ContentWindow))
}

// SessionID identifies the current research session.
func (c *Controller) SessionID() string {
	return c.sessionID
}

// Round returns the number of rounds processed so far this session.
func (c *Controller) Round() int {
	return c.round
}

// Reset clears all cross-round state and starts a new session.
func (c *Controller) Reset() {
	c.resetState()
	c.logger.Debugw("Convergence session reset",
		"session_id", c.sessionID)
}

func (c *Controller) resetState() {
	c.sessionID = uuid.NewString()
	c.round = 0
	c.seenHashes = make(map[string]struct{})
	c.seenURLs = make(map[string]struct{})
	c.allContent = nil
	c.lowGainCount = 0
	c.cumulativeGain = 0
}

// ProcessRound deduplicates one round of documents, scores its
// information gain against previousSummary, and decides whether another
// round is worth running.
func (c *Controller) ProcessRound(newDocs []Document, previousSummary string) ([]Document, Metrics) {
	c.round++

	unique := c.dedupe(newDocs)
	gain := c.infoGain(unique, previousSummary)
	c.cumulativeGain += gain

	if gain < c.minGainThreshold {
		c.lowGainCount++
	} else {
		c.lowGainCount = 0
	}

	metrics := Metrics{
		RoundNum:        c.round,
		NewDocsCount:    len(newDocs),
		UniqueDocsCount: len(unique),
		InfoGain:        gain,
		CumulativeGain:  c.cumulativeGain,
	}

	// Stop rules in priority order
	switch {
	case c.round >= c.maxRounds:
		metrics.ShouldStop = true
		metrics.Reason = ReasonMaxRounds
	case len(unique) == 0:
		metrics.ShouldStop = true
		metrics.Reason = ReasonNoNewDocuments
	case c.lowGainCount >= lowGainStreakLimit:
		metrics.ShouldStop = true
		metrics.Reason = ReasonConsecutiveLowGain
	case gain < c.hardFloorGain:
		metrics.ShouldStop = true
		metrics.Reason = ReasonVeryLowGain
	}

	c.logger.Debugw("Convergence round processed",
		"session_id", c.sessionID,
		"round", metrics.RoundNum,
		"unique_docs", metrics.UniqueDocsCount,
		"info_gain", metrics.InfoGain,
		"stop_reason", metrics.Reason)

	return unique, metrics
}

// dedupe drops documents already seen by URL, by normalized-content
// hash, or by near-duplicate similarity to recently accepted docs.
func (c *Controller) dedupe(docs []Document) []Document {
	var unique []Document

	for _, doc := range docs {
		if doc.URL != "" {
			if _, seen := c.seenURLs[doc.URL]; seen {
				continue
			}
		}

		normalized := normalizeContent(doc.Content)
		hash := contentHash(normalized)
		if _, seen := c.seenHashes[hash]; seen {
			continue
		}

		if c.tooSimilar(normalized) {
			continue
		}

		// Accept: record in session state
		if doc.URL != "" {
			c.seenURLs[doc.URL] = struct{}{}
		}
		c.seenHashes[hash] = struct{}{}
		c.allContent = append(c.allContent, normalized)
		if len(c.allContent) > c.contentWindow {
			c.allContent = c.allContent[len(c.allContent)-c.contentWindow:]
		}

		unique = append(unique, doc)
	}

	return unique
}

// tooSimilar reports whether content is a near-duplicate of any doc in
// the sliding window.
func (c *Controller) tooSimilar(normalized string) bool {
	words := wordSet(normalized)
	if len(words) == 0 {
		return false
	}
	for _, prior := range c.allContent {
		if jaccard(words, wordSet(prior)) > c.similarityThreshold {
			return true
		}
	}
	return false
}

// infoGain blends round volume, word-level novelty against the prior
// summary, and source diversity into a 0-1 score.
func (c *Controller) infoGain(unique []Document, previousSummary string) float64 {
	if len(unique) == 0 {
		return 0
	}

	volume := float64(len(unique)) / 3.0
	if volume > 1 {
		volume = 1
	}

	novelty := 1.0
	if previousSummary != "" {
		summaryWords := wordSet(normalizeContent(previousSummary))
		var total, novel int
		for _, doc := range unique {
			for word := range wordSet(normalizeContent(doc.Content)) {
				total++
				if _, known := summaryWords[word]; !known {
					novel++
				}
			}
		}
		if total > 0 {
			novelty = float64(novel) / float64(total)
		}
	}

	sources := make(map[string]struct{})
	for _, doc := range unique {
		if doc.Source != "" {
			sources[doc.Source] = struct{}{}
		}
	}
	diversity := float64(len(sources)) / 2.0
	if diversity > 1 {
		diversity = 1
	}

	return volumeWeight*volume + noveltyWeight*novelty + diversityWeight*diversity
}

// normalizeContent lowercases, strips punctuation, collapses whitespace,
// and truncates, so hashing and similarity ignore formatting noise.
func normalizeContent(content string) string {
	lower := strings.ToLower(content)

	var b strings.Builder
	b.Grow(len(lower))
	lastSpace := true
	for _, r := range lower {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastSpace = false
		case unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r):
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
		}
	}

	normalized := strings.TrimSpace(b.String())
	if len(normalized) > normalizedContentLimit {
		// Back off to a rune boundary so multibyte content stays valid
		cut := normalizedContentLimit
		for cut > 0 && !utf8.RuneStart(normalized[cut]) {
			cut--
		}
		normalized = normalized[:cut]
	}
	return normalized
}

// contentHash returns the MD5 hex digest of normalized content.
func contentHash(normalized string) string {
	sum := md5.Sum([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// wordSet splits normalized content into its set of words.
func wordSet(normalized string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(normalized) {
		set[w] = struct{}{}
	}
	return set
}

// jaccard computes |a∩b| / |a∪b| over word sets.
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	intersection := 0
	for w := range a {
		if _, ok := b[w]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// String renders metrics for logs and CLI output.
func (m Metrics) String() string {
	return fmt.Sprintf("round %d: %d/%d unique, gain %.2f (cumulative %.2f), stop=%t %s",
		m.RoundNum, m.UniqueDocsCount, m.NewDocsCount, m.InfoGain, m.CumulativeGain, m.ShouldStop, m.Reason)
}
