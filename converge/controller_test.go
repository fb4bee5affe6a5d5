package converge

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vantalabs/vantage/config"
)

func doc(url, content, source string) Document {
	return Document{URL: url, Content: content, Source: source}
}

func TestDedupeByURL(t *testing.T) {
	c := NewController(nil)

	unique, metrics := c.ProcessRound([]Document{
		doc("https://example.com/a", "apple raises guidance for the quarter", "reuters"),
		doc("https://example.com/a", "completely different text, same link", "bloomberg"),
	}, "")

	assert.Equal(t, 1, metrics.UniqueDocsCount)
	require.Len(t, unique, 1)
	assert.Equal(t, "reuters", unique[0].Source)
}

func TestDedupeByContentHash(t *testing.T) {
	c := NewController(nil)

	// Same content modulo case, punctuation, and whitespace
	unique, metrics := c.ProcessRound([]Document{
		doc("https://example.com/a", "Apple raises guidance for the quarter.", "reuters"),
		doc("https://example.com/b", "apple raises   guidance, for the QUARTER", "bloomberg"),
	}, "")

	assert.Equal(t, 1, metrics.UniqueDocsCount)
	require.Len(t, unique, 1)
	assert.Equal(t, "https://example.com/a", unique[0].URL)
}

func TestDedupeBySimilarity(t *testing.T) {
	c := NewController(nil)

	base := "apple shares rose four percent after the company raised its full year guidance citing strong iphone demand"
	nearDup := base + " today" // tiny word-set delta, Jaccard well above 0.7

	unique, _ := c.ProcessRound([]Document{
		doc("https://example.com/a", base, "reuters"),
		doc("https://example.com/b", nearDup, "bloomberg"),
	}, "")

	assert.Len(t, unique, 1)
}

func TestStopOnRepetition(t *testing.T) {
	c := NewController(nil)

	payload := []Document{doc("https://example.com/a", "apple raises guidance", "reuters")}

	_, metrics := c.ProcessRound(payload, "")
	assert.False(t, metrics.ShouldStop)

	_, metrics = c.ProcessRound(payload, "")
	assert.True(t, metrics.ShouldStop)
	assert.Contains(t, metrics.Reason, ReasonNoNewDocuments)
	assert.Equal(t, 0, metrics.UniqueDocsCount)
}

func TestMaxRoundsStop(t *testing.T) {
	c := NewController(nil, WithMaxRounds(2))

	_, metrics := c.ProcessRound([]Document{doc("u1", "first round content about apple", "a")}, "")
	assert.False(t, metrics.ShouldStop)

	_, metrics = c.ProcessRound([]Document{doc("u2", "second round entirely new topics on bonds", "b")}, "")
	assert.True(t, metrics.ShouldStop)
	assert.Equal(t, ReasonMaxRounds, metrics.Reason)
}

func TestInfoGainFullNoveltyWithoutSummary(t *testing.T) {
	c := NewController(nil)

	// 3+ docs from 2+ sources with no prior summary maxes every component
	_, metrics := c.ProcessRound([]Document{
		doc("u1", "alpha earnings commentary", "reuters"),
		doc("u2", "beta rate decision analysis", "bloomberg"),
		doc("u3", "gamma supply chain report", "ft"),
	}, "")

	assert.InDelta(t, 1.0, metrics.InfoGain, 1e-9)
}

func TestInfoGainNoveltyAgainstSummary(t *testing.T) {
	c := NewController(nil, WithMaxRounds(10))

	summary := "apple raised guidance strong iphone demand"
	_, metrics := c.ProcessRound([]Document{
		doc("u1", "apple raised guidance strong iphone demand", "reuters"),
	}, summary)

	// Zero novel words: gain = 0.3*(1/3) + 0.5*0 + 0.2*(1/2) = 0.2
	assert.InDelta(t, 0.2, metrics.InfoGain, 1e-9)
}

func TestConsecutiveLowGainStops(t *testing.T) {
	c := NewController(nil, WithMaxRounds(10))

	summary := "apple raised guidance strong iphone demand analysts upbeat"

	// Each round: one doc, all words already in the summary, one source.
	// gain = 0.3/3 + 0 + 0.1 = 0.2 ... need below 0.15. Use no source:
	// gain = 0.3*(1/3) + 0.5*0 + 0.2*0 = 0.1
	round1 := []Document{{URL: "u1", Content: "apple raised guidance"}}
	round2 := []Document{{URL: "u2", Content: "strong iphone demand"}}

	_, metrics := c.ProcessRound(round1, summary)
	require.False(t, metrics.ShouldStop)
	assert.InDelta(t, 0.1, metrics.InfoGain, 1e-9)

	_, metrics = c.ProcessRound(round2, summary)
	assert.True(t, metrics.ShouldStop)
	assert.Equal(t, ReasonConsecutiveLowGain, metrics.Reason)
}

func TestVeryLowGainStopsImmediately(t *testing.T) {
	c := NewController(nil, WithMaxRounds(10), WithMinGainThreshold(0.0))

	// Min-gain streak disabled; only the hard floor applies.
	// One doc, no source, all words known: gain = 0.1 >= 0.05 floor, so
	// push novelty and volume down with an empty-content doc.
	summary := "apple"
	_, metrics := c.ProcessRound([]Document{{URL: "u1", Content: "apple"}}, summary)
	// gain = 0.3*(1/3) + 0 + 0 = 0.1
	assert.False(t, metrics.ShouldStop)

	c2 := NewController(nil, WithMaxRounds(10), WithHardFloorGain(0.12))
	_, metrics = c2.ProcessRound([]Document{{URL: "u1", Content: "apple"}}, "apple")
	assert.True(t, metrics.ShouldStop)
	assert.Equal(t, ReasonVeryLowGain, metrics.Reason)
}

func TestCumulativeGainAccumulates(t *testing.T) {
	c := NewController(nil, WithMaxRounds(10))

	_, m1 := c.ProcessRound([]Document{doc("u1", "alpha one", "a")}, "")
	_, m2 := c.ProcessRound([]Document{doc("u2", "beta two wholly new", "b")}, "")

	assert.InDelta(t, m1.InfoGain+m2.InfoGain, m2.CumulativeGain, 1e-9)
}

func TestResetStartsFreshSession(t *testing.T) {
	c := NewController(nil)
	payload := []Document{doc("https://example.com/a", "apple raises guidance", "reuters")}

	c.ProcessRound(payload, "")
	firstSession := c.SessionID()

	c.Reset()
	assert.NotEqual(t, firstSession, c.SessionID())
	assert.Equal(t, 0, c.Round())

	// Previously seen docs are new again after reset
	unique, metrics := c.ProcessRound(payload, "")
	assert.Len(t, unique, 1)
	assert.Equal(t, 1, metrics.RoundNum)
}

func TestSlidingWindowBoundsSimilarityChecks(t *testing.T) {
	c := NewController(nil, WithMaxRounds(100), WithContentWindow(2))

	// Fill the window past its bound with distinct docs
	for i := 0; i < 4; i++ {
		docs := []Document{doc(fmt.Sprintf("u%d", i), fmt.Sprintf("entirely distinct content number %d with unique words w%d x%d y%d", i, i, i*7, i*13), "src")}
		unique, _ := c.ProcessRound(docs, "")
		require.Len(t, unique, 1)
	}

	// A near-duplicate of doc 0 passes similarity (doc 0 left the window)
	// but still collides on hash only if identical; vary one word.
	dup := []Document{doc("u-dup", "entirely distinct content number 0 with unique words w0 x0 y0 again", "src")}
	unique, _ := c.ProcessRound(dup, "")
	assert.Len(t, unique, 1)
}

func TestNormalizeContentTruncates(t *testing.T) {
	long := ""
	for i := 0; i < 500; i++ {
		long += fmt.Sprintf("word%d ", i)
	}
	normalized := normalizeContent(long)
	assert.LessOrEqual(t, len(normalized), normalizedContentLimit)
}

func TestNormalizeContentTruncatesOnRuneBoundary(t *testing.T) {
	// 800 three-byte runes exceed the limit; the cut must not split one
	normalized := normalizeContent(strings.Repeat("日", 800))
	assert.LessOrEqual(t, len(normalized), normalizedContentLimit)
	assert.True(t, utf8.ValidString(normalized))
	assert.Zero(t, len(normalized)%3)
}

func TestNewFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Converge.MaxRounds = 5
	cfg.Converge.MinGainThreshold = 0.25
	cfg.Converge.HardFloorGain = 0.10
	cfg.Converge.SimilarityThreshold = 0.8
	cfg.Converge.ContentWindow = 4

	c := NewFromConfig(cfg, nil)

	assert.Equal(t, 5, c.maxRounds)
	assert.InDelta(t, 0.25, c.minGainThreshold, 1e-9)
	assert.InDelta(t, 0.10, c.hardFloorGain, 1e-9)
	assert.InDelta(t, 0.8, c.similarityThreshold, 1e-9)
	assert.Equal(t, 4, c.contentWindow)
	assert.NotEmpty(t, c.SessionID())
}

func TestJaccard(t *testing.T) {
	a := wordSet("apple banana cherry")
	b := wordSet("apple banana date")

	// 2 shared of 4 total
	assert.InDelta(t, 0.5, jaccard(a, b), 1e-9)
	assert.InDelta(t, 1.0, jaccard(a, a), 1e-9)
	assert.Zero(t, jaccard(a, wordSet("")))
}
