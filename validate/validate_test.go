package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilDataIsInvalid(t *testing.T) {
	res := Validate("price", nil)
	assert.False(t, res.IsValid)
	assert.Zero(t, res.Confidence)
	require.NotEmpty(t, res.Issues)
}

func TestErrorMarkerString(t *testing.T) {
	for _, payload := range []string{
		"Error: connection refused",
		"upstream error (429)",
		"ERROR fetching quote",
	} {
		res := Validate("price", payload)
		assert.False(t, res.IsValid, "payload %q", payload)
		assert.Zero(t, res.Confidence)
	}

	// A benign string passes
	res := Validate("news", "AAPL announces quarterly results")
	assert.True(t, res.IsValid)
	assert.Equal(t, 1.0, res.Confidence)
}

func TestPriceValidation(t *testing.T) {
	res := Validate("price", map[string]interface{}{"price": 150.0, "change_percent": 1.2})
	assert.True(t, res.IsValid)
	assert.Equal(t, 1.0, res.Confidence)

	res = Validate("price", map[string]interface{}{"price": -3.0})
	assert.False(t, res.IsValid)
	assert.Zero(t, res.Confidence)

	res = Validate("price", map[string]interface{}{"price": 250000.0})
	assert.True(t, res.IsValid)
	assert.NotEmpty(t, res.Warnings)
	assert.Less(t, res.Confidence, 1.0)

	// Big daily move warns but does not invalidate
	res = Validate("price", map[string]interface{}{"price": 42.0, "change_percent": -35.0})
	assert.True(t, res.IsValid)
	assert.NotEmpty(t, res.Warnings)
}

func TestPriceMissingField(t *testing.T) {
	res := Validate("price", map[string]interface{}{"symbol": "AAPL"})
	assert.False(t, res.IsValid)
}

func TestFinancialsCrossValidation(t *testing.T) {
	// Consistent: 150 x 1e9 = 1.5e11
	res := Validate("financials", map[string]interface{}{
		"price":              150.0,
		"shares_outstanding": 1e9,
		"market_cap":         1.5e11,
	})
	assert.True(t, res.IsValid)
	assert.Equal(t, 1.0, res.Confidence)

	// Off by 50%: invalidates
	res = Validate("financials", map[string]interface{}{
		"price":              150.0,
		"shares_outstanding": 1e9,
		"market_cap":         3.0e11,
	})
	assert.False(t, res.IsValid)
	require.NotEmpty(t, res.Issues)
	assert.Contains(t, res.Issues[0], "market cap")
}

func TestFinancialsPEWarnings(t *testing.T) {
	res := Validate("financials", map[string]interface{}{"pe_ratio": -12.0})
	assert.True(t, res.IsValid, "negative P/E warns, not fatal")
	assert.NotEmpty(t, res.Warnings)
	assert.InDelta(t, 0.9, res.Confidence, 1e-9)

	res = Validate("financials", map[string]interface{}{"pe_ratio": 5000.0})
	assert.True(t, res.IsValid)
	assert.NotEmpty(t, res.Warnings)
}

func TestNewsValidation(t *testing.T) {
	res := Validate("news", []interface{}{
		map[string]interface{}{"title": "AAPL beats estimates", "url": "https://example.com/a"},
	})
	assert.True(t, res.IsValid)
	assert.Equal(t, 1.0, res.Confidence)

	res = Validate("news", []interface{}{})
	assert.True(t, res.IsValid)
	assert.NotEmpty(t, res.Warnings)

	res = Validate("news", []interface{}{map[string]interface{}{"url": "https://example.com/b"}})
	assert.True(t, res.IsValid)
	assert.NotEmpty(t, res.Warnings)
}

func TestCompanyInfo(t *testing.T) {
	res := Validate("company_info", map[string]interface{}{"name": "Apple Inc.", "sector": "Technology"})
	assert.True(t, res.IsValid)

	res = Validate("company_info", map[string]interface{}{})
	assert.False(t, res.IsValid)

	res = Validate("company_info", map[string]interface{}{"sector": "Technology"})
	assert.True(t, res.IsValid)
	assert.NotEmpty(t, res.Warnings)
}

func TestGenericUnknownType(t *testing.T) {
	res := Validate("economic_events", map[string]interface{}{"events": []interface{}{}})
	assert.True(t, res.IsValid)

	res = Validate("economic_events", map[string]interface{}{})
	assert.False(t, res.IsValid)
}

func TestConfidenceFloorsAtPointSeven(t *testing.T) {
	// Four warnings: 0.9 - 0.3 = 0.6 would undercut the floor
	res := Validate("price", map[string]interface{}{
		"price":          250000.0,
		"change_percent": 50.0,
	})
	assert.True(t, res.IsValid)
	assert.GreaterOrEqual(t, res.Confidence, 0.7)
	assert.LessOrEqual(t, res.Confidence, 0.9)
}

func TestNumericCoercion(t *testing.T) {
	res := Validate("price", map[string]interface{}{"price": 150})
	assert.True(t, res.IsValid, "int prices coerce")

	res = Validate("price", map[string]interface{}{"price": int64(150)})
	assert.True(t, res.IsValid)
}

func TestIsRateLimitMessage(t *testing.T) {
	assert.True(t, IsRateLimitMessage("Error: rate limit exceeded"))
	assert.True(t, IsRateLimitMessage("HTTP 429 Too Many Requests"))
	assert.False(t, IsRateLimitMessage("Error: connection refused"))
}
