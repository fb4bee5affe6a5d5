// Package validate gates what fetched market data is trusted.
//
// Validation is a pure function of (data type, payload): no I/O, no
// state. A payload with any recorded issue is invalid; warnings alone
// never invalidate but reduce confidence.
package validate

import (
	"math"
	"strings"
)

// Result is the outcome of validating one payload.
type Result struct {
	IsValid    bool     `json:"is_valid"`
	Confidence float64  `json:"confidence"`
	Issues     []string `json:"issues,omitempty"`
	Warnings   []string `json:"warnings,omitempty"`
}

// Thresholds for price and financials sanity checks.
const (
	// MaxPlausiblePrice flags quotes above any real per-share price
	MaxPlausiblePrice = 100000.0
	// MaxPlausibleMove flags a daily move that usually means a halt or bad data
	MaxPlausibleMove = 20.0
	// MarketCapTolerance is the allowed relative gap between reported
	// market cap and price x shares outstanding
	MarketCapTolerance = 0.10
	// MaxPlausiblePE flags an absurd price/earnings ratio
	MaxPlausiblePE = 1000.0
)

// Validate dispatches to the validator for dataType. Unknown data types
// get the generic checks only.
func Validate(dataType string, data interface{}) Result {
	if data == nil {
		return invalid("no data returned")
	}

	// A string payload signalling an upstream error is never trusted,
	// whatever the data type.
	if s, ok := data.(string); ok {
		if HasErrorMarker(s) {
			return invalid("error marker in payload: " + truncate(s, 120))
		}
		// Non-error strings pass generic validation as-is
		return clean()
	}

	switch dataType {
	case "price":
		return validatePrice(data)
	case "company_info":
		return validateCompanyInfo(data)
	case "financials":
		return validateFinancials(data)
	case "news":
		return validateNews(data)
	default:
		return validateGeneric(data)
	}
}

// validatePrice checks a structured quote payload.
func validatePrice(data interface{}) Result {
	fields, ok := asMap(data)
	if !ok {
		return validateGeneric(data)
	}

	var issues, warnings []string

	price, hasPrice := asFloat(fields["price"])
	if !hasPrice {
		issues = append(issues, "quote missing price field")
	} else if price <= 0 {
		issues = append(issues, "non-positive price")
	} else if price > MaxPlausiblePrice {
		warnings = append(warnings, "price above plausible range")
	}

	if change, ok := asFloat(fields["change_percent"]); ok {
		if math.Abs(change) > MaxPlausibleMove {
			// Could be a genuine circuit-breaker day; flag, don't reject
			warnings = append(warnings, "daily move exceeds plausible range")
		}
	}

	return build(issues, warnings)
}

// validateCompanyInfo checks a company profile payload.
func validateCompanyInfo(data interface{}) Result {
	fields, ok := asMap(data)
	if !ok {
		return validateGeneric(data)
	}

	var issues, warnings []string

	if len(fields) == 0 {
		issues = append(issues, "empty company profile")
	}
	if name, ok := fields["name"].(string); !ok || strings.TrimSpace(name) == "" {
		warnings = append(warnings, "company profile missing name")
	}

	return build(issues, warnings)
}

// validateFinancials checks fundamentals, including the market-cap
// cross-check against price x shares outstanding.
func validateFinancials(data interface{}) Result {
	fields, ok := asMap(data)
	if !ok {
		return validateGeneric(data)
	}

	var issues, warnings []string

	if pe, ok := asFloat(fields["pe_ratio"]); ok {
		if pe < 0 {
			warnings = append(warnings, "negative P/E ratio")
		} else if pe > MaxPlausiblePE {
			warnings = append(warnings, "P/E ratio above plausible range")
		}
	}

	marketCap, hasCap := asFloat(fields["market_cap"])
	price, hasPrice := asFloat(fields["price"])
	shares, hasShares := asFloat(fields["shares_outstanding"])

	if hasCap && hasPrice && hasShares && price > 0 && shares > 0 {
		implied := price * shares
		if implied > 0 {
			gap := math.Abs(marketCap-implied) / implied
			if gap > MarketCapTolerance {
				issues = append(issues, "market cap inconsistent with price x shares outstanding")
			}
		}
	}

	return build(issues, warnings)
}

// validateNews checks a list of articles.
func validateNews(data interface{}) Result {
	items, ok := asSlice(data)
	if !ok {
		return validateGeneric(data)
	}

	var issues, warnings []string

	if len(items) == 0 {
		warnings = append(warnings, "no articles returned")
	}
	for _, item := range items {
		fields, ok := asMap(item)
		if !ok {
			continue
		}
		if title, ok := fields["title"].(string); !ok || title == "" {
			warnings = append(warnings, "article missing title")
			break
		}
	}

	return build(issues, warnings)
}

// validateGeneric applies the checks shared by every data type.
func validateGeneric(data interface{}) Result {
	if fields, ok := asMap(data); ok && len(fields) == 0 {
		return invalid("empty payload")
	}
	return clean()
}

// HasErrorMarker reports whether a string payload carries the
// out-of-band failure signal for string-returning sources: the
// substring "error", case-insensitive.
func HasErrorMarker(s string) bool {
	return strings.Contains(strings.ToLower(s), "error")
}

// IsRateLimitMessage reports whether an error string looks like an
// upstream rate limit, so callers can log it distinctly.
func IsRateLimitMessage(s string) bool {
	lower := strings.ToLower(s)
	return strings.Contains(lower, "rate limit") ||
		strings.Contains(lower, "too many requests") ||
		strings.Contains(lower, "429")
}

// build assembles a Result with the confidence heuristic:
// 1.0 clean, 0.7-0.9 with only warnings, 0.0 with any issue.
func build(issues, warnings []string) Result {
	if len(issues) > 0 {
		return Result{IsValid: false, Confidence: 0, Issues: issues, Warnings: warnings}
	}
	confidence := 1.0
	if n := len(warnings); n > 0 {
		confidence = 0.9 - 0.1*float64(n-1)
		if confidence < 0.7 {
			confidence = 0.7
		}
	}
	return Result{IsValid: true, Confidence: confidence, Warnings: warnings}
}

func clean() Result {
	return Result{IsValid: true, Confidence: 1.0}
}

func invalid(issue string) Result {
	return Result{IsValid: false, Confidence: 0, Issues: []string{issue}}
}

// asMap normalizes dict-shaped payloads.
func asMap(v interface{}) (map[string]interface{}, bool) {
	m, ok := v.(map[string]interface{})
	return m, ok
}

// asSlice normalizes list-shaped payloads.
func asSlice(v interface{}) ([]interface{}, bool) {
	s, ok := v.([]interface{})
	return s, ok
}

// asFloat coerces the numeric types JSON decoding and source adapters produce.
func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
