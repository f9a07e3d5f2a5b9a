// Package pricing converts model token counts into API-equivalent USD
// estimates. These are estimates of what the same traffic would cost via the
// API, not subscription charges.
package pricing

import "strings"

// Rates are USD per million tokens for one model.
type Rates struct {
	Input       float64
	Output      float64
	CacheRead   float64
	CacheCreate float64
}

var defaultRates = map[string]Rates{
	"claude-sonnet-4-20250514":  {Input: 3, Output: 15, CacheRead: 0.3, CacheCreate: 0.75},
	"claude-opus-4-5-20251101":  {Input: 15, Output: 75, CacheRead: 1.5, CacheCreate: 3.75},
	"claude-opus-4-6":           {Input: 15, Output: 75, CacheRead: 1.5, CacheCreate: 3.75},
	"claude-haiku-4-5-20251001": {Input: 0.25, Output: 1.25, CacheRead: 0.025, CacheCreate: 0.0625},
}

// ForModel resolves rates for a model string: exact match first, then a
// family match by substring. Unknown families price as sonnet.
func ForModel(model string) Rates {
	if r, ok := defaultRates[model]; ok {
		return r
	}
	lower := strings.ToLower(model)
	switch {
	case strings.Contains(lower, "opus"):
		return defaultRates["claude-opus-4-5-20251101"]
	case strings.Contains(lower, "haiku"):
		return defaultRates["claude-haiku-4-5-20251001"]
	default:
		return defaultRates["claude-sonnet-4-20250514"]
	}
}

// Estimate prices a token breakdown against the model's rates.
func Estimate(model string, inputTokens, outputTokens, cacheReadTokens, cacheCreateTokens int) float64 {
	r := ForModel(model)
	return float64(inputTokens)/1_000_000*r.Input +
		float64(outputTokens)/1_000_000*r.Output +
		float64(cacheReadTokens)/1_000_000*r.CacheRead +
		float64(cacheCreateTokens)/1_000_000*r.CacheCreate
}
