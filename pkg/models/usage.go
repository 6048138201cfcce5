package models

import "time"

// ProviderUsage accumulates token usage and estimated cost for one provider.
type ProviderUsage struct {
	Requests         int64   `json:"requests"`
	PromptTokens     int64   `json:"prompt_tokens"`
	CompletionTokens int64   `json:"completion_tokens"`
	Cost             float64 `json:"cost"`
}

// Add folds a single call's usage into the accumulator.
func (u *ProviderUsage) Add(promptTokens, completionTokens int, cost float64) {
	u.Requests++
	u.PromptTokens += int64(promptTokens)
	u.CompletionTokens += int64(completionTokens)
	u.Cost += cost
}

// UsageTotals is a read-only aggregation of tracked usage.
type UsageTotals struct {
	ByProvider map[string]ProviderUsage `json:"by_provider"`
	Total      ProviderUsage            `json:"total"`
}

// UsageSnapshot is one durable row of accumulated usage, captured from
// the in-memory tracker and archived by an external store.
type UsageSnapshot struct {
	CapturedAt       time.Time `json:"captured_at"`
	Provider         string    `json:"provider"`
	Requests         int64     `json:"requests"`
	PromptTokens     int64     `json:"prompt_tokens"`
	CompletionTokens int64     `json:"completion_tokens"`
	Cost             float64   `json:"cost"`
}
