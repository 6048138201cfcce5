package models

// ProviderProfile is the static, runtime-immutable description of an
// upstream LLM provider. The router reads it; nothing mutates it.
type ProviderProfile struct {
	ID                  string
	Type                string // "openai" or "anthropic"
	Model               string
	PromptCostPer1K     float64
	CompletionCostPer1K float64
	MaxTokens           int
	Speed               int     // relative speed rank, higher is faster
	Reliability         float64 // 0..1 hint, not a guarantee
}

// CostPer1K returns the combined prompt+completion rate, used to order
// providers from cheapest to most expensive.
func (p ProviderProfile) CostPer1K() float64 {
	return p.PromptCostPer1K + p.CompletionCostPer1K
}

// Cost computes the estimated monetary cost of a single call.
func (p ProviderProfile) Cost(promptTokens, completionTokens int) float64 {
	return float64(promptTokens)/1000*p.PromptCostPer1K +
		float64(completionTokens)/1000*p.CompletionCostPer1K
}
