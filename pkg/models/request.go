package models

// Complexity classifies how demanding a generation task is. The router
// uses it to pick a cost/quality tradeoff among providers.
type Complexity string

const (
	ComplexitySimple  Complexity = "simple"
	ComplexityMedium  Complexity = "medium"
	ComplexityComplex Complexity = "complex"
)

// Downgrade returns the next cheaper complexity class. Simple stays simple.
func (c Complexity) Downgrade() Complexity {
	switch c {
	case ComplexityComplex:
		return ComplexityMedium
	default:
		return ComplexitySimple
	}
}

// Valid reports whether c is a known complexity class.
func (c Complexity) Valid() bool {
	switch c {
	case ComplexitySimple, ComplexityMedium, ComplexityComplex:
		return true
	}
	return false
}

// Tier is the subscription level of the requesting subject.
type Tier string

const (
	TierFree    Tier = "free"
	TierPremium Tier = "premium"
)

// Valid reports whether t is a known tier.
func (t Tier) Valid() bool {
	return t == TierFree || t == TierPremium
}

// GenerationRequest describes a single generation call. It is transient:
// created per call, consumed by the orchestrator, never persisted.
type GenerationRequest struct {
	Prompt     string     `json:"prompt"`
	Category   string     `json:"category,omitempty"`
	Complexity Complexity `json:"complexity"`
	Tier       Tier       `json:"tier"`
	SubjectID  string     `json:"subject_id"`
	Stream     bool       `json:"stream,omitempty"`

	// Degraded marks a retry attempt whose complexity was downgraded
	// after an upstream failure.
	Degraded bool `json:"-"`
}

// GenerationResult is the structured outcome of a generation call.
type GenerationResult struct {
	RequestID        string  `json:"request_id,omitempty"`
	Value            string  `json:"response"`
	Provider         string  `json:"provider"`
	FromCache        bool    `json:"from_cache"`
	Degraded         bool    `json:"degraded,omitempty"`
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	Cost             float64 `json:"cost"`
}
