// Package provider abstracts upstream LLM providers behind a small
// invocation contract. The orchestrator never depends on a specific
// provider's wire protocol.
package provider

import (
	"context"
	"fmt"

	"github.com/elan-ai/elan/pkg/config"
)

// Stream is a lazy, finite, non-restartable sequence of text fragments.
// Recv returns io.EOF after the final fragment. Both live upstream
// streams and cached-replay streams implement it, so callers never
// special-case cache hits against fresh calls.
type Stream interface {
	Recv() (string, error)
	Close() error
}

// Invoker is an opaque upstream capability.
type Invoker interface {
	// Invoke sends a prompt and returns the full response text.
	Invoke(ctx context.Context, prompt string, maxTokens int) (string, error)
	// InvokeStream sends a prompt and returns the response as a chunk stream.
	InvokeStream(ctx context.Context, prompt string, maxTokens int) (Stream, error)
}

// NewRegistry builds an Invoker per configured provider, keyed by ID.
func NewRegistry(cfgs []config.ProviderConfig) (map[string]Invoker, error) {
	invokers := make(map[string]Invoker, len(cfgs))
	for _, pc := range cfgs {
		switch pc.Type {
		case "", "openai":
			invokers[pc.ID] = NewOpenAI(pc)
		case "anthropic":
			invokers[pc.ID] = NewAnthropic(pc)
		default:
			return nil, fmt.Errorf("provider %q: unknown type %q", pc.ID, pc.Type)
		}
	}
	return invokers, nil
}
