// Package orchestrator is the façade over the AI request pipeline: rate
// limiting, semantic cache, provider routing, circuit breaking, and cost
// tracking. Callers receive a structured result distinguishing "served
// from cache", "served fresh", and typed failures.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/elan-ai/elan/pkg/breaker"
	"github.com/elan-ai/elan/pkg/cache"
	"github.com/elan-ai/elan/pkg/config"
	"github.com/elan-ai/elan/pkg/models"
	"github.com/elan-ai/elan/pkg/provider"
	"github.com/elan-ai/elan/pkg/ratelimit"
	"github.com/elan-ai/elan/pkg/router"
	"github.com/elan-ai/elan/pkg/tracker"
)

// Orchestrator coordinates a generation request end to end. All shared
// state lives in the injected collaborators; invocations are independent
// and safe to run concurrently.
type Orchestrator struct {
	cacheCfg config.CacheConfig
	timeout  time.Duration

	cache    *cache.Cache // nil when caching is disabled
	limiter  *ratelimit.Limiter
	router   *router.Router
	breakers *breaker.Registry
	tracker  *tracker.Tracker
	invokers map[string]provider.Invoker
	log      *zap.Logger

	// sf collapses concurrent misses on the same fingerprint into one
	// upstream call.
	sf singleflight.Group
}

// New wires an Orchestrator from its collaborators. The cache may be nil.
func New(
	cfg *config.Config,
	c *cache.Cache,
	l *ratelimit.Limiter,
	rt *router.Router,
	br *breaker.Registry,
	tr *tracker.Tracker,
	invokers map[string]provider.Invoker,
	log *zap.Logger,
) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{
		cacheCfg: cfg.Cache,
		timeout:  cfg.Upstream.Timeout,
		cache:    c,
		limiter:  l,
		router:   rt,
		breakers: br,
		tracker:  tr,
		invokers: invokers,
		log:      log,
	}
}

// Generate serves a non-streaming request: cache lookup, admission check,
// routed upstream call with one bounded downgrade retry, then cost
// recording and cache write.
func (o *Orchestrator) Generate(ctx context.Context, req models.GenerationRequest) (*models.GenerationResult, error) {
	if o.cache != nil {
		if value, ok := o.cache.Lookup(req.Prompt); ok {
			return &models.GenerationResult{Value: value, FromCache: true}, nil
		}
	}

	if err := o.admit(req.SubjectID); err != nil {
		return nil, err
	}

	// Concurrent misses for the same normalized prompt share one
	// upstream call and its result.
	v, err, _ := o.sf.Do(cache.Fingerprint(req.Prompt), func() (any, error) {
		return o.fulfill(ctx, req)
	})
	if err != nil {
		return nil, err
	}

	// Each caller gets its own copy: collapsed callers stamp their own
	// request IDs, so the shared struct must never escape.
	result := *v.(*models.GenerationResult)
	return &result, nil
}

// GenerateStream serves a streaming request. A cache hit is replayed as
// a chunk sequence; a miss opens a live upstream stream. Either way the
// caller receives one Stream whose Result is available after io.EOF.
func (o *Orchestrator) GenerateStream(ctx context.Context, req models.GenerationRequest) (*ResultStream, error) {
	if o.cache != nil {
		if value, ok := o.cache.Lookup(req.Prompt); ok {
			return &ResultStream{
				inner:     provider.NewReplay(value, provider.DefaultReplayChunkSize),
				fromCache: true,
			}, nil
		}
	}

	if err := o.admit(req.SubjectID); err != nil {
		return nil, err
	}

	prof := o.router.Select(req.Complexity, req.Tier)
	inner, err := o.openStream(ctx, prof, req.Prompt)
	if err != nil {
		if ctx.Err() != nil {
			// Caller canceled: abandon without breaker accounting.
			return nil, fmt.Errorf("generate: %w", ctx.Err())
		}
		o.breakers.RecordFailure(prof.ID)
		o.log.Warn("stream open failed",
			zap.String("provider", prof.ID),
			zap.Error(err))

		if prof.ID == o.router.LastResort().ID {
			return nil, fmt.Errorf("%w: %w", ErrProviderUnavailable, classify(err))
		}

		req.Complexity = req.Complexity.Downgrade()
		req.Degraded = true
		retryProf := o.router.Select(req.Complexity, req.Tier)
		inner, err = o.openStream(ctx, retryProf, req.Prompt)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("generate: %w", ctx.Err())
			}
			o.breakers.RecordFailure(retryProf.ID)
			return nil, fmt.Errorf("%w: %w", ErrProviderUnavailable, classify(err))
		}
		prof = retryProf
	}

	return &ResultStream{ctx: ctx, o: o, inner: inner, req: req, prof: prof}, nil
}

// admit runs the admission checks, broadest class first.
func (o *Orchestrator) admit(subjectID string) error {
	for _, class := range []ratelimit.Class{ratelimit.ClassGlobal, ratelimit.ClassRequest, ratelimit.ClassAI} {
		if dec := o.limiter.Allow(subjectID, class); !dec.Allowed {
			return &RateLimitError{ResetAt: dec.ResetAt}
		}
	}
	return nil
}

// fulfill executes the routed upstream call, retrying once with a
// downgraded complexity when the first provider was not already the last
// resort. Retry depth is bounded by construction, never by recursion.
func (o *Orchestrator) fulfill(ctx context.Context, req models.GenerationRequest) (*models.GenerationResult, error) {
	prof := o.router.Select(req.Complexity, req.Tier)

	text, err := o.invoke(ctx, prof, req.Prompt)
	if err != nil {
		if ctx.Err() != nil {
			// Caller canceled: abandon without cost record, cache write,
			// or breaker accounting.
			return nil, fmt.Errorf("generate: %w", ctx.Err())
		}
		o.breakers.RecordFailure(prof.ID)
		o.log.Warn("upstream call failed",
			zap.String("provider", prof.ID),
			zap.String("complexity", string(req.Complexity)),
			zap.Error(err))

		if prof.ID == o.router.LastResort().ID {
			return nil, fmt.Errorf("%w: %w", ErrProviderUnavailable, classify(err))
		}

		req.Complexity = req.Complexity.Downgrade()
		req.Degraded = true
		prof = o.router.Select(req.Complexity, req.Tier)

		text, err = o.invoke(ctx, prof, req.Prompt)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("generate: %w", ctx.Err())
			}
			o.breakers.RecordFailure(prof.ID)
			return nil, fmt.Errorf("%w: %w", ErrProviderUnavailable, classify(err))
		}
	}

	return o.complete(req, prof, text), nil
}

// complete records the successful outcome and writes the cache entry.
func (o *Orchestrator) complete(req models.GenerationRequest, prof models.ProviderProfile, text string) *models.GenerationResult {
	o.breakers.RecordSuccess(prof.ID)

	promptTokens := estimateTokens(req.Prompt)
	completionTokens := estimateTokens(text)
	cost := o.tracker.Record(prof.ID, req.SubjectID, promptTokens, completionTokens)

	if o.cache != nil {
		o.cache.Store(req.Prompt, text, o.cacheCfg.TTLFor(req.Category))
	}

	return &models.GenerationResult{
		Value:            text,
		Provider:         prof.ID,
		Degraded:         req.Degraded,
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		Cost:             cost,
	}
}

// invoke runs a blocking upstream call under the per-call timeout.
// A timeout is indistinguishable from any other failure for breaker and
// retry purposes.
func (o *Orchestrator) invoke(ctx context.Context, prof models.ProviderProfile, prompt string) (string, error) {
	inv, ok := o.invokers[prof.ID]
	if !ok {
		return "", fmt.Errorf("no invoker for provider %q", prof.ID)
	}

	callCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()
	return inv.Invoke(callCtx, prompt, prof.MaxTokens)
}

// openStream opens a live upstream stream. The per-call timeout applies
// to opening only; chunk delivery runs under the caller's context so
// long responses are not cut mid-stream.
func (o *Orchestrator) openStream(ctx context.Context, prof models.ProviderProfile, prompt string) (provider.Stream, error) {
	inv, ok := o.invokers[prof.ID]
	if !ok {
		return nil, fmt.Errorf("no invoker for provider %q", prof.ID)
	}
	return inv.InvokeStream(ctx, prompt, prof.MaxTokens)
}

// estimateTokens approximates a token count from character length when an
// exact tokenizer count is unavailable. Roughly four characters per token.
func estimateTokens(s string) int {
	if s == "" {
		return 0
	}
	return (len(s) + 3) / 4
}
