package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Typed failures let callers branch on rate-limit vs upstream-failure
// without string matching. Only the orchestrator decides retry vs
// propagate; the cache, router, limiter, and tracker report status and
// never retry on their own.
var (
	// ErrProviderUnavailable means every attempted provider failed, after
	// the bounded single retry.
	ErrProviderUnavailable = errors.New("all providers unavailable")

	// ErrUpstreamTimeout marks an upstream call that exceeded its deadline.
	ErrUpstreamTimeout = errors.New("upstream timeout")

	// ErrUpstreamFailed marks a non-timeout upstream failure.
	ErrUpstreamFailed = errors.New("upstream request failed")
)

// RateLimitError reports a denied admission, carrying the window reset
// time so callers can communicate a retry-after. It is never retried
// automatically.
type RateLimitError struct {
	ResetAt time.Time
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.ResetAt.UTC().Format(time.RFC3339))
}

// classify maps a raw upstream error onto the error taxonomy.
func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrUpstreamTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrUpstreamFailed, err)
}
