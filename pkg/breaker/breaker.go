// Package breaker tracks consecutive upstream failures per provider and
// gates routing through a Closed -> Open -> Half-Open state machine.
package breaker

import (
	"sync"
	"time"
)

// State is the externally visible circuit state.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half-open"
)

type circuit struct {
	failures int
	openedAt time.Time // zero while closed
	probing  bool      // a half-open probe is in flight
}

// Registry holds one circuit per provider. The orchestrator reports
// success/failure after each upstream call; the router consults Allow.
type Registry struct {
	mu        sync.Mutex
	threshold int
	cooldown  time.Duration
	circuits  map[string]*circuit
	now       func() time.Time
}

// New creates a Registry that opens a circuit after threshold consecutive
// failures and keeps it open for the cooldown duration.
func New(threshold int, cooldown time.Duration) *Registry {
	if threshold <= 0 {
		threshold = 5
	}
	if cooldown <= 0 {
		cooldown = time.Minute
	}
	return &Registry{
		threshold: threshold,
		cooldown:  cooldown,
		circuits:  make(map[string]*circuit),
		now:       time.Now,
	}
}

// Allow reports whether a request may be routed to the provider. An open
// circuit whose cooldown has elapsed admits exactly one probe request;
// further requests are rejected until the probe's outcome is recorded.
func (r *Registry) Allow(providerID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.circuits[providerID]
	if !ok || c.openedAt.IsZero() {
		return true
	}
	if r.now().Sub(c.openedAt) < r.cooldown {
		return false
	}
	if c.probing {
		return false
	}
	c.probing = true
	return true
}

// RecordSuccess closes the provider's circuit and resets its failure count.
func (r *Registry) RecordSuccess(providerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.circuits[providerID]
	if !ok {
		return
	}
	c.failures = 0
	c.openedAt = time.Time{}
	c.probing = false
}

// RecordFailure counts a failure. Reaching the threshold opens the
// circuit; a failed half-open probe reopens it with a fresh cooldown.
func (r *Registry) RecordFailure(providerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.circuits[providerID]
	if !ok {
		c = &circuit{}
		r.circuits[providerID] = c
	}

	if c.probing {
		c.probing = false
		c.openedAt = r.now()
		return
	}

	c.failures++
	if c.failures >= r.threshold && c.openedAt.IsZero() {
		c.openedAt = r.now()
	}
}

// State returns the provider circuit's current state.
func (r *Registry) State(providerID string) State {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.circuits[providerID]
	if !ok || c.openedAt.IsZero() {
		return StateClosed
	}
	if r.now().Sub(c.openedAt) >= r.cooldown {
		return StateHalfOpen
	}
	return StateOpen
}

// Snapshot returns the state of every tracked circuit.
func (r *Registry) Snapshot() map[string]State {
	r.mu.Lock()
	ids := make([]string, 0, len(r.circuits))
	for id := range r.circuits {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	out := make(map[string]State, len(ids))
	for _, id := range ids {
		out[id] = r.State(id)
	}
	return out
}
