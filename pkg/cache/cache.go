// Package cache implements the in-memory semantic response cache: prompts
// are keyed by a normalized fingerprint, with an optional approximate match
// over live fingerprints by edit-distance ratio. The cache is best-effort
// and process-local; a miss is never an error.
package cache

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/elan-ai/elan/pkg/models"
)

type entry struct {
	fingerprint string
	value       string
	createdAt   time.Time
	ttl         time.Duration
	elem        *list.Element
}

func (e *entry) expired(now time.Time) bool {
	return now.After(e.createdAt.Add(e.ttl))
}

// corrupt reports whether the entry is malformed. Corrupt entries are
// treated as misses and evicted, never surfaced as errors.
func (e *entry) corrupt() bool {
	return e.value == "" || e.ttl <= 0
}

// Cache is a bounded in-memory prompt cache with LRU eviction.
type Cache struct {
	mu         sync.Mutex
	entries    map[string]*entry
	order      *list.List // front = most recently used
	maxEntries int
	threshold  float64
	now        func() time.Time

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

// New creates a Cache holding at most maxEntries entries. Approximate
// matching compares fingerprints and accepts similarity >= threshold;
// a threshold above 1 disables approximate matching entirely.
func New(maxEntries int, threshold float64) *Cache {
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	return &Cache{
		entries:    make(map[string]*entry),
		order:      list.New(),
		maxEntries: maxEntries,
		threshold:  threshold,
		now:        time.Now,
	}
}

// Lookup returns the cached value for a prompt. It tries an exact
// fingerprint match first, then the best approximate match among live
// entries. Absence is the normal miss signal, not an error.
func (c *Cache) Lookup(prompt string) (string, bool) {
	fp := Fingerprint(prompt)
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[fp]; ok {
		if e.corrupt() || e.expired(now) {
			c.remove(e)
		} else {
			c.order.MoveToFront(e.elem)
			c.hits.Add(1)
			return e.value, true
		}
	}

	if best := c.bestMatch(fp, now); best != nil {
		c.order.MoveToFront(best.elem)
		c.hits.Add(1)
		return best.value, true
	}

	c.misses.Add(1)
	return "", false
}

// bestMatch scans live entries for the highest similarity above the
// threshold. Caller holds the lock.
func (c *Cache) bestMatch(fp string, now time.Time) *entry {
	if c.threshold > 1 {
		return nil
	}
	var best *entry
	bestRatio := c.threshold
	for _, e := range c.entries {
		if e.fingerprint == fp {
			continue
		}
		if e.corrupt() || e.expired(now) {
			c.remove(e)
			continue
		}
		if r := Ratio(fp, e.fingerprint); r >= bestRatio {
			best = e
			bestRatio = r
		}
	}
	return best
}

// Store inserts or overwrites the entry for the prompt's fingerprint,
// evicting least-recently-used entries when the table is full.
func (c *Cache) Store(prompt, value string, ttl time.Duration) {
	fp := Fingerprint(prompt)

	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[fp]; ok {
		e.value = value
		e.createdAt = c.now()
		e.ttl = ttl
		c.order.MoveToFront(e.elem)
		return
	}

	for len(c.entries) >= c.maxEntries {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.remove(oldest.Value.(*entry))
		c.evictions.Add(1)
	}

	e := &entry{fingerprint: fp, value: value, createdAt: c.now(), ttl: ttl}
	e.elem = c.order.PushFront(e)
	c.entries[fp] = e
}

// Invalidate removes the entry for a prompt, if present.
func (c *Cache) Invalidate(prompt string) {
	fp := Fingerprint(prompt)
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[fp]; ok {
		c.remove(e)
	}
}

// Sweep removes all expired entries and returns how many were removed.
func (c *Cache) Sweep() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for _, e := range c.entries {
		if e.corrupt() || e.expired(now) {
			c.remove(e)
			removed++
		}
	}
	return removed
}

// StartSweeper runs Sweep on the given interval until ctx is canceled.
func (c *Cache) StartSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.Sweep()
			}
		}
	}()
}

// Clear removes all entries.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
	c.order.Init()
}

// Stats returns cache performance metrics.
func (c *Cache) Stats() models.CacheStats {
	c.mu.Lock()
	entries := int64(len(c.entries))
	c.mu.Unlock()
	return models.CacheStats{
		Entries:   entries,
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
	}
}

// remove deletes an entry from both the map and the LRU list.
// Caller holds the lock.
func (c *Cache) remove(e *entry) {
	delete(c.entries, e.fingerprint)
	c.order.Remove(e.elem)
}
