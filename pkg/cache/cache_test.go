package cache

import (
	"math"
	"testing"
	"time"
)

func TestFingerprint(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		same bool
	}{
		{"case and punctuation", "Daily tip, please!", "daily tip please", true},
		{"whitespace collapse", "daily   tip\tplease", "daily tip please", true},
		{"word order", "daily tip for user a", "for user a daily tip", true},
		{"different tokens", "daily tip", "weekly tip", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Fingerprint(tt.a) == Fingerprint(tt.b)
			if got != tt.same {
				t.Errorf("Fingerprint(%q) vs Fingerprint(%q): same=%v, want %v", tt.a, tt.b, got, tt.same)
			}
		})
	}
}

func TestRatio(t *testing.T) {
	if r := Ratio("abc", "abc"); r != 1 {
		t.Errorf("identical strings: got %v, want 1", r)
	}
	if r := Ratio("", ""); r != 1 {
		t.Errorf("empty strings: got %v, want 1", r)
	}
	if r := Ratio("abcd", "wxyz"); r != 0 {
		t.Errorf("disjoint strings: got %v, want 0", r)
	}
	// One substitution in ten characters.
	if r := Ratio("abcdefghij", "abcdefghiX"); math.Abs(r-0.9) > 1e-9 {
		t.Errorf("single substitution: got %v, want 0.9", r)
	}
}

func TestStoreAndLookup(t *testing.T) {
	c := New(10, 0.85)
	c.Store("daily tip for user a", "drink water", time.Hour)

	v, ok := c.Lookup("daily tip for user a")
	if !ok {
		t.Fatal("expected cache hit")
	}
	if v != "drink water" {
		t.Errorf("unexpected value: %q", v)
	}
}

func TestLookupReorderedWords(t *testing.T) {
	c := New(10, 0.85)
	c.Store("daily tip for user a", "drink water", time.Hour)

	// Same token multiset normalizes to the same fingerprint.
	v, ok := c.Lookup("for user a, daily tip")
	if !ok {
		t.Fatal("expected hit for reordered wording")
	}
	if v != "drink water" {
		t.Errorf("unexpected value: %q", v)
	}
}

func TestLookupApproximateMatch(t *testing.T) {
	c := New(10, 0.85)
	c.Store("please generate a personalized daily wellness tip for user alpha", "stretch often", time.Hour)

	// One token changed out of a long prompt stays above the threshold.
	v, ok := c.Lookup("please generate a personalized daily wellness tip for user alphas")
	if !ok {
		t.Fatal("expected approximate hit")
	}
	if v != "stretch often" {
		t.Errorf("unexpected value: %q", v)
	}
}

func TestLookupNoBleedAcrossDissimilarPrompts(t *testing.T) {
	c := New(10, 0.85)
	c.Store("daily tip for user a", "drink water", time.Hour)

	if _, ok := c.Lookup("weekly goal review summary"); ok {
		t.Error("expected miss for dissimilar prompt")
	}
	// Below-threshold edit distance must also miss.
	if _, ok := c.Lookup("daily tip request for user a"); ok {
		t.Error("expected miss when similarity is below threshold")
	}
}

func TestTTLExpiry(t *testing.T) {
	c := New(10, 0.85)
	now := time.Now()
	c.now = func() time.Time { return now }

	c.Store("prompt", "value", time.Minute)

	if _, ok := c.Lookup("prompt"); !ok {
		t.Fatal("expected hit before expiry")
	}

	now = now.Add(2 * time.Minute)
	if _, ok := c.Lookup("prompt"); ok {
		t.Error("expected miss after TTL elapsed")
	}
	if stats := c.Stats(); stats.Entries != 0 {
		t.Errorf("expired entry not removed: %d entries", stats.Entries)
	}
}

func TestOverwriteSameFingerprint(t *testing.T) {
	c := New(10, 0.85)
	c.Store("prompt", "old", time.Hour)
	c.Store("prompt", "new", time.Hour)

	v, _ := c.Lookup("prompt")
	if v != "new" {
		t.Errorf("expected overwrite, got %q", v)
	}
	if stats := c.Stats(); stats.Entries != 1 {
		t.Errorf("expected 1 entry, got %d", stats.Entries)
	}
}

func TestLRUEviction(t *testing.T) {
	c := New(2, 2) // threshold > 1 disables approximate matching
	c.Store("prompt one", "v1", time.Hour)
	c.Store("prompt two", "v2", time.Hour)

	// Touch "prompt one" so "prompt two" becomes least recently used.
	if _, ok := c.Lookup("prompt one"); !ok {
		t.Fatal("expected hit")
	}

	c.Store("prompt three", "v3", time.Hour)

	if _, ok := c.Lookup("prompt two"); ok {
		t.Error("expected LRU entry to be evicted")
	}
	if _, ok := c.Lookup("prompt one"); !ok {
		t.Error("recently used entry should survive eviction")
	}
	if stats := c.Stats(); stats.Evictions != 1 {
		t.Errorf("expected 1 eviction, got %d", stats.Evictions)
	}
}

func TestSweep(t *testing.T) {
	c := New(10, 0.85)
	now := time.Now()
	c.now = func() time.Time { return now }

	c.Store("short lived", "v", time.Minute)
	c.Store("long lived", "v", time.Hour)

	now = now.Add(10 * time.Minute)
	if removed := c.Sweep(); removed != 1 {
		t.Errorf("expected 1 swept entry, got %d", removed)
	}
	if stats := c.Stats(); stats.Entries != 1 {
		t.Errorf("expected 1 remaining entry, got %d", stats.Entries)
	}
}

func TestCorruptEntryTreatedAsMiss(t *testing.T) {
	c := New(10, 0.85)
	c.Store("prompt", "value", time.Hour)

	// Damage the entry directly; lookups must treat it as a miss and evict.
	c.mu.Lock()
	for _, e := range c.entries {
		e.value = ""
	}
	c.mu.Unlock()

	if _, ok := c.Lookup("prompt"); ok {
		t.Error("expected corrupt entry to read as miss")
	}
	if stats := c.Stats(); stats.Entries != 0 {
		t.Errorf("corrupt entry not evicted: %d entries", stats.Entries)
	}
}

func TestInvalidate(t *testing.T) {
	c := New(10, 0.85)
	c.Store("prompt", "value", time.Hour)
	c.Invalidate("prompt")

	if _, ok := c.Lookup("prompt"); ok {
		t.Error("expected miss after invalidation")
	}
}

func TestStats(t *testing.T) {
	c := New(10, 0.85)
	c.Store("prompt", "value", time.Hour)

	c.Lookup("prompt")                // hit
	c.Lookup("something unrelated")   // miss

	stats := c.Stats()
	if stats.Hits != 1 || stats.Misses != 1 || stats.Entries != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}
