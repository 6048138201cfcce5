package breaker

import (
	"testing"
	"time"
)

// newTestRegistry returns a registry with a controllable clock.
func newTestRegistry(t *testing.T, threshold int, cooldown time.Duration) (*Registry, *time.Time) {
	t.Helper()
	now := time.Now()
	r := New(threshold, cooldown)
	r.now = func() time.Time { return now }
	return r, &now
}

func TestClosedByDefault(t *testing.T) {
	r, _ := newTestRegistry(t, 3, time.Minute)
	if !r.Allow("openai") {
		t.Error("unknown provider should be allowed")
	}
	if s := r.State("openai"); s != StateClosed {
		t.Errorf("expected closed, got %s", s)
	}
}

func TestOpensAfterThreshold(t *testing.T) {
	r, _ := newTestRegistry(t, 3, time.Minute)

	r.RecordFailure("openai")
	r.RecordFailure("openai")
	if !r.Allow("openai") {
		t.Fatal("circuit should stay closed below threshold")
	}

	r.RecordFailure("openai")
	if r.Allow("openai") {
		t.Error("circuit should be open at threshold")
	}
	if s := r.State("openai"); s != StateOpen {
		t.Errorf("expected open, got %s", s)
	}
}

func TestSuccessResetsFailureCount(t *testing.T) {
	r, _ := newTestRegistry(t, 3, time.Minute)

	r.RecordFailure("openai")
	r.RecordFailure("openai")
	r.RecordSuccess("openai")

	// Two more failures must not reach the threshold of three.
	r.RecordFailure("openai")
	r.RecordFailure("openai")
	if !r.Allow("openai") {
		t.Error("failure count should have been reset by success")
	}
}

func TestHalfOpenSingleProbe(t *testing.T) {
	r, now := newTestRegistry(t, 3, time.Minute)

	for i := 0; i < 3; i++ {
		r.RecordFailure("openai")
	}
	if r.Allow("openai") {
		t.Fatal("circuit should be open")
	}

	*now = now.Add(2 * time.Minute)
	if s := r.State("openai"); s != StateHalfOpen {
		t.Fatalf("expected half-open after cooldown, got %s", s)
	}

	if !r.Allow("openai") {
		t.Fatal("first request after cooldown should be the probe")
	}
	if r.Allow("openai") {
		t.Error("only one probe may pass while half-open")
	}
}

func TestProbeSuccessCloses(t *testing.T) {
	r, now := newTestRegistry(t, 3, time.Minute)

	for i := 0; i < 3; i++ {
		r.RecordFailure("openai")
	}
	*now = now.Add(2 * time.Minute)
	if !r.Allow("openai") {
		t.Fatal("probe should be admitted")
	}

	r.RecordSuccess("openai")
	if s := r.State("openai"); s != StateClosed {
		t.Errorf("expected closed after probe success, got %s", s)
	}
	// Recovery resets the failure count to zero.
	r.RecordFailure("openai")
	r.RecordFailure("openai")
	if !r.Allow("openai") {
		t.Error("failure count should restart from zero after recovery")
	}
}

func TestProbeFailureReopens(t *testing.T) {
	r, now := newTestRegistry(t, 3, time.Minute)

	for i := 0; i < 3; i++ {
		r.RecordFailure("openai")
	}
	*now = now.Add(2 * time.Minute)
	if !r.Allow("openai") {
		t.Fatal("probe should be admitted")
	}

	r.RecordFailure("openai")
	if s := r.State("openai"); s != StateOpen {
		t.Errorf("expected reopened circuit, got %s", s)
	}
	if r.Allow("openai") {
		t.Error("fresh cooldown should block requests")
	}

	// Fresh cooldown elapses, another probe is allowed.
	*now = now.Add(2 * time.Minute)
	if !r.Allow("openai") {
		t.Error("expected a new probe after the fresh cooldown")
	}
}

func TestCircuitsAreIndependent(t *testing.T) {
	r, _ := newTestRegistry(t, 2, time.Minute)

	r.RecordFailure("openai")
	r.RecordFailure("openai")

	if r.Allow("openai") {
		t.Error("openai circuit should be open")
	}
	if !r.Allow("anthropic") {
		t.Error("anthropic circuit should be unaffected")
	}
}

func TestSnapshot(t *testing.T) {
	r, _ := newTestRegistry(t, 2, time.Minute)

	r.RecordFailure("openai")
	r.RecordFailure("openai")
	r.RecordFailure("local")

	snap := r.Snapshot()
	if snap["openai"] != StateOpen {
		t.Errorf("expected openai open, got %s", snap["openai"])
	}
	if snap["local"] != StateClosed {
		t.Errorf("expected local closed, got %s", snap["local"])
	}
}
