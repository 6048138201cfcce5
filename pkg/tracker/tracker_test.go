package tracker

import (
	"math"
	"sync"
	"testing"

	"github.com/elan-ai/elan/pkg/models"
)

func testProfiles() []models.ProviderProfile {
	return []models.ProviderProfile{
		{ID: "cheap", PromptCostPer1K: 0.5, CompletionCostPer1K: 1.5},
		{ID: "quality", PromptCostPer1K: 10, CompletionCostPer1K: 30},
	}
}

func TestRecordAndTotals(t *testing.T) {
	tr := New(testProfiles())

	cost := tr.Record("cheap", "user-a", 1000, 1000)
	if math.Abs(cost-2.0) > 1e-9 {
		t.Errorf("expected cost 2.0, got %v", cost)
	}
	tr.Record("quality", "user-b", 2000, 500)

	totals := tr.Totals()
	if totals.Total.Requests != 2 {
		t.Errorf("expected 2 requests, got %d", totals.Total.Requests)
	}
	if totals.ByProvider["cheap"].PromptTokens != 1000 {
		t.Errorf("unexpected cheap prompt tokens: %d", totals.ByProvider["cheap"].PromptTokens)
	}
	// quality: 2000/1000*10 + 500/1000*30 = 35
	if math.Abs(totals.ByProvider["quality"].Cost-35) > 1e-9 {
		t.Errorf("unexpected quality cost: %v", totals.ByProvider["quality"].Cost)
	}
}

func TestTotalsForSubject(t *testing.T) {
	tr := New(testProfiles())

	tr.Record("cheap", "user-a", 100, 100)
	tr.Record("cheap", "user-b", 900, 900)

	subj := tr.TotalsForSubject("user-a")
	if subj.Total.Requests != 1 {
		t.Errorf("expected 1 request for user-a, got %d", subj.Total.Requests)
	}
	if subj.Total.PromptTokens != 100 {
		t.Errorf("expected 100 prompt tokens for user-a, got %d", subj.Total.PromptTokens)
	}

	empty := tr.TotalsForSubject("nobody")
	if empty.Total.Requests != 0 {
		t.Errorf("unknown subject should have zero totals")
	}
}

func TestUnknownProviderCountsAtZeroCost(t *testing.T) {
	tr := New(testProfiles())

	cost := tr.Record("mystery", "user-a", 500, 500)
	if cost != 0 {
		t.Errorf("unknown provider cost should be zero, got %v", cost)
	}
	if tr.Totals().Total.Requests != 1 {
		t.Error("usage for unknown providers must still be counted")
	}
}

func TestResetPeriodIdempotent(t *testing.T) {
	tr := New(testProfiles())
	tr.Record("cheap", "user-a", 1000, 1000)

	tr.ResetPeriod()
	if got := tr.Totals().Total; got.Requests != 0 || got.Cost != 0 {
		t.Errorf("expected zero totals after reset, got %+v", got)
	}

	// A second reset must also yield clean zeros, never residual counts.
	tr.ResetPeriod()
	if got := tr.Totals().Total; got.Requests != 0 || got.Cost != 0 {
		t.Errorf("expected zero totals after double reset, got %+v", got)
	}
}

func TestSnapshot(t *testing.T) {
	tr := New(testProfiles())
	tr.Record("cheap", "user-a", 1000, 1000)
	tr.Record("quality", "user-a", 1000, 1000)

	rows := tr.Snapshot()
	if len(rows) != 2 {
		t.Fatalf("expected 2 snapshot rows, got %d", len(rows))
	}
	if rows[0].CapturedAt != rows[1].CapturedAt {
		t.Error("snapshot rows must share a capture time")
	}
}

func TestConcurrentRecords(t *testing.T) {
	tr := New(testProfiles())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.Record("cheap", "user-a", 10, 10)
		}()
	}
	wg.Wait()

	if got := tr.Totals().Total.Requests; got != 50 {
		t.Errorf("expected 50 requests, got %d", got)
	}
}
