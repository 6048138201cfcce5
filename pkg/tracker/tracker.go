// Package tracker accumulates token usage and estimated cost per provider
// and per subject. Accumulation is in-memory and best-effort: recording
// never fails and never blocks request fulfillment. Durable persistence
// of totals belongs to an external collaborator (see pkg/usagedb).
package tracker

import (
	"sync"
	"time"

	"github.com/elan-ai/elan/pkg/models"
)

// Tracker records and aggregates usage. Safe for concurrent use.
type Tracker struct {
	mu         sync.Mutex
	profiles   map[string]models.ProviderProfile
	byProvider map[string]*models.ProviderUsage
	bySubject  map[string]map[string]*models.ProviderUsage
	now        func() time.Time
}

// New creates a Tracker pricing usage with the given provider profiles.
// Records for unknown providers are still counted, at zero cost.
func New(profiles []models.ProviderProfile) *Tracker {
	pm := make(map[string]models.ProviderProfile, len(profiles))
	for _, p := range profiles {
		pm[p.ID] = p
	}
	return &Tracker{
		profiles:   pm,
		byProvider: make(map[string]*models.ProviderUsage),
		bySubject:  make(map[string]map[string]*models.ProviderUsage),
		now:        time.Now,
	}
}

// Record accumulates one call's token usage. It returns the estimated
// cost of the call and never fails.
func (t *Tracker) Record(providerID, subjectID string, promptTokens, completionTokens int) float64 {
	cost := t.profiles[providerID].Cost(promptTokens, completionTokens)

	t.mu.Lock()
	defer t.mu.Unlock()

	pu, ok := t.byProvider[providerID]
	if !ok {
		pu = &models.ProviderUsage{}
		t.byProvider[providerID] = pu
	}
	pu.Add(promptTokens, completionTokens, cost)

	if subjectID != "" {
		subj, ok := t.bySubject[subjectID]
		if !ok {
			subj = make(map[string]*models.ProviderUsage)
			t.bySubject[subjectID] = subj
		}
		su, ok := subj[providerID]
		if !ok {
			su = &models.ProviderUsage{}
			subj[providerID] = su
		}
		su.Add(promptTokens, completionTokens, cost)
	}

	return cost
}

// Totals returns aggregated usage across all subjects.
func (t *Tracker) Totals() models.UsageTotals {
	t.mu.Lock()
	defer t.mu.Unlock()
	return totalsOf(t.byProvider)
}

// TotalsForSubject returns aggregated usage for one subject.
func (t *Tracker) TotalsForSubject(subjectID string) models.UsageTotals {
	t.mu.Lock()
	defer t.mu.Unlock()
	return totalsOf(t.bySubject[subjectID])
}

// ResetPeriod clears all accumulators for a new billing period. It is
// idempotent and must be invoked explicitly; the request path never
// performs calendar-based resets.
func (t *Tracker) ResetPeriod() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.byProvider = make(map[string]*models.ProviderUsage)
	t.bySubject = make(map[string]map[string]*models.ProviderUsage)
}

// Snapshot captures the current per-provider totals for durable archiving.
func (t *Tracker) Snapshot() []models.UsageSnapshot {
	capturedAt := t.now().UTC()

	t.mu.Lock()
	defer t.mu.Unlock()

	rows := make([]models.UsageSnapshot, 0, len(t.byProvider))
	for id, u := range t.byProvider {
		rows = append(rows, models.UsageSnapshot{
			CapturedAt:       capturedAt,
			Provider:         id,
			Requests:         u.Requests,
			PromptTokens:     u.PromptTokens,
			CompletionTokens: u.CompletionTokens,
			Cost:             u.Cost,
		})
	}
	return rows
}

func totalsOf(byProvider map[string]*models.ProviderUsage) models.UsageTotals {
	totals := models.UsageTotals{ByProvider: make(map[string]models.ProviderUsage, len(byProvider))}
	for id, u := range byProvider {
		totals.ByProvider[id] = *u
		totals.Total.Requests += u.Requests
		totals.Total.PromptTokens += u.PromptTokens
		totals.Total.CompletionTokens += u.CompletionTokens
		totals.Total.Cost += u.Cost
	}
	return totals
}
