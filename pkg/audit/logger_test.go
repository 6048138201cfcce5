package audit

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/elan-ai/elan/pkg/models"
)

func newTestLogger(t *testing.T, cfg models.AuditConfig) *Logger {
	t.Helper()
	cfg.DBPath = filepath.Join(t.TempDir(), "audit.db")
	l, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func testEntry(requestID, provider, status string) models.AuditEntry {
	hash, prefix := HashSubject("user-alpha")
	return models.AuditEntry{
		RequestID:        requestID,
		SubjectHash:      hash,
		SubjectPrefix:    prefix,
		Provider:         provider,
		Category:         "explanation",
		Complexity:       "medium",
		Tier:             "free",
		Status:           status,
		Prompt:           "explain circuit breakers",
		PromptTokens:     6,
		CompletionTokens: 40,
		Cost:             0.002,
		LatencyMs:        850,
		CreatedAt:        time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC),
	}
}

func TestLogAndQuery(t *testing.T) {
	l := newTestLogger(t, models.AuditConfig{Enabled: true, IncludePrompts: true})
	ctx := context.Background()

	if err := l.Log(ctx, testEntry("req-1", "cheap", "ok")); err != nil {
		t.Fatalf("Log: %v", err)
	}
	if err := l.Log(ctx, testEntry("req-2", "quality", "upstream_error")); err != nil {
		t.Fatalf("Log: %v", err)
	}

	entries, err := l.Query(ctx, models.AuditQueryOpts{RequestID: "req-1"})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	e := entries[0]
	if e.Provider != "cheap" || e.Status != "ok" {
		t.Errorf("unexpected entry: %+v", e)
	}
	if e.Prompt != "explain circuit breakers" {
		t.Errorf("prompt not stored: %q", e.Prompt)
	}
	if e.SubjectPrefix != "user-alp" {
		t.Errorf("subject prefix = %q", e.SubjectPrefix)
	}
}

func TestQueryFilters(t *testing.T) {
	l := newTestLogger(t, models.AuditConfig{Enabled: true})
	ctx := context.Background()

	for _, e := range []models.AuditEntry{
		testEntry("req-1", "cheap", "ok"),
		testEntry("req-2", "cheap", "timeout"),
		testEntry("req-3", "quality", "ok"),
	} {
		if err := l.Log(ctx, e); err != nil {
			t.Fatalf("Log: %v", err)
		}
	}

	byProvider, err := l.Query(ctx, models.AuditQueryOpts{Provider: "cheap"})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(byProvider) != 2 {
		t.Errorf("provider filter: expected 2 entries, got %d", len(byProvider))
	}

	byStatus, err := l.Query(ctx, models.AuditQueryOpts{Status: "timeout"})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(byStatus) != 1 || byStatus[0].RequestID != "req-2" {
		t.Errorf("status filter: got %+v", byStatus)
	}

	limited, err := l.Query(ctx, models.AuditQueryOpts{Limit: 2})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("limit: expected 2 entries, got %d", len(limited))
	}
}

func TestPromptsExcludedByDefault(t *testing.T) {
	l := newTestLogger(t, models.AuditConfig{Enabled: true})
	ctx := context.Background()

	if err := l.Log(ctx, testEntry("req-1", "cheap", "ok")); err != nil {
		t.Fatalf("Log: %v", err)
	}

	entries, err := l.Query(ctx, models.AuditQueryOpts{})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Prompt != "" {
		t.Errorf("prompt stored despite include_prompts=false: %q", entries[0].Prompt)
	}
}

func TestPromptTruncation(t *testing.T) {
	l := newTestLogger(t, models.AuditConfig{Enabled: true, IncludePrompts: true, MaxPromptSize: 10})
	ctx := context.Background()

	if err := l.Log(ctx, testEntry("req-1", "cheap", "ok")); err != nil {
		t.Fatalf("Log: %v", err)
	}

	entries, err := l.Query(ctx, models.AuditQueryOpts{})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if got := entries[0].Prompt; got != "explain ci" {
		t.Errorf("prompt not truncated: %q", got)
	}
}

func TestStats(t *testing.T) {
	l := newTestLogger(t, models.AuditConfig{Enabled: true})
	ctx := context.Background()

	for _, e := range []models.AuditEntry{
		testEntry("req-1", "cheap", "ok"),
		testEntry("req-2", "cheap", "ok"),
		testEntry("req-3", "quality", "ok"),
	} {
		if err := l.Log(ctx, e); err != nil {
			t.Fatalf("Log: %v", err)
		}
	}

	stats, err := l.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	counts := make(map[string]int)
	for _, s := range stats {
		counts[s.Provider] += s.Count
	}
	if counts["cheap"] != 2 || counts["quality"] != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestCleanup(t *testing.T) {
	l := newTestLogger(t, models.AuditConfig{Enabled: true, RetentionDays: 7})
	ctx := context.Background()

	old := testEntry("req-old", "cheap", "ok")
	old.CreatedAt = time.Now().AddDate(0, 0, -30)
	fresh := testEntry("req-fresh", "cheap", "ok")
	fresh.CreatedAt = time.Now()

	for _, e := range []models.AuditEntry{old, fresh} {
		if err := l.Log(ctx, e); err != nil {
			t.Fatalf("Log: %v", err)
		}
	}

	deleted, err := l.Cleanup(ctx)
	if err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if deleted != 1 {
		t.Errorf("expected 1 deleted row, got %d", deleted)
	}

	entries, err := l.Query(ctx, models.AuditQueryOpts{})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(entries) != 1 || entries[0].RequestID != "req-fresh" {
		t.Errorf("unexpected surviving entries: %+v", entries)
	}
}

func TestHashSubject(t *testing.T) {
	hash, prefix := HashSubject("user-alpha")
	if len(hash) != 64 {
		t.Errorf("hash length = %d", len(hash))
	}
	if prefix != "user-alp" {
		t.Errorf("prefix = %q", prefix)
	}

	hash2, _ := HashSubject("user-alpha")
	if hash != hash2 {
		t.Error("hash must be deterministic")
	}

	_, short := HashSubject("abc")
	if short != "abc" {
		t.Errorf("short prefix = %q", short)
	}
}
