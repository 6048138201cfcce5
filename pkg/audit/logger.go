// Package audit writes and queries a durable log of orchestrated
// generation calls in a dedicated SQLite database. Auditing is an
// observer: a logging failure never blocks request fulfillment.
package audit

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/elan-ai/elan/pkg/models"
)

// Logger records generation calls and prunes old entries on a schedule.
type Logger struct {
	db   *sql.DB
	cfg  models.AuditConfig
	done chan struct{}
	wg   sync.WaitGroup
}

// New opens the audit SQLite database and creates the schema.
func New(cfg models.AuditConfig) (*Logger, error) {
	db, err := sql.Open("sqlite", cfg.DBPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate audit db: %w", err)
	}

	l := &Logger{db: db, cfg: cfg, done: make(chan struct{})}
	if cfg.RetentionDays > 0 {
		l.wg.Add(1)
		go l.retentionLoop()
	}
	return l, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS audit_log (
		request_id        TEXT PRIMARY KEY,
		subject_hash      TEXT NOT NULL,
		subject_prefix    TEXT NOT NULL,
		provider          TEXT,
		category          TEXT,
		complexity        TEXT,
		tier              TEXT,
		status            TEXT NOT NULL,
		from_cache        INTEGER NOT NULL DEFAULT 0,
		degraded          INTEGER NOT NULL DEFAULT 0,
		prompt            TEXT,
		prompt_tokens     INTEGER,
		completion_tokens INTEGER,
		cost              REAL,
		latency_ms        INTEGER,
		created_at        DATETIME NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return err
	}
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_audit_provider ON audit_log(provider)`)
	if err != nil {
		return err
	}
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_audit_created ON audit_log(created_at)`)
	if err != nil {
		return err
	}
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_audit_subject ON audit_log(subject_prefix)`)
	return err
}

// Log inserts an audit entry, respecting the prompt-inclusion settings.
func (l *Logger) Log(ctx context.Context, entry models.AuditEntry) error {
	if l == nil || l.db == nil {
		return nil
	}

	prompt := entry.Prompt
	if !l.cfg.IncludePrompts {
		prompt = ""
	}
	if l.cfg.MaxPromptSize > 0 && len(prompt) > l.cfg.MaxPromptSize {
		prompt = prompt[:l.cfg.MaxPromptSize]
	}

	_, err := l.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO audit_log
		(request_id, subject_hash, subject_prefix, provider, category,
		 complexity, tier, status, from_cache, degraded, prompt,
		 prompt_tokens, completion_tokens, cost, latency_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.RequestID, entry.SubjectHash, entry.SubjectPrefix,
		entry.Provider, entry.Category, entry.Complexity, entry.Tier,
		entry.Status, entry.FromCache, entry.Degraded, prompt,
		entry.PromptTokens, entry.CompletionTokens, entry.Cost,
		entry.LatencyMs, entry.CreatedAt,
	)
	return err
}

// Query returns audit entries matching the given options, newest first.
func (l *Logger) Query(ctx context.Context, opts models.AuditQueryOpts) ([]models.AuditEntry, error) {
	q := `SELECT request_id, subject_hash, subject_prefix, provider, category,
		complexity, tier, status, from_cache, degraded, prompt,
		prompt_tokens, completion_tokens, cost, latency_ms, created_at
		FROM audit_log WHERE 1=1`
	var args []any

	if opts.RequestID != "" {
		q += " AND request_id = ?"
		args = append(args, opts.RequestID)
	}
	if opts.Provider != "" {
		q += " AND provider = ?"
		args = append(args, opts.Provider)
	}
	if opts.Status != "" {
		q += " AND status = ?"
		args = append(args, opts.Status)
	}
	if opts.SubjectPrefix != "" {
		q += " AND subject_prefix = ?"
		args = append(args, opts.SubjectPrefix)
	}
	if !opts.Since.IsZero() {
		q += " AND created_at >= ?"
		args = append(args, opts.Since)
	}

	q += " ORDER BY created_at DESC"

	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	q += " LIMIT ?"
	args = append(args, limit)

	rows, err := l.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit: %w", err)
	}
	defer rows.Close()

	var entries []models.AuditEntry
	for rows.Next() {
		var e models.AuditEntry
		var provider, category, prompt sql.NullString
		if err := rows.Scan(
			&e.RequestID, &e.SubjectHash, &e.SubjectPrefix,
			&provider, &category, &e.Complexity, &e.Tier, &e.Status,
			&e.FromCache, &e.Degraded, &prompt,
			&e.PromptTokens, &e.CompletionTokens, &e.Cost,
			&e.LatencyMs, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan audit row: %w", err)
		}
		e.Provider = provider.String
		e.Category = category.String
		e.Prompt = prompt.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Stats returns aggregate counts grouped by provider and day.
func (l *Logger) Stats(ctx context.Context) ([]models.AuditStat, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT COALESCE(provider, ''), date(created_at) as day, count(*) as cnt
		 FROM audit_log GROUP BY provider, day ORDER BY day DESC, provider`)
	if err != nil {
		return nil, fmt.Errorf("audit stats: %w", err)
	}
	defer rows.Close()

	var stats []models.AuditStat
	for rows.Next() {
		var s models.AuditStat
		var day sql.NullString
		if err := rows.Scan(&s.Provider, &day, &s.Count); err != nil {
			return nil, fmt.Errorf("scan audit stat: %w", err)
		}
		s.Day = day.String
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// Cleanup deletes entries older than the configured retention period.
func (l *Logger) Cleanup(ctx context.Context) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -l.cfg.RetentionDays)
	res, err := l.db.ExecContext(ctx,
		`DELETE FROM audit_log WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("audit cleanup: %w", err)
	}
	return res.RowsAffected()
}

// Close stops the retention goroutine and closes the database.
func (l *Logger) Close() error {
	close(l.done)
	l.wg.Wait()
	return l.db.Close()
}

func (l *Logger) retentionLoop() {
	defer l.wg.Done()
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			_, _ = l.Cleanup(context.Background())
		}
	}
}

// HashSubject returns the SHA-256 hex hash and 8-char prefix for a
// subject identifier, so the audit log never stores the raw ID.
func HashSubject(id string) (hash, prefix string) {
	h := sha256.Sum256([]byte(id))
	hash = hex.EncodeToString(h[:])
	if len(id) > 8 {
		prefix = id[:8]
	} else {
		prefix = id
	}
	return hash, prefix
}
