// Package usagedb durably archives cost-tracker totals in SQLite. The
// in-memory tracker stays authoritative for the running process; this
// store is the external collaborator that survives restarts and feeds
// the cost report CLI.
package usagedb

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/elan-ai/elan/pkg/models"
)

// Store persists usage snapshots.
type Store struct {
	db *sql.DB
}

const createTable = `
CREATE TABLE IF NOT EXISTS usage_snapshots (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	captured_at DATETIME NOT NULL,
	provider TEXT NOT NULL,
	requests INTEGER NOT NULL,
	prompt_tokens INTEGER NOT NULL,
	completion_tokens INTEGER NOT NULL,
	cost REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_usage_captured ON usage_snapshots(captured_at);
`

// New opens the usage database and runs auto-migration.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open usage db: %w", err)
	}
	if _, err := db.Exec(createTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate usage db: %w", err)
	}
	return &Store{db: db}, nil
}

// Archive writes one snapshot set. All rows in the set share a capture time.
func (s *Store) Archive(ctx context.Context, rows []models.UsageSnapshot) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("archive usage: %w", err)
	}
	defer tx.Rollback()

	for _, r := range rows {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO usage_snapshots
			 (captured_at, provider, requests, prompt_tokens, completion_tokens, cost)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			r.CapturedAt, r.Provider, r.Requests, r.PromptTokens, r.CompletionTokens, r.Cost,
		)
		if err != nil {
			return fmt.Errorf("archive usage row: %w", err)
		}
	}
	return tx.Commit()
}

// Latest returns the most recent snapshot set, one row per provider.
func (s *Store) Latest(ctx context.Context) ([]models.UsageSnapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT captured_at, provider, requests, prompt_tokens, completion_tokens, cost
		 FROM usage_snapshots
		 WHERE captured_at = (SELECT MAX(captured_at) FROM usage_snapshots)
		 ORDER BY provider`)
	if err != nil {
		return nil, fmt.Errorf("latest usage: %w", err)
	}
	defer rows.Close()
	return scanSnapshots(rows)
}

// Since returns all snapshot rows captured at or after the given time.
func (s *Store) Since(ctx context.Context, t time.Time) ([]models.UsageSnapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT captured_at, provider, requests, prompt_tokens, completion_tokens, cost
		 FROM usage_snapshots WHERE captured_at >= ?
		 ORDER BY captured_at, provider`, t)
	if err != nil {
		return nil, fmt.Errorf("usage since: %w", err)
	}
	defer rows.Close()
	return scanSnapshots(rows)
}

func scanSnapshots(rows *sql.Rows) ([]models.UsageSnapshot, error) {
	var out []models.UsageSnapshot
	for rows.Next() {
		var r models.UsageSnapshot
		if err := rows.Scan(&r.CapturedAt, &r.Provider, &r.Requests,
			&r.PromptTokens, &r.CompletionTokens, &r.Cost); err != nil {
			return nil, fmt.Errorf("scan usage row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
