package analytics

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// DailyRollup is one persisted per-day row. Keeping these in sqlite lets
// history survive the periodic pruning Claude Code applies to its own
// stats cache.
type DailyRollup struct {
	Date         string
	Sessions     int
	Messages     int
	CostUSD      float64
	InputTokens  int
	OutputTokens int
}

type Store struct {
	db *sql.DB
}

func OpenStore(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("analytics: creating DB dir: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("analytics: opening DB: %w", err)
	}

	store := NewStore(db)
	if err := store.Init(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Init(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS daily_rollups (
			date TEXT PRIMARY KEY,
			sessions INTEGER NOT NULL,
			messages INTEGER NOT NULL,
			cost_usd REAL NOT NULL,
			input_tokens INTEGER NOT NULL,
			output_tokens INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_daily_rollups_date ON daily_rollups(date);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("analytics: init schema: %w", err)
		}
	}
	return nil
}

// Upsert writes the given rollups, replacing existing rows for the same
// dates. Recomputing a day is normal; the newest computation wins.
func (s *Store) Upsert(ctx context.Context, rollups []DailyRollup) error {
	if len(rollups) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("analytics: begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, r := range rollups {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO daily_rollups (date, sessions, messages, cost_usd, input_tokens, output_tokens)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(date) DO UPDATE SET
				sessions = excluded.sessions,
				messages = excluded.messages,
				cost_usd = excluded.cost_usd,
				input_tokens = excluded.input_tokens,
				output_tokens = excluded.output_tokens
		`, r.Date, r.Sessions, r.Messages, r.CostUSD, r.InputTokens, r.OutputTokens); err != nil {
			return fmt.Errorf("analytics: upsert rollup %s: %w", r.Date, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("analytics: commit rollups: %w", err)
	}
	return nil
}

// ReadRange returns rollups with from <= date <= to, ascending. Empty
// bounds are open-ended.
func (s *Store) ReadRange(ctx context.Context, from, to string) ([]DailyRollup, error) {
	query := `SELECT date, sessions, messages, cost_usd, input_tokens, output_tokens FROM daily_rollups`
	var (
		conds []string
		args  []any
	)
	if from != "" {
		conds = append(conds, "date >= ?")
		args = append(args, from)
	}
	if to != "" {
		conds = append(conds, "date <= ?")
		args = append(args, to)
	}
	for i, cond := range conds {
		if i == 0 {
			query += " WHERE " + cond
		} else {
			query += " AND " + cond
		}
	}
	query += " ORDER BY date ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("analytics: query rollups: %w", err)
	}
	defer rows.Close()

	var out []DailyRollup
	for rows.Next() {
		var r DailyRollup
		if err := rows.Scan(&r.Date, &r.Sessions, &r.Messages, &r.CostUSD, &r.InputTokens, &r.OutputTokens); err != nil {
			return nil, fmt.Errorf("analytics: scan rollup: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("analytics: iterate rollups: %w", err)
	}
	return out, nil
}
