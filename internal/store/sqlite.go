package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// timeLayout sorts lexically in time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore is the single-file decision log for local runs.
type SQLiteStore struct {
	db *sql.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS llmroute_decisions (
	id           TEXT PRIMARY KEY,
	router       TEXT NOT NULL,
	strong_model TEXT NOT NULL,
	weak_model   TEXT NOT NULL,
	threshold    REAL NOT NULL,
	win_rate     REAL NOT NULL,
	routed_to    TEXT NOT NULL,
	model        TEXT NOT NULL,
	prompt_hash  TEXT NOT NULL,
	latency_ms   INTEGER NOT NULL,
	source       TEXT NOT NULL,
	created_at   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS llmroute_decisions_router_created_idx
	ON llmroute_decisions (router, created_at);`

func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// One connection keeps ":memory:" databases shared and serializes writes.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite %s: %w", path, err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) RecordDecision(ctx context.Context, d *Decision) error {
	prepare(d)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO llmroute_decisions (`+decisionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID.String(), d.Router, d.StrongModel, d.WeakModel, d.Threshold, d.WinRate,
		d.RoutedTo, d.Model, d.PromptHash, d.LatencyMs, string(d.Source),
		d.CreatedAt.UTC().Format(timeLayout),
	)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteDecision(r rowScanner) (*Decision, error) {
	d := &Decision{}
	var id, source, created string
	if err := r.Scan(
		&id, &d.Router, &d.StrongModel, &d.WeakModel, &d.Threshold, &d.WinRate,
		&d.RoutedTo, &d.Model, &d.PromptHash, &d.LatencyMs, &source, &created,
	); err != nil {
		return nil, err
	}
	var err error
	if d.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("decision id %q: %w", id, err)
	}
	if d.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
		return nil, fmt.Errorf("decision created_at %q: %w", created, err)
	}
	d.Source = Source(source)
	return d, nil
}

func (s *SQLiteStore) GetDecision(ctx context.Context, id uuid.UUID) (*Decision, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+decisionColumns+` FROM llmroute_decisions WHERE id = ?`, id.String())
	d, err := scanSQLiteDecision(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return d, err
}

func (s *SQLiteStore) ListDecisions(ctx context.Context, filter DecisionFilter) ([]*Decision, error) {
	query := `SELECT ` + decisionColumns + ` FROM llmroute_decisions WHERE 1=1`
	args := []interface{}{}

	if filter.Router != "" {
		query += " AND router = ?"
		args = append(args, filter.Router)
	}
	if filter.RoutedTo != "" {
		query += " AND routed_to = ?"
		args = append(args, filter.RoutedTo)
	}
	if filter.Since != nil {
		query += " AND created_at >= ?"
		args = append(args, filter.Since.UTC().Format(timeLayout))
	}
	query += " ORDER BY created_at DESC LIMIT ? OFFSET ?"
	args = append(args, limitOf(filter), filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Decision
	for rows.Next() {
		d, err := scanSQLiteDecision(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) GetStats(ctx context.Context) ([]*RouterStats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT router, COUNT(*),
			AVG(CASE WHEN routed_to = 'strong' THEN 1.0 ELSE 0.0 END),
			AVG(win_rate)
		FROM llmroute_decisions
		GROUP BY router
		ORDER BY router`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*RouterStats
	for rows.Next() {
		st := &RouterStats{}
		if err := rows.Scan(&st.Router, &st.Decisions, &st.StrongFraction, &st.MeanWinRate); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}
