package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS llmroute_decisions (
	id           UUID PRIMARY KEY,
	router       TEXT NOT NULL,
	strong_model TEXT NOT NULL,
	weak_model   TEXT NOT NULL,
	threshold    DOUBLE PRECISION NOT NULL,
	win_rate     DOUBLE PRECISION NOT NULL,
	routed_to    TEXT NOT NULL,
	model        TEXT NOT NULL,
	prompt_hash  TEXT NOT NULL,
	latency_ms   BIGINT NOT NULL,
	source       TEXT NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS llmroute_decisions_router_created_idx
	ON llmroute_decisions (router, created_at DESC);`

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

const decisionColumns = `id, router, strong_model, weak_model, threshold, win_rate,
	routed_to, model, prompt_hash, latency_ms, source, created_at`

func (s *PostgresStore) RecordDecision(ctx context.Context, d *Decision) error {
	prepare(d)
	_, err := s.pool.Exec(ctx, `
		INSERT INTO llmroute_decisions (`+decisionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		d.ID, d.Router, d.StrongModel, d.WeakModel, d.Threshold, d.WinRate,
		d.RoutedTo, d.Model, d.PromptHash, d.LatencyMs, string(d.Source), d.CreatedAt,
	)
	return err
}

func (s *PostgresStore) ListDecisions(ctx context.Context, filter DecisionFilter) ([]*Decision, error) {
	query := `SELECT ` + decisionColumns + ` FROM llmroute_decisions WHERE 1=1`
	args := []interface{}{}
	n := 0

	if filter.Router != "" {
		n++
		query += fmt.Sprintf(" AND router = $%d", n)
		args = append(args, filter.Router)
	}
	if filter.RoutedTo != "" {
		n++
		query += fmt.Sprintf(" AND routed_to = $%d", n)
		args = append(args, filter.RoutedTo)
	}
	if filter.Since != nil {
		n++
		query += fmt.Sprintf(" AND created_at >= $%d", n)
		args = append(args, *filter.Since)
	}

	query += " ORDER BY created_at DESC"

	n++
	query += fmt.Sprintf(" LIMIT $%d", n)
	args = append(args, limitOf(filter))

	if filter.Offset > 0 {
		n++
		query += fmt.Sprintf(" OFFSET $%d", n)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Decision
	for rows.Next() {
		d := &Decision{}
		var source string
		if err := rows.Scan(
			&d.ID, &d.Router, &d.StrongModel, &d.WeakModel, &d.Threshold, &d.WinRate,
			&d.RoutedTo, &d.Model, &d.PromptHash, &d.LatencyMs, &source, &d.CreatedAt,
		); err != nil {
			return nil, err
		}
		d.Source = Source(source)
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *PostgresStore) GetStats(ctx context.Context) ([]*RouterStats, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT router, COUNT(*),
			AVG(CASE WHEN routed_to = 'strong' THEN 1.0 ELSE 0.0 END)::float8,
			AVG(win_rate)::float8
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

// GetDecision returns nil when no decision has id.
func (s *PostgresStore) GetDecision(ctx context.Context, id uuid.UUID) (*Decision, error) {
	d := &Decision{}
	var source string
	err := s.pool.QueryRow(ctx, `SELECT `+decisionColumns+` FROM llmroute_decisions WHERE id = $1`, id).Scan(
		&d.ID, &d.Router, &d.StrongModel, &d.WeakModel, &d.Threshold, &d.WinRate,
		&d.RoutedTo, &d.Model, &d.PromptHash, &d.LatencyMs, &source, &d.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	d.Source = Source(source)
	return d, nil
}
