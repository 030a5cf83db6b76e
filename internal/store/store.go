package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Source string

const (
	SourceAPI   Source = "api"
	SourceNATS  Source = "nats"
	SourceBatch Source = "batch"
	SourceCLI   Source = "cli"
)

// Decision is one logged routing decision. The prompt itself is never
// stored, only its hash.
type Decision struct {
	ID          uuid.UUID `json:"id"`
	Router      string    `json:"router"`
	StrongModel string    `json:"strong_model"`
	WeakModel   string    `json:"weak_model"`
	Threshold   float64   `json:"threshold"`
	WinRate     float64   `json:"win_rate"`
	RoutedTo    string    `json:"routed_to"`
	Model       string    `json:"model"`
	PromptHash  string    `json:"prompt_hash"`
	LatencyMs   int64     `json:"latency_ms"`
	Source      Source    `json:"source"`
	CreatedAt   time.Time `json:"created_at"`
}

type DecisionFilter struct {
	Router   string
	RoutedTo string
	Since    *time.Time
	Limit    int
	Offset   int
}

type RouterStats struct {
	Router         string  `json:"router"`
	Decisions      int64   `json:"decisions"`
	StrongFraction float64 `json:"strong_fraction"`
	MeanWinRate    float64 `json:"mean_win_rate"`
}

type Store interface {
	RecordDecision(ctx context.Context, d *Decision) error
	GetDecision(ctx context.Context, id uuid.UUID) (*Decision, error)
	ListDecisions(ctx context.Context, filter DecisionFilter) ([]*Decision, error)
	GetStats(ctx context.Context) ([]*RouterStats, error)
	Close() error
}

// HashPrompt returns the hex SHA-256 of prompt.
func HashPrompt(prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return hex.EncodeToString(sum[:])
}

func prepare(d *Decision) {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
}

func limitOf(f DecisionFilter) int {
	if f.Limit <= 0 || f.Limit > 1000 {
		return 100
	}
	return f.Limit
}

// Open picks the backend from url: postgres:// or postgresql:// for
// Postgres, sqlite:// or a plain path for SQLite.
func Open(ctx context.Context, url string) (Store, error) {
	switch {
	case url == "":
		return nil, fmt.Errorf("open store: empty database url")
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return NewPostgresStore(ctx, url)
	default:
		return NewSQLiteStore(ctx, strings.TrimPrefix(url, "sqlite://"))
	}
}
