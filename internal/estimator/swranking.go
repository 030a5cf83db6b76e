package estimator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/Miguel57216/LLM-Route/internal/embedding"
	"github.com/Miguel57216/LLM-Route/internal/rating"
	"github.com/Miguel57216/LLM-Route/internal/similarity"
)

const (
	NameSWRanking = "sw_ranking"

	DefaultNumTiers = 10
)

type SWRankingConfig struct {
	Strong string
	Weak   string

	// Battles and Embeddings are row-aligned: row i of Embeddings embeds the
	// prompt of Battles[i].
	Battles    []rating.Battle
	Embeddings *mat.Dense

	NumTiers int
	Embedder embedding.Provider
	Logger   *slog.Logger
}

// SWRanking estimates the strong model's win rate by refitting Elo ratings
// over historical battles, each weighted by how similar its prompt is to the
// incoming one. Models are first bucketed into tiers so sparse pairs borrow
// strength from their neighbors.
type SWRanking struct {
	strongTier string
	weakTier   string

	// tierBattles is built once at construction and only read afterwards.
	tierBattles []rating.Battle
	embeddings  *mat.Dense

	ratings  rating.Ratings
	tiers    rating.TierAssignment
	embedder embedding.Provider
	logger   *slog.Logger
}

func NewSWRanking(cfg SWRankingConfig) (*SWRanking, error) {
	fail := func(err error) (*SWRanking, error) {
		return nil, &ConstructionError{Estimator: NameSWRanking, Err: err}
	}
	if cfg.Embedder == nil {
		return fail(errors.New("no embedding provider"))
	}
	if len(cfg.Battles) == 0 {
		return fail(errors.New("no battles"))
	}
	if cfg.Embeddings == nil {
		return fail(errors.New("no embeddings"))
	}
	if rows, _ := cfg.Embeddings.Dims(); rows != len(cfg.Battles) {
		return fail(fmt.Errorf("%d embedding rows for %d battles", rows, len(cfg.Battles)))
	}
	if cfg.NumTiers == 0 {
		cfg.NumTiers = DefaultNumTiers
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ratings, err := rating.Fit(cfg.Battles, nil, rating.Options{})
	if err != nil {
		return fail(fmt.Errorf("fit model ratings: %w", err))
	}
	tiers, err := rating.AssignTiers(ratings, cfg.NumTiers)
	if err != nil {
		return fail(err)
	}
	if _, ok := tiers.Tier(cfg.Strong); !ok {
		return fail(fmt.Errorf("strong model %q not found in battles", cfg.Strong))
	}
	if _, ok := tiers.Tier(cfg.Weak); !ok {
		return fail(fmt.Errorf("weak model %q not found in battles", cfg.Weak))
	}

	logger.Info("sw_ranking ready",
		"battles", len(cfg.Battles),
		"models", len(ratings),
		"tiers", tiers.NumTiers(),
		"strong_tier", tiers.Label(cfg.Strong),
		"weak_tier", tiers.Label(cfg.Weak),
	)

	return &SWRanking{
		strongTier:  tiers.Label(cfg.Strong),
		weakTier:    tiers.Label(cfg.Weak),
		tierBattles: rating.Relabel(cfg.Battles, tiers.Label),
		embeddings:  cfg.Embeddings,
		ratings:     ratings,
		tiers:       tiers,
		embedder:    cfg.Embedder,
		logger:      logger,
	}, nil
}

func (s *SWRanking) Estimate(ctx context.Context, prompt string) (float64, error) {
	start := time.Now()
	emb, err := s.embedder.Embed(ctx, prompt)
	if err != nil {
		return 0, &InvocationError{Estimator: NameSWRanking, Err: fmt.Errorf("embed prompt: %w", err)}
	}
	sims, err := similarity.Cosine(s.embeddings, emb)
	if err != nil {
		return 0, &InvocationError{Estimator: NameSWRanking, Err: err}
	}
	res, err := rating.Fit(s.tierBattles, similarity.Weights(sims), rating.Options{})
	if err != nil {
		return 0, &InvocationError{Estimator: NameSWRanking, Err: err}
	}

	weakWinRate := 1 / (1 + math.Pow(rating.DefaultBase, (res[s.strongTier]-res[s.weakTier])/rating.DefaultScale))
	strong := clamp01(1 - weakWinRate)

	s.logger.Debug("sw_ranking estimate",
		"strong_rating", res[s.strongTier],
		"weak_rating", res[s.weakTier],
		"win_rate", strong,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return strong, nil
}

// Ratings returns the unweighted per-model ratings fitted at construction.
func (s *SWRanking) Ratings() rating.Ratings {
	out := make(rating.Ratings, len(s.ratings))
	for k, v := range s.ratings {
		out[k] = v
	}
	return out
}

// Tiers returns the model to tier assignment fitted at construction.
func (s *SWRanking) Tiers() rating.TierAssignment {
	out := make(rating.TierAssignment, len(s.tiers))
	for k, v := range s.tiers {
		out[k] = v
	}
	return out
}

func (s *SWRanking) ParallelSafe() bool { return true }

func (s *SWRanking) Name() string { return NameSWRanking }
