// Package batch routes many prompts through one engine with bounded
// parallelism and calibrates thresholds from the resulting win rates.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Miguel57216/LLM-Route/internal/estimator"
	"github.com/Miguel57216/LLM-Route/internal/router"
)

const DefaultWorkers = 4

type Result struct {
	Index    int             `json:"index"`
	Prompt   string          `json:"prompt"`
	Decision router.Decision `json:"decision"`
	Err      error           `json:"-"`
}

type Summary struct {
	Total  int `json:"total"`
	Strong int `json:"strong"`
	Weak   int `json:"weak"`
	Failed int `json:"failed"`
}

// Summarize counts routed and failed results.
func Summarize(results []Result) Summary {
	s := Summary{Total: len(results)}
	for _, r := range results {
		switch {
		case r.Err != nil:
			s.Failed++
		case r.Decision.Side == estimator.SideStrong:
			s.Strong++
		default:
			s.Weak++
		}
	}
	return s
}

type Runner struct {
	engine  *router.Engine
	workers int
	logger  *slog.Logger
}

// NewRunner bounds concurrency at workers, or one worker when the engine's
// estimator is not parallel safe.
func NewRunner(engine *router.Engine, workers int, logger *slog.Logger) *Runner {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if !engine.ParallelSafe() {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{engine: engine, workers: workers, logger: logger}
}

func (r *Runner) Workers() int { return r.workers }

// Run decides every prompt at threshold. Per-prompt failures are reported in
// the matching Result; only context cancellation aborts the run.
func (r *Runner) Run(ctx context.Context, prompts []string, threshold float64) ([]Result, error) {
	if err := router.ValidateThreshold(threshold); err != nil {
		return nil, err
	}
	start := time.Now()
	results := make([]Result, len(prompts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i, p := range prompts {
		i, p := i, p
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			d, err := r.engine.DecideAt(gctx, p, threshold)
			results[i] = Result{Index: i, Prompt: p, Decision: d, Err: err}
			if err != nil && !errors.Is(err, context.Canceled) {
				r.logger.Warn("batch item failed", "index", i, "router", r.engine.Name(), "error", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	if err := ctx.Err(); err != nil {
		return results, err
	}

	sum := Summarize(results)
	r.logger.Info("batch complete",
		"router", r.engine.Name(),
		"total", sum.Total,
		"strong", sum.Strong,
		"failed", sum.Failed,
		"workers", r.workers,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return results, nil
}

// WinRates returns the win rates of the successful results.
func WinRates(results []Result) []float64 {
	out := make([]float64, 0, len(results))
	for _, r := range results {
		if r.Err == nil {
			out = append(out, r.Decision.WinRate)
		}
	}
	return out
}

// CalibrateThreshold returns the threshold that sends strongFraction of the
// observed prompts to the strong model: the (1 - strongFraction) quantile of
// winRates with linear interpolation between order statistics.
func CalibrateThreshold(winRates []float64, strongFraction float64) (float64, error) {
	if len(winRates) == 0 {
		return 0, errors.New("calibrate: no win rates")
	}
	if math.IsNaN(strongFraction) || strongFraction < 0 || strongFraction > 1 {
		return 0, fmt.Errorf("calibrate: strong fraction %v outside [0, 1]", strongFraction)
	}
	sorted := append([]float64(nil), winRates...)
	sort.Float64s(sorted)

	pos := (1 - strongFraction) * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	frac := pos - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo]), nil
}
