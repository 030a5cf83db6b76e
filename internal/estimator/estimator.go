// Package estimator holds the interchangeable strategies that estimate how
// likely the strong model is to be preferred over the weak one for a prompt.
package estimator

import (
	"context"
	"fmt"
	"math"
)

// Estimator returns P(strong model preferred) for a prompt, in [0, 1].
type Estimator interface {
	Estimate(ctx context.Context, prompt string) (float64, error)

	// ParallelSafe reports whether Estimate may be called concurrently.
	// Callers must serialize estimators that return false.
	ParallelSafe() bool

	// Name returns the registered name of the estimator type.
	Name() string
}

type Side string

const (
	SideStrong Side = "strong"
	SideWeak   Side = "weak"
)

// Route sends the prompt to the strong side iff its estimate is at least
// threshold.
func Route(ctx context.Context, e Estimator, prompt string, threshold float64) (Side, error) {
	w, err := e.Estimate(ctx, prompt)
	if err != nil {
		return "", err
	}
	if math.IsNaN(w) || w < 0 || w > 1 {
		return "", &InvocationError{Estimator: e.Name(), Err: fmt.Errorf("win rate %v outside [0, 1]", w)}
	}
	return SideFor(w, threshold), nil
}

// SideFor applies the routing rule to an already computed win rate.
func SideFor(winRate, threshold float64) Side {
	if winRate >= threshold {
		return SideStrong
	}
	return SideWeak
}
