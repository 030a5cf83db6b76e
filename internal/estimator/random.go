package estimator

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

const NameRandom = "random"

// Random draws a uniform win rate per call and ignores the prompt. It is the
// baseline other estimators are compared against.
type Random struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandom seeds the generator with seed, or with the clock when seed is
// negative.
func NewRandom(seed int64) *Random {
	if seed < 0 {
		seed = time.Now().UnixNano()
	}
	return &Random{rng: rand.New(rand.NewSource(seed))}
}

func (r *Random) Estimate(ctx context.Context, _ string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Float64(), nil
}

// ParallelSafe is false: concurrent callers would make a seeded sequence
// non-reproducible.
func (r *Random) ParallelSafe() bool { return false }

func (r *Random) Name() string { return NameRandom }
