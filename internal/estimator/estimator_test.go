package estimator

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoute_Boundary(t *testing.T) {
	tests := []struct {
		w, threshold float64
		want         Side
	}{
		{0.5, 0.5, SideStrong},
		{0.49, 0.5, SideWeak},
		{0, 0, SideStrong},
		{1, 1, SideStrong},
		{0.999, 1, SideWeak},
		{0, 0.01, SideWeak},
	}
	for _, tt := range tests {
		side, err := Route(context.Background(), fixedEstimator{value: tt.w}, "p", tt.threshold)
		require.NoError(t, err)
		assert.Equal(t, tt.want, side, "w=%v t=%v", tt.w, tt.threshold)
	}
}

func TestRoute_ThresholdZeroAlwaysStrong(t *testing.T) {
	r := NewRandom(1)
	for i := 0; i < 50; i++ {
		side, err := Route(context.Background(), r, "p", 0)
		require.NoError(t, err)
		assert.Equal(t, SideStrong, side)
	}
}

func TestRoute_PropagatesError(t *testing.T) {
	boom := errors.New("boom")
	_, err := Route(context.Background(), fixedEstimator{err: boom}, "p", 0.5)
	assert.ErrorIs(t, err, boom)
}

func TestRoute_RejectsOutOfRange(t *testing.T) {
	for _, w := range []float64{-0.1, 1.1, math.NaN()} {
		_, err := Route(context.Background(), fixedEstimator{value: w}, "p", 0.5)
		var ie *InvocationError
		assert.True(t, errors.As(err, &ie), "w=%v", w)
	}
}

func TestRandom_SeededIsReproducible(t *testing.T) {
	a, b := NewRandom(42), NewRandom(42)
	for i := 0; i < 20; i++ {
		x, err := a.Estimate(context.Background(), "ignored")
		require.NoError(t, err)
		y, err := b.Estimate(context.Background(), "different")
		require.NoError(t, err)
		assert.Equal(t, x, y)
		assert.GreaterOrEqual(t, x, 0.0)
		assert.Less(t, x, 1.0)
	}
	assert.False(t, a.ParallelSafe())
	assert.Equal(t, NameRandom, a.Name())
}

func TestRandom_UniformDeciles(t *testing.T) {
	const draws = 100000
	r := NewRandom(3)
	var buckets [10]int
	for i := 0; i < draws; i++ {
		x, err := r.Estimate(context.Background(), "p")
		require.NoError(t, err)
		require.GreaterOrEqual(t, x, 0.0)
		require.Less(t, x, 1.0)
		buckets[int(x*10)]++
	}
	// Each decile expects a tenth of the draws.
	for i, n := range buckets {
		assert.InDelta(t, draws/10, n, draws/100, "decile %d", i)
	}
}

func TestRandom_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewRandom(1).Estimate(ctx, "p")
	assert.ErrorIs(t, err, context.Canceled)
}
