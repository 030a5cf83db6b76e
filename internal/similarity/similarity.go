// Package similarity turns embedding similarity between a prompt and the
// historical battles into per-battle fit weights.
package similarity

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Cosine returns the cosine similarity of query against every row of m.
// Rows or queries with zero norm have similarity 0.
func Cosine(m *mat.Dense, query []float64) ([]float64, error) {
	rows, cols := m.Dims()
	if cols != len(query) {
		return nil, fmt.Errorf("embedding dimension mismatch: stored %d, query %d", cols, len(query))
	}
	qn := floats.Norm(query, 2)
	out := make([]float64, rows)
	if qn == 0 {
		return out, nil
	}
	for i := 0; i < rows; i++ {
		row := m.RawRowView(i)
		rn := floats.Norm(row, 2)
		if rn == 0 {
			continue
		}
		out[i] = floats.Dot(row, query) / (rn * qn)
	}
	return out, nil
}

// Weights maps similarities to 10 * 10^(s/max(s)). The result is strictly
// positive and increasing in s, and the most similar battle always weighs 100.
//
// When the largest similarity is not positive the divisor is the largest
// absolute similarity instead, which keeps the mapping increasing. If every
// similarity is zero all battles weigh 100.
func Weights(sims []float64) []float64 {
	out := make([]float64, len(sims))
	if len(sims) == 0 {
		return out
	}
	denom := floats.Max(sims)
	if denom <= 0 {
		denom = 0
		for _, s := range sims {
			denom = math.Max(denom, math.Abs(s))
		}
	}
	for i, s := range sims {
		x := 1.0
		if denom > 0 {
			x = s / denom
		}
		out[i] = 10 * math.Pow(10, x)
	}
	return out
}
