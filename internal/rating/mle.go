// Package rating fits Elo-scale skill ratings to weighted pairwise battles and
// buckets the rated participants into ordinal tiers.
//
// The fit is the maximum-likelihood Bradley-Terry model on a logistic scale
// (base 10, divisor 400 by default):
//
//	P(a beats b) = 1 / (1 + 10^((r_b - r_a)/400))
//
// A tie credits half of the battle weight to each side. Every pair of
// participants also receives a small symmetric pseudo-tie, so undefeated or
// isolated participants stay finite and a fit with no information collapses
// to the anchor rating for everyone.
package rating

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

const (
	DefaultScale       = 400.0
	DefaultBase        = 10.0
	DefaultInitRating  = 1000.0
	DefaultPriorWeight = 1e-3
	DefaultMaxIter     = 100
	DefaultTolerance   = 1e-10
)

// Options controls a single fit. The zero value is usable; unset fields take
// the defaults above.
type Options struct {
	Scale      float64
	Base       float64
	InitRating float64

	// Anchor is pinned at AnchorRating. Empty means the first participant in
	// sorted order. AnchorRating defaults to InitRating.
	Anchor       string
	AnchorRating float64

	// PriorWeight is the weight of the pseudo-tie added between every pair.
	PriorWeight float64

	MaxIter   int
	Tolerance float64
}

// DefaultOptions returns the Elo-scale options used across the router.
func DefaultOptions() Options {
	return Options{}.withDefaults()
}

func (o Options) withDefaults() Options {
	if o.Scale <= 0 {
		o.Scale = DefaultScale
	}
	if o.Base <= 1 {
		o.Base = DefaultBase
	}
	if o.InitRating == 0 {
		o.InitRating = DefaultInitRating
	}
	if o.AnchorRating == 0 {
		o.AnchorRating = o.InitRating
	}
	if o.PriorWeight <= 0 {
		o.PriorWeight = DefaultPriorWeight
	}
	if o.MaxIter <= 0 {
		o.MaxIter = DefaultMaxIter
	}
	if o.Tolerance <= 0 {
		o.Tolerance = DefaultTolerance
	}
	return o
}

// ExpectedScore is the probability that a participant rated ra beats one
// rated rb on the default Elo scale.
func ExpectedScore(ra, rb float64) float64 {
	return DefaultOptions().ExpectedScore(ra, rb)
}

// ExpectedScore is the probability that a participant rated ra beats one
// rated rb on this scale.
func (o Options) ExpectedScore(ra, rb float64) float64 {
	o = o.withDefaults()
	return 1 / (1 + math.Pow(o.Base, (rb-ra)/o.Scale))
}

// Ratings maps a participant to its fitted score.
type Ratings map[string]float64

// WinProbability returns P(a beats b) on the default Elo scale.
func (r Ratings) WinProbability(a, b string) (float64, error) {
	ra, ok := r[a]
	if !ok {
		return 0, fmt.Errorf("no rating for %q", a)
	}
	rb, ok := r[b]
	if !ok {
		return 0, fmt.Errorf("no rating for %q", b)
	}
	return ExpectedScore(ra, rb), nil
}

// Fit returns maximum-likelihood ratings for battles. weights may be nil
// (every battle counts once); otherwise it must be row-aligned with battles
// and hold finite, non-negative values.
func Fit(battles []Battle, weights []float64, opts Options) (Ratings, error) {
	if weights != nil && len(weights) != len(battles) {
		return nil, fmt.Errorf("fit: %d weights for %d battles", len(weights), len(battles))
	}
	opts = opts.withDefaults()

	names := Participants(battles)
	if len(names) == 0 {
		return Ratings{}, nil
	}
	index := make(map[string]int, len(names))
	for i, n := range names {
		index[n] = i
	}

	anchor := 0
	if opts.Anchor != "" {
		i, ok := index[opts.Anchor]
		if !ok {
			return nil, fmt.Errorf("fit: anchor %q is not a participant", opts.Anchor)
		}
		anchor = i
	}

	t, err := tally(battles, weights, index, opts.PriorWeight)
	if err != nil {
		return nil, err
	}
	beta := t.solve(anchor, opts.MaxIter, opts.Tolerance)

	// beta is in natural log-odds units; convert to the configured scale.
	k := opts.Scale / math.Log(opts.Base)
	out := make(Ratings, len(names))
	for i, n := range names {
		out[n] = opts.AnchorRating + k*(beta[i]-beta[anchor])
	}
	return out, nil
}

// tallies holds weighted credit per ordered pair. wins[i][j] is the credit of
// i over j and games[i][j] the total weight between them.
type tallies struct {
	n     int
	wins  [][]float64
	games [][]float64
}

func tally(battles []Battle, weights []float64, index map[string]int, prior float64) (*tallies, error) {
	n := len(index)
	t := &tallies{n: n, wins: square(n), games: square(n)}

	for k, b := range battles {
		w := 1.0
		if weights != nil {
			w = weights[k]
		}
		if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
			return nil, fmt.Errorf("fit: invalid weight %v at row %d", w, k)
		}
		if w == 0 {
			continue
		}
		a, c := index[b.ModelA], index[b.ModelB]
		if a == c {
			continue
		}
		switch b.Winner {
		case OutcomeModelA:
			t.wins[a][c] += w
		case OutcomeModelB:
			t.wins[c][a] += w
		case OutcomeTie:
			t.wins[a][c] += w / 2
			t.wins[c][a] += w / 2
		default:
			return nil, fmt.Errorf("fit: unknown outcome %q at row %d", b.Winner, k)
		}
		t.games[a][c] += w
		t.games[c][a] += w
	}

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			t.wins[i][j] += prior / 2
			t.wins[j][i] += prior / 2
			t.games[i][j] += prior
			t.games[j][i] += prior
		}
	}
	return t, nil
}

func (t *tallies) logLikelihood(beta []float64) float64 {
	var ll float64
	for i := 0; i < t.n; i++ {
		for j := i + 1; j < t.n; j++ {
			d := beta[i] - beta[j]
			ll += t.wins[i][j]*logSigmoid(d) + t.wins[j][i]*logSigmoid(-d)
		}
	}
	return ll
}

// solve runs damped Newton-Raphson with beta[anchor] held at zero.
func (t *tallies) solve(anchor, maxIter int, tol float64) []float64 {
	beta := make([]float64, t.n)
	if t.n < 2 {
		return beta
	}

	free := make([]int, 0, t.n-1)
	for i := 0; i < t.n; i++ {
		if i != anchor {
			free = append(free, i)
		}
	}
	m := len(free)

	ll := t.logLikelihood(beta)
	for iter := 0; iter < maxIter; iter++ {
		grad := make([]float64, t.n)
		curv := square(t.n)
		for i := 0; i < t.n; i++ {
			for j := 0; j < t.n; j++ {
				if i == j || t.games[i][j] == 0 {
					continue
				}
				p := sigmoid(beta[i] - beta[j])
				grad[i] += t.wins[i][j] - t.games[i][j]*p
				curv[i][j] = t.games[i][j] * p * (1 - p)
			}
		}

		// Negative Hessian restricted to the free coordinates.
		neg := mat.NewSymDense(m, nil)
		g := mat.NewVecDense(m, nil)
		for a, i := range free {
			var diag float64
			for j := 0; j < t.n; j++ {
				diag += curv[i][j]
			}
			neg.SetSym(a, a, diag)
			for b := a + 1; b < m; b++ {
				neg.SetSym(a, b, -curv[i][free[b]])
			}
			g.SetVec(a, grad[i])
		}

		step := newtonStep(neg, g)

		scale := 1.0
		next := make([]float64, t.n)
		var nextLL float64
		for halvings := 0; halvings < 30; halvings++ {
			copy(next, beta)
			for a, i := range free {
				next[i] += scale * step[a]
			}
			nextLL = t.logLikelihood(next)
			if nextLL >= ll-1e-12*math.Abs(ll) {
				break
			}
			scale /= 2
		}

		var moved float64
		for a := range free {
			moved = math.Max(moved, math.Abs(scale*step[a]))
		}
		beta, ll = next, nextLL
		if moved < tol {
			break
		}
	}
	return beta
}

// newtonStep solves neg·x = g. When the system is not positive definite it
// falls back to a diagonally scaled gradient step.
func newtonStep(neg *mat.SymDense, g *mat.VecDense) []float64 {
	var chol mat.Cholesky
	if !chol.Factorize(neg) {
		return jacobiStep(neg, g)
	}
	var x mat.VecDense
	err := chol.SolveVecTo(&x, g)
	// An ill-conditioned solve still yields a usable direction.
	var cond mat.Condition
	if err != nil && !errors.As(err, &cond) {
		return jacobiStep(neg, g)
	}
	return x.RawVector().Data
}

func jacobiStep(neg *mat.SymDense, g *mat.VecDense) []float64 {
	m := g.Len()
	out := make([]float64, m)
	for a := 0; a < m; a++ {
		if d := neg.At(a, a); d > 0 {
			out[a] = g.AtVec(a) / d
		}
	}
	return out
}

func sigmoid(x float64) float64 {
	if x >= 0 {
		return 1 / (1 + math.Exp(-x))
	}
	e := math.Exp(x)
	return e / (1 + e)
}

func logSigmoid(x float64) float64 {
	if x >= 0 {
		return -math.Log1p(math.Exp(-x))
	}
	return x - math.Log1p(math.Exp(x))
}

func square(n int) [][]float64 {
	rows := make([][]float64, n)
	for i := range rows {
		rows[i] = make([]float64, n)
	}
	return rows
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
