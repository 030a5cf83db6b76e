package estimator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
)

const NameMatrixFactorization = "matrix_factorization"

// WinRateModel is a pretrained model that predicts the strong model's win
// rate from a pair of model IDs and the prompt.
type WinRateModel interface {
	PredictWinRate(ctx context.Context, model string, strongID, weakID int, prompt string) (float64, error)
	Health(ctx context.Context) error
}

type MatrixFactorizationConfig struct {
	Model    string
	Strong   string
	Weak     string
	ModelIDs map[string]int
}

type MatrixFactorization struct {
	backend  WinRateModel
	model    string
	strongID int
	weakID   int

	mu    sync.Mutex
	ready bool
}

func NewMatrixFactorization(backend WinRateModel, cfg MatrixFactorizationConfig) (*MatrixFactorization, error) {
	if backend == nil {
		return nil, &ConstructionError{Estimator: NameMatrixFactorization, Err: errors.New("no inference backend")}
	}
	strongID, ok := cfg.ModelIDs[cfg.Strong]
	if !ok {
		return nil, &ConstructionError{Estimator: NameMatrixFactorization, Err: fmt.Errorf("no model id for strong model %q", cfg.Strong)}
	}
	weakID, ok := cfg.ModelIDs[cfg.Weak]
	if !ok {
		return nil, &ConstructionError{Estimator: NameMatrixFactorization, Err: fmt.Errorf("no model id for weak model %q", cfg.Weak)}
	}
	return &MatrixFactorization{
		backend:  backend,
		model:    cfg.Model,
		strongID: strongID,
		weakID:   weakID,
	}, nil
}

// ensureReady probes the backend once. A failed probe is retried on the
// next call.
func (m *MatrixFactorization) ensureReady(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ready {
		return nil
	}
	if err := m.backend.Health(ctx); err != nil {
		return fmt.Errorf("backend not ready: %w", err)
	}
	m.ready = true
	return nil
}

func (m *MatrixFactorization) Estimate(ctx context.Context, prompt string) (float64, error) {
	if err := m.ensureReady(ctx); err != nil {
		return 0, &InvocationError{Estimator: NameMatrixFactorization, Err: err}
	}
	w, err := m.backend.PredictWinRate(ctx, m.model, m.strongID, m.weakID, prompt)
	if err != nil {
		return 0, &InvocationError{Estimator: NameMatrixFactorization, Err: err}
	}
	if math.IsNaN(w) || w < 0 || w > 1 {
		return 0, &InvocationError{Estimator: NameMatrixFactorization, Err: fmt.Errorf("backend win rate %v outside [0, 1]", w)}
	}
	return w, nil
}

func (m *MatrixFactorization) ParallelSafe() bool { return true }

func (m *MatrixFactorization) Name() string { return NameMatrixFactorization }
