package estimator

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/Miguel57216/LLM-Route/internal/inference"
)

// MockEmbedder implements embedding.Provider for testing
type MockEmbedder struct {
	mock.Mock
}

func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float64), args.Error(1)
}

// MockClassifier implements Classifier for testing
type MockClassifier struct {
	mock.Mock
}

func (m *MockClassifier) Classify(ctx context.Context, req inference.ClassifyRequest) ([]float64, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float64), args.Error(1)
}

// MockWinRateModel implements WinRateModel for testing
type MockWinRateModel struct {
	mock.Mock
}

func (m *MockWinRateModel) PredictWinRate(ctx context.Context, model string, strongID, weakID int, prompt string) (float64, error) {
	args := m.Called(ctx, model, strongID, weakID, prompt)
	return args.Get(0).(float64), args.Error(1)
}

func (m *MockWinRateModel) Health(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type fixedEstimator struct {
	value float64
	err   error
}

func (f fixedEstimator) Estimate(context.Context, string) (float64, error) { return f.value, f.err }
func (f fixedEstimator) ParallelSafe() bool                               { return true }
func (f fixedEstimator) Name() string                                     { return "fixed" }
