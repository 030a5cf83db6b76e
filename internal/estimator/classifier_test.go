package estimator

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Miguel57216/LLM-Route/internal/inference"
)

func writeTemplates(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	sys := filepath.Join(dir, "system.txt")
	msg := filepath.Join(dir, "classifier.txt")
	require.NoError(t, os.WriteFile(sys, []byte("You grade prompts."), 0o644))
	require.NoError(t, os.WriteFile(msg, []byte("Question: {question}\nScore:"), 0o644))
	return sys, msg
}

func TestCausalLLM_Estimate(t *testing.T) {
	sys, msg := writeTemplates(t)
	cl := new(MockClassifier)
	cl.On("Classify", mock.Anything, mock.MatchedBy(func(req inference.ClassifyRequest) bool {
		return req.Model == "ckpt" &&
			len(req.Messages) == 2 &&
			req.Messages[0].Content == "You grade prompts." &&
			req.Messages[1].Role == "user" &&
			req.Messages[1].Content == "Question: what is 2+2\nScore:"
	})).Return([]float64{0, 0, 0, 0, 0}, nil)

	e, err := NewCausalLLM(cl, CausalLLMConfig{Model: "ckpt", SystemMessagePath: sys, ClassifierMessagePath: msg})
	require.NoError(t, err)

	// Scores 4 and 5 mean the weak model is enough: 2 of 5 equal classes.
	w, err := e.Estimate(context.Background(), "what is 2+2")
	require.NoError(t, err)
	assert.InDelta(t, 0.6, w, 1e-12)
	assert.True(t, e.ParallelSafe())
	assert.Equal(t, NameCausalLLM, e.Name())
	cl.AssertExpectations(t)
}

func TestCausalLLM_ScoreThreshold(t *testing.T) {
	sys, msg := writeTemplates(t)
	cl := new(MockClassifier)
	cl.On("Classify", mock.Anything, mock.Anything).Return([]float64{0, 0, 0, 0, 0}, nil)

	e, err := NewCausalLLM(cl, CausalLLMConfig{SystemMessagePath: sys, ClassifierMessagePath: msg, ScoreThreshold: 5})
	require.NoError(t, err)
	w, err := e.Estimate(context.Background(), "p")
	require.NoError(t, err)
	assert.InDelta(t, 0.8, w, 1e-12)
}

func TestCausalLLM_ConfidentStrong(t *testing.T) {
	sys, msg := writeTemplates(t)
	cl := new(MockClassifier)
	cl.On("Classify", mock.Anything, mock.Anything).Return([]float64{50, 0, 0, 0, 0}, nil)

	e, err := NewCausalLLM(cl, CausalLLMConfig{SystemMessagePath: sys, ClassifierMessagePath: msg})
	require.NoError(t, err)
	w, err := e.Estimate(context.Background(), "prove the Riemann hypothesis")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, w, 1e-9)
}

func TestCausalLLM_MissingTemplate(t *testing.T) {
	sys, _ := writeTemplates(t)
	_, err := NewCausalLLM(new(MockClassifier), CausalLLMConfig{
		SystemMessagePath:     sys,
		ClassifierMessagePath: filepath.Join(t.TempDir(), "missing.txt"),
	})
	var ce *ConstructionError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, NameCausalLLM, ce.Estimator)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestCausalLLM_BadLogits(t *testing.T) {
	sys, msg := writeTemplates(t)
	cl := new(MockClassifier)
	cl.On("Classify", mock.Anything, mock.Anything).Return([]float64{1, 2, 3}, nil)

	e, err := NewCausalLLM(cl, CausalLLMConfig{SystemMessagePath: sys, ClassifierMessagePath: msg})
	require.NoError(t, err)
	_, err = e.Estimate(context.Background(), "p")
	var ie *InvocationError
	assert.True(t, errors.As(err, &ie))
}

func TestBERT_Estimate(t *testing.T) {
	cl := new(MockClassifier)
	cl.On("Classify", mock.Anything, inference.ClassifyRequest{Model: "bert-ckpt", Text: "hello"}).
		Return([]float64{1, 1, 1}, nil)

	e, err := NewBERT(cl, "bert-ckpt", 0)
	require.NoError(t, err)
	w, err := e.Estimate(context.Background(), "hello")
	require.NoError(t, err)
	assert.InDelta(t, 1.0/3, w, 1e-12)
	cl.AssertExpectations(t)
}

func TestBERT_BackendError(t *testing.T) {
	cl := new(MockClassifier)
	cl.On("Classify", mock.Anything, mock.Anything).Return(nil, errors.New("unavailable"))

	e, err := NewBERT(cl, "", 3)
	require.NoError(t, err)
	_, err = e.Estimate(context.Background(), "hello")
	var ie *InvocationError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, NameBERT, ie.Estimator)
}

func TestBERT_InvalidLabels(t *testing.T) {
	_, err := NewBERT(new(MockClassifier), "", 1)
	var ce *ConstructionError
	assert.True(t, errors.As(err, &ce))

	_, err = NewBERT(nil, "", 3)
	assert.True(t, errors.As(err, &ce))
}

func TestSoftmax_Stable(t *testing.T) {
	p := softmax([]float64{1000, 1000})
	assert.InDeltaSlice(t, []float64{0.5, 0.5}, p, 1e-12)
	for _, v := range softmax([]float64{-1e6, 0, 3}) {
		assert.False(t, math.IsNaN(v))
	}
}
