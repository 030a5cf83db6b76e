package estimator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/Miguel57216/LLM-Route/internal/inference"
)

const (
	NameCausalLLM = "causal_llm"
	NameBERT      = "bert"

	DefaultScoreThreshold = 4
	DefaultNumLabels      = 3

	// QuestionPlaceholder is replaced by the prompt in the classifier message.
	QuestionPlaceholder = "{question}"
)

// Classifier returns label logits for a classification request.
type Classifier interface {
	Classify(ctx context.Context, req inference.ClassifyRequest) ([]float64, error)
}

// CausalLLM scores a prompt with a causal language model fine-tuned to emit a
// 1..5 score, where high scores mean the weak model suffices.
type CausalLLM struct {
	classifier        Classifier
	model             string
	systemMessage     string
	classifierMessage string
	scoreThreshold    int
}

type CausalLLMConfig struct {
	Model                 string
	SystemMessagePath     string
	ClassifierMessagePath string
	ScoreThreshold        int
}

func NewCausalLLM(c Classifier, cfg CausalLLMConfig) (*CausalLLM, error) {
	if c == nil {
		return nil, &ConstructionError{Estimator: NameCausalLLM, Err: errors.New("no classifier backend")}
	}
	sys, err := readTemplate(cfg.SystemMessagePath)
	if err != nil {
		return nil, &ConstructionError{Estimator: NameCausalLLM, Err: err}
	}
	msg, err := readTemplate(cfg.ClassifierMessagePath)
	if err != nil {
		return nil, &ConstructionError{Estimator: NameCausalLLM, Err: err}
	}
	if cfg.ScoreThreshold == 0 {
		cfg.ScoreThreshold = DefaultScoreThreshold
	}
	if cfg.ScoreThreshold < 1 || cfg.ScoreThreshold > 5 {
		return nil, &ConstructionError{Estimator: NameCausalLLM, Err: fmt.Errorf("score threshold %d outside 1..5", cfg.ScoreThreshold)}
	}
	return &CausalLLM{
		classifier:        c,
		model:             cfg.Model,
		systemMessage:     sys,
		classifierMessage: msg,
		scoreThreshold:    cfg.ScoreThreshold,
	}, nil
}

func readTemplate(path string) (string, error) {
	if path == "" {
		return "", errors.New("template path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read template: %w", err)
	}
	return string(data), nil
}

// Messages builds the chat sent to the classifier for prompt.
func (c *CausalLLM) Messages(prompt string) []inference.Message {
	return []inference.Message{
		{Role: "system", Content: c.systemMessage},
		{Role: "user", Content: strings.ReplaceAll(c.classifierMessage, QuestionPlaceholder, prompt)},
	}
}

func (c *CausalLLM) Estimate(ctx context.Context, prompt string) (float64, error) {
	logits, err := c.classifier.Classify(ctx, inference.ClassifyRequest{
		Model:    c.model,
		Messages: c.Messages(prompt),
	})
	if err != nil {
		return 0, &InvocationError{Estimator: NameCausalLLM, Err: err}
	}
	if len(logits) != 5 {
		return 0, &InvocationError{Estimator: NameCausalLLM, Err: fmt.Errorf("expected 5 score logits, got %d", len(logits))}
	}
	probs := softmax(logits)
	weak := 0.0
	// probs[i] is the probability of score i+1.
	for i := c.scoreThreshold - 1; i < len(probs); i++ {
		weak += probs[i]
	}
	return clamp01(1 - weak), nil
}

func (c *CausalLLM) ParallelSafe() bool { return true }

func (c *CausalLLM) Name() string { return NameCausalLLM }

// BERT scores the raw prompt with an encoder classifier whose last two labels
// are "tie" and "weak model wins".
type BERT struct {
	classifier Classifier
	model      string
	numLabels  int
}

func NewBERT(c Classifier, model string, numLabels int) (*BERT, error) {
	if c == nil {
		return nil, &ConstructionError{Estimator: NameBERT, Err: errors.New("no classifier backend")}
	}
	if numLabels == 0 {
		numLabels = DefaultNumLabels
	}
	if numLabels < 2 {
		return nil, &ConstructionError{Estimator: NameBERT, Err: fmt.Errorf("num_labels must be at least 2, got %d", numLabels)}
	}
	return &BERT{classifier: c, model: model, numLabels: numLabels}, nil
}

func (b *BERT) Estimate(ctx context.Context, prompt string) (float64, error) {
	logits, err := b.classifier.Classify(ctx, inference.ClassifyRequest{Model: b.model, Text: prompt})
	if err != nil {
		return 0, &InvocationError{Estimator: NameBERT, Err: err}
	}
	if len(logits) != b.numLabels {
		return 0, &InvocationError{Estimator: NameBERT, Err: fmt.Errorf("expected %d logits, got %d", b.numLabels, len(logits))}
	}
	probs := softmax(logits)
	weak := probs[len(probs)-1] + probs[len(probs)-2]
	return clamp01(1 - weak), nil
}

func (b *BERT) ParallelSafe() bool { return true }

func (b *BERT) Name() string { return NameBERT }

func softmax(logits []float64) []float64 {
	max := math.Inf(-1)
	for _, l := range logits {
		max = math.Max(max, l)
	}
	out := make([]float64, len(logits))
	sum := 0.0
	for i, l := range logits {
		out[i] = math.Exp(l - max)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

func clamp01(x float64) float64 {
	return math.Min(1, math.Max(0, x))
}
