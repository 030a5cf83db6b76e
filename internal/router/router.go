// Package router turns an estimator's win rate into a strong/weak model
// decision.
package router

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/Miguel57216/LLM-Route/internal/estimator"
)

// Config is the routed model pair and the default threshold.
type Config struct {
	Strong    string  `json:"strong_model"`
	Weak      string  `json:"weak_model"`
	Threshold float64 `json:"threshold"`
}

func (c Config) Validate() error {
	if c.Strong == "" || c.Weak == "" {
		return errors.New("strong and weak models are required")
	}
	return ValidateThreshold(c.Threshold)
}

// ValidateThreshold rejects thresholds outside [0, 1].
func ValidateThreshold(t float64) error {
	if math.IsNaN(t) || t < 0 || t > 1 {
		return fmt.Errorf("threshold %v outside [0, 1]", t)
	}
	return nil
}

type Decision struct {
	Side      estimator.Side `json:"routed_to"`
	Model     string         `json:"model"`
	WinRate   float64        `json:"win_rate"`
	Threshold float64        `json:"threshold"`
	Router    string         `json:"router"`
}

// Engine routes prompts for one estimator and model pair. It does not
// serialize calls; callers must do so when the estimator is not parallel
// safe.
type Engine struct {
	cfg Config
	est estimator.Estimator
}

func New(cfg Config, est estimator.Estimator) (*Engine, error) {
	if est == nil {
		return nil, errors.New("router: estimator is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("router: %w", err)
	}
	return &Engine{cfg: cfg, est: est}, nil
}

func (e *Engine) Config() Config { return e.cfg }

func (e *Engine) Estimator() estimator.Estimator { return e.est }

func (e *Engine) Name() string { return e.est.Name() }

func (e *Engine) ParallelSafe() bool { return e.est.ParallelSafe() }

// Decide routes prompt using the configured threshold.
func (e *Engine) Decide(ctx context.Context, prompt string) (Decision, error) {
	return e.DecideAt(ctx, prompt, e.cfg.Threshold)
}

// DecideAt routes prompt with threshold in place of the configured one.
func (e *Engine) DecideAt(ctx context.Context, prompt string, threshold float64) (Decision, error) {
	if err := ValidateThreshold(threshold); err != nil {
		return Decision{}, err
	}
	w, err := e.WinRate(ctx, prompt)
	if err != nil {
		return Decision{}, err
	}
	return e.decision(w, threshold), nil
}

// WinRate calls the estimator once and checks the result is a probability.
func (e *Engine) WinRate(ctx context.Context, prompt string) (float64, error) {
	w, err := e.est.Estimate(ctx, prompt)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 || w > 1 {
		return 0, &estimator.InvocationError{
			Estimator: e.est.Name(),
			Err:       fmt.Errorf("win rate %v outside [0, 1]", w),
		}
	}
	return w, nil
}

func (e *Engine) decision(w, threshold float64) Decision {
	d := Decision{
		Side:      estimator.SideFor(w, threshold),
		WinRate:   w,
		Threshold: threshold,
		Router:    e.est.Name(),
	}
	if d.Side == estimator.SideStrong {
		d.Model = e.cfg.Strong
	} else {
		d.Model = e.cfg.Weak
	}
	return d
}

// ModelPrefix starts every router model name, e.g. "router-sw_ranking-0.3".
const ModelPrefix = "router-"

// ParseModelName splits a router model name into estimator name and threshold.
func ParseModelName(model string) (string, float64, error) {
	if !strings.HasPrefix(model, ModelPrefix) {
		return "", 0, fmt.Errorf("model name %q must start with %q", model, ModelPrefix)
	}
	rest := strings.TrimPrefix(model, ModelPrefix)
	i := strings.LastIndex(rest, "-")
	if i <= 0 || i == len(rest)-1 {
		return "", 0, fmt.Errorf("model name %q must be %s<router>-<threshold>", model, ModelPrefix)
	}
	name := rest[:i]
	threshold, err := strconv.ParseFloat(rest[i+1:], 64)
	if err != nil {
		return "", 0, fmt.Errorf("model name %q: bad threshold: %w", model, err)
	}
	if err := ValidateThreshold(threshold); err != nil {
		return "", 0, fmt.Errorf("model name %q: %w", model, err)
	}
	return name, threshold, nil
}

// ModelName is the inverse of ParseModelName.
func ModelName(router string, threshold float64) string {
	return ModelPrefix + router + "-" + strconv.FormatFloat(threshold, 'f', -1, 64)
}
