package broker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Miguel57216/LLM-Route/internal/batch"
	"github.com/Miguel57216/LLM-Route/internal/config"
	"github.com/Miguel57216/LLM-Route/internal/estimator"
	"github.com/Miguel57216/LLM-Route/internal/hermes"
	"github.com/Miguel57216/LLM-Route/internal/metrics"
	"github.com/Miguel57216/LLM-Route/internal/router"
	"github.com/Miguel57216/LLM-Route/internal/store"
)

var (
	ErrUnknownRouter  = errors.New("unknown router")
	ErrInvalidRequest = errors.New("invalid request")
)

// StatsInterval is how often per-router counters are published.
const StatsInterval = time.Minute

type RouteRequest struct {
	Prompt    string   `json:"prompt"`
	Router    string   `json:"router,omitempty"`
	Threshold *float64 `json:"threshold,omitempty"`
	Model     string   `json:"model,omitempty"`
}

type RouteResult struct {
	router.Decision
	DecisionID *uuid.UUID `json:"decision_id,omitempty"`
	LatencyMs  int64      `json:"latency_ms"`
}

type RouterInfo struct {
	Name         string  `json:"name"`
	Default      bool    `json:"default"`
	ParallelSafe bool    `json:"parallel_safe"`
	StrongModel  string  `json:"strong_model"`
	WeakModel    string  `json:"weak_model"`
	Threshold    float64 `json:"threshold"`
}

// entry guards an engine whose estimator is not parallel safe.
type entry struct {
	engine *router.Engine
	mu     *sync.Mutex
}

func (e *entry) lock() {
	if e.mu != nil {
		e.mu.Lock()
	}
}

func (e *entry) unlock() {
	if e.mu != nil {
		e.mu.Unlock()
	}
}

// Broker owns the configured routers and is the single entry point used by
// the HTTP API, the NATS responder and batch runs. It serializes calls into
// estimators that are not parallel safe, logs decisions and publishes them.
type Broker struct {
	engines       map[string]*entry
	defaultRouter string
	store         store.Store
	hermes        hermes.Client
	workers       int
	logger        *slog.Logger

	countersMu sync.Mutex
	counters   map[string]*hermes.RouterCounters

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// New wires engines keyed by router name. s and h may be nil.
func New(engines map[string]*router.Engine, defaultRouter string, s store.Store, h hermes.Client, workers int, logger *slog.Logger) (*Broker, error) {
	if len(engines) == 0 {
		return nil, errors.New("broker: no routers configured")
	}
	if _, ok := engines[defaultRouter]; !ok {
		return nil, fmt.Errorf("broker: default router %q is not configured", defaultRouter)
	}
	if logger == nil {
		logger = slog.Default()
	}
	b := &Broker{
		engines:       make(map[string]*entry, len(engines)),
		defaultRouter: defaultRouter,
		store:         s,
		hermes:        h,
		workers:       workers,
		logger:        logger,
		counters:      make(map[string]*hermes.RouterCounters),
		stopCh:        make(chan struct{}),
	}
	for name, e := range engines {
		ent := &entry{engine: e}
		if !e.ParallelSafe() {
			ent.mu = &sync.Mutex{}
		}
		b.engines[name] = ent
		b.counters[name] = &hermes.RouterCounters{}
	}
	return b, nil
}

// BuildEngines constructs one engine per configured router.
func BuildEngines(cfg *config.Config, deps estimator.Dependencies) (map[string]*router.Engine, error) {
	rc := router.Config{
		Strong:    cfg.Routing.StrongModel,
		Weak:      cfg.Routing.WeakModel,
		Threshold: cfg.Routing.Threshold,
	}
	deps.Strong, deps.Weak = rc.Strong, rc.Weak

	engines := make(map[string]*router.Engine)
	for _, name := range cfg.RouterNames() {
		est, err := estimator.New(name, cfg.Routers[name], deps)
		if err != nil {
			return nil, err
		}
		e, err := router.New(rc, est)
		if err != nil {
			return nil, err
		}
		engines[name] = e
	}
	return engines, nil
}

func (b *Broker) Start(ctx context.Context) {
	if b.hermes == nil {
		return
	}
	b.wg.Add(1)
	go b.statsLoop(ctx, StatsInterval)
}

func (b *Broker) Stop() {
	b.stopOnce.Do(func() { close(b.stopCh) })
	b.wg.Wait()
}

func (b *Broker) DefaultRouter() string { return b.defaultRouter }

// Routers describes every configured router, sorted by name.
func (b *Broker) Routers() []RouterInfo {
	out := make([]RouterInfo, 0, len(b.engines))
	for name, ent := range b.engines {
		c := ent.engine.Config()
		out = append(out, RouterInfo{
			Name:         name,
			Default:      name == b.defaultRouter,
			ParallelSafe: ent.engine.ParallelSafe(),
			StrongModel:  c.Strong,
			WeakModel:    c.Weak,
			Threshold:    c.Threshold,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (b *Broker) lookup(name string) (string, *entry, error) {
	if name == "" {
		name = b.defaultRouter
	}
	ent, ok := b.engines[name]
	if !ok {
		return "", nil, fmt.Errorf("%w %q", ErrUnknownRouter, name)
	}
	return name, ent, nil
}

// resolve picks the router and threshold for req. A router model name in
// Model takes precedence over Router and Threshold.
func (b *Broker) resolve(req RouteRequest) (string, *entry, float64, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return "", nil, 0, fmt.Errorf("%w: prompt is required", ErrInvalidRequest)
	}
	name := req.Router
	var threshold *float64
	if req.Threshold != nil {
		threshold = req.Threshold
	}
	if req.Model != "" {
		n, t, err := router.ParseModelName(req.Model)
		if err != nil {
			return "", nil, 0, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		name, threshold = n, &t
	}
	name, ent, err := b.lookup(name)
	if err != nil {
		return "", nil, 0, err
	}
	t := ent.engine.Config().Threshold
	if threshold != nil {
		t = *threshold
	}
	if err := router.ValidateThreshold(t); err != nil {
		return "", nil, 0, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return name, ent, t, nil
}

// Route makes one routing decision and records it.
func (b *Broker) Route(ctx context.Context, req RouteRequest, source store.Source) (*RouteResult, error) {
	name, ent, threshold, err := b.resolve(req)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	ent.lock()
	d, err := ent.engine.DecideAt(ctx, req.Prompt, threshold)
	ent.unlock()
	took := time.Since(start)

	if err != nil {
		b.countFailure(name)
		metrics.ObserveError(name, took)
		b.logger.Warn("routing failed", "router", name, "source", source, "error", err)
		return nil, err
	}
	res := &RouteResult{Decision: d, LatencyMs: took.Milliseconds()}
	res.DecisionID = b.record(ctx, name, ent, req.Prompt, d, took, source)
	return res, nil
}

// Estimate returns the strong model's win rate without routing or logging.
func (b *Broker) Estimate(ctx context.Context, routerName, prompt string) (float64, error) {
	if strings.TrimSpace(prompt) == "" {
		return 0, fmt.Errorf("%w: prompt is required", ErrInvalidRequest)
	}
	name, ent, err := b.lookup(routerName)
	if err != nil {
		return 0, err
	}
	start := time.Now()
	ent.lock()
	w, err := ent.engine.WinRate(ctx, prompt)
	ent.unlock()
	if err != nil {
		metrics.ObserveError(name, time.Since(start))
		return 0, err
	}
	return w, nil
}

// RouteBatch routes prompts with bounded parallelism. An engine that is not
// parallel safe is held for the whole batch.
func (b *Broker) RouteBatch(ctx context.Context, routerName string, prompts []string, threshold *float64) ([]batch.Result, batch.Summary, error) {
	if len(prompts) == 0 {
		return nil, batch.Summary{}, fmt.Errorf("%w: prompts are required", ErrInvalidRequest)
	}
	name, ent, err := b.lookup(routerName)
	if err != nil {
		return nil, batch.Summary{}, err
	}
	t := ent.engine.Config().Threshold
	if threshold != nil {
		t = *threshold
	}
	if err := router.ValidateThreshold(t); err != nil {
		return nil, batch.Summary{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	start := time.Now()
	ent.lock()
	results, err := batch.NewRunner(ent.engine, b.workers, b.logger).Run(ctx, prompts, t)
	ent.unlock()
	if err != nil {
		return nil, batch.Summary{}, err
	}
	took := time.Since(start)

	for _, r := range results {
		if r.Err != nil {
			b.countFailure(name)
			continue
		}
		b.record(ctx, name, ent, r.Prompt, r.Decision, took/time.Duration(len(results)), store.SourceBatch)
	}
	return results, batch.Summarize(results), nil
}

func (b *Broker) record(ctx context.Context, name string, ent *entry, prompt string, d router.Decision, took time.Duration, source store.Source) *uuid.UUID {
	metrics.ObserveDecision(name, string(d.Side), d.WinRate, took)
	b.countDecision(name, d.Side)

	c := ent.engine.Config()
	rec := &store.Decision{
		Router:      name,
		StrongModel: c.Strong,
		WeakModel:   c.Weak,
		Threshold:   d.Threshold,
		WinRate:     d.WinRate,
		RoutedTo:    string(d.Side),
		Model:       d.Model,
		PromptHash:  store.HashPrompt(prompt),
		LatencyMs:   took.Milliseconds(),
		Source:      source,
	}

	var id *uuid.UUID
	if b.store != nil {
		if err := b.store.RecordDecision(ctx, rec); err != nil {
			b.logger.Warn("failed to record decision", "router", name, "error", err)
		} else {
			id = &rec.ID
		}
	}

	if b.hermes != nil {
		evt := hermes.DecisionEvent{
			Router:     name,
			RoutedTo:   rec.RoutedTo,
			Model:      rec.Model,
			WinRate:    rec.WinRate,
			Threshold:  rec.Threshold,
			PromptHash: rec.PromptHash,
			LatencyMs:  rec.LatencyMs,
			Source:     string(source),
			Timestamp:  time.Now().UTC(),
		}
		if id != nil {
			evt.DecisionID = id.String()
		}
		if err := b.hermes.Publish(hermes.SubjectDecision(name), evt); err != nil {
			b.logger.Warn("failed to publish decision", "router", name, "error", err)
		}
	}

	b.logger.Debug("routed",
		"router", name,
		"routed_to", d.Side,
		"model", d.Model,
		"win_rate", d.WinRate,
		"threshold", d.Threshold,
		"duration_ms", took.Milliseconds(),
	)
	return id
}

func (b *Broker) countDecision(name string, side estimator.Side) {
	b.countersMu.Lock()
	defer b.countersMu.Unlock()
	if side == estimator.SideStrong {
		b.counters[name].Strong++
	} else {
		b.counters[name].Weak++
	}
}

func (b *Broker) countFailure(name string) {
	b.countersMu.Lock()
	defer b.countersMu.Unlock()
	b.counters[name].Failed++
}

// Counters returns a snapshot of per-router decision counts.
func (b *Broker) Counters() map[string]hermes.RouterCounters {
	b.countersMu.Lock()
	defer b.countersMu.Unlock()
	out := make(map[string]hermes.RouterCounters, len(b.counters))
	for k, v := range b.counters {
		out[k] = *v
	}
	return out
}
