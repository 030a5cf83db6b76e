package estimator

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/go-viper/mapstructure/v2"

	"github.com/Miguel57216/LLM-Route/internal/arena"
	"github.com/Miguel57216/LLM-Route/internal/embedding"
)

// ErrUnknown is returned by New for a name with no registered constructor.
var ErrUnknown = errors.New("unknown estimator")

// Dependencies are the shared collaborators handed to every constructor.
// A constructor fails if it needs one that is nil.
type Dependencies struct {
	Strong string
	Weak   string

	Classifier   Classifier
	WinRateModel WinRateModel
	Embedder     embedding.Provider
	Logger       *slog.Logger
}

// Constructor builds an estimator from its free-form parameters.
type Constructor func(params map[string]any, deps Dependencies) (Estimator, error)

var registry = map[string]Constructor{
	NameRandom:              newRandom,
	NameMatrixFactorization: newMatrixFactorization,
	NameCausalLLM:           newCausalLLM,
	NameBERT:                newBERT,
	NameSWRanking:           newSWRanking,
}

// New builds the estimator registered under name.
func New(name string, params map[string]any, deps Dependencies) (Estimator, error) {
	ctor, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w %q (known: %v)", ErrUnknown, name, Names())
	}
	return ctor(params, deps)
}

// Names lists the registered estimator names in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// NameOf returns the registered name of e, or "" if its type is not registered.
func NameOf(e Estimator) string {
	if e == nil {
		return ""
	}
	if _, ok := registry[e.Name()]; !ok {
		return ""
	}
	return e.Name()
}

func decode(name string, params map[string]any, out interface{}) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return &ConstructionError{Estimator: name, Err: err}
	}
	if err := dec.Decode(params); err != nil {
		return &ConstructionError{Estimator: name, Err: fmt.Errorf("parameters: %w", err)}
	}
	return nil
}

func pick(override, fallback string) string {
	if override != "" {
		return override
	}
	return fallback
}

func newRandom(params map[string]any, _ Dependencies) (Estimator, error) {
	v := struct {
		Seed int64 `mapstructure:"seed"`
	}{Seed: -1}
	if err := decode(NameRandom, params, &v); err != nil {
		return nil, err
	}
	return NewRandom(v.Seed), nil
}

func newCausalLLM(params map[string]any, deps Dependencies) (Estimator, error) {
	var v struct {
		Model             string `mapstructure:"model"`
		SystemMessage     string `mapstructure:"system_message"`
		ClassifierMessage string `mapstructure:"classifier_message"`
		ScoreThreshold    int    `mapstructure:"score_threshold"`
	}
	if err := decode(NameCausalLLM, params, &v); err != nil {
		return nil, err
	}
	e, err := NewCausalLLM(deps.Classifier, CausalLLMConfig{
		Model:                 v.Model,
		SystemMessagePath:     v.SystemMessage,
		ClassifierMessagePath: v.ClassifierMessage,
		ScoreThreshold:        v.ScoreThreshold,
	})
	if err != nil {
		return nil, err
	}
	return e, nil
}

func newBERT(params map[string]any, deps Dependencies) (Estimator, error) {
	var v struct {
		Model     string `mapstructure:"model"`
		NumLabels int    `mapstructure:"num_labels"`
	}
	if err := decode(NameBERT, params, &v); err != nil {
		return nil, err
	}
	e, err := NewBERT(deps.Classifier, v.Model, v.NumLabels)
	if err != nil {
		return nil, err
	}
	return e, nil
}

func newMatrixFactorization(params map[string]any, deps Dependencies) (Estimator, error) {
	var v struct {
		Model       string         `mapstructure:"model"`
		StrongModel string         `mapstructure:"strong_model"`
		WeakModel   string         `mapstructure:"weak_model"`
		ModelIDs    map[string]int `mapstructure:"model_ids"`
	}
	if err := decode(NameMatrixFactorization, params, &v); err != nil {
		return nil, err
	}
	e, err := NewMatrixFactorization(deps.WinRateModel, MatrixFactorizationConfig{
		Model:    v.Model,
		Strong:   pick(v.StrongModel, deps.Strong),
		Weak:     pick(v.WeakModel, deps.Weak),
		ModelIDs: v.ModelIDs,
	})
	if err != nil {
		return nil, err
	}
	return e, nil
}

func newSWRanking(params map[string]any, deps Dependencies) (Estimator, error) {
	var v struct {
		BattlesPath    string `mapstructure:"battles_path"`
		EmbeddingsPath string `mapstructure:"embeddings_path"`
		NumTiers       int    `mapstructure:"num_tiers"`
		StrongModel    string `mapstructure:"strong_model"`
		WeakModel      string `mapstructure:"weak_model"`
	}
	if err := decode(NameSWRanking, params, &v); err != nil {
		return nil, err
	}
	battles, err := arena.LoadBattles(v.BattlesPath)
	if err != nil {
		return nil, &ConstructionError{Estimator: NameSWRanking, Err: err}
	}
	emb, err := arena.LoadEmbeddings(v.EmbeddingsPath)
	if err != nil {
		return nil, &ConstructionError{Estimator: NameSWRanking, Err: err}
	}
	e, err := NewSWRanking(SWRankingConfig{
		Strong:     pick(v.StrongModel, deps.Strong),
		Weak:       pick(v.WeakModel, deps.Weak),
		Battles:    battles,
		Embeddings: emb,
		NumTiers:   v.NumTiers,
		Embedder:   deps.Embedder,
		Logger:     deps.Logger,
	})
	if err != nil {
		return nil, err
	}
	return e, nil
}
