package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Miguel57216/LLM-Route/internal/config"
	"github.com/Miguel57216/LLM-Route/internal/embedding"
	"github.com/Miguel57216/LLM-Route/internal/estimator"
	"github.com/Miguel57216/LLM-Route/internal/inference"
)

var version = "dev"

// app holds state shared by every subcommand, filled in by the root
// PersistentPreRunE.
type app struct {
	configPath string
	cfg        *config.Config
	logger     *slog.Logger
}

func newRootCommand() *cobra.Command {
	a := &app{}
	cmd := &cobra.Command{
		Use:   "llmroute",
		Short: "Route prompts between a strong and a weak model",
		Long: `llmroute estimates how likely the strong model is to beat the weak model
on a prompt and routes the prompt to the strong model when that win rate
reaches a threshold.`,
		Version:      version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			a.cfg = cfg
			a.logger = newLogger(cmd.ErrOrStderr(), cfg.Logging)
			slog.SetDefault(a.logger)
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&a.configPath, "config", "", "path to a YAML or TOML config file")

	cmd.AddCommand(newServeCommand(a))
	cmd.AddCommand(newRouteCommand(a))
	cmd.AddCommand(newRatingsCommand(a))
	cmd.AddCommand(newCalibrateCommand(a))
	return cmd
}

func newLogger(w io.Writer, c config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(c.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.Format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// dependencies builds the remote collaborators the configured routers may
// need. Unconfigured backends stay nil so constructors can reject them.
func (a *app) dependencies() estimator.Dependencies {
	deps := estimator.Dependencies{Logger: a.logger}
	if a.cfg.Embedding.URL != "" {
		deps.Embedder = embedding.NewHTTPClient(a.cfg.Embedding.URL, a.cfg.Embedding.APIKey, a.cfg.Embedding.Model, a.cfg.EmbeddingTimeout())
	}
	if a.cfg.Inference.URL != "" {
		c := inference.NewClient(a.cfg.Inference.URL, a.cfg.Inference.Token, a.cfg.InferenceTimeout())
		deps.Classifier = c
		deps.WinRateModel = c
	}
	return deps
}

func writeJSONTo(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// readPrompts reads one prompt per non-blank line, or "-" for stdin.
func readPrompts(path string, stdin io.Reader) ([]string, error) {
	var r io.Reader = stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	var prompts []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			prompts = append(prompts, line)
		}
	}
	return prompts, sc.Err()
}
