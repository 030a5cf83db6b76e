package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig              `yaml:"server" toml:"server"`
	Database  DatabaseConfig            `yaml:"database" toml:"database"`
	Hermes    HermesConfig              `yaml:"hermes" toml:"hermes"`
	Embedding EmbeddingConfig           `yaml:"embedding" toml:"embedding"`
	Inference InferenceConfig           `yaml:"inference" toml:"inference"`
	Routing   RoutingConfig             `yaml:"routing" toml:"routing"`
	Routers   map[string]map[string]any `yaml:"routers" toml:"routers"`
	Batch     BatchConfig               `yaml:"batch" toml:"batch"`
	RateLimit RateLimitConfig           `yaml:"rate_limit" toml:"rate_limit"`
	Logging   LoggingConfig             `yaml:"logging" toml:"logging"`
}

type ServerConfig struct {
	Port        int    `yaml:"port" toml:"port"`
	MetricsPort int    `yaml:"metrics_port" toml:"metrics_port"`
	AdminToken  string `yaml:"admin_token" toml:"admin_token"`
}

// DatabaseConfig selects the decision log. A postgres:// URL uses Postgres,
// sqlite://path or a bare file path uses SQLite, and empty disables it.
type DatabaseConfig struct {
	URL string `yaml:"url" toml:"url"`
}

type HermesConfig struct {
	URL string `yaml:"url" toml:"url"`
}

type EmbeddingConfig struct {
	URL       string `yaml:"url" toml:"url"`
	APIKey    string `yaml:"api_key" toml:"api_key"`
	Model     string `yaml:"model" toml:"model"`
	TimeoutMs int    `yaml:"timeout_ms" toml:"timeout_ms"`
}

type InferenceConfig struct {
	URL       string `yaml:"url" toml:"url"`
	Token     string `yaml:"token" toml:"token"`
	TimeoutMs int    `yaml:"timeout_ms" toml:"timeout_ms"`
}

type RoutingConfig struct {
	StrongModel   string  `yaml:"strong_model" toml:"strong_model"`
	WeakModel     string  `yaml:"weak_model" toml:"weak_model"`
	Threshold     float64 `yaml:"threshold" toml:"threshold"`
	DefaultRouter string  `yaml:"default_router" toml:"default_router"`
}

type BatchConfig struct {
	Workers int `yaml:"workers" toml:"workers"`
}

type RateLimitConfig struct {
	PerMinute int `yaml:"per_minute" toml:"per_minute"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

func (c *Config) EmbeddingTimeout() time.Duration {
	return time.Duration(c.Embedding.TimeoutMs) * time.Millisecond
}

func (c *Config) InferenceTimeout() time.Duration {
	return time.Duration(c.Inference.TimeoutMs) * time.Millisecond
}

// RouterNames returns the configured routers plus the default router.
func (c *Config) RouterNames() []string {
	seen := map[string]bool{}
	var names []string
	if c.Routing.DefaultRouter != "" {
		seen[c.Routing.DefaultRouter] = true
		names = append(names, c.Routing.DefaultRouter)
	}
	for n := range c.Routers {
		if !seen[n] {
			seen[n] = true
			names = append(names, n)
		}
	}
	return names
}

func Load(path string) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:        8700,
			MetricsPort: 8701,
		},
		Embedding: EmbeddingConfig{
			URL:       "https://api.openai.com",
			Model:     "text-embedding-3-small",
			TimeoutMs: 10000,
		},
		Inference: InferenceConfig{
			TimeoutMs: 30000,
		},
		Routing: RoutingConfig{
			StrongModel:   "gpt-4-1106-preview",
			WeakModel:     "mixtral-8x7b-instruct-v0.1",
			Threshold:     0.5,
			DefaultRouter: "random",
		},
		Routers: map[string]map[string]any{},
		Batch: BatchConfig{
			Workers: 4,
		},
		RateLimit: RateLimitConfig{
			PerMinute: 120,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if strings.EqualFold(filepath.Ext(path), ".toml") {
			if _, err := toml.Decode(string(data), cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(cfg)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Routing.Threshold < 0 || c.Routing.Threshold > 1 {
		return fmt.Errorf("routing.threshold %v outside [0, 1]", c.Routing.Threshold)
	}
	if c.Routing.StrongModel == "" || c.Routing.WeakModel == "" {
		return fmt.Errorf("routing.strong_model and routing.weak_model are required")
	}
	return nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("LLMROUTE_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = n
		}
	}
	if v := os.Getenv("LLMROUTE_METRICS_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.MetricsPort = n
		}
	}
	if v := os.Getenv("LLMROUTE_ADMIN_TOKEN"); v != "" {
		cfg.Server.AdminToken = v
	}
	if v := os.Getenv("LLMROUTE_DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("LLMROUTE_HERMES_URL"); v != "" {
		cfg.Hermes.URL = v
	}
	if v := os.Getenv("LLMROUTE_EMBEDDING_URL"); v != "" {
		cfg.Embedding.URL = v
	}
	if v := os.Getenv("LLMROUTE_EMBEDDING_API_KEY"); v != "" {
		cfg.Embedding.APIKey = v
	} else if cfg.Embedding.APIKey == "" {
		cfg.Embedding.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if v := os.Getenv("LLMROUTE_INFERENCE_URL"); v != "" {
		cfg.Inference.URL = v
	}
	if v := os.Getenv("LLMROUTE_INFERENCE_TOKEN"); v != "" {
		cfg.Inference.Token = v
	}
	if v := os.Getenv("LLMROUTE_STRONG_MODEL"); v != "" {
		cfg.Routing.StrongModel = v
	}
	if v := os.Getenv("LLMROUTE_WEAK_MODEL"); v != "" {
		cfg.Routing.WeakModel = v
	}
	if v := os.Getenv("LLMROUTE_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Routing.Threshold = f
		}
	}
	if v := os.Getenv("LLMROUTE_DEFAULT_ROUTER"); v != "" {
		cfg.Routing.DefaultRouter = v
	}
	if v := os.Getenv("LLMROUTE_BATCH_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Batch.Workers = n
		}
	}
	if v := os.Getenv("LLMROUTE_RATE_LIMIT_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateLimit.PerMinute = n
		}
	}
	if v := os.Getenv("LLMROUTE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LLMROUTE_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
