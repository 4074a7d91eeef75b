package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevelRaw string `env:"LOG_LEVEL" envDefault:"info"`
	LogLevel    slog.Level

	RedisURL    string `env:"REDIS_URL" envDefault:"localhost:6379"`
	ProseDSN    string `env:"PROSE_DSN" envDefault:"file:amoisekai-prose.db"`
	WorkerID    string `env:"WORKER_ID"`
	Workers     int    `env:"WORKER_CONCURRENCY" envDefault:"1"`
	MetricsAddr string `env:"METRICS_ADDR" envDefault:":9090"`

	LLMProvider      string `env:"LLM_PROVIDER" envDefault:"mock"`
	ModelName        string `env:"MODEL_NAME"`
	BackendModelName string `env:"BACKEND_MODEL_NAME"`
	OpenAIAPIKey     string `env:"OPENAI_API_KEY"`
	OpenAIBaseURL    string `env:"OPENAI_BASE_URL"`
	AnthropicAPIKey  string `env:"ANTHROPIC_API_KEY"`
	OllamaURL        string `env:"OLLAMA_URL" envDefault:"http://localhost:11434"`

	EmbeddingProvider string `env:"EMBEDDING_PROVIDER" envDefault:"hash"`
	EmbeddingModel    string `env:"EMBEDDING_MODEL" envDefault:"text-embedding-3-small"`

	MaxChapters            int           `env:"MAX_CHAPTERS" envDefault:"200"`
	MaxRewrites            int           `env:"MAX_REWRITES" envDefault:"2"`
	FateProtectionChapters int           `env:"FATE_PROTECTION_CHAPTERS" envDefault:"40"`
	FateDecayPerChapter    float64       `env:"FATE_DECAY_PER_CHAPTER" envDefault:"2"`
	RollingSummaryChapters int           `env:"ROLLING_SUMMARY_CHAPTERS" envDefault:"5"`
	RollingSummaryMaxChars int           `env:"ROLLING_SUMMARY_MAX_CHARS" envDefault:"2400"`
	BrainMaxTokens         int           `env:"BRAIN_MAX_TOKENS" envDefault:"800"`
	HeartbeatInterval      time.Duration `env:"HEARTBEAT_INTERVAL" envDefault:"8s"`
	LLMTimeout             time.Duration `env:"LLM_TIMEOUT" envDefault:"90s"`

	PromptsDir   string `env:"PROMPTS_DIR"`
	RegistryPath string `env:"REGISTRY_PATH"`
}

var Providers = []string{"openai", "anthropic", "ollama", "mock"}

// Load reads .env when present and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	return Parse()
}

// Parse reads the process environment only.
func Parse() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.LogLevel = parseLogLevel(cfg.LogLevelRaw)
	cfg.LLMProvider = strings.ToLower(strings.TrimSpace(cfg.LLMProvider))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects inconsistent combinations.
func (c *Config) Validate() error {
	var errs []error
	switch c.LLMProvider {
	case "openai":
		if c.OpenAIAPIKey == "" && c.OpenAIBaseURL == "" {
			errs = append(errs, errors.New("OPENAI_API_KEY or OPENAI_BASE_URL is required for the openai provider"))
		}
	case "anthropic":
		if c.AnthropicAPIKey == "" {
			errs = append(errs, errors.New("ANTHROPIC_API_KEY is required for the anthropic provider"))
		}
	case "ollama", "mock":
	default:
		errs = append(errs, fmt.Errorf("unknown LLM_PROVIDER %q (supported: %s)", c.LLMProvider, strings.Join(Providers, ", ")))
	}
	if c.LLMProvider != "mock" && c.ModelName == "" {
		errs = append(errs, errors.New("MODEL_NAME is required"))
	}
	switch c.EmbeddingProvider {
	case "hash", "openai", "ollama":
	default:
		errs = append(errs, fmt.Errorf("unknown EMBEDDING_PROVIDER %q", c.EmbeddingProvider))
	}
	if c.EmbeddingProvider == "openai" && c.OpenAIAPIKey == "" && c.OpenAIBaseURL == "" {
		errs = append(errs, errors.New("openai embeddings need OPENAI_API_KEY or OPENAI_BASE_URL"))
	}
	if c.MaxChapters < 1 {
		errs = append(errs, errors.New("MAX_CHAPTERS must be positive"))
	}
	if c.MaxRewrites < 0 {
		errs = append(errs, errors.New("MAX_REWRITES cannot be negative"))
	}
	if c.Workers < 1 {
		errs = append(errs, errors.New("WORKER_CONCURRENCY must be positive"))
	}
	if c.HeartbeatInterval <= 0 || c.LLMTimeout <= 0 {
		errs = append(errs, errors.New("HEARTBEAT_INTERVAL and LLM_TIMEOUT must be positive"))
	}
	return errors.Join(errs...)
}

// BackendModel falls back to the narrative model.
func (c *Config) BackendModel() string {
	if c.BackendModelName != "" {
		return c.BackendModelName
	}
	return c.ModelName
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
