package config

import (
	"log/slog"
	"testing"
	"time"
)

func TestParseDefaults(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "mock")
	cfg, err := Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.MaxChapters != 200 || cfg.MaxRewrites != 2 {
		t.Errorf("chapters/rewrites = %d/%d", cfg.MaxChapters, cfg.MaxRewrites)
	}
	if cfg.HeartbeatInterval != 8*time.Second || cfg.LLMTimeout != 90*time.Second {
		t.Errorf("intervals = %v/%v", cfg.HeartbeatInterval, cfg.LLMTimeout)
	}
	if cfg.FateProtectionChapters != 40 || cfg.FateDecayPerChapter != 2 {
		t.Errorf("fate = %d/%v", cfg.FateProtectionChapters, cfg.FateDecayPerChapter)
	}
	if cfg.RollingSummaryChapters != 5 || cfg.RollingSummaryMaxChars != 2400 || cfg.BrainMaxTokens != 800 {
		t.Errorf("memory defaults = %+v", cfg)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("log level = %v", cfg.LogLevel)
	}
}

func TestParseOverrides(t *testing.T) {
	t.Setenv("LLM_PROVIDER", " Ollama ")
	t.Setenv("MODEL_NAME", "llama3")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("MAX_REWRITES", "0")
	cfg, err := Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.LLMProvider != "ollama" || cfg.LogLevel != slog.LevelDebug || cfg.MaxRewrites != 0 {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.BackendModel() != "llama3" {
		t.Errorf("BackendModel = %q", cfg.BackendModel())
	}
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			LLMProvider:       "mock",
			EmbeddingProvider: "hash",
			MaxChapters:       200,
			Workers:           1,
			HeartbeatInterval: time.Second,
			LLMTimeout:        time.Second,
		}
	}
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"mock ok", func(c *Config) {}, false},
		{"unknown provider", func(c *Config) { c.LLMProvider = "venice" }, true},
		{"anthropic without key", func(c *Config) { c.LLMProvider = "anthropic"; c.ModelName = "m" }, true},
		{"anthropic with key", func(c *Config) { c.LLMProvider = "anthropic"; c.ModelName = "m"; c.AnthropicAPIKey = "k" }, false},
		{"openai needs model", func(c *Config) { c.LLMProvider = "openai"; c.OpenAIAPIKey = "k" }, true},
		{"openai embeddings without key", func(c *Config) { c.EmbeddingProvider = "openai" }, true},
		{"zero chapters", func(c *Config) { c.MaxChapters = 0 }, true},
		{"zero heartbeat", func(c *Config) { c.HeartbeatInterval = 0 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(&c)
			if err := c.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
