package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/amoisekai/engine/pkg/chat"
)

// LLMService is a chat backend that may need warming up before use.
type LLMService interface {
	chat.Generator

	// InitModel prepares the model on startup (pull, ping, or nothing).
	InitModel(ctx context.Context, modelName string) error
}

// LLMSettings selects and configures a backend.
type LLMSettings struct {
	Provider         string
	ModelName        string
	BackendModelName string
	OpenAIAPIKey     string
	OpenAIBaseURL    string
	AnthropicAPIKey  string
	OllamaURL        string
}

// NewLLMService builds the backend named by s.Provider.
func NewLLMService(s LLMSettings, logger *slog.Logger) (LLMService, error) {
	switch strings.ToLower(s.Provider) {
	case "openai":
		return NewOpenAIService(s.OpenAIAPIKey, s.OpenAIBaseURL, s.ModelName, s.BackendModelName, logger), nil
	case "anthropic":
		if s.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("anthropic API key is required")
		}
		return NewAnthropicService(s.AnthropicAPIKey, s.ModelName, s.BackendModelName, logger), nil
	case "ollama":
		return NewOllamaService(s.OllamaURL, s.ModelName, s.BackendModelName, logger)
	case "mock", "":
		return NewMockLLMAPI(), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", s.Provider)
	}
}

// modelFor picks the backend model for structured calls when one is set.
func modelFor(o chat.Options, model, backend string) string {
	if o.Backend && backend != "" {
		return backend
	}
	return model
}
