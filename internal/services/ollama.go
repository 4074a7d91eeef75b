package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/amoisekai/engine/pkg/chat"
)

// OllamaService implements LLMService against a local Ollama server.
type OllamaService struct {
	client           *api.Client
	modelName        string
	backendModelName string
	embeddingModel   string
	logger           *slog.Logger
}

// NewOllamaService creates a new Ollama service instance
func NewOllamaService(baseURL, modelName, backendModelName string, logger *slog.Logger) (*OllamaService, error) {
	base := strings.TrimSuffix(strings.TrimSuffix(baseURL, "/"), "/v1")
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse ollama url %q: %w", baseURL, err)
	}
	return &OllamaService{
		client:           api.NewClient(u, &http.Client{Timeout: 5 * time.Minute}),
		modelName:        modelName,
		backendModelName: backendModelName,
		embeddingModel:   "nomic-embed-text",
		logger:           logger,
	}, nil
}

// WithEmbeddingModel overrides the model used by Embed.
func (s *OllamaService) WithEmbeddingModel(model string) *OllamaService {
	if model != "" {
		s.embeddingModel = model
	}
	return s
}

// InitModel waits for the server and pulls the model when it is missing.
func (s *OllamaService) InitModel(ctx context.Context, modelName string) error {
	s.logger.Info("Initializing LLM model", "model", modelName)

	if err := s.waitForOllamaReady(ctx); err != nil {
		return fmt.Errorf("ollama service is not ready: %w", err)
	}

	ready, err := s.isModelReady(ctx, modelName)
	if err != nil {
		return fmt.Errorf("failed to check model readiness: %w", err)
	}
	if ready {
		s.logger.Info("Model already available", "model", modelName)
		return nil
	}

	s.logger.Info("Model not found, pulling it", "model", modelName)
	err = s.client.Pull(ctx, &api.PullRequest{Model: modelName}, func(p api.ProgressResponse) error {
		s.logger.Debug("Pull progress", "model", modelName, "status", p.Status, "completed", p.Completed, "total", p.Total)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to pull model: %w", err)
	}
	s.logger.Info("Model pulled successfully", "model", modelName)
	return nil
}

func (s *OllamaService) waitForOllamaReady(ctx context.Context) error {
	const maxAttempts = 30
	for attempt := 1; ; attempt++ {
		err := s.client.Heartbeat(ctx)
		if err == nil {
			return nil
		}
		if attempt == maxAttempts {
			return err
		}
		s.logger.Debug("Waiting for Ollama", "attempt", attempt, "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
}

func (s *OllamaService) isModelReady(ctx context.Context, modelName string) (bool, error) {
	list, err := s.client.List(ctx)
	if err != nil {
		return false, err
	}
	for _, m := range list.Models {
		if m.Name == modelName || m.Model == modelName || strings.TrimSuffix(m.Name, ":latest") == modelName {
			return true, nil
		}
	}
	return false, nil
}

func (s *OllamaService) Chat(ctx context.Context, messages []chat.ChatMessage, opts ...chat.Option) (*chat.ChatResponse, error) {
	if err := chat.Validate(messages); err != nil {
		return nil, err
	}
	o := chat.ApplyOptions(opts...)
	model := modelFor(o, s.modelName, s.backendModelName)

	stream := false
	req := &api.ChatRequest{
		Model:    model,
		Messages: make([]api.Message, 0, len(messages)),
		Stream:   &stream,
		Options: map[string]any{
			"temperature": o.Temperature,
			"num_predict": o.MaxTokens,
		},
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, api.Message{Role: m.Role, Content: m.Content})
	}
	if o.JSON {
		req.Format = json.RawMessage(`"json"`)
	}

	var final api.ChatResponse
	err := s.client.Chat(ctx, req, func(r api.ChatResponse) error {
		final = r
		return nil
	})
	if err != nil {
		s.logger.Warn("Ollama request failed", "node", o.Node, "model", model, "error", err)
		return nil, fmt.Errorf("ollama chat: %w", err)
	}
	if final.Message.Content == "" {
		return nil, fmt.Errorf("ollama returned an empty message")
	}
	return &chat.ChatResponse{
		Message:      final.Message.Content,
		InputTokens:  final.PromptEvalCount,
		OutputTokens: final.EvalCount,
		Model:        model,
	}, nil
}

// Embed implements Embedder.
func (s *OllamaService) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := s.client.Embed(ctx, &api.EmbedRequest{Model: s.embeddingModel, Input: text})
	if err != nil {
		return nil, fmt.Errorf("ollama embed: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0]) == 0 {
		return nil, fmt.Errorf("ollama returned no embedding")
	}
	return resp.Embeddings[0], nil
}
