package services

import (
	"context"
	"fmt"
	"log/slog"

	openai "github.com/sashabaranov/go-openai"

	"github.com/amoisekai/engine/pkg/chat"
)

// OpenAIService talks to any OpenAI compatible endpoint.
type OpenAIService struct {
	client           *openai.Client
	modelName        string
	backendModelName string
	embeddingModel   string
	logger           *slog.Logger
}

// NewOpenAIService builds a client. An empty baseURL keeps the public API.
func NewOpenAIService(apiKey, baseURL, modelName, backendModelName string, logger *slog.Logger) *OpenAIService {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIService{
		client:           openai.NewClientWithConfig(cfg),
		modelName:        modelName,
		backendModelName: backendModelName,
		embeddingModel:   string(openai.SmallEmbedding3),
		logger:           logger,
	}
}

// WithEmbeddingModel overrides the model used by Embed.
func (s *OpenAIService) WithEmbeddingModel(model string) *OpenAIService {
	if model != "" {
		s.embeddingModel = model
	}
	return s
}

func (s *OpenAIService) InitModel(ctx context.Context, modelName string) error {
	return nil
}

func (s *OpenAIService) Chat(ctx context.Context, messages []chat.ChatMessage, opts ...chat.Option) (*chat.ChatResponse, error) {
	if err := chat.Validate(messages); err != nil {
		return nil, err
	}
	o := chat.ApplyOptions(opts...)
	model := modelFor(o, s.modelName, s.backendModelName)

	req := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    make([]openai.ChatCompletionMessage, 0, len(messages)),
		Temperature: float32(o.Temperature),
		MaxTokens:   o.MaxTokens,
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	if o.JSON {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}

	resp, err := s.client.CreateChatCompletion(ctx, req)
	if err != nil {
		s.logger.Warn("OpenAI request failed", "node", o.Node, "model", model, "error", err)
		return nil, fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return nil, fmt.Errorf("openai returned an empty completion")
	}
	return &chat.ChatResponse{
		Message:      resp.Choices[0].Message.Content,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
		Model:        resp.Model,
	}, nil
}

// Embed implements Embedder.
func (s *OpenAIService) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := s.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(s.embeddingModel),
	})
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("openai returned no embedding")
	}
	return resp.Data[0].Embedding, nil
}
