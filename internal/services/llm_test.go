package services

import (
	"fmt"
	"testing"
)

func TestNewLLMService(t *testing.T) {
	tests := []struct {
		name     string
		settings LLMSettings
		wantType string
		wantErr  bool
	}{
		{"mock", LLMSettings{Provider: "mock"}, "*services.MockLLMAPI", false},
		{"openai", LLMSettings{Provider: "OpenAI", OpenAIAPIKey: "k", ModelName: "m"}, "*services.OpenAIService", false},
		{"anthropic", LLMSettings{Provider: "anthropic", AnthropicAPIKey: "k"}, "*services.AnthropicService", false},
		{"anthropic without key", LLMSettings{Provider: "anthropic"}, "", true},
		{"ollama", LLMSettings{Provider: "ollama", OllamaURL: "http://localhost:11434"}, "*services.OllamaService", false},
		{"unknown", LLMSettings{Provider: "oracle"}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := NewLLMService(tt.settings, discardLogger())
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if got := fmt.Sprintf("%T", svc); got != tt.wantType {
				t.Errorf("type = %s, want %s", got, tt.wantType)
			}
		})
	}
}
