package services

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/amoisekai/engine/pkg/chat"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewAnthropicService(t *testing.T) {
	service := NewAnthropicService("test-api-key", "claude-narrative", "claude-backend", discardLogger())

	if service.apiKey != "test-api-key" {
		t.Errorf("Expected API key test-api-key, got %s", service.apiKey)
	}
	if service.baseURL != anthropicBaseURL {
		t.Errorf("Expected default base URL, got %s", service.baseURL)
	}
	if service.httpClient == nil {
		t.Error("Expected HTTP client to be initialized")
	}
	if err := service.InitModel(context.Background(), "x"); err != nil {
		t.Errorf("InitModel() error = %v", err)
	}
}

func TestAnthropicService_Chat(t *testing.T) {
	var got AnthropicChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/messages" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "k" {
			t.Errorf("missing api key header")
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = io.WriteString(w, `{"content":[{"type":"text","text":"{\"prose\":\"ok\"}"}],"usage":{"input_tokens":12,"output_tokens":7}}`)
	}))
	defer srv.Close()

	svc := NewAnthropicService("k", "narrative", "backend", discardLogger()).WithBaseURL(srv.URL)
	resp, err := svc.Chat(context.Background(), chat.Pair("be terse", "hello"), chat.WithBackendModel(), chat.WithMaxTokens(300))
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if resp.Message != `{"prose":"ok"}` {
		t.Errorf("message = %q", resp.Message)
	}
	if resp.InputTokens != 12 || resp.OutputTokens != 7 {
		t.Errorf("tokens = %d/%d", resp.InputTokens, resp.OutputTokens)
	}
	if got.Model != "backend" || got.MaxTokens != 300 {
		t.Errorf("request model/max = %s/%d", got.Model, got.MaxTokens)
	}
	if got.System != "be terse" || len(got.Messages) != 1 || got.Messages[0].Role != chat.ChatRoleUser {
		t.Errorf("system split wrong: %+v", got)
	}
}

func TestAnthropicService_ChatErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"http error", http.StatusTooManyRequests, `{"error":{"message":"slow down"}}`, "status 429"},
		{"api error", http.StatusOK, `{"error":{"type":"invalid","message":"bad model"}}`, "bad model"},
		{"empty content", http.StatusOK, `{"content":[],"stop_reason":"max_tokens"}`, "no text"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			svc := NewAnthropicService("k", "m", "", discardLogger()).WithBaseURL(srv.URL)
			_, err := svc.Chat(context.Background(), chat.Pair("s", "u"))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestAnthropicService_RejectsEmptyMessages(t *testing.T) {
	svc := NewAnthropicService("k", "m", "", discardLogger())
	if _, err := svc.Chat(context.Background(), nil); err == nil {
		t.Error("expected validation error")
	}
}
