package services

import (
	"context"
	"errors"
	"testing"

	"github.com/amoisekai/engine/pkg/chat"
)

func TestMockLLMService(t *testing.T) {
	mockService := NewMockLLMAPI()

	if err := mockService.InitModel(context.Background(), "test-model"); err != nil {
		t.Errorf("InitModel failed: %v", err)
	}
	if len(mockService.InitModelCalls) != 1 || mockService.InitModelCalls[0] != "test-model" {
		t.Errorf("unexpected init calls %v", mockService.InitModelCalls)
	}

	response, err := mockService.Chat(context.Background(), chat.Pair("s", "Hello"))
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if response.Message != "Mock response" {
		t.Errorf("Expected 'Mock response', got '%s'", response.Message)
	}

	mockService.SetResponse("critic", `{"score":8}`)
	response, _ = mockService.Chat(context.Background(), chat.Pair("s", "judge"), chat.WithNode("critic"))
	if response.Message != `{"score":8}` {
		t.Errorf("node response = %q", response.Message)
	}
	if n := len(mockService.CallsFor("critic")); n != 1 {
		t.Errorf("critic calls = %d", n)
	}
	if n := len(mockService.Calls()); n != 2 {
		t.Errorf("total calls = %d", n)
	}

	mockService.Reset()
	if len(mockService.Calls()) != 0 {
		t.Error("Reset did not clear calls")
	}
}

func TestMockLLMService_Errors(t *testing.T) {
	mockService := NewMockLLMAPI()
	boom := errors.New("boom")

	mockService.SetInitModelError(boom)
	if err := mockService.InitModel(context.Background(), "m"); !errors.Is(err, boom) {
		t.Errorf("InitModel error = %v", err)
	}

	mockService.SetChatError(boom)
	if _, err := mockService.Chat(context.Background(), chat.Pair("s", "u")); !errors.Is(err, boom) {
		t.Errorf("Chat error = %v", err)
	}
}

func TestMockLLMService_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewMockLLMAPI().Chat(ctx, chat.Pair("s", "u")); !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}
