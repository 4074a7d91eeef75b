package services

import (
	"context"
	"sync"

	"github.com/amoisekai/engine/pkg/chat"
)

// MockLLMAPI is a mock implementation of LLMService for testing and for
// running the engine offline.
type MockLLMAPI struct {
	InitModelFunc func(ctx context.Context, modelName string) error
	ChatFunc      func(ctx context.Context, messages []chat.ChatMessage, o chat.Options) (*chat.ChatResponse, error)

	// Responses answers by node label when ChatFunc is nil.
	Responses map[string]string
	// Default is returned for nodes missing from Responses.
	Default string

	// Track calls for testing
	InitModelCalls []string
	ChatCalls      []ChatCall

	mu sync.Mutex // protects all fields above
}

type ChatCall struct {
	Messages []chat.ChatMessage
	Options  chat.Options
}

// NewMockLLMAPI creates a new mock LLM service
func NewMockLLMAPI() *MockLLMAPI {
	return &MockLLMAPI{
		Responses: make(map[string]string),
		Default:   "Mock response",
	}
}

// InitModel mocks model initialization
func (m *MockLLMAPI) InitModel(ctx context.Context, modelName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.InitModelCalls = append(m.InitModelCalls, modelName)
	if m.InitModelFunc != nil {
		return m.InitModelFunc(ctx, modelName)
	}
	return nil
}

func (m *MockLLMAPI) Chat(ctx context.Context, messages []chat.ChatMessage, opts ...chat.Option) (*chat.ChatResponse, error) {
	o := chat.ApplyOptions(opts...)

	m.mu.Lock()
	m.ChatCalls = append(m.ChatCalls, ChatCall{Messages: messages, Options: o})
	fn := m.ChatFunc
	msg, ok := m.Responses[o.Node]
	if !ok {
		msg = m.Default
	}
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, messages, o)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &chat.ChatResponse{Message: msg, Model: "mock"}, nil
}

// SetResponse answers calls labelled node with msg.
func (m *MockLLMAPI) SetResponse(node, msg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Responses[node] = msg
}

// SetChatError makes every Chat call fail with err.
func (m *MockLLMAPI) SetChatError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ChatFunc = func(ctx context.Context, messages []chat.ChatMessage, o chat.Options) (*chat.ChatResponse, error) {
		return nil, err
	}
}

// SetChatFunc answers every Chat call with fn.
func (m *MockLLMAPI) SetChatFunc(fn func(ctx context.Context, messages []chat.ChatMessage, o chat.Options) (*chat.ChatResponse, error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ChatFunc = fn
}

// SetInitModelError sets up the mock to return an error on InitModel
func (m *MockLLMAPI) SetInitModelError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.InitModelFunc = func(ctx context.Context, modelName string) error {
		return err
	}
}

// Calls returns a copy of the recorded chat calls.
func (m *MockLLMAPI) Calls() []ChatCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ChatCall, len(m.ChatCalls))
	copy(out, m.ChatCalls)
	return out
}

// CallsFor returns the recorded calls labelled node.
func (m *MockLLMAPI) CallsFor(node string) []ChatCall {
	var out []ChatCall
	for _, c := range m.Calls() {
		if c.Options.Node == node {
			out = append(out, c)
		}
	}
	return out
}

// Reset clears all call tracking
func (m *MockLLMAPI) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.InitModelCalls = nil
	m.ChatCalls = nil
}
