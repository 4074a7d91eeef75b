// Package chat holds the message types exchanged with language model
// backends and the narrow interface the engine calls them through.
package chat

import (
	"context"
	"fmt"
	"strings"
)

const (
	ChatRoleUser   = "user"
	ChatRoleAgent  = "assistant"
	ChatRoleSystem = "system"
)

// ChatMessage represents a single chat message sent to the LLM.
type ChatMessage struct {
	Role    string `json:"role"` // "user", "assistant", "system"
	Content string `json:"content"`
}

// ChatResponse is the text a backend produced plus token accounting when
// the backend reports it.
type ChatResponse struct {
	Message      string `json:"message,omitempty"`
	InputTokens  int    `json:"input_tokens,omitempty"`
	OutputTokens int    `json:"output_tokens,omitempty"`
	Model        string `json:"model,omitempty"`
}

// Options tune a single completion call.
type Options struct {
	Temperature float64
	MaxTokens   int
	// Backend selects the cheaper structured-output model instead of the
	// narrative model.
	Backend bool
	// JSON asks the backend for a JSON object when it supports that mode.
	JSON bool
	// Node labels the call for metrics and logs.
	Node string
}

// Option mutates Options.
type Option func(*Options)

func WithTemperature(t float64) Option { return func(o *Options) { o.Temperature = t } }
func WithMaxTokens(n int) Option       { return func(o *Options) { o.MaxTokens = n } }
func WithBackendModel() Option         { return func(o *Options) { o.Backend = true } }
func WithJSON() Option                 { return func(o *Options) { o.JSON = true } }
func WithNode(name string) Option      { return func(o *Options) { o.Node = name } }

// ApplyOptions folds opts over the defaults.
func ApplyOptions(opts ...Option) Options {
	o := Options{Temperature: 0.8, MaxTokens: 2048}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// Generator is the only surface engine components need from an LLM.
type Generator interface {
	Chat(ctx context.Context, messages []ChatMessage, opts ...Option) (*ChatResponse, error)
}

// Pair builds the (system, user) message pair every prompt in the engine uses.
func Pair(system, user string) []ChatMessage {
	return []ChatMessage{
		{Role: ChatRoleSystem, Content: system},
		{Role: ChatRoleUser, Content: user},
	}
}

// Validate rejects empty conversations and unknown roles.
func Validate(messages []ChatMessage) error {
	if len(messages) == 0 {
		return fmt.Errorf("messages cannot be empty")
	}
	for i, m := range messages {
		switch m.Role {
		case ChatRoleUser, ChatRoleAgent, ChatRoleSystem:
		default:
			return fmt.Errorf("message %d has unknown role %q", i, m.Role)
		}
		if strings.TrimSpace(m.Content) == "" {
			return fmt.Errorf("message %d is empty", i)
		}
	}
	return nil
}

// SplitSystem joins all system messages into one prompt and returns the
// remaining conversation.
func SplitSystem(messages []ChatMessage) (string, []ChatMessage) {
	var systemParts []string
	var rest []ChatMessage
	for _, msg := range messages {
		if msg.Role == ChatRoleSystem {
			systemParts = append(systemParts, msg.Content)
		} else {
			rest = append(rest, msg)
		}
	}
	return strings.Join(systemParts, "\n\n"), rest
}
