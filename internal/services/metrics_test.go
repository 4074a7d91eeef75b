package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/amoisekai/engine/pkg/chat"
)

func TestInstrumentedLLM(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	mock := NewMockLLMAPI()
	llm := Instrument(mock, "mock", m)

	if _, err := llm.Chat(context.Background(), chat.Pair("s", "u"), chat.WithNode("writer")); err != nil {
		t.Fatalf("Chat: %v", err)
	}
	mock.SetChatError(errors.New("boom"))
	_, _ = llm.Chat(context.Background(), chat.Pair("s", "u"), chat.WithNode("writer"))

	if got := testutil.ToFloat64(m.llmCalls.WithLabelValues("mock", "writer", "success")); got != 1 {
		t.Errorf("success calls = %v", got)
	}
	if got := testutil.ToFloat64(m.llmCalls.WithLabelValues("mock", "writer", "error")); got != 1 {
		t.Errorf("error calls = %v", got)
	}
}

func TestMetricsCounters(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.Fallback("planner")
	m.Fallback("planner")
	m.CombatResolved("boss", "player_wins")
	m.Rewrite()
	m.QueueRequest("scene", context.DeadlineExceeded)
	m.CriticScore(7)
	m.SceneGenerated(3 * time.Second)

	if got := testutil.ToFloat64(m.fallbacks.WithLabelValues("planner")); got != 2 {
		t.Errorf("fallbacks = %v", got)
	}
	if got := testutil.ToFloat64(m.combatOutcomes.WithLabelValues("boss", "player_wins")); got != 1 {
		t.Errorf("combat = %v", got)
	}
	if got := testutil.ToFloat64(m.queueRequests.WithLabelValues("scene", "timeout")); got != 1 {
		t.Errorf("queue timeout = %v", got)
	}
	if got := testutil.ToFloat64(m.rewrites); got != 1 {
		t.Errorf("rewrites = %v", got)
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.Fallback("x")
	m.CriticScore(5)
	m.ObserveLLM("p", "n", time.Second, nil, nil)
	m.CombatResolved("minor", "draw")
}
