package services

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/amoisekai/engine/pkg/chat"
)

// Metrics holds every engine collector. A nil *Metrics records nothing.
type Metrics struct {
	llmCalls       *prometheus.CounterVec
	llmDuration    *prometheus.HistogramVec
	llmTokens      *prometheus.CounterVec
	fallbacks      *prometheus.CounterVec
	sceneDuration  prometheus.Histogram
	criticScore    prometheus.Histogram
	combatOutcomes *prometheus.CounterVec
	rewrites       prometheus.Counter
	queueRequests  *prometheus.CounterVec
}

// NewMetrics registers the collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		llmCalls: f.NewCounterVec(prometheus.CounterOpts{
			Name: "amoisekai_llm_calls_total",
			Help: "LLM calls partitioned by provider, node and outcome.",
		}, []string{"provider", "node", "outcome"}),
		llmDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "amoisekai_llm_call_duration_seconds",
			Help:    "LLM call latency.",
			Buckets: []float64{.5, 1, 2.5, 5, 10, 20, 40, 90},
		}, []string{"provider", "node"}),
		llmTokens: f.NewCounterVec(prometheus.CounterOpts{
			Name: "amoisekai_llm_tokens_total",
			Help: "Tokens reported by the backend.",
		}, []string{"provider", "kind"}),
		fallbacks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "amoisekai_node_fallbacks_total",
			Help: "Pipeline nodes that fell back to deterministic output.",
		}, []string{"node"}),
		sceneDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "amoisekai_scene_generation_seconds",
			Help:    "End to end time to produce one scene.",
			Buckets: []float64{1, 5, 10, 20, 40, 60, 120, 240},
		}),
		criticScore: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "amoisekai_critic_score",
			Help:    "Scores given by the scene critic.",
			Buckets: prometheus.LinearBuckets(1, 1, 10),
		}),
		combatOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "amoisekai_combat_outcomes_total",
			Help: "Resolved combats by encounter type and final outcome.",
		}, []string{"encounter", "outcome"}),
		rewrites: f.NewCounter(prometheus.CounterOpts{
			Name: "amoisekai_scene_rewrites_total",
			Help: "Scene rewrites requested by the critic.",
		}),
		queueRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "amoisekai_queue_requests_total",
			Help: "Queued requests processed by type and outcome.",
		}, []string{"type", "outcome"}),
	}
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "error"
	}
}

func (m *Metrics) ObserveLLM(provider, node string, d time.Duration, resp *chat.ChatResponse, err error) {
	if m == nil {
		return
	}
	if node == "" {
		node = "unlabelled"
	}
	m.llmCalls.WithLabelValues(provider, node, outcomeOf(err)).Inc()
	m.llmDuration.WithLabelValues(provider, node).Observe(d.Seconds())
	if resp != nil {
		m.llmTokens.WithLabelValues(provider, "input").Add(float64(resp.InputTokens))
		m.llmTokens.WithLabelValues(provider, "output").Add(float64(resp.OutputTokens))
	}
}

func (m *Metrics) Fallback(node string) {
	if m != nil {
		m.fallbacks.WithLabelValues(node).Inc()
	}
}

func (m *Metrics) SceneGenerated(d time.Duration) {
	if m != nil {
		m.sceneDuration.Observe(d.Seconds())
	}
}

func (m *Metrics) CriticScore(score float64) {
	if m != nil {
		m.criticScore.Observe(score)
	}
}

func (m *Metrics) Rewrite() {
	if m != nil {
		m.rewrites.Inc()
	}
}

func (m *Metrics) CombatResolved(encounter, outcome string) {
	if m != nil {
		m.combatOutcomes.WithLabelValues(encounter, outcome).Inc()
	}
}

func (m *Metrics) QueueRequest(kind string, err error) {
	if m != nil {
		m.queueRequests.WithLabelValues(kind, outcomeOf(err)).Inc()
	}
}

// InstrumentedLLM records metrics and logs for every call to the wrapped
// generator.
type InstrumentedLLM struct {
	next     chat.Generator
	provider string
	metrics  *Metrics
}

func Instrument(next chat.Generator, provider string, m *Metrics) *InstrumentedLLM {
	return &InstrumentedLLM{next: next, provider: provider, metrics: m}
}

func (l *InstrumentedLLM) Chat(ctx context.Context, messages []chat.ChatMessage, opts ...chat.Option) (*chat.ChatResponse, error) {
	start := time.Now()
	resp, err := l.next.Chat(ctx, messages, opts...)
	l.metrics.ObserveLLM(l.provider, chat.ApplyOptions(opts...).Node, time.Since(start), resp, err)
	return resp, err
}
