package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/amoisekai/engine/internal/memory"
	"github.com/amoisekai/engine/internal/services"
	"github.com/amoisekai/engine/pkg/chat"
	"github.com/amoisekai/engine/pkg/llmjson"
	"github.com/amoisekai/engine/pkg/prompts"
	"github.com/amoisekai/engine/pkg/world"
)

// Node names.
const (
	NodeInputParser  = "input_parser"
	NodePlanner      = "planner"
	NodeSimulator    = "simulator"
	NodeContext      = "context"
	NodeWriter       = "writer"
	NodeCritic       = "critic"
	NodeIdentity     = "identity"
	NodeWeaponUpdate = "weapon_update"
	NodeOutput       = "output"
	NodeLedger       = "ledger"
	NodeSceneWriter  = "scene_writer"
	NodeNarrator     = "narrator"
	NodeForge        = "forge"
	NodeEvolution    = "evolution"
	NodeGrowth       = "growth"
)

// Config holds the tunables of the pipeline.
type Config struct {
	MaxRewrites    int
	ApproveScore   float64
	BrainMaxTokens int
	LLMTimeout     time.Duration
	MinBeats       int
	MaxBeats       int
	SceneMinWords  int
	SceneMaxWords  int
	SummaryChars   int
}

// DefaultConfig matches the documented defaults.
func DefaultConfig() Config {
	return Config{
		MaxRewrites:    2,
		ApproveScore:   6,
		BrainMaxTokens: 800,
		LLMTimeout:     90 * time.Second,
		MinBeats:       3,
		MaxBeats:       6,
		SceneMinWords:  300,
		SceneMaxWords:  500,
		SummaryChars:   2400,
	}
}

// Deps are the collaborators of a Pipeline. LLM and Prompts are required.
type Deps struct {
	LLM        chat.Generator
	Prompts    *prompts.Library
	Brain      *memory.Brain
	Layers     *memory.Layers
	Summarizer *memory.Summarizer
	Registry   *world.Registry
	Tokens     *services.Tokenizer
	Metrics    *services.Metrics
	Logger     *slog.Logger
	Config     Config
}

// Pipeline owns the narrative graphs and the scene writer.
type Pipeline struct {
	llm        chat.Generator
	prompts    *prompts.Library
	brain      *memory.Brain
	layers     *memory.Layers
	summarizer *memory.Summarizer
	registry   *world.Registry
	tokens     *services.Tokenizer
	metrics    *services.Metrics
	logger     *slog.Logger
	cfg        Config

	background sync.WaitGroup
}

// New builds a pipeline.
func New(d Deps) (*Pipeline, error) {
	if d.LLM == nil {
		return nil, fmt.Errorf("pipeline needs an LLM")
	}
	if d.Prompts == nil {
		return nil, fmt.Errorf("pipeline needs a prompt library")
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Tokens == nil {
		d.Tokens = services.EstimatingTokenizer()
	}
	if d.Config == (Config{}) {
		d.Config = DefaultConfig()
	}
	if d.Summarizer == nil {
		d.Summarizer = memory.NewSummarizer(d.LLM, d.Prompts, d.Logger)
	}
	return &Pipeline{
		llm:        d.LLM,
		prompts:    d.Prompts,
		brain:      d.Brain,
		layers:     d.Layers,
		summarizer: d.Summarizer,
		registry:   d.Registry,
		tokens:     d.Tokens,
		metrics:    d.Metrics,
		logger:     d.Logger,
		cfg:        d.Config,
	}, nil
}

// Config returns the pipeline tunables.
func (p *Pipeline) Config() Config { return p.cfg }

// Wait blocks until background critic and memory work finishes.
func (p *Pipeline) Wait() {
	p.background.Wait()
	if p.layers != nil {
		p.layers.Wait()
	}
}

func (p *Pipeline) observe(graph string) func(string, time.Duration, error) {
	return func(node string, d time.Duration, err error) {
		if err != nil {
			p.logger.Warn("Node failed", "graph", graph, "node", node, "duration", d, "error", err)
		}
	}
}

// ChapterGraph is the full chapter pipeline:
//
//	input_parser → planner → simulator → context → writer ⇄ critic → identity → weapon_update → output → ledger
func (p *Pipeline) ChapterGraph() *Graph {
	g := NewGraph("chapter", p.logger).
		AddNode(NodeInputParser, p.inputParser).
		AddNode(NodePlanner, p.planner).
		AddNode(NodeSimulator, p.simulator).
		AddNode(NodeContext, p.contextNode).
		AddNode(NodeWriter, p.writer).
		AddNode(NodeCritic, p.critic).
		AddNode(NodeIdentity, p.identity).
		AddNode(NodeWeaponUpdate, p.weaponUpdate).
		AddNode(NodeOutput, p.output).
		AddNode(NodeLedger, p.ledgerNode).
		Chain(NodeInputParser, NodePlanner, NodeSimulator, NodeContext, NodeWriter, NodeCritic).
		AddConditionalEdge(NodeCritic, afterCritic).
		Chain(NodeIdentity, NodeWeaponUpdate, NodeOutput, NodeLedger)
	return g.OnNode(p.observe("chapter"))
}

// PlanGraph runs only what chapter planning needs:
//
//	input_parser → planner → simulator
func (p *Pipeline) PlanGraph() *Graph {
	g := NewGraph("plan", p.logger).
		AddNode(NodeInputParser, p.inputParser).
		AddNode(NodePlanner, p.planner).
		AddNode(NodeSimulator, p.simulator).
		Chain(NodeInputParser, NodePlanner, NodeSimulator)
	return g.OnNode(p.observe("plan"))
}

// IdentityGraph derives the chapter identity delta and weapon pass for a
// chapter produced scene by scene.
func (p *Pipeline) IdentityGraph() *Graph {
	g := NewGraph("identity", p.logger).
		AddNode(NodeIdentity, p.identity).
		AddNode(NodeWeaponUpdate, p.weaponUpdate).
		Chain(NodeIdentity, NodeWeaponUpdate)
	return g.OnNode(p.observe("identity"))
}

func afterCritic(s State) string {
	if s.Critique == nil || s.Critique.Approved {
		return NodeIdentity
	}
	return NodeWriter
}

// RunChapter runs the chapter graph.
func (p *Pipeline) RunChapter(ctx context.Context, s State) (State, error) {
	return p.ChapterGraph().Run(ctx, s)
}

// RunPlan runs the plan graph.
func (p *Pipeline) RunPlan(ctx context.Context, s State) (State, error) {
	return p.PlanGraph().Run(ctx, s)
}

// RunIdentity runs the identity graph.
func (p *Pipeline) RunIdentity(ctx context.Context, s State) (State, error) {
	return p.IdentityGraph().Run(ctx, s)
}

// complete sends one (system, user) pair under the configured timeout.
func (p *Pipeline) complete(ctx context.Context, node string, msgs []chat.ChatMessage, opts ...chat.Option) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.LLMTimeout)
	defer cancel()
	opts = append(opts, chat.WithNode(node))
	resp, err := p.llm.Chat(ctx, msgs, opts...)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(resp.Message) == "" {
		return "", fmt.Errorf("%s: empty response", node)
	}
	return resp.Message, nil
}

// completeJSON renders the named system template, sends the pair and
// decodes the reply into v through the recovery ladder.
func (p *Pipeline) completeJSON(ctx context.Context, node, template string, data any, b *prompts.Builder, v any, fields []string, opts ...chat.Option) error {
	system, err := p.prompts.Render(template, data)
	if err != nil {
		return err
	}
	msgs, err := b.WithSystem(system).Build()
	if err != nil {
		return err
	}
	opts = append([]chat.Option{chat.WithJSON()}, opts...)
	raw, err := p.complete(ctx, node, msgs, opts...)
	if err != nil {
		return err
	}
	strategy, err := llmjson.Decode(raw, v, fields...)
	if err != nil {
		return fmt.Errorf("%s: %w", node, err)
	}
	if strategy != llmjson.StrategyDirect {
		p.logger.Debug("Recovered model JSON", "node", node, "strategy", strategy)
	}
	return nil
}

// fallback records that node used its structured fallback.
func (p *Pipeline) fallback(node string, err error) {
	p.metrics.Fallback(node)
	p.logger.Warn("Using fallback", "node", node, "error", err)
}

// structured are the options for backend calls that return JSON.
func structured() []chat.Option {
	return []chat.Option{chat.WithBackendModel(), chat.WithTemperature(0.2), chat.WithMaxTokens(1024)}
}
