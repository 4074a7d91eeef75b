// Package orchestrator is the engine boundary: it loads a story, runs the
// pipeline over a snapshot of the player and world, and commits the result
// once every write has succeeded.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/KirkDiggler/rpg-toolkit/dice"

	"github.com/amoisekai/engine/internal/config"
	apperrors "github.com/amoisekai/engine/internal/errors"
	"github.com/amoisekai/engine/internal/memory"
	"github.com/amoisekai/engine/internal/pipeline"
	"github.com/amoisekai/engine/internal/services"
	"github.com/amoisekai/engine/pkg/combat"
	"github.com/amoisekai/engine/pkg/crng"
	"github.com/amoisekai/engine/pkg/evolution"
	"github.com/amoisekai/engine/pkg/growth"
	"github.com/amoisekai/engine/pkg/player"
	"github.com/amoisekai/engine/pkg/skill"
	"github.com/amoisekai/engine/pkg/soulforge"
	"github.com/amoisekai/engine/pkg/storage"
	"github.com/amoisekai/engine/pkg/world"
)

// Progress statuses reported while a request runs.
const (
	StatusLoading    = "loading"
	StatusRolling    = "rolling_fate"
	StatusPlanning   = "planning"
	StatusCombat     = "resolving_combat"
	StatusEvolving   = "evolving"
	StatusWriting    = "writing"
	StatusFinalizing = "finalizing"
	StatusForging    = "forging"
)

// ProgressReporter receives status strings while a request runs. The
// worker forwards them as heartbeats.
type ProgressReporter interface {
	Report(status string)
}

// ProgressFunc adapts a function to ProgressReporter.
type ProgressFunc func(status string)

func (f ProgressFunc) Report(status string) { f(status) }

// EventSource drains externally queued story events for a story.
type EventSource interface {
	Dequeue(ctx context.Context, storyID string) ([]string, error)
}

// Config holds the engine tunables.
type Config struct {
	MaxChapters            int
	RollingSummaryChapters int
	RollingSummaryMaxChars int
	BrainMaxTokens         int
	Fate                   crng.FateConfig
}

func DefaultConfig() Config {
	return Config{
		MaxChapters:            200,
		RollingSummaryChapters: 5,
		RollingSummaryMaxChars: 2400,
		BrainMaxTokens:         800,
		Fate:                   crng.DefaultFateConfig(),
	}
}

// ConfigFrom reads the engine tunables out of the process config.
func ConfigFrom(c *config.Config) Config {
	out := DefaultConfig()
	if c == nil {
		return out
	}
	if c.MaxChapters > 0 {
		out.MaxChapters = c.MaxChapters
	}
	if c.RollingSummaryChapters > 0 {
		out.RollingSummaryChapters = c.RollingSummaryChapters
	}
	if c.RollingSummaryMaxChars > 0 {
		out.RollingSummaryMaxChars = c.RollingSummaryMaxChars
	}
	if c.BrainMaxTokens > 0 {
		out.BrainMaxTokens = c.BrainMaxTokens
	}
	if c.FateProtectionChapters > 0 {
		out.Fate.ProtectionChapters = c.FateProtectionChapters
	}
	if c.FateDecayPerChapter > 0 {
		out.Fate.DecayPerChapter = c.FateDecayPerChapter
	}
	return out
}

// Deps are the collaborators of an Engine. Store and Pipeline are required.
type Deps struct {
	Store      storage.Storage
	Pipeline   *pipeline.Pipeline
	Catalog    *skill.Catalog
	Registry   *world.Registry
	Scenes     *soulforge.SceneSet
	Embedder   services.Embedder
	Brain      *memory.Brain
	Layers     *memory.Layers
	Summarizer *memory.Summarizer
	Events     EventSource
	Metrics    *services.Metrics
	Roller     dice.Roller
	Logger     *slog.Logger
	Config     Config
	Now        func() time.Time
}

// Engine runs stories, scenes, the soul forge and skill management.
type Engine struct {
	store      storage.Storage
	pipe       *pipeline.Pipeline
	catalog    *skill.Catalog
	registry   *world.Registry
	scenes     *soulforge.SceneSet
	embedder   services.Embedder
	brain      *memory.Brain
	layers     *memory.Layers
	summarizer *memory.Summarizer
	events     EventSource
	metrics    *services.Metrics
	roller     dice.Roller
	resolver   *combat.Resolver
	logger     *slog.Logger
	cfg        Config
	now        func() time.Time
}

// New builds an engine, filling in the embedded catalog, registry and
// soul forge scenes when they are not given.
func New(d Deps) (*Engine, error) {
	if d.Store == nil {
		return nil, fmt.Errorf("engine needs storage")
	}
	if d.Pipeline == nil {
		return nil, fmt.Errorf("engine needs a pipeline")
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Config.MaxChapters == 0 {
		d.Config = DefaultConfig()
	}
	if d.Now == nil {
		d.Now = func() time.Time { return time.Now().UTC() }
	}
	if d.Roller == nil {
		d.Roller = dice.DefaultRoller
	}
	if d.Embedder == nil {
		d.Embedder = services.HashEmbedder{}
	}
	var err error
	if d.Catalog == nil {
		if d.Catalog, err = skill.DefaultCatalog(); err != nil {
			return nil, fmt.Errorf("failed to load skill catalog: %w", err)
		}
	}
	if d.Registry == nil {
		if d.Registry, err = world.DefaultRegistry(); err != nil {
			return nil, fmt.Errorf("failed to load world registry: %w", err)
		}
	}
	if d.Scenes == nil {
		if d.Scenes, err = soulforge.DefaultScenes(); err != nil {
			return nil, fmt.Errorf("failed to load soul forge scenes: %w", err)
		}
	}
	return &Engine{
		store:      d.Store,
		pipe:       d.Pipeline,
		catalog:    d.Catalog,
		registry:   d.Registry,
		scenes:     d.Scenes,
		embedder:   d.Embedder,
		brain:      d.Brain,
		layers:     d.Layers,
		summarizer: d.Summarizer,
		events:     d.Events,
		metrics:    d.Metrics,
		roller:     d.Roller,
		resolver:   combat.NewResolver(d.Config.Fate),
		logger:     d.Logger,
		cfg:        d.Config,
		now:        d.Now,
	}, nil
}

// Wait blocks until background critic and memory work finishes.
func (e *Engine) Wait() {
	e.pipe.Wait()
	if e.layers != nil {
		e.layers.Wait()
	}
}

func report(r ProgressReporter, status string) {
	if r != nil {
		r.Report(status)
	}
}

// codeFor maps engine sentinel errors onto boundary codes.
func codeFor(err error) apperrors.Code {
	var coded *apperrors.Error
	switch {
	case errors.As(err, &coded):
		return coded.Code
	case errors.Is(err, storage.ErrNotFound),
		errors.Is(err, evolution.ErrSkillNotFound),
		errors.Is(err, player.ErrSkillNotOwned),
		errors.Is(err, world.ErrUnknownEntity):
		return apperrors.CodeNotFound
	case errors.Is(err, player.ErrSkillOwned):
		return apperrors.CodeAlreadyExists
	case errors.Is(err, evolution.ErrInvalidChoice),
		errors.Is(err, soulforge.ErrChoiceOutOfRange),
		errors.Is(err, soulforge.ErrEmptyFragment),
		errors.Is(err, growth.ErrUnknownAspect),
		errors.Is(err, combat.ErrInvalidInput):
		return apperrors.CodeInvalidArgument
	case errors.Is(err, evolution.ErrNoMutation),
		errors.Is(err, evolution.ErrArcOutOfOrder),
		errors.Is(err, evolution.ErrNotRestScene),
		errors.Is(err, evolution.ErrRankTooLow),
		errors.Is(err, evolution.ErrIntegrationLimit),
		errors.Is(err, evolution.ErrPairAlreadyIntegrated),
		errors.Is(err, evolution.ErrNotIntegrable),
		errors.Is(err, evolution.ErrEvolutionThisChapter),
		errors.Is(err, evolution.ErrRefinementLimit),
		errors.Is(err, growth.ErrNoUniqueSkill),
		errors.Is(err, growth.ErrWrongStage),
		errors.Is(err, growth.ErrNotReady),
		errors.Is(err, growth.ErrNoMasteredSkill),
		errors.Is(err, growth.ErrUltimateUsed),
		errors.Is(err, growth.ErrArcOutOfOrder),
		errors.Is(err, soulforge.ErrWrongPhase),
		errors.Is(err, player.ErrSlotsFull),
		errors.Is(err, world.ErrInvalidTransition):
		return apperrors.CodeFailedPrecondition
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.CodeDeadlineExceeded
	case errors.Is(err, context.Canceled):
		return apperrors.CodeCanceled
	}
	return apperrors.CodeInternal
}

// wrap turns any error into a coded boundary error. Coded errors pass
// through unchanged.
func wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	var coded *apperrors.Error
	if errors.As(err, &coded) {
		return err
	}
	return apperrors.WrapWithCode(err, codeFor(err), message)
}
