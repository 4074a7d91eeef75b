// Package app wires the engine from configuration for the binaries.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/amoisekai/engine/internal/config"
	"github.com/amoisekai/engine/internal/memory"
	"github.com/amoisekai/engine/internal/orchestrator"
	"github.com/amoisekai/engine/internal/pipeline"
	"github.com/amoisekai/engine/internal/services"
	"github.com/amoisekai/engine/internal/services/queue"
	istorage "github.com/amoisekai/engine/internal/storage"
	"github.com/amoisekai/engine/pkg/prompts"
	"github.com/amoisekai/engine/pkg/storage"
	"github.com/amoisekai/engine/pkg/world"
)

// Options change how Build wires the engine.
type Options struct {
	// Offline keeps everything in memory and skips Redis and SQLite.
	Offline bool
	// LLM replaces the configured backend.
	LLM services.LLMService
	// Registerer receives the metrics. Nil uses a private registry.
	Registerer prometheus.Registerer
}

// App holds the wired engine and the handles the binaries need.
type App struct {
	Engine   *orchestrator.Engine
	Store    storage.Storage
	Redis    *redis.Client
	Requests *queue.RequestQueue
	Events   *queue.StoryEventQueue
	Metrics  *services.Metrics
	LLM      services.LLMService

	closers []func() error
}

// Build connects storage, picks the LLM and embedding backends, and
// assembles the pipeline and orchestrator.
func Build(ctx context.Context, cfg *config.Config, log *slog.Logger, opts Options) (*App, error) {
	a := &App{}
	reg := opts.Registerer
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	a.Metrics = services.NewMetrics(reg)

	var cache services.Cache
	if opts.Offline {
		a.Store = storage.NewMockStorage()
	} else {
		rs, err := services.NewRedisService(cfg.RedisURL, log)
		if err != nil {
			return nil, err
		}
		waitCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		err = rs.WaitForConnection(waitCtx)
		cancel()
		if err != nil {
			_ = rs.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		a.Redis = rs.GetClient()
		a.closers = append(a.closers, rs.Close)
		cache = rs

		var prose *istorage.ProseStore
		if cfg.ProseDSN != "" {
			if prose, err = istorage.OpenProseStore(cfg.ProseDSN); err != nil {
				_ = a.Close()
				return nil, err
			}
			a.closers = append(a.closers, prose.Close)
		}
		a.Store = istorage.NewRedisStorage(a.Redis, prose, log, istorage.Config{})
		qc := queue.NewClientFromRedis(a.Redis, log)
		a.Requests = queue.NewRequestQueue(qc)
		a.Events = queue.NewStoryEventQueue(qc)
	}

	llm := opts.LLM
	if llm == nil {
		var err error
		llm, err = services.NewLLMService(services.LLMSettings{
			Provider:         cfg.LLMProvider,
			ModelName:        cfg.ModelName,
			BackendModelName: cfg.BackendModelName,
			OpenAIAPIKey:     cfg.OpenAIAPIKey,
			OpenAIBaseURL:    cfg.OpenAIBaseURL,
			AnthropicAPIKey:  cfg.AnthropicAPIKey,
			OllamaURL:        cfg.OllamaURL,
		}, log)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
	}
	if err := llm.InitModel(ctx, cfg.ModelName); err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("failed to initialize model %s: %w", cfg.ModelName, err)
	}
	a.LLM = llm
	gen := services.Instrument(llm, cfg.LLMProvider, a.Metrics)

	embedder, err := services.NewEmbedder(services.EmbedderSettings{
		Provider:      cfg.EmbeddingProvider,
		Model:         cfg.EmbeddingModel,
		OpenAIAPIKey:  cfg.OpenAIAPIKey,
		OpenAIBaseURL: cfg.OpenAIBaseURL,
		OllamaURL:     cfg.OllamaURL,
	}, cache, log, a.Metrics)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	lib, err := prompts.Load(cfg.PromptsDir)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	registry, err := world.LoadRegistry(cfg.RegistryPath)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	tokens := services.NewTokenizer(cfg.ModelName, log)
	brain := memory.NewBrain(a.Store, embedder, tokens, log)
	layers := memory.NewLayers(brain, memory.NewLedgerExtractor(gen, lib, a.Store, log), a.Store, log)
	summarizer := memory.NewSummarizer(gen, lib, log)

	pcfg := pipeline.DefaultConfig()
	pcfg.MaxRewrites = cfg.MaxRewrites
	pcfg.BrainMaxTokens = cfg.BrainMaxTokens
	pcfg.LLMTimeout = cfg.LLMTimeout
	pcfg.SummaryChars = cfg.RollingSummaryMaxChars
	pipe, err := pipeline.New(pipeline.Deps{
		LLM:        gen,
		Prompts:    lib,
		Brain:      brain,
		Layers:     layers,
		Summarizer: summarizer,
		Registry:   registry,
		Tokens:     tokens,
		Metrics:    a.Metrics,
		Logger:     log,
		Config:     pcfg,
	})
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	deps := orchestrator.Deps{
		Store:      a.Store,
		Pipeline:   pipe,
		Registry:   registry,
		Embedder:   embedder,
		Brain:      brain,
		Layers:     layers,
		Summarizer: summarizer,
		Metrics:    a.Metrics,
		Logger:     log,
		Config:     orchestrator.ConfigFrom(cfg),
	}
	if a.Events != nil {
		deps.Events = a.Events
	}
	if a.Engine, err = orchestrator.New(deps); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

// Close waits for background work and releases connections.
func (a *App) Close() error {
	if a.Engine != nil {
		a.Engine.Wait()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
