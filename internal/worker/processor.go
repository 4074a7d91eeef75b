package worker

import (
	"context"
	"fmt"
	"log/slog"

	apperrors "github.com/amoisekai/engine/internal/errors"
	"github.com/amoisekai/engine/internal/orchestrator"
	"github.com/amoisekai/engine/pkg/queue"
	"github.com/amoisekai/engine/pkg/story"
)

// Engine is the part of the orchestrator the worker drives.
type Engine interface {
	StartStory(ctx context.Context, req orchestrator.StartStoryRequest) (*story.Story, *story.Chapter, error)
	GenerateChapterPlan(ctx context.Context, req orchestrator.ChapterPlanRequest) (*orchestrator.ChapterPlanResult, error)
	GenerateSingleScene(ctx context.Context, req orchestrator.SingleSceneRequest) (*orchestrator.SingleSceneResult, error)
}

// RequestProcessor turns queued requests into engine calls.
type RequestProcessor struct {
	engine Engine
	logger *slog.Logger
}

func NewRequestProcessor(engine Engine, logger *slog.Logger) *RequestProcessor {
	return &RequestProcessor{engine: engine, logger: logger}
}

// Process runs req and returns the payload published on completion.
func (p *RequestProcessor) Process(ctx context.Context, req *queue.Request, progress orchestrator.ProgressReporter) (map[string]any, error) {
	if err := req.Validate(); err != nil {
		return nil, apperrors.WrapWithCode(err, apperrors.CodeInvalidArgument, "invalid request")
	}
	p.logger.Debug("Dispatching request", "request_id", req.RequestID, "type", req.Type, "story_id", req.StoryID)

	switch req.Type {
	case queue.RequestTypeStartStory:
		tags := make([]story.PreferenceTag, 0, len(req.PreferenceTags))
		for _, t := range req.PreferenceTags {
			tags = append(tags, story.PreferenceTag(t))
		}
		st, ch, err := p.engine.StartStory(ctx, orchestrator.StartStoryRequest{
			UserID:          req.UserID,
			PreferenceTags:  tags,
			Backstory:       req.Backstory,
			ProtagonistName: req.ProtagonistName,
			Tone:            story.Tone(req.Tone),
			Progress:        progress,
		})
		if err != nil {
			return nil, err
		}
		return map[string]any{"story": st, "chapter": ch}, nil

	case queue.RequestTypeChapterPlan:
		plan, err := p.engine.GenerateChapterPlan(ctx, orchestrator.ChapterPlanRequest{
			StoryID:   req.StoryID,
			UserID:    req.UserID,
			ChoiceID:  req.ChoiceID,
			FreeInput: req.FreeInput,
			Progress:  progress,
		})
		if err != nil {
			return nil, err
		}
		return map[string]any{"plan": plan}, nil

	case queue.RequestTypeScene:
		decisions, err := orchestrator.ParseDecisions(req.CombatDecisions)
		if err != nil {
			return nil, apperrors.WrapWithCode(err, apperrors.CodeInvalidArgument, "invalid combat decisions")
		}
		res, err := p.engine.GenerateSingleScene(ctx, orchestrator.SingleSceneRequest{
			StoryID:         req.StoryID,
			UserID:          req.UserID,
			ChapterID:       req.ChapterID,
			SceneNumber:     req.SceneNumber,
			ChoiceID:        req.ChoiceID,
			FreeInput:       req.FreeInput,
			CombatDecisions: decisions,
			Progress:        progress,
		})
		if err != nil {
			return nil, err
		}
		return map[string]any{"scene": res}, nil
	}
	return nil, fmt.Errorf("unknown request type: %s", req.Type)
}
