package orchestrator

import (
	"context"
	"fmt"

	apperrors "github.com/amoisekai/engine/internal/errors"
	"github.com/amoisekai/engine/pkg/evolution"
	"github.com/amoisekai/engine/pkg/growth"
	"github.com/amoisekai/engine/pkg/player"
	"github.com/amoisekai/engine/pkg/skill"
	"github.com/amoisekai/engine/pkg/story"
)

// IntegrateRequest fuses two equipped skills during a rest scene.
type IntegrateRequest struct {
	UserID      string
	ChapterID   string
	SceneNumber int
	SkillA      string
	SkillB      string
}

// MutationResult is the outcome of a mutation decision.
type MutationResult struct {
	Outcome *evolution.ChoiceOutcome `json:"outcome"`
	Skill   *skill.PlayerSkill       `json:"skill,omitempty"`
}

// withPlayer loads the user's player, applies fn to a copy and stores the
// copy only when fn succeeds.
func (e *Engine) withPlayer(ctx context.Context, userID string, fn func(p *player.Player) error) (*player.Player, error) {
	if userID == "" {
		return nil, apperrors.InvalidArgument("user_id is required")
	}
	pl, err := e.store.GetPlayerByUser(ctx, userID)
	if err != nil {
		return nil, wrap(err, "failed to load player")
	}
	snap := pl.Clone()
	if err := fn(snap); err != nil {
		return nil, wrap(err, "skill operation rejected")
	}
	snap.UpdatedAt = e.now()
	if err := e.store.UpdatePlayer(ctx, snap); err != nil {
		return nil, wrap(err, "failed to update player")
	}
	return snap, nil
}

// AcceptSkill moves the pending skill offer into the owned list, equipping
// it when a slot is free.
func (e *Engine) AcceptSkill(ctx context.Context, userID string) (*player.Player, error) {
	return e.withPlayer(ctx, userID, func(p *player.Player) error {
		if p.PendingSkill == nil {
			return apperrors.FailedPrecondition("no skill is on offer")
		}
		if err := p.AddSkill(*p.PendingSkill); err != nil {
			return err
		}
		e.logger.Info("Skill accepted", "player_id", p.ID, "skill_id", p.PendingSkill.ID)
		p.PendingSkill = nil
		p.ChaptersSinceLastSkill = 0
		return nil
	})
}

// RejectSkill discards the pending skill offer.
func (e *Engine) RejectSkill(ctx context.Context, userID string) (*player.Player, error) {
	return e.withPlayer(ctx, userID, func(p *player.Player) error {
		if p.PendingSkill == nil {
			return apperrors.FailedPrecondition("no skill is on offer")
		}
		e.logger.Info("Skill rejected", "player_id", p.ID, "skill_id", p.PendingSkill.ID)
		p.PendingSkill = nil
		return nil
	})
}

func (e *Engine) EquipSkill(ctx context.Context, userID, skillID string) (*player.Player, error) {
	return e.withPlayer(ctx, userID, func(p *player.Player) error {
		return p.Equip(skillID)
	})
}

func (e *Engine) UnequipSkill(ctx context.Context, userID, skillID string) (*player.Player, error) {
	return e.withPlayer(ctx, userID, func(p *player.Player) error {
		if p.OwnedSkill(skillID) == nil {
			return fmt.Errorf("skill %s: %w", skillID, player.ErrSkillNotOwned)
		}
		p.Unequip(skillID)
		return nil
	})
}

// IntegrateSkills fuses two skills. The referenced scene must be a rest
// scene of the user's story.
func (e *Engine) IntegrateSkills(ctx context.Context, req IntegrateRequest) (*skill.PlayerSkill, error) {
	if req.ChapterID == "" || req.SceneNumber < 1 || req.SkillA == "" || req.SkillB == "" {
		return nil, apperrors.InvalidArgument("chapter_id, scene_number and both skills are required")
	}
	ch, err := e.store.GetChapter(ctx, req.ChapterID)
	if err != nil {
		return nil, wrap(err, "failed to load chapter")
	}
	st, err := e.store.GetStory(ctx, ch.StoryID)
	if err != nil {
		return nil, wrap(err, "failed to load story")
	}
	if st.UserID != req.UserID {
		return nil, apperrors.NotFoundf("chapter %s", req.ChapterID)
	}
	sc, err := e.store.GetScene(ctx, ch.ID, req.SceneNumber)
	if err != nil {
		return nil, wrap(err, "failed to load scene")
	}
	atRest := sc.SceneType == story.SceneRest

	var fused *skill.PlayerSkill
	_, err = e.withPlayer(ctx, req.UserID, func(p *player.Player) error {
		var gen evolution.GeneratedSkill
		if atRest {
			for _, opt := range evolution.IntegrationCandidates(p, true) {
				if (opt.SkillA == req.SkillA && opt.SkillB == req.SkillB) || (opt.SkillA == req.SkillB && opt.SkillB == req.SkillA) {
					gen = e.pipe.IntegratedSkill(ctx, p.OwnedSkill(opt.SkillA), p.OwnedSkill(opt.SkillB), opt)
					break
				}
			}
		}
		out, err := evolution.Integrate(p, req.SkillA, req.SkillB, atRest, ch.ChapterNumber, gen)
		if err != nil {
			return err
		}
		c := *out
		fused = &c
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.logger.Info("Skills integrated", "user_id", req.UserID, "skill_id", fused.ID, "tier", fused.Tier)
	return fused, nil
}

// SubmitMutationChoice records the decision of a mutation arc. Accept and
// hybrid rewrite the skill immediately; resist ends the arc.
func (e *Engine) SubmitMutationChoice(ctx context.Context, userID, choice string) (*MutationResult, error) {
	c, err := evolution.ParseMutationChoice(choice)
	if err != nil {
		return nil, wrap(err, "invalid mutation choice")
	}
	res := &MutationResult{}
	_, err = e.withPlayer(ctx, userID, func(p *player.Player) error {
		id := p.SkillEvolution.MutationInProgress
		mt := evolution.DetermineMutationType(p)
		out, err := evolution.SubmitMutationChoice(p, c)
		if err != nil {
			return err
		}
		res.Outcome = out
		if !out.NeedsResolution {
			return nil
		}
		src := p.OwnedSkill(id)
		if src == nil {
			return fmt.Errorf("mutating skill %s: %w", id, evolution.ErrSkillNotFound)
		}
		gen := e.pipe.MutatedSkill(ctx, src, mt)
		if err := evolution.ApplyMutation(p, gen, out); err != nil {
			return err
		}
		s := *p.OwnedSkill(id)
		res.Skill = &s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// ChooseAspect forges one of the two offered aspects.
func (e *Engine) ChooseAspect(ctx context.Context, userID, key string) (*player.Player, error) {
	return e.withPlayer(ctx, userID, func(p *player.Player) error {
		return growth.ChooseAspect(p, key)
	})
}
