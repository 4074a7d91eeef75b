package orchestrator

import (
	"context"
	"strings"

	"github.com/google/uuid"

	apperrors "github.com/amoisekai/engine/internal/errors"
	"github.com/amoisekai/engine/internal/memory"
	"github.com/amoisekai/engine/internal/pipeline"
	"github.com/amoisekai/engine/pkg/crng"
	"github.com/amoisekai/engine/pkg/ledger"
	"github.com/amoisekai/engine/pkg/player"
	"github.com/amoisekai/engine/pkg/skill"
	"github.com/amoisekai/engine/pkg/soulforge"
	"github.com/amoisekai/engine/pkg/storage"
	"github.com/amoisekai/engine/pkg/story"
	"github.com/amoisekai/engine/pkg/weapon"
	"github.com/amoisekai/engine/pkg/world"
)

// StartStoryRequest opens a new story for a user.
type StartStoryRequest struct {
	UserID          string
	PreferenceTags  []story.PreferenceTag
	Backstory       string
	ProtagonistName string
	Tone            story.Tone
	Progress        ProgressReporter
}

// ChapterPlanRequest plans the next chapter from the player's last choice.
type ChapterPlanRequest struct {
	StoryID   string
	UserID    string
	ChoiceID  string
	FreeInput string
	Progress  ProgressReporter
}

// ChapterPlanResult describes a planned chapter whose scenes are generated
// one at a time.
type ChapterPlanResult struct {
	ChapterID     string       `json:"chapter_id"`
	ChapterNumber int          `json:"chapter_number"`
	TotalScenes   int          `json:"total_scenes"`
	Beats         []story.Beat `json:"beats"`
	CRNGEvent     *crng.Event  `json:"crng_event,omitempty"`
}

// StartStory creates the story, its world and ledger, and writes chapter
// one in full through the chapter graph. A user without a forged player
// gets the fallback soul.
func (e *Engine) StartStory(ctx context.Context, req StartStoryRequest) (*story.Story, *story.Chapter, error) {
	if strings.TrimSpace(req.UserID) == "" {
		return nil, nil, apperrors.InvalidArgument("user_id is required")
	}
	now := e.now()
	st := &story.Story{
		ID:              uuid.NewString(),
		UserID:          req.UserID,
		PreferenceTags:  req.PreferenceTags,
		Tone:            req.Tone,
		ProtagonistName: strings.TrimSpace(req.ProtagonistName),
		Backstory:       strings.TrimSpace(req.Backstory),
		BrainID:         uuid.NewString(),
		RecentSummaries: []string{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := st.Validate(); err != nil {
		return nil, nil, apperrors.WrapWithCode(err, apperrors.CodeInvalidArgument, "invalid story")
	}
	report(req.Progress, StatusLoading)

	pl, err := e.playerForStory(ctx, req.UserID, st)
	if err != nil {
		return nil, nil, err
	}
	if st.ProtagonistName == "" {
		st.ProtagonistName = pl.Name
	}
	log := e.logger.With("story_id", st.ID, "user_id", st.UserID)

	w := world.NewState(st.ID, e.registry)
	led := ledger.New(st.ID)
	if err := e.store.CreateStory(ctx, st); err != nil {
		return nil, nil, wrap(err, "failed to create story")
	}
	if err := e.store.SaveWorld(ctx, w); err != nil {
		return nil, nil, wrap(err, "failed to save world")
	}
	if err := e.store.SaveLedger(ctx, led); err != nil {
		return nil, nil, wrap(err, "failed to save ledger")
	}

	snap := pl.Clone()
	report(req.Progress, StatusRolling)
	ev, instruction := e.rollChapter(snap, 1)
	scheduled := e.scheduleBeats(ctx, st.ID, snap, 1)
	zone := ""
	if z, ok := e.registry.StartingZone(snap.Archetype); ok {
		zone = z.Name
	}

	report(req.Progress, StatusWriting)
	out, err := e.pipe.RunChapter(ctx, pipeline.State{
		Story:           st,
		Player:          snap,
		World:           w.Clone(),
		Ledger:          led,
		ChapterNumber:   1,
		CRNGEvent:       &ev,
		FateInstruction: instruction,
		Scheduled:       scheduled,
		StartingZone:    zone,
		AdaptiveContext: adaptiveContext(snap, nil),
	})
	if err != nil {
		return nil, nil, wrap(err, "failed to write chapter one")
	}

	report(req.Progress, StatusFinalizing)
	ch := &story.Chapter{
		ID:              uuid.NewString(),
		StoryID:         st.ID,
		ChapterNumber:   1,
		FateInstruction: instruction,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if ev.Triggered {
		ch.CRNGEvent = &ev
	}
	plan := story.FallbackPlan(zone)
	if out.Plan != nil {
		plan = *out.Plan
	}
	ch.SetOutline(plan)
	if o := out.Output; o != nil {
		ch.Title = o.Title
		ch.Prose = o.Prose
		ch.Summary = o.Summary
		ch.Choices = o.Choices
	}
	if ch.Summary == "" {
		ch.Summary = memory.FallbackSummary(ch.Prose, 3)
	}
	ch.Completed = true

	w.AdvanceChapter(1)
	if c := out.Consequences; c != nil {
		w.Apply(c.WorldUpdate())
		for name, d := range c.CompanionAffinity {
			st.AdjustCompanion(name, d)
		}
	}
	delta := e.finishChapter(snap, ch, out.IdentityDelta, out.Loadout, out.WeaponUpdate, 0)
	st.ChapterCount = 1
	st.PushSummary(ch.Summary, e.cfg.RollingSummaryChapters)
	st.UpdatedAt = now

	if err := e.store.CreateChapter(ctx, ch); err != nil {
		return nil, nil, wrap(err, "failed to save chapter")
	}
	if err := e.commitChapterState(ctx, st, snap, w, ch, delta, 0); err != nil {
		return nil, nil, err
	}
	log.Info("Story started", "chapter_id", ch.ID, "fallbacks", out.Fallbacks, "trace", out.Trace)
	return st, ch, nil
}

// playerForStory loads the user's player, provisioning a fallback soul when
// the user never went through the forge.
func (e *Engine) playerForStory(ctx context.Context, userID string, st *story.Story) (*player.Player, error) {
	pl, err := e.store.GetPlayerByUser(ctx, userID)
	if err == nil {
		return pl, nil
	}
	if codeFor(err) != apperrors.CodeNotFound {
		return nil, wrap(err, "failed to load player")
	}
	name := st.ProtagonistName
	if name == "" {
		name = "Wanderer"
	}
	pl = player.New(uuid.NewString(), userID, name)
	pl.Backstory = st.Backstory
	pl.Archetype = player.ArchetypeWanderer
	u := soulforge.FallbackSkill(pl.Archetype, soulforge.AnchorSilence)
	pl.UniqueSkill = &u
	pl.PrincipleResonance = soulforge.ComputeResonance(soulforge.BehavioralFingerprint{}, nil, soulforge.AnchorSilence, 1)
	pl.Resonance = pl.PrincipleResonance.Clone()
	if err := e.store.CreatePlayer(ctx, pl); err != nil {
		return nil, wrap(err, "failed to create player")
	}
	e.logger.Info("Provisioned fallback player", "user_id", userID, "player_id", pl.ID)
	return pl, nil
}

// GenerateChapterPlan rolls fate, schedules the beats the chapter must
// carry, and runs input parsing, planning and simulation. Scenes are
// written later, one request at a time.
func (e *Engine) GenerateChapterPlan(ctx context.Context, req ChapterPlanRequest) (*ChapterPlanResult, error) {
	if req.StoryID == "" || req.UserID == "" {
		return nil, apperrors.InvalidArgument("story_id and user_id are required")
	}
	report(req.Progress, StatusLoading)
	st, err := e.store.GetStory(ctx, req.StoryID)
	if err != nil {
		return nil, wrap(err, "failed to load story")
	}
	if st.UserID != req.UserID {
		return nil, apperrors.NotFoundf("story %s", req.StoryID)
	}
	if st.ChapterCount >= e.cfg.MaxChapters {
		return nil, apperrors.FailedPreconditionf("story has reached the %d chapter limit", e.cfg.MaxChapters)
	}
	chapters, err := e.store.ListChapters(ctx, st.ID)
	if err != nil {
		return nil, wrap(err, "failed to list chapters")
	}

	var (
		prev       *story.Chapter
		prevScenes []*story.Scene
		offered    []story.Choice
	)
	if n := len(chapters); n > 0 {
		prev = chapters[n-1]
		if !prev.Completed {
			return nil, apperrors.FailedPreconditionf("chapter %d is not finished", prev.ChapterNumber)
		}
		if prevScenes, err = e.store.ListScenes(ctx, prev.ID); err != nil {
			return nil, wrap(err, "failed to list scenes")
		}
		offered = prev.Choices
		if k := len(prevScenes); k > 0 {
			offered = prevScenes[k-1].Choices
		}
	}
	chosen, err := pickChoice(offered, req.ChoiceID)
	if err != nil {
		return nil, err
	}
	if prev != nil && chosen == nil && strings.TrimSpace(req.FreeInput) == "" {
		return nil, apperrors.InvalidArgument("a choice or free input is required")
	}

	pl, err := e.store.GetPlayerByUser(ctx, st.UserID)
	if err != nil {
		return nil, wrap(err, "failed to load player")
	}
	w, err := e.loadWorld(ctx, st.ID)
	if err != nil {
		return nil, err
	}
	led, err := e.loadLedger(ctx, st.ID)
	if err != nil {
		return nil, err
	}

	snap := pl.Clone()
	number := st.ChapterCount + 1
	log := e.logger.With("story_id", st.ID, "chapter", number)

	report(req.Progress, StatusRolling)
	ev, instruction := e.rollChapter(snap, number)
	scheduled := e.scheduleBeats(ctx, st.ID, snap, number)

	report(req.Progress, StatusPlanning)
	in := pipeline.State{
		Story:           st,
		Player:          snap,
		World:           w.Clone(),
		Ledger:          led,
		ChapterNumber:   number,
		PreviousSummary: memory.RollingSummary(st, e.cfg.RollingSummaryMaxChars),
		OfferedChoices:  offered,
		ChosenChoice:    chosen,
		FreeInput:       strings.TrimSpace(req.FreeInput),
		CRNGEvent:       &ev,
		FateInstruction: instruction,
		Scheduled:       scheduled,
		AdaptiveContext: adaptiveContext(snap, prevScenes),
	}
	if prev != nil {
		in.PreviousProse = prev.Prose
		if k := len(prevScenes); k > 0 {
			in.PreviousProse = prevScenes[k-1].Prose
		}
	}
	out, err := e.pipe.RunPlan(ctx, in)
	if err != nil {
		return nil, wrap(err, "failed to plan chapter")
	}

	now := e.now()
	ch := &story.Chapter{
		ID:              uuid.NewString(),
		StoryID:         st.ID,
		ChapterNumber:   number,
		FateInstruction: instruction,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if ev.Triggered {
		ch.CRNGEvent = &ev
	}
	plan := story.FallbackPlan("")
	if out.Plan != nil {
		plan = *out.Plan
	}
	ch.SetOutline(plan)
	ch.Title = plan.EmotionalArc
	out.Plan = ch.PlannerOutline
	planned := pipeline.PlannedDelta(out)
	ch.IdentityDelta = &planned

	w.AdvanceChapter(number)
	if c := out.Consequences; c != nil {
		w.Apply(c.WorldUpdate())
		for name, d := range c.CompanionAffinity {
			st.AdjustCompanion(name, d)
		}
	}
	for _, wc := range plan.WorldChanges {
		w.AddEvent(wc)
	}
	st.ChapterCount = number
	st.UpdatedAt = now

	if err := e.store.CreateChapter(ctx, ch); err != nil {
		return nil, wrap(err, "failed to save chapter")
	}
	if err := e.store.UpdateStory(ctx, st); err != nil {
		return nil, wrap(err, "failed to update story")
	}
	if err := e.store.SaveWorld(ctx, w); err != nil {
		return nil, wrap(err, "failed to save world")
	}
	if err := e.store.UpdatePlayer(ctx, snap); err != nil {
		return nil, wrap(err, "failed to update player")
	}
	if chosen != nil {
		if k := len(prevScenes); k > 0 {
			last := prevScenes[k-1]
			if err := e.store.SetSceneChosenChoice(ctx, last.ChapterID, last.SceneNumber, chosen.ID); err != nil {
				log.Warn("Failed to record chosen choice", "scene", last.SceneNumber, "error", err)
			}
		}
	}

	res := &ChapterPlanResult{
		ChapterID:     ch.ID,
		ChapterNumber: number,
		TotalScenes:   ch.TotalScenes,
		Beats:         plan.Beats,
	}
	if ev.Triggered {
		res.CRNGEvent = &ev
	}
	log.Info("Chapter planned", "chapter_id", ch.ID, "scenes", ch.TotalScenes, "crng", ev.EventType, "fallbacks", out.Fallbacks)
	return res, nil
}

// rollChapter makes the single CRNG roll of a chapter, updates pity and
// decays the fate buffer on p.
func (e *Engine) rollChapter(p *player.Player, chapter int) (crng.Event, string) {
	dna := make([]string, len(p.DNAAffinity))
	for i, d := range p.DNAAffinity {
		dna[i] = string(d)
	}
	ev, err := crng.New(e.roller).Roll(crng.Input{
		Chapter:           chapter,
		PityCounter:       p.PityCounter,
		BreakthroughMeter: p.BreakthroughMeter,
		DNAAffinity:       dna,
	})
	if err != nil {
		e.logger.Warn("CRNG roll failed", "chapter", chapter, "error", err)
		ev = crng.Event{}
	}
	p.PityCounter = crng.NextPity(p.PityCounter, ev)
	p.FateBuffer = e.cfg.Fate.Decay(p.FateBuffer, chapter)
	return ev, e.cfg.Fate.Instruction(p.FateBuffer, chapter)
}

// finishChapter folds the chapter-end results into the player snapshot
// and the chapter record. It returns the applied delta.
func (e *Engine) finishChapter(p *player.Player, ch *story.Chapter, d *player.IdentityDelta, loadout *weapon.Loadout, up *weapon.Update, combatWins int) player.IdentityDelta {
	var delta player.IdentityDelta
	if d != nil {
		delta = *d
	}
	p.ApplyDelta(delta)
	if loadout != nil {
		p.EquippedWeapons = *loadout
	}
	if up != nil {
		if p.ArchonAffinity == nil {
			p.ArchonAffinity = map[string]int{}
		}
		for k, v := range up.ArchonAffinity {
			p.ArchonAffinity[k] += v
		}
	}
	p.TotalChapters++
	_, peak := p.Resonance.Dominant()
	if p.ResonanceMastery.AddPoints(player.ChapterMasteryPoints(p.IdentityCoherence, peak, combatWins)) {
		e.logger.Info("Resonance mastery rank up", "player_id", p.ID, "rank", p.ResonanceMastery.Rank.String())
	}
	ch.IdentityDelta = &delta
	ch.UpdatedAt = e.now()
	return delta
}

// commitChapterState persists everything a finished chapter touched. The
// player is written last so a failed write leaves it unchanged.
func (e *Engine) commitChapterState(ctx context.Context, st *story.Story, p *player.Player, w *world.State, ch *story.Chapter, delta player.IdentityDelta, scene int) error {
	if err := e.store.UpdateStory(ctx, st); err != nil {
		return wrap(err, "failed to update story")
	}
	if err := e.store.SaveWorld(ctx, w); err != nil {
		return wrap(err, "failed to save world")
	}
	if err := e.store.UpdatePlayer(ctx, p); err != nil {
		return wrap(err, "failed to update player")
	}
	if err := e.store.AppendIdentityEvent(ctx, storage.IdentityEvent{
		PlayerID:  p.ID,
		StoryID:   st.ID,
		Chapter:   ch.ChapterNumber,
		Scene:     scene,
		Source:    "chapter_end",
		Delta:     delta,
		CreatedAt: e.now(),
	}); err != nil {
		e.logger.Warn("Failed to append identity event", "story_id", st.ID, "chapter", ch.ChapterNumber, "error", err)
	}
	return nil
}

func (e *Engine) loadWorld(ctx context.Context, storyID string) (*world.State, error) {
	w, err := e.store.GetWorld(ctx, storyID)
	if err == nil {
		return w, nil
	}
	if codeFor(err) == apperrors.CodeNotFound {
		return world.NewState(storyID, e.registry), nil
	}
	return nil, wrap(err, "failed to load world")
}

func (e *Engine) loadLedger(ctx context.Context, storyID string) (*ledger.Ledger, error) {
	l, err := e.store.GetLedger(ctx, storyID)
	if err == nil {
		return l, nil
	}
	if codeFor(err) == apperrors.CodeNotFound {
		return ledger.New(storyID), nil
	}
	return nil, wrap(err, "failed to load ledger")
}

// pickChoice resolves id among offered. An empty id picks nothing.
func pickChoice(offered []story.Choice, id string) (*story.Choice, error) {
	if id == "" {
		return nil, nil
	}
	for i := range offered {
		if offered[i].ID == id {
			c := offered[i]
			return &c, nil
		}
	}
	return nil, apperrors.InvalidArgumentf("choice %q was not offered", id)
}

func skeletonFor(c *skill.Catalog, b *story.Beat) (*skill.Skeleton, bool) {
	if b.SkillReward == nil || c == nil {
		return nil, false
	}
	return c.Get(b.SkillReward.SkeletonID)
}
