package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/amoisekai/engine/internal/errors"
	"github.com/amoisekai/engine/internal/memory"
	"github.com/amoisekai/engine/internal/pipeline"
	"github.com/amoisekai/engine/pkg/combat"
	"github.com/amoisekai/engine/pkg/crng"
	"github.com/amoisekai/engine/pkg/evolution"
	"github.com/amoisekai/engine/pkg/growth"
	"github.com/amoisekai/engine/pkg/player"
	"github.com/amoisekai/engine/pkg/principle"
	"github.com/amoisekai/engine/pkg/skill"
	"github.com/amoisekai/engine/pkg/storage"
	"github.com/amoisekai/engine/pkg/story"
	"github.com/amoisekai/engine/pkg/weapon"
	"github.com/amoisekai/engine/pkg/world"
)

// Per-scene tunables.
const (
	sceneDeltaWeight   = 0.2
	skillResonanceGain = 0.02
	winResonanceGain   = 0.03
	awakeningThreshold = 0.7
	proseContextScenes = 2
	// nearDeathHP is the share of max HP at or under which surviving a
	// fight still counts as trauma.
	nearDeathHP = 0.15
)

// SingleSceneRequest asks for scene SceneNumber of a planned chapter.
type SingleSceneRequest struct {
	StoryID         string
	UserID          string
	ChapterID       string
	SceneNumber     int
	ChoiceID        string
	FreeInput       string
	CombatDecisions []combat.Decision
	Progress        ProgressReporter
}

// ResonanceEvent records one principle moving during a scene.
type ResonanceEvent struct {
	Principle principle.Principle `json:"principle"`
	Before    float64             `json:"before"`
	After     float64             `json:"after"`
	Reason    string              `json:"reason"`
}

// SingleSceneResult is one written scene and everything the scene changed.
type SingleSceneResult struct {
	Scene               *story.Scene                  `json:"scene"`
	SceneNumber         int                           `json:"scene_number"`
	TotalScenes         int                           `json:"total_scenes"`
	IsChapterEnd        bool                          `json:"is_chapter_end"`
	IdentityDelta       *player.IdentityDelta         `json:"identity_delta,omitempty"`
	CombatData          *combat.Brief                 `json:"combat_data,omitempty"`
	SkillEvolutionEvent *evolution.Event              `json:"skill_evolution_event,omitempty"`
	ResonanceEvents     []ResonanceEvent              `json:"resonance_events,omitempty"`
	MutationArcInfo     *evolution.ArcInfo            `json:"mutation_arc_info,omitempty"`
	UltimateArcInfo     *growth.ArcInfo               `json:"ultimate_arc_info,omitempty"`
	GrowthEvent         *growth.Event                 `json:"growth_event,omitempty"`
	IntegrationOptions  []evolution.IntegrationOption `json:"integration_options,omitempty"`
	AwakeningResults    []evolution.AwakeningResult   `json:"awakening_results,omitempty"`
	SkillOffer          *skill.PlayerSkill            `json:"skill_offer,omitempty"`
	Fallback            bool                          `json:"fallback"`
}

// GenerateSingleScene resolves and writes one scene. Scenes must be
// requested in order. Player, chapter and world are changed on copies and
// written only after the scene itself has been stored.
func (e *Engine) GenerateSingleScene(ctx context.Context, req SingleSceneRequest) (*SingleSceneResult, error) {
	start := time.Now()
	if req.StoryID == "" || req.ChapterID == "" || req.UserID == "" {
		return nil, apperrors.InvalidArgument("story_id, chapter_id and user_id are required")
	}
	if req.SceneNumber < 1 {
		return nil, apperrors.InvalidArgumentf("scene_number %d must be positive", req.SceneNumber)
	}
	report(req.Progress, StatusLoading)

	st, err := e.store.GetStory(ctx, req.StoryID)
	if err != nil {
		return nil, wrap(err, "failed to load story")
	}
	if st.UserID != req.UserID {
		return nil, apperrors.NotFoundf("story %s", req.StoryID)
	}
	ch, err := e.store.GetChapter(ctx, req.ChapterID)
	if err != nil {
		return nil, wrap(err, "failed to load chapter")
	}
	if ch.StoryID != st.ID {
		return nil, apperrors.NotFoundf("chapter %s", req.ChapterID)
	}
	n := req.SceneNumber
	switch {
	case ch.Completed:
		return nil, apperrors.FailedPreconditionf("chapter %d is already complete", ch.ChapterNumber)
	case n > ch.TotalScenes:
		return nil, apperrors.InvalidArgumentf("chapter %d has %d scenes", ch.ChapterNumber, ch.TotalScenes)
	case n != ch.ScenesGenerated+1:
		return nil, apperrors.FailedPreconditionf("scene %d requested, next is %d", n, ch.ScenesGenerated+1)
	}
	beat, err := ch.Beat(n)
	if err != nil {
		return nil, apperrors.WrapWithCode(err, apperrors.CodeFailedPrecondition, "chapter has no outline")
	}
	b := *beat

	scenes, err := e.store.ListScenes(ctx, ch.ID)
	if err != nil {
		return nil, wrap(err, "failed to list scenes")
	}
	var prevScene *story.Scene
	if k := len(scenes); k > 0 {
		prevScene = scenes[k-1]
	}
	var chosen *story.Choice
	if prevScene != nil {
		if chosen, err = pickChoice(prevScene.Choices, req.ChoiceID); err != nil {
			return nil, err
		}
	}

	pl, err := e.store.GetPlayerByUser(ctx, st.UserID)
	if err != nil {
		return nil, wrap(err, "failed to load player")
	}
	if pl.SoulDead {
		return nil, apperrors.FailedPrecondition("the protagonist's soul has been destroyed")
	}
	w, err := e.loadWorld(ctx, st.ID)
	if err != nil {
		return nil, err
	}

	snap := pl.Clone()
	w = w.Clone()
	chapter := ch.ChapterNumber
	log := e.logger.With("story_id", st.ID, "chapter", chapter, "scene", n)
	res := &SingleSceneResult{SceneNumber: n, TotalScenes: ch.TotalScenes, IsChapterEnd: n == ch.TotalScenes}
	before := snap.Resonance.Clone()
	reasons := map[principle.Principle]string{}

	// Combat.
	var brief *combat.Brief
	if b.SceneType == story.SceneCombat {
		report(req.Progress, StatusCombat)
		if brief, err = e.resolveCombat(snap, w, &b, chapter, req.CombatDecisions); err != nil {
			return nil, wrap(err, "failed to resolve combat")
		}
		res.CombatData = brief
		combat.Apply(snap, brief)
		e.metrics.CombatResolved(string(brief.EncounterType), string(brief.FinalOutcome))
		if brief.FloorProgress {
			w.ClearFloor(w.NextFloor())
		}
		if brief.SkillID != "" {
			evolution.RecordUsage(snap, brief.SkillID, brief, "")
			if s := snap.OwnedSkill(brief.SkillID); s != nil && brief.CountsAsUse() > 0 {
				snap.Resonance.Add(s.Principle, skillResonanceGain)
				reasons[s.Principle] = "used " + s.Name()
			}
		}
		if brief.FinalOutcome == combat.PlayerWins && brief.Enemy.Principle != "" {
			snap.Resonance.Add(brief.Enemy.Principle, winResonanceGain)
			reasons[brief.Enemy.Principle] = "defeated " + brief.Enemy.Name
		}
		if kind, note, ok := combatTrauma(brief); ok {
			res.GrowthEvent = growth.RecordTrauma(snap, kind, chapter, note)
		}
	}

	// Skill use through the chosen choice or free text.
	actionText := req.FreeInput
	if chosen != nil {
		actionText = chosen.Text + " " + req.FreeInput
	}
	if u := snap.UniqueSkill; u != nil && chosen != nil && u.IsSkillChoice(chosen.Text) {
		u.UsageCount++
		ch.SkillUsesThisChapter++
	}
	if b.SceneType != story.SceneCombat {
		if s := mentionedSkill(snap, actionText); s != nil {
			if evolution.RecordUsage(snap, s.ID, nil, combat.OutcomeMixed) > 0 {
				snap.Resonance.Add(s.Principle, skillResonanceGain)
				reasons[s.Principle] = "used " + s.Name()
			}
		}
	}

	if b.SceneType == story.SceneRest {
		snap.Rest()
		res.IntegrationOptions = evolution.IntegrationCandidates(snap, true)
	}

	// Scheduled beats.
	report(req.Progress, StatusEvolving)
	if sk, ok := skeletonFor(e.catalog, &b); ok && snap.PendingSkill == nil && !snap.OwnedIDs()[sk.ID] {
		skin := e.pipe.Skin(ctx, sk, snap.Name, b.SkillReward.Reason)
		ps := skill.FromSkeleton(sk, skin, chapter)
		snap.PendingSkill = &ps
		res.SkillOffer = &ps
	}
	if k := arcScene(&b, story.TagMutationArc); k > 0 {
		res.MutationArcInfo = e.playMutationArc(ctx, snap, k, log)
	}
	if k := arcScene(&b, story.TagUltimateArc); k > 0 {
		res.UltimateArcInfo = e.playUltimateArc(ctx, snap, k, log)
	}

	if ev := evolution.CheckSkillEvolution(snap, chapter); ev != nil {
		if ev.Type == evolution.EventRefinement {
			if err := evolution.ApplyRefinement(snap, ev.SkillID); err != nil {
				log.Warn("Refinement failed", "skill_id", ev.SkillID, "error", err)
			}
		}
		res.SkillEvolutionEvent = ev
	}
	if gev := e.observeGrowth(ctx, snap, log); gev != nil {
		res.GrowthEvent = gev
	}
	res.ResonanceEvents, res.AwakeningResults = awaken(snap, before, reasons)

	// Micro identity update.
	micro := pipeline.HeuristicDelta(pipeline.IdentityInput{
		Category: sceneCategory(&b, snap, chosen),
		Risk:     choiceRisk(chosen),
		Beats:    []story.Beat{b},
	}).Scale(sceneDeltaWeight)
	micro.NewFlags = nil
	snap.ApplyDelta(micro)

	// Write.
	report(req.Progress, StatusWriting)
	in := pipeline.SceneInput{
		StoryID:              st.ID,
		ChapterNumber:        chapter,
		SceneNumber:          n,
		TotalScenes:          ch.TotalScenes,
		Beat:                 b,
		Beats:                ch.PlannerOutline.Beats,
		PreviousProse:        proseTail(scenes, proseContextScenes),
		ChosenChoice:         chosen,
		FreeInput:            strings.TrimSpace(req.FreeInput),
		IsChapterEnd:         res.IsChapterEnd,
		Player:               snap,
		FateInstruction:      ch.FateInstruction,
		PreferenceTags:       st.PreferenceTags,
		SkillUsesThisChapter: ch.SkillUsesThisChapter,
		CombatBrief:          brief,
		SemanticContext:      e.recall(ctx, st.ID, b.Description),
		WorldContext:         worldContext(w),
		EvolutionContext:     evolutionContext(res),
		ResonanceContext:     resonanceContext(snap),
		WeaponContext:        weaponContext(snap),
		AdaptiveContext:      adaptiveContext(snap, scenes),
		Tone:                 st.Tone,
	}
	out := e.pipe.WriteScene(ctx, in)
	res.Fallback = out.Fallback

	now := e.now()
	sc := &story.Scene{
		ID:           uuid.NewString(),
		ChapterID:    ch.ID,
		SceneNumber:  n,
		BeatIndex:    n - 1,
		Title:        out.Title,
		Prose:        out.Prose,
		Choices:      out.Choices,
		SceneType:    b.SceneType,
		Mood:         b.Mood,
		Tension:      b.Tension,
		IsChapterEnd: res.IsChapterEnd,
		CriticScore:  out.Critique.Score,
		CombatBrief:  brief,
		CreatedAt:    now,
	}
	if !micro.IsZero() {
		sc.IdentityDelta = &micro
	}
	ch.ScenesGenerated = n
	ch.UpdatedAt = now

	var snapMem memory.Snapshot
	if res.IsChapterEnd {
		report(req.Progress, StatusFinalizing)
		delta, err := e.closeChapter(ctx, st, ch, snap, w, append(scenes, sc), chosen)
		if err != nil {
			return nil, err
		}
		res.IdentityDelta = &delta
		snapMem = memory.Snapshot{StoryID: st.ID, Chapter: chapter, Title: ch.Title, Summary: ch.Summary, Prose: ch.Prose, Events: w.NarrativeEvents}
	} else if !micro.IsZero() {
		res.IdentityDelta = &micro
	}

	// Persist: scene, chapter, then the rest. The player goes last.
	if err := e.store.CreateScene(ctx, sc); err != nil {
		return nil, wrap(err, "failed to save scene")
	}
	if err := e.store.UpdateChapter(ctx, ch); err != nil {
		return nil, wrap(err, "failed to update chapter")
	}
	if res.IsChapterEnd {
		if err := e.commitChapterState(ctx, st, snap, w, ch, *res.IdentityDelta, n); err != nil {
			return nil, err
		}
	} else {
		if err := e.store.SaveWorld(ctx, w); err != nil {
			return nil, wrap(err, "failed to save world")
		}
		if err := e.store.UpdatePlayer(ctx, snap); err != nil {
			return nil, wrap(err, "failed to update player")
		}
		if sc.IdentityDelta != nil {
			if err := e.store.AppendIdentityEvent(ctx, storage.IdentityEvent{
				PlayerID: snap.ID, StoryID: st.ID, Chapter: chapter, Scene: n,
				Source:   "scene", Delta: micro, CreatedAt: now,
			}); err != nil {
				log.Warn("Failed to append identity event", "error", err)
			}
		}
	}
	if prevScene != nil && chosen != nil {
		if err := e.store.SetSceneChosenChoice(ctx, prevScene.ChapterID, prevScene.SceneNumber, chosen.ID); err != nil {
			log.Warn("Failed to record chosen choice", "error", err)
		}
	}
	if res.IsChapterEnd && e.layers != nil {
		e.layers.RecordWorld(ctx, snapMem)
		e.layers.PersistAsync(snapMem)
	}

	chapterID, sceneNo, sceneID := sc.ChapterID, sc.SceneNumber, sc.ID
	e.pipe.CritiqueAsync(in, out, func(c pipeline.Critique) {
		if err := e.store.SetSceneCriticScore(context.Background(), chapterID, sceneNo, c.Score); err != nil {
			e.logger.Warn("Failed to store background critique", "scene_id", sceneID, "error", err)
		}
	})

	res.Scene = sc
	e.metrics.SceneGenerated(time.Since(start))
	log.Info("Scene generated",
		"scene_type", b.SceneType,
		"critic_score", out.Critique.Score,
		"rewrites", out.Rewrites,
		"fallback", out.Fallback,
		"chapter_end", res.IsChapterEnd)
	return res, nil
}

// combatTrauma classifies a resolved fight for the scar path. A defeat
// is trauma; so is surviving at or under nearDeathHP of max HP, or only
// because the fate buffer fired.
func combatTrauma(b *combat.Brief) (skill.TraumaKind, string, bool) {
	if b.FinalOutcome == combat.EnemyWins {
		kind := skill.TraumaDefeat
		if d := b.DefeatResult; d != nil && d.Scar.Kind == player.ScarNearDeath {
			kind = skill.TraumaNearDeath
		}
		return kind, "defeated by " + b.Enemy.Name, true
	}
	after := b.PlayerStateAfter
	switch {
	case b.FateFired:
		return skill.TraumaNearDeath, "fate pulled back from " + b.Enemy.Name, true
	case after.HPMax > 0 && after.HP <= nearDeathHP*after.HPMax:
		return skill.TraumaNearDeath, "barely survived " + b.Enemy.Name, true
	}
	return "", "", false
}

// resolveCombat builds the resolver input for a combat beat.
func (e *Engine) resolveCombat(p *player.Player, w *world.State, b *story.Beat, chapter int, decisions []combat.Decision) (*combat.Brief, error) {
	enemy := enemyFor(b, chapter)
	enc := b.EncounterType
	if enc == "" {
		enc = combat.EncounterMinor
	}
	sk := combatSkill(p, enemy.Principle)
	uBonus, uCtx := growth.CombatBonus(p, enemy.Category)
	var wBonus float64
	if sk != nil {
		wBonus = weapon.LoadoutBonus(&p.EquippedWeapons, sk.Principle)
	}
	in := combat.Input{
		Metrics:       p.CombatMetrics(),
		Resonance:     p.Resonance,
		Skill:         sk,
		Enemy:         enemy,
		Encounter:     enc,
		Decisions:     decisions,
		UniqueBonus:   uBonus,
		UniqueContext: uCtx,
		WeaponBonus:   wBonus,
		WeaponContext: weaponContext(p),
		FateBuffer:    p.FateBuffer,
		Chapter:       chapter,
		DefeatCount:   p.DefeatCount,
	}
	if b.BossTemplate != "" {
		if boss, ok := e.registry.Boss(b.BossTemplate); ok {
			in.Boss = boss
		} else {
			e.logger.Warn("Unknown boss template", "boss", b.BossTemplate)
		}
	}
	if enc == combat.EncounterBoss {
		in.Floor = e.registry.FloorModifier(w.NextFloor())
	}
	roll, err := crng.New(e.roller).Uniform()
	if err != nil {
		return nil, err
	}
	in.Roll = roll
	return e.resolver.Resolve(in)
}

// playMutationArc advances the mutation arc to scene k. A resolution
// scene reached without a decision resolves as resist.
func (e *Engine) playMutationArc(ctx context.Context, p *player.Player, k int, log *slog.Logger) *evolution.ArcInfo {
	st := &p.SkillEvolution
	if st.MutationInProgress == "" {
		if k == evolution.ArcResolution {
			return &evolution.ArcInfo{Scene: k, Phase: "resolution"}
		}
		return nil
	}
	if k == evolution.ArcResolution && st.MutationArcScene < evolution.ArcResolution {
		id := st.MutationInProgress
		if _, err := evolution.SubmitMutationChoice(p, evolution.ChoiceResist); err != nil {
			log.Warn("Default mutation resolution failed", "error", err)
			return nil
		}
		return &evolution.ArcInfo{SkillID: id, Scene: k, Phase: "resolution"}
	}
	info, err := evolution.AdvanceMutationArc(p, k)
	if err != nil {
		log.Warn("Mutation arc did not advance", "scene", k, "error", err)
		return nil
	}
	return info
}

// playUltimateArc advances the ultimate arc; the naming scene forges it.
func (e *Engine) playUltimateArc(ctx context.Context, p *player.Player, k int, log *slog.Logger) *growth.ArcInfo {
	info, err := growth.AdvanceUltimateArc(p, k)
	if err != nil {
		log.Warn("Ultimate arc did not advance", "scene", k, "error", err)
		return nil
	}
	if k == growth.ArcNaming {
		absorbed := p.OwnedSkill(info.AbsorbedID)
		form := e.pipe.Ultimate(ctx, p.UniqueSkill, absorbed)
		if err := growth.ApplyUltimate(p, form, info.AbsorbedID); err != nil {
			log.Warn("Ultimate could not be forged", "error", err)
		}
	}
	return info
}

// observeGrowth feeds the scene into the echo streak and acts on bloom and
// aspect gates.
func (e *Engine) observeGrowth(ctx context.Context, p *player.Player, log *slog.Logger) *growth.Event {
	ev := growth.ObserveScene(p, p.IdentityCoherence)
	if path := growth.BloomPathReady(p); path != skill.BloomPathNone && p.UniqueSkill.CurrentStage == skill.StageSeed {
		text := e.pipe.Bloom(ctx, p.UniqueSkill, path)
		if err := growth.ApplyBloom(p, path, text); err != nil {
			log.Warn("Bloom failed", "path", path, "error", err)
		} else {
			ev = &growth.Event{Type: growth.EventBloomReady, Path: path}
		}
	}
	if growth.AspectReady(p) && len(p.UniqueSkillGrowth.AspectOptions) == 0 {
		if err := growth.OfferAspects(p, e.pipe.Aspects(ctx, p.UniqueSkill)); err != nil {
			log.Warn("Aspect offer failed", "error", err)
		} else {
			ev = &growth.Event{Type: growth.EventAspectReady}
		}
	}
	return ev
}

// closeChapter assembles the chapter from its scenes, runs the identity
// graph and folds the result into the snapshots.
func (e *Engine) closeChapter(ctx context.Context, st *story.Story, ch *story.Chapter, p *player.Player, w *world.State, scenes []*story.Scene, chosen *story.Choice) (player.IdentityDelta, error) {
	prose := make([]string, 0, len(scenes))
	combatWins := 0
	for _, s := range scenes {
		prose = append(prose, s.Prose)
		if s.CombatBrief != nil && s.CombatBrief.FinalOutcome == combat.PlayerWins {
			combatWins++
		}
	}
	last := scenes[len(scenes)-1]
	ch.Prose = strings.Join(prose, "\n\n")
	ch.Choices = last.Choices
	if ch.Title == "" {
		ch.Title = last.Title
	}
	if e.summarizer != nil {
		ch.Summary = e.summarizer.Summarize(ctx, ch.ChapterNumber, ch.Prose)
	}
	if ch.Summary == "" {
		ch.Summary = memory.FallbackSummary(ch.Prose, 3)
	}
	ch.Completed = true

	led, err := e.loadLedger(ctx, st.ID)
	if err != nil {
		return player.IdentityDelta{}, err
	}
	s := pipeline.State{
		Story:         st,
		Player:        p,
		World:         w.Clone(),
		Ledger:        led,
		ChapterNumber: ch.ChapterNumber,
		ChosenChoice:  chosen,
		CRNGEvent:     ch.CRNGEvent,
		Plan:          ch.PlannerOutline,
		Draft:         &pipeline.Draft{Title: ch.Title, Prose: ch.Prose, Summary: ch.Summary},
		CombatOutcome: combatOutcome(last),
	}
	out, err := e.pipe.RunIdentity(ctx, s)
	if err != nil {
		return player.IdentityDelta{}, wrap(err, "failed to derive identity delta")
	}
	d := out.IdentityDelta
	if ch.IdentityDelta != nil && (d == nil || slices.Contains(out.Fallbacks, pipeline.NodeIdentity)) {
		d = ch.IdentityDelta
	}
	delta := e.finishChapter(p, ch, d, out.Loadout, out.WeaponUpdate, combatWins)
	if up := out.WeaponUpdate; up != nil {
		for _, ev := range up.Events {
			w.AddEvent(ev.Detail)
		}
	}
	st.PushSummary(ch.Summary, e.cfg.RollingSummaryChapters)
	st.UpdatedAt = e.now()
	last.IdentityDelta = &delta
	return delta, nil
}

func (e *Engine) recall(ctx context.Context, storyID, query string) string {
	if e.brain == nil || query == "" {
		return ""
	}
	out, err := e.brain.QueryContext(ctx, storyID, query, e.cfg.BrainMaxTokens)
	if err != nil {
		e.logger.Warn("Memory recall failed", "story_id", storyID, "error", err)
		return ""
	}
	return out
}

// awaken reports principles that moved during the scene and awakens
// skills for any principle that crossed the awakening threshold.
func awaken(p *player.Player, before principle.Resonance, reasons map[principle.Principle]string) ([]ResonanceEvent, []evolution.AwakeningResult) {
	var (
		events []ResonanceEvent
		woke   []evolution.AwakeningResult
	)
	for _, pr := range principle.All {
		was, now := before.Get(pr), p.Resonance.Get(pr)
		if was == now {
			continue
		}
		events = append(events, ResonanceEvent{Principle: pr, Before: was, After: now, Reason: reasons[pr]})
		if was < awakeningThreshold && now >= awakeningThreshold {
			woke = append(woke, evolution.Awaken(p, pr)...)
		}
	}
	return events, woke
}

func evolutionContext(res *SingleSceneResult) string {
	var parts []string
	if ev := res.SkillEvolutionEvent; ev != nil {
		parts = append(parts, fmt.Sprintf("Skill %s: %s (%s).", ev.SkillID, ev.Type, ev.Details))
	}
	if a := res.MutationArcInfo; a != nil {
		parts = append(parts, fmt.Sprintf("Mutation arc scene %d (%s) for %s.", a.Scene, a.Phase, a.SkillID))
	}
	if a := res.UltimateArcInfo; a != nil {
		parts = append(parts, fmt.Sprintf("Ultimate arc scene %d: %s.", a.Scene, a.Phase))
	}
	if g := res.GrowthEvent; g != nil {
		parts = append(parts, fmt.Sprintf("Unique skill growth: %s.", g.Type))
	}
	if s := res.SkillOffer; s != nil {
		parts = append(parts, "A new technique is offered: "+s.Name()+". "+s.Skin.DiscoveryLine)
	}
	for _, a := range res.AwakeningResults {
		parts = append(parts, fmt.Sprintf("%s awakens to %s.", a.SkillName, a.Principle))
	}
	if len(res.IntegrationOptions) > 0 {
		parts = append(parts, "At rest, two techniques could be fused.")
	}
	return strings.Join(parts, " ")
}

func sceneCategory(b *story.Beat, p *player.Player, chosen *story.Choice) string {
	if chosen != nil && p.UniqueSkill != nil && p.UniqueSkill.IsSkillChoice(chosen.Text) {
		return pipeline.ActionSkillUse
	}
	switch b.SceneType {
	case story.SceneCombat:
		return pipeline.ActionCombat
	case story.SceneDialogue:
		return pipeline.ActionSocial
	case story.SceneExploration, story.SceneDiscovery:
		return pipeline.ActionExploration
	}
	return pipeline.ActionOther
}

func choiceRisk(c *story.Choice) int {
	if c == nil {
		return 0
	}
	return c.RiskLevel
}

func combatOutcome(s *story.Scene) string {
	if s.CombatBrief == nil {
		return ""
	}
	return string(s.CombatBrief.FinalOutcome)
}
