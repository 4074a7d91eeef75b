package orchestrator

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/amoisekai/engine/pkg/combat"
	"github.com/amoisekai/engine/pkg/evolution"
	"github.com/amoisekai/engine/pkg/growth"
	"github.com/amoisekai/engine/pkg/player"
	"github.com/amoisekai/engine/pkg/story"
	"github.com/amoisekai/engine/pkg/weapon"
)

// skillRewardInterval is how many chapters pass between catalog skill
// offers.
const skillRewardInterval = 3

// TagStoryEvent marks a beat built from an externally queued event.
const TagStoryEvent = "story_event"

// scheduleBeats collects the beats the planner must include this chapter.
// It updates the chapters_since_last_skill counter on p.
func (e *Engine) scheduleBeats(ctx context.Context, storyID string, p *player.Player, chapter int) []story.Beat {
	var beats []story.Beat
	if b, ok := e.skillRewardBeat(p, chapter); ok {
		beats = append(beats, b)
	}
	beats = append(beats, mutationArcBeats(p)...)
	beats = append(beats, ultimateArcBeats(p)...)
	beats = append(beats, weaponBeats(p)...)
	beats = append(beats, e.queuedEventBeats(ctx, storyID)...)
	return beats
}

func (e *Engine) skillRewardBeat(p *player.Player, chapter int) (story.Beat, bool) {
	p.ChaptersSinceLastSkill++
	if p.PendingSkill != nil {
		return story.Beat{}, false
	}
	if p.ChaptersSinceLastSkill < skillRewardInterval && len(p.OwnedSkills) > 0 {
		return story.Beat{}, false
	}
	sk, ok := e.catalog.SelectReward(p.Resonance, p.OwnedIDs(), chapter)
	if !ok {
		return story.Beat{}, false
	}
	p.ChaptersSinceLastSkill = 0
	return story.Beat{
		Description: fmt.Sprintf("A technique of %s surfaces in the protagonist's grasp: %s.", sk.Principle, sk.CatalogName),
		Tension:     5,
		Purpose:     story.PurposeDevelopment,
		SceneType:   story.SceneDiscovery,
		Mood:        "wondering",
		SkillReward: &story.SkillReward{
			SkeletonID: sk.ID,
			Reason:     fmt.Sprintf("resonance with %s has grown strong enough to answer", sk.Principle),
		},
		Tags: []string{story.TagSkillDiscovery},
	}, true
}

func mutationArcBeats(p *player.Player) []story.Beat {
	st := &p.SkillEvolution
	if st.MutationInProgress == "" {
		return nil
	}
	name := st.MutationInProgress
	if s := p.OwnedSkill(name); s != nil {
		name = s.Name()
	}
	var beats []story.Beat
	for n := st.MutationArcScene + 1; n <= evolution.ArcResolution; n++ {
		b := story.Beat{
			Tension: 6,
			Purpose: story.PurposeRising,
			Mood:    "unsettled",
			Tags:    []string{arcTag(story.TagMutationArc, n)},
		}
		switch n {
		case evolution.ArcDecision:
			b.SceneType = story.SceneDialogue
			b.Description = fmt.Sprintf("%s twists against its wielder. It must be accepted, resisted or bound.", name)
			b.Tension = 7
		case evolution.ArcResolution:
			b.SceneType = story.SceneExploration
			b.Description = fmt.Sprintf("The change in %s settles one way or the other.", name)
			b.Purpose = story.PurposeResolution
		default:
			b.SceneType = story.SceneDiscovery
			b.Description = fmt.Sprintf("%s misfires and shows a shape it never had.", name)
		}
		beats = append(beats, b)
	}
	return beats
}

func ultimateArcBeats(p *player.Player) []story.Beat {
	if !growth.UltimateReady(p) {
		return nil
	}
	u := p.UniqueSkill
	var beats []story.Beat
	for n := p.UniqueSkillGrowth.UltimateArcScene + 1; n <= growth.ArcNaming; n++ {
		b := story.Beat{
			Tension: 7 + n,
			Purpose: story.PurposeClimax,
			Tags:    []string{arcTag(story.TagUltimateArc, n)},
		}
		switch n {
		case growth.ArcLimit:
			b.SceneType = story.SceneCombat
			b.EncounterType = combat.EncounterDuel
			b.Description = fmt.Sprintf("%s reaches the edge of what it can do and the edge pushes back.", u.Name)
			b.Mood = "strained"
		case growth.ArcResonance:
			b.SceneType = story.SceneDiscovery
			b.Description = fmt.Sprintf("A mastered technique hums in answer to %s.", u.Name)
			b.Mood = "resonant"
		default:
			b.SceneType = story.SceneDiscovery
			b.Description = fmt.Sprintf("%s is named anew and the world hears the name.", u.Name)
			b.Mood = "awed"
		}
		beats = append(beats, b)
	}
	return beats
}

func weaponBeats(p *player.Player) []story.Beat {
	l := &p.EquippedWeapons
	var beats []story.Beat
	if weapon.NeedsRecoveryBeat(l, p.Instability) {
		beats = append(beats, story.Beat{
			Description: "A dormant weapon stirs now that the wielder's mind has quieted.",
			Tension:     3,
			Purpose:     story.PurposeDevelopment,
			SceneType:   story.SceneRest,
			Mood:        "quiet",
			Tags:        []string{story.TagWeaponRecovery},
		})
	}
	if w := weapon.PendingSoulLink(l); w != nil {
		beats = append(beats, story.Beat{
			Description: fmt.Sprintf("%s answers the wielder's intent before it is spoken.", w.Name),
			Tension:     6,
			Purpose:     story.PurposeRising,
			SceneType:   story.SceneCombat,
			Mood:        "attuned",
			Tags:        []string{story.TagWeaponSoulLink},
		})
	}
	if w := weapon.PendingAwakening(l); w != nil {
		beats = append(beats, story.Beat{
			Description: fmt.Sprintf("%s wakes fully in the heart of a decisive fight.", w.Name),
			Tension:     9,
			Purpose:     story.PurposeClimax,
			SceneType:   story.SceneCombat,
			Mood:        "blazing",
			Tags:        []string{story.TagWeaponAwakening},
		})
	}
	return beats
}

func (e *Engine) queuedEventBeats(ctx context.Context, storyID string) []story.Beat {
	if e.events == nil {
		return nil
	}
	events, err := e.events.Dequeue(ctx, storyID)
	if err != nil {
		e.logger.Warn("Failed to drain story events", "story_id", storyID, "error", err)
		return nil
	}
	beats := make([]story.Beat, 0, len(events))
	for _, ev := range events {
		beats = append(beats, story.Beat{
			Description: ev,
			Tension:     6,
			Purpose:     story.PurposeRising,
			SceneType:   story.SceneExploration,
			Mood:        "tense",
			Tags:        []string{TagStoryEvent},
		})
	}
	return beats
}

func arcTag(tag string, n int) string { return tag + ":" + strconv.Itoa(n) }

// arcScene returns n for a beat tagged "tag:n", or 0.
func arcScene(b *story.Beat, tag string) int {
	for _, t := range b.Tags {
		rest, ok := strings.CutPrefix(t, tag+":")
		if !ok {
			continue
		}
		if n, err := strconv.Atoi(rest); err == nil {
			return n
		}
	}
	return 0
}
