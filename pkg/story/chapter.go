package story

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/amoisekai/engine/pkg/combat"
	"github.com/amoisekai/engine/pkg/crng"
	"github.com/amoisekai/engine/pkg/player"
)

type SceneType string

const (
	SceneCombat      SceneType = "combat"
	SceneExploration SceneType = "exploration"
	SceneDialogue    SceneType = "dialogue"
	SceneDiscovery   SceneType = "discovery"
	SceneRest        SceneType = "rest"
)

// ParseSceneType maps free text onto a scene type, defaulting to
// exploration.
func ParseSceneType(s string) SceneType {
	switch t := SceneType(s); t {
	case SceneCombat, SceneExploration, SceneDialogue, SceneDiscovery, SceneRest:
		return t
	}
	return SceneExploration
}

type Purpose string

const (
	PurposeRising      Purpose = "rising"
	PurposeClimax      Purpose = "climax"
	PurposeResolution  Purpose = "resolution"
	PurposeDevelopment Purpose = "development"
)

type Pacing string

const (
	PacingSlow   Pacing = "slow"
	PacingMedium Pacing = "medium"
	PacingFast   Pacing = "fast"
)

// Beat tags the planner injects for scheduled events.
const (
	TagSkillDiscovery  = "skill_discovery"
	TagMutationArc     = "mutation_arc"
	TagWeaponSoulLink  = "weapon_soul_link"
	TagWeaponAwakening = "weapon_awakening"
	TagWeaponRecovery  = "weapon_dormant_recovery"
	TagUltimateArc     = "ultimate_arc"
)

// SkillReward is the planner's plan to offer a skeleton in a beat.
type SkillReward struct {
	SkeletonID string `json:"skeleton_id"`
	Reason     string `json:"reason,omitempty"`
}

// Beat is one planned unit of a chapter; it maps 1:1 to a scene.
type Beat struct {
	Description   string               `json:"description"`
	Tension       int                  `json:"tension"`
	Purpose       Purpose              `json:"purpose"`
	SceneType     SceneType            `json:"scene_type"`
	Mood          string               `json:"mood"`
	SkillReward   *SkillReward         `json:"skill_reward,omitempty"`
	CombatBrief   *combat.Brief        `json:"combat_brief,omitempty"`
	EncounterType combat.EncounterType `json:"encounter_type,omitempty"`
	Enemy         *combat.EnemyProfile `json:"enemy,omitempty"`
	BossTemplate  string               `json:"boss_template,omitempty"`
	Tags          []string             `json:"tags,omitempty"`
}

// HasTag reports whether the beat carries tag, ignoring any ":n" suffix.
func (b *Beat) HasTag(tag string) bool {
	for _, t := range b.Tags {
		if t == tag || len(t) > len(tag) && t[:len(tag)] == tag && t[len(tag)] == ':' {
			return true
		}
	}
	return false
}

// Normalize clamps tension and fills defaults.
func (b *Beat) Normalize() {
	b.Tension = min(max(b.Tension, 1), 10)
	b.SceneType = ParseSceneType(string(b.SceneType))
	switch b.Purpose {
	case PurposeRising, PurposeClimax, PurposeResolution, PurposeDevelopment:
	default:
		b.Purpose = PurposeDevelopment
	}
	if b.SceneType == SceneCombat && b.EncounterType == "" {
		b.EncounterType = combat.EncounterMinor
	}
}

// PlannerOutput is the chapter outline produced by the planner node.
type PlannerOutput struct {
	Beats          []Beat   `json:"beats"`
	ChapterTension int      `json:"chapter_tension"`
	Pacing         Pacing   `json:"pacing"`
	EmotionalArc   string   `json:"emotional_arc"`
	NewCharacters  []string `json:"new_characters,omitempty"`
	WorldChanges   []string `json:"world_changes,omitempty"`
	StartingZone   string   `json:"starting_zone,omitempty"`
}

// FallbackPlan is used when the planner cannot produce an outline.
func FallbackPlan(zone string) PlannerOutput {
	return PlannerOutput{
		Beats: []Beat{{
			Description: "The protagonist takes stock of the surroundings and presses onward.",
			Tension:     4,
			Purpose:     PurposeDevelopment,
			SceneType:   SceneExploration,
			Mood:        "uneasy",
		}},
		ChapterTension: 4,
		Pacing:         PacingMedium,
		EmotionalArc:   "uncertainty to resolve",
		StartingZone:   zone,
	}
}

// Chapter is an ordered child of a story.
type Chapter struct {
	ID                   string                `json:"id"`
	StoryID              string                `json:"story_id"`
	ChapterNumber        int                   `json:"chapter_number"`
	Title                string                `json:"title"`
	PlannerOutline       *PlannerOutput        `json:"planner_outline,omitempty"`
	TotalScenes          int                   `json:"total_scenes"`
	Prose                string                `json:"prose"`
	Summary              string                `json:"summary"`
	IdentityDelta        *player.IdentityDelta `json:"identity_delta,omitempty"`
	CRNGEvent            *crng.Event           `json:"crng_event,omitempty"`
	FateInstruction      string                `json:"fate_instruction,omitempty"`
	Choices              []Choice              `json:"choices,omitempty"`
	Completed            bool                  `json:"completed"`
	ScenesGenerated      int                   `json:"scenes_generated"`
	SkillUsesThisChapter int                   `json:"skill_uses_this_chapter"`
	CreatedAt            time.Time             `json:"created_at"`
	UpdatedAt            time.Time             `json:"updated_at"`
}

// Beat returns the beat for scene n (1-based).
func (c *Chapter) Beat(n int) (*Beat, error) {
	if c.PlannerOutline == nil || n < 1 || n > len(c.PlannerOutline.Beats) {
		return nil, fmt.Errorf("chapter %d has no beat for scene %d", c.ChapterNumber, n)
	}
	return &c.PlannerOutline.Beats[n-1], nil
}

// SetOutline stores the outline and derives total_scenes.
func (c *Chapter) SetOutline(out PlannerOutput) {
	for i := range out.Beats {
		out.Beats[i].Normalize()
	}
	c.PlannerOutline = &out
	c.TotalScenes = len(out.Beats)
}

// IdentityDeltaJSON renders the stored chapter delta.
func (c *Chapter) IdentityDeltaJSON() string {
	if c.IdentityDelta == nil {
		return ""
	}
	data, _ := json.Marshal(c.IdentityDelta)
	return string(data)
}
