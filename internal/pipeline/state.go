package pipeline

import (
	"github.com/amoisekai/engine/pkg/crng"
	"github.com/amoisekai/engine/pkg/ledger"
	"github.com/amoisekai/engine/pkg/player"
	"github.com/amoisekai/engine/pkg/story"
	"github.com/amoisekai/engine/pkg/weapon"
	"github.com/amoisekai/engine/pkg/world"
)

// Action categories produced by the input parser.
const (
	ActionStealth     = "stealth"
	ActionExploration = "exploration"
	ActionSocial      = "social"
	ActionCombat      = "combat"
	ActionSoulChoice  = "soul_choice"
	ActionSkillUse    = "skill_use"
	ActionOther       = "other"
)

var ActionCategories = []string{
	ActionStealth, ActionExploration, ActionSocial, ActionCombat,
	ActionSoulChoice, ActionSkillUse, ActionOther,
}

// ParsedInput classifies the player's free text.
type ParsedInput struct {
	ActionCategory   string  `json:"action_category"`
	SkillReference   string  `json:"skill_reference"`
	PlayerIntent     string  `json:"player_intent"`
	ChoiceConfidence float64 `json:"choice_confidence"`
	MatchedChoiceID  string  `json:"matched_choice_id,omitempty"`
	Source           string  `json:"source"`
}

// CausalChain is trigger → link → link.
type CausalChain struct {
	Trigger     string   `json:"trigger"`
	Links       []string `json:"links"`
	Horizon     string   `json:"horizon"`
	CascadeRisk float64  `json:"cascade_risk"`
}

// FactionImplications are deltas to the empire scalars.
type FactionImplications struct {
	EmpireResonanceDelta float64 `json:"empire_resonance_delta"`
	IdentityAnchorDelta  float64 `json:"identity_anchor_delta"`
}

// Consequences is the simulator output.
type Consequences struct {
	CausalChains        []CausalChain       `json:"causal_chains"`
	FactionImplications FactionImplications `json:"faction_implications"`
	CharacterReactions  []string            `json:"character_reactions"`
	WorldUpdates        []string            `json:"world_updates"`
	Foreshadowing       []string            `json:"foreshadowing"`
	CompanionAffinity   map[string]float64  `json:"companion_affinity"`
	Source              string              `json:"source"`
}

// MaxCascadeRisk is the highest cascade risk of any chain.
func (c *Consequences) MaxCascadeRisk() float64 {
	best := 0.0
	for _, ch := range c.CausalChains {
		best = max(best, ch.CascadeRisk)
	}
	return best
}

// WorldUpdate converts the faction implications into a world update.
func (c *Consequences) WorldUpdate() world.Update {
	return world.Update{
		EmpireResonanceDelta: c.FactionImplications.EmpireResonanceDelta,
		IdentityAnchorDelta:  c.FactionImplications.IdentityAnchorDelta,
		Events:               c.WorldUpdates,
	}
}

// Draft is one writer attempt.
type Draft struct {
	Title    string         `json:"chapter_title"`
	Prose    string         `json:"prose"`
	Summary  string         `json:"summary"`
	Choices  []story.Choice `json:"choices"`
	Fallback bool           `json:"-"`
}

// Critique is a critic verdict.
type Critique struct {
	Score               float64 `json:"score"`
	Approved            bool    `json:"approved"`
	RewriteInstructions string  `json:"rewrite_instructions"`
	Source              string  `json:"source"`
}

// Output is what the chapter graph exposes.
type Output struct {
	Title   string         `json:"title"`
	Prose   string         `json:"prose"`
	Summary string         `json:"summary"`
	Choices []story.Choice `json:"choices"`
}

// State is shared by every node of a graph run.
type State struct {
	// Inputs set by the orchestrator.
	Story           *story.Story
	Player          *player.Player
	World           *world.State
	Ledger          *ledger.Ledger
	ChapterNumber   int
	PreviousSummary string
	PreviousProse   string
	OfferedChoices  []story.Choice
	ChosenChoice    *story.Choice
	FreeInput       string
	CRNGEvent       *crng.Event
	FateInstruction string
	Scheduled       []story.Beat
	StartingZone    string
	AdaptiveContext string
	CombatOutcome   string

	// Node outputs.
	Parsed        *ParsedInput
	Plan          *story.PlannerOutput
	Consequences  *Consequences
	MemoryRecall  string
	ContextBlock  string
	Draft         *Draft
	Critique      *Critique
	Rewrites      int
	ForceApproved bool
	IdentityDelta *player.IdentityDelta
	WeaponUpdate  *weapon.Update
	Loadout       *weapon.Loadout
	Output        *Output

	Trace     []string
	Fallbacks []string
}

// snapshot is the copy handed to a node. Mutable records are deep copied
// so a node cannot reach the runtime's state.
func (s State) snapshot() State {
	if s.Player != nil {
		s.Player = s.Player.Clone()
	}
	if s.World != nil {
		s.World = s.World.Clone()
	}
	s.Trace = append([]string(nil), s.Trace...)
	s.Fallbacks = append([]string(nil), s.Fallbacks...)
	return s
}

// ChoiceText is the chosen choice text followed by any free input.
func (s *State) ChoiceText() string {
	var out string
	if s.ChosenChoice != nil {
		out = s.ChosenChoice.Text
	}
	if s.FreeInput != "" {
		if out != "" {
			out += " / "
		}
		out += s.FreeInput
	}
	return out
}

// ActionCategory falls back to other when nothing was parsed.
func (s *State) ActionCategory() string {
	if s.Parsed != nil && s.Parsed.ActionCategory != "" {
		return s.Parsed.ActionCategory
	}
	if s.ChosenChoice != nil && s.Player != nil && s.Player.UniqueSkill != nil && s.Player.UniqueSkill.IsSkillChoice(s.ChosenChoice.Text) {
		return ActionSkillUse
	}
	return ActionOther
}
