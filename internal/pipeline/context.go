package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/amoisekai/engine/pkg/player"
	"github.com/amoisekai/engine/pkg/prompts"
	"github.com/amoisekai/engine/pkg/skill"
	"github.com/amoisekai/engine/pkg/textfilter"
)

// previousEndingChars is how much of the previous chapter's ending is
// carried into the next one.
const previousEndingChars = 1200

// ContextInput is everything the writer context block is assembled from.
type ContextInput struct {
	MemoryRecall    string
	Ledger          string
	World           string
	Villains        string
	Companions      string
	PreviousSummary string
	PreviousEnding  string
	Choice          string
	Consequences    *Consequences
	Player          *player.Player
	Gender          string
}

// BuildContextBlock renders the writer context in its fixed order: memory
// recall, ledger, world, villains, companions, previous summary, previous
// ending, choice, consequences, identity, unique skill, gender guidance.
func BuildContextBlock(in ContextInput) string {
	b := prompts.New("").
		WithSection("Memory recall", in.MemoryRecall).
		WithSection("Story ledger", in.Ledger).
		WithSection("World state", in.World).
		WithSection("Villains", in.Villains).
		WithSection("Companions", in.Companions).
		WithSection("Previous chapters", in.PreviousSummary).
		WithSection("Where the last chapter ended", tail(in.PreviousEnding, previousEndingChars)).
		WithSection("Player choice", in.Choice).
		WithSection("Consequences", consequenceBlock(in.Consequences)).
		WithSection("Protagonist", playerBlock(in.Player))
	if in.Player != nil {
		b.WithSection("Unique skill", UniqueSkillBlock(in.Player.UniqueSkill))
	}
	b.WithSection("Addressing the protagonist", GenderGuidance(in.Gender))
	return b.User()
}

func (p *Pipeline) contextNode(ctx context.Context, s State) (Patch, error) {
	recall := p.recall(ctx, s)
	in := ContextInput{
		MemoryRecall:    recall,
		Ledger:          ledgerBlock(s),
		Companions:      companionBlock(s),
		PreviousSummary: s.PreviousSummary,
		PreviousEnding:  s.PreviousProse,
		Choice:          s.ChoiceText(),
		Consequences:    s.Consequences,
		Player:          s.Player,
	}
	if s.World != nil {
		in.World = s.World.Overview()
		in.Villains = s.World.VillainContext(p.registry)
	}
	if s.Player != nil {
		in.Gender = s.Player.Gender
	}
	block := BuildContextBlock(in)
	return func(st *State) {
		st.MemoryRecall = recall
		st.ContextBlock = block
	}, nil
}

// recall asks the story brain for memories related to the choice and the
// plan. Failures yield no recall.
func (p *Pipeline) recall(ctx context.Context, s State) string {
	if p.brain == nil || s.Story == nil {
		return ""
	}
	query := s.ChoiceText()
	if s.Plan != nil && len(s.Plan.Beats) > 0 {
		query = strings.TrimSpace(query + " " + s.Plan.Beats[0].Description)
	}
	if query == "" {
		return ""
	}
	out, err := p.brain.QueryContext(ctx, s.Story.ID, query, p.cfg.BrainMaxTokens)
	if err != nil {
		p.logger.Warn("Memory recall failed", "story_id", s.Story.ID, "error", err)
		return ""
	}
	return out
}

// UniqueSkillBlock describes the unique skill at its current stage.
func UniqueSkillBlock(u *skill.UniqueSkill) string {
	if u == nil {
		return ""
	}
	var b strings.Builder
	name := u.Name
	if u.Title != "" {
		name = u.Title
	}
	fmt.Fprintf(&b, "%s (%s, %s stage): %s\n", name, u.Category, u.CurrentStage, u.Description)
	if u.Mechanic != "" {
		fmt.Fprintf(&b, "Mechanic: %s\n", u.Mechanic)
	}
	if u.Limitation != "" {
		fmt.Fprintf(&b, "Limitation: %s\n", u.Limitation)
	}
	if u.Weakness != "" {
		fmt.Fprintf(&b, "Weakness: %s\n", u.Weakness)
	}
	if u.DomainPassiveName != "" {
		fmt.Fprintf(&b, "Domain passive %s: %s\n", u.DomainPassiveName, u.DomainPassiveMechanic)
	}
	for _, ss := range u.SubSkills {
		fmt.Fprintf(&b, "Sub-skill %s (%s): %s\n", ss.Name, ss.Kind, ss.Mechanic)
	}
	if u.Ultimate != nil {
		fmt.Fprintf(&b, "Ultimate %s: %s\n", u.Ultimate.Name, u.Ultimate.Description)
	}
	return b.String()
}

// GenderGuidance tells the writer how NPCs address the protagonist.
func GenderGuidance(gender string) string {
	switch strings.ToLower(strings.TrimSpace(gender)) {
	case "male", "m", "nam":
		return "The protagonist is male. NPCs use he/him and male forms of address."
	case "female", "f", "nu", "nữ":
		return "The protagonist is female. NPCs use she/her and female forms of address."
	case "":
		return "The protagonist's gender is unstated. NPCs use they/them and neutral forms of address."
	default:
		return fmt.Sprintf("The protagonist is %s. NPCs use neutral forms of address unless the story establishes otherwise.", gender)
	}
}

func consequenceBlock(c *Consequences) string {
	if c == nil {
		return ""
	}
	var b strings.Builder
	for _, ch := range c.CausalChains {
		fmt.Fprintf(&b, "- %s", ch.Trigger)
		for _, l := range ch.Links {
			fmt.Fprintf(&b, " → %s", l)
		}
		fmt.Fprintf(&b, " (%s, cascade risk %.1f)\n", ch.Horizon, ch.CascadeRisk)
	}
	for _, r := range c.CharacterReactions {
		fmt.Fprintf(&b, "Reaction: %s\n", r)
	}
	for _, f := range c.Foreshadowing {
		fmt.Fprintf(&b, "Foreshadow: %s\n", f)
	}
	return b.String()
}

// tail keeps the last n bytes of s, starting on a word boundary.
func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	s = s[len(s)-n:]
	if i := strings.IndexByte(s, ' '); i >= 0 {
		s = s[i+1:]
	}
	return "…" + textfilter.CleanProse(s)
}
