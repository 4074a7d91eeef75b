package growth

import (
	"fmt"

	"github.com/amoisekai/engine/pkg/player"
	"github.com/amoisekai/engine/pkg/skill"
)

// AspectReady reports whether the aspect gate holds.
func AspectReady(p *player.Player) bool {
	u := p.UniqueSkill
	g := &p.UniqueSkillGrowth
	return u != nil && u.CurrentStage == skill.StageBloom && g.BloomCompleted && !g.AspectForged &&
		p.ResonanceMastery.Rank >= AspectRank && u.UsageCount >= AspectUsage
}

// FallbackAspectOptions returns the two options used when generation fails.
func FallbackAspectOptions(u *skill.UniqueSkill) []skill.AspectOption {
	mk := func(key, form, active, passive string) skill.AspectOption {
		return skill.AspectOption{
			Key:         key,
			Name:        fmt.Sprintf("%s: %s", u.Name, form),
			Description: fmt.Sprintf("%s settles into its %s form.", u.Name, form),
			Mechanic:    fmt.Sprintf("%s (%s)", u.Mechanic, form),
			Weakness:    "Transformed: " + u.Weakness,
			ActiveSubSkill: skill.SubSkill{
				Name: active, Mechanic: "A focused release of the aspect's power.", Kind: skill.SubSkillActive,
			},
			PassiveSubSkill: skill.SubSkill{
				Name: passive, Mechanic: "The aspect hums beneath every action.", Kind: skill.SubSkillPassive,
			},
		}
	}
	return []skill.AspectOption{
		mk("A", "Bastion", "Unyielding Stand", "Quiet Weight"),
		mk("B", "Edge", "Severing Line", "Honed Sense"),
	}
}

// OfferAspects stores the two options for the player to choose from.
func OfferAspects(p *player.Player, opts []skill.AspectOption) error {
	if !AspectReady(p) {
		return ErrNotReady
	}
	if len(opts) != 2 {
		opts = FallbackAspectOptions(p.UniqueSkill)
	}
	p.UniqueSkillGrowth.AspectOptions = opts
	return nil
}

// ChooseAspect forges the chosen aspect. The weakness is rewritten, never
// removed.
func ChooseAspect(p *player.Player, key string) error {
	if !AspectReady(p) {
		return ErrNotReady
	}
	g := &p.UniqueSkillGrowth
	var chosen *skill.AspectOption
	for i := range g.AspectOptions {
		if g.AspectOptions[i].Key == key {
			chosen = &g.AspectOptions[i]
		}
	}
	if chosen == nil {
		return fmt.Errorf("%w: %q", ErrUnknownAspect, key)
	}
	u := p.UniqueSkill
	if chosen.Mechanic != "" {
		u.Mechanic = chosen.Mechanic
	}
	if chosen.Weakness != "" {
		u.Weakness = chosen.Weakness
	} else {
		u.Weakness = "Transformed: " + u.Weakness
	}
	active, passive := chosen.ActiveSubSkill, chosen.PassiveSubSkill
	active.Kind, active.Stage = skill.SubSkillActive, skill.StageAspect
	passive.Kind, passive.Stage = skill.SubSkillPassive, skill.StageAspect
	u.SubSkills = append(u.SubSkills, active, passive)
	u.CurrentStage = skill.StageAspect
	u.SuppressionResistance = skill.SuppressionAspect
	g.AspectForged = true
	g.AspectChosen = key
	g.AspectOptions = nil
	g.MutationLocked = true
	g.SubSkillsUnlocked = len(u.SubSkills)
	return nil
}
