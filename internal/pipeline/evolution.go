package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/amoisekai/engine/pkg/chat"
	"github.com/amoisekai/engine/pkg/evolution"
	"github.com/amoisekai/engine/pkg/growth"
	"github.com/amoisekai/engine/pkg/prompts"
	"github.com/amoisekai/engine/pkg/skill"
)

func chatCreative() []chat.Option {
	return []chat.Option{chat.WithBackendModel(), chat.WithTemperature(0.9), chat.WithMaxTokens(1024)}
}

// MutatedSkill writes the text of a mutated skill.
func (p *Pipeline) MutatedSkill(ctx context.Context, src *skill.PlayerSkill, mt evolution.MutationType) evolution.GeneratedSkill {
	fb := evolution.FallbackMutation(src.Name(), mt)
	b := prompts.New("").
		WithSection("Source skill", skillBlock(src)).
		WithSectionf("Evolution", "Mutation of type %s. The skill is twisted by the wielder's instability.", mt).
		WithSection("Mechanic pattern", fb.Mechanic).
		WithFooter("Design the mutated skill.")
	return p.generated(ctx, b, fb)
}

// IntegratedSkill writes the text of the skill fused from a and b.
func (p *Pipeline) IntegratedSkill(ctx context.Context, a, b *skill.PlayerSkill, opt evolution.IntegrationOption) evolution.GeneratedSkill {
	fb := evolution.GeneratedSkill{
		Name:       opt.Template.BlendName,
		Mechanic:   opt.Template.MechanicPattern,
		Limitation: "Draws on both source techniques at once; neither can be used alone while it is active.",
		Weakness:   fmt.Sprintf("Costs %s instability when pushed.", opt.Template.InstabilityCost),
	}
	pb := prompts.New("").
		WithSection("First source", skillBlock(a)).
		WithSection("Second source", skillBlock(b)).
		WithSectionf("Evolution", "Integration into a tier %d skill%s. %s", opt.ResultTier, enhancedNote(opt.Enhanced), opt.Template.Flavor).
		WithSection("Mechanic pattern", opt.Template.MechanicPattern).
		WithFooter("Design the integrated skill.")
	return p.generated(ctx, pb, fb)
}

func (p *Pipeline) generated(ctx context.Context, b *prompts.Builder, fb evolution.GeneratedSkill) evolution.GeneratedSkill {
	var g evolution.GeneratedSkill
	err := p.completeJSON(ctx, NodeEvolution, prompts.Evolution, nil, b, &g,
		[]string{"name", "mechanic", "limitation", "weakness"}, chatCreative()...)
	if err == nil && (strings.TrimSpace(g.Name) == "" || strings.TrimSpace(g.Mechanic) == "") {
		err = fmt.Errorf("evolved skill is missing a name or mechanic")
	}
	if err != nil {
		p.fallback(NodeEvolution, err)
		return fb
	}
	if strings.TrimSpace(g.Weakness) == "" {
		g.Weakness = fb.Weakness
	}
	if strings.TrimSpace(g.Limitation) == "" {
		g.Limitation = fb.Limitation
	}
	return g
}

// Bloom writes the sub-skill and transformed weakness of a bloom.
func (p *Pipeline) Bloom(ctx context.Context, u *skill.UniqueSkill, path skill.BloomPath) growth.BloomText {
	fb := growth.FallbackBloom(u, path)
	b := prompts.New("").
		WithSection("Unique skill", UniqueSkillBlock(u)).
		WithSectionf("Growth", "Seed to bloom along the %s path.", path).
		WithSection("Fields", `{"sub_skill": {"name": "...", "mechanic": "...", "kind": "active|passive|reactive"}, "weakness": "the transformed weakness"}`).
		WithFooter("Describe the bloom.")

	var out growth.BloomText
	err := p.completeJSON(ctx, NodeGrowth, prompts.Growth, nil, b, &out, []string{"sub_skill", "weakness"}, chatCreative()...)
	if err == nil && strings.TrimSpace(out.SubSkill.Name) == "" {
		err = fmt.Errorf("bloom has no sub-skill")
	}
	if err != nil {
		p.fallback(NodeGrowth, err)
		return fb
	}
	switch out.SubSkill.Kind {
	case skill.SubSkillActive, skill.SubSkillPassive, skill.SubSkillReactive:
	default:
		out.SubSkill.Kind = fb.SubSkill.Kind
	}
	if strings.TrimSpace(out.Weakness) == "" {
		out.Weakness = fb.Weakness
	}
	return out
}

// Aspects writes the two aspect options.
func (p *Pipeline) Aspects(ctx context.Context, u *skill.UniqueSkill) []skill.AspectOption {
	fb := growth.FallbackAspectOptions(u)
	b := prompts.New("").
		WithSection("Unique skill", UniqueSkillBlock(u)).
		WithSection("Growth", "Bloom to aspect. Offer two distinct forms, keys A and B.").
		WithSection("Fields", `{"options": [{"key": "A", "name": "...", "description": "...", "mechanic": "...", "weakness": "...", "active_sub_skill": {"name": "...", "mechanic": "..."}, "passive_sub_skill": {"name": "...", "mechanic": "..."}}]}`).
		WithFooter("Describe both aspects.")

	var out struct {
		Options []skill.AspectOption `json:"options"`
	}
	err := p.completeJSON(ctx, NodeGrowth, prompts.Growth, nil, b, &out, []string{"options"}, chatCreative()...)
	if err == nil && len(out.Options) != 2 {
		err = fmt.Errorf("got %d aspect options, want 2", len(out.Options))
	}
	if err != nil {
		p.fallback(NodeGrowth, err)
		return fb
	}
	for i := range out.Options {
		o := &out.Options[i]
		o.Key = fb[i].Key
		o.ActiveSubSkill.Kind = skill.SubSkillActive
		o.PassiveSubSkill.Kind = skill.SubSkillPassive
		if strings.TrimSpace(o.Weakness) == "" {
			o.Weakness = fb[i].Weakness
		}
		if strings.TrimSpace(o.Name) == "" {
			o.Name = fb[i].Name
		}
	}
	return out.Options
}

// Ultimate writes the ultimate form at the naming scene.
func (p *Pipeline) Ultimate(ctx context.Context, u *skill.UniqueSkill, absorbed *skill.PlayerSkill) growth.UltimateForm {
	fb := growth.FallbackUltimate(u, absorbed)
	b := prompts.New("").
		WithSection("Unique skill", UniqueSkillBlock(u)).
		WithSection("Absorbed skill", skillBlock(absorbed)).
		WithSection("Growth", "Aspect to ultimate. The absorbed skill merges into the unique skill and the wielder earns a title.").
		WithSection("Fields", `{"title_name": "...", "honorific": "...", "title": "...", "transcendent_core": "...", "ultimate_ability": {"name": "...", "description": "...", "weakness": "..."}}`).
		WithFooter("Name the ultimate.")

	var out growth.UltimateForm
	err := p.completeJSON(ctx, NodeGrowth, prompts.Growth, nil, b, &out,
		[]string{"title_name", "honorific", "title", "transcendent_core", "ultimate_ability"}, chatCreative()...)
	if err == nil && (strings.TrimSpace(out.TitleName) == "" || strings.TrimSpace(out.Honorific) == "") {
		err = fmt.Errorf("ultimate is missing its name")
	}
	if err != nil {
		p.fallback(NodeGrowth, err)
		return fb
	}
	if strings.TrimSpace(out.Ability.Name) == "" {
		out.Ability = fb.Ability
	}
	if strings.TrimSpace(out.Ability.Weakness) == "" {
		out.Ability.Weakness = fb.Ability.Weakness
	}
	return out
}

func skillBlock(s *skill.PlayerSkill) string {
	if s == nil {
		return ""
	}
	return fmt.Sprintf("%s (tier %d, %s)\nMechanic: %s\nLimitation: %s\nWeakness: %s",
		s.Name(), s.Tier, strings.Join(principleNames(s), "/"), s.Mechanic, s.Limitation, s.Weakness)
}

func principleNames(s *skill.PlayerSkill) []string {
	ps := s.Principles()
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = string(p)
	}
	return out
}

func enhancedNote(enhanced bool) string {
	if enhanced {
		return ", enhanced"
	}
	return ""
}
