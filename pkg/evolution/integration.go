package evolution

import (
	"fmt"
	"slices"

	"github.com/amoisekai/engine/pkg/player"
	"github.com/amoisekai/engine/pkg/principle"
	"github.com/amoisekai/engine/pkg/skill"
)

// IntegrationOption is a pair of equipped skills that may be fused.
type IntegrationOption struct {
	SkillA     string                      `json:"skill_a"`
	SkillB     string                      `json:"skill_b"`
	NameA      string                      `json:"name_a"`
	NameB      string                      `json:"name_b"`
	ResultTier int                         `json:"result_tier"`
	Enhanced   bool                        `json:"enhanced"`
	Template   skill.PrinciplePairTemplate `json:"template"`
}

// IntegrationTier applies the tier rule. ok is false when the pair cannot
// produce a skill at the current rank.
func IntegrationTier(a, b int, rank player.Rank) (tier int, enhanced bool, ok bool) {
	if a > b {
		a, b = b, a
	}
	switch {
	case a == 1 && b == 1:
		return 2, false, true
	case a == 1 && b == 2:
		return 2, true, true
	case a == 2 && b == 2:
		return 3, false, rank >= player.RankHarmonized
	}
	return 0, false, false
}

func pairKey(a, b *skill.PlayerSkill) string {
	return principle.NewPair(a.Principle, b.Principle).String()
}

// IntegrationCandidates lists every fusable pair. It returns nil outside
// rest scenes, below rank 3 or once the integration budget is spent.
func IntegrationCandidates(p *player.Player, atRest bool) []IntegrationOption {
	st := &p.SkillEvolution
	if !atRest || p.ResonanceMastery.Rank < player.RankStabilized || st.IntegrationsDone >= MaxIntegrations {
		return nil
	}
	eq := p.Equipped()
	var out []IntegrationOption
	for i := 0; i < len(eq); i++ {
		for j := i + 1; j < len(eq); j++ {
			a, b := eq[i], eq[j]
			if opt, err := checkPair(p, a, b); err == nil {
				out = append(out, *opt)
			}
		}
	}
	return out
}

func checkPair(p *player.Player, a, b *skill.PlayerSkill) (*IntegrationOption, error) {
	if a.Absorbed || b.Absorbed || a.UsageCount < IntegrationUses || b.UsageCount < IntegrationUses {
		return nil, ErrNotIntegrable
	}
	if !skill.SharesPrinciple(a, b) {
		return nil, ErrNotIntegrable
	}
	if slices.Contains(p.SkillEvolution.IntegratedPairs, pairKey(a, b)) {
		return nil, fmt.Errorf("%w: %s", ErrPairAlreadyIntegrated, pairKey(a, b))
	}
	tier, enhanced, ok := IntegrationTier(a.Tier, b.Tier, p.ResonanceMastery.Rank)
	if !ok {
		return nil, fmt.Errorf("%w: tiers %d and %d", ErrNotIntegrable, a.Tier, b.Tier)
	}
	tmpl, err := skill.PairTemplate(a.Principle, b.Principle)
	if err != nil {
		return nil, err
	}
	return &IntegrationOption{
		SkillA:     a.ID,
		SkillB:     b.ID,
		NameA:      a.Name(),
		NameB:      b.Name(),
		ResultTier: tier,
		Enhanced:   enhanced,
		Template:   tmpl,
	}, nil
}

// Integrate fuses a and b into a new skill, consuming both. gen may be
// zero, in which case the pair template supplies the text.
func Integrate(p *player.Player, aID, bID string, atRest bool, chapter int, gen GeneratedSkill) (*skill.PlayerSkill, error) {
	st := &p.SkillEvolution
	switch {
	case !atRest:
		return nil, ErrNotRestScene
	case p.ResonanceMastery.Rank < player.RankStabilized:
		return nil, ErrRankTooLow
	case st.IntegrationsDone >= MaxIntegrations:
		return nil, ErrIntegrationLimit
	}
	a, b := p.OwnedSkill(aID), p.OwnedSkill(bID)
	if a == nil || b == nil || aID == bID || !p.IsEquipped(aID) || !p.IsEquipped(bID) {
		return nil, ErrSkillNotFound
	}
	opt, err := checkPair(p, a, b)
	if err != nil {
		return nil, err
	}
	key := pairKey(a, b)
	out := skill.PlayerSkill{
		ID:                 fmt.Sprintf("int_%s_%s", a.ID, b.ID),
		Skin:               skill.NarrativeSkin{DisplayName: opt.Template.BlendName, Description: opt.Template.Flavor},
		Principle:          a.Principle,
		SecondaryPrinciple: b.Principle,
		Archetype:          a.Archetype,
		Category:           a.Category,
		DamageType:         a.DamageType,
		Delivery:           b.Delivery,
		Tier:               opt.ResultTier,
		Enhanced:           opt.Enhanced,
		Mechanic:           opt.Template.MechanicPattern,
		Limitation:         fmt.Sprintf("Costs %s instability to hold both halves together.", opt.Template.InstabilityCost),
		Weakness:           a.Weakness,
		AcquiredChapter:    chapter,
		SourceSkillIDs:     []string{a.ID, b.ID},
	}
	if out.SecondaryPrinciple == out.Principle {
		out.SecondaryPrinciple = ""
	}
	if gen.Name != "" {
		out.Skin.DisplayName = gen.Name
	}
	if gen.Mechanic != "" {
		out.Mechanic = gen.Mechanic
	}
	if gen.Limitation != "" {
		out.Limitation = gen.Limitation
	}
	if gen.Weakness != "" {
		out.Weakness = gen.Weakness
	}
	p.RemoveSkill(aID)
	p.RemoveSkill(bID)
	if err := p.AddSkill(out); err != nil {
		return nil, err
	}
	st.IntegrationsDone++
	st.IntegratedPairs = append(st.IntegratedPairs, key)
	st.LastEvolutionChapter = chapter
	return p.OwnedSkill(out.ID), nil
}
