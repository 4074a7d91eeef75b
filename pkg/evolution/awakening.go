package evolution

import (
	"slices"

	"github.com/amoisekai/engine/pkg/player"
	"github.com/amoisekai/engine/pkg/principle"
)

// AwakeningResult records one skill gaining the awakened principle.
type AwakeningResult struct {
	SkillID   string              `json:"skill_id"`
	SkillName string              `json:"skill_name"`
	Principle principle.Principle `json:"principle"`
	Slot      string              `json:"slot"`
}

// Awaken adds awakened to every equipped tier 1 or 2 skill whose primary
// sits next to it on the wheel. It ignores the per-chapter limit.
func Awaken(p *player.Player, awakened principle.Principle) []AwakeningResult {
	if !awakened.Valid() {
		return nil
	}
	var out []AwakeningResult
	for _, s := range p.Equipped() {
		if s.Absorbed || s.HasPrinciple(awakened) || !principle.SynergyAdjacent(s.Principle, awakened) {
			continue
		}
		var slot string
		switch s.Tier {
		case 1:
			if s.SecondaryPrinciple != "" {
				continue
			}
			s.SecondaryPrinciple = awakened
			slot = "secondary"
		case 2:
			if s.TertiaryPrinciple != "" {
				continue
			}
			s.TertiaryPrinciple = awakened
			slot = "tertiary"
		default:
			continue
		}
		s.AwakenedPrinciple = awakened
		if !slices.Contains(p.SkillEvolution.AwakenedSkills, s.ID) {
			p.SkillEvolution.AwakenedSkills = append(p.SkillEvolution.AwakenedSkills, s.ID)
		}
		out = append(out, AwakeningResult{SkillID: s.ID, SkillName: s.Name(), Principle: awakened, Slot: slot})
	}
	return out
}
