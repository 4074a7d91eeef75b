package evolution

import (
	"github.com/amoisekai/engine/pkg/combat"
	"github.com/amoisekai/engine/pkg/player"
)

// RecordUsage credits skillID for one scene. Combat scenes credit every
// non-unfavorable phase; other scenes credit once unless the outcome was
// unfavorable. It returns the number of uses added.
func RecordUsage(p *player.Player, skillID string, brief *combat.Brief, outcome combat.Outcome) int {
	s := p.OwnedSkill(skillID)
	if s == nil {
		return 0
	}
	n := 1
	if brief != nil {
		n = brief.CountsAsUse()
	} else if outcome == combat.OutcomeUnfavorable {
		n = 0
	}
	if n == 0 {
		return 0
	}
	s.UsageCount += n
	st := &p.SkillEvolution
	if st.RefinementTrackers == nil {
		st.RefinementTrackers = make(map[string]int)
	}
	st.RefinementTrackers[skillID] += n
	return n
}
