package growth

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/amoisekai/engine/pkg/player"
	"github.com/amoisekai/engine/pkg/skill"
)

// Combat bonus components.
const (
	BonusBase          = 0.01
	BonusDomain        = 0.03
	BonusBloom         = 0.02
	BonusScarDefensive = 0.01
	BonusAspect        = 0.02
	MaxStageBonus      = 0.08
	BonusPerSubSkill   = 0.01
	MaxSubSkillBonus   = 0.03
	BonusClause        = 0.01
)

// StageBonus is the stage contribution of the unique skill.
func StageBonus(u *skill.UniqueSkill, g *skill.UniqueSkillGrowthState, enemy skill.Category) float64 {
	if u == nil {
		return 0
	}
	if u.CurrentStage == skill.StageUltimate {
		return MaxStageBonus
	}
	b := BonusBase
	if enemy != "" && enemy == u.Category {
		b += BonusDomain
	}
	if u.CurrentStage.AtLeast(skill.StageBloom) {
		b += BonusBloom
		if g.BloomPath == skill.BloomPathScar && g.ScarType == skill.ScarDefensive {
			b += BonusScarDefensive
		}
	}
	if u.CurrentStage.AtLeast(skill.StageAspect) {
		b += BonusAspect
	}
	return min(b, MaxStageBonus)
}

// SubSkillBonus counts passives always and active or reactive sub-skills
// only in combat.
func SubSkillBonus(u *skill.UniqueSkill, inCombat bool) float64 {
	if u == nil {
		return 0
	}
	n := 0
	for _, s := range u.SubSkills {
		if s.Kind == skill.SubSkillPassive || inCombat {
			n++
		}
	}
	return min(float64(n)*BonusPerSubSkill, MaxSubSkillBonus)
}

// ClauseHolds evaluates a trigger such as "hp < 30%" against the player.
// Unknown metrics or malformed triggers evaluate to false.
func ClauseHolds(trigger string, p *player.Player) bool {
	f := strings.Fields(trigger)
	if len(f) != 3 {
		return false
	}
	raw := f[2]
	pct := strings.HasSuffix(raw, "%")
	want, err := strconv.ParseFloat(strings.TrimSuffix(raw, "%"), 64)
	if err != nil {
		return false
	}
	got, ok := metric(p, strings.ToLower(f[0]), pct)
	if !ok {
		return false
	}
	switch f[1] {
	case "<":
		return got < want
	case "<=":
		return got <= want
	case ">":
		return got > want
	case ">=":
		return got >= want
	case "==", "=":
		return got == want
	}
	return false
}

func metric(p *player.Player, name string, pct bool) (float64, bool) {
	switch name {
	case "hp":
		if pct {
			return p.HPFraction() * 100, true
		}
		return p.HP, true
	case "stability":
		return p.Stability, true
	case "instability":
		return p.Instability, true
	case "coherence", "identity_coherence":
		return p.IdentityCoherence, true
	case "dqs", "decision_quality":
		return p.DecisionQualityScore, true
	case "breakthrough":
		return p.BreakthroughMeter, true
	case "echo", "echo_trace":
		return p.EchoTrace, true
	}
	return 0, false
}

// CombatBonus is the full unique-skill contribution to a combat score and
// the context line shown to the writer.
func CombatBonus(p *player.Player, enemy skill.Category) (float64, string) {
	u := p.UniqueSkill
	if u == nil {
		return 0, ""
	}
	stage := StageBonus(u, &p.UniqueSkillGrowth, enemy)
	sub := SubSkillBonus(u, true)
	clause := 0.0
	if u.UniqueClauseTrigger != "" && ClauseHolds(u.UniqueClauseTrigger, p) {
		clause = BonusClause
	}
	total := min(stage+sub+clause, MaxStageBonus)
	ctx := fmt.Sprintf("%s (%s): +%.2f", u.Name, u.CurrentStage, total)
	if clause > 0 {
		ctx += "; unique clause active: " + u.UniqueClause
	}
	return total, ctx
}
