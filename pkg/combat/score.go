package combat

import (
	"slices"

	"github.com/amoisekai/engine/pkg/principle"
	"github.com/amoisekai/engine/pkg/skill"
)

// Score weights.
const (
	WeightBuildFit    = 0.45
	WeightPlayerSkill = 0.30
	WeightEnvironment = 0.15
	WeightFate        = 0.10

	MaxWeaponBonus = 0.10
	MaxUniqueBonus = 0.08

	FavorableThreshold = 0.60
	MixedThreshold     = 0.40

	defaultResonance = 0.5
	defaultFloorMod  = 0.2
	stressedPenalty  = 0.05
)

// ScoreParts breaks a combat score down for briefs and tests.
type ScoreParts struct {
	BuildFit      float64 `json:"build_fit"`
	PlayerSkill   float64 `json:"player_skill"`
	Environment   float64 `json:"environment"`
	Fate          float64 `json:"fate"`
	ThreatPenalty float64 `json:"threat_penalty"`
	Weapon        float64 `json:"weapon"`
	Unique        float64 `json:"unique"`
	Adapt         float64 `json:"adapt"`
	TierPenalty   float64 `json:"tier_penalty"`
}

// Total sums the parts and clamps to [0,1].
func (s ScoreParts) Total() float64 {
	t := WeightBuildFit*s.BuildFit + WeightPlayerSkill*s.PlayerSkill +
		WeightEnvironment*s.Environment + WeightFate*s.Fate -
		s.ThreatPenalty + s.Weapon + s.Unique + s.Adapt - s.TierPenalty
	return clamp01(t)
}

// Matchup scores the skill principle against the enemy's.
func Matchup(skillP, enemyP principle.Principle) float64 {
	switch {
	case skillP == "" || enemyP == "":
		return 0.5
	case principle.Opposed(skillP, enemyP):
		return 0.8
	case principle.SynergyAdjacent(skillP, enemyP):
		return 0.6
	default:
		return 0.5
	}
}

// BuildFit combines resonance in the skill's principle with the matchup.
func BuildFit(res principle.Resonance, sk *skill.PlayerSkill, enemyP principle.Principle) float64 {
	r := defaultResonance
	var sp principle.Principle
	if sk != nil {
		sp = sk.Principle
		if v, ok := res[sp]; ok {
			r = v
		}
	}
	return 0.6*r + 0.4*Matchup(sp, enemyP)
}

// PlayerSkill scores the player's own condition.
func PlayerSkill(dqs, stability, breakthrough float64) float64 {
	return 0.5*clamp01(dqs) + 0.3*clamp01(stability/100) + 0.2*clamp01(breakthrough/100)
}

// Environment applies the floor modifier to the skill's principle.
func Environment(floor *FloorModifier, sk *skill.PlayerSkill) float64 {
	env := 0.5
	if floor == nil || sk == nil {
		return env
	}
	mag := floor.Magnitude
	if mag == 0 {
		mag = defaultFloorMod
	}
	for _, p := range sk.Principles() {
		if slices.Contains(floor.Buff, p) {
			env += mag
			break
		}
	}
	if slices.Contains(floor.Nerf, sk.Principle) {
		env -= mag
	}
	return clamp01(env)
}

// ThreatPenalty is positive for threats above 0.5 and negative below.
func ThreatPenalty(threat float64) float64 { return (threat - 0.5) * 0.2 }

// Bucket maps a score to an outcome.
func Bucket(score float64) Outcome {
	switch {
	case score >= FavorableThreshold:
		return OutcomeFavorable
	case score >= MixedThreshold:
		return OutcomeMixed
	default:
		return OutcomeUnfavorable
	}
}

func clamp01(v float64) float64 { return min(max(v, 0), 1) }
