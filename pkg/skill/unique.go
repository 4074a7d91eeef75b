package skill

import (
	"slices"
	"strings"
)

// WeaknessType is the structured taxonomy every unique skill weakness
// belongs to.
type WeaknessType string

const (
	WeaknessSoulEcho            WeaknessType = "soul_echo"
	WeaknessPrincipleBleed      WeaknessType = "principle_bleed"
	WeaknessResonanceDependency WeaknessType = "resonance_dependency"
	WeaknessTargetParadox       WeaknessType = "target_paradox"
	WeaknessSensoryTax          WeaknessType = "sensory_tax"
	WeaknessEnvironmentLock     WeaknessType = "environment_lock"
	WeaknessEscalationCurse     WeaknessType = "escalation_curse"
)

var WeaknessTypes = []WeaknessType{
	WeaknessSoulEcho, WeaknessPrincipleBleed, WeaknessResonanceDependency,
	WeaknessTargetParadox, WeaknessSensoryTax, WeaknessEnvironmentLock,
	WeaknessEscalationCurse,
}

func (w WeaknessType) Valid() bool { return slices.Contains(WeaknessTypes, w) }

// Stage is the unique skill growth stage.
type Stage string

const (
	StageSeed     Stage = "seed"
	StageBloom    Stage = "bloom"
	StageAspect   Stage = "aspect"
	StageUltimate Stage = "ultimate"
)

// Rank orders stages so callers can compare them.
func (s Stage) Rank() int {
	switch s {
	case StageBloom:
		return 1
	case StageAspect:
		return 2
	case StageUltimate:
		return 3
	default:
		return 0
	}
}

// AtLeast reports whether s has reached other.
func (s Stage) AtLeast(other Stage) bool { return s.Rank() >= other.Rank() }

// SubSkillKind says when a sub-skill applies.
type SubSkillKind string

const (
	SubSkillPassive  SubSkillKind = "passive"
	SubSkillActive   SubSkillKind = "active"
	SubSkillReactive SubSkillKind = "reactive"
)

// SubSkill is one facet unlocked on the unique skill's growth path.
type SubSkill struct {
	Name     string       `json:"name"`
	Mechanic string       `json:"mechanic"`
	Kind     SubSkillKind `json:"kind"`
	Stage    Stage        `json:"stage"`
}

// UltimateAbility is the once-per-season god-tier technique.
type UltimateAbility struct {
	Name             string  `json:"name"`
	Description      string  `json:"description"`
	StabilityCostPct float64 `json:"stability_cost_pct"`
	Weakness         string  `json:"weakness"`
	LastUsedSeason   int     `json:"last_used_season,omitempty"`
	PenaltyChapters  int     `json:"penalty_chapters"`
}

// UniqueSkill is the single signature skill forged during onboarding.
type UniqueSkill struct {
	Name                  string           `json:"name"`
	Description           string           `json:"description"`
	Category              Category         `json:"category"`
	Mechanic              string           `json:"mechanic"`
	Quirk                 string           `json:"quirk"`
	Limitation            string           `json:"limitation"`
	Weakness              string           `json:"weakness"`
	WeaknessType          WeaknessType     `json:"weakness_type"`
	UniqueClause          string           `json:"unique_clause"`
	UniqueClauseTrigger   string           `json:"unique_clause_trigger,omitempty"`
	DomainPassiveName     string           `json:"domain_passive_name"`
	DomainPassiveMechanic string           `json:"domain_passive_mechanic"`
	AxisBlindSpot         Category         `json:"axis_blind_spot"`
	CurrentStage          Stage            `json:"current_stage"`
	SubSkills             []SubSkill       `json:"sub_skills"`
	Resilience            float64          `json:"resilience"`
	Instability           float64          `json:"instability"`
	SuppressionResistance float64          `json:"suppression_resistance"`
	UsageCount            int              `json:"usage_count"`
	Title                 string           `json:"title,omitempty"`
	TranscendentCore      string           `json:"transcendent_core,omitempty"`
	Ultimate              *UltimateAbility `json:"ultimate_ability,omitempty"`
	UniquenessScore       float64          `json:"uniqueness_score,omitempty"`
	SeedName              string           `json:"seed_name,omitempty"`
}

// Suppression resistance per stage.
const (
	SuppressionSeed     = 50.0
	SuppressionBloom    = 65.0
	SuppressionAspect   = 80.0
	SuppressionUltimate = 95.0
)

// NewSeed finishes a freshly forged skill: stage seed, SS0 installed.
func NewSeed(u UniqueSkill) UniqueSkill {
	u.CurrentStage = StageSeed
	u.SuppressionResistance = SuppressionSeed
	if u.Resilience == 0 {
		u.Resilience = 50
	}
	u.SeedName = u.Name
	u.SubSkills = []SubSkill{{
		Name:     u.DomainPassiveName,
		Mechanic: u.DomainPassiveMechanic,
		Kind:     SubSkillPassive,
		Stage:    StageSeed,
	}}
	return u
}

// ChoicePrefix is prepended to a choice that invokes the unique skill.
func (u *UniqueSkill) ChoicePrefix() string {
	return "[" + u.Name + "] — "
}

// IsSkillChoice reports whether text invokes the unique skill.
func (u *UniqueSkill) IsSkillChoice(text string) bool {
	return u.Name != "" && strings.HasPrefix(strings.TrimSpace(text), u.ChoicePrefix())
}

// SubSkillsByKind counts sub-skills of the given kind.
func (u *UniqueSkill) SubSkillsByKind(kind SubSkillKind) int {
	n := 0
	for _, s := range u.SubSkills {
		if s.Kind == kind {
			n++
		}
	}
	return n
}
