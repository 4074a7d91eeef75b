package combat

import (
	"github.com/amoisekai/engine/pkg/player"
	"github.com/amoisekai/engine/pkg/principle"
	"github.com/amoisekai/engine/pkg/skill"
)

type EncounterType string

const (
	EncounterMinor EncounterType = "minor"
	EncounterDuel  EncounterType = "duel"
	EncounterBoss  EncounterType = "boss"
)

// Phases returns how many phases the encounter runs.
func (e EncounterType) Phases() int {
	switch e {
	case EncounterDuel:
		return 2
	case EncounterBoss:
		return 3
	default:
		return 1
	}
}

func (e EncounterType) Valid() bool {
	return e == EncounterMinor || e == EncounterDuel || e == EncounterBoss
}

type Action string

const (
	ActionStrike    Action = "strike"
	ActionShift     Action = "shift"
	ActionStabilize Action = "stabilize"
)

var Actions = []Action{ActionStrike, ActionShift, ActionStabilize}

type Intensity string

const (
	IntensitySafe      Intensity = "safe"
	IntensityPush      Intensity = "push"
	IntensityOverdrive Intensity = "overdrive"
)

type Outcome string

const (
	OutcomeFavorable   Outcome = "favorable"
	OutcomeMixed       Outcome = "mixed"
	OutcomeUnfavorable Outcome = "unfavorable"
)

type FinalOutcome string

const (
	PlayerWins FinalOutcome = "player_wins"
	EnemyWins  FinalOutcome = "enemy_wins"
	Draw       FinalOutcome = "draw"
)

type StabilityTier string

const (
	TierNormal   StabilityTier = "normal"
	TierStressed StabilityTier = "stressed"
	TierCritical StabilityTier = "critical"
	TierBroken   StabilityTier = "broken"
)

// TierFor buckets a stability value.
func TierFor(stability float64) StabilityTier {
	switch {
	case stability >= 60:
		return TierNormal
	case stability >= 30:
		return TierStressed
	case stability >= 15:
		return TierCritical
	default:
		return TierBroken
	}
}

// EnemyProfile describes the opponent as the planner sees it.
type EnemyProfile struct {
	Name        string              `json:"name" yaml:"name"`
	Principle   principle.Principle `json:"principle" yaml:"principle"`
	ThreatLevel float64             `json:"threat_level" yaml:"threat_level"`
	Description string              `json:"description,omitempty" yaml:"description"`
	Category    skill.Category      `json:"category,omitempty" yaml:"category"`
}

// BossPhase guides one phase of a boss encounter.
type BossPhase struct {
	Name              string              `json:"name" yaml:"name"`
	HPThreshold       float64             `json:"hp_threshold" yaml:"hp_threshold"`
	DominantPrinciple principle.Principle `json:"dominant_principle" yaml:"dominant_principle"`
	StabilityPressure float64             `json:"stability_pressure" yaml:"stability_pressure"`
	SpecialMechanic   string              `json:"special_mechanic,omitempty" yaml:"special_mechanic"`
}

// BossTemplate is a three-phase boss script.
type BossTemplate struct {
	ID     string      `json:"id" yaml:"id"`
	Name   string      `json:"name" yaml:"name"`
	Phases []BossPhase `json:"phases" yaml:"phases"`
}

// Decision is the player's pick for one phase.
type Decision struct {
	Action    Action    `json:"action"`
	Intensity Intensity `json:"intensity"`
}

// FloorModifier buffs or nerfs principles on the current tower floor.
type FloorModifier struct {
	Description string                `json:"description,omitempty" yaml:"description"`
	Buff        []principle.Principle `json:"buff,omitempty" yaml:"buff"`
	Nerf        []principle.Principle `json:"nerf,omitempty" yaml:"nerf"`
	Magnitude   float64               `json:"magnitude,omitempty" yaml:"magnitude"`
}

// Input is everything the resolver needs. It is never mutated.
type Input struct {
	Metrics       player.CombatMetrics
	Resonance     principle.Resonance
	Skill         *skill.PlayerSkill
	Enemy         EnemyProfile
	Encounter     EncounterType
	Boss          *BossTemplate
	Decisions     []Decision
	Floor         *FloorModifier
	UniqueBonus   float64
	UniqueContext string
	WeaponBonus   float64
	WeaponContext string
	FateBuffer    float64
	Chapter       int
	Roll          float64
	DefeatCount   int
}

// PhaseResult records one resolved phase.
type PhaseResult struct {
	PhaseNumber            int           `json:"phase_number"`
	BossPhase              string        `json:"boss_phase,omitempty"`
	ActionTaken            Action        `json:"action_taken"`
	IntensityUsed          Intensity     `json:"intensity_used"`
	CombatScore            float64       `json:"combat_score"`
	Outcome                Outcome       `json:"outcome"`
	StabilityTier          StabilityTier `json:"stability_tier"`
	NarrativeCues          []string      `json:"narrative_cues"`
	DamageDealt            int           `json:"damage_dealt"`
	EnemyHPRemaining       int           `json:"enemy_hp_remaining"`
	BacklashOccurred       bool          `json:"backlash_occurred"`
	Misfire                bool          `json:"misfire,omitempty"`
	AdaptBonusApplied      float64       `json:"adapt_bonus_applied,omitempty"`
	PlayerHPAfter          float64       `json:"player_hp_after"`
	PlayerStabilityAfter   float64       `json:"player_stability_after"`
	PlayerInstabilityAfter float64       `json:"player_instability_after"`
}

// DecisionChoice is one option at a decision point.
type DecisionChoice struct {
	Action           Action    `json:"action"`
	Intensity        Intensity `json:"intensity"`
	Label            string    `json:"label"`
	StabilityPreview string    `json:"stability_preview"`
}

// DecisionPoint sits between two phases.
type DecisionPoint struct {
	AfterPhase int              `json:"after_phase"`
	Context    string           `json:"context"`
	Choices    []DecisionChoice `json:"choices"`
}

// DefeatResult is attached when the enemy wins.
type DefeatResult struct {
	Scar        player.Scar `json:"scar"`
	DefeatCount int         `json:"defeat_count"`
	HPMaxAfter  float64     `json:"hp_max_after"`
	HPAfter     float64     `json:"hp_after"`
	SoulDeath   bool        `json:"soul_death"`
}

// PlayerStateAfter is the snapshot the orchestrator commits.
type PlayerStateAfter struct {
	HP          float64 `json:"hp"`
	HPMax       float64 `json:"hp_max"`
	Stability   float64 `json:"stability"`
	Instability float64 `json:"instability"`
	FateBuffer  float64 `json:"fate_buffer"`
}

// Brief is the complete, deterministic record of a fight. The writer only
// narrates it.
type Brief struct {
	EncounterType      EncounterType    `json:"encounter_type"`
	Enemy              EnemyProfile     `json:"enemy"`
	EnemyHPMax         int              `json:"enemy_hp_max"`
	SkillID            string           `json:"skill_id,omitempty"`
	Phases             []PhaseResult    `json:"phases"`
	DecisionPoints     []DecisionPoint  `json:"decision_points,omitempty"`
	FinalOutcome       FinalOutcome     `json:"final_outcome"`
	FateFired          bool             `json:"fate_fired"`
	FloorProgress      bool             `json:"floor_progress"`
	DefeatResult       *DefeatResult    `json:"defeat_result,omitempty"`
	WeaponContext      string           `json:"weapon_context,omitempty"`
	UniqueSkillContext string           `json:"unique_skill_context,omitempty"`
	PlayerStateAfter   PlayerStateAfter `json:"player_state_after"`
}

// CountsAsUse reports how many phases count as a successful use of the
// skill for evolution tracking.
func (b *Brief) CountsAsUse() int {
	n := 0
	for _, p := range b.Phases {
		if p.Outcome != OutcomeUnfavorable && !p.Misfire && p.ActionTaken != ActionStabilize {
			n++
		}
	}
	return n
}
