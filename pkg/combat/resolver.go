package combat

import (
	"errors"
	"fmt"
	"math"

	"github.com/amoisekai/engine/pkg/crng"
	"github.com/amoisekai/engine/pkg/principle"
)

var ErrInvalidInput = errors.New("invalid combat input")

// Damage tables.
var (
	strikeDamage = map[Outcome]float64{OutcomeFavorable: 40, OutcomeMixed: 25, OutcomeUnfavorable: 10}
	playerDamage = map[Outcome]float64{OutcomeFavorable: 5, OutcomeMixed: 12, OutcomeUnfavorable: 22}

	intensityMult = map[Intensity]float64{IntensitySafe: 0.7, IntensityPush: 1.0, IntensityOverdrive: 1.4}
	stabilityCost = map[Intensity]float64{IntensitySafe: 0, IntensityPush: 5, IntensityOverdrive: 12}
	stabilizeGain = map[Intensity]float64{IntensitySafe: 15, IntensityPush: 10, IntensityOverdrive: 5}

	damageTypeMult = map[string]float64{"structural": 1.0, "stability": 0.9, "denial": 0.8, "none": 0.7}
)

const (
	shiftDamageFactor   = 0.5
	adaptBonus          = 0.05
	adaptBonusPhaseTurn = 0.10
	misfireChance       = 0.5
	backlashStability   = 8
	backlashInstability = 3
	phaseRollStep       = 0.37
)

// Resolver runs deterministic encounters. The zero value is usable.
type Resolver struct {
	Fate crng.FateConfig
}

// NewResolver returns a resolver using the given fate window.
func NewResolver(fate crng.FateConfig) *Resolver {
	return &Resolver{Fate: fate}
}

func (in *Input) validate() error {
	if !in.Encounter.Valid() {
		return fmt.Errorf("%w: unknown encounter type %q", ErrInvalidInput, in.Encounter)
	}
	if in.Enemy.ThreatLevel < 0 || in.Enemy.ThreatLevel > 1 {
		return fmt.Errorf("%w: threat level %.2f outside [0, 1]", ErrInvalidInput, in.Enemy.ThreatLevel)
	}
	if in.Enemy.Principle != "" && !in.Enemy.Principle.Valid() {
		return fmt.Errorf("%w: unknown enemy principle %q", ErrInvalidInput, in.Enemy.Principle)
	}
	if in.Roll < 0 || in.Roll >= 1 {
		return fmt.Errorf("%w: roll %.3f outside [0, 1)", ErrInvalidInput, in.Roll)
	}
	if in.Encounter == EncounterBoss && in.Boss != nil && len(in.Boss.Phases) < EncounterBoss.Phases() {
		return fmt.Errorf("%w: boss template %s has %d phases", ErrInvalidInput, in.Boss.ID, len(in.Boss.Phases))
	}
	for i, d := range in.Decisions {
		switch d.Action {
		case ActionStrike, ActionShift, ActionStabilize, "":
		default:
			return fmt.Errorf("%w: decision %d has unknown action %q", ErrInvalidInput, i, d.Action)
		}
		switch d.Intensity {
		case IntensitySafe, IntensityPush, IntensityOverdrive, "":
		default:
			return fmt.Errorf("%w: decision %d has unknown intensity %q", ErrInvalidInput, i, d.Intensity)
		}
	}
	return nil
}

// PhaseRoll derives the roll for phase n (1-based) from the base roll.
func PhaseRoll(base float64, n int) float64 {
	_, frac := math.Modf(base + phaseRollStep*float64(n-1))
	return frac
}

type fightState struct {
	hp, hpMax, stability, instability, fateBuffer float64
	adapt                                         float64
	fateFired                                     bool
}

// Resolve runs the encounter and returns its brief.
func (r *Resolver) Resolve(in Input) (*Brief, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	fate := r.Fate
	if fate.ProtectionChapters == 0 {
		fate = crng.DefaultFateConfig()
	}
	enemy, err := NewEnemy(in.Enemy, in.Encounter)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	st := fightState{
		hp:          in.Metrics.HP,
		hpMax:       in.Metrics.HPMax,
		stability:   in.Metrics.Stability,
		instability: in.Metrics.Instability,
		fateBuffer:  in.FateBuffer,
	}
	b := &Brief{
		EncounterType:      in.Encounter,
		Enemy:              in.Enemy,
		EnemyHPMax:         enemy.MaxHP(),
		WeaponContext:      in.WeaponContext,
		UniqueSkillContext: in.UniqueContext,
		FinalOutcome:       Draw,
	}
	if in.Skill != nil {
		b.SkillID = in.Skill.ID
	}

	phases := in.Encounter.Phases()
	for n := 1; n <= phases; n++ {
		pr, err := r.resolvePhase(&in, enemy, &st, n)
		if err != nil {
			return nil, err
		}
		b.Phases = append(b.Phases, pr)

		if enemy.IsDefeated() {
			b.FinalOutcome = PlayerWins
			break
		}
		if st.hp <= 0 {
			hp, buf, fired := fate.Save(st.hp, st.fateBuffer, in.Chapter)
			if fired && !st.fateFired {
				st.hp, st.fateBuffer, st.fateFired = hp, buf, true
				b.Phases[len(b.Phases)-1].PlayerHPAfter = st.hp
				b.Phases[len(b.Phases)-1].NarrativeCues = append(b.Phases[len(b.Phases)-1].NarrativeCues,
					"fate intervenes: a killing blow leaves the protagonist standing on a single breath")
				b.FinalOutcome = Draw
				break
			}
			st.hp = 0
			b.FinalOutcome = EnemyWins
			break
		}
		if n < phases {
			b.DecisionPoints = append(b.DecisionPoints, decisionPoint(&in, enemy, &st, n))
		}
	}

	b.FateFired = st.fateFired
	if b.FinalOutcome == PlayerWins && in.Encounter == EncounterBoss {
		b.FloorProgress = true
	}
	if b.FinalOutcome == EnemyWins {
		b.DefeatResult = Defeat(DefeatInput{
			Stability:   st.stability,
			EnemyHPFrac: enemy.HPFraction(),
			HPMax:       st.hpMax,
			DefeatCount: in.DefeatCount,
			Chapter:     in.Chapter,
			EnemyName:   in.Enemy.Name,
		})
		st.hpMax = b.DefeatResult.HPMaxAfter
		st.hp = b.DefeatResult.HPAfter
	}
	b.PlayerStateAfter = PlayerStateAfter{
		HP:          st.hp,
		HPMax:       st.hpMax,
		Stability:   st.stability,
		Instability: st.instability,
		FateBuffer:  st.fateBuffer,
	}
	return b, nil
}

func (in *Input) decision(n int) Decision {
	d := Decision{Action: ActionStrike, Intensity: IntensityPush}
	if n-1 < len(in.Decisions) {
		if a := in.Decisions[n-1].Action; a != "" {
			d.Action = a
		}
		if i := in.Decisions[n-1].Intensity; i != "" {
			d.Intensity = i
		}
	}
	return d
}

func (in *Input) bossPhase(n int) *BossPhase {
	if in.Encounter != EncounterBoss || in.Boss == nil || n-1 >= len(in.Boss.Phases) {
		return nil
	}
	return &in.Boss.Phases[n-1]
}

func (in *Input) enemyPrinciple(n int) principle.Principle {
	if bp := in.bossPhase(n); bp != nil && bp.DominantPrinciple != "" {
		return bp.DominantPrinciple
	}
	return in.Enemy.Principle
}

func (r *Resolver) resolvePhase(in *Input, enemy *Enemy, st *fightState, n int) (PhaseResult, error) {
	d := in.decision(n)
	roll := PhaseRoll(in.Roll, n)
	tier := TierFor(st.stability)
	pr := PhaseResult{
		PhaseNumber:   n,
		ActionTaken:   d.Action,
		IntensityUsed: d.Intensity,
		StabilityTier: tier,
	}
	bp := in.bossPhase(n)
	if bp != nil {
		pr.BossPhase = bp.Name
		pr.NarrativeCues = append(pr.NarrativeCues, fmt.Sprintf("%s enters %s", in.Enemy.Name, bp.Name))
		if bp.SpecialMechanic != "" {
			pr.NarrativeCues = append(pr.NarrativeCues, bp.SpecialMechanic)
		}
	}

	parts := ScoreParts{
		BuildFit:      BuildFit(in.Resonance, in.Skill, in.enemyPrinciple(n)),
		PlayerSkill:   PlayerSkill(in.Metrics.DecisionQualityScore, st.stability, in.Metrics.BreakthroughMeter),
		Environment:   Environment(in.Floor, in.Skill),
		Fate:          roll,
		ThreatPenalty: ThreatPenalty(in.Enemy.ThreatLevel),
		Weapon:        min(max(in.WeaponBonus, 0), MaxWeaponBonus),
		Unique:        min(max(in.UniqueBonus, 0), MaxUniqueBonus),
		Adapt:         st.adapt,
	}
	pr.AdaptBonusApplied = st.adapt
	st.adapt = 0

	switch tier {
	case TierStressed:
		parts.TierPenalty = stressedPenalty
		pr.NarrativeCues = append(pr.NarrativeCues, "stability strained: focus slips at the edges")
	case TierCritical:
		if pr.IntensityUsed == IntensityOverdrive {
			pr.IntensityUsed = IntensityPush
			pr.NarrativeCues = append(pr.NarrativeCues, "stability critical: overdrive forced to downgrade to push")
		}
	case TierBroken:
		pr.NarrativeCues = append(pr.NarrativeCues, "stability broken: the soul's grip on its power is failing")
	}

	pr.CombatScore = parts.Total()
	pr.Outcome = Bucket(pr.CombatScore)

	if tier == TierBroken && d.Action != ActionStabilize && roll < misfireChance {
		pr.Misfire = true
		pr.BacklashOccurred = true
		pr.Outcome = OutcomeUnfavorable
		pr.NarrativeCues = append(pr.NarrativeCues, "misfire: the technique collapses in the protagonist's hands")
	}

	mult := intensityMult[pr.IntensityUsed]
	dtMult := 1.0
	if in.Skill != nil {
		if m, ok := damageTypeMult[string(in.Skill.DamageType)]; ok {
			dtMult = m
		}
	}

	var dealt float64
	switch d.Action {
	case ActionStrike:
		if !pr.Misfire {
			dealt = strikeDamage[pr.Outcome] * mult * dtMult
		}
		st.stability -= stabilityCost[pr.IntensityUsed]
	case ActionShift:
		if !pr.Misfire {
			dealt = strikeDamage[pr.Outcome] * mult * dtMult * shiftDamageFactor
		}
		st.stability -= stabilityCost[pr.IntensityUsed]
		st.adapt = adaptBonus
		if next := in.bossPhase(n + 1); next != nil && bp != nil && next.DominantPrinciple != bp.DominantPrinciple {
			st.adapt = adaptBonusPhaseTurn
		}
		pr.NarrativeCues = append(pr.NarrativeCues, "the protagonist shifts stance, reading the enemy's rhythm")
	case ActionStabilize:
		st.stability += stabilizeGain[pr.IntensityUsed]
		st.instability -= 2
		pr.NarrativeCues = append(pr.NarrativeCues, "the protagonist steadies their breathing and re-anchors")
	}
	if d.Action != ActionStabilize && bp != nil {
		st.stability -= bp.StabilityPressure
	}

	if pr.IntensityUsed == IntensityOverdrive && pr.Outcome == OutcomeUnfavorable && !pr.Misfire {
		pr.BacklashOccurred = true
		pr.NarrativeCues = append(pr.NarrativeCues, "overdrive backlash tears through the protagonist")
	}
	if pr.BacklashOccurred {
		st.stability -= backlashStability
		st.instability += backlashInstability
	}

	taken := playerDamage[pr.Outcome] * (0.5 + in.Enemy.ThreatLevel)
	if d.Action == ActionStabilize {
		taken /= 2
	}
	st.hp = max(st.hp-taken, 0)
	st.stability = min(max(st.stability, 0), 100)
	st.instability = min(max(st.instability, 0), 100)

	pr.DamageDealt = int(math.Round(dealt))
	if err := enemy.TakeDamage(pr.DamageDealt); err != nil {
		return pr, err
	}
	pr.EnemyHPRemaining = enemy.HP()
	pr.PlayerHPAfter = st.hp
	pr.PlayerStabilityAfter = st.stability
	pr.PlayerInstabilityAfter = st.instability

	switch pr.Outcome {
	case OutcomeFavorable:
		pr.NarrativeCues = append(pr.NarrativeCues, "the exchange goes the protagonist's way")
	case OutcomeMixed:
		pr.NarrativeCues = append(pr.NarrativeCues, "both sides draw blood")
	default:
		pr.NarrativeCues = append(pr.NarrativeCues, "the enemy dominates the exchange")
	}
	return pr, nil
}

func decisionPoint(in *Input, enemy *Enemy, st *fightState, after int) DecisionPoint {
	dp := DecisionPoint{AfterPhase: after}
	ctx := fmt.Sprintf("Phase %d against %s is over.", after, in.Enemy.Name)
	if st.stability < 30 {
		ctx += " Your stability is faltering; pushing harder risks collapse."
	}
	if enemy.HPFraction() <= 0.25 {
		ctx += " The enemy is close to breaking."
	}
	cur, next := in.bossPhase(after), in.bossPhase(after+1)
	if cur != nil && next != nil && next.DominantPrinciple != cur.DominantPrinciple {
		ctx += fmt.Sprintf(" The boss is shifting toward %s.", next.DominantPrinciple)
	}
	dp.Context = ctx

	preview := func(delta float64) string {
		after := min(max(st.stability+delta, 0), 100)
		return fmt.Sprintf("stability %.0f -> %.0f", st.stability, after)
	}
	pressure := 0.0
	if next != nil {
		pressure = next.StabilityPressure
	}
	dp.Choices = []DecisionChoice{
		{Action: ActionStrike, Intensity: IntensityPush, Label: "Strike with full commitment", StabilityPreview: preview(-stabilityCost[IntensityPush] - pressure)},
		{Action: ActionShift, Intensity: IntensityPush, Label: "Shift stance and adapt", StabilityPreview: preview(-stabilityCost[IntensityPush] - pressure)},
		{Action: ActionStabilize, Intensity: IntensitySafe, Label: "Stabilize and recover", StabilityPreview: preview(stabilizeGain[IntensitySafe])},
	}
	return dp
}
