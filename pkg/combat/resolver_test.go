package combat

import (
	"errors"
	"strings"
	"testing"

	"github.com/amoisekai/engine/pkg/player"
	"github.com/amoisekai/engine/pkg/principle"
	"github.com/amoisekai/engine/pkg/skill"
)

func energySkill(t *testing.T) *skill.PlayerSkill {
	t.Helper()
	sk, ok := skill.MustCatalog().Get("energy_off_01")
	if !ok {
		t.Fatal("energy_off_01 missing from catalog")
	}
	ps := skill.FromSkeleton(sk, skill.NarrativeSkin{}, 1)
	return &ps
}

func shadowBeast() EnemyProfile {
	return EnemyProfile{Name: "Shadow Beast", Principle: principle.Matter, ThreatLevel: 0.5}
}

func freshMetrics() player.CombatMetrics {
	return player.CombatMetrics{HP: 100, HPMax: 100, Stability: 80, DecisionQualityScore: 0.6}
}

func TestResolveFreshStrikePush(t *testing.T) {
	in := Input{
		Metrics:    freshMetrics(),
		Skill:      energySkill(t),
		Enemy:      shadowBeast(),
		Encounter:  EncounterMinor,
		Decisions:  []Decision{{Action: ActionStrike, Intensity: IntensityPush}},
		FateBuffer: 100,
		Chapter:    1,
		Roll:       0.5,
	}
	b, err := NewResolver(crngDefaults()).Resolve(in)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(b.Phases) != 1 {
		t.Fatalf("phases = %d, want 1", len(b.Phases))
	}
	if b.FinalOutcome != PlayerWins && b.FinalOutcome != Draw {
		t.Errorf("final outcome = %s, want player_wins or draw", b.FinalOutcome)
	}
	if b.Phases[0].EnemyHPRemaining >= 100 {
		t.Errorf("enemy hp remaining = %d, want < 100", b.Phases[0].EnemyHPRemaining)
	}
	if b.Phases[0].Outcome != OutcomeMixed {
		t.Errorf("outcome = %s (score %.3f), want mixed", b.Phases[0].Outcome, b.Phases[0].CombatScore)
	}
}

func TestCriticalStabilityDowngradesOverdrive(t *testing.T) {
	m := freshMetrics()
	m.Stability = 20
	in := Input{
		Metrics:   m,
		Skill:     energySkill(t),
		Enemy:     shadowBeast(),
		Encounter: EncounterMinor,
		Decisions: []Decision{{Action: ActionStrike, Intensity: IntensityOverdrive}},
		Roll:      0.5,
	}
	b, err := (&Resolver{}).Resolve(in)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	ph := b.Phases[0]
	if ph.IntensityUsed != IntensityPush {
		t.Errorf("intensity used = %s, want push", ph.IntensityUsed)
	}
	found := false
	for _, c := range ph.NarrativeCues {
		if strings.Contains(c, "downgrade") {
			found = true
		}
	}
	if !found {
		t.Errorf("no downgrade cue in %v", ph.NarrativeCues)
	}
}

func TestStabilizeRecoversStability(t *testing.T) {
	m := freshMetrics()
	m.Stability = 50
	m.Instability = 20
	in := Input{
		Metrics:   m,
		Skill:     energySkill(t),
		Enemy:     shadowBeast(),
		Encounter: EncounterMinor,
		Decisions: []Decision{{Action: ActionStabilize, Intensity: IntensitySafe}},
		Roll:      0.5,
	}
	b, err := (&Resolver{}).Resolve(in)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	ph := b.Phases[0]
	if ph.PlayerStabilityAfter != 65 {
		t.Errorf("stability after = %v, want 65", ph.PlayerStabilityAfter)
	}
	if ph.PlayerInstabilityAfter != 18 {
		t.Errorf("instability after = %v, want 18", ph.PlayerInstabilityAfter)
	}
	if ph.EnemyHPRemaining != b.EnemyHPMax {
		t.Errorf("enemy hp = %d, want unchanged %d", ph.EnemyHPRemaining, b.EnemyHPMax)
	}
	if ph.DamageDealt != 0 {
		t.Errorf("damage dealt = %d, want 0", ph.DamageDealt)
	}
}

func losingInput(chapter int) Input {
	return Input{
		Metrics:    player.CombatMetrics{HP: 5, HPMax: 100, Stability: 80},
		Enemy:      EnemyProfile{Name: "Ash General", Principle: principle.Entropy, ThreatLevel: 1.0},
		Encounter:  EncounterMinor,
		FateBuffer: 60,
		Chapter:    chapter,
		Roll:       0,
	}
}

func TestFateSaveEndsInDraw(t *testing.T) {
	b, err := (&Resolver{}).Resolve(losingInput(10))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !b.FateFired {
		t.Fatal("expected fate save")
	}
	if b.FinalOutcome != Draw {
		t.Errorf("final = %s, want draw", b.FinalOutcome)
	}
	if b.PlayerStateAfter.HP != 1 || b.PlayerStateAfter.FateBuffer != 35 {
		t.Errorf("after = %+v, want hp 1 buffer 35", b.PlayerStateAfter)
	}
}

func TestDefeatAppliesScar(t *testing.T) {
	b, err := (&Resolver{}).Resolve(losingInput(50))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if b.FinalOutcome != EnemyWins {
		t.Fatalf("final = %s, want enemy_wins", b.FinalOutcome)
	}
	d := b.DefeatResult
	if d == nil {
		t.Fatal("missing defeat result")
	}
	if d.Scar.Kind != player.ScarPhysical || d.HPMaxAfter != 90 || d.DefeatCount != 1 {
		t.Errorf("defeat = %+v", d)
	}
	if d.SoulDeath {
		t.Error("first defeat should not be soul death")
	}

	p := player.New("p", "u", "Kael")
	Apply(p, b)
	if p.HPMax != 90 || len(p.Scars) != 1 || p.DefeatCount != 1 {
		t.Errorf("player after apply: hp_max=%v scars=%d defeats=%d", p.HPMax, len(p.Scars), p.DefeatCount)
	}
	if err := p.Validate(); err != nil {
		t.Errorf("player invalid after defeat: %v", err)
	}
}

func TestFourthDefeatIsSoulDeath(t *testing.T) {
	in := losingInput(50)
	in.DefeatCount = 3
	b, err := (&Resolver{}).Resolve(in)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if b.DefeatResult == nil || !b.DefeatResult.SoulDeath {
		t.Fatalf("expected soul death, got %+v", b.DefeatResult)
	}
	if b.PlayerStateAfter.HP != 0 {
		t.Errorf("hp after soul death = %v, want 0", b.PlayerStateAfter.HP)
	}
}

func TestDefeatScarKinds(t *testing.T) {
	tests := []struct {
		name string
		in   DefeatInput
		want player.ScarKind
	}{
		{"broken soul", DefeatInput{Stability: 10, EnemyHPFrac: 0.9, HPMax: 100}, player.ScarMental},
		{"almost won", DefeatInput{Stability: 50, EnemyHPFrac: 0.1, HPMax: 100}, player.ScarNearDeath},
		{"plain loss", DefeatInput{Stability: 50, EnemyHPFrac: 0.8, HPMax: 100}, player.ScarPhysical},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Defeat(tt.in).Scar.Kind; got != tt.want {
				t.Errorf("scar = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestBrokenStabilityMisfires(t *testing.T) {
	m := freshMetrics()
	m.Stability = 10
	in := Input{Metrics: m, Skill: energySkill(t), Enemy: shadowBeast(), Encounter: EncounterMinor, Roll: 0.2}
	b, err := (&Resolver{}).Resolve(in)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	ph := b.Phases[0]
	if !ph.Misfire || ph.DamageDealt != 0 || ph.Outcome != OutcomeUnfavorable {
		t.Errorf("phase = %+v, want misfire with no damage", ph)
	}
}

func TestBossEncounter(t *testing.T) {
	boss := &BossTemplate{
		ID:   "tower_warden",
		Name: "Tower Warden",
		Phases: []BossPhase{
			{Name: "Iron Vigil", HPThreshold: 1.0, DominantPrinciple: principle.Order, StabilityPressure: 3},
			{Name: "Shattered Law", HPThreshold: 0.66, DominantPrinciple: principle.Entropy, StabilityPressure: 5},
			{Name: "Last Verdict", HPThreshold: 0.33, DominantPrinciple: principle.Entropy, StabilityPressure: 8},
		},
	}
	res := principle.NewResonance(0.5)
	res.Set(principle.Energy, 0.9)
	in := Input{
		Metrics:   player.CombatMetrics{HP: 100, HPMax: 100, Stability: 90, DecisionQualityScore: 0.8, BreakthroughMeter: 50},
		Resonance: res,
		Skill:     energySkill(t),
		Enemy:     EnemyProfile{Name: "Tower Warden", Principle: principle.Order, ThreatLevel: 0.3},
		Encounter: EncounterBoss,
		Boss:      boss,
		Decisions: []Decision{{Action: ActionShift, Intensity: IntensitySafe}, {Action: ActionStrike, Intensity: IntensityPush}},
		Roll:      0.6,
	}
	b, err := (&Resolver{}).Resolve(in)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	for i, ph := range b.Phases {
		if ph.PhaseNumber != i+1 {
			t.Errorf("phase %d numbered %d", i, ph.PhaseNumber)
		}
	}
	if len(b.Phases) > 1 && b.Phases[1].AdaptBonusApplied != adaptBonusPhaseTurn {
		t.Errorf("adapt bonus = %v, want %v", b.Phases[1].AdaptBonusApplied, adaptBonusPhaseTurn)
	}
	if len(b.DecisionPoints) != len(b.Phases)-1 && b.FinalOutcome == Draw {
		t.Errorf("decision points = %d for %d phases", len(b.DecisionPoints), len(b.Phases))
	}
	for _, dp := range b.DecisionPoints {
		if len(dp.Choices) != 3 {
			t.Errorf("decision point has %d choices", len(dp.Choices))
		}
	}
	if b.FinalOutcome == PlayerWins && !b.FloorProgress {
		t.Error("boss win should progress the floor")
	}
}

func TestResolveRejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name string
		in   Input
	}{
		{"encounter", Input{Encounter: "skirmish", Enemy: shadowBeast()}},
		{"threat", Input{Encounter: EncounterMinor, Enemy: EnemyProfile{ThreatLevel: 2}}},
		{"roll", Input{Encounter: EncounterMinor, Enemy: shadowBeast(), Roll: 1.5}},
		{"action", Input{Encounter: EncounterMinor, Enemy: shadowBeast(), Decisions: []Decision{{Action: "flee"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := (&Resolver{}).Resolve(tt.in)
			if !errors.Is(err, ErrInvalidInput) {
				t.Errorf("err = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestCountsAsUse(t *testing.T) {
	b := &Brief{Phases: []PhaseResult{
		{ActionTaken: ActionStrike, Outcome: OutcomeFavorable},
		{ActionTaken: ActionShift, Outcome: OutcomeUnfavorable},
		{ActionTaken: ActionStrike, Outcome: OutcomeMixed},
	}}
	if got := b.CountsAsUse(); got != 2 {
		t.Errorf("CountsAsUse = %d, want 2", got)
	}
}
