package growth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amoisekai/engine/pkg/player"
	"github.com/amoisekai/engine/pkg/skill"
)

func seeded(t *testing.T) *player.Player {
	t.Helper()
	p := player.New("p1", "u1", "Lam")
	u := skill.NewSeed(skill.UniqueSkill{
		Name:                  "Thệ Ước Thép",
		Category:              skill.CategoryManifestation,
		Mechanic:              "An oath hardens into steel around the sworn.",
		Weakness:              "Broken oaths shatter the steel inward.",
		DomainPassiveName:     "Iron Word",
		DomainPassiveMechanic: "Spoken promises are harder to break.",
	})
	p.UniqueSkill = &u
	return p
}

func TestEchoBloomAfterTenScenes(t *testing.T) {
	p := seeded(t)
	for i := 0; i < EchoBloomStreak-1; i++ {
		assert.Nil(t, ObserveScene(p, 80))
	}
	ev := ObserveScene(p, 80)
	require.NotNil(t, ev)
	assert.Equal(t, EventBloomReady, ev.Type)
	assert.Equal(t, skill.BloomPathEcho, ev.Path)

	require.NoError(t, ApplyBloom(p, skill.BloomPathEcho, FallbackBloom(p.UniqueSkill, skill.BloomPathEcho)))
	assert.Equal(t, skill.StageBloom, p.UniqueSkill.CurrentStage)
	assert.Equal(t, skill.SuppressionBloom, p.UniqueSkill.SuppressionResistance)
	assert.Equal(t, 1, p.UniqueSkill.SubSkillsByKind(skill.SubSkillActive))
}

func TestEchoStreakDamage(t *testing.T) {
	p := seeded(t)
	for i := 0; i < 3; i++ {
		ObserveScene(p, 75)
	}
	ObserveScene(p, 40)
	assert.Equal(t, 1, p.UniqueSkillGrowth.EchoCoherenceStreak)
	ObserveScene(p, 40)
	assert.Equal(t, 0, p.UniqueSkillGrowth.EchoCoherenceStreak)
}

func TestEchoBloomReverts(t *testing.T) {
	p := seeded(t)
	for i := 0; i < EchoBloomStreak; i++ {
		ObserveScene(p, 90)
	}
	require.NoError(t, ApplyBloom(p, skill.BloomPathEcho, BloomText{}))

	for i := 0; i < RevertStreak-1; i++ {
		assert.Nil(t, ObserveScene(p, 30))
	}
	ev := ObserveScene(p, 30)
	require.NotNil(t, ev)
	assert.Equal(t, EventBloomRevert, ev.Type)
	assert.Equal(t, skill.StageSeed, p.UniqueSkill.CurrentStage)
	assert.Equal(t, skill.SuppressionSeed, p.UniqueSkill.SuppressionResistance)
	assert.Len(t, p.UniqueSkill.SubSkills, 1)
}

func TestScarBloom(t *testing.T) {
	p := seeded(t)
	assert.Nil(t, RecordTrauma(p, skill.TraumaNearDeath, 2, "cornered"))
	assert.Nil(t, RecordTrauma(p, skill.TraumaDefeat, 3, ""))
	ev := RecordTrauma(p, skill.TraumaNearDeath, 4, "")
	require.NotNil(t, ev)
	assert.Equal(t, skill.BloomPathScar, ev.Path)

	require.NoError(t, ApplyBloom(p, skill.BloomPathScar, FallbackBloom(p.UniqueSkill, skill.BloomPathScar)))
	assert.Equal(t, skill.ScarDefensive, p.UniqueSkillGrowth.ScarType)
	assert.Equal(t, 1, p.UniqueSkill.SubSkillsByKind(skill.SubSkillReactive))
}

func TestScarTypeFor(t *testing.T) {
	ev := func(kinds ...skill.TraumaKind) []skill.TraumaEvent {
		out := make([]skill.TraumaEvent, len(kinds))
		for i, k := range kinds {
			out[i] = skill.TraumaEvent{Kind: k}
		}
		return out
	}
	nd, df := skill.TraumaNearDeath, skill.TraumaDefeat
	if got := ScarTypeFor(ev(nd, nd, df)); got != skill.ScarDefensive {
		t.Errorf("got %s, want defensive", got)
	}
	if got := ScarTypeFor(ev(df, df, nd)); got != skill.ScarCounter {
		t.Errorf("got %s, want counter", got)
	}
	if got := ScarTypeFor(ev(df, nd, "other")); got != skill.ScarWarning {
		t.Errorf("got %s, want warning", got)
	}
}

func bloomed(t *testing.T) *player.Player {
	t.Helper()
	p := seeded(t)
	for i := 0; i < EchoBloomStreak; i++ {
		ObserveScene(p, 90)
	}
	require.NoError(t, ApplyBloom(p, skill.BloomPathEcho, BloomText{}))
	p.ResonanceMastery.Rank = player.RankHarmonized
	p.UniqueSkill.UsageCount = 20
	return p
}

func TestAspect(t *testing.T) {
	p := bloomed(t)
	weakness := p.UniqueSkill.Weakness
	require.NoError(t, OfferAspects(p, nil))
	require.Len(t, p.UniqueSkillGrowth.AspectOptions, 2)

	assert.ErrorIs(t, ChooseAspect(p, "Z"), ErrUnknownAspect)
	require.NoError(t, ChooseAspect(p, "A"))

	u := p.UniqueSkill
	assert.Equal(t, skill.StageAspect, u.CurrentStage)
	assert.Equal(t, skill.SuppressionAspect, u.SuppressionResistance)
	assert.True(t, p.UniqueSkillGrowth.MutationLocked)
	assert.NotEmpty(t, u.Weakness)
	assert.Contains(t, u.Weakness, weakness)
	assert.Len(t, u.SubSkills, 4)
}

func TestAspectGate(t *testing.T) {
	p := bloomed(t)
	p.UniqueSkill.UsageCount = 19
	assert.ErrorIs(t, OfferAspects(p, nil), ErrNotReady)
}

func TestUltimateNaming(t *testing.T) {
	p := bloomed(t)
	require.NoError(t, OfferAspects(p, nil))
	require.NoError(t, ChooseAspect(p, "A"))
	p.ResonanceMastery.Rank = player.RankTranscendent

	sk, ok := skill.MustCatalog().Get("matter_def_01")
	require.True(t, ok)
	require.NoError(t, p.AddSkill(skill.FromSkeleton(sk, skill.NarrativeSkin{}, 3)))
	shield := p.OwnedSkill("matter_def_01")
	require.Equal(t, "Matter Shield", shield.Name())
	shield.Refined = true
	shield.UsageCount = 20

	require.True(t, UltimateReady(p))
	form := UltimateForm{
		TitleName: "Thiết Thệ Bất Hoại",
		Honorific: "Chúa Tể Kim Cương",
		Title:     "The Unbroken Oath",
		Ability:   skill.UltimateAbility{Name: "Kim Cương Thệ"},
	}
	assert.ErrorIs(t, ApplyUltimate(p, form, "matter_def_01"), ErrArcOutOfOrder, "no arc played")

	for scene := ArcLimit; scene <= ArcNaming; scene++ {
		if scene == ArcResonance {
			assert.ErrorIs(t, ApplyUltimate(p, form, "matter_def_01"), ErrArcOutOfOrder, "arc at limit")
		}
		info, err := AdvanceUltimateArc(p, scene)
		require.NoError(t, err)
		assert.Equal(t, "matter_def_01", info.AbsorbedID)
	}
	assert.Equal(t, skill.StageAspect, p.UniqueSkill.CurrentStage)

	require.NoError(t, ApplyUltimate(p, form, "matter_def_01"))

	u := p.UniqueSkill
	assert.Equal(t, "Thiết Thệ Bất Hoại — Chúa Tể Kim Cương", u.Name)
	assert.Equal(t, skill.StageUltimate, u.CurrentStage)
	assert.Equal(t, 95.0, u.SuppressionResistance)
	assert.NotContains(t, p.EquippedSkills, "matter_def_01")
	assert.True(t, p.OwnedSkill("matter_def_01").Absorbed)
	assert.Equal(t, UltimateStabilityCostPct, u.Ultimate.StabilityCostPct)
}

func TestUseUltimateOncePerSeason(t *testing.T) {
	p := seeded(t)
	p.UniqueSkill.Ultimate = &skill.UltimateAbility{StabilityCostPct: 80}
	p.Stability = 100
	require.NoError(t, UseUltimate(p, 1))
	assert.InDelta(t, 20, p.Stability, 1e-9)
	assert.ErrorIs(t, UseUltimate(p, 1), ErrUltimateUsed)
	assert.NoError(t, UseUltimate(p, 2))
}

func TestStageBonus(t *testing.T) {
	g := skill.NewGrowthState()
	tests := []struct {
		name  string
		stage skill.Stage
		enemy skill.Category
		scar  bool
		want  float64
	}{
		{"seed", skill.StageSeed, "", false, 0.01},
		{"seed domain", skill.StageSeed, skill.CategoryManifestation, false, 0.04},
		{"bloom", skill.StageBloom, "", false, 0.03},
		{"bloom scar defensive", skill.StageBloom, "", true, 0.04},
		{"aspect domain capped", skill.StageAspect, skill.CategoryManifestation, true, 0.08},
		{"ultimate", skill.StageUltimate, "", false, 0.08},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := &skill.UniqueSkill{Category: skill.CategoryManifestation, CurrentStage: tt.stage}
			gs := g
			if tt.scar {
				gs.BloomPath = skill.BloomPathScar
				gs.ScarType = skill.ScarDefensive
			}
			assert.InDelta(t, tt.want, StageBonus(u, &gs, tt.enemy), 1e-9)
		})
	}
}

func TestClauseHolds(t *testing.T) {
	p := player.New("p", "u", "n")
	p.HP = 25
	p.Instability = 40
	tests := []struct {
		trigger string
		want    bool
	}{
		{"hp < 30%", true},
		{"hp >= 30%", false},
		{"instability > 35", true},
		{"stamina > 1", false},
		{"hp <", false},
		{"hp ~ 10", false},
	}
	for _, tt := range tests {
		if got := ClauseHolds(tt.trigger, p); got != tt.want {
			t.Errorf("ClauseHolds(%q) = %v, want %v", tt.trigger, got, tt.want)
		}
	}
}

func TestCombatBonusIncludesClause(t *testing.T) {
	p := seeded(t)
	p.UniqueSkill.UniqueClause = "Can swear on another's behalf."
	p.UniqueSkill.UniqueClauseTrigger = "hp < 50%"
	p.HP = 40

	b, ctx := CombatBonus(p, "")
	assert.InDelta(t, 0.03, b, 1e-9)
	assert.Contains(t, ctx, "unique clause active")
}
