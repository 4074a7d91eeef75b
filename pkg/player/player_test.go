package player

import (
	"encoding/json"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amoisekai/engine/pkg/principle"
	"github.com/amoisekai/engine/pkg/skill"
	"github.com/amoisekai/engine/pkg/weapon"
)

func ownSkill(t *testing.T, p *Player, id string) {
	t.Helper()
	sk, ok := skill.MustCatalog().Get(id)
	require.True(t, ok, id)
	require.NoError(t, p.AddSkill(skill.FromSkeleton(sk, skill.NarrativeSkin{}, 1)))
}

func TestNewDefaults(t *testing.T) {
	p := New("p1", "u1", "Kael")
	assert.Equal(t, 100.0, p.IdentityCoherence)
	assert.Equal(t, 0.0, p.Instability)
	assert.Equal(t, 100.0, p.EchoTrace)
	assert.Equal(t, 50.0, p.DecisionQualityScore)
	assert.Equal(t, 100.0, p.FateBuffer)
	assert.Equal(t, p.HPMax, p.HP)
	assert.Len(t, p.ArchonAffinity, 5)
	assert.Equal(t, RankAwakened, p.ResonanceMastery.Rank)
	assert.NoError(t, p.Validate())
}

func TestApplyDeltaClampsEveryScore(t *testing.T) {
	deltas := []IdentityDelta{
		{DQSChange: 500, CoherenceChange: 500, InstabilityChange: 500, BreakthroughChange: 500, AlignmentChange: 500, NotorietyChange: 500, EchoTraceChange: 500},
		{DQSChange: -500, CoherenceChange: -500, InstabilityChange: -500, BreakthroughChange: -500, AlignmentChange: -500, NotorietyChange: -500, EchoTraceChange: -500},
		{CoherenceChange: 3.5, InstabilityChange: -1.25},
	}
	p := New("p1", "u1", "Kael")
	for i, d := range deltas {
		p.ApplyDelta(d)
		if err := p.Validate(); err != nil {
			t.Errorf("delta %d left player invalid: %v", i, err)
		}
	}
}

func TestApplyDeltaRandomWalkStaysInRange(t *testing.T) {
	r := rand.New(rand.NewPCG(3, 5))
	change := func() float64 { return (r.Float64()*2 - 1) * 200 }
	p := New("p1", "u1", "Kael")
	for i := 0; i < 5000; i++ {
		p.ApplyDelta(IdentityDelta{
			DQSChange:          change(),
			CoherenceChange:    change(),
			InstabilityChange:  change(),
			BreakthroughChange: change(),
			AlignmentChange:    change(),
			NotorietyChange:    change(),
			EchoTraceChange:    change(),
		})
		require.NoError(t, p.Validate(), "step %d", i)
	}
}

func TestApplyDeltaFlagsAndResets(t *testing.T) {
	p := New("p1", "u1", "Kael")
	p.PityCounter = 7
	p.BreakthroughMeter = 90
	p.ApplyDelta(IdentityDelta{NewFlags: []string{"spared_the_envoy"}, PityReset: true, BreakthroughTriggered: true, DriftDirection: "ruthless"})

	assert.True(t, p.Flag("spared_the_envoy"))
	assert.Equal(t, 0, p.PityCounter)
	assert.Equal(t, 0.0, p.BreakthroughMeter)
	assert.Equal(t, "ruthless", p.LatentIdentity.DriftDirection)

	p.ApplyDelta(IdentityDelta{DriftDirection: "ruthless"})
	assert.InDelta(t, 0.2, p.LatentIdentity.DriftStrength, 1e-9)
}

func TestEquipLimits(t *testing.T) {
	p := New("p1", "u1", "Kael")
	ids := []string{"energy_off_01", "energy_off_02", "energy_def_01", "energy_sup_01", "order_def_01"}
	for _, id := range ids {
		ownSkill(t, p, id)
	}
	assert.Len(t, p.EquippedSkills, MaxEquipped)
	assert.False(t, p.IsEquipped("order_def_01"))
	assert.ErrorIs(t, p.Equip("order_def_01"), ErrSlotsFull)

	p.Unequip("energy_off_02")
	require.NoError(t, p.Equip("order_def_01"))
	assert.ErrorIs(t, p.Equip("void_off_01"), ErrSkillNotOwned)
	assert.NoError(t, p.Validate())
}

func TestAddScarLowersHPMax(t *testing.T) {
	p := New("p1", "u1", "Kael")
	p.AddScar(Scar{Kind: ScarPhysical, HPMaxPenalty: 10})
	assert.Equal(t, 90.0, p.HPMax)
	assert.Equal(t, 90.0, p.HP)
}

func TestMasteryRanks(t *testing.T) {
	var m ResonanceMastery
	m.Rank = RankAwakened
	assert.True(t, m.AddPoints(12))
	assert.Equal(t, RankAttuned, m.Rank)
	assert.False(t, m.AddPoints(1))
	m.AddPoints(100)
	assert.Equal(t, RankTranscendent, m.Rank)
	assert.Equal(t, "Transcendent", m.Rank.String())
}

func TestPersistenceRoundTrip(t *testing.T) {
	p := New("p1", "u1", "Kael")
	p.Resonance.Set(principle.Energy, 0.7)
	p.EquippedWeapons.Primary = &weapon.Weapon{ID: "w", Grade: weapon.GradeResonant, Principles: []principle.Principle{principle.Energy}}
	ownSkill(t, p, "energy_off_01")
	u := skill.NewSeed(skill.UniqueSkill{Name: "Thệ Ước Thép", Category: skill.CategoryContract})
	p.UniqueSkill = &u

	m, err := p.ToMap()
	require.NoError(t, err)
	back, err := FromMap(m)
	require.NoError(t, err)

	a, _ := json.Marshal(p)
	b, _ := json.Marshal(back)
	assert.JSONEq(t, string(a), string(b))
	assert.Equal(t, string(a), string(b))
}

func TestCloneIsIndependent(t *testing.T) {
	p := New("p1", "u1", "Kael")
	ownSkill(t, p, "energy_off_01")
	c := p.Clone()
	c.OwnedSkills[0].UsageCount = 9
	c.Flags["x"] = true
	assert.Equal(t, 0, p.OwnedSkills[0].UsageCount)
	assert.False(t, p.Flag("x"))
}
