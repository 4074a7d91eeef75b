package world

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amoisekai/engine/pkg/player"
	"github.com/amoisekai/engine/pkg/principle"
)

func mustRegistry(t *testing.T) *Registry {
	t.Helper()
	reg, err := DefaultRegistry()
	require.NoError(t, err)
	return reg
}

func TestDefaultRegistry(t *testing.T) {
	reg := mustRegistry(t)
	assert.Len(t, reg.Archons, 5)
	for _, a := range player.Archetypes {
		_, ok := reg.StartingZone(a)
		assert.True(t, ok, "zone for %s", a)
	}
	z, _ := reg.StartingZone(player.ArchetypeVanguard)
	assert.Equal(t, "ashfall_frontier", z.ID)

	b, ok := reg.Boss("tower_warden")
	require.True(t, ok)
	assert.Len(t, b.Phases, 3)
	b.Phases[0].Name = "changed"
	again, _ := reg.Boss("tower_warden")
	assert.Equal(t, "Iron Patience", again.Phases[0].Name)

	a, ok := reg.Archon("nyxara")
	require.True(t, ok)
	assert.Equal(t, principle.Void, a.Principle)
}

func TestFloorModifier(t *testing.T) {
	reg := mustRegistry(t)
	m := reg.FloorModifier(12)
	require.NotNil(t, m)
	assert.Equal(t, 0.15, m.Magnitude)
	assert.Nil(t, reg.FloorModifier(0))
	assert.Nil(t, reg.FloorModifier(101))
}

func TestParseRegistryRejects(t *testing.T) {
	_, err := ParseRegistry([]byte("generals:\n  - id: g\n    phases: [a]\n"))
	assert.Error(t, err)
	_, err = ParseRegistry([]byte("archons:\n  - key: nobody\n"))
	assert.Error(t, err)
}

func TestSeasonFor(t *testing.T) {
	cases := map[int]int{0: 1, 1: 1, 50: 1, 51: 2, 100: 2, 101: 3}
	for ch, want := range cases {
		assert.Equal(t, want, SeasonFor(ch), "chapter %d", ch)
	}
}

func TestNewState(t *testing.T) {
	s := NewState("st1", mustRegistry(t))
	assert.Len(t, s.Emissaries, 4)
	assert.Len(t, s.Generals, 3)
	assert.Equal(t, EmissaryActive, s.Emissaries["veyra"].State)
	assert.Equal(t, GeneralShadow, s.Generals["sereth"].State)
	assert.Equal(t, 1, s.Season)
}

func TestAddEventCap(t *testing.T) {
	s := NewState("st1", nil)
	for i := range 25 {
		s.AddEvent(string(rune('a' + i)))
	}
	s.AddEvent("  ")
	require.Len(t, s.NarrativeEvents, MaxNarrativeEvents)
	assert.Equal(t, "f", s.NarrativeEvents[0])
	assert.Equal(t, "y", s.NarrativeEvents[19])
}

func TestApplyUpdateVeiledPhaseMonotone(t *testing.T) {
	s := NewState("st1", nil)
	s.Apply(Update{EmpireResonanceDelta: 45, Flags: map[string]bool{"gate_open": true}, Events: []string{"the gate opened"}})
	assert.Equal(t, 55.0, s.Empire.EmpireResonance)
	assert.Equal(t, 2, s.Empire.VeiledWillPhase)
	assert.True(t, s.WorldFlags["gate_open"])
	assert.Equal(t, []string{"the gate opened"}, s.NarrativeEvents)

	s.Apply(Update{EmpireResonanceDelta: -50, IdentityAnchorDelta: 80})
	assert.Equal(t, 5.0, s.Empire.EmpireResonance)
	assert.Equal(t, 100.0, s.Empire.IdentityAnchor)
	assert.Equal(t, 2, s.Empire.VeiledWillPhase)
}

func TestEmissaryLifecycle(t *testing.T) {
	s := NewState("st1", mustRegistry(t))

	_, err := s.MeetEmissary("nobody", 5)
	assert.ErrorIs(t, err, ErrUnknownEntity)

	st, err := s.MeetEmissary("dravik", 40)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Encounters)

	assert.ErrorIs(t, s.SetEmissaryState("dravik", EmissaryConverted), ErrInvalidTransition)
	require.NoError(t, s.SetEmissaryState("dravik", EmissaryRevealed))
	assert.ErrorIs(t, s.SetEmissaryState("dravik", EmissaryConverted), ErrInvalidTransition)

	_, err = s.MeetEmissary("dravik", 30)
	require.NoError(t, err)
	require.NoError(t, s.SetEmissaryState("dravik", EmissaryConverted))

	_, err = s.MeetEmissary("dravik", 1)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	require.NoError(t, s.SetEmissaryState("oskar", EmissaryEliminated))
	assert.ErrorIs(t, s.SetEmissaryState("oskar", EmissaryRevealed), ErrInvalidTransition)
}

func TestAdvanceGeneral(t *testing.T) {
	s := NewState("st1", mustRegistry(t))
	st, err := s.AdvanceGeneral("thorne", 3, true)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Phase)
	assert.Equal(t, GeneralShadow, st.State)

	st, _ = s.AdvanceGeneral("thorne", 9, true)
	assert.Equal(t, GeneralManifested, st.State)

	st, _ = s.AdvanceGeneral("thorne", 14, false)
	assert.Equal(t, GeneralConfronted, st.State)
	assert.Equal(t, 3, st.Phase)

	st, _ = s.AdvanceGeneral("thorne", 15, true)
	assert.Equal(t, GeneralDefeated, st.State)
	assert.Equal(t, 15, st.LastChapter)

	_, err = s.AdvanceGeneral("thorne", 16, true)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestClearFloor(t *testing.T) {
	s := NewState("st1", nil)
	s.ClearFloor(0, "echoing stairs")
	s.ClearFloor(3, "echoing stairs", "")
	s.ClearFloor(3)
	assert.Equal(t, []int{1, 3}, s.Tower.FloorsCleared)
	assert.Equal(t, 3, s.Tower.HighestFloor)
	assert.Equal(t, 4, s.NextFloor())
	assert.Equal(t, []string{"echoing stairs"}, s.Tower.ActiveAnomalies)
	assert.Equal(t, AnomalyInstability, s.Tower.Instability)
}

func TestMapRoundTrip(t *testing.T) {
	s := NewState("st1", mustRegistry(t))
	_, _ = s.AdvanceGeneral("sereth", 2, false)
	s.AddEvent("a bell rang")

	m, err := s.ToMap()
	require.NoError(t, err)
	assert.Equal(t, "st1", m["story_id"])

	back, err := FromMap(m)
	require.NoError(t, err)
	assert.Equal(t, 1, back.Generals["sereth"].Phase)
	assert.Equal(t, []string{"a bell rang"}, back.NarrativeEvents)

	c := s.Clone()
	c.Generals["sereth"].Phase = 3
	assert.Equal(t, 1, s.Generals["sereth"].Phase)
}

func TestContext(t *testing.T) {
	reg := mustRegistry(t)
	s := NewState("st1", reg)
	s.ClearFloor(2, "falling stars")
	_, _ = s.MeetEmissary("veyra", 10)
	_, _ = s.AdvanceGeneral("kael_morrow", 4, false)
	s.AddEvent("the market burned")

	ctx := s.Context(reg)
	assert.Contains(t, ctx, "Season 1.")
	assert.Contains(t, ctx, "highest floor 2")
	assert.Contains(t, ctx, "falling stars")
	assert.Contains(t, ctx, "Veyra the Gilded Mouth")
	assert.Contains(t, ctx, "Kael Morrow, the Ash General: shadow (phase 1 of 3)")
	assert.Contains(t, ctx, "the market burned")
	assert.NotContains(t, ctx, "Oskar")
	assert.NotContains(t, s.Overview(), "Veyra")
}
