package weapon

import (
	"testing"

	"github.com/amoisekai/engine/pkg/principle"
)

func newBlade() *Weapon {
	return &Weapon{
		ID:         "w1",
		Name:       "Ashen Edge",
		Grade:      GradeResonant,
		Principles: []principle.Principle{principle.Energy},
	}
}

func TestAddBondClamps(t *testing.T) {
	w := newBlade()
	w.BondScore = 148
	if got := w.AddBond(3, 10, "test"); got != 2 {
		t.Errorf("applied = %v, want 2", got)
	}
	if w.BondScore != MaxBond {
		t.Errorf("bond = %v, want %v", w.BondScore, MaxBond)
	}
	w.AddBond(4, -500, "test")
	if w.BondScore != 0 {
		t.Errorf("bond = %v, want 0", w.BondScore)
	}
	if len(w.BondEvents) != 2 {
		t.Errorf("events = %d, want 2", len(w.BondEvents))
	}
}

func TestApplyChapterSoulLink(t *testing.T) {
	w := newBlade()
	w.BondScore = 75
	l := &Loadout{Primary: w}

	up := ApplyChapter(l, ChapterInput{Chapter: 5, ActionCategory: "combat", Used: true, CombatOutcome: "player_wins"})

	if !w.SoulLinked || w.Grade != GradeSoulLinked {
		t.Fatalf("expected soul link, got linked=%v grade=%s", w.SoulLinked, w.Grade)
	}
	if w.SignatureMove.Version != 1 {
		t.Errorf("signature version = %d, want 1", w.SignatureMove.Version)
	}
	found := false
	for _, e := range up.Events {
		if e.Milestone == MilestoneSoulLink {
			found = true
		}
	}
	if !found {
		t.Errorf("soul link milestone missing from %+v", up.Events)
	}
}

func TestDormancyAndRecovery(t *testing.T) {
	w := newBlade()
	w.SoulLinked = true
	w.Grade = GradeSoulLinked
	w.BondScore = 90
	l := &Loadout{Primary: w}

	ApplyChapter(l, ChapterInput{Chapter: 1, Instability: 85})
	if !w.Dormant {
		t.Fatal("expected dormant weapon")
	}
	if got := LoadoutBonus(l, principle.Energy); got != 0 {
		t.Errorf("dormant bonus = %v, want 0", got)
	}
	if !NeedsRecoveryBeat(l, 40) {
		t.Error("expected recovery beat at low instability")
	}
	ApplyChapter(l, ChapterInput{Chapter: 2, Instability: 40})
	if w.Dormant {
		t.Error("expected recovery")
	}
}

func TestLoadoutBonusCapped(t *testing.T) {
	mk := func(id string) *Weapon {
		return &Weapon{ID: id, Grade: GradeArchonFragment, ArchonKey: "sethra", BondScore: MaxBond, Principles: []principle.Principle{principle.Void}}
	}
	l := &Loadout{Primary: mk("a"), Secondary: mk("b")}
	if got := LoadoutBonus(l, principle.Void); got != MaxCombatBonus {
		t.Errorf("bonus = %v, want %v", got, MaxCombatBonus)
	}
}

func TestDivineAbilityOncePerSeason(t *testing.T) {
	w := &Weapon{ID: "f", Grade: GradeArchonFragment, ArchonKey: "nyxara", Principles: []principle.Principle{principle.Void}}
	if err := w.UseDivineAbility(1); err != nil {
		t.Fatalf("first use: %v", err)
	}
	if err := w.UseDivineAbility(1); err == nil {
		t.Error("expected second use in same season to fail")
	}
	if err := w.UseDivineAbility(2); err != nil {
		t.Errorf("next season: %v", err)
	}
}

func TestValidate(t *testing.T) {
	w := newBlade()
	if err := w.Validate(); err != nil {
		t.Fatalf("valid weapon rejected: %v", err)
	}
	w.Principles = nil
	if err := w.Validate(); err == nil {
		t.Error("expected error for weapon without principles")
	}
}
