package weapon

import (
	"fmt"
	"slices"

	"github.com/amoisekai/engine/pkg/principle"
)

type Grade string

const (
	GradeMundane        Grade = "mundane"
	GradeResonant       Grade = "resonant"
	GradeSoulLinked     Grade = "soul_linked"
	GradeAwakened       Grade = "awakened"
	GradeArchonFragment Grade = "archon_fragment"
)

var Grades = []Grade{GradeMundane, GradeResonant, GradeSoulLinked, GradeAwakened, GradeArchonFragment}

func (g Grade) Valid() bool { return slices.Contains(Grades, g) }

// Slot names an equipment position.
type Slot string

const (
	SlotPrimary   Slot = "primary"
	SlotSecondary Slot = "secondary"
	SlotUtility   Slot = "utility"
)

// ArchonKeys are the five archons a fragment weapon or affinity counter
// can belong to.
var ArchonKeys = []string{"aurelion", "morvhaal", "sethra", "kaelthys", "nyxara"}

// Bond limits and thresholds.
const (
	MaxBond           = 150.0
	SoulLinkBond      = 80.0
	AwakenBond        = 130.0
	AwakenClimaxCount = 3
	MaxLoreFragments  = 5
)

// BondEvent is an append-only bond change record.
type BondEvent struct {
	Chapter int     `json:"chapter"`
	Delta   float64 `json:"delta"`
	Reason  string  `json:"reason"`
}

// SignatureMove evolves with the bond. Version 0 means not yet named.
type SignatureMove struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Version     int    `json:"version"`
}

// Weapon is a player-owned armament that can bond with its wielder.
type Weapon struct {
	ID                      string                `json:"id"`
	Name                    string                `json:"name"`
	Description             string                `json:"description,omitempty"`
	Grade                   Grade                 `json:"grade"`
	Principles              []principle.Principle `json:"principles"`
	BondScore               float64               `json:"bond_score"`
	SoulLinked              bool                  `json:"soul_linked"`
	Dormant                 bool                  `json:"dormant"`
	SignatureMove           SignatureMove         `json:"signature_move"`
	LoreFragmentsRevealed   int                   `json:"lore_fragments_revealed"`
	DivineAbilityUsedSeason int                   `json:"divine_ability_used_season,omitempty"`
	ArchonKey               string                `json:"archon_key,omitempty"`
	ShardCount              int                   `json:"shard_count"`
	ClimaxEncounterCount    int                   `json:"climax_encounter_count"`
	BondEvents              []BondEvent           `json:"bond_events"`
	ChaptersUnused          int                   `json:"chapters_unused"`
}

// Validate checks structural invariants.
func (w *Weapon) Validate() error {
	if !w.Grade.Valid() {
		return fmt.Errorf("weapon %s: unknown grade %q", w.ID, w.Grade)
	}
	if n := len(w.Principles); n < 1 || n > 3 {
		return fmt.Errorf("weapon %s: has %d principles, want 1-3", w.ID, n)
	}
	for _, p := range w.Principles {
		if !p.Valid() {
			return fmt.Errorf("weapon %s: unknown principle %q", w.ID, p)
		}
	}
	if w.BondScore < 0 || w.BondScore > MaxBond {
		return fmt.Errorf("weapon %s: bond %.1f out of range", w.ID, w.BondScore)
	}
	if w.LoreFragmentsRevealed < 0 || w.LoreFragmentsRevealed > MaxLoreFragments {
		return fmt.Errorf("weapon %s: lore fragments %d out of range", w.ID, w.LoreFragmentsRevealed)
	}
	if w.Grade == GradeArchonFragment && !slices.Contains(ArchonKeys, w.ArchonKey) {
		return fmt.Errorf("weapon %s: archon fragment without a known archon key", w.ID)
	}
	return nil
}

// HasPrinciple reports whether the weapon carries p.
func (w *Weapon) HasPrinciple(p principle.Principle) bool {
	return slices.Contains(w.Principles, p)
}

// AddBond records a bond change, clamped to [0, MaxBond]. The recorded
// delta is the applied amount.
func (w *Weapon) AddBond(chapter int, delta float64, reason string) float64 {
	before := w.BondScore
	w.BondScore = min(max(w.BondScore+delta, 0), MaxBond)
	applied := w.BondScore - before
	if applied != 0 {
		w.BondEvents = append(w.BondEvents, BondEvent{Chapter: chapter, Delta: applied, Reason: reason})
	}
	return applied
}

// UseDivineAbility spends an archon fragment's once-per-season power.
func (w *Weapon) UseDivineAbility(season int) error {
	if w.Grade != GradeArchonFragment {
		return fmt.Errorf("weapon %s is not an archon fragment", w.ID)
	}
	if w.Dormant {
		return fmt.Errorf("weapon %s is dormant", w.ID)
	}
	if w.DivineAbilityUsedSeason == season {
		return fmt.Errorf("divine ability already used in season %d", season)
	}
	w.DivineAbilityUsedSeason = season
	return nil
}

// Clone returns a deep copy.
func (w *Weapon) Clone() *Weapon {
	if w == nil {
		return nil
	}
	c := *w
	c.Principles = slices.Clone(w.Principles)
	c.BondEvents = slices.Clone(w.BondEvents)
	return &c
}

// Loadout is the three weapon slots.
type Loadout struct {
	Primary   *Weapon `json:"primary,omitempty"`
	Secondary *Weapon `json:"secondary,omitempty"`
	Utility   *Weapon `json:"utility,omitempty"`
}

// Get returns the weapon in slot.
func (l *Loadout) Get(slot Slot) *Weapon {
	switch slot {
	case SlotPrimary:
		return l.Primary
	case SlotSecondary:
		return l.Secondary
	case SlotUtility:
		return l.Utility
	}
	return nil
}

// Set places w into slot.
func (l *Loadout) Set(slot Slot, w *Weapon) error {
	switch slot {
	case SlotPrimary:
		l.Primary = w
	case SlotSecondary:
		l.Secondary = w
	case SlotUtility:
		l.Utility = w
	default:
		return fmt.Errorf("unknown weapon slot %q", slot)
	}
	return nil
}

// All returns equipped weapons in slot order.
func (l *Loadout) All() []*Weapon {
	var out []*Weapon
	for _, w := range []*Weapon{l.Primary, l.Secondary, l.Utility} {
		if w != nil {
			out = append(out, w)
		}
	}
	return out
}

// Clone deep-copies every slot.
func (l Loadout) Clone() Loadout {
	return Loadout{Primary: l.Primary.Clone(), Secondary: l.Secondary.Clone(), Utility: l.Utility.Clone()}
}
