package weapon

import (
	"fmt"

	"github.com/amoisekai/engine/pkg/principle"
)

// Milestone is a threshold crossed during a bond pass.
type Milestone string

const (
	MilestoneSoulLink     Milestone = "soul_link"
	MilestoneAwakening    Milestone = "awakening"
	MilestoneDormant      Milestone = "dormant"
	MilestoneRecovery     Milestone = "dormant_recovery"
	MilestoneLoreFragment Milestone = "lore_fragment"
	MilestoneSignature    Milestone = "signature_evolved"
)

// Instability bounds for dormancy.
const (
	DormantInstability  = 80.0
	RecoverInstability  = 50.0
	UnusedDecayAfter    = 5
	loreFragmentSpacing = 30.0
)

// ChapterInput summarises what happened to the wielder this chapter.
type ChapterInput struct {
	Chapter        int
	ActionCategory string
	ChoiceRisk     int
	CombatOutcome  string
	Climax         bool
	Used           bool
	Instability    float64
	ArchonKey      string
}

// Event reports one change to one weapon.
type Event struct {
	Slot      Slot      `json:"slot"`
	WeaponID  string    `json:"weapon_id"`
	Milestone Milestone `json:"milestone"`
	Detail    string    `json:"detail"`
}

// Update is the result of a chapter bond pass.
type Update struct {
	Events         []Event        `json:"events"`
	ArchonAffinity map[string]int `json:"archon_affinity,omitempty"`
	CombatBonus    float64        `json:"combat_bonus"`
}

// BondDelta scores how much one chapter deepens the bond.
func BondDelta(in ChapterInput) float64 {
	if !in.Used {
		return 0
	}
	delta := 2.0
	switch in.ActionCategory {
	case "combat", "skill_use":
		delta += 3
	case "soul_choice":
		delta += 4
	case "stealth", "exploration":
		delta += 1
	}
	if in.ChoiceRisk >= 4 {
		delta += 2
	}
	switch in.CombatOutcome {
	case "player_wins":
		delta += 3
	case "enemy_wins":
		delta -= 2
	}
	if in.Climax {
		delta += 5
	}
	return delta
}

// ApplyChapter runs the post-chapter weapon pass over the loadout. It
// mutates the weapons in place; callers pass a snapshot.
func ApplyChapter(l *Loadout, in ChapterInput) Update {
	up := Update{ArchonAffinity: map[string]int{}}
	for _, slot := range []Slot{SlotPrimary, SlotSecondary, SlotUtility} {
		w := l.Get(slot)
		if w == nil {
			continue
		}
		up.Events = append(up.Events, applyOne(w, slot, in)...)
		if w.Grade == GradeArchonFragment && in.Used {
			up.ArchonAffinity[w.ArchonKey]++
		}
	}
	if in.ArchonKey != "" {
		up.ArchonAffinity[in.ArchonKey]++
	}
	up.CombatBonus = LoadoutBonus(l, "")
	return up
}

func applyOne(w *Weapon, slot Slot, in ChapterInput) []Event {
	var events []Event
	emit := func(m Milestone, detail string) {
		events = append(events, Event{Slot: slot, WeaponID: w.ID, Milestone: m, Detail: detail})
	}

	if in.Used {
		w.ChaptersUnused = 0
	} else {
		w.ChaptersUnused++
	}
	// only the wielded primary feels neglect
	if slot == SlotPrimary && w.ChaptersUnused > UnusedDecayAfter {
		w.AddBond(in.Chapter, -1, "unused")
	}

	before := w.BondScore
	if d := BondDelta(in); d != 0 {
		w.AddBond(in.Chapter, d, "chapter:"+in.ActionCategory)
	}
	if in.Climax && in.Used {
		w.ClimaxEncounterCount++
	}

	for w.LoreFragmentsRevealed < MaxLoreFragments &&
		w.BondScore >= float64(w.LoreFragmentsRevealed+1)*loreFragmentSpacing &&
		before < w.BondScore {
		w.LoreFragmentsRevealed++
		emit(MilestoneLoreFragment, fmt.Sprintf("fragment %d of %d", w.LoreFragmentsRevealed, MaxLoreFragments))
	}

	if w.Dormant {
		if in.Instability < RecoverInstability {
			w.Dormant = false
			emit(MilestoneRecovery, "the weapon stirs again")
		}
		return events
	}
	if w.SoulLinked && in.Instability > DormantInstability {
		w.Dormant = true
		emit(MilestoneDormant, "instability severed the link")
		return events
	}

	if !w.SoulLinked && w.BondScore >= SoulLinkBond {
		w.SoulLinked = true
		if w.Grade == GradeMundane || w.Grade == GradeResonant {
			w.Grade = GradeSoulLinked
		}
		w.SignatureMove.Version = max(w.SignatureMove.Version, 1)
		emit(MilestoneSoulLink, "bond reached soul link")
	}
	if w.SoulLinked && w.Grade == GradeSoulLinked &&
		w.BondScore >= AwakenBond && w.ClimaxEncounterCount >= AwakenClimaxCount {
		w.Grade = GradeAwakened
		emit(MilestoneAwakening, "the weapon awakens")
	}
	if v := signatureVersion(w); v > w.SignatureMove.Version {
		w.SignatureMove.Version = v
		emit(MilestoneSignature, fmt.Sprintf("signature move v%d", v))
	}
	return events
}

func signatureVersion(w *Weapon) int {
	switch {
	case w.Grade == GradeAwakened || w.Grade == GradeArchonFragment:
		return 3
	case w.SoulLinked && w.BondScore >= 110:
		return 2
	case w.SoulLinked:
		return 1
	}
	return 0
}

// gradeBonus is the raw combat contribution per grade.
var gradeBonus = map[Grade]float64{
	GradeMundane:        0,
	GradeResonant:       0.02,
	GradeSoulLinked:     0.04,
	GradeAwakened:       0.06,
	GradeArchonFragment: 0.08,
}

// MaxCombatBonus caps the loadout's contribution to a combat score.
const MaxCombatBonus = 0.10

// CombatBonus is one weapon's contribution when the active skill uses
// skillPrinciple (empty means unknown).
func CombatBonus(w *Weapon, skillPrinciple principle.Principle) float64 {
	if w == nil || w.Dormant {
		return 0
	}
	b := gradeBonus[w.Grade] + w.BondScore/MaxBond*0.02
	if skillPrinciple != "" && w.HasPrinciple(skillPrinciple) {
		b += 0.02
	}
	return b
}

// LoadoutBonus sums the primary and half the secondary, capped.
func LoadoutBonus(l *Loadout, skillPrinciple principle.Principle) float64 {
	if l == nil {
		return 0
	}
	b := CombatBonus(l.Primary, skillPrinciple) + CombatBonus(l.Secondary, skillPrinciple)/2
	return min(b, MaxCombatBonus)
}

// NeedsRecoveryBeat reports whether a dormant weapon is ready to return.
func NeedsRecoveryBeat(l *Loadout, instability float64) bool {
	for _, w := range l.All() {
		if w.Dormant && instability < RecoverInstability {
			return true
		}
	}
	return false
}

// PendingSoulLink reports whether a weapon is close to soul link, used by
// the planner to schedule the beat.
func PendingSoulLink(l *Loadout) *Weapon {
	for _, w := range l.All() {
		if !w.SoulLinked && w.BondScore >= SoulLinkBond-10 {
			return w
		}
	}
	return nil
}

// PendingAwakening reports a soul-linked weapon one climax short of awakening.
func PendingAwakening(l *Loadout) *Weapon {
	for _, w := range l.All() {
		if w.Grade == GradeSoulLinked && w.BondScore >= AwakenBond &&
			w.ClimaxEncounterCount >= AwakenClimaxCount-1 {
			return w
		}
	}
	return nil
}
