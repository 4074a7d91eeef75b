package soulforge

import (
	"fmt"

	"github.com/amoisekai/engine/pkg/player"
	"github.com/amoisekai/engine/pkg/skill"
)

type fallbackBase struct {
	name, mechanic, quirk, limitation, passive, passiveMech string
	category                                                skill.Category
	blindSpot                                               skill.Category
}

var fallbackByArchetype = map[player.Archetype]fallbackBase{
	player.ArchetypeVanguard: {
		name: "Unbroken Line", category: skill.CategoryManifestation, blindSpot: skill.CategoryObfuscation,
		mechanic: "Plants the user's will as a line no enemy may cross without paying in stamina.", quirk: "The line hums louder the more allies stand behind it.",
		limitation: "The user cannot advance past their own line while it holds.", passive: "Frontline Instinct", passiveMech: "The user always senses the first strike of an ambush.",
	},
	player.ArchetypeCatalyst: {
		name: "Spark Cascade", category: skill.CategoryManipulation, blindSpot: skill.CategoryContract,
		mechanic: "Turns a small action into a chain reaction through nearby energy and matter.", quirk: "Each cascade leaves a scent of rain.",
		limitation: "The user cannot choose where the chain ends.", passive: "Kindling", passiveMech: "Stalled situations start moving when the user acts.",
	},
	player.ArchetypeSovereign: {
		name: "Weight of the Crown", category: skill.CategoryContract, blindSpot: skill.CategoryPerception,
		mechanic: "Binds a spoken command to a willing listener, who gains strength while obeying.", quirk: "The user's shadow wears a crown while a command holds.",
		limitation: "Commands only bind those who have accepted the user's lead.", passive: "Regal Presence", passiveMech: "Strangers instinctively wait for the user to speak first.",
	},
	player.ArchetypeSeeker: {
		name: "Thread of Truth", category: skill.CategoryPerception, blindSpot: skill.CategoryManifestation,
		mechanic: "Pulls on the one true thread in a lie and follows it to its source.", quirk: "The user tastes copper when a thread is found.",
		limitation: "Works on one lie per scene.", passive: "Lantern Mind", passiveMech: "Hidden details in a room surface a moment earlier for the user.",
	},
	player.ArchetypeTactician: {
		name: "Second Board", category: skill.CategoryObfuscation, blindSpot: skill.CategoryManipulation,
		mechanic: "Lays a false picture of the battlefield over the real one for every enemy watching.", quirk: "Allies see faint chalk lines where the false board diverges.",
		limitation: "The illusion breaks the moment the user takes a hit.", passive: "Read the Field", passiveMech: "The user knows every exit of any room they enter.",
	},
	player.ArchetypeWanderer: {
		name: "Road Between", category: skill.CategoryManipulation, blindSpot: skill.CategoryContract,
		mechanic: "Steps through a narrow gap in space to any place the user has walked before.", quirk: "The user arrives with dust from the last road on their boots.",
		limitation: "The user cannot carry more than they can hold in two hands.", passive: "Always Lost, Never Trapped", passiveMech: "The user can always find a way out, never a way in.",
	},
}

type anchorFlavor struct {
	suffix       string
	weakness     string
	weaknessType skill.WeaknessType
	clause       string
	trigger      string
}

var fallbackByAnchor = map[VoidAnchor]anchorFlavor{
	AnchorConnection: {
		suffix: "of the Held Hand", weaknessType: skill.WeaknessSoulEcho,
		weakness: "Each use replays the user's worst goodbye until they rest.",
		clause:   "Can share its effect with one bonded ally.", trigger: "stability >= 50",
	},
	AnchorPower: {
		suffix: "of the Iron Crown", weaknessType: skill.WeaknessEscalationCurse,
		weakness: "Each use in a chapter costs more stability than the last.",
		clause:   "Can overpower a technique of higher tier once per chapter.", trigger: "hp < 50%",
	},
	AnchorKnowledge: {
		suffix: "of the Open Book", weaknessType: skill.WeaknessSensoryTax,
		weakness: "Each use dims one sense until the next scene.",
		clause:   "Can reveal a target's weakness before using the skill on it.", trigger: "instability < 40",
	},
	AnchorSilence: {
		suffix: "of the Closed Hand", weaknessType: skill.WeaknessEnvironmentLock,
		weakness: "Fails in loud places.",
		clause:   "Cannot be detected while it is active.", trigger: "coherence >= 60",
	},
}

// FallbackSkill returns the deterministic unique skill used when the forge
// call fails outright.
func FallbackSkill(a player.Archetype, anchor VoidAnchor) skill.UniqueSkill {
	base, ok := fallbackByArchetype[a]
	if !ok {
		base = fallbackByArchetype[player.ArchetypeWanderer]
	}
	fl, ok := fallbackByAnchor[anchor]
	if !ok {
		fl = fallbackByAnchor[AnchorSilence]
	}
	return skill.NewSeed(skill.UniqueSkill{
		Name:                  fmt.Sprintf("%s %s", base.name, fl.suffix),
		Description:           base.mechanic,
		Category:              base.category,
		Mechanic:              base.mechanic + " " + base.quirk,
		Quirk:                 base.quirk,
		Limitation:            base.limitation,
		Weakness:              fl.weakness,
		WeaknessType:          fl.weaknessType,
		UniqueClause:          fl.clause,
		UniqueClauseTrigger:   fl.trigger,
		DomainPassiveName:     base.passive,
		DomainPassiveMechanic: base.passiveMech,
		AxisBlindSpot:         base.blindSpot,
		Resilience:            50,
		UniquenessScore:       1,
	})
}
