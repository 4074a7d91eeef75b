package soulforge

import (
	"sort"

	"github.com/amoisekai/engine/pkg/player"
)

type cue struct {
	key, value string
}

var archetypeCues = map[player.Archetype][]cue{
	player.ArchetypeVanguard:  {{SignalConflictResponse, "confront"}, {SignalCourageVsCleverness, "courage"}, {SignalRiskTolerance, "high"}},
	player.ArchetypeCatalyst:  {{SignalRiskTolerance, "high"}, {SignalMoralCore, "freedom"}, {SignalDecisionPattern, "decisive"}},
	player.ArchetypeSovereign: {{SignalVoidAnchor, "power"}, {SignalMoralCore, "order"}, {SignalPowerVsConnection, "power"}},
	player.ArchetypeSeeker:    {{SignalVoidAnchor, "knowledge"}, {SignalMoralCore, "truth"}, {SignalDecisionPattern, "analytical"}},
	player.ArchetypeTactician: {{SignalCourageVsCleverness, "cleverness"}, {SignalDecisionPattern, "patient"}, {SignalConflictResponse, "deceive"}},
	player.ArchetypeWanderer:  {{SignalVoidAnchor, "silence"}, {SignalAttachmentStyle, "avoidant"}, {SignalConflictResponse, "withdraw"}},
}

var dnaCues = map[player.DNATag][]cue{
	player.DNAShadow:    {{SignalConflictResponse, "deceive"}, {SignalAttachmentStyle, "avoidant"}, {SignalVoidAnchor, "silence"}},
	player.DNAOath:      {{SignalMoralCore, "loyalty"}, {SignalConflictResponse, "endure"}, {SignalMoralCore, "order"}},
	player.DNABloodline: {{SignalSacrificeType, "self"}, {SignalVoidAnchor, "connection"}, {SignalAttachmentStyle, "anxious"}},
	player.DNATech:      {{SignalDecisionPattern, "analytical"}, {SignalCourageVsCleverness, "cleverness"}, {SignalVoidAnchor, "knowledge"}},
	player.DNAChaos:     {{SignalRiskTolerance, "high"}, {SignalMoralCore, "freedom"}, {SignalDecisionPattern, "decisive"}},
	player.DNAMind:      {{SignalMoralCore, "truth"}, {SignalDecisionPattern, "patient"}, {SignalDecisionPattern, "cautious"}},
	player.DNACharm:     {{SignalPowerVsConnection, "connection"}, {SignalAttachmentStyle, "secure"}, {SignalMoralCore, "mercy"}},
	player.DNARelic:     {{SignalVoidAnchor, "power"}, {SignalMoralCore, "survival"}, {SignalSacrificeType, "other"}},
}

func score(sig *IdentitySignals, cues []cue) int {
	n := 0
	for _, c := range cues {
		n += sig.Count(c.key, c.value)
	}
	return n
}

// DeriveArchetype picks the archetype whose cues the player hit most.
// Ties resolve in declaration order.
func DeriveArchetype(sig *IdentitySignals, fp BehavioralFingerprint) player.Archetype {
	best, bestScore := player.ArchetypeWanderer, -1.0
	for _, a := range player.Archetypes {
		s := float64(score(sig, archetypeCues[a]))
		switch a {
		case player.ArchetypeVanguard, player.ArchetypeCatalyst:
			s += fp.Decisiveness * 0.5
		case player.ArchetypeSeeker, player.ArchetypeTactician:
			s += fp.Deliberation * 0.5
		}
		if s > bestScore {
			best, bestScore = a, s
		}
	}
	return best
}

// DeriveDNA returns up to three DNA tags ordered by strength.
func DeriveDNA(sig *IdentitySignals) []player.DNATag {
	type scored struct {
		tag   player.DNATag
		score int
		order int
	}
	var all []scored
	for i, tag := range player.DNATags {
		if s := score(sig, dnaCues[tag]); s > 0 {
			all = append(all, scored{tag, s, i})
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].score != all[j].score {
			return all[i].score > all[j].score
		}
		return all[i].order < all[j].order
	})
	out := []player.DNATag{}
	for i := 0; i < len(all) && i < 3; i++ {
		out = append(out, all[i].tag)
	}
	return out
}
