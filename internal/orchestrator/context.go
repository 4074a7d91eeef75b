package orchestrator

import (
	"fmt"
	"strings"

	"github.com/amoisekai/engine/pkg/combat"
	"github.com/amoisekai/engine/pkg/player"
	"github.com/amoisekai/engine/pkg/principle"
	"github.com/amoisekai/engine/pkg/skill"
	"github.com/amoisekai/engine/pkg/story"
	"github.com/amoisekai/engine/pkg/world"
)

// recentCombats is how many past fights the adaptive hint looks at.
const recentCombats = 3

// ParseDecisions reads "action" or "action:intensity" strings.
func ParseDecisions(raw []string) ([]combat.Decision, error) {
	out := make([]combat.Decision, 0, len(raw))
	for i, r := range raw {
		action, intensity, _ := strings.Cut(strings.ToLower(strings.TrimSpace(r)), ":")
		d := combat.Decision{Action: combat.Action(action), Intensity: combat.Intensity(intensity)}
		switch d.Action {
		case combat.ActionStrike, combat.ActionShift, combat.ActionStabilize:
		default:
			return nil, fmt.Errorf("%w: decision %d has unknown action %q", combat.ErrInvalidInput, i, action)
		}
		switch d.Intensity {
		case combat.IntensitySafe, combat.IntensityPush, combat.IntensityOverdrive:
		case "":
			d.Intensity = combat.IntensitySafe
		default:
			return nil, fmt.Errorf("%w: decision %d has unknown intensity %q", combat.ErrInvalidInput, i, intensity)
		}
		out = append(out, d)
	}
	return out, nil
}

// adaptiveContext turns recent fights and the defeat count into a
// difficulty hint for the writer.
func adaptiveContext(p *player.Player, scenes []*story.Scene) string {
	var wins, losses int
	seen := 0
	for i := len(scenes) - 1; i >= 0 && seen < recentCombats; i-- {
		b := scenes[i].CombatBrief
		if b == nil {
			continue
		}
		seen++
		switch b.FinalOutcome {
		case combat.PlayerWins:
			wins++
		case combat.EnemyWins:
			losses++
		}
	}
	var hints []string
	switch {
	case losses >= 2 || p.DefeatCount >= 2:
		hints = append(hints, "The protagonist is struggling. Offer openings, allies or a way to retreat with dignity.")
	case wins == recentCombats:
		hints = append(hints, "The protagonist is winning easily. Raise the stakes and let enemies adapt.")
	}
	if p.HPFraction() < 0.3 {
		hints = append(hints, "The protagonist is badly hurt and should feel it.")
	}
	if p.CombatCountSinceRest >= 3 {
		hints = append(hints, "Several fights without rest have worn the protagonist down.")
	}
	return strings.Join(hints, " ")
}

func worldContext(w *world.State) string {
	if w == nil {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Season %d. Veiled will phase %d. Empire resonance %.0f, identity anchor %.0f.\n",
		w.Season, w.Empire.VeiledWillPhase, w.Empire.EmpireResonance, w.Empire.IdentityAnchor)
	if w.Tower.HighestFloor > 0 {
		fmt.Fprintf(&b, "Tower floor %d cleared, instability %.0f.\n", w.Tower.HighestFloor, w.Tower.Instability)
	}
	if n := len(w.NarrativeEvents); n > 0 {
		start := max(n-3, 0)
		b.WriteString("Recent: " + strings.Join(w.NarrativeEvents[start:], "; "))
	}
	return strings.TrimSpace(b.String())
}

func resonanceContext(p *player.Player) string {
	dom, v := p.Resonance.Dominant()
	if v <= 0 {
		return ""
	}
	out := fmt.Sprintf("Strongest resonance: %s (%.2f).", dom, v)
	if p.ProtoSovereign {
		out += " The protagonist carries a proto-sovereign resonance."
	}
	return out
}

func weaponContext(p *player.Player) string {
	var parts []string
	for _, w := range p.EquippedWeapons.All() {
		s := fmt.Sprintf("%s (%s, bond %.0f)", w.Name, w.Grade, w.BondScore)
		if w.Dormant {
			s += " dormant"
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, "; ")
}

// combatSkill picks the equipped skill that fits the enemy best.
func combatSkill(p *player.Player, enemy principle.Principle) *skill.PlayerSkill {
	var best *skill.PlayerSkill
	bestFit := -1.0
	for _, s := range p.Equipped() {
		if s.Absorbed {
			continue
		}
		if fit := combat.BuildFit(p.Resonance, s, enemy); fit > bestFit {
			best, bestFit = s, fit
		}
	}
	return best
}

// mentionedSkill returns the equipped skill named in text, if any.
func mentionedSkill(p *player.Player, text string) *skill.PlayerSkill {
	text = strings.ToLower(text)
	if text == "" {
		return nil
	}
	for _, s := range p.Equipped() {
		if name := strings.ToLower(s.Name()); name != "" && strings.Contains(text, name) {
			return s
		}
	}
	return nil
}

// enemyFor builds the opponent of a combat beat.
func enemyFor(b *story.Beat, chapter int) combat.EnemyProfile {
	if b.Enemy != nil {
		e := *b.Enemy
		e.ThreatLevel = min(max(e.ThreatLevel, 0), 1)
		return e
	}
	threat := 0.2 + 0.05*float64(b.Tension) + 0.002*float64(min(chapter, 100))
	return combat.EnemyProfile{
		Name:        "a hostile presence",
		ThreatLevel: min(threat, 0.95),
		Description: b.Description,
	}
}

func proseTail(scenes []*story.Scene, n int) []string {
	start := max(len(scenes)-n, 0)
	out := make([]string, 0, n)
	for _, s := range scenes[start:] {
		out = append(out, s.Prose)
	}
	return out
}
