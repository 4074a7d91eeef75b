package story

import (
	"fmt"
	"strings"

	"github.com/amoisekai/engine/pkg/skill"
)

// Recommendation says how strongly a scene should offer a unique skill choice.
type Recommendation string

const (
	SkillMandatory   Recommendation = "mandatory"
	SkillRecommended Recommendation = "recommended"
	SkillOptional    Recommendation = "optional"
	SkillDiscouraged Recommendation = "discouraged"
)

// MaxSkillUsesPerChapter is the point after which skill choices are discouraged.
const MaxSkillUsesPerChapter = 3

// RecommendSkillChoice applies the skill-choice eligibility table.
func RecommendSkillChoice(sceneType SceneType, tension int, beatDescription string, u *skill.UniqueSkill, usesThisChapter int) Recommendation {
	if u == nil {
		return SkillDiscouraged
	}
	switch sceneType {
	case SceneCombat, SceneDiscovery:
		return SkillMandatory
	}
	if usesThisChapter > MaxSkillUsesPerChapter {
		return SkillDiscouraged
	}
	switch sceneType {
	case SceneExploration:
		if tension >= 6 || mentions(beatDescription, u) {
			return SkillRecommended
		}
	case SceneDialogue:
		if tension >= 7 {
			return SkillRecommended
		}
		switch u.Category {
		case skill.CategoryPerception, skill.CategoryManipulation, skill.CategoryContract:
			return SkillRecommended
		}
	case SceneRest:
		return SkillDiscouraged
	}
	return SkillOptional
}

func mentions(desc string, u *skill.UniqueSkill) bool {
	d := strings.ToLower(desc)
	if strings.Contains(d, "skill") || strings.Contains(d, "ability") {
		return true
	}
	return u.Name != "" && strings.Contains(d, strings.ToLower(u.Name))
}

// FallbackChoices is the generic set used when the writer output has none.
func FallbackChoices() []Choice {
	return []Choice{
		{ID: "c1", Text: "Press forward carefully.", RiskLevel: 2, ConsequenceHint: "Slow but safe progress."},
		{ID: "c2", Text: "Look for another way around.", RiskLevel: 3, ConsequenceHint: "May reveal something hidden."},
		{ID: "c3", Text: "Act boldly before the moment passes.", RiskLevel: 4, ConsequenceHint: "High reward, high danger."},
	}
}

// NormalizeChoices enforces the choice contract: exactly three choices,
// distinct ids, risks in [1,5] and not all equal, plus a unique-skill
// choice when the scene type demands one.
func NormalizeChoices(cs []Choice, sceneType SceneType, u *skill.UniqueSkill) []Choice {
	out := make([]Choice, 0, ChoicesPerScene)
	for _, c := range cs {
		if strings.TrimSpace(c.Text) == "" {
			continue
		}
		c.RiskLevel = min(max(c.RiskLevel, 1), 5)
		out = append(out, c)
		if len(out) == ChoicesPerScene {
			break
		}
	}
	fb := FallbackChoices()
	for i := 0; len(out) < ChoicesPerScene; i++ {
		out = append(out, fb[i])
	}
	if allSameRisk(out) {
		for i := range out {
			out[i].RiskLevel = i + 2
		}
	}

	if u != nil && u.Name != "" && (sceneType == SceneCombat || sceneType == SceneDiscovery) {
		has := false
		for _, c := range out {
			if u.IsSkillChoice(c.Text) {
				has = true
				break
			}
		}
		if !has {
			out[len(out)-1] = skillChoice(u, sceneType, out[len(out)-1].RiskLevel)
			if allSameRisk(out) {
				for i := range out {
					out[i].RiskLevel = i + 2
				}
			}
		}
	}

	seen := map[string]bool{}
	for i := range out {
		for n := i + 1; out[i].ID == "" || seen[out[i].ID]; n++ {
			out[i].ID = fmt.Sprintf("c%d", n)
		}
		seen[out[i].ID] = true
	}
	return out
}

func skillChoice(u *skill.UniqueSkill, sceneType SceneType, risk int) Choice {
	hint := "Reveals what lies beneath the surface."
	if sceneType == SceneCombat {
		hint = "Turns the fight on the strength of your soul, at a cost."
	}
	mech := u.Mechanic
	if len([]rune(mech)) > 90 {
		mech = string([]rune(mech)[:90]) + "..."
	}
	return Choice{
		ID:              "skill",
		Text:            u.ChoicePrefix() + mech,
		RiskLevel:       max(risk, 3),
		ConsequenceHint: hint,
	}
}
