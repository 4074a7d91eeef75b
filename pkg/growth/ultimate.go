package growth

import (
	"fmt"
	"strings"

	"github.com/amoisekai/engine/pkg/player"
	"github.com/amoisekai/engine/pkg/skill"
)

// Ultimate arc scenes.
const (
	ArcLimit     = 1
	ArcResonance = 2
	ArcNaming    = 3
)

const (
	UltimateStabilityCostPct = 80.0
	UltimatePenaltyChapters  = 3
)

// MasteredSkill returns the first equipped normal skill that is refined
// and used at least MasteryUsage times.
func MasteredSkill(p *player.Player) *skill.PlayerSkill {
	for _, s := range p.Equipped() {
		if s.Refined && !s.Absorbed && s.UsageCount >= MasteryUsage {
			return s
		}
	}
	return nil
}

// UltimateReady reports whether the ultimate arc may begin.
func UltimateReady(p *player.Player) bool {
	u := p.UniqueSkill
	g := &p.UniqueSkillGrowth
	return u != nil && u.CurrentStage == skill.StageAspect && g.AspectForged && !g.UltimateForged &&
		p.ResonanceMastery.Rank >= UltimateRank && MasteredSkill(p) != nil
}

// ArcInfo describes the current ultimate arc scene for the writer.
type ArcInfo struct {
	Scene      int    `json:"scene"`
	Phase      string `json:"phase"`
	AbsorbedID string `json:"absorbed_id"`
}

// AdvanceUltimateArc moves the arc forward one scene at a time.
func AdvanceUltimateArc(p *player.Player, scene int) (*ArcInfo, error) {
	g := &p.UniqueSkillGrowth
	if !UltimateReady(p) {
		return nil, ErrNotReady
	}
	if scene != g.UltimateArcScene+1 || scene > ArcNaming {
		return nil, fmt.Errorf("%w: %d after %d", ErrArcOutOfOrder, scene, g.UltimateArcScene)
	}
	g.UltimateArcScene = scene
	phase := map[int]string{ArcLimit: "limit", ArcResonance: "resonance", ArcNaming: "naming"}[scene]
	return &ArcInfo{Scene: scene, Phase: phase, AbsorbedID: MasteredSkill(p).ID}, nil
}

// UltimateForm is what the naming event produces.
type UltimateForm struct {
	TitleName        string                `json:"title_name"`
	Honorific        string                `json:"honorific"`
	Title            string                `json:"title"`
	TranscendentCore string                `json:"transcendent_core"`
	Ability          skill.UltimateAbility `json:"ultimate_ability"`
	MergedSubSkills  []skill.SubSkill      `json:"merged_sub_skills,omitempty"`
}

// Name formats the ultimate name as "<title name> — <honorific>".
func (f UltimateForm) Name() string {
	return strings.TrimSpace(f.TitleName) + " — " + strings.TrimSpace(f.Honorific)
}

// FallbackUltimate builds a form without the narrator.
func FallbackUltimate(u *skill.UniqueSkill, absorbed *skill.PlayerSkill) UltimateForm {
	return UltimateForm{
		TitleName:        u.Name,
		Honorific:        "Chúa Tể",
		Title:            "Sovereign of " + u.Name,
		TranscendentCore: fmt.Sprintf("%s and %s become one will.", u.Name, absorbed.Name()),
		Ability: skill.UltimateAbility{
			Name:        u.Name + ": Final Oath",
			Description: "The full weight of the skill, released once.",
			Weakness:    "The user is hollowed for several chapters afterwards.",
		},
	}
}

// ApplyUltimate forges the ultimate and absorbs the mastered skill. The
// arc must have reached its naming scene.
func ApplyUltimate(p *player.Player, f UltimateForm, absorbedID string) error {
	u := p.UniqueSkill
	if u == nil {
		return ErrNoUniqueSkill
	}
	g := &p.UniqueSkillGrowth
	if u.CurrentStage != skill.StageAspect || !g.AspectForged {
		return ErrWrongStage
	}
	if g.UltimateArcScene != ArcNaming {
		return fmt.Errorf("%w: naming needs scene %d, arc is at %d", ErrArcOutOfOrder, ArcNaming, g.UltimateArcScene)
	}
	if f.TitleName == "" || f.Honorific == "" {
		return ErrMissingUltimate
	}
	absorbed := p.OwnedSkill(absorbedID)
	if absorbed == nil || absorbed.Absorbed {
		return ErrNoMasteredSkill
	}

	u.Name = f.Name()
	u.Title = f.Title
	u.TranscendentCore = f.TranscendentCore
	ab := f.Ability
	ab.StabilityCostPct = UltimateStabilityCostPct
	if ab.PenaltyChapters == 0 {
		ab.PenaltyChapters = UltimatePenaltyChapters
	}
	ab.LastUsedSeason = 0
	u.Ultimate = &ab
	for _, s := range f.MergedSubSkills {
		s.Stage = skill.StageUltimate
		u.SubSkills = append(u.SubSkills, s)
	}
	u.CurrentStage = skill.StageUltimate
	u.SuppressionResistance = skill.SuppressionUltimate

	absorbed.Absorbed = true
	p.Unequip(absorbedID)

	g.UltimateForged = true
	g.UltimateForm = u.Name
	g.UltimateArcScene = 0
	g.SubSkillsUnlocked = len(u.SubSkills)
	return nil
}

// UseUltimate spends the season's ultimate. It costs 80% of the player's
// current stability.
func UseUltimate(p *player.Player, season int) error {
	u := p.UniqueSkill
	if u == nil || u.Ultimate == nil {
		return ErrWrongStage
	}
	if u.Ultimate.LastUsedSeason == season {
		return ErrUltimateUsed
	}
	u.Ultimate.LastUsedSeason = season
	p.Stability -= p.Stability * u.Ultimate.StabilityCostPct / 100
	p.Clamp()
	return nil
}
