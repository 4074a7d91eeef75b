package story

import (
	"fmt"
	"time"

	"github.com/amoisekai/engine/pkg/combat"
	"github.com/amoisekai/engine/pkg/player"
)

// ChoicesPerScene is the fixed number of choices offered after a scene.
const ChoicesPerScene = 3

// Choice is one option offered at the end of a scene.
type Choice struct {
	ID              string `json:"id"`
	Text            string `json:"text"`
	RiskLevel       int    `json:"risk_level"`
	ConsequenceHint string `json:"consequence_hint"`
}

// Scene is one generated unit of prose.
type Scene struct {
	ID             string                `json:"id"`
	ChapterID      string                `json:"chapter_id"`
	SceneNumber    int                   `json:"scene_number"`
	BeatIndex      int                   `json:"beat_index"`
	Title          string                `json:"title"`
	Prose          string                `json:"prose"`
	Choices        []Choice              `json:"choices"`
	SceneType      SceneType             `json:"scene_type"`
	Mood           string                `json:"mood"`
	Tension        int                   `json:"tension"`
	IsChapterEnd   bool                  `json:"is_chapter_end"`
	ChosenChoiceID string                `json:"chosen_choice_id,omitempty"`
	IdentityDelta  *player.IdentityDelta `json:"identity_delta,omitempty"`
	CriticScore    float64               `json:"critic_score"`
	CombatBrief    *combat.Brief         `json:"combat_brief,omitempty"`
	CreatedAt      time.Time             `json:"created_at"`
}

// Validate checks the choice contract.
func (s *Scene) Validate() error {
	if len(s.Choices) != ChoicesPerScene {
		return fmt.Errorf("scene %d has %d choices, want %d", s.SceneNumber, len(s.Choices), ChoicesPerScene)
	}
	if allSameRisk(s.Choices) {
		return fmt.Errorf("scene %d choices all share risk %d", s.SceneNumber, s.Choices[0].RiskLevel)
	}
	for _, c := range s.Choices {
		if c.RiskLevel < 1 || c.RiskLevel > 5 {
			return fmt.Errorf("choice %s risk %d out of range", c.ID, c.RiskLevel)
		}
	}
	return nil
}

// FindChoice returns the choice with id.
func (s *Scene) FindChoice(id string) *Choice {
	for i := range s.Choices {
		if s.Choices[i].ID == id {
			return &s.Choices[i]
		}
	}
	return nil
}

func allSameRisk(cs []Choice) bool {
	for _, c := range cs[1:] {
		if c.RiskLevel != cs[0].RiskLevel {
			return false
		}
	}
	return true
}
