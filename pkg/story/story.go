package story

import (
	"fmt"
	"slices"
	"time"
)

type PreferenceTag string

const (
	TagCombat      PreferenceTag = "combat"
	TagPolitics    PreferenceTag = "politics"
	TagRomance     PreferenceTag = "romance"
	TagMystery     PreferenceTag = "mystery"
	TagHorror      PreferenceTag = "horror"
	TagCultivation PreferenceTag = "cultivation"
	TagAdventure   PreferenceTag = "adventure"
	TagStrategy    PreferenceTag = "strategy"
)

var PreferenceTags = []PreferenceTag{
	TagCombat, TagPolitics, TagRomance, TagMystery,
	TagHorror, TagCultivation, TagAdventure, TagStrategy,
}

func (t PreferenceTag) Valid() bool { return slices.Contains(PreferenceTags, t) }

type Tone string

const (
	ToneNone        Tone = ""
	ToneEpic        Tone = "epic"
	ToneDark        Tone = "dark"
	ToneComedy      Tone = "comedy"
	ToneSliceOfLife Tone = "slice_of_life"
	ToneMysterious  Tone = "mysterious"
)

var Tones = []Tone{ToneNone, ToneEpic, ToneDark, ToneComedy, ToneSliceOfLife, ToneMysterious}

func (t Tone) Valid() bool { return slices.Contains(Tones, t) }

// Story is one play-through for one user.
type Story struct {
	ID                string             `json:"id"`
	UserID            string             `json:"user_id"`
	PreferenceTags    []PreferenceTag    `json:"preference_tags"`
	Tone              Tone               `json:"tone"`
	ProtagonistName   string             `json:"protagonist_name"`
	Backstory         string             `json:"backstory"`
	BrainID           string             `json:"brain_id"`
	ChapterCount      int                `json:"chapter_count"`
	RecentSummaries   []string           `json:"recent_summaries"`
	CompanionAffinity map[string]float64 `json:"companion_affinity,omitempty"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

// Validate rejects unknown tags and tones.
func (s *Story) Validate() error {
	for _, t := range s.PreferenceTags {
		if !t.Valid() {
			return fmt.Errorf("unknown preference tag %q", t)
		}
	}
	if !s.Tone.Valid() {
		return fmt.Errorf("unknown tone %q", s.Tone)
	}
	return nil
}

// HasTag reports whether the story prefers t.
func (s *Story) HasTag(t PreferenceTag) bool { return slices.Contains(s.PreferenceTags, t) }

// AdjustCompanion shifts a companion's affinity within [-100, 100].
func (s *Story) AdjustCompanion(name string, delta float64) float64 {
	if s.CompanionAffinity == nil {
		s.CompanionAffinity = map[string]float64{}
	}
	v := min(max(s.CompanionAffinity[name]+delta, -100), 100)
	s.CompanionAffinity[name] = v
	return v
}

// PushSummary appends a chapter summary, keeping at most keep entries.
func (s *Story) PushSummary(summary string, keep int) {
	if summary == "" {
		return
	}
	s.RecentSummaries = append(s.RecentSummaries, summary)
	if keep > 0 && len(s.RecentSummaries) > keep {
		s.RecentSummaries = slices.Clone(s.RecentSummaries[len(s.RecentSummaries)-keep:])
	}
}
