package soulforge

import (
	"math"
	"unicode/utf8"
)

// ChoiceRecord is one answered scene with its timing.
type ChoiceRecord struct {
	Scene          int    `json:"scene"`
	Variant        string `json:"variant,omitempty"`
	ChoiceIndex    int    `json:"choice_index"`
	ResponseTimeMS int    `json:"response_time_ms"`
	HoverCount     int    `json:"hover_count"`
}

// Fragment is the free-text soul fragment typed after scene 5.
type Fragment struct {
	Text          string `json:"text"`
	TypingTimeMS  int    `json:"typing_time_ms"`
	RevisionCount int    `json:"revision_count"`
}

// BehavioralFingerprint describes how the player answered, each trait in
// [0,1].
type BehavioralFingerprint struct {
	Decisiveness     float64 `json:"decisiveness"`
	Deliberation     float64 `json:"deliberation"`
	Expressiveness   float64 `json:"expressiveness"`
	Confidence       float64 `json:"confidence"`
	Patience         float64 `json:"patience"`
	Consistency      float64 `json:"consistency"`
	Impulsivity      float64 `json:"impulsivity"`
	RevisionTendency float64 `json:"revision_tendency"`
}

// Scaling points for the raw measurements.
const (
	fastResponseMS    = 2000.0
	slowResponseMS    = 15000.0
	manyHovers        = 4.0
	fluentCharsPerSec = 6.0
	longFragmentRunes = 300.0
	manyRevisions     = 8.0
)

// Traits returns the fingerprint as name/value pairs in a fixed order.
func (f BehavioralFingerprint) Traits() []Trait {
	return []Trait{
		{"decisiveness", f.Decisiveness},
		{"deliberation", f.Deliberation},
		{"expressiveness", f.Expressiveness},
		{"confidence", f.Confidence},
		{"patience", f.Patience},
		{"consistency", f.Consistency},
		{"impulsivity", f.Impulsivity},
		{"revision_tendency", f.RevisionTendency},
	}
}

type Trait struct {
	Name  string
	Value float64
}

// ComputeFingerprint derives the fingerprint from response times, hover
// counts, typing speed and revisions.
func ComputeFingerprint(choices []ChoiceRecord, frag Fragment) BehavioralFingerprint {
	var sum, hovers float64
	fast := 0
	for _, c := range choices {
		sum += float64(c.ResponseTimeMS)
		hovers += float64(c.HoverCount)
		if float64(c.ResponseTimeMS) < fastResponseMS {
			fast++
		}
	}
	n := float64(max(len(choices), 1))
	mean := sum / n
	var variance float64
	for _, c := range choices {
		d := float64(c.ResponseTimeMS) - mean
		variance += d * d
	}
	std := math.Sqrt(variance / n)
	fastFrac := float64(fast) / n
	meanHover := hovers / n

	runes := float64(utf8.RuneCountInString(frag.Text))
	speed := 0.0
	if frag.TypingTimeMS > 0 {
		speed = runes / (float64(frag.TypingTimeMS) / 1000)
	}
	revisions := unit(float64(frag.RevisionCount) / manyRevisions)

	consistency := 1.0
	if mean > 0 {
		consistency = 1 - unit(std/mean)
	}
	slowness := unit((mean - fastResponseMS) / (slowResponseMS - fastResponseMS))
	return BehavioralFingerprint{
		Decisiveness:     unit(1 - slowness),
		Deliberation:     unit(0.5*slowness + 0.5*meanHover/manyHovers),
		Expressiveness:   unit(0.6*runes/longFragmentRunes + 0.4*speed/fluentCharsPerSec),
		Confidence:       unit(0.5*(1-meanHover/manyHovers) + 0.5*(1-revisions)),
		Patience:         unit(0.6*slowness + 0.4*(1-fastFrac)),
		Consistency:      consistency,
		Impulsivity:      fastFrac,
		RevisionTendency: revisions,
	}
}

func unit(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return min(max(v, 0), 1)
}
