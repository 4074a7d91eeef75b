package player

// Rank is the resonance mastery tier.
type Rank int

const (
	RankAwakened Rank = iota + 1
	RankAttuned
	RankStabilized
	RankHarmonized
	RankTranscendent
)

var rankNames = map[Rank]string{
	RankAwakened:     "Awakened",
	RankAttuned:      "Attuned",
	RankStabilized:   "Stabilized",
	RankHarmonized:   "Harmonized",
	RankTranscendent: "Transcendent",
}

func (r Rank) String() string {
	if n, ok := rankNames[r]; ok {
		return n
	}
	return "Unknown"
}

// rankThresholds[i] is the points needed for rank i+1.
var rankThresholds = []float64{0, 10, 25, 45, 70}

// ResonanceMastery tracks rank progression.
type ResonanceMastery struct {
	Rank   Rank    `json:"rank"`
	Points float64 `json:"points"`
}

// AddPoints adds pts and returns true when the rank went up.
func (m *ResonanceMastery) AddPoints(pts float64) bool {
	if pts <= 0 {
		return false
	}
	before := m.Rank
	m.Points += pts
	for i := len(rankThresholds) - 1; i >= 0; i-- {
		if m.Points >= rankThresholds[i] {
			m.Rank = Rank(i + 1)
			break
		}
	}
	if m.Rank < before {
		m.Rank = before
	}
	return m.Rank > before
}

// ChapterMasteryPoints is what a finished chapter is worth: a base point
// plus coherence and resonance peak contributions.
func ChapterMasteryPoints(coherence, peakResonance float64, combatWins int) float64 {
	pts := 1.0
	if coherence >= 70 {
		pts += 0.5
	}
	pts += peakResonance
	pts += 0.25 * float64(min(combatWins, 4))
	return pts
}
