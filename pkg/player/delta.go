package player

import "slices"

// IdentityDelta is the per-chapter (or per-scene micro) change computed
// by the identity node.
type IdentityDelta struct {
	DQSChange          float64  `json:"dqs_change"`
	CoherenceChange    float64  `json:"coherence_change"`
	InstabilityChange  float64  `json:"instability_change"`
	BreakthroughChange float64  `json:"breakthrough_change"`
	AlignmentChange    float64  `json:"alignment_change"`
	NotorietyChange    float64  `json:"notoriety_change"`
	EchoTraceChange    float64  `json:"echo_trace_change"`
	DriftDirection     string   `json:"drift_direction,omitempty"`
	NewFlags           []string `json:"new_flags,omitempty"`

	ConfrontationTriggered bool `json:"confrontation_triggered"`
	BreakthroughTriggered  bool `json:"breakthrough_triggered"`
	PityReset              bool `json:"pity_reset"`
}

// IsZero reports whether the delta changes nothing.
func (d IdentityDelta) IsZero() bool {
	return d.DQSChange == 0 && d.CoherenceChange == 0 && d.InstabilityChange == 0 &&
		d.BreakthroughChange == 0 && d.AlignmentChange == 0 && d.NotorietyChange == 0 &&
		d.EchoTraceChange == 0 && d.DriftDirection == "" && len(d.NewFlags) == 0 &&
		!d.ConfrontationTriggered && !d.BreakthroughTriggered && !d.PityReset
}

// Scale multiplies every numeric change by f. Scene micro-updates use a
// fraction of the chapter weight.
func (d IdentityDelta) Scale(f float64) IdentityDelta {
	d.DQSChange *= f
	d.CoherenceChange *= f
	d.InstabilityChange *= f
	d.BreakthroughChange *= f
	d.AlignmentChange *= f
	d.NotorietyChange *= f
	d.EchoTraceChange *= f
	return d
}

const maxRecentFlags = 10

// ApplyDelta folds d into the player and clamps every score.
func (p *Player) ApplyDelta(d IdentityDelta) {
	p.DecisionQualityScore += d.DQSChange
	p.IdentityCoherence += d.CoherenceChange
	p.Instability += d.InstabilityChange
	p.BreakthroughMeter += d.BreakthroughChange
	p.Alignment += d.AlignmentChange
	p.Notoriety += d.NotorietyChange
	p.EchoTrace += d.EchoTraceChange

	if d.DriftDirection != "" {
		if d.DriftDirection == p.LatentIdentity.DriftDirection {
			p.LatentIdentity.DriftStrength = min(p.LatentIdentity.DriftStrength+0.1, 1)
		} else {
			p.LatentIdentity.DriftDirection = d.DriftDirection
			p.LatentIdentity.DriftStrength = 0.1
		}
	}
	for _, f := range d.NewFlags {
		p.SetFlag(f, true)
		p.LatentIdentity.RecentFlags = append(p.LatentIdentity.RecentFlags, f)
	}
	if n := len(p.LatentIdentity.RecentFlags); n > maxRecentFlags {
		p.LatentIdentity.RecentFlags = slices.Clone(p.LatentIdentity.RecentFlags[n-maxRecentFlags:])
	}
	if d.BreakthroughTriggered {
		p.BreakthroughMeter = 0
	}
	if d.PityReset {
		p.PityCounter = 0
	}
	p.Clamp()
}
