package pipeline

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/amoisekai/engine/pkg/player"
	"github.com/amoisekai/engine/pkg/prompts"
	"github.com/amoisekai/engine/pkg/story"
)

// Trigger thresholds and the per-chapter limit on any single score change.
const (
	MaxIdentityChange      = 15.0
	BreakthroughThreshold  = 100.0
	ConfrontationNotoriety = 70.0
)

// IdentityInput is what the heuristic identity pass reads.
type IdentityInput struct {
	Category    string
	Risk        int
	Beats       []story.Beat
	CascadeRisk float64
	MajorEvent  bool
}

func (p *Pipeline) identity(ctx context.Context, s State) (Patch, error) {
	if s.Player == nil {
		return nil, nil
	}
	in := identityInput(s)

	b := prompts.New("").
		WithSection("Protagonist", playerBlock(s.Player)).
		WithSection("Seed identity", seedBlock(s.Player)).
		WithSection("Player choice", s.ChoiceText()).
		WithSection("Action", in.Category).
		WithList("Beats", beatDescriptions(in.Beats)).
		WithSection("Consequences", consequenceBlock(s.Consequences)).
		WithSection("Chapter summary", draftSummary(s)).
		WithFooter("Estimate the identity delta for this chapter.")

	var d player.IdentityDelta
	err := p.completeJSON(ctx, NodeIdentity, prompts.Identity, nil, b, &d,
		[]string{"dqs_change", "coherence_change", "instability_change", "breakthrough_change", "alignment_change", "notoriety_change", "new_flags"},
		structured()...)
	fellBack := false
	if err != nil {
		p.fallback(NodeIdentity, err)
		d = HeuristicDelta(in)
		fellBack = true
	}
	d = FinishDelta(d, s.Player, in.MajorEvent)

	return func(st *State) {
		st.IdentityDelta = &d
		if fellBack {
			st.Fallbacks = append(st.Fallbacks, NodeIdentity)
		}
	}, nil
}

func identityInput(s State) IdentityInput {
	in := IdentityInput{
		Category:   s.ActionCategory(),
		Risk:       riskOf(s),
		Beats:      planBeats(s),
		MajorEvent: s.CRNGEvent != nil && s.CRNGEvent.Triggered && s.CRNGEvent.Major,
	}
	if s.Consequences != nil {
		in.CascadeRisk = s.Consequences.MaxCascadeRisk()
	}
	return in
}

// PlannedDelta is the identity delta a planned chapter is expected to
// apply, from the choice, the plan and the simulator's consequences.
func PlannedDelta(s State) player.IdentityDelta {
	in := identityInput(s)
	return FinishDelta(HeuristicDelta(in), s.Player, in.MajorEvent)
}

// HeuristicDelta derives an identity delta from the choice risk, the
// action category, the plan and the simulator's cascade risk.
func HeuristicDelta(in IdentityInput) player.IdentityDelta {
	var d player.IdentityDelta
	switch {
	case in.Risk >= 4:
		d.DQSChange -= 2
		d.InstabilityChange += 3
		d.BreakthroughChange += 4
		d.NotorietyChange += 2
	case in.Risk > 0 && in.Risk <= 2:
		d.DQSChange += 2
		d.CoherenceChange += 1
		d.BreakthroughChange += 1
	default:
		d.DQSChange += 1
		d.BreakthroughChange += 2
	}

	switch in.Category {
	case ActionCombat:
		d.NotorietyChange += 2
		d.InstabilityChange += 1
		d.AlignmentChange -= 1
	case ActionSocial:
		d.CoherenceChange += 2
		d.AlignmentChange += 2
	case ActionStealth:
		d.NotorietyChange -= 1
	case ActionSoulChoice:
		d.CoherenceChange -= 3
		d.InstabilityChange += 4
		d.BreakthroughChange += 5
		d.DriftDirection = "soul"
	case ActionSkillUse:
		d.BreakthroughChange += 3
		d.EchoTraceChange += 1
	case ActionExploration:
		d.CoherenceChange += 1
	}

	if in.CascadeRisk >= 0.7 {
		d.InstabilityChange += 3
		d.NotorietyChange += 3
	}
	for _, b := range in.Beats {
		if b.Purpose == story.PurposeClimax {
			d.BreakthroughChange += 5
			d.NewFlags = append(d.NewFlags, fmt.Sprintf("survived_climax_%s", b.SceneType))
			break
		}
	}
	return d
}

// FinishDelta clamps every change to ±MaxIdentityChange, normalizes flags
// and sets the triggers the runtime owns: pity reset on a major fate
// event, breakthrough when the meter would reach its threshold,
// confrontation when notoriety crosses its threshold.
func FinishDelta(d player.IdentityDelta, pl *player.Player, majorEvent bool) player.IdentityDelta {
	for _, v := range []*float64{
		&d.DQSChange, &d.CoherenceChange, &d.InstabilityChange, &d.BreakthroughChange,
		&d.AlignmentChange, &d.NotorietyChange, &d.EchoTraceChange,
	} {
		*v = clampAbs(*v, MaxIdentityChange)
	}

	flags := d.NewFlags[:0:0]
	for _, f := range d.NewFlags {
		f = strings.ToLower(strings.Join(strings.Fields(f), "_"))
		if f != "" && !slices.Contains(flags, f) {
			flags = append(flags, f)
		}
	}
	d.NewFlags = flags
	d.DriftDirection = strings.TrimSpace(d.DriftDirection)

	if majorEvent {
		d.PityReset = true
	}
	if pl != nil {
		if pl.BreakthroughMeter+d.BreakthroughChange >= BreakthroughThreshold {
			d.BreakthroughTriggered = true
		}
		if pl.Notoriety < ConfrontationNotoriety && pl.Notoriety+d.NotorietyChange >= ConfrontationNotoriety {
			d.ConfrontationTriggered = true
		}
	}
	return d
}

func seedBlock(pl *player.Player) string {
	if pl == nil {
		return ""
	}
	id := pl.SeedIdentity
	var parts []string
	if len(id.CoreValues) > 0 {
		parts = append(parts, "values: "+strings.Join(id.CoreValues, ", "))
	}
	if len(id.Traits) > 0 {
		parts = append(parts, "traits: "+strings.Join(id.Traits, ", "))
	}
	if id.Motivation != "" {
		parts = append(parts, "motivation: "+id.Motivation)
	}
	if id.Fear != "" {
		parts = append(parts, "fear: "+id.Fear)
	}
	return strings.Join(parts, "; ")
}

func draftSummary(s State) string {
	switch {
	case s.Draft != nil && s.Draft.Summary != "":
		return s.Draft.Summary
	case s.Output != nil:
		return s.Output.Summary
	}
	return ""
}
