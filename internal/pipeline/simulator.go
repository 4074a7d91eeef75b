package pipeline

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/amoisekai/engine/pkg/prompts"
	"github.com/amoisekai/engine/pkg/story"
	"github.com/amoisekai/engine/pkg/textfilter"
)

// Per-chapter limits on what the simulator may move.
const (
	MaxFactionDelta   = 10.0
	MaxCompanionDelta = 10.0
)

var horizons = []string{"immediate", "medium", "long"}

func (p *Pipeline) simulator(ctx context.Context, s State) (Patch, error) {
	choice := s.ChoiceText()
	if choice == "" {
		return func(st *State) {
			st.Consequences = &Consequences{Source: "skipped"}
		}, nil
	}

	b := prompts.New("").
		WithSection("Player choice", choice).
		WithSection("Player intent", parsedBlock(s.Parsed)).
		WithSection("Protagonist", playerBlock(s.Player)).
		WithSection("World", p.worldBlock(s)).
		WithSection("Companions", companionBlock(s)).
		WithList("Planned beats", beatDescriptions(planBeats(s))).
		WithFooter("Simulate the consequences of the player's choice.")

	var c Consequences
	err := p.completeJSON(ctx, NodeSimulator, prompts.Simulator, nil, b, &c,
		[]string{"causal_chains", "faction_implications", "character_reactions", "world_updates", "foreshadowing", "companion_affinity"},
		structured()...)
	fellBack := false
	if err != nil {
		p.fallback(NodeSimulator, err)
		c = FallbackConsequences(choice, s.ActionCategory(), riskOf(s))
		fellBack = true
	} else {
		c.Source = "llm"
	}
	ClampConsequences(&c)

	return func(st *State) {
		st.Consequences = &c
		if fellBack {
			st.Fallbacks = append(st.Fallbacks, NodeSimulator)
		}
	}, nil
}

// ClampConsequences bounds faction and companion deltas and fixes chain
// horizons and cascade risk.
func ClampConsequences(c *Consequences) {
	c.FactionImplications.EmpireResonanceDelta = clampAbs(c.FactionImplications.EmpireResonanceDelta, MaxFactionDelta)
	c.FactionImplications.IdentityAnchorDelta = clampAbs(c.FactionImplications.IdentityAnchorDelta, MaxFactionDelta)
	for name, d := range c.CompanionAffinity {
		if strings.TrimSpace(name) == "" {
			delete(c.CompanionAffinity, name)
			continue
		}
		c.CompanionAffinity[name] = clampAbs(d, MaxCompanionDelta)
	}
	for i := range c.CausalChains {
		ch := &c.CausalChains[i]
		if !slices.Contains(horizons, ch.Horizon) {
			ch.Horizon = "medium"
		}
		ch.CascadeRisk = min(max(ch.CascadeRisk, 0), 1)
	}
}

// FallbackConsequences derives a single causal chain from the choice text
// when the simulator cannot be reached. Risky choices raise cascade risk
// and push empire resonance.
func FallbackConsequences(choice, category string, risk int) Consequences {
	if risk <= 0 {
		risk = 3
	}
	cascade := float64(risk) / 5 * 0.6
	horizon := "immediate"
	if risk >= 4 {
		horizon = "medium"
	}
	c := Consequences{
		CausalChains: []CausalChain{{
			Trigger:     textfilter.Truncate(choice, 120),
			Links:       []string{"Word of it spreads"},
			Horizon:     horizon,
			CascadeRisk: cascade,
		}},
		CompanionAffinity: map[string]float64{},
		Source:            "fallback",
	}
	switch category {
	case ActionCombat:
		c.FactionImplications.EmpireResonanceDelta = float64(risk)
	case ActionSocial:
		c.FactionImplications.IdentityAnchorDelta = 2
	case ActionSoulChoice:
		c.FactionImplications.IdentityAnchorDelta = -float64(risk)
	}
	if risk >= 4 {
		c.Foreshadowing = []string{"Someone noticed."}
	}
	return c
}

func clampAbs(v, limit float64) float64 {
	return min(max(v, -limit), limit)
}

func riskOf(s State) int {
	if s.ChosenChoice != nil {
		return s.ChosenChoice.RiskLevel
	}
	return 0
}

func planBeats(s State) []story.Beat {
	if s.Plan == nil {
		return nil
	}
	return s.Plan.Beats
}

func companionBlock(s State) string {
	if s.Story == nil || len(s.Story.CompanionAffinity) == 0 {
		return ""
	}
	var b strings.Builder
	for _, name := range slices.Sorted(maps.Keys(s.Story.CompanionAffinity)) {
		fmt.Fprintf(&b, "%s: affinity %.0f\n", name, s.Story.CompanionAffinity[name])
	}
	return b.String()
}
