package skill

import (
	"fmt"

	"github.com/amoisekai/engine/pkg/principle"
)

// InstabilityCost grades how much an integrated skill destabilises its user.
type InstabilityCost string

const (
	CostLow      InstabilityCost = "low"
	CostModerate InstabilityCost = "moderate"
	CostHigh     InstabilityCost = "high"
)

// Points converts a cost grade into an instability increase on use.
func (c InstabilityCost) Points() float64 {
	switch c {
	case CostLow:
		return 2
	case CostModerate:
		return 5
	case CostHigh:
		return 9
	default:
		return 0
	}
}

// PrinciplePairTemplate guides integration of two skills whose principles
// form the pair.
type PrinciplePairTemplate struct {
	Pair            principle.Pair  `json:"-"`
	BlendName       string          `json:"blend_name"`
	MechanicPattern string          `json:"mechanic_pattern"`
	InstabilityCost InstabilityCost `json:"instability_cost"`
	PowerMultiplier float64         `json:"power_multiplier"`
	Flavor          string          `json:"flavor"`
}

func pairTemplate(a, b principle.Principle, blend, pattern string, cost InstabilityCost, mult float64, flavor string) PrinciplePairTemplate {
	return PrinciplePairTemplate{
		Pair:            principle.NewPair(a, b),
		BlendName:       blend,
		MechanicPattern: pattern,
		InstabilityCost: cost,
		PowerMultiplier: mult,
		Flavor:          flavor,
	}
}

var pairTemplates = func() map[principle.Pair]PrinciplePairTemplate {
	list := []PrinciplePairTemplate{
		pairTemplate(principle.Order, principle.Order, "Absolute Law", "amplify", CostLow, 1.2, "A rule stated twice becomes a wall."),
		pairTemplate(principle.Entropy, principle.Entropy, "Total Collapse", "amplify", CostModerate, 1.25, "Decay feeding on decay."),
		pairTemplate(principle.Matter, principle.Matter, "Living Fortress", "amplify", CostLow, 1.2, "Stone upon stone until nothing moves it."),
		pairTemplate(principle.Flux, principle.Flux, "Endless Current", "amplify", CostModerate, 1.2, "A river that never chooses a bank."),
		pairTemplate(principle.Energy, principle.Energy, "Stellar Surge", "amplify", CostModerate, 1.25, "Fire stacked on fire."),
		pairTemplate(principle.Void, principle.Void, "Perfect Absence", "amplify", CostHigh, 1.3, "Nothing, folded into less."),

		pairTemplate(principle.Order, principle.Matter, "Iron Edict", "fortify", CostLow, 1.15, "Law given a body."),
		pairTemplate(principle.Order, principle.Energy, "Judgement Flame", "channel", CostModerate, 1.2, "Fire that only burns the guilty."),
		pairTemplate(principle.Order, principle.Flux, "Tidal Statute", "oscillate", CostModerate, 1.15, "Rules that shift with the tide."),
		pairTemplate(principle.Order, principle.Void, "Silent Verdict", "erase", CostModerate, 1.2, "A sentence no one hears passed."),
		pairTemplate(principle.Order, principle.Entropy, "Paradox Decree", "invert", CostHigh, 1.35, "Law and ruin held in one hand."),
		pairTemplate(principle.Matter, principle.Energy, "Forged Star", "channel", CostLow, 1.15, "Metal that remembers the furnace."),
		pairTemplate(principle.Matter, principle.Entropy, "Ruin Stone", "erode", CostModerate, 1.15, "Walls that crumble on command."),
		pairTemplate(principle.Matter, principle.Void, "Hollow Mountain", "erase", CostModerate, 1.2, "Weight with nothing inside."),
		pairTemplate(principle.Matter, principle.Flux, "Molten Paradox", "invert", CostHigh, 1.35, "Stone that flows, water that holds."),
		pairTemplate(principle.Energy, principle.Entropy, "Wildfire", "erode", CostModerate, 1.2, "A blaze that eats its own fuel."),
		pairTemplate(principle.Energy, principle.Flux, "Storm Arc", "oscillate", CostModerate, 1.2, "Lightning riding the wind."),
		pairTemplate(principle.Energy, principle.Void, "Eclipse Paradox", "invert", CostHigh, 1.4, "Light swallowed as it is born."),
		pairTemplate(principle.Entropy, principle.Flux, "Unmaking Tide", "oscillate", CostModerate, 1.2, "Change that only runs downhill."),
		pairTemplate(principle.Entropy, principle.Void, "Final Silence", "erase", CostHigh, 1.25, "The end after the end."),
		pairTemplate(principle.Flux, principle.Void, "Phantom Drift", "phase", CostModerate, 1.2, "Movement that leaves no trace."),
	}
	out := make(map[principle.Pair]PrinciplePairTemplate, len(list))
	for _, t := range list {
		out[t.Pair] = t
	}
	return out
}()

// PairTemplate looks up the template for a and b in either order.
func PairTemplate(a, b principle.Principle) (PrinciplePairTemplate, error) {
	t, ok := pairTemplates[principle.NewPair(a, b)]
	if !ok {
		return PrinciplePairTemplate{}, fmt.Errorf("no pair template for %s and %s", a, b)
	}
	return t, nil
}

// PairTemplates returns every template, for validation tooling.
func PairTemplates() []PrinciplePairTemplate {
	out := make([]PrinciplePairTemplate, 0, len(pairTemplates))
	for _, p := range principle.All {
		for _, q := range principle.All {
			pair := principle.NewPair(p, q)
			if pair.A != p {
				continue
			}
			if t, ok := pairTemplates[pair]; ok {
				out = append(out, t)
			}
		}
	}
	return out
}
