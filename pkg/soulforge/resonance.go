package soulforge

import (
	"github.com/amoisekai/engine/pkg/player"
	"github.com/amoisekai/engine/pkg/principle"
)

// Resonance blend.
const (
	BehavioralWeight = 0.6
	DNAWeight        = 0.3
	AnchorWeight     = 0.1
	// VoidCapEarly bounds void resonance during the first two seasons.
	VoidCapEarly        = 0.3
	ProtoSovereignLevel = 0.8
)

var traitWeights = map[principle.Principle]map[string]float64{
	principle.Order:   {"consistency": 0.4, "patience": 0.3, "deliberation": 0.3},
	principle.Matter:  {"confidence": 0.4, "consistency": 0.3, "patience": 0.3},
	principle.Energy:  {"decisiveness": 0.4, "impulsivity": 0.3, "expressiveness": 0.3},
	principle.Entropy: {"impulsivity": 0.4, "revision_tendency": 0.3, "expressiveness": 0.3},
	principle.Flux:    {"revision_tendency": 0.4, "deliberation": 0.3, "expressiveness": 0.3},
	principle.Void:    {"deliberation": 0.4, "patience": 0.3, "consistency": 0.3},
}

var dnaPrinciples = map[player.DNATag][]principle.Principle{
	player.DNAShadow:    {principle.Void, principle.Entropy},
	player.DNAOath:      {principle.Order, principle.Matter},
	player.DNABloodline: {principle.Matter, principle.Energy},
	player.DNATech:      {principle.Order, principle.Flux},
	player.DNAChaos:     {principle.Entropy, principle.Flux},
	player.DNAMind:      {principle.Void, principle.Order},
	player.DNACharm:     {principle.Flux, principle.Energy},
	player.DNARelic:     {principle.Matter, principle.Void},
}

var anchorPrinciple = map[VoidAnchor]principle.Principle{
	AnchorConnection: principle.Flux,
	AnchorPower:      principle.Energy,
	AnchorKnowledge:  principle.Order,
	AnchorSilence:    principle.Void,
}

// ComputeResonance blends the behavioral, DNA and anchor components.
func ComputeResonance(fp BehavioralFingerprint, dna []player.DNATag, anchor VoidAnchor, season int) principle.Resonance {
	traits := map[string]float64{}
	for _, t := range fp.Traits() {
		traits[t.Name] = t.Value
	}
	dnaHits := map[principle.Principle]float64{}
	for _, tag := range dna {
		for _, p := range dnaPrinciples[tag] {
			dnaHits[p]++
		}
	}
	out := principle.NewResonance(0)
	for _, p := range principle.All {
		var behavioral float64
		for name, w := range traitWeights[p] {
			behavioral += w * traits[name]
		}
		dnaScore := 0.0
		if len(dna) > 0 {
			dnaScore = min(dnaHits[p]/float64(len(dna)), 1)
		}
		anchorScore := 0.0
		if anchorPrinciple[anchor] == p {
			anchorScore = 1
		}
		out.Set(p, BehavioralWeight*behavioral+DNAWeight*dnaScore+AnchorWeight*anchorScore)
	}
	if season <= 2 && out.Get(principle.Void) > VoidCapEarly {
		out.Set(principle.Void, VoidCapEarly)
	}
	return out
}

// ProtoSovereign reports whether any single principle reaches 0.8.
func ProtoSovereign(r principle.Resonance) bool {
	for _, p := range principle.All {
		if r.Get(p) >= ProtoSovereignLevel {
			return true
		}
	}
	return false
}
