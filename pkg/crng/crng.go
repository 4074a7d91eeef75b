// Package crng rolls the once-per-chapter biased event and manages the
// fate buffer.
package crng

import (
	"fmt"

	"github.com/KirkDiggler/rpg-toolkit/dice"
)

type EventType string

const (
	EventBreakthrough      EventType = "breakthrough"
	EventAffinityResonance EventType = "affinity_resonance"
	EventFateTwist         EventType = "fate_twist"
	EventHiddenEncounter   EventType = "hidden_encounter"
)

// Event is the outcome of one chapter roll.
type Event struct {
	Triggered   bool      `json:"triggered"`
	EventType   EventType `json:"event_type,omitempty"`
	AffinityTag string    `json:"affinity_tag,omitempty"`
	Details     string    `json:"details,omitempty"`
	Major       bool      `json:"major"`
	Probability float64   `json:"probability,omitempty"`
}

// Input is the player state a roll depends on.
type Input struct {
	Chapter           int
	PityCounter       int
	BreakthroughMeter float64
	DNAAffinity       []string
}

type candidate struct {
	event       EventType
	base        float64
	pityScale   float64
	major       bool
	needsDNA    bool
	meterWeight float64
}

var candidates = []candidate{
	{event: EventBreakthrough, base: 0.05, pityScale: 0.02, major: true, meterWeight: 0.30},
	{event: EventAffinityResonance, base: 0.08, pityScale: 0.015, needsDNA: true},
	{event: EventFateTwist, base: 0.04, pityScale: 0.01, major: true},
	{event: EventHiddenEncounter, base: 0.10, pityScale: 0.01},
}

// rollResolution is the die size used to draw a uniform value in [0,1).
const rollResolution = 1000

// Generator owns one player's roll stream.
type Generator struct {
	roller dice.Roller
}

// New wraps roller; nil uses the toolkit's default roller.
func New(roller dice.Roller) *Generator {
	if roller == nil {
		roller = dice.DefaultRoller
	}
	return &Generator{roller: roller}
}

// Uniform draws a value in [0,1).
func (g *Generator) Uniform() (float64, error) {
	v, err := g.roller.Roll(rollResolution)
	if err != nil {
		return 0, fmt.Errorf("failed to roll: %w", err)
	}
	return float64(v-1) / rollResolution, nil
}

// Probability returns the chance that ev triggers for in.
func Probability(ev EventType, in Input) float64 {
	for _, c := range candidates {
		if c.event == ev {
			return c.probability(in)
		}
	}
	return 0
}

func (c candidate) probability(in Input) float64 {
	if c.needsDNA && len(in.DNAAffinity) == 0 {
		return 0
	}
	p := c.base + c.pityScale*float64(in.PityCounter)
	p += c.meterWeight * in.BreakthroughMeter / 100
	return min(max(p, 0), 0.95)
}

// Roll evaluates every candidate once. When several trigger, the one with
// the highest probability wins.
func (g *Generator) Roll(in Input) (Event, error) {
	var best *candidate
	bestP := -1.0
	for i := range candidates {
		c := &candidates[i]
		p := c.probability(in)
		if p == 0 {
			continue
		}
		u, err := g.Uniform()
		if err != nil {
			return Event{}, err
		}
		if u < p && p > bestP {
			best, bestP = c, p
		}
	}
	if best == nil {
		return Event{}, nil
	}
	ev := Event{
		Triggered:   true,
		EventType:   best.event,
		Major:       best.major,
		Probability: bestP,
		Details:     details(best.event),
	}
	if best.needsDNA {
		idx, err := g.roller.Roll(len(in.DNAAffinity))
		if err != nil {
			return Event{}, fmt.Errorf("failed to pick affinity tag: %w", err)
		}
		ev.AffinityTag = in.DNAAffinity[idx-1]
		ev.Details = fmt.Sprintf("%s (%s)", ev.Details, ev.AffinityTag)
	}
	return ev, nil
}

func details(ev EventType) string {
	switch ev {
	case EventBreakthrough:
		return "a breakthrough surges up from within"
	case EventAffinityResonance:
		return "the soul's affinity resonates with the world"
	case EventFateTwist:
		return "fate bends around the protagonist"
	case EventHiddenEncounter:
		return "a hidden encounter waits off the beaten path"
	}
	return ""
}

// NextPity returns the pity counter after a chapter with ev: reset iff a
// major event fired, incremented otherwise.
func NextPity(current int, ev Event) int {
	if ev.Triggered && ev.Major {
		return 0
	}
	return current + 1
}
