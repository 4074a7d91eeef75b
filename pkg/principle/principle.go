// Package principle defines the six cosmic principles and the resonance
// vector a player carries across them.
package principle

import (
	"fmt"
	"sort"
	"strings"
)

// Principle is one of the six forces every skill and weapon is attuned to.
type Principle string

const (
	Order   Principle = "order"
	Entropy Principle = "entropy"
	Matter  Principle = "matter"
	Flux    Principle = "flux"
	Energy  Principle = "energy"
	Void    Principle = "void"
)

// All lists the principles in wheel order. Opposites sit three apart and
// synergy partners sit next to each other.
var All = []Principle{Order, Matter, Energy, Entropy, Flux, Void}

func (p Principle) String() string { return string(p) }

// Valid reports whether p is one of the six known principles.
func (p Principle) Valid() bool {
	return p.index() >= 0
}

func (p Principle) index() int {
	for i, q := range All {
		if q == p {
			return i
		}
	}
	return -1
}

// Parse converts a case-insensitive name into a Principle.
func Parse(s string) (Principle, error) {
	p := Principle(strings.ToLower(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", fmt.Errorf("unknown principle %q", s)
	}
	return p, nil
}

// Opposite returns the principle across the wheel: order/entropy,
// matter/flux, energy/void.
func (p Principle) Opposite() Principle {
	i := p.index()
	if i < 0 {
		return ""
	}
	return All[(i+3)%len(All)]
}

// Adjacent returns the two synergy partners of p.
func (p Principle) Adjacent() []Principle {
	i := p.index()
	if i < 0 {
		return nil
	}
	n := len(All)
	return []Principle{All[(i+n-1)%n], All[(i+1)%n]}
}

// SynergyAdjacent reports whether a and b are neighbours on the wheel.
func SynergyAdjacent(a, b Principle) bool {
	for _, q := range a.Adjacent() {
		if q == b {
			return true
		}
	}
	return false
}

// Opposed reports whether a and b cancel each other.
func Opposed(a, b Principle) bool {
	return a.Valid() && a.Opposite() == b
}

// Pair is an unordered pair of principles usable as a map key.
type Pair struct {
	A Principle
	B Principle
}

// NewPair normalises the order so that NewPair(x, y) == NewPair(y, x).
func NewPair(a, b Principle) Pair {
	if a.index() > b.index() {
		a, b = b, a
	}
	return Pair{A: a, B: b}
}

func (p Pair) String() string {
	return string(p.A) + "+" + string(p.B)
}

// Resonance is a per-principle affinity vector with values in [0,1].
type Resonance map[Principle]float64

// NewResonance returns a vector with every principle set to v.
func NewResonance(v float64) Resonance {
	r := make(Resonance, len(All))
	for _, p := range All {
		r[p] = clamp01(v)
	}
	return r
}

// Get returns the value for p, or 0 when the vector does not carry it.
func (r Resonance) Get(p Principle) float64 {
	if r == nil {
		return 0
	}
	return r[p]
}

// Set stores v for p clamped to [0,1].
func (r Resonance) Set(p Principle, v float64) {
	r[p] = clamp01(v)
}

// Add shifts p by delta and clamps.
func (r Resonance) Add(p Principle, delta float64) {
	r[p] = clamp01(r[p] + delta)
}

// Normalize fills missing principles with zero and clamps every value.
func (r Resonance) Normalize() Resonance {
	out := make(Resonance, len(All))
	for _, p := range All {
		out[p] = clamp01(r.Get(p))
	}
	return out
}

// Clone returns an independent copy.
func (r Resonance) Clone() Resonance {
	out := make(Resonance, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Dominant returns the strongest principle and its value. Ties go to the
// earlier principle in wheel order.
func (r Resonance) Dominant() (Principle, float64) {
	var best Principle
	bestVal := -1.0
	for _, p := range All {
		if v := r.Get(p); v > bestVal {
			best, bestVal = p, v
		}
	}
	return best, bestVal
}

// Ranked returns principles sorted by descending value.
func (r Resonance) Ranked() []Principle {
	out := make([]Principle, len(All))
	copy(out, All)
	sort.SliceStable(out, func(i, j int) bool {
		return r.Get(out[i]) > r.Get(out[j])
	})
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
