package crng

import (
	"errors"
	"testing"
)

// scriptedRoller returns queued values in order and cycles when exhausted.
type scriptedRoller struct {
	values []int
	calls  int
}

func (s *scriptedRoller) Roll(size int) (int, error) {
	if len(s.values) == 0 {
		return 0, errors.New("no values")
	}
	v := s.values[s.calls%len(s.values)]
	s.calls++
	return min(max(v, 1), size), nil
}

func (s *scriptedRoller) RollN(count, size int) ([]int, error) {
	out := make([]int, count)
	for i := range out {
		v, err := s.Roll(size)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func TestRollNoEventOnHighRolls(t *testing.T) {
	g := New(&scriptedRoller{values: []int{1000}})
	ev, err := g.Roll(Input{Chapter: 3})
	if err != nil {
		t.Fatalf("Roll: %v", err)
	}
	if ev.Triggered {
		t.Errorf("expected no event, got %+v", ev)
	}
}

func TestRollHighestProbabilityWins(t *testing.T) {
	// every candidate triggers on a roll of 1
	g := New(&scriptedRoller{values: []int{1}})
	in := Input{Chapter: 5, PityCounter: 2, BreakthroughMeter: 90, DNAAffinity: []string{"oath"}}
	ev, err := g.Roll(in)
	if err != nil {
		t.Fatalf("Roll: %v", err)
	}
	if ev.EventType != EventBreakthrough {
		t.Errorf("event = %s, want breakthrough", ev.EventType)
	}
	if !ev.Major {
		t.Error("breakthrough should be major")
	}
}

func TestAffinityRequiresDNA(t *testing.T) {
	if p := Probability(EventAffinityResonance, Input{PityCounter: 10}); p != 0 {
		t.Errorf("probability without dna = %v, want 0", p)
	}
	if p := Probability(EventAffinityResonance, Input{DNAAffinity: []string{"mind"}}); p <= 0 {
		t.Errorf("probability with dna = %v, want > 0", p)
	}
}

func TestPityScaling(t *testing.T) {
	low := Probability(EventHiddenEncounter, Input{PityCounter: 0})
	high := Probability(EventHiddenEncounter, Input{PityCounter: 10})
	if high <= low {
		t.Errorf("pity should raise probability: %v <= %v", high, low)
	}
}

func TestNextPity(t *testing.T) {
	tests := []struct {
		name string
		ev   Event
		want int
	}{
		{"nothing", Event{}, 4},
		{"minor", Event{Triggered: true, EventType: EventHiddenEncounter}, 4},
		{"major", Event{Triggered: true, EventType: EventFateTwist, Major: true}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NextPity(3, tt.ev); got != tt.want {
				t.Errorf("NextPity = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestFateSave(t *testing.T) {
	cfg := DefaultFateConfig()
	hp, buf, fired := cfg.Save(0, 60, 10)
	if !fired || hp != 1 || buf != 35 {
		t.Errorf("Save = (%v, %v, %v), want (1, 35, true)", hp, buf, fired)
	}
	if _, _, fired := cfg.Save(0, 10, 10); fired {
		t.Error("save fired below threshold")
	}
	if _, _, fired := cfg.Save(0, 90, 41); fired {
		t.Error("save fired outside protection window")
	}
}

func TestFateDecay(t *testing.T) {
	cfg := DefaultFateConfig()
	if got := cfg.Decay(50, 40); got != 50 {
		t.Errorf("decay inside window = %v, want 50", got)
	}
	if got := cfg.Decay(50, 41); got != 48 {
		t.Errorf("decay after window = %v, want 48", got)
	}
	if got := cfg.Decay(1, 60); got != 0 {
		t.Errorf("decay floor = %v, want 0", got)
	}
}
