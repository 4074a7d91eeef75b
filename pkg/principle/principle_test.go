package principle

import "testing"

func TestOpposite(t *testing.T) {
	tests := []struct {
		in   Principle
		want Principle
	}{
		{Order, Entropy},
		{Entropy, Order},
		{Matter, Flux},
		{Flux, Matter},
		{Energy, Void},
		{Void, Energy},
	}
	for _, tt := range tests {
		if got := tt.in.Opposite(); got != tt.want {
			t.Errorf("%s.Opposite() = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestSynergyAdjacent(t *testing.T) {
	if !SynergyAdjacent(Energy, Matter) {
		t.Error("energy and matter should be adjacent")
	}
	if !SynergyAdjacent(Void, Order) {
		t.Error("void and order should wrap around as adjacent")
	}
	if SynergyAdjacent(Order, Entropy) {
		t.Error("opposites must not be adjacent")
	}
	for _, p := range All {
		for _, q := range p.Adjacent() {
			if Opposed(p, q) {
				t.Errorf("%s adjacent to its opposite %s", p, q)
			}
		}
	}
}

func TestNewPairIsOrderIndependent(t *testing.T) {
	if NewPair(Flux, Order) != NewPair(Order, Flux) {
		t.Error("pairs should normalise order")
	}
}

func TestResonanceClamps(t *testing.T) {
	r := NewResonance(0.5)
	r.Add(Energy, 0.9)
	r.Add(Void, -2)
	if r.Get(Energy) != 1 {
		t.Errorf("energy = %v, want 1", r.Get(Energy))
	}
	if r.Get(Void) != 0 {
		t.Errorf("void = %v, want 0", r.Get(Void))
	}
	p, v := r.Dominant()
	if p != Energy || v != 1 {
		t.Errorf("Dominant() = %s %v", p, v)
	}
}

func TestParse(t *testing.T) {
	if p, err := Parse(" VOID "); err != nil || p != Void {
		t.Errorf("Parse = %v, %v", p, err)
	}
	if _, err := Parse("light"); err == nil {
		t.Error("expected error for unknown principle")
	}
}
