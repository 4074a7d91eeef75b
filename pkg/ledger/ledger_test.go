package ledger

import (
	"fmt"
	"strings"
	"testing"
)

func TestParseKind(t *testing.T) {
	tests := []struct {
		in   string
		want Kind
	}{
		{"Character", KindCharacter},
		{"npc", KindCharacter},
		{" location ", KindPlace},
		{"guild", KindFaction},
		{"relic", KindItem},
		{"beast", KindCreature},
		{"place", KindPlace},
		{"weather", KindOther},
	}
	for _, tt := range tests {
		if got := ParseKind(tt.in); got != tt.want {
			t.Errorf("ParseKind(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestMergeDedup(t *testing.T) {
	l := New("s1")
	added := l.Merge(2, Extraction{
		Entities: []Entity{
			{Name: "Kael Morrow", Kind: "villain"},
			{Name: "Ashfall", Kind: "location", Description: "a burned frontier"},
			{Name: "  "},
		},
		Facts: []string{"The gate at Ashfall is sealed."},
	})
	if added != 2 {
		t.Fatalf("added = %d, want 2", added)
	}

	added = l.Merge(5, Extraction{
		Entities: []Entity{{Name: "kael  MORROW", Kind: "character"}},
		Facts:    []string{"the gate at ashfall is sealed."},
	})
	if added != 0 {
		t.Errorf("second merge added %d, want 0", added)
	}
	e, ok := l.Lookup("KAEL MORROW")
	if !ok {
		t.Fatal("lookup failed")
	}
	if e.Mentions != 2 || e.FirstSeenChapter != 2 || e.LastSeenChapter != 5 {
		t.Errorf("entity = %+v", e)
	}
	if len(l.Facts) != 1 {
		t.Errorf("facts = %v, want one deduplicated fact", l.Facts)
	}
}

func TestSameNameDifferentKind(t *testing.T) {
	l := New("s1")
	l.Merge(1, Extraction{Entities: []Entity{{Name: "Thorne", Kind: "character"}, {Name: "Thorne", Kind: "place"}}})
	if len(l.Entities) != 2 {
		t.Errorf("entities = %d, want 2", len(l.Entities))
	}
}

func TestFactCap(t *testing.T) {
	l := New("s1")
	for i := range MaxFacts + 5 {
		l.AddFact(1, fmt.Sprintf("fact %d", i))
	}
	if len(l.Facts) != MaxFacts {
		t.Fatalf("facts = %d, want %d", len(l.Facts), MaxFacts)
	}
	if l.Facts[0].Text != "fact 5" {
		t.Errorf("oldest fact = %q", l.Facts[0].Text)
	}
}

func TestContext(t *testing.T) {
	var empty *Ledger
	if empty.Context() != "" {
		t.Error("nil ledger should render empty")
	}
	l := New("s1")
	l.Merge(1, Extraction{Entities: []Entity{{Name: "Veyra", Kind: "character", Description: "gilded emissary"}}})
	l.Merge(3, Extraction{Entities: []Entity{{Name: "Pilgrim Road", Kind: "place"}}, Facts: []string{"Veyra owes the player a memory."}})
	ctx := l.Context()
	for _, want := range []string{"Known names:", "- Pilgrim Road (place, since chapter 3)", "- Veyra (character, since chapter 1): gilded emissary", "Veyra owes the player a memory."} {
		if !strings.Contains(ctx, want) {
			t.Errorf("context missing %q:\n%s", want, ctx)
		}
	}
	if strings.Index(ctx, "Pilgrim Road") > strings.Index(ctx, "Veyra (") {
		t.Error("most recent entity should come first")
	}
}
