package story

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/amoisekai/engine/pkg/skill"
)

func TestNormalizeChoicesPadsAndRespreads(t *testing.T) {
	in := []Choice{
		{ID: "a", Text: "Run.", RiskLevel: 3},
		{ID: "a", Text: "Hide.", RiskLevel: 3},
	}
	out := NormalizeChoices(in, SceneExploration, nil)
	if len(out) != ChoicesPerScene {
		t.Fatalf("got %d choices, want %d", len(out), ChoicesPerScene)
	}
	s := Scene{Choices: out}
	if err := s.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
	if out[0].ID == out[1].ID {
		t.Errorf("duplicate ids %q", out[0].ID)
	}
}

func TestNormalizeChoicesAllSameRisk(t *testing.T) {
	in := []Choice{
		{ID: "1", Text: "A", RiskLevel: 9},
		{ID: "2", Text: "B", RiskLevel: 7},
		{ID: "3", Text: "C", RiskLevel: 5},
	}
	out := NormalizeChoices(in, SceneDialogue, nil)
	for i, c := range out {
		if c.RiskLevel != i+2 {
			t.Errorf("choice %d risk = %d, want %d", i, c.RiskLevel, i+2)
		}
	}
}

func TestNormalizeChoicesRandomSets(t *testing.T) {
	r := rand.New(rand.NewPCG(7, 11))
	u := &skill.UniqueSkill{Name: "Thệ Ước Thép", Mechanic: "An oath hardens into steel."}
	types := []SceneType{SceneCombat, SceneExploration, SceneDialogue, SceneDiscovery, SceneRest}
	ids := []string{"", "c1", "c2", "c3", "a", "skill"}
	texts := []string{"", "  ", "Strike.", "Hide.", "Bargain.", "[Thệ Ước Thép] — steel"}

	for i := 0; i < 2000; i++ {
		in := make([]Choice, r.IntN(6))
		for j := range in {
			in[j] = Choice{
				ID:        ids[r.IntN(len(ids))],
				Text:      texts[r.IntN(len(texts))],
				RiskLevel: r.IntN(15) - 5,
			}
		}
		var owner *skill.UniqueSkill
		if r.IntN(2) == 0 {
			owner = u
		}
		st := types[r.IntN(len(types))]
		out := NormalizeChoices(in, st, owner)

		s := Scene{SceneNumber: i, Choices: out}
		if err := s.Validate(); err != nil {
			t.Fatalf("case %d (%s, %+v): %v", i, st, in, err)
		}
		seen := map[string]bool{}
		for _, c := range out {
			if c.ID == "" || seen[c.ID] {
				t.Fatalf("case %d: id %q empty or repeated in %+v", i, c.ID, out)
			}
			seen[c.ID] = true
		}
		if owner != nil && (st == SceneCombat || st == SceneDiscovery) {
			n := 0
			for _, c := range out {
				if owner.IsSkillChoice(c.Text) {
					n++
				}
			}
			if n == 0 {
				t.Fatalf("case %d: %s scene without a skill choice: %s", i, st, fmt.Sprint(out))
			}
		}
	}
}

func TestNormalizeChoicesInjectsSkillChoice(t *testing.T) {
	u := &skill.UniqueSkill{Name: "Thệ Ước Thép", Mechanic: "An oath hardens into steel."}
	in := []Choice{
		{ID: "1", Text: "Strike.", RiskLevel: 2},
		{ID: "2", Text: "Dodge.", RiskLevel: 3},
		{ID: "3", Text: "Flee.", RiskLevel: 1},
	}
	for _, st := range []SceneType{SceneCombat, SceneDiscovery} {
		out := NormalizeChoices(in, st, u)
		n := 0
		for _, c := range out {
			if u.IsSkillChoice(c.Text) {
				n++
				if !strings.HasPrefix(c.Text, "[Thệ Ước Thép] — ") {
					t.Errorf("skill choice text %q", c.Text)
				}
			}
		}
		if n != 1 {
			t.Errorf("%s: got %d skill choices, want 1", st, n)
		}
	}
	out := NormalizeChoices(in, SceneRest, u)
	for _, c := range out {
		if u.IsSkillChoice(c.Text) {
			t.Errorf("rest scene got skill choice %q", c.Text)
		}
	}
}

func TestRecommendSkillChoice(t *testing.T) {
	u := &skill.UniqueSkill{Name: "Veil", Category: skill.CategoryPerception}
	tests := []struct {
		name string
		st   SceneType
		ten  int
		desc string
		uses int
		want Recommendation
	}{
		{"combat", SceneCombat, 1, "", 9, SkillMandatory},
		{"discovery", SceneDiscovery, 1, "", 0, SkillMandatory},
		{"exploration tense", SceneExploration, 6, "", 0, SkillRecommended},
		{"exploration mention", SceneExploration, 2, "her ability flickers", 0, SkillRecommended},
		{"exploration calm", SceneExploration, 2, "a quiet road", 0, SkillOptional},
		{"dialogue perception", SceneDialogue, 3, "", 0, SkillRecommended},
		{"rest", SceneRest, 9, "", 0, SkillDiscouraged},
		{"overused", SceneExploration, 9, "", 4, SkillDiscouraged},
	}
	for _, tt := range tests {
		if got := RecommendSkillChoice(tt.st, tt.ten, tt.desc, u, tt.uses); got != tt.want {
			t.Errorf("%s: got %s, want %s", tt.name, got, tt.want)
		}
	}
}

func TestSetOutlineNormalizesBeats(t *testing.T) {
	c := &Chapter{ChapterNumber: 2}
	c.SetOutline(PlannerOutput{Beats: []Beat{
		{Description: "ambush", Tension: 14, SceneType: "combat"},
		{Description: "camp", Tension: 0, SceneType: "nonsense"},
	}})
	if c.TotalScenes != 2 {
		t.Fatalf("TotalScenes = %d", c.TotalScenes)
	}
	b1, _ := c.Beat(1)
	if b1.Tension != 10 || b1.EncounterType == "" || b1.Purpose != PurposeDevelopment {
		t.Errorf("beat 1 = %+v", b1)
	}
	b2, _ := c.Beat(2)
	if b2.Tension != 1 || b2.SceneType != SceneExploration {
		t.Errorf("beat 2 = %+v", b2)
	}
	if _, err := c.Beat(3); err == nil {
		t.Error("expected error for scene 3")
	}
}

func TestBeatHasTag(t *testing.T) {
	b := Beat{Tags: []string{"mutation_arc:2", "weapon_soul_link"}}
	if !b.HasTag(TagMutationArc) || !b.HasTag(TagWeaponSoulLink) {
		t.Error("expected both tags")
	}
	if b.HasTag("mutation") {
		t.Error("prefix without separator must not match")
	}
}

func TestStoryHelpers(t *testing.T) {
	s := &Story{PreferenceTags: []PreferenceTag{"combat"}, Tone: "dark"}
	if err := s.Validate(); err != nil {
		t.Fatal(err)
	}
	s.Tone = "grimdark"
	if err := s.Validate(); err == nil {
		t.Error("expected invalid tone")
	}
	if v := s.AdjustCompanion("Mira", 150); v != 100 {
		t.Errorf("affinity = %v, want 100", v)
	}
	for _, sum := range []string{"a", "b", "c", ""} {
		s.PushSummary(sum, 2)
	}
	if strings.Join(s.RecentSummaries, ",") != "b,c" {
		t.Errorf("summaries = %v", s.RecentSummaries)
	}
}
