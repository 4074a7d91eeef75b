package pipeline

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amoisekai/engine/internal/memory"
	"github.com/amoisekai/engine/internal/services"
	"github.com/amoisekai/engine/pkg/chat"
	"github.com/amoisekai/engine/pkg/combat"
	"github.com/amoisekai/engine/pkg/crng"
	"github.com/amoisekai/engine/pkg/evolution"
	"github.com/amoisekai/engine/pkg/growth"
	"github.com/amoisekai/engine/pkg/player"
	"github.com/amoisekai/engine/pkg/principle"
	"github.com/amoisekai/engine/pkg/prompts"
	"github.com/amoisekai/engine/pkg/skill"
	"github.com/amoisekai/engine/pkg/storage"
	"github.com/amoisekai/engine/pkg/story"
)

func newPipeline(t *testing.T, llm chat.Generator, layers *memory.Layers) *Pipeline {
	t.Helper()
	lib, err := prompts.Default()
	require.NoError(t, err)
	p, err := New(Deps{LLM: llm, Prompts: lib, Layers: layers, Logger: discard()})
	require.NoError(t, err)
	return p
}

func hero() *player.Player {
	pl := player.New("p1", "u1", "Kael")
	pl.Gender = "male"
	pl.UniqueSkill = &skill.UniqueSkill{
		Name:       "Thệ Ước",
		Category:   skill.CategoryContract,
		Mechanic:   "Binds a spoken promise to both parties.",
		Weakness:   "Breaking the oath burns the caster.",
		Limitation: "One oath at a time.",
	}
	return pl
}

// prose returns n words in distinct sentences.
func prose(n int) string {
	var b strings.Builder
	for i := 0; b.Len() == 0 || len(strings.Fields(b.String())) < n; i++ {
		fmt.Fprintf(&b, "Kael passed marker stone %d on the road toward the gate. ", i)
	}
	return strings.Join(strings.Fields(b.String())[:n], " ") + "."
}

func sceneJSON(words int) string {
	return fmt.Sprintf(`{"scene_title":"Ash Road","prose":%q,"choices":[`+
		`{"id":"a","text":"Wait for dusk","risk_level":2,"consequence_hint":"safe"},`+
		`{"id":"b","text":"Follow the tracks","risk_level":3,"consequence_hint":"maybe"},`+
		`{"id":"c","text":"Call out to the watcher","risk_level":4,"consequence_hint":"risky"}]}`, prose(words))
}

func TestParseKeywords(t *testing.T) {
	offered := []story.Choice{
		{ID: "c1", Text: "Sneak past the guards"},
		{ID: "c2", Text: "Bribe the captain"},
	}

	got := ParseKeywords("I sneak past the guards quietly", offered, "Thệ Ước")
	assert.Equal(t, ActionStealth, got.ActionCategory)
	assert.Equal(t, "c1", got.MatchedChoiceID)
	assert.InDelta(t, 1.0, got.ChoiceConfidence, 1e-9)

	got = ParseKeywords("I call on thệ ước and bind him", offered, "Thệ Ước")
	assert.Equal(t, ActionSkillUse, got.ActionCategory)
	assert.Equal(t, "Thệ Ước", got.SkillReference)

	got = ParseKeywords("hmm", nil, "")
	assert.Equal(t, ActionOther, got.ActionCategory)
	assert.Zero(t, got.ChoiceConfidence)
}

func TestInjectScheduled(t *testing.T) {
	beats := []story.Beat{{Description: "a"}, {Description: "b"}, {Description: "c"}}
	scheduled := []story.Beat{
		{Description: "arc 1", Tags: []string{story.TagMutationArc + ":1"}},
		{Description: "arc 2", Tags: []string{story.TagMutationArc + ":2"}},
		{Description: "skill", Tags: []string{story.TagSkillDiscovery}},
	}

	got := InjectScheduled(beats, scheduled)
	var descs []string
	for _, b := range got {
		descs = append(descs, b.Description)
	}
	assert.Equal(t, []string{"a", "b", "arc 1", "arc 2", "skill", "c"}, descs)

	beats[1].Tags = []string{story.TagSkillDiscovery}
	got = InjectScheduled(beats, scheduled[2:])
	assert.Len(t, got, 3)
}

func TestFinishPlan(t *testing.T) {
	var plan story.PlannerOutput
	for i := range 8 {
		plan.Beats = append(plan.Beats, story.Beat{Description: fmt.Sprintf("beat %d", i), Tension: 12})
	}
	plan.Pacing = "glacial"

	got := FinishPlan(plan, nil, "Ashen Gate", 6)
	require.Len(t, got.Beats, 6)
	assert.Equal(t, "In Ashen Gate: beat 0", got.Beats[0].Description)
	assert.Equal(t, "beat 7", got.Beats[5].Description)
	assert.Equal(t, 10, got.Beats[0].Tension)
	assert.Equal(t, story.SceneExploration, got.Beats[0].SceneType)
	assert.Equal(t, story.PacingMedium, got.Pacing)
	assert.Equal(t, 1, got.ChapterTension)
	assert.Equal(t, "Ashen Gate", got.StartingZone)
}

func TestClampConsequences(t *testing.T) {
	c := Consequences{
		FactionImplications: FactionImplications{EmpireResonanceDelta: 40, IdentityAnchorDelta: -25},
		CompanionAffinity:   map[string]float64{"Lys": 30, " ": 5, "Orrin": -4},
		CausalChains:        []CausalChain{{Trigger: "x", Horizon: "eventually", CascadeRisk: 3}},
	}
	ClampConsequences(&c)
	assert.Equal(t, 10.0, c.FactionImplications.EmpireResonanceDelta)
	assert.Equal(t, -10.0, c.FactionImplications.IdentityAnchorDelta)
	assert.Equal(t, map[string]float64{"Lys": 10, "Orrin": -4}, c.CompanionAffinity)
	assert.Equal(t, "medium", c.CausalChains[0].Horizon)
	assert.Equal(t, 1.0, c.MaxCascadeRisk())

	fb := FallbackConsequences("Storm the gate", ActionCombat, 5)
	assert.Equal(t, 5.0, fb.FactionImplications.EmpireResonanceDelta)
	assert.Equal(t, "medium", fb.CausalChains[0].Horizon)
	assert.NotEmpty(t, fb.Foreshadowing)
}

func TestBuildContextBlockOrder(t *testing.T) {
	block := BuildContextBlock(ContextInput{
		MemoryRecall:    "recall",
		Ledger:          "ledger",
		World:           "world",
		Villains:        "villains",
		Companions:      "companions",
		PreviousSummary: "summary",
		PreviousEnding:  "ending",
		Choice:          "choice",
		Consequences:    &Consequences{CausalChains: []CausalChain{{Trigger: "t", Horizon: "long"}}},
		Player:          hero(),
		Gender:          "female",
	})
	titles := []string{
		"Memory recall", "Story ledger", "World state", "Villains", "Companions",
		"Previous chapters", "Where the last chapter ended", "Player choice",
		"Consequences", "Protagonist", "Unique skill", "Addressing the protagonist",
	}
	last := -1
	for _, title := range titles {
		i := strings.Index(block, "## "+title+"\n")
		require.GreaterOrEqual(t, i, 0, title)
		assert.Greater(t, i, last, title)
		last = i
	}
	assert.Contains(t, block, "she/her")

	block = BuildContextBlock(ContextInput{Choice: "only this"})
	assert.True(t, strings.HasPrefix(block, "## Player choice\nonly this\n"))
	assert.NotContains(t, block, "## Protagonist")
	assert.Contains(t, block, "they/them")
}

func TestHeuristicCritique(t *testing.T) {
	in := CritiqueInput{
		Prose:     prose(360),
		Choices:   story.FallbackChoices(),
		MinWords:  300,
		MaxWords:  500,
		Threshold: 6,
	}
	c := HeuristicCritique(in)
	assert.Equal(t, 8.0, c.Score)
	assert.True(t, c.Approved)

	in.SceneType, in.Enemy = story.SceneCombat, "Gravewolf"
	c = HeuristicCritique(in)
	assert.Equal(t, 7.0, c.Score)

	in.Prose = prose(50)
	c = HeuristicCritique(in)
	assert.False(t, c.Approved)
	assert.Contains(t, c.RewriteInstructions, "Too short")

	in.Prose = strings.Repeat("The same sentence keeps coming back here. ", 40)
	in.SceneType = ""
	c = HeuristicCritique(in)
	assert.False(t, c.Approved)
	assert.Contains(t, c.RewriteInstructions, "Repeated")

	c = HeuristicCritique(CritiqueInput{})
	assert.Zero(t, c.Score)
}

func TestIdentityDeltas(t *testing.T) {
	d := HeuristicDelta(IdentityInput{
		Category: ActionSoulChoice,
		Risk:     5,
		Beats:    []story.Beat{{Purpose: story.PurposeClimax, SceneType: story.SceneCombat}},
	})
	assert.Equal(t, 14.0, d.BreakthroughChange)
	assert.Contains(t, d.NewFlags, "survived_climax_combat")
	assert.Equal(t, "soul", d.DriftDirection)

	pl := hero()
	pl.BreakthroughMeter = 95
	pl.Notoriety = 65
	got := FinishDelta(player.IdentityDelta{
		DQSChange:          40,
		InstabilityChange:  -30,
		BreakthroughChange: 10,
		NotorietyChange:    10,
		NewFlags:           []string{"Saw The King", "saw_the_king", " "},
	}, pl, true)
	assert.Equal(t, 15.0, got.DQSChange)
	assert.Equal(t, -15.0, got.InstabilityChange)
	assert.Equal(t, []string{"saw_the_king"}, got.NewFlags)
	assert.True(t, got.PityReset)
	assert.True(t, got.BreakthroughTriggered)
	assert.True(t, got.ConfrontationTriggered)

	got = FinishDelta(player.IdentityDelta{NotorietyChange: 1}, pl, false)
	assert.False(t, got.PityReset)
	assert.False(t, got.BreakthroughTriggered)
}

func TestRunChapterFallsBackEverywhere(t *testing.T) {
	llm := services.NewMockLLMAPI()
	llm.SetChatError(errors.New("offline"))
	store := storage.NewMockStorage()
	layers := memory.NewLayers(nil, nil, store, discard())
	p := newPipeline(t, llm, layers)

	s := State{
		Story:         &story.Story{ID: "s1", ProtagonistName: "Kael"},
		Player:        hero(),
		ChapterNumber: 1,
		FreeInput:     "I attack the guard at the gate",
		StartingZone:  "Ashen Gate",
		CRNGEvent:     &crng.Event{Triggered: true, EventType: crng.EventFateTwist, Major: true},
	}
	got, err := p.RunChapter(context.Background(), s)
	require.NoError(t, err)
	p.Wait()

	assert.Equal(t, []string{
		NodeInputParser, NodePlanner, NodeSimulator, NodeContext, NodeWriter,
		NodeCritic, NodeIdentity, NodeWeaponUpdate, NodeOutput, NodeLedger,
	}, got.Trace)
	assert.Equal(t, []string{NodeInputParser, NodePlanner, NodeSimulator, NodeWriter, NodeIdentity}, got.Fallbacks)
	assert.Equal(t, ActionCombat, got.Parsed.ActionCategory)
	assert.True(t, strings.HasPrefix(got.Plan.Beats[0].Description, "In Ashen Gate"))

	require.NotNil(t, got.Output)
	assert.Len(t, got.Output.Choices, story.ChoicesPerScene)
	assert.Contains(t, got.Output.Prose, "attack the guard")
	require.NotNil(t, got.IdentityDelta)
	assert.True(t, got.IdentityDelta.PityReset)
	require.NotNil(t, got.Loadout)
	assert.Equal(t, "Kael", s.Player.Name)

	ws, err := store.GetWorld(context.Background(), "s1")
	require.NoError(t, err)
	assert.NotEmpty(t, ws.NarrativeEvents)
}

func TestRunChapterRewriteLoopForceApproves(t *testing.T) {
	llm := services.NewMockLLMAPI()
	llm.SetResponse(NodeWriter, `{"chapter_title":"Ash","prose":"Kael walked into the ash.","summary":"Kael arrived.","choices":[]}`)
	llm.SetResponse(NodeCritic, "```json\n{\"score\": 2, \"approved\": false, \"rewrite_instructions\": \"More dread.\"}\n```")
	p := newPipeline(t, llm, nil)

	got, err := p.RunChapter(context.Background(), State{
		Story:         &story.Story{ID: "s1"},
		Player:        hero(),
		ChapterNumber: 2,
		ChosenChoice:  &story.Choice{ID: "c1", Text: "Follow the ash", RiskLevel: 2},
	})
	require.NoError(t, err)

	writes := llm.CallsFor(NodeWriter)
	require.Len(t, writes, 3)
	assert.Len(t, llm.CallsFor(NodeCritic), 3)
	assert.NotContains(t, writes[0].Messages[1].Content, "More dread.")
	assert.Contains(t, writes[1].Messages[1].Content, "More dread.")
	assert.Equal(t, 2, got.Rewrites)
	assert.True(t, got.ForceApproved)
	assert.True(t, got.Critique.Approved)
	assert.Equal(t, "Ash", got.Output.Title)
}

func TestRunPlanUsesModelPlan(t *testing.T) {
	llm := services.NewMockLLMAPI()
	llm.SetResponse(NodePlanner, `{"beats":[`+
		`{"description":"Wake in the ruin","tension":3,"purpose":"rising","scene_type":"exploration"},`+
		`{"description":"The wolves come","tension":7,"purpose":"climax","scene_type":"combat"}],`+
		`"chapter_tension":6,"pacing":"fast","emotional_arc":"dread to grit"}`)
	p := newPipeline(t, llm, nil)

	got, err := p.RunPlan(context.Background(), State{
		Player:        hero(),
		ChapterNumber: 3,
		ChosenChoice:  &story.Choice{ID: "c2", Text: "Hold the line", RiskLevel: 3},
		Scheduled:     []story.Beat{{Description: "A skill stirs", SceneType: story.SceneDiscovery, Tags: []string{story.TagSkillDiscovery}}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{NodeInputParser, NodePlanner, NodeSimulator}, got.Trace)
	require.Len(t, got.Plan.Beats, 3)
	assert.Equal(t, "A skill stirs", got.Plan.Beats[1].Description)
	assert.Equal(t, combat.EncounterMinor, got.Plan.Beats[2].EncounterType)
	assert.Equal(t, story.PacingFast, got.Plan.Pacing)
	assert.Equal(t, "fallback", got.Consequences.Source)
}

func TestWriteSceneAcceptsGoodDraft(t *testing.T) {
	llm := services.NewMockLLMAPI()
	llm.SetResponse(NodeSceneWriter, sceneJSON(360))
	p := newPipeline(t, llm, nil)

	out := p.WriteScene(context.Background(), SceneInput{
		ChapterNumber: 1, SceneNumber: 1, TotalScenes: 3,
		Beat:          story.Beat{Description: "The road", SceneType: story.SceneExploration, Tension: 3},
		Player:        hero(),
	})
	assert.False(t, out.Fallback)
	assert.Zero(t, out.Rewrites)
	assert.Equal(t, "Ash Road", out.Title)
	assert.True(t, out.Critique.Approved)
	assert.Len(t, llm.CallsFor(NodeSceneWriter), 1)
}

func TestWriteSceneRewritesShortDrafts(t *testing.T) {
	llm := services.NewMockLLMAPI()
	llm.SetResponse(NodeSceneWriter, sceneJSON(40))
	p := newPipeline(t, llm, nil)

	out := p.WriteScene(context.Background(), SceneInput{
		SceneNumber: 2,
		Beat:        story.Beat{Description: "The road", SceneType: story.SceneExploration},
	})
	assert.Equal(t, 2, out.Rewrites)
	assert.Len(t, llm.CallsFor(NodeSceneWriter), 3)
	assert.True(t, out.Critique.Approved)
	assert.Contains(t, llm.CallsFor(NodeSceneWriter)[1].Messages[1].Content, "Too short")
}

func TestWriteSceneFallbackNarratesCombat(t *testing.T) {
	llm := services.NewMockLLMAPI()
	llm.SetChatError(errors.New("offline"))
	p := newPipeline(t, llm, nil)

	brief := &combat.Brief{
		EncounterType: combat.EncounterMinor,
		Enemy:         combat.EnemyProfile{Name: "Gravewolf"},
		Phases:        []combat.PhaseResult{{PhaseNumber: 1, ActionTaken: "strike", NarrativeCues: []string{"Steel bit deep."}}},
		FinalOutcome:  combat.PlayerWins,
	}
	out := p.WriteScene(context.Background(), SceneInput{
		SceneNumber: 1,
		Beat:        story.Beat{Description: "Wolves at the gate.", SceneType: story.SceneCombat},
		Player:      hero(),
		CombatBrief: brief,
	})
	assert.True(t, out.Fallback)
	assert.Contains(t, out.Prose, "Steel bit deep.")
	assert.Contains(t, out.Prose, "Gravewolf fell.")
	require.Len(t, out.Choices, story.ChoicesPerScene)
	u := hero().UniqueSkill
	assert.True(t, slices.ContainsFunc(out.Choices, func(c story.Choice) bool { return u.IsSkillChoice(c.Text) }))
}

func TestCritiqueAsync(t *testing.T) {
	llm := services.NewMockLLMAPI()
	llm.SetResponse(NodeCritic, `{"score": 8.5, "approved": true, "rewrite_instructions": ""}`)
	p := newPipeline(t, llm, nil)

	var (
		mu  sync.Mutex
		got Critique
	)
	p.CritiqueAsync(SceneInput{SceneNumber: 1}, SceneOutput{Prose: prose(300)}, func(c Critique) {
		mu.Lock()
		defer mu.Unlock()
		got = c
	})
	p.Wait()
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 8.5, got.Score)
	assert.Equal(t, "llm", got.Source)
}

func TestSkinFallsBack(t *testing.T) {
	sk := &skill.Skeleton{
		ID:        "ember_step", CatalogName: "Ember Step", Principle: principle.Energy,
		Archetype: skill.ArchetypeOffensive, Mechanic: "Dash through flame.",
	}

	llm := services.NewMockLLMAPI()
	p := newPipeline(t, llm, nil)
	assert.Equal(t, skill.FallbackSkin(sk), p.Skin(context.Background(), sk, "Kael", ""))

	llm.SetResponse(NodeNarrator, `{"display_name":"Cinder Stride","description":"","discovery_line":"Heat coils in your heels."}`)
	skin := p.Skin(context.Background(), sk, "Kael", "")
	assert.Equal(t, "Cinder Stride", skin.DisplayName)
	assert.Equal(t, skill.FallbackSkin(sk).Description, skin.Description)
}

func TestGeneratorsFallBack(t *testing.T) {
	llm := services.NewMockLLMAPI()
	p := newPipeline(t, llm, nil)
	u := hero().UniqueSkill

	assert.Equal(t, growth.FallbackBloom(u, skill.BloomPathEcho), p.Bloom(context.Background(), u, skill.BloomPathEcho))
	assert.Equal(t, growth.FallbackAspectOptions(u), p.Aspects(context.Background(), u))

	llm.SetResponse(NodeGrowth, `{"title_name":"Thiết Thệ Bất Hoại","honorific":"Chúa Tể Kim Cương","title":"Oathkeeper","transcendent_core":"One will."}`)
	absorbed := &skill.PlayerSkill{ID: "s1", Skin: skill.NarrativeSkin{DisplayName: "Iron Skin"}}
	form := p.Ultimate(context.Background(), u, absorbed)
	assert.Equal(t, "Thiết Thệ Bất Hoại — Chúa Tể Kim Cương", form.Name())
	assert.Equal(t, growth.FallbackUltimate(u, absorbed).Ability, form.Ability)

	src := &skill.PlayerSkill{ID: "s2", Skin: skill.NarrativeSkin{DisplayName: "Iron Skin"}, Principle: principle.Matter}
	assert.Equal(t, evolution.FallbackMutation("Iron Skin", evolution.MutationCorruption), p.MutatedSkill(context.Background(), src, evolution.MutationCorruption))
}

func TestForgeSkillValidates(t *testing.T) {
	llm := services.NewMockLLMAPI()
	llm.SetResponse(NodeForge, `{"name":"Ledger of Ash","category":"Contract","description":"d","mechanic":"Records debts in ash.",`+
		`"limitation":"l","weakness":"Debts cut both ways.","weakness_type":"target_paradox","unique_clause":"u",`+
		`"unique_clause_trigger":"hp_pct<30","domain_passive_name":"Ash Tally","domain_passive_mechanic":"m",`+
		`"axis_blind_spot":"perception","archetype":"sovereign","dna_affinity":["oath","nonsense","mind","chaos","relic"]}`)
	p := newPipeline(t, llm, nil)

	f, err := p.ForgeSkill(context.Background(), ForgeInput{Name: "Kael", Fragment: "I keep my word."})
	require.NoError(t, err)
	assert.Equal(t, "Ledger of Ash", f.Name)
	assert.Equal(t, skill.CategoryContract, f.Category)
	assert.Equal(t, player.ArchetypeSovereign, f.Archetype)
	assert.Equal(t, []player.DNATag{player.DNAOath, player.DNAMind, player.DNAChaos}, f.DNAAffinity)

	llm.SetResponse(NodeForge, `{"name":"","category":"contract"}`)
	_, err = p.ForgeSkill(context.Background(), ForgeInput{Name: "Kael"})
	assert.Error(t, err)
}
