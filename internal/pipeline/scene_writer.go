package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/amoisekai/engine/pkg/chat"
	"github.com/amoisekai/engine/pkg/combat"
	"github.com/amoisekai/engine/pkg/player"
	"github.com/amoisekai/engine/pkg/prompts"
	"github.com/amoisekai/engine/pkg/skill"
	"github.com/amoisekai/engine/pkg/story"
	"github.com/amoisekai/engine/pkg/textfilter"
)

// backgroundCriticTimeout bounds the model critic that runs after a scene
// has been returned.
const backgroundCriticTimeout = 2 * time.Minute

// SceneInput is everything the scene writer sees.
type SceneInput struct {
	StoryID              string
	ChapterNumber        int
	SceneNumber          int
	TotalScenes          int
	Beat                 story.Beat
	Beats                []story.Beat
	PreviousProse        []string
	ChosenChoice         *story.Choice
	FreeInput            string
	IsChapterEnd         bool
	Player               *player.Player
	FateInstruction      string
	PreferenceTags       []story.PreferenceTag
	SkillUsesThisChapter int
	CombatBrief          *combat.Brief
	SemanticContext      string
	WorldContext         string
	EvolutionContext     string
	ResonanceContext     string
	WeaponContext        string
	AdaptiveContext      string
	Tone                 story.Tone
}

// SceneOutput is one written scene and how it was judged.
type SceneOutput struct {
	Title    string
	Prose    string
	Choices  []story.Choice
	Critique Critique
	Rewrites int
	Fallback bool
}

type sceneDraft struct {
	Title   string         `json:"scene_title"`
	Prose   string         `json:"prose"`
	Choices []story.Choice `json:"choices"`
}

// WriteScene writes one scene, scoring each attempt with the heuristic
// critic and rewriting up to MaxRewrites times. It always returns a scene;
// when the model cannot produce one the beat is narrated from the brief.
func (p *Pipeline) WriteScene(ctx context.Context, in SceneInput) SceneOutput {
	crit := CritiqueInput{
		MinWords:  p.cfg.SceneMinWords,
		MaxWords:  p.cfg.SceneMaxWords,
		SceneType: in.Beat.SceneType,
		Threshold: p.cfg.ApproveScore,
	}
	if in.CombatBrief != nil {
		crit.Enemy = in.CombatBrief.Enemy.Name
	}
	if u := uniqueOf(in.Player); u != nil {
		crit.SkillName = u.Name
	}

	var (
		out     SceneOutput
		best    *sceneDraft
		bestCrt Critique
		retry   string
		last    string
	)
	for attempt := 0; attempt <= p.cfg.MaxRewrites; attempt++ {
		d, err := p.draftScene(ctx, in, last, retry)
		if err != nil {
			p.fallback(NodeSceneWriter, err)
			if ctx.Err() != nil {
				break
			}
			continue
		}
		p.finishScene(&d, in)
		crit.Prose, crit.Choices = d.Prose, d.Choices
		c := HeuristicCritique(crit)
		p.metrics.CriticScore(c.Score)
		if best == nil || c.Score > bestCrt.Score {
			best, bestCrt = &d, c
		}
		if c.Approved {
			best, bestCrt = &d, c
			break
		}
		if attempt < p.cfg.MaxRewrites {
			out.Rewrites++
			p.metrics.Rewrite()
		}
		retry, last = c.RewriteInstructions, d.Prose
	}

	if best == nil {
		d := fallbackScene(in)
		p.finishScene(&d, in)
		return SceneOutput{
			Title:    d.Title,
			Prose:    d.Prose,
			Choices:  d.Choices,
			Critique: Critique{Score: p.cfg.ApproveScore, Approved: true, Source: "fallback"},
			Rewrites: out.Rewrites,
			Fallback: true,
		}
	}
	// Out of rewrites: the best attempt is emitted as approved.
	bestCrt.Approved = true
	out.Title, out.Prose, out.Choices, out.Critique = best.Title, best.Prose, best.Choices, bestCrt
	return out
}

func (p *Pipeline) draftScene(ctx context.Context, in SceneInput, previous, instructions string) (sceneDraft, error) {
	b := prompts.New("").
		WithSectionf("Position", "Chapter %d, scene %d of %d.%s", in.ChapterNumber, in.SceneNumber, in.TotalScenes, endNote(in.IsChapterEnd)).
		WithSection("Current beat", beatBlock(in.Beat)).
		WithList("All beats", beatDescriptions(in.Beats)).
		WithSection("Previous scenes", strings.Join(in.PreviousProse, "\n\n---\n\n")).
		WithSection("Player choice", choiceText(in.ChosenChoice, in.FreeInput)).
		WithSection("Protagonist", playerBlock(in.Player)).
		WithSection("Unique skill", UniqueSkillBlock(uniqueOf(in.Player))).
		WithSection("Skill choice", p.skillGuidance(in)).
		WithSection("Combat", BriefBlock(in.CombatBrief)).
		WithSection("Fate", in.FateInstruction).
		WithSection("Reader preferences", tagList(in.PreferenceTags)).
		WithSection("Memory recall", in.SemanticContext).
		WithSection("World", in.WorldContext).
		WithSection("Skill evolution", in.EvolutionContext).
		WithSection("Resonance", in.ResonanceContext).
		WithSection("Weapons", in.WeaponContext).
		WithSection("Difficulty", in.AdaptiveContext).
		WithSection("Addressing the protagonist", GenderGuidance(genderOf(in.Player)))
	if previous != "" {
		b.WithSection("Your previous draft", previous).
			WithSection("Rewrite instructions", instructions)
	}
	b.WithFooter(fmt.Sprintf("Write scene %d.", in.SceneNumber))

	var d sceneDraft
	err := p.completeJSON(ctx, NodeSceneWriter, prompts.SceneWriter,
		map[string]any{"Tone": string(in.Tone), "MinWords": p.cfg.SceneMinWords, "MaxWords": p.cfg.SceneMaxWords},
		b, &d, []string{"scene_title", "prose", "choices"},
		chat.WithTemperature(0.8), chat.WithMaxTokens(2048))
	if err == nil && strings.TrimSpace(d.Prose) == "" {
		err = fmt.Errorf("scene writer returned no prose")
	}
	return d, err
}

func (p *Pipeline) finishScene(d *sceneDraft, in SceneInput) {
	d.Prose = textfilter.CleanProse(d.Prose)
	if strings.TrimSpace(d.Title) == "" {
		d.Title = fmt.Sprintf("Scene %d", in.SceneNumber)
	}
	d.Choices = story.NormalizeChoices(d.Choices, in.Beat.SceneType, uniqueOf(in.Player))
}

func (p *Pipeline) skillGuidance(in SceneInput) string {
	u := uniqueOf(in.Player)
	if u == nil {
		return ""
	}
	rec := story.RecommendSkillChoice(in.Beat.SceneType, in.Beat.Tension, in.Beat.Description, u, in.SkillUsesThisChapter)
	switch rec {
	case story.SkillMandatory:
		return fmt.Sprintf("One choice must use %s, prefixed %q.", u.Name, u.ChoicePrefix())
	case story.SkillRecommended:
		return fmt.Sprintf("Offer a choice that uses %s, prefixed %q.", u.Name, u.ChoicePrefix())
	case story.SkillDiscouraged:
		return fmt.Sprintf("Do not offer a choice that uses %s in this scene.", u.Name)
	}
	return ""
}

// CritiqueAsync runs the model critic on a written scene in the
// background and reports the verdict through done. Errors are logged.
func (p *Pipeline) CritiqueAsync(in SceneInput, out SceneOutput, done func(Critique)) {
	crit := CritiqueInput{
		Prose:     out.Prose,
		Choices:   append([]story.Choice(nil), out.Choices...),
		MinWords:  p.cfg.SceneMinWords,
		MaxWords:  p.cfg.SceneMaxWords,
		SceneType: in.Beat.SceneType,
		Threshold: p.cfg.ApproveScore,
	}
	contextBlock := beatBlock(in.Beat) + "\n" + strings.Join(in.PreviousProse, "\n")
	p.background.Add(1)
	go func() {
		defer p.background.Done()
		ctx, cancel := context.WithTimeout(context.Background(), backgroundCriticTimeout)
		defer cancel()
		c := p.judge(ctx, NodeCritic, crit, contextBlock)
		p.logger.Debug("Background critique", "story_id", in.StoryID, "chapter", in.ChapterNumber, "scene", in.SceneNumber, "score", c.Score, "source", c.Source)
		if done != nil {
			done(c)
		}
	}()
}

// fallbackScene narrates the beat, and the combat brief when there is
// one, without a model.
func fallbackScene(in SceneInput) sceneDraft {
	var b strings.Builder
	name := "The protagonist"
	if in.Player != nil && in.Player.Name != "" {
		name = in.Player.Name
	}
	b.WriteString(in.Beat.Description)
	b.WriteString("\n\n")
	if br := in.CombatBrief; br != nil {
		for _, ph := range br.Phases {
			fmt.Fprintf(&b, "%s chose to %s. ", name, ph.ActionTaken)
			for _, cue := range ph.NarrativeCues {
				b.WriteString(cue)
				b.WriteString(" ")
			}
			b.WriteString("\n\n")
		}
		switch br.FinalOutcome {
		case combat.PlayerWins:
			fmt.Fprintf(&b, "%s fell. %s stood, breathing hard.", br.Enemy.Name, name)
		case combat.EnemyWins:
			fmt.Fprintf(&b, "%s was driven to the ground by %s.", name, br.Enemy.Name)
		default:
			fmt.Fprintf(&b, "Neither %s nor %s could finish it.", name, br.Enemy.Name)
		}
	} else if in.Beat.Mood != "" {
		fmt.Fprintf(&b, "The air felt %s.", in.Beat.Mood)
	}
	return sceneDraft{
		Title:   fmt.Sprintf("Scene %d", in.SceneNumber),
		Prose:   strings.TrimSpace(b.String()),
		Choices: story.FallbackChoices(),
	}
}

// BriefBlock renders a resolved combat for the writer.
func BriefBlock(br *combat.Brief) string {
	if br == nil {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s encounter against %s (%s, threat %.1f). Outcome: %s.\n",
		br.EncounterType, br.Enemy.Name, br.Enemy.Principle, br.Enemy.ThreatLevel, br.FinalOutcome)
	for _, ph := range br.Phases {
		fmt.Fprintf(&b, "Phase %d", ph.PhaseNumber)
		if ph.BossPhase != "" {
			fmt.Fprintf(&b, " (%s)", ph.BossPhase)
		}
		fmt.Fprintf(&b, ": %s at %s, %s, %d damage, enemy hp %d.", ph.ActionTaken, ph.IntensityUsed, ph.Outcome, ph.DamageDealt, ph.EnemyHPRemaining)
		if len(ph.NarrativeCues) > 0 {
			fmt.Fprintf(&b, " %s", strings.Join(ph.NarrativeCues, " "))
		}
		b.WriteByte('\n')
	}
	if br.FateFired {
		b.WriteString("Fate intervened to keep the protagonist alive.\n")
	}
	if br.DefeatResult != nil {
		fmt.Fprintf(&b, "Defeat %d leaves a %s scar: %s\n", br.DefeatResult.DefeatCount, br.DefeatResult.Scar.Kind, br.DefeatResult.Scar.Description)
	}
	if br.WeaponContext != "" {
		fmt.Fprintf(&b, "Weapon: %s\n", br.WeaponContext)
	}
	if br.UniqueSkillContext != "" {
		fmt.Fprintf(&b, "Unique skill: %s\n", br.UniqueSkillContext)
	}
	return b.String()
}

func beatBlock(b story.Beat) string {
	out := fmt.Sprintf("%s\nType %s, purpose %s, tension %d", b.Description, b.SceneType, b.Purpose, b.Tension)
	if b.Mood != "" {
		out += ", mood " + b.Mood
	}
	return out + "."
}

func endNote(end bool) string {
	if end {
		return " This is the final scene of the chapter."
	}
	return ""
}

func choiceText(c *story.Choice, free string) string {
	s := State{ChosenChoice: c, FreeInput: free}
	return s.ChoiceText()
}

func tagList(tags []story.PreferenceTag) string {
	out := make([]string, len(tags))
	for i, t := range tags {
		out[i] = string(t)
	}
	return strings.Join(out, ", ")
}

func uniqueOf(pl *player.Player) *skill.UniqueSkill {
	if pl == nil {
		return nil
	}
	return pl.UniqueSkill
}

func genderOf(pl *player.Player) string {
	if pl == nil {
		return ""
	}
	return pl.Gender
}
