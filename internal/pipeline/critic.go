package pipeline

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/amoisekai/engine/pkg/prompts"
	"github.com/amoisekai/engine/pkg/story"
	"github.com/amoisekai/engine/pkg/textfilter"
)

// Chapter prose bands for the full chapter writer.
const (
	ChapterMinWords = 600
	ChapterMaxWords = 3000
)

// CritiqueInput is what the heuristic critic looks at.
type CritiqueInput struct {
	Prose     string
	Choices   []story.Choice
	MinWords  int
	MaxWords  int
	SceneType story.SceneType
	Enemy     string
	SkillName string
	Threshold float64
}

var metaLeak = regexp.MustCompile(`(?i)\b(as an ai|language model|the player|choice [123]|scene_title|risk_level|\{\s*"prose")`)

// HeuristicCritique scores prose without a model. It starts at 8 and
// deducts for length, repetition, leaked scaffolding, broken choices and
// a combat scene that never names its enemy or a discovery scene that
// never touches the protagonist's skill.
func HeuristicCritique(in CritiqueInput) Critique {
	score := 8.0
	var notes []string

	words := textfilter.WordCount(in.Prose)
	switch {
	case words == 0:
		return Critique{Score: 0, RewriteInstructions: "Write the prose; none was produced.", Source: "heuristic"}
	case in.MinWords > 0 && words < in.MinWords:
		short := float64(in.MinWords-words) / float64(in.MinWords)
		score -= math.Min(4, 1+short*6)
		notes = append(notes, fmt.Sprintf("Too short (%d words); aim for %d to %d.", words, in.MinWords, in.MaxWords))
	case in.MaxWords > 0 && words > in.MaxWords+in.MaxWords/5:
		score -= 1.5
		notes = append(notes, fmt.Sprintf("Too long (%d words); stay under %d.", words, in.MaxWords))
	}

	if r := repetition(in.Prose); r > 0.08 {
		score -= math.Min(3, r*20)
		notes = append(notes, "Repeated sentences or phrases; vary the wording.")
	}
	if metaLeak.MatchString(in.Prose) {
		score -= 3
		notes = append(notes, "Remove meta text and formatting that addresses the reader as a player.")
	}
	if len(in.Choices) != story.ChoicesPerScene {
		score -= 1
		notes = append(notes, fmt.Sprintf("Offer exactly %d choices.", story.ChoicesPerScene))
	}

	folded := textfilter.Fold(in.Prose)
	if in.SceneType == story.SceneCombat && in.Enemy != "" && !strings.Contains(folded, textfilter.Fold(in.Enemy)) {
		score -= 1
		notes = append(notes, "Name the enemy ("+in.Enemy+") in the fight.")
	}
	if in.SceneType == story.SceneDiscovery && in.SkillName != "" && !strings.Contains(folded, textfilter.Fold(in.SkillName)) {
		score -= 0.5
		notes = append(notes, "Let "+in.SkillName+" play a part in the discovery.")
	}

	score = math.Round(min(max(score, 0), 10)*10) / 10
	c := Critique{Score: score, Source: "heuristic"}
	threshold := in.Threshold
	if threshold == 0 {
		threshold = DefaultConfig().ApproveScore
	}
	c.Approved = score >= threshold
	if !c.Approved {
		c.RewriteInstructions = strings.Join(notes, " ")
	}
	return c
}

// repetition is the share of sentences that repeat an earlier one.
func repetition(prose string) float64 {
	sentences := strings.FieldsFunc(prose, func(r rune) bool { return r == '.' || r == '!' || r == '?' || r == '\n' })
	seen := map[string]bool{}
	total, dup := 0, 0
	for _, s := range sentences {
		key := textfilter.Fold(s)
		if len(strings.Fields(key)) < 4 {
			continue
		}
		total++
		if seen[key] {
			dup++
		}
		seen[key] = true
	}
	if total == 0 {
		return 0
	}
	return float64(dup) / float64(total)
}

func (p *Pipeline) critic(ctx context.Context, s State) (Patch, error) {
	if s.Draft == nil {
		return nil, fmt.Errorf("critic: no draft")
	}
	in := CritiqueInput{
		Prose:     s.Draft.Prose,
		Choices:   s.Draft.Choices,
		MinWords:  ChapterMinWords,
		MaxWords:  ChapterMaxWords,
		Threshold: p.cfg.ApproveScore,
	}
	if u := uniqueSkill(s); u != nil {
		in.SkillName = u.Name
	}

	var c Critique
	if s.Draft.Fallback {
		// Filler prose cannot improve by rewriting.
		c = Critique{Score: p.cfg.ApproveScore, Approved: true, Source: "fallback"}
	} else {
		c = p.judge(ctx, NodeCritic, in, s.ContextBlock)
	}
	p.metrics.CriticScore(c.Score)

	limit := p.cfg.MaxRewrites
	return func(st *State) {
		if !c.Approved {
			if st.Rewrites < limit {
				st.Rewrites++
				p.metrics.Rewrite()
			} else {
				c.Approved = true
				st.ForceApproved = true
			}
		}
		st.Critique = &c
	}, nil
}

// judge asks the model critic and falls back to the heuristic one.
func (p *Pipeline) judge(ctx context.Context, node string, in CritiqueInput, contextBlock string) Critique {
	b := prompts.New("").
		WithSection("Context", textfilter.Truncate(contextBlock, 4000)).
		WithSection("Prose", in.Prose).
		WithList("Choices", choiceLines(in.Choices)).
		WithFooter("Score the prose.")

	var c Critique
	err := p.completeJSON(ctx, node, prompts.Critic, map[string]any{"Threshold": in.Threshold}, b, &c,
		[]string{"score", "approved", "rewrite_instructions"}, structured()...)
	if err != nil {
		p.fallback(node, err)
		return HeuristicCritique(in)
	}
	c.Score = min(max(c.Score, 0), 10)
	c.Approved = c.Score >= in.Threshold
	c.Source = "llm"
	return c
}
