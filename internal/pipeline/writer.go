package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/amoisekai/engine/pkg/chat"
	"github.com/amoisekai/engine/pkg/prompts"
	"github.com/amoisekai/engine/pkg/skill"
	"github.com/amoisekai/engine/pkg/story"
	"github.com/amoisekai/engine/pkg/textfilter"
)

func (p *Pipeline) writer(ctx context.Context, s State) (Patch, error) {
	tone := ""
	if s.Story != nil {
		tone = string(s.Story.Tone)
	}

	b := prompts.New("").
		WithSection("Chapter", fmt.Sprintf("Chapter %d", s.ChapterNumber)).
		WithSection("Outline", outlineBlock(s.Plan)).
		WithSection("Fate", fateBlock(s)).
		WithSection("Context", s.ContextBlock).
		WithSection("Adaptive", s.AdaptiveContext)
	if s.Critique != nil && !s.Critique.Approved && s.Draft != nil {
		b.WithSection("Your previous draft", s.Draft.Prose).
			WithSection("Rewrite instructions", s.Critique.RewriteInstructions)
	}
	b.WithFooter(fmt.Sprintf("Write chapter %d.", s.ChapterNumber))

	var d Draft
	err := p.completeJSON(ctx, NodeWriter, prompts.Writer, map[string]any{"Tone": tone}, b, &d,
		[]string{"chapter_title", "prose", "summary", "choices"},
		chat.WithTemperature(0.8), chat.WithMaxTokens(4096))
	if err == nil && strings.TrimSpace(d.Prose) == "" {
		err = fmt.Errorf("writer returned no prose")
	}
	fellBack := false
	if err != nil {
		p.fallback(NodeWriter, err)
		if s.Draft != nil {
			// Keep the last real draft rather than replacing it with filler.
			d = *s.Draft
		} else {
			d = FallbackDraft(s)
			fellBack = true
		}
	}
	FinishDraft(&d, s)

	return func(st *State) {
		st.Draft = &d
		if fellBack {
			st.Fallbacks = append(st.Fallbacks, NodeWriter)
		}
	}, nil
}

// FinishDraft cleans the prose, fills a missing title and summary and
// enforces the choice contract for the chapter's closing beat.
func FinishDraft(d *Draft, s State) {
	d.Prose = textfilter.CleanProse(d.Prose)
	if strings.TrimSpace(d.Title) == "" {
		d.Title = fmt.Sprintf("Chapter %d", s.ChapterNumber)
	}
	if strings.TrimSpace(d.Summary) == "" {
		d.Summary = textfilter.Truncate(d.Prose, 300)
	}
	sceneType := story.SceneExploration
	if s.Plan != nil && len(s.Plan.Beats) > 0 {
		sceneType = s.Plan.Beats[len(s.Plan.Beats)-1].SceneType
	}
	d.Choices = story.NormalizeChoices(d.Choices, sceneType, uniqueSkill(s))
}

// FallbackDraft stitches the planned beats into plain prose.
func FallbackDraft(s State) Draft {
	var b strings.Builder
	name := "The protagonist"
	if s.Player != nil && s.Player.Name != "" {
		name = s.Player.Name
	}
	if choice := s.ChoiceText(); choice != "" {
		fmt.Fprintf(&b, "%s had chosen: %s.\n\n", name, strings.TrimRight(choice, "."))
	}
	if s.Plan != nil {
		for _, beat := range s.Plan.Beats {
			b.WriteString(beat.Description)
			b.WriteString("\n\n")
		}
	}
	if b.Len() == 0 {
		b.WriteString(name + " pressed on into the dark.")
	}
	return Draft{
		Title:    fmt.Sprintf("Chapter %d", s.ChapterNumber),
		Prose:    strings.TrimSpace(b.String()),
		Choices:  story.FallbackChoices(),
		Fallback: true,
	}
}

func outlineBlock(plan *story.PlannerOutput) string {
	if plan == nil {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Tension %d, %s pacing, arc: %s\n", plan.ChapterTension, plan.Pacing, plan.EmotionalArc)
	if plan.StartingZone != "" {
		fmt.Fprintf(&b, "Opens in %s.\n", plan.StartingZone)
	}
	for i, beat := range plan.Beats {
		fmt.Fprintf(&b, "%d. [%s, %s, tension %d] %s\n", i+1, beat.SceneType, beat.Purpose, beat.Tension, beat.Description)
	}
	if len(plan.NewCharacters) > 0 {
		fmt.Fprintf(&b, "New characters: %s\n", strings.Join(plan.NewCharacters, ", "))
	}
	return b.String()
}

func uniqueSkill(s State) *skill.UniqueSkill {
	if s.Player == nil {
		return nil
	}
	return s.Player.UniqueSkill
}
