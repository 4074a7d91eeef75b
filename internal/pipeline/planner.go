package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/amoisekai/engine/pkg/player"
	"github.com/amoisekai/engine/pkg/prompts"
	"github.com/amoisekai/engine/pkg/story"
)

var sceneTypes = []string{
	string(story.SceneCombat), string(story.SceneExploration), string(story.SceneDialogue),
	string(story.SceneDiscovery), string(story.SceneRest),
}

func (p *Pipeline) planner(ctx context.Context, s State) (Patch, error) {
	zone := ""
	if s.ChapterNumber == 1 {
		zone = s.StartingZone
	}

	b := prompts.New("").
		WithSection("Story", storyBlock(s.Story)).
		WithSection("Protagonist", playerBlock(s.Player)).
		WithSection("Previous chapters", s.PreviousSummary).
		WithSection("World", p.worldBlock(s)).
		WithSection("Ledger", ledgerBlock(s)).
		WithSection("Player choice", s.ChoiceText()).
		WithSection("Player intent", parsedBlock(s.Parsed)).
		WithSection("Fate", fateBlock(s)).
		WithList("Scheduled events (inserted for you, plan around them)", beatDescriptions(s.Scheduled)).
		WithFooter(fmt.Sprintf("Plan chapter %d.", s.ChapterNumber))

	var plan story.PlannerOutput
	err := p.completeJSON(ctx, NodePlanner, prompts.Planner,
		map[string]any{
			"MinBeats":     p.cfg.MinBeats,
			"MaxBeats":     p.cfg.MaxBeats,
			"SceneTypes":   sceneTypes,
			"StartingZone": zone,
		},
		b, &plan, []string{"beats", "chapter_tension", "pacing", "emotional_arc", "new_characters", "world_changes"},
		structured()...)
	if err == nil && len(plan.Beats) == 0 {
		err = fmt.Errorf("planner returned no beats")
	}
	fellBack := false
	if err != nil {
		p.fallback(NodePlanner, err)
		plan = story.FallbackPlan(zone)
		fellBack = true
	}

	plan = FinishPlan(plan, s.Scheduled, zone, p.cfg.MaxBeats)
	return func(st *State) {
		st.Plan = &plan
		if fellBack {
			st.Fallbacks = append(st.Fallbacks, NodePlanner)
		}
	}, nil
}

// FinishPlan trims the plan to maxBeats, inserts scheduled beats, opens
// the first chapter in zone and normalizes every beat.
func FinishPlan(plan story.PlannerOutput, scheduled []story.Beat, zone string, maxBeats int) story.PlannerOutput {
	if maxBeats > 0 && len(plan.Beats) > maxBeats {
		keep := append([]story.Beat(nil), plan.Beats[:maxBeats-1]...)
		plan.Beats = append(keep, plan.Beats[len(plan.Beats)-1])
	}
	plan.Beats = InjectScheduled(plan.Beats, scheduled)

	if zone != "" {
		plan.StartingZone = zone
		first := &plan.Beats[0]
		if !strings.Contains(strings.ToLower(first.Description), strings.ToLower(zone)) {
			first.Description = "In " + zone + ": " + first.Description
		}
	}

	for i := range plan.Beats {
		plan.Beats[i].Normalize()
	}
	plan.ChapterTension = min(max(plan.ChapterTension, 1), 10)
	switch plan.Pacing {
	case story.PacingSlow, story.PacingMedium, story.PacingFast:
	default:
		plan.Pacing = story.PacingMedium
	}
	return plan
}

// InjectScheduled places scheduled beats before the final beat, skipping
// any whose first tag the plan already carries. Beats sharing a tag stay
// together in their given order.
func InjectScheduled(beats, scheduled []story.Beat) []story.Beat {
	var add []story.Beat
	for _, sb := range scheduled {
		if len(sb.Tags) > 0 && hasTag(beats, baseTag(sb.Tags[0])) && !hasTag(add, baseTag(sb.Tags[0])) {
			continue
		}
		add = append(add, sb)
	}
	if len(add) == 0 {
		return beats
	}
	if len(beats) < 2 {
		return append(append([]story.Beat(nil), beats...), add...)
	}
	out := make([]story.Beat, 0, len(beats)+len(add))
	out = append(out, beats[:len(beats)-1]...)
	out = append(out, add...)
	return append(out, beats[len(beats)-1])
}

func baseTag(t string) string {
	if i := strings.IndexByte(t, ':'); i >= 0 {
		return t[:i]
	}
	return t
}

func hasTag(beats []story.Beat, tag string) bool {
	for i := range beats {
		if beats[i].HasTag(tag) {
			return true
		}
	}
	return false
}

func beatDescriptions(beats []story.Beat) []string {
	out := make([]string, 0, len(beats))
	for _, b := range beats {
		out = append(out, fmt.Sprintf("%s (%s)", b.Description, b.SceneType))
	}
	return out
}

func storyBlock(st *story.Story) string {
	if st == nil {
		return ""
	}
	tags := make([]string, 0, len(st.PreferenceTags))
	for _, t := range st.PreferenceTags {
		tags = append(tags, string(t))
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Protagonist: %s\n", st.ProtagonistName)
	if len(tags) > 0 {
		fmt.Fprintf(&b, "Preferences: %s\n", strings.Join(tags, ", "))
	}
	if st.Tone != story.ToneNone {
		fmt.Fprintf(&b, "Tone: %s\n", st.Tone)
	}
	if st.Backstory != "" {
		fmt.Fprintf(&b, "Backstory: %s\n", st.Backstory)
	}
	return b.String()
}

func playerBlock(pl *player.Player) string {
	if pl == nil {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s, %s archetype.", pl.Name, pl.Archetype)
	if len(pl.CurrentIdentity.CoreValues) > 0 {
		fmt.Fprintf(&b, " Values: %s.", strings.Join(pl.CurrentIdentity.CoreValues, ", "))
	}
	if pl.CurrentIdentity.Motivation != "" {
		fmt.Fprintf(&b, " Wants: %s.", pl.CurrentIdentity.Motivation)
	}
	if pl.CurrentIdentity.Fear != "" {
		fmt.Fprintf(&b, " Fears: %s.", pl.CurrentIdentity.Fear)
	}
	fmt.Fprintf(&b, "\nHP %.0f/%.0f, stability %.0f, coherence %.0f, instability %.0f, notoriety %.0f, alignment %.0f.",
		pl.HP, pl.HPMax, pl.Stability, pl.IdentityCoherence, pl.Instability, pl.Notoriety, pl.Alignment)
	if pl.LatentIdentity.DriftDirection != "" {
		fmt.Fprintf(&b, "\nDrifting toward: %s.", pl.LatentIdentity.DriftDirection)
	}
	if len(pl.Scars) > 0 {
		fmt.Fprintf(&b, "\nScars: %d.", len(pl.Scars))
	}
	return b.String()
}

func parsedBlock(pi *ParsedInput) string {
	if pi == nil {
		return ""
	}
	out := fmt.Sprintf("%s: %s", pi.ActionCategory, pi.PlayerIntent)
	if pi.SkillReference != "" {
		out += " (invokes " + pi.SkillReference + ")"
	}
	return out
}

func fateBlock(s State) string {
	var lines []string
	if s.CRNGEvent != nil && s.CRNGEvent.Triggered {
		lines = append(lines, fmt.Sprintf("A %s event happens this chapter: %s", s.CRNGEvent.EventType, s.CRNGEvent.Details))
	}
	if s.FateInstruction != "" {
		lines = append(lines, s.FateInstruction)
	}
	return strings.Join(lines, "\n")
}

func (p *Pipeline) worldBlock(s State) string {
	if s.World == nil {
		return ""
	}
	return s.World.Context(p.registry)
}

func ledgerBlock(s State) string {
	if s.Ledger == nil {
		return ""
	}
	return s.Ledger.Context()
}
