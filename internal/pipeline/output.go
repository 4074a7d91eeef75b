package pipeline

import (
	"context"

	"github.com/amoisekai/engine/internal/memory"
	"github.com/amoisekai/engine/pkg/story"
	"github.com/amoisekai/engine/pkg/weapon"
)

// weaponUpdate runs the bond pass over a copy of the equipped loadout.
// The runtime commits the copy together with the player.
func (p *Pipeline) weaponUpdate(_ context.Context, s State) (Patch, error) {
	if s.Player == nil {
		return nil, nil
	}
	loadout := s.Player.EquippedWeapons.Clone()
	in := weapon.ChapterInput{
		Chapter:        s.ChapterNumber,
		ActionCategory: s.ActionCategory(),
		ChoiceRisk:     riskOf(s),
		CombatOutcome:  s.CombatOutcome,
		Climax:         hasPurpose(planBeats(s), story.PurposeClimax),
		Used:           s.ActionCategory() == ActionCombat || s.CombatOutcome != "",
		Instability:    s.Player.Instability,
	}
	if s.IdentityDelta != nil {
		in.Instability = min(max(in.Instability+s.IdentityDelta.InstabilityChange, 0), 100)
	}
	up := weapon.ApplyChapter(&loadout, in)
	return func(st *State) {
		st.Loadout = &loadout
		st.WeaponUpdate = &up
	}, nil
}

func hasPurpose(beats []story.Beat, p story.Purpose) bool {
	for _, b := range beats {
		if b.Purpose == p {
			return true
		}
	}
	return false
}

func (p *Pipeline) output(_ context.Context, s State) (Patch, error) {
	if s.Draft == nil {
		return nil, nil
	}
	out := Output{
		Title:   s.Draft.Title,
		Prose:   s.Draft.Prose,
		Summary: s.Draft.Summary,
		Choices: s.Draft.Choices,
	}
	return func(st *State) { st.Output = &out }, nil
}

// ledgerNode records the chapter in world memory inline and hands the
// brain and ledger writes to the background.
func (p *Pipeline) ledgerNode(ctx context.Context, s State) (Patch, error) {
	if p.layers == nil || s.Output == nil || s.Story == nil {
		return nil, nil
	}
	snap := memory.Snapshot{
		StoryID: s.Story.ID,
		Chapter: s.ChapterNumber,
		Title:   s.Output.Title,
		Summary: s.Output.Summary,
		Prose:   s.Output.Prose,
	}
	if s.Consequences != nil {
		snap.Events = append(snap.Events, s.Consequences.WorldUpdates...)
	}
	if s.Plan != nil {
		snap.Events = append(snap.Events, s.Plan.WorldChanges...)
	}
	p.layers.RecordWorld(ctx, snap)
	p.layers.PersistAsync(snap)
	return nil, nil
}
