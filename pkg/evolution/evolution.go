// Package evolution implements the refine, mutate, integrate and awaken
// state machine for a player's normal skills. Every function is pure over
// the player it is given; the orchestrator passes snapshots.
package evolution

import (
	"errors"
	"slices"
	"sort"

	"github.com/amoisekai/engine/pkg/player"
	"github.com/amoisekai/engine/pkg/principle"
	"github.com/amoisekai/engine/pkg/skill"
)

type EventType string

const (
	EventRefinement  EventType = "refinement"
	EventMutation    EventType = "mutation"
	EventIntegration EventType = "integration"
	EventAwakening   EventType = "awakening"
)

// Event is a triggered evolution.
type Event struct {
	Type         EventType `json:"type"`
	SkillID      string    `json:"skill_id"`
	Chapter      int       `json:"chapter"`
	MutationType string    `json:"mutation_type,omitempty"`
	Details      string    `json:"details,omitempty"`
}

// Limits.
const (
	RefineUses          = 8
	RefineResonance     = 0.6
	MaxRefinements      = 2
	MaxMutations        = 3
	MaxIntegrations     = 2
	IntegrationUses     = 5
	MutationCoherence   = 30.0
	MutationInstability = 70.0
	MutationMisalign    = 0.6
)

var (
	ErrSkillNotFound         = errors.New("skill not found")
	ErrRefinementLimit       = errors.New("refinement limit reached")
	ErrNoMutation            = errors.New("no mutation in progress")
	ErrInvalidChoice         = errors.New("invalid mutation choice")
	ErrArcOutOfOrder         = errors.New("mutation arc scene out of order")
	ErrNotRestScene          = errors.New("integration is only possible at rest")
	ErrRankTooLow            = errors.New("resonance mastery rank too low")
	ErrIntegrationLimit      = errors.New("integration limit reached")
	ErrPairAlreadyIntegrated = errors.New("principle pair already integrated")
	ErrNotIntegrable         = errors.New("skills cannot be integrated")
	ErrEvolutionThisChapter  = errors.New("an evolution already happened this chapter")
)

// CheckSkillEvolution looks for at most one non-awakening evolution for
// chapter. A returned event is recorded against the chapter, so a second
// call in the same chapter returns nil. Mutation is checked before
// refinement; a triggered mutation starts its arc.
func CheckSkillEvolution(p *player.Player, chapter int) *Event {
	st := &p.SkillEvolution
	if st.LastEvolutionChapter == chapter && chapter > 0 {
		return nil
	}
	if st.MutationInProgress != "" {
		return nil
	}
	if id := MutationCandidate(p); id != "" {
		StartMutation(p, id, chapter)
		st.LastEvolutionChapter = chapter
		return &Event{
			Type:         EventMutation,
			SkillID:      id,
			Chapter:      chapter,
			MutationType: string(DetermineMutationType(p)),
			Details:      "the skill begins to misfire",
		}
	}
	if id := RefinementCandidate(p); id != "" {
		st.LastEvolutionChapter = chapter
		return &Event{Type: EventRefinement, SkillID: id, Chapter: chapter, Details: "ready to refine"}
	}
	return nil
}

// RefinementCandidate returns the first tracked skill that qualifies for
// refinement, or "".
func RefinementCandidate(p *player.Player) string {
	st := &p.SkillEvolution
	if len(st.RefinementsDone) >= MaxRefinements {
		return ""
	}
	ids := make([]string, 0, len(st.RefinementTrackers))
	for id := range st.RefinementTrackers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if st.RefinementTrackers[id] < RefineUses || slices.Contains(st.RefinementsDone, id) {
			continue
		}
		prim, refined, ok := skillPrimary(p, id)
		if !ok || refined {
			continue
		}
		if p.Resonance.Get(prim) >= RefineResonance {
			return id
		}
	}
	return ""
}

// ApplyRefinement marks id refined and loosens its limitation. Applying
// twice is a no-op.
func ApplyRefinement(p *player.Player, id string) error {
	st := &p.SkillEvolution
	if slices.Contains(st.RefinementsDone, id) {
		return nil
	}
	if len(st.RefinementsDone) >= MaxRefinements {
		return ErrRefinementLimit
	}
	s := p.OwnedSkill(id)
	if s == nil {
		return ErrSkillNotFound
	}
	s.Refined = true
	s.Limitation = LoosenedLimitation(s.Limitation)
	st.RefinementsDone = append(st.RefinementsDone, id)
	return nil
}

// LoosenedLimitation rewrites a limitation after refinement.
func LoosenedLimitation(lim string) string {
	if lim == "" {
		return "Refined: the technique no longer strains its user."
	}
	return "Refined: " + lim + " The constraint now bends once per scene without penalty."
}

func skillPrimary(p *player.Player, id string) (prim principle.Principle, refined bool, ok bool) {
	if s := p.OwnedSkill(id); s != nil {
		return s.Principle, s.Refined, true
	}
	if sk, found := skill.MustCatalog().Get(id); found {
		return sk.Principle, false, true
	}
	return "", false, false
}
