package evolution

import (
	"fmt"

	"github.com/amoisekai/engine/pkg/player"
	"github.com/amoisekai/engine/pkg/principle"
	"github.com/amoisekai/engine/pkg/skill"
)

type MutationType string

const (
	MutationCorruption    MutationType = "corruption"
	MutationPurification  MutationType = "purification"
	MutationHybridization MutationType = "hybridization"
	MutationInversion     MutationType = "inversion"
)

type MutationChoice string

const (
	ChoiceAccept MutationChoice = "accept"
	ChoiceResist MutationChoice = "resist"
	ChoiceHybrid MutationChoice = "hybrid"
)

// ParseMutationChoice validates a caller-supplied choice.
func ParseMutationChoice(s string) (MutationChoice, error) {
	switch c := MutationChoice(s); c {
	case ChoiceAccept, ChoiceResist, ChoiceHybrid:
		return c, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidChoice, s)
}

// Arc scene numbers.
const (
	ArcDiscovery  = 1
	ArcDecision   = 2
	ArcResolution = 3
)

// MutationCandidate returns the equipped normal skill most out of tune
// with the player's resonance when every mutation gate holds, or "".
func MutationCandidate(p *player.Player) string {
	st := &p.SkillEvolution
	if st.MutationsDone >= MaxMutations || st.MutationInProgress != "" {
		return ""
	}
	if p.IdentityCoherence >= MutationCoherence || p.Instability <= MutationInstability {
		return ""
	}
	if p.UniqueSkillGrowth.MutationLocked {
		return ""
	}
	if p.UniqueSkill != nil && p.UniqueSkill.CurrentStage.AtLeast(skill.StageAspect) {
		return ""
	}
	best, worst := "", MutationMisalign
	for _, s := range p.Equipped() {
		if s.Mutated || s.Absorbed {
			continue
		}
		if mis := 1 - p.Resonance.Get(s.Principle); mis > worst {
			best, worst = s.ID, mis
		}
	}
	return best
}

// DetermineMutationType picks the kind of mutation from the player's state.
func DetermineMutationType(p *player.Player) MutationType {
	switch {
	case p.Instability > 85:
		return MutationCorruption
	case p.EchoTrace > 60 && p.IdentityCoherence < 30:
		return MutationPurification
	case p.LatentIdentity.DriftDirection != "":
		return MutationHybridization
	default:
		return MutationInversion
	}
}

// StartMutation opens the three-scene arc for id.
func StartMutation(p *player.Player, id string, chapter int) {
	st := &p.SkillEvolution
	st.MutationInProgress = id
	st.MutationArcScene = ArcDiscovery
	st.MutationStartedChapter = chapter
}

// ArcChoice is one option at the decision scene.
type ArcChoice struct {
	Choice MutationChoice `json:"choice"`
	Text   string         `json:"text"`
	Hint   string         `json:"hint"`
}

// ArcInfo tells the writer which arc scene is being played.
type ArcInfo struct {
	SkillID      string       `json:"skill_id"`
	Scene        int          `json:"scene"`
	Phase        string       `json:"phase"`
	MutationType MutationType `json:"mutation_type"`
	Choices      []ArcChoice  `json:"choices,omitempty"`
}

// AdvanceMutationArc moves the arc to scene and describes it. Scene 2
// offers exactly the accept, resist and hybrid choices.
func AdvanceMutationArc(p *player.Player, scene int) (*ArcInfo, error) {
	st := &p.SkillEvolution
	if st.MutationInProgress == "" {
		return nil, ErrNoMutation
	}
	if scene < ArcDiscovery || scene > ArcResolution || scene < st.MutationArcScene {
		return nil, fmt.Errorf("%w: scene %d after %d", ErrArcOutOfOrder, scene, st.MutationArcScene)
	}
	st.MutationArcScene = scene
	info := &ArcInfo{SkillID: st.MutationInProgress, Scene: scene, MutationType: DetermineMutationType(p)}
	name := st.MutationInProgress
	if s := p.OwnedSkill(name); s != nil {
		name = s.Name()
	}
	switch scene {
	case ArcDiscovery:
		info.Phase = "discovery"
	case ArcDecision:
		info.Phase = "decision"
		info.Choices = []ArcChoice{
			{Choice: ChoiceAccept, Text: fmt.Sprintf("Let %s become something new.", name), Hint: "The skill transforms."},
			{Choice: ChoiceResist, Text: fmt.Sprintf("Hold %s to its old shape.", name), Hint: "Instability eases, the self steadies."},
			{Choice: ChoiceHybrid, Text: fmt.Sprintf("Bind the change to %s without surrendering it.", name), Hint: "A partial change at a steep cost."},
		}
	case ArcResolution:
		info.Phase = "resolution"
	}
	return info, nil
}

// ChoiceOutcome is the result of the decision scene.
type ChoiceOutcome struct {
	Choice          MutationChoice `json:"choice"`
	NeedsResolution bool           `json:"needs_resolution"`
	Hybrid          bool           `json:"hybrid"`
	Forced          bool           `json:"forced"`
}

// SubmitMutationChoice applies the player's decision.
func SubmitMutationChoice(p *player.Player, choice MutationChoice) (*ChoiceOutcome, error) {
	st := &p.SkillEvolution
	if st.MutationInProgress == "" {
		return nil, ErrNoMutation
	}
	out := &ChoiceOutcome{Choice: choice}
	switch choice {
	case ChoiceResist:
		p.Instability -= 20
		p.IdentityCoherence += 10
		clearMutation(st)
	case ChoiceAccept:
		out.NeedsResolution = true
		st.MutationArcScene = ArcResolution
	case ChoiceHybrid:
		out.NeedsResolution = true
		st.MutationArcScene = ArcResolution
		if p.Instability+15 > 100 {
			out.Forced = true
		} else {
			p.Instability += 15
			out.Hybrid = true
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidChoice, choice)
	}
	p.Clamp()
	return out, nil
}

// GeneratedSkill is narrator-written text for an evolved skill.
type GeneratedSkill struct {
	Name       string `json:"name"`
	Mechanic   string `json:"mechanic"`
	Limitation string `json:"limitation"`
	Weakness   string `json:"weakness"`
}

// FallbackMutation produces deterministic text when generation fails.
func FallbackMutation(original string, mt MutationType) GeneratedSkill {
	return GeneratedSkill{
		Name:       fmt.Sprintf("%s (%s)", original, mt),
		Mechanic:   fmt.Sprintf("The technique answers with a %s edge, stronger and less predictable.", mt),
		Limitation: "Cannot be used twice in a row.",
		Weakness:   "Each use leaves a tremor in the user's resolve.",
	}
}

// ApplyMutation rewrites the skill in place and closes the arc.
func ApplyMutation(p *player.Player, m GeneratedSkill, out *ChoiceOutcome) error {
	st := &p.SkillEvolution
	if st.MutationInProgress == "" {
		return ErrNoMutation
	}
	s := p.OwnedSkill(st.MutationInProgress)
	if s == nil {
		clearMutation(st)
		return ErrSkillNotFound
	}
	mt := DetermineMutationType(p)
	if m.Name != "" {
		s.Skin.DisplayName = m.Name
	}
	if m.Mechanic != "" {
		s.Mechanic = m.Mechanic
	}
	if m.Limitation != "" {
		s.Limitation = m.Limitation
	}
	if m.Weakness != "" {
		s.Weakness = m.Weakness
	}
	hybrid := out != nil && out.Hybrid
	if !hybrid {
		switch mt {
		case MutationInversion:
			s.Principle = s.Principle.Opposite()
		case MutationCorruption:
			if s.Principle != principle.Entropy {
				s.SecondaryPrinciple = principle.Entropy
			}
		case MutationPurification:
			s.SecondaryPrinciple = ""
			s.TertiaryPrinciple = ""
		case MutationHybridization:
			if dom, _ := p.Resonance.Dominant(); dom != s.Principle {
				s.SecondaryPrinciple = dom
			}
		}
	}
	s.Mutated = true
	s.MutationType = string(mt)
	if hybrid {
		s.MutationType = "hybrid_" + string(mt)
	}
	st.MutationsDone++
	clearMutation(st)
	return nil
}

func clearMutation(st *skill.SkillEvolutionState) {
	st.MutationInProgress = ""
	st.MutationArcScene = 0
	st.MutationStartedChapter = 0
}
