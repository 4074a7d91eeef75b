package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/amoisekai/engine/pkg/player"
	"github.com/amoisekai/engine/pkg/prompts"
	"github.com/amoisekai/engine/pkg/skill"
	"github.com/amoisekai/engine/pkg/soulforge"
)

// ForgeInput is what the forge sees of a finished soul forge session.
type ForgeInput struct {
	Name        string
	Backstory   string
	Signals     soulforge.IdentitySignals
	Fingerprint soulforge.BehavioralFingerprint
	Fragment    string
	Directive   string
}

// Forged is one forge reply: the skill plus the archetype and DNA the
// model read from the soul.
type Forged struct {
	skill.UniqueSkill
	Archetype   player.Archetype `json:"archetype"`
	DNAAffinity []player.DNATag  `json:"dna_affinity"`
}

// ForgeSkill asks the model for one unique skill candidate. The caller
// owns uniqueness checks and retries.
func (p *Pipeline) ForgeSkill(ctx context.Context, in ForgeInput) (Forged, error) {
	b := prompts.New("").
		WithSection("Soul", in.Name).
		WithSection("Backstory", in.Backstory).
		WithSection("Identity signals", signalsBlock(in.Signals)).
		WithSection("Behavioural fingerprint", fingerprintBlock(in.Fingerprint)).
		WithSection("Soul fragment", in.Fragment).
		WithSection("Constraints", in.Directive).
		WithFooter("Forge the unique skill.")

	categories := make([]string, len(skill.Categories))
	for i, c := range skill.Categories {
		categories[i] = string(c)
	}
	weaknesses := make([]string, len(skill.WeaknessTypes))
	for i, w := range skill.WeaknessTypes {
		weaknesses[i] = string(w)
	}

	var f Forged
	err := p.completeJSON(ctx, NodeForge, prompts.Forge,
		map[string]any{"Categories": categories, "WeaknessTypes": weaknesses},
		b, &f, []string{"name", "category", "mechanic", "weakness", "weakness_type", "domain_passive_name"},
		chatCreative()...)
	if err != nil {
		return Forged{}, err
	}
	f.Name = strings.TrimSpace(f.Name)
	f.Category = skill.Category(strings.ToLower(strings.TrimSpace(string(f.Category))))
	f.WeaknessType = skill.WeaknessType(strings.ToLower(strings.TrimSpace(string(f.WeaknessType))))
	if err := soulforge.ValidateForged(&f.UniqueSkill); err != nil {
		return Forged{}, fmt.Errorf("%s: %w", NodeForge, err)
	}
	if !f.Archetype.Valid() {
		f.Archetype = ""
	}
	dna := f.DNAAffinity[:0:0]
	for _, d := range f.DNAAffinity {
		if d.Valid() && len(dna) < 3 {
			dna = append(dna, d)
		}
	}
	f.DNAAffinity = dna
	return f, nil
}

func signalsBlock(s soulforge.IdentitySignals) string {
	pairs := []struct{ k, v string }{
		{"void anchor", string(s.VoidAnchor)},
		{"moral core", s.MoralCore},
		{"attachment", s.AttachmentStyle},
		{"decisions", s.DecisionPattern},
		{"conflict", s.ConflictResponse},
		{"risk", s.RiskTolerance},
		{"power or connection", s.PowerVsConnection},
		{"sacrifice", s.SacrificeType},
		{"courage or cleverness", s.CourageVsCleverness},
	}
	var b strings.Builder
	for _, kv := range pairs {
		if kv.v != "" {
			fmt.Fprintf(&b, "%s: %s\n", kv.k, kv.v)
		}
	}
	return b.String()
}

func fingerprintBlock(fp soulforge.BehavioralFingerprint) string {
	var b strings.Builder
	for _, t := range fp.Traits() {
		fmt.Fprintf(&b, "%s: %.2f\n", t.Name, t.Value)
	}
	return b.String()
}
