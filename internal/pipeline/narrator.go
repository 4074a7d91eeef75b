package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/amoisekai/engine/pkg/prompts"
	"github.com/amoisekai/engine/pkg/skill"
)

// Skin asks the narrator for a narrative skin over a catalog skeleton.
// Mechanics come from the skeleton and are never taken from the reply.
func (p *Pipeline) Skin(ctx context.Context, sk *skill.Skeleton, protagonist, reason string) skill.NarrativeSkin {
	b := prompts.New("").
		WithSectionf("Skill", "%s (%s, %s)\nMechanic: %s\nLimitation: %s\nWeakness: %s",
			sk.CatalogName, sk.Principle, sk.Archetype, sk.Mechanic, sk.Limitation, sk.Weakness).
		WithSection("Protagonist", protagonist).
		WithSection("Why it appears now", reason).
		WithFooter("Write the narrative skin.")

	var skin skill.NarrativeSkin
	err := p.completeJSON(ctx, NodeNarrator, prompts.Narrator, nil, b, &skin,
		[]string{"display_name", "description", "discovery_line"}, chatCreative()...)
	if err == nil && strings.TrimSpace(skin.DisplayName) == "" {
		err = fmt.Errorf("narrator returned no name")
	}
	if err != nil {
		p.fallback(NodeNarrator, err)
		return skill.FallbackSkin(sk)
	}
	fb := skill.FallbackSkin(sk)
	if strings.TrimSpace(skin.Description) == "" {
		skin.Description = fb.Description
	}
	if strings.TrimSpace(skin.DiscoveryLine) == "" {
		skin.DiscoveryLine = fb.DiscoveryLine
	}
	return skin
}
