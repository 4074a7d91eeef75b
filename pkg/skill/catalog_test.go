package skill

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amoisekai/engine/pkg/principle"
)

func TestDefaultCatalog(t *testing.T) {
	c, err := DefaultCatalog()
	require.NoError(t, err)
	assert.Equal(t, 72, c.Len())
	assert.NoError(t, c.Validate())

	sk, ok := c.Get("matter_def_01")
	require.True(t, ok)
	assert.Equal(t, "Matter Shield", sk.CatalogName)
	assert.Equal(t, ArchetypeDefensive, sk.Archetype)
	assert.Equal(t, 1, sk.Tier)

	for _, id := range []string{"energy_off_01", "order_def_01", "void_spc_03"} {
		_, ok := c.Get(id)
		assert.True(t, ok, id)
	}
}

func TestParseCatalogRejectsMismatchedPrinciple(t *testing.T) {
	doc := []byte(`
skeletons:
  - id: void_off_01
    name: Wrong
    principle: order
    damage: none
    delivery: self
    mechanic: m
    limitation: l
    weakness: w
`)
	_, err := ParseCatalog(doc)
	assert.Error(t, err)
}

func TestPairTemplateOrderIndependent(t *testing.T) {
	a, err := PairTemplate(principle.Energy, principle.Matter)
	require.NoError(t, err)
	b, err := PairTemplate(principle.Matter, principle.Energy)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, "Forged Star", a.BlendName)
	assert.Len(t, PairTemplates(), 21)
}

func TestSelectRewardSkipsOwned(t *testing.T) {
	c := MustCatalog()
	res := principle.NewResonance(0.1)
	res.Set(principle.Flux, 0.9)

	owned := map[string]bool{}
	for _, sk := range c.ByPrinciple(principle.Flux) {
		owned[sk.ID] = true
	}
	sk, ok := c.SelectReward(res, owned, 3)
	require.True(t, ok)
	assert.NotEqual(t, principle.Flux, sk.Principle)
}

func TestFromSkeletonFallsBackToCatalogName(t *testing.T) {
	sk, _ := MustCatalog().Get("energy_off_01")
	ps := FromSkeleton(sk, NarrativeSkin{}, 4)
	assert.Equal(t, "energy_off_01", ps.ID)
	assert.Equal(t, sk.CatalogName, ps.Name())
	assert.Equal(t, 4, ps.AcquiredChapter)
}
