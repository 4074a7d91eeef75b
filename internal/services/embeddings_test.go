package services

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	servicesmock "github.com/amoisekai/engine/internal/services/mock"
	"github.com/amoisekai/engine/pkg/soulforge"
)

func TestHashVector(t *testing.T) {
	a := HashVector("The ashen blade remembers its oath")
	b := HashVector("The ashen blade remembers its oath")
	c := HashVector("A tide of violet stars swallowed the tower")

	require.Len(t, a, HashDimensions)
	assert.Equal(t, a, b)

	var norm float64
	for _, x := range a {
		norm += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-5)

	assert.Greater(t, soulforge.Cosine(a, b), soulforge.Cosine(a, c))

	empty := HashVector("   ")
	assert.Equal(t, float32(1), empty[0])
}

func TestFallbackEmbedder(t *testing.T) {
	ctrl := gomock.NewController(t)
	primary := servicesmock.NewMockEmbedder(ctrl)
	ctx := context.Background()

	primary.EXPECT().Embed(ctx, "ok").Return([]float32{1, 0}, nil)
	primary.EXPECT().Embed(ctx, "down").Return(nil, errors.New("provider down"))

	f := NewFallbackEmbedder(primary, discardLogger(), nil)

	vec, err := f.Embed(ctx, "ok")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0}, vec)

	vec, err = f.Embed(ctx, "down")
	require.NoError(t, err)
	assert.Equal(t, HashVector("down"), vec)
}

func TestCachedEmbedder(t *testing.T) {
	ctrl := gomock.NewController(t)
	next := servicesmock.NewMockEmbedder(ctrl)
	cache := NewMockCache()
	ctx := context.Background()

	next.EXPECT().Embed(gomock.Any(), "relic").Return([]float32{0.6, 0.8}, nil).Times(1)

	c := NewCachedEmbedder(next, cache, "emb", 0, discardLogger())
	first, err := c.Embed(ctx, "relic")
	require.NoError(t, err)
	second, err := c.Embed(ctx, "relic")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, cache.SetCalls, 1)
}

func TestCachedEmbedderPropagatesErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	next := servicesmock.NewMockEmbedder(ctrl)
	next.EXPECT().Embed(gomock.Any(), gomock.Any()).Return(nil, errors.New("nope"))

	c := NewCachedEmbedder(next, NewMockCache(), "emb", 0, discardLogger())
	_, err := c.Embed(context.Background(), "x")
	assert.Error(t, err)
}

func TestNewEmbedder(t *testing.T) {
	e, err := NewEmbedder(EmbedderSettings{Provider: "hash"}, nil, discardLogger(), nil)
	require.NoError(t, err)
	assert.IsType(t, HashEmbedder{}, e)

	e, err = NewEmbedder(EmbedderSettings{Provider: "openai", Model: "m"}, NewMockCache(), discardLogger(), nil)
	require.NoError(t, err)
	assert.IsType(t, &FallbackEmbedder{}, e)

	_, err = NewEmbedder(EmbedderSettings{Provider: "carrier-pigeon"}, nil, discardLogger(), nil)
	assert.Error(t, err)
}
