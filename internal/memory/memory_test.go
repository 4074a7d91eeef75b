package memory

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amoisekai/engine/internal/services"
	"github.com/amoisekai/engine/pkg/prompts"
	"github.com/amoisekai/engine/pkg/storage"
	"github.com/amoisekai/engine/pkg/story"
)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func library(t *testing.T) *prompts.Library {
	t.Helper()
	lib, err := prompts.Default()
	require.NoError(t, err)
	return lib
}

func TestRollingSummaryKeepsNewest(t *testing.T) {
	s := &story.Story{
		ChapterCount:    7,
		RecentSummaries: []string{"old news", "the bridge fell", "Kael swore the oath"},
	}
	got := RollingSummary(s, 0)
	assert.Equal(t, "Chapter 5: old news\nChapter 6: the bridge fell\nChapter 7: Kael swore the oath", got)

	got = RollingSummary(s, 60)
	assert.NotContains(t, got, "old news")
	assert.True(t, strings.HasSuffix(got, "Chapter 7: Kael swore the oath"))
	assert.LessOrEqual(t, len(got), 60)

	assert.Empty(t, RollingSummary(&story.Story{}, 100))
	assert.Empty(t, RollingSummary(nil, 100))
}

func TestFallbackSummary(t *testing.T) {
	got := FallbackSummary("One. Two!  Three?\nFour.", 3)
	assert.Equal(t, "One. Two! Three?", got)
}

func TestSummarizerFallsBackOnError(t *testing.T) {
	llm := services.NewMockLLMAPI()
	llm.SetChatError(errors.New("timeout"))
	s := NewSummarizer(llm, library(t), discard())

	got := s.Summarize(context.Background(), 2, "The gate opened. Ash fell. Nobody spoke. Then the horn.")
	assert.Equal(t, "The gate opened. Ash fell. Nobody spoke.", got)

	llm = services.NewMockLLMAPI()
	llm.SetResponse("summary", "  The gate opened and Kael walked through.  ")
	s = NewSummarizer(llm, library(t), discard())
	got = s.Summarize(context.Background(), 2, "The gate opened.")
	assert.Equal(t, "The gate opened and Kael walked through.", got)
}

func TestChunk(t *testing.T) {
	text := strings.Repeat("word ", 240) + "\n\n" + "tail end"
	chunks := Chunk(text, 100)
	require.Len(t, chunks, 3)
	assert.Len(t, strings.Fields(chunks[0]), 100)
	assert.True(t, strings.HasSuffix(chunks[2], "tail end"))
	assert.Empty(t, Chunk("   ", 100))
}

func TestBrainRememberAndQuery(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMockStorage()
	brain := NewBrain(store, services.HashEmbedder{}, nil, discard())

	_, err := brain.Remember(ctx, "s1", 1, "", "The violet tower hums above the drowned city of Velmar.")
	require.NoError(t, err)
	_, err = brain.Remember(ctx, "s1", 2, "", "Kael traded his name to the ferryman for passage across the river.")
	require.NoError(t, err)
	_, err = brain.Remember(ctx, "other", 1, "", "The violet tower belongs to another story.")
	require.NoError(t, err)

	got, err := brain.QueryContext(ctx, "s1", "what did the ferryman take from Kael", 200)
	require.NoError(t, err)
	lines := strings.Split(got, "\n")
	require.NotEmpty(t, lines)
	assert.Contains(t, lines[0], "[Chapter 2]")
	assert.NotContains(t, got, "another story")

	got, err = brain.QueryContext(ctx, "s1", "ferryman", 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestBrainQueryRespectsBudget(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMockStorage()
	brain := NewBrain(store, services.HashEmbedder{}, services.EstimatingTokenizer(), discard())
	for i := 0; i < 5; i++ {
		_, err := brain.Remember(ctx, "s1", i+1, "", strings.Repeat("ferryman river toll ", 20))
		require.NoError(t, err)
	}

	got, err := brain.QueryContext(ctx, "s1", "ferryman toll", 60)
	require.NoError(t, err)
	assert.LessOrEqual(t, services.EstimatingTokenizer().Count(got), 60+2)
}

func TestLedgerExtractorUsesModelThenHeuristic(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMockStorage()
	llm := services.NewMockLLMAPI()
	llm.SetResponse("ledger", "```json\n{\"entities\":[{\"name\":\"Nyxara\",\"kind\":\"villain\"}],\"facts\":[\"The tower is sealed\"]}\n```")
	x := NewLedgerExtractor(llm, library(t), store, discard())

	n, err := x.Update(ctx, "s1", 3, "Nyxara watched.")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	l, err := store.GetLedger(ctx, "s1")
	require.NoError(t, err)
	e, ok := l.Lookup("Nyxara")
	require.True(t, ok)
	assert.Equal(t, 3, e.FirstSeenChapter)
	require.Len(t, l.Facts, 1)

	llm.SetChatError(errors.New("down"))
	n, err = x.Update(ctx, "s1", 4, "Then Orrin Vale came. Orrin Vale smiled at Nyxara. The end.")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	l, err = store.GetLedger(ctx, "s1")
	require.NoError(t, err)
	_, ok = l.Lookup("Orrin Vale")
	assert.True(t, ok)
}

func TestHeuristicExtraction(t *testing.T) {
	ex := HeuristicExtraction("The Ashen Gate creaked. Mira ran. Mira stopped at The Ashen Gate. She waited.")
	names := map[string]bool{}
	for _, e := range ex.Entities {
		names[e.Name] = true
	}
	assert.True(t, names["Ashen Gate"])
	assert.True(t, names["Mira"])
	assert.False(t, names["She"])
	assert.Len(t, ex.Entities, 2)
}

func TestLayersPersist(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMockStorage()
	llm := services.NewMockLLMAPI()
	llm.SetChatError(errors.New("down"))
	layers := NewLayers(
		NewBrain(store, services.HashEmbedder{}, nil, discard()),
		NewLedgerExtractor(llm, library(t), store, discard()),
		store, discard(),
	)
	snap := Snapshot{StoryID: "s1", Chapter: 1, Title: "Ash", Summary: "Kael arrived.", Prose: "Kael arrived. Kael looked up."}

	layers.RecordWorld(ctx, snap)
	ws, err := store.GetWorld(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, ws.NarrativeEvents, 1)
	assert.Equal(t, "Ch1: Kael arrived.", ws.NarrativeEvents[0])

	layers.PersistAsync(snap)
	layers.Wait()
	mems, err := store.ListMemories(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, mems, 1)
	assert.True(t, strings.HasPrefix(mems[0].Text, "Ash: "))
	l, err := store.GetLedger(ctx, "s1")
	require.NoError(t, err)
	_, ok := l.Lookup("Kael")
	assert.True(t, ok)
}

func TestLayersSwallowWorldErrors(t *testing.T) {
	store := storage.NewMockStorage()
	store.SetWriteError(errors.New("disk full"))
	layers := NewLayers(nil, nil, store, discard())
	layers.RecordWorld(context.Background(), Snapshot{StoryID: "s1", Chapter: 1, Events: []string{"x"}})
}
