package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/amoisekai/engine/internal/services"
	"github.com/amoisekai/engine/pkg/soulforge"
	"github.com/amoisekai/engine/pkg/storage"
)

// chunkWords is the target size of one remembered passage.
const chunkWords = 120

// Brain is the semantic recall layer of a story.
type Brain struct {
	store    storage.MemoryStore
	embedder services.Embedder
	tokens   *services.Tokenizer
	logger   *slog.Logger
	now      func() time.Time
}

func NewBrain(store storage.MemoryStore, embedder services.Embedder, tokens *services.Tokenizer, logger *slog.Logger) *Brain {
	if tokens == nil {
		tokens = services.EstimatingTokenizer()
	}
	return &Brain{store: store, embedder: embedder, tokens: tokens, logger: logger, now: time.Now}
}

// Remember splits text into passages, embeds each and appends it to the
// story's memory. Label is prefixed to every passage.
func (b *Brain) Remember(ctx context.Context, storyID string, chapter int, label, text string) (int, error) {
	stored := 0
	for _, chunk := range Chunk(text, chunkWords) {
		if label != "" {
			chunk = label + ": " + chunk
		}
		vec, err := b.embedder.Embed(ctx, chunk)
		if err != nil {
			return stored, fmt.Errorf("embed memory: %w", err)
		}
		err = b.store.AppendMemory(ctx, storage.MemoryEntry{
			StoryID:   storyID,
			Chapter:   chapter,
			Text:      chunk,
			Embedding: vec,
			CreatedAt: b.now(),
		})
		if err != nil {
			return stored, fmt.Errorf("append memory: %w", err)
		}
		stored++
	}
	return stored, nil
}

type scored struct {
	entry storage.MemoryEntry
	score float64
}

// QueryContext returns the passages most similar to query, formatted as a
// context block that fits in maxTokens. Errors leave an empty block.
func (b *Brain) QueryContext(ctx context.Context, storyID, query string, maxTokens int) (string, error) {
	if strings.TrimSpace(query) == "" || maxTokens <= 0 {
		return "", nil
	}
	entries, err := b.store.ListMemories(ctx, storyID)
	if err != nil {
		return "", fmt.Errorf("list memories: %w", err)
	}
	if len(entries) == 0 {
		return "", nil
	}
	qv, err := b.embedder.Embed(ctx, query)
	if err != nil {
		return "", fmt.Errorf("embed query: %w", err)
	}

	ranked := make([]scored, 0, len(entries))
	for _, e := range entries {
		ranked = append(ranked, scored{entry: e, score: soulforge.Cosine(qv, e.Embedding)})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	var lines []string
	used := 0
	for _, r := range ranked {
		if r.score <= 0 {
			break
		}
		line := fmt.Sprintf("[Chapter %d] %s", r.entry.Chapter, r.entry.Text)
		n := b.tokens.Count(line)
		if used+n > maxTokens {
			if left := maxTokens - used; left >= 24 {
				lines = append(lines, b.tokens.Truncate(line, left))
			}
			break
		}
		lines = append(lines, line)
		used += n
	}
	return strings.Join(lines, "\n"), nil
}

// Chunk splits text on paragraph breaks and packs paragraphs into passages
// of about size words.
func Chunk(text string, size int) []string {
	var out []string
	var cur []string
	flush := func() {
		if len(cur) > 0 {
			out = append(out, strings.Join(cur, " "))
			cur = nil
		}
	}
	for _, para := range strings.Split(text, "\n") {
		words := strings.Fields(para)
		for len(words) > 0 {
			room := size - len(cur)
			if room <= 0 {
				flush()
				continue
			}
			take := min(room, len(words))
			cur = append(cur, words[:take]...)
			words = words[take:]
		}
		if len(cur) >= size/2 {
			flush()
		}
	}
	flush()
	return out
}
