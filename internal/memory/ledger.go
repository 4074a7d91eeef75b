package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/amoisekai/engine/pkg/chat"
	"github.com/amoisekai/engine/pkg/ledger"
	"github.com/amoisekai/engine/pkg/llmjson"
	"github.com/amoisekai/engine/pkg/prompts"
	"github.com/amoisekai/engine/pkg/storage"
)

// LedgerExtractor pulls named entities and facts out of chapter prose and
// merges them into the persisted ledger.
type LedgerExtractor struct {
	gen    chat.Generator
	lib    *prompts.Library
	store  storage.WorldStore
	logger *slog.Logger
}

func NewLedgerExtractor(gen chat.Generator, lib *prompts.Library, store storage.WorldStore, logger *slog.Logger) *LedgerExtractor {
	return &LedgerExtractor{gen: gen, lib: lib, store: store, logger: logger}
}

// Extract runs the model, or the capitalised-name heuristic when it fails.
func (x *LedgerExtractor) Extract(ctx context.Context, prose string) ledger.Extraction {
	system, err := x.lib.Render(prompts.Ledger, nil)
	if err == nil {
		var msgs []chat.ChatMessage
		msgs, err = prompts.New(system).WithSection("Chapter", prose).Build()
		if err == nil {
			var resp *chat.ChatResponse
			resp, err = x.gen.Chat(ctx, msgs, chat.WithBackendModel(), chat.WithJSON(), chat.WithTemperature(0.1), chat.WithNode("ledger"))
			if err == nil {
				var ex ledger.Extraction
				if _, err = llmjson.Decode(resp.Message, &ex, "entities", "facts"); err == nil && len(ex.Entities)+len(ex.Facts) > 0 {
					return ex
				}
			}
		}
	}
	x.logger.Debug("Ledger extraction fell back to heuristic", "error", err)
	return HeuristicExtraction(prose)
}

// Update extracts from prose and merges the result for one chapter.
func (x *LedgerExtractor) Update(ctx context.Context, storyID string, chapter int, prose string) (int, error) {
	l, err := x.store.GetLedger(ctx, storyID)
	if errors.Is(err, storage.ErrNotFound) {
		l, err = ledger.New(storyID), nil
	}
	if err != nil {
		return 0, fmt.Errorf("load ledger: %w", err)
	}
	added := l.Merge(chapter, x.Extract(ctx, prose))
	if err := x.store.SaveLedger(ctx, l); err != nil {
		return 0, fmt.Errorf("save ledger: %w", err)
	}
	return added, nil
}

var properName = regexp.MustCompile(`\b\p{Lu}[\p{Ll}']+(?:\s+\p{Lu}[\p{Ll}']+)*`)

var commonCapitals = map[string]bool{
	"The":  true, "A": true, "An": true, "He": true, "She": true, "They": true,
	"It":   true, "His": true, "Her": true, "Their": true, "But": true, "And": true,
	"When": true, "Then": true, "There": true, "This": true, "That": true, "You": true,
	"In":   true, "On": true, "At": true, "If": true, "For": true, "With": true, "Not": true,
}

// HeuristicExtraction collects capitalised names that appear at least twice
// and do not open a sentence only.
func HeuristicExtraction(prose string) ledger.Extraction {
	counts := map[string]int{}
	var order []string
	for _, m := range properName.FindAllString(prose, -1) {
		words := strings.Fields(m)
		for len(words) > 0 && commonCapitals[words[0]] {
			words = words[1:]
		}
		if len(words) == 0 {
			continue
		}
		name := strings.Join(words, " ")
		if counts[name] == 0 {
			order = append(order, name)
		}
		counts[name]++
	}
	var ex ledger.Extraction
	for _, name := range order {
		if counts[name] < 2 {
			continue
		}
		ex.Entities = append(ex.Entities, ledger.Entity{Name: name, Kind: ledger.KindOther})
	}
	return ex
}
