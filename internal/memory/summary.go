// Package memory keeps the three long-lived memory layers of a story: the
// rolling summary, the embedding-backed story brain and the entity ledger.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/amoisekai/engine/pkg/chat"
	"github.com/amoisekai/engine/pkg/prompts"
	"github.com/amoisekai/engine/pkg/story"
	"github.com/amoisekai/engine/pkg/textfilter"
)

// RollingSummary joins the story's persisted chapter summaries, newest last,
// and trims the oldest ones first so the result fits in maxChars.
func RollingSummary(s *story.Story, maxChars int) string {
	if s == nil || len(s.RecentSummaries) == 0 {
		return ""
	}
	first := s.ChapterCount - len(s.RecentSummaries) + 1
	lines := make([]string, 0, len(s.RecentSummaries))
	for i, sum := range s.RecentSummaries {
		if strings.TrimSpace(sum) == "" {
			continue
		}
		lines = append(lines, fmt.Sprintf("Chapter %d: %s", max(first+i, 1), strings.TrimSpace(sum)))
	}
	for len(lines) > 1 && maxChars > 0 && len(strings.Join(lines, "\n")) > maxChars {
		lines = lines[1:]
	}
	out := strings.Join(lines, "\n")
	if maxChars > 0 && len(out) > maxChars {
		out = textfilter.Truncate(out, maxChars)
	}
	return out
}

// Summarizer turns chapter prose into a short summary.
type Summarizer struct {
	gen    chat.Generator
	lib    *prompts.Library
	logger *slog.Logger
}

func NewSummarizer(gen chat.Generator, lib *prompts.Library, logger *slog.Logger) *Summarizer {
	return &Summarizer{gen: gen, lib: lib, logger: logger}
}

// Summarize asks the backend model for a summary and falls back to the
// opening sentences of the prose.
func (s *Summarizer) Summarize(ctx context.Context, chapter int, prose string) string {
	prose = strings.TrimSpace(prose)
	if prose == "" {
		return ""
	}
	if s.gen != nil && s.lib != nil {
		system, err := s.lib.Render(prompts.Summary, nil)
		if err == nil {
			msgs, err := prompts.New(system).
				WithSectionf("Chapter", "%d", chapter).
				WithSection("Prose", prose).
				Build()
			if err == nil {
				resp, err := s.gen.Chat(ctx, msgs, chat.WithBackendModel(), chat.WithTemperature(0.3), chat.WithMaxTokens(300), chat.WithNode("summary"))
				if err == nil && strings.TrimSpace(resp.Message) != "" {
					return textfilter.CleanProse(resp.Message)
				}
				s.logger.Warn("Summary generation failed, using leading sentences", "chapter", chapter, "error", err)
			}
		}
	}
	return FallbackSummary(prose, 3)
}

// FallbackSummary keeps the first n sentences of prose.
func FallbackSummary(prose string, n int) string {
	var out strings.Builder
	count := 0
	for _, r := range prose {
		out.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			count++
			if count >= n {
				break
			}
		}
	}
	return textfilter.Truncate(strings.Join(strings.Fields(out.String()), " "), 600)
}
