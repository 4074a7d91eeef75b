package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/amoisekai/engine/pkg/storage"
	"github.com/amoisekai/engine/pkg/textfilter"
	"github.com/amoisekai/engine/pkg/world"
)

// Snapshot is everything the end-of-chapter memory writes need. It is
// copied at spawn time so the background work never sees later state.
type Snapshot struct {
	StoryID string
	Chapter int
	Title   string
	Summary string
	Prose   string
	Events  []string
}

// Layers writes a finished chapter into every memory layer.
type Layers struct {
	Brain   *Brain
	Ledger  *LedgerExtractor
	World   storage.WorldStore
	Timeout time.Duration
	logger  *slog.Logger
	wg      sync.WaitGroup
}

func NewLayers(brain *Brain, extractor *LedgerExtractor, worldStore storage.WorldStore, logger *slog.Logger) *Layers {
	return &Layers{Brain: brain, Ledger: extractor, World: worldStore, Timeout: 2 * time.Minute, logger: logger}
}

// RecordWorld appends the chapter's events to the world's narrative log.
// It runs inline; a failure is logged and swallowed.
func (l *Layers) RecordWorld(ctx context.Context, snap Snapshot) {
	if l.World == nil {
		return
	}
	events := snap.Events
	if len(events) == 0 && snap.Summary != "" {
		events = []string{fmt.Sprintf("Ch%d: %s", snap.Chapter, textfilter.Truncate(snap.Summary, 160))}
	}
	if len(events) == 0 {
		return
	}
	ws, err := l.World.GetWorld(ctx, snap.StoryID)
	if errors.Is(err, storage.ErrNotFound) {
		ws, err = world.NewState(snap.StoryID, nil), nil
	}
	if err == nil {
		for _, e := range events {
			ws.AddEvent(e)
		}
		err = l.World.SaveWorld(ctx, ws)
	}
	if err != nil {
		l.logger.Warn("World memory update failed", "story_id", snap.StoryID, "chapter", snap.Chapter, "error", err)
	}
}

// PersistAsync stores the chapter in the story brain and the ledger on a
// background goroutine with its own timeout.
func (l *Layers) PersistAsync(snap Snapshot) {
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), l.Timeout)
		defer cancel()
		l.Persist(ctx, snap)
	}()
}

// Persist is the synchronous body of PersistAsync.
func (l *Layers) Persist(ctx context.Context, snap Snapshot) {
	log := l.logger.With("story_id", snap.StoryID, "chapter", snap.Chapter)
	if l.Brain != nil {
		text := snap.Summary
		if snap.Prose != "" {
			text = snap.Prose
		}
		if n, err := l.Brain.Remember(ctx, snap.StoryID, snap.Chapter, snap.Title, text); err != nil {
			log.Warn("Story brain write failed", "error", err, "stored", n)
		}
	}
	if l.Ledger != nil && snap.Prose != "" {
		if n, err := l.Ledger.Update(ctx, snap.StoryID, snap.Chapter, snap.Prose); err != nil {
			log.Warn("Ledger update failed", "error", err)
		} else {
			log.Debug("Ledger updated", "new_entities", n)
		}
	}
}

// Wait blocks until background writes finish.
func (l *Layers) Wait() { l.wg.Wait() }
