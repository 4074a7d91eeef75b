// Package storage defines the persistence boundary of the engine. The Redis
// and SQLite implementations live in internal/storage; MockStorage here is
// the in-memory version used by tests and the console.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/amoisekai/engine/pkg/ledger"
	"github.com/amoisekai/engine/pkg/player"
	"github.com/amoisekai/engine/pkg/soulforge"
	"github.com/amoisekai/engine/pkg/story"
	"github.com/amoisekai/engine/pkg/world"
)

// ErrNotFound is returned (wrapped) for any missing record.
var ErrNotFound = errors.New("not found")

// IdentityEvent is one entry of a player's append-only identity log.
type IdentityEvent struct {
	PlayerID  string               `json:"player_id"`
	StoryID   string               `json:"story_id"`
	Chapter   int                  `json:"chapter"`
	Scene     int                  `json:"scene,omitempty"`
	Source    string               `json:"source"`
	Delta     player.IdentityDelta `json:"delta"`
	CreatedAt time.Time            `json:"created_at"`
}

// MemoryEntry is one chunk of the story brain.
type MemoryEntry struct {
	StoryID   string    `json:"story_id"`
	Chapter   int       `json:"chapter"`
	Text      string    `json:"text"`
	Embedding []float32 `json:"embedding,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// SkillMechanic records a forged unique skill so later forges can be
// checked for uniqueness.
type SkillMechanic struct {
	PlayerID  string    `json:"player_id"`
	Name      string    `json:"name"`
	Mechanic  string    `json:"mechanic"`
	Embedding []float32 `json:"embedding,omitempty"`
}

type StoryStore interface {
	CreateStory(ctx context.Context, s *story.Story) error
	GetStory(ctx context.Context, id string) (*story.Story, error)
	UpdateStory(ctx context.Context, s *story.Story) error

	CreateChapter(ctx context.Context, c *story.Chapter) error
	GetChapter(ctx context.Context, id string) (*story.Chapter, error)
	UpdateChapter(ctx context.Context, c *story.Chapter) error
	// ListChapters returns a story's chapters ordered by chapter number.
	ListChapters(ctx context.Context, storyID string) ([]*story.Chapter, error)

	// CreateScene fails if the chapter already has a scene with that number.
	CreateScene(ctx context.Context, s *story.Scene) error
	GetScene(ctx context.Context, chapterID string, number int) (*story.Scene, error)
	UpdateScene(ctx context.Context, s *story.Scene) error
	// SetSceneCriticScore and SetSceneChosenChoice change one field of a
	// stored scene and leave every other field as stored.
	SetSceneCriticScore(ctx context.Context, chapterID string, number int, score float64) error
	SetSceneChosenChoice(ctx context.Context, chapterID string, number int, choiceID string) error
	// ListScenes returns a chapter's scenes ordered by scene number.
	ListScenes(ctx context.Context, chapterID string) ([]*story.Scene, error)
}

type PlayerStore interface {
	CreatePlayer(ctx context.Context, p *player.Player) error
	GetPlayer(ctx context.Context, id string) (*player.Player, error)
	GetPlayerByUser(ctx context.Context, userID string) (*player.Player, error)
	UpdatePlayer(ctx context.Context, p *player.Player) error

	AppendIdentityEvent(ctx context.Context, ev IdentityEvent) error
	ListIdentityEvents(ctx context.Context, playerID string) ([]IdentityEvent, error)

	GetPlayerFlag(ctx context.Context, playerID, flag string) (bool, error)
	SetPlayerFlag(ctx context.Context, playerID, flag string, value bool) error
}

type WorldStore interface {
	GetLedger(ctx context.Context, storyID string) (*ledger.Ledger, error)
	SaveLedger(ctx context.Context, l *ledger.Ledger) error
	GetWorld(ctx context.Context, storyID string) (*world.State, error)
	SaveWorld(ctx context.Context, w *world.State) error
}

type MemoryStore interface {
	AppendMemory(ctx context.Context, m MemoryEntry) error
	ListMemories(ctx context.Context, storyID string) ([]MemoryEntry, error)
}

type ForgeStore interface {
	SaveForgeSession(ctx context.Context, s *soulforge.Session) error
	GetForgeSession(ctx context.Context, id string) (*soulforge.Session, error)
	DeleteForgeSession(ctx context.Context, id string) error

	AddSkillMechanic(ctx context.Context, m SkillMechanic) error
	ListSkillMechanics(ctx context.Context) ([]SkillMechanic, error)
}

// Storage is everything the orchestrator persists.
type Storage interface {
	Ping(ctx context.Context) error
	Close() error

	StoryStore
	PlayerStore
	WorldStore
	MemoryStore
	ForgeStore
}
