package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/amoisekai/engine/pkg/ledger"
	"github.com/amoisekai/engine/pkg/player"
	"github.com/amoisekai/engine/pkg/soulforge"
	"github.com/amoisekai/engine/pkg/story"
	"github.com/amoisekai/engine/pkg/world"
)

// MockStorage keeps every record in memory. Values are copied on the way
// in and out so callers never share state with the store.
type MockStorage struct {
	mu             sync.RWMutex
	stories        map[string]*story.Story
	chapters       map[string]*story.Chapter
	scenes         map[string]map[int]*story.Scene
	players        map[string]*player.Player
	ledgers        map[string]*ledger.Ledger
	worlds         map[string]*world.State
	identityEvents map[string][]IdentityEvent
	memories       map[string][]MemoryEntry
	sessions       map[string]*soulforge.Session
	mechanics      []SkillMechanic
	pingError      error
	writeError     error
}

var _ Storage = (*MockStorage)(nil)

func NewMockStorage() *MockStorage {
	return &MockStorage{
		stories:        make(map[string]*story.Story),
		chapters:       make(map[string]*story.Chapter),
		scenes:         make(map[string]map[int]*story.Scene),
		players:        make(map[string]*player.Player),
		ledgers:        make(map[string]*ledger.Ledger),
		worlds:         make(map[string]*world.State),
		identityEvents: make(map[string][]IdentityEvent),
		memories:       make(map[string][]MemoryEntry),
		sessions:       make(map[string]*soulforge.Session),
	}
}

// SetPingError configures the mock to fail on ping with err.
func (m *MockStorage) SetPingError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pingError = err
}

// SetWriteError makes every subsequent write fail with err. Pass nil to
// clear it.
func (m *MockStorage) SetWriteError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeError = err
}

func (m *MockStorage) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pingError
}

func (m *MockStorage) Close() error { return nil }

func clone[T any](v *T) *T {
	data, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("mock storage: marshal %T: %v", v, err))
	}
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		panic(fmt.Sprintf("mock storage: unmarshal %T: %v", v, err))
	}
	return &out
}

func notFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
}

// Stories, chapters and scenes

func (m *MockStorage) CreateStory(ctx context.Context, s *story.Story) error {
	if s == nil || s.ID == "" {
		return errors.New("story requires an id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeError != nil {
		return m.writeError
	}
	if _, ok := m.stories[s.ID]; ok {
		return fmt.Errorf("story %s already exists", s.ID)
	}
	m.stories[s.ID] = clone(s)
	return nil
}

func (m *MockStorage) GetStory(ctx context.Context, id string) (*story.Story, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.stories[id]
	if !ok {
		return nil, notFound("story", id)
	}
	return clone(s), nil
}

func (m *MockStorage) UpdateStory(ctx context.Context, s *story.Story) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeError != nil {
		return m.writeError
	}
	if _, ok := m.stories[s.ID]; !ok {
		return notFound("story", s.ID)
	}
	s.UpdatedAt = time.Now().UTC()
	m.stories[s.ID] = clone(s)
	return nil
}

func (m *MockStorage) CreateChapter(ctx context.Context, c *story.Chapter) error {
	if c == nil || c.ID == "" {
		return errors.New("chapter requires an id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeError != nil {
		return m.writeError
	}
	m.chapters[c.ID] = clone(c)
	return nil
}

func (m *MockStorage) GetChapter(ctx context.Context, id string) (*story.Chapter, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.chapters[id]
	if !ok {
		return nil, notFound("chapter", id)
	}
	return clone(c), nil
}

func (m *MockStorage) UpdateChapter(ctx context.Context, c *story.Chapter) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeError != nil {
		return m.writeError
	}
	if _, ok := m.chapters[c.ID]; !ok {
		return notFound("chapter", c.ID)
	}
	c.UpdatedAt = time.Now().UTC()
	m.chapters[c.ID] = clone(c)
	return nil
}

func (m *MockStorage) ListChapters(ctx context.Context, storyID string) ([]*story.Chapter, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*story.Chapter
	for _, c := range m.chapters {
		if c.StoryID == storyID {
			out = append(out, clone(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChapterNumber < out[j].ChapterNumber })
	return out, nil
}

func (m *MockStorage) CreateScene(ctx context.Context, s *story.Scene) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeError != nil {
		return m.writeError
	}
	byNum := m.scenes[s.ChapterID]
	if byNum == nil {
		byNum = map[int]*story.Scene{}
		m.scenes[s.ChapterID] = byNum
	}
	if _, ok := byNum[s.SceneNumber]; ok {
		return fmt.Errorf("chapter %s already has scene %d", s.ChapterID, s.SceneNumber)
	}
	byNum[s.SceneNumber] = clone(s)
	return nil
}

func (m *MockStorage) GetScene(ctx context.Context, chapterID string, number int) (*story.Scene, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.scenes[chapterID][number]
	if !ok {
		return nil, notFound("scene", fmt.Sprintf("%s/%d", chapterID, number))
	}
	return clone(s), nil
}

func (m *MockStorage) UpdateScene(ctx context.Context, s *story.Scene) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeError != nil {
		return m.writeError
	}
	if _, ok := m.scenes[s.ChapterID][s.SceneNumber]; !ok {
		return notFound("scene", fmt.Sprintf("%s/%d", s.ChapterID, s.SceneNumber))
	}
	m.scenes[s.ChapterID][s.SceneNumber] = clone(s)
	return nil
}

func (m *MockStorage) patchScene(chapterID string, number int, fn func(*story.Scene)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeError != nil {
		return m.writeError
	}
	s, ok := m.scenes[chapterID][number]
	if !ok {
		return notFound("scene", fmt.Sprintf("%s/%d", chapterID, number))
	}
	fn(s)
	return nil
}

func (m *MockStorage) SetSceneCriticScore(ctx context.Context, chapterID string, number int, score float64) error {
	return m.patchScene(chapterID, number, func(s *story.Scene) { s.CriticScore = score })
}

func (m *MockStorage) SetSceneChosenChoice(ctx context.Context, chapterID string, number int, choiceID string) error {
	return m.patchScene(chapterID, number, func(s *story.Scene) { s.ChosenChoiceID = choiceID })
}

func (m *MockStorage) ListScenes(ctx context.Context, chapterID string) ([]*story.Scene, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*story.Scene, 0, len(m.scenes[chapterID]))
	for _, s := range m.scenes[chapterID] {
		out = append(out, clone(s))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SceneNumber < out[j].SceneNumber })
	return out, nil
}

// Players

func (m *MockStorage) CreatePlayer(ctx context.Context, p *player.Player) error {
	if p == nil || p.ID == "" {
		return errors.New("player requires an id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeError != nil {
		return m.writeError
	}
	m.players[p.ID] = clone(p)
	return nil
}

func (m *MockStorage) GetPlayer(ctx context.Context, id string) (*player.Player, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.players[id]
	if !ok {
		return nil, notFound("player", id)
	}
	return clone(p), nil
}

func (m *MockStorage) GetPlayerByUser(ctx context.Context, userID string) (*player.Player, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.players {
		if p.UserID == userID {
			return clone(p), nil
		}
	}
	return nil, notFound("player for user", userID)
}

func (m *MockStorage) UpdatePlayer(ctx context.Context, p *player.Player) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeError != nil {
		return m.writeError
	}
	current, ok := m.players[p.ID]
	if !ok {
		return notFound("player", p.ID)
	}
	// Flags set since p was loaded survive the write.
	for k, v := range current.Flags {
		if _, ok := p.Flags[k]; !ok {
			p.SetFlag(k, v)
		}
	}
	p.UpdatedAt = time.Now().UTC()
	m.players[p.ID] = clone(p)
	return nil
}

func (m *MockStorage) AppendIdentityEvent(ctx context.Context, ev IdentityEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeError != nil {
		return m.writeError
	}
	m.identityEvents[ev.PlayerID] = append(m.identityEvents[ev.PlayerID], ev)
	return nil
}

func (m *MockStorage) ListIdentityEvents(ctx context.Context, playerID string) ([]IdentityEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.identityEvents[playerID]), nil
}

func (m *MockStorage) GetPlayerFlag(ctx context.Context, playerID, flag string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.players[playerID]
	if !ok {
		return false, notFound("player", playerID)
	}
	return p.Flags[flag], nil
}

func (m *MockStorage) SetPlayerFlag(ctx context.Context, playerID, flag string, value bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeError != nil {
		return m.writeError
	}
	p, ok := m.players[playerID]
	if !ok {
		return notFound("player", playerID)
	}
	p.SetFlag(flag, value)
	return nil
}

// World and ledger

func (m *MockStorage) GetLedger(ctx context.Context, storyID string) (*ledger.Ledger, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.ledgers[storyID]
	if !ok {
		return nil, notFound("ledger", storyID)
	}
	return clone(l), nil
}

func (m *MockStorage) SaveLedger(ctx context.Context, l *ledger.Ledger) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeError != nil {
		return m.writeError
	}
	m.ledgers[l.StoryID] = clone(l)
	return nil
}

func (m *MockStorage) GetWorld(ctx context.Context, storyID string) (*world.State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	w, ok := m.worlds[storyID]
	if !ok {
		return nil, notFound("world", storyID)
	}
	return clone(w), nil
}

func (m *MockStorage) SaveWorld(ctx context.Context, w *world.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeError != nil {
		return m.writeError
	}
	w.UpdatedAt = time.Now().UTC()
	m.worlds[w.StoryID] = clone(w)
	return nil
}

// Memory

func (m *MockStorage) AppendMemory(ctx context.Context, e MemoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeError != nil {
		return m.writeError
	}
	e.Embedding = slices.Clone(e.Embedding)
	m.memories[e.StoryID] = append(m.memories[e.StoryID], e)
	return nil
}

func (m *MockStorage) ListMemories(ctx context.Context, storyID string) ([]MemoryEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.memories[storyID]), nil
}

// Soul forge

func (m *MockStorage) SaveForgeSession(ctx context.Context, s *soulforge.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeError != nil {
		return m.writeError
	}
	m.sessions[s.ID] = clone(s)
	return nil
}

func (m *MockStorage) GetForgeSession(ctx context.Context, id string) (*soulforge.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, notFound("forge session", id)
	}
	return clone(s), nil
}

func (m *MockStorage) DeleteForgeSession(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *MockStorage) AddSkillMechanic(ctx context.Context, sm SkillMechanic) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeError != nil {
		return m.writeError
	}
	m.mechanics = append(m.mechanics, sm)
	return nil
}

func (m *MockStorage) ListSkillMechanics(ctx context.Context) ([]SkillMechanic, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.mechanics), nil
}
