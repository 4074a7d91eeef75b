package main

import (
	"context"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/amoisekai/engine/internal/orchestrator"
	"github.com/amoisekai/engine/pkg/player"
	"github.com/amoisekai/engine/pkg/soulforge"
	"github.com/amoisekai/engine/pkg/story"
)

// requestTimeout bounds a single engine call from the console.
const requestTimeout = 10 * time.Minute

type forgeSceneMsg struct {
	session *soulforge.Session
	scene   *soulforge.Scene
	err     error
}

type fragmentMsg struct {
	ready bool
	err   error
}

type forgedMsg struct {
	player *player.Player
	err    error
}

type storyStartedMsg struct {
	story   *story.Story
	chapter *story.Chapter
	err     error
}

type planMsg struct {
	plan *orchestrator.ChapterPlanResult
	err  error
}

type sceneMsg struct {
	result *orchestrator.SingleSceneResult
	err    error
}

type playerMsg struct {
	player *player.Player
	note   string
	err    error
}

type progressTickMsg struct{}

// statusLine holds the latest progress status reported by the engine.
type statusLine struct {
	v atomic.Value
}

func (s *statusLine) Report(status string) { s.v.Store(status) }

func (s *statusLine) String() string {
	if v, ok := s.v.Load().(string); ok {
		return v
	}
	return ""
}

func (s *statusLine) reset() { s.v.Store("") }

func (m ConsoleUI) startForge() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		s, sc, err := m.engine.StartSoulForge(ctx, m.userID)
		return forgeSceneMsg{s, sc, err}
	}
}

func (m ConsoleUI) submitForgeChoice(index int, elapsed time.Duration) tea.Cmd {
	sessionID := m.session.ID
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		s, sc, err := m.engine.SubmitForgeChoice(ctx, sessionID, index, int(elapsed.Milliseconds()), 0)
		return forgeSceneMsg{s, sc, err}
	}
}

func (m ConsoleUI) submitFragment(text string, elapsed time.Duration) tea.Cmd {
	sessionID := m.session.ID
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		ready, err := m.engine.SubmitFragment(ctx, sessionID, soulforge.Fragment{
			Text:         text,
			TypingTimeMS: int(elapsed.Milliseconds()),
		})
		return fragmentMsg{ready, err}
	}
}

func (m ConsoleUI) forge(name string) tea.Cmd {
	sessionID := m.session.ID
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		p, err := m.engine.Forge(ctx, orchestrator.ForgeRequest{
			SessionID: sessionID,
			Name:      name,
			Progress:  m.status,
		})
		return forgedMsg{p, err}
	}
}

func (m ConsoleUI) startStory() tea.Cmd {
	req := orchestrator.StartStoryRequest{
		UserID:   m.userID,
		Tone:     m.tone,
		Progress: m.status,
	}
	if m.player != nil {
		req.ProtagonistName = m.player.Name
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		st, ch, err := m.engine.StartStory(ctx, req)
		return storyStartedMsg{st, ch, err}
	}
}

func (m ConsoleUI) planChapter(choiceID, freeInput string) tea.Cmd {
	req := orchestrator.ChapterPlanRequest{
		StoryID:   m.story.ID,
		UserID:    m.userID,
		ChoiceID:  choiceID,
		FreeInput: freeInput,
		Progress:  m.status,
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		plan, err := m.engine.GenerateChapterPlan(ctx, req)
		return planMsg{plan, err}
	}
}

func (m ConsoleUI) writeScene(choiceID, freeInput string) tea.Cmd {
	req := orchestrator.SingleSceneRequest{
		StoryID:     m.story.ID,
		UserID:      m.userID,
		ChapterID:   m.chapterID,
		SceneNumber: m.nextScene,
		ChoiceID:    choiceID,
		FreeInput:   freeInput,
		Progress:    m.status,
	}
	raw := m.decisions
	return func() tea.Msg {
		decisions, err := orchestrator.ParseDecisions(raw)
		if err != nil {
			return sceneMsg{nil, err}
		}
		req.CombatDecisions = decisions
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		res, err := m.engine.GenerateSingleScene(ctx, req)
		return sceneMsg{res, err}
	}
}

func (m ConsoleUI) refreshPlayer() tea.Cmd {
	return func() tea.Msg {
		p, err := m.store.GetPlayerByUser(context.Background(), m.userID)
		return playerMsg{player: p, err: err}
	}
}

// playerAction runs a skill management call and reports its result.
func (m ConsoleUI) playerAction(note string, fn func(ctx context.Context) (*player.Player, error)) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		p, err := fn(ctx)
		return playerMsg{player: p, note: note, err: err}
	}
}

// progressTick creates a command that sends a progress tick message
func progressTick() tea.Cmd {
	return tea.Tick(time.Millisecond*200, func(time.Time) tea.Msg {
		return progressTickMsg{}
	})
}
