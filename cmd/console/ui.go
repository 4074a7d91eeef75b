package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"github.com/amoisekai/engine/internal/orchestrator"
	"github.com/amoisekai/engine/pkg/player"
	"github.com/amoisekai/engine/pkg/soulforge"
	"github.com/amoisekai/engine/pkg/storage"
	"github.com/amoisekai/engine/pkg/story"
)

const (
	AgentName       = "Veil"
	PlaceHolderText = "Type a number to choose, or write your own action..."
)

type phase int

const (
	phaseForge phase = iota
	phaseFragment
	phaseName
	phaseChapter
	phaseScene
)

type entryRole int

const (
	roleNarrator entryRole = iota
	roleUser
	roleSystem
	roleError
)

type entry struct {
	role entryRole
	text string
}

// ConsoleUI is the BubbleTea model that runs the game.
// https://github.com/charmbracelet/bubbletea
type ConsoleUI struct {
	engine *orchestrator.Engine
	store  storage.Storage
	userID string
	tone   story.Tone

	chatViewport viewport.Model
	metaViewport viewport.Model
	textarea     textarea.Model
	ready        bool
	width        int
	height       int
	loading      bool

	phase      phase
	session    *soulforge.Session
	forgeScene *soulforge.Scene
	shownAt    time.Time

	player    *player.Player
	story     *story.Story
	chapterID string
	chapterNo int
	total     int
	nextScene int
	offered   []story.Choice
	decisions []string
	lastProse string

	transcript []entry
	status     *statusLine

	// Quit confirmation state
	showQuitModal bool

	// Progress bar state
	progressTick int
}

var (
	chatPanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
			PaddingBottom(1).
			PaddingLeft(3).
			PaddingRight(0)

	metaPanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
			PaddingBottom(0).
			PaddingLeft(0).
			PaddingRight(2)

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")). // pink
			Bold(true)

	speakerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("212")). // purple
			Bold(true)

	narratorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")) // green

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")) // teal

	systemStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("141")). // lavender
			Italic(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")) // red

	loadingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")) // yellow

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // dark grey

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(1, 2).
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("255"))

	modalTitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true).
			Align(lipgloss.Center)
)

var separatorStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("240")) // dark grey

func NewConsoleUI(engine *orchestrator.Engine, store storage.Storage, userID string, tone story.Tone) ConsoleUI {
	ta := textarea.New()
	ta.Placeholder = PlaceHolderText
	ta.Focus()
	ta.Prompt = promptStyle.Render(":: ")
	ta.CharLimit = 1000
	ta.SetWidth(50)
	ta.SetHeight(3)
	ta.ShowLineNumbers = false

	chatVp := viewport.New(50, 20)
	chatVp.MouseWheelEnabled = true

	metaVp := viewport.New(20, 20)

	return ConsoleUI{
		engine:       engine,
		store:        store,
		userID:       userID,
		tone:         tone,
		textarea:     ta,
		chatViewport: chatVp,
		metaViewport: metaVp,
		status:       &statusLine{},
		loading:      true,
	}
}

func (m *ConsoleUI) say(role entryRole, text string) {
	m.transcript = append(m.transcript, entry{role: role, text: text})
}

func (m *ConsoleUI) fail(err error) {
	m.say(roleError, "Error: "+err.Error())
}

func writeMetadata(m *ConsoleUI) string {
	var content strings.Builder
	content.WriteString(titleStyle.Render("SOUL") + "\n\n")

	p := m.player
	if p == nil {
		content.WriteString("Not yet forged.\n\n")
		if m.session != nil {
			fmt.Fprintf(&content, "Forge scene:\n%d of %d\n", m.session.CurrentScene, soulforge.SceneCount)
		}
		return content.String()
	}

	fmt.Fprintf(&content, "Name:\n%s\n\n", p.Name)
	fmt.Fprintf(&content, "Archetype:\n%s\n\n", p.Archetype)
	if p.UniqueSkill != nil {
		fmt.Fprintf(&content, "Unique skill:\n%s\n\n", p.UniqueSkill.Name)
	}
	fmt.Fprintf(&content, "HP: %.0f/%.0f\n", p.HP, p.HPMax)
	fmt.Fprintf(&content, "Stability: %.0f\n", p.Stability)
	fmt.Fprintf(&content, "Coherence: %.0f\n", p.IdentityCoherence)
	fmt.Fprintf(&content, "Instability: %.0f\n\n", p.Instability)

	if m.story != nil {
		fmt.Fprintf(&content, "Chapter: %d\n", m.chapterNo)
		if m.phase == phaseScene {
			fmt.Fprintf(&content, "Scene: %d of %d\n", m.nextScene-1, m.total)
		}
		content.WriteString("\n")
	}

	if ranked := p.Resonance.Ranked(); len(ranked) > 0 {
		content.WriteString("Resonance:\n")
		for _, pr := range ranked[:min(3, len(ranked))] {
			fmt.Fprintf(&content, "• %s %.2f\n", pr, p.Resonance.Get(pr))
		}
		content.WriteString("\n")
	}

	content.WriteString("Equipped:\n")
	if len(p.EquippedSkills) == 0 {
		content.WriteString("None\n")
	}
	for _, id := range p.EquippedSkills {
		if s := p.OwnedSkill(id); s != nil {
			fmt.Fprintf(&content, "• %s (%s)\n", s.Name(), id)
		}
	}
	if p.PendingSkill != nil {
		fmt.Fprintf(&content, "\nOffered:\n%s\n", p.PendingSkill.Name())
	}
	if len(m.decisions) > 0 {
		fmt.Fprintf(&content, "\nCombat plan:\n%s\n", strings.Join(m.decisions, ", "))
	}
	return content.String()
}

// writeChatContent builds the transcript for the current viewport width
func (m *ConsoleUI) writeChatContent() {
	chatWidth := m.chatViewport.Width - 6 // Account for left(3) + right(3) padding

	var content strings.Builder
	content.WriteString(titleStyle.Render("AMOISEKAI") + "\n\n")
	content.WriteString("You died. Something in the void is still listening.\n")
	content.WriteString("Type /help for commands.\n\n")
	content.WriteString(separatorStyle.Render(strings.Repeat("─", max(chatWidth-6, 1))) + "\n\n")

	for _, e := range m.transcript {
		switch e.role {
		case roleNarrator:
			content.WriteString(formatNarratorResponse(e.text, chatWidth) + "\n\n")
		case roleUser:
			content.WriteString(userStyle.Render("You: ") + wordwrap.String(e.text, chatWidth-6) + "\n\n")
		case roleSystem:
			content.WriteString(systemStyle.Render(wordwrap.String(e.text, chatWidth)) + "\n\n")
		case roleError:
			content.WriteString(errorStyle.Render(wordwrap.String(e.text, chatWidth)) + "\n\n")
		}
	}

	// If currently loading, add the progress bar
	if m.loading {
		if s := m.status.String(); s != "" {
			content.WriteString(loadingStyle.Render(strings.ReplaceAll(s, "_", " ")+"...") + "\n")
		}
		content.WriteString(m.renderProgressBar())
	}

	m.chatViewport.SetContent(content.String())
	m.chatViewport.GotoBottom()
}

func (m *ConsoleUI) refresh() {
	m.writeChatContent()
	m.metaViewport.SetContent(writeMetadata(m))
}

func (m ConsoleUI) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.startForge(), progressTick())
}

func (m ConsoleUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.showQuitModal {
		return m.updateQuitModal(msg)
	}

	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
		mvCmd tea.Cmd
		next  tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.MouseMsg:
		m.chatViewport, vpCmd = m.chatViewport.Update(msg)
		m.metaViewport, mvCmd = m.metaViewport.Update(msg)
		return m, tea.Batch(vpCmd, mvCmd)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		chatWidth := int(float64(m.width)*0.75) - 4
		metaWidth := m.width - chatWidth - 6

		m.chatViewport.Width = chatWidth - 2
		m.chatViewport.Height = m.height - 7 // Reduced by 1 for spacing
		m.metaViewport.Width = metaWidth - 2
		m.metaViewport.Height = m.height - 4
		m.textarea.SetWidth(chatWidth - 4)
		m.ready = true
		m.refresh()

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.showQuitModal = true
			return m, nil
		case tea.KeyEnter:
			if m.loading {
				return m, nil
			}
			input := strings.TrimSpace(m.textarea.Value())
			if input == "" {
				return m, nil
			}
			m.textarea.Reset()
			if strings.HasPrefix(input, "/") {
				cmd := m.handleCommand(input)
				m.refresh()
				return m, cmd
			}
			m.say(roleUser, input)
			cmd := m.handleInput(input)
			m.refresh()
			return m, cmd
		}

	case forgeSceneMsg:
		m.stopLoading()
		if msg.err != nil {
			m.fail(msg.err)
			break
		}
		m.session = msg.session
		m.showForgeScene(msg.scene)

	case fragmentMsg:
		m.stopLoading()
		if msg.err != nil {
			m.fail(msg.err)
			break
		}
		if msg.ready {
			m.phase = phaseName
			m.say(roleNarrator, "The void takes your words and keeps them. One thing remains. What were you called?")
		}

	case forgedMsg:
		if msg.err != nil {
			m.stopLoading()
			m.fail(msg.err)
			break
		}
		m.player = msg.player
		if u := msg.player.UniqueSkill; u != nil {
			m.say(roleSystem, fmt.Sprintf("Unique skill forged: %s", u.Name))
		}
		next = m.startStory()

	case storyStartedMsg:
		m.stopLoading()
		if msg.err != nil {
			m.fail(msg.err)
			break
		}
		m.story = msg.story
		m.chapterID = msg.chapter.ID
		m.chapterNo = msg.chapter.ChapterNumber
		m.showChapter(msg.chapter)
		next = m.refreshPlayer()

	case planMsg:
		if msg.err != nil {
			m.stopLoading()
			m.fail(msg.err)
			break
		}
		m.chapterID = msg.plan.ChapterID
		m.chapterNo = msg.plan.ChapterNumber
		m.total = msg.plan.TotalScenes
		m.nextScene = 1
		m.say(roleSystem, fmt.Sprintf("Chapter %d: %d scenes.", m.chapterNo, m.total))
		if ev := msg.plan.CRNGEvent; ev != nil && ev.Triggered {
			m.say(roleSystem, fmt.Sprintf("Fate stirs: %s", ev.EventType))
		}
		next = m.writeScene("", "")

	case sceneMsg:
		m.stopLoading()
		if msg.err != nil {
			m.fail(msg.err)
			break
		}
		m.decisions = nil
		m.showScene(msg.result)
		next = m.refreshPlayer()

	case playerMsg:
		if msg.err != nil {
			m.stopLoading()
			m.fail(msg.err)
			break
		}
		m.player = msg.player
		if msg.note != "" {
			m.stopLoading()
			m.say(roleSystem, msg.note)
		}

	case progressTickMsg:
		if m.loading {
			m.progressTick++
			m.writeChatContent()
		}
		return m, progressTick()
	}

	if m.ready {
		m.refresh()
	}

	// Update components for non-mouse events
	m.textarea, tiCmd = m.textarea.Update(msg)
	m.chatViewport, vpCmd = m.chatViewport.Update(msg)
	m.metaViewport, mvCmd = m.metaViewport.Update(msg)

	return m, tea.Batch(tiCmd, vpCmd, mvCmd, next)
}

func (m *ConsoleUI) startLoading() {
	m.loading = true
	m.progressTick = 0
	m.status.reset()
}

func (m *ConsoleUI) stopLoading() {
	m.loading = false
	m.status.reset()
}

func (m *ConsoleUI) showForgeScene(sc *soulforge.Scene) {
	m.forgeScene = sc
	m.shownAt = time.Now()
	if sc == nil {
		return
	}
	var b strings.Builder
	if sc.Title != "" {
		b.WriteString(sc.Title + "\n\n")
	}
	b.WriteString(sc.Text)
	for i, c := range sc.Choices {
		fmt.Fprintf(&b, "\n  %d. %s", i+1, c.Text)
	}
	m.say(roleNarrator, b.String())
	if m.session != nil && m.session.Phase == soulforge.PhaseFragment {
		m.phase = phaseFragment
		m.say(roleSystem, "Write what you would carry out of the void.")
		return
	}
	m.phase = phaseForge
}

func (m *ConsoleUI) showChapter(ch *story.Chapter) {
	if ch.Title != "" {
		m.say(roleSystem, fmt.Sprintf("Chapter %d: %s", ch.ChapterNumber, ch.Title))
	}
	m.lastProse = ch.Prose
	m.say(roleNarrator, ch.Prose)
	m.offerChoices(ch.Choices)
	m.phase = phaseChapter
}

func (m *ConsoleUI) showScene(res *orchestrator.SingleSceneResult) {
	if b := res.CombatData; b != nil {
		m.say(roleSystem, fmt.Sprintf("Combat against %s: %s", b.Enemy.Name, strings.ReplaceAll(string(b.FinalOutcome), "_", " ")))
	}
	for _, r := range res.ResonanceEvents {
		m.say(roleSystem, fmt.Sprintf("✦ %s %.2f → %.2f (%s)", r.Principle, r.Before, r.After, r.Reason))
	}
	if res.Scene != nil {
		m.lastProse = res.Scene.Prose
		m.say(roleNarrator, res.Scene.Prose)
	}
	if res.SkillEvolutionEvent != nil {
		m.say(roleSystem, "A skill of yours is changing. /mutate accept, resist or hybrid.")
	}
	if len(res.IntegrationOptions) > 0 {
		m.say(roleSystem, "This is a place of rest. Two skills could become one: /integrate <skill-a> <skill-b>")
	}
	for _, a := range res.AwakeningResults {
		m.say(roleSystem, fmt.Sprintf("Awakening: %+v", a))
	}
	if res.GrowthEvent != nil {
		m.say(roleSystem, fmt.Sprintf("Your unique skill grows: %+v", *res.GrowthEvent))
	}
	if res.SkillOffer != nil {
		m.say(roleSystem, fmt.Sprintf("A skill offers itself: %s. /accept or /reject", res.SkillOffer.Name()))
	}
	if res.Fallback {
		m.say(roleSystem, "(the model was unavailable; this scene was written from a fallback)")
	}

	if res.IsChapterEnd {
		m.say(roleSystem, fmt.Sprintf("End of chapter %d.", m.chapterNo))
		m.phase = phaseChapter
	} else {
		m.nextScene = res.SceneNumber + 1
		m.phase = phaseScene
	}
	if res.Scene != nil {
		m.offerChoices(res.Scene.Choices)
	}
}

func (m *ConsoleUI) offerChoices(choices []story.Choice) {
	m.offered = choices
	if len(choices) == 0 {
		return
	}
	var b strings.Builder
	for i, c := range choices {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%d. %s", i+1, c.Text)
		if c.ConsequenceHint != "" {
			fmt.Fprintf(&b, " (%s)", c.ConsequenceHint)
		}
	}
	m.say(roleSystem, b.String())
}

// pick maps a numbered answer to an offered choice id. Anything else is
// free input.
func (m *ConsoleUI) pick(input string) (choiceID, freeInput string) {
	if n, err := strconv.Atoi(input); err == nil && n >= 1 && n <= len(m.offered) {
		return m.offered[n-1].ID, ""
	}
	return "", input
}

func (m *ConsoleUI) handleInput(input string) tea.Cmd {
	switch m.phase {
	case phaseForge:
		if m.forgeScene == nil {
			return nil
		}
		n, err := strconv.Atoi(input)
		if err != nil || n < 1 || n > len(m.forgeScene.Choices) {
			m.say(roleError, fmt.Sprintf("Choose 1 to %d.", len(m.forgeScene.Choices)))
			return nil
		}
		m.startLoading()
		return m.submitForgeChoice(n-1, time.Since(m.shownAt))

	case phaseFragment:
		m.startLoading()
		return m.submitFragment(input, time.Since(m.shownAt))

	case phaseName:
		m.startLoading()
		return m.forge(input)

	case phaseChapter:
		if m.story == nil {
			return nil
		}
		choiceID, free := m.pick(input)
		m.startLoading()
		return m.planChapter(choiceID, free)

	case phaseScene:
		choiceID, free := m.pick(input)
		m.startLoading()
		return m.writeScene(choiceID, free)
	}
	return nil
}

func (m *ConsoleUI) handleCommand(input string) tea.Cmd {
	fields := strings.Fields(input)
	cmd := strings.ToLower(fields[0])
	args := fields[1:]

	switch cmd {
	case "/help":
		m.say(roleSystem, `Commands:
• /help - Show this help
• /copy - Copy the last passage to the clipboard
• /skip - Skip the soul forge and wake as a wanderer
• /fight <action[:intensity]>... - Plan the next combat (strike, shift, stabilize; safe, push, overdrive)
• /accept, /reject - Answer a skill offer
• /equip <id>, /unequip <id> - Manage skill slots
• /mutate <accept|resist|hybrid> - Answer a skill mutation
• /integrate <skill-a> <skill-b> - Merge two skills at rest
• /aspect <key> - Choose your unique skill's aspect
• Ctrl+C - Quit`)

	case "/copy":
		if m.lastProse == "" {
			m.say(roleSystem, "Nothing to copy yet.")
			return nil
		}
		if err := clipboard.WriteAll(m.lastProse); err != nil {
			m.fail(err)
			return nil
		}
		m.say(roleSystem, "Copied the last passage.")

	case "/skip":
		if m.phase > phaseName || m.loading {
			m.say(roleSystem, "The soul forge is already behind you.")
			return nil
		}
		m.startLoading()
		return m.startStory()

	case "/fight":
		if _, err := orchestrator.ParseDecisions(args); err != nil {
			m.fail(err)
			return nil
		}
		m.decisions = args
		m.say(roleSystem, "Combat plan set for the next scene.")

	case "/accept":
		m.startLoading()
		return m.playerAction("Skill accepted.", func(ctx context.Context) (*player.Player, error) {
			return m.engine.AcceptSkill(ctx, m.userID)
		})

	case "/reject":
		m.startLoading()
		return m.playerAction("Skill rejected.", func(ctx context.Context) (*player.Player, error) {
			return m.engine.RejectSkill(ctx, m.userID)
		})

	case "/equip", "/unequip":
		if len(args) != 1 {
			m.say(roleError, "Usage: "+cmd+" <skill id>")
			return nil
		}
		id := args[0]
		m.startLoading()
		if cmd == "/equip" {
			return m.playerAction("Equipped "+id+".", func(ctx context.Context) (*player.Player, error) {
				return m.engine.EquipSkill(ctx, m.userID, id)
			})
		}
		return m.playerAction("Unequipped "+id+".", func(ctx context.Context) (*player.Player, error) {
			return m.engine.UnequipSkill(ctx, m.userID, id)
		})

	case "/mutate":
		if len(args) != 1 {
			m.say(roleError, "Usage: /mutate <accept|resist|hybrid>")
			return nil
		}
		choice := args[0]
		m.startLoading()
		return m.playerAction("Mutation answered.", func(ctx context.Context) (*player.Player, error) {
			if _, err := m.engine.SubmitMutationChoice(ctx, m.userID, choice); err != nil {
				return nil, err
			}
			return m.store.GetPlayerByUser(ctx, m.userID)
		})

	case "/integrate":
		if len(args) != 2 || m.story == nil {
			m.say(roleError, "Usage: /integrate <skill-a> <skill-b>")
			return nil
		}
		req := orchestrator.IntegrateRequest{
			UserID:      m.userID,
			ChapterID:   m.chapterID,
			SceneNumber: m.nextScene - 1,
			SkillA:      args[0],
			SkillB:      args[1],
		}
		m.startLoading()
		return m.playerAction("The skills are one now.", func(ctx context.Context) (*player.Player, error) {
			if _, err := m.engine.IntegrateSkills(ctx, req); err != nil {
				return nil, err
			}
			return m.store.GetPlayerByUser(ctx, m.userID)
		})

	case "/aspect":
		if len(args) != 1 {
			m.say(roleError, "Usage: /aspect <key>")
			return nil
		}
		key := args[0]
		m.startLoading()
		return m.playerAction("Aspect chosen.", func(ctx context.Context) (*player.Player, error) {
			return m.engine.ChooseAspect(ctx, m.userID, key)
		})

	default:
		m.say(roleError, "Unknown command "+cmd+". Try /help.")
	}
	return nil
}

func formatNarratorResponse(response string, width int) string {
	// Check if response already has a speaker prefix
	hasPrefix := false
	if idx := strings.Index(response, ":"); idx > 0 && idx <= 20 {
		speaker := response[:idx]
		if len(strings.Fields(speaker)) <= 2 {
			hasPrefix = true
		}
	}

	wrapWidth := width
	if !hasPrefix {
		wrapWidth = width - len(AgentName+": ")
	}

	lines := strings.Split(wordwrap.String(response, wrapWidth), "\n")
	formatted := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if idx := strings.Index(trimmed, ":"); idx > 0 && idx <= 20 {
			speaker := trimmed[:idx]
			if len(strings.Fields(speaker)) <= 2 {
				formatted = append(formatted, speakerStyle.Render(speaker+":")+trimmed[idx+1:])
				continue
			}
		}
		formatted = append(formatted, line)
	}

	result := strings.Join(formatted, "\n")
	if !hasPrefix {
		result = narratorStyle.Render(AgentName+": ") + result
	}
	return result
}

func (m ConsoleUI) updateQuitModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc, tea.KeyEnter:
			return m, tea.Quit
		default:
			switch msg.String() {
			case "y", "Y":
				return m, tea.Quit
			case "n", "N":
				m.showQuitModal = false
				m.textarea.Focus()
				return m, textarea.Blink
			}
		}
	}

	return m, nil
}

func (m ConsoleUI) renderQuitModal() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var content strings.Builder
	content.WriteString(modalTitleStyle.Render("Leave the Veil?"))
	content.WriteString("\n\n")
	content.WriteString("Your story is saved up to the last finished scene.")
	content.WriteString("\n\n")
	content.WriteString(promptStyle.Render("Press Y to quit, N to continue, or Ctrl+C to force quit"))

	modal := modalStyle.Width(50).Render(content.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func (m ConsoleUI) View() string {
	if m.showQuitModal {
		return m.renderQuitModal()
	}

	if !m.ready {
		return "\n  Initializing..."
	}

	chatWidth := int(float64(m.width)*0.75) - 4
	metaWidth := m.width - chatWidth - 6

	chatPanel := chatPanelStyle.Width(chatWidth).Height(m.height - 3).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			m.chatViewport.View(),
			"", // Add empty line for spacing
			separatorStyle.Render(strings.Repeat("─", max(chatWidth-4, 1))),
			m.textarea.View(),
		),
	)

	metaPanel := metaPanelStyle.Width(metaWidth).Height(m.height - 2).Render(
		m.metaViewport.View(),
	)

	return lipgloss.JoinHorizontal(lipgloss.Top, chatPanel, metaPanel)
}

// renderProgressBar creates an animated progress bar for loading states
func (m ConsoleUI) renderProgressBar() string {
	usable := m.chatViewport.Width - 6
	if usable <= 0 {
		usable = 30 // fallback before sizing
	}
	usable = min(max(usable, 10), 80)

	const totalFrames = 40
	frame := m.progressTick % totalFrames
	filled := (frame * usable) / totalFrames

	var bar strings.Builder
	for i := range usable {
		switch {
		case i < filled:
			bar.WriteString("█")
		case i == filled && frame%4 < 2:
			bar.WriteString("▓") // Blinking effect at the progress point
		default:
			bar.WriteString("░")
		}
	}
	return separatorStyle.Render(bar.String())
}
