// Package tui implements the terminal chat interface: session selection,
// turn-paired conversation rendering, and progressive display of streamed
// replies.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"charm.land/bubbles/v2/spinner"
	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/lipgloss"

	"chatrelay/internal/client"
	"chatrelay/internal/models"
)

const requestTimeout = 10 * time.Second

// Theme holds the color scheme for the chat display.
type Theme struct {
	User      lipgloss.Color
	Assistant lipgloss.Color
	Session   lipgloss.Color
	Error     lipgloss.Color
	Hint      lipgloss.Color
}

var defaultTheme = Theme{
	User:      lipgloss.Color("#5FAFD7"), // light blue
	Assistant: lipgloss.Color("#00D787"), // green
	Session:   lipgloss.Color("#AF87FF"), // purple
	Error:     lipgloss.Color("#FF005F"), // red
	Hint:      lipgloss.Color("#6C6C6C"), // dim gray
}

func (t Theme) userStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.User).Bold(true)
}

func (t Theme) assistantStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Assistant).Bold(true)
}

func (t Theme) sessionStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Session)
}

func (t Theme) errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

// sessionsLoadedMsg carries the initial session list.
type sessionsLoadedMsg struct {
	sessions []string
	err      error
}

// historyLoadedMsg carries the reloaded conversation for the selected session.
type historyLoadedMsg struct {
	sessionID string
	turns     []models.Turn
	err       error
}

type sessionCreatedMsg struct {
	id  string
	err error
}

type sessionDeletedMsg struct {
	id  string
	err error
}

// streamChunkMsg is one raw chunk of the in-flight reply.
type streamChunkMsg struct {
	chunk string
}

// streamDoneMsg ends the in-flight exchange.
type streamDoneMsg struct {
	reply string
	err   error
}

// Model is the bubbletea model for the chat interface.
type Model struct {
	client *client.Client
	theme  Theme

	sessions []string
	selected int

	turns     []models.Turn
	streaming bool
	chunks    chan string

	input    textinput.Model
	spin     spinner.Model
	status   string
	width    int
	height   int
	quitting bool
}

// NewModel creates the chat model.
func NewModel(c *client.Client) Model {
	input := textinput.New()
	input.Placeholder = "Type and press Enter…"
	input.Focus()

	spin := spinner.New()
	spin.Spinner = spinner.Dot

	return Model{
		client: c,
		theme:  defaultTheme,
		input:  input,
		spin:   spin,
		status: "connecting…",
		width:  80,
		height: 24,
	}
}

// Init loads the session list.
func (m Model) Init() tea.Cmd {
	return m.loadSessions()
}

// Update handles messages and returns the updated model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case sessionsLoadedMsg:
		if msg.err != nil {
			// Never leave the user with no session to type into.
			m.sessions = []string{"default"}
			m.selected = 0
			m.status = fmt.Sprintf("server unreachable, using placeholder session: %v", msg.err)
			return m, nil
		}
		if len(msg.sessions) == 0 {
			return m, m.createSession()
		}
		m.sessions = msg.sessions
		m.selected = 0
		m.status = ""
		return m, m.loadHistory(m.currentSession())

	case historyLoadedMsg:
		if msg.sessionID != m.currentSession() {
			return m, nil // stale reload after a switch
		}
		if msg.err != nil {
			m.turns = nil
			m.status = fmt.Sprintf("no history for session %s", msg.sessionID)
			return m, nil
		}
		m.turns = msg.turns
		m.status = fmt.Sprintf("loaded %d turn(s)", len(msg.turns))
		return m, nil

	case sessionCreatedMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("create session failed: %v", msg.err)
			if len(m.sessions) == 0 {
				m.sessions = []string{"default"}
				m.selected = 0
			}
			return m, nil
		}
		m.sessions = append(m.sessions, msg.id)
		m.selected = len(m.sessions) - 1
		m.turns = nil
		m.status = "created: " + msg.id
		return m, nil

	case sessionDeletedMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("delete failed: %v", msg.err)
			return m, nil
		}
		m.removeSession(msg.id)
		m.turns = nil
		if len(m.sessions) == 0 {
			m.status = "deleted, starting a new chat"
			return m, m.createSession()
		}
		m.status = "deleted"
		return m, m.loadHistory(m.currentSession())

	case streamChunkMsg:
		// The display always shows the cumulative text so far.
		if len(m.turns) > 0 {
			m.turns[len(m.turns)-1].Assistant += msg.chunk
		}
		return m, m.waitForChunk()

	case streamDoneMsg:
		m.streaming = false
		m.chunks = nil
		if len(m.turns) > 0 {
			if msg.err != nil {
				m.turns[len(m.turns)-1].Assistant = fmt.Sprintf("[ERROR] Network/client error: %v", msg.err)
			} else {
				m.turns[len(m.turns)-1].Assistant = msg.reply
			}
		}
		return m, nil

	case spinner.TickMsg:
		if !m.streaming {
			return m, nil
		}
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "esc":
		m.quitting = true
		return m, tea.Quit

	case "enter":
		text := strings.TrimSpace(m.input.Value())
		if text == "" || m.streaming {
			return m, nil
		}
		m.input.Reset()
		// Optimistic user bubble; the assistant side fills in as chunks land.
		m.turns = append(m.turns, models.Turn{User: text})
		m.streaming = true
		m.chunks = make(chan string)
		m.status = ""
		return m, tea.Batch(m.startChat(m.currentSession(), text), m.waitForChunk(), m.spin.Tick)

	case "ctrl+n":
		if m.streaming {
			return m, nil
		}
		return m, m.createSession()

	case "ctrl+d":
		if m.streaming || len(m.sessions) == 0 {
			return m, nil
		}
		return m, m.deleteSession(m.currentSession())

	case "tab", "shift+tab":
		if m.streaming || len(m.sessions) < 2 {
			return m, nil
		}
		if msg.String() == "tab" {
			m.selected = (m.selected + 1) % len(m.sessions)
		} else {
			m.selected = (m.selected - 1 + len(m.sessions)) % len(m.sessions)
		}
		// Switching discards the view and reloads from the server.
		m.turns = nil
		return m, m.loadHistory(m.currentSession())
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the chat display.
func (m Model) View() tea.View {
	return tea.NewView(m.renderContent())
}

func (m Model) renderContent() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	session := m.currentSession()
	header := fmt.Sprintf("chatrelay — session %s (%d/%d)",
		m.theme.sessionStyle().Render(session), m.selected+1, max(len(m.sessions), 1))
	b.WriteString(header + "\n\n")

	for _, turn := range m.turns {
		b.WriteString(m.theme.userStyle().Render("You: ") + turn.User + "\n")
		assistant := turn.Assistant
		if assistant == "" && m.streaming {
			assistant = m.spin.View()
		}
		b.WriteString(m.theme.assistantStyle().Render("Assistant: ") + assistant + "\n\n")
	}

	b.WriteString(m.input.View() + "\n")
	if m.status != "" {
		b.WriteString(m.theme.hintStyle().Render(m.status) + "\n")
	}
	b.WriteString(m.theme.hintStyle().Render("enter send · tab switch · ctrl+n new · ctrl+d delete · ctrl+c quit"))

	return clampLines(b.String(), m.height)
}

func (m Model) currentSession() string {
	if len(m.sessions) == 0 {
		return "default"
	}
	return m.sessions[m.selected]
}

func (m *Model) removeSession(id string) {
	kept := m.sessions[:0]
	for _, s := range m.sessions {
		if s != id {
			kept = append(kept, s)
		}
	}
	m.sessions = kept
	if m.selected >= len(m.sessions) {
		m.selected = 0
	}
}

func (m Model) loadSessions() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		sessions, err := m.client.ListSessions(ctx)
		return sessionsLoadedMsg{sessions: sessions, err: err}
	}
}

func (m Model) loadHistory(sessionID string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		msgs, err := m.client.History(ctx, sessionID)
		return historyLoadedMsg{sessionID: sessionID, turns: models.PairTurns(msgs), err: err}
	}
}

func (m Model) createSession() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		id, err := m.client.CreateSession(ctx)
		return sessionCreatedMsg{id: id, err: err}
	}
}

func (m Model) deleteSession(sessionID string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		err := m.client.DeleteSession(ctx, sessionID)
		return sessionDeletedMsg{id: sessionID, err: err}
	}
}

// startChat runs the streaming exchange; chunks flow through m.chunks and
// the channel closes before the done message is produced, so the pending
// waitForChunk always drains cleanly.
func (m Model) startChat(sessionID, text string) tea.Cmd {
	ch := m.chunks
	c := m.client
	return func() tea.Msg {
		reply, err := c.Chat(context.Background(), sessionID, text, func(chunk string) error {
			ch <- chunk
			return nil
		})
		close(ch)
		return streamDoneMsg{reply: reply, err: err}
	}
}

func (m Model) waitForChunk() tea.Cmd {
	ch := m.chunks
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		chunk, ok := <-ch
		if !ok {
			return nil
		}
		return streamChunkMsg{chunk: chunk}
	}
}

func clampLines(s string, height int) string {
	if height <= 0 {
		return s
	}
	lines := strings.Split(s, "\n")
	if len(lines) <= height {
		return s
	}
	return strings.Join(lines[len(lines)-height:], "\n")
}

// Run starts the interactive chat UI.
func Run(c *client.Client) error {
	p := tea.NewProgram(NewModel(c))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("chat UI error: %w", err)
	}
	return nil
}
