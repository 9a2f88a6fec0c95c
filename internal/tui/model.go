package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"vetter/internal/chat"
	"vetter/internal/history"
	"vetter/internal/models"
	"vetter/internal/session"
)

type eventDoneMsg struct {
	view models.Transcript
}

type theme struct {
	header    lipgloss.Style
	user      lipgloss.Style
	assistant lipgloss.Style
	notice    lipgloss.Style
	errorLine lipgloss.Style
	help      lipgloss.Style
	input     lipgloss.Style
}

func newTheme() theme {
	blue := lipgloss.Color("#01cdfe")
	muted := lipgloss.Color("#9ca3d8")
	return theme{
		header: lipgloss.NewStyle().Bold(true).Foreground(blue).Padding(0, 1),
		user: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#0b1021")).
			Background(lipgloss.Color("#a5d8ff")).
			Padding(0, 1),
		assistant: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#f3f3ff")).
			Background(lipgloss.Color("#2a184a")).
			Padding(0, 1),
		notice:    lipgloss.NewStyle().Foreground(lipgloss.Color("#ffb86c")).Bold(true),
		errorLine: lipgloss.NewStyle().Foreground(lipgloss.Color("#ff71ce")),
		help:      lipgloss.NewStyle().Foreground(muted),
		input: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(muted),
	}
}

// Model is the bubbletea program state for one terminal chat session.
type Model struct {
	ctx     context.Context
	querier chat.Querier
	sess    *session.Session
	title   string

	input      textinput.Model
	transcript viewport.Model
	spinner    spinner.Model
	theme      theme

	view     models.Transcript
	inflight bool
	width    int
	height   int
}

// New builds a Model over an existing session.
func New(ctx context.Context, querier chat.Querier, sess *session.Session, title string) Model {
	input := textinput.New()
	input.Prompt = "> "
	input.Placeholder = "Type a message and press Enter"
	input.CharLimit = chat.MaxInputChars
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := Model{
		ctx:        ctx,
		querier:    querier,
		sess:       sess,
		title:      title,
		input:      input,
		transcript: viewport.New(80, 20),
		spinner:    sp,
		theme:      newTheme(),
		inflight:   true,
		width:      80,
		height:     24,
	}
	m.view = sess.Snapshot().Transcript(title, "")
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick, m.eventCmd(""))
}

// eventCmd runs one UI event off the update loop.
func (m Model) eventCmd(text string) tea.Cmd {
	ctx, querier, sess, title := m.ctx, m.querier, m.sess, m.title
	return func() tea.Msg {
		var notice string
		sess.Do(func(h *history.History) {
			notice = chat.Turn(ctx, querier, h, text)
		})
		return eventDoneMsg{view: sess.Snapshot().Transcript(title, notice)}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
	case eventDoneMsg:
		m.inflight = false
		m.view = msg.view
		m.renderTranscript()
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			if m.inflight {
				return m, nil
			}
			text := m.input.Value()
			m.input.Reset()
			if strings.TrimSpace(text) == "" {
				return m, nil
			}
			m.inflight = true
			return m, tea.Batch(m.eventCmd(text), m.spinner.Tick)
		case tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.transcript, cmd = m.transcript.Update(msg)
			return m, cmd
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m *Model) resize() {
	m.input.Width = max(20, m.width-6)
	m.transcript.Width = max(20, m.width)
	m.transcript.Height = max(5, m.height-7)
	m.renderTranscript()
}

func (m *Model) renderTranscript() {
	m.transcript.SetContent(m.renderBubbles())
	m.transcript.GotoBottom()
}

func (m Model) renderBubbles() string {
	if len(m.view.Bubbles) == 0 {
		return m.theme.help.Render("No messages yet.")
	}
	width := max(20, m.transcript.Width)
	bubbleWidth := max(10, width*3/4)
	lines := make([]string, 0, len(m.view.Bubbles))
	for _, b := range m.view.Bubbles {
		if b.IsUser {
			bubble := m.theme.user.MaxWidth(bubbleWidth).Render(wrap(b.Content, bubbleWidth-2))
			lines = append(lines, lipgloss.PlaceHorizontal(width, lipgloss.Right, bubble))
			continue
		}
		bubble := m.theme.assistant.MaxWidth(bubbleWidth).Render(wrap(b.Content, bubbleWidth-2))
		lines = append(lines, lipgloss.PlaceHorizontal(width, lipgloss.Left, bubble))
	}
	return strings.Join(lines, "\n\n")
}

func (m Model) View() string {
	header := m.theme.header.Render("🤖 " + m.title)

	status := m.theme.help.Render("Enter send · PgUp/PgDn scroll · Esc quit")
	switch {
	case m.inflight:
		status = m.spinner.View() + " waiting for a reply..."
	case m.view.Notice != "":
		status = m.theme.notice.Render(m.view.Notice)
	}

	var errLine string
	if n := len(m.view.Errors); n > 0 {
		errLine = m.theme.errorLine.Render("last error: " + m.view.Errors[n-1])
	}

	input := m.theme.input.Width(max(20, m.width-2)).Render(m.input.View())
	return lipgloss.JoinVertical(lipgloss.Left, header, m.transcript.View(), errLine, status, input)
}

// Transcript is the most recently rendered state.
func (m Model) Transcript() models.Transcript {
	return m.view
}

// wrap breaks text on word boundaries to fit width columns.
func wrap(text string, width int) string {
	if width <= 0 {
		return text
	}
	return lipgloss.NewStyle().Width(width).Render(text)
}
