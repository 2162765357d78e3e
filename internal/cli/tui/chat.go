package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/lvyanru/chatctl/internal/cli/client"
	"github.com/lvyanru/chatctl/internal/stream"
)

// UI configuration constants
const (
	defaultInputWidth      = 100
	defaultViewportWidth   = 100
	defaultViewportHeight  = 30
	defaultWindowWidth     = 100
	defaultWindowHeight    = 40
	inputCharLimit         = 4000
	inputHeightReserved    = 2
	statusHeightReserved   = 3
	minContentHeight       = 10
	sessionIDDisplayLength = 8
	maxHistoryTurns        = 40
)

// Style definitions
var (
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	boldStyle   = lipgloss.NewStyle().Bold(true)
	accentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	promptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("63"))
)

// streamState represents the state of streaming response
type streamState int

const (
	streamIdle streamState = iota
	streamStreaming
)

// ChatProgram encapsulates the chat TUI program
type ChatProgram struct {
	model chatModel
}

// NewChatProgram creates a new chat program instance
func NewChatProgram(apiClient *client.APIClient, conversationID, model string) *ChatProgram {
	return &ChatProgram{model: initialModel(apiClient, conversationID, model)}
}

// Run starts the chat TUI program
func (p *ChatProgram) Run() error {
	program := tea.NewProgram(p.model, tea.WithAltScreen())
	_, err := program.Run()
	return err
}

// chatModel is the Bubble Tea model containing all chat interface state
type chatModel struct {
	// Dependencies
	apiClient      *client.APIClient
	conversationID string
	modelToUse     string

	// UI components
	input       textinput.Model
	contentView viewport.Model

	// Streaming response state
	state    streamState
	content  *strings.Builder // Use pointer to avoid Builder copy
	answer   string           // Assistant turn being streamed
	sources  []stream.Source
	session  *stream.Stream
	cancel   context.CancelFunc
	history  []stream.Turn
	prompt   string // user turn currently being answered

	// Error state
	err error

	// Window dimensions
	width  int
	height int
}

// initialModel creates the initial chat model
func initialModel(apiClient *client.APIClient, conversationID, model string) chatModel {
	input := textinput.New()
	input.Placeholder = ""
	input.Focus()
	input.CharLimit = inputCharLimit
	input.Width = defaultInputWidth
	input.Prompt = ""
	input.TextStyle = lipgloss.NewStyle()
	input.PromptStyle = lipgloss.NewStyle()

	contentViewport := viewport.New(defaultViewportWidth, defaultViewportHeight)
	contentViewport.SetContent("")

	return chatModel{
		apiClient:      apiClient,
		conversationID: conversationID,
		modelToUse:     model,
		input:          input,
		contentView:    contentViewport,
		state:          streamIdle,
		content:        &strings.Builder{},
		width:          defaultWindowWidth,
		height:         defaultWindowHeight,
	}
}

// Init initializes the model (Bubble Tea interface)
func (m chatModel) Init() tea.Cmd {
	return textinput.Blink
}

// Message type definitions
type (
	streamOpenedMsg struct {
		session *stream.Stream
		cancel  context.CancelFunc
	}
	streamEventMsg struct{ event stream.Event }
	streamErrMsg   struct{ err error }
	streamEndMsg   struct{}
)

// Update processes messages and updates the model (Bubble Tea interface)
func (m chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		cmds = append(cmds, m.handleKeyPress(msg)...)

	case tea.WindowSizeMsg:
		m.handleWindowResize(msg)

	case streamOpenedMsg:
		m.session = msg.session
		m.cancel = msg.cancel
		cmds = append(cmds, waitForEvent(m.session))

	case streamEventMsg:
		if m.state == streamStreaming {
			if done := m.handleEvent(msg.event); !done {
				cmds = append(cmds, waitForEvent(m.session))
			}
		}

	case streamErrMsg:
		if m.state == streamStreaming {
			m.err = msg.err
			m.abandonStream()
			m.refreshContent()
		}

	case streamEndMsg:
		if m.state == streamStreaming {
			m.finishStream("")
		}
	}

	// Input is only editable while idle
	if m.state != streamStreaming {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// handleKeyPress handles keyboard input
func (m *chatModel) handleKeyPress(msg tea.KeyMsg) []tea.Cmd {
	var cmds []tea.Cmd

	switch msg.Type {
	case tea.KeyCtrlC, tea.KeyEsc:
		// Abandoning iteration must release the connection.
		m.abandonStream()
		cmds = append(cmds, tea.Quit)

	case tea.KeyEnter:
		if m.state != streamStreaming {
			text := strings.TrimSpace(m.input.Value())
			if text != "" {
				m.startStreaming(text)
				cmds = append(cmds, m.openStream(text))
			}
		}

	case tea.KeyUp:
		m.contentView.LineUp(1)

	case tea.KeyDown:
		m.contentView.LineDown(1)

	case tea.KeyPgUp:
		m.contentView.ViewUp()

	case tea.KeyPgDown:
		m.contentView.ViewDown()
	}

	return cmds
}

// handleWindowResize handles window size changes
func (m *chatModel) handleWindowResize(msg tea.WindowSizeMsg) {
	m.width = msg.Width
	m.height = msg.Height

	contentHeight := msg.Height - inputHeightReserved - statusHeightReserved
	if contentHeight < minContentHeight {
		contentHeight = minContentHeight
	}

	m.contentView.Width = msg.Width
	m.contentView.Height = contentHeight
	m.input.Width = msg.Width - 3

	m.refreshContent()
}

// startStreaming prepares the view for a new streaming conversation turn
func (m *chatModel) startStreaming(text string) {
	m.prompt = text
	m.input.Reset()
	m.answer = ""
	m.sources = nil
	m.err = nil

	m.content.WriteString("\n")
	m.content.WriteString(boldStyle.Render("You"))
	m.content.WriteString("\n")
	m.content.WriteString(text)
	m.content.WriteString("\n\n")
	m.content.WriteString(accentStyle.Render("Assistant"))
	m.content.WriteString("\n")

	m.state = streamStreaming
	m.refreshContent()
}

// openStream opens the streaming request
func (m *chatModel) openStream(prompt string) tea.Cmd {
	apiClient := m.apiClient
	req := stream.Request{
		Query:          prompt,
		ConversationID: m.conversationID,
		History:        m.history,
		Model:          m.modelToUse,
	}
	return func() tea.Msg {
		ctx, cancel := context.WithCancel(context.Background())
		session, err := apiClient.OpenChatStream(ctx, req)
		if err != nil {
			cancel()
			return streamErrMsg{err: err}
		}
		return streamOpenedMsg{session: session, cancel: cancel}
	}
}

// waitForEvent pulls the next event from the stream session
func waitForEvent(session *stream.Stream) tea.Cmd {
	return func() tea.Msg {
		ev, err := session.Recv(context.Background())
		if err != nil {
			// io.EOF after a terminal event and transport failures both
			// end the turn; only the latter carries an error to show.
			if _, ok := err.(*stream.TransportError); ok {
				return streamErrMsg{err: err}
			}
			return streamEndMsg{}
		}
		return streamEventMsg{event: ev}
	}
}

// handleEvent folds one stream event into the view. It reports whether the
// turn is over.
func (m *chatModel) handleEvent(ev stream.Event) bool {
	switch ev.Kind {
	case stream.EventToken:
		m.answer += ev.Content
		m.refreshContent()
		return false

	case stream.EventSources:
		m.sources = append(m.sources, ev.Sources...)
		m.refreshContent()
		return false

	case stream.EventDone:
		m.finishStream("")
		return true

	case stream.EventError:
		m.finishStream(errorStyle.Render(fmt.Sprintf("✗ %s", ev.Message)))
		return true

	case stream.EventTruncated:
		m.finishStream(warnStyle.Render("⚠ response truncated by the server"))
		return true

	default:
		return false
	}
}

// finishStream completes the streaming response and records the turn
func (m *chatModel) finishStream(status string) {
	answer := m.answer

	m.content.WriteString(answer)
	m.content.WriteString("\n")
	if len(m.sources) > 0 {
		m.content.WriteString(renderSources(m.sources))
	}
	if status != "" {
		m.content.WriteString(status)
		m.content.WriteString("\n")
	}

	if answer != "" {
		m.history = append(m.history,
			stream.Turn{Role: "user", Content: m.prompt},
			stream.Turn{Role: "assistant", Content: answer},
		)
		if len(m.history) > maxHistoryTurns {
			m.history = m.history[len(m.history)-maxHistoryTurns:]
		}
	}

	m.answer = ""
	m.state = streamIdle
	m.session = nil
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.refreshContent()
}

// abandonStream releases the in-flight session, if any
func (m *chatModel) abandonStream() {
	if m.session != nil {
		_ = m.session.Close()
		m.session = nil
	}
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.state = streamIdle
}

// renderSources renders the citation list for the content area
func renderSources(sources []stream.Source) string {
	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("Sources:"))
	b.WriteString("\n")
	for i, src := range sources {
		label := src.Title
		if label == "" {
			label = src.URL
		}
		line := fmt.Sprintf("  [%d] %s", i+1, label)
		if src.URL != "" && src.Title != "" {
			line = fmt.Sprintf("%s (%s)", line, src.URL)
		}
		b.WriteString(dimStyle.Render(line))
		b.WriteString("\n")
	}
	return b.String()
}

// refreshContent refreshes the display content
func (m *chatModel) refreshContent() {
	display := m.content.String()
	if m.state == streamStreaming {
		display += m.answer
	}
	if m.err != nil {
		display += "\n" + errorStyle.Render(fmt.Sprintf("✗ %v", m.err))
	}

	if m.width > 0 {
		display = m.wrapText(display, m.width)
	}

	m.contentView.SetContent(display)
	m.contentView.GotoBottom()
}

// wrapText applies auto-wrapping to text, handling wide character widths
func (m *chatModel) wrapText(text string, maxWidth int) string {
	if maxWidth <= 10 {
		return text
	}

	lines := strings.Split(text, "\n")
	var result strings.Builder

	for i, line := range lines {
		if i > 0 {
			result.WriteString("\n")
		}

		if strings.TrimSpace(line) == "" {
			continue
		}

		result.WriteString(m.wrapLine(line, maxWidth))
	}

	return result.String()
}

// wrapLine wraps a single line of text, handling wide character widths
func (m *chatModel) wrapLine(line string, maxWidth int) string {
	if runewidth.StringWidth(line) <= maxWidth {
		return line
	}

	var result strings.Builder
	var currentLine strings.Builder
	currentWidth := 0

	for _, r := range line {
		runeW := runewidth.RuneWidth(r)

		if currentWidth+runeW > maxWidth && currentWidth > 0 {
			result.WriteString(currentLine.String())
			result.WriteString("\n")
			currentLine.Reset()
			currentWidth = 0
		}

		currentLine.WriteRune(r)
		currentWidth += runeW
	}

	if currentLine.Len() > 0 {
		result.WriteString(currentLine.String())
	}

	return result.String()
}

// View renders the UI (Bubble Tea interface)
func (m chatModel) View() string {
	status := dimStyle.Render(fmt.Sprintf("conversation %s", shortID(m.conversationID)))
	if m.state == streamStreaming {
		status += dimStyle.Render(" • streaming...")
	}

	content := m.contentView.View()

	var inputView string
	if m.state == streamStreaming {
		inputView = dimStyle.Render("> ") + dimStyle.Render("waiting for the answer...")
	} else {
		inputView = promptStyle.Render("> ") + m.input.View()
	}

	help := ""
	if m.state != streamStreaming {
		help = dimStyle.Render("Enter to send • ↑↓ scroll • Esc to quit")
	}

	parts := []string{status, "", content, "", inputView}
	if help != "" {
		parts = append(parts, help)
	}

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func shortID(id string) string {
	if len(id) > sessionIDDisplayLength {
		return id[:sessionIDDisplayLength]
	}
	return id
}
