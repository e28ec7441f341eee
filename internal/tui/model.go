// Package tui is the terminal chat front end: an avatar panel driven by the
// presentation state, the conversation, and an input line.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	orchestration "github.com/koscakluka/ema-persona/core"
	"github.com/koscakluka/ema-persona/core/events"
	"github.com/koscakluka/ema-persona/core/presentation"
)

// Session is the part of the orchestrator the chat screen drives.
type Session interface {
	SubmitUserInput(ctx context.Context, text string) (*orchestration.Reply, error)
	StartListening(ctx context.Context) error
	StopListening() error
	IsListening() bool
	Reset() error
	Capabilities() orchestration.Capabilities
}

type role string

const (
	roleUser      role = "user"
	roleAssistant role = "assistant"
	roleError     role = "error"
)

type chatMessage struct {
	role   role
	turnID string
	text   string
}

type Model struct {
	ctx     context.Context
	session Session
	inbox   Inbox

	width  int
	height int
	ready  bool

	messages  []chatMessage
	viewport  viewport.Model
	input     textinput.Model
	spinner   spinner.Model
	listening bool

	state   presentation.State
	elapsed time.Duration
	notes   []string
}

func NewModel(ctx context.Context, session Session, inbox Inbox) Model {
	ti := textinput.New()
	ti.Placeholder = "メッセージを入力…"
	ti.CharLimit = 1000
	ti.Focus()

	s := spinner.New()
	s.Spinner = spinner.Points

	return Model{
		ctx:      ctx,
		session:  session,
		inbox:    inbox,
		viewport: viewport.New(80, 20),
		input:    ti,
		spinner:  s,
		state:    presentation.Idle,
		notes:    session.Capabilities().Notes(),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick, m.inbox.next())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			text := strings.TrimSpace(m.input.Value())
			if text == "" {
				return m, nil
			}
			m.input.Reset()
			return m, m.submit(text)
		case tea.KeyCtrlR:
			m.toggleListening()
			m.updateViewport()
			return m, nil
		case tea.KeyCtrlL:
			if err := m.session.Reset(); err != nil {
				m.addError(err)
			} else {
				m.messages = nil
			}
			m.updateViewport()
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()
		m.ready = true
		m.updateViewport()

	case submitResultMsg:
		if msg.err != nil {
			m.addError(msg.err)
			m.updateViewport()
		}

	case eventMsg:
		m.handleEvent(msg.event)
		m.updateViewport()
		return m, m.inbox.next()

	case errMsg:
		m.addError(msg.err)
		m.updateViewport()
		return m, m.inbox.next()

	case frameMsg:
		m.state, m.elapsed = msg.state, msg.elapsed
		return m, m.inbox.next()

	case inboxClosedMsg:
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m Model) submit(text string) tea.Cmd {
	session, ctx := m.session, m.ctx
	return func() tea.Msg {
		_, err := session.SubmitUserInput(ctx, text)
		return submitResultMsg{err: err}
	}
}

func (m *Model) toggleListening() {
	if m.session.IsListening() {
		if err := m.session.StopListening(); err != nil {
			m.addError(err)
		}
		return
	}
	if err := m.session.StartListening(m.ctx); err != nil {
		m.addError(err)
	}
}

func (m *Model) handleEvent(event events.Event) {
	switch e := event.(type) {
	case events.TurnStarted:
		m.messages = append(m.messages, chatMessage{role: roleUser, text: e.Text})
	case events.AssistantResponseFinal:
		m.messages = append(m.messages, chatMessage{role: roleAssistant, turnID: e.TurnID})
	case events.AssistantRevealUpdated:
		m.setRevealed(e.TurnID, e.Revealed)
	case events.AssistantRevealCompleted:
		m.setRevealed(e.TurnID, e.Text)
	case events.CaptureStarted:
		m.listening = true
	case events.CaptureEnded, events.CaptureFailed:
		m.listening = false
	case events.PresentationStateChanged:
		m.state, m.elapsed = e.State, 0
	}
}

func (m *Model) setRevealed(turnID, text string) {
	for i := len(m.messages) - 1; i >= 0; i-- {
		if m.messages[i].turnID == turnID {
			m.messages[i].text = text
			return
		}
	}
}

func (m *Model) addError(err error) {
	if text := describeError(err); text != "" {
		m.messages = append(m.messages, chatMessage{role: roleError, text: text})
	}
}

// describeError turns orchestrator errors into the line shown in the chat.
// Blank input is silently ignored.
func describeError(err error) string {
	switch {
	case err == nil, errors.Is(err, orchestration.ErrValidation):
		return ""
	case errors.Is(err, orchestration.ErrConcurrency):
		return "⚠ まだ前の返事を待っています。"
	case errors.Is(err, orchestration.ErrUnsupportedCapability):
		return "⚠ この環境は音声に対応していません。"
	case errors.Is(err, orchestration.ErrEmptyReply):
		return "⚠ 応答が空でした"
	case errors.Is(err, orchestration.ErrTransport):
		return fmt.Sprintf("⚠ 通信エラーが発生しました: %v", err)
	default:
		return fmt.Sprintf("⚠ %v", err)
	}
}

func (m *Model) resize() {
	avatarWidth := lipgloss.Width(renderAvatar(m.state, 0))
	m.viewport.Width = max(m.width-avatarWidth-6, 20)
	m.viewport.Height = max(m.height-8, 5)
	m.input.Width = max(m.width-8, 10)
}

func (m *Model) updateViewport() {
	width := max(m.viewport.Width-2, 10)

	var content strings.Builder
	for i, msg := range m.messages {
		if i > 0 {
			content.WriteString("\n")
		}
		switch msg.role {
		case roleUser:
			content.WriteString(userLabelStyle.Render("マスター") + "\n")
			content.WriteString(wordwrap.String(msg.text, width))
		case roleAssistant:
			content.WriteString(assistantLabelStyle.Render("KYUROKU") + "\n")
			content.WriteString(wordwrap.String(msg.text, width))
		case roleError:
			content.WriteString(errorStyle.Render(wordwrap.String(msg.text, width)))
		}
		content.WriteString("\n")
	}

	m.viewport.SetContent(content.String())
	m.viewport.GotoBottom()
}

func (m Model) View() string {
	if !m.ready {
		return hintStyle.Render("  起動中...")
	}

	header := titleStyle.Render("✦ KYUROKU.ainas") + hintStyle.Render("  •  R4-AI-UNIT-09")

	avatar := renderAvatar(m.state, m.elapsed)
	messages := messagesAreaStyle.
		Width(m.viewport.Width).
		Height(m.viewport.Height).
		Render(m.viewport.View())
	body := lipgloss.JoinHorizontal(lipgloss.Top, avatar, " ", messages)

	prompt := m.input.View()
	if m.state == presentation.Thinking {
		prompt = m.spinner.View() + " " + prompt
	}
	if m.listening {
		prompt = "⏺ " + prompt
	}
	input := inputPanelStyle.Width(max(m.width-4, 10)).Render(prompt)

	footer := hintStyle.Render("enter 送信 • ctrl+r 音声入力 • ctrl+l リセット • esc 終了")
	if len(m.notes) > 0 {
		footer = noteStyle.Render(strings.Join(m.notes, "  ")) + "\n" + footer
	}

	return lipgloss.JoinVertical(lipgloss.Left, header, body, input, footer)
}

// Run shows the chat until the user quits. inbox must be the one wired into
// the orchestrator's event handler and error callback; source is the
// orchestrator's presentation state.
func Run(ctx context.Context, session Session, inbox Inbox, source presentation.Source) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go presentation.Drive(ctx, source, inbox, presentation.DefaultFrameInterval)

	program := tea.NewProgram(NewModel(ctx, session, inbox), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("failed to run chat: %w", err)
	}
	return nil
}
