package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/koscakluka/ema-persona/core/events"
	"github.com/koscakluka/ema-persona/core/presentation"
)

const inboxSize = 1024

type (
	eventMsg struct{ event events.Event }
	errMsg   struct{ err error }
	frameMsg struct {
		state   presentation.State
		elapsed time.Duration
	}
	submitResultMsg struct{ err error }
	inboxClosedMsg  struct{}
)

// Inbox carries orchestrator events, background errors and avatar frames
// into the program.
type Inbox chan tea.Msg

func NewInbox() Inbox {
	return make(Inbox, inboxSize)
}

// HandleEvent is meant for orchestration.WithEventHandler.
func (i Inbox) HandleEvent(event events.Event) {
	i <- eventMsg{event: event}
}

// ReportError is meant for orchestration.WithErrorCallback.
func (i Inbox) ReportError(err error) {
	i <- errMsg{err: err}
}

// Apply makes the inbox a presentation renderer. Frames are dropped rather
// than queued when the program falls behind.
func (i Inbox) Apply(state presentation.State, elapsed time.Duration) {
	select {
	case i <- frameMsg{state: state, elapsed: elapsed}:
	default:
	}
}

var _ presentation.Renderer = Inbox(nil)

func (i Inbox) next() tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-i
		if !ok {
			return inboxClosedMsg{}
		}
		return msg
	}
}
