package tui

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	orchestration "github.com/koscakluka/ema-persona/core"
	"github.com/koscakluka/ema-persona/core/events"
	"github.com/koscakluka/ema-persona/core/presentation"
)

type fakeSession struct {
	submitted    []string
	listening    bool
	startErr     error
	resetErr     error
	resets       int
	capabilities orchestration.Capabilities
}

func (s *fakeSession) SubmitUserInput(ctx context.Context, text string) (*orchestration.Reply, error) {
	s.submitted = append(s.submitted, text)
	return nil, nil
}

func (s *fakeSession) StartListening(ctx context.Context) error {
	if s.startErr != nil {
		return s.startErr
	}
	s.listening = true
	return nil
}

func (s *fakeSession) StopListening() error {
	s.listening = false
	return nil
}

func (s *fakeSession) IsListening() bool { return s.listening }

func (s *fakeSession) Reset() error {
	s.resets++
	return s.resetErr
}

func (s *fakeSession) Capabilities() orchestration.Capabilities { return s.capabilities }

func newTestModel(t *testing.T, session *fakeSession) Model {
	t.Helper()

	m := NewModel(context.Background(), session, NewInbox())
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return updated.(Model)
}

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()

	updated, _ := m.Update(msg)
	return updated.(Model)
}

func TestEnterSubmitsInput(t *testing.T) {
	session := &fakeSession{}
	m := newTestModel(t, session)
	m.input.SetValue("  こんにちは ")

	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	msg := cmd()

	assert.Equal(t, submitResultMsg{}, msg)
	assert.Equal(t, []string{"こんにちは"}, session.submitted)
	assert.Empty(t, updated.(Model).input.Value())
}

func TestEnterIgnoresBlankInput(t *testing.T) {
	session := &fakeSession{}
	m := newTestModel(t, session)
	m.input.SetValue("   ")

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})

	assert.Nil(t, cmd)
	assert.Empty(t, session.submitted)
}

func TestEventsBuildConversation(t *testing.T) {
	m := newTestModel(t, &fakeSession{})

	m = update(t, m, eventMsg{events.NewTurnStarted("req", "こんにちは")})
	m = update(t, m, eventMsg{events.NewAssistantResponseFinal("turn", "こんにちは、マスター！")})
	m = update(t, m, eventMsg{events.NewAssistantRevealUpdated("turn", "こんにち")})

	require.Len(t, m.messages, 2)
	assert.Equal(t, chatMessage{role: roleUser, text: "こんにちは"}, m.messages[0])
	assert.Equal(t, "こんにち", m.messages[1].text)

	m = update(t, m, eventMsg{events.NewAssistantRevealCompleted("turn", "こんにちは、マスター！")})
	assert.Equal(t, "こんにちは、マスター！", m.messages[1].text)
	assert.Contains(t, m.viewport.View(), "KYUROKU")
}

func TestPresentationStateReachesAvatar(t *testing.T) {
	m := newTestModel(t, &fakeSession{})

	m = update(t, m, eventMsg{events.NewPresentationStateChanged(presentation.Snapshot{State: presentation.Thinking})})
	assert.Equal(t, presentation.Thinking, m.state)

	m = update(t, m, frameMsg{state: presentation.Talking, elapsed: time.Second})
	assert.Equal(t, presentation.Talking, m.state)
	assert.Contains(t, m.View(), "TALKING")
}

func TestToggleListening(t *testing.T) {
	session := &fakeSession{}
	m := newTestModel(t, session)

	m = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlR})
	assert.True(t, session.listening)

	m = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlR})
	assert.False(t, session.listening)
	assert.Empty(t, m.messages)
}

func TestListeningUnsupportedShowsError(t *testing.T) {
	session := &fakeSession{startErr: fmt.Errorf("%w: no recognizer", orchestration.ErrUnsupportedCapability)}
	m := newTestModel(t, session)

	m = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlR})

	require.Len(t, m.messages, 1)
	assert.Equal(t, roleError, m.messages[0].role)
}

func TestResetClearsMessages(t *testing.T) {
	session := &fakeSession{}
	m := newTestModel(t, session)
	m = update(t, m, eventMsg{events.NewTurnStarted("req", "hi")})

	m = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlL})
	assert.Equal(t, 1, session.resets)
	assert.Empty(t, m.messages)

	session.resetErr = orchestration.ErrConcurrency
	m = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlL})
	require.Len(t, m.messages, 1)
	assert.Equal(t, roleError, m.messages[0].role)
}

func TestDescribeError(t *testing.T) {
	testCases := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: ""},
		{name: "validation", err: orchestration.ErrValidation, want: ""},
		{name: "concurrency", err: orchestration.ErrConcurrency, want: "待って"},
		{name: "empty reply", err: fmt.Errorf("failed: %w", orchestration.ErrEmptyReply), want: "応答が空でした"},
		{name: "transport", err: fmt.Errorf("failed: %w", orchestration.ErrTransport), want: "通信エラー"},
		{name: "other", err: errors.New("boom"), want: "boom"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := describeError(tc.err)
			if tc.want == "" {
				assert.Empty(t, got)
				return
			}
			assert.Contains(t, got, tc.want)
		})
	}
}

func TestRenderAvatarShowsStateLabel(t *testing.T) {
	for state, label := range stateLabels {
		assert.Contains(t, renderAvatar(state, 0), label)
	}
}

func TestRenderAvatarAnimatesTalking(t *testing.T) {
	first := renderAvatar(presentation.Talking, 200*time.Millisecond)
	second := renderAvatar(presentation.Talking, 320*time.Millisecond)
	assert.NotEqual(t, first, second)
}

func TestInboxDropsFramesWhenFull(t *testing.T) {
	inbox := make(Inbox, 1)

	inbox.Apply(presentation.Idle, 0)
	inbox.Apply(presentation.Talking, time.Second)

	msg := <-inbox
	assert.Equal(t, frameMsg{state: presentation.Idle}, msg)
	assert.Empty(t, inbox)
}
