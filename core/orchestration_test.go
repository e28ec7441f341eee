package orchestration

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/koscakluka/ema-persona/core/events"
	"github.com/koscakluka/ema-persona/core/llms"
	"github.com/koscakluka/ema-persona/core/presentation"
)

func TestSubmitUserInputRejectsBlankText(t *testing.T) {
	h := newHarness(t, nil, nil)

	for _, text := range []string{"", "   ", "\n\t"} {
		if _, err := h.orchestrator.SubmitUserInput(context.Background(), text); !errors.Is(err, ErrValidation) {
			t.Fatalf("expected ErrValidation for %q, got %v", text, err)
		}
	}
	if h.model.calls() != 0 {
		t.Fatalf("expected no model calls, got %d", h.model.calls())
	}
	if h.orchestrator.History().Len() != 0 {
		t.Fatalf("expected empty history, got %d turns", h.orchestrator.History().Len())
	}
	if got := h.states.get(); len(got) != 0 {
		t.Fatalf("expected no state changes, got %v", got)
	}
}

func TestSubmitUserInputSpeaksAndRevealsReply(t *testing.T) {
	h := newHarness(t, &fakeEngine{}, nil)
	h.model.replies = []string{"こんにちは、マスター！"}

	reply, err := h.orchestrator.SubmitUserInput(context.Background(), "こんにちは")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply.Turn.Role != llms.RoleModel || reply.Turn.Text != "こんにちは、マスター！" {
		t.Fatalf("unexpected reply turn: %+v", reply.Turn)
	}

	turns := h.orchestrator.History().Turns()
	if len(turns) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(turns))
	}
	if turns[0].Role != llms.RoleUser || turns[0].Text != "こんにちは" {
		t.Fatalf("unexpected user turn: %+v", turns[0])
	}
	if turns[1].ID != reply.Turn.ID {
		t.Fatalf("expected the reply to be the last turn")
	}

	request := h.model.lastRequest(t)
	if request.Persona != DefaultPersona {
		t.Fatal("expected the default persona to be sent")
	}
	if len(request.Turns) != 1 || request.Turns[0].Text != "こんにちは" {
		t.Fatalf("expected only the user turn to be sent, got %+v", request.Turns)
	}
	if request.Params != llms.DefaultGenerationParams() {
		t.Fatalf("expected default generation params, got %+v", request.Params)
	}

	if got := h.engine.spokenTexts(); !slices.Equal(got, []string{"こんにちは、マスター！"}) {
		t.Fatalf("expected the reply to be spoken, got %v", got)
	}

	// the reveal is instant, the speech is still running
	h.events.waitForKind(t, events.KindAssistantRevealCompleted)
	assertNotDone(t, reply)
	if state := h.orchestrator.Presentation().State; state != presentation.Talking {
		t.Fatalf("expected talking while speech runs, got %s", state)
	}

	h.engine.end()
	waitDone(t, reply)

	h.states.waitFor(t, presentation.Thinking, presentation.Talking, presentation.Idle)
	if _, pending := h.orchestrator.PendingRequest(); pending {
		t.Fatal("expected no pending request")
	}

	kinds := h.events.kinds()
	for _, kind := range []events.Kind{
		events.KindTurnStarted,
		events.KindAssistantResponseFinal,
		events.KindAssistantSpeechStarted,
		events.KindAssistantSpeechEnded,
		events.KindTurnCompleted,
		events.KindPresentationStateChanged,
	} {
		if !slices.Contains(kinds, kind) {
			t.Fatalf("expected a %s event, got %v", kind, kinds)
		}
	}
}

func TestPresentationJoinsAfterRevealWhenSpeechEndsFirst(t *testing.T) {
	h := newHarness(t, &fakeEngine{autoEnd: true}, nil, WithRevealInterval(10*time.Millisecond))
	h.model.replies = []string{strings.Repeat("あ", 40)}

	reply, err := h.orchestrator.SubmitUserInput(context.Background(), "話して")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	select {
	case <-reply.Done():
		t.Fatal("expected the reveal to keep the presentation running")
	case <-time.After(50 * time.Millisecond):
	}
	if state := h.orchestrator.Presentation().State; state != presentation.Talking {
		t.Fatalf("expected talking during the reveal, got %s", state)
	}

	waitDone(t, reply)
	h.states.waitFor(t, presentation.Thinking, presentation.Talking, presentation.Idle)
}

func TestPresentationJoinsOnRevealAloneWithoutSynthesis(t *testing.T) {
	h := newHarness(t, nil, nil)
	h.model.replies = []string{"はい"}

	reply, err := h.orchestrator.SubmitUserInput(context.Background(), "ねえ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	waitDone(t, reply)
	h.states.waitFor(t, presentation.Thinking, presentation.Talking, presentation.Idle)
	if slices.Contains(h.events.kinds(), events.KindAssistantSpeechStarted) {
		t.Fatal("expected no speech without a synthesis engine")
	}
}

func TestSubmitUserInputRollsBackOnTransportError(t *testing.T) {
	h := newHarness(t, &fakeEngine{}, nil)
	h.model.err = fmt.Errorf("%w: status 502", llms.ErrTransport)

	_, err := h.orchestrator.SubmitUserInput(context.Background(), "test")
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}
	if h.orchestrator.History().Len() != 0 {
		t.Fatalf("expected the user turn to be rolled back, got %d turns", h.orchestrator.History().Len())
	}
	h.states.waitFor(t, presentation.Thinking, presentation.Idle)
	if len(h.engine.spokenTexts()) != 0 {
		t.Fatal("expected nothing to be spoken")
	}
	if _, pending := h.orchestrator.PendingRequest(); pending {
		t.Fatal("expected no pending request")
	}
	if !slices.Contains(h.events.kinds(), events.KindTurnFailed) {
		t.Fatalf("expected a turn failed event, got %v", h.events.kinds())
	}
}

func TestSubmitUserInputRestoresHistoryLength(t *testing.T) {
	seed := []llms.Turn{
		llms.NewUserTurn("一"),
		llms.NewModelTurn("いち"),
		llms.NewUserTurn("二"),
		llms.NewModelTurn("に"),
	}
	h := newHarness(t, nil, nil, WithHistory(seed...))

	testCases := []struct {
		name    string
		reply   string
		err     error
		wantErr error
	}{
		{name: "transport error", err: fmt.Errorf("%w: unreachable", llms.ErrTransport), wantErr: ErrTransport},
		{name: "empty reply error", err: llms.ErrEmptyReply, wantErr: ErrEmptyReply},
		{name: "blank reply", reply: "  ", wantErr: ErrEmptyReply},
		{name: "unclassified error", err: errors.New("boom"), wantErr: ErrTransport},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			h.model.mu.Lock()
			h.model.replies = []string{tc.reply}
			h.model.err = tc.err
			h.model.mu.Unlock()

			_, err := h.orchestrator.SubmitUserInput(context.Background(), "三")
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
			turns := h.orchestrator.History().Turns()
			if len(turns) != len(seed) {
				t.Fatalf("expected %d turns, got %d", len(seed), len(turns))
			}
			if turns[len(turns)-1].ID != seed[len(seed)-1].ID {
				t.Fatal("expected the seeded history to be untouched")
			}
		})
	}
}

func TestSubmitUserInputIsSingleFlight(t *testing.T) {
	h := newHarness(t, nil, nil)
	h.model.replies = []string{"一つ目"}
	h.model.entered = make(chan struct{}, 1)
	h.model.release = make(chan struct{})

	type result struct {
		reply *Reply
		err   error
	}
	first := make(chan result, 1)
	go func() {
		reply, err := h.orchestrator.SubmitUserInput(context.Background(), "first")
		first <- result{reply, err}
	}()
	<-h.model.entered

	pending, ok := h.orchestrator.PendingRequest()
	if !ok || pending.SubmittedText != "first" || pending.Status != RequestPending {
		t.Fatalf("expected the first request to be pending, got %+v", pending)
	}

	statesBefore := h.states.get()
	if _, err := h.orchestrator.SubmitUserInput(context.Background(), "second"); !errors.Is(err, ErrConcurrency) {
		t.Fatalf("expected ErrConcurrency, got %v", err)
	}
	if h.orchestrator.History().Len() != 1 {
		t.Fatalf("expected only the first user turn, got %d turns", h.orchestrator.History().Len())
	}
	if got := h.states.get(); !slices.Equal(got, statesBefore) {
		t.Fatalf("expected states %v to be untouched, got %v", statesBefore, got)
	}
	if err := h.orchestrator.Reset(); !errors.Is(err, ErrConcurrency) {
		t.Fatalf("expected reset to be rejected while pending, got %v", err)
	}

	close(h.model.release)
	res := <-first
	if res.err != nil {
		t.Fatalf("unexpected error: %v", res.err)
	}
	waitDone(t, res.reply)
	if h.model.calls() != 1 {
		t.Fatalf("expected one model call, got %d", h.model.calls())
	}
}

func TestSubmitUserInputSendsHistoryWindow(t *testing.T) {
	var seed []llms.Turn
	for i := range 25 {
		seed = append(seed, llms.NewUserTurn(fmt.Sprintf("q%d", i)), llms.NewModelTurn(fmt.Sprintf("a%d", i)))
	}
	h := newHarness(t, nil, nil, WithHistory(seed...))
	h.model.replies = []string{"ok"}

	reply, err := h.orchestrator.SubmitUserInput(context.Background(), "latest")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	waitDone(t, reply)

	turns := h.model.lastRequest(t).Turns
	if len(turns) != 2*DefaultHistoryWindow {
		t.Fatalf("expected %d turns, got %d", 2*DefaultHistoryWindow, len(turns))
	}
	if turns[len(turns)-1].Text != "latest" {
		t.Fatalf("expected the new input last, got %q", turns[len(turns)-1].Text)
	}
	if turns[0].Text != "a5" {
		t.Fatalf("expected the window to start at a5, got %q", turns[0].Text)
	}
}

func TestSubmitUserInputInterruptsRunningPresentation(t *testing.T) {
	h := newHarness(t, &fakeEngine{}, nil, WithRevealInterval(time.Hour))
	h.model.replies = []string{"長い返事です", "次"}

	first, err := h.orchestrator.SubmitUserInput(context.Background(), "一回目")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertNotDone(t, first)

	second, err := h.orchestrator.SubmitUserInput(context.Background(), "二回目")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	waitDone(t, first)

	h.engine.mu.Lock()
	cancels := h.engine.cancels
	h.engine.mu.Unlock()
	if cancels == 0 {
		t.Fatal("expected the first reply's speech to be cancelled")
	}

	var revealed []string
	h.events.mu.Lock()
	for _, event := range h.events.events {
		if completed, ok := event.(events.AssistantRevealCompleted); ok {
			revealed = append(revealed, completed.Text)
		}
	}
	h.events.mu.Unlock()
	if !slices.Equal(revealed, []string{"長い返事です"}) {
		t.Fatalf("expected the first reply to be fully revealed, got %v", revealed)
	}

	h.states.waitFor(t,
		presentation.Thinking, presentation.Talking, presentation.Idle,
		presentation.Thinking, presentation.Talking,
	)
	if h.orchestrator.History().Len() != 4 {
		t.Fatalf("expected 4 turns, got %d", h.orchestrator.History().Len())
	}
	assertNotDone(t, second)
}

func TestStopSpeakingKeepsReveal(t *testing.T) {
	h := newHarness(t, &fakeEngine{}, nil, WithRevealInterval(time.Hour))
	h.model.replies = []string{"まだ続く"}

	reply, err := h.orchestrator.SubmitUserInput(context.Background(), "hi")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := h.orchestrator.StopSpeaking(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := h.orchestrator.StopSpeaking(); err != nil {
		t.Fatalf("unexpected error on second stop: %v", err)
	}
	if h.orchestrator.IsSpeaking() {
		t.Fatal("expected speech to be stopped")
	}
	assertNotDone(t, reply)
	if state := h.orchestrator.Presentation().State; state != presentation.Talking {
		t.Fatalf("expected talking while the reveal runs, got %s", state)
	}
}

func TestResetClearsHistory(t *testing.T) {
	h := newHarness(t, nil, nil, WithHistory(llms.NewUserTurn("a"), llms.NewModelTurn("b")))

	if err := h.orchestrator.Reset(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.orchestrator.History().Len() != 0 {
		t.Fatalf("expected empty history, got %d turns", h.orchestrator.History().Len())
	}
}

func TestSubmitUserInputAfterClose(t *testing.T) {
	h := newHarness(t, nil, nil)

	if err := h.orchestrator.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := h.orchestrator.SubmitUserInput(context.Background(), "hello"); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestReplyArrivingAfterCloseIsNotSpoken(t *testing.T) {
	engine := &fakeEngine{}
	h := newHarness(t, engine, nil)
	h.model.replies = []string{"さようなら"}
	h.model.entered = make(chan struct{}, 1)
	h.model.release = make(chan struct{})

	type result struct {
		reply *Reply
		err   error
	}
	done := make(chan result, 1)
	go func() {
		reply, err := h.orchestrator.SubmitUserInput(context.Background(), "またね")
		done <- result{reply, err}
	}()
	<-h.model.entered

	if err := h.orchestrator.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	close(h.model.release)

	r := <-done
	if r.err != nil {
		t.Fatalf("unexpected error: %v", r.err)
	}
	waitDone(t, r.reply)

	if spoken := engine.spokenTexts(); len(spoken) != 0 {
		t.Fatalf("expected nothing spoken after close, got %v", spoken)
	}
	h.states.waitFor(t, presentation.Thinking, presentation.Talking, presentation.Idle)
}

func TestSubmitUserInputWithoutModel(t *testing.T) {
	o := NewOrchestrator()
	if _, err := o.SubmitUserInput(context.Background(), "hello"); !errors.Is(err, ErrUnsupportedCapability) {
		t.Fatalf("expected ErrUnsupportedCapability, got %v", err)
	}
}

func TestCapabilities(t *testing.T) {
	h := newHarness(t, nil, nil)
	capabilities := h.orchestrator.Capabilities()
	if capabilities.RecognitionAvailable || capabilities.SynthesisAvailable {
		t.Fatalf("expected no capabilities, got %+v", capabilities)
	}
	if len(capabilities.Notes()) != 2 {
		t.Fatalf("expected two notes, got %v", capabilities.Notes())
	}

	h = newHarness(t, &fakeEngine{}, &fakeRecognizer{})
	capabilities = h.orchestrator.Capabilities()
	if !capabilities.RecognitionAvailable || !capabilities.SynthesisAvailable {
		t.Fatalf("expected both capabilities, got %+v", capabilities)
	}
	if len(capabilities.Notes()) != 0 {
		t.Fatalf("expected no notes, got %v", capabilities.Notes())
	}
}
