package orchestration

import (
	"context"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/koscakluka/ema-persona/core/events"
	"github.com/koscakluka/ema-persona/core/llms"
	"github.com/koscakluka/ema-persona/core/presentation"
	"github.com/koscakluka/ema-persona/core/speechtotext"
	"github.com/koscakluka/ema-persona/core/texttospeech"
)

const waitTimeout = 2 * time.Second

type fakeModel struct {
	mu       sync.Mutex
	requests []llms.Request
	replies  []string
	err      error

	entered chan struct{}
	release chan struct{}
}

func (m *fakeModel) Generate(ctx context.Context, request llms.Request) (string, error) {
	m.mu.Lock()
	m.requests = append(m.requests, request)
	reply := ""
	if len(m.replies) > 0 {
		reply = m.replies[0]
		m.replies = m.replies[1:]
	}
	err := m.err
	entered, release := m.entered, m.release
	m.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if release != nil {
		<-release
	}
	return reply, err
}

func (m *fakeModel) lastRequest(t *testing.T) llms.Request {
	t.Helper()

	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.requests) == 0 {
		t.Fatal("expected a model request")
	}
	return m.requests[len(m.requests)-1]
}

func (m *fakeModel) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// fakeEngine starts every utterance right away. Utterances end only when the
// test says so, unless autoEnd is set.
type fakeEngine struct {
	mu      sync.Mutex
	spoken  []string
	current texttospeech.UtteranceOptions
	cancels int
	autoEnd bool

	// cancelEntered and cancelRelease hold Cancel until the test lets go
	cancelEntered chan struct{}
	cancelRelease chan struct{}
}

func (e *fakeEngine) Voices() []texttospeech.Voice { return nil }

func (e *fakeEngine) Speak(ctx context.Context, request texttospeech.Request, opts ...texttospeech.UtteranceOption) error {
	options := texttospeech.NewUtteranceOptions(opts...)

	e.mu.Lock()
	e.spoken = append(e.spoken, request.Text)
	e.current = options
	autoEnd := e.autoEnd
	e.mu.Unlock()

	options.StartedCallback()
	if autoEnd {
		options.EndedCallback()
	}
	return nil
}

func (e *fakeEngine) Cancel() error {
	e.mu.Lock()
	e.cancels++
	entered, release := e.cancelEntered, e.cancelRelease
	e.mu.Unlock()

	if entered != nil {
		select {
		case entered <- struct{}{}:
		default:
		}
	}
	if release != nil {
		<-release
	}
	return nil
}

func (e *fakeEngine) Paused() bool  { return false }
func (e *fakeEngine) Resume() error { return nil }

func (e *fakeEngine) end() {
	e.mu.Lock()
	options := e.current
	e.mu.Unlock()
	options.EndedCallback()
}

func (e *fakeEngine) spokenTexts() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.spoken)
}

type fakeRecognizer struct {
	mu       sync.Mutex
	options  []speechtotext.RecognitionOptions
	stops    int
	startErr error
}

func (r *fakeRecognizer) Recognize(ctx context.Context, opts ...speechtotext.RecognitionOption) (speechtotext.Capture, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.options = append(r.options, speechtotext.NewRecognitionOptions(opts...))
	if r.startErr != nil {
		return nil, r.startErr
	}
	return speechtotext.CaptureFunc(func() error {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.stops++
		return nil
	}), nil
}

func (r *fakeRecognizer) last() speechtotext.RecognitionOptions {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.options[len(r.options)-1]
}

type stateLog struct {
	mu     sync.Mutex
	states []presentation.State
}

func (l *stateLog) observe(snapshot presentation.Snapshot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.states = append(l.states, snapshot.State)
}

func (l *stateLog) get() []presentation.State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.states)
}

func (l *stateLog) waitFor(t *testing.T, want ...presentation.State) {
	t.Helper()

	deadline := time.Now().Add(waitTimeout)
	for time.Now().Before(deadline) {
		if slices.Equal(l.get(), want) {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected states %v, got %v", want, l.get())
}

type eventLog struct {
	mu     sync.Mutex
	events []events.Event
}

func (l *eventLog) handle(event events.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
}

func (l *eventLog) kinds() []events.Kind {
	l.mu.Lock()
	defer l.mu.Unlock()
	kinds := make([]events.Kind, 0, len(l.events))
	for _, event := range l.events {
		kinds = append(kinds, event.Kind())
	}
	return kinds
}

func (l *eventLog) waitForKind(t *testing.T, kind events.Kind) {
	t.Helper()

	deadline := time.Now().Add(waitTimeout)
	for time.Now().Before(deadline) {
		if slices.Contains(l.kinds(), kind) {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected a %s event, got %v", kind, l.kinds())
}

type errorLog struct {
	mu   sync.Mutex
	errs []error
}

func (l *errorLog) record(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errs = append(l.errs, err)
}

func (l *errorLog) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.errs)
}

func (l *errorLog) waitForError(t *testing.T) error {
	t.Helper()

	deadline := time.Now().Add(waitTimeout)
	for time.Now().Before(deadline) {
		l.mu.Lock()
		if len(l.errs) > 0 {
			err := l.errs[0]
			l.mu.Unlock()
			return err
		}
		l.mu.Unlock()
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("expected an error to be reported")
	return nil
}

type harness struct {
	orchestrator *Orchestrator
	model        *fakeModel
	engine       *fakeEngine
	recognizer   *fakeRecognizer
	states       *stateLog
	events       *eventLog
	errors       *errorLog
}

// newHarness builds an orchestrator over fakes. engine and recognizer may be
// nil to leave that modality unsupported.
func newHarness(t *testing.T, engine *fakeEngine, recognizer *fakeRecognizer, opts ...OrchestratorOption) *harness {
	t.Helper()

	h := &harness{
		model:      &fakeModel{},
		engine:     engine,
		recognizer: recognizer,
		states:     &stateLog{},
		events:     &eventLog{},
		errors:     &errorLog{},
	}
	base := []OrchestratorOption{
		WithModelClient(h.model),
		WithRevealInterval(0),
		WithStateObserver(h.states.observe),
		WithEventHandler(h.events.handle),
		WithErrorCallback(h.errors.record),
	}
	if engine != nil {
		base = append(base, WithSpeechEngine(engine))
	}
	if recognizer != nil {
		base = append(base, WithRecognizer(recognizer))
	}
	h.orchestrator = NewOrchestrator(append(base, opts...)...)
	t.Cleanup(func() { _ = h.orchestrator.Close() })
	return h
}

func waitDone(t *testing.T, reply *Reply) {
	t.Helper()

	select {
	case <-reply.Done():
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for the reply presentation to finish")
	}
}

func assertNotDone(t *testing.T, reply *Reply) {
	t.Helper()

	select {
	case <-reply.Done():
		t.Fatal("expected the reply presentation to still be running")
	default:
	}
}
