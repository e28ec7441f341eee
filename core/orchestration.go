// Package orchestration runs the turns of a persona conversation: it accepts
// typed or recognized input, asks the model for a reply, and presents the
// reply as speech and paced text while keeping the avatar presentation state
// in sync.
package orchestration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/koscakluka/ema-persona/core/conversations"
	"github.com/koscakluka/ema-persona/core/events"
	"github.com/koscakluka/ema-persona/core/llms"
	"github.com/koscakluka/ema-persona/core/presentation"
	"github.com/koscakluka/ema-persona/core/speechtotext"
	"github.com/koscakluka/ema-persona/core/texttospeech"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

type Orchestrator struct {
	history   *conversations.History
	machine   *presentation.Machine
	speechIn  *speechtotext.Controller
	speechOut *texttospeech.Controller
	model     llms.ModelClient

	recognizer       speechtotext.Recognizer
	engine           texttospeech.Engine
	speechInOptions  []speechtotext.ControllerOption
	speechOutOptions []texttospeech.ControllerOption
	capabilities     Capabilities

	persona          string
	historyWindow    int
	generationParams llms.GenerationParams
	speechParams     texttospeech.SpeechParams
	revealInterval   time.Duration
	initialTurns     []llms.Turn
	now              func() time.Time

	stateObservers []presentation.Observer
	eventHandlers  []func(events.Event)
	callbacks      eventCallbacks
	emitEvent      eventEmitter
	onError        func(error)

	mu      sync.Mutex
	pending *Request
	// listenStarting holds off submissions from the moment StartListening
	// is accepted until its capture is active or has failed to start.
	listenStarting bool
	activeTurn     *presentationTurn
	closed         bool
	closeOnce      sync.Once
}

// NewOrchestrator creates an orchestrator in the Idle state. Speech input and
// output are available only when a recognizer and an engine are given.
func NewOrchestrator(opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		persona:          DefaultPersona,
		historyWindow:    DefaultHistoryWindow,
		generationParams: llms.DefaultGenerationParams(),
		speechParams:     texttospeech.DefaultSpeechParams(),
		revealInterval:   DefaultRevealInterval,
		now:              time.Now,
		onError:          func(error) {},
	}
	for _, opt := range opts {
		opt(o)
	}

	emitters := []eventEmitter{newCallbackEventEmitter(o.callbacks)}
	for _, handler := range o.eventHandlers {
		emitters = append(emitters, eventEmitter(handler))
	}
	o.emitEvent = fanOutEventEmitter(emitters...)

	machineOptions := []presentation.MachineOption{
		presentation.WithClock(o.now),
		presentation.WithObserver(func(snapshot presentation.Snapshot) {
			o.emitEvent(events.NewPresentationStateChanged(snapshot))
		}),
	}
	for _, observer := range o.stateObservers {
		machineOptions = append(machineOptions, presentation.WithObserver(observer))
	}
	o.machine = presentation.NewMachine(machineOptions...)

	// an empty history cannot fail
	o.history, _ = conversations.NewHistory()
	for _, turn := range o.initialTurns {
		if err := o.history.Append(turn); err != nil {
			logger.Warn("failed to restore turn", "turn_id", turn.ID, "error", err)
		}
	}

	o.speechIn = speechtotext.NewController(o.recognizer, append(o.speechInOptions,
		speechtotext.WithCaptureStartedCallback(o.onCaptureStarted),
		speechtotext.WithRecognizedCallback(o.onRecognized),
		speechtotext.WithCaptureEndedCallback(o.onCaptureEnded),
		speechtotext.WithCaptureFailedCallback(o.onCaptureFailed),
	)...)
	o.speechOut = texttospeech.NewController(o.engine, append(o.speechOutOptions,
		texttospeech.WithSpeakingStartedCallback(func(u *texttospeech.Utterance) {
			o.emitEvent(events.NewAssistantSpeechStarted(u.ID, u.Text))
		}),
		texttospeech.WithSpeakingEndedCallback(func(u *texttospeech.Utterance) {
			o.emitEvent(events.NewAssistantSpeechEnded(u.ID))
		}),
	)...)

	o.capabilities = Capabilities{
		RecognitionAvailable: o.speechIn.Available(),
		SynthesisAvailable:   o.speechOut.Available(),
	}
	return o
}

// SubmitUserInput sends text to the model and starts presenting the reply.
//
// Input that is empty after trimming fails with ErrValidation and input
// arriving while another request is pending fails with ErrConcurrency;
// neither changes any state. A failed model call removes the user turn
// again and returns an error matching ErrTransport or ErrEmptyReply.
//
// On success the reply is spoken and revealed concurrently and the returned
// Reply's Done channel closes once both have finished.
func (o *Orchestrator) SubmitUserInput(ctx context.Context, text string) (*Reply, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrValidation
	}
	if o.model == nil {
		return nil, fmt.Errorf("%w: no model client configured", ErrUnsupportedCapability)
	}

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil, ErrClosed
	}
	if o.pending != nil || o.listenStarting {
		o.mu.Unlock()
		return nil, ErrConcurrency
	}
	request := newRequest(text, o.now())
	o.pending = request
	o.mu.Unlock()

	ctx, span := tracer.Start(ctx, "submit user input")
	defer span.End()
	span.SetAttributes(attribute.String("request.id", request.ID))

	// barge-in: whatever is being presented or captured gives way
	o.interruptPresentation()
	if err := o.speechIn.Stop(); err != nil {
		logger.Warn("failed to stop listening", "error", err)
	}

	if err := o.history.Append(llms.NewUserTurn(text)); err != nil {
		err = fmt.Errorf("failed to record user turn: %w", err)
		o.finishRequest(ctx, request, err)
		return nil, err
	}
	o.fire(presentation.TriggerSubmitAccepted)
	o.emitEvent(events.NewTurnStarted(request.ID, text))

	reply, err := o.generate(ctx)
	if err != nil {
		if _, rollbackErr := o.history.RollbackLast(); rollbackErr != nil {
			logger.Error("failed to roll back user turn", "error", rollbackErr)
		}
		o.fire(presentation.TriggerRequestFailed)
		err = fmt.Errorf("failed to get reply: %w", err)
		o.finishRequest(ctx, request, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	modelTurn := llms.NewModelTurn(reply)
	if err := o.history.Append(modelTurn); err != nil {
		logger.Error("failed to record model turn", "error", err)
	}
	o.fire(presentation.TriggerRequestSucceeded)
	pt := o.present(ctx, modelTurn)
	o.finishRequest(ctx, request, nil)

	return &Reply{RequestID: request.ID, Turn: modelTurn, presentation: pt}, nil
}

func (o *Orchestrator) generate(ctx context.Context) (string, error) {
	ctx, span := tracer.Start(ctx, "generate reply")
	defer span.End()

	turns := o.history.WindowForRequest(o.historyWindow)
	span.SetAttributes(attribute.Int("request.turns", len(turns)))

	reply, err := o.model.Generate(ctx, llms.NewRequest(
		llms.WithPersona(o.persona),
		llms.WithTurns(turns),
		llms.WithGenerationParams(o.generationParams),
	))
	if err == nil && strings.TrimSpace(reply) == "" {
		err = ErrEmptyReply
	}
	if err != nil {
		err = classifyModelError(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	return reply, nil
}

func (o *Orchestrator) finishRequest(ctx context.Context, request *Request, err error) {
	outcome := RequestSucceeded
	if err != nil {
		outcome = RequestFailed
	}

	o.mu.Lock()
	request.Status = outcome
	if o.pending == request {
		o.pending = nil
	}
	o.mu.Unlock()

	if err != nil {
		o.emitEvent(events.NewTurnFailed(request.ID, err))
	} else {
		o.emitEvent(events.NewTurnCompleted(request.ID))
	}

	attrs := metric.WithAttributes(attribute.String("outcome", string(outcome)))
	if requestCounter != nil {
		requestCounter.Add(ctx, 1, attrs)
	}
	if requestDuration != nil {
		requestDuration.Record(ctx, o.now().Sub(request.SubmittedAt).Seconds(), attrs)
	}
}

// PendingRequest returns a copy of the request in flight, if any.
func (o *Orchestrator) PendingRequest() (Request, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.pending == nil {
		return Request{}, false
	}
	return *o.pending, true
}

// StartListening begins a single-utterance capture. Speech output stops
// first and a running presentation moves straight from Talking to
// Listening; a recognized utterance is submitted like typed input.
func (o *Orchestrator) StartListening(ctx context.Context) error {
	if !o.capabilities.RecognitionAvailable {
		return classifyCapabilityError(speechtotext.ErrUnsupported)
	}

	o.mu.Lock()
	switch {
	case o.closed:
		o.mu.Unlock()
		return ErrClosed
	case o.pending != nil, o.listenStarting:
		o.mu.Unlock()
		return ErrConcurrency
	}
	o.listenStarting = true
	o.mu.Unlock()
	defer o.releaseListenReservation()

	// Talking goes straight to Listening once the capture starts
	handedOver := o.handOverPresentation()
	if err := o.speechIn.Start(ctx); err != nil {
		if handedOver {
			if _, fireErr := o.machine.FireFrom(presentation.Talking, presentation.TriggerPresentationJoined); fireErr != nil {
				logger.Warn("failed to leave talking state", "error", fireErr)
			}
		}
		return fmt.Errorf("failed to start listening: %w", classifyCapabilityError(err))
	}

	if o.speechIn.State() == speechtotext.StateCapturing && o.machine.State() != presentation.Listening {
		if err := o.speechIn.Stop(); err != nil {
			logger.Warn("failed to stop rejected capture", "error", err)
		}
		return ErrConcurrency
	}
	return nil
}

func (o *Orchestrator) releaseListenReservation() {
	o.mu.Lock()
	o.listenStarting = false
	o.mu.Unlock()
}

// StopListening cancels an active capture. It does nothing when idle.
func (o *Orchestrator) StopListening() error {
	return o.speechIn.Stop()
}

// IsListening reports whether a capture is active.
func (o *Orchestrator) IsListening() bool {
	return o.speechIn.State() == speechtotext.StateCapturing
}

// StopSpeaking silences the current reply. The text reveal keeps going.
func (o *Orchestrator) StopSpeaking() error {
	return o.speechOut.Stop()
}

// IsSpeaking reports whether a reply is being spoken.
func (o *Orchestrator) IsSpeaking() bool {
	return o.speechOut.Speaking()
}

// Reset forgets the conversation. It fails with ErrConcurrency while a
// request is pending.
func (o *Orchestrator) Reset() error {
	o.mu.Lock()
	if o.pending != nil {
		o.mu.Unlock()
		return ErrConcurrency
	}
	o.mu.Unlock()

	o.interruptPresentation()

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.pending != nil {
		return ErrConcurrency
	}
	o.history.Clear()
	return nil
}

// History is a read-only view of the conversation.
func (o *Orchestrator) History() conversations.View {
	return o.history
}

// Presentation returns the current presentation state.
func (o *Orchestrator) Presentation() presentation.Snapshot {
	return o.machine.Current()
}

// PresentationSource is what renderers driven by [presentation.Drive] read.
func (o *Orchestrator) PresentationSource() presentation.Source {
	return o.machine
}

// Close stops listening and speaking. Later submissions fail with ErrClosed.
func (o *Orchestrator) Close() error {
	var errs []error
	o.closeOnce.Do(func() {
		o.mu.Lock()
		o.closed = true
		o.mu.Unlock()

		if err := o.speechIn.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop listening: %w", err))
		}
		o.interruptPresentation()
		if err := o.speechOut.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop speaking: %w", err))
		}
	})

	err := errors.Join(errs...)
	if err != nil {
		logger.Warn("failed to close orchestrator cleanly", "error", err)
	}
	return err
}

func (o *Orchestrator) fire(trigger presentation.Trigger) {
	if _, err := o.machine.Fire(trigger); err != nil {
		logger.Warn("unexpected presentation transition", "trigger", trigger, "error", err)
	}
}

// onCaptureStarted runs inside speechIn.Start. From here on the capture is
// active and a submission stops it instead of being rejected.
func (o *Orchestrator) onCaptureStarted() {
	o.fire(presentation.TriggerCaptureStarted)
	o.releaseListenReservation()
	o.emitEvent(events.NewCaptureStarted())
}

func (o *Orchestrator) onCaptureEnded() {
	if _, err := o.machine.FireFrom(presentation.Listening, presentation.TriggerCaptureEnded); err != nil {
		logger.Warn("failed to leave listening state", "error", err)
	}
	o.emitEvent(events.NewCaptureEnded())
}

func (o *Orchestrator) onCaptureFailed(err error) {
	if _, fireErr := o.machine.FireFrom(presentation.Listening, presentation.TriggerCaptureEnded); fireErr != nil {
		logger.Warn("failed to leave listening state", "error", fireErr)
	}
	o.emitEvent(events.NewCaptureFailed(err))
	o.onError(fmt.Errorf("speech recognition failed: %w", err))
}

// onRecognized submits recognized speech on its own goroutine; the capture
// callback must not wait for the model.
func (o *Orchestrator) onRecognized(transcript string) {
	o.emitEvent(events.NewUserTranscriptFinal(transcript))

	go func() {
		if _, err := o.SubmitUserInput(context.Background(), transcript); err != nil {
			if errors.Is(err, ErrValidation) || errors.Is(err, ErrConcurrency) || errors.Is(err, ErrClosed) {
				if _, fireErr := o.machine.FireFrom(presentation.Listening, presentation.TriggerCaptureEnded); fireErr != nil {
					logger.Warn("failed to leave listening state", "error", fireErr)
				}
			}
			o.onError(fmt.Errorf("failed to submit recognized speech: %w", err))
		}
	}()
}
