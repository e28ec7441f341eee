package texttospeech

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultWatchdogInterval is how often a live utterance checks for a stalled
// engine.
const DefaultWatchdogInterval = 5 * time.Second

// Utterance is one Speak call. It is also the token used to drop engine
// callbacks that arrive after the utterance was replaced or stopped.
type Utterance struct {
	ID   string
	Text string

	// guarded by the controller mutex
	started bool
	ended   bool

	cancel          context.CancelFunc
	done            chan struct{}
	watchdogStopped chan struct{}
	span            trace.Span
}

// Done is closed when the utterance ended for any reason.
func (u *Utterance) Done() <-chan struct{} {
	return u.done
}

// Controller keeps at most one utterance alive on an [Engine].
type Controller struct {
	engine           Engine
	preference       VoicePreference
	watchdogInterval time.Duration

	onStarted func(*Utterance)
	onEnded   func(*Utterance)

	mu      sync.Mutex
	current *Utterance
}

type ControllerOption func(*Controller)

func WithVoicePreference(preference VoicePreference) ControllerOption {
	return func(c *Controller) {
		c.preference = preference
	}
}

func WithWatchdogInterval(interval time.Duration) ControllerOption {
	return func(c *Controller) {
		if interval > 0 {
			c.watchdogInterval = interval
		}
	}
}

func WithSpeakingStartedCallback(callback func(*Utterance)) ControllerOption {
	return func(c *Controller) {
		if callback != nil {
			c.onStarted = callback
		}
	}
}

func WithSpeakingEndedCallback(callback func(*Utterance)) ControllerOption {
	return func(c *Controller) {
		if callback != nil {
			c.onEnded = callback
		}
	}
}

// NewController wraps engine. A nil engine yields a controller whose Speak
// always fails with ErrUnsupported.
func NewController(engine Engine, opts ...ControllerOption) *Controller {
	c := &Controller{
		engine:           engine,
		preference:       DefaultVoicePreference(),
		watchdogInterval: DefaultWatchdogInterval,
		onStarted:        func(*Utterance) {},
		onEnded:          func(*Utterance) {},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) Available() bool {
	return c != nil && c.engine != nil
}

// Speaking reports whether an utterance is live.
func (c *Controller) Speaking() bool {
	if c == nil {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current != nil
}

// Speak replaces whatever is being spoken with text. The returned utterance
// is live until its Done channel closes.
func (c *Controller) Speak(ctx context.Context, text string, params SpeechParams) (*Utterance, error) {
	if !c.Available() {
		return nil, ErrUnsupported
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}

	utteranceCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	utteranceCtx, span := tracer.Start(utteranceCtx, "speak utterance")
	utterance := &Utterance{
		ID:              uuid.NewString(),
		Text:            text,
		cancel:          cancel,
		done:            make(chan struct{}),
		watchdogStopped: make(chan struct{}),
		span:            span,
	}
	span.SetAttributes(
		attribute.String("utterance.id", utterance.ID),
		attribute.Int("utterance.length", len(text)),
	)

	c.mu.Lock()
	previous := c.current
	c.current = utterance
	c.mu.Unlock()
	if previous != nil {
		_ = c.cancelEngine()
		c.finish(previous, nil)
	}

	voice := SelectVoice(c.engine.Voices(), c.preference)
	if voice != nil {
		span.SetAttributes(attribute.String("utterance.voice", voice.ID))
	}

	go c.watch(utteranceCtx, utterance)

	err := c.engine.Speak(utteranceCtx, Request{Text: text, Voice: voice, Params: params},
		WithStartedCallback(func() { c.start(utterance) }),
		WithEndedCallback(func() { c.finish(utterance, nil) }),
		WithErrorCallback(func(err error) { c.finish(utterance, err) }),
	)
	if err != nil {
		err = fmt.Errorf("failed to speak: %w", err)
		c.finish(utterance, err)
		return nil, err
	}
	return utterance, nil
}

// Stop ends the current utterance. It is safe to call at any time and emits
// nothing when no utterance is live.
func (c *Controller) Stop() error {
	if c == nil {
		return nil
	}

	c.mu.Lock()
	utterance := c.current
	c.current = nil
	c.mu.Unlock()
	if utterance == nil {
		return nil
	}

	err := c.cancelEngine()
	c.finish(utterance, nil)
	return err
}

func (c *Controller) cancelEngine() error {
	if err := c.engine.Cancel(); err != nil {
		logger.Warn("failed to cancel speech engine", "error", err)
		return fmt.Errorf("failed to cancel speech: %w", err)
	}
	return nil
}

func (c *Controller) start(utterance *Utterance) {
	c.mu.Lock()
	if c.current != utterance || utterance.started || utterance.ended {
		c.mu.Unlock()
		return
	}
	utterance.started = true
	c.mu.Unlock()

	utterance.span.AddEvent("speaking started")
	c.onStarted(utterance)
}

// finish ends utterance once. SpeakingEnded is only reported for utterances
// that reported a start.
func (c *Controller) finish(utterance *Utterance, err error) {
	c.mu.Lock()
	if utterance.ended {
		c.mu.Unlock()
		return
	}
	utterance.ended = true
	started := utterance.started
	if c.current == utterance {
		c.current = nil
	}
	c.mu.Unlock()

	utterance.cancel()
	close(utterance.done)
	if err != nil {
		utterance.span.RecordError(err)
		utterance.span.SetStatus(codes.Error, err.Error())
	}
	utterance.span.End()

	if started {
		c.onEnded(utterance)
	}
}

// watch resumes a stalled engine until the utterance context is cancelled.
func (c *Controller) watch(ctx context.Context, utterance *Utterance) {
	defer close(utterance.watchdogStopped)

	ticker := time.NewTicker(c.watchdogInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !c.engine.Paused() {
				continue
			}
			utterance.span.AddEvent("resuming paused engine")
			if err := c.engine.Resume(); err != nil {
				logger.Warn("failed to resume speech engine", "error", err)
			}
		}
	}
}
