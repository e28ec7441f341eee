package speechtotext

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type State string

const (
	StateIdle      State = "idle"
	StateCapturing State = "capturing"
)

// Controller runs one single-utterance capture at a time over a [Recognizer]
// and reports each capture through exactly one terminal callback: recognized,
// ended or failed.
type Controller struct {
	recognizer Recognizer
	language   string

	onStarted    func()
	onRecognized func(transcript string)
	onEnded      func()
	onFailed     func(err error)

	mu     sync.Mutex
	active *activeCapture
}

// activeCapture doubles as the cancellation token of a capture: callbacks
// carry the pointer they were issued for and are dropped once it is no
// longer the active one.
type activeCapture struct {
	cancel context.CancelFunc
	handle Capture
	span   trace.Span
}

type ControllerOption func(*Controller)

func WithRecognitionLanguage(language string) ControllerOption {
	return func(c *Controller) {
		if language != "" {
			c.language = language
		}
	}
}

func WithCaptureStartedCallback(callback func()) ControllerOption {
	return func(c *Controller) {
		if callback != nil {
			c.onStarted = callback
		}
	}
}

func WithRecognizedCallback(callback func(transcript string)) ControllerOption {
	return func(c *Controller) {
		if callback != nil {
			c.onRecognized = callback
		}
	}
}

func WithCaptureEndedCallback(callback func()) ControllerOption {
	return func(c *Controller) {
		if callback != nil {
			c.onEnded = callback
		}
	}
}

func WithCaptureFailedCallback(callback func(err error)) ControllerOption {
	return func(c *Controller) {
		if callback != nil {
			c.onFailed = callback
		}
	}
}

// NewController wraps recognizer. A nil recognizer yields a controller whose
// Start always fails with ErrUnsupported.
func NewController(recognizer Recognizer, opts ...ControllerOption) *Controller {
	c := &Controller{
		recognizer:   recognizer,
		language:     DefaultLanguage,
		onStarted:    func() {},
		onRecognized: func(string) {},
		onEnded:      func() {},
		onFailed:     func(error) {},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Available reports whether a recognizer is configured.
func (c *Controller) Available() bool {
	return c != nil && c.recognizer != nil
}

func (c *Controller) State() State {
	if c == nil {
		return StateIdle
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active != nil {
		return StateCapturing
	}
	return StateIdle
}

// Start begins a capture and returns without waiting for its outcome. The
// capture is not bound to ctx cancellation; use Stop to cancel it. When the
// recognizer cannot start, the error is returned and the capture is reported
// as ended, not failed.
func (c *Controller) Start(ctx context.Context) error {
	if !c.Available() {
		return ErrUnsupported
	}

	c.mu.Lock()
	if c.active != nil {
		c.mu.Unlock()
		return ErrAlreadyCapturing
	}
	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	ctx, span := tracer.Start(ctx, "capture speech")
	span.SetAttributes(attribute.String("capture.language", c.language))
	capture := &activeCapture{cancel: cancel, span: span}
	c.active = capture
	c.mu.Unlock()

	c.onStarted()

	handle, err := c.recognizer.Recognize(ctx,
		WithLanguage(c.language),
		WithResultCallback(func(transcript string) { c.finishWithTranscript(capture, transcript) }),
		WithEndedCallback(func() { c.finishWithTranscript(capture, "") }),
		WithErrorCallback(func(err error) { c.finishWithError(capture, err) }),
	)
	if err != nil {
		// the caller gets the error; the capture itself only ends
		err = fmt.Errorf("failed to start recognition: %w", err)
		if c.release(capture) != nil {
			capture.span.RecordError(err)
			capture.span.SetStatus(codes.Error, err.Error())
			capture.span.End()
			c.onEnded()
		}
		return err
	}

	c.mu.Lock()
	if c.active == capture {
		capture.handle = handle
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	// the capture already finished or was stopped while starting
	if handle != nil {
		if err := handle.Stop(); err != nil {
			logger.Warn("failed to stop finished capture", "error", err)
		}
	}
	return nil
}

// Stop cancels the active capture and reports it as ended. It does nothing
// when no capture is active.
func (c *Controller) Stop() error {
	if c == nil {
		return nil
	}

	capture := c.release(nil)
	if capture == nil {
		return nil
	}

	var err error
	if capture.handle != nil {
		if err = capture.handle.Stop(); err != nil {
			err = fmt.Errorf("failed to stop capture: %w", err)
			capture.span.RecordError(err)
		}
	}
	capture.span.AddEvent("capture stopped")
	capture.span.End()
	c.onEnded()
	return err
}

func (c *Controller) finishWithTranscript(capture *activeCapture, transcript string) {
	if c.release(capture) == nil {
		return
	}

	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		capture.span.AddEvent("capture ended without transcript")
		capture.span.End()
		c.onEnded()
		return
	}

	capture.span.SetAttributes(attribute.Int("capture.transcript_length", len(transcript)))
	capture.span.End()
	c.onRecognized(transcript)
}

func (c *Controller) finishWithError(capture *activeCapture, err error) {
	if c.release(capture) == nil {
		return
	}

	if errors.Is(err, ErrNoSpeech) {
		capture.span.AddEvent("no speech detected")
		capture.span.End()
		c.onEnded()
		return
	}

	capture.span.RecordError(err)
	capture.span.SetStatus(codes.Error, err.Error())
	capture.span.End()
	c.onFailed(err)
}

// release clears the active capture and cancels it. With a non-nil expected
// capture it only does so when that capture is still the active one.
func (c *Controller) release(expected *activeCapture) *activeCapture {
	c.mu.Lock()
	capture := c.active
	if capture == nil || (expected != nil && capture != expected) {
		c.mu.Unlock()
		return nil
	}
	c.active = nil
	c.mu.Unlock()

	capture.cancel()
	return capture
}
