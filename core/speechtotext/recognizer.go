package speechtotext

import (
	"context"
	"errors"
)

var (
	// ErrNoSpeech is reported by recognizers when the capture heard nothing.
	ErrNoSpeech = errors.New("no speech detected")
	// ErrUnsupported is returned when no recognizer is available.
	ErrUnsupported = errors.New("speech recognition unsupported")
	// ErrAlreadyCapturing is returned by Start while a capture is active.
	ErrAlreadyCapturing = errors.New("capture already active")
)

// Recognizer captures a single utterance and reports it through the
// callbacks in the options. Recognize returns once the capture started.
//
// Cancelling ctx or calling Stop on the returned capture ends it. Callbacks
// delivered after that are ignored by the [Controller].
type Recognizer interface {
	Recognize(ctx context.Context, opts ...RecognitionOption) (Capture, error)
}

type Capture interface {
	Stop() error
}

// CaptureFunc adapts a function to [Capture].
type CaptureFunc func() error

func (f CaptureFunc) Stop() error { return f() }
