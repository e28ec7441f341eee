package texttospeech

import (
	"context"
	"errors"
)

var (
	// ErrUnsupported is returned when no synthesis engine is available.
	ErrUnsupported = errors.New("speech synthesis unsupported")
	ErrEmptyText   = errors.New("nothing to speak")
)

type Voice struct {
	ID       string
	Name     string
	Language string
	Gender   string
}

type Request struct {
	Text string
	// Voice is nil when the engine default should be used.
	Voice  *Voice
	Params SpeechParams
}

// Engine plays one utterance at a time.
//
// Speak returns once the utterance is queued and reports its progress through
// the callbacks. Cancelling ctx or calling Cancel stops it; engines may skip
// the remaining callbacks after that.
type Engine interface {
	Voices() []Voice
	Speak(ctx context.Context, request Request, opts ...UtteranceOption) error
	Cancel() error

	// Paused reports whether playback stalled with speech still queued.
	Paused() bool
	Resume() error
}
