package orchestration

import (
	"errors"
	"fmt"

	"github.com/koscakluka/ema-persona/core/conversations"
	"github.com/koscakluka/ema-persona/core/llms"
	"github.com/koscakluka/ema-persona/core/speechtotext"
	"github.com/koscakluka/ema-persona/core/texttospeech"
)

var (
	// ErrValidation is returned for input that is empty after trimming.
	ErrValidation = errors.New("invalid user input")
	// ErrConcurrency is returned when an operation conflicts with the request
	// in flight or with an active capture.
	ErrConcurrency = errors.New("request already in progress")
	// ErrUnsupportedCapability is returned when speech input or output is used
	// without an engine behind it.
	ErrUnsupportedCapability = errors.New("capability unsupported")
	ErrClosed                = errors.New("orchestrator closed")

	ErrTransport    = llms.ErrTransport
	ErrEmptyReply   = llms.ErrEmptyReply
	ErrEmptyHistory = conversations.ErrEmptyHistory
)

// classifyModelError makes sure a failed model call matches ErrTransport or
// ErrEmptyReply.
func classifyModelError(err error) error {
	if errors.Is(err, ErrTransport) || errors.Is(err, ErrEmptyReply) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrTransport, err)
}

// classifyCapabilityError maps component sentinels onto the orchestrator
// ones while keeping the original in the chain.
func classifyCapabilityError(err error) error {
	switch {
	case errors.Is(err, speechtotext.ErrUnsupported), errors.Is(err, texttospeech.ErrUnsupported):
		return fmt.Errorf("%w: %w", ErrUnsupportedCapability, err)
	case errors.Is(err, speechtotext.ErrAlreadyCapturing):
		return fmt.Errorf("%w: %w", ErrConcurrency, err)
	default:
		return err
	}
}
