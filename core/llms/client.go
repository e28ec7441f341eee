package llms

import (
	"context"
	"errors"
)

var (
	// ErrTransport is returned when the model could not be reached or
	// answered with an error payload.
	ErrTransport = errors.New("model transport failed")
	// ErrEmptyReply is returned when the model answered without any text.
	ErrEmptyReply = errors.New("model returned an empty reply")
)

// ModelClient produces the next model reply for a conversation.
//
// Implementations wrap failures so that errors.Is matches either
// ErrTransport or ErrEmptyReply.
type ModelClient interface {
	Generate(ctx context.Context, request Request) (string, error)
}

// ModelClientFunc adapts a function to [ModelClient].
type ModelClientFunc func(ctx context.Context, request Request) (string, error)

func (f ModelClientFunc) Generate(ctx context.Context, request Request) (string, error) {
	return f(ctx, request)
}
