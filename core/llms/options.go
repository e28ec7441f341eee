package llms

import "slices"

// GenerationParams tune a single model call.
type GenerationParams struct {
	Temperature     float64
	MaxOutputTokens int
	TopP            float64
}

// DefaultGenerationParams returns the parameters used when none are given.
func DefaultGenerationParams() GenerationParams {
	return GenerationParams{
		Temperature:     0.9,
		MaxOutputTokens: 512,
		TopP:            0.95,
	}
}

// Request is everything a model client needs to produce the next reply.
// Turns are ordered oldest first and end with the user turn being answered.
type Request struct {
	Persona string
	Turns   []Turn
	Params  GenerationParams
}

type RequestOption func(*Request)

// NewRequest builds a request with default generation parameters.
func NewRequest(opts ...RequestOption) Request {
	request := Request{Params: DefaultGenerationParams()}
	for _, opt := range opts {
		opt(&request)
	}
	return request
}

// WithPersona sets the system instruction for the request.
// Repeating this option will overwrite the previous persona.
func WithPersona(persona string) RequestOption {
	return func(r *Request) {
		r.Persona = persona
	}
}

// WithTurns sets the conversation window sent with the request. The slice is
// copied.
func WithTurns(turns []Turn) RequestOption {
	return func(r *Request) {
		r.Turns = slices.Clone(turns)
	}
}

func WithGenerationParams(params GenerationParams) RequestOption {
	return func(r *Request) {
		r.Params = params
	}
}
