package texttospeech

const DefaultLanguage = "ja-JP"

// SpeechParams shape how an utterance sounds. Pitch, Rate and Volume are
// multipliers around the engine's neutral value of 1.
type SpeechParams struct {
	Language string
	Pitch    float64
	Rate     float64
	Volume   float64
}

func DefaultSpeechParams() SpeechParams {
	return SpeechParams{
		Language: DefaultLanguage,
		Pitch:    1.3,
		Rate:     1.1,
		Volume:   1,
	}
}

type UtteranceOptions struct {
	// StartedCallback is called when the engine starts producing sound.
	StartedCallback func()
	// EndedCallback is called when the utterance finished playing.
	EndedCallback func()
	// ErrorCallback is called when the engine gave up on the utterance.
	ErrorCallback func(error)
}

type UtteranceOption func(*UtteranceOptions)

// NewUtteranceOptions applies opts over no-op callbacks.
func NewUtteranceOptions(opts ...UtteranceOption) UtteranceOptions {
	options := UtteranceOptions{
		StartedCallback: func() {},
		EndedCallback:   func() {},
		ErrorCallback:   func(error) {},
	}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}

func WithStartedCallback(callback func()) UtteranceOption {
	return func(o *UtteranceOptions) {
		if callback != nil {
			o.StartedCallback = callback
		}
	}
}

func WithEndedCallback(callback func()) UtteranceOption {
	return func(o *UtteranceOptions) {
		if callback != nil {
			o.EndedCallback = callback
		}
	}
}

func WithErrorCallback(callback func(error)) UtteranceOption {
	return func(o *UtteranceOptions) {
		if callback != nil {
			o.ErrorCallback = callback
		}
	}
}
