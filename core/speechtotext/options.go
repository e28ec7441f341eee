package speechtotext

import "github.com/koscakluka/ema-persona/core/audio"

const DefaultLanguage = "ja-JP"

type RecognitionOptions struct {
	Language string

	// ResultCallback receives the final transcript of the utterance.
	ResultCallback func(transcript string)
	// EndedCallback is called when the capture ended without a transcript.
	EndedCallback func()
	// ErrorCallback is called when the capture failed. ErrNoSpeech is
	// treated as an ended capture.
	ErrorCallback func(err error)

	EncodingInfo audio.EncodingInfo
}

type RecognitionOption func(*RecognitionOptions)

// NewRecognitionOptions applies opts over no-op callbacks and the default
// language.
func NewRecognitionOptions(opts ...RecognitionOption) RecognitionOptions {
	options := RecognitionOptions{
		Language:       DefaultLanguage,
		ResultCallback: func(string) {},
		EndedCallback:  func() {},
		ErrorCallback:  func(error) {},
	}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}

func WithLanguage(language string) RecognitionOption {
	return func(o *RecognitionOptions) {
		if language != "" {
			o.Language = language
		}
	}
}

func WithResultCallback(callback func(transcript string)) RecognitionOption {
	return func(o *RecognitionOptions) {
		if callback != nil {
			o.ResultCallback = callback
		}
	}
}

func WithEndedCallback(callback func()) RecognitionOption {
	return func(o *RecognitionOptions) {
		if callback != nil {
			o.EndedCallback = callback
		}
	}
}

func WithErrorCallback(callback func(err error)) RecognitionOption {
	return func(o *RecognitionOptions) {
		if callback != nil {
			o.ErrorCallback = callback
		}
	}
}

func WithEncodingInfo(encodingInfo audio.EncodingInfo) RecognitionOption {
	return func(o *RecognitionOptions) {
		o.EncodingInfo = encodingInfo
	}
}
