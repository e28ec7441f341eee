package events

const (
	// KindCaptureStarted identifies the start of a single-utterance capture.
	KindCaptureStarted Kind = "user_input.capture_started"
	// KindUserTranscriptFinal identifies the final transcript for the utterance.
	KindUserTranscriptFinal Kind = "user_input.transcript_final"
	// KindCaptureEnded identifies a capture that ended without text.
	KindCaptureEnded Kind = "user_input.capture_ended"
	// KindCaptureFailed identifies a capture that ended with an error.
	KindCaptureFailed Kind = "user_input.capture_failed"
)

// CaptureStarted marks when speech capture starts.
type CaptureStarted struct{ Base }

// NewCaptureStarted creates a capture started event.
func NewCaptureStarted() CaptureStarted {
	return CaptureStarted{Base: NewBase(KindCaptureStarted)}
}

// UserTranscriptFinal carries the final transcript for the utterance.
type UserTranscriptFinal struct {
	Base
	Transcript string
}

// NewUserTranscriptFinal creates a final transcript event.
func NewUserTranscriptFinal(transcript string) UserTranscriptFinal {
	return UserTranscriptFinal{Base: NewBase(KindUserTranscriptFinal), Transcript: transcript}
}

// CaptureEnded marks a capture that finished without recognized text.
type CaptureEnded struct{ Base }

// NewCaptureEnded creates a capture ended event.
func NewCaptureEnded() CaptureEnded {
	return CaptureEnded{Base: NewBase(KindCaptureEnded)}
}

// CaptureFailed carries the recognition error that ended a capture.
type CaptureFailed struct {
	Base
	Err error
}

// NewCaptureFailed creates a capture failed event.
func NewCaptureFailed(err error) CaptureFailed {
	return CaptureFailed{Base: NewBase(KindCaptureFailed), Err: err}
}
