// Package audio describes the device capabilities the speech providers stream
// through.
package audio

import "context"

// Capturer streams microphone audio in the format reported by EncodingInfo.
type Capturer interface {
	EncodingInfo() EncodingInfo
	StartCapture(ctx context.Context, onAudio func(audio []byte)) error
	StopCapture() error
}

// Player queues synthesized audio for playback.
type Player interface {
	EncodingInfo() EncodingInfo
	SendAudio(audio []byte) error
	// Mark calls callback once every chunk sent before it has been played.
	Mark(name string, callback func(name string)) error
	// ClearBuffer drops queued audio. Pending marks are discarded without
	// being called.
	ClearBuffer()

	// Paused reports whether the output device stopped while audio is still
	// queued.
	Paused() bool
	Resume() error
}
