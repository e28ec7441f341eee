package events

const (
	// KindAssistantSpeechStarted identifies the start of spoken playback.
	KindAssistantSpeechStarted Kind = "assistant_speech.started"
	// KindAssistantSpeechEnded identifies the end of spoken playback.
	KindAssistantSpeechEnded Kind = "assistant_speech.ended"
)

// AssistantSpeechStarted marks that an utterance started playing.
type AssistantSpeechStarted struct {
	Base
	UtteranceID string
	Text        string
}

// NewAssistantSpeechStarted creates an assistant speech started event.
func NewAssistantSpeechStarted(utteranceID, text string) AssistantSpeechStarted {
	return AssistantSpeechStarted{Base: NewBase(KindAssistantSpeechStarted), UtteranceID: utteranceID, Text: text}
}

// AssistantSpeechEnded marks that an utterance stopped playing.
type AssistantSpeechEnded struct {
	Base
	UtteranceID string
}

// NewAssistantSpeechEnded creates an assistant speech ended event.
func NewAssistantSpeechEnded(utteranceID string) AssistantSpeechEnded {
	return AssistantSpeechEnded{Base: NewBase(KindAssistantSpeechEnded), UtteranceID: utteranceID}
}
