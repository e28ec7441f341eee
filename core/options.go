package orchestration

import (
	"time"

	"github.com/koscakluka/ema-persona/core/events"
	"github.com/koscakluka/ema-persona/core/llms"
	"github.com/koscakluka/ema-persona/core/presentation"
	"github.com/koscakluka/ema-persona/core/speechtotext"
	"github.com/koscakluka/ema-persona/core/texttospeech"
)

// DefaultHistoryWindow is the number of user/model pairs sent with a request.
const DefaultHistoryWindow = 20

type OrchestratorOption func(*Orchestrator)

func WithModelClient(client llms.ModelClient) OrchestratorOption {
	return func(o *Orchestrator) {
		o.model = client
	}
}

// WithRecognizer enables speech input. Without it StartListening fails with
// ErrUnsupportedCapability.
func WithRecognizer(recognizer speechtotext.Recognizer) OrchestratorOption {
	return func(o *Orchestrator) {
		o.recognizer = recognizer
	}
}

func WithRecognitionLanguage(language string) OrchestratorOption {
	return func(o *Orchestrator) {
		o.speechInOptions = append(o.speechInOptions, speechtotext.WithRecognitionLanguage(language))
	}
}

// WithSpeechEngine enables speech output. Without it replies are only
// revealed as text.
func WithSpeechEngine(engine texttospeech.Engine) OrchestratorOption {
	return func(o *Orchestrator) {
		o.engine = engine
	}
}

func WithVoicePreference(preference texttospeech.VoicePreference) OrchestratorOption {
	return func(o *Orchestrator) {
		o.speechOutOptions = append(o.speechOutOptions, texttospeech.WithVoicePreference(preference))
	}
}

func WithSpeechWatchdogInterval(interval time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		o.speechOutOptions = append(o.speechOutOptions, texttospeech.WithWatchdogInterval(interval))
	}
}

func WithSpeechParams(params texttospeech.SpeechParams) OrchestratorOption {
	return func(o *Orchestrator) {
		o.speechParams = params
	}
}

func WithPersona(persona string) OrchestratorOption {
	return func(o *Orchestrator) {
		o.persona = persona
	}
}

// WithHistoryWindow sets how many user/model pairs of history are sent with
// each request.
func WithHistoryWindow(pairs int) OrchestratorOption {
	return func(o *Orchestrator) {
		if pairs > 0 {
			o.historyWindow = pairs
		}
	}
}

func WithGenerationParams(params llms.GenerationParams) OrchestratorOption {
	return func(o *Orchestrator) {
		o.generationParams = params
	}
}

// WithRevealInterval sets the delay between revealed characters. Zero
// reveals replies at once.
func WithRevealInterval(interval time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		if interval >= 0 {
			o.revealInterval = interval
		}
	}
}

// WithHistory seeds the conversation, e.g. with a restored session.
func WithHistory(turns ...llms.Turn) OrchestratorOption {
	return func(o *Orchestrator) {
		o.initialTurns = append(o.initialTurns, turns...)
	}
}

func WithClock(now func() time.Time) OrchestratorOption {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// WithStateObserver registers an observer of presentation state changes.
// Observers run on the goroutine that changed the state and must not block.
func WithStateObserver(observer presentation.Observer) OrchestratorOption {
	return func(o *Orchestrator) {
		if observer != nil {
			o.stateObservers = append(o.stateObservers, observer)
		}
	}
}

// WithEventHandler receives every event the orchestrator emits.
func WithEventHandler(handler func(events.Event)) OrchestratorOption {
	return func(o *Orchestrator) {
		if handler != nil {
			o.eventHandlers = append(o.eventHandlers, handler)
		}
	}
}

// WithErrorCallback receives errors no caller can receive, such as a failed
// request started from recognized speech.
func WithErrorCallback(callback func(error)) OrchestratorOption {
	return func(o *Orchestrator) {
		if callback != nil {
			o.onError = callback
		}
	}
}

func WithTranscriptionCallback(callback func(transcript string)) OrchestratorOption {
	return func(o *Orchestrator) {
		o.callbacks.onTranscription = callback
	}
}

func WithResponseCallback(callback func(text string)) OrchestratorOption {
	return func(o *Orchestrator) {
		o.callbacks.onResponse = callback
	}
}

// WithRevealCallback receives the revealed prefix of the reply each time it
// grows, and the full text at the end.
func WithRevealCallback(callback func(revealed string)) OrchestratorOption {
	return func(o *Orchestrator) {
		o.callbacks.onReveal = callback
	}
}

func WithSpeakingStateCallback(callback func(isSpeaking bool)) OrchestratorOption {
	return func(o *Orchestrator) {
		o.callbacks.onSpeakingStateChanged = callback
	}
}

func WithListeningStateCallback(callback func(isListening bool)) OrchestratorOption {
	return func(o *Orchestrator) {
		o.callbacks.onListeningStateChanged = callback
	}
}
