package orchestration

import events "github.com/koscakluka/ema-persona/core/events"

type eventEmitter func(events.Event)

type eventCallbacks struct {
	onTranscription         func(string)
	onResponse              func(string)
	onReveal                func(string)
	onSpeakingStateChanged  func(bool)
	onListeningStateChanged func(bool)
}

func newCallbackEventEmitter(opts eventCallbacks) eventEmitter {
	return func(event events.Event) {
		switch typedEvent := event.(type) {
		case events.CaptureStarted:
			if opts.onListeningStateChanged != nil {
				opts.onListeningStateChanged(true)
			}
		case events.CaptureEnded, events.CaptureFailed:
			if opts.onListeningStateChanged != nil {
				opts.onListeningStateChanged(false)
			}
		case events.UserTranscriptFinal:
			if opts.onTranscription != nil {
				opts.onTranscription(typedEvent.Transcript)
			}
		case events.AssistantResponseFinal:
			if opts.onResponse != nil {
				opts.onResponse(typedEvent.Text)
			}
		case events.AssistantRevealUpdated:
			if opts.onReveal != nil {
				opts.onReveal(typedEvent.Revealed)
			}
		case events.AssistantRevealCompleted:
			if opts.onReveal != nil {
				opts.onReveal(typedEvent.Text)
			}
		case events.AssistantSpeechStarted:
			if opts.onSpeakingStateChanged != nil {
				opts.onSpeakingStateChanged(true)
			}
		case events.AssistantSpeechEnded:
			if opts.onSpeakingStateChanged != nil {
				opts.onSpeakingStateChanged(false)
			}
		}
	}
}

func fanOutEventEmitter(emitters ...eventEmitter) eventEmitter {
	return func(event events.Event) {
		for _, emit := range emitters {
			emit(event)
		}
	}
}
