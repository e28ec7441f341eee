// Package events defines the typed orchestration event contract.
//
// Event kinds are grouped by receiver-facing namespaces:
//
//   - user_input.*
//   - assistant_response.*
//   - assistant_speech.*
//   - presentation.*
//   - turn_state.*
//
// Semantics used across the package:
//
//   - Started: a one-shot activity began.
//   - Updated: mutable point-in-time snapshot that can change over time.
//   - Final: terminal immutable text for the current turn phase.
//   - Ended: lifecycle boundary; emitted exactly once per started activity.
//
// user_input events
//
//   - CaptureStarted (user_input.capture_started): single-utterance capture began.
//   - UserTranscriptFinal (user_input.transcript_final): recognized text for
//     the utterance; the capture is over.
//   - CaptureEnded (user_input.capture_ended): capture ended without text
//     (silence, timeout or explicit stop).
//   - CaptureFailed (user_input.capture_failed): capture ended with a
//     recognition error.
//
// assistant_response events
//
//   - AssistantResponseFinal (assistant_response.final): reply text received
//     from the model and recorded in history.
//   - AssistantRevealUpdated (assistant_response.reveal_updated): revealed
//     prefix of the reply.
//   - AssistantRevealCompleted (assistant_response.reveal_completed): the
//     whole reply is revealed.
//
// assistant_speech events
//
//   - AssistantSpeechStarted (assistant_speech.started): the engine started
//     speaking an utterance.
//   - AssistantSpeechEnded (assistant_speech.ended): the utterance ended,
//     naturally, by stop, by error or superseded.
//
// presentation events
//
//   - PresentationStateChanged (presentation.state_changed): avatar state
//     changed; carries the state and when it was entered.
//
// turn_state events
//
//   - TurnStarted (turn_state.started): user input accepted, request pending.
//   - TurnCompleted (turn_state.completed): request succeeded.
//   - TurnFailed (turn_state.failed): request failed and was rolled back.
package events
