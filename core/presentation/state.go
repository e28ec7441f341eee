// Package presentation holds the avatar presentation state machine shared by
// the orchestrator and every renderer.
//
// The machine is the only owner of presentation state. Renderers never mutate
// it; they read a [Snapshot] (directly, through an [Observer], or through
// [Drive]) and interpret the state and the time spent in it.
package presentation

import "time"

type State string

const (
	Idle      State = "idle"
	Listening State = "listening"
	Thinking  State = "thinking"
	Talking   State = "talking"
)

func (s State) String() string { return string(s) }

// Trigger is an input to the presentation machine.
type Trigger string

const (
	TriggerCaptureStarted     Trigger = "capture_started"
	TriggerCaptureEnded       Trigger = "capture_ended"
	TriggerSubmitAccepted     Trigger = "submit_accepted"
	TriggerRequestSucceeded   Trigger = "request_succeeded"
	TriggerRequestFailed      Trigger = "request_failed"
	TriggerPresentationJoined Trigger = "presentation_joined"
)

func (t Trigger) String() string { return string(t) }

var transitions = map[State]map[Trigger]State{
	Idle: {
		TriggerCaptureStarted: Listening,
		TriggerSubmitAccepted: Thinking,
	},
	Listening: {
		TriggerCaptureStarted: Listening,
		TriggerCaptureEnded:   Idle,
		TriggerSubmitAccepted: Thinking,
	},
	Thinking: {
		TriggerRequestSucceeded: Talking,
		TriggerRequestFailed:    Idle,
	},
	Talking: {
		TriggerCaptureStarted:     Listening,
		TriggerPresentationJoined: Idle,
	},
}

// Next reports the state reached by applying trigger in state from.
func Next(from State, trigger Trigger) (State, bool) {
	to, ok := transitions[from][trigger]
	return to, ok
}

// Snapshot is a point-in-time view of the presentation state.
type Snapshot struct {
	State     State
	EnteredAt time.Time
}

// Elapsed returns how long the state has been active at now.
func (s Snapshot) Elapsed(now time.Time) time.Duration {
	if elapsed := now.Sub(s.EnteredAt); elapsed > 0 {
		return elapsed
	}
	return 0
}
