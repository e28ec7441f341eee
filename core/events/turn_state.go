package events

const (
	// KindTurnStarted identifies an accepted user input with a pending request.
	KindTurnStarted Kind = "turn_state.started"
	// KindTurnCompleted identifies a successful request.
	KindTurnCompleted Kind = "turn_state.completed"
	// KindTurnFailed identifies a failed and rolled back request.
	KindTurnFailed Kind = "turn_state.failed"
)

// TurnStarted marks that user input was accepted.
type TurnStarted struct {
	Base
	RequestID string
	Text      string
}

// NewTurnStarted creates a turn started event.
func NewTurnStarted(requestID, text string) TurnStarted {
	return TurnStarted{Base: NewBase(KindTurnStarted), RequestID: requestID, Text: text}
}

// TurnCompleted marks that the request for the turn succeeded.
type TurnCompleted struct {
	Base
	RequestID string
}

// NewTurnCompleted creates a turn completed event.
func NewTurnCompleted(requestID string) TurnCompleted {
	return TurnCompleted{Base: NewBase(KindTurnCompleted), RequestID: requestID}
}

// TurnFailed carries the error that failed the turn.
type TurnFailed struct {
	Base
	RequestID string
	Err       error
}

// NewTurnFailed creates a turn failed event.
func NewTurnFailed(requestID string, err error) TurnFailed {
	return TurnFailed{Base: NewBase(KindTurnFailed), RequestID: requestID, Err: err}
}
