package events

const (
	// KindAssistantResponseFinal identifies a reply received from the model.
	KindAssistantResponseFinal Kind = "assistant_response.final"
	// KindAssistantRevealUpdated identifies reveal progress of the reply.
	KindAssistantRevealUpdated Kind = "assistant_response.reveal_updated"
	// KindAssistantRevealCompleted identifies a fully revealed reply.
	KindAssistantRevealCompleted Kind = "assistant_response.reveal_completed"
)

// AssistantResponseFinal carries the full reply text.
type AssistantResponseFinal struct {
	Base
	TurnID string
	Text   string
}

// NewAssistantResponseFinal creates an assistant response final event.
func NewAssistantResponseFinal(turnID, text string) AssistantResponseFinal {
	return AssistantResponseFinal{Base: NewBase(KindAssistantResponseFinal), TurnID: turnID, Text: text}
}

// AssistantRevealUpdated carries the currently revealed prefix of the reply.
type AssistantRevealUpdated struct {
	Base
	TurnID   string
	Revealed string
}

// NewAssistantRevealUpdated creates a reveal progress event.
func NewAssistantRevealUpdated(turnID, revealed string) AssistantRevealUpdated {
	return AssistantRevealUpdated{Base: NewBase(KindAssistantRevealUpdated), TurnID: turnID, Revealed: revealed}
}

// AssistantRevealCompleted marks that the whole reply is revealed.
type AssistantRevealCompleted struct {
	Base
	TurnID string
	Text   string
}

// NewAssistantRevealCompleted creates a reveal completed event.
func NewAssistantRevealCompleted(turnID, text string) AssistantRevealCompleted {
	return AssistantRevealCompleted{Base: NewBase(KindAssistantRevealCompleted), TurnID: turnID, Text: text}
}
