package events

import (
	"time"

	"github.com/koscakluka/ema-persona/core/presentation"
)

// KindPresentationStateChanged identifies an avatar presentation state change.
const KindPresentationStateChanged Kind = "presentation.state_changed"

// PresentationStateChanged carries the new presentation state and the moment
// it was entered.
type PresentationStateChanged struct {
	Base
	State     presentation.State
	EnteredAt time.Time
}

// NewPresentationStateChanged creates a presentation state changed event.
func NewPresentationStateChanged(snapshot presentation.Snapshot) PresentationStateChanged {
	return PresentationStateChanged{
		Base:      NewBase(KindPresentationStateChanged),
		State:     snapshot.State,
		EnteredAt: snapshot.EnteredAt,
	}
}
