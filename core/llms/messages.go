package llms

import (
	"time"

	"github.com/google/uuid"
)

// Role describes who authored a turn.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

func (r Role) String() string { return string(r) }

// Turn is a single message in the conversation. Turns are immutable once they
// are appended to a history.
type Turn struct {
	ID        string
	Role      Role
	Text      string
	CreatedAt time.Time
}

// NewTurn creates a turn with a fresh ID.
func NewTurn(role Role, text string) Turn {
	return Turn{
		ID:        uuid.NewString(),
		Role:      role,
		Text:      text,
		CreatedAt: time.Now(),
	}
}

func NewUserTurn(text string) Turn  { return NewTurn(RoleUser, text) }
func NewModelTurn(text string) Turn { return NewTurn(RoleModel, text) }
