package orchestration

import (
	"time"

	"github.com/google/uuid"
	"github.com/koscakluka/ema-persona/core/llms"
)

type RequestStatus string

const (
	RequestPending   RequestStatus = "pending"
	RequestSucceeded RequestStatus = "succeeded"
	RequestFailed    RequestStatus = "failed"
)

// Request is one accepted user input and its model call. At most one request
// is pending per orchestrator.
type Request struct {
	ID            string
	SubmittedText string
	Status        RequestStatus
	SubmittedAt   time.Time
}

func newRequest(text string, now time.Time) *Request {
	return &Request{
		ID:            uuid.NewString(),
		SubmittedText: text,
		Status:        RequestPending,
		SubmittedAt:   now,
	}
}

// Reply is the outcome of a successful request. Done is closed once both the
// spoken and the displayed presentation of the reply finished.
type Reply struct {
	RequestID string
	Turn      llms.Turn

	presentation *presentationTurn
}

func (r *Reply) Done() <-chan struct{} {
	return r.presentation.joined
}
