package conversations

import "github.com/koscakluka/ema-persona/core/llms"

// View exposes the conversation to callers that must not mutate it.
type View interface {
	// Ordering: oldest -> newest.
	Turns() []llms.Turn
	Len() int
	// Last returns the newest turn; false when the history is empty.
	Last() (llms.Turn, bool)

	Values(yield func(llms.Turn) bool)
	RValues(yield func(llms.Turn) bool)
}

var _ View = (*History)(nil)
