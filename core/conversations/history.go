// Package conversations keeps the ordered record of user and model turns that
// is sent as context with every model request.
package conversations

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/koscakluka/ema-persona/core/llms"
)

var (
	ErrEmptyHistory  = errors.New("history is empty")
	ErrDuplicateTurn = errors.New("turn already in history")
)

// History is an append-only list of turns with last-in first-out rollback.
// It is safe for concurrent use.
type History struct {
	mu    sync.RWMutex
	turns []llms.Turn
	ids   map[string]struct{}
}

func NewHistory(turns ...llms.Turn) (*History, error) {
	h := &History{}
	for _, turn := range turns {
		if err := h.Append(turn); err != nil {
			return nil, err
		}
	}
	return h, nil
}

// Append adds turn at the end of the history. Turns without an ID are given
// one; an ID already present is rejected.
func (h *History) Append(turn llms.Turn) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.ids == nil {
		h.ids = map[string]struct{}{}
	}
	if turn.ID == "" {
		turn.ID = llms.NewTurn(turn.Role, turn.Text).ID
	}
	if _, ok := h.ids[turn.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateTurn, turn.ID)
	}

	h.turns = append(h.turns, turn)
	h.ids[turn.ID] = struct{}{}
	return nil
}

// RollbackLast removes and returns the most recently appended turn.
func (h *History) RollbackLast() (llms.Turn, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.turns) == 0 {
		return llms.Turn{}, ErrEmptyHistory
	}

	last := h.turns[len(h.turns)-1]
	h.turns[len(h.turns)-1] = llms.Turn{}
	h.turns = h.turns[:len(h.turns)-1]
	delete(h.ids, last.ID)
	return last, nil
}

// WindowForRequest returns a copy of the newest turns, at most two per
// requested pair, oldest first.
func (h *History) WindowForRequest(maxPairs int) []llms.Turn {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if maxPairs <= 0 {
		return []llms.Turn{}
	}
	if maxPairs >= len(h.turns) {
		return slices.Clone(h.turns)
	}
	start := max(len(h.turns)-2*maxPairs, 0)
	return slices.Clone(h.turns[start:])
}

func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.turns = nil
	h.ids = nil
}

func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.turns)
}

func (h *History) Turns() []llms.Turn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return slices.Clone(h.turns)
}

func (h *History) Last() (llms.Turn, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.turns) == 0 {
		return llms.Turn{}, false
	}
	return h.turns[len(h.turns)-1], true
}

// Values iterates over a snapshot of the turns, oldest first.
func (h *History) Values(yield func(llms.Turn) bool) {
	for _, turn := range h.Turns() {
		if !yield(turn) {
			return
		}
	}
}

// RValues iterates over a snapshot of the turns, newest first.
func (h *History) RValues(yield func(llms.Turn) bool) {
	turns := h.Turns()
	for i := len(turns) - 1; i >= 0; i-- {
		if !yield(turns[i]) {
			return
		}
	}
}
