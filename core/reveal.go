package orchestration

import (
	"sync"
	"time"

	"github.com/koscakluka/ema-persona/core/events"
)

// DefaultRevealInterval is the delay between two revealed characters.
const DefaultRevealInterval = 22 * time.Millisecond

// reveal shows a reply one rune at a time. It always finishes with the whole
// text revealed, either on its own or after fastForward.
type reveal struct {
	turnID   string
	text     string
	interval time.Duration
	emit     eventEmitter

	skip     chan struct{}
	skipOnce sync.Once
	done     chan struct{}
}

func newReveal(turnID, text string, interval time.Duration, emit eventEmitter) *reveal {
	return &reveal{
		turnID:   turnID,
		text:     text,
		interval: interval,
		emit:     emit,
		skip:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (r *reveal) run() {
	defer close(r.done)
	defer r.emit(events.NewAssistantRevealCompleted(r.turnID, r.text))

	if r.interval <= 0 {
		return
	}

	runes := []rune(r.text)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for i := 1; i < len(runes); i++ {
		select {
		case <-r.skip:
			return
		case <-ticker.C:
			r.emit(events.NewAssistantRevealUpdated(r.turnID, string(runes[:i])))
		}
	}
}

// fastForward reveals the rest of the text at once and waits until the
// reveal has finished.
func (r *reveal) fastForward() {
	r.skipOnce.Do(func() { close(r.skip) })
	<-r.done
}
