package orchestration

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/koscakluka/ema-persona/core/events"
	"github.com/koscakluka/ema-persona/core/llms"
	"github.com/koscakluka/ema-persona/core/presentation"
)

// presentationTurn tracks the spoken and displayed halves of one reply. It is
// joined once both halves are done, or at once when it is interrupted.
type presentationTurn struct {
	turn   llms.Turn
	reveal *reveal

	pending  atomic.Int32
	joinOnce sync.Once
	joined   chan struct{}
}

func newPresentationTurn(turn llms.Turn, reveal *reveal) *presentationTurn {
	pt := &presentationTurn{
		turn:   turn,
		reveal: reveal,
		joined: make(chan struct{}),
	}
	pt.pending.Store(2)
	return pt
}

// present shows and speaks turn. The reveal and the speech run on their own
// goroutines; whichever finishes last joins the presentation.
func (o *Orchestrator) present(ctx context.Context, turn llms.Turn) *presentationTurn {
	pt := newPresentationTurn(turn, newReveal(turn.ID, turn.Text, o.revealInterval, o.emitEvent))

	o.mu.Lock()
	o.activeTurn = pt
	closed := o.closed
	o.mu.Unlock()

	o.emitEvent(events.NewAssistantResponseFinal(turn.ID, turn.Text))

	// a closed orchestrator still shows the reply but no longer speaks
	if o.speechOut.Available() && !closed {
		utterance, err := o.speechOut.Speak(ctx, turn.Text, o.speechParams)
		if err != nil {
			logger.Warn("failed to speak reply", "error", err)
			o.onError(classifyCapabilityError(err))
			o.partDone(pt)
		} else {
			go func() {
				<-utterance.Done()
				o.partDone(pt)
			}()
			if o.isClosed() {
				if err := o.speechOut.Stop(); err != nil {
					logger.Warn("failed to stop speech after close", "error", err)
				}
			}
		}
	} else {
		o.partDone(pt)
	}

	go func() {
		pt.reveal.run()
		o.partDone(pt)
	}()

	return pt
}

func (o *Orchestrator) partDone(pt *presentationTurn) {
	if pt.pending.Add(-1) == 0 {
		o.join(pt)
	}
}

// join returns to Idle when pt is still the presentation on screen. A
// presentation that was already left, for example by starting to listen,
// only closes its done channel.
func (o *Orchestrator) join(pt *presentationTurn) {
	pt.joinOnce.Do(func() {
		o.mu.Lock()
		active := o.activeTurn == pt
		if active {
			o.activeTurn = nil
		}
		o.mu.Unlock()

		if active {
			if _, err := o.machine.FireFrom(presentation.Talking, presentation.TriggerPresentationJoined); err != nil {
				logger.Warn("failed to leave talking state", "error", err)
			}
		}
		close(pt.joined)
	})
}

// interruptPresentation cuts the active presentation short: speech stops,
// the reveal jumps to the end and the presentation is joined right away,
// returning to Idle.
func (o *Orchestrator) interruptPresentation() {
	o.mu.Lock()
	pt := o.activeTurn
	o.mu.Unlock()
	if pt == nil {
		return
	}
	o.cutPresentation(pt)
}

// handOverPresentation is interruptPresentation without the return to Idle:
// the machine stays in Talking for the caller to move on from. It reports
// whether there was a presentation to hand over.
func (o *Orchestrator) handOverPresentation() bool {
	o.mu.Lock()
	pt := o.activeTurn
	o.activeTurn = nil
	o.mu.Unlock()
	if pt == nil {
		return false
	}
	o.cutPresentation(pt)
	return true
}

func (o *Orchestrator) cutPresentation(pt *presentationTurn) {
	if err := o.speechOut.Stop(); err != nil {
		logger.Warn("failed to stop speech", "error", err)
	}
	pt.reveal.fastForward()
	o.join(pt)
}

func (o *Orchestrator) isClosed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}
