package presentation

import (
	"context"
	"time"
)

// DefaultFrameInterval paces [Drive] at roughly 30 frames per second.
const DefaultFrameInterval = 33 * time.Millisecond

// Renderer interprets presentation state. It is the single capability a
// renderer backend implements; all state logic stays in [Machine].
type Renderer interface {
	Apply(state State, elapsed time.Duration)
}

// RendererFunc adapts a function to [Renderer].
type RendererFunc func(state State, elapsed time.Duration)

func (f RendererFunc) Apply(state State, elapsed time.Duration) { f(state, elapsed) }

// Source is the read side of a [Machine].
type Source interface {
	Current() Snapshot
	Now() time.Time
}

var _ Source = (*Machine)(nil)

// Drive calls renderer.Apply with the current state and the time spent in it
// once per frameInterval until ctx is done. The first frame is applied
// immediately.
func Drive(ctx context.Context, source Source, renderer Renderer, frameInterval time.Duration) {
	if source == nil || renderer == nil {
		return
	}
	if frameInterval <= 0 {
		frameInterval = DefaultFrameInterval
	}

	apply := func() {
		snapshot := source.Current()
		renderer.Apply(snapshot.State, snapshot.Elapsed(source.Now()))
	}

	apply()
	ticker := time.NewTicker(frameInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			apply()
		}
	}
}
