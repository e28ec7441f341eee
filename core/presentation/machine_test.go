package presentation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestNewMachineStartsIdle(t *testing.T) {
	clock := newFakeClock()
	m := NewMachine(WithClock(clock.Now))

	snapshot := m.Current()
	if snapshot.State != Idle {
		t.Fatalf("expected initial state %q, got %q", Idle, snapshot.State)
	}
	if !snapshot.EnteredAt.Equal(clock.Now()) {
		t.Fatalf("expected entered at %v, got %v", clock.Now(), snapshot.EnteredAt)
	}
}

func TestMachineTransitionTable(t *testing.T) {
	testCases := []struct {
		from     State
		trigger  Trigger
		expected State
	}{
		{from: Idle, trigger: TriggerCaptureStarted, expected: Listening},
		{from: Talking, trigger: TriggerCaptureStarted, expected: Listening},
		{from: Listening, trigger: TriggerCaptureStarted, expected: Listening},
		{from: Listening, trigger: TriggerCaptureEnded, expected: Idle},
		{from: Idle, trigger: TriggerSubmitAccepted, expected: Thinking},
		{from: Listening, trigger: TriggerSubmitAccepted, expected: Thinking},
		{from: Thinking, trigger: TriggerRequestSucceeded, expected: Talking},
		{from: Thinking, trigger: TriggerRequestFailed, expected: Idle},
		{from: Talking, trigger: TriggerPresentationJoined, expected: Idle},
	}

	for _, testCase := range testCases {
		t.Run(string(testCase.from)+"/"+string(testCase.trigger), func(t *testing.T) {
			got, ok := Next(testCase.from, testCase.trigger)
			if !ok {
				t.Fatalf("expected %s from %s to be allowed", testCase.trigger, testCase.from)
			}
			if got != testCase.expected {
				t.Fatalf("expected %q, got %q", testCase.expected, got)
			}
		})
	}
}

func TestMachineRejectsTransitionsOutsideTable(t *testing.T) {
	testCases := []struct {
		from    State
		trigger Trigger
	}{
		{from: Idle, trigger: TriggerRequestSucceeded},
		{from: Idle, trigger: TriggerPresentationJoined},
		{from: Thinking, trigger: TriggerSubmitAccepted},
		{from: Thinking, trigger: TriggerCaptureStarted},
		{from: Talking, trigger: TriggerSubmitAccepted},
		{from: Talking, trigger: TriggerRequestFailed},
		{from: Listening, trigger: TriggerPresentationJoined},
	}

	for _, testCase := range testCases {
		if _, ok := Next(testCase.from, testCase.trigger); ok {
			t.Fatalf("expected %s from %s to be rejected", testCase.trigger, testCase.from)
		}
	}
}

func TestMachineFireInvalidKeepsState(t *testing.T) {
	clock := newFakeClock()
	m := NewMachine(WithClock(clock.Now))
	before := m.Current()

	clock.Advance(time.Second)
	_, err := m.Fire(TriggerRequestSucceeded)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if after := m.Current(); after != before {
		t.Fatalf("expected state to stay %+v, got %+v", before, after)
	}
}

func TestMachineFireResetsEnteredAt(t *testing.T) {
	clock := newFakeClock()
	m := NewMachine(WithClock(clock.Now))

	clock.Advance(2 * time.Second)
	snapshot, err := m.Fire(TriggerSubmitAccepted)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !snapshot.EnteredAt.Equal(clock.Now()) {
		t.Fatalf("expected entered at %v, got %v", clock.Now(), snapshot.EnteredAt)
	}

	clock.Advance(1500 * time.Millisecond)
	if got := m.Current().Elapsed(clock.Now()); got != 1500*time.Millisecond {
		t.Fatalf("expected elapsed 1.5s, got %v", got)
	}
}

func TestMachineObserversSeeTransitionsInOrder(t *testing.T) {
	states := []State{}
	m := NewMachine(WithObserver(func(s Snapshot) { states = append(states, s.State) }))

	for _, trigger := range []Trigger{TriggerSubmitAccepted, TriggerRequestSucceeded, TriggerPresentationJoined} {
		if _, err := m.Fire(trigger); err != nil {
			t.Fatalf("unexpected error firing %s: %v", trigger, err)
		}
	}

	expected := []State{Thinking, Talking, Idle}
	if len(states) != len(expected) {
		t.Fatalf("expected %d notifications, got %d (%v)", len(expected), len(states), states)
	}
	for i := range expected {
		if states[i] != expected[i] {
			t.Fatalf("expected state %d to be %q, got %q", i, expected[i], states[i])
		}
	}
}

func TestMachineFireFromSkipsWhenStateMovedOn(t *testing.T) {
	m := NewMachine()
	if _, err := m.Fire(TriggerCaptureStarted); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	fired, err := m.FireFrom(Talking, TriggerPresentationJoined)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fired {
		t.Fatalf("expected FireFrom to skip when machine is not in the expected state")
	}
	if got := m.State(); got != Listening {
		t.Fatalf("expected state to stay %q, got %q", Listening, got)
	}
}

func TestMachineResetNotifiesOnlyOnChange(t *testing.T) {
	notifications := 0
	m := NewMachine(WithObserver(func(Snapshot) { notifications++ }))

	m.Reset()
	if notifications != 0 {
		t.Fatalf("expected no notification when already idle, got %d", notifications)
	}

	if _, err := m.Fire(TriggerCaptureStarted); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m.Reset()
	if notifications != 2 {
		t.Fatalf("expected 2 notifications, got %d", notifications)
	}
	if got := m.State(); got != Idle {
		t.Fatalf("expected state %q after reset, got %q", Idle, got)
	}
}

func TestDriveAppliesStateAndElapsed(t *testing.T) {
	clock := newFakeClock()
	m := NewMachine(WithClock(clock.Now))
	if _, err := m.Fire(TriggerSubmitAccepted); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	clock.Advance(250 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	applied := make(chan struct{}, 1)
	var gotState State
	var gotElapsed time.Duration
	renderer := RendererFunc(func(state State, elapsed time.Duration) {
		select {
		case applied <- struct{}{}:
			gotState, gotElapsed = state, elapsed
		default:
		}
	})

	done := make(chan struct{})
	go func() {
		Drive(ctx, m, renderer, time.Hour)
		close(done)
	}()

	<-applied
	cancel()
	<-done

	if gotState != Thinking {
		t.Fatalf("expected renderer to see %q, got %q", Thinking, gotState)
	}
	if gotElapsed != 250*time.Millisecond {
		t.Fatalf("expected elapsed 250ms, got %v", gotElapsed)
	}
}
