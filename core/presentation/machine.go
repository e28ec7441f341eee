package presentation

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

var ErrInvalidTransition = errors.New("invalid presentation transition")

// Observer receives every state the machine enters, in transition order.
//
// Observers run synchronously on the goroutine that fired the trigger and
// must not fire triggers on the same machine.
type Observer func(Snapshot)

type Machine struct {
	// notifyMu serializes transition and notification so observers see
	// states in the order they were entered.
	notifyMu sync.Mutex

	mu        sync.RWMutex
	current   Snapshot
	observers []Observer

	now func() time.Time
}

type MachineOption func(*Machine)

// WithClock replaces the clock used to stamp EnteredAt.
func WithClock(now func() time.Time) MachineOption {
	return func(m *Machine) {
		if now != nil {
			m.now = now
		}
	}
}

func WithObserver(observer Observer) MachineOption {
	return func(m *Machine) {
		if observer != nil {
			m.observers = append(m.observers, observer)
		}
	}
}

// NewMachine creates a machine in the Idle state.
func NewMachine(opts ...MachineOption) *Machine {
	m := &Machine{now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	m.current = Snapshot{State: Idle, EnteredAt: m.now()}
	return m
}

func (m *Machine) Current() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

func (m *Machine) State() State { return m.Current().State }

// Now returns the machine clock reading, so renderers measure elapsed time on
// the same clock that stamped EnteredAt.
func (m *Machine) Now() time.Time { return m.now() }

// Observe registers an additional observer.
func (m *Machine) Observe(observer Observer) {
	if observer == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, observer)
}

// Fire applies trigger to the current state. Triggers not allowed from the
// current state leave the machine untouched and return ErrInvalidTransition.
func (m *Machine) Fire(trigger Trigger) (Snapshot, error) {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()

	m.mu.Lock()
	from := m.current
	to, ok := Next(from.State, trigger)
	if !ok {
		m.mu.Unlock()
		return from, fmt.Errorf("%w: %s from %s", ErrInvalidTransition, trigger, from.State)
	}
	snapshot, observers := m.enterLocked(to)
	m.mu.Unlock()

	notify(observers, snapshot)
	return snapshot, nil
}

// FireFrom fires trigger only while the machine is in state from. It reports
// false without error when the machine already moved on.
func (m *Machine) FireFrom(from State, trigger Trigger) (bool, error) {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()

	m.mu.Lock()
	if m.current.State != from {
		m.mu.Unlock()
		return false, nil
	}
	to, ok := Next(from, trigger)
	if !ok {
		m.mu.Unlock()
		return false, fmt.Errorf("%w: %s from %s", ErrInvalidTransition, trigger, from)
	}
	snapshot, observers := m.enterLocked(to)
	m.mu.Unlock()

	notify(observers, snapshot)
	return true, nil
}

func (m *Machine) enterLocked(state State) (Snapshot, []Observer) {
	m.current = Snapshot{State: state, EnteredAt: m.now()}
	return m.current, append([]Observer(nil), m.observers...)
}

func notify(observers []Observer, snapshot Snapshot) {
	for _, observer := range observers {
		observer(snapshot)
	}
}

// Reset forces the machine back to Idle for a new session. Observers are
// notified only when the state actually changes.
func (m *Machine) Reset() Snapshot {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()

	m.mu.Lock()
	if m.current.State == Idle {
		snapshot := m.current
		m.mu.Unlock()
		return snapshot
	}
	snapshot, observers := m.enterLocked(Idle)
	m.mu.Unlock()

	notify(observers, snapshot)
	return snapshot
}
