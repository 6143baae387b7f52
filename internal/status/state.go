package status

import (
	"fmt"
	"slices"
	"sync"

	"github.com/matheus3301/friendzone/internal/bus"
)

// State is the daemon's view of its backing stores.
type State string

const (
	Booting    State = "BOOTING"
	Connecting State = "CONNECTING"
	Ready      State = "READY"
	Degraded   State = "DEGRADED"
	Error      State = "ERROR"
)

var validTransitions = map[State][]State{
	Booting:    {Connecting, Error},
	Connecting: {Ready, Degraded, Error},
	Ready:      {Degraded, Error},
	Degraded:   {Ready, Connecting, Error},
	Error:      {Booting},
}

// Machine tracks and enforces daemon state transitions.
type Machine struct {
	mu      sync.RWMutex
	current State
	reason  string
	bus     *bus.Bus
}

// NewMachine creates a state machine starting in Booting.
func NewMachine(b *bus.Bus) *Machine {
	return &Machine{current: Booting, bus: b}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Reason returns the message recorded with the last transition.
func (m *Machine) Reason() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.reason
}

// Transition moves to a new state, failing on transitions the table forbids.
// Transitioning to the current state is a no-op.
func (m *Machine) Transition(to State, reason string) error {
	m.mu.Lock()
	if m.current == to {
		m.reason = reason
		m.mu.Unlock()
		return nil
	}
	if !slices.Contains(validTransitions[m.current], to) {
		from := m.current
		m.mu.Unlock()
		return fmt.Errorf("invalid transition from %s to %s", from, to)
	}
	change := StatusChange{From: m.current, To: to, Reason: reason}
	m.current = to
	m.reason = reason
	m.mu.Unlock()

	m.bus.Publish(bus.Event{Kind: bus.KindStatusChanged, Payload: change})
	return nil
}

// StatusChange is the payload for status change events.
type StatusChange struct {
	From   State
	To     State
	Reason string
}
