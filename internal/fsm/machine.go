package fsm

import "sync"

// Broadcaster receives every state transition, independent of the
// per-state Listeners bundle (spec.md §6: broadcast_state_change).
type Broadcaster interface {
	BroadcastStateChange(State)
}

// Machine drives the lifecycle state machine. It is not safe for
// concurrent Transition calls from multiple goroutines; the Supervisor
// core is responsible for serializing operations (spec.md §5's single
// in-flight-transition invariant) and only reads Current concurrently.
type Machine struct {
	mu        sync.RWMutex
	state     State
	listeners Listeners
	bcast     Broadcaster
	onPanic   PanicHandler
}

// New creates a Machine starting in STOPPED (spec.md §3).
func New(listeners Listeners, bcast Broadcaster, onPanic PanicHandler) *Machine {
	return &Machine{
		state:     Stopped,
		listeners: listeners,
		bcast:     bcast,
		onPanic:   onPanic,
	}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Transition moves the machine from its current state to to, provided
// the edge is admissible. The UNRECOVERABLE -> STARTING forced-restart
// edge is taken only when allowForced is set (spec.md §4.1). It updates
// internal state first, then invokes the matching listener, then
// broadcasts — the ordering spec.md §5 requires.
//
// It returns false without side effects if the edge is not admissible.
func (m *Machine) Transition(to State, allowForced bool, crashCode int, crashSignal string, errVal error) bool {
	m.mu.Lock()
	from := m.state
	ok := CanTransition(from, to)
	if from == Unrecoverable && to == Starting {
		ok = allowForced
	}
	if !ok {
		m.mu.Unlock()
		return false
	}
	m.state = to
	listeners := m.listeners
	bcast := m.bcast
	onPanic := m.onPanic
	m.mu.Unlock()

	Dispatch(listeners, to, crashCode, crashSignal, errVal, onPanic)
	if bcast != nil {
		bcast.BroadcastStateChange(to)
	}
	return true
}

// Force unconditionally moves the machine to to, bypassing the
// admissibility table. It exists for restart()'s "on any failure
// transition to ERRORED" rule (spec.md §4.2), which can fire from states
// the transition table never enumerates an ERRORED edge for (e.g. a
// failed start() attempt out of CRASHED) — an exceptional side-channel
// rather than a normal lifecycle edge.
func (m *Machine) Force(to State, errVal error) {
	m.mu.Lock()
	m.state = to
	listeners := m.listeners
	bcast := m.bcast
	onPanic := m.onPanic
	m.mu.Unlock()

	Dispatch(listeners, to, 0, "", errVal, onPanic)
	if bcast != nil {
		bcast.BroadcastStateChange(to)
	}
}

// SetListeners replaces the listener bundle. Used by the Supervisor to
// bind listeners once it constructs the Machine with itself as receiver.
func (m *Machine) SetListeners(l Listeners) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = l
}
