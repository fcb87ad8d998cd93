package fsm

import (
	"sync"
	"testing"
)

type recordingBroadcaster struct {
	mu     sync.Mutex
	states []State
}

func (r *recordingBroadcaster) BroadcastStateChange(s State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func TestMachineTransitionOrdering(t *testing.T) {
	bcast := &recordingBroadcaster{}
	m := New(Listeners{}, bcast, nil)
	if m.Current() != Stopped {
		t.Fatalf("new machine should start STOPPED, got %s", m.Current())
	}

	if !m.Transition(Starting, false, 0, "", nil) {
		t.Fatal("Stopped -> Starting should be admissible")
	}
	if !m.Transition(Running, false, 0, "", nil) {
		t.Fatal("Starting -> Running should be admissible")
	}
	if m.Current() != Running {
		t.Fatalf("expected RUNNING, got %s", m.Current())
	}
	if len(bcast.states) != 2 || bcast.states[1] != Running {
		t.Fatalf("expected broadcast sequence [STARTING, RUNNING], got %v", bcast.states)
	}
}

func TestMachineRejectsInadmissibleTransition(t *testing.T) {
	m := New(Listeners{}, &recordingBroadcaster{}, nil)
	if m.Transition(Running, false, 0, "", nil) {
		t.Fatal("Stopped -> Running must not be admissible")
	}
	if m.Current() != Stopped {
		t.Fatal("a rejected transition must not mutate state")
	}
}

func TestMachineForcedUnrecoverableRestart(t *testing.T) {
	m := New(Listeners{}, &recordingBroadcaster{}, nil)
	m.Transition(Starting, false, 0, "", nil)
	m.Transition(Crashed, false, 1, "", nil)
	m.Transition(Starting, false, 0, "", nil)
	m.Transition(Crashed, false, 1, "", nil)
	// Simulate reaching UNRECOVERABLE directly for the test (normally via
	// handleExit once startup_tries is exhausted).
	m2 := New(Listeners{}, &recordingBroadcaster{}, nil)
	m2.Transition(Starting, false, 0, "", nil)
	m2.Transition(Unrecoverable, false, 1, "", nil)
	if m2.Transition(Starting, false, 0, "", nil) {
		t.Fatal("Unrecoverable -> Starting without allowForced must be rejected")
	}
	if !m2.Transition(Starting, true, 0, "", nil) {
		t.Fatal("Unrecoverable -> Starting with allowForced must succeed")
	}
}

func TestListenerPanicIsIsolated(t *testing.T) {
	var recovered any
	m := New(Listeners{
		OnRunning: func() { panic("boom") },
	}, &recordingBroadcaster{}, func(state State, r any) { recovered = r })
	m.Transition(Starting, false, 0, "", nil)
	m.Transition(Running, false, 0, "", nil)
	if recovered != "boom" {
		t.Fatalf("expected panic to be recovered and reported, got %v", recovered)
	}
	if m.Current() != Running {
		t.Fatal("a panicking listener must not prevent the transition from completing")
	}
}
