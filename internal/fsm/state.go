// Package fsm implements the daemon supervisor's eleven-state lifecycle
// machine: the closed set of states, the admissible transitions between
// them, and listener dispatch on each transition.
package fsm

import "fmt"

// State is one of the eleven closed lifecycle variants.
type State int

const (
	Stopped State = iota
	Starting
	Running
	Exiting
	Stopping
	Updating
	Updated
	Crashed
	Errored
	Unrecoverable
	UpdateFailed
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "STOPPED"
	case Starting:
		return "STARTING"
	case Running:
		return "RUNNING"
	case Exiting:
		return "EXITING"
	case Stopping:
		return "STOPPING"
	case Updating:
		return "UPDATING"
	case Updated:
		return "UPDATED"
	case Crashed:
		return "CRASHED"
	case Errored:
		return "ERRORED"
	case Unrecoverable:
		return "UNRECOVERABLE"
	case UpdateFailed:
		return "UPDATE_FAILED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Terminal reports whether state is UNRECOVERABLE or UPDATE_FAILED.
// UNRECOVERABLE leaves only via an explicit forced restart; UPDATE_FAILED
// has no outgoing edge, so not even a forced restart leaves it.
func (s State) Terminal() bool {
	return s == Unrecoverable || s == UpdateFailed
}

// HasChild reports whether a child process is expected to be attached
// while in this state (invariant 1 in spec.md §3).
func (s State) HasChild() bool {
	switch s {
	case Starting, Running, Exiting, Stopping, Updating, Updated:
		return true
	default:
		return false
	}
}

// HasTLS reports whether a TLS config is expected to be cached while in
// this state (invariant 2 in spec.md §3).
func (s State) HasTLS() bool {
	switch s {
	case Running, Exiting, Stopping, Updating, Updated:
		return true
	default:
		return false
	}
}

// admissible lists, for every state, the set of states it may transition
// into directly. Restart's forced path from UNRECOVERABLE and the
// fall-through restarts from CRASHED/UPDATED/STOPPED/ERRORED are encoded
// here exactly as spec.md §4.1 tabulates them.
var admissible = map[State]map[State]bool{
	Stopped:       {Starting: true},
	Starting:      {Running: true, Errored: true, Crashed: true, Unrecoverable: true},
	// Errored is also reachable from Running: an IPC error (malformed
	// frame, TLS re-read failure) while the daemon is connected moves the
	// machine to ERRORED before the automatic restart.
	Running:       {Exiting: true, Stopping: true, Updating: true, Errored: true},
	Exiting:       {Stopped: true, Crashed: true, Updated: true, Unrecoverable: true},
	Stopping:      {Stopped: true, Crashed: true},
	// Crashed/Unrecoverable are also reachable from Updating: a child that
	// exits during UPDATING with a code other than 20 is dispatched as an
	// ordinary crash, not an update failure (UPDATE_FAILED is reserved for
	// update_timeout elapsing in expect_update()).
	Updating:      {Updated: true, UpdateFailed: true, Crashed: true, Unrecoverable: true},
	Crashed:       {Starting: true},
	Updated:       {Starting: true},
	Errored:       {Starting: true},
	Unrecoverable: {Starting: true}, // only reachable via restart(forced=true); Machine.Transition requires allowForced
	UpdateFailed:  {},
}

// CanTransition reports whether from -> to is an admissible edge.
func CanTransition(from, to State) bool {
	edges, ok := admissible[from]
	if !ok {
		return false
	}
	return edges[to]
}
