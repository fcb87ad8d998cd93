// Package supervisor is the core of this repository: it owns a single
// Cardano node daemon's lifecycle end-to-end — spawn, IPC, the eleven-
// state lifecycle FSM, TLS harvesting, pid persistence, and orphan
// reaping (spec.md §1).
package supervisor

import (
	"github.com/cardano-foundation/node-supervisor/internal/config"
	"github.com/cardano-foundation/node-supervisor/internal/fsm"
)

// DaemonConfig re-exports the config package's type so callers only
// import the supervisor package for normal use.
type DaemonConfig = config.DaemonConfig

// State re-exports the fsm package's LifecycleState type.
type State = fsm.State

const (
	Stopped       = fsm.Stopped
	Starting      = fsm.Starting
	Running       = fsm.Running
	Exiting       = fsm.Exiting
	Stopping      = fsm.Stopping
	Updating      = fsm.Updating
	Updated       = fsm.Updated
	Crashed       = fsm.Crashed
	Errored       = fsm.Errored
	Unrecoverable = fsm.Unrecoverable
	UpdateFailed  = fsm.UpdateFailed
)

// TlsConfig is opaque to the supervisor and forwarded verbatim
// (spec.md §3).
type TlsConfig struct {
	CA       []byte
	Key      []byte
	Cert     []byte
	Hostname string
	Port     uint16
}

// Status is an opaque value the supervisor caches on behalf of callers;
// the core never interprets it (spec.md §3).
type Status = any

// Listeners is the nine-callback bundle a caller may register
// (spec.md §9); re-exported so callers don't need to import internal/fsm.
type Listeners = fsm.Listeners
