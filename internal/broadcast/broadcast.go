// Package broadcast implements the Broadcaster interface (spec.md §1,
// §6) over an HTTP/SSE transport built with Fiber, generalizing the
// teacher examples' Fiber-based child-control endpoints.
package broadcast

import "github.com/cardano-foundation/node-supervisor/internal/fsm"

// TLSConfig is the opaque TLS artifact forwarded to observers, mirrored
// here to avoid an import cycle with the supervisor package — the field
// set matches spec.md §3 exactly.
type TLSConfig struct {
	CA       []byte `json:"-"`
	Key      []byte `json:"-"`
	Cert     []byte `json:"-"`
	Hostname string `json:"hostname"`
	Port     uint16 `json:"port"`
}

// Broadcaster forwards state changes and the TLS handshake artifact to
// an external observer (spec.md §1).
type Broadcaster interface {
	BroadcastStateChange(state fsm.State)
	BroadcastTLSConfig(tls TLSConfig)
}

// Noop discards every broadcast; used where no observer is attached.
type Noop struct{}

func (Noop) BroadcastStateChange(fsm.State)   {}
func (Noop) BroadcastTLSConfig(TLSConfig)     {}

var _ Broadcaster = Noop{}
