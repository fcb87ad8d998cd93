// Package ipc implements the structured message codec and channel event
// source used for the supervisor<->daemon IPC channel (spec.md §6).
package ipc

import (
	"encoding/json"
	"fmt"
)

// Outbound is a message the supervisor sends to the daemon.
type Outbound struct {
	QueryPort  *[]any     `json:"QueryPort,omitempty"`
	SetFInject *[2]any    `json:"SetFInject,omitempty"`
	RequestID  string     `json:"requestId,omitempty"`
}

// QueryPortMessage builds the {QueryPort: []} frame sent once after
// connection (spec.md §6).
func QueryPortMessage(requestID string) Outbound {
	empty := []any{}
	return Outbound{QueryPort: &empty, RequestID: requestID}
}

// SetFInjectMessage builds the {SetFInject: [fault_id, enabled]} frame
// (spec.md §6).
func SetFInjectMessage(requestID, faultID string, enabled bool) Outbound {
	args := [2]any{faultID, enabled}
	return Outbound{SetFInject: &args, RequestID: requestID}
}

// Encode serializes an Outbound message as a single newline-terminated
// JSON frame, the wire shape the rest of the pack's JSON-RPC-ish
// protocols (e.g. mcp-go's stdio transport) use for a duplex pipe.
func Encode(msg Outbound) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("ipc: encode: %w", err)
	}
	return append(data, '\n'), nil
}

// Inbound is a message received from the daemon. Exactly one of these
// fields is populated per spec.md §6's three inbound message kinds, or
// none for an unrecognized frame (logged and ignored per spec.md §4.3).
type Inbound struct {
	Started   []any  `json:"Started,omitempty"`
	ReplyPort *int   `json:"ReplyPort,omitempty"`
	FInjects  []string `json:"FInjects,omitempty"`
}

// Decode parses a single inbound JSON frame.
func Decode(line []byte) (Inbound, error) {
	var msg Inbound
	if err := json.Unmarshal(line, &msg); err != nil {
		return Inbound{}, fmt.Errorf("ipc: decode: %w", err)
	}
	return msg, nil
}

// Kind classifies a decoded Inbound frame for dispatch/logging.
func (m Inbound) Kind() string {
	switch {
	case m.ReplyPort != nil:
		return "ReplyPort"
	case m.FInjects != nil:
		return "FInjects"
	case m.Started != nil:
		return "Started"
	default:
		return "Unknown"
	}
}
