// Package faults tracks the fault-injection identifiers the daemon has
// confirmed active, and supports awaiting a specific confirmation
// (spec.md §2, §4.2, §8).
package faults

import (
	"context"
	"sync"
	"time"

	"github.com/cardano-foundation/node-supervisor/internal/wait"
)

// Tracker holds the set of currently active fault ids. It is never
// mutated optimistically (spec.md §3 invariant 4) — only Replace, called
// from the FInjects inbound-message handler, changes it.
type Tracker struct {
	mu     sync.RWMutex
	active map[string]struct{}
}

// New returns an empty Tracker.
func New() *Tracker {
	return &Tracker{active: map[string]struct{}{}}
}

// Replace sets the active fault set to exactly ids, discarding any prior
// contents (spec.md §4.3: "replace active_faults with the set").
func (t *Tracker) Replace(ids []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.active = make(map[string]struct{}, len(ids))
	for _, id := range ids {
		t.active[id] = struct{}{}
	}
}

// Contains reports whether id is currently active.
func (t *Tracker) Contains(id string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.active[id]
	return ok
}

// Snapshot returns a copy of the active set, for the public API surface.
func (t *Tracker) Snapshot() map[string]struct{} {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]struct{}, len(t.active))
	for k := range t.active {
		out[k] = struct{}{}
	}
	return out
}

// AwaitConfirmation blocks until id's presence in the active set matches
// wantEnabled, or timeout elapses (spec.md §4.2 inject_fault).
func (t *Tracker) AwaitConfirmation(ctx context.Context, id string, wantEnabled bool, timeout time.Duration) error {
	return wait.Condition(ctx, timeout, func() bool {
		return t.Contains(id) == wantEnabled
	})
}
