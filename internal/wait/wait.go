// Package wait provides the single bounded-condition-wait primitive the
// supervisor uses for every timeout in spec.md (startup, shutdown, kill,
// update, fault-injection confirmation).
package wait

import (
	"context"
	"time"
)

// defaultPollInterval is how often Condition is re-evaluated when no
// signal channel is supplied.
const defaultPollInterval = 50 * time.Millisecond

// Condition awaits predicate() becoming true, polling every interval
// (defaultPollInterval if interval <= 0), up to timeout. It returns nil
// on success and context.DeadlineExceeded on timeout. ctx cancellation
// also terminates the wait early with ctx.Err().
func Condition(ctx context.Context, timeout time.Duration, predicate func() bool) error {
	return ConditionInterval(ctx, timeout, defaultPollInterval, predicate)
}

// ConditionInterval is Condition with an explicit poll interval, exposed
// for tests that want faster polling than the production default.
func ConditionInterval(ctx context.Context, timeout time.Duration, interval time.Duration, predicate func() bool) error {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	if predicate() {
		return nil
	}
	if timeout <= 0 {
		return context.DeadlineExceeded
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			if predicate() {
				return nil
			}
			return context.DeadlineExceeded
		case <-ticker.C:
			if predicate() {
				return nil
			}
		}
	}
}

// Signal awaits either ch closing/firing or timeout elapsing. It is used
// where the supervisor already has an event source (e.g. the IPC
// channel's exit signal) rather than a predicate to poll.
func Signal(ctx context.Context, timeout time.Duration, ch <-chan struct{}) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-ch:
		return nil
	case <-timer.C:
		return context.DeadlineExceeded
	}
}
