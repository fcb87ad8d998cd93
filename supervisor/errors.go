package supervisor

import "errors"

// Error kinds from spec.md §7.
var (
	ErrAlreadyRunning   = errors.New("supervisor: daemon already running")
	ErrOrphanReapFailed = errors.New("supervisor: failed to reap orphaned daemon process")
	ErrTooManyRetries   = errors.New("supervisor: startup_max_retries exhausted")
	ErrSpawnTimeout     = errors.New("supervisor: timed out waiting for daemon to connect")

	ErrKillFailed = errors.New("supervisor: daemon still alive after kill_timeout")

	ErrUpdateTimeout = errors.New("supervisor: timed out waiting for daemon self-update")

	ErrFaultTimeout = errors.New("supervisor: timed out waiting for fault-injection confirmation")

	ErrNoConfig = errors.New("supervisor: start has never been called; no config available")
)
