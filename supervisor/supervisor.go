package supervisor

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cardano-foundation/node-supervisor/internal/broadcast"
	"github.com/cardano-foundation/node-supervisor/internal/faults"
	"github.com/cardano-foundation/node-supervisor/internal/fsm"
	"github.com/cardano-foundation/node-supervisor/internal/ipc"
	"github.com/cardano-foundation/node-supervisor/internal/logging"
	"github.com/cardano-foundation/node-supervisor/internal/osadapter"
	"github.com/cardano-foundation/node-supervisor/internal/persist"
	"github.com/cardano-foundation/node-supervisor/internal/wait"
)

// Supervisor owns a single daemon's lifecycle: the FSM, the IPC channel,
// the spawned child handle, cached TLS artifact and opaque status, and
// the fault tracker (spec.md §1, §3).
//
// opMu is the single "busy guard" serializing the six public operations
// and the background event-loop's handling of each inbound event — it is
// released before any wait that depends on the event loop (connect,
// graceful stop, update, fault confirmation), so event-loop processing
// (e.g. observing the child's exit) can still make progress while such an
// operation waits (spec.md §5). Waits that only poll the alive-probe
// (Kill, Start's orphan reap, the exit handler's death check) run with
// opMu held.
//
// mu guards the fields read by the getters in api.go and written from
// both operations and the event loop; it is a plain data lock, unrelated
// to opMu's critical-section discipline.
type Supervisor struct {
	opMu sync.Mutex

	adapter osadapter.Adapter
	store   persist.Store
	logger  logging.Logger
	bcast   broadcast.Broadcaster
	machine *fsm.Machine
	tracker *faults.Tracker

	mu           sync.RWMutex
	config       *DaemonConfig
	child        *osadapter.ChildHandle
	channel      *ipc.Channel
	tls          *TlsConfig
	status       Status
	startupTries uint32
	logSink      io.WriteCloser
}

// New constructs a Supervisor in STOPPED. adapter, store and logger are
// required; bcast may be broadcast.Noop{} if nothing observes transitions.
func New(adapter osadapter.Adapter, store persist.Store, logger logging.Logger, bcast broadcast.Broadcaster) *Supervisor {
	s := &Supervisor{
		adapter: adapter,
		store:   store,
		logger:  logger,
		bcast:   bcast,
		tracker: faults.New(),
	}
	s.machine = fsm.New(fsm.Listeners{}, bcast, s.onListenerPanic)
	return s
}

// SetListeners registers the nine-callback bundle a caller may react to
// transitions with (spec.md §9).
func (s *Supervisor) SetListeners(l Listeners) {
	s.machine.SetListeners(l)
}

func (s *Supervisor) onListenerPanic(state fsm.State, recovered any) {
	s.logger.Error("listener panicked", "state", state.String(), "recovered", fmt.Sprintf("%v", recovered))
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// Start spawns the daemon per cfg. forced bypasses the UNRECOVERABLE
// lockout (spec.md §4.1's forced-restart edge) and the startup_tries
// exhaustion check (Open Question #1, resolved: forced restarts always
// reset the retry counter and attempt a spawn).
func (s *Supervisor) Start(ctx context.Context, cfg DaemonConfig, forced bool) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	s.opMu.Lock()

	cur := s.machine.Current()
	if cur == Unrecoverable && !forced {
		// spec.md §8 scenario 5: an unforced start against UNRECOVERABLE is
		// reported as retry exhaustion, not as "already running" — it is the
		// same startup_tries lockout a forced restart exists to bypass.
		s.opMu.Unlock()
		return ErrTooManyRetries
	}
	allowed := cur == Stopped || cur == Crashed || cur == Updated || cur == Errored || cur == Unrecoverable
	if !allowed {
		s.opMu.Unlock()
		return ErrAlreadyRunning
	}

	if err := s.reapOrphan(ctx, cfg); err != nil {
		s.opMu.Unlock()
		return err
	}

	s.mu.RLock()
	tries := s.startupTries
	s.mu.RUnlock()
	if !forced && tries >= uint32(cfg.StartupMaxRetries) {
		s.opMu.Unlock()
		return ErrTooManyRetries
	}

	s.mu.Lock()
	s.config = &cfg
	if forced {
		s.startupTries = 0
	}
	s.startupTries++
	s.mu.Unlock()

	if !s.machine.Transition(Starting, forced, 0, "", nil) {
		s.opMu.Unlock()
		return fmt.Errorf("supervisor: cannot start from %s", cur)
	}

	logSink, err := s.adapter.OpenLogAppend(cfg.LogFilePath)
	if err != nil {
		wrapped := fmt.Errorf("supervisor: open log file: %w", err)
		s.failStartup(ctx, wrapped)
		s.opMu.Unlock()
		return wrapped
	}
	s.mu.Lock()
	s.logSink = logSink
	s.mu.Unlock()

	child, err := s.adapter.Spawn(ctx, osadapter.SpawnSpec{Path: cfg.NodePath, Args: cfg.NodeArgs, Stdout: logSink, Stderr: logSink})
	if err != nil {
		wrapped := fmt.Errorf("supervisor: spawn daemon: %w", err)
		s.failStartup(ctx, wrapped)
		s.opMu.Unlock()
		return wrapped
	}
	s.mu.Lock()
	s.child = child
	s.mu.Unlock()

	connected := make(chan struct{})
	var connectedOnce sync.Once
	channel := ipc.NewChannel(child.IPCReader(), child.IPCWriter(), child.ExitInfo)
	s.mu.Lock()
	s.channel = channel
	s.mu.Unlock()

	go s.runEventLoop(channel, &connectedOnce, connected)

	// Release before the blocking wait: the event loop needs opMu to
	// dispatch the ReplyPort message that signals "connected".
	s.opMu.Unlock()

	startupTimeout := cfg.StartupTimeout()
	if err := wait.Signal(ctx, startupTimeout, connected); err != nil {
		return ErrSpawnTimeout
	}

	if err := channel.Send(ipc.QueryPortMessage(uuid.NewString())); err != nil {
		s.logger.Warn("failed to send QueryPort", "err", err.Error())
	}
	return nil
}

// failStartup handles a spawn-time failure (log open or Spawn itself
// failed) before any child or event loop exists: it synthesizes the same
// CRASHED/UNRECOVERABLE verdict the exit handler would reach, since no
// exit event will ever arrive for a child that was never spawned. Caller
// must hold opMu.
func (s *Supervisor) failStartup(ctx context.Context, err error) {
	s.mu.RLock()
	tries := s.startupTries
	var maxRetries uint32
	if s.config != nil {
		maxRetries = uint32(s.config.StartupMaxRetries)
	}
	s.mu.RUnlock()

	to := Crashed
	if tries >= maxRetries {
		to = Unrecoverable
	}
	s.machine.Transition(to, false, -1, "", err)
	s.reset(ctx)
}

// reapOrphan checks the persisted pid for cfg.Network and, if the
// process it names is still alive, kills and confirms it before startup
// proceeds (spec.md §4.2's orphan-reap step). Caller must hold opMu.
func (s *Supervisor) reapOrphan(ctx context.Context, cfg DaemonConfig) error {
	key := persist.PidKey(cfg.Network)
	pid, ok, err := s.store.GetInt(ctx, key)
	if err != nil {
		s.logger.Warn("failed to read persisted pid", "err", err.Error())
		return nil
	}
	if !ok {
		return nil
	}
	name := filepath.Base(cfg.NodePath)
	if !s.adapter.ProcessAlive(pid, name) {
		return nil
	}

	if err := s.adapter.Signal(pid); err != nil {
		s.logger.Warn("orphan reap: signal failed", "pid", pid, "err", err.Error())
	}
	if err := wait.Condition(ctx, cfg.KillTimeout(), func() bool { return !s.adapter.ProcessAlive(pid, name) }); err != nil {
		return ErrOrphanReapFailed
	}
	return nil
}

// reset performs spec.md §9's Reset: persist the pid (if any) first,
// then close the log sink, detach the IPC channel and clear the cached
// TLS artifact. It is invoked at the end of every terminal transition —
// from the exit handler (which completes stop()'s graceful path), from
// failStartup, and from both of kill()'s outcomes.
func (s *Supervisor) reset(ctx context.Context) {
	s.mu.RLock()
	var pid int
	if s.child != nil {
		pid = s.child.Pid
	}
	network := ""
	if s.config != nil {
		network = s.config.Network
	}
	s.mu.RUnlock()

	if pid != 0 {
		if err := s.store.SetInt(ctx, persist.PidKey(network), pid); err != nil {
			s.logger.Warn("failed to persist pid", "pid", pid, "err", err.Error())
		}
	}

	s.mu.Lock()
	if s.logSink != nil {
		s.logSink.Close()
		s.logSink = nil
	}
	if s.channel != nil {
		s.channel.Disconnect()
		s.channel = nil
	}
	s.child = nil
	s.tls = nil
	s.mu.Unlock()
}

// runEventLoop is the background goroutine draining the IPC channel's
// event stream for the lifetime of one spawned child. It exits once the
// channel is closed (after the terminal exit/error event).
func (s *Supervisor) runEventLoop(ch *ipc.Channel, connectedOnce *sync.Once, connected chan struct{}) {
	for ev := range ch.Events() {
		if ev.Kind == ipc.EventMessage {
			connectedOnce.Do(func() { close(connected) })
		}

		s.opMu.Lock()
		switch ev.Kind {
		case ipc.EventMessage:
			s.handleMessage(ev.Message)
		case ipc.EventExit:
			s.handleExit(ev.ExitCode, ev.ExitSignal)
		case ipc.EventError:
			s.handleError(ev.Err)
		}
		s.opMu.Unlock()
	}
}

// handleMessage dispatches one decoded inbound frame. Caller must hold
// opMu (spec.md §4.3).
func (s *Supervisor) handleMessage(msg ipc.Inbound) {
	switch msg.Kind() {
	case "ReplyPort":
		s.handleReplyPort(*msg.ReplyPort)
	case "FInjects":
		s.tracker.Replace(msg.FInjects)
		s.logger.Info("fault injection set updated", "count", len(msg.FInjects))
	default:
		s.logger.Info("ignoring inbound frame", "kind", msg.Kind())
	}
}

// handleReplyPort assembles the TLS artifact from the three files under
// tls_path/client and, the first time this is seen during STARTING,
// resets the retry counter, transitions to RUNNING, and broadcasts the TLS
// config exactly once for the RUNNING entry (spec.md §4.3, §6). A
// ReplyPort received again later (already RUNNING or beyond) only
// refreshes the cached TLS value; it is not re-broadcast.
func (s *Supervisor) handleReplyPort(port int) {
	s.mu.RLock()
	cfg := s.config
	s.mu.RUnlock()
	if cfg == nil {
		return
	}

	ca, errCA := s.adapter.ReadFile(filepath.Join(cfg.TLSPath, "client", "ca.crt"))
	key, errKey := s.adapter.ReadFile(filepath.Join(cfg.TLSPath, "client", "client.key"))
	cert, errCert := s.adapter.ReadFile(filepath.Join(cfg.TLSPath, "client", "client.pem"))
	if err := firstErr(errCA, errKey, errCert); err != nil {
		s.handleError(fmt.Errorf("supervisor: read TLS files: %w", err))
		return
	}

	tls := &TlsConfig{CA: ca, Key: key, Cert: cert, Hostname: "localhost", Port: uint16(port)}
	s.mu.Lock()
	s.tls = tls
	s.mu.Unlock()

	if s.machine.Current() == Starting {
		s.mu.Lock()
		s.startupTries = 0
		s.mu.Unlock()
		s.machine.Transition(Running, false, 0, "", nil)
		s.bcast.BroadcastTLSConfig(broadcast.TLSConfig{Hostname: tls.Hostname, Port: tls.Port})
	}
}

// handleError transitions to ERRORED and kicks off a restart, per
// spec.md §4.3's "on malformed frame or TLS read failure, transition to
// ERRORED ... then call restart()". The restart runs in its own
// goroutine since restart() needs opMu, which this handler's caller
// (runEventLoop) is currently holding.
func (s *Supervisor) handleError(err error) {
	s.logger.Error("ipc channel error", "err", err.Error())
	s.machine.Transition(Errored, false, 0, "", err)
	go func() {
		if rerr := s.Restart(context.Background(), false); rerr != nil {
			s.logger.Error("automatic restart after error failed", "err", rerr.Error())
		}
	}()
}

// handleExit implements spec.md §4.4's exit dispatch table. Caller must
// hold opMu.
func (s *Supervisor) handleExit(code int, signal string) {
	s.mu.RLock()
	childPid := 0
	if s.child != nil {
		childPid = s.child.Pid
	}
	cfg := s.config
	s.mu.RUnlock()
	if childPid == 0 {
		// Already reset by a concurrent kill()/stop() escalation; this is
		// the IPC pipe's own EOF arriving after the fact.
		return
	}

	cur := s.machine.Current()
	if cur == Running {
		s.machine.Transition(Exiting, false, 0, "", nil)
		cur = Exiting
	}

	name := ""
	if cfg != nil {
		name = filepath.Base(cfg.NodePath)
	}
	shutdownTimeout := time.Duration(0)
	if cfg != nil {
		shutdownTimeout = cfg.ShutdownTimeout()
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout+time.Second)
	waitErr := wait.Condition(ctx, shutdownTimeout, func() bool { return !s.adapter.ProcessAlive(childPid, name) })
	cancel()
	if waitErr != nil {
		if kerr := s.adapter.ForceKill(childPid); kerr != nil {
			s.logger.Warn("force kill after exit-confirm timeout failed", "pid", childPid, "err", kerr.Error())
		}
	}

	var to State
	switch {
	case cur == Stopping:
		to = Stopped
	case cur == Updating && code == 20:
		to = Updated
	default:
		s.mu.RLock()
		tries := s.startupTries
		var maxRetries uint32
		if cfg != nil {
			maxRetries = uint32(cfg.StartupMaxRetries)
		}
		s.mu.RUnlock()
		if tries >= maxRetries {
			to = Unrecoverable
		} else {
			to = Crashed
		}
	}

	s.machine.Transition(to, false, code, signal, nil)
	s.reset(context.Background())
}

// Stop requests a graceful shutdown: disconnect the IPC channel and wait
// for the daemon to exit on its own, escalating to Kill if
// shutdown_timeout elapses (spec.md §4.2).
func (s *Supervisor) Stop(ctx context.Context) error {
	s.opMu.Lock()

	s.mu.RLock()
	child := s.child
	cfg := s.config
	channel := s.channel
	s.mu.RUnlock()
	if child == nil {
		s.opMu.Unlock()
		return nil
	}

	if !s.machine.Transition(Stopping, false, 0, "", nil) {
		s.opMu.Unlock()
		return fmt.Errorf("supervisor: cannot stop from %s", s.machine.Current())
	}
	if channel != nil {
		channel.Disconnect()
	}

	// Release before waiting: the event loop needs opMu to process the
	// resulting exit event and complete the STOPPING -> STOPPED edge.
	s.opMu.Unlock()

	shutdownTimeout := time.Duration(0)
	if cfg != nil {
		shutdownTimeout = cfg.ShutdownTimeout()
	}
	err := wait.Condition(ctx, shutdownTimeout, func() bool { return s.machine.Current() == Stopped })
	if err != nil {
		return s.Kill(ctx)
	}
	return nil
}

// Kill unconditionally signals the daemon and waits up to kill_timeout
// for it to die, bypassing IPC entirely (spec.md §4.2). Unlike Stop and
// the other operations, Kill holds opMu for its whole duration: its wait
// polls the alive-probe directly rather than depending on the event loop
// to make progress, so there is no deadlock risk in holding the lock
// throughout.
func (s *Supervisor) Kill(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.RLock()
	child := s.child
	cfg := s.config
	s.mu.RUnlock()
	if child == nil {
		return nil
	}

	name := ""
	killTimeout := time.Duration(0)
	if cfg != nil {
		name = filepath.Base(cfg.NodePath)
		killTimeout = cfg.KillTimeout()
	}

	if err := s.adapter.Signal(child.Pid); err != nil {
		s.logger.Warn("kill: signal failed", "pid", child.Pid, "err", err.Error())
	}
	if err := wait.Condition(ctx, killTimeout, func() bool { return !s.adapter.ProcessAlive(child.Pid, name) }); err != nil {
		s.reset(ctx)
		return ErrKillFailed
	}

	s.machine.Transition(Stopped, false, 0, "", nil)
	s.reset(ctx)
	return nil
}

// Restart stops (or kills) the running daemon if any, then starts it
// again with the last-used config. If the stop/kill or the start fails it
// forces ERRORED and surfaces the error (spec.md §4.2); if Start has never
// been called it returns ErrNoConfig without a state change.
func (s *Supervisor) Restart(ctx context.Context, forced bool) error {
	s.mu.RLock()
	child := s.child
	cfg := s.config
	s.mu.RUnlock()

	if child != nil {
		// From ERRORED the FSM has no STOPPING edge (admissible[Errored] is
		// {Starting} only) — Stop's graceful Transition(Stopping) would fail
		// and leave the still-live child orphaned with the machine stuck in
		// ERRORED (spec.md §4.3's "transition to ERRORED ... then call
		// restart()" only works if restart can actually tear the child down).
		// Kill bypasses IPC and the STOPPING state entirely, so it reaches the
		// child regardless of which state Restart was entered from.
		var stopErr error
		if s.machine.Current() == Errored {
			stopErr = s.Kill(ctx)
		} else {
			stopErr = s.Stop(ctx)
		}
		if stopErr != nil {
			s.machine.Force(Errored, stopErr)
			return stopErr
		}
	}

	if cfg == nil {
		return ErrNoConfig
	}
	if err := s.Start(ctx, *cfg, forced); err != nil {
		s.machine.Force(Errored, err)
		return err
	}
	return nil
}

// ExpectUpdate puts the supervisor into UPDATING, awaiting the daemon's
// self-initiated exit with code 20 (spec.md §4.2, §6). If update_timeout
// elapses before the transition to UPDATED, the machine moves to
// UPDATE_FAILED; on that timeout, or if the process has not exited
// update_timeout after reaching UPDATED, the daemon is killed and
// ErrUpdateTimeout is returned.
func (s *Supervisor) ExpectUpdate(ctx context.Context) error {
	s.opMu.Lock()
	s.mu.RLock()
	cfg := s.config
	var pid int
	if s.child != nil {
		pid = s.child.Pid
	}
	s.mu.RUnlock()

	if !s.machine.Transition(Updating, false, 0, "", nil) {
		s.opMu.Unlock()
		return fmt.Errorf("supervisor: cannot expect_update from %s", s.machine.Current())
	}
	s.opMu.Unlock()

	updateTimeout := time.Duration(0)
	name := ""
	if cfg != nil {
		updateTimeout = cfg.UpdateTimeout()
		name = filepath.Base(cfg.NodePath)
	}

	if err := wait.Condition(ctx, updateTimeout, func() bool { return s.machine.Current() == Updated }); err != nil {
		s.machine.Transition(UpdateFailed, false, 0, "", nil)
		s.Kill(ctx)
		return ErrUpdateTimeout
	}

	if pid != 0 {
		if err := wait.Condition(ctx, updateTimeout, func() bool { return !s.adapter.ProcessAlive(pid, name) }); err != nil {
			s.Kill(ctx)
			return ErrUpdateTimeout
		}
	}
	return nil
}

// InjectFault sends a SetFInject frame and waits for the daemon to
// confirm the requested on/off state via a subsequent FInjects frame
// (spec.md §4.2, §6). A no-op (nil error) if no daemon is attached.
func (s *Supervisor) InjectFault(ctx context.Context, faultID string, enable bool) error {
	s.opMu.Lock()
	s.mu.RLock()
	child := s.child
	channel := s.channel
	cfg := s.config
	s.mu.RUnlock()
	if child == nil {
		s.opMu.Unlock()
		return nil
	}
	if channel != nil {
		if err := channel.Send(ipc.SetFInjectMessage(uuid.NewString(), faultID, enable)); err != nil {
			s.opMu.Unlock()
			return fmt.Errorf("supervisor: send SetFInject: %w", err)
		}
	}
	s.opMu.Unlock()

	// Open Question #2, resolved: confirmation uses the same
	// startup_timeout bound as the initial connect handshake, since
	// spec.md names no dedicated fault-confirmation timeout field.
	timeout := time.Duration(0)
	if cfg != nil {
		timeout = cfg.StartupTimeout()
	}
	if err := s.tracker.AwaitConfirmation(ctx, faultID, enable, timeout); err != nil {
		return ErrFaultTimeout
	}
	return nil
}
