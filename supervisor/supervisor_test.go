package supervisor_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cardano-foundation/node-supervisor/internal/broadcast"
	"github.com/cardano-foundation/node-supervisor/internal/ipc"
	"github.com/cardano-foundation/node-supervisor/internal/logging"
	"github.com/cardano-foundation/node-supervisor/internal/osadapter"
	"github.com/cardano-foundation/node-supervisor/internal/persist"
	"github.com/cardano-foundation/node-supervisor/supervisor"
)

func testConfig(nodePath string) supervisor.DaemonConfig {
	return supervisor.DaemonConfig{
		NodePath:          nodePath,
		LogFilePath:       "/tmp/node.log",
		TLSPath:           "/tls",
		StartupTimeoutMs:  200,
		ShutdownTimeoutMs: 200,
		KillTimeoutMs:     200,
		UpdateTimeoutMs:   200,
		StartupMaxRetries: 2,
		Network:           "preprod",
	}
}

func seedTLSFiles(fake *osadapter.Fake) {
	fake.Files["/tls/client/ca.crt"] = []byte("ca")
	fake.Files["/tls/client/client.key"] = []byte("key")
	fake.Files["/tls/client/client.pem"] = []byte("pem")
}

func newHarness(t *testing.T) (*supervisor.Supervisor, *osadapter.Fake, *persist.MemoryStore) {
	t.Helper()
	fake := osadapter.NewFake()
	seedTLSFiles(fake)
	store := persist.NewMemoryStore()
	sup := supervisor.New(fake, store, logging.Discard{}, broadcast.Noop{})
	return sup, fake, store
}

// sendReplyPort writes a ReplyPort frame on pid's IPC pipe as the daemon
// would after spawn, unblocking start()'s connect wait and (in STARTING)
// driving the RUNNING transition.
func sendReplyPort(t *testing.T, fake *osadapter.Fake, sup *supervisor.Supervisor, port int) {
	t.Helper()
	require.Eventually(t, func() bool { return sup.Pid() != 0 }, time.Second, time.Millisecond)
	data, err := json.Marshal(ipc.Inbound{ReplyPort: &port})
	require.NoError(t, err)
	require.NoError(t, fake.WriteLine(sup.Pid(), data))
}

func TestStartReachesRunningOnReplyPort(t *testing.T) {
	sup, fake, _ := newHarness(t)
	cfg := testConfig("/bin/cardano-node")

	done := make(chan error, 1)
	go func() { done <- sup.Start(context.Background(), cfg, false) }()

	require.Eventually(t, func() bool { return sup.Pid() != 0 }, time.Second, time.Millisecond)
	sendReplyPort(t, fake, sup, 12345)

	require.NoError(t, <-done)
	require.Equal(t, supervisor.Running, sup.State())
	tls := sup.TlsConfig()
	require.NotNil(t, tls)
	require.Equal(t, uint16(12345), tls.Port)
	require.Equal(t, "localhost", tls.Hostname)
}

func TestStartTimesOutWithoutConnect(t *testing.T) {
	sup, _, _ := newHarness(t)
	cfg := testConfig("/bin/cardano-node")
	cfg.StartupTimeoutMs = 30

	err := sup.Start(context.Background(), cfg, false)
	require.ErrorIs(t, err, supervisor.ErrSpawnTimeout)
}

func TestGracefulStopReachesStopped(t *testing.T) {
	sup, fake, store := newHarness(t)
	cfg := testConfig("/bin/cardano-node")

	done := make(chan error, 1)
	go func() { done <- sup.Start(context.Background(), cfg, false) }()
	require.Eventually(t, func() bool { return sup.Pid() != 0 }, time.Second, time.Millisecond)
	sendReplyPort(t, fake, sup, 1)
	require.NoError(t, <-done)

	pid := sup.Pid()
	// Disconnecting the write side causes the fake's ProcessAlive to keep
	// reporting alive until the test marks it dead, simulating the daemon
	// noticing EOF and exiting on its own within shutdown_timeout.
	go func() {
		time.Sleep(20 * time.Millisecond)
		fake.SetAlive(pid, false, "")
		fake.SimulateExit(pid, 0, "")
	}()

	require.NoError(t, sup.Stop(context.Background()))
	require.Equal(t, supervisor.Stopped, sup.State())

	persisted, ok, err := store.GetInt(context.Background(), persist.PidKey(cfg.Network))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, pid, persisted)
}

func TestStopEscalatesToKillOnTimeout(t *testing.T) {
	sup, fake, _ := newHarness(t)
	cfg := testConfig("/bin/cardano-node")
	cfg.ShutdownTimeoutMs = 20
	cfg.KillTimeoutMs = 200

	done := make(chan error, 1)
	go func() { done <- sup.Start(context.Background(), cfg, false) }()
	require.Eventually(t, func() bool { return sup.Pid() != 0 }, time.Second, time.Millisecond)
	sendReplyPort(t, fake, sup, 1)
	require.NoError(t, <-done)

	pid := sup.Pid()
	// The daemon never reacts to disconnect; Stop must escalate to Kill,
	// which succeeds once the test marks the pid dead shortly after.
	go func() {
		time.Sleep(40 * time.Millisecond)
		fake.SetAlive(pid, false, "")
		fake.SimulateExit(pid, -1, "killed")
	}()

	require.NoError(t, sup.Stop(context.Background()))
	require.Contains(t, fake.Signaled, pid)
}

func TestUnrecoverableAfterRepeatedStartupCrashes(t *testing.T) {
	sup, fake, _ := newHarness(t)
	cfg := testConfig("/bin/cardano-node")
	cfg.StartupMaxRetries = 2

	for i := 0; i < 2; i++ {
		done := make(chan error, 1)
		go func() { done <- sup.Start(context.Background(), cfg, false) }()
		require.Eventually(t, func() bool { return sup.Pid() != 0 }, time.Second, time.Millisecond)
		pid := sup.Pid()
		fake.SetAlive(pid, false, "")
		fake.SimulateExit(pid, 1, "")
		err := <-done
		require.ErrorIs(t, err, supervisor.ErrSpawnTimeout)
		_ = i
	}

	require.Equal(t, supervisor.Unrecoverable, sup.State())

	err := sup.Start(context.Background(), cfg, false)
	require.ErrorIs(t, err, supervisor.ErrTooManyRetries)

	done := make(chan error, 1)
	go func() { done <- sup.Start(context.Background(), cfg, true) }()
	require.Eventually(t, func() bool { return sup.Pid() != 0 }, time.Second, time.Millisecond)
	sendReplyPort(t, fake, sup, 1)
	require.NoError(t, <-done)
	require.Equal(t, supervisor.Running, sup.State())
}

func TestOrphanReapOnStart(t *testing.T) {
	sup, fake, store := newHarness(t)
	cfg := testConfig("/bin/cardano-node")

	fake.SetAlive(999, true, "cardano-node")
	require.NoError(t, store.SetInt(context.Background(), persist.PidKey(cfg.Network), 999))

	go func() {
		time.Sleep(20 * time.Millisecond)
		fake.SetAlive(999, false, "cardano-node")
	}()

	done := make(chan error, 1)
	go func() { done <- sup.Start(context.Background(), cfg, false) }()
	require.Eventually(t, func() bool { return sup.Pid() != 0 }, time.Second, time.Millisecond)
	sendReplyPort(t, fake, sup, 1)
	require.NoError(t, <-done)

	require.Contains(t, fake.Signaled, 999)
}

func TestErroredAutoRestartKillsLiveChildAndRecovers(t *testing.T) {
	sup, fake, _ := newHarness(t)
	cfg := testConfig("/bin/cardano-node")

	done := make(chan error, 1)
	go func() { done <- sup.Start(context.Background(), cfg, false) }()
	require.Eventually(t, func() bool { return sup.Pid() != 0 }, time.Second, time.Millisecond)
	sendReplyPort(t, fake, sup, 1)
	require.NoError(t, <-done)
	require.Equal(t, supervisor.Running, sup.State())

	oldPid := sup.Pid()
	go func() {
		time.Sleep(20 * time.Millisecond)
		fake.SetAlive(oldPid, false, "")
	}()

	// A malformed frame drives handleError -> ERRORED -> an automatic
	// restart, with the old child still reporting alive at the moment
	// ERRORED is entered. ERRORED has no STOPPING edge in the FSM, so the
	// automatic restart must Kill (not Stop) the old child to make progress.
	require.NoError(t, fake.WriteLine(oldPid, []byte("not json")))

	require.Eventually(t, func() bool { return sup.Pid() != 0 && sup.Pid() != oldPid }, time.Second, time.Millisecond)
	require.Contains(t, fake.Signaled, oldPid)

	sendReplyPort(t, fake, sup, 2)
	require.Eventually(t, func() bool { return sup.State() == supervisor.Running }, time.Second, time.Millisecond)
}

func TestInjectFaultAwaitsConfirmation(t *testing.T) {
	sup, fake, _ := newHarness(t)
	cfg := testConfig("/bin/cardano-node")

	done := make(chan error, 1)
	go func() { done <- sup.Start(context.Background(), cfg, false) }()
	require.Eventually(t, func() bool { return sup.Pid() != 0 }, time.Second, time.Millisecond)
	sendReplyPort(t, fake, sup, 1)
	require.NoError(t, <-done)

	pid := sup.Pid()
	go func() {
		time.Sleep(20 * time.Millisecond)
		require.NoError(t, fake.WriteLine(pid, []byte(`{"FInjects":["disk-full"]}`)))
	}()

	require.NoError(t, sup.InjectFault(context.Background(), "disk-full", true))
	require.Contains(t, sup.ActiveFaults(), "disk-full")
}
