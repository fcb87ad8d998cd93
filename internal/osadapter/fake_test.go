package osadapter

import (
	"bufio"
	"context"
	"testing"
	"time"
)

func TestFakeSpawnAssignsDistinctPids(t *testing.T) {
	f := NewFake()
	c1, err := f.Spawn(context.Background(), SpawnSpec{Path: "/bin/node"})
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	c2, err := f.Spawn(context.Background(), SpawnSpec{Path: "/bin/node"})
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	if c1.Pid == c2.Pid {
		t.Fatal("expected distinct pids across spawns")
	}
	if !f.ProcessAlive(c1.Pid, "") || !f.ProcessAlive(c2.Pid, "") {
		t.Fatal("both pids should be alive right after spawn")
	}
}

func TestFakeWriteLineIsReadableOnChildHandle(t *testing.T) {
	f := NewFake()
	c, err := f.Spawn(context.Background(), SpawnSpec{Path: "/bin/node"})
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	// The inbound pipe is an unbuffered io.Pipe: WriteLine blocks until
	// the frame is read, so it runs on its own goroutine here.
	writeErr := make(chan error, 1)
	go func() { writeErr <- f.WriteLine(c.Pid, []byte(`{"ReplyPort":1}`)) }()

	r := bufio.NewReader(c.IPCReader())
	line, err := r.ReadString('\n')
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if err := <-writeErr; err != nil {
		t.Fatalf("writeline: %v", err)
	}
	if line != `{"ReplyPort":1}`+"\n" {
		t.Fatalf("unexpected line: %q", line)
	}
}

func TestFakeSimulateExitUnblocksExitInfo(t *testing.T) {
	f := NewFake()
	c, err := f.Spawn(context.Background(), SpawnSpec{Path: "/bin/node"})
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}

	done := make(chan struct{})
	var code int
	var signal string
	go func() {
		code, signal, _ = c.ExitInfo()
		close(done)
	}()

	f.SimulateExit(c.Pid, 20, "")

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("ExitInfo never returned")
	}
	if code != 20 || signal != "" {
		t.Fatalf("unexpected exit info: code=%d signal=%q", code, signal)
	}
	if f.ProcessAlive(c.Pid, "") {
		t.Fatal("pid should be dead after SimulateExit")
	}
}

func TestFakeSetAliveTracksExpectedName(t *testing.T) {
	f := NewFake()
	f.SetAlive(555, true, "cardano-node")
	if !f.ProcessAlive(555, "cardano-node") {
		t.Fatal("expected alive with matching name")
	}
	if f.ProcessAlive(555, "something-else") {
		t.Fatal("expected false for mismatched name")
	}
}

func TestFakeSignalAndForceKillRecordPids(t *testing.T) {
	f := NewFake()
	if err := f.Signal(1); err != nil {
		t.Fatalf("signal: %v", err)
	}
	if err := f.ForceKill(2); err != nil {
		t.Fatalf("forcekill: %v", err)
	}
	if len(f.Signaled) != 1 || f.Signaled[0] != 1 {
		t.Fatalf("unexpected Signaled: %v", f.Signaled)
	}
	if len(f.ForceKills) != 1 || f.ForceKills[0] != 2 {
		t.Fatalf("unexpected ForceKills: %v", f.ForceKills)
	}
}

func TestFakeReadFile(t *testing.T) {
	f := NewFake()
	f.Files["/tls/ca.crt"] = []byte("ca-bytes")
	data, err := f.ReadFile("/tls/ca.crt")
	if err != nil {
		t.Fatalf("readfile: %v", err)
	}
	if string(data) != "ca-bytes" {
		t.Fatalf("unexpected contents: %q", data)
	}
	if _, err := f.ReadFile("/missing"); err == nil {
		t.Fatal("expected error for missing file")
	}
}

var _ Adapter = (*Fake)(nil)
