package osadapter

import (
	"context"
	"errors"
	"io"
	"sync"
)

// Fake is an in-memory Adapter for tests, replacing real subprocesses and
// the filesystem so the FSM and retry/orphan logic can be exercised
// deterministically (SPEC_FULL.md §10.4).
type Fake struct {
	mu sync.Mutex

	// SpawnFunc, when set, is called instead of the default behavior.
	SpawnFunc func(ctx context.Context, spec SpawnSpec) (*ChildHandle, error)

	Files map[string][]byte

	// Alive maps pid -> whether ProcessAlive should report it running.
	Alive map[int]bool
	// Names maps pid -> the command-line name ProcessAlive should report
	// for it, used to validate the expectedName argument.
	Names map[int]string

	RunCommandFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

	Signaled   []int
	ForceKills []int

	nextPid int
	exits   map[int]*fakeExit
	inbound map[int]*io.PipeWriter
}

type fakeExit struct {
	mu     sync.Mutex
	done   chan struct{}
	code   int
	signal string
}

// NewFake returns an empty Fake adapter.
func NewFake() *Fake {
	return &Fake{
		Files:   map[string][]byte{},
		Alive:   map[int]bool{},
		Names:   map[int]string{},
		nextPid: 1000,
		exits:   map[int]*fakeExit{},
		inbound: map[int]*io.PipeWriter{},
	}
}

func (f *Fake) Spawn(ctx context.Context, spec SpawnSpec) (*ChildHandle, error) {
	if f.SpawnFunc != nil {
		return f.SpawnFunc(ctx, spec)
	}
	f.mu.Lock()
	f.nextPid++
	pid := f.nextPid
	fe := &fakeExit{done: make(chan struct{})}
	f.exits[pid] = fe
	f.Alive[pid] = true
	f.mu.Unlock()

	// Two independent pipes, mirroring the real adapter's duplex wiring:
	// outboundR/outboundW carry supervisor->child frames (drained here,
	// since the fake has no real child to read them); inboundR/inboundW
	// carry child->supervisor frames, the latter exposed via WriteLine so
	// tests can simulate the daemon speaking.
	outboundR, outboundW := io.Pipe()
	inboundR, inboundW := io.Pipe()
	go io.Copy(io.Discard, outboundR)

	f.mu.Lock()
	f.inbound[pid] = inboundW
	f.mu.Unlock()

	return &ChildHandle{
		Pid:      pid,
		ipcWrite: outboundW,
		ipcRead:  inboundR,
		waitOverride: func() (int, string, error) {
			<-fe.done
			fe.mu.Lock()
			defer fe.mu.Unlock()
			return fe.code, fe.signal, nil
		},
	}, nil
}

// WriteLine writes a single newline-terminated frame on pid's inbound
// pipe, as if the daemon had sent it. The pipe is unbuffered, so the call
// returns only once the frame has been read from the child handle.
func (f *Fake) WriteLine(pid int, line []byte) error {
	f.mu.Lock()
	w, ok := f.inbound[pid]
	f.mu.Unlock()
	if !ok {
		return errNoSuchPid
	}
	if len(line) == 0 || line[len(line)-1] != '\n' {
		line = append(append([]byte{}, line...), '\n')
	}
	_, err := w.Write(line)
	return err
}

// SimulateExit marks pid as exited with the given code/signal and wakes
// up any ExitInfo() call blocked on it. It also marks the pid dead for
// ProcessAlive and closes its inbound pipe, so the IPC channel's reader
// observes EOF and emits the terminal exit event, as a real process
// death would.
func (f *Fake) SimulateExit(pid, code int, signal string) {
	f.mu.Lock()
	fe, ok := f.exits[pid]
	inbound := f.inbound[pid]
	f.Alive[pid] = false
	f.mu.Unlock()
	if !ok {
		return
	}
	fe.mu.Lock()
	fe.code = code
	fe.signal = signal
	fe.mu.Unlock()
	if inbound != nil {
		inbound.Close()
	}
	close(fe.done)
}

func (f *Fake) RunCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	if f.RunCommandFunc != nil {
		return f.RunCommandFunc(ctx, name, args...)
	}
	return nil, nil
}

var errNoSuchPid = errors.New("osadapter/fake: no such pid")

func (f *Fake) ReadFile(path string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.Files[path]
	if !ok {
		return nil, errors.New("osadapter/fake: no such file: " + path)
	}
	return data, nil
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

func (f *Fake) OpenLogAppend(path string) (io.WriteCloser, error) {
	return nopWriteCloser{io.Discard}, nil
}

func (f *Fake) ProcessAlive(pid int, expectedName string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.Alive[pid] {
		return false
	}
	if expectedName == "" {
		return true
	}
	return f.Names[pid] == expectedName
}

func (f *Fake) Signal(pid int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Signaled = append(f.Signaled, pid)
	return nil
}

func (f *Fake) ForceKill(pid int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ForceKills = append(f.ForceKills, pid)
	return nil
}

// SetAlive marks pid as alive/dead under the given command-line name,
// for orphan-reap and kill-confirmation tests.
func (f *Fake) SetAlive(pid int, alive bool, name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Alive[pid] = alive
	if name != "" {
		f.Names[pid] = name
	}
}

var _ Adapter = (*Fake)(nil)
