// Package osadapter is the supervisor's sole point of contact with the
// operating system: spawning the daemon with stdio redirection and an
// IPC pipe, running shell commands, reading files, opening append-only
// log streams, and probing whether a (pid, name) pair is alive.
package osadapter

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
)

// ChildHandle is the live handle to a spawned daemon process.
type ChildHandle struct {
	Pid int
	cmd *exec.Cmd
	// ipcWrite/ipcRead are the supervisor's end of the duplex IPC pipe;
	// the child's end was wired into cmd's ExtraFiles at spawn time.
	ipcWrite io.WriteCloser
	ipcRead  io.ReadCloser
	// waitOverride lets fakes simulate exit without a real *exec.Cmd.
	waitOverride func() (code int, signal string, err error)
}

// IPCWriter returns the supervisor's write end of the IPC channel.
func (c *ChildHandle) IPCWriter() io.Writer { return c.ipcWrite }

// IPCReader returns the supervisor's read end of the IPC channel.
func (c *ChildHandle) IPCReader() io.Reader { return c.ipcRead }

// ExitInfo blocks until the child exits, returning its exit code, the
// signal that killed it (empty if it exited normally), and the
// underlying *exec.Cmd.Wait error.
func (c *ChildHandle) ExitInfo() (int, string, error) {
	if c.waitOverride != nil {
		return c.waitOverride()
	}
	err := c.cmd.Wait()
	code, signal := extractExitInfo(c.cmd.ProcessState)
	return code, signal, err
}

// Close releases the supervisor's IPC file descriptors. It does not
// touch the process itself.
func (c *ChildHandle) Close() error {
	var err error
	if c.ipcWrite != nil {
		err = c.ipcWrite.Close()
	}
	if c.ipcRead != nil {
		if e := c.ipcRead.Close(); err == nil {
			err = e
		}
	}
	return err
}

// SpawnSpec describes how to launch the daemon.
type SpawnSpec struct {
	Path string
	Args []string
	// Stdout/Stderr are typically the append-only log stream opened via
	// OpenLogAppend; both daemon stdout and stderr are redirected there
	// per spec.md §4.2 ("stdio [inherit, log, log, ipc]").
	Stdout io.Writer
	Stderr io.Writer
}

// Adapter is the OS Adapter interface of spec.md §1 and §2. Production
// code uses realAdapter; tests substitute a fake.
type Adapter interface {
	// Spawn launches the daemon per spec, wiring a duplex IPC pipe as an
	// extra file descriptor pair and returning a handle to it.
	Spawn(ctx context.Context, spec SpawnSpec) (*ChildHandle, error)

	// RunCommand executes name with args to completion, returning
	// combined output. The supervisor core does not call it; the Windows
	// taskkill strategy (§4.4) runs inside Signal/ForceKill instead.
	RunCommand(ctx context.Context, name string, args ...string) ([]byte, error)

	// ReadFile reads an entire file, used for the three TLS files under
	// tls_path (§4.3).
	ReadFile(path string) ([]byte, error)

	// OpenLogAppend opens path in append-create mode for the daemon's
	// stdout/stderr sink (§4.2).
	OpenLogAppend(path string) (io.WriteCloser, error)

	// ProcessAlive reports whether a process with the given pid is
	// currently running and, if expectedName is non-empty, whether its
	// executable/command line matches expectedName (the alive-probe,
	// GLOSSARY: "(pid, process_name) → bool").
	ProcessAlive(pid int, expectedName string) bool

	// Signal sends the platform default termination signal to pid
	// (non-Windows kill strategy, §4.4).
	Signal(pid int) error

	// ForceKill sends an unconditional kill signal to pid (used by the exit
	// handler when the process still looks alive shutdown_timeout after its
	// exit event).
	ForceKill(pid int) error
}

// Real returns the production Adapter backed by the actual OS.
func Real() Adapter { return realAdapter{} }

type realAdapter struct{}

func (realAdapter) Spawn(ctx context.Context, spec SpawnSpec) (*ChildHandle, error) {
	supervisorRead, childWrite, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("osadapter: create child->supervisor pipe: %w", err)
	}
	childRead, supervisorWrite, err := os.Pipe()
	if err != nil {
		supervisorRead.Close()
		childWrite.Close()
		return nil, fmt.Errorf("osadapter: create supervisor->child pipe: %w", err)
	}

	cmd := exec.CommandContext(ctx, spec.Path, spec.Args...)
	cmd.Stdin = nil
	cmd.Stdout = spec.Stdout
	cmd.Stderr = spec.Stderr
	// fd 3 = supervisor->child read end (child's stdin-like IPC read),
	// fd 4 = child->supervisor write end (child's IPC write). The
	// supervisor keeps the opposite ends.
	cmd.ExtraFiles = []*os.File{childRead, childWrite}

	if err := cmd.Start(); err != nil {
		supervisorRead.Close()
		supervisorWrite.Close()
		childRead.Close()
		childWrite.Close()
		return nil, fmt.Errorf("osadapter: spawn %s: %w", spec.Path, err)
	}
	// The child inherited its own copies; the supervisor's copies of the
	// child-local ends must be closed so EOF propagates correctly.
	childRead.Close()
	childWrite.Close()

	return &ChildHandle{
		Pid:      cmd.Process.Pid,
		cmd:      cmd,
		ipcWrite: supervisorWrite,
		ipcRead:  supervisorRead,
	}, nil
}

func (realAdapter) RunCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

func (realAdapter) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

func (realAdapter) OpenLogAppend(path string) (io.WriteCloser, error) {
	return os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
}

func (realAdapter) ProcessAlive(pid int, expectedName string) bool {
	return processAlive(pid, expectedName)
}

func (realAdapter) Signal(pid int) error {
	return signalTerminate(pid)
}

func (realAdapter) ForceKill(pid int) error {
	return signalKill(pid)
}
