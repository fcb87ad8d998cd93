//go:build !windows

package osadapter

import (
	"os"
	"syscall"
)

// extractExitInfo reads the exit code and terminating signal (if any)
// out of an *os.ProcessState on POSIX platforms, where Sys() is a
// syscall.WaitStatus.
func extractExitInfo(ps *os.ProcessState) (int, string) {
	if ps == nil {
		return -1, ""
	}
	ws, ok := ps.Sys().(syscall.WaitStatus)
	if !ok {
		return ps.ExitCode(), ""
	}
	if ws.Signaled() {
		return -1, ws.Signal().String()
	}
	return ps.ExitCode(), ""
}
