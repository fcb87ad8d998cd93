//go:build windows

package osadapter

import "os"

// extractExitInfo on Windows has no POSIX signal concept; only the exit
// code is meaningful.
func extractExitInfo(ps *os.ProcessState) (int, string) {
	if ps == nil {
		return -1, ""
	}
	return ps.ExitCode(), ""
}
