//go:build linux

package osadapter

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// commandMatches checks /proc/<pid>/cmdline for the daemon executable
// name, the same technique tombee/conductor's isConductorProcess uses to
// avoid sending signals to an unrelated process that reused a stale pid.
func commandMatches(pid int, expectedName string) bool {
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/cmdline", pid))
	if err != nil {
		return false
	}
	cmdline := strings.ReplaceAll(string(data), "\x00", " ")
	cmdline = strings.TrimSpace(cmdline)
	base := filepath.Base(expectedName)
	return strings.Contains(cmdline, expectedName) || strings.Contains(cmdline, base)
}
