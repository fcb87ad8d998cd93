//go:build darwin

package osadapter

import (
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// commandMatches shells out to ps, since macOS has no /proc; this is the
// same fallback tombee/conductor's darwin build uses for command-line
// introspection.
func commandMatches(pid int, expectedName string) bool {
	out, err := exec.Command("ps", "-o", "command=", "-p", strconv.Itoa(pid)).Output()
	if err != nil {
		return false
	}
	cmdline := strings.TrimSpace(string(out))
	base := filepath.Base(expectedName)
	return strings.Contains(cmdline, expectedName) || strings.Contains(cmdline, base)
}
