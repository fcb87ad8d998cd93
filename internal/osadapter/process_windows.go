//go:build windows

package osadapter

import (
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// processAlive on Windows shells out to tasklist, since there is no
// signal-0 equivalent for liveness checking.
func processAlive(pid int, expectedName string) bool {
	out, err := exec.Command("tasklist", "/FI", fmt.Sprintf("PID eq %d", pid), "/FO", "CSV", "/NH").Output()
	if err != nil {
		return false
	}
	line := strings.TrimSpace(string(out))
	if line == "" || strings.Contains(line, "No tasks") {
		return false
	}
	if expectedName == "" {
		return true
	}
	return strings.Contains(strings.ToLower(line), strings.ToLower(expectedName))
}

// signalTerminate on Windows runs the platform's kill strategy from
// spec.md §4.4: "taskkill /pid <pid> /t /f" via the exec primitive.
func signalTerminate(pid int) error {
	return exec.Command("taskkill", "/pid", strconv.Itoa(pid), "/t", "/f").Run()
}

// signalKill is identical to signalTerminate on Windows: taskkill /f is
// already unconditional, so there is no softer variant to escalate from.
func signalKill(pid int) error {
	return signalTerminate(pid)
}
