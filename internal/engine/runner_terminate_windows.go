//go:build windows

package engine

import (
	"os/exec"
	"strconv"
)

func configureCommandForTermination(cmd *exec.Cmd) {}

// There are no process groups to signal; taskkill /T takes the forked
// workers down with the parent.
func terminateCommand(cmd *exec.Cmd) {
	if cmd == nil || cmd.Process == nil {
		return
	}
	if err := exec.Command("taskkill", "/T", "/F", "/PID", strconv.Itoa(cmd.Process.Pid)).Run(); err != nil {
		_ = cmd.Process.Kill()
	}
}
