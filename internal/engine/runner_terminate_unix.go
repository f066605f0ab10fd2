//go:build !windows

package engine

import (
	"os/exec"
	"syscall"
	"time"
)

// terminateGrace is how long ansible-playbook gets to react to SIGINT before
// its process group is killed.
const terminateGrace = 3 * time.Second

func configureCommandForTermination(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// terminateCommand interrupts the whole process group the way Ctrl-C in a
// terminal would, then kills whatever is left after terminateGrace.
func terminateCommand(cmd *exec.Cmd) {
	if cmd == nil || cmd.Process == nil {
		return
	}
	pid := cmd.Process.Pid
	if pid <= 0 {
		_ = cmd.Process.Kill()
		return
	}
	if err := syscall.Kill(-pid, syscall.SIGINT); err != nil {
		_ = syscall.Kill(-pid, syscall.SIGKILL)
		_ = cmd.Process.Kill()
		return
	}
	time.AfterFunc(terminateGrace, func() {
		_ = syscall.Kill(-pid, syscall.SIGKILL)
	})
}
