//go:build !windows

package cli

import (
	"os"
	"syscall"
)

// SIGHUP covers a closed ssh session to the control host.
func interruptSignals() []os.Signal {
	return []os.Signal{syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP}
}
