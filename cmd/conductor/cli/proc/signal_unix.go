//go:build !windows

package proc

import (
	"os"

	"golang.org/x/sys/unix"
)

// sendInterrupt delivers SIGINT, the graceful-stop signal agents trap to
// finish their current turn.
func sendInterrupt(proc *os.Process) error {
	return proc.Signal(unix.SIGINT)
}

// sendKill delivers SIGKILL.
func sendKill(proc *os.Process) error {
	return proc.Signal(unix.SIGKILL)
}
