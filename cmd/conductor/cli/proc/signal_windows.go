//go:build windows

package proc

import "os"

// Windows has no SIGINT delivery to another process without a console
// event; interrupt degrades to kill.
func sendInterrupt(proc *os.Process) error {
	return proc.Kill()
}

func sendKill(proc *os.Process) error {
	return proc.Kill()
}
