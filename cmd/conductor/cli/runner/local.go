package runner

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/entireio/conductor/cmd/conductor/cli/logging"
	"github.com/entireio/conductor/cmd/conductor/cli/proc"
	"github.com/entireio/conductor/cmd/conductor/cli/shellquote"
)

// Local runs commands through the user's login shell so rc-file PATH
// entries and aliases apply, matching what the user would see in their
// own terminal.
type Local struct {
	// Shell overrides $SHELL. Empty falls back to $SHELL then /bin/bash.
	Shell string
}

var _ proc.CommandRunner = (*Local)(nil)

func (r *Local) shell() string {
	if r.Shell != "" {
		return r.Shell
	}
	if s := os.Getenv("SHELL"); s != "" {
		return s
	}
	return "/bin/bash"
}

// Run executes command and streams its output. The working directory is
// entered inside the shell command rather than via the process attribute,
// so login-shell startup (which may chdir) cannot undo it.
func (r *Local) Run(ctx context.Context, sessionID, command, cwd string, emit proc.EmitFunc) (int, error) {
	ctx = logging.WithComponent(ctx, "runner")
	start := time.Now()

	shell := r.shell()
	esc := shellquote.ForShell(shell)
	wrapped := command
	if cwd != "" {
		wrapped = "cd " + esc.QuoteArg(cwd) + " && " + command
	}

	cmd := exec.CommandContext(ctx, shell, "-l", "-c", wrapped)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return -1, fmt.Errorf("failed to open stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return -1, fmt.Errorf("failed to open stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return -1, fmt.Errorf("failed to start shell: %w", err)
	}

	var combined lockedBuffer
	var wg sync.WaitGroup
	wg.Add(2)
	go pump(stdout, &wg, &combined, emitData(emit, sessionID))
	go pump(stderr, &wg, &combined, emitStderr(emit, sessionID))
	wg.Wait()

	code := exitCode(cmd.Wait())
	emit(proc.Event{Type: proc.EventCommandExit, SessionID: sessionID, ExitCode: code})
	logging.LogDuration(ctx, levelFor(code), "command finished", start,
		"session_id", sessionID, "exit_code", code)
	return code, nil
}
