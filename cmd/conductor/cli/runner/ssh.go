package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/entireio/conductor/cmd/conductor/cli/agent"
	"github.com/entireio/conductor/cmd/conductor/cli/logging"
	"github.com/entireio/conductor/cmd/conductor/cli/proc"
	"github.com/entireio/conductor/cmd/conductor/cli/shellquote"
)

// SSH runs commands on a remote host through the system ssh binary.
// Shelling out instead of linking an SSH library keeps the user's own
// ~/.ssh/config, agent forwarding, and ProxyJump setup working untouched.
type SSH struct {
	Host         string
	User         string
	Port         int
	IdentityFile string

	// ConnectTimeout bounds connection establishment. Zero means 10s.
	ConnectTimeout time.Duration
}

var _ proc.CommandRunner = (*SSH)(nil)

func (r *SSH) target() string {
	if r.User != "" {
		return r.User + "@" + r.Host
	}
	return r.Host
}

// args assembles the ssh argv. BatchMode refuses interactive prompts so a
// missing key fails fast instead of hanging the engine on a password read.
func (r *SSH) args(command, cwd string) []string {
	timeout := r.ConnectTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	args := []string{
		"-o", "BatchMode=yes",
		"-o", "StrictHostKeyChecking=accept-new",
		"-o", fmt.Sprintf("ConnectTimeout=%d", int(timeout.Seconds())),
	}
	if r.Port != 0 {
		args = append(args, "-p", strconv.Itoa(r.Port))
	}
	if r.IdentityFile != "" {
		args = append(args, "-i", r.IdentityFile)
	}

	// The remote side is POSIX regardless of the local platform; quote
	// for sh so remote content is never interpreted locally.
	remote := command
	if cwd != "" {
		esc := shellquote.ForShell("sh")
		remote = "cd " + esc.QuoteArg(cwd) + " && " + command
	}
	return append(args, r.target(), remote)
}

// Run executes command on the remote host. On a non-zero exit the
// combined output is matched against the SSH transport failure patterns
// and a classified agent-error is emitted ahead of command-exit.
func (r *SSH) Run(ctx context.Context, sessionID, command, cwd string, emit proc.EmitFunc) (int, error) {
	ctx = logging.WithComponent(ctx, "runner")
	if r.Host == "" {
		return -1, fmt.Errorf("ssh runner requires a host")
	}
	start := time.Now()

	cmd := exec.CommandContext(ctx, "ssh", r.args(command, cwd)...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return -1, fmt.Errorf("failed to open stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return -1, fmt.Errorf("failed to open stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return -1, fmt.Errorf("failed to start ssh: %w", err)
	}

	var combined lockedBuffer
	var wg sync.WaitGroup
	wg.Add(2)
	go pump(stdout, &wg, &combined, emitData(emit, sessionID))
	go pump(stderr, &wg, &combined, emitStderr(emit, sessionID))
	wg.Wait()

	code := exitCode(cmd.Wait())
	if code != 0 {
		if aerr := agent.ClassifySSHOutput(agent.AgentTypeTerminal, combined.String()); aerr != nil {
			aerr.SessionID = sessionID
			emit(proc.Event{Type: proc.EventAgentError, SessionID: sessionID, Err: aerr})
			logging.Warn(ctx, "ssh transport failure",
				"session_id", sessionID, "tag", string(aerr.Tag), "host", r.Host)
		}
	}
	emit(proc.Event{Type: proc.EventCommandExit, SessionID: sessionID, ExitCode: code})
	logging.LogDuration(ctx, levelFor(code), "remote command finished", start,
		"session_id", sessionID, "host", r.Host, "exit_code", code)
	return code, nil
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

func levelFor(code int) slog.Level {
	if code == 0 {
		return slog.LevelInfo
	}
	return slog.LevelWarn
}
