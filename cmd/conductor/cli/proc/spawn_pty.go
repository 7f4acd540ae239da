//go:build !windows

package proc

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/creack/pty"

	"github.com/entireio/conductor/cmd/conductor/cli/envpath"
	"github.com/entireio/conductor/cmd/conductor/cli/logging"
)

// startPTY spawns a session on a pseudo-terminal. Bare terminal sessions
// run the user's shell as an interactive login shell with a curated
// minimal environment; agents on a PTY run their own binary with the full
// inherited environment.
func (m *Manager) startPTY(ctx context.Context, p *ManagedProcess) error {
	cfg := p.cfg

	var cmd *exec.Cmd
	if cfg.Command == "" {
		shell := os.Getenv("SHELL")
		if shell == "" {
			shell = "/bin/bash"
		}
		cmd = exec.Command(shell, "-il")
		cmd.Env = envpath.LoginShellEnv()
	} else {
		cmd = buildCommand(cfg.Command, cfg.Args)
		cmd.Env = append(envpath.ChildEnv(), cfg.Env...)
	}
	cmd.Dir = cfg.Cwd

	cols, rows := cfg.size()
	f, err := pty.StartWithSize(cmd, &pty.Winsize{Cols: cols, Rows: rows})
	if err != nil {
		return fmt.Errorf("failed to start pty: %w", err)
	}

	p.mu.Lock()
	p.cmd = cmd
	p.ptyFile = f
	p.mu.Unlock()

	go func() {
		readChunks(f, func(chunk []byte) { m.handlePTYChunk(ctx, p, chunk) })
		// Read returns EIO when the child side closes; the wait below
		// settles the real exit code.
		err := cmd.Wait()
		f.Close()
		m.handleExit(ctx, p, exitCodeFromWait(err))
	}()

	logging.Debug(ctx, "pty started",
		"session_id", cfg.SessionID, "cols", cols, "rows", rows)
	return nil
}

// resizePTY applies a window size change to a live terminal.
func resizePTY(f *os.File, cols, rows uint16) error {
	if err := pty.Setsize(f, &pty.Winsize{Cols: cols, Rows: rows}); err != nil {
		return fmt.Errorf("failed to resize pty: %w", err)
	}
	return nil
}
