package proc

import (
	"time"

	"github.com/entireio/conductor/cmd/conductor/cli/agent"
)

// DefaultFlushInterval is the data buffer coalescing window.
const DefaultFlushInterval = 25 * time.Millisecond

// ProcessConfig describes one session to spawn.
type ProcessConfig struct {
	// SessionID is the caller's identifier for this session. Must be
	// unique among active sessions.
	SessionID string

	// AgentType selects the parser and capability entry.
	AgentType agent.AgentType

	// Command is the agent binary (or command) to run. Ignored for bare
	// terminal sessions, which run the user's shell.
	Command string

	// Args are the agent's arguments, before prompt delivery.
	Args []string

	// Cwd is the working directory. Empty inherits the parent's.
	Cwd string

	// Env holds extra KEY=VALUE entries layered over the child environment.
	Env []string

	// Prompt is the batch prompt. Empty means an interactive session.
	Prompt string

	// Attachments are image file paths handed to agents that support file
	// attachments.
	Attachments []string

	// CleanupFiles are temporary files removed after the process exits.
	CleanupFiles []string

	// RequiresPTY forces a pseudo-terminal even when the capability table
	// does not request one.
	RequiresPTY bool

	// SSH marks the command as reaching the agent over an ssh transport,
	// enabling the secondary transport-error pattern pass at exit.
	SSH bool

	// Cols and Rows set the initial PTY size. Zero falls back to 80x24.
	Cols, Rows uint16

	// FlushInterval overrides the coalescing window. Zero uses the default.
	FlushInterval time.Duration

	// InterruptGrace overrides the per-agent interrupt grace period.
	InterruptGrace time.Duration
}

func (c ProcessConfig) flushInterval() time.Duration {
	if c.FlushInterval > 0 {
		return c.FlushInterval
	}
	return DefaultFlushInterval
}

func (c ProcessConfig) size() (cols, rows uint16) {
	cols, rows = c.Cols, c.Rows
	if cols == 0 {
		cols = 80
	}
	if rows == 0 {
		rows = 24
	}
	return cols, rows
}
