package proc

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/entireio/conductor/cmd/conductor/cli/agent"
	"github.com/entireio/conductor/cmd/conductor/cli/logging"
)

// CommandRunner executes a one-shot command, streaming data/stderr events
// through emit and resolving with the command's exit code. Implementations
// live in the runner package.
type CommandRunner interface {
	Run(ctx context.Context, sessionID, command, cwd string, emit EmitFunc) (int, error)
}

// Manager is the engine facade. It owns the session table; every session
// mutation funnels through it.
type Manager struct {
	mu     sync.Mutex
	procs  map[string]*ManagedProcess
	emit   EmitFunc
	runner CommandRunner
}

// Option configures a Manager.
type Option func(*Manager)

// WithCommandRunner installs the runner backing RunCommand.
func WithCommandRunner(r CommandRunner) Option {
	return func(m *Manager) { m.runner = r }
}

// NewManager builds a manager delivering events to emit.
func NewManager(emit EmitFunc, opts ...Option) *Manager {
	m := &Manager{
		procs: make(map[string]*ManagedProcess),
		emit:  emit,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) emitEvent(ev Event) {
	if m.emit != nil {
		m.emit(ev)
	}
}

// Spawn starts a session. The PTY path is taken for bare terminals and
// agents that want a terminal, unless a batch prompt forces pipe mode.
// Spawn failures surface as a synthetic agent-error + exit, so callers
// see the same event shape as a crash after startup.
func (m *Manager) Spawn(ctx context.Context, cfg ProcessConfig) error {
	ctx = logging.WithComponent(ctx, "proc")
	if cfg.SessionID == "" {
		return fmt.Errorf("spawn requires a session ID")
	}

	caps := agent.CapabilitiesFor(cfg.AgentType)
	if len(cfg.Attachments) > 0 && !caps.FileAttachments && !caps.StreamJSONInput {
		// Refusing beats silently dropping the caller's images.
		return fmt.Errorf("agent %q does not accept attachments", cfg.AgentType)
	}
	p := &ManagedProcess{
		cfg:         cfg,
		caps:        caps,
		parser:      agent.ParserFor(cfg.AgentType),
		startedAt:   time.Now(),
		streamJSON:  caps.StreamJSONOutput || agent.StreamJSONFromArgs(cfg.Args),
		streamInput: caps.StreamJSONInput,
		isPTY:       (cfg.AgentType == agent.AgentTypeTerminal || cfg.RequiresPTY || caps.WantsPTY) && cfg.Prompt == "",
	}
	p.buffer = newDataBuffer(cfg.flushInterval(), func(text string) {
		m.emitEvent(Event{Type: EventData, SessionID: cfg.SessionID, Data: text})
	})

	m.mu.Lock()
	if _, exists := m.procs[cfg.SessionID]; exists {
		m.mu.Unlock()
		return fmt.Errorf("session %q is already active", cfg.SessionID)
	}
	m.procs[cfg.SessionID] = p
	m.mu.Unlock()

	var err error
	if p.isPTY {
		err = m.startPTY(ctx, p)
	} else {
		err = m.startChild(ctx, p)
	}
	if err != nil {
		m.handleSpawnError(ctx, p, err)
		return err
	}

	logging.Info(ctx, "session spawned",
		"session_id", cfg.SessionID,
		"agent", string(cfg.AgentType),
		"pty", p.isPTY,
		"stream_json", p.streamJSON)
	return nil
}

func (m *Manager) lookup(sessionID string) *ManagedProcess {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.procs[sessionID]
}

func (m *Manager) remove(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.procs, sessionID)
}

// Write sends user input to a session. PTY sessions get the bytes
// directly (and remember them for echo suppression); stream-input agents
// get the text wrapped as a protocol message; plain pipe sessions get the
// raw bytes on stdin.
func (m *Manager) Write(sessionID, data string) error {
	p := m.lookup(sessionID)
	if p == nil {
		return fmt.Errorf("no active session %q", sessionID)
	}

	if p.isPTY {
		p.mu.Lock()
		p.lastInput = data
		f := p.ptyFile
		p.mu.Unlock()
		if f == nil {
			return fmt.Errorf("session %q has no terminal", sessionID)
		}
		_, err := f.WriteString(data)
		return err
	}

	p.mu.Lock()
	stdin := p.stdin
	wrap := p.streamInput
	p.mu.Unlock()
	if stdin == nil {
		return fmt.Errorf("session %q stdin is closed", sessionID)
	}
	if wrap {
		msg, err := streamInputMessage(data, nil)
		if err != nil {
			return err
		}
		_, err = stdin.Write(msg)
		return err
	}
	_, err := io.WriteString(stdin, data)
	return err
}

// Resize adjusts a PTY session's window size. A no-op error for pipe
// sessions, which have no terminal.
func (m *Manager) Resize(sessionID string, cols, rows uint16) error {
	p := m.lookup(sessionID)
	if p == nil {
		return fmt.Errorf("no active session %q", sessionID)
	}
	p.mu.Lock()
	f := p.ptyFile
	p.mu.Unlock()
	if f == nil {
		return fmt.Errorf("session %q has no terminal", sessionID)
	}
	return resizePTY(f, cols, rows)
}

// Interrupt requests a graceful stop. PTY sessions receive ETX as a
// terminal would; pipe sessions receive SIGINT. A pipe session that has
// not exited after the agent's grace period is killed; the escalation
// timer is cancelled by the exit sequence. PTY sessions never escalate:
// a foreground program ignoring SIGINT is normal terminal life, not a
// reason to tear the whole terminal down.
func (m *Manager) Interrupt(ctx context.Context, sessionID string) error {
	ctx = logging.WithComponent(ctx, "proc")
	p := m.lookup(sessionID)
	if p == nil {
		return fmt.Errorf("no active session %q", sessionID)
	}

	p.mu.Lock()
	f := p.ptyFile
	cmd := p.cmd
	p.mu.Unlock()
	if p.isPTY {
		if f != nil {
			if _, err := f.Write([]byte{0x03}); err != nil {
				return fmt.Errorf("failed to send interrupt: %w", err)
			}
		}
	} else if cmd != nil && cmd.Process != nil {
		if err := sendInterrupt(cmd.Process); err != nil {
			return fmt.Errorf("failed to send interrupt: %w", err)
		}
	}

	if !p.isPTY {
		grace := p.grace()
		p.mu.Lock()
		if p.interruptTimer == nil && p.phase < PhaseExiting {
			p.interruptTimer = time.AfterFunc(grace, func() {
				logging.Warn(ctx, "interrupt grace expired, killing",
					"session_id", sessionID, "grace_ms", grace.Milliseconds())
				_ = m.Kill(ctx, sessionID)
			})
		}
		p.mu.Unlock()
	}

	logging.Debug(ctx, "interrupt sent", "session_id", sessionID, "pty", p.isPTY)
	return nil
}

// Kill forcefully terminates a session's process. The exit sequence runs
// through the normal waiter, so buffered output is still flushed before
// the exit event. Killing an unknown session is not an error.
func (m *Manager) Kill(ctx context.Context, sessionID string) error {
	ctx = logging.WithComponent(ctx, "proc")
	p := m.lookup(sessionID)
	if p == nil {
		return nil
	}
	p.mu.Lock()
	cmd := p.cmd
	p.mu.Unlock()
	if cmd == nil || cmd.Process == nil {
		return nil
	}
	logging.Info(ctx, "killing session", "session_id", sessionID)
	p.markKilled()
	return sendKill(cmd.Process)
}

// KillAll kills every active session. Used on shutdown.
func (m *Manager) KillAll(ctx context.Context) {
	m.mu.Lock()
	ids := make([]string, 0, len(m.procs))
	for id := range m.procs {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	sort.Strings(ids)
	for _, id := range ids {
		_ = m.Kill(ctx, id)
	}
}

// Get returns a snapshot of an active session.
func (m *Manager) Get(sessionID string) (Info, bool) {
	p := m.lookup(sessionID)
	if p == nil {
		return Info{}, false
	}
	return p.info(), true
}

// Sessions returns snapshots of all active sessions, sorted by session ID.
func (m *Manager) Sessions() []Info {
	m.mu.Lock()
	procs := make([]*ManagedProcess, 0, len(m.procs))
	for _, p := range m.procs {
		procs = append(procs, p)
	}
	m.mu.Unlock()

	infos := make([]Info, 0, len(procs))
	for _, p := range procs {
		infos = append(infos, p.info())
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].SessionID < infos[j].SessionID })
	return infos
}

// RunCommand executes a one-shot command through the configured runner,
// streaming its output through the manager's event sink. The runner emits
// the command-exit event; RunCommand returns the same exit code.
func (m *Manager) RunCommand(ctx context.Context, sessionID, command, cwd string) (int, error) {
	if m.runner == nil {
		return -1, fmt.Errorf("no command runner configured")
	}
	return m.runner.Run(ctx, sessionID, command, cwd, m.emitEvent)
}
