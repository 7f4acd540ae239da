package proc

import (
	"bytes"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/entireio/conductor/cmd/conductor/cli/agent"
)

// Phase is a session's lifecycle state. Transitions only move forward:
// Spawned → Streaming → Exiting → Exited. The one-shot emission guards
// (session-id, result, agent-error) are claims on this record, refused
// once the process reaches Exited.
type Phase int32

const (
	// PhaseSpawned means the process started but has produced no output.
	PhaseSpawned Phase = iota
	// PhaseStreaming means at least one output chunk arrived.
	PhaseStreaming
	// PhaseExiting means the exit sequence is running.
	PhaseExiting
	// PhaseExited means the exit event was emitted and the record removed.
	PhaseExited
)

func (p Phase) String() string {
	switch p {
	case PhaseSpawned:
		return "spawned"
	case PhaseStreaming:
		return "streaming"
	case PhaseExiting:
		return "exiting"
	case PhaseExited:
		return "exited"
	default:
		return "unknown"
	}
}

// ManagedProcess is one live session's record. All mutable state is
// guarded by mu; reader goroutines and manager methods both go through
// the claim/transition methods below.
type ManagedProcess struct {
	mu sync.Mutex

	cfg       ProcessConfig
	caps      agent.Capabilities
	parser    agent.Parser
	startedAt time.Time

	// streamJSON is computed once at spawn from the declared capability,
	// with argv sniffing as the legacy fallback.
	streamJSON bool
	// streamInput means stdin writes are wrapped as stream-protocol
	// messages.
	streamInput bool
	isPTY       bool

	cmd     *exec.Cmd
	ptyFile *os.File
	stdin   io.WriteCloser

	phase          Phase
	sessionIDSent  bool
	resultSent     bool
	errorSent      bool
	killed         bool
	agentSessionID string

	buffer  *dataBuffer
	partial []byte // held-back unterminated stdout line

	stdoutText strings.Builder // accumulated stdout (evidence, batch doc)
	stderrText strings.Builder
	lastUsage  *agent.UsageStats

	lastInput      string // pending PTY echo to suppress
	interruptTimer *time.Timer
}

// markStreaming records the first output chunk.
func (p *ManagedProcess) markStreaming() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.phase == PhaseSpawned {
		p.phase = PhaseStreaming
	}
}

// beginExit claims the exit sequence. Returns false if it already ran, so
// a kill racing a natural exit settles on one handler.
func (p *ManagedProcess) beginExit() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.phase >= PhaseExiting {
		return false
	}
	p.phase = PhaseExiting
	if p.interruptTimer != nil {
		p.interruptTimer.Stop()
		p.interruptTimer = nil
	}
	return true
}

func (p *ManagedProcess) finishExit() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.phase = PhaseExited
}

// claimSessionID grants the single session-id emission.
func (p *ManagedProcess) claimSessionID(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sessionIDSent || p.phase == PhaseExited {
		return false
	}
	p.sessionIDSent = true
	p.agentSessionID = id
	return true
}

// claimResult grants the single result emission.
func (p *ManagedProcess) claimResult() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.resultSent || p.phase == PhaseExited {
		return false
	}
	p.resultSent = true
	return true
}

// claimError grants the single agent-error emission.
func (p *ManagedProcess) claimError() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.errorSent || p.phase == PhaseExited {
		return false
	}
	p.errorSent = true
	return true
}

// markKilled records that the manager terminated this process on purpose,
// so the exit sequence does not classify the death as a failure.
func (p *ManagedProcess) markKilled() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.killed = true
}

func (p *ManagedProcess) wasKilled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.killed
}

func (p *ManagedProcess) currentAgentSessionID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.agentSessionID
}

// appendStdout accumulates raw stdout for exit-time evidence and batch
// document parsing.
func (p *ManagedProcess) appendStdout(b []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stdoutText.Write(b)
}

func (p *ManagedProcess) appendStderr(b []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stderrText.Write(b)
}

func (p *ManagedProcess) snapshots() (stdout, stderr string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stdoutText.String(), p.stderrText.String()
}

func (p *ManagedProcess) setLastUsage(u *agent.UsageStats) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastUsage = u
}

func (p *ManagedProcess) usageSnapshot() *agent.UsageStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastUsage
}

// takeLine splits complete lines off the held-back stdout fragment after
// appending chunk. The trailing unterminated fragment stays held.
func (p *ManagedProcess) takeLines(chunk []byte) [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.partial = append(p.partial, chunk...)
	var lines [][]byte
	for {
		idx := bytes.IndexByte(p.partial, '\n')
		if idx < 0 {
			return lines
		}
		line := make([]byte, idx)
		copy(line, p.partial[:idx])
		p.partial = p.partial[idx+1:]
		lines = append(lines, line)
	}
}

// takePartial drains the held-back fragment at exit.
func (p *ManagedProcess) takePartial() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	rest := p.partial
	p.partial = nil
	return rest
}

func (p *ManagedProcess) grace() time.Duration {
	if p.cfg.InterruptGrace > 0 {
		return p.cfg.InterruptGrace
	}
	if p.caps.InterruptGrace > 0 {
		return p.caps.InterruptGrace
	}
	return agent.DefaultInterruptGrace
}

// Info is a point-in-time snapshot of a session, safe to hand to callers.
type Info struct {
	SessionID      string
	AgentType      agent.AgentType
	Phase          Phase
	PID            int
	AgentSessionID string
	StartedAt      time.Time
	PTY            bool
}

func (p *ManagedProcess) info() Info {
	p.mu.Lock()
	defer p.mu.Unlock()
	info := Info{
		SessionID:      p.cfg.SessionID,
		AgentType:      p.cfg.AgentType,
		Phase:          p.phase,
		AgentSessionID: p.agentSessionID,
		StartedAt:      p.startedAt,
		PTY:            p.isPTY,
	}
	if p.cmd != nil && p.cmd.Process != nil {
		info.PID = p.cmd.Process.Pid
	}
	return info
}
