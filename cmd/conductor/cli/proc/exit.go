package proc

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/entireio/conductor/cmd/conductor/cli/agent"
	"github.com/entireio/conductor/cmd/conductor/cli/logging"
)

// handleExit runs the ordered exit sequence. It executes at most once per
// session; a kill racing a natural exit settles on whichever waiter got
// here first. Order matters: buffered data must flush before any
// exit-derived event, and the exit event itself is always last.
func (m *Manager) handleExit(ctx context.Context, p *ManagedProcess, exitCode int) {
	if !p.beginExit() {
		return
	}
	sessionID := p.cfg.SessionID
	start := time.Now()

	// 1. Flush coalesced output ahead of exit-derived events.
	p.buffer.Flush()

	stdout, stderr := p.snapshots()

	// 2. Batch agents emit their whole result as one document on stdout.
	if p.parser != nil && !p.streamJSON {
		m.parseBatchDocument(ctx, p, stdout)
	}

	// 3. A stream that ended without a final newline still has one line
	// held back.
	if p.parser != nil && p.streamJSON {
		if rest := p.takePartial(); len(rest) > 0 {
			m.processLine(ctx, p, rest)
		}
	}

	// 4. Classify the failure, if any. Inline detection may already have
	// claimed the error slot; exit classification never overrides it. A
	// death the manager caused itself is routine teardown, not a failure.
	if exitCode != 0 && !p.wasKilled() {
		var aerr *agent.AgentError
		if p.parser != nil {
			aerr = p.parser.DetectErrorFromExit(exitCode, stderr, stdout)
		} else {
			aerr = agent.ClassifyExit(p.cfg.AgentType, exitCode, stderr, stdout)
		}
		if aerr == nil && p.cfg.SSH {
			// Transport failures can surface on stdout, so the secondary
			// pass matches the merged buffers.
			aerr = agent.ClassifySSHOutput(p.cfg.AgentType, stdout+"\n"+stderr)
		}
		if aerr != nil && p.claimError() {
			aerr.SessionID = p.currentAgentSessionID()
			m.emitEvent(Event{Type: EventAgentError, SessionID: sessionID, Err: aerr})
			logging.Warn(ctx, "exit classified",
				"session_id", sessionID, "tag", string(aerr.Tag), "exit_code", exitCode)
		}
	}

	// 5. Temp files from attachment delivery.
	for _, f := range p.cfg.CleanupFiles {
		if err := os.Remove(f); err != nil && !os.IsNotExist(err) {
			logging.Debug(ctx, "temp file cleanup failed", "path", f, "error", err.Error())
		}
	}

	// 6. Batch queries get a completion summary.
	if p.cfg.Prompt != "" {
		m.emitEvent(Event{
			Type:       EventQueryComplete,
			SessionID:  sessionID,
			Usage:      p.usageSnapshot(),
			ExitCode:   exitCode,
			DurationMS: time.Since(p.startedAt).Milliseconds(),
		})
	}

	// 7. Final flush catches anything the steps above appended, then the
	// buffer refuses further output.
	p.buffer.Stop()

	// 8. Exit event last, then the record goes away.
	p.finishExit()
	m.remove(sessionID)
	m.emitEvent(Event{Type: EventExit, SessionID: sessionID, ExitCode: exitCode})

	logging.LogDuration(ctx, levelForExit(exitCode), "session exited", start,
		"session_id", sessionID, "exit_code", exitCode,
		"lifetime_ms", time.Since(p.startedAt).Milliseconds())
}

// parseBatchDocument decodes a batch agent's accumulated stdout. A parse
// failure degrades to forwarding the raw text as the result.
func (m *Manager) parseBatchDocument(ctx context.Context, p *ManagedProcess, stdout string) {
	doc := strings.TrimSpace(stdout)
	if doc == "" {
		return
	}
	if ev := p.parser.ParseLine([]byte(doc)); ev != nil {
		if aerr := p.parser.DetectErrorFromLine([]byte(doc)); aerr != nil && p.claimError() {
			aerr.SessionID = p.currentAgentSessionID()
			m.emitEvent(Event{Type: EventAgentError, SessionID: p.cfg.SessionID, Err: aerr})
		}
		m.emitParsed(ctx, p, ev)
		return
	}
	if p.claimResult() {
		p.buffer.Append(doc)
	}
}

// handleSpawnError synthesizes the full event sequence for a process that
// never started, so callers observe the same shape as a crash: one
// agent-error, a data line, and a terminal exit with code -1.
func (m *Manager) handleSpawnError(ctx context.Context, p *ManagedProcess, err error) {
	if !p.beginExit() {
		return
	}
	sessionID := p.cfg.SessionID
	logging.Error(ctx, "spawn failed", "session_id", sessionID, "error", err.Error())

	if p.claimError() {
		aerr := agent.NewCrashError(p.cfg.AgentType, "failed to start agent: "+err.Error(), -1, "", "")
		m.emitEvent(Event{Type: EventAgentError, SessionID: sessionID, Err: aerr})
	}
	m.emitEvent(Event{Type: EventData, SessionID: sessionID, Data: "failed to start: " + err.Error() + "\n"})

	p.buffer.Stop()
	p.finishExit()
	m.remove(sessionID)
	m.emitEvent(Event{Type: EventExit, SessionID: sessionID, ExitCode: -1})
}

func levelForExit(code int) slog.Level {
	if code == 0 {
		return slog.LevelInfo
	}
	return slog.LevelWarn
}
