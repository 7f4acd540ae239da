package proc

import (
	"bytes"
	"context"

	"github.com/entireio/conductor/cmd/conductor/cli/agent"
	"github.com/entireio/conductor/cmd/conductor/cli/logging"
	"github.com/entireio/conductor/cmd/conductor/cli/textutil"
)

// handleStdoutChunk routes a pipe-mode stdout chunk. Stream-json agents
// get line framing with the trailing partial held back; batch agents
// accumulate everything for the exit-time document parse; anything else
// forwards through the coalescing buffer.
func (m *Manager) handleStdoutChunk(ctx context.Context, p *ManagedProcess, chunk []byte) {
	p.markStreaming()
	p.appendStdout(chunk)

	switch {
	case p.parser != nil && p.streamJSON:
		for _, line := range p.takeLines(chunk) {
			m.processLine(ctx, p, line)
		}
	case p.parser != nil:
		// Batch output; parsed as one document at exit.
	default:
		p.buffer.Append(string(chunk))
	}
}

// processLine handles one complete stream-json line: inline error check
// first, then protocol decode, with a raw-text fallback for lines that
// are not part of the protocol.
func (m *Manager) processLine(ctx context.Context, p *ManagedProcess, line []byte) {
	line = bytes.TrimRight(line, "\r")
	if len(bytes.TrimSpace(line)) == 0 {
		return
	}

	if aerr := p.parser.DetectErrorFromLine(line); aerr != nil && p.claimError() {
		aerr.SessionID = p.currentAgentSessionID()
		m.emitEvent(Event{Type: EventAgentError, SessionID: p.cfg.SessionID, Err: aerr})
		logging.Warn(ctx, "agent error detected",
			"session_id", p.cfg.SessionID, "tag", string(aerr.Tag))
	}

	ev := p.parser.ParseLine(line)
	if ev == nil {
		// Interleaved non-protocol output (npm warnings, debug prints).
		p.buffer.Append(string(line) + "\n")
		return
	}
	m.emitParsed(ctx, p, ev)
}

// emitParsed fans a decoded protocol event out to the engine event set.
// Session-id and result are one-shot; usage, thinking, and tool events
// repeat freely.
func (m *Manager) emitParsed(ctx context.Context, p *ManagedProcess, ev *agent.ParsedEvent) {
	sessionID := p.cfg.SessionID

	if id := p.parser.ExtractSessionID(ev); id != "" && p.claimSessionID(id) {
		m.emitEvent(Event{Type: EventSessionID, SessionID: sessionID, AgentSessionID: id})
	}
	if cmds := p.parser.ExtractSlashCommands(ev); len(cmds) > 0 {
		m.emitEvent(Event{Type: EventSlashCommands, SessionID: sessionID, SlashCommands: cmds})
	}
	if usage := p.parser.ExtractUsage(ev); usage != nil {
		p.setLastUsage(usage)
		m.emitEvent(Event{Type: EventUsage, SessionID: sessionID, Usage: usage})
	}
	if ev.Thinking != "" {
		m.emitEvent(Event{Type: EventThinkingChunk, SessionID: sessionID, Data: ev.Thinking})
	}
	if ev.ToolName != "" {
		m.emitEvent(Event{
			Type:       EventToolExecution,
			SessionID:  sessionID,
			ToolName:   ev.ToolName,
			ToolDetail: ev.ToolDetail,
		})
	}

	if p.parser.IsResultMessage(ev) {
		// An empty result leaves the claim open for a later fallback.
		if ev.Text != "" && p.claimResult() {
			p.buffer.Append(ev.Text)
		}
		return
	}
	if ev.Text != "" {
		p.buffer.Append(ev.Text)
	}
}

// handlePTYChunk filters a terminal chunk before forwarding: control
// sequences stripped, then the echo of the last written input removed.
// Chunks that filter down to nothing produce no event.
func (m *Manager) handlePTYChunk(ctx context.Context, p *ManagedProcess, chunk []byte) {
	p.markStreaming()
	p.appendStdout(chunk)

	filtered := textutil.StripControlSequences(string(chunk))

	p.mu.Lock()
	lastInput := p.lastInput
	p.lastInput = ""
	p.mu.Unlock()

	filtered = textutil.SuppressEcho(filtered, lastInput)
	if filtered == "" {
		return
	}
	p.buffer.Append(filtered)
}
