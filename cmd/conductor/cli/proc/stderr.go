package proc

import (
	"bytes"
	"context"

	"github.com/entireio/conductor/cmd/conductor/cli/logging"
)

// handleStderrChunk accumulates stderr for exit-time evidence, runs the
// inline error classifier over each line, and forwards the chunk as a
// stderr event. Agents routinely write progress noise to stderr, so the
// forward is unconditional; classification only fires on recognized
// failure patterns.
func (m *Manager) handleStderrChunk(ctx context.Context, p *ManagedProcess, chunk []byte) {
	p.markStreaming()
	p.appendStderr(chunk)

	if p.parser != nil {
		for _, line := range bytes.Split(chunk, []byte("\n")) {
			line = bytes.TrimSpace(line)
			if len(line) == 0 {
				continue
			}
			aerr := p.parser.DetectErrorFromLine(line)
			if aerr == nil || !p.claimError() {
				continue
			}
			aerr.SessionID = p.currentAgentSessionID()
			m.emitEvent(Event{Type: EventAgentError, SessionID: p.cfg.SessionID, Err: aerr})
			logging.Warn(ctx, "agent error detected on stderr",
				"session_id", p.cfg.SessionID, "tag", string(aerr.Tag))
		}
	}

	m.emitEvent(Event{Type: EventStderr, SessionID: p.cfg.SessionID, Data: string(chunk)})
}
