// Package claudecode implements the stream-json protocol parser for the
// Claude Code CLI.
package claudecode

import (
	"encoding/json"

	"github.com/entireio/conductor/cmd/conductor/cli/agent"
)

//nolint:gochecknoinits // Parser self-registration is the intended pattern
func init() {
	agent.Register(agent.AgentTypeClaudeCode, &Parser{})
}

// Parser decodes Claude Code's line-delimited stream-json output.
//
// Event envelope shapes:
//   - {"type":"system","subtype":"init","session_id":...,"slash_commands":[...]}
//   - {"type":"assistant","message":{"content":[...]},"session_id":...}
//   - {"type":"result","subtype":"success","result":...,"usage":{...},"modelUsage":{...}}
type Parser struct{}

var _ agent.Parser = (*Parser)(nil)

// messageEnvelope is the assistant/user message wrapper.
type messageEnvelope struct {
	Content []contentBlock `json:"content"`
}

type contentBlock struct {
	Type     string          `json:"type"`
	Text     string          `json:"text"`
	Thinking string          `json:"thinking"`
	Name     string          `json:"name"`
	Input    json.RawMessage `json:"input"`
}

// ParseLine decodes one stdout line. Non-JSON lines yield nil so the
// stream handler falls back to treating them as opaque text.
func (p *Parser) ParseLine(line []byte) *agent.ParsedEvent {
	var envelope struct {
		Type    string          `json:"type"`
		Subtype string          `json:"subtype"`
		Result  string          `json:"result"`
		Message json.RawMessage `json:"message"`
	}
	if err := json.Unmarshal(line, &envelope); err != nil || envelope.Type == "" {
		return nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(line, &raw); err != nil {
		return nil
	}

	ev := &agent.ParsedEvent{Type: envelope.Type, Raw: raw}

	switch envelope.Type {
	case "assistant":
		p.fillFromMessage(ev, envelope.Message)
	case "result":
		ev.Text = envelope.Result
	}
	return ev
}

// fillFromMessage extracts text, thinking, and tool-use detail from an
// assistant message's content blocks.
func (p *Parser) fillFromMessage(ev *agent.ParsedEvent, message json.RawMessage) {
	if len(message) == 0 {
		return
	}
	var msg messageEnvelope
	if err := json.Unmarshal(message, &msg); err != nil {
		return
	}
	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			if ev.Text != "" {
				ev.Text += "\n"
			}
			ev.Text += block.Text
		case "thinking":
			if ev.Thinking != "" {
				ev.Thinking += "\n"
			}
			ev.Thinking += block.Thinking
		case "tool_use":
			if ev.ToolName == "" {
				ev.ToolName = block.Name
				ev.ToolDetail = toolDetail(block.Name, block.Input)
			}
		}
	}
}

// ExtractUsage reads the usage payload from a result event. Claude Code
// reports both a flat usage object and a per-model breakdown; the
// aggregator prefers the breakdown when present.
func (p *Parser) ExtractUsage(ev *agent.ParsedEvent) *agent.UsageStats {
	rawUsage, hasFlat := ev.Raw["usage"]
	rawPerModel, hasPerModel := ev.Raw["modelUsage"]
	if !hasFlat && !hasPerModel {
		return nil
	}

	var flat agent.ModelUsage
	if hasFlat {
		if err := json.Unmarshal(rawUsage, &flat); err != nil {
			return nil
		}
	}

	var perModel map[string]agent.ModelUsage
	if hasPerModel {
		// A malformed breakdown degrades to the flat object.
		_ = json.Unmarshal(rawPerModel, &perModel)
	}

	if len(perModel) == 0 && flat == (agent.ModelUsage{}) {
		return nil
	}

	var cost float64
	if rawCost, ok := ev.Raw["total_cost_usd"]; ok {
		_ = json.Unmarshal(rawCost, &cost)
	}
	return agent.AggregateUsage(perModel, flat, cost)
}

func (p *Parser) ExtractSessionID(ev *agent.ParsedEvent) string {
	raw, ok := ev.Raw["session_id"]
	if !ok {
		return ""
	}
	var id string
	if err := json.Unmarshal(raw, &id); err != nil {
		return ""
	}
	return id
}

// ExtractSlashCommands reads the slash-command list from the system init
// event.
func (p *Parser) ExtractSlashCommands(ev *agent.ParsedEvent) []string {
	if ev.Type != "system" {
		return nil
	}
	raw, ok := ev.Raw["slash_commands"]
	if !ok {
		return nil
	}
	var commands []string
	if err := json.Unmarshal(raw, &commands); err != nil {
		return nil
	}
	return commands
}

func (p *Parser) IsResultMessage(ev *agent.ParsedEvent) bool {
	return ev.Type == "result"
}
