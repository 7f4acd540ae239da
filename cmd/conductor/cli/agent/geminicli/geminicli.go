// Package geminicli implements the stream-json protocol parser for the
// Gemini CLI.
package geminicli

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/entireio/conductor/cmd/conductor/cli/agent"
)

//nolint:gochecknoinits // Parser self-registration is the intended pattern
func init() {
	agent.Register(agent.AgentTypeGeminiCLI, &Parser{})
}

// Parser decodes Gemini CLI's line-delimited JSON output. Content events
// carry assistant text; the final result event carries the response plus a
// stats block with a per-model token breakdown.
type Parser struct{}

var _ agent.Parser = (*Parser)(nil)

// statsBlock mirrors the CLI's stats payload: models is keyed by model
// name, each entry reporting its own token counters.
type statsBlock struct {
	Models map[string]struct {
		Tokens struct {
			Prompt     int64 `json:"prompt"`
			Candidates int64 `json:"candidates"`
			Cached     int64 `json:"cached"`
			Thoughts   int64 `json:"thoughts"`
		} `json:"tokens"`
	} `json:"models"`
	TotalCostUSD float64 `json:"total_cost_usd"`
}

func (p *Parser) ParseLine(line []byte) *agent.ParsedEvent {
	var envelope struct {
		Type     string `json:"type"`
		Content  string `json:"content"`
		Response string `json:"response"`
		ToolName string `json:"tool_name"`
	}
	if err := json.Unmarshal(line, &envelope); err != nil {
		return nil
	}
	if envelope.Type == "" && envelope.Response == "" {
		return nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(line, &raw); err != nil {
		return nil
	}

	ev := &agent.ParsedEvent{Type: envelope.Type, Raw: raw}
	switch {
	case envelope.Type == "content":
		ev.Text = envelope.Content
	case envelope.Type == "thought":
		ev.Thinking = envelope.Content
	case envelope.Type == "tool_call":
		ev.ToolName = envelope.ToolName
		ev.ToolDetail = envelope.ToolName
	case envelope.Response != "":
		// Batch-style final document with no type tag.
		ev.Type = "result"
		ev.Text = envelope.Response
	case envelope.Type == "result":
		ev.Text = envelope.Response
	}
	return ev
}

// ExtractUsage folds the per-model stats block into normalized totals.
func (p *Parser) ExtractUsage(ev *agent.ParsedEvent) *agent.UsageStats {
	rawStats, ok := ev.Raw["stats"]
	if !ok {
		return nil
	}
	var stats statsBlock
	if err := json.Unmarshal(rawStats, &stats); err != nil || len(stats.Models) == 0 {
		return nil
	}

	perModel := make(map[string]agent.ModelUsage, len(stats.Models))
	for name, m := range stats.Models {
		perModel[name] = agent.ModelUsage{
			InputTokens:     m.Tokens.Prompt,
			OutputTokens:    m.Tokens.Candidates,
			CacheReadTokens: m.Tokens.Cached,
			ReasoningTokens: m.Tokens.Thoughts,
		}
	}
	return agent.AggregateUsage(perModel, agent.ModelUsage{}, stats.TotalCostUSD)
}

func (p *Parser) ExtractSessionID(ev *agent.ParsedEvent) string {
	for _, key := range []string{"session_id", "sessionId"} {
		raw, ok := ev.Raw[key]
		if !ok {
			continue
		}
		var id string
		if err := json.Unmarshal(raw, &id); err == nil && id != "" {
			return id
		}
	}
	return ""
}

func (p *Parser) ExtractSlashCommands(ev *agent.ParsedEvent) []string { return nil }

func (p *Parser) IsResultMessage(ev *agent.ParsedEvent) bool {
	return ev.Type == "result"
}

// DetectErrorFromLine classifies structured error events. Plain text
// lines (stderr) classify only when they hit a known Gemini failure
// pattern; arbitrary stderr noise stays unclassified.
func (p *Parser) DetectErrorFromLine(line []byte) *agent.AgentError {
	var envelope struct {
		Type  string `json:"type"`
		Error struct {
			Message string `json:"message"`
			Status  string `json:"status"`
		} `json:"error"`
	}
	if err := json.Unmarshal(line, &envelope); err != nil {
		if tag, recoverable := classifyGemini(string(line)); tag != agent.ErrAgentCrashed {
			return &agent.AgentError{
				Tag:         tag,
				Message:     strings.TrimSpace(string(line)),
				Recoverable: recoverable,
				AgentType:   agent.AgentTypeGeminiCLI,
				Timestamp:   time.Now(),
			}
		}
		return nil
	}
	if envelope.Type != "error" && envelope.Error.Message == "" {
		return nil
	}

	msg := envelope.Error.Message
	if msg == "" {
		msg = "gemini reported an error"
	}
	tag, recoverable := classifyGemini(msg + " " + envelope.Error.Status)
	return &agent.AgentError{
		Tag:         tag,
		Message:     msg,
		Recoverable: recoverable,
		AgentType:   agent.AgentTypeGeminiCLI,
		Timestamp:   time.Now(),
	}
}

func (p *Parser) DetectErrorFromExit(exitCode int, stderr, stdout string) *agent.AgentError {
	if exitCode == 0 {
		return nil
	}
	combined := stderr
	if combined == "" {
		combined = stdout
	}
	if tag, recoverable := classifyGemini(combined); tag != agent.ErrAgentCrashed {
		return &agent.AgentError{
			Tag:         tag,
			Message:     strings.TrimSpace(strings.SplitN(strings.TrimSpace(combined), "\n", 2)[0]),
			Recoverable: recoverable,
			AgentType:   agent.AgentTypeGeminiCLI,
			Timestamp:   time.Now(),
			ExitCode:    exitCode,
			Stderr:      stderr,
		}
	}
	return agent.ClassifyExit(agent.AgentTypeGeminiCLI, exitCode, stderr, stdout)
}

func classifyGemini(text string) (agent.ErrorTag, bool) {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "resource_exhausted"), strings.Contains(lower, "429"),
		strings.Contains(lower, "quota exceeded"):
		return agent.ErrRateLimited, true
	case strings.Contains(lower, "api key not valid"), strings.Contains(lower, "unauthenticated"),
		strings.Contains(lower, "permission_denied"):
		return agent.ErrAuthFailed, false
	default:
		return agent.ErrAgentCrashed, true
	}
}
