// Package opencode implements the batch-document parser for the OpenCode
// CLI. OpenCode does not stream protocol lines; a run emits one JSON
// export document on stdout that is parsed at exit time.
package opencode

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/entireio/conductor/cmd/conductor/cli/agent"
)

//nolint:gochecknoinits // Parser self-registration is the intended pattern
func init() {
	agent.Register(agent.AgentTypeOpenCode, &Parser{})
}

// Parser decodes OpenCode's export document: a session info block plus
// message parts.
type Parser struct{}

var _ agent.Parser = (*Parser)(nil)

type exportDocument struct {
	Info  sessionInfo `json:"info"`
	Parts []part      `json:"parts"`
	Error *struct {
		Name    string `json:"name"`
		Message string `json:"message"`
	} `json:"error"`
}

type sessionInfo struct {
	ID     string  `json:"id"`
	Cost   float64 `json:"cost"`
	Tokens *struct {
		Input     int64 `json:"input"`
		Output    int64 `json:"output"`
		Reasoning int64 `json:"reasoning"`
		Cache     struct {
			Read  int64 `json:"read"`
			Write int64 `json:"write"`
		} `json:"cache"`
	} `json:"tokens"`
}

type part struct {
	Type string `json:"type"`
	Text string `json:"text"`
	Tool string `json:"tool"`
}

// ParseLine decodes an export document. The exit handler feeds it the
// whole accumulated batch buffer; a mid-stream line that happens to be a
// full document parses identically.
func (p *Parser) ParseLine(line []byte) *agent.ParsedEvent {
	doc, raw := decodeDocument(line)
	if doc == nil {
		return nil
	}

	ev := &agent.ParsedEvent{Type: "result", Raw: raw}
	var texts []string
	for _, pt := range doc.Parts {
		switch pt.Type {
		case "text":
			if pt.Text != "" {
				texts = append(texts, pt.Text)
			}
		case "reasoning":
			if ev.Thinking != "" {
				ev.Thinking += "\n"
			}
			ev.Thinking += pt.Text
		case "tool":
			if ev.ToolName == "" {
				ev.ToolName = pt.Tool
				ev.ToolDetail = pt.Tool
			}
		}
	}
	ev.Text = strings.Join(texts, "\n")
	return ev
}

func (p *Parser) ExtractUsage(ev *agent.ParsedEvent) *agent.UsageStats {
	doc, _ := decodeRaw(ev.Raw)
	if doc == nil || doc.Info.Tokens == nil {
		return nil
	}
	flat := agent.ModelUsage{
		InputTokens:         doc.Info.Tokens.Input,
		OutputTokens:        doc.Info.Tokens.Output,
		ReasoningTokens:     doc.Info.Tokens.Reasoning,
		CacheReadTokens:     doc.Info.Tokens.Cache.Read,
		CacheCreationTokens: doc.Info.Tokens.Cache.Write,
	}
	return agent.AggregateUsage(nil, flat, doc.Info.Cost)
}

func (p *Parser) ExtractSessionID(ev *agent.ParsedEvent) string {
	doc, _ := decodeRaw(ev.Raw)
	if doc == nil {
		return ""
	}
	return doc.Info.ID
}

func (p *Parser) ExtractSlashCommands(ev *agent.ParsedEvent) []string { return nil }

// IsResultMessage is always true for a decoded export document; the whole
// document is the run's result.
func (p *Parser) IsResultMessage(ev *agent.ParsedEvent) bool {
	return ev.Type == "result"
}

func (p *Parser) DetectErrorFromLine(line []byte) *agent.AgentError {
	doc, _ := decodeDocument(line)
	if doc == nil || doc.Error == nil {
		return nil
	}
	msg := doc.Error.Message
	if msg == "" {
		msg = doc.Error.Name
	}
	return &agent.AgentError{
		Tag:         agent.ErrAgentCrashed,
		Message:     msg,
		Recoverable: true,
		AgentType:   agent.AgentTypeOpenCode,
		Timestamp:   time.Now(),
	}
}

func (p *Parser) DetectErrorFromExit(exitCode int, stderr, stdout string) *agent.AgentError {
	return agent.ClassifyExit(agent.AgentTypeOpenCode, exitCode, stderr, stdout)
}

func decodeDocument(data []byte) (*exportDocument, map[string]json.RawMessage) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, nil
	}
	return decodeRaw(raw)
}

func decodeRaw(raw map[string]json.RawMessage) (*exportDocument, map[string]json.RawMessage) {
	if raw == nil {
		return nil, nil
	}
	if _, ok := raw["info"]; !ok {
		if _, ok := raw["error"]; !ok {
			return nil, nil
		}
	}
	merged, err := json.Marshal(raw)
	if err != nil {
		return nil, nil
	}
	var doc exportDocument
	if err := json.Unmarshal(merged, &doc); err != nil {
		return nil, nil
	}
	return &doc, raw
}
