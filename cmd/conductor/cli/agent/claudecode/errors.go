package claudecode

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/entireio/conductor/cmd/conductor/cli/agent"
)

// DetectErrorFromLine classifies structured errors Claude Code surfaces
// mid-stream: result events with an error subtype or is_error flag. Plain
// text lines (stderr) are matched against the known failure table.
func (p *Parser) DetectErrorFromLine(line []byte) *agent.AgentError {
	var envelope struct {
		Type    string `json:"type"`
		Subtype string `json:"subtype"`
		IsError bool   `json:"is_error"`
		Result  string `json:"result"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(line, &envelope); err != nil {
		if tag, recoverable, ok := matchKnownFailure(string(line)); ok {
			return &agent.AgentError{
				Tag:         tag,
				Message:     strings.TrimSpace(string(line)),
				Recoverable: recoverable,
				AgentType:   agent.AgentTypeClaudeCode,
				Timestamp:   time.Now(),
			}
		}
		return nil
	}

	isError := envelope.IsError ||
		(envelope.Type == "result" && strings.HasPrefix(envelope.Subtype, "error")) ||
		envelope.Type == "error"
	if !isError {
		return nil
	}

	msg := envelope.Result
	if msg == "" {
		msg = envelope.Error
	}
	if msg == "" {
		msg = fmt.Sprintf("claude reported %s", envelope.Subtype)
	}

	tag, recoverable := classifyMessage(msg)
	return &agent.AgentError{
		Tag:         tag,
		Message:     msg,
		Recoverable: recoverable,
		AgentType:   agent.AgentTypeClaudeCode,
		Timestamp:   time.Now(),
	}
}

// DetectErrorFromExit classifies a non-zero exit using Claude-specific
// stderr patterns before falling back to the shared crash classifier.
func (p *Parser) DetectErrorFromExit(exitCode int, stderr, stdout string) *agent.AgentError {
	if exitCode == 0 {
		return nil
	}

	combined := stderr
	if combined == "" {
		combined = stdout
	}
	if tag, recoverable, ok := matchKnownFailure(combined); ok {
		return &agent.AgentError{
			Tag:         tag,
			Message:     strings.TrimSpace(firstMatchingLine(combined)),
			Recoverable: recoverable,
			AgentType:   agent.AgentTypeClaudeCode,
			Timestamp:   time.Now(),
			ExitCode:    exitCode,
			Stderr:      stderr,
		}
	}
	return agent.ClassifyExit(agent.AgentTypeClaudeCode, exitCode, stderr, stdout)
}

// failurePatterns maps Claude CLI failure text to taxonomy tags. The CLI
// signals these inconsistently: sometimes only in stderr text, sometimes
// in a structured result line, so both detectors consult the same table.
var failurePatterns = []struct {
	substr      string
	tag         agent.ErrorTag
	recoverable bool
}{
	{"rate limit", agent.ErrRateLimited, true},
	{"overloaded_error", agent.ErrRateLimited, true},
	{"usage limit reached", agent.ErrRateLimited, true},
	{"invalid api key", agent.ErrAuthFailed, false},
	{"authentication_error", agent.ErrAuthFailed, false},
	{"oauth token has expired", agent.ErrAuthFailed, false},
	{"credit balance is too low", agent.ErrAuthFailed, false},
	{"prompt is too long", agent.ErrContextExhausted, false},
	{"context low", agent.ErrContextExhausted, true},
}

func classifyMessage(msg string) (agent.ErrorTag, bool) {
	if tag, recoverable, ok := matchKnownFailure(msg); ok {
		return tag, recoverable
	}
	return agent.ErrAgentCrashed, true
}

func matchKnownFailure(text string) (agent.ErrorTag, bool, bool) {
	lower := strings.ToLower(text)
	for _, pat := range failurePatterns {
		if strings.Contains(lower, pat.substr) {
			return pat.tag, pat.recoverable, true
		}
	}
	return "", false, false
}

func firstMatchingLine(text string) string {
	lower := strings.ToLower(text)
	for _, pat := range failurePatterns {
		idx := strings.Index(lower, pat.substr)
		if idx < 0 {
			continue
		}
		start := strings.LastIndexByte(text[:idx], '\n') + 1
		end := strings.IndexByte(text[idx:], '\n')
		if end < 0 {
			end = len(text)
		} else {
			end += idx
		}
		return text[start:end]
	}
	return text
}
