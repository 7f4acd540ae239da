package agent

import (
	"fmt"
	"strings"
	"time"
)

// ErrorTag is the classified failure taxonomy.
type ErrorTag string

const (
	// ErrAgentCrashed covers spawn failures and unrecoverable exits.
	ErrAgentCrashed ErrorTag = "agent_crashed"
	// ErrRateLimited is an agent-reported rate limit.
	ErrRateLimited ErrorTag = "rate_limited"
	// ErrAuthFailed is an agent-reported authentication failure.
	ErrAuthFailed ErrorTag = "auth_failed"
	// ErrContextExhausted is an agent-reported context window overflow.
	ErrContextExhausted ErrorTag = "context_exhausted"

	// SSH transport tags, fixed by the transport pattern set.
	ErrSSHConnectionRefused ErrorTag = "ssh_connection_refused"
	ErrSSHAuthFailed        ErrorTag = "ssh_auth_failed"
	ErrSSHHostKeyMismatch   ErrorTag = "ssh_host_key_mismatch"
	ErrSSHConnectionLost    ErrorTag = "ssh_connection_lost"
)

// AgentError is a classified failure. Created by the error classifier,
// emitted once per process as an agent-error event, never persisted here.
type AgentError struct {
	Tag         ErrorTag  `json:"tag"`
	Message     string    `json:"message"`
	Recoverable bool      `json:"recoverable"`
	AgentType   AgentType `json:"agent_type"`
	SessionID   string    `json:"session_id"`
	Timestamp   time.Time `json:"timestamp"`

	// Raw evidence for diagnostics.
	ExitCode int    `json:"exit_code,omitempty"`
	Stderr   string `json:"stderr,omitempty"`
	Stdout   string `json:"stdout,omitempty"`
}

func (e *AgentError) Error() string {
	return fmt.Sprintf("%s: %s", e.Tag, e.Message)
}

// NewCrashError builds an agent_crashed error from exit evidence.
func NewCrashError(t AgentType, message string, exitCode int, stderr, stdout string) *AgentError {
	return &AgentError{
		Tag:         ErrAgentCrashed,
		Message:     message,
		Recoverable: true,
		AgentType:   t,
		Timestamp:   time.Now(),
		ExitCode:    exitCode,
		Stderr:      truncateEvidence(stderr),
		Stdout:      truncateEvidence(stdout),
	}
}

// maxEvidenceLen bounds the raw buffer excerpts attached to an error.
const maxEvidenceLen = 4096

func truncateEvidence(s string) string {
	if len(s) <= maxEvidenceLen {
		return s
	}
	return s[len(s)-maxEvidenceLen:]
}

// ClassifyExit is the shared exit-code classifier used when an agent
// parser has no sharper heuristic. Returns nil on a zero exit code
// regardless of buffer contents.
func ClassifyExit(t AgentType, exitCode int, stderr, stdout string) *AgentError {
	if exitCode == 0 {
		return nil
	}
	msg := strings.TrimSpace(stderr)
	if msg == "" {
		msg = strings.TrimSpace(lastLines(stdout, 3))
	}
	if msg == "" {
		msg = fmt.Sprintf("process exited with code %d", exitCode)
	}
	return NewCrashError(t, msg, exitCode, stderr, stdout)
}

var sshPatterns = []struct {
	substr      string
	tag         ErrorTag
	recoverable bool
}{
	{"Connection refused", ErrSSHConnectionRefused, true},
	{"Permission denied (publickey", ErrSSHAuthFailed, false},
	{"Permission denied, please try again", ErrSSHAuthFailed, false},
	{"Host key verification failed", ErrSSHHostKeyMismatch, false},
	{"REMOTE HOST IDENTIFICATION HAS CHANGED", ErrSSHHostKeyMismatch, false},
	{"Connection closed by remote host", ErrSSHConnectionLost, true},
	{"Connection reset by peer", ErrSSHConnectionLost, true},
	{"Broken pipe", ErrSSHConnectionLost, true},
	{"Could not resolve hostname", ErrSSHConnectionRefused, false},
	{"Connection timed out", ErrSSHConnectionLost, true},
}

// ClassifySSHOutput matches SSH transport failure patterns against
// combined stdout+stderr text. Connection-level failures can surface on
// stdout, so callers pass the merged buffers. Returns nil when nothing
// matches.
func ClassifySSHOutput(t AgentType, combined string) *AgentError {
	for _, p := range sshPatterns {
		idx := strings.Index(combined, p.substr)
		if idx < 0 {
			continue
		}
		return &AgentError{
			Tag:         p.tag,
			Message:     lineAround(combined, idx),
			Recoverable: p.recoverable,
			AgentType:   t,
			Timestamp:   time.Now(),
			Stderr:      truncateEvidence(combined),
		}
	}
	return nil
}

// lineAround returns the full line containing byte offset idx.
func lineAround(s string, idx int) string {
	start := strings.LastIndexByte(s[:idx], '\n') + 1
	end := strings.IndexByte(s[idx:], '\n')
	if end < 0 {
		end = len(s)
	} else {
		end += idx
	}
	return strings.TrimSpace(s[start:end])
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
