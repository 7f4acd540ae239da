// Package proc implements the process orchestration engine: spawning agent
// CLI processes over a PTY or pipes, decoding their streaming output
// through the registered protocol parsers, classifying failures, and
// managing the interrupt/kill lifecycle. The ProcessManager facade is the
// only entry point; all session state lives behind it.
package proc

import (
	"github.com/entireio/conductor/cmd/conductor/cli/agent"
)

// EventType names one kind of engine event.
type EventType string

const (
	// EventData is coalesced display output from a session.
	EventData EventType = "data"
	// EventStderr is forwarded stderr output from a session.
	EventStderr EventType = "stderr"
	// EventExit reports a session's process exit. Emitted exactly once per
	// session, always last.
	EventExit EventType = "exit"
	// EventCommandExit reports a one-shot command's exit.
	EventCommandExit EventType = "command-exit"
	// EventUsage carries a normalized token/cost snapshot.
	EventUsage EventType = "usage"
	// EventSessionID announces the agent's own session identifier. At most
	// once per session.
	EventSessionID EventType = "session-id"
	// EventAgentError carries a classified failure. At most once per session.
	EventAgentError EventType = "agent-error"
	// EventThinkingChunk is streamed reasoning text.
	EventThinkingChunk EventType = "thinking-chunk"
	// EventToolExecution announces a tool invocation by the agent.
	EventToolExecution EventType = "tool-execution"
	// EventSlashCommands lists the slash commands the agent advertises.
	EventSlashCommands EventType = "slash-commands"
	// EventQueryComplete summarizes a finished batch query.
	EventQueryComplete EventType = "query-complete"
)

// Event is one engine notification. SessionID and Type are always set;
// the payload fields used depend on Type.
type Event struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id"`

	// Data carries text for data, stderr, and thinking-chunk events.
	Data string `json:"data,omitempty"`

	// ExitCode is set on exit and command-exit events.
	ExitCode int `json:"exit_code,omitempty"`

	// AgentSessionID is set on session-id events.
	AgentSessionID string `json:"agent_session_id,omitempty"`

	// Usage is set on usage and query-complete events.
	Usage *agent.UsageStats `json:"usage,omitempty"`

	// Err is set on agent-error events.
	Err *agent.AgentError `json:"error,omitempty"`

	// ToolName and ToolDetail are set on tool-execution events.
	ToolName   string `json:"tool_name,omitempty"`
	ToolDetail string `json:"tool_detail,omitempty"`

	// SlashCommands is set on slash-commands events.
	SlashCommands []string `json:"slash_commands,omitempty"`

	// DurationMS is set on query-complete events.
	DurationMS int64 `json:"duration_ms,omitempty"`
}

// EmitFunc receives engine events. Called from engine goroutines; it must
// not block for long and must not call back into the manager while holding
// its own locks that manager callbacks also take. Per-session ordering is
// guaranteed; cross-session ordering is not.
type EmitFunc func(Event)
