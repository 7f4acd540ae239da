package agent

import "encoding/json"

// ParsedEvent is the normalized representation of one decoded protocol
// line. A line yields at most one event; fields the protocol did not carry
// stay zero. Raw keeps the decoded top-level object so per-agent parsers
// can extract protocol-specific detail without re-unmarshalling.
type ParsedEvent struct {
	// Type is the protocol-level type tag ("assistant", "result", ...).
	Type string

	// Text is displayable text extracted from the line.
	Text string

	// Thinking is reasoning text, for protocols that stream it separately.
	Thinking string

	// ToolName and ToolDetail describe a tool execution announced by this
	// line, when present.
	ToolName   string
	ToolDetail string

	// Raw is the decoded top-level JSON object.
	Raw map[string]json.RawMessage
}

// Parser decodes one agent's streaming output protocol. Implementations
// are stateless across calls; all per-session state lives in the process
// record, so one parser instance serves many concurrent sessions.
type Parser interface {
	// ParseLine decodes one stdout line. Returns nil when the line is not
	// part of the protocol (the caller falls back to treating it as text).
	ParseLine(line []byte) *ParsedEvent

	// ExtractUsage returns normalized token/cost stats carried by the
	// event, or nil.
	ExtractUsage(ev *ParsedEvent) *UsageStats

	// ExtractSessionID returns the agent's session/thread identifier
	// carried by the event, or "".
	ExtractSessionID(ev *ParsedEvent) string

	// ExtractSlashCommands returns the slash-command list announced by the
	// event, or nil.
	ExtractSlashCommands(ev *ParsedEvent) []string

	// IsResultMessage reports whether the event is the terminal result.
	IsResultMessage(ev *ParsedEvent) bool

	// DetectErrorFromLine classifies a structured error surfaced
	// mid-stream, or returns nil.
	DetectErrorFromLine(line []byte) *AgentError

	// DetectErrorFromExit classifies a failure from the exit code and the
	// accumulated stderr/stdout buffers. Must return nil when exitCode is 0.
	DetectErrorFromExit(exitCode int, stderr, stdout string) *AgentError
}

// decodeObject unmarshals a JSON object line into a raw field map.
// Returns nil for anything that is not a JSON object.
func decodeObject(line []byte) map[string]json.RawMessage {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(line, &raw); err != nil {
		return nil
	}
	return raw
}

// stringField extracts a string field from a raw object, or "".
func stringField(raw map[string]json.RawMessage, key string) string {
	v, ok := raw[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return ""
	}
	return s
}
