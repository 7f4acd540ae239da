package agent

import "encoding/json"

// GenericParser is the fallback for agent types without a registered
// parser. It recognizes only legacy-shaped JSON objects with well-known
// top-level keys (result, session_id, usage); anything else is treated as
// opaque text by returning nil.
type GenericParser struct{}

var _ Parser = GenericParser{}

// ParseLine decodes a JSON object line with recognized top-level keys.
func (GenericParser) ParseLine(line []byte) *ParsedEvent {
	raw := decodeObject(line)
	if raw == nil {
		return nil
	}
	ev := &ParsedEvent{
		Type: stringField(raw, "type"),
		Raw:  raw,
	}
	if result := stringField(raw, "result"); result != "" {
		ev.Text = result
	} else if text := stringField(raw, "text"); text != "" {
		ev.Text = text
	}
	return ev
}

// ExtractUsage reads a flat top-level usage object.
func (GenericParser) ExtractUsage(ev *ParsedEvent) *UsageStats {
	rawUsage, ok := ev.Raw["usage"]
	if !ok {
		return nil
	}
	var flat ModelUsage
	if err := json.Unmarshal(rawUsage, &flat); err != nil {
		return nil
	}
	if flat == (ModelUsage{}) {
		return nil
	}
	var cost float64
	if rawCost, ok := ev.Raw["total_cost_usd"]; ok {
		_ = json.Unmarshal(rawCost, &cost)
	}
	return AggregateUsage(nil, flat, cost)
}

func (GenericParser) ExtractSessionID(ev *ParsedEvent) string {
	return stringField(ev.Raw, "session_id")
}

func (GenericParser) ExtractSlashCommands(ev *ParsedEvent) []string { return nil }

// IsResultMessage recognizes a top-level result field.
func (GenericParser) IsResultMessage(ev *ParsedEvent) bool {
	_, ok := ev.Raw["result"]
	return ok
}

func (GenericParser) DetectErrorFromLine(line []byte) *AgentError { return nil }

func (GenericParser) DetectErrorFromExit(exitCode int, stderr, stdout string) *AgentError {
	return ClassifyExit("", exitCode, stderr, stdout)
}
