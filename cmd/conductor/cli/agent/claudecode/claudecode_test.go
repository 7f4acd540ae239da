package claudecode

import (
	"strings"
	"testing"

	"github.com/entireio/conductor/cmd/conductor/cli/agent"
)

func TestParseLineSystemInit(t *testing.T) {
	t.Parallel()

	p := &Parser{}
	line := `{"type":"system","subtype":"init","session_id":"sess-1","slash_commands":["/compact","/clear"]}`

	ev := p.ParseLine([]byte(line))
	if ev == nil {
		t.Fatal("ParseLine() = nil, want event")
	}
	if ev.Type != "system" {
		t.Errorf("Type = %q, want %q", ev.Type, "system")
	}
	if got := p.ExtractSessionID(ev); got != "sess-1" {
		t.Errorf("ExtractSessionID() = %q, want %q", got, "sess-1")
	}
	commands := p.ExtractSlashCommands(ev)
	if len(commands) != 2 || commands[0] != "/compact" {
		t.Errorf("ExtractSlashCommands() = %v, want [/compact /clear]", commands)
	}
	if p.IsResultMessage(ev) {
		t.Error("IsResultMessage() = true for system event")
	}
}

func TestParseLineAssistantText(t *testing.T) {
	t.Parallel()

	p := &Parser{}
	line := `{"type":"assistant","message":{"content":[{"type":"text","text":"working on it"}]},"session_id":"s"}`

	ev := p.ParseLine([]byte(line))
	if ev == nil {
		t.Fatal("ParseLine() = nil, want event")
	}
	if ev.Text != "working on it" {
		t.Errorf("Text = %q, want %q", ev.Text, "working on it")
	}
}

func TestParseLineThinking(t *testing.T) {
	t.Parallel()

	p := &Parser{}
	line := `{"type":"assistant","message":{"content":[{"type":"thinking","thinking":"let me check the tests"}]}}`

	ev := p.ParseLine([]byte(line))
	if ev == nil {
		t.Fatal("ParseLine() = nil, want event")
	}
	if ev.Thinking != "let me check the tests" {
		t.Errorf("Thinking = %q, want thinking text", ev.Thinking)
	}
}

func TestParseLineToolUse(t *testing.T) {
	t.Parallel()

	p := &Parser{}
	line := `{"type":"assistant","message":{"content":[{"type":"tool_use","name":"Read","input":{"file_path":"/src/auth/login.go"}}]}}`

	ev := p.ParseLine([]byte(line))
	if ev == nil {
		t.Fatal("ParseLine() = nil, want event")
	}
	if ev.ToolName != "Read" {
		t.Errorf("ToolName = %q, want %q", ev.ToolName, "Read")
	}
	if ev.ToolDetail != "Reading login.go" {
		t.Errorf("ToolDetail = %q, want %q", ev.ToolDetail, "Reading login.go")
	}
}

func TestParseLineResultWithUsage(t *testing.T) {
	t.Parallel()

	p := &Parser{}
	line := `{"type":"result","subtype":"success","result":"all done","session_id":"s-9",` +
		`"total_cost_usd":0.37,"usage":{"input_tokens":120,"output_tokens":40,"cache_read_input_tokens":1000}}`

	ev := p.ParseLine([]byte(line))
	if ev == nil {
		t.Fatal("ParseLine() = nil, want event")
	}
	if !p.IsResultMessage(ev) {
		t.Fatal("IsResultMessage() = false for result event")
	}
	if ev.Text != "all done" {
		t.Errorf("Text = %q, want %q", ev.Text, "all done")
	}

	usage := p.ExtractUsage(ev)
	if usage == nil {
		t.Fatal("ExtractUsage() = nil, want stats")
	}
	if usage.InputTokens != 120 || usage.OutputTokens != 40 {
		t.Errorf("tokens = %d/%d, want 120/40", usage.InputTokens, usage.OutputTokens)
	}
	if usage.CacheReadTokens != 1000 {
		t.Errorf("CacheReadTokens = %d, want 1000", usage.CacheReadTokens)
	}
	if usage.TotalCostUSD != 0.37 {
		t.Errorf("TotalCostUSD = %f, want 0.37", usage.TotalCostUSD)
	}
	if usage.ContextWindow != agent.DefaultContextWindow {
		t.Errorf("ContextWindow = %d, want default", usage.ContextWindow)
	}
}

func TestExtractUsagePerModelBreakdown(t *testing.T) {
	t.Parallel()

	p := &Parser{}
	line := `{"type":"result","result":"ok","modelUsage":{` +
		`"claude-opus":{"input_tokens":10,"output_tokens":5},` +
		`"claude-haiku":{"input_tokens":3,"output_tokens":2}},` +
		`"usage":{"input_tokens":999},"total_cost_usd":1.5}`

	ev := p.ParseLine([]byte(line))
	usage := p.ExtractUsage(ev)
	if usage == nil {
		t.Fatal("ExtractUsage() = nil, want stats")
	}
	// Per-model breakdown wins over the flat object.
	if usage.InputTokens != 13 {
		t.Errorf("InputTokens = %d, want 13", usage.InputTokens)
	}
	if usage.OutputTokens != 7 {
		t.Errorf("OutputTokens = %d, want 7", usage.OutputTokens)
	}
	if usage.TotalCostUSD != 1.5 {
		t.Errorf("TotalCostUSD = %f, want 1.5", usage.TotalCostUSD)
	}
}

func TestParseLineNonProtocol(t *testing.T) {
	t.Parallel()

	p := &Parser{}
	if ev := p.ParseLine([]byte("npm WARN deprecated package")); ev != nil {
		t.Fatalf("ParseLine() = %+v, want nil for plain text", ev)
	}
	if ev := p.ParseLine([]byte(`{"no_type_field":true}`)); ev != nil {
		t.Fatalf("ParseLine() = %+v, want nil without type tag", ev)
	}
}

func TestDetectErrorFromLine(t *testing.T) {
	t.Parallel()

	p := &Parser{}

	cases := []struct {
		name    string
		line    string
		wantNil bool
		wantTag agent.ErrorTag
	}{
		{
			"success result",
			`{"type":"result","subtype":"success","result":"ok"}`,
			true, "",
		},
		{
			"execution error",
			`{"type":"result","subtype":"error_during_execution","result":"tool crashed"}`,
			false, agent.ErrAgentCrashed,
		},
		{
			"rate limited",
			`{"type":"result","subtype":"error_during_execution","result":"API rate limit exceeded"}`,
			false, agent.ErrRateLimited,
		},
		{
			"is_error flag",
			`{"type":"result","is_error":true,"result":"Invalid API key provided"}`,
			false, agent.ErrAuthFailed,
		},
		{
			"assistant line",
			`{"type":"assistant","message":{"content":[]}}`,
			true, "",
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := p.DetectErrorFromLine([]byte(tc.line))
			if tc.wantNil {
				if err != nil {
					t.Fatalf("DetectErrorFromLine() = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatal("DetectErrorFromLine() = nil, want error")
			}
			if err.Tag != tc.wantTag {
				t.Errorf("Tag = %q, want %q", err.Tag, tc.wantTag)
			}
		})
	}
}

func TestDetectErrorFromExit(t *testing.T) {
	t.Parallel()

	p := &Parser{}

	if err := p.DetectErrorFromExit(0, "Error: looks scary but exit was clean", ""); err != nil {
		t.Fatalf("DetectErrorFromExit(0) = %v, want nil", err)
	}

	err := p.DetectErrorFromExit(1, "Error: OAuth token has expired. Run /login.\n", "")
	if err == nil {
		t.Fatal("DetectErrorFromExit(1) = nil, want error")
	}
	if err.Tag != agent.ErrAuthFailed {
		t.Errorf("Tag = %q, want %q", err.Tag, agent.ErrAuthFailed)
	}
	if err.Recoverable {
		t.Error("Recoverable = true, want false for auth failure")
	}
	if !strings.Contains(err.Message, "OAuth token has expired") {
		t.Errorf("Message = %q, want matching line", err.Message)
	}

	// Unknown failure text falls back to the shared crash classifier.
	err = p.DetectErrorFromExit(2, "segmentation fault\n", "")
	if err == nil {
		t.Fatal("DetectErrorFromExit(2) = nil, want error")
	}
	if err.Tag != agent.ErrAgentCrashed {
		t.Errorf("Tag = %q, want %q", err.Tag, agent.ErrAgentCrashed)
	}
}
