package cli

import (
	"bytes"
	"strings"
	"testing"
)

func TestAgentsCommandListsTypes(t *testing.T) {
	t.Parallel()

	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"agents"})
	if err := root.Execute(); err != nil {
		t.Fatalf("conductor agents failed: %v", err)
	}

	output := out.String()
	for _, want := range []string{"claude-code", "gemini-cli", "opencode", "terminal"} {
		if !strings.Contains(output, want) {
			t.Errorf("agents output missing %q:\n%s", want, output)
		}
	}
}

func TestRunRejectsUnknownAgent(t *testing.T) {
	t.Parallel()

	root := NewRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"run", "--agent", "not-an-agent"})
	if err := root.Execute(); err == nil {
		t.Fatal("expected an error for an unknown agent type")
	}
}

func TestDefaultArgsCarryProtocolFlags(t *testing.T) {
	t.Parallel()

	batch := strings.Join(defaultArgs("claude-code", true), " ")
	if !strings.Contains(batch, "-p") || !strings.Contains(batch, "stream-json") {
		t.Errorf("batch claude args = %q, want -p and stream-json", batch)
	}

	interactive := strings.Join(defaultArgs("claude-code", false), " ")
	if !strings.Contains(interactive, "--input-format stream-json") {
		t.Errorf("interactive claude args = %q, want stream-json input", interactive)
	}

	if args := defaultArgs("terminal", false); len(args) != 0 {
		t.Errorf("terminal args = %v, want none", args)
	}
}
