// Package agent defines the agent type table, the streaming protocol
// parser contract, and the shared error/usage model for the process
// orchestration engine. Concrete parsers live in subpackages and register
// themselves via init, mirroring how strategies self-register.
package agent

import (
	"strings"
	"time"
)

// AgentType identifies an integrated CLI tool. The set is closed; lookup
// tables below are resolved once at startup.
type AgentType string

const (
	// AgentTypeClaudeCode is the Claude Code CLI.
	AgentTypeClaudeCode AgentType = "claude-code"
	// AgentTypeGeminiCLI is the Gemini CLI.
	AgentTypeGeminiCLI AgentType = "gemini-cli"
	// AgentTypeOpenCode is the OpenCode CLI.
	AgentTypeOpenCode AgentType = "opencode"
	// AgentTypeTerminal is a bare shell session with no agent protocol.
	AgentTypeTerminal AgentType = "terminal"
)

// Types returns all known agent types in declaration order.
func Types() []AgentType {
	return []AgentType{AgentTypeClaudeCode, AgentTypeGeminiCLI, AgentTypeOpenCode, AgentTypeTerminal}
}

// PromptDelivery selects how a batch prompt reaches the child process.
type PromptDelivery string

const (
	// DeliverArgument passes the prompt as a trailing CLI argument.
	DeliverArgument PromptDelivery = "argument"
	// DeliverStdinText writes the raw prompt to stdin and closes it.
	DeliverStdinText PromptDelivery = "stdin-text"
	// DeliverStdinStream writes a stream-protocol JSON message to stdin.
	DeliverStdinStream PromptDelivery = "stdin-stream"
)

// Capabilities describes what an agent CLI supports. The table is static;
// argv sniffing (see StreamJSONFromArgs) exists only as a legacy fallback
// for externally supplied commands.
type Capabilities struct {
	// StreamJSONOutput declares that the agent emits line-delimited JSON
	// events on stdout.
	StreamJSONOutput bool

	// StreamJSONInput declares that the agent accepts stream-protocol
	// messages on stdin.
	StreamJSONInput bool

	// FileAttachments declares support for image attachments passed as
	// file-path flags.
	FileAttachments bool

	// PromptDelivery is the preferred batch prompt channel.
	PromptDelivery PromptDelivery

	// WantsPTY requests a pseudo-terminal even in interactive pipe setups.
	WantsPTY bool

	// InterruptGrace is how long to wait after a graceful interrupt before
	// escalating to a forced kill. Tuned per agent; shutdown latency varies
	// widely between CLIs.
	InterruptGrace time.Duration
}

// DefaultInterruptGrace applies when an agent has no tuned grace period.
const DefaultInterruptGrace = 2 * time.Second

var capabilityTable = map[AgentType]Capabilities{
	AgentTypeClaudeCode: {
		StreamJSONOutput: true,
		StreamJSONInput:  true,
		FileAttachments:  false,
		PromptDelivery:   DeliverStdinStream,
		InterruptGrace:   DefaultInterruptGrace,
	},
	AgentTypeGeminiCLI: {
		StreamJSONOutput: true,
		FileAttachments:  true,
		PromptDelivery:   DeliverArgument,
		InterruptGrace:   3 * time.Second,
	},
	AgentTypeOpenCode: {
		StreamJSONOutput: false,
		PromptDelivery:   DeliverArgument,
		InterruptGrace:   DefaultInterruptGrace,
	},
	AgentTypeTerminal: {
		WantsPTY:       true,
		PromptDelivery: DeliverStdinText,
		InterruptGrace: DefaultInterruptGrace,
	},
}

// CapabilitiesFor returns the capability entry for an agent type. Unknown
// types get a conservative zero entry with the default grace period.
func CapabilitiesFor(t AgentType) Capabilities {
	if c, ok := capabilityTable[t]; ok {
		return c
	}
	return Capabilities{PromptDelivery: DeliverArgument, InterruptGrace: DefaultInterruptGrace}
}

// StreamJSONFromArgs reports whether argv requests line-delimited JSON
// output. Legacy fallback for commands assembled outside the capability
// table; the declared Capabilities entry wins when one exists.
func StreamJSONFromArgs(args []string) bool {
	for _, a := range args {
		if strings.Contains(a, "stream-json") {
			return true
		}
	}
	return false
}
