package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/entireio/conductor/cmd/conductor/cli/agent"
	"github.com/entireio/conductor/cmd/conductor/cli/proc"
	"github.com/entireio/conductor/cmd/conductor/cli/stats"
)

// EnvPostHogKey supplies the statistics API key. Unset disables the sink.
const EnvPostHogKey = "CONDUCTOR_POSTHOG_KEY"

func newRunCmd() *cobra.Command {
	var (
		agentFlag   string
		cwd         string
		prompt      string
		jsonOutput  bool
		attachments []string
	)

	cmd := &cobra.Command{
		Use:   "run [flags] [-- agent-args...]",
		Short: "Run an agent session",
		Long: "Spawns an agent CLI (or a bare terminal) and streams its output. " +
			"With --prompt the agent runs one batch query and exits; without it " +
			"the session is interactive and stdin lines are forwarded to the agent.",
		RunE: func(cmd *cobra.Command, args []string) error {
			agentType, err := resolveAgentType(agentFlag)
			if err != nil {
				return err
			}

			cfg := proc.ProcessConfig{
				SessionID:   uuid.NewString(),
				AgentType:   agentType,
				Command:     defaultBinary(agentType),
				Args:        append(defaultArgs(agentType, prompt != ""), args...),
				Cwd:         cwd,
				Prompt:      prompt,
				Attachments: attachments,
			}
			if cols, rows, err := term.GetSize(int(os.Stdout.Fd())); err == nil {
				cfg.Cols, cfg.Rows = uint16(cols), uint16(rows) //nolint:gosec // terminal sizes fit
			}

			return runSession(cmd, cfg, jsonOutput)
		},
	}

	cmd.Flags().StringVarP(&agentFlag, "agent", "a", "",
		"agent type (claude-code, gemini-cli, opencode, terminal)")
	cmd.Flags().StringVar(&cwd, "cwd", "", "working directory for the agent")
	cmd.Flags().StringVarP(&prompt, "prompt", "p", "", "batch prompt; omit for an interactive session")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "emit raw event JSON instead of formatted output")
	cmd.Flags().StringSliceVar(&attachments, "attach", nil, "image files to attach (agents that support it)")

	return cmd
}

// resolveAgentType turns the --agent flag into an agent type, asking
// interactively when the flag is missing and stdin is a terminal.
func resolveAgentType(flag string) (agent.AgentType, error) {
	if flag != "" {
		for _, t := range agent.Types() {
			if string(t) == flag {
				return t, nil
			}
		}
		return "", fmt.Errorf("unknown agent type %q (see 'conductor agents')", flag)
	}

	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return agent.AgentTypeClaudeCode, nil
	}

	options := make([]huh.Option[agent.AgentType], 0, len(agent.Types()))
	for _, t := range agent.Types() {
		options = append(options, huh.NewOption(string(t), t))
	}
	var selected agent.AgentType
	form := huh.NewForm(huh.NewGroup(
		huh.NewSelect[agent.AgentType]().
			Title("Which agent?").
			Options(options...).
			Value(&selected),
	))
	if err := form.Run(); err != nil {
		return "", fmt.Errorf("agent selection cancelled: %w", err)
	}
	return selected, nil
}

func defaultBinary(t agent.AgentType) string {
	switch t {
	case agent.AgentTypeClaudeCode:
		return "claude"
	case agent.AgentTypeGeminiCLI:
		return "gemini"
	case agent.AgentTypeOpenCode:
		return "opencode"
	default:
		return "" // terminal runs the user's shell
	}
}

// defaultArgs assembles the protocol flags each CLI needs for the engine
// to parse its output.
func defaultArgs(t agent.AgentType, batch bool) []string {
	switch t {
	case agent.AgentTypeClaudeCode:
		args := []string{"--output-format", "stream-json", "--input-format", "stream-json", "--verbose"}
		if batch {
			args = append([]string{"-p"}, args...)
		}
		return args
	case agent.AgentTypeGeminiCLI:
		return []string{"--output-format", "stream-json"}
	case agent.AgentTypeOpenCode:
		return []string{"run", "--print-logs=false"}
	default:
		return nil
	}
}

// runSession spawns the session, pumps stdin, and blocks until the exit
// event. Ctrl-C interrupts the agent gracefully; a second Ctrl-C during
// the grace period is the escalation timer's job, not ours.
func runSession(cmd *cobra.Command, cfg proc.ProcessConfig, jsonOutput bool) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	errOut := cmd.ErrOrStderr()

	sink := stats.NewSink(ctx, os.Getenv(EnvPostHogKey), "")
	defer sink.Close()

	exitCh := make(chan int, 1)
	emit := func(ev proc.Event) {
		sink.Consume(ev)
		if jsonOutput {
			if encoded, err := json.Marshal(ev); err == nil {
				fmt.Fprintln(out, string(encoded))
			}
		} else {
			printEvent(out, errOut, ev)
		}
		if ev.Type == proc.EventExit {
			exitCh <- ev.ExitCode
		}
	}

	mgr := proc.NewManager(emit)
	if err := mgr.Spawn(ctx, cfg); err != nil {
		return fmt.Errorf("failed to spawn session: %w", err)
	}

	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, os.Interrupt)
	defer signal.Stop(interrupts)

	if cfg.Prompt == "" {
		go pumpStdin(mgr, cfg.SessionID)
	}

	for {
		select {
		case <-interrupts:
			_ = mgr.Interrupt(ctx, cfg.SessionID)
		case code := <-exitCh:
			if code != 0 {
				return fmt.Errorf("agent exited with code %d", code)
			}
			return nil
		}
	}
}

// pumpStdin forwards stdin lines to the session until EOF. The manager
// handles protocol wrapping for stream-input agents.
func pumpStdin(mgr *proc.Manager, sessionID string) {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if err := mgr.Write(sessionID, scanner.Text()+"\n"); err != nil {
			return
		}
	}
}

// printEvent renders one event for human consumption.
func printEvent(out, errOut io.Writer, ev proc.Event) {
	switch ev.Type {
	case proc.EventData:
		fmt.Fprint(out, ev.Data)
		if !strings.HasSuffix(ev.Data, "\n") {
			fmt.Fprintln(out)
		}
	case proc.EventStderr:
		fmt.Fprint(errOut, ev.Data)
	case proc.EventThinkingChunk:
		fmt.Fprintf(out, "· %s\n", strings.TrimSpace(ev.Data))
	case proc.EventToolExecution:
		detail := ev.ToolDetail
		if detail == "" {
			detail = ev.ToolName
		}
		fmt.Fprintf(out, "→ %s\n", detail)
	case proc.EventAgentError:
		fmt.Fprintf(errOut, "error [%s]: %s\n", ev.Err.Tag, ev.Err.Message)
	case proc.EventUsage:
		// Reported once more in the query-complete summary; skip mid-run.
	case proc.EventQueryComplete:
		if ev.Usage != nil {
			fmt.Fprintf(out, "done in %dms (%d in / %d out tokens, $%.4f)\n",
				ev.DurationMS, ev.Usage.InputTokens, ev.Usage.OutputTokens, ev.Usage.TotalCostUSD)
		} else {
			fmt.Fprintf(out, "done in %dms\n", ev.DurationMS)
		}
	}
}
