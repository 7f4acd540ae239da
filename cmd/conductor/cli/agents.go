package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/entireio/conductor/cmd/conductor/cli/agent"

	// Parser registration.
	_ "github.com/entireio/conductor/cmd/conductor/cli/agent/claudecode"
	_ "github.com/entireio/conductor/cmd/conductor/cli/agent/geminicli"
	_ "github.com/entireio/conductor/cmd/conductor/cli/agent/opencode"
)

func newAgentsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "agents",
		Short: "List supported agent types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "AGENT\tPARSER\tSTREAM-JSON\tPROMPT\tGRACE")
			for _, t := range agent.Types() {
				caps := agent.CapabilitiesFor(t)
				parser := "none"
				if _, ok := agent.Lookup(t); ok {
					parser = "yes"
				} else if t != agent.AgentTypeTerminal {
					parser = "generic"
				}
				fmt.Fprintf(w, "%s\t%s\t%v\t%s\t%s\n",
					t, parser, caps.StreamJSONOutput, caps.PromptDelivery, caps.InterruptGrace)
			}
			return w.Flush()
		},
	}
}
