package cli

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/entireio/conductor/cmd/conductor/cli/proc"
	"github.com/entireio/conductor/cmd/conductor/cli/runner"
)

func newExecCmd() *cobra.Command {
	var (
		sshHost  string
		sshUser  string
		sshPort  int
		identity string
		cwd      string
	)

	cmd := &cobra.Command{
		Use:   "exec [flags] -- command...",
		Short: "Run a one-shot command locally or over SSH",
		Long: "Executes a command through the user's login shell, or on a remote " +
			"host via the system ssh binary, streaming its output.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			command := strings.Join(args, " ")
			sessionID := uuid.NewString()

			var r proc.CommandRunner = &runner.Local{}
			if sshHost != "" {
				r = &runner.SSH{
					Host:         sshHost,
					User:         sshUser,
					Port:         sshPort,
					IdentityFile: identity,
				}
			}

			out := cmd.OutOrStdout()
			errOut := cmd.ErrOrStderr()
			mgr := proc.NewManager(func(ev proc.Event) {
				switch ev.Type {
				case proc.EventData:
					fmt.Fprint(out, ev.Data)
				case proc.EventStderr:
					fmt.Fprint(errOut, ev.Data)
				case proc.EventAgentError:
					fmt.Fprintf(errOut, "error [%s]: %s\n", ev.Err.Tag, ev.Err.Message)
				}
			}, proc.WithCommandRunner(r))

			code, err := mgr.RunCommand(cmd.Context(), sessionID, command, cwd)
			if err != nil {
				return fmt.Errorf("failed to run command: %w", err)
			}
			if code != 0 {
				return fmt.Errorf("command exited with code %d", code)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&sshHost, "ssh", "", "run on this host over SSH instead of locally")
	cmd.Flags().StringVar(&sshUser, "ssh-user", "", "SSH user (default: ssh config)")
	cmd.Flags().IntVar(&sshPort, "ssh-port", 0, "SSH port (default: ssh config)")
	cmd.Flags().StringVar(&identity, "ssh-identity", "", "SSH identity file")
	cmd.Flags().StringVar(&cwd, "cwd", "", "working directory for the command")

	return cmd
}
