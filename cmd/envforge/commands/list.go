package commands

import (
	"github.com/spf13/cobra"
)

func newListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all environments",
		Long:  `List prints every environment with persisted state and its current phase.`,
		Example: `  # List environments
  envforge list

  # Machine-readable output
  envforge list --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := setup(ctx)
			if err != nil {
				return err
			}
			defer a.close(ctx)

			states, err := a.service.List()
			if err != nil {
				return err
			}
			return printStates(states)
		},
	}
	return cmd
}
