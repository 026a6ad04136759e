package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/envforge/envforge/pkg/lifecycle"
)

func newDestroyCommand() *cobra.Command {
	var purge bool

	cmd := &cobra.Command{
		Use:   "destroy <name>",
		Short: "Tear down an environment's infrastructure",
		Long: `Destroy tears down the environment's infrastructure and moves it to
the destroyed phase. The state file is kept so the final phase stays
inspectable.

With --purge, the persisted state and transition history are removed
as well once the teardown succeeds.`,
		Example: `  # Destroy the dev environment
  envforge destroy dev

  # Destroy and forget it entirely
  envforge destroy dev --purge`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := runLifecycle(cmd, "destroy", args[0], (*lifecycle.Service).Destroy); err != nil {
				return err
			}
			if !purge {
				return nil
			}

			ctx := cmd.Context()
			a, err := setup(ctx)
			if err != nil {
				return err
			}
			defer a.close(ctx)

			if err := a.service.Purge(ctx, args[0]); err != nil {
				return err
			}
			fmt.Printf("Environment %s purged.\n", args[0])
			return nil
		},
	}

	cmd.Flags().BoolVar(&purge, "purge", false, "remove persisted state and history after destroying")
	return cmd
}
