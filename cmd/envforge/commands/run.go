package commands

import (
	"github.com/spf13/cobra"

	"github.com/envforge/envforge/pkg/lifecycle"
)

func newRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <name>",
		Short: "Start the application services",
		Long: `Run starts the released application services on the instance and
verifies they stay up. The environment must be in the released phase,
or in run_failed for a retry.`,
		Example: `  # Start services in the dev environment
  envforge run dev`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLifecycle(cmd, "run", args[0], (*lifecycle.Service).Run)
		},
	}
	return cmd
}
