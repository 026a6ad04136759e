package commands

import (
	"github.com/spf13/cobra"

	"github.com/envforge/envforge/pkg/lifecycle"
)

func newProvisionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "provision <name>",
		Short: "Provision the environment's infrastructure",
		Long: `Provision renders the infrastructure templates, applies them with
OpenTofu, and waits for the instance to boot. The environment must be
in the created phase, or in provision_failed for a retry.

On failure the environment moves to provision_failed and a trace file
is written under the environment's traces directory.`,
		Example: `  # Provision the dev environment
  envforge provision dev

  # Retry after a provisioning failure
  envforge provision dev`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLifecycle(cmd, "provision", args[0], (*lifecycle.Service).Provision)
		},
	}
	return cmd
}
