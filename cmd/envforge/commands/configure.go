package commands

import (
	"github.com/spf13/cobra"

	"github.com/envforge/envforge/pkg/lifecycle"
)

func newConfigureCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "configure <name>",
		Short: "Install the software stack on the instance",
		Long: `Configure renders the Ansible playbooks and applies them to the
provisioned instance, installing the container runtime and host
configuration. The environment must be in the provisioned phase, or
in configure_failed for a retry.`,
		Example: `  # Configure the dev environment
  envforge configure dev`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLifecycle(cmd, "configure", args[0], (*lifecycle.Service).Configure)
		},
	}
	return cmd
}
