package commands

import (
	"github.com/spf13/cobra"

	"github.com/envforge/envforge/pkg/lifecycle"
)

func newCreateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Declare a new environment",
		Long: `Create declares a new environment and persists it in the created
phase. No infrastructure is touched; run provision next.

The environment name must be 1-63 characters of lowercase letters,
digits, and hyphens, starting and ending with a letter or digit.`,
		Example: `  # Declare an environment named dev
  envforge create dev

  # Declare with a custom config file
  envforge create dev --config ./envforge.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLifecycle(cmd, "create", args[0], (*lifecycle.Service).Create)
		},
	}
	return cmd
}
