package commands

import (
	"github.com/spf13/cobra"

	"github.com/envforge/envforge/pkg/lifecycle"
)

func newReleaseCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "release <name>",
		Short: "Build and upload the application artifacts",
		Long: `Release renders the application artifacts locally, uploads them to
the instance, and validates the composition. The environment must be
in the configured phase, or in release_failed for a retry.`,
		Example: `  # Release to the dev environment
  envforge release dev`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLifecycle(cmd, "release", args[0], (*lifecycle.Service).Release)
		},
	}
	return cmd
}
