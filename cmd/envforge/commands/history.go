package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newHistoryCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history [name]",
		Short: "Show recorded phase transitions",
		Long: `History prints the audit log of phase transitions, most recent
first. With a name, only that environment's transitions are shown;
without one, transitions across all environments are listed.

History requires the transition history to be enabled in the
configuration.`,
		Example: `  # Transitions for the dev environment
  envforge history dev

  # Recent transitions across all environments
  envforge history --limit 50`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := setup(ctx)
			if err != nil {
				return err
			}
			defer a.close(ctx)

			if a.history == nil {
				return fmt.Errorf("transition history is disabled in the configuration")
			}

			if len(args) == 1 {
				transitions, err := a.service.History(ctx, args[0], limit)
				if err != nil {
					return err
				}
				return printTransitions(transitions)
			}

			if limit <= 0 {
				limit = a.cfg.History.Limit
			}
			transitions, err := a.history.ListAll(ctx, limit)
			if err != nil {
				return err
			}
			return printTransitions(transitions)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "maximum transitions to show (default from config)")
	return cmd
}
