package commands

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

func newStatusCommand() *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "status <name>",
		Short: "Show the persisted state of an environment",
		Long: `Status prints the persisted phase and details of an environment.

With --watch, status keeps running and reprints the state whenever the
state file changes, for example while a provision command runs in
another terminal.`,
		Example: `  # Show the dev environment
  envforge status dev

  # Follow state changes live
  envforge status dev --watch

  # Machine-readable output
  envforge status dev --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := setup(ctx)
			if err != nil {
				return err
			}
			defer a.close(ctx)

			state, err := a.service.Status(args[0])
			if err != nil {
				return err
			}
			if err := printState(state); err != nil {
				return err
			}
			if !watch {
				return nil
			}

			statePath, err := a.service.StatePath(args[0])
			if err != nil {
				return err
			}

			watcher, err := fsnotify.NewWatcher()
			if err != nil {
				return err
			}
			defer watcher.Close()

			// Watch the directory, not the file: atomic saves replace the
			// file by rename, which drops a watch on the file itself.
			if err := watcher.Add(filepath.Dir(statePath)); err != nil {
				return err
			}

			for {
				select {
				case <-ctx.Done():
					return nil
				case event, ok := <-watcher.Events:
					if !ok {
						return nil
					}
					if event.Name != statePath {
						continue
					}
					if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
						continue
					}
					state, err := a.service.Status(args[0])
					if err != nil {
						// The file may be mid-replace; wait for the next event.
						continue
					}
					if err := printState(state); err != nil {
						return err
					}
				case err, ok := <-watcher.Errors:
					if !ok {
						return nil
					}
					a.tel.Logger.WithError(err).Warn("state watch error")
				}
			}
		},
	}

	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "keep running and reprint on state changes")
	return cmd
}
