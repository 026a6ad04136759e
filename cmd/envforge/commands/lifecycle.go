package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/envforge/envforge/pkg/environment"
	"github.com/envforge/envforge/pkg/lifecycle"
	"github.com/envforge/envforge/pkg/telemetry"
)

// lifecycleFunc is one environment lifecycle operation on the service.
type lifecycleFunc func(s *lifecycle.Service, ctx context.Context, name string) (*environment.AnyState, error)

// runLifecycle wires the app, instruments the command, runs the
// operation, and prints the resulting state. The state is printed even
// on failure so the user sees the failure phase and trace file path.
func runLifecycle(cmd *cobra.Command, command, name string, fn lifecycleFunc) error {
	ctx := cmd.Context()
	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.close(ctx)

	ctx = a.tel.WithContext(ctx)
	ctx = telemetry.WithCommandContext(ctx, command, name)

	state, err := fn(a.service, ctx, name)

	traceID := ""
	if state != nil {
		if fc, ok := state.Failure(); ok {
			traceID = fc.TraceID.String()
		}
	}
	telemetry.EndCommandContext(ctx, command, name, traceID, err)

	if state != nil {
		if perr := printState(state); perr != nil && err == nil {
			err = perr
		}
	}
	return err
}
