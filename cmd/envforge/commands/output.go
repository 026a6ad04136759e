package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/envforge/envforge/pkg/environment"
	"github.com/envforge/envforge/pkg/stores"
)

// printState renders one environment state, honoring --json.
func printState(state *environment.AnyState) error {
	if jsonOutput {
		return printJSON(state)
	}

	fmt.Printf("Environment: %s\n", state.Name())
	fmt.Printf("Phase:       %s\n", state.Phase())
	fmt.Printf("Instance:    %s\n", state.InstanceName())
	fmt.Printf("Created:     %s\n", state.CreatedAt().Format(time.RFC3339))
	if ip, ok := state.InstanceIP(); ok {
		fmt.Printf("Address:     %s\n", ip)
	}
	if fc, ok := state.Failure(); ok {
		fmt.Printf("Failed step: %s\n", fc.FailedStep)
		fmt.Printf("Error kind:  %s\n", fc.ErrorKind)
		fmt.Printf("Error:       %s\n", fc.ErrorSummary)
		if fc.TraceFilePath != "" {
			fmt.Printf("Trace file:  %s\n", fc.TraceFilePath)
		}
	}
	return nil
}

// printStates renders a list of environment states as a table, honoring
// --json.
func printStates(states []environment.AnyState) error {
	if jsonOutput {
		return printJSON(states)
	}
	if len(states) == 0 {
		fmt.Println("No environments found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tPHASE\tADDRESS\tCREATED")
	for _, state := range states {
		addr := "-"
		if ip, ok := state.InstanceIP(); ok {
			addr = ip.String()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			state.Name(), state.Phase(), addr, state.CreatedAt().Format(time.RFC3339))
	}
	return w.Flush()
}

// printTransitions renders audit log entries, honoring --json.
func printTransitions(transitions []*stores.Transition) error {
	if jsonOutput {
		return printJSON(transitions)
	}
	if len(transitions) == 0 {
		fmt.Println("No transitions recorded.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "OCCURRED\tENVIRONMENT\tFROM\tTO\tTRACE")
	for _, t := range transitions {
		traceID := "-"
		if t.TraceID != nil {
			traceID = *t.TraceID
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			t.OccurredAt.Format(time.RFC3339), t.Environment, t.FromPhase, t.ToPhase, traceID)
	}
	return w.Flush()
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
