package trace

import (
	"context"
	"errors"
	"net"
	"os/exec"
	"time"

	"github.com/envforge/envforge/pkg/environment"
	"github.com/envforge/envforge/pkg/stores"
	"github.com/envforge/envforge/pkg/telemetry"
	"github.com/envforge/envforge/pkg/tools"
)

// ClassifyError maps a raw error onto the closed error kind set.
// Unrecognized errors fall back to the internal kind.
func ClassifyError(err error) environment.ErrorKind {
	if err == nil {
		return environment.ErrorKindInternal
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return environment.ErrorKindTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return environment.ErrorKindTimeout
		}
		return environment.ErrorKindNetwork
	}

	var renderErr *tools.RenderError
	if errors.As(err, &renderErr) {
		return environment.ErrorKindTemplateRendering
	}

	var infraErr *tools.InfraError
	if errors.As(err, &infraErr) {
		return environment.ErrorKindInfrastructure
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return environment.ErrorKindCommandExecution
	}

	if stores.IsConflict(err) {
		return environment.ErrorKindStateConflict
	}

	return environment.ErrorKindInternal
}

// NewFailureContext assembles the failure context for one failed
// attempt. The error kind is classified from err and the summary is
// err's message; the trace file path is filled in by RecordFailure.
func NewFailureContext[S environment.Step](step S, err error, startedAt time.Time) environment.FailureContext[S] {
	now := time.Now().UTC()
	return environment.FailureContext[S]{
		FailedStep:         step,
		ErrorKind:          ClassifyError(err),
		ErrorSummary:       err.Error(),
		ExecutionStartedAt: startedAt,
		FailedAt:           now,
		ExecutionDuration:  now.Sub(startedAt),
		TraceID:            environment.NewTraceID(),
	}
}

// RecordFailure builds the failure context for a failed command and
// writes its trace file, returning the context with TraceFilePath set.
// A trace write failure is logged and leaves the path empty; the
// failure context is always returned so the phase transition can
// proceed.
func RecordFailure[S environment.Step](w *Writer, command string, envName string, step S, err error, startedAt time.Time) environment.FailureContext[S] {
	fc := NewFailureContext(step, err, startedAt)

	path, wErr := WriteTrace(w, command, fc, err)
	if wErr != nil {
		if tel := telemetry.Default(); tel != nil {
			tel.Logger.NewComponentLogger("trace").
				WithEnvironment(envName).
				WithError(wErr).
				Warn("failed to write failure trace file")
		}
		return fc
	}

	fc.TraceFilePath = path
	if tel := telemetry.Default(); tel != nil {
		tel.Metrics.RecordFailure(string(fc.ErrorKind))
		_ = tel.Events.PublishTraceWritten(envName, fc.TraceID.String(), path)
	}
	return fc
}
