package environment

import (
	"encoding/json"
	"fmt"
	"net/netip"
	"time"
)

// AnyState is the type-erased form of an environment, used at
// persistence and listing boundaries where the phase is only known at
// runtime. It carries the phase tag, the shared context, and the
// failure context when the phase is a failure phase.
//
// AnyState is read-only: the only way to change an environment is to
// extract the typed phase, run a transition, and erase again.
type AnyState struct {
	phase   Phase
	ctx     Context
	failure *FailureContext[string]
}

// Phase returns the runtime phase tag.
func (a AnyState) Phase() Phase { return a.phase }

// Context returns the shared environment context.
func (a AnyState) Context() Context { return a.ctx }

// Name returns the environment name.
func (a AnyState) Name() Name { return a.ctx.Name() }

// InstanceName returns the generated instance name.
func (a AnyState) InstanceName() string { return a.ctx.InstanceName() }

// ProfileName returns the generated profile name.
func (a AnyState) ProfileName() string { return a.ctx.ProfileName() }

// SSHCredentials returns the SSH credentials.
func (a AnyState) SSHCredentials() SSHCredentials { return a.ctx.SSHCredentials() }

// SSHPort returns the SSH port.
func (a AnyState) SSHPort() int { return a.ctx.SSHPort() }

// CreatedAt returns the creation timestamp.
func (a AnyState) CreatedAt() time.Time { return a.ctx.CreatedAt }

// InstanceIP returns the provisioned instance address, or false if the
// environment has not been provisioned yet.
func (a AnyState) InstanceIP() (netip.Addr, bool) { return a.ctx.InstanceIP() }

// IsFailure reports whether the environment is in a failure phase.
func (a AnyState) IsFailure() bool { return a.phase.IsFailure() }

// IsTerminal reports whether the environment is in a terminal phase.
func (a AnyState) IsTerminal() bool { return a.phase.IsTerminal() }

// ErrorSummary returns the failure summary, or empty when the
// environment is not in a failure phase.
func (a AnyState) ErrorSummary() string {
	if a.failure == nil {
		return ""
	}
	return a.failure.ErrorSummary
}

// Failure returns the erased failure context, or false when the
// environment is not in a failure phase.
func (a AnyState) Failure() (FailureContext[string], bool) {
	if a.failure == nil {
		return FailureContext[string]{}, false
	}
	return *a.failure, true
}

// Destroy tears the environment down regardless of its current phase.
// Destroying an already destroyed environment is an error.
func (a AnyState) Destroy() (Destroyed, error) {
	if a.phase == PhaseDestroyed {
		return Destroyed{}, fmt.Errorf("environment %q is already destroyed", a.Name())
	}
	recordTransition(a.ctx, a.phase, PhaseDestroyed)
	return Destroyed{ctx: a.ctx}, nil
}

// ToCreated extracts the typed Created phase. A *PhaseError is returned
// when the runtime phase differs.
func (a AnyState) ToCreated() (Created, error) {
	if a.phase != PhaseCreated {
		return Created{}, &PhaseError{Expected: PhaseCreated, Actual: a.phase}
	}
	return Created{ctx: a.ctx}, nil
}

// ToProvisioning extracts the typed Provisioning phase.
func (a AnyState) ToProvisioning() (Provisioning, error) {
	if a.phase != PhaseProvisioning {
		return Provisioning{}, &PhaseError{Expected: PhaseProvisioning, Actual: a.phase}
	}
	return Provisioning{ctx: a.ctx}, nil
}

// ToProvisioned extracts the typed Provisioned phase.
func (a AnyState) ToProvisioned() (Provisioned, error) {
	if a.phase != PhaseProvisioned {
		return Provisioned{}, &PhaseError{Expected: PhaseProvisioned, Actual: a.phase}
	}
	return Provisioned{ctx: a.ctx}, nil
}

// ToConfiguring extracts the typed Configuring phase.
func (a AnyState) ToConfiguring() (Configuring, error) {
	if a.phase != PhaseConfiguring {
		return Configuring{}, &PhaseError{Expected: PhaseConfiguring, Actual: a.phase}
	}
	return Configuring{ctx: a.ctx}, nil
}

// ToConfigured extracts the typed Configured phase.
func (a AnyState) ToConfigured() (Configured, error) {
	if a.phase != PhaseConfigured {
		return Configured{}, &PhaseError{Expected: PhaseConfigured, Actual: a.phase}
	}
	return Configured{ctx: a.ctx}, nil
}

// ToReleasing extracts the typed Releasing phase.
func (a AnyState) ToReleasing() (Releasing, error) {
	if a.phase != PhaseReleasing {
		return Releasing{}, &PhaseError{Expected: PhaseReleasing, Actual: a.phase}
	}
	return Releasing{ctx: a.ctx}, nil
}

// ToReleased extracts the typed Released phase.
func (a AnyState) ToReleased() (Released, error) {
	if a.phase != PhaseReleased {
		return Released{}, &PhaseError{Expected: PhaseReleased, Actual: a.phase}
	}
	return Released{ctx: a.ctx}, nil
}

// ToRunning extracts the typed Running phase.
func (a AnyState) ToRunning() (Running, error) {
	if a.phase != PhaseRunning {
		return Running{}, &PhaseError{Expected: PhaseRunning, Actual: a.phase}
	}
	return Running{ctx: a.ctx}, nil
}

// ToDestroyed extracts the typed Destroyed phase.
func (a AnyState) ToDestroyed() (Destroyed, error) {
	if a.phase != PhaseDestroyed {
		return Destroyed{}, &PhaseError{Expected: PhaseDestroyed, Actual: a.phase}
	}
	return Destroyed{ctx: a.ctx}, nil
}

// ToProvisionFailed extracts the typed ProvisionFailed phase. The
// stored step is re-validated against the provision step set.
func (a AnyState) ToProvisionFailed() (ProvisionFailed, error) {
	if a.phase != PhaseProvisionFailed {
		return ProvisionFailed{}, &PhaseError{Expected: PhaseProvisionFailed, Actual: a.phase}
	}
	fc, err := typedFailure(a, ParseProvisionStep)
	if err != nil {
		return ProvisionFailed{}, err
	}
	return ProvisionFailed{ctx: a.ctx, failure: fc}, nil
}

// ToConfigureFailed extracts the typed ConfigureFailed phase.
func (a AnyState) ToConfigureFailed() (ConfigureFailed, error) {
	if a.phase != PhaseConfigureFailed {
		return ConfigureFailed{}, &PhaseError{Expected: PhaseConfigureFailed, Actual: a.phase}
	}
	fc, err := typedFailure(a, ParseConfigureStep)
	if err != nil {
		return ConfigureFailed{}, err
	}
	return ConfigureFailed{ctx: a.ctx, failure: fc}, nil
}

// ToReleaseFailed extracts the typed ReleaseFailed phase.
func (a AnyState) ToReleaseFailed() (ReleaseFailed, error) {
	if a.phase != PhaseReleaseFailed {
		return ReleaseFailed{}, &PhaseError{Expected: PhaseReleaseFailed, Actual: a.phase}
	}
	fc, err := typedFailure(a, ParseReleaseStep)
	if err != nil {
		return ReleaseFailed{}, err
	}
	return ReleaseFailed{ctx: a.ctx, failure: fc}, nil
}

// ToRunFailed extracts the typed RunFailed phase.
func (a AnyState) ToRunFailed() (RunFailed, error) {
	if a.phase != PhaseRunFailed {
		return RunFailed{}, &PhaseError{Expected: PhaseRunFailed, Actual: a.phase}
	}
	fc, err := typedFailure(a, ParseRunStep)
	if err != nil {
		return RunFailed{}, err
	}
	return RunFailed{ctx: a.ctx, failure: fc}, nil
}

// typedFailure rebuilds the command-specific failure context from the
// erased form, re-validating the step against the command's step set.
func typedFailure[S Step](a AnyState, parse func(string) (S, error)) (FailureContext[S], error) {
	if a.failure == nil {
		return FailureContext[S]{}, fmt.Errorf("environment %q in phase %q has no failure context", a.Name(), a.phase)
	}
	return restoreFailure(*a.failure, parse)
}

// wireState is the serialized layout of an environment. The phase tag
// drives reconstruction; the failure context is present only for
// failure phases.
type wireState struct {
	Phase          string                  `json:"phase"`
	CreatedAt      time.Time               `json:"created_at"`
	UserInputs     UserInputs              `json:"user_inputs"`
	InternalConfig InternalConfig          `json:"internal_config"`
	RuntimeOutputs RuntimeOutputs          `json:"runtime_outputs"`
	FailureContext *FailureContext[string] `json:"failure_context,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (a AnyState) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireState{
		Phase:          a.phase.String(),
		CreatedAt:      a.ctx.CreatedAt,
		UserInputs:     a.ctx.UserInputs,
		InternalConfig: a.ctx.InternalConfig,
		RuntimeOutputs: a.ctx.RuntimeOutputs,
		FailureContext: a.failure,
	})
}

// UnmarshalJSON implements json.Unmarshaler. The phase tag is validated
// against the closed set, the context is checked for internal
// consistency, and failure phases must carry a failure context with a
// step valid for their command.
func (a *AnyState) UnmarshalJSON(data []byte) error {
	var w wireState
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	phase, err := ParsePhase(w.Phase)
	if err != nil {
		return err
	}
	ctx := Context{
		CreatedAt:      w.CreatedAt,
		UserInputs:     w.UserInputs,
		InternalConfig: w.InternalConfig,
		RuntimeOutputs: w.RuntimeOutputs,
	}
	if err := ctx.Validate(); err != nil {
		return fmt.Errorf("invalid environment context: %w", err)
	}
	if phase.IsFailure() {
		if w.FailureContext == nil {
			return fmt.Errorf("phase %q requires a failure context", phase)
		}
		if err := validateFailureStep(phase, w.FailureContext.FailedStep); err != nil {
			return err
		}
	} else if w.FailureContext != nil {
		return fmt.Errorf("phase %q must not carry a failure context", phase)
	}
	a.phase = phase
	a.ctx = ctx
	a.failure = w.FailureContext
	return nil
}

// validateFailureStep checks the erased step against the step set of
// the command that owns the failure phase.
func validateFailureStep(phase Phase, step string) error {
	var err error
	switch phase {
	case PhaseProvisionFailed:
		_, err = ParseProvisionStep(step)
	case PhaseConfigureFailed:
		_, err = ParseConfigureStep(step)
	case PhaseReleaseFailed:
		_, err = ParseReleaseStep(step)
	case PhaseRunFailed:
		_, err = ParseRunStep(step)
	}
	return err
}
