package environment

import (
	"net/netip"
	"time"

	"github.com/envforge/envforge/pkg/telemetry"
)

// Each lifecycle phase is a distinct type holding the shared context
// (failure phases additionally hold their failure context). Transition
// methods take the receiver by value and return the next phase; the
// source value is consumed conceptually and must not be used again.
// There is no generic "set phase" operation.

// recordTransition emits the single observability event every
// transition produces. It performs no file or network I/O.
func recordTransition(ctx Context, from, to Phase) {
	telemetry.RecordTransition(ctx.Name().String(), ctx.InstanceName(), from.String(), to.String())
}

// Created is a freshly declared environment with no infrastructure yet.
type Created struct {
	ctx Context
}

// New declares a new environment in the Created phase.
func New(name Name, ssh SSHCredentials, sshPort int, workDir string, createdAt time.Time) Created {
	return Created{ctx: NewContext(name, ssh, sshPort, workDir, createdAt)}
}

// Context returns the shared environment context.
func (e Created) Context() Context { return e.ctx }

// StartProvisioning begins infrastructure provisioning.
func (e Created) StartProvisioning() Provisioning {
	recordTransition(e.ctx, PhaseCreated, PhaseProvisioning)
	return Provisioning{ctx: e.ctx}
}

// Destroy tears the environment down.
func (e Created) Destroy() Destroyed {
	recordTransition(e.ctx, PhaseCreated, PhaseDestroyed)
	return Destroyed{ctx: e.ctx}
}

// IntoAny wraps the environment in the type-erased form.
func (e Created) IntoAny() AnyState { return AnyState{phase: PhaseCreated, ctx: e.ctx} }

// Provisioning marks infrastructure provisioning in progress.
type Provisioning struct {
	ctx Context
}

// Context returns the shared environment context.
func (e Provisioning) Context() Context { return e.ctx }

// Provisioned records the provisioned instance address and completes
// provisioning. This is the only place the instance IP is written.
func (e Provisioning) Provisioned(ip netip.Addr) Provisioned {
	recordTransition(e.ctx, PhaseProvisioning, PhaseProvisioned)
	return Provisioned{ctx: e.ctx.withInstanceIP(ip)}
}

// Failed records a provisioning failure.
func (e Provisioning) Failed(fc ProvisionFailureContext) ProvisionFailed {
	recordTransition(e.ctx, PhaseProvisioning, PhaseProvisionFailed)
	return ProvisionFailed{ctx: e.ctx, failure: fc}
}

// Destroy tears the environment down.
func (e Provisioning) Destroy() Destroyed {
	recordTransition(e.ctx, PhaseProvisioning, PhaseDestroyed)
	return Destroyed{ctx: e.ctx}
}

// IntoAny wraps the environment in the type-erased form.
func (e Provisioning) IntoAny() AnyState { return AnyState{phase: PhaseProvisioning, ctx: e.ctx} }

// Provisioned means the instance exists and is reachable.
type Provisioned struct {
	ctx Context
}

// Context returns the shared environment context.
func (e Provisioned) Context() Context { return e.ctx }

// StartConfiguring begins system configuration.
func (e Provisioned) StartConfiguring() Configuring {
	recordTransition(e.ctx, PhaseProvisioned, PhaseConfiguring)
	return Configuring{ctx: e.ctx}
}

// Destroy tears the environment down.
func (e Provisioned) Destroy() Destroyed {
	recordTransition(e.ctx, PhaseProvisioned, PhaseDestroyed)
	return Destroyed{ctx: e.ctx}
}

// IntoAny wraps the environment in the type-erased form.
func (e Provisioned) IntoAny() AnyState { return AnyState{phase: PhaseProvisioned, ctx: e.ctx} }

// Configuring marks system configuration in progress.
type Configuring struct {
	ctx Context
}

// Context returns the shared environment context.
func (e Configuring) Context() Context { return e.ctx }

// Configured completes configuration.
func (e Configuring) Configured() Configured {
	recordTransition(e.ctx, PhaseConfiguring, PhaseConfigured)
	return Configured{ctx: e.ctx}
}

// Failed records a configuration failure.
func (e Configuring) Failed(fc ConfigureFailureContext) ConfigureFailed {
	recordTransition(e.ctx, PhaseConfiguring, PhaseConfigureFailed)
	return ConfigureFailed{ctx: e.ctx, failure: fc}
}

// Destroy tears the environment down.
func (e Configuring) Destroy() Destroyed {
	recordTransition(e.ctx, PhaseConfiguring, PhaseDestroyed)
	return Destroyed{ctx: e.ctx}
}

// IntoAny wraps the environment in the type-erased form.
func (e Configuring) IntoAny() AnyState { return AnyState{phase: PhaseConfiguring, ctx: e.ctx} }

// Configured means the instance software stack is in place.
type Configured struct {
	ctx Context
}

// Context returns the shared environment context.
func (e Configured) Context() Context { return e.ctx }

// StartReleasing begins the application release.
func (e Configured) StartReleasing() Releasing {
	recordTransition(e.ctx, PhaseConfigured, PhaseReleasing)
	return Releasing{ctx: e.ctx}
}

// Destroy tears the environment down.
func (e Configured) Destroy() Destroyed {
	recordTransition(e.ctx, PhaseConfigured, PhaseDestroyed)
	return Destroyed{ctx: e.ctx}
}

// IntoAny wraps the environment in the type-erased form.
func (e Configured) IntoAny() AnyState { return AnyState{phase: PhaseConfigured, ctx: e.ctx} }

// Releasing marks an application release in progress.
type Releasing struct {
	ctx Context
}

// Context returns the shared environment context.
func (e Releasing) Context() Context { return e.ctx }

// Released completes the release.
func (e Releasing) Released() Released {
	recordTransition(e.ctx, PhaseReleasing, PhaseReleased)
	return Released{ctx: e.ctx}
}

// Failed records a release failure.
func (e Releasing) Failed(fc ReleaseFailureContext) ReleaseFailed {
	recordTransition(e.ctx, PhaseReleasing, PhaseReleaseFailed)
	return ReleaseFailed{ctx: e.ctx, failure: fc}
}

// Destroy tears the environment down.
func (e Releasing) Destroy() Destroyed {
	recordTransition(e.ctx, PhaseReleasing, PhaseDestroyed)
	return Destroyed{ctx: e.ctx}
}

// IntoAny wraps the environment in the type-erased form.
func (e Releasing) IntoAny() AnyState { return AnyState{phase: PhaseReleasing, ctx: e.ctx} }

// Released means the application artifacts are in place, ready to run.
type Released struct {
	ctx Context
}

// Context returns the shared environment context.
func (e Released) Context() Context { return e.ctx }

// Run starts the application and completes the lifecycle's happy path.
func (e Released) Run() Running {
	recordTransition(e.ctx, PhaseReleased, PhaseRunning)
	return Running{ctx: e.ctx}
}

// RunFailed records a failed run attempt.
func (e Released) RunFailed(fc RunFailureContext) RunFailed {
	recordTransition(e.ctx, PhaseReleased, PhaseRunFailed)
	return RunFailed{ctx: e.ctx, failure: fc}
}

// Destroy tears the environment down.
func (e Released) Destroy() Destroyed {
	recordTransition(e.ctx, PhaseReleased, PhaseDestroyed)
	return Destroyed{ctx: e.ctx}
}

// IntoAny wraps the environment in the type-erased form.
func (e Released) IntoAny() AnyState { return AnyState{phase: PhaseReleased, ctx: e.ctx} }

// Running is the operational phase of the environment.
type Running struct {
	ctx Context
}

// Context returns the shared environment context.
func (e Running) Context() Context { return e.ctx }

// Destroy tears the environment down.
func (e Running) Destroy() Destroyed {
	recordTransition(e.ctx, PhaseRunning, PhaseDestroyed)
	return Destroyed{ctx: e.ctx}
}

// IntoAny wraps the environment in the type-erased form.
func (e Running) IntoAny() AnyState { return AnyState{phase: PhaseRunning, ctx: e.ctx} }

// Destroyed is the terminal phase. No transitions leave it.
type Destroyed struct {
	ctx Context
}

// Context returns the shared environment context.
func (e Destroyed) Context() Context { return e.ctx }

// IntoAny wraps the environment in the type-erased form.
func (e Destroyed) IntoAny() AnyState { return AnyState{phase: PhaseDestroyed, ctx: e.ctx} }

// ProvisionFailed records a failed provisioning attempt.
type ProvisionFailed struct {
	ctx     Context
	failure ProvisionFailureContext
}

// Context returns the shared environment context.
func (e ProvisionFailed) Context() Context { return e.ctx }

// Failure returns the recorded failure context.
func (e ProvisionFailed) Failure() ProvisionFailureContext { return e.failure }

// Retry re-enters provisioning. The previous failure context is
// dropped; the persisted trace file remains.
func (e ProvisionFailed) Retry() Provisioning {
	recordTransition(e.ctx, PhaseProvisionFailed, PhaseProvisioning)
	return Provisioning{ctx: e.ctx}
}

// Destroy tears the environment down.
func (e ProvisionFailed) Destroy() Destroyed {
	recordTransition(e.ctx, PhaseProvisionFailed, PhaseDestroyed)
	return Destroyed{ctx: e.ctx}
}

// IntoAny wraps the environment in the type-erased form.
func (e ProvisionFailed) IntoAny() AnyState {
	fc := eraseFailure(e.failure)
	return AnyState{phase: PhaseProvisionFailed, ctx: e.ctx, failure: &fc}
}

// ConfigureFailed records a failed configuration attempt.
type ConfigureFailed struct {
	ctx     Context
	failure ConfigureFailureContext
}

// Context returns the shared environment context.
func (e ConfigureFailed) Context() Context { return e.ctx }

// Failure returns the recorded failure context.
func (e ConfigureFailed) Failure() ConfigureFailureContext { return e.failure }

// Retry re-enters configuration.
func (e ConfigureFailed) Retry() Configuring {
	recordTransition(e.ctx, PhaseConfigureFailed, PhaseConfiguring)
	return Configuring{ctx: e.ctx}
}

// Destroy tears the environment down.
func (e ConfigureFailed) Destroy() Destroyed {
	recordTransition(e.ctx, PhaseConfigureFailed, PhaseDestroyed)
	return Destroyed{ctx: e.ctx}
}

// IntoAny wraps the environment in the type-erased form.
func (e ConfigureFailed) IntoAny() AnyState {
	fc := eraseFailure(e.failure)
	return AnyState{phase: PhaseConfigureFailed, ctx: e.ctx, failure: &fc}
}

// ReleaseFailed records a failed release attempt.
type ReleaseFailed struct {
	ctx     Context
	failure ReleaseFailureContext
}

// Context returns the shared environment context.
func (e ReleaseFailed) Context() Context { return e.ctx }

// Failure returns the recorded failure context.
func (e ReleaseFailed) Failure() ReleaseFailureContext { return e.failure }

// Retry re-enters the release.
func (e ReleaseFailed) Retry() Releasing {
	recordTransition(e.ctx, PhaseReleaseFailed, PhaseReleasing)
	return Releasing{ctx: e.ctx}
}

// Destroy tears the environment down.
func (e ReleaseFailed) Destroy() Destroyed {
	recordTransition(e.ctx, PhaseReleaseFailed, PhaseDestroyed)
	return Destroyed{ctx: e.ctx}
}

// IntoAny wraps the environment in the type-erased form.
func (e ReleaseFailed) IntoAny() AnyState {
	fc := eraseFailure(e.failure)
	return AnyState{phase: PhaseReleaseFailed, ctx: e.ctx, failure: &fc}
}

// RunFailed records a failed run attempt.
type RunFailed struct {
	ctx     Context
	failure RunFailureContext
}

// Context returns the shared environment context.
func (e RunFailed) Context() Context { return e.ctx }

// Failure returns the recorded failure context.
func (e RunFailed) Failure() RunFailureContext { return e.failure }

// Retry returns to Released so the run can be attempted again.
func (e RunFailed) Retry() Released {
	recordTransition(e.ctx, PhaseRunFailed, PhaseReleased)
	return Released{ctx: e.ctx}
}

// Destroy tears the environment down.
func (e RunFailed) Destroy() Destroyed {
	recordTransition(e.ctx, PhaseRunFailed, PhaseDestroyed)
	return Destroyed{ctx: e.ctx}
}

// IntoAny wraps the environment in the type-erased form.
func (e RunFailed) IntoAny() AnyState {
	fc := eraseFailure(e.failure)
	return AnyState{phase: PhaseRunFailed, ctx: e.ctx, failure: &fc}
}
