package environment

import (
	"net/netip"
	"path/filepath"
	"testing"
	"time"
)

func testCreated(t *testing.T) Created {
	t.Helper()
	name, err := NewName("demo")
	if err != nil {
		t.Fatalf("NewName: %v", err)
	}
	creds := NewSSHCredentials("/keys/id_ed25519", "/keys/id_ed25519.pub", "dev")
	return New(name, creds, 22, "/work", time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
}

func testFailure[S Step](step S) FailureContext[S] {
	started := time.Date(2026, 1, 2, 3, 10, 0, 0, time.UTC)
	return FailureContext[S]{
		FailedStep:         step,
		ErrorKind:          ErrorKindCommandExecution,
		ErrorSummary:       "exit status 1",
		ExecutionStartedAt: started,
		FailedAt:           started.Add(3 * time.Second),
		ExecutionDuration:  3 * time.Second,
		TraceID:            NewTraceID(),
	}
}

func TestNewDerivesContext(t *testing.T) {
	created := testCreated(t)
	ctx := created.Context()

	if got := ctx.InstanceName(); got != "envforge-vm-demo" {
		t.Errorf("instance name = %q", got)
	}
	if got := ctx.ProfileName(); got != "envforge-profile-demo" {
		t.Errorf("profile name = %q", got)
	}
	if got := ctx.InternalConfig.DataDir; got != filepath.Join("/work", "data", "demo") {
		t.Errorf("data dir = %q", got)
	}
	if got := ctx.InternalConfig.BuildDir; got != filepath.Join("/work", "build", "demo") {
		t.Errorf("build dir = %q", got)
	}
	if got := ctx.InternalConfig.StateFilePath(); got != filepath.Join("/work", "data", "demo", "state.json") {
		t.Errorf("state file = %q", got)
	}
	if got := ctx.InternalConfig.TracesDir(); got != filepath.Join("/work", "data", "demo", "traces") {
		t.Errorf("traces dir = %q", got)
	}
	if _, ok := ctx.InstanceIP(); ok {
		t.Error("fresh environment should have no instance IP")
	}
	if err := ctx.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestHappyPathTransitions(t *testing.T) {
	created := testCreated(t)
	ip := netip.MustParseAddr("10.0.0.42")

	provisioning := created.StartProvisioning()
	provisioned := provisioning.Provisioned(ip)

	got, ok := provisioned.Context().InstanceIP()
	if !ok || got != ip {
		t.Fatalf("instance IP = %v, %v; want %v, true", got, ok, ip)
	}

	running := provisioned.StartConfiguring().Configured().StartReleasing().Released().Run()

	if running.IntoAny().Phase() != PhaseRunning {
		t.Errorf("final phase = %q", running.IntoAny().Phase())
	}
	// The shared context must survive the whole chain untouched except
	// for the recorded IP.
	ctx := running.Context()
	if ctx.Name() != created.Context().Name() {
		t.Errorf("name changed across transitions")
	}
	if ctx.UserInputs != created.Context().UserInputs {
		t.Errorf("user inputs changed across transitions")
	}
	if ctx.InternalConfig != created.Context().InternalConfig {
		t.Errorf("internal config changed across transitions")
	}

	destroyed := running.Destroy()
	if destroyed.IntoAny().Phase() != PhaseDestroyed {
		t.Errorf("destroy phase = %q", destroyed.IntoAny().Phase())
	}
}

func TestProvisionFailureAndRetry(t *testing.T) {
	provisioning := testCreated(t).StartProvisioning()
	fc := testFailure(ProvisionStepInfraApply)

	failed := provisioning.Failed(fc)
	if failed.Failure().FailedStep != ProvisionStepInfraApply {
		t.Errorf("failed step = %q", failed.Failure().FailedStep)
	}

	state := failed.IntoAny()
	if !state.IsFailure() {
		t.Error("provision_failed should report failure")
	}
	if !state.IsTerminal() {
		t.Error("failure phases are terminal until retried")
	}
	if got := state.ErrorSummary(); got != "exit status 1" {
		t.Errorf("error summary = %q", got)
	}

	retried := failed.Retry()
	again := retried.IntoAny()
	if again.Phase() != PhaseProvisioning {
		t.Errorf("retry phase = %q", again.Phase())
	}
	if _, ok := again.Failure(); ok {
		t.Error("retry must drop the failure context")
	}
}

func TestRunFailedRetryReturnsToReleased(t *testing.T) {
	released := testCreated(t).
		StartProvisioning().
		Provisioned(netip.MustParseAddr("10.0.0.42")).
		StartConfiguring().
		Configured().
		StartReleasing().
		Released()

	failed := released.RunFailed(testFailure(RunStepHealthCheck))
	back := failed.Retry()
	if back.IntoAny().Phase() != PhaseReleased {
		t.Errorf("retry phase = %q, want released", back.IntoAny().Phase())
	}

	// The IP recorded at provision time survives the failure round trip.
	if _, ok := back.Context().InstanceIP(); !ok {
		t.Error("instance IP lost through run failure and retry")
	}
}

func TestEveryPhaseCanBeDestroyed(t *testing.T) {
	created := testCreated(t)
	ip := netip.MustParseAddr("10.0.0.42")

	states := []AnyState{
		created.Destroy().IntoAny(),
		created.StartProvisioning().Destroy().IntoAny(),
		created.StartProvisioning().Provisioned(ip).Destroy().IntoAny(),
		created.StartProvisioning().Provisioned(ip).StartConfiguring().Destroy().IntoAny(),
		created.StartProvisioning().Failed(testFailure(ProvisionStepInfraInit)).Destroy().IntoAny(),
	}
	for i, state := range states {
		if state.Phase() != PhaseDestroyed {
			t.Errorf("case %d: phase = %q, want destroyed", i, state.Phase())
		}
	}
}
