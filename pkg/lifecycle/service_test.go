package lifecycle

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"net/netip"
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/envforge/envforge/pkg/config"
	"github.com/envforge/envforge/pkg/environment"
	"github.com/envforge/envforge/pkg/stores"
	"github.com/envforge/envforge/pkg/telemetry"
)

// fakeExecutor implements every workflow interface with configurable
// failures, so service tests never touch external tooling.
type fakeExecutor struct {
	ip netip.Addr

	provisionErr error
	configureErr error
	releaseErr   error
	runErr       error
	destroyErr   error

	calls []string
}

func (f *fakeExecutor) Provision(ctx context.Context, env environment.Context) (netip.Addr, error) {
	f.calls = append(f.calls, "provision")
	if f.provisionErr != nil {
		return netip.Addr{}, f.provisionErr
	}
	return f.ip, nil
}

func (f *fakeExecutor) Configure(ctx context.Context, env environment.Context) error {
	f.calls = append(f.calls, "configure")
	return f.configureErr
}

func (f *fakeExecutor) Release(ctx context.Context, env environment.Context) error {
	f.calls = append(f.calls, "release")
	return f.releaseErr
}

func (f *fakeExecutor) Run(ctx context.Context, env environment.Context) error {
	f.calls = append(f.calls, "run")
	return f.runErr
}

func (f *fakeExecutor) DestroyInfrastructure(ctx context.Context, env environment.Context) error {
	f.calls = append(f.calls, "destroy")
	return f.destroyErr
}

func writeTestKeys(t *testing.T, dir string) (string, string) {
	t.Helper()

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	block, err := ssh.MarshalPrivateKey(priv, "")
	if err != nil {
		t.Fatalf("marshal private key: %v", err)
	}
	privPath := filepath.Join(dir, "id_ed25519")
	if err := os.WriteFile(privPath, pem.EncodeToMemory(block), 0600); err != nil {
		t.Fatalf("write private key: %v", err)
	}

	sshPub, err := ssh.NewPublicKey(pub)
	if err != nil {
		t.Fatalf("new public key: %v", err)
	}
	pubPath := filepath.Join(dir, "id_ed25519.pub")
	if err := os.WriteFile(pubPath, ssh.MarshalAuthorizedKey(sshPub), 0644); err != nil {
		t.Fatalf("write public key: %v", err)
	}
	return privPath, pubPath
}

func testService(t *testing.T) (*Service, *fakeExecutor, *config.Config) {
	t.Helper()

	workDir := t.TempDir()
	privPath, pubPath := writeTestKeys(t, workDir)

	cfg := config.Default()
	cfg.WorkDir = workDir
	cfg.SSH.PrivateKeyPath = privPath
	cfg.SSH.PublicKeyPath = pubPath
	cfg.History.Enabled = false
	cfg.LockTimeout = time.Second

	logger, err := telemetry.NewLogger(telemetry.DefaultConfig().Logging)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}

	repo := stores.NewEnvironmentRepository(cfg.DataDir()).WithLockTimeout(cfg.LockTimeout)
	executor := &fakeExecutor{ip: netip.MustParseAddr("10.0.0.42")}
	svc := NewService(cfg, repo, nil, logger).
		WithExecutors(executor, executor, executor, executor, executor)
	return svc, executor, cfg
}

// traceCount counts the trace files recorded for an environment.
func traceCount(t *testing.T, cfg *config.Config, name string) int {
	t.Helper()
	entries, err := os.ReadDir(filepath.Join(cfg.DataDir(), name, "traces"))
	if err != nil {
		if os.IsNotExist(err) {
			return 0
		}
		t.Fatalf("read traces dir: %v", err)
	}
	return len(entries)
}

func TestHappyPathToRunning(t *testing.T) {
	svc, executor, cfg := testService(t)
	ctx := context.Background()

	state, err := svc.Create(ctx, "demo")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if state.Phase() != environment.PhaseCreated {
		t.Fatalf("phase after create = %q", state.Phase())
	}

	if state, err = svc.Provision(ctx, "demo"); err != nil {
		t.Fatalf("Provision: %v", err)
	}
	if state.Phase() != environment.PhaseProvisioned {
		t.Fatalf("phase after provision = %q", state.Phase())
	}
	if ip, ok := state.InstanceIP(); !ok || ip != executor.ip {
		t.Errorf("instance IP = %v, %v", ip, ok)
	}

	if state, err = svc.Configure(ctx, "demo"); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if state.Phase() != environment.PhaseConfigured {
		t.Fatalf("phase after configure = %q", state.Phase())
	}

	if state, err = svc.Release(ctx, "demo"); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if state.Phase() != environment.PhaseReleased {
		t.Fatalf("phase after release = %q", state.Phase())
	}

	if state, err = svc.Run(ctx, "demo"); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if state.Phase() != environment.PhaseRunning {
		t.Fatalf("phase after run = %q", state.Phase())
	}

	// The persisted state matches what the commands returned.
	persisted, err := svc.Status("demo")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if persisted.Phase() != environment.PhaseRunning {
		t.Errorf("persisted phase = %q", persisted.Phase())
	}

	statePath, err := svc.StatePath("demo")
	if err != nil {
		t.Fatalf("StatePath: %v", err)
	}
	if want := filepath.Join(cfg.DataDir(), "demo", "state.json"); statePath != want {
		t.Errorf("state path = %q, want %q", statePath, want)
	}

	// Successful transitions never produce trace files.
	if n := traceCount(t, cfg, "demo"); n != 0 {
		t.Errorf("trace files after happy path = %d, want 0", n)
	}
}

func TestCreateRejectsDuplicate(t *testing.T) {
	svc, _, _ := testService(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, "demo"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.Create(ctx, "demo"); err == nil {
		t.Fatal("duplicate create should fail")
	}
}

func TestCreateRejectsBadPrivateKey(t *testing.T) {
	svc, _, cfg := testService(t)
	cfg.SSH.PrivateKeyPath = filepath.Join(cfg.WorkDir, "no-such-key")

	if _, err := svc.Create(context.Background(), "demo"); err == nil {
		t.Fatal("create with missing private key should fail")
	}
}

func TestProvisionRequiresCreatedPhase(t *testing.T) {
	svc, _, _ := testService(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, "demo"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.Provision(ctx, "demo"); err != nil {
		t.Fatalf("Provision: %v", err)
	}

	// A second provision finds the environment already provisioned.
	_, err := svc.Provision(ctx, "demo")
	var phaseErr *environment.PhaseError
	if !errors.As(err, &phaseErr) {
		t.Fatalf("expected *environment.PhaseError, got %v", err)
	}
	if phaseErr.Actual != environment.PhaseProvisioned {
		t.Errorf("actual phase = %q", phaseErr.Actual)
	}
}

func TestCommandsRequireExistingEnvironment(t *testing.T) {
	svc, _, _ := testService(t)
	ctx := context.Background()

	if _, err := svc.Provision(ctx, "ghost"); !errors.Is(err, environment.ErrNotFound) {
		t.Errorf("Provision absent = %v, want ErrNotFound", err)
	}
	if _, err := svc.Status("ghost"); !errors.Is(err, environment.ErrNotFound) {
		t.Errorf("Status absent = %v, want ErrNotFound", err)
	}
}

func TestProvisionFailureAndRetry(t *testing.T) {
	svc, executor, cfg := testService(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, "demo"); err != nil {
		t.Fatalf("Create: %v", err)
	}

	executor.provisionErr = failStep(environment.ProvisionStepInfraApply, errors.New("hypervisor unreachable"))
	state, err := svc.Provision(ctx, "demo")
	if err == nil {
		t.Fatal("provision should have failed")
	}
	if state == nil || state.Phase() != environment.PhaseProvisionFailed {
		t.Fatalf("state after failed provision = %+v", state)
	}

	fc, ok := state.Failure()
	if !ok {
		t.Fatal("failure context missing")
	}
	if fc.FailedStep != string(environment.ProvisionStepInfraApply) {
		t.Errorf("failed step = %q", fc.FailedStep)
	}
	if fc.TraceFilePath == "" {
		t.Fatal("trace file path not recorded")
	}
	if _, statErr := os.Stat(fc.TraceFilePath); statErr != nil {
		t.Errorf("trace file missing: %v", statErr)
	}

	// Exactly one trace file per failed attempt.
	if n := traceCount(t, cfg, "demo"); n != 1 {
		t.Errorf("trace files after failure = %d, want 1", n)
	}

	// The failure phase is persisted, not just returned.
	persisted, err := svc.Status("demo")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if persisted.Phase() != environment.PhaseProvisionFailed {
		t.Errorf("persisted phase = %q", persisted.Phase())
	}
	if pfc, ok := persisted.Failure(); !ok || pfc != fc {
		t.Errorf("persisted failure context = %+v, want %+v", pfc, fc)
	}

	// Retry succeeds once the underlying problem is gone.
	executor.provisionErr = nil
	state, err = svc.Provision(ctx, "demo")
	if err != nil {
		t.Fatalf("retry Provision: %v", err)
	}
	if state.Phase() != environment.PhaseProvisioned {
		t.Errorf("phase after retry = %q", state.Phase())
	}
	if _, ok := state.Failure(); ok {
		t.Error("failure context survived the retry")
	}
	if n := traceCount(t, cfg, "demo"); n != 1 {
		t.Errorf("trace files after successful retry = %d, want 1", n)
	}
}

func TestFailureWithoutStepStaysLoadable(t *testing.T) {
	svc, executor, _ := testService(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, "demo"); err != nil {
		t.Fatalf("Create: %v", err)
	}

	// An executor error with no step attached must still persist a step
	// from the provision set, or the state file can never be read back.
	executor.provisionErr = errors.New("hypervisor unreachable")
	if _, err := svc.Provision(ctx, "demo"); err == nil {
		t.Fatal("provision should have failed")
	}

	persisted, err := svc.Status("demo")
	if err != nil {
		t.Fatalf("Status after step-less failure: %v", err)
	}
	if persisted.Phase() != environment.PhaseProvisionFailed {
		t.Errorf("persisted phase = %q", persisted.Phase())
	}
	fc, ok := persisted.Failure()
	if !ok {
		t.Fatal("failure context missing")
	}
	if _, err := environment.ParseProvisionStep(fc.FailedStep); err != nil {
		t.Errorf("persisted step %q is outside the provision set: %v", fc.FailedStep, err)
	}

	executor.provisionErr = nil
	state, err := svc.Provision(ctx, "demo")
	if err != nil {
		t.Fatalf("retry Provision: %v", err)
	}
	if state.Phase() != environment.PhaseProvisioned {
		t.Errorf("phase after retry = %q", state.Phase())
	}
}

func TestRunFailureAndRetry(t *testing.T) {
	svc, executor, _ := testService(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, "demo"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.Provision(ctx, "demo"); err != nil {
		t.Fatalf("Provision: %v", err)
	}
	if _, err := svc.Configure(ctx, "demo"); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if _, err := svc.Release(ctx, "demo"); err != nil {
		t.Fatalf("Release: %v", err)
	}

	executor.runErr = failStep(environment.RunStepHealthCheck, errors.New("no services running"))
	state, err := svc.Run(ctx, "demo")
	if err == nil {
		t.Fatal("run should have failed")
	}
	if state.Phase() != environment.PhaseRunFailed {
		t.Fatalf("phase after failed run = %q", state.Phase())
	}

	executor.runErr = nil
	state, err = svc.Run(ctx, "demo")
	if err != nil {
		t.Fatalf("retry Run: %v", err)
	}
	if state.Phase() != environment.PhaseRunning {
		t.Errorf("phase after retry = %q", state.Phase())
	}
}

func TestDestroyAndPurge(t *testing.T) {
	svc, executor, _ := testService(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, "demo"); err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Purging a live environment is refused.
	if err := svc.Purge(ctx, "demo"); err == nil {
		t.Fatal("purge before destroy should fail")
	}

	state, err := svc.Destroy(ctx, "demo")
	if err != nil {
		t.Fatalf("Destroy: %v", err)
	}
	if state.Phase() != environment.PhaseDestroyed {
		t.Fatalf("phase after destroy = %q", state.Phase())
	}
	if len(executor.calls) == 0 || executor.calls[len(executor.calls)-1] != "destroy" {
		t.Errorf("executor calls = %v", executor.calls)
	}

	// The state file survives destroy for inspection.
	persisted, err := svc.Status("demo")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if persisted.Phase() != environment.PhaseDestroyed {
		t.Errorf("persisted phase = %q", persisted.Phase())
	}

	if err := svc.Purge(ctx, "demo"); err != nil {
		t.Fatalf("Purge: %v", err)
	}
	if _, err := svc.Status("demo"); !errors.Is(err, environment.ErrNotFound) {
		t.Errorf("Status after purge = %v, want ErrNotFound", err)
	}
}

func TestDestroyKeepsErrorWhenInfraFails(t *testing.T) {
	svc, executor, _ := testService(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, "demo"); err != nil {
		t.Fatalf("Create: %v", err)
	}

	executor.destroyErr = errors.New("hypervisor busy")
	if _, err := svc.Destroy(ctx, "demo"); err == nil {
		t.Fatal("destroy should propagate the infrastructure error")
	}

	// The environment stays in its previous phase.
	state, err := svc.Status("demo")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if state.Phase() != environment.PhaseCreated {
		t.Errorf("phase after failed destroy = %q", state.Phase())
	}
}

func TestListReturnsAllEnvironments(t *testing.T) {
	svc, _, _ := testService(t)
	ctx := context.Background()

	for _, name := range []string{"alpha", "beta"} {
		if _, err := svc.Create(ctx, name); err != nil {
			t.Fatalf("Create %s: %v", name, err)
		}
	}

	states, err := svc.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(states) != 2 {
		t.Fatalf("List returned %d states, want 2", len(states))
	}
}
