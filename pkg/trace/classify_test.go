package trace

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/envforge/envforge/pkg/environment"
	"github.com/envforge/envforge/pkg/stores"
	"github.com/envforge/envforge/pkg/tools"
)

type fakeNetError struct{ timeout bool }

func (e *fakeNetError) Error() string   { return "net failure" }
func (e *fakeNetError) Timeout() bool   { return e.timeout }
func (e *fakeNetError) Temporary() bool { return false }

func exitError(t *testing.T) error {
	t.Helper()
	err := exec.Command("false").Run()
	if err == nil {
		t.Fatal("expected command to fail")
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected *exec.ExitError, got %v", err)
	}
	return err
}

func TestClassifyError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want environment.ErrorKind
	}{
		{"nil", nil, environment.ErrorKindInternal},
		{"deadline", context.DeadlineExceeded, environment.ErrorKindTimeout},
		{"wrapped deadline", fmt.Errorf("waiting for ssh: %w", context.DeadlineExceeded), environment.ErrorKindTimeout},
		{"net timeout", &fakeNetError{timeout: true}, environment.ErrorKindTimeout},
		{"net failure", &fakeNetError{}, environment.ErrorKindNetwork},
		{"dial failure", &net.OpError{Op: "dial", Err: fmt.Errorf("refused")}, environment.ErrorKindNetwork},
		{"render failure", &tools.RenderError{Path: "tofu/main.tf.tmpl", Err: fmt.Errorf("bad template")}, environment.ErrorKindTemplateRendering},
		{"infra failure", &tools.InfraError{Op: "tofu apply", Err: fmt.Errorf("exit status 1")}, environment.ErrorKindInfrastructure},
		{"exit error", exitError(t), environment.ErrorKindCommandExecution},
		{"conflict", stores.NewConflictError("locked", os.ErrExist), environment.ErrorKindStateConflict},
		{"plain", fmt.Errorf("boom"), environment.ErrorKindInternal},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ClassifyError(tc.err); got != tc.want {
				t.Errorf("ClassifyError(%v) = %q, want %q", tc.err, got, tc.want)
			}
		})
	}
}

func TestRecordFailureWritesTrace(t *testing.T) {
	w := NewWriter(t.TempDir())
	started := time.Now().UTC().Add(-2 * time.Second)

	err := fmt.Errorf("install runtime: %w", fmt.Errorf("apt update failed"))
	fc := RecordFailure(w, "configure", "demo", environment.ConfigureStepInstallRuntime, err, started)

	if fc.FailedStep != environment.ConfigureStepInstallRuntime {
		t.Errorf("failed step = %q", fc.FailedStep)
	}
	if fc.ErrorSummary != err.Error() {
		t.Errorf("error summary = %q", fc.ErrorSummary)
	}
	if fc.TraceID == "" {
		t.Error("trace id not assigned")
	}
	if fc.ExecutionDuration <= 0 {
		t.Errorf("execution duration = %s", fc.ExecutionDuration)
	}
	if fc.TraceFilePath == "" {
		t.Fatal("trace file path not recorded")
	}
	if _, statErr := os.Stat(fc.TraceFilePath); statErr != nil {
		t.Errorf("trace file missing: %v", statErr)
	}
}

func TestRecordFailureSurvivesUnwritableDir(t *testing.T) {
	// A path under an existing file cannot be created as a directory.
	blocker := t.TempDir() + "/blocker"
	if err := os.WriteFile(blocker, []byte("x"), 0644); err != nil {
		t.Fatalf("write blocker: %v", err)
	}
	w := NewWriter(blocker + "/traces")

	fc := RecordFailure(w, "run", "demo", environment.RunStepStartServices, fmt.Errorf("boom"), time.Now().UTC())
	if fc.TraceFilePath != "" {
		t.Errorf("trace file path = %q, want empty on write failure", fc.TraceFilePath)
	}
	if fc.ErrorSummary != "boom" {
		t.Errorf("error summary = %q", fc.ErrorSummary)
	}
}
