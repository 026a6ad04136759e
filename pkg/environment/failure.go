package environment

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TraceID uniquely identifies one failed attempt. A fresh id is
// generated per attempt so retries never share diagnostics.
type TraceID string

// NewTraceID returns a random trace identifier.
func NewTraceID() TraceID {
	return TraceID(uuid.NewString())
}

// String returns the id as a plain string.
func (id TraceID) String() string {
	return string(id)
}

// ErrorKind classifies a failure for programmatic handling. The set is
// closed; commands map raw errors onto it via the trace package.
type ErrorKind string

const (
	// ErrorKindTemplateRendering covers template generation failures.
	ErrorKindTemplateRendering ErrorKind = "template_rendering"

	// ErrorKindInfrastructure covers provisioning engine failures.
	ErrorKindInfrastructure ErrorKind = "infrastructure_operation"

	// ErrorKindCommandExecution covers external command failures.
	ErrorKindCommandExecution ErrorKind = "command_execution"

	// ErrorKindNetwork covers connectivity failures.
	ErrorKindNetwork ErrorKind = "network_connectivity"

	// ErrorKindTimeout covers operations that ran out of time.
	ErrorKindTimeout ErrorKind = "timeout"

	// ErrorKindStateConflict covers lock contention on persisted state.
	ErrorKindStateConflict ErrorKind = "state_conflict"

	// ErrorKindInternal is the fallback for unclassified failures.
	ErrorKindInternal ErrorKind = "internal"
)

// Step constrains the per-command step enumerations. Each command
// declares its own closed step type below.
type Step interface {
	~string
}

// ProvisionStep names the steps of the provision workflow.
type ProvisionStep string

const (
	ProvisionStepRenderTemplates ProvisionStep = "render_templates"
	ProvisionStepInfraInit       ProvisionStep = "infra_init"
	ProvisionStepInfraValidate   ProvisionStep = "infra_validate"
	ProvisionStepInfraPlan       ProvisionStep = "infra_plan"
	ProvisionStepInfraApply      ProvisionStep = "infra_apply"
	ProvisionStepInstanceInfo    ProvisionStep = "instance_info"
	ProvisionStepWaitSSH         ProvisionStep = "wait_ssh"
	ProvisionStepWaitCloudInit   ProvisionStep = "wait_cloud_init"
)

var provisionSteps = []ProvisionStep{
	ProvisionStepRenderTemplates,
	ProvisionStepInfraInit,
	ProvisionStepInfraValidate,
	ProvisionStepInfraPlan,
	ProvisionStepInfraApply,
	ProvisionStepInstanceInfo,
	ProvisionStepWaitSSH,
	ProvisionStepWaitCloudInit,
}

// ParseProvisionStep validates raw against the closed provision step set.
func ParseProvisionStep(raw string) (ProvisionStep, error) {
	for _, s := range provisionSteps {
		if ProvisionStep(raw) == s {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown provision step %q", raw)
}

// ConfigureStep names the steps of the configure workflow.
type ConfigureStep string

const (
	ConfigureStepRenderPlaybooks ConfigureStep = "render_playbooks"
	ConfigureStepInstallRuntime  ConfigureStep = "install_runtime"
	ConfigureStepInstallCompose  ConfigureStep = "install_compose"
	ConfigureStepApplyPlaybooks  ConfigureStep = "apply_playbooks"
)

var configureSteps = []ConfigureStep{
	ConfigureStepRenderPlaybooks,
	ConfigureStepInstallRuntime,
	ConfigureStepInstallCompose,
	ConfigureStepApplyPlaybooks,
}

// ParseConfigureStep validates raw against the closed configure step set.
func ParseConfigureStep(raw string) (ConfigureStep, error) {
	for _, s := range configureSteps {
		if ConfigureStep(raw) == s {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown configure step %q", raw)
}

// ReleaseStep names the steps of the release workflow.
type ReleaseStep string

const (
	ReleaseStepBuildArtifacts  ReleaseStep = "build_artifacts"
	ReleaseStepUploadArtifacts ReleaseStep = "upload_artifacts"
	ReleaseStepActivate        ReleaseStep = "activate"
)

var releaseSteps = []ReleaseStep{
	ReleaseStepBuildArtifacts,
	ReleaseStepUploadArtifacts,
	ReleaseStepActivate,
}

// ParseReleaseStep validates raw against the closed release step set.
func ParseReleaseStep(raw string) (ReleaseStep, error) {
	for _, s := range releaseSteps {
		if ReleaseStep(raw) == s {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown release step %q", raw)
}

// RunStep names the steps of the run workflow.
type RunStep string

const (
	RunStepStartServices RunStep = "start_services"
	RunStepHealthCheck   RunStep = "health_check"
)

var runSteps = []RunStep{
	RunStepStartServices,
	RunStepHealthCheck,
}

// ParseRunStep validates raw against the closed run step set.
func ParseRunStep(raw string) (RunStep, error) {
	for _, s := range runSteps {
		if RunStep(raw) == s {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown run step %q", raw)
}

// FailureContext records everything known about one failed attempt. S
// is the command-specific step enumeration, so a provision failure can
// only name provision steps.
//
// The same shape is serialized for every failed phase; the step is
// re-validated against the command's closed set when a typed value is
// reconstructed from the type-erased form.
type FailureContext[S Step] struct {
	// FailedStep is the step that failed.
	FailedStep S `json:"failed_step"`

	// ErrorKind is the failure category.
	ErrorKind ErrorKind `json:"error_kind"`

	// ErrorSummary is a short human-readable description.
	ErrorSummary string `json:"error_summary"`

	// ExecutionStartedAt is when the command started.
	ExecutionStartedAt time.Time `json:"execution_started_at"`

	// FailedAt is when the failure occurred.
	FailedAt time.Time `json:"failed_at"`

	// ExecutionDuration is how long the command ran before failing.
	ExecutionDuration time.Duration `json:"execution_duration"`

	// TraceID identifies this attempt.
	TraceID TraceID `json:"trace_id"`

	// TraceFilePath is the trace file written for this attempt, empty
	// if trace writing itself failed.
	TraceFilePath string `json:"trace_file_path,omitempty"`
}

// Convenience aliases for the four command-specific failure contexts.
type (
	ProvisionFailureContext = FailureContext[ProvisionStep]
	ConfigureFailureContext = FailureContext[ConfigureStep]
	ReleaseFailureContext   = FailureContext[ReleaseStep]
	RunFailureContext       = FailureContext[RunStep]
)

// eraseFailure converts a typed failure context to the string-stepped
// form stored inside AnyState.
func eraseFailure[S Step](fc FailureContext[S]) FailureContext[string] {
	return FailureContext[string]{
		FailedStep:         string(fc.FailedStep),
		ErrorKind:          fc.ErrorKind,
		ErrorSummary:       fc.ErrorSummary,
		ExecutionStartedAt: fc.ExecutionStartedAt,
		FailedAt:           fc.FailedAt,
		ExecutionDuration:  fc.ExecutionDuration,
		TraceID:            fc.TraceID,
		TraceFilePath:      fc.TraceFilePath,
	}
}

// restoreFailure converts the erased form back to a typed context,
// validating the step against the command's closed set via parse.
func restoreFailure[S Step](fc FailureContext[string], parse func(string) (S, error)) (FailureContext[S], error) {
	step, err := parse(fc.FailedStep)
	if err != nil {
		return FailureContext[S]{}, err
	}
	return FailureContext[S]{
		FailedStep:         step,
		ErrorKind:          fc.ErrorKind,
		ErrorSummary:       fc.ErrorSummary,
		ExecutionStartedAt: fc.ExecutionStartedAt,
		FailedAt:           fc.FailedAt,
		ExecutionDuration:  fc.ExecutionDuration,
		TraceID:            fc.TraceID,
		TraceFilePath:      fc.TraceFilePath,
	}, nil
}
