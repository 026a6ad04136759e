package lifecycle

import (
	"context"
	"fmt"
	"net/netip"

	"github.com/envforge/envforge/pkg/environment"
)

// StepError reports which step of a workflow failed. S is the
// command-specific step enumeration.
type StepError[S environment.Step] struct {
	// Step is the step that failed.
	Step S

	// Err is the underlying failure.
	Err error
}

// Error implements the error interface.
func (e *StepError[S]) Error() string {
	return fmt.Sprintf("step %s failed: %v", string(e.Step), e.Err)
}

// Unwrap returns the underlying error.
func (e *StepError[S]) Unwrap() error {
	return e.Err
}

// failStep wraps err with its failing step.
func failStep[S environment.Step](step S, err error) *StepError[S] {
	return &StepError[S]{Step: step, Err: err}
}

// Provisioner creates the environment's infrastructure. On failure the
// returned error is a *StepError[environment.ProvisionStep].
type Provisioner interface {
	Provision(ctx context.Context, env environment.Context) (netip.Addr, error)
}

// Configurer installs the software stack on a provisioned instance. On
// failure the returned error is a *StepError[environment.ConfigureStep].
type Configurer interface {
	Configure(ctx context.Context, env environment.Context) error
}

// Releaser builds and uploads the application artifacts. On failure the
// returned error is a *StepError[environment.ReleaseStep].
type Releaser interface {
	Release(ctx context.Context, env environment.Context) error
}

// Runner starts the application and verifies it is healthy. On failure
// the returned error is a *StepError[environment.RunStep].
type Runner interface {
	Run(ctx context.Context, env environment.Context) error
}

// Destroyer tears down the environment's infrastructure.
type Destroyer interface {
	DestroyInfrastructure(ctx context.Context, env environment.Context) error
}
