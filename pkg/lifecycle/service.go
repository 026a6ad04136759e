package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/envforge/envforge/pkg/config"
	"github.com/envforge/envforge/pkg/environment"
	"github.com/envforge/envforge/pkg/stores"
	"github.com/envforge/envforge/pkg/telemetry"
	"github.com/envforge/envforge/pkg/trace"
)

// Service orchestrates the environment lifecycle commands.
type Service struct {
	cfg     *config.Config
	repo    *stores.EnvironmentRepository
	history *stores.HistoryStore
	logger  *telemetry.Logger

	provisioner Provisioner
	configurer  Configurer
	releaser    Releaser
	runner      Runner
	destroyer   Destroyer
}

// NewService assembles the lifecycle service with the default tool
// executor. history may be nil to disable the audit log.
func NewService(cfg *config.Config, repo *stores.EnvironmentRepository, history *stores.HistoryStore, logger *telemetry.Logger) *Service {
	executor := NewToolExecutor()
	return &Service{
		cfg:         cfg,
		repo:        repo,
		history:     history,
		logger:      logger.NewComponentLogger("lifecycle"),
		provisioner: executor,
		configurer:  executor,
		releaser:    executor,
		runner:      executor,
		destroyer:   executor,
	}
}

// WithExecutors overrides the workflow executors. Used by tests and by
// callers embedding alternative tooling.
func (s *Service) WithExecutors(p Provisioner, c Configurer, r Releaser, run Runner, d Destroyer) *Service {
	s.provisioner = p
	s.configurer = c
	s.releaser = r
	s.runner = run
	s.destroyer = d
	return s
}

// Create declares a new environment and persists it in the created
// phase. The SSH private key is validated up front so a bad key path
// fails before any infrastructure exists.
func (s *Service) Create(ctx context.Context, rawName string) (*environment.AnyState, error) {
	name, err := environment.NewName(rawName)
	if err != nil {
		return nil, err
	}

	exists, err := s.repo.Exists(name)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("environment %q already exists", name)
	}

	creds := environment.NewSSHCredentials(
		s.cfg.SSH.PrivateKeyPath,
		s.cfg.SSH.PublicKeyPath,
		s.cfg.SSH.Username,
	)
	if err := creds.ValidatePrivateKey(); err != nil {
		return nil, err
	}

	created := environment.New(name, creds, s.cfg.SSH.Port, s.cfg.WorkDir, time.Now().UTC())
	state := created.IntoAny()

	if err := s.repo.Save(state); err != nil {
		return nil, err
	}

	s.logger.WithEnvironment(name.String()).Info("environment created")
	if tel := telemetry.Default(); tel != nil {
		_ = tel.Events.PublishEnvironmentCreated(name.String())
	}
	return &state, nil
}

// Provision provisions the environment's infrastructure. It accepts an
// environment in the created phase, or retries one in provision_failed.
func (s *Service) Provision(ctx context.Context, rawName string) (*environment.AnyState, error) {
	name, state, err := s.load(rawName)
	if err != nil {
		return nil, err
	}

	var provisioning environment.Provisioning
	switch state.Phase() {
	case environment.PhaseCreated:
		created, err := state.ToCreated()
		if err != nil {
			return nil, err
		}
		provisioning = created.StartProvisioning()
	case environment.PhaseProvisionFailed:
		failed, err := state.ToProvisionFailed()
		if err != nil {
			return nil, err
		}
		provisioning = failed.Retry()
	default:
		return nil, &environment.PhaseError{Expected: environment.PhaseCreated, Actual: state.Phase()}
	}

	if err := s.persist(ctx, provisioning.IntoAny(), state.Phase(), environment.PhaseProvisioning, nil); err != nil {
		return nil, err
	}

	startedAt := time.Now().UTC()
	ip, runErr := s.provisioner.Provision(ctx, provisioning.Context())
	if runErr != nil {
		fc := recordFailure(provisioning.Context(), "provision", runErr, startedAt, stepOf(runErr, environment.ProvisionStepInfraApply))
		failed := provisioning.Failed(fc)
		final := failed.IntoAny()
		if err := s.persist(ctx, final, environment.PhaseProvisioning, environment.PhaseProvisionFailed, traceIDOf(fc.TraceID)); err != nil {
			return nil, err
		}
		return &final, fmt.Errorf("provisioning failed for environment %q: %w", name, runErr)
	}

	provisioned := provisioning.Provisioned(ip)
	final := provisioned.IntoAny()
	if err := s.persist(ctx, final, environment.PhaseProvisioning, environment.PhaseProvisioned, nil); err != nil {
		return nil, err
	}

	s.logger.WithEnvironment(name.String()).WithField("instance_ip", ip.String()).Info("environment provisioned")
	return &final, nil
}

// Configure installs the software stack on the provisioned instance.
func (s *Service) Configure(ctx context.Context, rawName string) (*environment.AnyState, error) {
	name, state, err := s.load(rawName)
	if err != nil {
		return nil, err
	}

	var configuring environment.Configuring
	switch state.Phase() {
	case environment.PhaseProvisioned:
		provisioned, err := state.ToProvisioned()
		if err != nil {
			return nil, err
		}
		configuring = provisioned.StartConfiguring()
	case environment.PhaseConfigureFailed:
		failed, err := state.ToConfigureFailed()
		if err != nil {
			return nil, err
		}
		configuring = failed.Retry()
	default:
		return nil, &environment.PhaseError{Expected: environment.PhaseProvisioned, Actual: state.Phase()}
	}

	if err := s.persist(ctx, configuring.IntoAny(), state.Phase(), environment.PhaseConfiguring, nil); err != nil {
		return nil, err
	}

	startedAt := time.Now().UTC()
	if runErr := s.configurer.Configure(ctx, configuring.Context()); runErr != nil {
		fc := recordFailure(configuring.Context(), "configure", runErr, startedAt, stepOf(runErr, environment.ConfigureStepApplyPlaybooks))
		failed := configuring.Failed(fc)
		final := failed.IntoAny()
		if err := s.persist(ctx, final, environment.PhaseConfiguring, environment.PhaseConfigureFailed, traceIDOf(fc.TraceID)); err != nil {
			return nil, err
		}
		return &final, fmt.Errorf("configuration failed for environment %q: %w", name, runErr)
	}

	configured := configuring.Configured()
	final := configured.IntoAny()
	if err := s.persist(ctx, final, environment.PhaseConfiguring, environment.PhaseConfigured, nil); err != nil {
		return nil, err
	}

	s.logger.WithEnvironment(name.String()).Info("environment configured")
	return &final, nil
}

// Release builds and uploads the application artifacts.
func (s *Service) Release(ctx context.Context, rawName string) (*environment.AnyState, error) {
	name, state, err := s.load(rawName)
	if err != nil {
		return nil, err
	}

	var releasing environment.Releasing
	switch state.Phase() {
	case environment.PhaseConfigured:
		configured, err := state.ToConfigured()
		if err != nil {
			return nil, err
		}
		releasing = configured.StartReleasing()
	case environment.PhaseReleaseFailed:
		failed, err := state.ToReleaseFailed()
		if err != nil {
			return nil, err
		}
		releasing = failed.Retry()
	default:
		return nil, &environment.PhaseError{Expected: environment.PhaseConfigured, Actual: state.Phase()}
	}

	if err := s.persist(ctx, releasing.IntoAny(), state.Phase(), environment.PhaseReleasing, nil); err != nil {
		return nil, err
	}

	startedAt := time.Now().UTC()
	if runErr := s.releaser.Release(ctx, releasing.Context()); runErr != nil {
		fc := recordFailure(releasing.Context(), "release", runErr, startedAt, stepOf(runErr, environment.ReleaseStepUploadArtifacts))
		failed := releasing.Failed(fc)
		final := failed.IntoAny()
		if err := s.persist(ctx, final, environment.PhaseReleasing, environment.PhaseReleaseFailed, traceIDOf(fc.TraceID)); err != nil {
			return nil, err
		}
		return &final, fmt.Errorf("release failed for environment %q: %w", name, runErr)
	}

	released := releasing.Released()
	final := released.IntoAny()
	if err := s.persist(ctx, final, environment.PhaseReleasing, environment.PhaseReleased, nil); err != nil {
		return nil, err
	}

	s.logger.WithEnvironment(name.String()).Info("application released")
	return &final, nil
}

// Run starts the application. It accepts an environment in the released
// phase, or retries one in run_failed.
func (s *Service) Run(ctx context.Context, rawName string) (*environment.AnyState, error) {
	name, state, err := s.load(rawName)
	if err != nil {
		return nil, err
	}

	var released environment.Released
	switch state.Phase() {
	case environment.PhaseReleased:
		released, err = state.ToReleased()
		if err != nil {
			return nil, err
		}
	case environment.PhaseRunFailed:
		failed, err := state.ToRunFailed()
		if err != nil {
			return nil, err
		}
		released = failed.Retry()
		if err := s.persist(ctx, released.IntoAny(), environment.PhaseRunFailed, environment.PhaseReleased, nil); err != nil {
			return nil, err
		}
	default:
		return nil, &environment.PhaseError{Expected: environment.PhaseReleased, Actual: state.Phase()}
	}

	startedAt := time.Now().UTC()
	if runErr := s.runner.Run(ctx, released.Context()); runErr != nil {
		fc := recordFailure(released.Context(), "run", runErr, startedAt, stepOf(runErr, environment.RunStepStartServices))
		failed := released.RunFailed(fc)
		final := failed.IntoAny()
		if err := s.persist(ctx, final, environment.PhaseReleased, environment.PhaseRunFailed, traceIDOf(fc.TraceID)); err != nil {
			return nil, err
		}
		return &final, fmt.Errorf("run failed for environment %q: %w", name, runErr)
	}

	running := released.Run()
	final := running.IntoAny()
	if err := s.persist(ctx, final, environment.PhaseReleased, environment.PhaseRunning, nil); err != nil {
		return nil, err
	}

	s.logger.WithEnvironment(name.String()).Info("application running")
	return &final, nil
}

// Destroy tears down the environment's infrastructure and persists the
// destroyed phase. The state file is kept so the phase remains
// inspectable; Purge removes it entirely.
func (s *Service) Destroy(ctx context.Context, rawName string) (*environment.AnyState, error) {
	name, state, err := s.load(rawName)
	if err != nil {
		return nil, err
	}

	if err := s.destroyer.DestroyInfrastructure(ctx, state.Context()); err != nil {
		return nil, fmt.Errorf("failed to destroy infrastructure for environment %q: %w", name, err)
	}

	destroyed, err := state.Destroy()
	if err != nil {
		return nil, err
	}

	final := destroyed.IntoAny()
	if err := s.persist(ctx, final, state.Phase(), environment.PhaseDestroyed, nil); err != nil {
		return nil, err
	}

	s.logger.WithEnvironment(name.String()).Info("environment destroyed")
	if tel := telemetry.Default(); tel != nil {
		_ = tel.Events.PublishEnvironmentDestroyed(name.String())
	}
	return &final, nil
}

// Purge removes a destroyed environment's persisted state and audit
// records.
func (s *Service) Purge(ctx context.Context, rawName string) error {
	name, state, err := s.load(rawName)
	if err != nil {
		return err
	}
	if state.Phase() != environment.PhaseDestroyed {
		return fmt.Errorf("environment %q must be destroyed before purging, current phase %q", name, state.Phase())
	}

	if err := s.repo.Delete(name); err != nil {
		return err
	}
	if s.history != nil {
		if err := s.history.DeleteEnvironment(ctx, name.String()); err != nil {
			s.logger.WithEnvironment(name.String()).WithError(err).Warn("failed to delete transition history")
		}
	}
	return nil
}

// Status returns the persisted state of an environment.
func (s *Service) Status(rawName string) (*environment.AnyState, error) {
	_, state, err := s.load(rawName)
	if err != nil {
		return nil, err
	}
	return state, nil
}

// StatePath returns the state file path for an environment.
func (s *Service) StatePath(rawName string) (string, error) {
	name, err := environment.NewName(rawName)
	if err != nil {
		return "", err
	}
	return s.repo.StatePath(name), nil
}

// List returns the persisted state of every environment.
func (s *Service) List() ([]environment.AnyState, error) {
	names, err := s.repo.List()
	if err != nil {
		return nil, err
	}

	states := make([]environment.AnyState, 0, len(names))
	for _, name := range names {
		state, err := s.repo.Load(name)
		if err != nil {
			return nil, err
		}
		if state != nil {
			states = append(states, *state)
		}
	}
	return states, nil
}

// History returns the recorded transitions for an environment, most
// recent first.
func (s *Service) History(ctx context.Context, rawName string, limit int) ([]*stores.Transition, error) {
	if s.history == nil {
		return nil, fmt.Errorf("transition history is disabled")
	}
	name, err := environment.NewName(rawName)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = s.cfg.History.Limit
	}
	return s.history.List(ctx, name.String(), limit)
}

// load fetches the persisted state, requiring it to exist.
func (s *Service) load(rawName string) (environment.Name, *environment.AnyState, error) {
	name, err := environment.NewName(rawName)
	if err != nil {
		return "", nil, err
	}
	state, err := s.repo.Load(name)
	if err != nil {
		return name, nil, err
	}
	if state == nil {
		return name, nil, fmt.Errorf("environment %q: %w", name, environment.ErrNotFound)
	}
	return name, state, nil
}

// persist saves the state and appends the transition to the audit log.
func (s *Service) persist(ctx context.Context, state environment.AnyState, from, to environment.Phase, traceID *string) error {
	if err := s.repo.Save(state); err != nil {
		return err
	}

	if s.history != nil {
		t := &stores.Transition{
			Environment: state.Name().String(),
			FromPhase:   from.String(),
			ToPhase:     to.String(),
			TraceID:     traceID,
			OccurredAt:  time.Now().UTC(),
		}
		if err := s.history.Append(ctx, t); err != nil {
			// The audit log is advisory; the state file is the source
			// of truth.
			s.logger.WithEnvironment(state.Name().String()).WithError(err).Warn("failed to append transition history")
		}
	}

	if tel := telemetry.Default(); tel != nil {
		_ = tel.Events.PublishStateSaved(state.Name().String(), to.String())
	}
	return nil
}

// recordFailure writes the trace file and assembles the failure context
// for a failed workflow.
func recordFailure[S environment.Step](env environment.Context, command string, err error, startedAt time.Time, step S) environment.FailureContext[S] {
	writer := trace.NewWriter(env.InternalConfig.TracesDir())
	return trace.RecordFailure(writer, command, env.Name().String(), step, err, startedAt)
}

// stepOf extracts the failing step from a workflow error. Errors that
// carry no step are attributed to fallback, so the persisted step always
// belongs to the command's closed set and the state stays loadable.
func stepOf[S environment.Step](err error, fallback S) S {
	var stepErr *StepError[S]
	if errors.As(err, &stepErr) {
		return stepErr.Step
	}
	return fallback
}

// traceIDOf adapts a trace id for the nullable audit log column.
func traceIDOf(id environment.TraceID) *string {
	s := id.String()
	return &s
}
