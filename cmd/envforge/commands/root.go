package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/envforge/envforge/pkg/config"
	"github.com/envforge/envforge/pkg/lifecycle"
	"github.com/envforge/envforge/pkg/stores"
	"github.com/envforge/envforge/pkg/telemetry"
)

var (
	// Global flags
	configPath string
	verbose    bool
	jsonOutput bool

	appVersion string
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	appVersion = version
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "envforge",
		Short: "EnvForge - Development Environment Lifecycle Manager",
		Long: `EnvForge provisions, configures, and runs isolated development
environments on local virtualization.

Each environment moves through a typed lifecycle:

  create -> provision -> configure -> release -> run

Every phase transition is persisted atomically, so a crash at any point
leaves a consistent state file. Failed commands record a failure trace
and can be retried in place.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	// Add subcommands
	rootCmd.AddCommand(newCreateCommand())
	rootCmd.AddCommand(newProvisionCommand())
	rootCmd.AddCommand(newConfigureCommand())
	rootCmd.AddCommand(newReleaseCommand())
	rootCmd.AddCommand(newRunCommand())
	rootCmd.AddCommand(newStatusCommand())
	rootCmd.AddCommand(newListCommand())
	rootCmd.AddCommand(newHistoryCommand())
	rootCmd.AddCommand(newDestroyCommand())

	return rootCmd
}

// app bundles the wired components every command needs.
type app struct {
	cfg     *config.Config
	tel     *telemetry.Telemetry
	history *stores.HistoryStore
	service *lifecycle.Service
}

// setup loads configuration and wires telemetry, stores, and the
// lifecycle service.
func setup(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if verbose {
		cfg.Telemetry.LogLevel = "debug"
	}

	tel, err := telemetry.NewTelemetry(cfg.TelemetryConfig(appVersion))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	telemetry.SetDefault(tel)

	if cfg.Telemetry.MetricsEnabled {
		if err := tel.StartMetricsServer(); err != nil {
			tel.Logger.WithError(err).Warn("failed to start metrics server")
		}
	}

	repo := stores.NewEnvironmentRepository(cfg.DataDir()).WithLockTimeout(cfg.LockTimeout)

	var history *stores.HistoryStore
	if cfg.History.Enabled {
		history, err = stores.NewHistoryStore(stores.HistoryConfig{Path: cfg.History.Path})
		if err != nil {
			return nil, fmt.Errorf("failed to create history store: %w", err)
		}
		if err := history.Init(ctx); err != nil {
			return nil, fmt.Errorf("failed to open history database: %w", err)
		}
		if err := history.Migrate(ctx); err != nil {
			history.Close()
			return nil, fmt.Errorf("failed to migrate history database: %w", err)
		}
	}

	return &app{
		cfg:     cfg,
		tel:     tel,
		history: history,
		service: lifecycle.NewService(cfg, repo, history, tel.Logger),
	}, nil
}

// close releases the app's resources. Shutdown errors are logged, not
// propagated, so they never mask the command's own result.
func (a *app) close(ctx context.Context) {
	if a.history != nil {
		if err := a.history.Close(); err != nil {
			a.tel.Logger.WithError(err).Warn("failed to close history database")
		}
	}
	if err := a.tel.Shutdown(ctx); err != nil {
		a.tel.Logger.WithError(err).Warn("failed to shut down telemetry")
	}
	telemetry.SetDefault(nil)
}
