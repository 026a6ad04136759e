// Package telemetry provides observability instrumentation for envforge.
//
// The telemetry package integrates structured logging (zerolog), command
// tracing (OpenTelemetry), metrics (Prometheus), and event publishing
// into a unified system for monitoring and debugging lifecycle
// operations.
//
// # Usage
//
// Initialize telemetry at application startup:
//
//	cfg := telemetry.DefaultConfig()
//	cfg.ServiceVersion = "1.0.0"
//
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tel.Shutdown(context.Background())
//	telemetry.SetDefault(tel)
//
// Add telemetry to context:
//
//	ctx = tel.WithContext(ctx)
//
// # Structured Logging
//
// The logger provides component-specific logging with automatic context
// propagation:
//
//	logger := tel.Logger.NewComponentLogger("stores")
//	logger = logger.WithEnvironment("my-app").WithPhase("provisioning")
//	logger.Info("Saving environment state")
//	logger.WithError(err).Error("Save failed")
//
// Log levels: trace, debug, info, warn, error, fatal
//
// # Command Instrumentation
//
// Lifecycle commands are instrumented as a unit:
//
//	ctx = telemetry.WithCommandContext(ctx, "provision", envName)
//	err := provision(ctx)
//	telemetry.EndCommandContext(ctx, "provision", envName, traceID, err)
//
// Transitions recorded by the domain layer flow through the default
// instance installed with SetDefault; when none is installed they are
// silently dropped, which keeps the domain layer usable in tests.
package telemetry
