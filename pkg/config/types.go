package config

import "time"

// Config is the envforge tool configuration, loaded from envforge.yaml.
type Config struct {
	// Version is the configuration schema version.
	Version string `json:"version" yaml:"version"`

	// WorkDir is the root working directory. Environment data lives in
	// {workdir}/data/{name} and build artifacts in {workdir}/build/{name}.
	WorkDir string `json:"workdir" yaml:"workdir" validate:"required"`

	// SSH holds the default SSH settings for new environments.
	SSH SSHConfig `json:"ssh" yaml:"ssh"`

	// LockTimeout bounds how long commands wait for the state file lock.
	LockTimeout time.Duration `json:"lock_timeout" yaml:"lock_timeout"`

	// History configures the transition audit log.
	History HistoryConfig `json:"history" yaml:"history"`

	// Telemetry configures logging, metrics, and tracing.
	Telemetry TelemetryConfig `json:"telemetry" yaml:"telemetry"`
}

// SSHConfig holds the default SSH settings for new environments.
type SSHConfig struct {
	// PrivateKeyPath is the path to the SSH private key file.
	PrivateKeyPath string `json:"private_key_path" yaml:"private_key_path" validate:"required"`

	// PublicKeyPath is the path to the SSH public key file.
	PublicKeyPath string `json:"public_key_path" yaml:"public_key_path" validate:"required"`

	// Username is the remote login user.
	Username string `json:"username" yaml:"username" validate:"required"`

	// Port is the SSH daemon port on provisioned instances.
	Port int `json:"port" yaml:"port" validate:"min=1,max=65535"`
}

// HistoryConfig configures the transition audit log.
type HistoryConfig struct {
	// Enabled controls whether transitions are recorded.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Path is the SQLite database path. Defaults to
	// {workdir}/envforge.db when empty.
	Path string `json:"path" yaml:"path"`

	// Limit is the default number of records shown by history queries.
	Limit int `json:"limit" yaml:"limit" validate:"min=1"`
}

// TelemetryConfig configures logging, metrics, and tracing.
type TelemetryConfig struct {
	// LogLevel sets the minimum log level (trace, debug, info, warn, error, fatal).
	LogLevel string `json:"log_level" yaml:"log_level" validate:"oneof=trace debug info warn error fatal"`

	// LogFormat specifies the log format (console, json).
	LogFormat string `json:"log_format" yaml:"log_format" validate:"oneof=console json"`

	// MetricsEnabled controls the Prometheus metrics endpoint.
	MetricsEnabled bool `json:"metrics_enabled" yaml:"metrics_enabled"`

	// MetricsListen is the metrics endpoint listen address.
	MetricsListen string `json:"metrics_listen" yaml:"metrics_listen"`

	// TracingEnabled controls OpenTelemetry span export.
	TracingEnabled bool `json:"tracing_enabled" yaml:"tracing_enabled"`

	// TracingExporter specifies the span exporter (stdout, none).
	TracingExporter string `json:"tracing_exporter" yaml:"tracing_exporter" validate:"oneof=stdout none"`
}
