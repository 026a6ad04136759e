package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/envforge/envforge/pkg/telemetry"
)

// DefaultConfigFile is the configuration file name looked up in the
// working directory when no explicit path is given.
const DefaultConfigFile = "envforge.yaml"

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Version: "1",
		WorkDir: ".",
		SSH: SSHConfig{
			PrivateKeyPath: filepath.Join("~", ".ssh", "id_ed25519"),
			PublicKeyPath:  filepath.Join("~", ".ssh", "id_ed25519.pub"),
			Username:       "envforge",
			Port:           22,
		},
		LockTimeout: 10 * time.Second,
		History: HistoryConfig{
			Enabled: true,
			Limit:   20,
		},
		Telemetry: TelemetryConfig{
			LogLevel:        "info",
			LogFormat:       "console",
			MetricsEnabled:  false,
			MetricsListen:   ":9090",
			TracingEnabled:  false,
			TracingExporter: "stdout",
		},
	}
}

// Load reads configuration from path, fills in defaults, and validates
// it. When path is empty and no default file exists, the built-in
// configuration is returned.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if path == "" {
		path = DefaultConfigFile
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			cfg := Default()
			cfg.applyDefaults()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return cfg, nil
}

// applyDefaults fills derived and zero-valued fields.
func (c *Config) applyDefaults() {
	if c.LockTimeout <= 0 {
		c.LockTimeout = 10 * time.Second
	}
	if c.History.Limit <= 0 {
		c.History.Limit = 20
	}
	if c.History.Path == "" {
		c.History.Path = filepath.Join(c.WorkDir, "envforge.db")
	}
	if c.Telemetry.MetricsListen == "" {
		c.Telemetry.MetricsListen = ":9090"
	}
	if c.Telemetry.TracingExporter == "" {
		c.Telemetry.TracingExporter = "stdout"
	}
	c.SSH.PrivateKeyPath = expandHome(c.SSH.PrivateKeyPath)
	c.SSH.PublicKeyPath = expandHome(c.SSH.PublicKeyPath)
}

// expandHome resolves a leading "~" against the current user's home
// directory, so the built-in key paths work without shell expansion.
func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~"+string(os.PathSeparator)) {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// Validate checks the configuration against its struct tags.
func (c *Config) Validate() error {
	return validator.New().Struct(c)
}

// DataDir returns the directory holding per-environment state
// directories.
func (c *Config) DataDir() string {
	return filepath.Join(c.WorkDir, "data")
}

// TelemetryConfig maps the tool configuration onto the telemetry
// package's configuration.
func (c *Config) TelemetryConfig(version string) *telemetry.Config {
	tcfg := telemetry.DefaultConfig()
	tcfg.ServiceVersion = version
	tcfg.Logging.Level = c.Telemetry.LogLevel
	tcfg.Logging.Format = c.Telemetry.LogFormat
	tcfg.Metrics.Enabled = c.Telemetry.MetricsEnabled
	tcfg.Metrics.ListenAddress = c.Telemetry.MetricsListen
	tcfg.Tracing.Enabled = c.Telemetry.TracingEnabled
	tcfg.Tracing.Exporter = c.Telemetry.TracingExporter
	return tcfg
}
