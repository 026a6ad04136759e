package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config is invalid: %v", err)
	}
	if cfg.SSH.Port != 22 {
		t.Errorf("default ssh port = %d", cfg.SSH.Port)
	}
	if cfg.LockTimeout != 10*time.Second {
		t.Errorf("default lock timeout = %s", cfg.LockTimeout)
	}
	if !cfg.History.Enabled {
		t.Error("history should be enabled by default")
	}
	if cfg.DataDir() != filepath.Join(".", "data") {
		t.Errorf("data dir = %q", cfg.DataDir())
	}
}

// chdir changes into dir for the duration of the test, restoring the
// previous working directory on cleanup.
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir: %v", err)
	}
	t.Cleanup(func() { os.Chdir(old) })
}

func TestLoadMissingDefaultFileFallsBack(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.WorkDir != "." {
		t.Errorf("workdir = %q", cfg.WorkDir)
	}
}

func TestLoadExpandsHomeInSSHKeyPaths(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Fatalf("UserHomeDir: %v", err)
	}

	// The built-in defaults resolve against the home directory.
	chdir(t, t.TempDir())
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if want := filepath.Join(home, ".ssh", "id_ed25519"); cfg.SSH.PrivateKeyPath != want {
		t.Errorf("private key path = %q, want %q", cfg.SSH.PrivateKeyPath, want)
	}
	if want := filepath.Join(home, ".ssh", "id_ed25519.pub"); cfg.SSH.PublicKeyPath != want {
		t.Errorf("public key path = %q, want %q", cfg.SSH.PublicKeyPath, want)
	}

	// So do tilde paths written in a config file.
	path := filepath.Join(t.TempDir(), "envforge.yaml")
	content := `
workdir: /srv/envforge
ssh:
  private_key_path: ~/keys/deploy
  public_key_path: ~/keys/deploy.pub
  username: dev
  port: 22
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err = Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if want := filepath.Join(home, "keys", "deploy"); cfg.SSH.PrivateKeyPath != want {
		t.Errorf("private key path = %q, want %q", cfg.SSH.PrivateKeyPath, want)
	}
}

func TestLoadMissingExplicitFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("explicit missing file should fail")
	}
}

func TestLoadAppliesOverridesAndDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "envforge.yaml")
	content := `
version: "1"
workdir: /srv/envforge
ssh:
  private_key_path: /keys/id_ed25519
  public_key_path: /keys/id_ed25519.pub
  username: dev
  port: 2222
lock_timeout: 5s
history:
  enabled: true
  limit: 50
telemetry:
  log_level: debug
  log_format: json
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.WorkDir != "/srv/envforge" {
		t.Errorf("workdir = %q", cfg.WorkDir)
	}
	if cfg.SSH.Port != 2222 {
		t.Errorf("ssh port = %d", cfg.SSH.Port)
	}
	if cfg.LockTimeout != 5*time.Second {
		t.Errorf("lock timeout = %s", cfg.LockTimeout)
	}
	if cfg.History.Limit != 50 {
		t.Errorf("history limit = %d", cfg.History.Limit)
	}
	// Derived default: the history database lives under the workdir.
	if cfg.History.Path != filepath.Join("/srv/envforge", "envforge.db") {
		t.Errorf("history path = %q", cfg.History.Path)
	}
	if cfg.Telemetry.LogLevel != "debug" || cfg.Telemetry.LogFormat != "json" {
		t.Errorf("telemetry = %+v", cfg.Telemetry)
	}
	// Untouched fields keep their defaults.
	if cfg.Telemetry.MetricsListen != ":9090" {
		t.Errorf("metrics listen = %q", cfg.Telemetry.MetricsListen)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{
			name: "bad log level",
			content: `
workdir: /srv/envforge
telemetry:
  log_level: chatty
`,
		},
		{
			name: "ssh port out of range",
			content: `
workdir: /srv/envforge
ssh:
  private_key_path: /keys/id
  public_key_path: /keys/id.pub
  username: dev
  port: 70000
`,
		},
		{
			name:    "not yaml",
			content: `{{{`,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "envforge.yaml")
			if err := os.WriteFile(path, []byte(tc.content), 0644); err != nil {
				t.Fatalf("write config: %v", err)
			}
			if _, err := Load(path); err == nil {
				t.Fatal("expected Load to fail")
			}
		})
	}
}

func TestTelemetryConfigMapping(t *testing.T) {
	cfg := Default()
	cfg.Telemetry.LogLevel = "warn"
	cfg.Telemetry.MetricsEnabled = true
	cfg.Telemetry.TracingEnabled = true
	cfg.Telemetry.TracingExporter = "none"

	tcfg := cfg.TelemetryConfig("1.2.3")
	if tcfg.ServiceVersion != "1.2.3" {
		t.Errorf("service version = %q", tcfg.ServiceVersion)
	}
	if tcfg.Logging.Level != "warn" {
		t.Errorf("log level = %q", tcfg.Logging.Level)
	}
	if !tcfg.Metrics.Enabled {
		t.Error("metrics not enabled")
	}
	if !tcfg.Tracing.Enabled || tcfg.Tracing.Exporter != "none" {
		t.Errorf("tracing = %+v", tcfg.Tracing)
	}
	if err := tcfg.Validate(); err != nil {
		t.Errorf("mapped telemetry config invalid: %v", err)
	}
}
