// Package config provides YAML configuration loading and validation for
// the envforge CLI.
//
// Configuration is read from envforge.yaml in the working directory (or
// an explicit --config path), merged over built-in defaults, and
// validated with struct tags. A typical configuration:
//
//	version: "1"
//	workdir: /var/lib/envforge
//	ssh:
//	  private_key_path: ~/.ssh/id_ed25519
//	  public_key_path: ~/.ssh/id_ed25519.pub
//	  username: envforge
//	  port: 22
//	lock_timeout: 10s
//	history:
//	  enabled: true
//	  limit: 20
//	telemetry:
//	  log_level: info
//	  log_format: console
package config
