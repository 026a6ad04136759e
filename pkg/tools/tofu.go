package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
)

// Tofu runs OpenTofu commands in a working directory.
type Tofu struct {
	// Binary is the executable name, "tofu" by default.
	Binary string

	// Dir is the working directory holding the rendered templates.
	Dir string
}

// NewTofu creates a runner for the given working directory.
func NewTofu(dir string) *Tofu {
	return &Tofu{Binary: "tofu", Dir: dir}
}

// run executes one tofu subcommand, returning stdout.
func (t *Tofu) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, t.Binary, args...)
	cmd.Dir = t.Dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", &InfraError{
			Op:     fmt.Sprintf("%s %s", t.Binary, strings.Join(args, " ")),
			Stderr: strings.TrimSpace(stderr.String()),
			Err:    err,
		}
	}
	return stdout.String(), nil
}

// Init initializes the working directory.
func (t *Tofu) Init(ctx context.Context) error {
	_, err := t.run(ctx, "init", "-input=false", "-no-color")
	return err
}

// Validate checks the configuration for errors.
func (t *Tofu) Validate(ctx context.Context) error {
	_, err := t.run(ctx, "validate", "-no-color")
	return err
}

// Plan computes the execution plan.
func (t *Tofu) Plan(ctx context.Context) error {
	_, err := t.run(ctx, "plan", "-input=false", "-no-color")
	return err
}

// Apply applies the configuration without interactive approval.
func (t *Tofu) Apply(ctx context.Context) error {
	_, err := t.run(ctx, "apply", "-input=false", "-auto-approve", "-no-color")
	return err
}

// Destroy tears down the managed infrastructure.
func (t *Tofu) Destroy(ctx context.Context) error {
	_, err := t.run(ctx, "destroy", "-input=false", "-auto-approve", "-no-color")
	return err
}

// Output reads one string output value from the state.
func (t *Tofu) Output(ctx context.Context, name string) (string, error) {
	out, err := t.run(ctx, "output", "-json", name)
	if err != nil {
		return "", err
	}
	var value string
	if err := json.Unmarshal([]byte(strings.TrimSpace(out)), &value); err != nil {
		return "", fmt.Errorf("failed to parse output %q: %w", name, err)
	}
	return value, nil
}
