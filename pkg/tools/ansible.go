package tools

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

// Ansible runs ansible-playbook against a rendered inventory.
type Ansible struct {
	// Binary is the executable name, "ansible-playbook" by default.
	Binary string

	// Dir is the working directory holding playbooks and inventory.
	Dir string

	// Inventory is the inventory file name inside Dir.
	Inventory string
}

// NewAnsible creates a runner for the given working directory.
func NewAnsible(dir string) *Ansible {
	return &Ansible{
		Binary:    "ansible-playbook",
		Dir:       dir,
		Inventory: "inventory.yml",
	}
}

// Playbook runs one playbook from the working directory.
func (a *Ansible) Playbook(ctx context.Context, playbook string) error {
	args := []string{
		"-i", filepath.Join(a.Dir, a.Inventory),
		filepath.Join(a.Dir, playbook),
	}

	cmd := exec.CommandContext(ctx, a.Binary, args...)
	cmd.Dir = a.Dir

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s %s failed: %s: %w", a.Binary, strings.Join(args, " "), strings.TrimSpace(stderr.String()), err)
	}
	return nil
}
