package tools

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func testData() TemplateData {
	return TemplateData{
		EnvironmentName:   "demo",
		InstanceName:      "envforge-vm-demo",
		ProfileName:       "envforge-profile-demo",
		Username:          "dev",
		SSHPort:           22,
		SSHPublicKey:      "ssh-ed25519 AAAA test@host",
		SSHPrivateKeyPath: "/keys/id_ed25519",
		InstanceIP:        "10.0.0.42",
	}
}

func TestRenderTofuTemplates(t *testing.T) {
	dest := t.TempDir()

	if err := RenderTemplates("tofu", dest, testData()); err != nil {
		t.Fatalf("RenderTemplates: %v", err)
	}

	main, err := os.ReadFile(filepath.Join(dest, "main.tf"))
	if err != nil {
		t.Fatalf("read main.tf: %v", err)
	}
	for _, want := range []string{"envforge-vm-demo", "envforge-profile-demo"} {
		if !strings.Contains(string(main), want) {
			t.Errorf("main.tf missing %q", want)
		}
	}
	if strings.Contains(string(main), "{{") {
		t.Error("main.tf contains unrendered template actions")
	}

	cloudInit, err := os.ReadFile(filepath.Join(dest, "cloud-init.yml"))
	if err != nil {
		t.Fatalf("read cloud-init.yml: %v", err)
	}
	if !strings.Contains(string(cloudInit), "ssh-ed25519 AAAA test@host") {
		t.Error("cloud-init.yml missing the public key")
	}
}

func TestRenderAnsibleTemplates(t *testing.T) {
	dest := t.TempDir()

	if err := RenderTemplates("ansible", dest, testData()); err != nil {
		t.Fatalf("RenderTemplates: %v", err)
	}

	inventory, err := os.ReadFile(filepath.Join(dest, "inventory.yml"))
	if err != nil {
		t.Fatalf("read inventory.yml: %v", err)
	}
	for _, want := range []string{"10.0.0.42", "dev", "/keys/id_ed25519"} {
		if !strings.Contains(string(inventory), want) {
			t.Errorf("inventory.yml missing %q", want)
		}
	}

	// Plain playbooks are copied verbatim, Jinja2 expressions intact.
	playbook, err := os.ReadFile(filepath.Join(dest, "install-docker.yml"))
	if err != nil {
		t.Fatalf("read install-docker.yml: %v", err)
	}
	if !strings.Contains(string(playbook), "{{ ansible_distribution_release }}") {
		t.Error("install-docker.yml lost its Jinja2 expressions")
	}
}

func TestRenderUnknownSubtreeFails(t *testing.T) {
	if err := RenderTemplates("no-such-subtree", t.TempDir(), testData()); err == nil {
		t.Fatal("rendering an unknown subtree should fail")
	}
}
