package tools

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"text/template"
)

//go:embed templates
var templatesFS embed.FS

// TemplateData is the rendering context for every embedded template.
type TemplateData struct {
	// EnvironmentName is the environment name.
	EnvironmentName string

	// InstanceName is the VM/container instance name.
	InstanceName string

	// ProfileName is the hypervisor profile name.
	ProfileName string

	// Username is the remote login user.
	Username string

	// SSHPort is the instance's SSH daemon port.
	SSHPort int

	// SSHPublicKey is the content of the user's public key.
	SSHPublicKey string

	// SSHPrivateKeyPath is the identity file path for rendered
	// inventories.
	SSHPrivateKeyPath string

	// InstanceIP is the provisioned address, empty before provisioning.
	InstanceIP string
}

// RenderTemplates renders one embedded template subtree (for example
// "tofu" or "ansible") into destDir. Files ending in .tmpl are rendered
// with data and the suffix stripped; other files are copied verbatim.
func RenderTemplates(subtree, destDir string, data TemplateData) error {
	root := "templates/" + subtree

	return fs.WalkDir(templatesFS, root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("failed to walk templates: %w", err)
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if d.IsDir() {
			if rel == "." {
				return os.MkdirAll(destDir, 0755)
			}
			return os.MkdirAll(filepath.Join(destDir, rel), 0755)
		}

		content, err := templatesFS.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read template %s: %w", path, err)
		}

		destPath := filepath.Join(destDir, rel)
		if strings.HasSuffix(rel, ".tmpl") {
			destPath = strings.TrimSuffix(destPath, ".tmpl")
			tmpl, err := template.New(filepath.Base(path)).Parse(string(content))
			if err != nil {
				return &RenderError{Path: path, Err: err}
			}
			f, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", destPath, err)
			}
			execErr := tmpl.Execute(f, data)
			closeErr := f.Close()
			if execErr != nil {
				return &RenderError{Path: path, Err: execErr}
			}
			if closeErr != nil {
				return fmt.Errorf("failed to close %s: %w", destPath, closeErr)
			}
			return nil
		}

		if err := os.WriteFile(destPath, content, 0644); err != nil {
			return fmt.Errorf("failed to copy %s: %w", path, err)
		}
		return nil
	})
}
