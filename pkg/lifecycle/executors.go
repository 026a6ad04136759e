package lifecycle

import (
	"context"
	"fmt"
	"net/netip"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/envforge/envforge/pkg/environment"
	"github.com/envforge/envforge/pkg/tools"
)

// Boot timeouts for freshly provisioned instances.
const (
	sshWaitTimeout       = 5 * time.Minute
	cloudInitWaitTimeout = 10 * time.Minute
)

// ToolExecutor drives the external tooling (OpenTofu, Ansible, ssh) for
// every lifecycle workflow. It implements Provisioner, Configurer,
// Releaser, Runner, and Destroyer.
type ToolExecutor struct{}

// NewToolExecutor creates the default executor.
func NewToolExecutor() *ToolExecutor {
	return &ToolExecutor{}
}

func tofuDir(env environment.Context) string {
	return filepath.Join(env.InternalConfig.BuildDir, "tofu")
}

func ansibleDir(env environment.Context) string {
	return filepath.Join(env.InternalConfig.BuildDir, "ansible")
}

func appDir(env environment.Context) string {
	return filepath.Join(env.InternalConfig.BuildDir, "app")
}

func remoteAppDir(env environment.Context) string {
	return "/opt/" + env.Name().String()
}

func composeFile(env environment.Context) string {
	return remoteAppDir(env) + "/app/compose.yaml"
}

// templateData assembles the rendering context, reading the public key
// content for cloud-init.
func templateData(env environment.Context) (tools.TemplateData, error) {
	creds := env.SSHCredentials()

	pubKey, err := os.ReadFile(creds.PublicKeyPath)
	if err != nil {
		return tools.TemplateData{}, fmt.Errorf("failed to read SSH public key %s: %w", creds.PublicKeyPath, err)
	}

	data := tools.TemplateData{
		EnvironmentName:   env.Name().String(),
		InstanceName:      env.InstanceName(),
		ProfileName:       env.ProfileName(),
		Username:          creds.Username,
		SSHPort:           env.SSHPort(),
		SSHPublicKey:      strings.TrimSpace(string(pubKey)),
		SSHPrivateKeyPath: creds.PrivateKeyPath,
	}
	if ip, ok := env.InstanceIP(); ok {
		data.InstanceIP = ip.String()
	}
	return data, nil
}

// remote builds the ssh wrapper for a provisioned instance.
func remote(env environment.Context, ip netip.Addr) *tools.Remote {
	creds := env.SSHCredentials()
	return &tools.Remote{
		Host:           ip,
		Port:           env.SSHPort(),
		Username:       creds.Username,
		PrivateKeyPath: creds.PrivateKeyPath,
	}
}

// Provision renders the infrastructure templates, applies them, and
// waits for the instance to finish booting.
func (e *ToolExecutor) Provision(ctx context.Context, env environment.Context) (netip.Addr, error) {
	data, err := templateData(env)
	if err != nil {
		return netip.Addr{}, failStep(environment.ProvisionStepRenderTemplates, err)
	}
	if err := tools.RenderTemplates("tofu", tofuDir(env), data); err != nil {
		return netip.Addr{}, failStep(environment.ProvisionStepRenderTemplates, err)
	}

	tofu := tools.NewTofu(tofuDir(env))
	if err := tofu.Init(ctx); err != nil {
		return netip.Addr{}, failStep(environment.ProvisionStepInfraInit, err)
	}
	if err := tofu.Validate(ctx); err != nil {
		return netip.Addr{}, failStep(environment.ProvisionStepInfraValidate, err)
	}
	if err := tofu.Plan(ctx); err != nil {
		return netip.Addr{}, failStep(environment.ProvisionStepInfraPlan, err)
	}
	if err := tofu.Apply(ctx); err != nil {
		return netip.Addr{}, failStep(environment.ProvisionStepInfraApply, err)
	}

	rawIP, err := tofu.Output(ctx, "instance_ip")
	if err != nil {
		return netip.Addr{}, failStep(environment.ProvisionStepInstanceInfo, err)
	}
	ip, err := netip.ParseAddr(strings.TrimSpace(rawIP))
	if err != nil {
		return netip.Addr{}, failStep(environment.ProvisionStepInstanceInfo,
			fmt.Errorf("invalid instance address %q: %w", rawIP, err))
	}

	r := remote(env, ip)

	sshCtx, cancel := context.WithTimeout(ctx, sshWaitTimeout)
	defer cancel()
	if err := r.WaitForSSH(sshCtx); err != nil {
		return netip.Addr{}, failStep(environment.ProvisionStepWaitSSH, err)
	}

	ciCtx, cancel := context.WithTimeout(ctx, cloudInitWaitTimeout)
	defer cancel()
	if err := r.WaitForCloudInit(ciCtx); err != nil {
		return netip.Addr{}, failStep(environment.ProvisionStepWaitCloudInit, err)
	}

	return ip, nil
}

// Configure renders the playbooks and applies them to the instance.
func (e *ToolExecutor) Configure(ctx context.Context, env environment.Context) error {
	data, err := templateData(env)
	if err != nil {
		return failStep(environment.ConfigureStepRenderPlaybooks, err)
	}
	if data.InstanceIP == "" {
		return failStep(environment.ConfigureStepRenderPlaybooks,
			fmt.Errorf("environment %s has no instance address", env.Name()))
	}
	if err := tools.RenderTemplates("ansible", ansibleDir(env), data); err != nil {
		return failStep(environment.ConfigureStepRenderPlaybooks, err)
	}

	ansible := tools.NewAnsible(ansibleDir(env))
	if err := ansible.Playbook(ctx, "install-docker.yml"); err != nil {
		return failStep(environment.ConfigureStepInstallRuntime, err)
	}
	if err := ansible.Playbook(ctx, "install-compose.yml"); err != nil {
		return failStep(environment.ConfigureStepInstallCompose, err)
	}
	if err := ansible.Playbook(ctx, "configure-host.yml"); err != nil {
		return failStep(environment.ConfigureStepApplyPlaybooks, err)
	}
	return nil
}

// Release builds the application artifacts locally and uploads them.
func (e *ToolExecutor) Release(ctx context.Context, env environment.Context) error {
	data, err := templateData(env)
	if err != nil {
		return failStep(environment.ReleaseStepBuildArtifacts, err)
	}
	if err := tools.RenderTemplates("compose", appDir(env), data); err != nil {
		return failStep(environment.ReleaseStepBuildArtifacts, err)
	}

	ip, ok := env.InstanceIP()
	if !ok {
		return failStep(environment.ReleaseStepUploadArtifacts,
			fmt.Errorf("environment %s has no instance address", env.Name()))
	}
	r := remote(env, ip)

	if err := r.Copy(ctx, appDir(env), remoteAppDir(env)); err != nil {
		return failStep(environment.ReleaseStepUploadArtifacts, err)
	}

	if _, err := r.Run(ctx, fmt.Sprintf("docker compose -f %s config -q", composeFile(env))); err != nil {
		return failStep(environment.ReleaseStepActivate, err)
	}
	return nil
}

// Run starts the application services and verifies they stay up.
func (e *ToolExecutor) Run(ctx context.Context, env environment.Context) error {
	ip, ok := env.InstanceIP()
	if !ok {
		return failStep(environment.RunStepStartServices,
			fmt.Errorf("environment %s has no instance address", env.Name()))
	}
	r := remote(env, ip)

	if _, err := r.Run(ctx, fmt.Sprintf("docker compose -f %s up -d", composeFile(env))); err != nil {
		return failStep(environment.RunStepStartServices, err)
	}

	out, err := r.Run(ctx, fmt.Sprintf("docker compose -f %s ps --status running -q", composeFile(env)))
	if err != nil {
		return failStep(environment.RunStepHealthCheck, err)
	}
	if strings.TrimSpace(out) == "" {
		return failStep(environment.RunStepHealthCheck,
			fmt.Errorf("no services running for environment %s", env.Name()))
	}
	return nil
}

// DestroyInfrastructure tears down the provisioned infrastructure. An
// environment that was never provisioned has nothing to destroy.
func (e *ToolExecutor) DestroyInfrastructure(ctx context.Context, env environment.Context) error {
	dir := tofuDir(env)
	if _, err := os.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return tools.NewTofu(dir).Destroy(ctx)
}
