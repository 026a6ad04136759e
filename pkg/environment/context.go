package environment

import (
	"fmt"
	"net/netip"
	"path/filepath"
	"time"
)

// instanceNamePrefix and profileNamePrefix keep instances and profiles
// from different environments apart when they share a hypervisor.
const (
	instanceNamePrefix = "envforge-vm-"
	profileNamePrefix  = "envforge-profile-"
)

// UserInputs is the configuration provided (or derived once) at
// environment creation. It never changes afterwards.
type UserInputs struct {
	// Name is the validated environment name.
	Name Name `json:"name"`

	// InstanceName is the generated VM/container instance name,
	// "envforge-vm-{name}".
	InstanceName string `json:"instance_name"`

	// ProfileName is the generated hypervisor profile name,
	// "envforge-profile-{name}".
	ProfileName string `json:"profile_name"`

	// SSH holds the key pair and username for reaching the instance.
	SSH SSHCredentials `json:"ssh_credentials"`

	// SSHPort is the port the instance's SSH daemon listens on.
	SSHPort int `json:"ssh_port"`
}

// InternalConfig holds paths derived deterministically from the
// environment name. Immutable after creation.
type InternalConfig struct {
	// DataDir is where durable state for this environment lives:
	// {workdir}/data/{name}.
	DataDir string `json:"data_dir"`

	// BuildDir is where generated build artifacts go:
	// {workdir}/build/{name}.
	BuildDir string `json:"build_dir"`
}

// TracesDir returns the directory holding failure trace files.
func (c InternalConfig) TracesDir() string {
	return filepath.Join(c.DataDir, "traces")
}

// StateFilePath returns the path of the persisted state file.
func (c InternalConfig) StateFilePath() string {
	return filepath.Join(c.DataDir, "state.json")
}

// RuntimeOutputs collects data produced by successful operations. New
// outputs (container ids, health status, timestamps) are added here
// without touching UserInputs or InternalConfig.
type RuntimeOutputs struct {
	// InstanceIP is the address of the provisioned instance. Nil until
	// provisioning succeeds.
	InstanceIP *netip.Addr `json:"instance_ip,omitempty"`
}

// Context is the state-independent data carried by every environment
// phase. Only RuntimeOutputs ever mutates, and only through the
// transition that produces the corresponding output.
type Context struct {
	// CreatedAt records when the environment was created.
	CreatedAt time.Time `json:"created_at"`

	// UserInputs is the immutable user-provided configuration.
	UserInputs UserInputs `json:"user_inputs"`

	// InternalConfig is the immutable derived configuration.
	InternalConfig InternalConfig `json:"internal_config"`

	// RuntimeOutputs is the mutable output section.
	RuntimeOutputs RuntimeOutputs `json:"runtime_outputs"`
}

// NewContext assembles a context for a fresh environment. Instance and
// profile names and directory paths are derived from the name; runtime
// outputs start empty.
func NewContext(name Name, ssh SSHCredentials, sshPort int, workDir string, createdAt time.Time) Context {
	return Context{
		CreatedAt: createdAt,
		UserInputs: UserInputs{
			Name:         name,
			InstanceName: instanceNamePrefix + name.String(),
			ProfileName:  profileNamePrefix + name.String(),
			SSH:          ssh,
			SSHPort:      sshPort,
		},
		InternalConfig: InternalConfig{
			DataDir:  filepath.Join(workDir, "data", name.String()),
			BuildDir: filepath.Join(workDir, "build", name.String()),
		},
		RuntimeOutputs: RuntimeOutputs{},
	}
}

// Name returns the environment name.
func (c Context) Name() Name {
	return c.UserInputs.Name
}

// InstanceName returns the generated instance name.
func (c Context) InstanceName() string {
	return c.UserInputs.InstanceName
}

// ProfileName returns the generated profile name.
func (c Context) ProfileName() string {
	return c.UserInputs.ProfileName
}

// SSHCredentials returns the SSH credentials.
func (c Context) SSHCredentials() SSHCredentials {
	return c.UserInputs.SSH
}

// SSHPort returns the SSH port.
func (c Context) SSHPort() int {
	return c.UserInputs.SSHPort
}

// InstanceIP returns the provisioned instance address, or false if the
// environment has not been provisioned yet.
func (c Context) InstanceIP() (netip.Addr, bool) {
	if c.RuntimeOutputs.InstanceIP == nil {
		return netip.Addr{}, false
	}
	return *c.RuntimeOutputs.InstanceIP, true
}

// withInstanceIP returns a copy of the context with the instance IP
// recorded. Only the provisioned transition calls this.
func (c Context) withInstanceIP(ip netip.Addr) Context {
	c.RuntimeOutputs.InstanceIP = &ip
	return c
}

// Validate checks internal consistency after deserialization: the
// derived fields must still match the name they were derived from.
func (c Context) Validate() error {
	if _, err := NewName(c.UserInputs.Name.String()); err != nil {
		return err
	}
	if c.UserInputs.InstanceName != instanceNamePrefix+c.UserInputs.Name.String() {
		return fmt.Errorf("instance name %q does not match environment %q", c.UserInputs.InstanceName, c.UserInputs.Name)
	}
	if c.UserInputs.SSHPort < 1 || c.UserInputs.SSHPort > 65535 {
		return fmt.Errorf("ssh port %d out of range", c.UserInputs.SSHPort)
	}
	return nil
}
