package environment

import (
	"fmt"
	"os"

	"golang.org/x/crypto/ssh"
)

// SSHCredentials identifies the key pair and username used to reach the
// provisioned instance. The paths are recorded as given; they are not
// resolved or copied.
type SSHCredentials struct {
	// PrivateKeyPath is the path to the SSH private key file.
	PrivateKeyPath string `json:"private_key_path"`

	// PublicKeyPath is the path to the SSH public key file.
	PublicKeyPath string `json:"public_key_path"`

	// Username is the remote login user.
	Username string `json:"username"`
}

// NewSSHCredentials builds credentials from key paths and a username.
func NewSSHCredentials(privateKeyPath, publicKeyPath, username string) SSHCredentials {
	return SSHCredentials{
		PrivateKeyPath: privateKeyPath,
		PublicKeyPath:  publicKeyPath,
		Username:       username,
	}
}

// ValidatePrivateKey checks that the private key file exists and parses
// as an SSH key. Called at the create boundary so a bad key path fails
// before any infrastructure is provisioned.
func (c SSHCredentials) ValidatePrivateKey() error {
	data, err := os.ReadFile(c.PrivateKeyPath)
	if err != nil {
		return fmt.Errorf("failed to read SSH private key %s: %w", c.PrivateKeyPath, err)
	}
	if _, err := ssh.ParsePrivateKey(data); err != nil {
		return fmt.Errorf("failed to parse SSH private key %s: %w", c.PrivateKeyPath, err)
	}
	return nil
}
