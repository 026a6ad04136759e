package tools

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/netip"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// sshConnectRetryInterval is how long Remote waits between connection
// probes while an instance boots.
const sshConnectRetryInterval = 2 * time.Second

// Remote runs commands on a provisioned instance over ssh and copies
// files with scp. It shells out to the system ssh client so the user's
// agent and known-hosts configuration apply.
type Remote struct {
	// Host is the instance address.
	Host netip.Addr

	// Port is the SSH daemon port.
	Port int

	// Username is the remote login user.
	Username string

	// PrivateKeyPath is the identity file passed to ssh.
	PrivateKeyPath string
}

// sshArgs returns the common ssh option list.
func (r *Remote) sshArgs() []string {
	return []string{
		"-i", r.PrivateKeyPath,
		"-p", strconv.Itoa(r.Port),
		"-o", "StrictHostKeyChecking=accept-new",
		"-o", "BatchMode=yes",
	}
}

// Run executes a command on the instance, returning stdout.
func (r *Remote) Run(ctx context.Context, command string) (string, error) {
	args := append(r.sshArgs(), fmt.Sprintf("%s@%s", r.Username, r.Host), command)
	cmd := exec.CommandContext(ctx, "ssh", args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("ssh %q failed: %s: %w", command, strings.TrimSpace(stderr.String()), err)
	}
	return stdout.String(), nil
}

// Copy uploads a local file or directory to a path on the instance.
func (r *Remote) Copy(ctx context.Context, localPath, remotePath string) error {
	args := []string{
		"-i", r.PrivateKeyPath,
		"-P", strconv.Itoa(r.Port),
		"-o", "StrictHostKeyChecking=accept-new",
		"-o", "BatchMode=yes",
		"-r",
		localPath,
		fmt.Sprintf("%s@%s:%s", r.Username, r.Host, remotePath),
	}
	cmd := exec.CommandContext(ctx, "scp", args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("scp %s failed: %s: %w", localPath, strings.TrimSpace(stderr.String()), err)
	}
	return nil
}

// WaitForSSH blocks until the instance's SSH port accepts connections
// or the context expires.
func (r *Remote) WaitForSSH(ctx context.Context) error {
	addr := net.JoinHostPort(r.Host.String(), strconv.Itoa(r.Port))
	dialer := &net.Dialer{Timeout: sshConnectRetryInterval}

	for {
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err == nil {
			return conn.Close()
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("timed out waiting for ssh on %s: %w", addr, ctx.Err())
		case <-time.After(sshConnectRetryInterval):
		}
	}
}

// WaitForCloudInit blocks until cloud-init finishes on the instance.
func (r *Remote) WaitForCloudInit(ctx context.Context) error {
	_, err := r.Run(ctx, "cloud-init status --wait")
	if err != nil {
		return fmt.Errorf("cloud-init did not complete: %w", err)
	}
	return nil
}
