// Package tools wraps the external programs envforge drives: OpenTofu
// for infrastructure provisioning, Ansible for configuration, and
// ssh/scp for remote operations. Every wrapper accepts a context and
// surfaces the tool's stderr in the returned error.
package tools
