package tools

import "fmt"

// RenderError reports a failure producing a file from an embedded
// template.
type RenderError struct {
	// Path is the template or destination path involved.
	Path string

	// Err is the underlying failure.
	Err error
}

// Error implements the error interface.
func (e *RenderError) Error() string {
	return fmt.Sprintf("failed to render %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *RenderError) Unwrap() error {
	return e.Err
}

// InfraError reports a failed infrastructure engine invocation,
// carrying the engine's stderr.
type InfraError struct {
	// Op is the invocation that failed, for example "tofu apply".
	Op string

	// Stderr is the trimmed stderr output of the invocation.
	Stderr string

	// Err is the underlying process error.
	Err error
}

// Error implements the error interface.
func (e *InfraError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("%s failed: %s: %v", e.Op, e.Stderr, e.Err)
	}
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *InfraError) Unwrap() error {
	return e.Err
}
