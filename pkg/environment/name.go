package environment

import (
	"fmt"
	"regexp"
)

// namePattern restricts environment names to DNS-label style identifiers
// so they can be embedded in instance names, directory paths and
// hostnames without escaping.
var namePattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]*[a-z0-9])?$`)

// maxNameLength keeps generated instance names within hostname limits.
const maxNameLength = 63

// Name is a validated environment name. It is unique per data directory
// and immutable once created; use NewName to construct one.
type Name string

// NewName validates raw and returns it as a Name.
//
// Valid names are 1-63 characters of lowercase letters, digits and
// hyphens, starting and ending with a letter or digit.
func NewName(raw string) (Name, error) {
	if raw == "" {
		return "", fmt.Errorf("environment name must not be empty")
	}
	if len(raw) > maxNameLength {
		return "", fmt.Errorf("environment name %q exceeds %d characters", raw, maxNameLength)
	}
	if !namePattern.MatchString(raw) {
		return "", fmt.Errorf("environment name %q must match %s", raw, namePattern.String())
	}
	return Name(raw), nil
}

// String returns the name as a plain string.
func (n Name) String() string {
	return string(n)
}
