package environment

import (
	"strings"
	"testing"
)

func TestNewName(t *testing.T) {
	valid := []string{
		"dev",
		"a",
		"my-env-2",
		"0numbers-first",
		strings.Repeat("a", 63),
	}
	for _, raw := range valid {
		if _, err := NewName(raw); err != nil {
			t.Errorf("NewName(%q) returned error: %v", raw, err)
		}
	}

	invalid := []string{
		"",
		"UPPER",
		"has space",
		"-leading",
		"trailing-",
		"under_score",
		"dots.not.allowed",
		strings.Repeat("a", 64),
	}
	for _, raw := range invalid {
		if _, err := NewName(raw); err == nil {
			t.Errorf("NewName(%q) should have failed", raw)
		}
	}
}
