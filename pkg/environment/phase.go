package environment

import "fmt"

// Phase identifies one stage of the environment lifecycle. The set is
// closed; Parse rejects anything outside it.
type Phase string

const (
	PhaseCreated      Phase = "created"
	PhaseProvisioning Phase = "provisioning"
	PhaseProvisioned  Phase = "provisioned"
	PhaseConfiguring  Phase = "configuring"
	PhaseConfigured   Phase = "configured"
	PhaseReleasing    Phase = "releasing"
	PhaseReleased     Phase = "released"
	PhaseRunning      Phase = "running"
	PhaseDestroyed    Phase = "destroyed"

	PhaseProvisionFailed Phase = "provision_failed"
	PhaseConfigureFailed Phase = "configure_failed"
	PhaseReleaseFailed   Phase = "release_failed"
	PhaseRunFailed       Phase = "run_failed"
)

// Phases lists every phase in lifecycle order, failure phases last.
var Phases = []Phase{
	PhaseCreated,
	PhaseProvisioning,
	PhaseProvisioned,
	PhaseConfiguring,
	PhaseConfigured,
	PhaseReleasing,
	PhaseReleased,
	PhaseRunning,
	PhaseDestroyed,
	PhaseProvisionFailed,
	PhaseConfigureFailed,
	PhaseReleaseFailed,
	PhaseRunFailed,
}

// ParsePhase validates raw against the closed phase set.
func ParsePhase(raw string) (Phase, error) {
	for _, p := range Phases {
		if Phase(raw) == p {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown environment phase %q", raw)
}

// String returns the phase tag.
func (p Phase) String() string {
	return string(p)
}

// IsFailure reports whether p is one of the failure phases.
func (p Phase) IsFailure() bool {
	switch p {
	case PhaseProvisionFailed, PhaseConfigureFailed, PhaseReleaseFailed, PhaseRunFailed:
		return true
	}
	return false
}

// IsTerminal reports whether no further forward transition is expected.
// Failure phases are terminal until explicitly retried.
func (p Phase) IsTerminal() bool {
	return p == PhaseRunning || p == PhaseDestroyed || p.IsFailure()
}

// PhaseError reports an extraction from AnyState whose runtime phase
// did not match the requested typed phase.
type PhaseError struct {
	// Expected is the phase the caller asked for.
	Expected Phase

	// Actual is the phase the value was actually in.
	Actual Phase
}

// Error implements the error interface.
func (e *PhaseError) Error() string {
	return fmt.Sprintf("expected environment phase %q, found %q", e.Expected, e.Actual)
}
