package environment

import "errors"

// ErrNotFound is returned by repository operations that require an
// existing environment.
var ErrNotFound = errors.New("environment not found")

// Repository persists type-erased environments. Implementations must
// make Save atomic and must serialize concurrent access across
// processes; see the stores package.
type Repository interface {
	// Save persists the environment, replacing any previous state.
	Save(state AnyState) error

	// Load returns the persisted environment, or (nil, nil) when no
	// state exists for the name. Absence is not an error.
	Load(name Name) (*AnyState, error)

	// Exists reports whether state is persisted for the name.
	Exists(name Name) (bool, error)

	// Delete removes the persisted state if present. Deleting an
	// absent environment is not an error.
	Delete(name Name) error
}
