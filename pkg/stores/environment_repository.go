package stores

import (
	"os"
	"path/filepath"
	"time"

	"github.com/envforge/envforge/pkg/environment"
)

// EnvironmentRepository persists type-erased environments as
// data/{name}/state.json files under a base directory. It implements
// environment.Repository.
type EnvironmentRepository struct {
	baseDir string
	repo    *JSONRepository[environment.AnyState]
}

// NewEnvironmentRepository creates a repository rooted at baseDir.
func NewEnvironmentRepository(baseDir string) *EnvironmentRepository {
	return &EnvironmentRepository{
		baseDir: baseDir,
		repo:    NewJSONRepository[environment.AnyState](),
	}
}

// WithLockTimeout returns a repository with a custom lock timeout.
func (r *EnvironmentRepository) WithLockTimeout(timeout time.Duration) *EnvironmentRepository {
	return &EnvironmentRepository{
		baseDir: r.baseDir,
		repo:    NewJSONRepositoryWithTimeout[environment.AnyState](timeout),
	}
}

// StatePath returns the state file path for an environment name.
func (r *EnvironmentRepository) StatePath(name environment.Name) string {
	return filepath.Join(r.baseDir, name.String(), "state.json")
}

// Save persists the environment, replacing any previous state.
func (r *EnvironmentRepository) Save(state environment.AnyState) error {
	return r.repo.Write(r.StatePath(state.Name()), state)
}

// Load returns the persisted environment, or (nil, nil) when no state
// exists for the name.
func (r *EnvironmentRepository) Load(name environment.Name) (*environment.AnyState, error) {
	return r.repo.Read(r.StatePath(name))
}

// Exists reports whether state is persisted for the name.
func (r *EnvironmentRepository) Exists(name environment.Name) (bool, error) {
	return r.repo.Exists(r.StatePath(name))
}

// Delete removes the persisted state if present. Deleting an absent
// environment is not an error.
func (r *EnvironmentRepository) Delete(name environment.Name) error {
	return r.repo.Delete(r.StatePath(name))
}

// List returns the names of every environment with persisted state, in
// directory order.
func (r *EnvironmentRepository) List() ([]environment.Name, error) {
	entries, err := os.ReadDir(r.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, NewInternalError("failed to read environments directory", err).WithPath(r.baseDir).WithOperation("list")
	}

	var names []environment.Name
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		name, err := environment.NewName(entry.Name())
		if err != nil {
			// Unrelated directories are skipped, not an error.
			continue
		}
		exists, err := r.Exists(name)
		if err != nil {
			return nil, err
		}
		if exists {
			names = append(names, name)
		}
	}
	return names, nil
}

var _ environment.Repository = (*EnvironmentRepository)(nil)
