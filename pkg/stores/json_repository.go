package stores

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/envforge/envforge/pkg/telemetry"
)

// DefaultLockTimeout bounds how long repository operations wait for the
// state file lock before reporting a conflict.
const DefaultLockTimeout = 10 * time.Second

// JSONRepository persists values of type T as pretty-printed JSON
// files. Writes are atomic (temp file, fsync, rename) and every
// operation, reads included, holds the file's pid lock so concurrent
// processes never observe partial content.
type JSONRepository[T any] struct {
	lockTimeout time.Duration
}

// NewJSONRepository creates a repository with the default lock timeout.
func NewJSONRepository[T any]() *JSONRepository[T] {
	return &JSONRepository[T]{lockTimeout: DefaultLockTimeout}
}

// NewJSONRepositoryWithTimeout creates a repository with a custom lock
// timeout.
func NewJSONRepositoryWithTimeout[T any](lockTimeout time.Duration) *JSONRepository[T] {
	return &JSONRepository[T]{lockTimeout: lockTimeout}
}

// Write persists value at path, creating parent directories as needed.
func (r *JSONRepository[T]) Write(path string, value T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return NewInternalError("failed to create parent directory", err).WithPath(path).WithOperation("write")
	}

	lock, err := r.acquire(path, "write")
	if err != nil {
		return err
	}
	defer lock.Release()

	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return NewInternalError("failed to serialize value", err).WithPath(path).WithOperation("write")
	}

	if err := writeAtomic(path, data); err != nil {
		return err
	}

	if tel := telemetry.Default(); tel != nil {
		tel.Metrics.RecordStateSave("ok")
	}
	return nil
}

// Read loads the value persisted at path. It returns (nil, nil) when no
// file exists: absence is not an error.
func (r *JSONRepository[T]) Read(path string) (*T, error) {
	lock, err := r.acquire(path, "read")
	if err != nil {
		return nil, err
	}
	defer lock.Release()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, NewInternalError("failed to read file", err).WithPath(path).WithOperation("read")
	}

	var value T
	if err := json.Unmarshal(data, &value); err != nil {
		return nil, NewInternalError("failed to deserialize value", err).WithPath(path).WithOperation("read")
	}

	if tel := telemetry.Default(); tel != nil {
		tel.Metrics.RecordStateLoad("ok")
	}
	return &value, nil
}

// Exists reports whether a file is persisted at path.
func (r *JSONRepository[T]) Exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, NewInternalError("failed to stat file", err).WithPath(path).WithOperation("exists")
}

// Delete removes the file persisted at path. Deleting an absent file
// is a no-op: absence is not an error.
func (r *JSONRepository[T]) Delete(path string) error {
	lock, err := r.acquire(path, "delete")
	if err != nil {
		return err
	}
	defer lock.Release()

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return NewInternalError("failed to delete file", err).WithPath(path).WithOperation("delete")
	}
	return nil
}

// acquire takes the pid lock for path, classifying failures: timeouts
// and invalid lock files are conflicts, everything else is internal.
func (r *JSONRepository[T]) acquire(path, operation string) (*FileLock, error) {
	started := time.Now()
	lock, err := AcquireLock(path, r.lockTimeout)
	if tel := telemetry.Default(); tel != nil {
		tel.Metrics.RecordLockWait(time.Since(started))
	}
	if err != nil {
		switch err.(type) {
		case *LockTimeoutError:
			if tel := telemetry.Default(); tel != nil {
				tel.Metrics.RecordLockTimeout()
			}
			return nil, NewConflictError("state file is locked by another process", err).WithPath(path).WithOperation(operation)
		case *InvalidLockFileError:
			return nil, NewConflictError("state file lock is corrupted", err).WithPath(path).WithOperation(operation)
		default:
			return nil, NewInternalError("failed to acquire state file lock", err).WithPath(path).WithOperation(operation)
		}
	}
	return lock, nil
}

// writeAtomic writes data to path through a temp file in the same
// directory, syncing before the rename so a crash leaves either the old
// content or the new, never a torn file.
func writeAtomic(path string, data []byte) error {
	tmpPath := path + ".tmp"

	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return NewInternalError("failed to create temp file", err).WithPath(tmpPath).WithOperation("write")
	}

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpPath)
		return NewInternalError("failed to write temp file", err).WithPath(tmpPath).WithOperation("write")
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpPath)
		return NewInternalError("failed to sync temp file", err).WithPath(tmpPath).WithOperation("write")
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return NewInternalError("failed to close temp file", err).WithPath(tmpPath).WithOperation("write")
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return NewInternalError("failed to rename temp file into place", err).WithPath(path).WithOperation("write")
	}
	return nil
}
