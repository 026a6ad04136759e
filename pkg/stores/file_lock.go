package stores

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/envforge/envforge/pkg/telemetry"
)

// lockRetryInterval is how long an acquirer sleeps between attempts
// while another live process holds the lock.
const lockRetryInterval = 100 * time.Millisecond

// LockFilePath returns the lock file path guarding the given file.
func LockFilePath(path string) string {
	return path + ".lock"
}

// LockTimeoutError is returned when the lock could not be acquired
// within the configured timeout.
type LockTimeoutError struct {
	// Path is the lock file path.
	Path string

	// HolderPID is the pid recorded in the lock file at the time the
	// timeout expired, zero if it could not be read.
	HolderPID int

	// Timeout is the acquisition timeout that expired.
	Timeout time.Duration
}

// Error implements the error interface.
func (e *LockTimeoutError) Error() string {
	if e.HolderPID > 0 {
		return fmt.Sprintf("timed out after %s acquiring lock %s held by pid %d", e.Timeout, e.Path, e.HolderPID)
	}
	return fmt.Sprintf("timed out after %s acquiring lock %s", e.Timeout, e.Path)
}

// InvalidLockFileError is returned when a lock file exists but does not
// contain a parseable pid. The file is left in place for inspection.
type InvalidLockFileError struct {
	// Path is the lock file path.
	Path string

	// Content is the raw lock file content.
	Content string
}

// Error implements the error interface.
func (e *InvalidLockFileError) Error() string {
	return fmt.Sprintf("lock file %s contains invalid pid %q", e.Path, e.Content)
}

// FileLock is an exclusive cross-process lock backed by a pid file.
// The lock file is created with O_EXCL and holds the owner's pid in
// decimal; a lock whose owner is no longer alive is reclaimed.
type FileLock struct {
	path string
	pid  int
}

// AcquireLock acquires the lock guarding path, waiting up to timeout.
// The returned lock must be released with Release.
func AcquireLock(path string, timeout time.Duration) (*FileLock, error) {
	lockPath := LockFilePath(path)
	pid := os.Getpid()
	deadline := time.Now().Add(timeout)

	for {
		ok, err := tryCreateLock(lockPath, pid)
		if err != nil {
			return nil, err
		}
		if ok {
			return &FileLock{path: lockPath, pid: pid}, nil
		}

		holder, err := readLockHolder(lockPath)
		if err != nil {
			var invalid *InvalidLockFileError
			if errors.As(err, &invalid) {
				return nil, err
			}
			if os.IsNotExist(err) {
				// The holder released between our create attempt and
				// the read. Try again immediately.
				continue
			}
			return nil, NewInternalError("failed to read lock file", err).WithPath(lockPath)
		}

		if holder != pid && !processAlive(holder) {
			// Stale lock from a dead process. Remove and retry
			// immediately; a concurrent acquirer may win the race.
			if err := os.Remove(lockPath); err != nil && !os.IsNotExist(err) {
				return nil, NewInternalError("failed to remove stale lock", err).WithPath(lockPath)
			}
			continue
		}

		if time.Now().After(deadline) {
			return nil, &LockTimeoutError{Path: lockPath, HolderPID: holder, Timeout: timeout}
		}
		time.Sleep(lockRetryInterval)
	}
}

// tryCreateLock attempts to create the lock file exclusively. It
// reports false without error when the file already exists.
func tryCreateLock(lockPath string, pid int) (bool, error) {
	f, err := os.OpenFile(lockPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if os.IsExist(err) {
			return false, nil
		}
		return false, NewInternalError("failed to create lock file", err).WithPath(lockPath)
	}
	_, werr := f.WriteString(strconv.Itoa(pid))
	cerr := f.Close()
	if werr != nil || cerr != nil {
		_ = os.Remove(lockPath)
		if werr == nil {
			werr = cerr
		}
		return false, NewInternalError("failed to write lock file", werr).WithPath(lockPath)
	}
	return true, nil
}

// readLockHolder reads the pid recorded in the lock file.
func readLockHolder(lockPath string) (int, error) {
	data, err := os.ReadFile(lockPath)
	if err != nil {
		return 0, err
	}
	content := strings.TrimSpace(string(data))
	holder, err := strconv.Atoi(content)
	if err != nil || holder <= 0 {
		return 0, &InvalidLockFileError{Path: lockPath, Content: content}
	}
	return holder, nil
}

// processAlive probes whether a process with the given pid exists.
// Signal 0 performs the existence check without delivering a signal.
func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}
	// EPERM means the process exists but belongs to another user.
	return errors.Is(err, syscall.EPERM)
}

// Release removes the lock file. Failures are logged and swallowed so
// a release on the unwind path never masks the original error.
func (l *FileLock) Release() {
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		if tel := telemetry.Default(); tel != nil {
			tel.Logger.NewComponentLogger("stores").
				WithField("path", l.path).
				WithError(err).
				Warn("failed to release file lock")
		}
	}
}

// Path returns the lock file path.
func (l *FileLock) Path() string {
	return l.path
}
