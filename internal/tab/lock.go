package tab

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// FileLock serializes read-modify-write cycles on a table file between
// processes with an advisory flock(2) on a sidecar "<path>.lock" file.
// It does not synchronize goroutines within one process.
type FileLock struct {
	path string
	f    *os.File
}

// NewFileLock returns an unheld lock guarding the table file at path.
func NewFileLock(path string) *FileLock {
	return &FileLock{path: path + ".lock"}
}

// Lock blocks until the advisory lock is held.
func (l *FileLock) Lock() error {
	if l.f != nil {
		return fmt.Errorf("lock %s: already held", l.path)
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("open lock file: %w", err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		f.Close()
		return fmt.Errorf("lock %s: %w", l.path, err)
	}
	l.f = f
	return nil
}

// TryLock attempts to take the lock without blocking and reports whether
// it was acquired.
func (l *FileLock) TryLock() (bool, error) {
	if l.f != nil {
		return false, fmt.Errorf("lock %s: already held", l.path)
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return false, fmt.Errorf("open lock file: %w", err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return false, nil
		}
		return false, fmt.Errorf("lock %s: %w", l.path, err)
	}
	l.f = f
	return true, nil
}

// Unlock releases the lock. The sidecar file is left in place for the
// next writer. Unlocking an unheld lock is a no-op.
func (l *FileLock) Unlock() error {
	if l.f == nil {
		return nil
	}
	err := unix.Flock(int(l.f.Fd()), unix.LOCK_UN)
	cerr := l.f.Close()
	l.f = nil
	if err != nil {
		return fmt.Errorf("unlock %s: %w", l.path, err)
	}
	if cerr != nil {
		return fmt.Errorf("close lock file: %w", cerr)
	}
	return nil
}
