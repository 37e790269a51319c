package securearc

import (
	"fmt"

	"github.com/gofrs/flock"
)

// fileLock wraps an advisory, cross-process exclusive lock held around any
// mutation of an archive's header and slot region (a counter increment, a
// reset on success, or destruction). SecureArc handles are themselves
// single-threaded per the concurrency model (spec.md §7); this lock only
// protects against a second process opening the same archive file
// concurrently. Grounded on the teacher's use of OS-level file handles as
// the unit of exclusive access in encryptfs.go, generalized to an explicit
// advisory lock since multiple independent processes, not just goroutines
// within one, may hold a handle open.
type fileLock struct {
	fl *flock.Flock
}

// lockPath returns the sidecar lock file path for an archive path. A
// sidecar keeps the lock independent of how the archive file itself gets
// reopened or rewritten in place.
func lockPath(archivePath string) string {
	return archivePath + ".lock"
}

// acquire blocks until it holds an exclusive lock on archivePath's sidecar
// lock file.
func acquire(archivePath string) (*fileLock, error) {
	fl := flock.New(lockPath(archivePath))
	if err := fl.Lock(); err != nil {
		return nil, newIOError("lock", archivePath, fmt.Errorf("acquire archive lock: %w", err))
	}
	return &fileLock{fl: fl}, nil
}

// release unlocks the archive. Safe to call once; a second call is a no-op
// error that callers should ignore via defer.
func (l *fileLock) release() error {
	if l == nil || l.fl == nil {
		return nil
	}
	return l.fl.Unlock()
}
