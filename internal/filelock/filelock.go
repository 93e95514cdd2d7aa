// Package filelock wraps an advisory flock(2) around a file path, isolating
// the syscall behind a small internal package the same way internal/tracing
// isolates the OTel SDK. It guards the read-modify-write cycle on the vault
// file: two concurrent CLIs each holding the lock serialize rather than
// racing last-writer-wins.
package filelock

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Lock holds an open file descriptor with an exclusive advisory lock taken
// on it. Release drops the lock and closes the descriptor.
type Lock struct {
	f *os.File
}

// Acquire opens (creating if necessary) the lock file at path and blocks
// until it can take an exclusive advisory lock on it. The lock file itself
// carries no content; it exists purely to be flock'd.
func Acquire(path string) (*Lock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("filelock: open %s: %w", path, err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		f.Close()
		return nil, fmt.Errorf("filelock: flock %s: %w", path, err)
	}

	return &Lock{f: f}, nil
}

// Release drops the advisory lock and closes the underlying descriptor.
func (l *Lock) Release() error {
	if l == nil || l.f == nil {
		return nil
	}
	if err := unix.Flock(int(l.f.Fd()), unix.LOCK_UN); err != nil {
		l.f.Close()
		return fmt.Errorf("filelock: unlock: %w", err)
	}
	return l.f.Close()
}
