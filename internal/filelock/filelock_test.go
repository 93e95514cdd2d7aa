package filelock

import (
	"path/filepath"
	"testing"
	"time"
)

func TestAcquireRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vault.lock")

	l, err := Acquire(path)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if err := l.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
}

func TestAcquire_SerializesConcurrentHolders(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vault.lock")

	l1, err := Acquire(path)
	if err != nil {
		t.Fatalf("Acquire 1: %v", err)
	}

	acquired := make(chan struct{})
	go func() {
		l2, err := Acquire(path)
		if err != nil {
			t.Errorf("Acquire 2: %v", err)
			close(acquired)
			return
		}
		close(acquired)
		l2.Release()
	}()

	select {
	case <-acquired:
		t.Fatal("second Acquire returned before first Release")
	case <-time.After(100 * time.Millisecond):
		// expected: still blocked
	}

	if err := l1.Release(); err != nil {
		t.Fatalf("Release 1: %v", err)
	}

	select {
	case <-acquired:
		// expected: second Acquire proceeds now
	case <-time.After(2 * time.Second):
		t.Fatal("second Acquire never completed after first Release")
	}
}
