package lock

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/annahri/zmssl/internal/errors"
)

func newTestLock(t *testing.T) *Lock {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "zmssl.lock"))
}

func TestAcquireRelease(t *testing.T) {
	l := newTestLock(t)

	if l.Held() {
		t.Fatal("fresh lock should not be held")
	}
	if err := l.Acquire(); err != nil {
		t.Fatalf("Acquire() failed: %v", err)
	}
	if !l.Held() {
		t.Error("lock should be held after Acquire")
	}

	// The marker carries the owning PID.
	data, err := os.ReadFile(l.Path())
	if err != nil {
		t.Fatal(err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid != os.Getpid() {
		t.Errorf("marker should hold this PID, got %q", data)
	}

	if err := l.Release(); err != nil {
		t.Fatalf("Release() failed: %v", err)
	}
	if l.Held() {
		t.Error("lock should not be held after Release")
	}
}

func TestMutualExclusion(t *testing.T) {
	l := newTestLock(t)
	if err := l.Acquire(); err != nil {
		t.Fatal(err)
	}

	second := New(l.Path())
	err := second.Acquire()
	if !errors.Is(err, errors.ErrAlreadyRunning) {
		t.Fatalf("second Acquire() = %v, want ErrAlreadyRunning", err)
	}
}

func TestReleaseIdempotent(t *testing.T) {
	l := newTestLock(t)
	if err := l.Acquire(); err != nil {
		t.Fatal(err)
	}
	if err := l.Release(); err != nil {
		t.Fatal(err)
	}
	// Releasing an already released lock is not an error.
	if err := l.Release(); err != nil {
		t.Errorf("second Release() = %v, want nil", err)
	}
}

func TestAcquireAfterRelease(t *testing.T) {
	l := newTestLock(t)
	for i := 0; i < 3; i++ {
		if err := l.Acquire(); err != nil {
			t.Fatalf("cycle %d: Acquire() = %v", i, err)
		}
		if err := l.Release(); err != nil {
			t.Fatalf("cycle %d: Release() = %v", i, err)
		}
	}
}

func TestDefaultPath(t *testing.T) {
	l := Default()
	if filepath.Base(l.Path()) != "zmssl.lock" {
		t.Errorf("default marker = %s, want zmssl.lock", l.Path())
	}
}
