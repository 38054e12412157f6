package watcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcherDetectsWrite(t *testing.T) {
	tmp := t.TempDir()
	lock := filepath.Join(tmp, "go.sum")
	if err := os.WriteFile(lock, []byte("initial\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	w, err := New(lock, WithDebounceDuration(10*time.Millisecond))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	// Give the backend a moment to arm before the write.
	time.Sleep(50 * time.Millisecond)
	if err := os.WriteFile(lock, []byte("changed\n"), 0o644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}

	select {
	case <-w.Changed():
	case <-time.After(5 * time.Second):
		t.Fatal("no change notification for write")
	}
}

func TestWatcherPollingFallback(t *testing.T) {
	tmp := t.TempDir()
	lock := filepath.Join(tmp, "go.sum")
	if err := os.WriteFile(lock, []byte("initial\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	w, err := New(lock,
		WithForcePoll(true),
		WithPollInterval(20*time.Millisecond),
		WithDebounceDuration(10*time.Millisecond),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	if !w.IsPolling() {
		t.Fatal("expected polling mode")
	}

	// Size change guarantees the poll comparison fires even with coarse
	// mtime resolution.
	time.Sleep(50 * time.Millisecond)
	if err := os.WriteFile(lock, []byte("changed content, longer\n"), 0o644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}

	select {
	case <-w.Changed():
	case <-time.After(5 * time.Second):
		t.Fatal("no change notification in polling mode")
	}
}

func TestWatcherStartTwice(t *testing.T) {
	tmp := t.TempDir()
	lock := filepath.Join(tmp, "go.sum")
	if err := os.WriteFile(lock, []byte("x\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	w, err := New(lock)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	defer w.Stop()

	if err := w.Start(); err != ErrAlreadyStarted {
		t.Fatalf("second Start = %v, want ErrAlreadyStarted", err)
	}
}

func TestWatcherStopIdempotent(t *testing.T) {
	tmp := t.TempDir()
	lock := filepath.Join(tmp, "go.sum")
	if err := os.WriteFile(lock, []byte("x\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	w, err := New(lock)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	w.Stop()
	w.Stop()
	if w.IsStarted() {
		t.Fatal("watcher still started after Stop")
	}
}
