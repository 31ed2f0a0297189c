//go:build leaktests
// +build leaktests

package watcher

import (
	"testing"

	"go.uber.org/goleak"
)

type noopInvalidator struct{}

func (noopInvalidator) InvalidatePrefix(prefix string) {}

// TestWatcher_StartStopLeavesNoGoroutines verifies that Stop tears down
// the event-processing goroutine Start spawns.
func TestWatcher_StartStopLeavesNoGoroutines(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	w, err := New(noopInvalidator{})
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}
	if err := w.Start(dir); err != nil {
		t.Fatalf("failed to start watcher: %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Fatalf("failed to stop watcher: %v", err)
	}
}
