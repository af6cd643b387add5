// SPDX-License-Identifier: MPL-2.0

package modhost

import (
	"context"
	"testing"
	"time"
)

func TestRun_StopsWhenContextCancelled(t *testing.T) {
	h := New()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	var code int
	var reason string
	var runErr error
	go func() {
		code, reason, runErr = h.Run(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
	if runErr != nil {
		t.Fatalf("Run returned an error: %v", runErr)
	}
	if code != 0 {
		t.Fatalf("expected exit code 0 on context cancellation, got %d", code)
	}
	if reason != "context cancelled" {
		t.Fatalf("expected reason %q, got %q", "context cancelled", reason)
	}
}

func TestRun_StopsWhenModuleCallsShutdown(t *testing.T) {
	h := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mod := newRecordingModule()
	if err := h.LoadModuleDirect(ctx, ModuleInfo{Name: "a"}, mod); err != nil {
		t.Fatalf("load: %v", err)
	}

	done := make(chan struct{})
	var code int
	var reason string
	go func() {
		code, reason, _ = h.Run(ctx)
		close(done)
	}()

	// Give Run a tick to reach the running state before requesting
	// shutdown from outside, as a module's own HostAPI.Shutdown call would.
	time.Sleep(20 * time.Millisecond)
	h.Shutdown(7, "test requested shutdown")

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Shutdown was called")
	}
	if code != 7 || reason != "test requested shutdown" {
		t.Fatalf("expected (7, %q), got (%d, %q)", "test requested shutdown", code, reason)
	}
}

func TestRun_RejectsDoubleStart(t *testing.T) {
	h := New()
	ctx, cancel := context.WithCancel(context.Background())

	go func() { h.Run(ctx) }()
	time.Sleep(20 * time.Millisecond)

	// A Host is meant to be run once; a second concurrent Run on the same
	// Host must not silently succeed and double-tick the driver.
	_, _, err := h.Run(context.Background())
	cancel()
	if err == nil {
		t.Fatal("expected a second concurrent Run to fail the state transition")
	}
}
