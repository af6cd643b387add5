// SPDX-License-Identifier: MPL-2.0

package modhost

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatchModule_FileChangeMarksModuleModified(t *testing.T) {
	dir := t.TempDir()
	sourceFile := filepath.Join(dir, "module.txt")
	if err := os.WriteFile(sourceFile, []byte("v1"), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	h := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := h.WatchModule(ctx, "a", dir, []string{"*.txt"}); err != nil {
		t.Fatalf("WatchModule: %v", err)
	}

	if err := os.WriteFile(sourceFile, []byte("v2"), 0o644); err != nil {
		t.Fatalf("rewrite file: %v", err)
	}

	if !waitFor(3*time.Second, func() bool {
		h.mu.Lock()
		_, ok := h.modifiedModules["a"]
		h.mu.Unlock()
		return ok
	}) {
		t.Fatal("expected the watcher to mark module a modified after a file change")
	}
}

func TestWatchModule_IgnoresCompiledArtifacts(t *testing.T) {
	dir := t.TempDir()

	h := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := h.WatchModule(ctx, "a", dir, []string{"*"}); err != nil {
		t.Fatalf("WatchModule: %v", err)
	}

	// A rebuilt plugin artifact landing next to the module's source must
	// not itself be treated as a source change.
	if err := os.WriteFile(filepath.Join(dir, "a.so"), []byte("elf"), 0o644); err != nil {
		t.Fatalf("write .so: %v", err)
	}
	time.Sleep(600 * time.Millisecond)
	h.mu.Lock()
	_, marked := h.modifiedModules["a"]
	h.mu.Unlock()
	if marked {
		t.Fatal("expected a compiled .so artifact to be ignored, but module was marked modified")
	}

	// A real source change should still be observed.
	if err := os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main"), 0o644); err != nil {
		t.Fatalf("write .go: %v", err)
	}
	if !waitFor(3*time.Second, func() bool {
		h.mu.Lock()
		_, ok := h.modifiedModules["a"]
		h.mu.Unlock()
		return ok
	}) {
		t.Fatal("expected a .go source change to mark module a modified")
	}
}

func TestStopWatchers_StopsGoroutinesAndJoinReturns(t *testing.T) {
	dir := t.TempDir()
	h := New()
	ctx := context.Background()

	if err := h.WatchModule(ctx, "a", dir, []string{"*"}); err != nil {
		t.Fatalf("WatchModule: %v", err)
	}

	h.stopWatchers()

	joinCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	h.joinWatchers(joinCtx)

	if joinCtx.Err() != nil {
		t.Fatal("joinWatchers should have returned promptly once the watcher goroutine stopped")
	}
}
