// SPDX-License-Identifier: MPL-2.0

package modhost

import (
	"context"
	"testing"
	"time"
)

func TestHandleEvents_ReloadMergesIntoUnloadSet(t *testing.T) {
	h := New()
	ctx := context.Background()

	mod := newRecordingModule()
	f := func(ctx context.Context, name string) (Module, error) { return mod, nil }
	if err := h.LoadModule(ctx, ModuleInfo{Name: "a", DisableNativeBuild: true}, f); err != nil {
		t.Fatalf("load: %v", err)
	}

	// Requesting a reload for a name that's also independently queued for
	// unload must still only unload-then-reload once.
	h.UnloadModule("a")
	h.ReloadModule(ModuleInfo{Name: "a", DisableNativeBuild: true})

	if err := h.HandleEvents(ctx); err != nil {
		t.Fatalf("HandleEvents: %v", err)
	}

	if !waitFor(time.Second, func() bool { return h.HasModule("a") }) {
		t.Fatal("module a should be loaded again after the reload tick")
	}
	if !waitFor(time.Second, func() bool {
		mod.mu.Lock()
		defer mod.mu.Unlock()
		return mod.closes == 1
	}) {
		t.Fatal("the old instance should have been closed exactly once")
	}
}

func TestHandleEvents_ReloadWithNoKnownFactoryIsSkipped(t *testing.T) {
	h := New()
	ctx := context.Background()

	// No module named "ghost" has ever been loaded, so there is no
	// factory on file for it; the reload request should be dropped
	// without panicking or blocking.
	h.ReloadModule(ModuleInfo{Name: "ghost"})
	if err := h.HandleEvents(ctx); err != nil {
		t.Fatalf("HandleEvents: %v", err)
	}
	if h.HasModule("ghost") {
		t.Fatal("a reload with no known factory must not materialize a module")
	}
}

func TestHandleEvents_UnloadUnknownModuleIsANoop(t *testing.T) {
	h := New()
	ctx := context.Background()

	h.UnloadModule("never-loaded")
	if err := h.HandleEvents(ctx); err != nil {
		t.Fatalf("HandleEvents should not error on an unload for an unknown module: %v", err)
	}
}

func TestThreadRequestStopAndJoin_TearsDownInReverseLoadOrder(t *testing.T) {
	h := New()
	ctx := context.Background()

	var closeOrder []string
	newTracked := func(name string) *recordingModule {
		m := newRecordingModule()
		m.onClose = func(ctx context.Context) error {
			closeOrder = append(closeOrder, name)
			return nil
		}
		return m
	}

	if err := h.LoadModuleDirect(ctx, ModuleInfo{Name: "a"}, newTracked("a")); err != nil {
		t.Fatalf("load a: %v", err)
	}
	if err := h.LoadModuleDirect(ctx, ModuleInfo{Name: "b"}, newTracked("b")); err != nil {
		t.Fatalf("load b: %v", err)
	}
	if err := h.LoadModuleDirect(ctx, ModuleInfo{Name: "c"}, newTracked("c")); err != nil {
		t.Fatalf("load c: %v", err)
	}

	h.ThreadRequestStop()
	if err := h.ThreadJoin(ctx); err != nil {
		t.Fatalf("ThreadJoin: %v", err)
	}

	if len(closeOrder) != 3 || closeOrder[0] != "c" || closeOrder[1] != "b" || closeOrder[2] != "a" {
		t.Fatalf("expected close order [c b a], got %v", closeOrder)
	}
}
