// SPDX-License-Identifier: MPL-2.0

package modhost

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/modhost/modhost/internal/hosterr"
)

func TestLoadModuleDirect_InitAndModuleLoadedEvent(t *testing.T) {
	h := New()
	ctx := context.Background()

	watcher := newRecordingModule()
	if err := h.LoadModuleDirect(ctx, ModuleInfo{Name: "watcher"}, watcher); err != nil {
		t.Fatalf("LoadModuleDirect(watcher): %v", err)
	}
	if err := h.SubEvent(WithCallerName(ctx, "watcher"), "core:module_loaded"); err != nil {
		t.Fatalf("SubEvent: %v", err)
	}

	mod := newRecordingModule()
	if err := h.LoadModuleDirect(ctx, ModuleInfo{Name: "a"}, mod); err != nil {
		t.Fatalf("LoadModuleDirect(a): %v", err)
	}

	if !waitFor(time.Second, func() bool { return watcher.eventCount() > 0 }) {
		t.Fatal("watcher never observed core:module_loaded")
	}
	ev, ok := watcher.lastEvent()
	if !ok || ev.Name != "core:module_loaded" || ev.Payload != "a" {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if !h.HasModule("a") {
		t.Fatal("HasModule(a) = false after load")
	}
}

func TestLoadModule_DuplicateNameRejected(t *testing.T) {
	h := New()
	ctx := context.Background()

	if err := h.LoadModuleDirect(ctx, ModuleInfo{Name: "a"}, newRecordingModule()); err != nil {
		t.Fatalf("first load: %v", err)
	}
	err := h.LoadModuleDirect(ctx, ModuleInfo{Name: "a"}, newRecordingModule())
	if err == nil {
		t.Fatal("expected error loading a module name twice")
	}
}

func TestLoadModuleDirect_InitErrorTearsDownContainer(t *testing.T) {
	h := New()
	ctx := context.Background()

	mod := newRecordingModule()
	mod.onInit = func(ctx context.Context, host HostAPI) error { return errBoom }

	err := h.LoadModuleDirect(ctx, ModuleInfo{Name: "bad"}, mod)
	if err == nil {
		t.Fatal("expected LoadModuleDirect to surface Init error")
	}
	if !errors.Is(err, hosterr.ErrLoadFailed) {
		t.Fatalf("expected ErrLoadFailed, got %v", err)
	}
	if h.HasModule("bad") {
		t.Fatal("module should not remain registered after Init failure")
	}
}

func TestUnloadModule_RunsOnNextHandleEventsTick(t *testing.T) {
	h := New()
	ctx := context.Background()

	mod := newRecordingModule()
	if err := h.LoadModuleDirect(ctx, ModuleInfo{Name: "a"}, mod); err != nil {
		t.Fatalf("load: %v", err)
	}

	h.UnloadModule("a")
	if err := h.HandleEvents(ctx); err != nil {
		t.Fatalf("HandleEvents: %v", err)
	}

	if !waitFor(time.Second, func() bool { return !h.HasModule("a") }) {
		t.Fatal("module still registered after unload tick")
	}
	if !waitFor(time.Second, func() bool {
		mod.mu.Lock()
		defer mod.mu.Unlock()
		return mod.closes == 1
	}) {
		t.Fatal("Close was never called on unload")
	}
}

func TestReloadModule_ReplacesModuleAndEmitsContinue(t *testing.T) {
	h := New()
	ctx := context.Background()

	first := newRecordingModule()
	f := func(ctx context.Context, name string) (Module, error) { return first, nil }
	if err := h.LoadModule(ctx, ModuleInfo{Name: "a", DisableNativeBuild: true}, f); err != nil {
		t.Fatalf("initial load: %v", err)
	}

	second := newRecordingModule()
	h.ReloadModule(ModuleInfo{Name: "a", DisableNativeBuild: true})
	// swap what the factory returns before the reload tick picks it up
	f2 := func(ctx context.Context, name string) (Module, error) { return second, nil }
	h.mu.Lock()
	h.factories["a"] = f2
	h.mu.Unlock()

	if err := h.HandleEvents(ctx); err != nil {
		t.Fatalf("HandleEvents: %v", err)
	}

	if !waitFor(time.Second, func() bool {
		second.mu.Lock()
		defer second.mu.Unlock()
		return second.inits == 1
	}) {
		t.Fatal("replacement module was never initialized")
	}
	mod, ok := h.GetModule("a")
	if !ok || mod != second {
		t.Fatal("registry does not reference the reloaded module instance")
	}
	ev, ok := second.lastEvent()
	if !ok || ev.Name != "core:continue" {
		t.Fatalf("expected the reloaded module to receive core:continue, got %+v", ev)
	}
}

func TestMarkModified_EmitsModuleModifiedOnTick(t *testing.T) {
	h := New()
	ctx := context.Background()

	watcher := newRecordingModule()
	if err := h.LoadModuleDirect(ctx, ModuleInfo{Name: "watcher"}, watcher); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := h.SubEvent(WithCallerName(ctx, "watcher"), "core:module_modified"); err != nil {
		t.Fatalf("SubEvent: %v", err)
	}

	h.MarkModified("somemodule")
	if err := h.HandleEvents(ctx); err != nil {
		t.Fatalf("HandleEvents: %v", err)
	}

	if !waitFor(time.Second, func() bool { return watcher.eventCount() > 0 }) {
		t.Fatal("watcher never saw core:module_modified")
	}
	ev, _ := watcher.lastEvent()
	if ev.Payload != "somemodule" {
		t.Fatalf("expected payload somemodule, got %v", ev.Payload)
	}
}

func TestShutdown_FirstNonzeroCodeIsSticky(t *testing.T) {
	h := New()
	h.Shutdown(2, "first")
	h.Shutdown(3, "second")

	req, code, reason := h.ShutdownRequested()
	if !req || code != 2 || reason != "first" {
		t.Fatalf("expected sticky (true,2,first), got (%v,%d,%s)", req, code, reason)
	}
}

func TestEventHandlerPanic_ShutsDownHost(t *testing.T) {
	h := New()
	ctx := context.Background()

	mod := &panicModule{panicOn: "boom"}
	mod.initDone = make(chan struct{})
	mod.closeDone = make(chan struct{})
	if err := h.LoadModuleDirect(ctx, ModuleInfo{Name: "a"}, mod); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := h.SubEvent(WithCallerName(ctx, "a"), "boom"); err != nil {
		t.Fatalf("SubEvent: %v", err)
	}

	h.EmitEvent(ctx, "boom", nil)

	if !waitFor(time.Second, func() bool {
		req, _, _ := h.ShutdownRequested()
		return req
	}) {
		t.Fatal("a panicking event handler should trigger host shutdown")
	}
}
