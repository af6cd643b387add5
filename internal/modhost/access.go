// SPDX-License-Identifier: MPL-2.0

package modhost

import (
	"context"
	"fmt"

	"github.com/modhost/modhost/internal/hosterr"
)

// AccessModule is the public entry point for a synchronous cross-module
// call. It identifies the caller from ctx (set by WithCallerName; absent
// for host-internal callers such as the driver thread), validates the
// call against the dependency-based access policy, and then blocks until
// fn has run on target's worker goroutine.
func (h *Host) AccessModule(ctx context.Context, target string, fn func(ctx context.Context, m Module) error) error {
	h.mu.Lock()
	targetContainer, ok := h.containers[target]
	h.mu.Unlock()
	if !ok {
		return hosterr.ModuleNotFound(target)
	}

	caller, hasCaller := CallerName(ctx)
	if hasCaller {
		if allowed, reason := h.policy.CanCall(caller, target); !allowed {
			return &hosterr.AccessError{Caller: caller, Target: target, Reason: reason}
		}
	}

	return targetContainer.executeDirectCB(ctx, caller, fn)
}

// hostAPI is the HostAPI view handed to a module's own code. It pins the
// module's identity so every call it makes back into the Host carries the
// right caller context automatically, instead of requiring each module to
// remember to call WithCallerName itself.
type hostAPI struct {
	host *Host
	self string
}

func (a *hostAPI) withSelf(ctx context.Context) context.Context {
	if _, ok := CallerName(ctx); ok {
		return ctx
	}
	return WithCallerName(ctx, a.self)
}

func (a *hostAPI) SubEvent(ctx context.Context, eventName string) error {
	return a.host.SubEvent(a.withSelf(ctx), eventName)
}

func (a *hostAPI) EmitEvent(ctx context.Context, eventName string, payload any) {
	a.host.EmitEvent(a.withSelf(ctx), eventName, payload)
}

func (a *hostAPI) EmitEventSync(ctx context.Context, eventName string, payload any) {
	a.host.EmitEventSync(a.withSelf(ctx), eventName, payload)
}

func (a *hostAPI) AccessModule(ctx context.Context, target string, fn func(ctx context.Context, m Module) error) error {
	return a.host.AccessModule(a.withSelf(ctx), target, fn)
}

// LoadModule re-invokes the factory originally used to load info.Name. A
// module cannot introduce a brand-new factory through this interface; to
// load a kind of module the host has never seen, call Host.LoadModule
// directly with an explicit Factory.
func (a *hostAPI) LoadModule(ctx context.Context, info ModuleInfo) error {
	a.host.mu.Lock()
	factory, ok := a.host.factories[info.Name]
	a.host.mu.Unlock()
	if !ok {
		return fmt.Errorf("modhost: no known factory for module %q; load it once via Host.LoadModule first", info.Name)
	}
	return a.host.LoadModule(a.withSelf(ctx), info, factory)
}

func (a *hostAPI) UnloadModule(name string)         { a.host.UnloadModule(name) }
func (a *hostAPI) ReloadModule(info ModuleInfo)      { a.host.ReloadModule(info) }
func (a *hostAPI) GetModule(name string) (Module, bool) { return a.host.GetModule(name) }
func (a *hostAPI) HasModule(name string) bool           { return a.host.HasModule(name) }
func (a *hostAPI) CheckModule(name string) error         { return a.host.CheckModule(name) }
func (a *hostAPI) GetModulePath(name string) (string, bool) { return a.host.GetModulePath(name) }
func (a *hostAPI) GetLoadedModules() []string                { return a.host.GetLoadedModules() }
func (a *hostAPI) Shutdown(code int, reason string)          { a.host.Shutdown(code, reason) }
func (a *hostAPI) TmpStoreData(key string, v any)             { a.host.TmpStoreData(key, v) }
func (a *hostAPI) TmpRestoreData(key string) (any, bool)      { return a.host.TmpRestoreData(key) }
func (a *hostAPI) AddFilePath(key, path string)               { a.host.AddFilePath(key, path) }
func (a *hostAPI) GetFilePath(key string) (string, bool)      { return a.host.GetFilePath(key) }
