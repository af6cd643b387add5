// SPDX-License-Identifier: MPL-2.0

// Package modhost implements the hot-reloadable module host: the registry,
// per-module worker, event bus, direct-call protocol, and shutdown
// coordination. It builds on internal/core/serverbase's lifecycle state
// machine and internal/dag's dependency graph, generalized from "server"
// to "module container" and from HTTP lifecycle to the module
// load/unload/reload lifecycle.
package modhost

import (
	"context"

	"github.com/modhost/modhost/internal/events"
)

// Module is the capability set every hosted module implements. Its methods
// are only ever invoked on the module's own worker goroutine: Init once
// after construction, Event any number of times for subscribed event
// types or parked direct callbacks, and Close exactly once before the
// worker exits.
type Module interface {
	// Init is called once, on the module's own worker goroutine, after the
	// container has registered the module but before any event or direct
	// callback is delivered. host is this module's view of the running
	// Host: subscribe, emit, and call other modules through it.
	Init(ctx context.Context, host HostAPI) error

	// Event handles one event this module has subscribed to.
	Event(ctx context.Context, ev events.Event) error

	// Close runs on the worker goroutine just before it exits. Errors are
	// logged but do not block shutdown.
	Close(ctx context.Context) error
}

// HostAPI is the subset of Host a Module's own code is allowed to call.
// Every method is safe to call from the module's own worker goroutine,
// including from within Init and Event; AccessModule additionally works
// from any goroutine that carries a caller identity in ctx (see
// WithCallerName). A container stamps its own name as the caller identity
// before invoking a parked callback, so if that callback itself calls
// AccessModule, the access-policy check sees the module actually making
// the nested call, not some earlier caller further up the chain.
type HostAPI interface {
	SubEvent(ctx context.Context, eventName string) error
	EmitEvent(ctx context.Context, eventName string, payload any)
	EmitEventSync(ctx context.Context, eventName string, payload any)
	AccessModule(ctx context.Context, target string, fn func(ctx context.Context, m Module) error) error

	LoadModule(ctx context.Context, info ModuleInfo) error
	UnloadModule(name string)
	ReloadModule(info ModuleInfo)

	GetModule(name string) (Module, bool)
	HasModule(name string) bool
	CheckModule(name string) error
	GetModulePath(name string) (string, bool)
	GetLoadedModules() []string

	Shutdown(code int, reason string)

	TmpStoreData(key string, v any)
	TmpRestoreData(key string) (any, bool)
	AddFilePath(key, path string)
	GetFilePath(key string) (string, bool)
}
