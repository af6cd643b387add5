// SPDX-License-Identifier: MPL-2.0

package modhost

import (
	"context"
	"fmt"
	"sync"

	"github.com/modhost/modhost/internal/accesspolicy"
	"github.com/modhost/modhost/internal/buildcache"
	"github.com/modhost/modhost/internal/core/serverbase"
	"github.com/modhost/modhost/internal/events"
	"github.com/modhost/modhost/internal/hosterr"
	"github.com/modhost/modhost/internal/hostlog"
)

// Host is the singleton-per-server registry, event bus, and shutdown
// coordinator. It owns every loaded container, the module dependency
// graph, and the driver thread's pending work queues. The registry fields
// below are all guarded by mu; executing a module's own code never holds
// mu (see executeDirectCB and the event FIFO, which operate on the
// container's own lock instead). This registry->container->event-queue
// lock ordering is what makes a "registry mutex held while calling into a
// module" deadlock impossible by construction.
type Host struct {
	base *serverbase.Base
	log  *hostlog.Logger

	compiler *buildcache.Cache

	mu          sync.Mutex
	containers  map[string]*container
	infos       map[string]ModuleInfo
	factories   map[string]Factory
	loadOrder   []string
	policy      *accesspolicy.Policy
	subscribers map[events.ID][]*container

	unloadsRequested map[string]struct{}
	reloadsRequested map[string]ModuleInfo
	modifiedModules  map[string]struct{}

	tmpData   map[string]any
	filePaths map[string]string

	watchMu      sync.Mutex
	watchCancels []context.CancelFunc

	shutdownMu     sync.Mutex
	shutdownReq    bool
	shutdownCode   int
	shutdownReason string
}

// Option configures a Host at construction time.
type Option func(*Host)

// WithLogger overrides the default logger, which discards all output.
func WithLogger(l *hostlog.Logger) Option {
	return func(h *Host) { h.log = l }
}

// WithCompiler installs the build cache used by LoadModule for native
// modules. A Host with no compiler can still load modules via
// LoadModuleDirect.
func WithCompiler(c *buildcache.Cache) Option {
	return func(h *Host) { h.compiler = c }
}

// New creates an empty Host.
func New(opts ...Option) *Host {
	h := &Host{
		base:             serverbase.NewBase(),
		log:              hostlog.NewNop(),
		containers:       make(map[string]*container),
		infos:            make(map[string]ModuleInfo),
		factories:        make(map[string]Factory),
		policy:           accesspolicy.New(),
		subscribers:      make(map[events.ID][]*container),
		unloadsRequested: make(map[string]struct{}),
		reloadsRequested: make(map[string]ModuleInfo),
		modifiedModules:  make(map[string]struct{}),
		tmpData:          make(map[string]any),
		filePaths:        make(map[string]string),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Host) logf(format string, args ...any) {
	h.log.Errorf(format, args...)
}

// Factory constructs a Module instance for a freshly built or
// directly-registered module. name is the module's own name.
type Factory func(ctx context.Context, name string) (Module, error)

// LoadModule registers info, builds it (unless info.DisableNativeBuild),
// constructs the Module via factory, and starts its worker. It fails if
// the name is already loaded, the build fails, or factory returns an
// error.
func (h *Host) LoadModule(ctx context.Context, info ModuleInfo, factory Factory) error {
	h.mu.Lock()
	if _, exists := h.containers[info.Name]; exists {
		h.mu.Unlock()
		return fmt.Errorf("modhost: module %q already loaded", info.Name)
	}
	h.mu.Unlock()

	buildCtx := ctx
	if !info.DisableNativeBuild && h.compiler != nil {
		result, err := h.compiler.Compile(ctx, info.Name, info.SourceDir, info.CXXFlags, info.LDFlags, nil, nil)
		if err != nil {
			return hosterr.BuildFailed(info.Name, err)
		}
		buildCtx = withBuildResult(ctx, result)
	}

	module, err := factory(buildCtx, info.Name)
	if err != nil {
		return hosterr.LoadFailed(info.Name, err)
	}
	if module == nil {
		return hosterr.LoadFailed(info.Name, fmt.Errorf("factory returned a nil module"))
	}

	h.mu.Lock()
	h.factories[info.Name] = factory
	h.mu.Unlock()

	return h.registerAndStart(ctx, info, module)
}

// LoadModuleDirect registers an already-constructed, in-process Module,
// skipping compilation entirely. Used for hardcoded modules and tests.
func (h *Host) LoadModuleDirect(ctx context.Context, info ModuleInfo, module Module) error {
	h.mu.Lock()
	if _, exists := h.containers[info.Name]; exists {
		h.mu.Unlock()
		return fmt.Errorf("modhost: module %q already loaded", info.Name)
	}
	h.mu.Unlock()
	return h.registerAndStart(ctx, info, module)
}

func (h *Host) registerAndStart(ctx context.Context, info ModuleInfo, module Module) error {
	c := newContainer(h, info.Name, info, module)

	h.mu.Lock()
	h.containers[info.Name] = c
	h.infos[info.Name] = info
	h.loadOrder = append(h.loadOrder, info.Name)
	h.policy.AddModule(info.Name)
	for _, dep := range info.Dependencies {
		h.policy.AddDependency(info.Name, dep.Module)
	}
	h.mu.Unlock()

	c.start(ctx)

	// Init runs on the container's own worker goroutine, the same way any
	// other call into the module does, by routing it through the direct-call
	// slot rather than invoking it here on the caller's goroutine. Without
	// this, a concurrent AccessModule targeting this module could have its
	// callback picked up by the worker while Init is still running on a
	// second goroutine, two goroutines inside the module's code at once.
	api := &hostAPI{host: h, self: info.Name}
	initErr := c.executeDirectCB(ctx, info.Name, func(ctx context.Context, m Module) error {
		return m.Init(ctx, api)
	})
	if initErr != nil {
		c.requestStop()
		_ = c.join(ctx)
		h.removeFromRegistry(info.Name)
		return hosterr.LoadFailed(info.Name, initErr)
	}

	h.EmitEvent(ctx, "core:module_loaded", info.Name)
	return nil
}

func (h *Host) removeFromRegistry(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.containers, name)
	delete(h.infos, name)
	for i, n := range h.loadOrder {
		if n == name {
			h.loadOrder = append(h.loadOrder[:i], h.loadOrder[i+1:]...)
			break
		}
	}
	for t, subs := range h.subscribers {
		h.subscribers[t] = removeContainer(subs, name)
	}
}

func removeContainer(subs []*container, name string) []*container {
	out := subs[:0]
	for _, c := range subs {
		if c.name != name {
			out = append(out, c)
		}
	}
	return out
}

// UnloadModule records intent to unload name; the actual unload happens on
// the next HandleEvents tick.
func (h *Host) UnloadModule(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.unloadsRequested[name] = struct{}{}
}

// ReloadModule records intent to reload info.Name; if a reload for the
// same name is already pending, the latest info wins.
func (h *Host) ReloadModule(info ModuleInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.reloadsRequested[info.Name] = info
}

// MarkModified records that name's source changed on disk, for the next
// HandleEvents tick to pick up as a core:module_modified event. Called by
// the file-watch driver.
func (h *Host) MarkModified(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.modifiedModules[name] = struct{}{}
}

// GetModule returns the live Module instance registered under name.
func (h *Host) GetModule(name string) (Module, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.containers[name]
	if !ok {
		return nil, false
	}
	return c.module, true
}

// HasModule reports whether name is currently loaded.
func (h *Host) HasModule(name string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.containers[name]
	return ok
}

// CheckModule returns hosterr.ErrModuleNotFound if name is not loaded.
func (h *Host) CheckModule(name string) error {
	if !h.HasModule(name) {
		return hosterr.ModuleNotFound(name)
	}
	return nil
}

// GetModulePath returns the source directory recorded for name.
func (h *Host) GetModulePath(name string) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	info, ok := h.infos[name]
	if !ok {
		return "", false
	}
	return info.SourceDir, true
}

// GetLoadedModules returns module names in load order.
func (h *Host) GetLoadedModules() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.loadOrder))
	copy(out, h.loadOrder)
	return out
}

// TmpStoreData stores an arbitrary value under key for later retrieval by
// any module, used to pass state across a reload boundary.
func (h *Host) TmpStoreData(key string, v any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.tmpData[key] = v
}

// TmpRestoreData retrieves a value stored by TmpStoreData.
func (h *Host) TmpRestoreData(key string) (any, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	v, ok := h.tmpData[key]
	return v, ok
}

// AddFilePath records path under a logical key in the host's file-path
// mirror map, used by modules to share resource locations without
// depending on each other directly.
func (h *Host) AddFilePath(key, path string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.filePaths[key] = path
}

// GetFilePath looks up a path stored by AddFilePath.
func (h *Host) GetFilePath(key string) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	p, ok := h.filePaths[key]
	return p, ok
}

// Shutdown records a shutdown request. Nonzero exit codes are sticky: the
// first nonzero code and its reason win and are never overwritten. Zero
// codes may be overwritten by a later, more specific shutdown.
func (h *Host) Shutdown(code int, reason string) {
	h.shutdownMu.Lock()
	defer h.shutdownMu.Unlock()
	if h.shutdownReq && h.shutdownCode != 0 {
		return
	}
	h.shutdownReq = true
	h.shutdownCode = code
	h.shutdownReason = reason
	h.log.Errorf("shutdown requested: code=%d reason=%s", code, reason)
}

// ShutdownRequested reports whether Shutdown has been called, along with
// the sticky exit code and reason.
func (h *Host) ShutdownRequested() (bool, int, string) {
	h.shutdownMu.Lock()
	defer h.shutdownMu.Unlock()
	return h.shutdownReq, h.shutdownCode, h.shutdownReason
}
