// SPDX-License-Identifier: MPL-2.0

package modhost

import (
	"context"
	"fmt"

	"github.com/modhost/modhost/internal/events"
)

// HandleEvents is one driver-thread tick. It drains the modified-modules
// set (emitting core:module_modified per entry), then the unload and
// reload request sets (merging reload names into the unload list so a
// reloaded module is always unloaded and reloaded, never left running
// stale code), unloading and reloading each in turn.
func (h *Host) HandleEvents(ctx context.Context) error {
	h.drainModified(ctx)

	h.mu.Lock()
	unloads := make(map[string]struct{}, len(h.unloadsRequested))
	for name := range h.unloadsRequested {
		unloads[name] = struct{}{}
	}
	h.unloadsRequested = make(map[string]struct{})

	reloads := make(map[string]ModuleInfo, len(h.reloadsRequested))
	for name, info := range h.reloadsRequested {
		reloads[name] = info
		unloads[name] = struct{}{}
	}
	h.reloadsRequested = make(map[string]ModuleInfo)
	h.mu.Unlock()

	for name := range unloads {
		if !h.HasModule(name) {
			continue
		}
		if err := h.unloadOne(ctx, name); err != nil {
			h.logf("unload %s: %v", name, err)
		}
	}

	for name, info := range reloads {
		factory, ok := h.lookupFactory(name)
		if !ok {
			h.logf("reload %s: no known factory, skipping", name)
			continue
		}
		if err := h.LoadModule(ctx, info, factory); err != nil {
			h.logf("reload %s: %v", name, err)
			continue
		}
		if err := h.accessModuleEvent(ctx, name, "core:continue", name); err != nil {
			h.logf("reload %s: core:continue: %v", name, err)
		}
	}

	return nil
}

// accessModuleEvent delivers eventName to exactly one module via a direct
// call, rather than a broadcast: used for core:unload and core:continue,
// which only ever target the one module being unloaded or just reloaded.
func (h *Host) accessModuleEvent(ctx context.Context, target, eventName string, payload any) error {
	return h.AccessModule(ctx, target, func(ctx context.Context, m Module) error {
		return m.Event(ctx, events.New(eventName, "", payload))
	})
}

func (h *Host) lookupFactory(name string) (Factory, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	f, ok := h.factories[name]
	return f, ok
}

func (h *Host) drainModified(ctx context.Context) {
	h.mu.Lock()
	modified := make([]string, 0, len(h.modifiedModules))
	for name := range h.modifiedModules {
		modified = append(modified, name)
	}
	h.modifiedModules = make(map[string]struct{})
	h.mu.Unlock()

	for _, name := range modified {
		h.EmitEvent(ctx, "core:module_modified", name)
	}
}

// unloadOne dispatches core:unload to the module via a direct call, then
// tears it down via unloadModuleU.
func (h *Host) unloadOne(ctx context.Context, name string) error {
	if err := h.accessModuleEvent(ctx, name, "core:unload", name); err != nil {
		h.logf("unload %s: core:unload: %v", name, err)
	}
	return h.unloadModuleU(ctx, name)
}

// unloadModuleU tears down a loaded module: removes its event
// subscriptions and registry entry, requests and joins its worker, then
// emits core:module_unloaded. The registry removal happens before the
// worker join so no new direct call or event can be routed to it while
// shutdown is in progress; the emission happens after the registry lock is
// released, per the open question about not holding the registry mutex
// across an event emission.
func (h *Host) unloadModuleU(ctx context.Context, name string) error {
	h.mu.Lock()
	c, ok := h.containers[name]
	h.mu.Unlock()
	if !ok {
		return fmt.Errorf("modhost: %q is not loaded", name)
	}

	h.removeFromRegistry(name)

	c.requestStop()
	if err := c.join(ctx); err != nil {
		return fmt.Errorf("modhost: join worker for %q: %w", name, err)
	}

	h.EmitEvent(ctx, "core:module_unloaded", name)
	return nil
}

// ThreadRequestStop signals every loaded container's worker and any
// registered file watchers to stop, without waiting for them to exit.
func (h *Host) ThreadRequestStop() {
	h.base.TransitionToStopping()

	h.mu.Lock()
	containers := make([]*container, 0, len(h.containers))
	for _, c := range h.containers {
		containers = append(containers, c)
	}
	h.mu.Unlock()

	for _, c := range containers {
		c.requestStop()
	}
	h.stopWatchers()
}

// ThreadJoin waits for every container's worker to exit, in reverse load
// order (the mirror image of load order), then for the file-watch driver.
func (h *Host) ThreadJoin(ctx context.Context) error {
	h.mu.Lock()
	order := make([]string, len(h.loadOrder))
	copy(order, h.loadOrder)
	h.mu.Unlock()

	for i := len(order) - 1; i >= 0; i-- {
		name := order[i]
		h.mu.Lock()
		c, ok := h.containers[name]
		h.mu.Unlock()
		if !ok {
			continue
		}
		if err := c.join(ctx); err != nil {
			return fmt.Errorf("modhost: join worker for %q: %w", name, err)
		}
	}

	h.joinWatchers(ctx)
	h.base.TransitionToStopped()
	return nil
}
