// SPDX-License-Identifier: MPL-2.0

package modhost

// ModuleStatus is a point-in-time view of one loaded module, for
// introspection callers such as internal/statusapi.
type ModuleStatus struct {
	Name         string   `json:"name"`
	Dependencies []string `json:"dependencies,omitempty"`
}

// Status is a point-in-time snapshot of the whole host: its lifecycle
// state, every loaded module in load order, and the unload/reload work
// still queued for the next driver tick.
type Status struct {
	State          string         `json:"state"`
	Modules        []ModuleStatus `json:"modules"`
	PendingUnloads []string       `json:"pending_unloads,omitempty"`
	PendingReloads []string       `json:"pending_reloads,omitempty"`
}

// Status returns a snapshot of the host's current registry and pending
// work queues. Safe to call from any goroutine.
func (h *Host) Status() Status {
	h.mu.Lock()
	defer h.mu.Unlock()

	modules := make([]ModuleStatus, 0, len(h.loadOrder))
	for _, name := range h.loadOrder {
		info := h.infos[name]
		deps := make([]string, 0, len(info.Dependencies))
		for _, dep := range info.Dependencies {
			deps = append(deps, dep.Module)
		}
		modules = append(modules, ModuleStatus{Name: name, Dependencies: deps})
	}

	unloads := make([]string, 0, len(h.unloadsRequested))
	for name := range h.unloadsRequested {
		unloads = append(unloads, name)
	}
	reloads := make([]string, 0, len(h.reloadsRequested))
	for name := range h.reloadsRequested {
		reloads = append(reloads, name)
	}

	return Status{
		State:          h.base.State().String(),
		Modules:        modules,
		PendingUnloads: unloads,
		PendingReloads: reloads,
	}
}
