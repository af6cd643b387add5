// SPDX-License-Identifier: MPL-2.0

package modhost

import (
	"context"
	"fmt"

	"github.com/modhost/modhost/internal/events"
)

// SubEvent subscribes the calling module (identified from ctx) to
// eventName. Must be called from the module's own worker goroutine, during
// Init or later. Duplicate subscriptions are a no-op.
func (h *Host) SubEvent(ctx context.Context, eventName string) error {
	name, ok := CallerName(ctx)
	if !ok {
		return fmt.Errorf("modhost: SubEvent called without a caller identity in ctx")
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.containers[name]
	if !ok {
		h.log.Warnf("SubEvent(): %q is not a known module", name)
		return fmt.Errorf("modhost: %q is not a known module", name)
	}

	id := events.Intern(eventName)
	for _, sub := range h.subscribers[id] {
		if sub.name == name {
			h.log.Warnf("SubEvent(): %q already subscribed to %q", name, eventName)
			return nil
		}
	}
	h.subscribers[id] = append(h.subscribers[id], c)
	return nil
}

// EmitEvent pushes an event onto the FIFO of every subscriber, waking each
// subscriber's worker. It does not block waiting for any subscriber to
// process the event.
func (h *Host) EmitEvent(ctx context.Context, eventName string, payload any) {
	h.emit(ctx, eventName, payload, false)
}

// EmitEventSync calls every subscriber's Event handler one at a time, in
// subscription order, each serialized against that subscriber's own worker
// the same way a direct call is. Reserved for broadcast lifecycle events
// (core:load_modules, core:start), emitted by the process driving the
// host's startup; core:unload and core:continue go out through
// AccessModule instead, since each targets exactly one module.
func (h *Host) EmitEventSync(ctx context.Context, eventName string, payload any) {
	h.emit(ctx, eventName, payload, true)
}

func (h *Host) emit(ctx context.Context, eventName string, payload any, synchronous bool) {
	source, _ := CallerName(ctx)
	ev := events.New(eventName, source, payload)

	h.mu.Lock()
	subs := make([]*container, len(h.subscribers[ev.ID]))
	copy(subs, h.subscribers[ev.ID])
	h.mu.Unlock()

	for _, c := range subs {
		if synchronous {
			if err := c.runSync(ctx, ev, source); err != nil {
				h.Shutdown(1, fmt.Sprintf("module %s: synchronous event %s (%s): %v", c.name, eventName, ev.CorrelationID, err))
			}
			continue
		}
		c.pushEvent(ev)
	}
}
