// SPDX-License-Identifier: MPL-2.0

package modhost

import (
	"context"
	"fmt"
	"time"
)

// tickInterval is how often the driver thread calls HandleEvents while
// idle. Unload, reload, and modification requests are queued by other
// goroutines (AccessModule callers, WatchModule callbacks) and only take
// effect on the next tick; this bounds the latency between a request and
// its effect.
const tickInterval = 50 * time.Millisecond

// Run is the driver thread. It transitions the host to running, then
// calls HandleEvents on every tick until ctx is cancelled or a module
// calls Shutdown through the HostAPI. It does not stop or join any
// container; callers that want a clean teardown should follow Run's
// return with ThreadRequestStop and ThreadJoin.
func (h *Host) Run(ctx context.Context) (int, string, error) {
	if err := h.base.TransitionToStarting(ctx); err != nil {
		return 1, "", fmt.Errorf("modhost: start: %w", err)
	}
	h.base.TransitionToRunning()

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return 0, "context cancelled", nil

		case <-ticker.C:
			if err := h.HandleEvents(ctx); err != nil {
				h.logf("HandleEvents: %v", err)
			}
			if req, code, reason := h.ShutdownRequested(); req {
				return code, reason, nil
			}
		}
	}
}
