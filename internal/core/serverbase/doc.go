// SPDX-License-Identifier: MPL-2.0

// Package serverbase provides a reusable state machine and lifecycle
// infrastructure for long-running components: atomic state reads,
// mutex-protected transitions, WaitGroup tracking, and context-based
// cancellation.
//
// internal/modhost.Host embeds a Base to drive its own lifecycle: Created
// until Run is called (modules may already be loaded in this state),
// Starting/Running while the driver thread
// ticks HandleEvents, Stopping once ThreadRequestStop has been called, and
// Stopped once every container's worker and every file watcher has been
// joined. The state names are generic on purpose (they describe any
// start/run/stop component, not specifically a module host), but the
// transitions Host relies on are exactly the ones Base enforces: a host
// can only ever start once, and Stopping can only be reached from
// Starting or Running.
package serverbase
