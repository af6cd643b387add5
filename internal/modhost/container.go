// SPDX-License-Identifier: MPL-2.0

package modhost

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/modhost/modhost/internal/events"
	"github.com/modhost/modhost/internal/hosterr"
)

// directCall is a callback parked in a container's single-slot "pending
// direct callback" cell, waiting to be run on the target's worker
// goroutine. done carries back the result of running fn: nil on success,
// a hosterr.ErrDirectCallbackException-wrapped error on panic or callback
// failure.
type directCall struct {
	caller string
	fn     func(ctx context.Context, m Module) error
	done   chan error
}

// container is the runtime wrapper around one loaded Module: the module
// instance, its worker goroutine, an event FIFO, and the single-slot
// pending-direct-callback cell. At most one direct callback executes per
// container at a time, enforced by freeSem.
type container struct {
	name   string
	info   ModuleInfo
	module Module
	host   *Host

	mu            sync.Mutex
	cond          *sync.Cond
	queue         []events.Event
	pendingCB     *directCall
	stopRequested bool

	// freeSem is the caller-side mutual-exclusion gate: a caller acquires
	// it before parking a callback, guaranteeing at most one direct call is
	// in flight into this container at a time (weight 1).
	freeSem *semaphore.Weighted

	done chan struct{} // closed when the worker goroutine exits
}

func newContainer(host *Host, name string, info ModuleInfo, module Module) *container {
	c := &container{
		name:    name,
		info:    info,
		module:  module,
		host:    host,
		freeSem: semaphore.NewWeighted(1),
		done:    make(chan struct{}),
	}
	c.cond = sync.NewCond(&c.mu)
	return c
}

// start launches the worker goroutine. It must be called exactly once.
func (c *container) start(ctx context.Context) {
	go c.run(ctx)
}

// run is the worker loop: wait for work, prefer a parked direct callback
// over the next queued event, execute exactly one unit of work, repeat. A
// mutex-guarded condition variable replaces a counting-semaphore wakeup,
// since that primitive has no direct standard-library equivalent in Go.
func (c *container) run(ctx context.Context) {
	defer close(c.done)

	for {
		c.mu.Lock()
		for len(c.queue) == 0 && c.pendingCB == nil && !c.stopRequested {
			c.cond.Wait()
		}

		if c.stopRequested {
			pending := c.pendingCB
			c.pendingCB = nil
			c.queue = nil
			c.mu.Unlock()
			if pending != nil {
				pending.done <- &hosterr.NotAvailableError{
					Target: c.name,
					Caller: pending.caller,
					Reason: "target module worker is stopping",
				}
			}
			break
		}

		var cb *directCall
		var ev events.Event
		haveEvent := false
		if c.pendingCB != nil {
			cb = c.pendingCB
			c.pendingCB = nil
		} else {
			ev = c.queue[0]
			c.queue = c.queue[1:]
			haveEvent = true
		}
		c.mu.Unlock()

		switch {
		case cb != nil:
			cb.done <- c.runDirectCB(ctx, cb)
		case haveEvent:
			c.runEvent(ctx, ev)
		}
	}

	closeCtx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.module.Close(closeCtx); err != nil {
		c.host.logf("module %s: close: %v", c.name, err)
	}
}

// runDirectCB invokes a parked callback, recovering a panic into a
// DirectCallbackException-wrapped error rather than crashing the worker.
func (c *container) runDirectCB(ctx context.Context, cb *directCall) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: module %s: %v", hosterr.ErrDirectCallbackException, c.name, r)
		}
	}()
	// Stamp the ctx handed to fn with this container's own name, not
	// cb.caller. cb.caller identifies who reached this container, but any
	// further AccessModule call made from inside fn is being made BY this
	// module, not by whoever called it; the access-policy check a nested
	// call triggers must see the module actually making the call.
	callCtx := WithCallerName(ctx, c.name)
	if cbErr := cb.fn(callCtx, c.module); cbErr != nil {
		return fmt.Errorf("%w: %w", hosterr.ErrDirectCallbackException, cbErr)
	}
	return nil
}

// runEvent invokes the module's Event handler. An uncaught error or panic
// is fatal to the host: events are fire-and-forget, so there is no caller
// to return the error to, and the host shuts down instead of leaving the
// module in an unknown state.
func (c *container) runEvent(ctx context.Context, ev events.Event) {
	err := c.safeEvent(ctx, ev)
	if err != nil {
		c.host.Shutdown(1, fmt.Sprintf("module %s: event %s (%s): %v", c.name, ev.Name, ev.CorrelationID, err))
	}
}

func (c *container) safeEvent(ctx context.Context, ev events.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: module %s: event %s (%s): %v", hosterr.ErrEventHandlerException, c.name, ev.Name, ev.CorrelationID, r)
		}
	}()
	if evErr := c.module.Event(ctx, ev); evErr != nil {
		return fmt.Errorf("%w: %w", hosterr.ErrEventHandlerException, evErr)
	}
	return nil
}

// pushEvent appends ev to the container's FIFO and wakes the worker.
func (c *container) pushEvent(ev events.Event) {
	c.mu.Lock()
	c.queue = append(c.queue, ev)
	c.mu.Unlock()
	c.cond.Signal()
}

// runSync dispatches the module's Event handler for ev through the same
// direct-call slot and worker goroutine as any other direct call, so it is
// serialized against both the queued events and the parked callbacks this
// container's own worker already handles one at a time. Used for the
// broadcast lifecycle events core:load_modules and core:start.
func (c *container) runSync(ctx context.Context, ev events.Event, caller string) error {
	return c.executeDirectCB(ctx, caller, func(ctx context.Context, m Module) error {
		return c.safeEvent(ctx, ev)
	})
}

// executeDirectCB parks fn in this container's direct-call slot and blocks
// the calling goroutine until a worker iteration has run it, or until the
// container's worker has been asked to stop.
func (c *container) executeDirectCB(ctx context.Context, callerName string, fn func(ctx context.Context, m Module) error) error {
	if err := c.freeSem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer c.freeSem.Release(1)

	c.mu.Lock()
	if c.stopRequested {
		c.mu.Unlock()
		return &hosterr.NotAvailableError{Target: c.name, Caller: callerName, Reason: "target module worker is stopping"}
	}
	done := make(chan error, 1)
	c.pendingCB = &directCall{caller: callerName, fn: fn, done: done}
	c.mu.Unlock()
	c.cond.Signal()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// requestStop marks the container as stopping and wakes the worker so it
// can observe the flag, discard any parked callback, and exit.
func (c *container) requestStop() {
	c.mu.Lock()
	c.stopRequested = true
	c.mu.Unlock()
	c.cond.Broadcast()
}

// join blocks until the worker goroutine has exited.
func (c *container) join(ctx context.Context) error {
	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
