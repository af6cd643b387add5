// SPDX-License-Identifier: MPL-2.0

package modhost

import (
	"context"
	"fmt"

	"github.com/modhost/modhost/internal/watch"
)

// WatchModule starts a debounced filesystem watch over a module's source
// directory. A change to any matching file marks the module modified, for
// the driver thread to pick up as a core:module_modified event on its next
// HandleEvents tick. baseDir is typically info.SourceDir.
//
// One goroutine per watched module, each blocking in fsnotify's event
// loop, is the idiomatic way to express "watch these directories and tell
// me when something under them changes" rather than a single thread
// polling every module's files on a fixed timeout. The debounce period
// coalesces bursts of editor writes into one module_modified per quiet
// period instead of one per filesystem event.
func (h *Host) WatchModule(ctx context.Context, name, baseDir string, patterns []string) error {
	watchCtx, cancel := context.WithCancel(ctx)

	w, err := watch.New(watch.Config{
		BaseDir:  baseDir,
		Patterns: patterns,
		Ignore:   watch.CompiledArtifactIgnores,
		OnChange: func(_ context.Context, changed []string) error {
			h.MarkModified(name)
			return nil
		},
	})
	if err != nil {
		cancel()
		return fmt.Errorf("modhost: watch module %q: %w", name, err)
	}

	h.watchMu.Lock()
	h.watchCancels = append(h.watchCancels, cancel)
	h.watchMu.Unlock()

	h.base.AddGoroutine()
	go func() {
		defer h.base.DoneGoroutine()
		if err := w.Run(watchCtx); err != nil {
			h.logf("watch %s: %v", name, err)
		}
	}()
	return nil
}

// stopWatchers cancels every module watcher started by WatchModule, without
// waiting for their goroutines to exit.
func (h *Host) stopWatchers() {
	h.watchMu.Lock()
	cancels := make([]context.CancelFunc, len(h.watchCancels))
	copy(cancels, h.watchCancels)
	h.watchMu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
}

// joinWatchers waits for every watcher goroutine started by WatchModule to
// exit, or for ctx to be done, whichever comes first. It reuses the Base's
// WaitGroup (AddGoroutine/DoneGoroutine) rather than tracking watcher
// goroutines with one of Host's own, since that is exactly the bookkeeping
// serverbase.Base already provides for "goroutines owned by this
// component's lifecycle."
func (h *Host) joinWatchers(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		h.base.WaitForShutdown()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		h.logf("joinWatchers: %v", ctx.Err())
	}
}
