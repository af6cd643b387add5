// SPDX-License-Identifier: MPL-2.0

package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/modhost/modhost/internal/modhost"
	"github.com/modhost/modhost/internal/modmeta"
	"github.com/modhost/modhost/internal/watch"
)

// shutdownGrace bounds how long Run waits for every container and watcher
// to join during teardown before giving up and exiting anyway.
const shutdownGrace = 10 * time.Second

// watchControlDir watches dir for sentinel files dropped by the CLI's
// "modules reload"/"modules unload" commands: <name>.reload and
// <name>.unload. Each sentinel is consumed (removed) and translated into
// the matching Host call. This keeps the daemon's network surface
// read-only (internal/statusapi) while still giving operators a way to
// nudge it without restarting the process.
func watchControlDir(ctx context.Context, host *modhost.Host, dir string, infos map[string]modmeta.ModuleInfo, logger *log.Logger) (func(), error) {
	w, err := watch.New(watch.Config{
		BaseDir: dir,
		Debounce: 50 * time.Millisecond,
		OnChange: func(_ context.Context, changed []string) error {
			for _, rel := range changed {
				handleControlFile(host, dir, rel, infos, logger)
			}
			return nil
		},
	})
	if err != nil {
		return nil, err
	}

	watchCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := w.Run(watchCtx); err != nil {
			logger.Errorf("control dir watch: %v", err)
		}
	}()

	return func() {
		cancel()
		<-done
	}, nil
}

func handleControlFile(host *modhost.Host, dir, rel string, infos map[string]modmeta.ModuleInfo, logger *log.Logger) {
	path := filepath.Join(dir, rel)
	defer os.Remove(path)

	switch {
	case strings.HasSuffix(rel, ".reload"):
		name := strings.TrimSuffix(rel, ".reload")
		info, ok := infos[name]
		if !ok {
			logger.Warnf("control: reload requested for unknown module %q", name)
			return
		}
		host.ReloadModule(info)
	case strings.HasSuffix(rel, ".unload"):
		name := strings.TrimSuffix(rel, ".unload")
		host.UnloadModule(name)
	}
}
