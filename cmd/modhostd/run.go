// SPDX-License-Identifier: MPL-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/modhost/modhost/internal/buildcache"
	"github.com/modhost/modhost/internal/config"
	"github.com/modhost/modhost/internal/container"
	"github.com/modhost/modhost/internal/hostlog"
	"github.com/modhost/modhost/internal/modhost"
	"github.com/modhost/modhost/internal/modmeta"
	"github.com/modhost/modhost/internal/scriptmodule"
	"github.com/modhost/modhost/internal/statusapi"
)

func newRunCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Discover modules and run the host until signaled to stop",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHost(cmd.Context())
		},
	}
}

func runHost(ctx context.Context) error {
	cfg, err := resolveConfig()
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}

	level, _ := log.ParseLevel(string(cfg.LogLevel))
	logger := hostlog.New(os.Stderr, level)

	discovered, err := modmeta.Discover(cfg.ModulesDir)
	if err != nil {
		return fmt.Errorf("run: discover modules under %s: %w", cfg.ModulesDir, err)
	}
	infos := make([]modmeta.ModuleInfo, len(discovered))
	for i, info := range discovered {
		infos[i] = *info
		infos[i].CXXFlags = append(append([]string(nil), info.CXXFlags...), cfg.ExtraCXXFlags...)
		infos[i].LDFlags = append(append([]string(nil), info.LDFlags...), cfg.ExtraLDFlags...)
	}

	backend, err := newCompiler(cfg)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}
	compiler := buildcache.New(backend, cfg.CacheDir)
	host := modhost.New(modhost.WithLogger(logger), modhost.WithCompiler(compiler))

	byName := make(map[string]modmeta.ModuleInfo, len(infos))
	for _, info := range infos {
		byName[info.Name] = info
	}

	for _, info := range orderByDependencies(infos) {
		factory := nativeFactory()
		if info.DisableNativeBuild {
			factory = scriptmodule.NewFactory(info.SourceDir)
		}
		if err := host.LoadModule(ctx, info, factory); err != nil {
			return fmt.Errorf("run: load module %q: %w", info.Name, err)
		}
		if err := host.WatchModule(ctx, info.Name, info.SourceDir, nil); err != nil {
			logger.Warnf("watch module %s: %v", info.Name, err)
		}
	}

	// Every statically discovered module is loaded now; give them a chance
	// to load further modules of their own (e.g. in response to config they
	// only had access to after Init) before the host starts running.
	host.EmitEventSync(ctx, "core:load_modules", nil)

	controlDir := filepath.Join(cfg.CacheDir, "control")
	if err := os.MkdirAll(controlDir, 0o755); err != nil {
		return fmt.Errorf("run: create control dir: %w", err)
	}
	stopControl, err := watchControlDir(ctx, host, controlDir, byName, logger)
	if err != nil {
		return fmt.Errorf("run: watch control dir: %w", err)
	}
	defer stopControl()

	var statusSrv *http.Server
	if cfg.ListenAddr != "" {
		statusSrv = &http.Server{Addr: cfg.ListenAddr, Handler: statusapi.NewHandler(host, logger)}
		go func() {
			if err := statusSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Errorf("status endpoint: %v", err)
			}
		}()
		defer statusSrv.Close()
	}

	sigCtx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Every module is listening now, so it's safe to tell them the host is
	// about to start running its regular driver loop.
	host.EmitEventSync(sigCtx, "core:start", nil)

	code, reason, runErr := host.Run(sigCtx)
	if runErr != nil {
		logger.Errorf("run: %v", runErr)
	}
	if reason != "" {
		logger.Infof("shutting down: %s", reason)
	}

	host.ThreadRequestStop()
	joinCtx, joinCancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer joinCancel()
	if err := host.ThreadJoin(joinCtx); err != nil {
		logger.Errorf("shutdown: %v", err)
	}

	if code != 0 {
		os.Exit(code)
	}
	return nil
}

func resolveConfig() (config.Config, error) {
	var searchPaths []string
	if cfgFile != "" {
		searchPaths = append(searchPaths, filepath.Dir(cfgFile))
	}
	cfg, err := config.Load(nil, searchPaths...)
	if err != nil {
		return config.Config{}, err
	}
	if modulesDir != "" {
		cfg.ModulesDir = modulesDir
	}
	if cacheDir != "" {
		cfg.CacheDir = cacheDir
	}
	if listenAddr != "" {
		cfg.ListenAddr = listenAddr
	}
	if logLevel != "" {
		cfg.LogLevel = config.LogLevel(logLevel)
	}
	if buildBackend != "" {
		cfg.BuildBackend = config.BuildBackend(buildBackend)
	}
	if containerImage != "" {
		cfg.ContainerImage = containerImage
	}
	return cfg, cfg.Validate()
}

// newCompiler builds the Compiler backend cfg selects: the local go
// toolchain, or a sandboxed container engine running ContainerImage.
func newCompiler(cfg config.Config) (buildcache.Compiler, error) {
	switch cfg.BuildBackend {
	case config.BuildBackendContainer:
		engine, err := container.AutoDetectEngine()
		if err != nil {
			return nil, fmt.Errorf("build backend %q: %w", cfg.BuildBackend, err)
		}
		return buildcache.NewContainerCompiler(engine, cfg.ContainerImage), nil
	default:
		local := buildcache.NewLocalCompiler()
		local.GoBin = cfg.CompilerCmd
		return local, nil
	}
}

// orderByDependencies returns infos sorted so every module's dependencies
// appear before it, using the same dependency edges Host.LoadModule will
// register with its access policy. Every module appears exactly once. On a
// dependency cycle, the modules of the cycle come out in whatever order the
// depth-first walk reaches them, so one of them precedes a dependency of
// its own; LoadModule will still succeed (access-policy load order only
// matters for CanCall, not for loadability) but direct calls between them
// may be rejected.
func orderByDependencies(infos []modmeta.ModuleInfo) []modmeta.ModuleInfo {
	byName := make(map[string]modmeta.ModuleInfo, len(infos))
	for _, info := range infos {
		byName[info.Name] = info
	}

	var ordered []modmeta.ModuleInfo
	visited := make(map[string]bool)
	var visit func(name string)
	visit = func(name string) {
		if visited[name] {
			return
		}
		visited[name] = true
		info, ok := byName[name]
		if !ok {
			return
		}
		for _, dep := range info.Dependencies {
			visit(dep.Module)
		}
		ordered = append(ordered, info)
	}
	for _, info := range infos {
		visit(info.Name)
	}
	return ordered
}

// nativeFactory constructs modules compiled as Go plugins: it reads the
// buildcache.Result LoadModule stashed in ctx, opens the resulting plugin,
// and looks up its exported CreateModule symbol.
func nativeFactory() modhost.Factory {
	return func(ctx context.Context, name string) (modhost.Module, error) {
		result, ok := modhost.BuildResultFromContext(ctx)
		if !ok {
			return nil, fmt.Errorf("run: module %q: no compiled artifact available; is the compiler configured?", name)
		}
		pluginFactory, err := buildcache.LoadFactory(result.ArtifactPath)
		if err != nil {
			return nil, fmt.Errorf("run: module %q: %w", name, err)
		}
		instance, err := pluginFactory(name)
		if err != nil {
			return nil, fmt.Errorf("run: module %q: CreateModule: %w", name, err)
		}
		module, ok := instance.(modhost.Module)
		if !ok {
			return nil, fmt.Errorf("run: module %q: plugin's CreateModule did not return a modhost.Module", name)
		}
		return module, nil
	}
}
