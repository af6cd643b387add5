// SPDX-License-Identifier: MPL-2.0

package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// AppName is the application name used to derive default paths.
	AppName = "modhostd"
	// EnvPrefix is the prefix viper uses for environment variable binding,
	// e.g. MODHOST_MODULES_DIR.
	EnvPrefix = "MODHOST"
	// ConfigFileName is the name of the config file, without extension.
	ConfigFileName = "config"
	// ConfigFileExt is the config file format viper parses it as.
	ConfigFileExt = "toml"
)

// Config is the fully resolved, validated modhostd configuration.
type Config struct {
	// ListenAddr is the bind address for the optional status/introspection
	// endpoint. Empty disables it.
	ListenAddr string

	// ModulesDir is the root directory modmeta.Discover walks to find
	// module.cue manifests.
	ModulesDir string

	// CacheDir is the directory buildcache stores compiled artifacts and
	// source-hash sidecar files in.
	CacheDir string

	// CompilerCmd is the go binary (or wrapper) used by the local compiler
	// backend to build native modules.
	CompilerCmd string

	// BuildBackend selects how native modules get compiled: "local" runs
	// CompilerCmd directly on this host, "container" runs it inside a
	// disposable container via ContainerImage instead.
	BuildBackend BuildBackend

	// ContainerImage is the builder image ContainerCompiler runs when
	// BuildBackend is "container". Must already have the Go toolchain
	// installed.
	ContainerImage string

	// ExtraCXXFlags and ExtraLDFlags are appended to the own build flags of
	// every module cmd/modhostd run discovers under ModulesDir, for
	// host-wide build customization.
	ExtraCXXFlags []string
	ExtraLDFlags  []string

	// LogLevel controls host/container/driver log verbosity.
	LogLevel LogLevel

	// WatchDebounceMS is a file-watch debounce window, in milliseconds. It is
	// loaded and defaulted here but not applied: Host.WatchModule takes no
	// debounce, so module watches use internal/watch's default, and the
	// control-directory watch uses a fixed 50ms.
	WatchDebounceMS int
}

// Default returns a Config populated with built-in defaults, before any
// flag, environment, or file override is applied.
func Default() Config {
	cacheDir := filepath.Join(os.TempDir(), AppName, "cache")
	return Config{
		ListenAddr:      "",
		ModulesDir:      "./modules",
		CacheDir:        cacheDir,
		CompilerCmd:     "go",
		BuildBackend:    "local",
		LogLevel:        LogLevelInfo,
		WatchDebounceMS: 500,
	}
}

// Load resolves a Config from, in priority order: flags already bound on
// flagSet, environment variables prefixed with EnvPrefix, a TOML file
// named ConfigFileName found on viper's search path, then the built-in
// defaults. flagSet may be nil to skip flag binding (e.g. in tests).
func Load(flagSet *pflag.FlagSet, configPaths ...string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	def := Default()
	v.SetDefault("listen_addr", def.ListenAddr)
	v.SetDefault("modules_dir", def.ModulesDir)
	v.SetDefault("cache_dir", def.CacheDir)
	v.SetDefault("compiler_cmd", def.CompilerCmd)
	v.SetDefault("build_backend", string(def.BuildBackend))
	v.SetDefault("container_image", def.ContainerImage)
	v.SetDefault("log_level", string(def.LogLevel))
	v.SetDefault("watch_debounce_ms", def.WatchDebounceMS)

	v.SetConfigName(ConfigFileName)
	v.SetConfigType(ConfigFileExt)
	for _, p := range configPaths {
		v.AddConfigPath(p)
	}
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", AppName))
	}

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return Config{}, fmt.Errorf("config: read config file: %w", err)
		}
	}

	if flagSet != nil {
		if err := v.BindPFlags(flagSet); err != nil {
			return Config{}, fmt.Errorf("config: bind flags: %w", err)
		}
	}

	cfg := Config{
		ListenAddr:      v.GetString("listen_addr"),
		ModulesDir:      v.GetString("modules_dir"),
		CacheDir:        v.GetString("cache_dir"),
		CompilerCmd:     v.GetString("compiler_cmd"),
		BuildBackend:    BuildBackend(v.GetString("build_backend")),
		ContainerImage:  v.GetString("container_image"),
		ExtraCXXFlags:   v.GetStringSlice("extra_cxxflags"),
		ExtraLDFlags:    v.GetStringSlice("extra_ldflags"),
		LogLevel:        LogLevel(v.GetString("log_level")),
		WatchDebounceMS: v.GetInt("watch_debounce_ms"),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every field with a defined constraint, returning the
// first violation found.
func (c Config) Validate() error {
	if err := c.LogLevel.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := c.BuildBackend.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.BuildBackend == BuildBackendContainer && !nonBlank(c.ContainerImage) {
		return fmt.Errorf("config: %w: container_image is blank", ErrInvalidBuildBackend)
	}
	if !nonBlank(c.ModulesDir) {
		return fmt.Errorf("config: %w: modules_dir is blank", ErrInvalidModulesDir)
	}
	if !nonBlank(c.CacheDir) {
		return fmt.Errorf("config: %w: cache_dir is blank", ErrInvalidCacheDir)
	}
	if c.ListenAddr != "" {
		if _, _, err := net.SplitHostPort(c.ListenAddr); err != nil {
			return fmt.Errorf("config: %w: %v", ErrInvalidListenAddr, err)
		}
	}
	return nil
}
