// SPDX-License-Identifier: MPL-2.0

package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version, set via -ldflags at release build
	// time.
	Version = "dev"

	cfgFile        string
	modulesDir     string
	cacheDir       string
	listenAddr     string
	logLevel       string
	buildBackend   string
	containerImage string

	rootCmd = &cobra.Command{
		Use:   "modhostd",
		Short: "Hot-reloadable native module host",
		Long: `modhostd loads native and scripted modules from a directory tree of
module.cue manifests, runs each in its own worker, and keeps them
reloadable: edit a module's source, and the running host rebuilds and
swaps it in without restarting the process.`,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file; config.toml is read from its directory, then from $HOME/.config/modhostd")
	rootCmd.PersistentFlags().StringVar(&modulesDir, "modules-dir", "", "root directory to discover module.cue manifests under")
	rootCmd.PersistentFlags().StringVar(&cacheDir, "cache-dir", "", "compiled-module and control-file cache directory")
	rootCmd.PersistentFlags().StringVar(&listenAddr, "listen-addr", "", "status endpoint bind address, empty disables it")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn, or error")
	rootCmd.PersistentFlags().StringVar(&buildBackend, "build-backend", "", "local or container")
	rootCmd.PersistentFlags().StringVar(&containerImage, "container-image", "", "builder image to use when --build-backend=container")

	rootCmd.AddCommand(newRunCommand())
	rootCmd.AddCommand(newModulesCommand())
}

// Execute runs the root command via fang for styled help and usage.
func Execute() {
	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(Version),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		slog.Error("modhostd exited", "error", err)
		os.Exit(1)
	}
}
