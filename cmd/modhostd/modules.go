// SPDX-License-Identifier: MPL-2.0

package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/modhost/modhost/internal/modhost"
)

func newModulesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "modules",
		Short: "Inspect and nudge a running modhostd daemon",
	}
	cmd.AddCommand(newModulesListCommand())
	cmd.AddCommand(newModulesReloadCommand())
	cmd.AddCommand(newModulesUnloadCommand())
	return cmd
}

func newModulesListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List loaded modules and pending work, via the status endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := fetchStatus()
			if err != nil {
				return err
			}
			fmt.Printf("host state: %s\n", status.State)
			for _, m := range status.Modules {
				if len(m.Dependencies) == 0 {
					fmt.Println(m.Name)
					continue
				}
				fmt.Printf("%s (depends on %v)\n", m.Name, m.Dependencies)
			}
			if len(status.PendingReloads) > 0 {
				fmt.Printf("pending reloads: %v\n", status.PendingReloads)
			}
			if len(status.PendingUnloads) > 0 {
				fmt.Printf("pending unloads: %v\n", status.PendingUnloads)
			}
			return nil
		},
	}
}

func newModulesReloadCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "reload <name>",
		Short: "Request a hot reload of a loaded module",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return dropControlSentinel(args[0] + ".reload")
		},
	}
}

func newModulesUnloadCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "unload <name>",
		Short: "Request that a loaded module be unloaded",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return dropControlSentinel(args[0] + ".unload")
		},
	}
}

func fetchStatus() (modhost.Status, error) {
	cfg, err := resolveConfig()
	if err != nil {
		return modhost.Status{}, err
	}
	if cfg.ListenAddr == "" {
		return modhost.Status{}, fmt.Errorf("modules list: no --listen-addr configured for the running daemon")
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(fmt.Sprintf("http://%s/status", cfg.ListenAddr))
	if err != nil {
		return modhost.Status{}, fmt.Errorf("modules list: query status endpoint: %w", err)
	}
	defer resp.Body.Close()

	var status modhost.Status
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return modhost.Status{}, fmt.Errorf("modules list: decode status response: %w", err)
	}
	return status, nil
}

// dropControlSentinel writes an empty sentinel file the running daemon's
// control-directory watcher (see control.go) picks up and translates into
// a ReloadModule or UnloadModule call.
func dropControlSentinel(name string) error {
	cfg, err := resolveConfig()
	if err != nil {
		return err
	}
	dir := filepath.Join(cfg.CacheDir, "control")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("write control sentinel: %w", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		return fmt.Errorf("write control sentinel: %w", err)
	}
	fmt.Printf("requested: %s\n", name)
	return nil
}
