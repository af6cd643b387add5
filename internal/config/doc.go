// SPDX-License-Identifier: MPL-2.0

// Package config loads and validates the modhostd server configuration
// from flags, environment variables, and a TOML file, in that priority
// order, via spf13/viper.
package config
