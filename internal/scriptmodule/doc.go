// SPDX-License-Identifier: MPL-2.0

// Package scriptmodule implements modhost.Module for modules whose manifest
// sets DisableNativeBuild: instead of compiling and loading a Go plugin, the
// module's behavior is a directory of POSIX shell scripts run in-process by
// mvdan.cc/sh/v3, one script per subscribed event plus optional init.sh and
// close.sh lifecycle hooks.
package scriptmodule
