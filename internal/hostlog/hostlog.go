// SPDX-License-Identifier: MPL-2.0

// Package hostlog wraps charmbracelet/log for structured, leveled logging
// of host, container, and driver activity.
package hostlog

import (
	"io"
	"os"

	"github.com/charmbracelet/log"
)

// Logger is the structured logger used throughout internal/modhost.
type Logger = log.Logger

// New creates a Logger writing to w (os.Stderr if nil) with the given
// level and a "modhost" prefix, in the same style used by long-running
// server processes.
func New(w io.Writer, level log.Level) *Logger {
	if w == nil {
		w = os.Stderr
	}
	l := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		Level:           level,
		Prefix:          "modhost",
	})
	return l
}

// NewNop returns a Logger that discards all output, for tests.
func NewNop() *Logger {
	return log.NewWithOptions(io.Discard, log.Options{})
}
