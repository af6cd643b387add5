// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// LogLevelDebug enables debug-and-above log output.
	LogLevelDebug LogLevel = "debug"
	// LogLevelInfo enables info-and-above log output.
	LogLevelInfo LogLevel = "info"
	// LogLevelWarn enables warn-and-above log output.
	LogLevelWarn LogLevel = "warn"
	// LogLevelError enables only error log output.
	LogLevelError LogLevel = "error"

	// BuildBackendLocal compiles native modules with the go toolchain on
	// this host.
	BuildBackendLocal BuildBackend = "local"
	// BuildBackendContainer compiles native modules inside a disposable
	// container, via internal/container's Docker engine.
	BuildBackendContainer BuildBackend = "container"
)

var (
	// ErrInvalidLogLevel is the sentinel error wrapped by InvalidLogLevelError.
	ErrInvalidLogLevel = errors.New("invalid log level")
	// ErrInvalidModulesDir is the sentinel error wrapped by InvalidModulesDirError.
	ErrInvalidModulesDir = errors.New("invalid modules directory")
	// ErrInvalidCacheDir is the sentinel error wrapped by InvalidCacheDirError.
	ErrInvalidCacheDir = errors.New("invalid cache directory")
	// ErrInvalidListenAddr is the sentinel error wrapped by InvalidListenAddrError.
	ErrInvalidListenAddr = errors.New("invalid listen address")
	// ErrInvalidBuildBackend is the sentinel error wrapped by InvalidBuildBackendError.
	ErrInvalidBuildBackend = errors.New("invalid build backend")
)

type (
	// LogLevel selects the verbosity of host/container/driver logging.
	LogLevel string

	// BuildBackend selects how native modules get compiled.
	BuildBackend string

	// InvalidLogLevelError is returned when a LogLevel value is not
	// recognized. It wraps ErrInvalidLogLevel for errors.Is() compatibility.
	InvalidLogLevelError struct {
		Value LogLevel
	}

	// InvalidBuildBackendError is returned when a BuildBackend value is not
	// recognized. It wraps ErrInvalidBuildBackend for errors.Is() compatibility.
	InvalidBuildBackendError struct {
		Value BuildBackend
	}
)

// Validate returns nil if l is one of the defined log levels, or an error
// wrapping ErrInvalidLogLevel otherwise.
func (l LogLevel) Validate() error {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return nil
	default:
		return &InvalidLogLevelError{Value: l}
	}
}

func (e *InvalidLogLevelError) Error() string {
	return fmt.Sprintf("invalid log level %q (valid: debug, info, warn, error)", e.Value)
}

// Unwrap returns the sentinel error for errors.Is() compatibility.
func (e *InvalidLogLevelError) Unwrap() error { return ErrInvalidLogLevel }

// Validate returns nil if b is one of the defined build backends, or an
// error wrapping ErrInvalidBuildBackend otherwise.
func (b BuildBackend) Validate() error {
	switch b {
	case BuildBackendLocal, BuildBackendContainer:
		return nil
	default:
		return &InvalidBuildBackendError{Value: b}
	}
}

func (e *InvalidBuildBackendError) Error() string {
	return fmt.Sprintf("invalid build backend %q (valid: local, container)", e.Value)
}

// Unwrap returns the sentinel error for errors.Is() compatibility.
func (e *InvalidBuildBackendError) Unwrap() error { return ErrInvalidBuildBackend }

// nonBlank reports whether s contains any non-whitespace character.
func nonBlank(s string) bool {
	return strings.TrimSpace(s) != ""
}
