// SPDX-License-Identifier: MPL-2.0

// Package hosterr defines the error taxonomy for the module host: sentinel
// errors that callers check with errors.Is, wrapped where useful with
// issue.ActionableError for operator-facing detail.
package hosterr

import (
	"errors"
	"fmt"

	"github.com/modhost/modhost/internal/issue"
)

var (
	// ErrModuleNotFound is returned when an operation names a module that is
	// not in the registry.
	ErrModuleNotFound = errors.New("module not found")

	// ErrTargetModuleNotAvailable is returned when a direct call targets a
	// module whose worker has been asked to stop (the module is being
	// unloaded or the host is shutting down). A name that is not loaded at
	// all yields ErrModuleNotFound instead.
	ErrTargetModuleNotAvailable = errors.New("target module not available")

	// ErrBuildFailed is returned when the compiler adapter reports a
	// non-zero build result.
	ErrBuildFailed = errors.New("module build failed")

	// ErrLoadFailed is returned when a built module's factory symbol could
	// not be resolved or invoked.
	ErrLoadFailed = errors.New("module load failed")

	// ErrInvalidAccess is returned when the access policy rejects a direct
	// call because it would create a cycle in the synchronous call graph.
	ErrInvalidAccess = errors.New("invalid cross-module access")

	// ErrEventHandlerException is returned when a subscriber's event
	// callback panics or returns an error; the panic is recovered and
	// reported through this sentinel rather than crashing the worker.
	ErrEventHandlerException = errors.New("event handler exception")

	// ErrDirectCallbackException is returned when a callee's direct-call
	// callback panics or returns an error.
	ErrDirectCallbackException = errors.New("direct callback exception")
)

// NotAvailableError carries the target and caller module names for an
// ErrTargetModuleNotAvailable failure so callers can both errors.Is and
// extract detail.
type NotAvailableError struct {
	Target string
	Caller string
	Reason string
}

func (e *NotAvailableError) Error() string {
	return fmt.Sprintf("module %q is not available to caller %q: %s", e.Target, e.Caller, e.Reason)
}

func (e *NotAvailableError) Unwrap() error { return ErrTargetModuleNotAvailable }

// AccessError carries the caller/target pair and the dependency-policy
// reason for an ErrInvalidAccess failure.
type AccessError struct {
	Caller string
	Target string
	Reason string
}

func (e *AccessError) Error() string {
	return fmt.Sprintf("module %q may not directly call %q: %s", e.Caller, e.Target, e.Reason)
}

func (e *AccessError) Unwrap() error { return ErrInvalidAccess }

// ModuleNotFound builds an ActionableError for a missing module lookup.
func ModuleNotFound(name string) error {
	return issue.NewErrorContext().
		WithOperation("resolve module").
		WithResource(name).
		WithSuggestion("load the module before referencing it").
		Wrap(ErrModuleNotFound).
		BuildError()
}

// BuildFailed builds an ActionableError for a failed compile, chaining the
// underlying compiler error as the cause.
func BuildFailed(module string, cause error) error {
	return issue.NewErrorContext().
		WithOperation("build module").
		WithResource(module).
		WithSuggestion("inspect the compiler output above for details").
		Wrap(fmt.Errorf("%w: %w", ErrBuildFailed, cause)).
		BuildError()
}

// LoadFailed builds an ActionableError for a module whose factory symbol
// could not be resolved or invoked.
func LoadFailed(module string, cause error) error {
	return issue.NewErrorContext().
		WithOperation("load module").
		WithResource(module).
		WithSuggestion("verify the module exports CreateModule with the expected signature").
		Wrap(fmt.Errorf("%w: %w", ErrLoadFailed, cause)).
		BuildError()
}
