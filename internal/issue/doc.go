// SPDX-License-Identifier: MPL-2.0

// Package issue provides ActionableError, an error type that carries the
// operation that failed, the resource involved, and remediation suggestions
// alongside the underlying cause. internal/hosterr builds its sentinel error
// taxonomy on top of it.
package issue
