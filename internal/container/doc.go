// SPDX-License-Identifier: MPL-2.0

// Package container provides a minimal abstraction over the Docker CLI, used
// by internal/buildcache to compile module sources inside a disposable
// container instead of invoking a local toolchain directly.
//
// The surface is intentionally narrow: Build (produce a compiler image) and
// Run (invoke the compiler inside a container). There is no container
// lifecycle management beyond that — the build cache only needs an opaque
// "compile this source tree into that shared object" service, so Engine does
// not expose volumes-as-first-class-objects, networking, or exec-into-running
// container.
package container
