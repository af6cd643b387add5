// SPDX-License-Identifier: MPL-2.0

package modhost

import (
	"context"

	"github.com/modhost/modhost/internal/buildcache"
	"github.com/modhost/modhost/internal/modmeta"
)

// ModuleInfo is the host's descriptive record for a module: its name,
// source path, and manifest metadata (dependencies, build flags, the
// native-build-disabled flag). It is immutable once stored in the
// registry; reload replaces the entry rather than mutating it.
type ModuleInfo = modmeta.ModuleInfo

// ModuleDependency names a module that must be loaded before the
// depending module.
type ModuleDependency = modmeta.ModuleDependency

// callerContextKey is the context key used to carry the identity of the
// module whose worker goroutine is making an AccessModule call.
// context.Context is how identity rides along a logical call chain in Go,
// not a goroutine-local variable, since a direct call's execution happens
// on a different goroutine than the one that issued it.
type callerContextKey struct{}

// WithCallerName returns a context carrying name as the identity of the
// calling module, for use by AccessModule's access-policy check and by
// nested direct calls that need to know who initiated them.
func WithCallerName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, callerContextKey{}, name)
}

// CallerName extracts the calling module's identity from ctx, if any. The
// driver thread and other host-internal callers have no caller identity.
func CallerName(ctx context.Context) (string, bool) {
	name, ok := ctx.Value(callerContextKey{}).(string)
	return name, ok
}

// buildResultContextKey carries the compile result LoadModule produced for
// this call into the Factory it invokes, so a native factory can find the
// artifact it is supposed to plugin.Open without LoadModule having to know
// anything about plugin loading itself.
type buildResultContextKey struct{}

func withBuildResult(ctx context.Context, result *buildcache.Result) context.Context {
	return context.WithValue(ctx, buildResultContextKey{}, result)
}

// BuildResultFromContext extracts the buildcache.Result produced for the
// current LoadModule call, if the module was built (DisableNativeBuild is
// false and the Host has a compiler configured). A Factory for native
// modules calls this to locate the artifact to plugin.Open.
func BuildResultFromContext(ctx context.Context) (*buildcache.Result, bool) {
	result, ok := ctx.Value(buildResultContextKey{}).(*buildcache.Result)
	return result, ok
}
