// SPDX-License-Identifier: MPL-2.0

package buildcache

import (
	"context"
	"io"
)

// BuildRequest describes one module's compile job: its source directory,
// the desired output path, and any extra compiler/linker flags from its
// module.cue manifest.
type BuildRequest struct {
	ModuleName string
	SrcDir     string
	DstPath    string
	CXXFlags   []string
	LDFlags    []string
	Stdout     io.Writer
	Stderr     io.Writer
}

// Compiler is an opaque "build(name, src, dst, flags) -> ok" service. The
// cache does not care whether the implementation invokes the local Go
// toolchain or a containerized one, only whether the build succeeded and
// produced DstPath.
type Compiler interface {
	// Build compiles req.SrcDir into req.DstPath, a Go plugin (.so) ready
	// for plugin.Open. It returns an error if the build failed; the cache
	// never writes a sidecar hash file for a failed build.
	Build(ctx context.Context, req BuildRequest) error
}
