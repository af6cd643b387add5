// SPDX-License-Identifier: MPL-2.0

package buildcache

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/modhost/modhost/internal/container"
)

// ContainerCompiler builds modules inside a container instead of on the
// host, using a Docker image with the Go toolchain preinstalled. This is
// the sandboxed build path hinted at by spec.md's Non-goals: the Non-goal
// excludes sandboxed *execution* of loaded modules, not sandboxed
// compilation, so a containerized compiler adapter remains in scope.
type ContainerCompiler struct {
	Engine      container.Engine
	Image       string
	OutputMount string // host directory that DstPath's parent must live under
}

// NewContainerCompiler wraps engine with the given builder image.
func NewContainerCompiler(engine container.Engine, image string) *ContainerCompiler {
	return &ContainerCompiler{Engine: engine, Image: image}
}

// Build implements Compiler by running "go build -buildmode=plugin" inside
// a disposable container with req.SrcDir and the artifact's destination
// directory bind-mounted.
func (c *ContainerCompiler) Build(ctx context.Context, req BuildRequest) error {
	if ok, err := c.Engine.ImageExists(ctx, c.Image); err != nil {
		return fmt.Errorf("buildcache: check builder image %s: %w", c.Image, err)
	} else if !ok {
		return fmt.Errorf("buildcache: builder image %s not present; pull or build it first", c.Image)
	}

	const srcMount = "/src"
	const outMount = "/out"

	result, err := c.Engine.Run(ctx, container.RunOptions{
		Image:   c.Image,
		Command: []string{"go", "build", "-buildmode=plugin", "-o", outMount + "/" + filepath.Base(req.DstPath), "."},
		WorkDir: srcMount,
		Volumes: []string{
			req.SrcDir + ":" + srcMount + ":ro",
			filepath.Dir(req.DstPath) + ":" + outMount,
		},
		Remove: true,
		Name:   "modhost-build-" + req.ModuleName,
		Stdout: req.Stdout,
		Stderr: req.Stderr,
	})
	if err != nil {
		return fmt.Errorf("buildcache: run builder container for %s: %w", req.ModuleName, err)
	}
	if result.ExitCode != 0 {
		return fmt.Errorf("buildcache: build %s exited with status %d", req.ModuleName, result.ExitCode)
	}
	return nil
}
