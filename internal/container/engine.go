// SPDX-License-Identifier: MPL-2.0

package container

import (
	"context"
	"fmt"
	"io"
)

// Engine is a container runtime capable of building a compiler image and
// running a build command inside it. buildcache.ContainerCompiler is the
// only caller; it treats Engine as an opaque build(src, dst) -> ok service.
type Engine interface {
	// Name returns the engine name ("docker").
	Name() string
	// Available reports whether the engine's CLI is reachable on this host.
	Available() bool
	// Version returns the engine's server version string.
	Version(ctx context.Context) (string, error)

	// Build builds an image from a Dockerfile.
	Build(ctx context.Context, opts BuildOptions) error
	// Run runs a command in a container and waits for it to exit.
	Run(ctx context.Context, opts RunOptions) (*RunResult, error)
	// ImageExists reports whether an image is present in local storage.
	ImageExists(ctx context.Context, image string) (bool, error)
	// RemoveImage removes an image from local storage.
	RemoveImage(ctx context.Context, image string, force bool) error
}

// BuildOptions contains options for building a compiler image.
type BuildOptions struct {
	ContextDir string
	Dockerfile string
	Tag        string
	BuildArgs  map[string]string
	NoCache    bool
	Stdout     io.Writer
	Stderr     io.Writer
}

// RunOptions contains options for running the compiler inside a container.
type RunOptions struct {
	Image   string
	Command []string
	WorkDir string
	Env     map[string]string
	// Volumes are bind mounts in "host:container" form. buildcache mounts the
	// module's source directory and the build-cache output directory.
	Volumes []string
	Remove  bool
	Name    string
	Stdout  io.Writer
	Stderr  io.Writer
}

// RunResult contains the result of running a container to completion.
type RunResult struct {
	ContainerID string
	ExitCode    int
	Error       error
}

// ErrEngineNotAvailable is returned when the container engine's CLI could
// not be found or does not respond.
type ErrEngineNotAvailable struct {
	Engine string
	Reason string
}

func (e *ErrEngineNotAvailable) Error() string {
	return fmt.Sprintf("container engine %q is not available: %s", e.Engine, e.Reason)
}

// AutoDetectEngine returns the Docker engine if its CLI is reachable.
func AutoDetectEngine() (Engine, error) {
	docker := NewDockerEngine()
	if docker.Available() {
		return docker, nil
	}
	return nil, &ErrEngineNotAvailable{
		Engine: "docker",
		Reason: "docker CLI not found or daemon not responding",
	}
}
