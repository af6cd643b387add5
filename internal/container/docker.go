// SPDX-License-Identifier: MPL-2.0

package container

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// DockerEngine implements Engine using the docker CLI binary.
type DockerEngine struct {
	binaryPath string
}

// NewDockerEngine locates the docker binary on PATH, if present.
func NewDockerEngine() *DockerEngine {
	path, _ := exec.LookPath("docker")
	return &DockerEngine{binaryPath: path}
}

func (e *DockerEngine) Name() string { return "docker" }

func (e *DockerEngine) Available() bool {
	if e.binaryPath == "" {
		return false
	}
	cmd := exec.CommandContext(context.Background(), e.binaryPath, "version", "--format", "{{.Server.Version}}")
	return cmd.Run() == nil
}

func (e *DockerEngine) Version(ctx context.Context) (string, error) {
	out, err := e.output(ctx, "version", "--format", "{{.Server.Version}}")
	if err != nil {
		return "", fmt.Errorf("docker version: %w", err)
	}
	return strings.TrimSpace(out), nil
}

func (e *DockerEngine) Build(ctx context.Context, opts BuildOptions) error {
	args := []string{"build", "-t", opts.Tag}
	if opts.Dockerfile != "" {
		args = append(args, "-f", opts.Dockerfile)
	}
	if opts.NoCache {
		args = append(args, "--no-cache")
	}
	for k, v := range opts.BuildArgs {
		args = append(args, "--build-arg", k+"="+v)
	}
	args = append(args, opts.ContextDir)

	cmd := exec.CommandContext(ctx, e.binaryPath, args...)
	cmd.Stdout = opts.Stdout
	cmd.Stderr = opts.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("docker build %s: %w", opts.Tag, err)
	}
	return nil
}

func (e *DockerEngine) Run(ctx context.Context, opts RunOptions) (*RunResult, error) {
	args := []string{"run"}
	if opts.Remove {
		args = append(args, "--rm")
	}
	if opts.Name != "" {
		args = append(args, "--name", opts.Name)
	}
	if opts.WorkDir != "" {
		args = append(args, "-w", opts.WorkDir)
	}
	for k, v := range opts.Env {
		args = append(args, "-e", k+"="+v)
	}
	for _, v := range opts.Volumes {
		args = append(args, "-v", v)
	}
	args = append(args, opts.Image)
	args = append(args, opts.Command...)

	cmd := exec.CommandContext(ctx, e.binaryPath, args...)
	cmd.Stdout = opts.Stdout
	cmd.Stderr = opts.Stderr

	result := &RunResult{}
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		} else {
			result.ExitCode = 1
			result.Error = err
		}
	}
	return result, nil
}

func (e *DockerEngine) ImageExists(ctx context.Context, image string) (bool, error) {
	cmd := exec.CommandContext(ctx, e.binaryPath, "image", "inspect", image)
	return cmd.Run() == nil, nil
}

func (e *DockerEngine) RemoveImage(ctx context.Context, image string, force bool) error {
	args := []string{"image", "rm"}
	if force {
		args = append(args, "-f")
	}
	args = append(args, image)
	cmd := exec.CommandContext(ctx, e.binaryPath, args...)
	return cmd.Run()
}

func (e *DockerEngine) output(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, e.binaryPath, args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return "", err
	}
	return out.String(), nil
}
