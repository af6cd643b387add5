// SPDX-License-Identifier: MPL-2.0

package buildcache

import (
	"context"
	"fmt"
	"io"
	"os/exec"

	"github.com/creack/pty"
)

// LocalCompiler builds modules with the Go toolchain already installed on
// the host, via "go build -buildmode=plugin". It is the default Compiler
// used when no containerized backend is configured.
type LocalCompiler struct {
	// GoBin is the path to the go binary. Empty uses "go" from PATH.
	GoBin string
	// Verbose streams the build through a pseudo-TTY so "go build -x"-style
	// diagnostics render with their usual progress behavior instead of being
	// fully buffered, mirroring a developer running the build by hand.
	Verbose bool
}

// NewLocalCompiler returns a LocalCompiler that invokes "go" from PATH.
func NewLocalCompiler() *LocalCompiler {
	return &LocalCompiler{GoBin: "go"}
}

func (c *LocalCompiler) goBin() string {
	if c.GoBin == "" {
		return "go"
	}
	return c.GoBin
}

// Build implements Compiler.
func (c *LocalCompiler) Build(ctx context.Context, req BuildRequest) error {
	args := []string{"build", "-buildmode=plugin", "-o", req.DstPath}
	if c.Verbose {
		args = append(args, "-x")
	}
	args = append(args, req.LDFlags...)
	args = append(args, ".")

	cmd := exec.CommandContext(ctx, c.goBin(), args...)
	cmd.Dir = req.SrcDir
	cmd.Env = append(cmd.Environ(), req.CXXFlags...)

	if c.Verbose {
		return c.runWithPTY(cmd, req.Stdout)
	}

	cmd.Stdout = req.Stdout
	cmd.Stderr = req.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("buildcache: go build %s: %w", req.ModuleName, err)
	}
	return nil
}

// runWithPTY attaches the build command to a pseudo-TTY so its output
// streams incrementally to w, then waits for completion.
func (c *LocalCompiler) runWithPTY(cmd *exec.Cmd, w io.Writer) error {
	f, err := pty.Start(cmd)
	if err != nil {
		return fmt.Errorf("buildcache: start pty: %w", err)
	}
	defer f.Close()

	if w != nil {
		_, _ = io.Copy(w, f)
	}

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("buildcache: go build: %w", err)
	}
	return nil
}
