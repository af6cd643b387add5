// SPDX-License-Identifier: MPL-2.0

package buildcache

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"plugin"
)

// FactorySymbol is the name every native module plugin must export. The
// original ABI resolved a per-module symbol named createModule_<name>; Go's
// plugin package instead resolves a single well-known exported identifier,
// so every module exports the same symbol name and takes its own identity
// from the manifest that loaded it, not from the symbol name.
const FactorySymbol = "CreateModule"

// Factory is the signature every module plugin must export as CreateModule.
// name is the module's own name, so a single factory function can be reused
// across differently-named module instances if desired.
type Factory func(name string) (any, error)

// Cache compiles module source directories into Go plugins, skipping
// recompilation when the source directory's content hash matches the hash
// recorded for the existing artifact.
type Cache struct {
	Compiler Compiler
	// Dir is where built .so artifacts and their .hash sidecars are stored.
	Dir string
}

// New creates a Cache backed by compiler, writing artifacts under dir.
func New(compiler Compiler, dir string) *Cache {
	return &Cache{Compiler: compiler, Dir: dir}
}

// Result describes the outcome of a Compile call.
type Result struct {
	ArtifactPath string
	Rebuilt      bool
	SourceHash   string
}

// Compile ensures a built plugin exists for the module source at srcDir,
// rebuilding only if the content hash of srcDir has changed since the last
// successful build recorded for this module name.
func (c *Cache) Compile(ctx context.Context, moduleName, srcDir string, cxxflags, ldflags []string, stdout, stderr io.Writer) (*Result, error) {
	if err := os.MkdirAll(c.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("buildcache: create cache dir: %w", err)
	}

	hash, err := HashDir(srcDir)
	if err != nil {
		return nil, err
	}

	artifactPath := filepath.Join(c.Dir, fmt.Sprintf("%s_%s.so", moduleName, hash[:12]))

	if readSidecar(artifactPath) == hash {
		if _, statErr := os.Stat(artifactPath); statErr == nil {
			return &Result{ArtifactPath: artifactPath, Rebuilt: false, SourceHash: hash}, nil
		}
		// Sidecar exists but artifact is gone; fall through and rebuild.
	}

	req := BuildRequest{
		ModuleName: moduleName,
		SrcDir:     srcDir,
		DstPath:    artifactPath,
		CXXFlags:   cxxflags,
		LDFlags:    ldflags,
		Stdout:     stdout,
		Stderr:     stderr,
	}
	if err := c.Compiler.Build(ctx, req); err != nil {
		return nil, err
	}
	if err := writeSidecar(artifactPath, hash); err != nil {
		return nil, fmt.Errorf("buildcache: write hash sidecar for %s: %w", moduleName, err)
	}

	return &Result{ArtifactPath: artifactPath, Rebuilt: true, SourceHash: hash}, nil
}

// LoadFactory opens the plugin at artifactPath and resolves its
// FactorySymbol. Each call to plugin.Open on the same path after the first
// returns the already-loaded plugin: this is process-lifetime dlopen
// semantics, so a module, once loaded into the address space, cannot be
// truly unloaded until process exit.
func LoadFactory(artifactPath string) (Factory, error) {
	p, err := plugin.Open(artifactPath)
	if err != nil {
		return nil, fmt.Errorf("buildcache: open plugin %s: %w", artifactPath, err)
	}
	sym, err := p.Lookup(FactorySymbol)
	if err != nil {
		return nil, fmt.Errorf("buildcache: lookup %s in %s: %w", FactorySymbol, artifactPath, err)
	}
	factory, ok := sym.(func(string) (any, error))
	if !ok {
		return nil, fmt.Errorf("buildcache: %s in %s has unexpected signature %T", FactorySymbol, artifactPath, sym)
	}
	return Factory(factory), nil
}
