// SPDX-License-Identifier: MPL-2.0

// Package modmeta parses and validates module.cue manifests and discovers
// module source directories on disk.
package modmeta

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "embed"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

//go:embed schema.cue
var schemaSource string

type (
	// ModuleDependency names a module that must be loaded before the
	// depending module, per spec.md's dependency model.
	ModuleDependency struct {
		Module  string `json:"module"`
		Version string `json:"version,omitempty"`
	}

	// ModuleInfo is the parsed, validated contents of a module.cue manifest,
	// ready to pass to modhost.Host.LoadModule.
	ModuleInfo struct {
		Name               string             `json:"name"`
		Version            string             `json:"version,omitempty"`
		Description        string             `json:"description,omitempty"`
		Dependencies       []ModuleDependency `json:"dependencies,omitempty"`
		CXXFlags           []string           `json:"cxxflags,omitempty"`
		LDFlags            []string           `json:"ldflags,omitempty"`
		DisableNativeBuild bool               `json:"disable_native_build,omitempty"`

		// SourceDir is the directory the manifest was discovered in, not
		// part of the manifest itself.
		SourceDir string `json:"-"`
	}
)

// ManifestFileName is the conventional name of a module manifest file
// within a module's source directory.
const ManifestFileName = "module.cue"

// ParseManifest validates and decodes CUE source against the embedded
// module schema: compile schema, compile user data, unify and validate,
// decode. filename is used only for error messages.
func ParseManifest(data []byte, filename string) (*ModuleInfo, error) {
	ctx := cuecontext.New()

	schemaVal := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schemaVal.Err(); err != nil {
		return nil, fmt.Errorf("modmeta: compile embedded schema: %w", err)
	}

	dataVal := ctx.CompileBytes(data, cue.Filename(filename))
	if err := dataVal.Err(); err != nil {
		return nil, fmt.Errorf("modmeta: parse %s: %w", filename, err)
	}

	moduleSchema := schemaVal.LookupPath(cue.ParsePath("#Module"))
	unified := moduleSchema.Unify(dataVal)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("modmeta: validate %s against schema: %w", filename, err)
	}

	var info ModuleInfo
	if err := unified.Decode(&info); err != nil {
		return nil, fmt.Errorf("modmeta: decode %s: %w", filename, err)
	}
	return &info, nil
}

// ParseManifestJSON is a convenience entry point for tests and callers that
// already have a JSON representation (CUE is a superset of JSON).
func ParseManifestJSON(v any, filename string) (*ModuleInfo, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("modmeta: marshal %s: %w", filename, err)
	}
	return ParseManifest(data, filename)
}

// LoadManifest reads and parses the module.cue file at path.
func LoadManifest(path string) (*ModuleInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("modmeta: read %s: %w", path, err)
	}
	info, err := ParseManifest(data, path)
	if err != nil {
		return nil, err
	}
	info.SourceDir = filepath.Dir(path)
	return info, nil
}

// Discover walks root looking for directories that contain a module.cue
// file, parsing and validating each one. It does not recurse into a
// module's own source directory once a manifest has been found there.
func Discover(root string) ([]*ModuleInfo, error) {
	var infos []*ModuleInfo
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		if d.Name() != ManifestFileName {
			return nil
		}
		info, err := LoadManifest(path)
		if err != nil {
			return fmt.Errorf("modmeta: discover %s: %w", path, err)
		}
		infos = append(infos, info)
		return filepath.SkipDir
	})
	if err != nil {
		return nil, err
	}
	return infos, nil
}
