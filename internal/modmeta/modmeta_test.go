// SPDX-License-Identifier: MPL-2.0

package modmeta

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseManifest_Minimal(t *testing.T) {
	t.Parallel()
	data := []byte(`name: "physics"`)
	info, err := ParseManifest(data, "module.cue")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.Name != "physics" {
		t.Errorf("expected name %q, got %q", "physics", info.Name)
	}
	if len(info.Dependencies) != 0 {
		t.Errorf("expected no dependencies, got %v", info.Dependencies)
	}
}

func TestParseManifest_WithDependencies(t *testing.T) {
	t.Parallel()
	data := []byte(`
name: "render"
dependencies: [{module: "physics"}, {module: "assets", version: "1.2.0"}]
disable_native_build: false
`)
	info, err := ParseManifest(data, "module.cue")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(info.Dependencies) != 2 {
		t.Fatalf("expected 2 dependencies, got %d", len(info.Dependencies))
	}
	if info.Dependencies[1].Version != "1.2.0" {
		t.Errorf("expected version 1.2.0, got %q", info.Dependencies[1].Version)
	}
}

func TestParseManifest_MissingName(t *testing.T) {
	t.Parallel()
	data := []byte(`description: "no name field"`)
	if _, err := ParseManifest(data, "module.cue"); err == nil {
		t.Fatal("expected validation error for missing required field name")
	}
}

func TestDiscover(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	modDir := filepath.Join(dir, "physics")
	if err := writeFile(filepath.Join(modDir, ManifestFileName), `name: "physics"`); err != nil {
		t.Fatal(err)
	}

	infos, err := Discover(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(infos) != 1 {
		t.Fatalf("expected 1 module, got %d", len(infos))
	}
	if infos[0].Name != "physics" {
		t.Errorf("expected name physics, got %q", infos[0].Name)
	}
}

func writeFile(path, contents string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(contents), 0o644)
}
