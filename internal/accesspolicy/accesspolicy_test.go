// SPDX-License-Identifier: MPL-2.0

package accesspolicy

import "testing"

func TestCanCall_SameModule(t *testing.T) {
	t.Parallel()
	p := New()
	p.AddModule("physics")
	ok, reason := p.CanCall("physics", "physics")
	if ok {
		t.Error("a module must not be able to call itself via a direct call")
	}
	if reason == "" {
		t.Error("expected a non-empty denial reason")
	}
}

func TestCanCall_DirectDependency(t *testing.T) {
	t.Parallel()
	p := New()
	p.AddDependency("render", "physics") // render depends on physics
	if ok, reason := p.CanCall("render", "physics"); !ok {
		t.Errorf("render should be able to call its dependency physics: %s", reason)
	}
}

func TestCanCall_ReverseDependencyDenied(t *testing.T) {
	t.Parallel()
	p := New()
	p.AddDependency("render", "physics")
	ok, reason := p.CanCall("physics", "render")
	if ok {
		t.Fatal("physics must not be able to call render, its dependent")
	}
	if reason == "" {
		t.Error("expected a non-empty denial reason")
	}
}

func TestCanCall_TransitiveDependency(t *testing.T) {
	t.Parallel()
	p := New()
	p.AddDependency("ui", "render")
	p.AddDependency("render", "physics")
	if ok, reason := p.CanCall("ui", "physics"); !ok {
		t.Errorf("ui should transitively be able to call physics: %s", reason)
	}
}

func TestCanCall_Unrelated(t *testing.T) {
	t.Parallel()
	p := New()
	p.AddModule("audio")
	p.AddModule("network")
	ok, reason := p.CanCall("audio", "network")
	if !ok {
		t.Errorf("modules with no dependency edge in either direction should be able to call each other: %s", reason)
	}
}

func TestLoadOrder_Cycle(t *testing.T) {
	t.Parallel()
	p := New()
	p.AddDependency("a", "b")
	p.AddDependency("b", "a")
	if _, err := p.LoadOrder(); err == nil {
		t.Fatal("expected an error for a cyclic dependency graph")
	}
}

func TestLoadOrder_Valid(t *testing.T) {
	t.Parallel()
	p := New()
	p.AddDependency("render", "physics")
	order, err := p.LoadOrder()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	physicsIdx, renderIdx := -1, -1
	for i, name := range order {
		switch name {
		case "physics":
			physicsIdx = i
		case "render":
			renderIdx = i
		}
	}
	if physicsIdx == -1 || renderIdx == -1 || physicsIdx > renderIdx {
		t.Errorf("expected physics before render in %v", order)
	}
}
