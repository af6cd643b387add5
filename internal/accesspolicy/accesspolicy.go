// SPDX-License-Identifier: MPL-2.0

// Package accesspolicy decides whether one module may synchronously call
// another. It pins the direct-call graph to a sub-DAG of the module
// dependency graph so synchronous calls can never cycle back on themselves:
// a module may call any other loaded module directly, except itself and
// except a module that (transitively) depends on it.
//
// Rather than walking a live call stack looking for the target among the
// caller's ancestors, the same invariant is enforced ahead of time by
// consulting the static dependency DAG, so a violation is rejected before
// any worker thread is asked to block on it.
package accesspolicy

import (
	"fmt"

	"github.com/modhost/modhost/internal/dag"
)

// Policy holds the module dependency graph.
type Policy struct {
	deps *dag.Graph
}

// New creates an empty Policy.
func New() *Policy {
	return &Policy{
		deps: dag.New(),
	}
}

// AddModule registers a module with no dependencies yet. Safe to call more
// than once for the same name.
func (p *Policy) AddModule(name string) {
	p.deps.AddNode(name)
}

// AddDependency records that dependent requires dependency to be loaded
// first. dependency may therefore be called directly by dependent, but not
// the reverse.
func (p *Policy) AddDependency(dependent, dependency string) {
	p.deps.AddEdge(dependency, dependent)
}

// LoadOrder returns a valid load order for the registered modules: every
// dependency appears before its dependents. It fails if the dependency
// graph contains a cycle.
func (p *Policy) LoadOrder() ([]string, error) {
	order, err := p.deps.TopologicalSort()
	if err != nil {
		return nil, fmt.Errorf("accesspolicy: %w", err)
	}
	return order, nil
}

// CanCall reports whether caller may synchronously call target, and if not,
// why. A call is forbidden in exactly two cases: caller and target are the
// same module, or target transitively depends on caller (calling it
// directly would risk a cycle in the synchronous call graph, since target's
// own initialization or event handling may itself be waiting on caller).
// Every other call, including between modules with no dependency
// relationship at all, is allowed.
func (p *Policy) CanCall(caller, target string) (bool, string) {
	if caller == target {
		return false, fmt.Sprintf("module %q cannot call itself via a direct call", caller)
	}
	for _, dep := range p.deps.Reachable(caller) {
		if dep == target {
			return false, fmt.Sprintf(
				"module %q transitively depends on %q; calling it directly would risk a cycle in the synchronous call graph",
				target, caller,
			)
		}
	}
	return true, ""
}
