// Package project indexes the modules of one build invocation and answers
// questions about the two relations between them: inheritance (parent-of)
// and aggregation (lists-as-submodule). The relations are independent and
// are validated separately.
package project

import (
	"fmt"

	"github.com/poltergeist/reactor/pkg/types"
)

// Project is the set of modules taking part in a build session, in
// declaration order.
type Project struct {
	modules []*types.Module
	byKey   map[types.Key]*types.Module
	index   map[types.Key]int
}

// New indexes modules. Group and version left empty on a module are
// inherited from its parent reference.
func New(modules []*types.Module) (*Project, error) {
	p := &Project{
		modules: make([]*types.Module, 0, len(modules)),
		byKey:   make(map[types.Key]*types.Module, len(modules)),
		index:   make(map[types.Key]int, len(modules)),
	}

	for _, m := range modules {
		if m == nil {
			continue
		}
		if m.Parent != nil {
			if m.Group == "" {
				m.Group = m.Parent.Group
			}
			if m.Version == "" {
				m.Version = m.Parent.Version
			}
		}
		if m.Artifact == "" {
			return nil, types.NewError(types.ErrInvalidConfig, m.BaseDir, "module has no artifact")
		}
		if m.Group == "" || m.Version == "" {
			return nil, types.NewError(types.ErrInvalidConfig, m.Artifact, "module needs a group and version, declared or inherited")
		}
		if _, dup := p.byKey[m.Key()]; dup {
			return nil, types.NewError(types.ErrDuplicateModule, m.Key().String(), "declared more than once")
		}

		p.index[m.Key()] = len(p.modules)
		p.byKey[m.Key()] = m
		p.modules = append(p.modules, m)
	}

	return p, nil
}

// Modules returns the modules in declaration order
func (p *Project) Modules() []*types.Module {
	out := make([]*types.Module, len(p.modules))
	copy(out, p.modules)
	return out
}

// Len returns the number of modules
func (p *Project) Len() int {
	return len(p.modules)
}

// Lookup finds a module by key
func (p *Project) Lookup(k types.Key) (*types.Module, bool) {
	m, ok := p.byKey[k]
	return m, ok
}

// LookupCoordinate finds the module with exactly this group, artifact and version
func (p *Project) LookupCoordinate(c types.Coordinate) (*types.Module, bool) {
	m, ok := p.byKey[c.Key()]
	if !ok || m.Version != c.Version {
		return nil, false
	}
	return m, true
}

// Find resolves a module by artifact name or by group:artifact
func (p *Project) Find(name string) (*types.Module, bool) {
	for _, m := range p.modules {
		if m.Artifact == name || m.Key().String() == name || m.Name == name {
			return m, true
		}
	}
	return nil, false
}

// IndexOf returns the declaration index of the module, or -1
func (p *Project) IndexOf(m *types.Module) int {
	if i, ok := p.index[m.Key()]; ok {
		return i
	}
	return -1
}

// Parent resolves the module's parent reference
func (p *Project) Parent(m *types.Module) (*types.Module, bool) {
	if m.Parent == nil {
		return nil, false
	}
	return p.Lookup(m.Parent.Key())
}

// Ancestors returns the parent chain of m, nearest first. The chain stops at
// the first cycle so it is safe to call before ValidateRelations.
func (p *Project) Ancestors(m *types.Module) []*types.Module {
	var chain []*types.Module
	seen := map[types.Key]bool{m.Key(): true}
	for cur, ok := p.Parent(m); ok; cur, ok = p.Parent(cur) {
		if seen[cur.Key()] {
			break
		}
		seen[cur.Key()] = true
		chain = append(chain, cur)
	}
	return chain
}

// Aggregated returns the modules m lists as submodules
func (p *Project) Aggregated(m *types.Module) []*types.Module {
	out := make([]*types.Module, 0, len(m.Aggregates))
	for _, k := range m.Aggregates {
		if child, ok := p.Lookup(k); ok {
			out = append(out, child)
		}
	}
	return out
}

// ValidateRelations checks that every parent and aggregation reference
// resolves and that each relation is acyclic on its own.
func (p *Project) ValidateRelations() error {
	for _, m := range p.modules {
		if m.Parent != nil {
			parent, ok := p.Lookup(m.Parent.Key())
			if !ok {
				return types.NewError(types.ErrUnknownModule, m.Key().String(), "parent %s is not part of the build", m.Parent.Key())
			}
			if m.Parent.Version != "" && parent.Version != m.Parent.Version {
				return types.NewError(types.ErrInvalidConfig, m.Key().String(),
					"parent %s requested at version %s but the build has %s", m.Parent.Key(), m.Parent.Version, parent.Version)
			}
		}
		for _, k := range m.Aggregates {
			if _, ok := p.Lookup(k); !ok {
				return types.NewError(types.ErrUnknownModule, m.Key().String(), "aggregated module %s is not part of the build", k)
			}
		}
	}

	if cycle := p.findCycle(func(m *types.Module) []*types.Module {
		if parent, ok := p.Parent(m); ok {
			return []*types.Module{parent}
		}
		return nil
	}); cycle != nil {
		return types.CycleError(types.ErrCyclicInheritance, cycle)
	}

	if cycle := p.findCycle(p.Aggregated); cycle != nil {
		return types.CycleError(types.ErrCyclicAggregation, cycle)
	}

	return nil
}

// findCycle runs a colored DFS over next in declaration order and returns
// the first cycle found as module IDs, closing back on its first member.
func (p *Project) findCycle(next func(*types.Module) []*types.Module) []string {
	const (
		white = iota
		grey
		black
	)
	color := make(map[types.Key]int, len(p.modules))
	var stack []*types.Module
	var cycle []string

	var visit func(m *types.Module) bool
	visit = func(m *types.Module) bool {
		color[m.Key()] = grey
		stack = append(stack, m)
		for _, n := range next(m) {
			switch color[n.Key()] {
			case grey:
				cycle = cycleFrom(stack, n)
				return true
			case white:
				if visit(n) {
					return true
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[m.Key()] = black
		return false
	}

	for _, m := range p.modules {
		if color[m.Key()] == white && visit(m) {
			return cycle
		}
	}
	return nil
}

func cycleFrom(stack []*types.Module, start *types.Module) []string {
	var out []string
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i].Key() == start.Key() {
			for _, m := range stack[i:] {
				out = append(out, m.Coordinate().ID())
			}
			break
		}
	}
	return append(out, start.Coordinate().ID())
}

// String renders a short description for logs
func (p *Project) String() string {
	return fmt.Sprintf("project(%d modules)", len(p.modules))
}
