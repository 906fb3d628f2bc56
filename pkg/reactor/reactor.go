// Package reactor orders the modules of a multi-module build. A module is
// built after every module whose coordinate appears in its dependency graph,
// and an aggregator is built after all of its aggregated children.
package reactor

import (
	"github.com/poltergeist/reactor/pkg/graph"
	"github.com/poltergeist/reactor/pkg/types"
)

// Reactor is a computed build order together with the build-before relation
// it was derived from.
type Reactor struct {
	order      []*types.Module
	index      map[types.Key]int
	upstream   map[types.Key][]*types.Module
	downstream map[types.Key][]*types.Module
}

// Order sorts modules into build order. graphs holds the resolved dependency
// graph of each module; a module without a graph has no dependency edges.
func Order(modules []*types.Module, graphs map[types.Key]*graph.Graph) ([]*types.Module, error) {
	r, err := New(modules, graphs)
	if err != nil {
		return nil, err
	}
	return r.Modules(), nil
}

// New computes the build order. The sort is stable: among the modules whose
// upstream modules are all placed, the first in declaration order goes next.
func New(modules []*types.Module, graphs map[types.Key]*graph.Graph) (*Reactor, error) {
	r := &Reactor{
		index:      make(map[types.Key]int, len(modules)),
		upstream:   make(map[types.Key][]*types.Module, len(modules)),
		downstream: make(map[types.Key][]*types.Module, len(modules)),
	}

	byKey := make(map[types.Key]*types.Module, len(modules))
	for _, m := range modules {
		byKey[m.Key()] = m
	}

	for _, m := range modules {
		seen := map[types.Key]bool{}
		link := func(up *types.Module) {
			if up == m || seen[up.Key()] {
				return
			}
			seen[up.Key()] = true
			r.upstream[m.Key()] = append(r.upstream[m.Key()], up)
			r.downstream[up.Key()] = append(r.downstream[up.Key()], m)
		}

		if g := graphs[m.Key()]; g != nil {
			for _, other := range modules {
				if g.Contains(other.Coordinate()) {
					link(other)
				}
			}
		}
		for _, k := range m.Aggregates {
			if child, ok := byKey[k]; ok {
				link(child)
			}
		}
	}

	placed := make(map[types.Key]bool, len(modules))
	remaining := append([]*types.Module(nil), modules...)
	for len(remaining) > 0 {
		next := -1
		for i, m := range remaining {
			if r.ready(m, placed) {
				next = i
				break
			}
		}
		if next < 0 {
			return nil, types.CycleError(types.ErrCyclicAggregation, r.findCycle(remaining, placed))
		}

		m := remaining[next]
		placed[m.Key()] = true
		r.index[m.Key()] = len(r.order)
		r.order = append(r.order, m)
		remaining = append(remaining[:next], remaining[next+1:]...)
	}

	return r, nil
}

func (r *Reactor) ready(m *types.Module, placed map[types.Key]bool) bool {
	for _, up := range r.upstream[m.Key()] {
		if !placed[up.Key()] {
			return false
		}
	}
	return true
}

// findCycle follows unplaced upstream edges from the first remaining module
// until a module repeats. Every remaining module has an unplaced upstream, so
// the walk always closes.
func (r *Reactor) findCycle(remaining []*types.Module, placed map[types.Key]bool) []string {
	pos := map[types.Key]int{}
	var walk []*types.Module

	cur := remaining[0]
	for {
		if i, ok := pos[cur.Key()]; ok {
			var ids []string
			for _, m := range walk[i:] {
				ids = append(ids, m.Coordinate().ID())
			}
			return append(ids, cur.Coordinate().ID())
		}
		pos[cur.Key()] = len(walk)
		walk = append(walk, cur)

		var next *types.Module
		for _, up := range r.upstream[cur.Key()] {
			if !placed[up.Key()] {
				next = up
				break
			}
		}
		if next == nil {
			return nil
		}
		cur = next
	}
}

// Modules returns the build order
func (r *Reactor) Modules() []*types.Module {
	return append([]*types.Module(nil), r.order...)
}

// Index returns the position of m in the build order, or -1
func (r *Reactor) Index(m *types.Module) int {
	if i, ok := r.index[m.Key()]; ok {
		return i
	}
	return -1
}

// Upstream returns the modules m must be built after, in build order
func (r *Reactor) Upstream(m *types.Module) []*types.Module {
	return r.sorted(r.upstream[m.Key()])
}

// Downstream returns the modules that must be built after m, in build order
func (r *Reactor) Downstream(m *types.Module) []*types.Module {
	return r.sorted(r.downstream[m.Key()])
}

// TransitiveUpstream returns every module m depends on, directly or not
func (r *Reactor) TransitiveUpstream(m *types.Module) []*types.Module {
	return r.closure(m, r.upstream)
}

// TransitiveDownstream returns every module that depends on m, directly or not
func (r *Reactor) TransitiveDownstream(m *types.Module) []*types.Module {
	return r.closure(m, r.downstream)
}

func (r *Reactor) closure(m *types.Module, edges map[types.Key][]*types.Module) []*types.Module {
	seen := map[types.Key]bool{}
	var out []*types.Module
	stack := append([]*types.Module(nil), edges[m.Key()]...)
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[cur.Key()] {
			continue
		}
		seen[cur.Key()] = true
		out = append(out, cur)
		stack = append(stack, edges[cur.Key()]...)
	}
	return r.sorted(out)
}

func (r *Reactor) sorted(ms []*types.Module) []*types.Module {
	out := make([]*types.Module, 0, len(ms))
	for _, m := range r.order {
		for _, x := range ms {
			if x.Key() == m.Key() {
				out = append(out, m)
				break
			}
		}
	}
	return out
}
