package project

import (
	"strings"

	"github.com/poltergeist/reactor/pkg/types"
)

// Model is a module's own declarations with its active profiles merged in.
// Inherited values are not folded in here; callers walk Ancestors for those.
type Model struct {
	Module         *types.Module
	Properties     map[string]string
	Dependencies   []types.Dependency
	Management     []types.Dependency
	Plugins        []types.Plugin
	ActiveProfiles []string
}

// ActiveProfiles selects the profiles of m that apply for the requested ids.
// An id prefixed with "!" deactivates that profile. Profiles marked
// activeByDefault apply only when none of m's profiles is explicitly active.
func ActiveProfiles(m *types.Module, requested []string) []types.Profile {
	on := map[string]bool{}
	off := map[string]bool{}
	for _, id := range requested {
		id = strings.TrimSpace(id)
		if strings.HasPrefix(id, "!") {
			off[strings.TrimPrefix(id, "!")] = true
		} else if id != "" {
			on[id] = true
		}
	}

	var explicit, defaults []types.Profile
	for _, prof := range m.Profiles {
		if off[prof.ID] {
			continue
		}
		switch {
		case on[prof.ID]:
			explicit = append(explicit, prof)
		case prof.ActiveByDefault:
			defaults = append(defaults, prof)
		}
	}
	if len(explicit) > 0 {
		return explicit
	}
	return defaults
}

// Model builds the profile-merged model for m
func (p *Project) Model(m *types.Module, activeProfiles []string) *Model {
	model := &Model{
		Module:       m,
		Properties:   make(map[string]string, len(m.Properties)),
		Dependencies: append([]types.Dependency(nil), m.Dependencies...),
		Management:   append([]types.Dependency(nil), m.DependencyManagement...),
		Plugins:      append([]types.Plugin(nil), m.Plugins...),
	}
	for k, v := range m.Properties {
		model.Properties[k] = v
	}

	for _, prof := range ActiveProfiles(m, activeProfiles) {
		model.ActiveProfiles = append(model.ActiveProfiles, prof.ID)
		for k, v := range prof.Properties {
			model.Properties[k] = v
		}
		model.Dependencies = mergeDependencies(model.Dependencies, prof.Dependencies)
		model.Management = mergeDependencies(model.Management, prof.DependencyManagement)
		model.Plugins = MergePlugins(model.Plugins, prof.Plugins)
	}

	return model
}

// mergeDependencies appends extra to base; an entry of extra with the same
// key replaces the base entry in place.
func mergeDependencies(base, extra []types.Dependency) []types.Dependency {
	out := append([]types.Dependency(nil), base...)
	for _, d := range extra {
		replaced := false
		for i := range out {
			if out[i].Key() == d.Key() {
				out[i] = d
				replaced = true
				break
			}
		}
		if !replaced {
			out = append(out, d)
		}
	}
	return out
}

// MergePlugins overlays child plugins on parent plugins. Executions are
// matched by plugin id and execution id; the child's execution wins.
func MergePlugins(parent, child []types.Plugin) []types.Plugin {
	out := make([]types.Plugin, 0, len(parent)+len(child))
	for _, pl := range parent {
		out = append(out, types.Plugin{ID: pl.ID, Executions: append([]types.Execution(nil), pl.Executions...)})
	}

	for _, pl := range child {
		idx := -1
		for i := range out {
			if out[i].ID == pl.ID {
				idx = i
				break
			}
		}
		if idx < 0 {
			out = append(out, types.Plugin{ID: pl.ID, Executions: append([]types.Execution(nil), pl.Executions...)})
			continue
		}
		for _, ex := range pl.Executions {
			replaced := false
			for j := range out[idx].Executions {
				if executionID(out[idx].Executions[j]) == executionID(ex) {
					out[idx].Executions[j] = ex
					replaced = true
					break
				}
			}
			if !replaced {
				out[idx].Executions = append(out[idx].Executions, ex)
			}
		}
	}
	return out
}

func executionID(ex types.Execution) string {
	if ex.ID != "" {
		return ex.ID
	}
	return "default-" + ex.Phase
}

// ManagementTable maps (group, artifact) to the managed declaration
type ManagementTable map[types.Key]types.Dependency

// Lookup returns the managed entry for k
func (t ManagementTable) Lookup(k types.Key) (types.Dependency, bool) {
	d, ok := t[k]
	return d, ok
}

// Management builds m's dependency management table. The nearest module in
// the parent chain that manages a key wins.
func (p *Project) Management(m *types.Module, activeProfiles []string) ManagementTable {
	table := ManagementTable{}
	chain := append([]*types.Module{m}, p.Ancestors(m)...)
	for _, mod := range chain {
		for _, d := range p.Model(mod, activeProfiles).Management {
			if _, ok := table[d.Key()]; !ok {
				table[d.Key()] = d
			}
		}
	}
	return table
}

// Plugins returns m's effective plugins: the parent chain's plugins from the
// root down, overlaid by each descendant in turn.
func (p *Project) Plugins(m *types.Module, activeProfiles []string) []types.Plugin {
	chain := p.Ancestors(m)
	var plugins []types.Plugin
	for i := len(chain) - 1; i >= 0; i-- {
		plugins = MergePlugins(plugins, p.Model(chain[i], activeProfiles).Plugins)
	}
	return MergePlugins(plugins, p.Model(m, activeProfiles).Plugins)
}
