package reactor

import (
	"strings"

	"github.com/poltergeist/reactor/pkg/types"
)

// Select resolves a module selection. Names match an artifact, a
// group:artifact key or a display name. With alsoMake the upstream modules of
// each selected module are added. An empty selection selects everything.
func (r *Reactor) Select(names []string, alsoMake bool) (map[types.Key]bool, error) {
	selected := make(map[types.Key]bool, len(r.order))
	if len(names) == 0 {
		for _, m := range r.order {
			selected[m.Key()] = true
		}
		return selected, nil
	}

	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		m := r.find(name)
		if m == nil {
			return nil, types.NewError(types.ErrUnknownModule, "", "no module matches %q", name)
		}
		selected[m.Key()] = true
		if alsoMake {
			for _, up := range r.TransitiveUpstream(m) {
				selected[up.Key()] = true
			}
		}
	}
	return selected, nil
}

func (r *Reactor) find(name string) *types.Module {
	for _, m := range r.order {
		if m.Artifact == name || m.Key().String() == name || m.Name == name {
			return m
		}
	}
	return nil
}
