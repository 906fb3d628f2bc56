package lifecycle

import (
	"github.com/poltergeist/reactor/pkg/types"
)

// Bindings maps a phase to its goals in binding order
type Bindings map[string][]types.Goal

// Goals returns the goals bound to phase
func (b Bindings) Goals(phase string) []types.Goal {
	return b[phase]
}

func (b Bindings) bind(phase string, g types.Goal) {
	b[phase] = append(b[phase], g)
}

// DefaultBindings returns the goals every module of the given packaging gets
// without declaring them.
func DefaultBindings(packaging types.Packaging) Bindings {
	b := Bindings{}
	switch packaging {
	case types.PackagingPom:
		b.bind("install", types.Goal{Plugin: "install", Name: "install", ExecutionID: "default-install"})
	default:
		b.bind("clean", types.Goal{Plugin: "clean", Name: "clean", ExecutionID: "default-clean"})
		b.bind("validate", types.Goal{Plugin: "dependency", Name: "resolve", ExecutionID: "default-resolve"})
		b.bind("install", types.Goal{Plugin: "install", Name: "install", ExecutionID: "default-install"})
	}
	return b
}

// Bind combines the packaging defaults with the module's effective plugins.
// Default goals come first in each phase; declared executions follow in
// plugin then execution order. An execution whose id matches a default
// binding of the same plugin replaces it.
func Bind(packaging types.Packaging, plugins []types.Plugin) (Bindings, error) {
	b := DefaultBindings(packaging)

	for _, pl := range plugins {
		for _, ex := range pl.Executions {
			if ex.Phase == "" {
				return nil, types.NewError(types.ErrInvalidConfig, "", "execution %q of plugin %s has no phase", ex.ID, pl.ID)
			}
			if err := ValidatePhase(ex.Phase); err != nil {
				return nil, err
			}

			for _, name := range ex.Goals {
				g := types.Goal{
					Plugin:        pl.ID,
					Name:          name,
					ExecutionID:   ex.ID,
					Configuration: copyConfig(ex.Configuration),
				}
				if !b.replaceDefault(ex.Phase, g) {
					b.bind(ex.Phase, g)
				}
			}
		}
	}
	return b, nil
}

func (b Bindings) replaceDefault(phase string, g types.Goal) bool {
	if g.ExecutionID == "" {
		return false
	}
	for i, existing := range b[phase] {
		if existing.Plugin == g.Plugin && existing.Name == g.Name && existing.ExecutionID == g.ExecutionID {
			b[phase][i] = g
			return true
		}
	}
	return false
}

func copyConfig(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
