// Package lifecycle models lifecycles as ordered phases, binds goals to
// phases, plans "run up to phase P" requests and runs the plan for a module.
package lifecycle

import (
	"github.com/poltergeist/reactor/pkg/types"
)

// Lifecycle is a named, ordered sequence of phases
type Lifecycle struct {
	ID     string
	Phases []string
}

// Built-in lifecycles
var (
	Clean = Lifecycle{
		ID:     "clean",
		Phases: []string{"pre-clean", "clean", "post-clean"},
	}

	Default = Lifecycle{
		ID: "default",
		Phases: []string{
			"validate",
			"initialize",
			"generate-sources",
			"process-sources",
			"generate-resources",
			"process-resources",
			"compile",
			"process-classes",
			"generate-test-sources",
			"process-test-sources",
			"test-compile",
			"process-test-classes",
			"test",
			"prepare-package",
			"package",
			"pre-integration-test",
			"integration-test",
			"post-integration-test",
			"verify",
			"install",
			"deploy",
		},
	}

	Site = Lifecycle{
		ID:     "site",
		Phases: []string{"pre-site", "site", "post-site", "site-deploy"},
	}
)

// Lifecycles returns the built-in lifecycles
func Lifecycles() []Lifecycle {
	return []Lifecycle{Clean, Default, Site}
}

// ForPhase finds the lifecycle declaring phase and the phase's position in it
func ForPhase(phase string) (Lifecycle, int, error) {
	for _, l := range Lifecycles() {
		for i, p := range l.Phases {
			if p == phase {
				return l, i, nil
			}
		}
	}
	return Lifecycle{}, -1, types.NewError(types.ErrUnknownPhase, "", "%q", phase)
}

// Through returns the phases from the start of l up to and including phase
func (l Lifecycle) Through(phase string) []string {
	for i, p := range l.Phases {
		if p == phase {
			return append([]string(nil), l.Phases[:i+1]...)
		}
	}
	return nil
}

// IsTestPhase reports whether goals bound to phase are skipped by skipTests
func IsTestPhase(phase string) bool {
	return phase == "test" || phase == "integration-test"
}

// ValidatePhase checks that phase belongs to a built-in lifecycle
func ValidatePhase(phase string) error {
	_, _, err := ForPhase(phase)
	return err
}
