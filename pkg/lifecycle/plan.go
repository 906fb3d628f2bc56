package lifecycle

import (
	"github.com/poltergeist/reactor/pkg/types"
)

// Step is one phase of a plan with the goals it runs
type Step struct {
	Phase string
	Goals []types.Goal
}

// Plan lists the phases needed to reach target: every phase of target's
// lifecycle from the first through target, minus those already completed.
func Plan(target string, completed map[string]bool, bindings Bindings) ([]Step, error) {
	l, _, err := ForPhase(target)
	if err != nil {
		return nil, err
	}

	var steps []Step
	for _, phase := range l.Through(target) {
		if completed[phase] {
			continue
		}
		steps = append(steps, Step{Phase: phase, Goals: bindings.Goals(phase)})
	}
	return steps, nil
}
