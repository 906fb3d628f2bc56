// Package report collects phase outcomes per module and summarizes them in
// build order.
package report

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/poltergeist/reactor/pkg/graph"
	"github.com/poltergeist/reactor/pkg/types"
)

// ModuleResult is the overall outcome of one module
type ModuleResult struct {
	Module  *types.Module
	Status  types.Status
	Elapsed time.Duration
	Phases  []types.PhaseOutcome
	// Err is the first failure of the module
	Err error
	// Reason explains a skip
	Reason string
}

// Reporter accumulates outcomes for one session. It is safe for concurrent use.
type Reporter struct {
	mu           sync.Mutex
	order        []*types.Module
	results      map[types.Key]*ModuleResult
	configErrors []error
	conflicts    map[types.Key][]graph.Conflict
	started      time.Time
}

// New creates a reporter for modules in build order
func New(order []*types.Module) *Reporter {
	r := &Reporter{
		order:     append([]*types.Module(nil), order...),
		results:   make(map[types.Key]*ModuleResult, len(order)),
		conflicts: make(map[types.Key][]graph.Conflict),
		started:   time.Now(),
	}
	for _, m := range order {
		r.results[m.Key()] = &ModuleResult{Module: m, Status: types.StatusPending}
	}
	return r
}

// Record adds a phase outcome for m
func (r *Reporter) Record(m *types.Module, phase string, outcome types.PhaseOutcome) {
	r.mu.Lock()
	defer r.mu.Unlock()

	res := r.result(m)
	if outcome.Phase == "" {
		outcome.Phase = phase
	}
	res.Phases = append(res.Phases, outcome)
	res.Elapsed += outcome.Elapsed

	switch outcome.Status {
	case types.StatusFailed:
		res.Status = types.StatusFailed
		if res.Err == nil {
			res.Err = outcome.Err
		}
	case types.StatusSucceeded, types.StatusSkipped:
		if res.Status != types.StatusFailed {
			res.Status = types.StatusSucceeded
		}
	}
}

// Fail marks m failed outside any phase, e.g. interrupted before a phase began
func (r *Reporter) Fail(m *types.Module, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := r.result(m)
	res.Status = types.StatusFailed
	if res.Err == nil {
		res.Err = err
	}
}

// Skip marks m as never reached
func (r *Reporter) Skip(m *types.Module, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := r.result(m)
	if res.Status == types.StatusPending {
		res.Status = types.StatusSkipped
		res.Reason = reason
	}
}

// ConfigError records an error found before any module started
func (r *Reporter) ConfigError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configErrors = append(r.configErrors, err)
}

// Conflicts records the version conflicts resolved in m's graph
func (r *Reporter) Conflicts(m *types.Module, conflicts []graph.Conflict) {
	if len(conflicts) == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conflicts[m.Key()] = append(r.conflicts[m.Key()], conflicts...)
}

func (r *Reporter) result(m *types.Module) *ModuleResult {
	res, ok := r.results[m.Key()]
	if !ok {
		res = &ModuleResult{Module: m, Status: types.StatusPending}
		r.results[m.Key()] = res
		r.order = append(r.order, m)
	}
	return res
}

// Summary returns one result per module in build order. Modules that were
// never reached are reported as skipped.
func (r *Reporter) Summary() []ModuleResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]ModuleResult, 0, len(r.order))
	for _, m := range r.order {
		res := *r.results[m.Key()]
		res.Phases = append([]types.PhaseOutcome(nil), res.Phases...)
		if res.Status == types.StatusPending || res.Status == types.StatusRunning {
			res.Status = types.StatusSkipped
		}
		out = append(out, res)
	}
	return out
}

// ConfigErrors returns the configuration errors in the order recorded
func (r *Reporter) ConfigErrors() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.configErrors...)
}

// ConflictsFor returns the conflicts recorded for m
func (r *Reporter) ConflictsFor(m *types.Module) []graph.Conflict {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]graph.Conflict(nil), r.conflicts[m.Key()]...)
}

// Counts tallies the summary by status
func (r *Reporter) Counts() map[types.Status]int {
	counts := map[types.Status]int{}
	for _, res := range r.Summary() {
		counts[res.Status]++
	}
	return counts
}

// Success reports whether there were no configuration errors and no failed modules
func (r *Reporter) Success() bool {
	return r.Err() == nil
}

// Err joins the configuration errors, then the module failures in build order
func (r *Reporter) Err() error {
	var errs []error
	errs = append(errs, r.ConfigErrors()...)
	for _, res := range r.Summary() {
		if res.Status == types.StatusFailed {
			if res.Err != nil {
				errs = append(errs, res.Err)
			} else {
				errs = append(errs, fmt.Errorf("%s failed", res.Module.Key()))
			}
		}
	}
	return errors.Join(errs...)
}

// Elapsed returns the time since the reporter was created
func (r *Reporter) Elapsed() time.Duration {
	return time.Since(r.started)
}
