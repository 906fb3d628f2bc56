package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	rcontext "github.com/poltergeist/reactor/pkg/context"
	"github.com/poltergeist/reactor/pkg/logger"
	"github.com/poltergeist/reactor/pkg/types"
)

// GoalRequest is the message sent to a goal executor
type GoalRequest struct {
	Goal       types.Goal
	Module     *types.Module
	Phase      string
	Properties map[string]string
}

// GoalExecutor runs goals. A nil error is success; any error is the
// failure reason.
type GoalExecutor interface {
	Execute(ctx context.Context, req GoalRequest) error
}

// GoalExecutorFunc adapts a function to GoalExecutor
type GoalExecutorFunc func(ctx context.Context, req GoalRequest) error

// Execute implements GoalExecutor
func (f GoalExecutorFunc) Execute(ctx context.Context, req GoalRequest) error {
	return f(ctx, req)
}

// State is a module's position in its lifecycle state machine
type State string

const (
	StatePending       State = "pending"
	StateRunning       State = "running"
	StatePhaseComplete State = "phase-complete"
	StateSucceeded     State = "succeeded"
	StateFailed        State = "failed"
)

// Execution tracks one module through a session. Completed phases persist
// across Run calls so later tasks do not repeat them.
type Execution struct {
	Module *types.Module

	state     State
	phase     string
	completed map[string]bool
	outcomes  []types.PhaseOutcome
}

// NewExecution returns a pending execution for m
func NewExecution(m *types.Module) *Execution {
	return &Execution{
		Module:    m,
		state:     StatePending,
		completed: make(map[string]bool),
	}
}

// State returns the current state
func (e *Execution) State() State { return e.state }

// Phase returns the phase running or last run
func (e *Execution) Phase() string { return e.phase }

// Completed reports whether phase already ran to completion
func (e *Execution) Completed(phase string) bool { return e.completed[phase] }

// Outcomes returns the phase outcomes recorded so far
func (e *Execution) Outcomes() []types.PhaseOutcome {
	return append([]types.PhaseOutcome(nil), e.outcomes...)
}

// PhaseObserver is told about every finished phase
type PhaseObserver func(m *types.Module, outcome types.PhaseOutcome)

// Runner executes plans for modules
type Runner struct {
	executor  GoalExecutor
	timeout   time.Duration
	skipTests bool
	observer  PhaseObserver
	logger    logger.Logger
}

// RunnerOption configures a Runner
type RunnerOption func(*Runner)

// WithGoalTimeout bounds every goal invocation. Zero disables the bound.
func WithGoalTimeout(d time.Duration) RunnerOption {
	return func(r *Runner) { r.timeout = d }
}

// WithSkipTests records goals of test phases as skipped without running them
func WithSkipTests(skip bool) RunnerOption {
	return func(r *Runner) { r.skipTests = skip }
}

// WithObserver registers a callback for finished phases
func WithObserver(o PhaseObserver) RunnerOption {
	return func(r *Runner) { r.observer = o }
}

// NewRunner creates a runner delegating goals to executor
func NewRunner(executor GoalExecutor, log logger.Logger, opts ...RunnerOption) *Runner {
	r := &Runner{
		executor: executor,
		logger:   logger.OrNop(log),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run drives e up to target. Phases already completed in e are skipped.
// The first goal failure stops the module and is returned; cancellation of
// ctx is checked between goals.
func (r *Runner) Run(ctx context.Context, e *Execution, target string, bindings Bindings, props map[string]string) error {
	steps, err := Plan(target, e.completed, bindings)
	if err != nil {
		return err
	}
	if e.state == StateFailed {
		return types.NewError(types.ErrGoalFailure, e.Module.Key().String(), "module already failed")
	}

	ctx = rcontext.WithModule(ctx, e.Module.Artifact)
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			e.state = StateFailed
			return &types.BuildError{Kind: types.ErrCancelled, Module: e.Module.Key().String(), Msg: "before " + step.Phase, Cause: err}
		}
		e.state = StateRunning
		e.phase = step.Phase

		outcome := r.runPhase(rcontext.WithPhase(ctx, step.Phase), e.Module, step, props)
		e.outcomes = append(e.outcomes, outcome)
		if r.observer != nil {
			r.observer(e.Module, outcome)
		}

		if outcome.Status == types.StatusFailed {
			e.state = StateFailed
			return outcome.Err
		}
		e.completed[step.Phase] = true
		e.state = StatePhaseComplete
	}

	e.state = StateSucceeded
	return nil
}

func (r *Runner) runPhase(ctx context.Context, m *types.Module, step Step, props map[string]string) types.PhaseOutcome {
	ctx = rcontext.WithStartTime(ctx, time.Now())
	outcome := types.PhaseOutcome{Phase: step.Phase, Status: types.StatusSucceeded}
	log := logger.WithContext(ctx, r.logger)

	if r.skipTests && IsTestPhase(step.Phase) {
		for _, g := range step.Goals {
			outcome.Goals = append(outcome.Goals, types.GoalOutcome{Goal: g, Status: types.StatusSkipped})
		}
		outcome.Status = types.StatusSkipped
		log.Info("Tests are skipped")
		return outcome
	}

	for i, g := range step.Goals {
		if err := ctx.Err(); err != nil {
			for _, rest := range step.Goals[i:] {
				outcome.Goals = append(outcome.Goals, types.GoalOutcome{Goal: rest, Status: types.StatusSkipped})
			}
			outcome.Status = types.StatusFailed
			outcome.Err = &types.BuildError{Kind: types.ErrCancelled, Module: m.Key().String(), Msg: "before " + g.String(), Cause: err}
			break
		}

		gctx := rcontext.WithInvocationID(ctx, rcontext.GenerateInvocationID())
		gctx = rcontext.WithStartTime(gctx, time.Now())
		log.Debug("Executing goal", logger.WithField("goal", g.String()))

		err := r.runGoal(gctx, GoalRequest{Goal: g, Module: m, Phase: step.Phase, Properties: props})
		goalOutcome := types.GoalOutcome{Goal: g, Status: types.StatusSucceeded, Elapsed: rcontext.GetDuration(gctx), Err: err}

		if err != nil {
			goalOutcome.Status = types.StatusFailed
			outcome.Goals = append(outcome.Goals, goalOutcome)
			outcome.Status = types.StatusFailed
			outcome.Err = err
			log.Error("Goal failed", logger.WithField("goal", g.String()), logger.WithError(err))
			break
		}
		outcome.Goals = append(outcome.Goals, goalOutcome)
	}

	outcome.Elapsed = rcontext.GetDuration(ctx)
	return outcome
}

// runGoal invokes the executor, bounded by the goal timeout. The executor
// sees a context that expires with the timeout; a goal that ignores it is
// abandoned when the timer fires.
func (r *Runner) runGoal(ctx context.Context, req GoalRequest) error {
	module := req.Module.Key().String()

	gctx := ctx
	var timer <-chan time.Time
	if r.timeout > 0 {
		var cancel context.CancelFunc
		gctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
		t := time.NewTimer(r.timeout)
		defer t.Stop()
		timer = t.C
	}

	done := make(chan error, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- fmt.Errorf("executor panicked: %v", p)
			}
		}()
		done <- r.executor.Execute(gctx, req)
	}()

	select {
	case err := <-done:
		if err == nil {
			return nil
		}
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return types.NewError(types.ErrGoalTimeout, module, "%s exceeded %s", req.Goal, r.timeout)
		}
		return &types.BuildError{Kind: types.ErrGoalFailure, Module: module, Msg: req.Goal.String(), Cause: err}
	case <-timer:
		return types.NewError(types.ErrGoalTimeout, module, "%s exceeded %s", req.Goal, r.timeout)
	}
}
