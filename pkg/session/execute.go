package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/poltergeist/reactor/internal/syncx"
	rcontext "github.com/poltergeist/reactor/pkg/context"
	"github.com/poltergeist/reactor/pkg/lifecycle"
	"github.com/poltergeist/reactor/pkg/logger"
	"github.com/poltergeist/reactor/pkg/types"
)

// Skip reasons shown in the report
const (
	ReasonNotSelected    = "not selected"
	ReasonHalted         = "build halted after failure"
	ReasonUpstreamFailed = "upstream module failed"
	ReasonCancelled      = "build cancelled"
)

type moduleResult struct {
	module *types.Module
	err    error
}

// Execute runs every selected module through phases in build order. A module
// starts only after all modules it depends on have finished. The returned
// error joins all failures, except under fail-never where only configuration
// errors and cancellation are returned.
func (s *Session) Execute(ctx context.Context, phases ...string) error {
	if !s.prepared {
		return types.NewError(types.ErrInvalidConfig, "", "session is not prepared")
	}
	selected, err := s.validateTasks(phases)
	if err != nil {
		s.report.ConfigError(err)
		return err
	}

	ctx = rcontext.WithSessionID(ctx, s.id)
	runner := lifecycle.NewRunner(s.executor, s.logger,
		lifecycle.WithGoalTimeout(s.opts.GoalTimeout),
		lifecycle.WithSkipTests(s.opts.SkipTests),
		lifecycle.WithObserver(func(m *types.Module, outcome types.PhaseOutcome) {
			s.report.Record(m, outcome.Phase, outcome)
		}))

	s.logger.Info("Starting build",
		logger.WithField("session", s.id),
		logger.WithField("phases", phases),
		logger.WithField("failMode", string(s.opts.FailMode)),
		logger.WithField("threads", s.opts.Threads))

	s.schedule(ctx, runner, phases, selected)

	if ctx.Err() != nil {
		return fmt.Errorf("%w: %w", types.ErrCancelled, ctx.Err())
	}
	err = s.report.Err()
	if err != nil && s.opts.FailMode == types.FailNever {
		s.logger.Warn("Build finished with failures", logger.WithError(err))
		return nil
	}
	return err
}

func (s *Session) validateTasks(phases []string) (map[types.Key]bool, error) {
	if len(phases) == 0 {
		return nil, types.NewError(types.ErrInvalidConfig, "", "no phase requested")
	}
	for _, phase := range phases {
		if err := lifecycle.ValidatePhase(phase); err != nil {
			return nil, err
		}
	}
	return s.reactor.Select(s.opts.Projects, s.opts.AlsoMake)
}

// schedule dispatches modules in build order. Each pass over the order skips
// what can no longer run and starts what is ready, up to the thread limit;
// then it waits for one running module to finish. With one thread this is a
// plain sequential build.
func (s *Session) schedule(ctx context.Context, runner *lifecycle.Runner, phases []string, selected map[types.Key]bool) {
	order := s.reactor.Modules()
	started := make(map[types.Key]bool, len(order))
	finished := make(map[types.Key]bool, len(order))
	failed := make(map[types.Key]bool)
	halted := false
	running := 0

	results := make(chan moduleResult, len(order))
	g, _ := syncx.NewSafeGroup(context.Background(), s.logger)

	for {
		for _, m := range order {
			k := m.Key()
			if started[k] {
				continue
			}

			reason := ""
			switch {
			case !selected[k]:
				reason = ReasonNotSelected
			case ctx.Err() != nil:
				reason = ReasonCancelled
			case halted:
				reason = ReasonHalted
			case s.opts.FailMode == types.FailAtEnd && s.anyFailed(s.reactor.TransitiveUpstream(m), failed):
				reason = ReasonUpstreamFailed
			}
			if reason != "" {
				started[k], finished[k] = true, true
				s.report.Skip(m, reason)
				s.logger.WithModule(m.Artifact).Warn("Skipping module", logger.WithField("reason", reason))
				continue
			}

			if running >= s.opts.Threads || !s.ready(m, finished) {
				continue
			}
			started[k] = true
			running++
			m := m
			g.Go(func() error {
				results <- moduleResult{module: m, err: s.runModule(ctx, runner, m, phases)}
				return nil
			})
		}

		if running == 0 {
			break
		}
		res := <-results
		running--
		finished[res.module.Key()] = true
		if res.err != nil {
			failed[res.module.Key()] = true
			if s.opts.FailMode == types.FailFast {
				halted = true
			}
		}
	}

	if err := g.Wait(); err != nil {
		s.logger.Error("Scheduler goroutine failed", logger.WithError(err))
	}
}

func (s *Session) ready(m *types.Module, finished map[types.Key]bool) bool {
	for _, up := range s.reactor.Upstream(m) {
		if !finished[up.Key()] {
			return false
		}
	}
	return true
}

func (s *Session) anyFailed(ms []*types.Module, failed map[types.Key]bool) bool {
	for _, m := range ms {
		if failed[m.Key()] {
			return true
		}
	}
	return false
}

// runModule drives m through every requested phase in order
func (s *Session) runModule(ctx context.Context, runner *lifecycle.Runner, m *types.Module, phases []string) (err error) {
	log := s.logger.WithModule(m.Artifact)
	log.Info("Building module", logger.WithField("coordinate", m.Coordinate().ID()))

	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("module %s panicked: %v", m.Key(), p)
		}
		if err != nil {
			s.report.Fail(m, err)
			if errors.Is(err, types.ErrCancelled) {
				log.Warn("Module interrupted", logger.WithError(err))
			} else {
				log.Error("Module failed", logger.WithError(err))
			}
			return
		}
		log.Success("Module built")
	}()

	s.mu.Lock()
	e := s.executions[m.Key()]
	s.mu.Unlock()

	for _, phase := range phases {
		if err := runner.Run(ctx, e, phase, s.bindings[m.Key()], s.props[m.Key()]); err != nil {
			return err
		}
	}
	return nil
}
