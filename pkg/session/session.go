// Package session runs one build invocation: a configuration phase that
// resolves properties, dependency graphs and the module order, followed by
// lifecycle execution of the ordered modules under a fail policy.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/go-git/go-billy/v5/memfs"

	"github.com/poltergeist/reactor/internal/syncx"
	rcontext "github.com/poltergeist/reactor/pkg/context"
	"github.com/poltergeist/reactor/pkg/graph"
	"github.com/poltergeist/reactor/pkg/lifecycle"
	"github.com/poltergeist/reactor/pkg/logger"
	"github.com/poltergeist/reactor/pkg/plugins"
	"github.com/poltergeist/reactor/pkg/project"
	"github.com/poltergeist/reactor/pkg/properties"
	"github.com/poltergeist/reactor/pkg/reactor"
	"github.com/poltergeist/reactor/pkg/report"
	"github.com/poltergeist/reactor/pkg/repository"
	"github.com/poltergeist/reactor/pkg/types"
)

// Dependencies are the collaborators of a session. Nil members get defaults.
type Dependencies struct {
	// Repository is the local artifact cache. Defaults to an in-memory one.
	Repository *repository.Repository
	// Metadata describes artifacts outside the build. Defaults to Repository.
	Metadata graph.MetadataSource
	// Executor runs goals. Defaults to the built-in plugins.
	Executor lifecycle.GoalExecutor
	// Environment backs env.* properties. Defaults to the process environment.
	Environment func(string) (string, bool)
}

// Session is created at invocation start and discarded at the end
type Session struct {
	id      string
	project *project.Project
	opts    types.Options
	deps    Dependencies
	logger  logger.Logger

	resolver   *properties.Resolver
	graphs     map[types.Key]*graph.Graph
	reactor    *reactor.Reactor
	bindings   map[types.Key]lifecycle.Bindings
	props      map[types.Key]map[string]string
	executions map[types.Key]*lifecycle.Execution
	report     *report.Reporter
	executor   lifecycle.GoalExecutor
	prepared   bool

	mu sync.Mutex
}

// New creates a session over the modules of p
func New(p *project.Project, opts types.Options, deps Dependencies, log logger.Logger) *Session {
	log = logger.OrNop(log)
	if opts.FailMode == "" {
		opts.FailMode = types.FailFast
	}
	if opts.Threads < 1 {
		opts.Threads = 1
	}
	if deps.Repository == nil {
		deps.Repository = repository.New(memfs.New(), log)
	}
	if deps.Metadata == nil {
		deps.Metadata = deps.Repository
	}

	return &Session{
		id:         rcontext.GenerateSessionID(),
		project:    p,
		opts:       opts,
		deps:       deps,
		logger:     log,
		graphs:     make(map[types.Key]*graph.Graph),
		bindings:   make(map[types.Key]lifecycle.Bindings),
		props:      make(map[types.Key]map[string]string),
		executions: make(map[types.Key]*lifecycle.Execution),
		report:     report.New(p.Modules()),
	}
}

// ID returns the session identifier
func (s *Session) ID() string {
	return s.id
}

// Report returns the outcome reporter
func (s *Session) Report() *report.Reporter {
	return s.report
}

// Reactor returns the module order. It is nil until Prepare succeeds.
func (s *Session) Reactor() *reactor.Reactor {
	return s.reactor
}

// Graph implements plugins.GraphLookup
func (s *Session) Graph(m *types.Module) (*graph.Graph, bool) {
	g, ok := s.graphs[m.Key()]
	return g, ok
}

// InBuild implements plugins.GraphLookup
func (s *Session) InBuild(c types.Coordinate) bool {
	_, ok := s.project.LookupCoordinate(c)
	return ok
}

// Run prepares the session and executes phases
func (s *Session) Run(ctx context.Context, phases ...string) error {
	if err := s.Prepare(ctx); err != nil {
		return err
	}
	return s.Execute(ctx, phases...)
}

// Prepare is the configuration phase. Every error it returns is a
// configuration error and is recorded in the report; no goal runs.
func (s *Session) Prepare(ctx context.Context) error {
	if err := s.prepare(ctx); err != nil {
		for _, e := range flatten(err) {
			s.report.ConfigError(e)
		}
		return err
	}
	return nil
}

func (s *Session) prepare(ctx context.Context) error {
	if err := s.project.ValidateRelations(); err != nil {
		return err
	}

	var resolverOpts []properties.Option
	if s.deps.Environment != nil {
		resolverOpts = append(resolverOpts, properties.WithEnvironment(s.deps.Environment))
	}
	s.resolver = properties.NewResolver(s.project, s.opts.Properties, s.opts.ActiveProfiles, s.logger, resolverOpts...)

	modules := s.project.Modules()
	var errs []error
	for _, m := range modules {
		if err := s.resolver.Validate(m); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	moduleSource := graph.NewModuleSource(s.project, s.resolver, s.opts.ActiveProfiles, s.deps.Metadata)
	if err := s.buildGraphs(ctx, graph.NewCachingSource(moduleSource)); err != nil {
		return err
	}

	for _, m := range modules {
		if err := s.bind(m); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	r, err := reactor.New(modules, s.graphs)
	if err != nil {
		return err
	}
	s.reactor = r

	s.report = report.New(r.Modules())
	for _, m := range r.Modules() {
		s.report.Conflicts(m, s.graphs[m.Key()].Conflicts)
		s.executions[m.Key()] = lifecycle.NewExecution(m)
	}

	s.executor = s.deps.Executor
	if s.executor == nil {
		s.executor = plugins.Defaults(plugins.Config{
			Store:    s.deps.Repository,
			Graphs:   s,
			Metadata: moduleSource,
			Logger:   s.logger,
		})
	}

	s.prepared = true
	s.logger.Info("Reactor build order", logger.WithField("modules", moduleNames(r.Modules())))
	return nil
}

// buildGraphs resolves every module graph, concurrently when threads allow.
// Errors are reported in declaration order.
func (s *Session) buildGraphs(ctx context.Context, source graph.MetadataSource) error {
	modules := s.project.Modules()
	builder := graph.NewBuilder(source, s.resolver, s.logger)
	graphs := make([]*graph.Graph, len(modules))
	errs := make([]error, len(modules))

	g, gctx := syncx.NewSafeGroup(ctx, s.logger)
	g.SetLimit(s.opts.Threads)
	for i, m := range modules {
		i, m := i, m
		g.Go(func() error {
			model := s.project.Model(m, s.opts.ActiveProfiles)
			graphs[i], errs[i] = builder.Build(gctx, m, model.Dependencies, s.project.Management(m, s.opts.ActiveProfiles))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	for i, m := range modules {
		s.graphs[m.Key()] = graphs[i]
		for _, c := range graphs[i].Conflicts {
			s.logger.WithModule(m.Artifact).Warn("Version conflict",
				logger.WithField("artifact", c.Key.String()),
				logger.WithField("selected", c.Selected),
				logger.WithField("rejected", c.Rejected),
				logger.WithField("downgrade", c.Downgrade))
		}
	}
	return nil
}

// bind computes the phase bindings of m with goal configuration values
// interpolated, and its property context.
func (s *Session) bind(m *types.Module) error {
	b, err := lifecycle.Bind(m.PackagingOrDefault(), s.project.Plugins(m, s.opts.ActiveProfiles))
	if err != nil {
		return fmt.Errorf("%s: %w", m.Key(), err)
	}
	for _, goals := range b {
		for _, g := range goals {
			for k, v := range g.Configuration {
				resolved, err := s.resolver.Interpolate(m, v)
				if err != nil {
					return fmt.Errorf("%s: goal %s: %w", m.Key(), g, err)
				}
				g.Configuration[k] = resolved
			}
		}
	}

	props, err := s.resolver.Context(m)
	if err != nil {
		return err
	}
	s.bindings[m.Key()] = b
	s.props[m.Key()] = props
	return nil
}

func flatten(err error) []error {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		if _, isBuild := err.(*types.BuildError); !isBuild {
			return joined.Unwrap()
		}
	}
	return []error{err}
}

func moduleNames(ms []*types.Module) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.Artifact
	}
	return out
}
