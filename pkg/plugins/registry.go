// Package plugins dispatches goals to goal implementations and provides the
// built-in plugins every build can bind without declaring them.
package plugins

import (
	"context"
	"sort"
	"sync"

	"github.com/poltergeist/reactor/pkg/graph"
	"github.com/poltergeist/reactor/pkg/lifecycle"
	"github.com/poltergeist/reactor/pkg/logger"
	"github.com/poltergeist/reactor/pkg/types"
)

// ArtifactStore is the part of the local repository plugins write to
type ArtifactStore interface {
	Has(c types.Coordinate) bool
	Store(c types.Coordinate, data []byte) error
	StoreMetadata(meta *graph.Metadata) error
}

// GraphLookup returns the resolved dependency graph of a module and tells
// which coordinates the current build produces itself
type GraphLookup interface {
	Graph(m *types.Module) (*graph.Graph, bool)
	InBuild(c types.Coordinate) bool
}

// Registry routes each goal to the executor registered for its plugin and
// goal name. It is itself a lifecycle.GoalExecutor.
type Registry struct {
	mu     sync.RWMutex
	goals  map[string]lifecycle.GoalExecutor
	logger logger.Logger
}

// NewRegistry creates an empty registry
func NewRegistry(log logger.Logger) *Registry {
	return &Registry{
		goals:  make(map[string]lifecycle.GoalExecutor),
		logger: logger.OrNop(log),
	}
}

// Register binds plugin:goal to exec, replacing any previous binding
func (r *Registry) Register(plugin, goal string, exec lifecycle.GoalExecutor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.goals[plugin+":"+goal] = exec
}

// Has reports whether plugin:goal is registered
func (r *Registry) Has(g types.Goal) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.goals[g.String()]
	return ok
}

// Goals lists the registered plugin:goal names
func (r *Registry) Goals() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.goals))
	for k := range r.goals {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Execute implements lifecycle.GoalExecutor
func (r *Registry) Execute(ctx context.Context, req lifecycle.GoalRequest) error {
	r.mu.RLock()
	exec, ok := r.goals[req.Goal.String()]
	r.mu.RUnlock()
	if !ok {
		return types.NewError(types.ErrUnknownPlugin, req.Module.Key().String(), "no executor for %s", req.Goal)
	}
	r.logger.WithModule(req.Module.Artifact).Debug("Dispatching goal",
		logger.WithField("goal", req.Goal.String()),
		logger.WithField("phase", req.Phase))
	return exec.Execute(ctx, req)
}

// Config bundles what the built-in plugins need
type Config struct {
	Store  ArtifactStore
	Graphs GraphLookup
	// Metadata describes reactor modules for install
	Metadata graph.MetadataSource
	Logger   logger.Logger
}

// Defaults returns a registry holding the built-in plugins
func Defaults(cfg Config) *Registry {
	r := NewRegistry(cfg.Logger)
	r.Register("exec", "run", NewExec(cfg.Logger))
	r.Register("clean", "clean", NewClean(cfg.Logger))
	r.Register("dependency", "resolve", NewResolve(cfg.Store, cfg.Graphs, cfg.Logger))
	r.Register("install", "install", NewInstall(cfg.Store, cfg.Metadata, cfg.Logger))
	return r
}
