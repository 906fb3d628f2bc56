// Package properties resolves ${...} placeholders against a module's
// layered property tables.
//
// Lookup order for a name, first hit wins:
//
//  1. build-time overrides
//  2. the module's own declarations (with active profiles merged)
//  3. each ancestor's declarations, nearest parent first
//  4. built-in properties (project.basedir, project.build.directory, ...)
//
// A user value that shadows a built-in name is honoured but logged as a
// warning once per module and name.
package properties

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/poltergeist/reactor/pkg/logger"
	"github.com/poltergeist/reactor/pkg/project"
	"github.com/poltergeist/reactor/pkg/types"
)

// MaxDepth bounds nested substitution
const MaxDepth = 10

// Built-in property names
const (
	BaseDir        = "project.basedir"
	BuildDirectory = "project.build.directory"
	ProjectGroup   = "project.group"
	ProjectName    = "project.artifact"
	ProjectVersion = "project.version"
	ProjectPackage = "project.packaging"
	ProjectDisplay = "project.name"

	envPrefix = "env."
)

// DefaultBuildDirName is the build output directory under a module's base dir
const DefaultBuildDirName = "target"

// Resolver resolves properties for the modules of one project. Results are
// memoized so repeated lookups in a session always agree.
type Resolver struct {
	project   *project.Project
	overrides map[string]string
	profiles  []string
	logger    logger.Logger
	lookupEnv func(string) (string, bool)

	mu     sync.Mutex
	models map[types.Key]*project.Model
	cache  map[cacheKey]string
	warned map[cacheKey]bool
}

type cacheKey struct {
	module types.Key
	name   string
}

// Option configures a Resolver
type Option func(*Resolver)

// WithEnvironment replaces the process environment used for env.* lookups
func WithEnvironment(lookup func(string) (string, bool)) Option {
	return func(r *Resolver) {
		r.lookupEnv = lookup
	}
}

// NewResolver creates a resolver over p
func NewResolver(p *project.Project, overrides map[string]string, activeProfiles []string, log logger.Logger, opts ...Option) *Resolver {
	r := &Resolver{
		project:   p,
		overrides: make(map[string]string, len(overrides)),
		profiles:  activeProfiles,
		logger:    logger.OrNop(log),
		lookupEnv: os.LookupEnv,
		models:    make(map[types.Key]*project.Model),
		cache:     make(map[cacheKey]string),
		warned:    make(map[cacheKey]bool),
	}
	for k, v := range overrides {
		r.overrides[k] = v
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the fully substituted value of name as seen from m
func (r *Resolver) Resolve(m *types.Module, name string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resolve(m, name, nil)
}

// Interpolate substitutes every placeholder in s as seen from m
func (r *Resolver) Interpolate(m *types.Module, s string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.expand(m, s, nil)
}

// Context returns every property visible from m, fully resolved. It is the
// property context handed to goal executors.
func (r *Resolver) Context(m *types.Module) (map[string]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]string)
	for _, name := range r.visibleNames(m) {
		v, err := r.resolve(m, name, nil)
		if err != nil {
			return nil, err
		}
		out[name] = v
	}
	return out, nil
}

// Validate resolves every property visible from m so that circular and
// dangling references surface before any goal runs.
func (r *Resolver) Validate(m *types.Module) error {
	_, err := r.Context(m)
	return err
}

// IsBuiltin reports whether name is injected by the engine
func IsBuiltin(name string) bool {
	switch name {
	case BaseDir, BuildDirectory, ProjectGroup, ProjectName, ProjectVersion, ProjectPackage, ProjectDisplay:
		return true
	}
	return false
}

func (r *Resolver) resolve(m *types.Module, name string, chain []string) (string, error) {
	key := cacheKey{module: m.Key(), name: name}
	if v, ok := r.cache[key]; ok {
		return v, nil
	}

	for _, seen := range chain {
		if seen == name {
			return "", types.NewError(types.ErrCircularProperty, m.Key().String(), "%s", strings.Join(append(chain, name), " -> "))
		}
	}
	if len(chain) >= MaxDepth {
		return "", types.NewError(types.ErrCircularProperty, m.Key().String(),
			"substitution of %s exceeds depth %d", chain[0], MaxDepth)
	}

	raw, ok := r.lookup(m, name)
	if !ok {
		return "", types.NewError(types.ErrUnresolvedProperty, m.Key().String(), "${%s}", name)
	}

	v, err := r.expand(m, raw, append(chain, name))
	if err != nil {
		return "", err
	}
	r.cache[key] = v
	return v, nil
}

// expand substitutes placeholders in s. An unterminated "${" is kept as text.
func (r *Resolver) expand(m *types.Module, s string, chain []string) (string, error) {
	if !strings.Contains(s, "${") {
		return s, nil
	}

	var b strings.Builder
	rest := s
	for {
		start := strings.Index(rest, "${")
		if start < 0 {
			b.WriteString(rest)
			break
		}
		end := strings.Index(rest[start:], "}")
		if end < 0 {
			b.WriteString(rest)
			break
		}
		end += start

		b.WriteString(rest[:start])
		name := strings.TrimSpace(rest[start+2 : end])
		v, err := r.resolve(m, name, chain)
		if err != nil {
			return "", err
		}
		b.WriteString(v)
		rest = rest[end+1:]
	}
	return b.String(), nil
}

// lookup finds the raw, unexpanded value of name for m
func (r *Resolver) lookup(m *types.Module, name string) (string, bool) {
	if v, ok := r.overrides[name]; ok {
		r.warnShadow(m, name, "override")
		return v, true
	}

	chain := append([]*types.Module{m}, r.project.Ancestors(m)...)
	for _, mod := range chain {
		if v, ok := r.model(mod).Properties[name]; ok {
			r.warnShadow(m, name, mod.Key().String())
			return v, true
		}
	}

	if v, ok := builtin(m, name); ok {
		return v, true
	}

	if strings.HasPrefix(name, envPrefix) {
		return r.lookupEnv(strings.TrimPrefix(name, envPrefix))
	}
	return "", false
}

func (r *Resolver) warnShadow(m *types.Module, name, source string) {
	if !IsBuiltin(name) {
		return
	}
	key := cacheKey{module: m.Key(), name: name}
	if r.warned[key] {
		return
	}
	r.warned[key] = true
	r.logger.WithModule(m.Artifact).Warn("Built-in property overridden",
		logger.WithField("property", name),
		logger.WithField("source", source))
}

func (r *Resolver) model(m *types.Module) *project.Model {
	if model, ok := r.models[m.Key()]; ok {
		return model
	}
	model := r.project.Model(m, r.profiles)
	r.models[m.Key()] = model
	return model
}

func (r *Resolver) visibleNames(m *types.Module) []string {
	set := map[string]bool{
		BaseDir: true, BuildDirectory: true, ProjectGroup: true, ProjectName: true,
		ProjectVersion: true, ProjectPackage: true, ProjectDisplay: true,
	}
	for k := range r.overrides {
		set[k] = true
	}
	chain := append([]*types.Module{m}, r.project.Ancestors(m)...)
	for _, mod := range chain {
		for k := range r.model(mod).Properties {
			set[k] = true
		}
	}

	names := make([]string, 0, len(set))
	for k := range set {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func builtin(m *types.Module, name string) (string, bool) {
	base := m.BaseDir
	if base == "" {
		base = "."
	}
	switch name {
	case BaseDir:
		return base, true
	case BuildDirectory:
		return filepath.Join(base, DefaultBuildDirName), true
	case ProjectGroup:
		return m.Group, true
	case ProjectName:
		return m.Artifact, true
	case ProjectVersion:
		return m.Version, true
	case ProjectPackage:
		return string(m.PackagingOrDefault()), true
	case ProjectDisplay:
		return m.DisplayName(), true
	}
	return "", false
}
