package graph

import (
	"context"
	"errors"
	"fmt"

	"github.com/poltergeist/reactor/pkg/logger"
	"github.com/poltergeist/reactor/pkg/project"
	"github.com/poltergeist/reactor/pkg/types"
)

// Interpolator substitutes property placeholders as seen from a module
type Interpolator interface {
	Interpolate(m *types.Module, s string) (string, error)
}

// Builder resolves dependency graphs against a metadata source
type Builder struct {
	source MetadataSource
	props  Interpolator
	logger logger.Logger
}

// NewBuilder creates a graph builder. props may be nil when declarations
// never carry placeholders.
func NewBuilder(source MetadataSource, props Interpolator, log logger.Logger) *Builder {
	return &Builder{
		source: source,
		props:  props,
		logger: logger.OrNop(log),
	}
}

// pending is a declaration waiting in the breadth-first queue
type pending struct {
	coord      types.Coordinate
	scope      types.Scope
	depth      int
	path       []types.Coordinate
	exclusions []types.Exclusion
}

// Build resolves the graph rooted at m from its declared dependencies.
//
// Versions come from the declaration, then from management. Resolution is
// breadth first in declaration order, so the first version selected for an
// artifact is the nearest one and, at equal depth, the first declared. Every
// later differing version is kept as a Conflict.
func (b *Builder) Build(ctx context.Context, m *types.Module, declared []types.Dependency, management project.ManagementTable) (*Graph, error) {
	root := m.Coordinate()
	g := newGraph(root)
	log := b.logger.WithModule(m.Artifact)

	queue := make([]pending, 0, len(declared))
	for _, d := range declared {
		coord, scope, err := b.resolveDeclaration(m, d, management)
		if err != nil {
			return nil, err
		}
		queue = append(queue, pending{
			coord:      coord,
			scope:      scope,
			depth:      1,
			path:       []types.Coordinate{root},
			exclusions: d.Exclusions,
		})
	}

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		it := queue[0]
		queue = queue[1:]
		from := it.path[len(it.path)-1]

		if onPath, ok := findOnPath(it.path, it.coord.Key()); ok {
			if onPath.Version != it.coord.Version {
				cycle := append(append([]types.Coordinate(nil), it.path...), it.coord)
				return nil, types.CycleError(types.ErrCyclicDependency, ids(cycle))
			}
			g.addEdge(from, onPath, it.scope)
			continue
		}

		if existing, ok := g.Lookup(it.coord.Key()); ok {
			g.addEdge(from, existing.Coordinate, it.scope)
			existing.Scope = widen(existing.Scope, it.scope)
			if existing.Coordinate.Version != it.coord.Version {
				c := Conflict{
					Key:          it.coord.Key(),
					Selected:     existing.Coordinate.Version,
					SelectedPath: append(append([]types.Coordinate(nil), existing.Path...), existing.Coordinate),
					Rejected:     it.coord.Version,
					RejectedPath: append(append([]types.Coordinate(nil), it.path...), it.coord),
					Downgrade:    types.CompareVersions(existing.Coordinate.Version, it.coord.Version) < 0,
				}
				g.Conflicts = append(g.Conflicts, c)
				log.Debug("Version conflict resolved",
					logger.WithField("artifact", c.Key.String()),
					logger.WithField("selected", c.Selected),
					logger.WithField("rejected", c.Rejected))
			}
			continue
		}

		node := &Node{Coordinate: it.coord, Scope: it.scope, Depth: it.depth, Path: it.path}
		g.add(node)
		g.addEdge(from, it.coord, it.scope)

		meta, err := b.source.FetchMetadata(ctx, it.coord)
		if err != nil {
			if errors.Is(err, types.ErrNotFound) {
				node.Missing = true
				log.Warn("No metadata for dependency, treating it as a leaf",
					logger.WithField("dependency", it.coord.ID()))
				continue
			}
			return nil, fmt.Errorf("fetching metadata for %s: %w", it.coord.ID(), err)
		}
		if meta.Packaging != "" && it.coord.Packaging == "" {
			node.Coordinate.Packaging = meta.Packaging
		}

		childPath := append(append([]types.Coordinate(nil), it.path...), it.coord)
		for _, d := range meta.Dependencies {
			if d.Optional || excluded(it.exclusions, d.Key()) {
				continue
			}
			scope, transitive := Mediate(it.scope, d.Scope)
			if !transitive {
				continue
			}
			coord, _, err := b.resolveDeclaration(m, d, management)
			if err != nil {
				return nil, err
			}
			queue = append(queue, pending{
				coord:      coord,
				scope:      scope,
				depth:      it.depth + 1,
				path:       childPath,
				exclusions: append(append([]types.Exclusion(nil), it.exclusions...), d.Exclusions...),
			})
		}
	}

	return g, nil
}

// resolveDeclaration settles the version and scope of d as seen from m
func (b *Builder) resolveDeclaration(m *types.Module, d types.Dependency, management project.ManagementTable) (types.Coordinate, types.Scope, error) {
	version, scope := d.Version, d.Scope
	if managed, ok := management.Lookup(d.Key()); ok {
		if version == "" {
			version = managed.Version
		}
		if scope == "" {
			scope = managed.Scope
		}
	}
	if version == "" {
		return types.Coordinate{}, "", types.NewError(types.ErrMissingVersion, m.Key().String(), "no version declared or managed for %s", d.Key())
	}

	if types.IsPlaceholder(version) && b.props != nil {
		v, err := b.props.Interpolate(m, version)
		if err != nil {
			return types.Coordinate{}, "", err
		}
		version = v
	}
	if !types.IsConcreteVersion(version) {
		return types.Coordinate{}, "", types.NewError(types.ErrMissingVersion, m.Key().String(), "version %q of %s is not concrete", version, d.Key())
	}

	return d.Coordinate(version), scope.OrDefault(), nil
}

func findOnPath(path []types.Coordinate, k types.Key) (types.Coordinate, bool) {
	for _, c := range path {
		if c.Key() == k {
			return c, true
		}
	}
	return types.Coordinate{}, false
}

func excluded(exclusions []types.Exclusion, k types.Key) bool {
	for _, e := range exclusions {
		if e.Excludes(k) {
			return true
		}
	}
	return false
}

func ids(path []types.Coordinate) []string {
	out := make([]string, len(path))
	for i, c := range path {
		out[i] = c.ID()
	}
	return out
}
