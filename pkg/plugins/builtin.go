package plugins

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/poltergeist/reactor/pkg/graph"
	"github.com/poltergeist/reactor/pkg/lifecycle"
	"github.com/poltergeist/reactor/pkg/logger"
	"github.com/poltergeist/reactor/pkg/properties"
	"github.com/poltergeist/reactor/pkg/types"
)

// Clean removes the module build directory for clean:clean
type Clean struct {
	logger logger.Logger
}

// NewClean creates the clean plugin
func NewClean(log logger.Logger) *Clean {
	return &Clean{logger: logger.OrNop(log)}
}

// Execute implements lifecycle.GoalExecutor
func (c *Clean) Execute(_ context.Context, req lifecycle.GoalRequest) error {
	dir := req.Properties[properties.BuildDirectory]
	if dir == "" {
		return fmt.Errorf("no %s for %s", properties.BuildDirectory, req.Module.Key())
	}
	if base := req.Properties[properties.BaseDir]; base != "" {
		if abs, err := filepath.Abs(dir); err == nil {
			if baseAbs, err := filepath.Abs(base); err == nil && abs == baseAbs {
				return fmt.Errorf("refusing to remove module base directory %s", dir)
			}
		}
	}

	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to remove %s: %w", dir, err)
	}
	c.logger.WithModule(req.Module.Artifact).Info("Removed build directory", logger.WithField("dir", dir))
	return nil
}

// Resolve verifies for dependency:resolve that every resolved non-test
// dependency of the module is available locally. Modules of the current
// build are exempt.
type Resolve struct {
	store  ArtifactStore
	graphs GraphLookup
	logger logger.Logger
}

// NewResolve creates the dependency plugin
func NewResolve(store ArtifactStore, graphs GraphLookup, log logger.Logger) *Resolve {
	return &Resolve{store: store, graphs: graphs, logger: logger.OrNop(log)}
}

// Execute implements lifecycle.GoalExecutor
func (r *Resolve) Execute(ctx context.Context, req lifecycle.GoalRequest) error {
	if r.graphs == nil || r.store == nil {
		return errors.New("dependency:resolve has no repository configured")
	}
	g, ok := r.graphs.Graph(req.Module)
	if !ok {
		return fmt.Errorf("no dependency graph for %s", req.Module.Key())
	}

	var missing []string
	for _, n := range g.Nodes {
		if err := ctx.Err(); err != nil {
			return err
		}
		if n.Scope == types.ScopeTest || r.graphs.InBuild(n.Coordinate) || r.store.Has(n.Coordinate) {
			continue
		}
		missing = append(missing, n.Coordinate.ID())
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", types.ErrNotFound, strings.Join(missing, ", "))
	}

	r.logger.WithModule(req.Module.Artifact).Debug("Dependencies resolved", logger.WithField("count", len(g.Nodes)))
	return nil
}

// Install copies the module's metadata, and its built artifact when one
// exists, into the local repository for install:install.
type Install struct {
	store    ArtifactStore
	metadata graph.MetadataSource
	logger   logger.Logger
}

// NewInstall creates the install plugin
func NewInstall(store ArtifactStore, metadata graph.MetadataSource, log logger.Logger) *Install {
	return &Install{store: store, metadata: metadata, logger: logger.OrNop(log)}
}

// ArtifactFile returns where a module's packaged artifact is expected
func ArtifactFile(props map[string]string) string {
	return filepath.Join(props[properties.BuildDirectory],
		fmt.Sprintf("%s-%s.%s", props[properties.ProjectName], props[properties.ProjectVersion], props[properties.ProjectPackage]))
}

// Execute implements lifecycle.GoalExecutor
func (i *Install) Execute(ctx context.Context, req lifecycle.GoalRequest) error {
	if i.store == nil {
		return errors.New("install:install has no repository configured")
	}
	m := req.Module
	coord := m.Coordinate()
	log := i.logger.WithModule(m.Artifact)

	meta := &graph.Metadata{Coordinate: coord, Packaging: m.PackagingOrDefault()}
	if i.metadata != nil {
		found, err := i.metadata.FetchMetadata(ctx, coord)
		if err != nil {
			return fmt.Errorf("failed to describe %s: %w", coord.ID(), err)
		}
		meta.Dependencies = found.Dependencies
	}
	if err := i.store.StoreMetadata(meta); err != nil {
		return err
	}

	if m.PackagingOrDefault() == types.PackagingPom {
		log.Info("Installed", logger.WithField("coordinate", coord.ID()))
		return nil
	}

	file := ArtifactFile(req.Properties)
	data, err := os.ReadFile(file)
	switch {
	case errors.Is(err, os.ErrNotExist):
		log.Warn("No artifact to install, metadata only", logger.WithField("expected", file))
		return nil
	case err != nil:
		return fmt.Errorf("failed to read artifact %s: %w", file, err)
	}

	if err := i.store.Store(coord, data); err != nil {
		return err
	}
	log.Info("Installed", logger.WithField("coordinate", coord.ID()), logger.WithField("bytes", len(data)))
	return nil
}
