package graph

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/poltergeist/reactor/pkg/project"
	"github.com/poltergeist/reactor/pkg/types"
)

// ModuleSource answers metadata for modules of the current build from their
// effective declarations and defers everything else to an external source.
type ModuleSource struct {
	project  *project.Project
	props    Interpolator
	profiles []string
	next     MetadataSource
}

// NewModuleSource creates a source over the modules of p. next may be nil.
func NewModuleSource(p *project.Project, props Interpolator, activeProfiles []string, next MetadataSource) *ModuleSource {
	return &ModuleSource{
		project:  p,
		props:    props,
		profiles: activeProfiles,
		next:     next,
	}
}

// FetchMetadata implements MetadataSource
func (s *ModuleSource) FetchMetadata(ctx context.Context, c types.Coordinate) (*Metadata, error) {
	m, ok := s.project.LookupCoordinate(c)
	if !ok {
		if s.next == nil {
			return nil, fmt.Errorf("%w: %s", types.ErrNotFound, c.ID())
		}
		return s.next.FetchMetadata(ctx, c)
	}

	model := s.project.Model(m, s.profiles)
	management := s.project.Management(m, s.profiles)

	deps := make([]types.Dependency, 0, len(model.Dependencies))
	for _, d := range model.Dependencies {
		if managed, ok := management.Lookup(d.Key()); ok {
			if d.Version == "" {
				d.Version = managed.Version
			}
			if d.Scope == "" {
				d.Scope = managed.Scope
			}
		}
		if types.IsPlaceholder(d.Version) && s.props != nil {
			v, err := s.props.Interpolate(m, d.Version)
			if err != nil {
				return nil, err
			}
			d.Version = v
		}
		deps = append(deps, d)
	}

	return &Metadata{
		Coordinate:   m.Coordinate(),
		Packaging:    m.PackagingOrDefault(),
		Dependencies: deps,
	}, nil
}

// CachingSource memoizes a metadata source. Concurrent requests for the same
// coordinate share one upstream call.
type CachingSource struct {
	next  MetadataSource
	group singleflight.Group

	mu    sync.RWMutex
	cache map[string]*Metadata
}

// NewCachingSource wraps next
func NewCachingSource(next MetadataSource) *CachingSource {
	return &CachingSource{
		next:  next,
		cache: make(map[string]*Metadata),
	}
}

// FetchMetadata implements MetadataSource. Failures are not cached.
func (s *CachingSource) FetchMetadata(ctx context.Context, c types.Coordinate) (*Metadata, error) {
	id := c.ID()

	s.mu.RLock()
	meta, ok := s.cache[id]
	s.mu.RUnlock()
	if ok {
		return meta, nil
	}

	v, err, _ := s.group.Do(id, func() (interface{}, error) {
		s.mu.RLock()
		meta, ok := s.cache[id]
		s.mu.RUnlock()
		if ok {
			return meta, nil
		}

		meta, err := s.next.FetchMetadata(ctx, c)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.cache[id] = meta
		s.mu.Unlock()
		return meta, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Metadata), nil
}
