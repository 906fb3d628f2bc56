// Package repository is the local artifact cache shared by every module of a
// session. Artifacts live under group/artifact/version directories next to a
// metadata document listing their declared dependencies.
package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/poltergeist/reactor/internal/syncx"
	"github.com/poltergeist/reactor/pkg/graph"
	"github.com/poltergeist/reactor/pkg/logger"
	"github.com/poltergeist/reactor/pkg/types"
)

// MetadataFile is the metadata document stored beside each artifact
const MetadataFile = "reactor.yaml"

// Repository is a local artifact cache. Writes to one coordinate are
// serialized and land atomically; reads never see partial files.
type Repository struct {
	fs     billy.Filesystem
	locks  *syncx.KeyedMutex
	logger logger.Logger
}

// New creates a repository over fs
func New(fs billy.Filesystem, log logger.Logger) *Repository {
	return &Repository{
		fs:     fs,
		locks:  syncx.NewKeyedMutex(),
		logger: logger.OrNop(log),
	}
}

// Open creates a repository rooted at dir on the OS filesystem
func Open(dir string, log logger.Logger) (*Repository, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create repository %s: %w", dir, err)
	}
	return New(osfs.New(dir), log), nil
}

// Root returns the repository root as seen by its filesystem
func (r *Repository) Root() string {
	return r.fs.Root()
}

// Dir returns the directory holding c
func (r *Repository) Dir(c types.Coordinate) string {
	return path.Join(strings.ReplaceAll(c.Group, ".", "/"), c.Artifact, c.Version)
}

// ArtifactPath returns the path of c's artifact file
func (r *Repository) ArtifactPath(c types.Coordinate) string {
	return path.Join(r.Dir(c), fmt.Sprintf("%s-%s.%s", c.Artifact, c.Version, c.PackagingOrDefault()))
}

// MetadataPath returns the path of c's metadata document
func (r *Repository) MetadataPath(c types.Coordinate) string {
	return path.Join(r.Dir(c), MetadataFile)
}

// Has reports whether c is available. A pom coordinate needs only its
// metadata; anything else needs its artifact file.
func (r *Repository) Has(c types.Coordinate) bool {
	if r.exists(r.ArtifactPath(c)) {
		return true
	}
	if c.Packaging == "" || c.Packaging == types.PackagingPom {
		if meta, err := r.readMetadata(c); err == nil && meta.Packaging == types.PackagingPom {
			return true
		}
	}
	return false
}

// Fetch returns c's artifact bytes
func (r *Repository) Fetch(c types.Coordinate) ([]byte, error) {
	data, err := util.ReadFile(r.fs, r.ArtifactPath(c))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", types.ErrNotFound, c.ID())
		}
		return nil, fmt.Errorf("failed to read %s: %w", c.ID(), err)
	}
	return data, nil
}

// Store writes c's artifact bytes
func (r *Repository) Store(c types.Coordinate, data []byte) error {
	unlock := r.locks.Lock(c.ID())
	defer unlock()

	if err := r.writeAtomic(r.ArtifactPath(c), data); err != nil {
		return fmt.Errorf("failed to store %s: %w", c.ID(), err)
	}
	r.logger.Debug("Stored artifact", logger.WithField("coordinate", c.ID()), logger.WithField("bytes", len(data)))
	return nil
}

// document is the on-disk metadata format
type document struct {
	Group        string             `yaml:"group"`
	Artifact     string             `yaml:"artifact"`
	Version      string             `yaml:"version"`
	Packaging    types.Packaging    `yaml:"packaging,omitempty"`
	Dependencies []types.Dependency `yaml:"dependencies,omitempty"`
}

// StoreMetadata writes the metadata document for meta.Coordinate
func (r *Repository) StoreMetadata(meta *graph.Metadata) error {
	c := meta.Coordinate
	unlock := r.locks.Lock(c.ID())
	defer unlock()

	data, err := yaml.Marshal(document{
		Group:        c.Group,
		Artifact:     c.Artifact,
		Version:      c.Version,
		Packaging:    meta.Packaging,
		Dependencies: meta.Dependencies,
	})
	if err != nil {
		return fmt.Errorf("failed to encode metadata for %s: %w", c.ID(), err)
	}
	if err := r.writeAtomic(r.MetadataPath(c), data); err != nil {
		return fmt.Errorf("failed to store metadata for %s: %w", c.ID(), err)
	}
	return nil
}

// FetchMetadata implements graph.MetadataSource
func (r *Repository) FetchMetadata(_ context.Context, c types.Coordinate) (*graph.Metadata, error) {
	return r.readMetadata(c)
}

func (r *Repository) readMetadata(c types.Coordinate) (*graph.Metadata, error) {
	data, err := util.ReadFile(r.fs, r.MetadataPath(c))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: metadata for %s", types.ErrNotFound, c.ID())
		}
		return nil, fmt.Errorf("failed to read metadata for %s: %w", c.ID(), err)
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid metadata for %s: %w", c.ID(), err)
	}
	return &graph.Metadata{
		Coordinate:   types.Coordinate{Group: doc.Group, Artifact: doc.Artifact, Version: doc.Version, Packaging: doc.Packaging},
		Packaging:    doc.Packaging,
		Dependencies: doc.Dependencies,
	}, nil
}

// writeAtomic writes to a temp file in the target directory and renames it
// into place. Callers hold the coordinate lock.
func (r *Repository) writeAtomic(name string, data []byte) error {
	dir := path.Dir(name)
	if err := r.fs.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmpName := path.Join(dir, ".tmp-"+uuid.NewString())
	tmp, err := r.fs.OpenFile(tmpName, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = r.fs.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = r.fs.Remove(tmpName)
		return err
	}
	if err := r.fs.Rename(tmpName, name); err != nil {
		_ = r.fs.Remove(tmpName)
		return err
	}
	return nil
}

func (r *Repository) exists(name string) bool {
	_, err := r.fs.Stat(name)
	return err == nil
}
