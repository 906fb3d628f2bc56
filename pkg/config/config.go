// Package config handles descriptor and settings loading
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/poltergeist/reactor/pkg/types"
)

// DescriptorNames are the file names a module directory is searched for, in order
var DescriptorNames = []string{"reactor.json", "reactor.yaml", "reactor.yml"}

// DefaultParentPath is where a parent descriptor is looked for when the
// reference names no relativePath
const DefaultParentPath = ".."

// Manager handles descriptor operations
type Manager struct{}

// NewManager creates a new configuration manager
func NewManager() *Manager {
	return &Manager{}
}

// FindDescriptor returns the descriptor file of the module in dir
func (m *Manager) FindDescriptor(dir string) (string, error) {
	for _, name := range DescriptorNames {
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: no module descriptor in %s", types.ErrInvalidConfig, dir)
}

// LoadModule loads one descriptor. BaseDir is set to the descriptor's directory.
func (m *Manager) LoadModule(path string) (*types.Module, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read descriptor: %w", err)
	}

	var mod types.Module

	// Try JSON first
	if err := json.Unmarshal(data, &mod); err != nil {
		mod = types.Module{}
		if yerr := yaml.Unmarshal(data, &mod); yerr != nil {
			return nil, fmt.Errorf("%w: failed to parse %s as JSON or YAML: %v", types.ErrInvalidConfig, path, yerr)
		}
	}

	abs, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, err
	}
	mod.BaseDir = abs

	if err := m.ValidateModule(&mod); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &mod, nil
}

// LoadProject loads the module in root and every module it aggregates,
// recursively. A parent that is not aggregated is loaded from its
// relativePath when a descriptor exists there. Modules are returned in
// discovery order, root first.
func (m *Manager) LoadProject(root string) ([]*types.Module, error) {
	l := &loader{manager: m, byDir: map[string]*types.Module{}}
	if _, err := l.load(root); err != nil {
		return nil, err
	}
	if err := l.loadParents(); err != nil {
		return nil, err
	}
	return l.modules, nil
}

type loader struct {
	manager *Manager
	byDir   map[string]*types.Module
	modules []*types.Module
}

func (l *loader) load(dir string) (*types.Module, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	// a directory reached twice is an aggregation cycle, reported later
	// by relation validation
	if mod, ok := l.byDir[abs]; ok {
		return mod, nil
	}

	path, err := l.manager.FindDescriptor(abs)
	if err != nil {
		return nil, err
	}
	mod, err := l.manager.LoadModule(path)
	if err != nil {
		return nil, err
	}
	inheritCoordinate(mod)
	l.byDir[abs] = mod
	l.modules = append(l.modules, mod)

	for _, child := range mod.Modules {
		c, err := l.load(filepath.Join(abs, child))
		if err != nil {
			return nil, fmt.Errorf("module %s of %s: %w", child, mod.Artifact, err)
		}
		mod.Aggregates = append(mod.Aggregates, c.Key())
	}
	return mod, nil
}

func (l *loader) loadParents() error {
	known := map[types.Key]bool{}
	for _, mod := range l.modules {
		known[mod.Key()] = true
	}

	for i := 0; i < len(l.modules); i++ {
		mod := l.modules[i]
		if mod.Parent == nil || known[mod.Parent.Key()] {
			continue
		}
		rel := mod.Parent.RelativePath
		if rel == "" {
			rel = DefaultParentPath
		}
		dir := filepath.Join(mod.BaseDir, rel)
		if info, err := os.Stat(dir); err == nil && !info.IsDir() {
			dir = filepath.Dir(dir)
		}
		if _, err := l.manager.FindDescriptor(dir); err != nil {
			// left to relation validation
			continue
		}
		parent, err := l.load(dir)
		if err != nil {
			return fmt.Errorf("parent of %s: %w", mod.Artifact, err)
		}
		known[parent.Key()] = true
	}
	return nil
}

func inheritCoordinate(mod *types.Module) {
	if mod.Parent == nil {
		return
	}
	if mod.Group == "" {
		mod.Group = mod.Parent.Group
	}
	if mod.Version == "" {
		mod.Version = mod.Parent.Version
	}
}

// ValidateModule checks a single descriptor for structural errors
func (m *Manager) ValidateModule(mod *types.Module) error {
	var errs []error

	if mod.Artifact == "" {
		errs = append(errs, errors.New("missing artifact"))
	}
	if mod.Group == "" && (mod.Parent == nil || mod.Parent.Group == "") {
		errs = append(errs, errors.New("missing group"))
	}
	if mod.Version == "" && (mod.Parent == nil || mod.Parent.Version == "") {
		errs = append(errs, errors.New("missing version"))
	}
	if mod.Parent != nil && (mod.Parent.Group == "" || mod.Parent.Artifact == "") {
		errs = append(errs, errors.New("parent reference needs group and artifact"))
	}
	switch mod.Packaging {
	case "", types.PackagingJar, types.PackagingWar, types.PackagingZip, types.PackagingPom:
	default:
		errs = append(errs, fmt.Errorf("unknown packaging %q", mod.Packaging))
	}

	errs = append(errs, validateDependencies("dependencies", mod.Dependencies, true)...)
	errs = append(errs, validateDependencies("dependencyManagement", mod.DependencyManagement, false)...)

	profiles := map[string]bool{}
	for _, p := range mod.Profiles {
		if p.ID == "" {
			errs = append(errs, errors.New("profile without id"))
			continue
		}
		if profiles[p.ID] {
			errs = append(errs, fmt.Errorf("duplicate profile %q", p.ID))
		}
		profiles[p.ID] = true
		errs = append(errs, validateDependencies("profile "+p.ID+" dependencies", p.Dependencies, true)...)
		errs = append(errs, validateDependencies("profile "+p.ID+" dependencyManagement", p.DependencyManagement, false)...)
	}

	for _, p := range mod.Plugins {
		if p.ID == "" {
			errs = append(errs, errors.New("plugin without id"))
		}
		for _, ex := range p.Executions {
			if len(ex.Goals) == 0 {
				errs = append(errs, fmt.Errorf("execution %q of plugin %s has no goals", ex.ID, p.ID))
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", types.ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

func validateDependencies(section string, deps []types.Dependency, declared bool) []error {
	var errs []error
	seen := map[types.Key]bool{}
	for _, d := range deps {
		if d.Group == "" || d.Artifact == "" {
			errs = append(errs, fmt.Errorf("%s: dependency needs group and artifact", section))
			continue
		}
		if !d.Scope.Valid() {
			errs = append(errs, fmt.Errorf("%s: %s has unknown scope %q", section, d.Key(), d.Scope))
		}
		if !declared && d.Version == "" {
			errs = append(errs, fmt.Errorf("%s: %s has no version", section, d.Key()))
		}
		if seen[d.Key()] {
			errs = append(errs, fmt.Errorf("%s: %s declared more than once", section, d.Key()))
		}
		seen[d.Key()] = true
	}
	return errs
}
