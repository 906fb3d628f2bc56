// Package types provides core types and configurations for the reactor
package types

import (
	"fmt"
	"strings"
	"time"
)

// Packaging represents the artifact type a module produces
type Packaging string

const (
	PackagingJar Packaging = "jar"
	PackagingWar Packaging = "war"
	PackagingZip Packaging = "zip"
	PackagingPom Packaging = "pom"
)

// Scope represents a dependency scope
type Scope string

const (
	ScopeCompile  Scope = "compile"
	ScopeTest     Scope = "test"
	ScopeRuntime  Scope = "runtime"
	ScopeProvided Scope = "provided"
)

// Valid reports whether the scope is one of the known scopes.
// The empty scope is valid and means "unset".
func (s Scope) Valid() bool {
	switch s {
	case "", ScopeCompile, ScopeTest, ScopeRuntime, ScopeProvided:
		return true
	}
	return false
}

// OrDefault returns the scope, or compile when unset
func (s Scope) OrDefault() Scope {
	if s == "" {
		return ScopeCompile
	}
	return s
}

// Key identifies an artifact independent of its version
type Key struct {
	Group    string `json:"group" yaml:"group"`
	Artifact string `json:"artifact" yaml:"artifact"`
}

func (k Key) String() string {
	return k.Group + ":" + k.Artifact
}

// Coordinate uniquely identifies a buildable or fetchable unit
type Coordinate struct {
	Group     string    `json:"group" yaml:"group"`
	Artifact  string    `json:"artifact" yaml:"artifact"`
	Version   string    `json:"version" yaml:"version"`
	Packaging Packaging `json:"packaging,omitempty" yaml:"packaging,omitempty"`
}

// Key returns the version-less identity of the coordinate
func (c Coordinate) Key() Key {
	return Key{Group: c.Group, Artifact: c.Artifact}
}

// ID returns group:artifact:version, the session-unique identity
func (c Coordinate) ID() string {
	return c.Group + ":" + c.Artifact + ":" + c.Version
}

func (c Coordinate) String() string {
	return c.ID()
}

// WithVersion returns a copy of the coordinate carrying version v
func (c Coordinate) WithVersion(v string) Coordinate {
	c.Version = v
	return c
}

// PackagingOrDefault returns the packaging, or jar when unset
func (c Coordinate) PackagingOrDefault() Packaging {
	if c.Packaging == "" {
		return PackagingJar
	}
	return c.Packaging
}

// ParseCoordinate parses group:artifact:version or group:artifact:packaging:version
func ParseCoordinate(s string) (Coordinate, error) {
	parts := strings.Split(s, ":")
	switch len(parts) {
	case 3:
		c := Coordinate{Group: parts[0], Artifact: parts[1], Version: parts[2]}
		return c, c.validate(s)
	case 4:
		c := Coordinate{Group: parts[0], Artifact: parts[1], Packaging: Packaging(parts[2]), Version: parts[3]}
		return c, c.validate(s)
	default:
		return Coordinate{}, fmt.Errorf("invalid coordinate %q: expected group:artifact[:packaging]:version", s)
	}
}

func (c Coordinate) validate(raw string) error {
	if c.Group == "" || c.Artifact == "" || c.Version == "" {
		return fmt.Errorf("invalid coordinate %q: empty segment", raw)
	}
	return nil
}

// Exclusion removes a (group, artifact) from a dependency's transitive closure.
// Either field may be "*".
type Exclusion struct {
	Group    string `json:"group" yaml:"group"`
	Artifact string `json:"artifact" yaml:"artifact"`
}

// Excludes reports whether the exclusion matches k
func (e Exclusion) Excludes(k Key) bool {
	return (e.Group == "*" || e.Group == k.Group) &&
		(e.Artifact == "*" || e.Artifact == k.Artifact)
}

// Dependency is a dependency declaration. Version may be empty and supplied
// by dependency management.
type Dependency struct {
	Group      string      `json:"group" yaml:"group"`
	Artifact   string      `json:"artifact" yaml:"artifact"`
	Version    string      `json:"version,omitempty" yaml:"version,omitempty"`
	Packaging  Packaging   `json:"type,omitempty" yaml:"type,omitempty"`
	Scope      Scope       `json:"scope,omitempty" yaml:"scope,omitempty"`
	Optional   bool        `json:"optional,omitempty" yaml:"optional,omitempty"`
	Exclusions []Exclusion `json:"exclusions,omitempty" yaml:"exclusions,omitempty"`
}

// Key returns the version-less identity of the declaration
func (d Dependency) Key() Key {
	return Key{Group: d.Group, Artifact: d.Artifact}
}

// Coordinate returns the declaration as a coordinate with the given version
func (d Dependency) Coordinate(version string) Coordinate {
	return Coordinate{Group: d.Group, Artifact: d.Artifact, Version: version, Packaging: d.Packaging}
}

// Execution binds goals of a plugin to a lifecycle phase
type Execution struct {
	ID            string            `json:"id,omitempty" yaml:"id,omitempty"`
	Phase         string            `json:"phase" yaml:"phase"`
	Goals         []string          `json:"goals" yaml:"goals"`
	Configuration map[string]string `json:"configuration,omitempty" yaml:"configuration,omitempty"`
}

// Plugin is a goal provider with its phase executions
type Plugin struct {
	ID         string      `json:"id" yaml:"id"`
	Executions []Execution `json:"executions,omitempty" yaml:"executions,omitempty"`
}

// Profile is a named, optionally activated fragment of a module declaration
type Profile struct {
	ID                   string            `json:"id" yaml:"id"`
	ActiveByDefault      bool              `json:"activeByDefault,omitempty" yaml:"activeByDefault,omitempty"`
	Properties           map[string]string `json:"properties,omitempty" yaml:"properties,omitempty"`
	Dependencies         []Dependency      `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
	DependencyManagement []Dependency      `json:"dependencyManagement,omitempty" yaml:"dependencyManagement,omitempty"`
	Plugins              []Plugin          `json:"plugins,omitempty" yaml:"plugins,omitempty"`
}

// ParentRef is a weak reference to a parent module
type ParentRef struct {
	Group        string `json:"group" yaml:"group"`
	Artifact     string `json:"artifact" yaml:"artifact"`
	Version      string `json:"version" yaml:"version"`
	RelativePath string `json:"relativePath,omitempty" yaml:"relativePath,omitempty"`
}

// Key returns the referenced module's key
func (p ParentRef) Key() Key {
	return Key{Group: p.Group, Artifact: p.Artifact}
}

// Module is a project declaration. Parent and aggregated children are held as
// keys and resolved through a project index, never as pointers.
type Module struct {
	Group                string            `json:"group,omitempty" yaml:"group,omitempty"`
	Artifact             string            `json:"artifact" yaml:"artifact"`
	Version              string            `json:"version,omitempty" yaml:"version,omitempty"`
	Packaging            Packaging         `json:"packaging,omitempty" yaml:"packaging,omitempty"`
	Name                 string            `json:"name,omitempty" yaml:"name,omitempty"`
	Parent               *ParentRef        `json:"parent,omitempty" yaml:"parent,omitempty"`
	Modules              []string          `json:"modules,omitempty" yaml:"modules,omitempty"`
	Properties           map[string]string `json:"properties,omitempty" yaml:"properties,omitempty"`
	Dependencies         []Dependency      `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
	DependencyManagement []Dependency      `json:"dependencyManagement,omitempty" yaml:"dependencyManagement,omitempty"`
	Plugins              []Plugin          `json:"plugins,omitempty" yaml:"plugins,omitempty"`
	Profiles             []Profile         `json:"profiles,omitempty" yaml:"profiles,omitempty"`

	// BaseDir is the directory holding the module descriptor
	BaseDir string `json:"-" yaml:"-"`
	// Aggregates lists the modules this module aggregates, resolved from Modules
	Aggregates []Key `json:"-" yaml:"-"`
}

// Key returns the module's version-less identity
func (m *Module) Key() Key {
	return Key{Group: m.Group, Artifact: m.Artifact}
}

// Coordinate returns the module coordinate
func (m *Module) Coordinate() Coordinate {
	return Coordinate{Group: m.Group, Artifact: m.Artifact, Version: m.Version, Packaging: m.PackagingOrDefault()}
}

// PackagingOrDefault returns the packaging, or jar when unset
func (m *Module) PackagingOrDefault() Packaging {
	if m.Packaging == "" {
		return PackagingJar
	}
	return m.Packaging
}

// DisplayName returns the human name of the module, falling back to its artifact
func (m *Module) DisplayName() string {
	if m.Name != "" {
		return m.Name
	}
	return m.Artifact
}

// Goal is an opaque unit of work identified by plugin and goal name
type Goal struct {
	Plugin        string            `json:"plugin"`
	Name          string            `json:"name"`
	ExecutionID   string            `json:"executionId,omitempty"`
	Configuration map[string]string `json:"configuration,omitempty"`
}

func (g Goal) String() string {
	return g.Plugin + ":" + g.Name
}

// ParseGoal parses a plugin:goal reference
func ParseGoal(s string) (Goal, error) {
	plugin, name, ok := strings.Cut(s, ":")
	if !ok || plugin == "" || name == "" {
		return Goal{}, fmt.Errorf("invalid goal %q: expected plugin:goal", s)
	}
	return Goal{Plugin: plugin, Name: name}, nil
}

// Status is the outcome of a goal, phase or module
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
)

// GoalOutcome records the result of a single goal invocation
type GoalOutcome struct {
	Goal    Goal
	Status  Status
	Elapsed time.Duration
	Err     error
}

// PhaseOutcome records the result of a phase for one module
type PhaseOutcome struct {
	Phase   string
	Status  Status
	Goals   []GoalOutcome
	Elapsed time.Duration
	Err     error
}

// FailMode controls how a session reacts to a module failure
type FailMode string

const (
	FailFast  FailMode = "fast"
	FailAtEnd FailMode = "atEnd"
	FailNever FailMode = "never"
)

// ParseFailMode parses a fail mode, accepting the common CLI spellings
func ParseFailMode(s string) (FailMode, error) {
	switch strings.ToLower(s) {
	case "", "fast", "fail-fast":
		return FailFast, nil
	case "atend", "at-end", "fail-at-end":
		return FailAtEnd, nil
	case "never", "fail-never":
		return FailNever, nil
	}
	return "", fmt.Errorf("%w: unknown fail mode %q", ErrInvalidConfig, s)
}

// Options are the per-invocation settings threaded through a build session
type Options struct {
	ActiveProfiles      []string
	SkipTests           bool
	FailMode            FailMode
	LocalRepositoryPath string
	Threads             int
	GoalTimeout         time.Duration
	Properties          map[string]string
	Projects            []string
	AlsoMake            bool
}

// DefaultOptions returns options with the documented defaults
func DefaultOptions() Options {
	return Options{
		FailMode:    FailFast,
		Threads:     1,
		GoalTimeout: 10 * time.Minute,
		Properties:  map[string]string{},
	}
}
