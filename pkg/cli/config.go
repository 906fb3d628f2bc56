package cli

import (
	"context"
	"fmt"
	"time"

	cfg "github.com/poltergeist/reactor/pkg/config"
	rctx "github.com/poltergeist/reactor/pkg/context"
	"github.com/poltergeist/reactor/pkg/logger"
	"github.com/poltergeist/reactor/pkg/project"
)

// Config holds the global flags of one CLI instance
type Config struct {
	SettingsFile string
	ProjectRoot  string
	Verbosity    string
	Version      string
}

// NewConfig creates a new CLI configuration with defaults
func NewConfig() *Config {
	return &Config{
		ProjectRoot: ".",
	}
}

// RuntimeConfig is what a command runs with once settings and the project
// are loaded
type RuntimeConfig struct {
	Config    *Config
	Settings  *cfg.Settings
	Project   *project.Project
	Context   context.Context
	StartTime time.Time
	RequestID string
}

// NewRuntimeConfig creates a runtime configuration with context
func NewRuntimeConfig(ctx context.Context, c *Config, settings *cfg.Settings, p *project.Project) *RuntimeConfig {
	if ctx == nil {
		ctx = context.Background()
	}
	id := rctx.GenerateInvocationID()
	return &RuntimeConfig{
		Config:    c,
		Settings:  settings,
		Project:   p,
		Context:   rctx.WithInvocationID(ctx, id),
		StartTime: time.Now(),
		RequestID: id,
	}
}

// Logger returns log scoped to this invocation
func (rc *RuntimeConfig) Logger(log logger.Logger) logger.Logger {
	return logger.WithContext(rc.Context, log)
}

// loadProject loads every module reachable from the project root
func (c *CLI) loadProject() (*project.Project, error) {
	modules, err := cfg.NewManager().LoadProject(c.config.ProjectRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to load project: %w", err)
	}
	return project.New(modules)
}
