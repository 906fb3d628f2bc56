package cli

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/spf13/cobra"

	cfg "github.com/poltergeist/reactor/pkg/config"
	"github.com/poltergeist/reactor/pkg/logger"
	"github.com/poltergeist/reactor/pkg/notifier"
	"github.com/poltergeist/reactor/pkg/project"
	"github.com/poltergeist/reactor/pkg/report"
	"github.com/poltergeist/reactor/pkg/repository"
	"github.com/poltergeist/reactor/pkg/session"
	"github.com/poltergeist/reactor/pkg/types"
	"github.com/poltergeist/reactor/pkg/watch"
)

// buildFlags are the session flags shared by build and watch
type buildFlags struct {
	failFast    bool
	failAtEnd   bool
	failNever   bool
	skipTests   bool
	profiles    []string
	defines     []string
	threads     int
	projects    []string
	alsoMake    bool
	goalTimeout time.Duration
}

func (f *buildFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.BoolVar(&f.failFast, "fail-fast", false, "stop at the first failed module (default)")
	flags.BoolVar(&f.failAtEnd, "fail-at-end", false, "build modules that do not depend on a failed module, fail at the end")
	flags.BoolVar(&f.failNever, "fail-never", false, "build every module and never fail the session")
	flags.BoolVar(&f.skipTests, "skip-tests", false, "skip goals bound to test phases")
	flags.StringSliceVarP(&f.profiles, "activate-profiles", "P", nil, "profiles to activate, !id deactivates")
	flags.StringArrayVarP(&f.defines, "define", "D", nil, "property override as key=value")
	flags.IntVarP(&f.threads, "threads", "T", 1, "modules built in parallel")
	flags.StringSliceVar(&f.projects, "projects", nil, "build only these modules")
	flags.BoolVar(&f.alsoMake, "also-make", false, "also build the modules the selected projects depend on")
	flags.DurationVar(&f.goalTimeout, "goal-timeout", 0, "per-goal time limit")
	cmd.MarkFlagsMutuallyExclusive("fail-fast", "fail-at-end", "fail-never")
}

// options merges the settings with the flags that are not bound to them
func (f *buildFlags) options(settings *cfg.Settings) (types.Options, error) {
	opts, err := settings.Options()
	if err != nil {
		return opts, err
	}

	switch {
	case f.failFast:
		opts.FailMode = types.FailFast
	case f.failAtEnd:
		opts.FailMode = types.FailAtEnd
	case f.failNever:
		opts.FailMode = types.FailNever
	}

	defines, err := cfg.ParseProperties(f.defines)
	if err != nil {
		return opts, err
	}
	if opts.Properties == nil {
		opts.Properties = map[string]string{}
	}
	maps.Copy(opts.Properties, defines)

	opts.Projects = f.projects
	opts.AlsoMake = f.alsoMake
	return opts, nil
}

func (c *CLI) newBuildCmd() *cobra.Command {
	flags := &buildFlags{}

	cmd := &cobra.Command{
		Use:   "build <phase>...",
		Short: "Run lifecycle phases across every module",
		Long: `Run each requested phase, and every phase before it in its lifecycle,
for every module in reactor order.

Examples:
  reactor build clean install
  reactor build install -T 4 --fail-at-end
  reactor build package --projects service --also-make -Denv=ci`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := c.loadProject()
			if err != nil {
				return err
			}
			rc := NewRuntimeConfig(cmd.Context(), c.config, c.settings, p)
			return c.runBuild(rc, flags, args)
		},
	}

	flags.register(cmd)
	return cmd
}

// runBuild runs one session and renders its report
func (c *CLI) runBuild(rc *RuntimeConfig, flags *buildFlags, phases []string) error {
	opts, err := flags.options(rc.Settings)
	if err != nil {
		return err
	}
	log := rc.Logger(c.logger)

	repo, err := repository.Open(opts.LocalRepositoryPath, log)
	if err != nil {
		return fmt.Errorf("failed to open local repository: %w", err)
	}

	s := session.New(rc.Project, opts, session.Dependencies{Repository: repo}, log)
	log.Info("Starting build",
		logger.WithField("session", s.ID()),
		logger.WithField("modules", rc.Project.Len()),
		logger.WithField("threads", opts.Threads))

	runErr := s.Run(rc.Context, phases...)

	if err := s.Report().Render(c.output, report.RenderOptions{Color: c.color, Conflicts: true}); err != nil {
		return err
	}
	notifier.New(notifier.Config{
		Enabled: rc.Settings.Notifications,
		Sound:   rc.Settings.Notifications,
	}, log).NotifySession(s.Report())

	if runErr != nil {
		return fmt.Errorf("%w: %w", ErrBuildFailed, runErr)
	}
	return nil
}

func (c *CLI) newWatchCmd() *cobra.Command {
	flags := &buildFlags{}
	var settle time.Duration
	var ignore []string

	cmd := &cobra.Command{
		Use:   "watch <phase>...",
		Short: "Rebuild whenever module sources change",
		Long: `Build once, then watch every module's base directory and start a fresh
build session after each settled batch of changes. Build output directories
are not watched.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := c.loadProject()
			if err != nil {
				return err
			}

			w, err := watch.ForModules(p.Modules(), c.logger,
				watch.WithSettlingDelay(settle),
				watch.WithIgnorePatterns(ignore...))
			if err != nil {
				return err
			}
			defer w.Close()

			ctx := cmd.Context()
			c.rebuild(ctx, p, w, flags, args)
			c.logger.Info("Watching for changes", logger.WithField("directories", len(w.Watched())))

			return w.Run(ctx, func(ctx context.Context, paths []string) {
				p, err := c.loadProject()
				if err != nil {
					c.logger.Error("Failed to reload project", logger.WithError(err))
					return
				}
				c.rebuild(ctx, p, w, flags, args)
			})
		},
	}

	flags.register(cmd)
	cmd.Flags().DurationVar(&settle, "settle", watch.DefaultSettlingDelay, "quiet period before a rebuild starts")
	cmd.Flags().StringSliceVar(&ignore, "ignore", nil, "glob patterns of files that never trigger a rebuild")
	return cmd
}

func (c *CLI) rebuild(ctx context.Context, p *project.Project, w *watch.Watcher, flags *buildFlags, phases []string) {
	for _, m := range p.Modules() {
		if m.BaseDir == "" {
			continue
		}
		if err := w.Add(m.BaseDir); err != nil {
			c.logger.Warn("Failed to watch module", logger.WithField("module", m.DisplayName()), logger.WithError(err))
		}
	}

	err := c.runBuild(NewRuntimeConfig(ctx, c.config, c.settings, p), flags, phases)
	switch {
	case err == nil:
	case errors.Is(err, ErrBuildFailed):
		c.logger.Warn("Build failed, waiting for changes")
	default:
		c.logger.Error("Build could not start", logger.WithError(err))
	}
}
