package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/poltergeist/reactor/pkg/lifecycle"
	"github.com/poltergeist/reactor/pkg/report"
	"github.com/poltergeist/reactor/pkg/repository"
	"github.com/poltergeist/reactor/pkg/session"
	"github.com/poltergeist/reactor/pkg/types"
)

// prepare loads the project and runs the configuration phase of a session.
// Configuration errors are rendered before they are returned.
func (c *CLI) prepare(cmd *cobra.Command) (*session.Session, error) {
	p, err := c.loadProject()
	if err != nil {
		return nil, err
	}
	rc := NewRuntimeConfig(cmd.Context(), c.config, c.settings, p)
	opts, err := rc.Settings.Options()
	if err != nil {
		return nil, err
	}
	log := rc.Logger(c.logger)

	repo, err := repository.Open(opts.LocalRepositoryPath, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open local repository: %w", err)
	}

	s := session.New(p, opts, session.Dependencies{Repository: repo}, log)
	if err := s.Prepare(rc.Context); err != nil {
		if rerr := s.Report().Render(c.errorOut, report.RenderOptions{Color: c.color}); rerr != nil {
			return nil, rerr
		}
		return nil, fmt.Errorf("%w: %w", ErrBuildFailed, err)
	}
	return s, nil
}

func (c *CLI) newOrderCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "order",
		Short: "Print the reactor build order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := c.prepare(cmd)
			if err != nil {
				return err
			}

			r := s.Reactor()
			tw := tabwriter.NewWriter(c.output, 0, 0, 2, ' ', 0)
			for i, m := range r.Modules() {
				var upstream []string
				for _, u := range r.Upstream(m) {
					upstream = append(upstream, u.Artifact)
				}
				fmt.Fprintf(tw, "%d.\t%s\t%s\t%s\n", i+1, m.DisplayName(), m.Coordinate().ID(), strings.Join(upstream, ", "))
			}
			return tw.Flush()
		},
	}
}

func (c *CLI) newTreeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tree <module>",
		Short: "Print the resolved dependency graph of a module",
		Long: `Print the resolved dependency graph of a module, followed by every
version conflict mediated while resolving it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := c.prepare(cmd)
			if err != nil {
				return err
			}

			m := findModule(s, args[0])
			if m == nil {
				return fmt.Errorf("%w: %s", types.ErrUnknownModule, args[0])
			}
			g, ok := s.Graph(m)
			if !ok {
				return fmt.Errorf("%w: no graph for %s", types.ErrUnknownModule, args[0])
			}
			return g.WriteTree(c.output)
		},
	}
}

// findModule matches an artifact, group:artifact or display name
func findModule(s *session.Session, name string) *types.Module {
	for _, m := range s.Reactor().Modules() {
		if m.Artifact == name || m.Key().String() == name || m.Name == name {
			return m
		}
	}
	return nil
}

func (c *CLI) newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate descriptors, properties, dependency graphs and bindings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := c.prepare(cmd)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.output, "Project is valid: %d module(s)\n", len(s.Reactor().Modules()))
			return nil
		},
	}
}

func (c *CLI) newLifecyclesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lifecycles",
		Short: "List the built-in lifecycles and their phases",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, l := range lifecycle.Lifecycles() {
				fmt.Fprintf(c.output, "%s:\n", l.ID)
				for _, phase := range l.Phases {
					fmt.Fprintf(c.output, "  %s\n", phase)
				}
			}
			return nil
		},
	}
}

func (c *CLI) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			version := c.config.Version
			if version == "" {
				version = "dev"
			}
			fmt.Fprintf(c.output, "reactor v%s\n", version)
			return nil
		},
	}
}
