// Package cli provides the command-line interface for reactor
package cli

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	cfg "github.com/poltergeist/reactor/pkg/config"
	"github.com/poltergeist/reactor/pkg/logger"
)

// ErrBuildFailed is returned after a failed session has been reported
var ErrBuildFailed = errors.New("build failed")

// settingsFlags maps settings keys to the command flags that override them
var settingsFlags = map[string]string{
	"logLevel":       "verbosity",
	"skipTests":      "skip-tests",
	"threads":        "threads",
	"goalTimeout":    "goal-timeout",
	"activeProfiles": "activate-profiles",
}

// CLI holds one command tree and its settings. Instances share no state.
type CLI struct {
	config   *Config
	rootCmd  *cobra.Command
	viper    *viper.Viper
	settings *cfg.Settings
	logger   logger.Logger
	output   io.Writer
	errorOut io.Writer
	color    bool
}

// NewCLI creates a new CLI instance with the given configuration
func NewCLI(config *Config) *CLI {
	if config == nil {
		config = NewConfig()
	}

	cli := &CLI{
		config:   config,
		viper:    viper.New(),
		logger:   logger.NewNopLogger(),
		output:   os.Stdout,
		errorOut: os.Stderr,
		color:    !color.NoColor,
	}

	cli.setupCommands()
	return cli
}

// NewCLIWithOutput creates a CLI with custom output writers (for testing)
func NewCLIWithOutput(config *Config, output, errorOut io.Writer) *CLI {
	cli := NewCLI(config)
	cli.output = output
	cli.errorOut = errorOut
	cli.color = false
	cli.rootCmd.SetOut(output)
	cli.rootCmd.SetErr(errorOut)
	return cli
}

// Execute runs the CLI with the given arguments
func (c *CLI) Execute(args []string) error {
	c.rootCmd.SetArgs(args)
	return c.rootCmd.Execute()
}

// ExecuteContext runs the CLI with context support
func (c *CLI) ExecuteContext(ctx context.Context, args []string) error {
	c.rootCmd.SetArgs(args)
	return c.rootCmd.ExecuteContext(ctx)
}

func (c *CLI) setupCommands() {
	c.rootCmd = &cobra.Command{
		Use:   "reactor",
		Short: "Multi-module build lifecycle engine",
		Long: `reactor builds multi-module projects.

It resolves each module's properties and dependency graph, orders the modules
so every module builds after the modules it depends on, and runs the goals
bound to the requested lifecycle phases.`,

		PersistentPreRunE: c.initializeConfig,
		SilenceUsage:      true,
		SilenceErrors:     true,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}

	c.setupFlags()

	c.rootCmd.Version = c.config.Version
	c.rootCmd.SetVersionTemplate("reactor v{{.Version}}\n")

	c.rootCmd.AddCommand(c.newBuildCmd())
	c.rootCmd.AddCommand(c.newWatchCmd())
	c.rootCmd.AddCommand(c.newOrderCmd())
	c.rootCmd.AddCommand(c.newTreeCmd())
	c.rootCmd.AddCommand(c.newValidateCmd())
	c.rootCmd.AddCommand(c.newLifecyclesCmd())
	c.rootCmd.AddCommand(c.newVersionCmd())
}

func (c *CLI) setupFlags() {
	flags := c.rootCmd.PersistentFlags()

	flags.StringVar(&c.config.SettingsFile, "settings", "", "settings file (default: ~/.reactor/settings.yaml)")
	flags.StringVar(&c.config.ProjectRoot, "root", ".", "project root directory")
	flags.StringVarP(&c.config.Verbosity, "verbosity", "v", "", "log level (debug, info, warn, error)")
}

// initializeConfig loads settings with the running command's flags bound on
// top of the environment and the settings file
func (c *CLI) initializeConfig(cmd *cobra.Command, args []string) error {
	bindFlags(c.viper, cmd.Flags())

	settings, err := cfg.LoadSettings(c.viper, c.config.SettingsFile)
	if err != nil {
		return err
	}
	c.settings = settings
	c.logger = logger.CreateLoggerWithOutput("", settings.LogLevel, c.errorOut)

	if used := c.viper.ConfigFileUsed(); used != "" {
		c.logger.Debug("Using settings file", logger.WithField("file", used))
	}
	return nil
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) {
	for key, name := range settingsFlags {
		if f := flags.Lookup(name); f != nil {
			_ = v.BindPFlag(key, f)
		}
	}
}

// ExecuteWithVersion runs the CLI on the process arguments
func ExecuteWithVersion(ctx context.Context, version string) error {
	config := NewConfig()
	config.Version = version
	cli := NewCLI(config)
	return cli.ExecuteContext(ctx, os.Args[1:])
}
