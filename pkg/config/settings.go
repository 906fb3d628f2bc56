package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/poltergeist/reactor/pkg/types"
)

// EnvPrefix prefixes environment variables that override settings
const EnvPrefix = "REACTOR"

// SettingsName is the settings file searched for in the user's reactor home
const SettingsName = "settings"

// Settings are the per-user defaults of a build invocation
type Settings struct {
	LocalRepository string        `mapstructure:"localRepository"`
	ActiveProfiles  []string      `mapstructure:"activeProfiles"`
	SkipTests       bool          `mapstructure:"skipTests"`
	FailMode        string        `mapstructure:"failMode"`
	Threads         int           `mapstructure:"threads"`
	GoalTimeout     time.Duration `mapstructure:"goalTimeout"`
	// Properties are key=value overrides. A list keeps names case-sensitive.
	Properties    []string `mapstructure:"properties"`
	Notifications bool     `mapstructure:"notifications"`
	LogLevel      string   `mapstructure:"logLevel"`
}

// Home returns the reactor home directory, ~/.reactor
func Home() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".reactor"
	}
	return filepath.Join(home, ".reactor")
}

// DefaultSettings returns the documented defaults
func DefaultSettings() *Settings {
	return &Settings{
		LocalRepository: filepath.Join(Home(), "repository"),
		FailMode:        string(types.FailFast),
		Threads:         1,
		GoalTimeout:     10 * time.Minute,
		LogLevel:        "info",
	}
}

// SetDefaults registers the defaults on v
func SetDefaults(v *viper.Viper) {
	d := DefaultSettings()
	v.SetDefault("localRepository", d.LocalRepository)
	v.SetDefault("failMode", d.FailMode)
	v.SetDefault("threads", d.Threads)
	v.SetDefault("goalTimeout", d.GoalTimeout)
	v.SetDefault("skipTests", d.SkipTests)
	v.SetDefault("notifications", d.Notifications)
	v.SetDefault("logLevel", d.LogLevel)
}

// LoadSettings reads settings into v and decodes them. An explicit path must
// exist; otherwise settings.yaml in the reactor home is used when present.
// Environment variables prefixed REACTOR_ override the file.
func LoadSettings(v *viper.Viper, path string) (*Settings, error) {
	SetDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(Home())
		v.SetConfigName(SettingsName)
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read settings: %w", err)
		}
	}

	s := DefaultSettings()
	if err := v.Unmarshal(s); err != nil {
		return nil, fmt.Errorf("failed to decode settings: %w", err)
	}
	s.LocalRepository = expandHome(s.LocalRepository)

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate rejects settings no session can run with
func (s *Settings) Validate() error {
	if _, err := types.ParseFailMode(s.FailMode); err != nil {
		return err
	}
	if s.Threads < 1 {
		return fmt.Errorf("%w: threads must be at least 1, got %d", types.ErrInvalidConfig, s.Threads)
	}
	if s.GoalTimeout < 0 {
		return fmt.Errorf("%w: negative goal timeout", types.ErrInvalidConfig)
	}
	if s.LocalRepository == "" {
		return fmt.Errorf("%w: no local repository", types.ErrInvalidConfig)
	}
	_, err := ParseProperties(s.Properties)
	return err
}

// Options converts settings to session options
func (s *Settings) Options() (types.Options, error) {
	mode, err := types.ParseFailMode(s.FailMode)
	if err != nil {
		return types.Options{}, err
	}
	props, err := ParseProperties(s.Properties)
	if err != nil {
		return types.Options{}, err
	}
	return types.Options{
		ActiveProfiles:      append([]string(nil), s.ActiveProfiles...),
		SkipTests:           s.SkipTests,
		FailMode:            mode,
		LocalRepositoryPath: s.LocalRepository,
		Threads:             s.Threads,
		GoalTimeout:         s.GoalTimeout,
		Properties:          props,
	}, nil
}

// ParseProperties parses key=value pairs. Later pairs win.
func ParseProperties(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("%w: property %q is not key=value", types.ErrInvalidConfig, pair)
		}
		out[k] = v
	}
	return out, nil
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
