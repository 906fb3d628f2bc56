package plugins

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/poltergeist/reactor/pkg/lifecycle"
	"github.com/poltergeist/reactor/pkg/logger"
	"github.com/poltergeist/reactor/pkg/properties"
)

// Exec configuration keys
const (
	ConfigCommand = "command"
	// ConfigEnvPrefix marks environment entries, e.g. "env.GOFLAGS"
	ConfigEnvPrefix = "env."
	// ConfigDir overrides the working directory, relative to the module
	ConfigDir = "dir"
)

// Exec runs a shell command for exec:run
type Exec struct {
	logger logger.Logger
}

// NewExec creates the exec plugin
func NewExec(log logger.Logger) *Exec {
	return &Exec{logger: logger.OrNop(log)}
}

// Execute implements lifecycle.GoalExecutor
func (e *Exec) Execute(ctx context.Context, req lifecycle.GoalRequest) error {
	command := strings.TrimSpace(req.Goal.Configuration[ConfigCommand])
	if command == "" {
		return fmt.Errorf("exec:run needs a %q configuration entry", ConfigCommand)
	}
	log := e.logger.WithModule(req.Module.Artifact)
	startTime := time.Now()

	baseDir := req.Properties[properties.BaseDir]
	if baseDir == "" {
		baseDir = req.Module.BaseDir
	}

	logFile, err := prepareLogFile(req)
	if err != nil {
		log.Warn(fmt.Sprintf("Failed to create log file: %v", err))
	}
	defer func() {
		if logFile != nil {
			logFile.Close()
		}
	}()
	logToFile(logFile, fmt.Sprintf("\n=== %s started at %s ===\nExecuting: %s\n",
		req.Goal, startTime.Format("2006-01-02 15:04:05"), command))

	cmd := createCommand(ctx, command)
	cmd.Dir = baseDir
	if dir := req.Goal.Configuration[ConfigDir]; dir != "" {
		cmd.Dir = resolvePath(baseDir, dir)
	}
	if env := environment(req.Goal.Configuration); len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}

	var output bytes.Buffer
	var w io.Writer = &output
	if logFile != nil {
		w = io.MultiWriter(&output, logFile)
	}
	cmd.Stdout = w
	cmd.Stderr = w

	err = cmd.Run()
	duration := time.Since(startTime)
	if err != nil {
		log.Error("Command failed",
			logger.WithField("command", command),
			logger.WithField("output", output.String()))
		logToFile(logFile, fmt.Sprintf("\n=== FAILED after %s: %v ===\n", duration, err))
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("command %q failed: %w\n%s", command, err, output.Bytes())
	}

	logToFile(logFile, fmt.Sprintf("\n=== SUCCEEDED after %s ===\n", duration))
	if output.Len() > 0 {
		log.Debug("Command output", logger.WithField("output", output.String()))
	}
	return nil
}

// createCommand runs command through the shell when it uses shell syntax and
// directly otherwise.
func createCommand(ctx context.Context, command string) *exec.Cmd {
	if strings.ContainsAny(command, "&|;<>$`*?") {
		return exec.CommandContext(ctx, "sh", "-c", command)
	}
	parts := strings.Fields(command)
	return exec.CommandContext(ctx, parts[0], parts[1:]...)
}

func environment(config map[string]string) []string {
	var env []string
	for k, v := range config {
		if strings.HasPrefix(k, ConfigEnvPrefix) {
			env = append(env, strings.TrimPrefix(k, ConfigEnvPrefix)+"="+v)
		}
	}
	sort.Strings(env)
	return env
}

func resolvePath(base, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

// prepareLogFile opens the goal's log under the module build directory
func prepareLogFile(req lifecycle.GoalRequest) (*os.File, error) {
	buildDir := req.Properties[properties.BuildDirectory]
	if buildDir == "" {
		return nil, nil
	}
	logDir := filepath.Join(buildDir, "logs")
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	name := req.Goal.ExecutionID
	if name == "" {
		name = req.Phase
	}
	logPath := filepath.Join(logDir, fmt.Sprintf("%s-%s.log", req.Goal.Plugin, name))
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return f, nil
}

func logToFile(f *os.File, message string) {
	if f != nil {
		_, _ = f.WriteString(message)
	}
}
