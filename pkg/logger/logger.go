// Package logger provides enhanced logging with module-specific support
package logger

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
)

// Logger interface for abstracted logging
type Logger interface {
	Info(message string, fields ...Field)
	Error(message string, fields ...Field)
	Warn(message string, fields ...Field)
	Debug(message string, fields ...Field)
	Success(message string, fields ...Field)
	WithModule(module string) Logger
}

// Field represents a structured logging field
type Field struct {
	Key   string
	Value interface{}
}

// WithField creates a new field
func WithField(key string, value interface{}) Field {
	return Field{Key: key, Value: value}
}

// WithError creates an error field
func WithError(err error) Field {
	return Field{Key: "error", Value: err}
}

// ModuleLogger implements Logger with module awareness
type ModuleLogger struct {
	logger     *logrus.Logger
	moduleName string
	mu         sync.RWMutex
}

// CustomFormatter formats logs with colors
type CustomFormatter struct {
	TimestampFormat string
	DisableColors   bool
}

// Format implements logrus.Formatter
func (f *CustomFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	timestamp := entry.Time.Format(f.TimestampFormat)

	var levelColor *color.Color
	var levelText string

	switch entry.Level {
	case logrus.ErrorLevel:
		levelColor = color.New(color.FgRed, color.Bold)
		levelText = "ERROR"
	case logrus.WarnLevel:
		levelColor = color.New(color.FgYellow, color.Bold)
		levelText = "WARN"
	case logrus.InfoLevel:
		levelColor = color.New(color.FgCyan)
		levelText = "INFO"
	case logrus.DebugLevel:
		levelColor = color.New(color.FgWhite, color.Faint)
		levelText = "DEBUG"
	default:
		levelColor = color.New(color.FgGreen)
		levelText = "SUCCESS"
	}

	data := make(logrus.Fields, len(entry.Data))
	for k, v := range entry.Data {
		data[k] = v
	}

	modulePrefix := ""
	if module, ok := data["module"]; ok {
		if f.DisableColors {
			modulePrefix = fmt.Sprintf("[%v] ", module)
		} else {
			modulePrefix = fmt.Sprintf("[%s] ", color.New(color.FgBlue).Sprint(module))
		}
		delete(data, "module")
	}

	var output string
	if f.DisableColors {
		output = fmt.Sprintf("[%s] %s: %s%s", timestamp, levelText, modulePrefix, entry.Message)
	} else {
		output = fmt.Sprintf("[%s] %s: %s%s",
			timestamp,
			levelColor.Sprint(levelText),
			modulePrefix,
			entry.Message,
		)
	}

	if len(data) > 0 {
		keys := make([]string, 0, len(data))
		for k := range data {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s=%v", k, data[k]))
		}
		fields := " {" + strings.Join(parts, ", ") + "}"
		if f.DisableColors {
			output += fields
		} else {
			output += color.New(color.FgWhite, color.Faint).Sprint(fields)
		}
	}

	return []byte(output + "\n"), nil
}

// CreateLogger creates a new logger instance
func CreateLogger(logFile string, logLevel string) Logger {
	log := logrus.New()
	log.SetLevel(parseLevel(logLevel))
	log.SetFormatter(&CustomFormatter{
		TimestampFormat: "15:04:05",
		DisableColors:   false,
	})

	if logFile != "" {
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err == nil {
			log.SetOutput(io.MultiWriter(os.Stdout, file))
		}
	}

	return &ModuleLogger{
		logger: log,
	}
}

// CreateLoggerWithOutput creates a logger with custom output (for testing)
func CreateLoggerWithOutput(logFile string, logLevel string, output io.Writer) Logger {
	log := logrus.New()
	log.SetLevel(parseLevel(logLevel))
	log.SetFormatter(&CustomFormatter{
		TimestampFormat: "15:04:05",
		DisableColors:   true,
	})
	log.SetOutput(output)

	return &ModuleLogger{
		logger: log,
	}
}

// NewNopLogger returns a logger that discards everything
func NewNopLogger() Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return &ModuleLogger{logger: log}
}

// OrNop returns l, or a discarding logger when l is nil
func OrNop(l Logger) Logger {
	if l == nil {
		return NewNopLogger()
	}
	return l
}

func parseLevel(logLevel string) logrus.Level {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}

// WithModule creates a new logger with module context
func (l *ModuleLogger) WithModule(module string) Logger {
	return &ModuleLogger{
		logger:     l.logger,
		moduleName: module,
	}
}

// convertFields converts Field slice to logrus.Fields
func (l *ModuleLogger) convertFields(fields []Field) logrus.Fields {
	result := make(logrus.Fields)
	if l.moduleName != "" {
		result["module"] = l.moduleName
	}
	for _, f := range fields {
		result[f.Key] = f.Value
	}
	return result
}

// Info logs an info message
func (l *ModuleLogger) Info(message string, fields ...Field) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	l.logger.WithFields(l.convertFields(fields)).Info(message)
}

// Error logs an error message
func (l *ModuleLogger) Error(message string, fields ...Field) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	l.logger.WithFields(l.convertFields(fields)).Error(message)
}

// Warn logs a warning message
func (l *ModuleLogger) Warn(message string, fields ...Field) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	l.logger.WithFields(l.convertFields(fields)).Warn(message)
}

// Debug logs a debug message
func (l *ModuleLogger) Debug(message string, fields ...Field) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	l.logger.WithFields(l.convertFields(fields)).Debug(message)
}

// Success logs a success message (info level with special formatting)
func (l *ModuleLogger) Success(message string, fields ...Field) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	l.logger.WithFields(l.convertFields(fields)).Info("✅ " + message)
}
