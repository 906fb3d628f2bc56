package logger

import (
	"context"
	"sort"

	rcontext "github.com/poltergeist/reactor/pkg/context"
)

// WithContext returns a logger that adds the session tracing values found
// in ctx to every entry. The module carried by ctx becomes the module prefix.
func WithContext(ctx context.Context, l Logger) Logger {
	if ctx == nil || l == nil {
		return l
	}

	fields := rcontext.TracingFields(ctx)
	if module, ok := fields["module"].(string); ok {
		l = l.WithModule(module)
		delete(fields, "module")
	}
	if len(fields) == 0 {
		return l
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	extra := make([]Field, 0, len(keys))
	for _, k := range keys {
		extra = append(extra, WithField(k, fields[k]))
	}
	return &contextualLogger{logger: l, extra: extra}
}

// contextualLogger prepends fixed fields to every entry
type contextualLogger struct {
	logger Logger
	extra  []Field
}

func (cl *contextualLogger) merge(fields []Field) []Field {
	all := make([]Field, 0, len(cl.extra)+len(fields))
	all = append(all, cl.extra...)
	return append(all, fields...)
}

func (cl *contextualLogger) Info(message string, fields ...Field) {
	cl.logger.Info(message, cl.merge(fields)...)
}

func (cl *contextualLogger) Error(message string, fields ...Field) {
	cl.logger.Error(message, cl.merge(fields)...)
}

func (cl *contextualLogger) Warn(message string, fields ...Field) {
	cl.logger.Warn(message, cl.merge(fields)...)
}

func (cl *contextualLogger) Debug(message string, fields ...Field) {
	cl.logger.Debug(message, cl.merge(fields)...)
}

func (cl *contextualLogger) Success(message string, fields ...Field) {
	cl.logger.Success(message, cl.merge(fields)...)
}

func (cl *contextualLogger) WithModule(module string) Logger {
	return &contextualLogger{
		logger: cl.logger.WithModule(module),
		extra:  cl.extra,
	}
}
