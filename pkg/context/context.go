// Package context carries build-session tracing values through context.Context
package context

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type ctxKey int

// Context keys for session tracing
const (
	sessionIDKey ctxKey = iota
	moduleKey
	phaseKey
	invocationIDKey
	startTimeKey
)

// WithSessionID adds a build session ID to the context
func WithSessionID(parent context.Context, sessionID string) context.Context {
	if sessionID == "" {
		sessionID = GenerateSessionID()
	}
	return context.WithValue(parent, sessionIDKey, sessionID)
}

// GetSessionID retrieves the session ID from context
func GetSessionID(ctx context.Context) string {
	if id, ok := ctx.Value(sessionIDKey).(string); ok && id != "" {
		return id
	}
	return ""
}

// WithModule adds the module being built to the context
func WithModule(parent context.Context, module string) context.Context {
	return context.WithValue(parent, moduleKey, module)
}

// GetModule retrieves the module name from context
func GetModule(ctx context.Context) string {
	if m, ok := ctx.Value(moduleKey).(string); ok {
		return m
	}
	return ""
}

// WithPhase adds the running lifecycle phase to the context
func WithPhase(parent context.Context, phase string) context.Context {
	return context.WithValue(parent, phaseKey, phase)
}

// GetPhase retrieves the phase from context
func GetPhase(ctx context.Context) string {
	if p, ok := ctx.Value(phaseKey).(string); ok {
		return p
	}
	return ""
}

// WithInvocationID tags a single goal invocation
func WithInvocationID(parent context.Context, id string) context.Context {
	if id == "" {
		id = GenerateInvocationID()
	}
	return context.WithValue(parent, invocationIDKey, id)
}

// GetInvocationID retrieves the goal invocation ID from context
func GetInvocationID(ctx context.Context) string {
	if id, ok := ctx.Value(invocationIDKey).(string); ok {
		return id
	}
	return ""
}

// WithStartTime stamps the start of a phase or goal
func WithStartTime(parent context.Context, startTime time.Time) context.Context {
	return context.WithValue(parent, startTimeKey, startTime)
}

// GetStartTime retrieves the operation start time from context
func GetStartTime(ctx context.Context) (time.Time, bool) {
	t, ok := ctx.Value(startTimeKey).(time.Time)
	return t, ok
}

// GetDuration calculates the duration since the start time in context
func GetDuration(ctx context.Context) time.Duration {
	if start, ok := GetStartTime(ctx); ok {
		return time.Since(start)
	}
	return 0
}

// GenerateSessionID creates a new unique session ID
func GenerateSessionID() string {
	return "ses_" + uuid.New().String()
}

// GenerateInvocationID creates a new unique goal invocation ID
func GenerateInvocationID() string {
	return "inv_" + uuid.New().String()
}

// TracingFields returns common tracing fields for structured logging
func TracingFields(ctx context.Context) map[string]interface{} {
	fields := map[string]interface{}{}
	if id := GetSessionID(ctx); id != "" {
		fields["session"] = id
	}
	if m := GetModule(ctx); m != "" {
		fields["module"] = m
	}
	if p := GetPhase(ctx); p != "" {
		fields["phase"] = p
	}
	if id := GetInvocationID(ctx); id != "" {
		fields["invocation"] = id
	}
	return fields
}
