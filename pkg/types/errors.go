package types

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the build taxonomy.
// These enable reliable error checking with errors.Is()
var (
	ErrUnresolvedProperty = errors.New("unresolved property")
	ErrCircularProperty   = errors.New("circular property reference")
	ErrMissingVersion     = errors.New("missing dependency version")
	ErrCyclicDependency   = errors.New("cyclic dependency")
	ErrCyclicAggregation  = errors.New("cyclic module aggregation")
	ErrCyclicInheritance  = errors.New("cyclic module inheritance")
	ErrDuplicateModule    = errors.New("duplicate module")
	ErrUnknownModule      = errors.New("unknown module")
	ErrInvalidConfig      = errors.New("invalid configuration")
	ErrUnknownPhase       = errors.New("unknown lifecycle phase")

	ErrGoalTimeout   = errors.New("goal timed out")
	ErrGoalFailure   = errors.New("goal failed")
	ErrUnknownPlugin = errors.New("unknown plugin")
	ErrNotFound      = errors.New("artifact not found")
	ErrCancelled     = errors.New("build cancelled")
)

// BuildError carries a taxonomy kind together with the module it concerns
type BuildError struct {
	Kind   error
	Module string
	Msg    string
	Cause  error
}

func (e *BuildError) Error() string {
	if e == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Module != "" {
		b.WriteString(" in ")
		b.WriteString(e.Module)
	}
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As
func (e *BuildError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}

// NewError builds a BuildError with a formatted message
func NewError(kind error, module string, format string, args ...any) *BuildError {
	return &BuildError{Kind: kind, Module: module, Msg: fmt.Sprintf(format, args...)}
}

// CycleError reports a cycle of the given kind with its members in path order
func CycleError(kind error, path []string) *BuildError {
	msg := "cycle"
	if len(path) > 0 {
		msg = "cycle: " + strings.Join(path, " -> ")
	}
	return &BuildError{Kind: kind, Msg: msg}
}

// configurationKinds abort a session before any module starts
var configurationKinds = []error{
	ErrUnresolvedProperty,
	ErrCircularProperty,
	ErrMissingVersion,
	ErrCyclicDependency,
	ErrCyclicAggregation,
	ErrCyclicInheritance,
	ErrDuplicateModule,
	ErrUnknownModule,
	ErrInvalidConfig,
	ErrUnknownPhase,
}

// IsConfigurationError reports whether err describes an unbuildable configuration
func IsConfigurationError(err error) bool {
	for _, kind := range configurationKinds {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}
