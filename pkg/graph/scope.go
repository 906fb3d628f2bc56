package graph

import "github.com/poltergeist/reactor/pkg/types"

// Mediate returns the scope a transitive dependency takes on when reached
// through a dependency of scope parent. The second result is false when the
// dependency is not transitive at all.
func Mediate(parent, child types.Scope) (types.Scope, bool) {
	parent, child = parent.OrDefault(), child.OrDefault()

	if child == types.ScopeTest || child == types.ScopeProvided {
		return "", false
	}

	switch parent {
	case types.ScopeCompile:
		return child, true
	case types.ScopeProvided:
		return types.ScopeProvided, true
	case types.ScopeRuntime:
		return types.ScopeRuntime, true
	case types.ScopeTest:
		return types.ScopeTest, true
	}
	return "", false
}

// widen returns the broader of two scopes for an artifact reached twice
func widen(a, b types.Scope) types.Scope {
	if scopeRank(b) > scopeRank(a) {
		return b
	}
	return a
}

func scopeRank(s types.Scope) int {
	switch s.OrDefault() {
	case types.ScopeCompile:
		return 3
	case types.ScopeRuntime:
		return 2
	case types.ScopeProvided:
		return 1
	}
	return 0
}
