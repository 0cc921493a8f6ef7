package expand

import (
	"fmt"
	"log/slog"
	"strings"
)

// DefaultMaxDepth bounds instance nesting when Options.MaxDepth is zero.
const DefaultMaxDepth = 64

// VariableScope controls which bindings a variable reference can see.
type VariableScope int

// Variable scopes.
const (
	// ScopeMaster resolves references only against the instance being expanded.
	ScopeMaster VariableScope = iota
	// ScopeAll also inherits bindings from enclosing instances.
	ScopeAll
)

func (s VariableScope) String() string {
	if s == ScopeAll {
		return "all"
	}
	return "master"
}

// ParseVariableScope converts "master" or "all" to a scope.
func ParseVariableScope(s string) (VariableScope, error) {
	switch strings.ToLower(s) {
	case "", "master":
		return ScopeMaster, nil
	case "all":
		return ScopeAll, nil
	default:
		return ScopeMaster, fmt.Errorf("unknown variable scope %q (want master or all)", s)
	}
}

// Options configures an Expander.
type Options struct {
	VariableScope VariableScope
	MaxDepth      int
	Logger        *slog.Logger
}

func (o Options) maxDepth() int {
	if o.MaxDepth <= 0 {
		return DefaultMaxDepth
	}
	return o.MaxDepth
}
