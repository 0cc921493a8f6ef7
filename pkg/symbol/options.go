package symbol

import (
	"fmt"
	"log/slog"

	"github.com/verygoodgraphics/vgg-runtime-sub005/internal/collector"
	"github.com/verygoodgraphics/vgg-runtime-sub005/internal/expand"
)

// VariableScope controls which bindings a variable reference can see.
type VariableScope = expand.VariableScope

// Variable scopes.
const (
	ScopeMaster = expand.ScopeMaster
	ScopeAll    = expand.ScopeAll
)

// DuplicatePolicy picks which of several masters sharing an id is kept.
type DuplicatePolicy = collector.DuplicatePolicy

// Duplicate master policies.
const (
	KeepFirst = collector.KeepFirst
	KeepLast  = collector.KeepLast
)

// ParseVariableScope converts "master" or "all" to a scope.
func ParseVariableScope(s string) (VariableScope, error) { return expand.ParseVariableScope(s) }

// ParseDuplicatePolicy converts "first" or "last" to a policy.
func ParseDuplicatePolicy(s string) (DuplicatePolicy, error) {
	return collector.ParseDuplicatePolicy(s)
}

type options struct {
	logger     *slog.Logger
	scope      VariableScope
	maxDepth   int
	duplicates DuplicatePolicy
	err        error
}

// Option configures an expansion run.
type Option func(*options)

// WithLogger sets the logger. Nil keeps the discard logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithVariableScope sets how variable bindings are inherited by nested instances.
func WithVariableScope(s VariableScope) Option {
	return func(o *options) {
		if s != ScopeMaster && s != ScopeAll {
			o.err = fmt.Errorf("invalid variable scope %d", s)
			return
		}
		o.scope = s
	}
}

// WithMaxDepth bounds instance nesting. Zero restores the default.
func WithMaxDepth(n int) Option {
	return func(o *options) {
		if n < 0 {
			o.err = fmt.Errorf("max depth must not be negative, got %d", n)
			return
		}
		o.maxDepth = n
	}
}

// WithDuplicatePolicy sets which master wins when ids collide.
func WithDuplicatePolicy(p DuplicatePolicy) Option {
	return func(o *options) {
		if p != KeepFirst && p != KeepLast {
			o.err = fmt.Errorf("invalid duplicate master policy %d", p)
			return
		}
		o.duplicates = p
	}
}

func buildOptions(opts []Option) (options, error) {
	o := options{
		logger:   slog.New(slog.DiscardHandler),
		maxDepth: expand.DefaultMaxDepth,
	}
	for _, opt := range opts {
		opt(&o)
		if o.err != nil {
			return o, o.err
		}
	}
	return o, nil
}
