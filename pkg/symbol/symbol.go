// Package symbol expands the symbol instances of a design document into
// customized copies of their masters and re-keys the layout rules to match.
//
// A one-shot run:
//
//	res, err := symbol.Expand(design, layout)
//	if err != nil {
//		return err
//	}
//	for _, d := range res.Report.Diagnostics {
//		log.Println(d)
//	}
//
// A Session keeps the expanded tree alive so that single instances can be
// re-expanded against another master, for example when a prototype swaps the
// state of a component at runtime.
package symbol

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/verygoodgraphics/vgg-runtime-sub005/internal/assemble"
	"github.com/verygoodgraphics/vgg-runtime-sub005/internal/collector"
	"github.com/verygoodgraphics/vgg-runtime-sub005/internal/expand"
	"github.com/verygoodgraphics/vgg-runtime-sub005/internal/layout"
	"github.com/verygoodgraphics/vgg-runtime-sub005/pkg/diag"
	"github.com/verygoodgraphics/vgg-runtime-sub005/pkg/element"
)

// Result is the output of a full run.
type Result struct {
	Design []byte
	Layout []byte
	Report diag.Report
}

// Expand runs a full expansion of design with the optional layout document.
// Only unusable input is returned as an error; per-node problems are listed
// in the result's report.
func Expand(design, layout []byte, opts ...Option) (*Result, error) {
	s, err := NewSession(design, layout, opts...)
	if err != nil {
		return nil, err
	}
	if err := s.Run(); err != nil {
		return nil, err
	}
	d, err := s.DesignJSON()
	if err != nil {
		return nil, err
	}
	l, err := s.LayoutJSON()
	if err != nil {
		return nil, err
	}
	return &Result{Design: d, Layout: l, Report: *s.Report()}, nil
}

// Session owns one expansion run. It is not safe for concurrent use;
// separate sessions share nothing.
type Session struct {
	opts   options
	logger *slog.Logger

	tree   *element.Tree
	rules  layout.Rules
	report *diag.Report

	reg *collector.Registry
	exp *expand.Expander
	asm *assemble.Assembler
}

// NewSession decodes the inputs. Nothing is expanded until Run.
func NewSession(design, layoutDoc []byte, opts ...Option) (*Session, error) {
	o, err := buildOptions(opts)
	if err != nil {
		return nil, err
	}
	tree, err := element.Decode(design)
	if err != nil {
		return nil, &InputError{Document: "design", Err: err}
	}
	rules, bad, err := layout.ParseRules(layoutDoc)
	if err != nil {
		return nil, &InputError{Document: "layout", Err: err}
	}

	report := diag.NewReport()
	for _, id := range bad {
		report.Addf(diag.SeverityWarning, diag.CodeMalformedRule, id, "", "layout rule is not an object")
	}
	o.logger.Debug("session created", "run_id", report.RunID, "nodes", tree.Len(), "rules", len(rules))

	return &Session{
		opts:   o,
		logger: o.logger,
		tree:   tree,
		rules:  rules,
		report: report,
		asm:    assemble.New(),
	}, nil
}

// Run collects the masters and expands every instance. Calling it again is a
// no-op.
func (s *Session) Run() error {
	if s.exp != nil {
		return nil
	}
	reg, err := collector.Collect(s.tree, s.rules, collector.Options{
		Duplicates: s.opts.duplicates,
		Logger:     s.logger,
	}, s.report)
	if err != nil {
		return fmt.Errorf("collect masters: %w", err)
	}
	s.reg = reg
	s.exp = expand.New(s.tree, reg, s.rules, s.report, expand.Options{
		VariableScope: s.opts.scope,
		MaxDepth:      s.opts.maxDepth,
		Logger:        s.logger,
	})
	s.exp.Run()
	s.logger.Info("expansion complete",
		"run_id", s.report.RunID,
		"masters", reg.Count(),
		"nodes", s.tree.Len(),
		"diagnostics", len(s.report.Diagnostics))
	return nil
}

// ExpandInstance points the instance with the given id at masterID and
// rebuilds its content in place. The session is run first if needed.
func (s *Session) ExpandInstance(instanceID, masterID string) error {
	if err := s.Run(); err != nil {
		return err
	}
	err := s.exp.ExpandInstance(instanceID, masterID)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, expand.ErrUnknownNode):
		return &UnknownInstanceError{ID: instanceID, Reason: "no such element", Err: err}
	case errors.Is(err, expand.ErrNotInstance):
		return &UnknownInstanceError{ID: instanceID, Reason: "element is not a symbol instance", Err: err}
	case errors.Is(err, expand.ErrUnknownMaster):
		ids := make([]string, 0, s.reg.Count())
		for _, m := range s.reg.Masters() {
			ids = append(ids, m.ID)
		}
		return &UnknownMasterError{ID: masterID, Available: ids, Err: err}
	case errors.Is(err, expand.ErrCycle):
		return &CycleError{ID: instanceID, MasterID: masterID, Err: err}
	default:
		return err
	}
}

// IsSameComponent reports whether two masters are states of one component.
// Unknown ids, or a session that has not run, yield false.
func (s *Session) IsSameComponent(a, b string) bool {
	if s.reg == nil {
		return false
	}
	return s.reg.IsSameComponent(a, b)
}

// VariantGroups returns the master ids grouped into components.
func (s *Session) VariantGroups() [][]string {
	if s.reg == nil {
		return nil
	}
	return s.reg.VariantGroups()
}

// MasterInfo describes a collected master.
type MasterInfo struct {
	ID     string
	Width  float64
	Height float64
	// ComponentID is the id of the enclosing component frame, if any.
	ComponentID string
	// Level is the nesting depth: 0 for a master that instantiates no other
	// master, -1 for one on or reaching a reference cycle.
	Level int
	// Uses lists the masters instantiated directly by this one.
	Uses []string
	// UsedBy lists the masters that instantiate this one directly.
	UsedBy []string
	// Dependents lists every master whose expansion reaches this one.
	Dependents []string
}

// Masters returns the collected masters in document order.
func (s *Session) Masters() []MasterInfo {
	if s.reg == nil {
		return nil
	}
	g := s.reg.Graph()
	levels, _ := g.Levels()
	levelOf := make(map[string]int)
	for l, ids := range levels {
		for _, id := range ids {
			levelOf[id] = l
		}
	}

	ms := s.reg.Masters()
	out := make([]MasterInfo, 0, len(ms))
	for _, m := range ms {
		level, ok := levelOf[m.ID]
		if !ok {
			level = -1
		}
		out = append(out, MasterInfo{
			ID:          m.ID,
			Width:       m.Size.Width,
			Height:      m.Size.Height,
			ComponentID: m.ComponentID,
			Level:       level,
			Uses:        slices.Clone(g.References(m.ID)),
			UsedBy:      slices.Clone(g.Users(m.ID)),
			Dependents:  g.Dependents(m.ID),
		})
	}
	return out
}

// DesignJSON encodes the current tree.
func (s *Session) DesignJSON() ([]byte, error) {
	s.sync()
	return s.asm.Design(s.tree)
}

// LayoutJSON encodes the current layout rules, keyed by expanded ids.
func (s *Session) LayoutJSON() ([]byte, error) {
	s.sync()
	return s.asm.Layout(s.tree, s.rules)
}

// Report returns the diagnostics gathered so far.
func (s *Session) Report() *diag.Report {
	return s.report
}

// Tree returns the session's tree. Callers must not mutate it.
func (s *Session) Tree() *element.Tree {
	return s.tree
}

// sync drops cached output for everything the expander touched since the
// last call.
func (s *Session) sync() {
	if s.exp == nil {
		return
	}
	c := s.exp.TakeChanges()
	s.asm.Invalidate(c.Dirty...)
	s.asm.Invalidate(c.Removed...)
	s.asm.InvalidateNodes(s.tree, c.Expanded...)
	for _, id := range c.Dirty {
		if h, ok := s.tree.Lookup(id); ok {
			s.asm.InvalidateNodes(s.tree, h)
		}
	}
}
