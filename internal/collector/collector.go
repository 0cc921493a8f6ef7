// Package collector indexes the symbol masters of a design document in a
// single traversal. Every master is snapshotted into a pristine library tree
// so that expansion can clone from it while the document itself is rewritten.
package collector

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/verygoodgraphics/vgg-runtime-sub005/internal/layout"
	"github.com/verygoodgraphics/vgg-runtime-sub005/internal/refgraph"
	"github.com/verygoodgraphics/vgg-runtime-sub005/pkg/diag"
	"github.com/verygoodgraphics/vgg-runtime-sub005/pkg/element"
)

// DuplicatePolicy decides which of several masters sharing an id is kept.
type DuplicatePolicy int

// Duplicate policies.
const (
	KeepFirst DuplicatePolicy = iota
	KeepLast
)

func (p DuplicatePolicy) String() string {
	if p == KeepLast {
		return "last"
	}
	return "first"
}

// ParseDuplicatePolicy converts "first" or "last" to a policy.
func ParseDuplicatePolicy(s string) (DuplicatePolicy, error) {
	switch strings.ToLower(s) {
	case "", "first":
		return KeepFirst, nil
	case "last":
		return KeepLast, nil
	default:
		return KeepFirst, fmt.Errorf("unknown duplicate master policy %q (want first or last)", s)
	}
}

// Master is one indexed symbol master.
type Master struct {
	ID string
	// Doc is the master element in the document tree.
	Doc element.Handle
	// Lib is the pristine copy in the registry library.
	Lib element.Handle
	// Size is the canonical frame of the master.
	Size element.Frame
	// Component is the frame of the enclosing component container, nil when
	// the master is not inside one.
	Component   *element.Frame
	ComponentID string
}

// Options configures collection.
type Options struct {
	Duplicates DuplicatePolicy
	Logger     *slog.Logger
}

// Registry is the read-only index built by Collect. It is owned by one
// expansion run.
type Registry struct {
	byID    map[string]*Master
	order   []string
	library *element.Tree
	rules   layout.Rules
	graph   *refgraph.Graph
}

// Collect indexes every master in tree and snapshots it together with a copy
// of rules. Problems are recorded in report; only a failure to copy a master
// is returned as an error.
func Collect(tree *element.Tree, rules layout.Rules, opts Options, report *diag.Report) (*Registry, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	r := &Registry{
		byID:    make(map[string]*Master),
		library: element.New(),
		rules:   rules.Clone(),
		graph:   refgraph.New(),
	}

	var components []element.Handle
	var visit func(h element.Handle)
	visit = func(h element.Handle) {
		n := tree.Node(h)
		if n == nil {
			return
		}
		if n.IsMaster() {
			r.add(tree, h, n, components, opts.Duplicates, report, logger)
		}
		isComponent := n.Class == element.ClassFrame && !tree.IsRoot(h)
		if isComponent {
			components = append(components, h)
		}
		for _, c := range n.Children {
			visit(c)
		}
		if isComponent {
			components = components[:len(components)-1]
		}
	}
	for _, h := range tree.Roots() {
		visit(h)
	}

	for _, id := range r.order {
		m := r.byID[id]
		lib, err := r.library.CloneFrom(tree, m.Doc, nil)
		if err != nil {
			return nil, fmt.Errorf("snapshot master %q: %w", id, err)
		}
		m.Lib = lib
		r.library.AddRoot("references", lib)
	}

	r.buildGraph(report, logger)

	logger.Debug("collected masters", "count", len(r.order), "rules", len(r.rules))
	return r, nil
}

func (r *Registry) add(tree *element.Tree, h element.Handle, n *element.Node, components []element.Handle,
	policy DuplicatePolicy, report *diag.Report, logger *slog.Logger) {
	id := n.MasterID
	if id == "" {
		return
	}

	m := &Master{ID: id, Doc: h, Lib: element.NoHandle}
	if n.Frame != nil {
		m.Size = *n.Frame
	}
	if len(components) > 0 {
		ch := components[len(components)-1]
		cn := tree.Node(ch)
		if cn.Frame != nil {
			f := *cn.Frame
			m.Component = &f
		}
		m.ComponentID = cn.ID
	}

	prev, exists := r.byID[id]
	if !exists {
		r.byID[id] = m
		r.order = append(r.order, id)
		return
	}

	kept, dropped := prev, m
	if policy == KeepLast {
		kept, dropped = m, prev
		r.byID[id] = m
	}
	logger.Warn("duplicate master id", "master", id, "kept", nodeID(tree, kept.Doc), "ignored", nodeID(tree, dropped.Doc))
	report.Addf(diag.SeverityWarning, diag.CodeDuplicateMaster, nodeID(tree, dropped.Doc), id,
		"master id %q is declared more than once; keeping the %s occurrence", id, policy)
}

func nodeID(tree *element.Tree, h element.Handle) string {
	if n := tree.Node(h); n != nil {
		return n.ID
	}
	return ""
}

// buildGraph records which masters instantiate which, reading the pristine
// library so the result does not depend on later expansion.
func (r *Registry) buildGraph(report *diag.Report, logger *slog.Logger) {
	for _, id := range r.order {
		r.graph.AddMaster(id)
	}
	for _, id := range r.order {
		m := r.byID[id]
		r.library.Walk(m.Lib, func(h element.Handle, n *element.Node) bool {
			if h != m.Lib && n.IsMaster() {
				return false
			}
			if n.IsInstance() && r.graph.Has(n.MasterID) {
				_ = r.graph.AddReference(id, n.MasterID)
			}
			return true
		})
	}
	logger.Debug("reference graph built", "masters", len(r.order), "references", r.graph.EdgeCount())
	for _, c := range r.graph.Cycles() {
		logger.Warn("master reference cycle", "cycle", c)
		report.Addf(diag.SeverityWarning, diag.CodeCycle, "", c[0],
			"masters reference each other: %s", strings.Join(c, " -> "))
	}
}

// Master returns the master with the given id.
func (r *Registry) Master(id string) (*Master, bool) {
	m, ok := r.byID[id]
	return m, ok
}

// Masters returns every kept master in document order.
func (r *Registry) Masters() []*Master {
	out := make([]*Master, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// Count returns the number of kept masters.
func (r *Registry) Count() int {
	return len(r.order)
}

// Library returns the tree holding the pristine master snapshots.
func (r *Registry) Library() *element.Tree {
	return r.library
}

// Rule returns the pristine layout rule for a node id.
func (r *Registry) Rule(id string) (layout.Rule, bool) {
	rule, ok := r.rules[id]
	return rule, ok
}

// Graph returns the master reference graph.
func (r *Registry) Graph() *refgraph.Graph {
	return r.graph
}

// IsSameComponent reports whether two masters are states of one component:
// both sit in component frames and those frames have the same geometry.
func (r *Registry) IsSameComponent(a, b string) bool {
	ma, ok := r.byID[a]
	if !ok || ma.Component == nil {
		return false
	}
	mb, ok := r.byID[b]
	if !ok || mb.Component == nil {
		return false
	}
	return ma.Component.SameGeometry(*mb.Component)
}

// VariantGroups returns master ids grouped by component frame geometry, in
// document order of each group's first master. Masters outside component
// frames are omitted.
func (r *Registry) VariantGroups() [][]string {
	var groups [][]string
	for _, id := range r.order {
		m := r.byID[id]
		if m.Component == nil {
			continue
		}
		placed := false
		for i, g := range groups {
			if r.IsSameComponent(g[0], id) {
				groups[i] = append(g, id)
				placed = true
				break
			}
		}
		if !placed {
			groups = append(groups, []string{id})
		}
	}
	return groups
}
