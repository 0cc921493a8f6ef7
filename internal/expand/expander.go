// Package expand replaces every symbol instance in a design tree with a
// customized copy of its master.
//
// Expansion is depth-first and pre-order. For each instance the expander
// clones the master content from the collector's pristine library, prefixes
// every cloned id with the instance-id stack, rewrites mask references,
// applies the instance's overrides class by class, resizes the clone when the
// instance size differs from the master, and finally descends into the
// nested instances the clone introduced.
package expand

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"

	"github.com/verygoodgraphics/vgg-runtime-sub005/internal/collector"
	"github.com/verygoodgraphics/vgg-runtime-sub005/internal/layout"
	"github.com/verygoodgraphics/vgg-runtime-sub005/internal/override"
	"github.com/verygoodgraphics/vgg-runtime-sub005/pkg/diag"
	"github.com/verygoodgraphics/vgg-runtime-sub005/pkg/element"
)

// Errors returned by ExpandInstance.
var (
	ErrUnknownNode   = errors.New("unknown node")
	ErrNotInstance   = errors.New("not a symbol instance")
	ErrUnknownMaster = errors.New("unknown master")
	ErrCycle         = errors.New("master swap would nest a master inside itself")
)

// scope is what an instance inherits from the instances enclosing it.
type scope struct {
	// stack holds the original ids of the enclosing instances, outermost first.
	stack []string
	// masters holds the masters being expanded along the stack.
	masters []string
	// env is the binding chain of the enclosing instance.
	env *override.Env
	// forwarded are overrides of enclosing instances aimed at this one,
	// already shifted so their targets are relative to it.
	forwarded []override.Value
	// pinned is set when an enclosing instance chose this instance's master;
	// the instance's own masterId override is then ignored.
	pinned bool
}

// instance is the per-expansion state handed to the resolver.
type instance struct {
	h      element.Handle
	n      *element.Node
	prefix string
	env    *override.Env
}

// Changes lists what an expansion pass touched, for output caches.
type Changes struct {
	// Dirty are ids whose layout rule or geometry changed.
	Dirty []string
	// Removed are ids discarded by re-expansion.
	Removed []string
	// Expanded are the instances that were (re)built.
	Expanded []element.Handle
}

// Expander owns the mutable state of one expansion run.
type Expander struct {
	tree   *element.Tree
	reg    *collector.Registry
	rules  layout.Rules
	integ  *layout.Integrator
	report *diag.Report
	opts   Options
	logger *slog.Logger

	scopes map[element.Handle]*scope
	// inherited marks instances whose container layout came from the
	// master; true when the whole rule was created for it.
	inherited map[element.Handle]bool
	// pinned marks nested instances whose master an enclosing instance set
	// by override, until they are expanded.
	pinned map[element.Handle]bool

	dirty    map[string]bool
	removed  []string
	expanded []element.Handle
}

// New creates an expander over tree. rules is the run's output rule set and
// is rewritten in place as ids change.
func New(tree *element.Tree, reg *collector.Registry, rules layout.Rules, report *diag.Report, opts Options) *Expander {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if rules == nil {
		rules = make(layout.Rules)
	}
	return &Expander{
		tree:      tree,
		reg:       reg,
		rules:     rules,
		integ:     layout.NewIntegrator(tree, rules, report, logger),
		report:    report,
		opts:      opts,
		logger:    logger,
		scopes:    make(map[element.Handle]*scope),
		inherited: make(map[element.Handle]bool),
		pinned:    make(map[element.Handle]bool),
		dirty:     make(map[string]bool),
	}
}

// Rules returns the run's layout rules, keyed by expanded ids.
func (e *Expander) Rules() layout.Rules {
	return e.rules
}

// Run expands every instance reachable from the document roots.
func (e *Expander) Run() {
	for _, id := range e.tree.TakeClashes() {
		if _, ok := e.reg.Master(id); ok {
			continue
		}
		e.logger.Warn("duplicate id in document", "id", id)
		e.report.Addf(diag.SeverityWarning, diag.CodeDuplicateID, id, "",
			"id %q is used by more than one element", id)
	}
	root := &scope{}
	for _, h := range e.tree.Roots() {
		e.visit(h, root)
	}
	e.logger.Debug("expansion finished", "instances", len(e.expanded), "dirty", len(e.dirty))
}

// ExpandInstance swaps the master of an already expanded instance and
// rebuilds its content in place, in the scope it was first expanded in.
func (e *Expander) ExpandInstance(id, masterID string) error {
	h, ok := e.tree.Lookup(id)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownNode, id)
	}
	n := e.tree.Node(h)
	if !n.IsInstance() {
		return fmt.Errorf("%w: %q has class %q", ErrNotInstance, id, n.Class)
	}
	if _, ok := e.reg.Master(masterID); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownMaster, masterID)
	}

	sc := e.scopes[h]
	if sc == nil {
		sc = &scope{}
	}
	if slices.Contains(sc.masters, masterID) {
		return fmt.Errorf("%w: %q is already being expanded along %s", ErrCycle, masterID, describeStack(sc.stack))
	}
	if len(sc.stack) >= e.opts.maxDepth() {
		return fmt.Errorf("%w: instance nesting exceeds %d levels", ErrCycle, e.opts.maxDepth())
	}
	e.logger.Debug("re-expanding instance", "instance", id, "from", n.MasterID, "to", masterID)
	n.SetMasterID(masterID)
	e.expandInstance(h, sc, true)
	return nil
}

// TakeChanges returns what changed since the last call and resets the record.
func (e *Expander) TakeChanges() Changes {
	dirty := make([]string, 0, len(e.dirty))
	for id := range e.dirty {
		dirty = append(dirty, id)
	}
	sort.Strings(dirty)
	c := Changes{Dirty: dirty, Removed: e.removed, Expanded: e.expanded}
	e.dirty = make(map[string]bool)
	e.removed = nil
	e.expanded = nil
	return c
}

func (e *Expander) visit(h element.Handle, sc *scope) {
	n := e.tree.Node(h)
	if n == nil {
		return
	}
	if n.IsInstance() {
		e.expandInstance(h, sc, false)
		return
	}
	for _, c := range slices.Clone(n.Children) {
		e.visit(c, sc)
	}
}

// expandInstance builds the content of the instance at h. again is set when
// the master was swapped from outside; the instance's own masterId override
// is then ignored so the swap sticks.
func (e *Expander) expandInstance(h element.Handle, sc *scope, again bool) {
	n := e.tree.Node(h)
	e.scopes[h] = sc

	values := e.overrides(n, sc)
	if !again && !sc.pinned {
		if id, ok := selfSwap(values); ok && id != n.MasterID {
			e.logger.Debug("instance master swapped by override", "instance", n.ID, "from", n.MasterID, "to", id)
			n.SetMasterID(id)
		}
	}

	if slices.Contains(sc.masters, n.MasterID) {
		e.logger.Warn("instance cycle", "instance", n.ID, "master", n.MasterID, "stack", sc.stack)
		e.report.Addf(diag.SeverityError, diag.CodeCycle, n.ID, n.MasterID,
			"master %q is already being expanded along %s", n.MasterID, describeStack(sc.stack))
		return
	}
	if len(sc.stack) >= e.opts.maxDepth() {
		e.logger.Warn("instance nesting too deep", "instance", n.ID, "master", n.MasterID, "depth", len(sc.stack))
		e.report.Addf(diag.SeverityError, diag.CodeCycle, n.ID, n.MasterID,
			"instance nesting exceeds %d levels", e.opts.maxDepth())
		return
	}
	m, ok := e.reg.Master(n.MasterID)
	if !ok {
		e.logger.Warn("missing master", "instance", n.ID, "master", n.MasterID)
		e.report.Addf(diag.SeverityWarning, diag.CodeMissingMaster, n.ID, n.MasterID,
			"master %q not found; instance left unexpanded", n.MasterID)
		return
	}

	e.clear(h)

	stack := append(slices.Clone(sc.stack), n.Origin)
	inst := &instance{h: h, n: n, prefix: element.JoinID(stack)}

	idMap, err := e.cloneMaster(inst, m)
	if err != nil {
		e.logger.Error("clone master", "instance", n.ID, "master", m.ID, "error", err)
		e.report.Addf(diag.SeverityError, diag.CodeMissingMaster, n.ID, m.ID, "%v", err)
		return
	}
	for _, id := range e.tree.TakeClashes() {
		e.logger.Warn("expanded id clashes", "instance", n.ID, "id", id)
		e.report.Addf(diag.SeverityWarning, diag.CodeDuplicateID, id, m.ID,
			"expanded id %q of instance %q is already used by another element", id, n.ID)
	}
	e.rekeyRules(inst, m)
	e.rewriteMasks(inst, idMap)
	inst.env = e.bindings(inst, m, sc)

	local, forward := e.split(inst, values)
	byClass := override.Partition(local)
	for _, class := range override.Order {
		for _, v := range byClass[class] {
			e.apply(inst, v)
		}
		if class == override.ClassVariable {
			e.substitute(inst)
		}
	}

	if n.Frame != nil && !n.Frame.SameSize(m.Size) {
		want := *n.Frame
		n.Frame.Width, n.Frame.Height = m.Size.Width, m.Size.Height
		e.integ.Resize(h, want.Width, want.Height)
	}
	e.integ.MarkDirty(h)
	e.integ.Relayout(h)
	e.flushDirty()
	e.expanded = append(e.expanded, h)

	e.logger.Debug("expanded instance", "instance", n.ID, "master", m.ID, "nodes", len(idMap))

	masters := append(slices.Clone(sc.masters), m.ID)
	consumed := make(map[string]bool, len(forward))
	e.tree.Walk(h, func(ch element.Handle, cn *element.Node) bool {
		if ch == h || !cn.IsInstance() {
			return true
		}
		consumed[cn.ID] = true
		pinned := e.pinned[ch]
		delete(e.pinned, ch)
		e.expandInstance(ch, &scope{
			stack:     stack,
			masters:   masters,
			env:       inst.env,
			forwarded: forward[cn.ID],
			pinned:    pinned,
		}, false)
		return false
	})

	for _, id := range sortedKeys(forward) {
		if consumed[id] {
			continue
		}
		for _, v := range forward[id] {
			e.missingTarget(inst, v, id)
		}
	}
}

// overrides decodes the instance's own overrides and appends those forwarded
// from enclosing instances, which therefore win within a class.
func (e *Expander) overrides(n *element.Node, sc *scope) []override.Value {
	raw, _ := n.Attr(element.KeyOverrideValues)
	own, errs := override.DecodeList(raw)
	for _, err := range errs {
		e.logger.Warn("malformed override", "instance", n.ID, "error", err)
		e.report.Addf(diag.SeverityWarning, diag.CodeMalformedOverride, n.ID, n.MasterID, "%v", err)
	}
	return append(own, sc.forwarded...)
}

func selfSwap(values []override.Value) (string, bool) {
	var (
		id    string
		found bool
	)
	for _, v := range values {
		if sw, ok := v.Payload.(override.MasterSwap); ok && len(v.Target) == 0 {
			id, found = sw.MasterID, true
		}
	}
	return id, found
}

// split separates overrides applied here from those forwarded to nested
// instances. Forwarded overrides are keyed by the nested instance's id.
func (e *Expander) split(inst *instance, values []override.Value) ([]override.Value, map[string][]override.Value) {
	var local []override.Value
	forward := make(map[string][]override.Value)
	for _, v := range values {
		if !v.Forwarded() {
			local = append(local, v)
			continue
		}
		key := element.JoinID([]string{inst.prefix}, v.Target[0])
		forward[key] = append(forward[key], v.Shift())
	}
	return local, forward
}

// clear discards any content built by an earlier expansion of h.
func (e *Expander) clear(h element.Handle) {
	removed := e.tree.RemoveChildren(h)
	for _, id := range removed {
		delete(e.rules, id)
	}
	e.removed = append(e.removed, removed...)
}

func (e *Expander) cloneMaster(inst *instance, m *collector.Master) (map[string]string, error) {
	lib := e.reg.Library()
	mn := lib.Node(m.Lib)
	if mn == nil {
		return nil, fmt.Errorf("master %q has no snapshot", m.ID)
	}
	idMap := make(map[string]string)
	rename := func(id string) string {
		nid := element.JoinID([]string{inst.prefix}, id)
		idMap[id] = nid
		return nid
	}
	for _, c := range mn.Children {
		ch, err := e.tree.CloneFrom(lib, c, rename)
		if err != nil {
			return nil, err
		}
		e.tree.AppendChild(inst.h, ch)
	}
	return idMap, nil
}

// rekeyRules copies the pristine rule of every cloned node onto its new id.
// The instance takes the master's container layout unless it has its own.
func (e *Expander) rekeyRules(inst *instance, m *collector.Master) {
	e.tree.Walk(inst.h, func(h element.Handle, n *element.Node) bool {
		if h == inst.h {
			return true
		}
		if r, ok := e.reg.Rule(n.Origin); ok {
			e.rules[n.ID] = r.Clone()
		}
		return true
	})

	if created, ok := e.inherited[inst.h]; ok {
		if created {
			delete(e.rules, inst.n.ID)
		} else if r := e.rules[inst.n.ID]; r != nil {
			delete(r, layout.KeyLayout)
		}
		delete(e.inherited, inst.h)
	}
	mr, ok := e.reg.Rule(e.reg.Library().Node(m.Lib).ID)
	if !ok {
		return
	}
	lay, ok := mr[layout.KeyLayout]
	if !ok {
		return
	}
	r, exists := e.rules[inst.n.ID]
	if !exists {
		r = layout.Rule{}
		e.rules[inst.n.ID] = r
	}
	if _, has := r[layout.KeyLayout]; has {
		return
	}
	r[layout.KeyLayout] = cloneValue(lay)
	e.inherited[inst.h] = !exists
}

// flushDirty writes the current size of every dirty node into its rule.
func (e *Expander) flushDirty() {
	for _, h := range e.integ.TakeDirty() {
		n := e.tree.Node(h)
		if n == nil {
			continue
		}
		if r, ok := e.rules[n.ID]; ok && n.Frame != nil {
			r.SetSize(n.Frame.Width, n.Frame.Height)
		}
		e.dirty[n.ID] = true
	}
}

func describeStack(stack []string) string {
	if len(stack) == 0 {
		return "the document root"
	}
	return strings.Join(stack, " > ")
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
