// Package assemble serializes an expanded tree and its layout rules. Both
// outputs are built from per-node caches so that after a partial
// re-expansion only what changed is encoded again.
package assemble

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/verygoodgraphics/vgg-runtime-sub005/internal/layout"
	"github.com/verygoodgraphics/vgg-runtime-sub005/pkg/element"
)

// Assembler caches encoded rules by node id and encoded top-level elements
// by root handle. It belongs to one expansion run.
type Assembler struct {
	rules map[string]json.RawMessage
	roots map[element.Handle]json.RawMessage

	ruleHits, ruleMisses int
}

// New creates an empty assembler.
func New() *Assembler {
	return &Assembler{
		rules: make(map[string]json.RawMessage),
		roots: make(map[element.Handle]json.RawMessage),
	}
}

// Invalidate drops the cached layout of the given ids.
func (a *Assembler) Invalidate(ids ...string) {
	for _, id := range ids {
		delete(a.rules, id)
	}
}

// InvalidateNodes drops the cached design of every root containing one of
// the handles.
func (a *Assembler) InvalidateNodes(tree *element.Tree, hs ...element.Handle) {
	for _, h := range hs {
		if root, ok := rootOf(tree, h); ok {
			delete(a.roots, root)
		}
	}
}

func rootOf(tree *element.Tree, h element.Handle) (element.Handle, bool) {
	cur := h
	for {
		n := tree.Node(cur)
		if n == nil {
			return element.NoHandle, false
		}
		if n.Parent() == element.NoHandle {
			return cur, true
		}
		cur = n.Parent()
	}
}

// Layout returns the layout document: every rule whose id names a live node,
// keyed by id. Rules of ids without a node are left out.
func (a *Assembler) Layout(tree *element.Tree, rules layout.Rules) ([]byte, error) {
	ids := make([]string, 0, len(rules))
	for id := range rules {
		if _, ok := tree.Lookup(id); ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	out := make(map[string]json.RawMessage, len(ids))
	for _, id := range ids {
		raw, ok := a.rules[id]
		if ok {
			a.ruleHits++
		} else {
			a.ruleMisses++
			b, err := json.Marshal(rules[id])
			if err != nil {
				return nil, fmt.Errorf("encode layout rule %q: %w", id, err)
			}
			raw = b
			a.rules[id] = raw
		}
		out[id] = raw
	}
	return json.Marshal(out)
}

// Design returns the design document for tree.
func (a *Assembler) Design(tree *element.Tree) ([]byte, error) {
	top := make(map[string]any)
	for k, v := range tree.Extras() {
		top[k] = v
	}
	for _, l := range tree.Lists() {
		items := make([]json.RawMessage, 0, len(l.Roots))
		for _, h := range l.Roots {
			raw, ok := a.roots[h]
			if !ok {
				m := tree.Map(h)
				if m == nil {
					continue
				}
				b, err := json.Marshal(m)
				if err != nil {
					return nil, fmt.Errorf("encode %s element: %w", l.Key, err)
				}
				raw = b
				a.roots[h] = raw
			}
			items = append(items, raw)
		}
		top[l.Key] = items
	}
	return json.Marshal(top)
}

// Stats reports layout cache hits and misses since creation.
func (a *Assembler) Stats() (hits, misses int) {
	return a.ruleHits, a.ruleMisses
}
