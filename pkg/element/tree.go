package element

import (
	"encoding/json"
	"fmt"

	"github.com/mitchellh/copystructure"
)

// ListKeys are the top-level document keys holding element arrays, in
// traversal order.
var ListKeys = []string{"frames", "references"}

// List is one top-level element array of the document.
type List struct {
	Key   string
	Roots []Handle
}

// Tree is an arena of nodes plus an id index.
type Tree struct {
	nodes []*Node
	byID  map[string]Handle
	lists []List

	// extra holds top-level document keys that are not element lists.
	extra map[string]json.RawMessage
	// clashes are ids added while a live node already held them.
	clashes []string
}

// New creates an empty tree.
func New() *Tree {
	return &Tree{
		byID:  make(map[string]Handle),
		extra: make(map[string]json.RawMessage),
	}
}

// Add places a detached node in the arena and indexes its id.
// When two nodes share an id the first one keeps the index entry and the id
// is recorded as a clash.
func (t *Tree) Add(n *Node) Handle {
	h := Handle(len(t.nodes))
	n.parent = NoHandle
	n.dead = false
	if n.Origin == "" {
		n.Origin = n.ID
	}
	t.nodes = append(t.nodes, n)
	t.index(n.ID, h)
	return h
}

func (t *Tree) index(id string, h Handle) {
	if id == "" {
		return
	}
	if cur, exists := t.byID[id]; exists {
		if t.Node(cur) != nil {
			t.clashes = append(t.clashes, id)
			return
		}
	}
	t.byID[id] = h
}

// TakeClashes returns the ids added or renamed onto an id already in use
// since the last call, in the order they occurred.
func (t *Tree) TakeClashes() []string {
	c := t.clashes
	t.clashes = nil
	return c
}

// Node returns the node for a handle, or nil if the handle is unknown or removed.
func (t *Tree) Node(h Handle) *Node {
	if h < 0 || int(h) >= len(t.nodes) {
		return nil
	}
	n := t.nodes[h]
	if n.dead {
		return nil
	}
	return n
}

// Lookup returns the handle of the node with the given id.
func (t *Tree) Lookup(id string) (Handle, bool) {
	h, ok := t.byID[id]
	return h, ok
}

// Len returns the number of live nodes.
func (t *Tree) Len() int {
	n := 0
	for _, node := range t.nodes {
		if !node.dead {
			n++
		}
	}
	return n
}

// Extras returns the top-level document keys that are not element lists.
func (t *Tree) Extras() map[string]json.RawMessage {
	out := make(map[string]json.RawMessage, len(t.extra))
	for k, v := range t.extra {
		out[k] = v
	}
	return out
}

// Lists returns the top-level element lists in document order.
func (t *Tree) Lists() []List {
	out := make([]List, len(t.lists))
	for i, l := range t.lists {
		out[i] = List{Key: l.Key, Roots: append([]Handle(nil), l.Roots...)}
	}
	return out
}

// Roots returns the top-level handles of every list, in order.
func (t *Tree) Roots() []Handle {
	var out []Handle
	for _, l := range t.lists {
		out = append(out, l.Roots...)
	}
	return out
}

// IsRoot reports whether h sits directly in a top-level list.
func (t *Tree) IsRoot(h Handle) bool {
	n := t.Node(h)
	return n != nil && n.parent == NoHandle && t.inLists(h)
}

func (t *Tree) inLists(h Handle) bool {
	for _, l := range t.lists {
		for _, r := range l.Roots {
			if r == h {
				return true
			}
		}
	}
	return false
}

// AddRoot appends h to the top-level list named key, creating the list if needed.
func (t *Tree) AddRoot(key string, h Handle) {
	for i := range t.lists {
		if t.lists[i].Key == key {
			t.lists[i].Roots = append(t.lists[i].Roots, h)
			return
		}
	}
	t.lists = append(t.lists, List{Key: key, Roots: []Handle{h}})
}

// AppendChild attaches child as the last child of parent.
func (t *Tree) AppendChild(parent, child Handle) {
	p := t.Node(parent)
	c := t.Node(child)
	if p == nil || c == nil {
		return
	}
	p.Children = append(p.Children, child)
	c.parent = parent
}

// ChildByID finds a direct child of parent by id. It does not recurse.
func (t *Tree) ChildByID(parent Handle, id string) (Handle, bool) {
	p := t.Node(parent)
	if p == nil {
		return NoHandle, false
	}
	for _, c := range p.Children {
		if n := t.Node(c); n != nil && n.ID == id {
			return c, true
		}
	}
	return NoHandle, false
}

// Contains reports whether h is root or a descendant of root.
func (t *Tree) Contains(root, h Handle) bool {
	for cur := h; cur != NoHandle; {
		if cur == root {
			return true
		}
		n := t.Node(cur)
		if n == nil {
			return false
		}
		cur = n.parent
	}
	return false
}

// Rename changes the id of a node and moves its index entry.
func (t *Tree) Rename(h Handle, id string) {
	n := t.Node(h)
	if n == nil || n.ID == id {
		return
	}
	if cur, ok := t.byID[n.ID]; ok && cur == h {
		delete(t.byID, n.ID)
	}
	n.ID = id
	t.index(id, h)
}

// Walk visits h and its descendants in pre-order. Returning false from fn
// skips the node's children.
func (t *Tree) Walk(h Handle, fn func(Handle, *Node) bool) {
	n := t.Node(h)
	if n == nil {
		return
	}
	if !fn(h, n) {
		return
	}
	for _, c := range n.Children {
		t.Walk(c, fn)
	}
}

// WalkAll walks every root in document order.
func (t *Tree) WalkAll(fn func(Handle, *Node) bool) {
	for _, h := range t.Roots() {
		t.Walk(h, fn)
	}
}

// RemoveChildren detaches and discards every descendant of h.
// It returns the ids that were removed.
func (t *Tree) RemoveChildren(h Handle) []string {
	n := t.Node(h)
	if n == nil {
		return nil
	}
	var removed []string
	for _, c := range n.Children {
		removed = append(removed, t.discard(c)...)
	}
	n.Children = nil
	return removed
}

func (t *Tree) discard(h Handle) []string {
	var removed []string
	t.Walk(h, func(ch Handle, n *Node) bool {
		if n.ID != "" {
			removed = append(removed, n.ID)
			if cur, ok := t.byID[n.ID]; ok && cur == ch {
				delete(t.byID, n.ID)
			}
		}
		return true
	})
	t.markDead(h)
	return removed
}

func (t *Tree) markDead(h Handle) {
	n := t.Node(h)
	if n == nil {
		return
	}
	for _, c := range n.Children {
		t.markDead(c)
	}
	n.dead = true
}

// CloneFrom deep-copies the subtree at h in src into t and returns the new
// root handle. rename maps each source id to the id of its copy; nil keeps
// ids unchanged. The copy is detached; callers attach it with AppendChild
// or AddRoot.
func (t *Tree) CloneFrom(src *Tree, h Handle, rename func(string) string) (Handle, error) {
	n := src.Node(h)
	if n == nil {
		return NoHandle, fmt.Errorf("clone: unknown handle %d", h)
	}

	cp := &Node{
		ID:          n.ID,
		Class:       n.Class,
		MasterID:    n.MasterID,
		Origin:      n.Origin,
		hasMasterID: n.hasMasterID,
		hasChildren: n.hasChildren,
	}
	if rename != nil && n.ID != "" {
		cp.ID = rename(n.ID)
	}
	if n.Frame != nil {
		f := *n.Frame
		if f.extra != nil {
			extra, err := copystructure.Copy(f.extra)
			if err != nil {
				return NoHandle, fmt.Errorf("clone %q frame: %w", n.ID, err)
			}
			f.extra = extra.(map[string]any)
		}
		cp.Frame = &f
	}
	if n.Attrs != nil {
		attrs, err := copystructure.Copy(n.Attrs)
		if err != nil {
			return NoHandle, fmt.Errorf("clone %q: %w", n.ID, err)
		}
		cp.Attrs = attrs.(map[string]any)
	}

	nh := t.Add(cp)
	for _, c := range n.Children {
		ch, err := t.CloneFrom(src, c, rename)
		if err != nil {
			return NoHandle, err
		}
		t.AppendChild(nh, ch)
	}
	return nh, nil
}
