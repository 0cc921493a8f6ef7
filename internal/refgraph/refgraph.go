// Package refgraph records which symbol masters instantiate which other
// masters. The graph may contain cycles; they are reported, not rejected.
package refgraph

import (
	"fmt"
	"slices"
	"sort"
)

// Graph is a directed graph of master references. An edge from A to B means
// the content of master A contains an instance of master B.
type Graph struct {
	nodes map[string]bool
	refs  map[string][]string // master -> masters it instantiates
	users map[string][]string // master -> masters instantiating it
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		nodes: make(map[string]bool),
		refs:  make(map[string][]string),
		users: make(map[string][]string),
	}
}

// AddMaster adds a master node. Adding an existing master is a no-op.
func (g *Graph) AddMaster(id string) {
	if g.nodes[id] {
		return
	}
	g.nodes[id] = true
	g.refs[id] = []string{}
	g.users[id] = []string{}
}

// AddReference records that master from instantiates master to. Self
// references are kept: they are the shortest possible cycle.
func (g *Graph) AddReference(from, to string) error {
	if !g.nodes[from] {
		return fmt.Errorf("master %q does not exist", from)
	}
	if !g.nodes[to] {
		return fmt.Errorf("master %q does not exist", to)
	}
	if !slices.Contains(g.refs[from], to) {
		g.refs[from] = append(g.refs[from], to)
	}
	if !slices.Contains(g.users[to], from) {
		g.users[to] = append(g.users[to], from)
	}
	return nil
}

// Has reports whether the master is in the graph.
func (g *Graph) Has(id string) bool {
	return g.nodes[id]
}

// Masters returns every master id, sorted.
func (g *Graph) Masters() []string {
	out := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// References returns the masters instantiated by id, in insertion order.
func (g *Graph) References(id string) []string {
	return g.refs[id]
}

// Users returns the masters that instantiate id, in insertion order.
func (g *Graph) Users(id string) []string {
	return g.users[id]
}

// EdgeCount returns the number of references.
func (g *Graph) EdgeCount() int {
	n := 0
	for _, r := range g.refs {
		n += len(r)
	}
	return n
}

// Cycles returns the cycles closed by back edges of a depth-first search,
// each rotated to start at its smallest id and closed by repeating it.
// The result is sorted and free of duplicates.
func (g *Graph) Cycles() [][]string {
	visited := make(map[string]bool)
	onStack := make(map[string]bool)
	var stack []string
	seen := make(map[string]bool)
	var cycles [][]string

	var dfs func(id string)
	dfs = func(id string) {
		visited[id] = true
		onStack[id] = true
		stack = append(stack, id)

		for _, ref := range g.refs[id] {
			if onStack[ref] {
				start := slices.Index(stack, ref)
				c := canonical(stack[start:])
				key := fmt.Sprint(c)
				if !seen[key] {
					seen[key] = true
					cycles = append(cycles, c)
				}
				continue
			}
			if !visited[ref] {
				dfs(ref)
			}
		}

		stack = stack[:len(stack)-1]
		onStack[id] = false
	}

	for _, id := range g.Masters() {
		if !visited[id] {
			dfs(id)
		}
	}

	sort.Slice(cycles, func(i, j int) bool {
		return fmt.Sprint(cycles[i]) < fmt.Sprint(cycles[j])
	})
	return cycles
}

func canonical(loop []string) []string {
	lo := 0
	for i, id := range loop {
		if id < loop[lo] {
			lo = i
		}
	}
	out := make([]string, 0, len(loop)+1)
	out = append(out, loop[lo:]...)
	out = append(out, loop[:lo]...)
	return append(out, out[0])
}

// Levels groups masters by nesting depth. Level 0 holds masters that
// instantiate no other master; a master sits one level above the deepest
// master it instantiates. Masters on a cycle, or instantiating one, have no
// level and are returned sorted in unranked.
func (g *Graph) Levels() (levels [][]string, unranked []string) {
	const (
		visiting = -2
		cyclic   = -1
	)
	assigned := make(map[string]int)
	var level func(id string) int
	level = func(id string) int {
		if l, ok := assigned[id]; ok {
			if l == visiting {
				return cyclic
			}
			return l
		}
		assigned[id] = visiting
		l := 0
		for _, ref := range g.refs[id] {
			rl := level(ref)
			if rl == cyclic {
				l = cyclic
				break
			}
			l = max(l, rl+1)
		}
		assigned[id] = l
		return l
	}

	for _, id := range g.Masters() {
		l := level(id)
		if l == cyclic {
			unranked = append(unranked, id)
			continue
		}
		for len(levels) <= l {
			levels = append(levels, nil)
		}
		levels[l] = append(levels[l], id)
	}
	return levels, unranked
}

// Dependents returns every master whose expansion reaches id, sorted.
func (g *Graph) Dependents(id string) []string {
	found := make(map[string]bool)
	var mark func(string)
	mark = func(cur string) {
		for _, u := range g.users[cur] {
			if !found[u] {
				found[u] = true
				mark(u)
			}
		}
	}
	mark(id)

	out := make([]string, 0, len(found))
	for u := range found {
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}
