package refgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func build(t *testing.T, masters []string, refs [][2]string) *Graph {
	t.Helper()
	g := New()
	for _, m := range masters {
		g.AddMaster(m)
	}
	for _, r := range refs {
		require.NoError(t, g.AddReference(r[0], r[1]))
	}
	return g
}

func TestGraph_AddReference(t *testing.T) {
	g := build(t, []string{"a", "b"}, [][2]string{{"a", "b"}, {"a", "b"}})
	assert.Equal(t, 1, g.EdgeCount(), "duplicate references collapse")
	assert.Equal(t, []string{"b"}, g.References("a"))
	assert.Equal(t, []string{"a"}, g.Users("b"))

	assert.Error(t, g.AddReference("a", "missing"))
	assert.Error(t, g.AddReference("missing", "a"))
	assert.NoError(t, g.AddReference("a", "a"))
}

func TestGraph_Cycles(t *testing.T) {
	tests := []struct {
		name    string
		masters []string
		refs    [][2]string
		want    [][]string
	}{
		{
			name:    "acyclic",
			masters: []string{"a", "b", "c"},
			refs:    [][2]string{{"a", "b"}, {"b", "c"}, {"a", "c"}},
			want:    nil,
		},
		{
			name:    "self reference",
			masters: []string{"a"},
			refs:    [][2]string{{"a", "a"}},
			want:    [][]string{{"a", "a"}},
		},
		{
			name:    "rotated to smallest id",
			masters: []string{"a", "b", "c"},
			refs:    [][2]string{{"c", "b"}, {"b", "a"}, {"a", "c"}},
			want:    [][]string{{"a", "c", "b", "a"}},
		},
		{
			name:    "two cycles",
			masters: []string{"a", "b", "x", "y"},
			refs:    [][2]string{{"a", "b"}, {"b", "a"}, {"x", "y"}, {"y", "x"}},
			want:    [][]string{{"a", "b", "a"}, {"x", "y", "x"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := build(t, tt.masters, tt.refs)
			assert.Equal(t, tt.want, g.Cycles())
		})
	}
}

func TestGraph_Levels(t *testing.T) {
	g := build(t, []string{"button", "icon", "card"}, [][2]string{
		{"card", "button"},
		{"button", "icon"},
		{"card", "icon"},
	})
	levels, unranked := g.Levels()
	assert.Equal(t, [][]string{{"icon"}, {"button"}, {"card"}}, levels)
	assert.Empty(t, unranked)

	require.NoError(t, g.AddReference("icon", "card"))
	levels, unranked = g.Levels()
	assert.Empty(t, levels)
	assert.Equal(t, []string{"button", "card", "icon"}, unranked)
}

func TestGraph_LevelsAroundCycle(t *testing.T) {
	g := build(t, []string{"leaf", "a", "b", "top", "solo"}, [][2]string{
		{"a", "b"},
		{"b", "a"},
		{"a", "leaf"},
		{"top", "a"},
		{"solo", "leaf"},
	})
	levels, unranked := g.Levels()
	assert.Equal(t, [][]string{{"leaf"}, {"solo"}}, levels)
	assert.Equal(t, []string{"a", "b", "top"}, unranked, "masters reaching a cycle have no level")

	g = build(t, []string{"self"}, [][2]string{{"self", "self"}})
	_, unranked = g.Levels()
	assert.Equal(t, []string{"self"}, unranked)
}

func TestGraph_Dependents(t *testing.T) {
	g := build(t, []string{"a", "b", "c", "d"}, [][2]string{
		{"a", "b"},
		{"b", "c"},
		{"d", "c"},
	})
	assert.Equal(t, []string{"a", "b", "d"}, g.Dependents("c"))
	assert.Empty(t, g.Dependents("a"))
	assert.Equal(t, []string{"a", "b", "c", "d"}, g.Masters())
}
