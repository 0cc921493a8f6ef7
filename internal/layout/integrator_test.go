package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verygoodgraphics/vgg-runtime-sub005/internal/testutil"
	"github.com/verygoodgraphics/vgg-runtime-sub005/pkg/diag"
	"github.com/verygoodgraphics/vgg-runtime-sub005/pkg/element"
)

func decode(t *testing.T, doc string) *element.Tree {
	t.Helper()
	tree, err := element.Decode([]byte(doc))
	require.NoError(t, err)
	return tree
}

func frameOf(t *testing.T, tree *element.Tree, id string) element.Frame {
	t.Helper()
	h, ok := tree.Lookup(id)
	require.True(t, ok, id)
	return *tree.Node(h).Frame
}

func handle(t *testing.T, tree *element.Tree, id string) element.Handle {
	t.Helper()
	h, ok := tree.Lookup(id)
	require.True(t, ok, id)
	return h
}

const resizeDoc = `{"frames": [{
	"id": "root", "class": "frame",
	"frame": {"x": 0, "y": 0, "width": 100, "height": 100},
	"childObjects": [
		{"id": "still",   "class": "path", "frame": {"x": 10, "y": 10, "width": 20, "height": 20}},
		{"id": "stretch", "class": "path", "frame": {"x": 10, "y": 40, "width": 80, "height": 10}},
		{"id": "scaled",  "class": "path", "frame": {"x": 50, "y": 50, "width": 20, "height": 20}},
		{"id": "pinned",  "class": "path", "frame": {"x": 80, "y": 80, "width": 10, "height": 10}},
		{"id": "middle",  "class": "path", "frame": {"x": 45, "y": 45, "width": 10, "height": 10}}
	]
}]}`

func TestIntegrator_ResizeConstraints(t *testing.T) {
	tree := decode(t, resizeDoc)
	rules := Rules{
		"stretch": {"resizing": map[string]any{"horizontal": "fixStartEnd", "vertical": "fixStart"}},
		"scaled":  {"resizing": map[string]any{"horizontal": "scale", "vertical": "scale"}},
		"pinned":  {"resizing": map[string]any{"horizontal": "fixEnd", "vertical": "fixEnd"}},
		"middle":  {"resizing": map[string]any{"horizontal": "center", "vertical": "center"}},
	}
	in := NewIntegrator(tree, rules, diag.NewReport(), testutil.NewTestLogger(t))

	root := handle(t, tree, "root")
	require.True(t, in.Resize(root, 200, 150))

	still := frameOf(t, tree, "still")
	assert.Equal(t, 10.0, still.X)
	assert.Equal(t, 10.0, still.Y)
	assert.Equal(t, 20.0, still.Width)
	assert.Equal(t, 20.0, still.Height)

	stretch := frameOf(t, tree, "stretch")
	assert.Equal(t, 180.0, stretch.Width)
	assert.Equal(t, 40.0, stretch.Y)

	scaled := frameOf(t, tree, "scaled")
	assert.Equal(t, 100.0, scaled.X)
	assert.Equal(t, 75.0, scaled.Y)
	assert.Equal(t, 40.0, scaled.Width)
	assert.Equal(t, 30.0, scaled.Height)

	pinned := frameOf(t, tree, "pinned")
	assert.Equal(t, 180.0, pinned.X)
	assert.Equal(t, 130.0, pinned.Y)

	middle := frameOf(t, tree, "middle")
	assert.Equal(t, 95.0, middle.X)
	assert.Equal(t, 70.0, middle.Y)

	dirty := in.TakeDirty()
	assert.Contains(t, dirty, root)
	assert.NotContains(t, dirty, handle(t, tree, "still"))
	assert.Contains(t, dirty, handle(t, tree, "scaled"))
	assert.Empty(t, in.TakeDirty())
}

func TestIntegrator_ResizeSameSize(t *testing.T) {
	tree := decode(t, resizeDoc)
	in := NewIntegrator(tree, Rules{}, nil, nil)
	assert.False(t, in.Resize(handle(t, tree, "root"), 100, 100))
	assert.Empty(t, in.TakeDirty())
}

func TestIntegrator_ResizeNested(t *testing.T) {
	tree := decode(t, `{"frames": [{
		"id": "root", "frame": {"width": 100, "height": 100},
		"childObjects": [{
			"id": "panel", "frame": {"x": 0, "y": 0, "width": 100, "height": 50},
			"childObjects": [{"id": "label", "frame": {"x": 60, "y": 0, "width": 40, "height": 10}}]
		}]
	}]}`)
	rules := Rules{
		"panel": {"resizing": map[string]any{"horizontal": "fixStartEnd"}},
		"label": {"resizing": map[string]any{"horizontal": "fixEnd"}},
	}
	in := NewIntegrator(tree, rules, nil, nil)
	in.Resize(handle(t, tree, "root"), 150, 100)

	assert.Equal(t, 150.0, frameOf(t, tree, "panel").Width)
	assert.Equal(t, 110.0, frameOf(t, tree, "label").X)
}

const flexDoc = `{"frames": [{
	"id": "row", "class": "frame",
	"frame": {"x": 0, "y": 0, "width": 200, "height": 50},
	"childObjects": [
		{"id": "a", "frame": {"x": 0, "y": 0, "width": 20, "height": 10}},
		{"id": "b", "frame": {"x": 0, "y": 0, "width": 30, "height": 10}},
		{"id": "c", "frame": {"x": 0, "y": 0, "width": 40, "height": 10}},
		{"id": "float", "frame": {"x": 3, "y": 4, "width": 5, "height": 5}}
	]
}]}`

func flexRules(layout map[string]any) Rules {
	return Rules{
		"row":   {"layout": layout},
		"float": {"itemInLayout": map[string]any{"position": "absolute"}},
	}
}

func TestIntegrator_FlexRow(t *testing.T) {
	tree := decode(t, flexDoc)
	rules := flexRules(map[string]any{"type": "flex", "direction": "row", "gap": 5.0, "padding": []any{10.0, 10.0, 10.0, 10.0}})
	in := NewIntegrator(tree, rules, nil, nil)

	row := handle(t, tree, "row")
	in.MarkDirty(row)
	in.Relayout(row)

	assert.Equal(t, 10.0, frameOf(t, tree, "a").X)
	assert.Equal(t, 35.0, frameOf(t, tree, "b").X)
	assert.Equal(t, 70.0, frameOf(t, tree, "c").X)
	assert.Equal(t, 10.0, frameOf(t, tree, "a").Y)

	float := frameOf(t, tree, "float")
	assert.Equal(t, 3.0, float.X, "absolute children stay put")
	assert.Equal(t, 4.0, float.Y)
}

func TestIntegrator_FlexGrowAndJustify(t *testing.T) {
	tests := []struct {
		name    string
		layout  map[string]any
		growC   bool
		wantX   []float64
		wantCW  float64
		wantAY  float64
		wantAHt float64
	}{
		{
			name:    "grow fills free space",
			layout:  map[string]any{"gap": 5.0, "padding": []any{10.0}},
			growC:   true,
			wantX:   []float64{10, 35, 70},
			wantCW:  120,
			wantAY:  10,
			wantAHt: 10,
		},
		{
			name:    "center",
			layout:  map[string]any{"gap": 5.0, "padding": []any{10.0}, "justifyContent": "center", "alignItems": "center"},
			wantX:   []float64{50, 75, 110},
			wantCW:  40,
			wantAY:  20,
			wantAHt: 10,
		},
		{
			name:    "space between and stretch",
			layout:  map[string]any{"justifyContent": "spaceBetween", "alignItems": "stretch"},
			wantX:   []float64{0, 75, 160},
			wantCW:  40,
			wantAY:  0,
			wantAHt: 50,
		},
		{
			name:    "end",
			layout:  map[string]any{"justifyContent": "end"},
			wantX:   []float64{110, 130, 160},
			wantCW:  40,
			wantAY:  0,
			wantAHt: 10,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree := decode(t, flexDoc)
			rules := flexRules(tt.layout)
			if tt.growC {
				rules["c"] = Rule{"itemInLayout": map[string]any{"grow": 1.0}}
			}
			in := NewIntegrator(tree, rules, nil, nil)
			row := handle(t, tree, "row")
			in.MarkDirty(row)
			in.Relayout(row)

			for i, id := range []string{"a", "b", "c"} {
				assert.InDelta(t, tt.wantX[i], frameOf(t, tree, id).X, 1e-9, id)
			}
			assert.InDelta(t, tt.wantCW, frameOf(t, tree, "c").Width, 1e-9)
			assert.InDelta(t, tt.wantAY, frameOf(t, tree, "a").Y, 1e-9)
			assert.InDelta(t, tt.wantAHt, frameOf(t, tree, "a").Height, 1e-9)
		})
	}
}

func TestIntegrator_FlexColumn(t *testing.T) {
	tree := decode(t, `{"frames": [{
		"id": "col", "frame": {"width": 50, "height": 200},
		"childObjects": [
			{"id": "a", "frame": {"width": 10, "height": 20}},
			{"id": "b", "frame": {"width": 10, "height": 30}}
		]
	}]}`)
	rules := Rules{"col": {"layout": map[string]any{"direction": "column", "gap": 10.0, "padding": []any{5.0, 0.0}}}}
	in := NewIntegrator(tree, rules, nil, nil)
	col := handle(t, tree, "col")
	in.MarkDirty(col)
	in.Relayout(col)

	assert.Equal(t, 5.0, frameOf(t, tree, "a").Y)
	assert.Equal(t, 35.0, frameOf(t, tree, "b").Y)
	assert.Equal(t, 0.0, frameOf(t, tree, "b").X)
}

func TestIntegrator_ResizeFlexContainer(t *testing.T) {
	tree := decode(t, flexDoc)
	rules := flexRules(map[string]any{"gap": 5.0, "justifyContent": "end"})
	in := NewIntegrator(tree, rules, nil, nil)

	row := handle(t, tree, "row")
	require.True(t, in.Resize(row, 300, 50))
	in.Relayout(row)

	assert.Equal(t, 300.0-40, frameOf(t, tree, "c").X)
	assert.True(t, in.IsDirty(handle(t, tree, "c")))
}

func TestIntegrator_RelayoutOnlyDirty(t *testing.T) {
	tree := decode(t, `{"frames": [
		{"id": "left", "frame": {"width": 100, "height": 10}, "childObjects": [{"id": "l1", "frame": {"x": 50, "width": 10, "height": 10}}]},
		{"id": "right", "frame": {"width": 100, "height": 10}, "childObjects": [{"id": "r1", "frame": {"x": 50, "width": 10, "height": 10}}]}
	]}`)
	rules := Rules{
		"left":  {"layout": map[string]any{"type": "flex"}},
		"right": {"layout": map[string]any{"type": "flex"}},
	}
	in := NewIntegrator(tree, rules, nil, nil)
	left := handle(t, tree, "left")
	in.MarkDirty(left)
	in.Relayout(left)
	in.Relayout(handle(t, tree, "right"))

	assert.Equal(t, 0.0, frameOf(t, tree, "l1").X)
	assert.Equal(t, 50.0, frameOf(t, tree, "r1").X, "clean containers are not re-laid out")
}

func TestIntegrator_MalformedRuleReportedOnce(t *testing.T) {
	tree := decode(t, resizeDoc)
	report := diag.NewReport()
	rules := Rules{"still": {"resizing": "sideways"}}
	in := NewIntegrator(tree, rules, report, nil)

	root := handle(t, tree, "root")
	in.Resize(root, 200, 200)
	in.Resize(root, 300, 300)

	got := report.ByCode(diag.CodeMalformedRule)
	require.Len(t, got, 1)
	assert.Equal(t, "still", got[0].NodeID)
	assert.Equal(t, 10.0, frameOf(t, tree, "still").X)
}

func TestIntegrator_MarkBoundsChanged(t *testing.T) {
	tree := decode(t, flexDoc)
	in := NewIntegrator(tree, flexRules(map[string]any{}), nil, nil)
	a := handle(t, tree, "a")
	in.MarkBoundsChanged(a)
	assert.True(t, in.IsDirty(a))
	assert.True(t, in.IsDirty(handle(t, tree, "row")))
}
