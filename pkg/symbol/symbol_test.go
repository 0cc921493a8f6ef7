package symbol_test

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verygoodgraphics/vgg-runtime-sub005/internal/testutil"
	"github.com/verygoodgraphics/vgg-runtime-sub005/pkg/diag"
	"github.com/verygoodgraphics/vgg-runtime-sub005/pkg/symbol"
)

const exampleDesign = `{
	"version": "1.0",
	"frames": [{"id": "page", "class": "frame", "frame": {"width": 500, "height": 500}, "childObjects": [
		{"id": "I1", "class": "symbolInstance", "masterId": "M", "frame": {"x": 10, "y": 10, "width": 100, "height": 100},
		 "overrideValues": [{"objectId": ["rect"], "overrideName": "width", "overrideValue": 30}]}
	]}],
	"references": [{"id": "M", "class": "symbolMaster", "frame": {"width": 50, "height": 50}, "childObjects": [
		{"id": "rect", "class": "path", "frame": {"x": 5, "y": 5, "width": 20, "height": 20}}
	]}]
}`

const exampleLayout = `{
	"rect": {"resizing": {"horizontal": "fixStart", "vertical": "fixStart"}, "width": {"value": 20}},
	"ghost": {"width": {"value": 1}}
}`

type element struct {
	ID       string    `json:"id"`
	MasterID string    `json:"masterId"`
	Frame    frame     `json:"frame"`
	Children []element `json:"childObjects"`
}

type frame struct {
	X, Y, Width, Height float64
}

type document struct {
	Version    string    `json:"version"`
	Frames     []element `json:"frames"`
	References []element `json:"references"`
}

func TestExpand(t *testing.T) {
	res, err := symbol.Expand([]byte(exampleDesign), []byte(exampleLayout),
		symbol.WithLogger(testutil.NewTestLogger(t)))
	require.NoError(t, err)

	var doc document
	require.NoError(t, json.Unmarshal(res.Design, &doc))
	assert.Equal(t, "1.0", doc.Version)

	inst := doc.Frames[0].Children[0]
	assert.Equal(t, "I1", inst.ID)
	assert.Equal(t, "M", inst.MasterID)
	require.Len(t, inst.Children, 1)
	assert.Equal(t, "I1__rect", inst.Children[0].ID)
	assert.Equal(t, 30.0, inst.Children[0].Frame.Width)
	assert.Equal(t, 5.0, inst.Children[0].Frame.X)

	require.Len(t, doc.References, 1)
	assert.Equal(t, "rect", doc.References[0].Children[0].ID)
	assert.Equal(t, 20.0, doc.References[0].Children[0].Frame.Width)

	var rules map[string]map[string]any
	require.NoError(t, json.Unmarshal(res.Layout, &rules))
	assert.Contains(t, rules, "rect")
	assert.Contains(t, rules, "I1__rect")
	assert.NotContains(t, rules, "ghost", "rules of unknown ids are dropped")
	assert.Equal(t, map[string]any{"value": 30.0}, rules["I1__rect"]["width"])

	assert.NotEmpty(t, res.Report.RunID)
	assert.False(t, res.Report.HasErrors())
}

func TestExpand_NoLayout(t *testing.T) {
	res, err := symbol.Expand([]byte(exampleDesign), nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(res.Layout))
}

func TestExpand_InputErrors(t *testing.T) {
	tests := []struct {
		name   string
		design string
		layout string
		doc    string
	}{
		{name: "design not json", design: `{`, doc: "design"},
		{name: "design not object", design: `[1]`, doc: "design"},
		{name: "layout not json", design: `{}`, layout: `nope`, doc: "layout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := symbol.Expand([]byte(tt.design), []byte(tt.layout))
			require.Error(t, err)
			var inErr *symbol.InputError
			require.ErrorAs(t, err, &inErr)
			assert.Equal(t, tt.doc, inErr.Document)
		})
	}
}

func TestExpand_OptionErrors(t *testing.T) {
	tests := []struct {
		name string
		opt  symbol.Option
	}{
		{"negative depth", symbol.WithMaxDepth(-1)},
		{"bad scope", symbol.WithVariableScope(symbol.VariableScope(9))},
		{"bad policy", symbol.WithDuplicatePolicy(symbol.DuplicatePolicy(9))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := symbol.NewSession([]byte(exampleDesign), nil, tt.opt)
			assert.Error(t, err)
		})
	}
}

func TestExpand_MalformedLayoutEntry(t *testing.T) {
	res, err := symbol.Expand([]byte(exampleDesign), []byte(`{"rect": 5}`))
	require.NoError(t, err)
	bad := res.Report.ByCode(diag.CodeMalformedRule)
	require.Len(t, bad, 1)
	assert.Equal(t, "rect", bad[0].NodeID)
}

const duplicateDesign = `{
	"frames": [{"id": "I", "class": "symbolInstance", "masterId": "m"}],
	"references": [
		{"id": "first", "class": "symbolMaster", "masterId": "m", "childObjects": [{"id": "a", "class": "path"}]},
		{"id": "second", "class": "symbolMaster", "masterId": "m", "childObjects": [{"id": "b", "class": "path"}]}
	]
}`

func TestExpand_DuplicatePolicy(t *testing.T) {
	tests := []struct {
		name   string
		policy symbol.DuplicatePolicy
		child  string
	}{
		{"keep first", symbol.KeepFirst, "I__a"},
		{"keep last", symbol.KeepLast, "I__b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := symbol.NewSession([]byte(duplicateDesign), nil, symbol.WithDuplicatePolicy(tt.policy))
			require.NoError(t, err)
			require.NoError(t, s.Run())

			_, ok := s.Tree().Lookup(tt.child)
			assert.True(t, ok)
			assert.Len(t, s.Report().ByCode(diag.CodeDuplicateMaster), 1)
			require.Len(t, s.Masters(), 1)
		})
	}
}

const variantDesign = `{
	"frames": [{"id": "page", "class": "frame", "frame": {"width": 800, "height": 600}, "childObjects": [
		{"id": "compA", "class": "frame", "frame": {"x": 0, "y": 0, "width": 100, "height": 40}, "childObjects": [
			{"id": "default", "class": "symbolMaster", "frame": {"width": 100, "height": 40}}
		]},
		{"id": "compB", "class": "frame", "frame": {"x": 0, "y": 0, "width": 100, "height": 40}, "childObjects": [
			{"id": "hover", "class": "symbolMaster", "frame": {"width": 100, "height": 40}}
		]},
		{"id": "compC", "class": "frame", "frame": {"x": 0, "y": 0, "width": 120, "height": 40}, "childObjects": [
			{"id": "wide", "class": "symbolMaster", "frame": {"width": 120, "height": 40}}
		]}
	]}],
	"references": [{"id": "loose", "class": "symbolMaster"}]
}`

func TestSession_IsSameComponent(t *testing.T) {
	s, err := symbol.NewSession([]byte(variantDesign), nil)
	require.NoError(t, err)
	assert.False(t, s.IsSameComponent("default", "hover"), "nothing is known before Run")
	require.NoError(t, s.Run())

	tests := []struct {
		a, b string
		want bool
	}{
		{"default", "hover", true},
		{"hover", "default", true},
		{"default", "wide", false},
		{"default", "loose", false},
		{"default", "missing", false},
	}
	for _, tt := range tests {
		t.Run(tt.a+"/"+tt.b, func(t *testing.T) {
			assert.Equal(t, tt.want, s.IsSameComponent(tt.a, tt.b))
		})
	}
	assert.Equal(t, [][]string{{"default", "hover"}, {"wide"}}, s.VariantGroups())
}

const swapDesign = `{
	"frames": [{"id": "page", "class": "frame", "frame": {"width": 300, "height": 100}, "childObjects": [
		{"id": "I", "class": "symbolInstance", "masterId": "%s", "frame": {"x": 0, "y": 0, "width": 120, "height": 40}},
		{"id": "other", "class": "symbolInstance", "masterId": "m1", "frame": {"x": 0, "y": 50, "width": 100, "height": 40}}
	]}],
	"references": [
		{"id": "m1", "class": "symbolMaster", "frame": {"width": 100, "height": 40}, "childObjects": [
			{"id": "a", "class": "path", "frame": {"width": 20, "height": 20}},
			{"id": "b", "class": "path", "frame": {"x": 30, "width": 20, "height": 20}}
		]},
		{"id": "m2", "class": "symbolMaster", "frame": {"width": 100, "height": 40}, "childObjects": [
			{"id": "c", "class": "path", "frame": {"x": 10, "y": 10, "width": 80, "height": 20}}
		]}
	]
}`

const swapLayout = `{
	"m1": {"layout": {"type": "flex", "direction": "row", "gap": 5}},
	"page": {"width": {"value": 300}},
	"c": {"resizing": {"horizontal": "fixStartEnd"}, "width": {"value": 80}}
}`

func TestSession_ExpandInstanceMatchesFreshRun(t *testing.T) {
	s, err := symbol.NewSession([]byte(fmt.Sprintf(swapDesign, "m1")), []byte(swapLayout),
		symbol.WithLogger(testutil.NewTestLogger(t)))
	require.NoError(t, err)
	require.NoError(t, s.Run())

	// Fill the output caches before swapping.
	before, err := s.LayoutJSON()
	require.NoError(t, err)
	assert.Contains(t, string(before), "I__a")
	_, err = s.DesignJSON()
	require.NoError(t, err)

	require.NoError(t, s.ExpandInstance("I", "m2"))
	gotLayout, err := s.LayoutJSON()
	require.NoError(t, err)
	gotDesign, err := s.DesignJSON()
	require.NoError(t, err)

	fresh, err := symbol.Expand([]byte(fmt.Sprintf(swapDesign, "m2")), []byte(swapLayout))
	require.NoError(t, err)

	assert.JSONEq(t, string(fresh.Layout), string(gotLayout))
	assert.JSONEq(t, string(fresh.Design), string(gotDesign))
	assert.NotContains(t, string(gotLayout), "I__a")

	var rules map[string]map[string]any
	require.NoError(t, json.Unmarshal(gotLayout, &rules))
	assert.Equal(t, map[string]any{"value": 100.0}, rules["I__c"]["width"])
}

func TestSession_ExpandInstanceErrors(t *testing.T) {
	s, err := symbol.NewSession([]byte(fmt.Sprintf(swapDesign, "m1")), nil)
	require.NoError(t, err)

	err = s.ExpandInstance("nope", "m2")
	var instErr *symbol.UnknownInstanceError
	require.ErrorAs(t, err, &instErr)
	assert.Equal(t, "nope", instErr.ID)

	err = s.ExpandInstance("page", "m2")
	require.ErrorAs(t, err, &instErr)
	assert.Contains(t, err.Error(), "not a symbol instance")

	err = s.ExpandInstance("I", "m9")
	var masterErr *symbol.UnknownMasterError
	require.ErrorAs(t, err, &masterErr)
	assert.Equal(t, []string{"m1", "m2"}, masterErr.Available)
}

func TestSession_ExpandInstanceCycle(t *testing.T) {
	design := `{
		"frames": [{"id": "C", "class": "symbolInstance", "masterId": "card"}],
		"references": [
			{"id": "card", "class": "symbolMaster", "childObjects": [
				{"id": "btn", "class": "symbolInstance", "masterId": "button"}
			]},
			{"id": "button", "class": "symbolMaster", "childObjects": [{"id": "label", "class": "text"}]}
		]
	}`
	s, err := symbol.NewSession([]byte(design), nil)
	require.NoError(t, err)
	require.NoError(t, s.Run())
	before, err := s.DesignJSON()
	require.NoError(t, err)

	err = s.ExpandInstance("C__btn", "card")
	var cycleErr *symbol.CycleError
	require.ErrorAs(t, err, &cycleErr)
	assert.Equal(t, "C__btn", cycleErr.ID)
	assert.Equal(t, "card", cycleErr.MasterID)

	after, err := s.DesignJSON()
	require.NoError(t, err)
	assert.JSONEq(t, string(before), string(after))
	assert.False(t, s.Report().HasErrors())

	masters := s.Masters()
	require.Len(t, masters, 2)
	assert.Equal(t, symbol.MasterInfo{ID: "card", Level: 1, Uses: []string{"button"}, UsedBy: []string{}, Dependents: []string{}}, masters[0])
	assert.Equal(t, symbol.MasterInfo{ID: "button", Level: 0, Uses: []string{}, UsedBy: []string{"card"}, Dependents: []string{"card"}}, masters[1])
}

func TestSession_VariableScope(t *testing.T) {
	design := `{
		"frames": [{"id": "I", "class": "symbolInstance", "masterId": "outer"}],
		"references": [
			{"id": "outer", "class": "symbolMaster", "variableDefs": [{"id": "v", "value": "hello"}],
			 "childObjects": [{"id": "J", "class": "symbolInstance", "masterId": "inner"}]},
			{"id": "inner", "class": "symbolMaster",
			 "childObjects": [{"id": "t", "class": "text", "content": "", "variableRefs": [{"id": "v", "objectField": "content"}]}]}
		]
	}`
	content := func(res *symbol.Result) any {
		var doc map[string]any
		require.NoError(t, json.Unmarshal(res.Design, &doc))
		inst := doc["frames"].([]any)[0].(map[string]any)
		nested := inst["childObjects"].([]any)[0].(map[string]any)
		require.Equal(t, "I__J", nested["id"])
		text := nested["childObjects"].([]any)[0].(map[string]any)
		require.Equal(t, "I__J__t", text["id"])
		return text["content"]
	}

	scope, err := symbol.ParseVariableScope("all")
	require.NoError(t, err)
	res, err := symbol.Expand([]byte(design), nil, symbol.WithVariableScope(scope))
	require.NoError(t, err)
	assert.Equal(t, "hello", content(res))

	res, err = symbol.Expand([]byte(design), nil)
	require.NoError(t, err)
	assert.Equal(t, "", content(res))
}
