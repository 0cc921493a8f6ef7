package override

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeDefs(t *testing.T) {
	defs, err := DecodeDefs([]any{
		map[string]any{"id": "v1", "name": "label", "type": "string", "value": "Submit"},
	})
	require.NoError(t, err)
	assert.Equal(t, []Def{{ID: "v1", Name: "label", Type: "string", Value: "Submit"}}, defs)

	_, err = DecodeDefs([]any{map[string]any{"name": "no id"}})
	assert.Error(t, err)

	_, err = DecodeDefs("v1")
	assert.Error(t, err)
}

func TestDecodeRefs(t *testing.T) {
	refs, err := DecodeRefs([]any{map[string]any{"id": "v1", "objectField": "/content"}})
	require.NoError(t, err)
	assert.Equal(t, []Ref{{ID: "v1", ObjectField: "/content"}}, refs)

	_, err = DecodeRefs([]any{map[string]any{"id": "v1"}})
	assert.Error(t, err)
}

func TestBind(t *testing.T) {
	b := Bind(
		[]Def{{ID: "v1", Value: "default"}, {ID: "v2", Value: 1.0}},
		[]Assignment{{ID: "v1", Value: "custom"}},
	)
	assert.Equal(t, Bindings{"v1": "custom", "v2": 1.0}, b)
}

func TestEnv_Lookup(t *testing.T) {
	outer := NewEnv(Bindings{"v1": "outer", "v2": "outer"}, nil, false)

	scoped := NewEnv(Bindings{"v1": "inner"}, outer, false)
	v, ok := scoped.Lookup("v1")
	require.True(t, ok)
	assert.Equal(t, "inner", v)
	_, ok = scoped.Lookup("v2")
	assert.False(t, ok, "master scope must not see enclosing bindings")

	inheriting := NewEnv(Bindings{"v1": "inner"}, outer, true)
	v, ok = inheriting.Lookup("v2")
	require.True(t, ok)
	assert.Equal(t, "outer", v)
	v, _ = inheriting.Lookup("v1")
	assert.Equal(t, "inner", v)

	inheriting.Set("v2", "shadow")
	v, _ = inheriting.Lookup("v2")
	assert.Equal(t, "shadow", v)
	v, _ = outer.Lookup("v2")
	assert.Equal(t, "outer", v)
}
