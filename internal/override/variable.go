package override

import (
	"errors"
	"fmt"

	"github.com/go-viper/mapstructure/v2"
)

// Def declares a variable on a master.
type Def struct {
	ID    string `mapstructure:"id"`
	Name  string `mapstructure:"name"`
	Type  string `mapstructure:"type"`
	Value any    `mapstructure:"value"`
}

// Assignment binds a variable declared by a master to an instance value.
type Assignment struct {
	ID    string `mapstructure:"id"`
	Value any    `mapstructure:"value"`
}

// Ref makes an element field take the value of a variable.
type Ref struct {
	ID          string `mapstructure:"id"`
	ObjectField string `mapstructure:"objectField"`
}

// DecodeDefs reads a variableDefs array.
func DecodeDefs(raw any) ([]Def, error) {
	var out []Def
	if err := decodeList(raw, &out); err != nil {
		return nil, err
	}
	for i, d := range out {
		if d.ID == "" {
			return nil, fmt.Errorf("variableDefs[%d]: id is required", i)
		}
	}
	return out, nil
}

// DecodeAssignments reads a variableAssignments array.
func DecodeAssignments(raw any) ([]Assignment, error) {
	var out []Assignment
	if err := decodeList(raw, &out); err != nil {
		return nil, err
	}
	for i, a := range out {
		if a.ID == "" {
			return nil, fmt.Errorf("variableAssignments[%d]: id is required", i)
		}
	}
	return out, nil
}

// DecodeRefs reads a variableRefs array. Each ref must name a field.
func DecodeRefs(raw any) ([]Ref, error) {
	var out []Ref
	if err := decodeList(raw, &out); err != nil {
		return nil, err
	}
	for i, r := range out {
		if r.ID == "" || r.ObjectField == "" {
			return nil, fmt.Errorf("variableRefs[%d]: id and objectField are required", i)
		}
	}
	return out, nil
}

func decodeList(raw any, out any) error {
	if raw == nil {
		return nil
	}
	if _, ok := raw.([]any); !ok {
		return errors.New("expected an array")
	}
	return mapstructure.Decode(raw, out)
}

// Bindings maps variable ids to values.
type Bindings map[string]any

// Bind resolves the bindings of an instance: master defaults first, then
// the instance's own assignments. Assignments for undeclared ids are kept so
// that nested masters can still see them.
func Bind(defs []Def, assigns []Assignment) Bindings {
	b := make(Bindings, len(defs)+len(assigns))
	for _, d := range defs {
		b[d.ID] = d.Value
	}
	for _, a := range assigns {
		b[a.ID] = a.Value
	}
	return b
}

// Env is a chain of bindings. Lookups walk outward through parents when the
// env inherits.
type Env struct {
	vars     Bindings
	parent   *Env
	inherits bool
}

// NewEnv creates an env. When inherits is false, parent is ignored for lookup.
func NewEnv(vars Bindings, parent *Env, inherits bool) *Env {
	return &Env{vars: vars, parent: parent, inherits: inherits}
}

// Lookup returns the value bound to id.
func (e *Env) Lookup(id string) (any, bool) {
	for cur := e; cur != nil; cur = cur.parent {
		if v, ok := cur.vars[id]; ok {
			return v, true
		}
		if !cur.inherits {
			break
		}
	}
	return nil, false
}

// Set rebinds id in this env only.
func (e *Env) Set(id string, v any) {
	if e.vars == nil {
		e.vars = make(Bindings)
	}
	e.vars[id] = v
}
