// Package override models the per-instance differences a symbol instance
// declares against its master.
//
// An override on the wire is
//
//	{"objectId": [...], "overrideName": "...", "overrideValue": ..., "overrideClass": "..."}
//
// Decode turns it into a Value whose Payload is one of MasterSwap,
// VariableAssign, PathSet, LayoutPatch, BoundsPatch or Property. The expander
// applies the classes in the order of Order and never inspects the raw form.
package override

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"
)

// =============================================================================
// Class
// =============================================================================

// Class selects the pass an override is applied in.
type Class int

// Override classes in application order.
const (
	ClassMasterID Class = iota
	ClassVariable
	ClassPath
	ClassLayout
	ClassBounds
	ClassOther
)

// Order is the fixed sequence in which classes are applied.
var Order = []Class{ClassMasterID, ClassVariable, ClassPath, ClassLayout, ClassBounds, ClassOther}

func (c Class) String() string {
	switch c {
	case ClassMasterID:
		return "masterId"
	case ClassVariable:
		return "variable"
	case ClassPath:
		return "path"
	case ClassLayout:
		return "layout"
	case ClassBounds:
		return "bounds"
	case ClassOther:
		return "other"
	default:
		return "unknown"
	}
}

// ParseClass converts an explicit overrideClass to a Class.
func ParseClass(s string) (Class, bool) {
	switch strings.ToLower(s) {
	case "masterid", "master-id", "masterid-swap":
		return ClassMasterID, true
	case "variable", "variable-assignment", "variableassignments":
		return ClassVariable, true
	case "path", "path-value":
		return ClassPath, true
	case "layout":
		return ClassLayout, true
	case "bounds":
		return ClassBounds, true
	case "other":
		return ClassOther, true
	default:
		return ClassPath, false
	}
}

// Override names with a fixed class.
const (
	NameMasterID            = "masterId"
	NameVariableAssignments = "variableAssignments"
	NameFrame               = "frame"
	NameBounds              = "bounds"
	NameLayout              = "layout"
	NameItemInLayout        = "itemInLayout"
	NameResizing            = "resizing"
)

var boundsFields = map[string]bool{
	NameFrame: true, NameBounds: true,
	"x": true, "y": true, "width": true, "height": true, "rotation": true,
}

var layoutNames = map[string]bool{
	NameLayout: true, NameItemInLayout: true, NameResizing: true,
}

var otherNames = map[string]bool{
	"visible": true, "opacity": true, "blendMode": true, "isLocked": true,
	"patternRotation": true, "contextSettings": true,
}

// Classify infers the class of an override from its name.
func Classify(name string) Class {
	switch {
	case name == NameMasterID:
		return ClassMasterID
	case name == NameVariableAssignments:
		return ClassVariable
	case boundsFields[name]:
		return ClassBounds
	case layoutNames[name]:
		return ClassLayout
	case otherNames[name]:
		return ClassOther
	default:
		return ClassPath
	}
}

// =============================================================================
// Value
// =============================================================================

// Payload is the class-specific content of an override.
type Payload interface {
	Class() Class
}

// MasterSwap redirects the target instance to another master.
type MasterSwap struct {
	MasterID string
}

// VariableAssign binds variables on the target instance.
type VariableAssign struct {
	Assignments []Assignment
}

// PathSet writes Value at Path inside the target element.
type PathSet struct {
	Path  Path
	Value any
}

// LayoutPatch merges Value into the target's layout rule under Key.
type LayoutPatch struct {
	Key   string
	Value map[string]any
}

// BoundsPatch changes the target's frame.
type BoundsPatch struct {
	Patch FramePatch
}

// Property sets a plain attribute on the target.
type Property struct {
	Name  string
	Value any
}

func (MasterSwap) Class() Class     { return ClassMasterID }
func (VariableAssign) Class() Class { return ClassVariable }
func (PathSet) Class() Class        { return ClassPath }
func (LayoutPatch) Class() Class    { return ClassLayout }
func (BoundsPatch) Class() Class    { return ClassBounds }
func (Property) Class() Class       { return ClassOther }

// Value is a decoded override.
type Value struct {
	// Target is the id path from the instance into its content; empty means
	// the instance itself.
	Target  []string
	Name    string
	Payload Payload
}

// Class returns the pass the override belongs to.
func (v Value) Class() Class { return v.Payload.Class() }

// Forwarded reports whether the override belongs to a nested instance.
func (v Value) Forwarded() bool { return len(v.Target) > 1 }

// Shift returns the override as seen from the nested instance named by the
// first target id.
func (v Value) Shift() Value {
	out := v
	out.Target = append([]string(nil), v.Target[1:]...)
	return out
}

func (v Value) String() string {
	return fmt.Sprintf("%s[%s]%s", v.Class(), strings.Join(v.Target, "/"), v.Name)
}

// MalformedError reports an override that cannot be applied.
type MalformedError struct {
	Name string
	Err  error
}

func (e *MalformedError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("malformed override: %v", e.Err)
	}
	return fmt.Sprintf("malformed override %q: %v", e.Name, e.Err)
}

func (e *MalformedError) Unwrap() error { return e.Err }

type wire struct {
	ObjectID      []string `mapstructure:"objectId"`
	OverrideName  string   `mapstructure:"overrideName"`
	OverrideValue any      `mapstructure:"overrideValue"`
	OverrideClass string   `mapstructure:"overrideClass"`
}

// Decode converts one raw overrideValues entry.
func Decode(raw any) (Value, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return Value{}, &MalformedError{Err: fmt.Errorf("entry must be an object, got %T", raw)}
	}
	var w wire
	if err := mapstructure.Decode(m, &w); err != nil {
		return Value{}, &MalformedError{Err: err}
	}
	if w.OverrideName == "" {
		return Value{}, &MalformedError{Err: errors.New("overrideName is required")}
	}

	class := Classify(w.OverrideName)
	if w.OverrideClass != "" {
		c, ok := ParseClass(w.OverrideClass)
		if !ok {
			return Value{}, &MalformedError{Name: w.OverrideName, Err: fmt.Errorf("unknown overrideClass %q", w.OverrideClass)}
		}
		class = c
	}

	payload, err := decodePayload(class, w.OverrideName, w.OverrideValue)
	if err != nil {
		return Value{}, &MalformedError{Name: w.OverrideName, Err: err}
	}
	return Value{Target: w.ObjectID, Name: w.OverrideName, Payload: payload}, nil
}

// DecodeList converts an overrideValues array. Entries that fail to decode
// are returned as errors; the rest keep their relative order.
func DecodeList(raw any) ([]Value, []error) {
	if raw == nil {
		return nil, nil
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, []error{&MalformedError{Err: fmt.Errorf("overrideValues must be an array, got %T", raw)}}
	}
	var (
		out  []Value
		errs []error
	)
	for i, item := range items {
		v, err := Decode(item)
		if err != nil {
			errs = append(errs, fmt.Errorf("overrideValues[%d]: %w", i, err))
			continue
		}
		out = append(out, v)
	}
	return out, errs
}

func decodePayload(class Class, name string, value any) (Payload, error) {
	switch class {
	case ClassMasterID:
		id, ok := value.(string)
		if !ok || id == "" {
			return nil, fmt.Errorf("master id must be a non-empty string, got %T", value)
		}
		return MasterSwap{MasterID: id}, nil

	case ClassVariable:
		as, err := decodeAssignValue(value)
		if err != nil {
			return nil, err
		}
		return VariableAssign{Assignments: as}, nil

	case ClassPath:
		p, err := ParsePath(name)
		if err != nil {
			return nil, err
		}
		return PathSet{Path: p, Value: value}, nil

	case ClassLayout:
		m, ok := value.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("layout value must be an object, got %T", value)
		}
		return LayoutPatch{Key: name, Value: m}, nil

	case ClassBounds:
		fp, err := NewFramePatch(name, value)
		if err != nil {
			return nil, err
		}
		return BoundsPatch{Patch: fp}, nil

	case ClassOther:
		return Property{Name: name, Value: value}, nil
	}
	return nil, fmt.Errorf("unknown class %d", class)
}

func decodeAssignValue(value any) ([]Assignment, error) {
	switch v := value.(type) {
	case []any:
		return DecodeAssignments(v)
	case map[string]any:
		return DecodeAssignments([]any{v})
	default:
		return nil, fmt.Errorf("variable assignments must be an object or array, got %T", value)
	}
}

// Partition groups overrides by class, keeping input order within a class.
func Partition(vs []Value) map[Class][]Value {
	out := make(map[Class][]Value, len(Order))
	for _, v := range vs {
		out[v.Class()] = append(out[v.Class()], v)
	}
	return out
}
