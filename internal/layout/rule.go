// Package layout holds layout rules keyed by node id and the integrator that
// re-derives geometry when a symbol instance is resized.
package layout

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/go-viper/mapstructure/v2"
	"github.com/mitchellh/copystructure"
)

// Rule keys read by the integrator.
const (
	KeyWidth        = "width"
	KeyHeight       = "height"
	KeyResizing     = "resizing"
	KeyLayout       = "layout"
	KeyItemInLayout = "itemInLayout"
)

// Rule is the layout instruction set of one node. Unknown keys are kept.
type Rule map[string]any

// Rules maps node ids to rules.
type Rules map[string]Rule

// ParseRules decodes a layout document. Entries that are not objects are
// skipped and their ids returned in sorted order. Empty input yields no rules.
func ParseRules(data []byte) (Rules, []string, error) {
	rules := make(Rules)
	if len(data) == 0 {
		return rules, nil, nil
	}
	var top map[string]any
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, nil, fmt.Errorf("invalid layout document: %w", err)
	}

	var bad []string
	for id, v := range top {
		m, ok := v.(map[string]any)
		if !ok {
			bad = append(bad, id)
			continue
		}
		rules[id] = Rule(m)
	}
	sort.Strings(bad)
	return rules, bad, nil
}

// Clone deep-copies the rule.
func (r Rule) Clone() Rule {
	if r == nil {
		return nil
	}
	cp, err := copystructure.Copy(map[string]any(r))
	if err != nil {
		return Rule(copyJSON(map[string]any(r)).(map[string]any))
	}
	return Rule(cp.(map[string]any))
}

// copyJSON deep-copies the maps and slices of a decoded JSON value. Other
// values are shared.
func copyJSON(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = copyJSON(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = copyJSON(e)
		}
		return out
	default:
		return v
	}
}

// Clone deep-copies every rule.
func (rs Rules) Clone() Rules {
	out := make(Rules, len(rs))
	for id, r := range rs {
		out[id] = r.Clone()
	}
	return out
}

// Merge folds patch into r[key]. Nested objects merge recursively; any other
// value replaces what was there.
func (r Rule) Merge(key string, patch map[string]any) {
	cur, _ := r[key].(map[string]any)
	if cur == nil {
		cur = make(map[string]any, len(patch))
	}
	r[key] = mergeMaps(cur, patch)
}

func mergeMaps(dst, src map[string]any) map[string]any {
	for k, v := range src {
		sv, srcIsMap := v.(map[string]any)
		dv, dstIsMap := dst[k].(map[string]any)
		if srcIsMap && dstIsMap {
			dst[k] = mergeMaps(dv, sv)
			continue
		}
		dst[k] = v
	}
	return dst
}

// SetSize writes the node's current size into the width and height entries.
func (r Rule) SetSize(width, height float64) {
	setLength(r, KeyWidth, width)
	setLength(r, KeyHeight, height)
}

func setLength(r Rule, key string, v float64) {
	m, ok := r[key].(map[string]any)
	if !ok {
		m = make(map[string]any, 1)
		r[key] = m
	}
	m["value"] = v
}

// =============================================================================
// Typed views
// =============================================================================

// Constraint says how a child follows its parent along one axis.
type Constraint string

// Resizing constraints.
const (
	FixStart    Constraint = "fixStart"
	FixEnd      Constraint = "fixEnd"
	FixStartEnd Constraint = "fixStartEnd"
	Center      Constraint = "center"
	Scale       Constraint = "scale"
)

// Participates reports whether the constraint reacts to a parent resize.
func (c Constraint) Participates() bool {
	switch c {
	case FixEnd, FixStartEnd, Center, Scale:
		return true
	default:
		return false
	}
}

// Resizing is the per-axis resizing constraint of a child.
type Resizing struct {
	Horizontal Constraint `mapstructure:"horizontal"`
	Vertical   Constraint `mapstructure:"vertical"`
}

// Container is a flex layout on a container node.
type Container struct {
	Type           string    `mapstructure:"type"`
	Direction      string    `mapstructure:"direction"`
	JustifyContent string    `mapstructure:"justifyContent"`
	AlignItems     string    `mapstructure:"alignItems"`
	Gap            float64   `mapstructure:"gap"`
	Padding        []float64 `mapstructure:"padding"`
}

// Horizontal reports whether the main axis is x.
func (c Container) Horizontal() bool {
	return c.Direction != "column"
}

// Pad returns top, right, bottom and left padding. One value applies to all
// sides, two are vertical then horizontal.
func (c Container) Pad() (top, right, bottom, left float64) {
	p := c.Padding
	switch len(p) {
	case 0:
		return 0, 0, 0, 0
	case 1:
		return p[0], p[0], p[0], p[0]
	case 2, 3:
		return p[0], p[1], p[0], p[1]
	default:
		return p[0], p[1], p[2], p[3]
	}
}

// Item is how a child takes part in its parent's flex layout.
type Item struct {
	Position string  `mapstructure:"position"`
	Grow     float64 `mapstructure:"grow"`
}

// Absolute reports whether the child is outside the flow.
func (i Item) Absolute() bool { return i.Position == "absolute" }

// Resizing decodes the resizing constraints. Missing axes default to FixStart.
func (r Rule) Resizing() (Resizing, error) {
	rs := Resizing{Horizontal: FixStart, Vertical: FixStart}
	if err := r.view(KeyResizing, &rs); err != nil {
		return Resizing{Horizontal: FixStart, Vertical: FixStart}, err
	}
	if rs.Horizontal == "" {
		rs.Horizontal = FixStart
	}
	if rs.Vertical == "" {
		rs.Vertical = FixStart
	}
	return rs, nil
}

// Container decodes the flex container, or returns nil if the node does not
// lay out its children.
func (r Rule) Container() (*Container, error) {
	if _, ok := r[KeyLayout]; !ok {
		return nil, nil
	}
	var c Container
	if err := r.view(KeyLayout, &c); err != nil {
		return nil, err
	}
	if c.Type != "" && c.Type != "flex" {
		return nil, nil
	}
	return &c, nil
}

// Item decodes the item-in-layout settings.
func (r Rule) Item() (Item, error) {
	var it Item
	err := r.view(KeyItemInLayout, &it)
	return it, err
}

func (r Rule) view(key string, out any) error {
	raw, ok := r[key]
	if !ok || raw == nil {
		return nil
	}
	if err := mapstructure.Decode(raw, out); err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	return nil
}
