package element

import (
	"encoding/json"
	"fmt"

	"github.com/go-viper/mapstructure/v2"
)

// DecodeError reports a malformed element in the input document.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Decode parses a design document into a tree.
func Decode(data []byte) (*Tree, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, fmt.Errorf("invalid design document: %w", err)
	}

	t := New()
	for _, key := range ListKeys {
		raw, ok := top[key]
		if !ok {
			continue
		}
		delete(top, key)

		var items []any
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, &DecodeError{Path: key, Err: fmt.Errorf("expected an array of elements: %w", err)}
		}
		// Keep the list even when empty so it round-trips.
		t.lists = append(t.lists, List{Key: key, Roots: []Handle{}})
		for i, item := range items {
			h, err := t.decodeNode(item, fmt.Sprintf("%s/%d", key, i))
			if err != nil {
				return nil, err
			}
			t.AddRoot(key, h)
		}
	}
	for k, v := range top {
		t.extra[k] = v
	}
	return t, nil
}

func (t *Tree) decodeNode(v any, path string) (Handle, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return NoHandle, &DecodeError{Path: path, Err: fmt.Errorf("element must be an object, got %T", v)}
	}

	n := &Node{}
	var err error
	if n.ID, err = stringKey(m, KeyID); err != nil {
		return NoHandle, &DecodeError{Path: path, Err: err}
	}
	if n.Class, err = stringKey(m, KeyClass); err != nil {
		return NoHandle, &DecodeError{Path: path, Err: err}
	}
	if _, ok := m[KeyMasterID]; ok {
		if n.MasterID, err = stringKey(m, KeyMasterID); err != nil {
			return NoHandle, &DecodeError{Path: path, Err: err}
		}
		n.hasMasterID = true
	} else if n.Class == ClassSymbolMaster {
		n.MasterID = n.ID
	}
	if raw, ok := m[KeyFrame]; ok {
		f, err := decodeFrame(raw)
		if err != nil {
			return NoHandle, &DecodeError{Path: path + "/frame", Err: err}
		}
		n.Frame = f
	}

	var children []any
	if raw, ok := m[KeyChildren]; ok {
		children, ok = raw.([]any)
		if !ok {
			return NoHandle, &DecodeError{Path: path, Err: fmt.Errorf("%s must be an array", KeyChildren)}
		}
		n.hasChildren = true
	}

	for _, k := range []string{KeyID, KeyClass, KeyMasterID, KeyFrame, KeyChildren} {
		delete(m, k)
	}
	if len(m) > 0 {
		n.Attrs = m
	}

	h := t.Add(n)
	for i, c := range children {
		ch, err := t.decodeNode(c, fmt.Sprintf("%s/%s/%d", path, KeyChildren, i))
		if err != nil {
			return NoHandle, err
		}
		t.AppendChild(h, ch)
	}
	return h, nil
}

func stringKey(m map[string]any, key string) (string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%s must be a string, got %T", key, v)
	}
	return s, nil
}

func decodeFrame(raw any) (*Frame, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("frame must be an object, got %T", raw)
	}
	var f Frame
	if err := mapstructure.Decode(m, &f); err != nil {
		return nil, err
	}
	for key := range m {
		bit, known := frameKeyBits[key]
		switch {
		case known:
			f.present |= bit
		case key != "width" && key != "height":
			if f.extra == nil {
				f.extra = make(map[string]any)
			}
			f.extra[key] = m[key]
		}
	}
	return &f, nil
}

var frameKeyBits = map[string]frameKeys{
	"x":        frameX,
	"y":        frameY,
	"rotation": frameRotation,
	"flipX":    frameFlipX,
	"flipY":    frameFlipY,
}

// MarshalJSON encodes the tree back into a design document.
func (t *Tree) MarshalJSON() ([]byte, error) {
	top := make(map[string]any, len(t.extra)+len(t.lists))
	for k, v := range t.extra {
		top[k] = v
	}
	for _, l := range t.lists {
		items := make([]any, 0, len(l.Roots))
		for _, h := range l.Roots {
			if m := t.Map(h); m != nil {
				items = append(items, m)
			}
		}
		top[l.Key] = items
	}
	return json.Marshal(top)
}

// Map returns the element at h and its subtree as generic JSON values.
func (t *Tree) Map(h Handle) map[string]any {
	n := t.Node(h)
	if n == nil {
		return nil
	}
	out := make(map[string]any, len(n.Attrs)+5)
	for k, v := range n.Attrs {
		out[k] = v
	}
	if n.ID != "" {
		out[KeyID] = n.ID
	}
	if n.Class != "" {
		out[KeyClass] = n.Class
	}
	if n.hasMasterID {
		out[KeyMasterID] = n.MasterID
	}
	if n.Frame != nil {
		out[KeyFrame] = n.Frame.toMap()
	}
	if n.hasChildren || len(n.Children) > 0 {
		children := make([]any, 0, len(n.Children))
		for _, c := range n.Children {
			if m := t.Map(c); m != nil {
				children = append(children, m)
			}
		}
		out[KeyChildren] = children
	}
	return out
}
