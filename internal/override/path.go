package override

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Path errors.
var (
	ErrEmptyPath    = errors.New("empty path")
	ErrIndexRange   = errors.New("array index out of range")
	ErrNotContainer = errors.New("path traverses a scalar value")
	ErrNoArray      = errors.New("path indexes an array that does not exist")
)

// AppendSegment as the final segment appends to an array.
const AppendSegment = "-"

// Path addresses a value inside an element's JSON form.
type Path []string

// ParsePath accepts JSON-pointer form ("/style/fills/0/color") or dotted form
// ("style.fills.0.color").
func ParsePath(s string) (Path, error) {
	if s == "" || s == "/" {
		return nil, ErrEmptyPath
	}
	if strings.HasPrefix(s, "/") {
		parts := strings.Split(s[1:], "/")
		for i, p := range parts {
			parts[i] = strings.ReplaceAll(strings.ReplaceAll(p, "~1", "/"), "~0", "~")
		}
		return Path(parts), nil
	}
	parts := strings.Split(s, ".")
	for _, p := range parts {
		if p == "" {
			return nil, fmt.Errorf("path %q has an empty segment", s)
		}
	}
	return Path(parts), nil
}

// Head returns the first segment.
func (p Path) Head() string {
	if len(p) == 0 {
		return ""
	}
	return p[0]
}

// Tail returns the path without its first segment.
func (p Path) Tail() Path {
	if len(p) == 0 {
		return nil
	}
	return p[1:]
}

// String renders the path in JSON-pointer form.
func (p Path) String() string {
	var b strings.Builder
	for _, seg := range p {
		b.WriteByte('/')
		b.WriteString(strings.ReplaceAll(strings.ReplaceAll(seg, "~", "~0"), "/", "~1"))
	}
	return b.String()
}

// Get reads the value at p inside root.
func (p Path) Get(root any) (any, bool) {
	cur := root
	for _, seg := range p {
		switch c := cur.(type) {
		case map[string]any:
			v, ok := c[seg]
			if !ok {
				return nil, false
			}
			cur = v
		case []any:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(c) {
				return nil, false
			}
			cur = c[i]
		default:
			return nil, false
		}
	}
	return cur, true
}

// Set writes v at p inside root and returns the updated root. Missing object
// keys along the way are created; arrays and their indices must exist.
func (p Path) Set(root any, v any) (any, error) {
	if len(p) == 0 {
		return nil, ErrEmptyPath
	}
	return setIn(root, p, v)
}

func setIn(cur any, segs Path, v any) (any, error) {
	if len(segs) == 0 {
		return v, nil
	}
	seg, rest := segs[0], segs[1:]

	switch c := cur.(type) {
	case nil:
		if seg == AppendSegment || isIndex(seg) {
			return nil, fmt.Errorf("%w at %q", ErrNoArray, seg)
		}
		return setIn(map[string]any{}, segs, v)
	case map[string]any:
		nv, err := setIn(c[seg], rest, v)
		if err != nil {
			return nil, err
		}
		c[seg] = nv
		return c, nil
	case []any:
		if seg == AppendSegment {
			if len(rest) > 0 {
				return nil, fmt.Errorf("%q must be the last segment", AppendSegment)
			}
			return append(c, v), nil
		}
		i, err := strconv.Atoi(seg)
		if err != nil {
			return nil, fmt.Errorf("%q is not an array index", seg)
		}
		if i < 0 || i >= len(c) {
			return nil, fmt.Errorf("%w: %d of %d", ErrIndexRange, i, len(c))
		}
		nv, err := setIn(c[i], rest, v)
		if err != nil {
			return nil, err
		}
		c[i] = nv
		return c, nil
	default:
		return nil, fmt.Errorf("%w at %q", ErrNotContainer, seg)
	}
}

func isIndex(seg string) bool {
	_, err := strconv.Atoi(seg)
	return err == nil
}
