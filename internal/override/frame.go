package override

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"

	"github.com/verygoodgraphics/vgg-runtime-sub005/pkg/element"
)

// FramePatch is a partial frame. Nil fields are left alone.
type FramePatch struct {
	X        *float64 `mapstructure:"x"`
	Y        *float64 `mapstructure:"y"`
	Width    *float64 `mapstructure:"width"`
	Height   *float64 `mapstructure:"height"`
	Rotation *float64 `mapstructure:"rotation"`
	FlipX    *bool    `mapstructure:"flipX"`
	FlipY    *bool    `mapstructure:"flipY"`
}

// Resizes reports whether the patch changes width or height.
func (p FramePatch) Resizes() bool {
	return p.Width != nil || p.Height != nil
}

// Apply writes the patch into f and returns the frame as it was before.
func (p FramePatch) Apply(f *element.Frame) element.Frame {
	before := *f
	if p.X != nil {
		f.X = *p.X
	}
	if p.Y != nil {
		f.Y = *p.Y
	}
	if p.Width != nil {
		f.Width = *p.Width
	}
	if p.Height != nil {
		f.Height = *p.Height
	}
	if p.Rotation != nil {
		f.Rotation = *p.Rotation
	}
	if p.FlipX != nil {
		f.FlipX = *p.FlipX
	}
	if p.FlipY != nil {
		f.FlipY = *p.FlipY
	}
	return before
}

// NewFramePatch builds a patch from a bounds override name and its value:
// an object for "frame" and "bounds", a number for a single field.
func NewFramePatch(name string, value any) (FramePatch, error) {
	var p FramePatch
	if name == NameFrame || name == NameBounds {
		m, ok := value.(map[string]any)
		if !ok {
			return p, fmt.Errorf("%s value must be an object, got %T", name, value)
		}
		if err := mapstructure.Decode(m, &p); err != nil {
			return p, err
		}
		return p, nil
	}

	if name == "flipX" || name == "flipY" {
		b, ok := value.(bool)
		if !ok {
			return p, fmt.Errorf("%s must be a boolean, got %T", name, value)
		}
		if name == "flipX" {
			p.FlipX = &b
		} else {
			p.FlipY = &b
		}
		return p, nil
	}

	n, ok := number(value)
	if !ok {
		return p, fmt.Errorf("%s must be a number, got %T", name, value)
	}
	switch name {
	case "x":
		p.X = &n
	case "y":
		p.Y = &n
	case "width":
		p.Width = &n
	case "height":
		p.Height = &n
	case "rotation":
		p.Rotation = &n
	default:
		return p, fmt.Errorf("%s is not a frame field", name)
	}
	return p, nil
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
