package element

import "math"

// Element classes the expansion engine cares about.
const (
	ClassFrame          = "frame"
	ClassGroup          = "group"
	ClassSymbolMaster   = "symbolMaster"
	ClassSymbolInstance = "symbolInstance"
)

// Element keys that map onto typed Node fields.
const (
	KeyID       = "id"
	KeyClass    = "class"
	KeyMasterID = "masterId"
	KeyFrame    = "frame"
	KeyChildren = "childObjects"
)

// Attribute keys read by the engine but kept in Attrs.
const (
	KeyOverrideValues      = "overrideValues"
	KeyVariableDefs        = "variableDefs"
	KeyVariableAssignments = "variableAssignments"
	KeyVariableRefs        = "variableRefs"
	KeyAlphaMaskBy         = "alphaMaskBy"
	KeyOutlineMaskBy       = "outlineMaskBy"
)

// Handle addresses a node inside a Tree.
type Handle int32

// NoHandle is the zero-value sentinel for "no node".
const NoHandle Handle = -1

// Frame is the geometry of an element.
type Frame struct {
	X        float64 `mapstructure:"x"`
	Y        float64 `mapstructure:"y"`
	Width    float64 `mapstructure:"width"`
	Height   float64 `mapstructure:"height"`
	Rotation float64 `mapstructure:"rotation"`
	FlipX    bool    `mapstructure:"flipX"`
	FlipY    bool    `mapstructure:"flipY"`

	// present records the keys found when decoding so that zero values the
	// input spelled out survive a round trip.
	present frameKeys
	// extra holds frame keys the engine does not interpret.
	extra map[string]any
}

type frameKeys uint8

const (
	frameX frameKeys = 1 << iota
	frameY
	frameRotation
	frameFlipX
	frameFlipY
)

const sizeEpsilon = 1e-6

// SameSize reports whether two frames have the same width and height.
func (f Frame) SameSize(o Frame) bool {
	return math.Abs(f.Width-o.Width) < sizeEpsilon && math.Abs(f.Height-o.Height) < sizeEpsilon
}

// SameGeometry reports whether two frames describe the same box.
// Flips are ignored; they do not change the occupied area.
func (f Frame) SameGeometry(o Frame) bool {
	return f.SameSize(o) &&
		math.Abs(f.X-o.X) < sizeEpsilon &&
		math.Abs(f.Y-o.Y) < sizeEpsilon &&
		math.Abs(f.Rotation-o.Rotation) < sizeEpsilon
}

func (f Frame) toMap() map[string]any {
	m := make(map[string]any, len(f.extra)+7)
	for k, v := range f.extra {
		m[k] = v
	}
	m["width"] = f.Width
	m["height"] = f.Height
	if f.X != 0 || f.present&frameX != 0 {
		m["x"] = f.X
	}
	if f.Y != 0 || f.present&frameY != 0 {
		m["y"] = f.Y
	}
	if f.Rotation != 0 || f.present&frameRotation != 0 {
		m["rotation"] = f.Rotation
	}
	if f.FlipX || f.present&frameFlipX != 0 {
		m["flipX"] = f.FlipX
	}
	if f.FlipY || f.present&frameFlipY != 0 {
		m["flipY"] = f.FlipY
	}
	return m
}

// Node is one element of the tree.
type Node struct {
	ID       string
	Class    string
	MasterID string
	Frame    *Frame
	Children []Handle
	Attrs    map[string]any

	// Origin is the id the node carried in its master before expansion
	// prefixed it. Nodes read straight from the input have Origin == ID.
	Origin string

	hasMasterID bool
	hasChildren bool
	parent      Handle
	dead        bool
}

// IsInstance reports whether the node is a symbol instance.
func (n *Node) IsInstance() bool { return n.Class == ClassSymbolInstance }

// IsMaster reports whether the node is a symbol master.
func (n *Node) IsMaster() bool { return n.Class == ClassSymbolMaster }

// Parent returns the parent handle, NoHandle for roots.
func (n *Node) Parent() Handle { return n.parent }

// SetMasterID changes the referenced (or, for masters, declared) master id.
func (n *Node) SetMasterID(id string) {
	n.MasterID = id
	n.hasMasterID = true
}

// Attr returns a free-form attribute.
func (n *Node) Attr(key string) (any, bool) {
	if n.Attrs == nil {
		return nil, false
	}
	v, ok := n.Attrs[key]
	return v, ok
}

// SetAttr sets a free-form attribute.
func (n *Node) SetAttr(key string, v any) {
	if n.Attrs == nil {
		n.Attrs = make(map[string]any)
	}
	n.Attrs[key] = v
}

// EnsureFrame returns the node's frame, creating an empty one if needed.
func (n *Node) EnsureFrame() *Frame {
	if n.Frame == nil {
		n.Frame = &Frame{}
	}
	return n.Frame
}
