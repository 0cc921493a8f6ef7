package layout

import (
	"log/slog"
	"math"

	"github.com/verygoodgraphics/vgg-runtime-sub005/pkg/diag"
	"github.com/verygoodgraphics/vgg-runtime-sub005/pkg/element"
)

// Integrator resizes nodes, propagates the change to participating
// descendants and re-runs flex layout over what it touched. One integrator
// serves one expansion run.
type Integrator struct {
	tree   *element.Tree
	rules  Rules
	report *diag.Report
	logger *slog.Logger

	dirty map[element.Handle]bool
	order []element.Handle

	// malformed remembers rules already reported so each is reported once.
	malformed map[string]bool
}

// NewIntegrator creates an integrator over tree and rules. Both are mutated
// in place.
func NewIntegrator(tree *element.Tree, rules Rules, report *diag.Report, logger *slog.Logger) *Integrator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Integrator{
		tree:      tree,
		rules:     rules,
		report:    report,
		logger:    logger,
		dirty:     make(map[element.Handle]bool),
		malformed: make(map[string]bool),
	}
}

// MarkDirty records that h needs its layout output recomputed.
func (in *Integrator) MarkDirty(h element.Handle) {
	if h == element.NoHandle || in.dirty[h] {
		return
	}
	in.dirty[h] = true
	in.order = append(in.order, h)
}

// IsDirty reports whether h is marked.
func (in *Integrator) IsDirty(h element.Handle) bool {
	return in.dirty[h]
}

// TakeDirty returns the marked handles in marking order and clears the set.
func (in *Integrator) TakeDirty() []element.Handle {
	out := in.order
	in.order = nil
	in.dirty = make(map[element.Handle]bool)
	return out
}

// MarkBoundsChanged marks h after its frame was edited directly. A flex
// parent is marked too so the sibling flow is recomputed.
func (in *Integrator) MarkBoundsChanged(h element.Handle) {
	in.MarkDirty(h)
	n := in.tree.Node(h)
	if n == nil {
		return
	}
	if p := n.Parent(); p != element.NoHandle && in.container(p) != nil {
		in.MarkDirty(p)
	}
}

// Resize sets the size of h and moves or resizes its children according to
// their resizing constraints. It returns false if the size did not change.
func (in *Integrator) Resize(h element.Handle, width, height float64) bool {
	n := in.tree.Node(h)
	if n == nil {
		return false
	}
	f := n.EnsureFrame()
	old := *f
	if old.SameSize(element.Frame{Width: width, Height: height}) {
		return false
	}
	f.Width, f.Height = width, height
	in.MarkBoundsChanged(h)
	in.logger.Debug("resize",
		"node", n.ID,
		"from", []float64{old.Width, old.Height},
		"to", []float64{width, height})
	in.propagate(h, old.Width, old.Height)
	return true
}

// Propagate applies a size change of h, whose previous size was oldW by oldH,
// to its children. Use it after the frame of h was changed directly.
func (in *Integrator) Propagate(h element.Handle, oldW, oldH float64) {
	in.propagate(h, oldW, oldH)
}

func (in *Integrator) propagate(h element.Handle, oldW, oldH float64) {
	n := in.tree.Node(h)
	if n == nil || n.Frame == nil {
		return
	}
	newW, newH := n.Frame.Width, n.Frame.Height
	dw, dh := newW-oldW, newH-oldH
	sx, sy := ratio(newW, oldW), ratio(newH, oldH)
	flex := in.container(h) != nil

	for _, c := range n.Children {
		child := in.tree.Node(c)
		if child == nil || child.Frame == nil {
			continue
		}
		rule := in.rules[child.ID]
		if flex && !in.item(child.ID, rule).Absolute() {
			// Flow children are placed by the flex pass.
			continue
		}
		rs, err := rule.Resizing()
		if err != nil {
			in.reportRule(child.ID, err)
		}

		f := child.Frame
		before := *f
		f.X, f.Width = applyConstraint(rs.Horizontal, f.X, f.Width, dw, sx)
		f.Y, f.Height = applyConstraint(rs.Vertical, f.Y, f.Height, dh, sy)

		if !f.SameGeometry(before) {
			in.MarkDirty(c)
		}
		if !f.SameSize(before) {
			in.propagate(c, before.Width, before.Height)
		}
	}
	if flex {
		in.MarkDirty(h)
	}
}

func applyConstraint(c Constraint, pos, size, delta, scale float64) (float64, float64) {
	switch c {
	case FixEnd:
		return pos + delta, size
	case FixStartEnd:
		return pos, math.Max(0, size+delta)
	case Center:
		return pos + delta/2, size
	case Scale:
		return pos * scale, size * scale
	default:
		return pos, size
	}
}

func ratio(n, d float64) float64 {
	if d == 0 {
		return 1
	}
	return n / d
}

// Relayout runs the flex pass for every dirty container in the subtree at
// root, parents before children. Nodes outside the subtree are not visited.
func (in *Integrator) Relayout(root element.Handle) {
	in.tree.Walk(root, func(h element.Handle, n *element.Node) bool {
		if in.dirty[h] {
			if c := in.container(h); c != nil {
				in.layoutFlex(h, n, c)
			}
		}
		return true
	})
}

func (in *Integrator) container(h element.Handle) *Container {
	n := in.tree.Node(h)
	if n == nil {
		return nil
	}
	rule, ok := in.rules[n.ID]
	if !ok {
		return nil
	}
	c, err := rule.Container()
	if err != nil {
		in.reportRule(n.ID, err)
		return nil
	}
	return c
}

func (in *Integrator) item(id string, rule Rule) Item {
	it, err := rule.Item()
	if err != nil {
		in.reportRule(id, err)
	}
	return it
}

func (in *Integrator) reportRule(id string, err error) {
	if in.malformed[id] {
		return
	}
	in.malformed[id] = true
	in.logger.Warn("malformed layout rule", "node", id, "error", err)
	if in.report != nil {
		in.report.Addf(diag.SeverityWarning, diag.CodeMalformedRule, id, "", "%v", err)
	}
}

type flowItem struct {
	h    element.Handle
	n    *element.Node
	grow float64
}

// layoutFlex positions the flow children of a flex container inside its
// padded content box.
func (in *Integrator) layoutFlex(h element.Handle, n *element.Node, c *Container) {
	if n.Frame == nil {
		return
	}
	var flow []flowItem
	for _, ch := range n.Children {
		child := in.tree.Node(ch)
		if child == nil || child.Frame == nil {
			continue
		}
		it := in.item(child.ID, in.rules[child.ID])
		if it.Absolute() {
			continue
		}
		flow = append(flow, flowItem{h: ch, n: child, grow: it.Grow})
	}
	if len(flow) == 0 {
		return
	}

	top, right, bottom, left := c.Pad()
	horizontal := c.Horizontal()
	mainAvail := pick(horizontal, n.Frame.Width-left-right, n.Frame.Height-top-bottom)
	crossAvail := pick(horizontal, n.Frame.Height-top-bottom, n.Frame.Width-left-right)
	mainAvail, crossAvail = math.Max(0, mainAvail), math.Max(0, crossAvail)

	gaps := c.Gap * float64(len(flow)-1)

	// First pass: fixed main sizes and total grow weight.
	var fixed, weight float64
	for _, it := range flow {
		if it.grow > 0 {
			weight += it.grow
			continue
		}
		fixed += mainSize(horizontal, it.n.Frame)
	}
	free := math.Max(0, mainAvail-gaps-fixed)

	// Second pass: sizes.
	used := gaps
	for _, it := range flow {
		f := it.n.Frame
		before := *f
		if it.grow > 0 && weight > 0 {
			setMain(horizontal, f, free*it.grow/weight)
		}
		if c.AlignItems == "stretch" {
			setCross(horizontal, f, crossAvail)
		}
		used += mainSize(horizontal, f)
		if !f.SameSize(before) {
			in.MarkDirty(it.h)
			in.propagate(it.h, before.Width, before.Height)
		}
	}

	// Third pass: positions.
	pos, between := justify(c.JustifyContent, mainAvail, used, len(flow), c.Gap)
	for _, it := range flow {
		f := it.n.Frame
		before := *f
		crossOff := alignCross(c.AlignItems, crossAvail, crossSize(horizontal, f))
		if horizontal {
			f.X, f.Y = left+pos, top+crossOff
		} else {
			f.X, f.Y = left+crossOff, top+pos
		}
		pos += mainSize(horizontal, f) + between
		if !f.SameGeometry(before) {
			in.MarkDirty(it.h)
		}
	}
}

func justify(mode string, avail, used float64, count int, gap float64) (start, between float64) {
	rest := avail - used
	switch mode {
	case "center":
		return rest / 2, gap
	case "end":
		return rest, gap
	case "spaceBetween":
		if count > 1 && rest > 0 {
			return 0, gap + rest/float64(count-1)
		}
		return 0, gap
	default:
		return 0, gap
	}
}

func alignCross(mode string, avail, size float64) float64 {
	switch mode {
	case "center":
		return (avail - size) / 2
	case "end":
		return avail - size
	default:
		return 0
	}
}

func pick(horizontal bool, a, b float64) float64 {
	if horizontal {
		return a
	}
	return b
}

func mainSize(horizontal bool, f *element.Frame) float64 {
	return pick(horizontal, f.Width, f.Height)
}

func crossSize(horizontal bool, f *element.Frame) float64 {
	return pick(horizontal, f.Height, f.Width)
}

func setMain(horizontal bool, f *element.Frame, v float64) {
	if horizontal {
		f.Width = v
	} else {
		f.Height = v
	}
}

func setCross(horizontal bool, f *element.Frame, v float64) {
	if horizontal {
		f.Height = v
	} else {
		f.Width = v
	}
}
