package expand

import (
	"errors"
	"fmt"

	"github.com/mitchellh/copystructure"

	"github.com/verygoodgraphics/vgg-runtime-sub005/internal/collector"
	"github.com/verygoodgraphics/vgg-runtime-sub005/internal/layout"
	"github.com/verygoodgraphics/vgg-runtime-sub005/internal/override"
	"github.com/verygoodgraphics/vgg-runtime-sub005/pkg/diag"
	"github.com/verygoodgraphics/vgg-runtime-sub005/pkg/element"
)

var errReadOnly = errors.New("field cannot be overridden")

// target resolves the element an override addresses: the instance itself for
// an empty target, otherwise the clone node whose id is the instance prefix
// joined with the target id.
func (e *Expander) target(inst *instance, v override.Value) (element.Handle, string, bool) {
	if len(v.Target) == 0 {
		return inst.h, inst.n.ID, true
	}
	id := element.JoinID([]string{inst.prefix}, v.Target[0])
	h, ok := e.tree.Lookup(id)
	if !ok || h == inst.h || !e.tree.Contains(inst.h, h) {
		return element.NoHandle, id, false
	}
	return h, id, true
}

func (e *Expander) apply(inst *instance, v override.Value) {
	h, id, ok := e.target(inst, v)
	if !ok {
		e.missingTarget(inst, v, id)
		return
	}
	n := e.tree.Node(h)

	var err error
	switch p := v.Payload.(type) {
	case override.MasterSwap:
		if h == inst.h {
			// Applied before cloning.
			return
		}
		if !n.IsInstance() {
			err = fmt.Errorf("target %q is not an instance", n.ID)
			break
		}
		n.SetMasterID(p.MasterID)
		e.pinned[h] = true

	case override.VariableAssign:
		if h == inst.h {
			for _, a := range p.Assignments {
				inst.env.Set(a.ID, cloneValue(a.Value))
			}
			return
		}
		if !n.IsInstance() {
			err = fmt.Errorf("target %q is not an instance", n.ID)
			break
		}
		mergeAssignments(n, p.Assignments)

	case override.PathSet:
		err = e.setPath(inst, h, n, p.Path, cloneValue(p.Value))

	case override.LayoutPatch:
		r := e.rules[n.ID]
		if r == nil {
			r = layout.Rule{}
			e.rules[n.ID] = r
		}
		r.Merge(p.Key, cloneValue(p.Value).(map[string]any))
		e.integ.MarkBoundsChanged(h)

	case override.BoundsPatch:
		e.applyBounds(inst, h, n, p.Patch)

	case override.Property:
		n.SetAttr(p.Name, cloneValue(p.Value))
	}

	if errors.Is(err, override.ErrNoArray) {
		e.logger.Debug("override path missing", "instance", inst.n.ID, "override", v.String(), "target", id)
		e.report.Addf(diag.SeverityInfo, diag.CodeOverrideTarget, inst.n.ID, inst.n.MasterID,
			"override %s dropped on %q: %v", v, id, err)
		return
	}
	if err != nil {
		e.logger.Warn("override skipped", "instance", inst.n.ID, "override", v.String(), "error", err)
		e.report.Addf(diag.SeverityWarning, diag.CodeMalformedOverride, inst.n.ID, inst.n.MasterID,
			"override %s: %v", v, err)
	}
}

func (e *Expander) missingTarget(inst *instance, v override.Value, id string) {
	e.logger.Debug("override target missing", "instance", inst.n.ID, "override", v.String(), "target", id)
	e.report.Addf(diag.SeverityInfo, diag.CodeOverrideTarget, inst.n.ID, inst.n.MasterID,
		"override %s dropped: no element %q in the instance", v, id)
}

// setPath writes value at path inside the element at h. The frame is routed
// through the integrator; structural keys are rejected.
func (e *Expander) setPath(inst *instance, h element.Handle, n *element.Node, path override.Path, value any) error {
	switch path.Head() {
	case element.KeyID, element.KeyClass, element.KeyChildren:
		return fmt.Errorf("%w: %s", errReadOnly, path.Head())

	case element.KeyFrame:
		var (
			patch override.FramePatch
			err   error
		)
		switch tail := path.Tail(); len(tail) {
		case 0:
			patch, err = override.NewFramePatch(override.NameFrame, value)
		case 1:
			patch, err = override.NewFramePatch(tail[0], value)
		default:
			err = fmt.Errorf("frame path %s is too deep", path)
		}
		if err != nil {
			return err
		}
		e.applyBounds(inst, h, n, patch)
		return nil

	case element.KeyMasterID:
		id, ok := value.(string)
		if len(path) != 1 || !ok || id == "" {
			return errors.New("masterId must be set to a non-empty string")
		}
		n.SetMasterID(id)
		if h != inst.h {
			e.pinned[h] = true
		}
		return nil
	}

	if n.Attrs == nil {
		n.Attrs = make(map[string]any)
	}
	_, err := path.Set(n.Attrs, value)
	return err
}

// applyBounds edits the frame of h. Children follow a size change right away,
// except for the instance itself whose content is resized against the master
// size once all overrides are in.
func (e *Expander) applyBounds(inst *instance, h element.Handle, n *element.Node, patch override.FramePatch) {
	f := n.EnsureFrame()
	before := patch.Apply(f)
	e.integ.MarkBoundsChanged(h)
	if h != inst.h && !f.SameSize(before) {
		e.integ.Propagate(h, before.Width, before.Height)
	}
}

func mergeAssignments(n *element.Node, as []override.Assignment) {
	raw, _ := n.Attr(element.KeyVariableAssignments)
	list, _ := raw.([]any)
	for _, a := range as {
		replaced := false
		for _, item := range list {
			if m, ok := item.(map[string]any); ok && m["id"] == a.ID {
				m["value"] = cloneValue(a.Value)
				replaced = true
				break
			}
		}
		if !replaced {
			list = append(list, map[string]any{"id": a.ID, "value": cloneValue(a.Value)})
		}
	}
	n.SetAttr(element.KeyVariableAssignments, list)
}

// bindings builds the variable env of an instance from the master's
// declarations and the instance's assignments.
func (e *Expander) bindings(inst *instance, m *collector.Master, sc *scope) *override.Env {
	mn := e.reg.Library().Node(m.Lib)

	rawDefs, _ := mn.Attr(element.KeyVariableDefs)
	defs, err := override.DecodeDefs(rawDefs)
	if err != nil {
		e.report.Addf(diag.SeverityWarning, diag.CodeMalformedVariable, mn.ID, m.ID, "variableDefs: %v", err)
	}
	rawAssigns, _ := inst.n.Attr(element.KeyVariableAssignments)
	assigns, err := override.DecodeAssignments(rawAssigns)
	if err != nil {
		e.report.Addf(diag.SeverityWarning, diag.CodeMalformedVariable, inst.n.ID, m.ID, "variableAssignments: %v", err)
	}
	return override.NewEnv(override.Bind(defs, assigns), sc.env, e.opts.VariableScope == ScopeAll)
}

// substitute writes bound variable values into every field of the clone that
// references a variable. Nested instances are visited but not entered: their
// content is bound when they expand.
func (e *Expander) substitute(inst *instance) {
	e.tree.Walk(inst.h, func(h element.Handle, n *element.Node) bool {
		if h == inst.h {
			return true
		}
		raw, ok := n.Attr(element.KeyVariableRefs)
		if ok {
			e.substituteNode(inst, h, n, raw)
		}
		return !n.IsInstance()
	})
}

func (e *Expander) substituteNode(inst *instance, h element.Handle, n *element.Node, raw any) {
	refs, err := override.DecodeRefs(raw)
	if err != nil {
		e.report.Addf(diag.SeverityWarning, diag.CodeMalformedVariable, n.ID, inst.n.MasterID, "variableRefs: %v", err)
		return
	}
	for _, ref := range refs {
		v, ok := inst.env.Lookup(ref.ID)
		if !ok {
			e.report.Addf(diag.SeverityInfo, diag.CodeMalformedVariable, n.ID, inst.n.MasterID,
				"variable %q is not bound in this scope", ref.ID)
			continue
		}
		path, err := override.ParsePath(ref.ObjectField)
		if err == nil {
			err = e.setPath(inst, h, n, path, cloneValue(v))
		}
		if err != nil {
			e.report.Addf(diag.SeverityWarning, diag.CodeMalformedVariable, n.ID, inst.n.MasterID,
				"variable %q into %q: %v", ref.ID, ref.ObjectField, err)
		}
	}
}

// rewriteMasks points mask references of cloned nodes at the cloned ids.
func (e *Expander) rewriteMasks(inst *instance, idMap map[string]string) {
	e.tree.Walk(inst.h, func(h element.Handle, n *element.Node) bool {
		if h == inst.h {
			return true
		}
		for _, key := range []string{element.KeyAlphaMaskBy, element.KeyOutlineMaskBy} {
			raw, ok := n.Attr(key)
			if !ok {
				continue
			}
			list, ok := raw.([]any)
			if !ok {
				continue
			}
			for i, item := range list {
				switch m := item.(type) {
				case string:
					if nid, ok := idMap[m]; ok {
						list[i] = nid
					}
				case map[string]any:
					if id, ok := m["id"].(string); ok {
						if nid, ok := idMap[id]; ok {
							m["id"] = nid
						}
					}
				}
			}
		}
		return true
	})
}

// cloneValue deep-copies a JSON value so no two nodes share mutable state.
func cloneValue(v any) any {
	cp, err := copystructure.Copy(v)
	if err != nil {
		return v
	}
	return cp
}
