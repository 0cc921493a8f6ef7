// Package element is the in-memory model of a design document.
//
// A document is an arena of Nodes addressed by stable integer Handles with
// an id → handle index on the side. Nodes never point at each other
// directly; parents list child handles and each node remembers its parent
// handle. Cloning copies nodes (and their free-form attributes) into fresh
// slots, so two clones never share mutable state.
//
// The engine-relevant keys of an element (id, class, masterId, frame,
// childObjects) are typed fields on Node; every other key round-trips
// through Node.Attrs untouched.
//
// # Basic Usage
//
//	tree, err := element.Decode(designJSON)
//	if err != nil {
//	    return err
//	}
//	h, ok := tree.Lookup("rect-1")
//	if ok {
//	    tree.Node(h).Frame.Width += 10
//	}
//	out, err := json.Marshal(tree)
package element
