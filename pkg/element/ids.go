package element

import "strings"

// Separator joins the parts of an expanded id.
const Separator = "__"

// JoinID builds the id of a node introduced by expansion: the instance-id
// stack followed by the node's own path, joined by Separator.
func JoinID(stack []string, path ...string) string {
	parts := make([]string, 0, len(stack)+len(path))
	parts = append(parts, stack...)
	parts = append(parts, path...)
	return strings.Join(parts, Separator)
}

// SplitID is the inverse of JoinID for ids whose parts do not themselves
// contain Separator.
func SplitID(id string) []string {
	if id == "" {
		return nil
	}
	return strings.Split(id, Separator)
}
