package index

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// Value is a tagged representation of an arbitrary nested object decoded from
// JSON. Modeling the shape explicitly (Leaf | Node) keeps the flattening
// recursion total: every input maps to exactly one of the two variants, and
// flattening a Node always terminates because each step strictly descends.
type Value interface {
	isValue()
}

// Leaf is a stringified terminal value. Arrays are treated as opaque leaves,
// not recursed into.
type Leaf string

// Node is a nested object keyed by field name.
type Node map[string]Value

func (Leaf) isValue() {}
func (Node) isValue() {}

// internalKeys are store-internal identifiers (revision/version markers) that
// must never leak into the flattened output.
var internalKeys = map[string]struct{}{
	"_id":          {},
	"_rev":         {},
	"_revisions":   {},
	"_deleted":     {},
	"_attachments": {},
}

// FromMap converts a decoded JSON object into a Node, stripping internal
// store identifiers at every level. A nil map yields an empty Node.
func FromMap(m map[string]any) Node {
	node := make(Node, len(m))
	for key, val := range m {
		if _, internal := internalKeys[key]; internal {
			continue
		}
		node[key] = fromAny(val)
	}
	return node
}

// fromAny converts an arbitrary decoded JSON value into a Value.
// Only non-nil objects become Nodes; everything else degrades to a Leaf.
func fromAny(v any) Value {
	if m, ok := v.(map[string]any); ok {
		return FromMap(m)
	}
	return Leaf(stringify(v))
}

// stringify coerces a terminal value to its string form.
// nil becomes the empty string rather than "null" or "<nil>".
func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	case []any:
		// Arrays are opaque leaves; JSON is the least lossy string form.
		if encoded, err := json.Marshal(t); err == nil {
			return string(encoded)
		}
		return fmt.Sprintf("%v", t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

// Flatten converts a Node into a mapping from dotted path to leaf value.
// Nested Nodes recurse with the key appended to the dot-separated prefix.
func Flatten(n Node) map[string]string {
	flat := make(map[string]string)
	flattenInto(flat, "", n)
	return flat
}

func flattenInto(flat map[string]string, prefix string, n Node) {
	for key, val := range n {
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}
		switch t := val.(type) {
		case Node:
			flattenInto(flat, path, t)
		case Leaf:
			flat[path] = string(t)
		}
	}
}

// sortedValues returns the values of a flat map ordered by key, so downstream
// consumers (aggregate text, tests) see a deterministic order.
func sortedValues(flat map[string]string) []string {
	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	vals := make([]string, 0, len(keys))
	for _, k := range keys {
		vals = append(vals, flat[k])
	}
	return vals
}
