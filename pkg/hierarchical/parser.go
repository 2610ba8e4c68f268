// Package hierarchical parses hierarchical request identifiers of the form
// "|root.segment.segment." that upstream services use to encode call ancestry.
package hierarchical

import "strings"

// Prefix marks a request identifier as hierarchical.
const Prefix = "|"

// IsHierarchical reports whether the value uses the hierarchical convention.
func IsHierarchical(value string) bool {
	return strings.HasPrefix(value, Prefix)
}

// ParentID extracts the immediate parent segment from a request identifier.
// For a hierarchical value the parent is the last dot-delimited segment,
// ignoring a trailing dot: "|abc.def" and "|abc.def." both yield "def".
// A value without the "|" prefix is returned verbatim. Empty in, empty out.
func ParentID(value string) string {
	if !IsHierarchical(value) {
		return value
	}

	id := strings.TrimPrefix(value, Prefix)
	id = strings.TrimSuffix(id, ".")
	if idx := strings.LastIndex(id, "."); idx >= 0 {
		id = id[idx+1:]
	}
	return id
}

// RootID extracts the root segment from a request identifier. For
// "|abc.def.ghi" the root is "abc". A value without the "|" prefix is
// returned verbatim.
func RootID(value string) string {
	if !IsHierarchical(value) {
		return value
	}

	id := strings.TrimPrefix(value, Prefix)
	if idx := strings.Index(id, "."); idx >= 0 {
		id = id[:idx]
	}
	return id
}
